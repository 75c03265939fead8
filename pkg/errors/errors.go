package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the catalog engine. Everything except ErrInvalidInput
// is recovered internally: a failed category lookup degrades to "no category
// filter", a failed index query degrades to the relational fallback, and a
// failed fallback degrades to an empty result page.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrCategoryLookup   = errors.New("category lookup failed")
	ErrIndexUnavailable = errors.New("search index unavailable")
	ErrFallbackFailed   = errors.New("relational fallback failed")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error. This is the only error kind the catalog
// search surface ever returns to a caller; it indicates a caller bug rather
// than a backend outage.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// CategoryLookup wraps a category store read failure. Callers treat it as
// "no category filter applied" rather than aborting the search.
func CategoryLookup(err error) error {
	return fmt.Errorf("%w: %w", ErrCategoryLookup, err)
}

// IndexUnavailable wraps a search index failure (timeout, non-2xx, malformed
// body). It is the signal the orchestrator watches for to trigger fallback.
func IndexUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
}

// FallbackFailed wraps a relational store failure during fallback search.
// Recoverable only into an empty-but-valid response.
func FallbackFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrFallbackFailed, err)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
