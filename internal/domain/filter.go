package domain

import (
	"fmt"

	apperrors "github.com/utafrali/catalog-discovery/pkg/errors"
)

// Availability filters products by derived stock state.
type Availability string

const (
	AvailabilityAll        Availability = "all"
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
)

// IsValid reports whether the availability value is one of the known states.
func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityAll, AvailabilityInStock, AvailabilityOutOfStock:
		return true
	}
	return false
}

// SortBy selects the result ordering. Both search paths must produce the
// same relative ordering for every supported key.
type SortBy string

const (
	SortCreatedAt SortBy = "created_at"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
	SortTitleAsc  SortBy = "title_asc"
	SortTitleDesc SortBy = "title_desc"
)

// IsValid reports whether the sort key is supported.
func (s SortBy) IsValid() bool {
	switch s {
	case SortCreatedAt, SortPriceAsc, SortPriceDesc, SortTitleAsc, SortTitleDesc:
		return true
	}
	return false
}

// Pagination and limit defaults.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// FilterRequest is the query contract for a catalog search. CategoryID and
// CategoryHandle are alternatives; when both are set, the id wins. PriceMin
// and PriceMax are minor units in Currency, inclusive on both ends.
type FilterRequest struct {
	Query          string       `json:"query"`
	CategoryID     string       `json:"category_id,omitempty"`
	CategoryHandle string       `json:"category_handle,omitempty"`
	Availability   Availability `json:"availability"`
	PriceMin       *int64       `json:"price_min,omitempty"`
	PriceMax       *int64       `json:"price_max,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	CollectionID   string       `json:"collection_id,omitempty"`
	SortBy         SortBy       `json:"sort_by"`
	Page           int          `json:"page"`
	Limit          int          `json:"limit"`
	Currency       string       `json:"currency"`
}

// Normalize fills in defaults for zero-valued optional fields and clamps an
// oversized Limit to MaxLimit. Non-positive Page and Limit are caller bugs
// and are rejected by Validate instead of being silently corrected.
func (r *FilterRequest) Normalize(defaultCurrency string) {
	if r.Availability == "" {
		r.Availability = AvailabilityAll
	}
	if r.SortBy == "" {
		r.SortBy = SortCreatedAt
	}
	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
}

// Validate checks the request invariants. It returns an InvalidInput
// AppError, the only error kind a catalog search ever surfaces to a caller.
func (r *FilterRequest) Validate() error {
	if r.Page < 1 {
		return apperrors.InvalidInput(fmt.Sprintf("page must be at least 1, got %d", r.Page))
	}
	if r.Limit < 1 {
		return apperrors.InvalidInput(fmt.Sprintf("limit must be at least 1, got %d", r.Limit))
	}
	if !r.Availability.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("availability must be one of all, in_stock, out_of_stock, got %q", r.Availability))
	}
	if !r.SortBy.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("sort_by must be one of created_at, price_asc, price_desc, title_asc, title_desc, got %q", r.SortBy))
	}
	if r.PriceMin != nil && *r.PriceMin < 0 {
		return apperrors.InvalidInput("price_min must not be negative")
	}
	if r.PriceMax != nil && *r.PriceMax < 0 {
		return apperrors.InvalidInput("price_max must not be negative")
	}
	if r.PriceMin != nil && r.PriceMax != nil && *r.PriceMin > *r.PriceMax {
		return apperrors.InvalidInput("price_min must not exceed price_max")
	}
	return nil
}

// Offset returns the zero-based row offset for the request.
func (r *FilterRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}
