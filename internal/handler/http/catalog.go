package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/pkg/httputil"
	"github.com/utafrali/catalog-discovery/pkg/validator"
)

// CatalogSearcher is the orchestrator surface the handler consumes.
type CatalogSearcher interface {
	Search(ctx context.Context, req *domain.FilterRequest) (*domain.CatalogResponse, error)
}

// CatalogHandler handles HTTP requests for catalog search.
type CatalogHandler struct {
	service CatalogSearcher
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc CatalogSearcher, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// SearchRequest is the JSON request body for a catalog search.
type SearchRequest struct {
	Query          string   `json:"query"`
	CategoryID     string   `json:"category_id"`
	CategoryHandle string   `json:"category_handle"`
	Availability   string   `json:"availability" validate:"omitempty,oneof=all in_stock out_of_stock"`
	PriceMin       *int64   `json:"price_min" validate:"omitempty,gte=0"`
	PriceMax       *int64   `json:"price_max" validate:"omitempty,gte=0"`
	Tags           []string `json:"tags"`
	CollectionID   string   `json:"collection_id"`
	SortBy         string   `json:"sort_by" validate:"omitempty,oneof=created_at price_asc price_desc title_asc title_desc"`
	Page           int      `json:"page" validate:"omitempty,gte=1"`
	// Limit above the maximum is clamped downstream, not rejected, so GET
	// and POST callers see the same behavior.
	Limit int `json:"limit" validate:"omitempty,gte=1"`
	Currency       string   `json:"currency" validate:"omitempty,len=3"`
}

func (r *SearchRequest) toFilterRequest() *domain.FilterRequest {
	req := &domain.FilterRequest{
		Query:          strings.TrimSpace(r.Query),
		CategoryID:     r.CategoryID,
		CategoryHandle: r.CategoryHandle,
		Availability:   domain.Availability(r.Availability),
		PriceMin:       r.PriceMin,
		PriceMax:       r.PriceMax,
		Tags:           r.Tags,
		CollectionID:   r.CollectionID,
		SortBy:         domain.SortBy(r.SortBy),
		Page:           r.Page,
		Limit:          r.Limit,
		Currency:       strings.ToLower(r.Currency),
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = domain.DefaultLimit
	}
	return req
}

// Search handles GET /api/v1/catalog/search
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := &domain.FilterRequest{
		Query:          strings.TrimSpace(q.Get("q")),
		CategoryID:     q.Get("category_id"),
		CategoryHandle: q.Get("category_handle"),
		Availability:   domain.Availability(q.Get("availability")),
		CollectionID:   q.Get("collection_id"),
		SortBy:         domain.SortBy(q.Get("sort_by")),
		Currency:       strings.ToLower(q.Get("currency")),
		Page:           1,
		Limit:          domain.DefaultLimit,
	}

	if v := q.Get("tags"); v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				req.Tags = append(req.Tags, tag)
			}
		}
	}

	if v := q.Get("price_min"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeParamError(w, "price_min must be a valid number")
			return
		}
		req.PriceMin = &price
	}
	if v := q.Get("price_max"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeParamError(w, "price_max must be a valid number")
			return
		}
		req.PriceMax = &price
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			writeParamError(w, "page must be a valid number")
			return
		}
		req.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeParamError(w, "limit must be a valid number")
			return
		}
		req.Limit = limit
	}

	result, err := h.service.Search(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// SearchPost handles POST /api/v1/catalog/search
func (h *CatalogHandler) SearchPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Search(r.Context(), req.toFilterRequest())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

func writeParamError(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
