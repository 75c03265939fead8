// Package filter translates a catalog filter request into the two backend
// query shapes: search index filter/sort clauses and relational list params.
// Both translations of one request must select the same products.
package filter

import (
	"github.com/utafrali/catalog-discovery/internal/category"
	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/store"
)

// Clauses is the dual translation of one filter request.
type Clauses struct {
	// Filters are bool-query filter context clauses for the search index.
	Filters []map[string]any
	// Sort is the search index sort expression for the request's sort key.
	Sort []map[string]any
	// StoreParams is the relationally expressible subset for the fallback
	// path. The fallback engine owns its fetch window; Limit and Offset
	// stay zero here.
	StoreParams store.ListParams
}

// Build produces both backend translations of the request. The request must
// already be normalized and validated.
func Build(req *domain.FilterRequest, cats category.Resolved) Clauses {
	return Clauses{
		Filters: buildFilters(req, cats),
		Sort:    buildSort(req),
		StoreParams: store.ListParams{
			CategoryIDs:  cats.IDs,
			CollectionID: req.CollectionID,
			Query:        req.Query,
		},
	}
}

// buildFilters assembles the AND-combined filter clauses. Every clause here
// has an equivalent predicate in the fallback engine.
func buildFilters(req *domain.FilterRequest, cats category.Resolved) []map[string]any {
	var filters []map[string]any

	filters = append(filters, map[string]any{
		"term": map[string]any{"status": domain.ProductStatusPublished},
	})

	// Older index documents carry only denormalized category names, newer
	// ones carry ids. Matching either group keeps both generations of
	// documents findable.
	if len(cats.IDs) > 0 {
		should := []map[string]any{
			{"terms": map[string]any{"category_ids": cats.IDs}},
		}
		if len(cats.Names) > 0 {
			should = append(should, map[string]any{
				"terms": map[string]any{"category_names": cats.Names},
			})
		}
		filters = append(filters, map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
			},
		})
	}

	switch req.Availability {
	case domain.AvailabilityInStock:
		filters = append(filters, map[string]any{"term": map[string]any{"in_stock": true}})
	case domain.AvailabilityOutOfStock:
		filters = append(filters, map[string]any{"term": map[string]any{"in_stock": false}})
	}

	if req.PriceMin != nil || req.PriceMax != nil {
		bounds := map[string]any{}
		if req.PriceMin != nil {
			bounds["gte"] = *req.PriceMin
		}
		if req.PriceMax != nil {
			bounds["lte"] = *req.PriceMax
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{PriceField(req.Currency): bounds},
		})
	}

	for _, tag := range req.Tags {
		filters = append(filters, map[string]any{"term": map[string]any{"tags": tag}})
	}

	if req.CollectionID != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"collection_id": req.CollectionID}})
	}

	return filters
}

// buildSort maps the sort key to an index sort expression. Every expression
// ends with an id tiebreaker so paging is stable when the primary key ties.
// Products without a price in the active currency sort last under the price
// keys, matching the fallback engine's ordering.
func buildSort(req *domain.FilterRequest) []map[string]any {
	var primary map[string]any

	switch req.SortBy {
	case domain.SortPriceAsc:
		primary = map[string]any{PriceField(req.Currency): map[string]any{"order": "asc", "missing": "_last"}}
	case domain.SortPriceDesc:
		primary = map[string]any{PriceField(req.Currency): map[string]any{"order": "desc", "missing": "_last"}}
	case domain.SortTitleAsc:
		primary = map[string]any{"title.keyword": map[string]any{"order": "asc"}}
	case domain.SortTitleDesc:
		primary = map[string]any{"title.keyword": map[string]any{"order": "desc"}}
	default:
		primary = map[string]any{"created_at": map[string]any{"order": "desc"}}
	}

	return []map[string]any{
		primary,
		{"id": map[string]any{"order": "asc"}},
	}
}

// PriceField returns the index document field holding the minimum variant
// price for the given currency.
func PriceField(currency string) string {
	return "min_prices." + currency
}
