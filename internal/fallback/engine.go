// Package fallback emulates the search index over the relational product
// store. It fetches a bounded superset of candidate rows, then filters,
// matches, sorts, facets, and paginates in memory. It is the secondary
// search path, used whenever the index attempt fails.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/store"
	apperrors "github.com/utafrali/catalog-discovery/pkg/errors"
	"github.com/utafrali/catalog-discovery/pkg/logger"
)

// DefaultFetchCap bounds the superset fetch. A catalog slice larger than
// this under-reports totals and facet counts; the cap is a latency bound,
// not a correctness guarantee.
const DefaultFetchCap = 1000

// Engine is the relational fallback search engine.
type Engine struct {
	store    store.ProductStore
	fetchCap int
}

// New creates a fallback engine over the given product store. fetchCap <= 0
// selects DefaultFetchCap.
func New(s store.ProductStore, fetchCap int) *Engine {
	if fetchCap <= 0 {
		fetchCap = DefaultFetchCap
	}
	return &Engine{store: s, fetchCap: fetchCap}
}

// Search runs the catalog query over the relational store. Category and
// collection filters are pushed down; the free-text predicate is not, since
// SQL can only match title and description while the in-memory predicate
// also covers tags, variant titles, and SKUs. Store failures come back
// wrapped as ErrFallbackFailed.
func (e *Engine) Search(ctx context.Context, req *domain.FilterRequest, params store.ListParams) (*domain.ResultSet, error) {
	params.Query = ""
	params.Limit = e.fetchCap
	params.Offset = 0

	candidates, _, err := e.store.List(ctx, params)
	if err != nil {
		return nil, apperrors.FallbackFailed(fmt.Errorf("fetch candidate products: %w", err))
	}
	if len(candidates) == e.fetchCap {
		logger.FromContext(ctx).Warn("fallback fetch hit its cap, totals may under-report",
			"fetch_cap", e.fetchCap)
	}

	queryLower := strings.ToLower(req.Query)
	matched := make([]domain.Product, 0, len(candidates))
	for _, p := range candidates {
		if matches(&p, req, queryLower) {
			matched = append(matched, p)
		}
	}

	sortProducts(matched, req.SortBy, req.Currency)

	// Total and facets reflect the post-filter, pre-pagination set so the
	// pagination metadata stays internally consistent.
	total := len(matched)
	facets := computeFacets(matched)

	offset := req.Offset()
	if offset > total {
		offset = total
	}
	end := offset + req.Limit
	if end > total {
		end = total
	}

	return &domain.ResultSet{
		Products: matched[offset:end],
		Total:    total,
		Facets:   facets,
	}, nil
}

// matches applies the predicates the relational fetch could not express:
// availability, free text, and price range.
func matches(p *domain.Product, req *domain.FilterRequest, queryLower string) bool {
	switch req.Availability {
	case domain.AvailabilityInStock:
		if !p.InStock() {
			return false
		}
	case domain.AvailabilityOutOfStock:
		if p.InStock() {
			return false
		}
	}

	if queryLower != "" && !matchesText(p, queryLower) {
		return false
	}

	if req.PriceMin != nil || req.PriceMax != nil {
		price, ok := p.MinPrice(req.Currency)
		if !ok {
			return false
		}
		if req.PriceMin != nil && price < *req.PriceMin {
			return false
		}
		if req.PriceMax != nil && price > *req.PriceMax {
			return false
		}
	}

	for _, tag := range req.Tags {
		if !p.HasTag(tag) {
			return false
		}
	}

	return true
}

// matchesText is the in-memory stand-in for the index's full-text match:
// substring containment over title, description, tags, variant titles, and
// SKUs, case-insensitive.
func matchesText(p *domain.Product, queryLower string) bool {
	if strings.Contains(strings.ToLower(p.Title), queryLower) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Description), queryLower) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), queryLower) {
			return true
		}
	}
	for _, v := range p.Variants {
		if strings.Contains(strings.ToLower(v.Title), queryLower) {
			return true
		}
		if strings.Contains(strings.ToLower(v.SKU), queryLower) {
			return true
		}
	}
	return false
}

// sortProducts orders the matched set the way the index sorts: the
// requested key first, id ascending as the tiebreaker, products without a
// price in the active currency last under the price keys.
func sortProducts(products []domain.Product, sortBy domain.SortBy, currency string) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := &products[i], &products[j]

		switch sortBy {
		case domain.SortPriceAsc, domain.SortPriceDesc:
			ap, aok := a.MinPrice(currency)
			bp, bok := b.MinPrice(currency)
			if aok != bok {
				return aok
			}
			if aok && ap != bp {
				if sortBy == domain.SortPriceAsc {
					return ap < bp
				}
				return ap > bp
			}
		case domain.SortTitleAsc:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case domain.SortTitleDesc:
			if a.Title != b.Title {
				return a.Title > b.Title
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}

		return a.ID < b.ID
	})
}

// computeFacets group-counts the post-filter set along the fixed facet
// dimensions: category name, tag, availability, collection title.
func computeFacets(products []domain.Product) domain.Facets {
	facets := domain.Facets{
		domain.FacetCategory:     {},
		domain.FacetTags:         {},
		domain.FacetAvailability: {},
		domain.FacetCollection:   {},
	}

	for i := range products {
		p := &products[i]

		for _, name := range p.CategoryNames {
			facets[domain.FacetCategory][name]++
		}
		for _, tag := range p.Tags {
			facets[domain.FacetTags][tag]++
		}
		if p.InStock() {
			facets[domain.FacetAvailability][string(domain.AvailabilityInStock)]++
		} else {
			facets[domain.FacetAvailability][string(domain.AvailabilityOutOfStock)]++
		}
		if p.CollectionTitle != "" {
			facets[domain.FacetCollection][p.CollectionTitle]++
		}
	}

	return facets
}
