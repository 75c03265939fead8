// Package catalog is the top-level query orchestrator: it resolves the
// category filter, builds both backend translations of the request, tries
// the search index, and falls back to the relational engine when the index
// attempt fails. Callers always receive a well-formed response; the only
// error it ever returns is request validation.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/catalog-discovery/internal/category"
	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/filter"
	"github.com/utafrali/catalog-discovery/internal/store"
	"github.com/utafrali/catalog-discovery/pkg/logger"
)

// IndexSearcher is the primary search path.
type IndexSearcher interface {
	Search(ctx context.Context, req *domain.FilterRequest, clauses filter.Clauses) (*domain.ResultSet, error)
}

// FallbackSearcher is the secondary search path.
type FallbackSearcher interface {
	Search(ctx context.Context, req *domain.FilterRequest, params store.ListParams) (*domain.ResultSet, error)
}

// CategoryResolver expands a category reference into its descendant closure.
type CategoryResolver interface {
	Resolve(ctx context.Context, id, handle string) (category.Resolved, error)
}

// searchState tracks the request through the dual-path attempt.
type searchState int

const (
	stateStart searchState = iota
	stateTryIndex
	stateTryFallback
	stateDone
)

// transition is the pure state function: the index attempt either completes
// the request or hands it to the fallback; the fallback attempt always
// terminates.
func transition(s searchState, ok bool) searchState {
	switch s {
	case stateStart:
		return stateTryIndex
	case stateTryIndex:
		if ok {
			return stateDone
		}
		return stateTryFallback
	default:
		return stateDone
	}
}

// Service is the catalog search orchestrator.
type Service struct {
	resolver        CategoryResolver
	index           IndexSearcher
	fallback        FallbackSearcher
	breaker         *gobreaker.CircuitBreaker[*domain.ResultSet]
	defaultCurrency string
}

// NewService wires the orchestrator. The circuit breaker short-circuits the
// index attempt while the index is known bad, sparing each request the
// index timeout before it falls back.
func NewService(resolver CategoryResolver, index IndexSearcher, fallback FallbackSearcher, defaultCurrency string, log *slog.Logger) *Service {
	settings := gobreaker.Settings{
		Name:     "search-index",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Service{
		resolver:        resolver,
		index:           index,
		fallback:        fallback,
		breaker:         gobreaker.NewCircuitBreaker[*domain.ResultSet](settings),
		defaultCurrency: defaultCurrency,
	}
}

// Search executes one catalog query. Backend failures never surface: the
// index path degrades to the fallback path, and a double failure degrades
// to an empty response. Only an invalid request returns an error.
func (s *Service) Search(ctx context.Context, req *domain.FilterRequest) (*domain.CatalogResponse, error) {
	req.Normalize(s.defaultCurrency)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resolved := s.resolveCategories(ctx, req)
	clauses := filter.Build(req, resolved)

	log := logger.FromContext(ctx)

	var rs *domain.ResultSet
	path := pathDegraded

	for st := transition(stateStart, true); st != stateDone; {
		switch st {
		case stateTryIndex:
			result, err := s.breaker.Execute(func() (*domain.ResultSet, error) {
				return s.index.Search(ctx, req, clauses)
			})
			if err != nil {
				log.Warn("search index path failed, trying fallback", "error", err)
				st = transition(st, false)
				continue
			}
			rs = result
			path = pathIndex
			st = transition(st, true)

		case stateTryFallback:
			result, err := s.fallback.Search(ctx, req, clauses.StoreParams)
			if err != nil {
				log.Error("both search paths failed, returning empty response", "error", err)
				st = transition(st, false)
				continue
			}
			rs = result
			path = pathFallback
			st = transition(st, true)
		}
	}

	searchPathTotal.WithLabelValues(path).Inc()

	if rs == nil {
		return domain.EmptyCatalogResponse(req, resolved.IDs), nil
	}
	return domain.NewCatalogResponse(rs, req, resolved.IDs), nil
}

// resolveCategories expands the request's category reference once; both
// paths reuse the result. A lookup failure degrades to "no category filter"
// rather than failing the search.
func (s *Service) resolveCategories(ctx context.Context, req *domain.FilterRequest) category.Resolved {
	resolved, err := s.resolver.Resolve(ctx, req.CategoryID, req.CategoryHandle)
	if err != nil {
		logger.FromContext(ctx).Warn("category lookup failed, searching without category filter",
			"category_id", req.CategoryID, "category_handle", req.CategoryHandle, "error", err)
		return category.Resolved{}
	}
	return resolved
}
