package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-discovery/internal/category"
	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/filter"
	"github.com/utafrali/catalog-discovery/internal/store"
	apperrors "github.com/utafrali/catalog-discovery/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	resolved category.Resolved
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, id, handle string) (category.Resolved, error) {
	f.calls++
	if f.err != nil {
		return category.Resolved{}, f.err
	}
	if id == "" && handle == "" {
		return category.Resolved{}, nil
	}
	return f.resolved, nil
}

type fakeIndex struct {
	result *domain.ResultSet
	err    error
	calls  int
	// captured clauses from the last call
	lastClauses filter.Clauses
}

func (f *fakeIndex) Search(_ context.Context, _ *domain.FilterRequest, clauses filter.Clauses) (*domain.ResultSet, error) {
	f.calls++
	f.lastClauses = clauses
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeFallback struct {
	result     *domain.ResultSet
	err        error
	calls      int
	lastParams store.ListParams
}

func (f *fakeFallback) Search(_ context.Context, _ *domain.FilterRequest, params store.ListParams) (*domain.ResultSet, error) {
	f.calls++
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func resultSet(ids ...string) *domain.ResultSet {
	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, domain.Product{ID: id})
	}
	return &domain.ResultSet{Products: products, Total: len(ids), Facets: domain.Facets{}}
}

func newRequest() *domain.FilterRequest {
	return &domain.FilterRequest{Page: 1, Limit: 20}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from searchState
		ok   bool
		want searchState
	}{
		{stateStart, true, stateTryIndex},
		{stateStart, false, stateTryIndex},
		{stateTryIndex, true, stateDone},
		{stateTryIndex, false, stateTryFallback},
		{stateTryFallback, true, stateDone},
		{stateTryFallback, false, stateDone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, transition(tt.from, tt.ok), "transition(%d, %v)", tt.from, tt.ok)
	}
}

func TestService_Search_IndexPath(t *testing.T) {
	idx := &fakeIndex{result: resultSet("p1", "p2")}
	fb := &fakeFallback{}
	svc := NewService(&fakeResolver{}, idx, fb, "eur", testLogger())

	resp, err := svc.Search(context.Background(), newRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, 1, idx.calls)
	assert.Zero(t, fb.calls, "fallback must not run when the index succeeds")
}

func TestService_Search_FallsBackOnIndexError(t *testing.T) {
	idx := &fakeIndex{err: apperrors.IndexUnavailable(errors.New("timeout"))}
	fb := &fakeFallback{result: resultSet("p1")}
	svc := NewService(&fakeResolver{}, idx, fb, "eur", testLogger())

	resp, err := svc.Search(context.Background(), newRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, 1, idx.calls)
	assert.Equal(t, 1, fb.calls)
}

func TestService_Search_FallbackReusesResolvedCategories(t *testing.T) {
	resolver := &fakeResolver{resolved: category.Resolved{
		IDs:   []string{"cat-1", "cat-2"},
		Names: []string{"Motor", "Kühlung"},
	}}
	idx := &fakeIndex{err: errors.New("down")}
	fb := &fakeFallback{result: resultSet()}
	svc := NewService(resolver, idx, fb, "eur", testLogger())

	req := newRequest()
	req.CategoryID = "cat-1"
	resp, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls, "categories must be resolved exactly once")
	assert.Equal(t, []string{"cat-1", "cat-2"}, fb.lastParams.CategoryIDs)
	assert.Equal(t, []string{"cat-1", "cat-2"}, resp.AppliedFilters.CategoryIDs)
}

func TestService_Search_DegradesToEmptyResponse(t *testing.T) {
	idx := &fakeIndex{err: errors.New("index down")}
	fb := &fakeFallback{err: apperrors.FallbackFailed(errors.New("db down"))}
	svc := NewService(&fakeResolver{}, idx, fb, "eur", testLogger())

	req := newRequest()
	req.Query = "brake"
	resp, err := svc.Search(context.Background(), req)
	require.NoError(t, err, "backend outages never surface as errors")

	assert.Empty(t, resp.Products)
	assert.Zero(t, resp.TotalCount)
	assert.Equal(t, "brake", resp.AppliedFilters.Query)
	assert.NotNil(t, resp.Facets[domain.FacetCategory])
	assert.Equal(t, 1, resp.Pagination.Page)
}

func TestService_Search_ValidationErrorSurfaces(t *testing.T) {
	svc := NewService(&fakeResolver{}, &fakeIndex{result: resultSet()}, &fakeFallback{}, "eur", testLogger())

	req := newRequest()
	req.Page = 0
	_, err := svc.Search(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestService_Search_CategoryLookupFailureDropsFilter(t *testing.T) {
	resolver := &fakeResolver{err: apperrors.CategoryLookup(errors.New("db down"))}
	idx := &fakeIndex{result: resultSet("p1")}
	svc := NewService(resolver, idx, &fakeFallback{}, "eur", testLogger())

	req := newRequest()
	req.CategoryHandle = "motor"
	resp, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, resp.AppliedFilters.CategoryIDs)
	// the index query carries only the status clause
	assert.Len(t, idx.lastClauses.Filters, 1)
}

func TestService_Search_BreakerShortCircuitsIndex(t *testing.T) {
	idx := &fakeIndex{err: errors.New("down")}
	fb := &fakeFallback{result: resultSet()}
	svc := NewService(&fakeResolver{}, idx, fb, "eur", testLogger())

	for i := 0; i < 10; i++ {
		_, err := svc.Search(context.Background(), newRequest())
		require.NoError(t, err)
	}

	assert.Less(t, idx.calls, 10, "open breaker must stop hitting the index")
	assert.Equal(t, 10, fb.calls, "every request is still served via fallback")
}

func TestService_Search_DefaultsApplied(t *testing.T) {
	idx := &fakeIndex{result: resultSet()}
	svc := NewService(&fakeResolver{}, idx, &fakeFallback{}, "eur", testLogger())

	req := newRequest()
	resp, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.AvailabilityAll, resp.AppliedFilters.Availability)
	assert.Equal(t, domain.SortCreatedAt, resp.AppliedFilters.SortBy)
	assert.Equal(t, "eur", resp.AppliedFilters.Currency)
}

func TestService_Search_OversizedLimitClamped(t *testing.T) {
	svc := NewService(&fakeResolver{}, &fakeIndex{result: resultSet()}, &fakeFallback{}, "eur", testLogger())

	req := newRequest()
	req.Limit = 500
	resp, err := svc.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.MaxLimit, resp.Pagination.Limit)
}

