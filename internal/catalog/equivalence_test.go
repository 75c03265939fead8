package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-discovery/internal/category"
	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/fallback"
	"github.com/utafrali/catalog-discovery/internal/filter"
	"github.com/utafrali/catalog-discovery/internal/searchindex"
	"github.com/utafrali/catalog-discovery/internal/store"
)

// dslIndex serves the index path by evaluating the clause builder's actual
// filter and sort expressions over index documents, the way the search
// cluster evaluates them. A clause shape or field name it does not know is
// an error, so a builder change without a matching evaluator fails loudly
// instead of passing vacuously.
type dslIndex struct {
	docs []searchindex.Document
}

func newDSLIndex(products []domain.Product) *dslIndex {
	docs := make([]searchindex.Document, 0, len(products))
	for _, p := range products {
		docs = append(docs, searchindex.NewDocument(p))
	}
	return &dslIndex{docs: docs}
}

func (d *dslIndex) Search(_ context.Context, req *domain.FilterRequest, clauses filter.Clauses) (*domain.ResultSet, error) {
	keys, err := parseSort(clauses.Sort)
	if err != nil {
		return nil, err
	}

	var matched []searchindex.Document
	for _, doc := range d.docs {
		ok := true
		for _, clause := range clauses.Filters {
			m, err := evalClause(doc, clause)
			if err != nil {
				return nil, err
			}
			if !m {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return docLess(matched[i], matched[j], keys)
	})

	total := len(matched)
	start := req.Offset()
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}

	products := make([]domain.Product, 0, end-start)
	for _, doc := range matched[start:end] {
		products = append(products, doc.Product)
	}

	return &domain.ResultSet{
		Products: products,
		Total:    total,
		Facets:   docFacets(matched),
	}, nil
}

func evalClause(doc searchindex.Document, clause map[string]any) (bool, error) {
	if len(clause) != 1 {
		return false, fmt.Errorf("clause must have exactly one key: %v", clause)
	}
	for kind, body := range clause {
		switch kind {
		case "term":
			return evalTerm(doc, body)
		case "terms":
			return evalTerms(doc, body)
		case "range":
			return evalRange(doc, body)
		case "bool":
			return evalBool(doc, body)
		default:
			return false, fmt.Errorf("unsupported clause kind %q", kind)
		}
	}
	return false, nil
}

func evalTerm(doc searchindex.Document, body any) (bool, error) {
	field, want, err := singleField(body)
	if err != nil {
		return false, fmt.Errorf("term: %w", err)
	}
	values, err := docFieldValues(doc, field)
	if err != nil {
		return false, err
	}
	for _, v := range values {
		if v == want {
			return true, nil
		}
	}
	return false, nil
}

func evalTerms(doc searchindex.Document, body any) (bool, error) {
	field, raw, err := singleField(body)
	if err != nil {
		return false, fmt.Errorf("terms: %w", err)
	}
	wanted, err := termsList(raw)
	if err != nil {
		return false, fmt.Errorf("terms %q: %w", field, err)
	}
	values, err := docFieldValues(doc, field)
	if err != nil {
		return false, err
	}
	for _, v := range values {
		for _, w := range wanted {
			if v == w {
				return true, nil
			}
		}
	}
	return false, nil
}

func evalRange(doc searchindex.Document, body any) (bool, error) {
	field, raw, err := singleField(body)
	if err != nil {
		return false, fmt.Errorf("range: %w", err)
	}
	bounds, ok := raw.(map[string]any)
	if !ok {
		return false, fmt.Errorf("range %q: bounds must be a map, got %T", field, raw)
	}

	values, err := docFieldValues(doc, field)
	if err != nil {
		return false, err
	}
	if len(values) == 0 {
		// documents without the field never match a range
		return false, nil
	}
	v, ok := values[0].(int64)
	if !ok {
		return false, fmt.Errorf("range %q: field is not numeric, got %T", field, values[0])
	}

	if raw, ok := bounds["gte"]; ok {
		bound, err := asInt64(raw)
		if err != nil {
			return false, fmt.Errorf("range %q gte: %w", field, err)
		}
		if v < bound {
			return false, nil
		}
	}
	if raw, ok := bounds["lte"]; ok {
		bound, err := asInt64(raw)
		if err != nil {
			return false, fmt.Errorf("range %q lte: %w", field, err)
		}
		if v > bound {
			return false, nil
		}
	}
	return true, nil
}

func evalBool(doc searchindex.Document, body any) (bool, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return false, fmt.Errorf("bool: body must be a map, got %T", body)
	}
	should, ok := m["should"].([]map[string]any)
	if !ok {
		return false, fmt.Errorf("bool: missing should list, got %T", m["should"])
	}
	minMatch := 1
	if raw, ok := m["minimum_should_match"]; ok {
		v, err := asInt64(raw)
		if err != nil {
			return false, fmt.Errorf("bool minimum_should_match: %w", err)
		}
		minMatch = int(v)
	}

	count := 0
	for _, clause := range should {
		matched, err := evalClause(doc, clause)
		if err != nil {
			return false, err
		}
		if matched {
			count++
		}
	}
	return count >= minMatch, nil
}

func singleField(body any) (string, any, error) {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, fmt.Errorf("body must be a single-field map, got %v", body)
	}
	for field, value := range m {
		return field, value, nil
	}
	return "", nil, nil
}

func termsList(raw any) ([]any, error) {
	switch list := raw.(type) {
	case []any:
		return list, nil
	case []string:
		out := make([]any, 0, len(list))
		for _, s := range list {
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("value must be a list, got %T", raw)
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	return 0, fmt.Errorf("value must be an integer, got %T", raw)
}

// docFieldValues resolves a filter field name to the document values it
// addresses. Multi-valued fields return every value; absent optional fields
// return an empty slice.
func docFieldValues(doc searchindex.Document, field string) ([]any, error) {
	switch field {
	case "status":
		return []any{doc.Status}, nil
	case "category_ids":
		return anyValues(doc.CategoryIDs), nil
	case "category_names":
		return anyValues(doc.CategoryNames), nil
	case "tags":
		return anyValues(doc.Tags), nil
	case "in_stock":
		return []any{doc.InStock}, nil
	case "collection_id":
		if doc.CollectionID == nil {
			return nil, nil
		}
		return []any{*doc.CollectionID}, nil
	}
	if currency, ok := strings.CutPrefix(field, "min_prices."); ok {
		if price, ok := doc.MinPrices[currency]; ok {
			return []any{price}, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown filter field %q", field)
}

func anyValues(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

type sortKey struct {
	field       string
	desc        bool
	missingLast bool
}

func parseSort(exprs []map[string]any) ([]sortKey, error) {
	keys := make([]sortKey, 0, len(exprs))
	for _, expr := range exprs {
		field, raw, err := singleField(expr)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		opts, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sort %q: options must be a map, got %T", field, raw)
		}

		if field != "title.keyword" && field != "created_at" && field != "id" &&
			!strings.HasPrefix(field, "min_prices.") {
			return nil, fmt.Errorf("unknown sort field %q", field)
		}

		key := sortKey{field: field}
		if order, ok := opts["order"].(string); ok {
			key.desc = order == "desc"
		}
		if missing, ok := opts["missing"]; ok {
			if missing != "_last" {
				return nil, fmt.Errorf("sort %q: unsupported missing policy %v", field, missing)
			}
			key.missingLast = true
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func sortValue(doc searchindex.Document, field string) (any, bool) {
	switch field {
	case "title.keyword":
		return doc.Title, true
	case "created_at":
		return doc.CreatedAt, true
	case "id":
		return doc.ID, true
	}
	if currency, ok := strings.CutPrefix(field, "min_prices."); ok {
		price, ok := doc.MinPrices[currency]
		return price, ok
	}
	return nil, false
}

func docLess(a, b searchindex.Document, keys []sortKey) bool {
	for _, key := range keys {
		av, aok := sortValue(a, key.field)
		bv, bok := sortValue(b, key.field)
		if aok != bok {
			// missing values sort last regardless of order
			return aok
		}
		if !aok {
			continue
		}
		c := compareValues(av, bv)
		if c == 0 {
			continue
		}
		if key.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	}
	return 0
}

// docFacets aggregates the matched documents along the fixed facet
// dimensions, mirroring the index's terms aggregations.
func docFacets(docs []searchindex.Document) domain.Facets {
	facets := domain.Facets{
		domain.FacetCategory:     {},
		domain.FacetTags:         {},
		domain.FacetAvailability: {},
		domain.FacetCollection:   {},
	}
	for _, doc := range docs {
		for _, name := range doc.CategoryNames {
			facets[domain.FacetCategory][name]++
		}
		for _, tag := range doc.Tags {
			facets[domain.FacetTags][tag]++
		}
		if doc.InStock {
			facets[domain.FacetAvailability][string(domain.AvailabilityInStock)]++
		} else {
			facets[domain.FacetAvailability][string(domain.AvailabilityOutOfStock)]++
		}
		if doc.CollectionTitle != "" {
			facets[domain.FacetCollection][doc.CollectionTitle]++
		}
	}
	return facets
}

// fixtureStore emulates the relational store's pushdown behavior: published
// status, category closure, and collection filters applied at fetch time.
type fixtureStore struct {
	products []domain.Product
}

func (f *fixtureStore) List(_ context.Context, params store.ListParams) ([]domain.Product, int, error) {
	var out []domain.Product
	for _, p := range f.products {
		if p.Status != domain.ProductStatusPublished {
			continue
		}
		if len(params.CategoryIDs) > 0 && !p.InCategory(params.CategoryIDs) {
			continue
		}
		if params.CollectionID != "" && (p.CollectionID == nil || *p.CollectionID != params.CollectionID) {
			continue
		}
		out = append(out, p)
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, len(out), nil
}

// equivalenceCatalog spreads 24 published products over three categories,
// two tags, and one collection. Every fifth product has no price in the
// default currency, every fourth is out of stock, and a final draft product
// must be invisible to both paths.
func equivalenceCatalog() []domain.Product {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	cats := [][2]string{{"cat-a", "Alpha"}, {"cat-b", "Beta"}, {"cat-c", "Gamma"}}
	tags := []string{"oem", "sale"}

	products := make([]domain.Product, 0, 25)
	for i := 0; i < 24; i++ {
		cat := cats[i%3]

		prices := map[string]int64{
			"eur": int64(1000 + (i*13)%700),
			"usd": int64(1100 + (i*17)%800),
		}
		if i%5 == 4 {
			prices = map[string]int64{"usd": int64(2000 + i)}
		}

		p := domain.Product{
			ID:            fmt.Sprintf("p%02d", i),
			Title:         fmt.Sprintf("Part %02d", (i*7)%24),
			Description:   "replacement part",
			Status:        domain.ProductStatusPublished,
			Tags:          []string{tags[i%2]},
			CategoryIDs:   []string{cat[0]},
			CategoryNames: []string{cat[1]},
			Variants: []domain.Variant{{
				ID:                fmt.Sprintf("p%02d-v", i),
				SKU:               fmt.Sprintf("SKU-%02d", i),
				Title:             "Standard",
				Prices:            prices,
				ManageInventory:   true,
				InventoryQuantity: i % 4,
			}},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if i%4 == 0 {
			collID := "coll-1"
			p.CollectionID = &collID
			p.CollectionTitle = "Sommer Check"
		}
		products = append(products, p)
	}

	products = append(products, domain.Product{
		ID:            "p24",
		Title:         "Unreleased Part",
		Status:        domain.ProductStatusDraft,
		Tags:          []string{"oem"},
		CategoryIDs:   []string{"cat-a"},
		CategoryNames: []string{"Alpha"},
		Variants: []domain.Variant{{
			ID: "p24-v", SKU: "SKU-24", Title: "Standard",
			Prices:          map[string]int64{"eur": 1234},
			ManageInventory: true, InventoryQuantity: 3,
		}},
		CreatedAt: base.Add(24 * time.Hour),
	})

	return products
}

// Both paths must yield the same total, product ordering, facets, and
// pagination for one request: the index side evaluates the generated
// clauses over index documents, the fallback side runs its relational
// predicates over the same catalog.
func TestSearch_PathEquivalence(t *testing.T) {
	products := equivalenceCatalog()
	fixture := &fixtureStore{products: products}

	runBoth := func(t *testing.T, makeReq func() *domain.FilterRequest) (indexResp, fallbackResp *domain.CatalogResponse) {
		t.Helper()
		resolver := &fakeResolver{resolved: category.Resolved{IDs: []string{"cat-a"}, Names: []string{"Alpha"}}}

		viaIndex := NewService(resolver, newDSLIndex(products), &fakeFallback{}, "eur", testLogger())
		viaFallback := NewService(resolver, &fakeIndex{err: errors.New("forced down")}, fallback.New(fixture, 0), "eur", testLogger())

		indexResp, err := viaIndex.Search(context.Background(), makeReq())
		require.NoError(t, err)
		fallbackResp, err = viaFallback.Search(context.Background(), makeReq())
		require.NoError(t, err)
		return indexResp, fallbackResp
	}

	assertSameResults := func(t *testing.T, indexResp, fallbackResp *domain.CatalogResponse) {
		t.Helper()
		assert.Equal(t, indexResp.TotalCount, fallbackResp.TotalCount)
		assert.Equal(t, productIDs(indexResp.Products), productIDs(fallbackResp.Products))
		assert.Equal(t, indexResp.Facets, fallbackResp.Facets)
		assert.Equal(t, indexResp.Pagination, fallbackResp.Pagination)
	}

	sortKeys := []domain.SortBy{
		domain.SortCreatedAt, domain.SortPriceAsc, domain.SortPriceDesc,
		domain.SortTitleAsc, domain.SortTitleDesc,
	}
	for _, sortBy := range sortKeys {
		t.Run("sort_"+string(sortBy), func(t *testing.T) {
			indexResp, fallbackResp := runBoth(t, func() *domain.FilterRequest {
				return &domain.FilterRequest{
					CategoryID:   "cat-a",
					Availability: domain.AvailabilityInStock,
					SortBy:       sortBy,
					Page:         1,
					Limit:        10,
				}
			})
			require.NotZero(t, indexResp.TotalCount, "scenario must match products")
			assertSameResults(t, indexResp, fallbackResp)
		})
	}

	priceMin, priceMax := int64(1100), int64(1500)
	scenarios := []struct {
		name string
		req  func() *domain.FilterRequest
	}{
		{"out_of_stock", func() *domain.FilterRequest {
			return &domain.FilterRequest{Availability: domain.AvailabilityOutOfStock, SortBy: domain.SortCreatedAt, Page: 1, Limit: 10}
		}},
		{"price_range_excludes_unpriced", func() *domain.FilterRequest {
			return &domain.FilterRequest{PriceMin: &priceMin, PriceMax: &priceMax, SortBy: domain.SortPriceAsc, Page: 1, Limit: 10}
		}},
		{"tag_filter", func() *domain.FilterRequest {
			return &domain.FilterRequest{Tags: []string{"oem"}, SortBy: domain.SortTitleAsc, Page: 1, Limit: 10}
		}},
		{"collection_filter", func() *domain.FilterRequest {
			return &domain.FilterRequest{CollectionID: "coll-1", SortBy: domain.SortCreatedAt, Page: 1, Limit: 10}
		}},
		{"second_page", func() *domain.FilterRequest {
			return &domain.FilterRequest{SortBy: domain.SortTitleAsc, Page: 2, Limit: 5}
		}},
	}
	for _, tc := range scenarios {
		t.Run(tc.name, func(t *testing.T) {
			indexResp, fallbackResp := runBoth(t, tc.req)
			require.NotZero(t, indexResp.TotalCount, "scenario must match products")
			assertSameResults(t, indexResp, fallbackResp)
		})
	}
}

// Draft products are excluded by the published-status clause on the index
// side and by the relational fetch on the fallback side.
func TestSearch_PathEquivalence_DraftInvisible(t *testing.T) {
	products := equivalenceCatalog()
	resolver := &fakeResolver{}

	viaIndex := NewService(resolver, newDSLIndex(products), &fakeFallback{}, "eur", testLogger())
	viaFallback := NewService(resolver, &fakeIndex{err: errors.New("forced down")},
		fallback.New(&fixtureStore{products: products}, 0), "eur", testLogger())

	for _, svc := range []*Service{viaIndex, viaFallback} {
		resp, err := svc.Search(context.Background(), &domain.FilterRequest{Page: 1, Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, 24, resp.TotalCount)
		assert.NotContains(t, productIDs(resp.Products), "p24")
	}
}

func productIDs(products []domain.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}
