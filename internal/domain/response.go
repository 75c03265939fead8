package domain

// Facet dimension names. Both search paths aggregate exactly this fixed set
// so the facet dictionary shape never depends on which path served the
// request.
const (
	FacetCategory     = "category"
	FacetTags         = "tags"
	FacetAvailability = "availability"
	FacetCollection   = "collection"
)

// Facets maps facet name to value-count distribution over the result set.
type Facets map[string]map[string]int

// ResultSet is the pre-normalization shape both backends produce: the page
// of products, the total match count before pagination, and the facet
// distribution.
type ResultSet struct {
	Products []Product
	Total    int
	Facets   Facets
}

// Pagination describes the position of a page within the full result.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination computes pagination metadata for a 1-based page.
func NewPagination(page, limit, total int) Pagination {
	totalPages := total / limit
	if total%limit > 0 {
		totalPages++
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page*limit < total,
		HasPrev:    page > 1,
	}
}

// AppliedFilters echoes the resolved request back to the caller, including
// the category ids the handle or id expanded to.
type AppliedFilters struct {
	Query        string       `json:"query,omitempty"`
	CategoryIDs  []string     `json:"category_ids,omitempty"`
	Availability Availability `json:"availability"`
	PriceMin     *int64       `json:"price_min,omitempty"`
	PriceMax     *int64       `json:"price_max,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	CollectionID string       `json:"collection_id,omitempty"`
	SortBy       SortBy       `json:"sort_by"`
	Currency     string       `json:"currency"`
}

// CatalogResponse is the normalized output contract. Callers cannot tell
// which path produced it; a degraded backend yields an empty but well-formed
// response, never an error.
type CatalogResponse struct {
	Products       []Product      `json:"products"`
	TotalCount     int            `json:"total_count"`
	Facets         Facets         `json:"facets"`
	AppliedFilters AppliedFilters `json:"applied_filters"`
	Pagination     Pagination     `json:"pagination"`
}

// NewCatalogResponse assembles the response from a backend result set.
func NewCatalogResponse(rs *ResultSet, req *FilterRequest, categoryIDs []string) *CatalogResponse {
	products := rs.Products
	if products == nil {
		products = []Product{}
	}
	facets := rs.Facets
	if facets == nil {
		facets = emptyFacets()
	}
	return &CatalogResponse{
		Products:       products,
		TotalCount:     rs.Total,
		Facets:         facets,
		AppliedFilters: appliedFilters(req, categoryIDs),
		Pagination:     NewPagination(req.Page, req.Limit, rs.Total),
	}
}

// EmptyCatalogResponse is the terminal result when both search paths fail:
// zero products, zero counts, echoed filters, still fully renderable.
func EmptyCatalogResponse(req *FilterRequest, categoryIDs []string) *CatalogResponse {
	return &CatalogResponse{
		Products:       []Product{},
		TotalCount:     0,
		Facets:         emptyFacets(),
		AppliedFilters: appliedFilters(req, categoryIDs),
		Pagination:     NewPagination(req.Page, req.Limit, 0),
	}
}

func appliedFilters(req *FilterRequest, categoryIDs []string) AppliedFilters {
	return AppliedFilters{
		Query:        req.Query,
		CategoryIDs:  categoryIDs,
		Availability: req.Availability,
		PriceMin:     req.PriceMin,
		PriceMax:     req.PriceMax,
		Tags:         req.Tags,
		CollectionID: req.CollectionID,
		SortBy:       req.SortBy,
		Currency:     req.Currency,
	}
}

func emptyFacets() Facets {
	return Facets{
		FacetCategory:     {},
		FacetTags:         {},
		FacetAvailability: {},
		FacetCollection:   {},
	}
}
