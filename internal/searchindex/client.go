// Package searchindex adapts the Elasticsearch full-text index to the
// catalog query contract. It is the primary search path; one request maps
// to exactly one round trip, with no retries. Any failure is reported as
// ErrIndexUnavailable and the caller falls back to the relational path.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/filter"
	apperrors "github.com/utafrali/catalog-discovery/pkg/errors"
	"github.com/utafrali/catalog-discovery/pkg/logger"
)

// Config holds the search index connection settings.
type Config struct {
	Addresses []string
	IndexName string
	// Timeout bounds each search round trip. Tuned short: the user-visible
	// latency ceiling is this timeout plus the fallback latency.
	Timeout time.Duration
}

// Document is the index projection of a product: the shared product shape
// plus the denormalized fields the filter clauses target.
type Document struct {
	domain.Product
	SKUs          []string         `json:"skus"`
	VariantTitles []string         `json:"variant_titles"`
	InStock       bool             `json:"in_stock"`
	MinPrices     map[string]int64 `json:"min_prices"`
}

// NewDocument builds the index projection of a product, denormalizing
// availability and per-currency minimum prices.
func NewDocument(p domain.Product) Document {
	doc := Document{
		Product:   p,
		SKUs:      make([]string, 0, len(p.Variants)),
		InStock:   p.InStock(),
		MinPrices: map[string]int64{},
	}
	for _, v := range p.Variants {
		doc.SKUs = append(doc.SKUs, v.SKU)
		doc.VariantTitles = append(doc.VariantTitles, v.Title)
		for currency, amount := range v.Prices {
			if min, ok := doc.MinPrices[currency]; !ok || amount < min {
				doc.MinPrices[currency] = amount
			}
		}
	}
	return doc
}

// Client is the Elasticsearch-backed catalog search adapter.
type Client struct {
	client    *elasticsearch.Client
	indexName string
	timeout   time.Duration
}

// searchResponse decodes the subset of the search body the adapter reads.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]aggResult `json:"aggregations"`
}

type aggResult struct {
	Buckets []struct {
		Key         any    `json:"key"`
		KeyAsString string `json:"key_as_string"`
		DocCount    int    `json:"doc_count"`
	} `json:"buckets"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a search index client. It does not touch the cluster; a
// cluster that is down at startup must not prevent the catalog from
// serving via the fallback path.
func New(cfg Config) (*Client, error) {
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{
		client:    client,
		indexName: cfg.IndexName,
		timeout:   cfg.Timeout,
	}, nil
}

// Ping checks whether the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the catalog index with its mapping if it does not
// exist. Called best-effort at startup; failure is logged, not fatal.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.client.Indices.Exists([]string{c.indexName},
		c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.client.Indices.Create(
		c.indexName,
		c.client.Indices.Create.WithBody(strings.NewReader(indexMapping())),
		c.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("create index: %s", decodeError(res.Body, res.Status()))
	}

	logger.FromContext(ctx).Info("search index created", "index", c.indexName)
	return nil
}

// Search runs the catalog query against the index in a single round trip
// and returns the page of products, the pre-pagination total, and the facet
// distribution. Every failure mode, transport error, timeout, non-2xx,
// malformed body, comes back wrapped as ErrIndexUnavailable.
func (c *Client) Search(ctx context.Context, req *domain.FilterRequest, clauses filter.Clauses) (*domain.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.buildQuery(req, clauses))
	if err != nil {
		return nil, apperrors.IndexUnavailable(fmt.Errorf("marshal query: %w", err))
	}

	res, err := c.client.Search(
		c.client.Search.WithIndex(c.indexName),
		c.client.Search.WithBody(bytes.NewReader(body)),
		c.client.Search.WithContext(ctx),
		c.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, apperrors.IndexUnavailable(fmt.Errorf("search: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, apperrors.IndexUnavailable(fmt.Errorf("search: %s", decodeError(res.Body, res.Status())))
	}

	var esResp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, apperrors.IndexUnavailable(fmt.Errorf("decode response: %w", err))
	}

	products := make([]domain.Product, 0, len(esResp.Hits.Hits))
	for _, hit := range esResp.Hits.Hits {
		p := hit.Source.Product
		if p.Tags == nil {
			p.Tags = []string{}
		}
		products = append(products, p)
	}

	return &domain.ResultSet{
		Products: products,
		Total:    esResp.Hits.Total.Value,
		Facets:   decodeFacets(esResp.Aggregations),
	}, nil
}

// buildQuery assembles the query DSL: multi_match (or match_all) in the
// must context, the builder's clauses in the filter context, the fixed
// facet aggregations, and the sort plus pagination window.
func (c *Client) buildQuery(req *domain.FilterRequest, clauses filter.Clauses) map[string]any {
	var must any
	if req.Query != "" {
		must = map[string]any{
			"multi_match": map[string]any{
				"query":         req.Query,
				"fields":        []string{"title^3", "title.autocomplete^2", "description", "tags", "category_names", "variant_titles", "skus"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	} else {
		must = map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{"must": []any{must}}
	if len(clauses.Filters) > 0 {
		boolQuery["filter"] = clauses.Filters
	}

	return map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"sort":             clauses.Sort,
		"from":             req.Offset(),
		"size":             req.Limit,
		"track_total_hits": true,
		"aggs": map[string]any{
			domain.FacetCategory:     map[string]any{"terms": map[string]any{"field": "category_names", "size": 50}},
			domain.FacetTags:         map[string]any{"terms": map[string]any{"field": "tags", "size": 50}},
			domain.FacetAvailability: map[string]any{"terms": map[string]any{"field": "in_stock"}},
			domain.FacetCollection:   map[string]any{"terms": map[string]any{"field": "collection_title", "size": 50}},
		},
	}
}

// decodeFacets converts terms aggregations into the facet dictionary. The
// availability facet's boolean keys become the in_stock/out_of_stock labels
// the fallback path also produces.
func decodeFacets(aggs map[string]aggResult) domain.Facets {
	facets := domain.Facets{
		domain.FacetCategory:     {},
		domain.FacetTags:         {},
		domain.FacetAvailability: {},
		domain.FacetCollection:   {},
	}

	for name, agg := range aggs {
		dist, ok := facets[name]
		if !ok {
			continue
		}
		for _, bucket := range agg.Buckets {
			key := bucketKey(name, bucket.Key, bucket.KeyAsString)
			if key == "" {
				continue
			}
			dist[key] = bucket.DocCount
		}
	}

	return facets
}

func bucketKey(facet string, key any, keyAsString string) string {
	if facet == domain.FacetAvailability {
		truthy := keyAsString == "true"
		if n, ok := key.(float64); ok {
			truthy = n != 0
		}
		if b, ok := key.(bool); ok {
			truthy = b
		}
		if truthy {
			return string(domain.AvailabilityInStock)
		}
		return string(domain.AvailabilityOutOfStock)
	}
	if s, ok := key.(string); ok {
		return s
	}
	return keyAsString
}

func decodeError(body io.Reader, status string) string {
	var errResp errorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Sprintf("%s: %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Sprintf("unexpected status %s", status)
}
