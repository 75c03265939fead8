package searchindex

// DefaultIndexName is the default Elasticsearch index for catalog documents.
const DefaultIndexName = "catalog_products"

// indexMapping is the full JSON mapping for the catalog index. Filterable
// fields are keywords, searchable text gets an autocomplete subfield, and
// min_prices holds one long per currency code for price filtering and
// sorting. Variants are carried in _source only; they come back with each
// hit but are never queried directly.
func indexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":               { "type": "keyword" },
      "title":            { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 }, "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "handle":           { "type": "keyword" },
      "description":      { "type": "text" },
      "thumbnail":        { "type": "keyword", "index": false },
      "status":           { "type": "keyword" },
      "tags":             { "type": "keyword" },
      "category_ids":     { "type": "keyword" },
      "category_names":   { "type": "keyword" },
      "collection_id":    { "type": "keyword" },
      "collection_title": { "type": "keyword" },
      "skus":             { "type": "keyword" },
      "variant_titles":   { "type": "text" },
      "in_stock":         { "type": "boolean" },
      "min_prices":       { "type": "object", "dynamic": true },
      "variants":         { "type": "object", "enabled": false },
      "created_at":       { "type": "date" }
    }
  }
}`
}
