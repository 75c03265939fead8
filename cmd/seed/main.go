// Command seed populates the catalog database with a deterministic set of
// automotive spare-part products, complete with a category forest, variants,
// and per-currency prices, and bulk-indexes the same products into the
// search index so both query paths serve identical data.
//
// Run: go run ./cmd/seed
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/searchindex"
)

const defaultProductCount = 2000

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// seedUUID produces a stable UUID-shaped string from a namespace and index
// so re-runs always generate the same ids.
func seedUUID(namespace string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", namespace, index)))
	hex := fmt.Sprintf("%x", h[:16])
	return fmt.Sprintf("%s-%s-4%s-%x%s-%s",
		hex[0:8], hex[8:12], hex[13:16], 0x8|(h[8]&0x3), hex[17:20], hex[20:32])
}

type categoryDef struct {
	ID     string
	Name   string
	Handle string
	Parent string
}

// categoryForest is a three-level forest matching a spare-parts storefront.
func categoryForest() []categoryDef {
	defs := []categoryDef{
		{Name: "Motor", Handle: "motor"},
		{Name: "Kühlung", Handle: "motor-kuehlung", Parent: "motor"},
		{Name: "Zündung", Handle: "motor-zuendung", Parent: "motor"},
		{Name: "Zündkerzen", Handle: "zuendkerzen", Parent: "motor-zuendung"},
		{Name: "Bremsen", Handle: "bremsen"},
		{Name: "Bremsscheiben", Handle: "bremsscheiben", Parent: "bremsen"},
		{Name: "Bremsbeläge", Handle: "bremsbelaege", Parent: "bremsen"},
		{Name: "Karosserie", Handle: "karosserie"},
		{Name: "Beleuchtung", Handle: "beleuchtung", Parent: "karosserie"},
	}
	for i := range defs {
		defs[i].ID = seedUUID("category", i)
	}
	return defs
}

type collectionDef struct {
	ID    string
	Title string
}

func collections() []collectionDef {
	titles := []string{"Werkstatt Essentials", "Sommer Check", "Erstausrüster"}
	out := make([]collectionDef, 0, len(titles))
	for i, title := range titles {
		out = append(out, collectionDef{ID: seedUUID("collection", i), Title: title})
	}
	return out
}

var (
	partNouns = []string{
		"Bremsscheibe", "Bremsbelag", "Zündkerze", "Kühler", "Thermostat",
		"Wasserpumpe", "Scheinwerfer", "Rückleuchte", "Luftfilter", "Ölfilter",
		"Zahnriemen", "Stoßdämpfer", "Querlenker", "Radlager", "Keilriemen",
	}
	partQualifiers = []string{
		"belüftet", "verstärkt", "beschichtet", "Sport", "Standard",
		"Vorderachse", "Hinterachse", "links", "rechts", "Komplett-Set",
	}
	tagPool = []string{"oem", "sale", "neu", "premium", "nachbau"}
)

// skuPrefix takes the first two letters of a part name, safe for umlauts.
func skuPrefix(noun string) string {
	runes := []rune(strings.ToUpper(noun))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes)
}

type seedProduct struct {
	product    domain.Product
	categoryID string
}

// buildProducts derives n deterministic products spread across the leaf
// categories and collections.
func buildProducts(n int, cats []categoryDef, colls []collectionDef) []seedProduct {
	rng := rand.New(rand.NewSource(42))

	byHandle := map[string]categoryDef{}
	for _, c := range cats {
		byHandle[c.Handle] = c
	}
	leaves := []string{"motor-kuehlung", "zuendkerzen", "bremsscheiben", "bremsbelaege", "beleuchtung"}

	products := make([]seedProduct, 0, n)
	for i := 0; i < n; i++ {
		noun := partNouns[i%len(partNouns)]
		qualifier := partQualifiers[(i/len(partNouns))%len(partQualifiers)]
		title := fmt.Sprintf("%s %s %02d", noun, qualifier, i%90)
		cat := byHandle[leaves[i%len(leaves)]]

		var collectionID *string
		collectionTitle := ""
		if i%3 == 0 {
			coll := colls[i%len(colls)]
			collectionID = &coll.ID
			collectionTitle = coll.Title
		}

		tags := []string{tagPool[i%len(tagPool)]}
		if i%7 == 0 {
			tags = append(tags, tagPool[(i+2)%len(tagPool)])
		}

		variantCount := 1 + i%3
		variants := make([]domain.Variant, 0, variantCount)
		for v := 0; v < variantCount; v++ {
			price := int64(900 + rng.Intn(20000))
			variants = append(variants, domain.Variant{
				ID:                seedUUID("variant", i*10+v),
				SKU:               fmt.Sprintf("%s-%04d-%d", skuPrefix(noun), i, v),
				Title:             fmt.Sprintf("Variante %d", v+1),
				Prices:            map[string]int64{"eur": price, "usd": price + price/10},
				ManageInventory:   i%5 != 0,
				InventoryQuantity: rng.Intn(12),
			})
		}

		products = append(products, seedProduct{
			categoryID: cat.ID,
			product: domain.Product{
				ID:              seedUUID("product", i),
				Title:           title,
				Handle:          fmt.Sprintf("%s-%d", strings.ToLower(noun), i),
				Description:     fmt.Sprintf("Ersatzteil %s in Erstausrüsterqualität.", title),
				Thumbnail:       fmt.Sprintf("https://cdn.example.com/parts/%d.jpg", i),
				Status:          domain.ProductStatusPublished,
				Tags:            tags,
				CategoryIDs:     []string{cat.ID},
				CategoryNames:   []string{cat.Name},
				CollectionID:    collectionID,
				CollectionTitle: collectionTitle,
				Variants:        variants,
				CreatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			},
		})
	}
	return products
}

func seedPostgres(ctx context.Context, pool *pgxpool.Pool, cats []categoryDef, colls []collectionDef, products []seedProduct) error {
	byHandle := map[string]string{}
	for _, c := range cats {
		byHandle[c.Handle] = c.ID
	}

	batch := &pgx.Batch{}
	for _, c := range cats {
		var parentID *string
		if c.Parent != "" {
			id := byHandle[c.Parent]
			parentID = &id
		}
		batch.Queue(`INSERT INTO categories (id, name, handle, parent_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = $2, handle = $3, parent_id = $4`,
			c.ID, c.Name, c.Handle, parentID)
	}
	for _, coll := range colls {
		batch.Queue(`INSERT INTO collections (id, title) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET title = $2`, coll.ID, coll.Title)
	}

	for _, sp := range products {
		p := sp.product
		batch.Queue(`INSERT INTO products (id, title, handle, description, thumbnail, status, tags, collection_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET title = $2, tags = $7`,
			p.ID, p.Title, p.Handle, p.Description, p.Thumbnail, p.Status, p.Tags, p.CollectionID, p.CreatedAt)
		batch.Queue(`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, p.ID, sp.categoryID)

		for _, v := range p.Variants {
			batch.Queue(`INSERT INTO variants (id, product_id, sku, title, manage_inventory, inventory_quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET inventory_quantity = $6`,
				v.ID, p.ID, v.SKU, v.Title, v.ManageInventory, v.InventoryQuantity)
			for currency, amount := range v.Prices {
				batch.Queue(`INSERT INTO variant_prices (variant_id, currency_code, amount)
					VALUES ($1, $2, $3)
					ON CONFLICT (variant_id, currency_code) DO UPDATE SET amount = $3`,
					v.ID, currency, amount)
			}
		}
	}

	results := pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}

func seedIndex(ctx context.Context, esURL, indexName string, products []seedProduct) error {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
	if err != nil {
		return fmt.Errorf("create elasticsearch client: %w", err)
	}

	var buf bytes.Buffer
	for _, sp := range products {
		doc := searchindex.NewDocument(sp.product)
		action := map[string]any{"index": map[string]any{"_index": indexName, "_id": sp.product.ID}}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := client.Bulk(bytes.NewReader(buf.Bytes()),
		client.Bulk.WithIndex(indexName),
		client.Bulk.WithRefresh("true"),
		client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("bulk index: unexpected status %s", res.Status())
	}
	return nil
}

func main() {
	ctx := context.Background()

	count := defaultProductCount
	if v := os.Getenv("SEED_PRODUCTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("SEED_PRODUCTS must be a positive number, got %q", v)
		}
		count = n
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "catalog"),
		getEnv("POSTGRES_PASSWORD", "catalog_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "catalog"),
		getEnv("POSTGRES_SSLMODE", "disable"),
	)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	cats := categoryForest()
	colls := collections()
	products := buildProducts(count, cats, colls)

	start := time.Now()
	if err := seedPostgres(ctx, pool, cats, colls, products); err != nil {
		log.Fatalf("seed postgres: %v", err)
	}
	log.Printf("seeded %d products, %d categories, %d collections into postgres in %s",
		len(products), len(cats), len(colls), time.Since(start).Round(time.Millisecond))

	esURL := getEnv("ELASTICSEARCH_URL", "http://localhost:9200")
	indexName := getEnv("ELASTICSEARCH_INDEX", searchindex.DefaultIndexName)
	if err := seedIndex(ctx, esURL, indexName, products); err != nil {
		log.Printf("search index seeding skipped: %v", err)
		log.Printf("the catalog will serve these products via the relational fallback")
		return
	}
	log.Printf("indexed %d documents into %s", len(products), indexName)
}
