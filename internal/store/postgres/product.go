package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/store"
	"github.com/utafrali/catalog-discovery/pkg/database"
)

// ProductStore implements the relational product API against PostgreSQL.
// It serves the fallback path's bounded-superset fetch: only the filters the
// schema can express natively are pushed down here.
type ProductStore struct {
	pool database.DBTX
}

// NewProductStore creates a new PostgreSQL-backed product store.
func NewProductStore(pool database.DBTX) *ProductStore {
	return &ProductStore{pool: pool}
}

// List returns published products matching the given params plus the total
// match count before the limit/offset window. Variants, prices, and category
// names are batch-loaded in follow-up queries keyed by the page's product ids.
func (s *ProductStore) List(ctx context.Context, params store.ListParams) ([]domain.Product, int, error) {
	var (
		conditions = []string{"p.status = 'published'"}
		args       []any
		argIndex   = 1
	)

	if len(params.CategoryIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = ANY($%d))", argIndex))
		args = append(args, params.CategoryIDs)
		argIndex++
	}

	if params.CollectionID != "" {
		conditions = append(conditions, fmt.Sprintf("p.collection_id = $%d", argIndex))
		args = append(args, params.CollectionID)
		argIndex++
	}

	if params.Query != "" {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+params.Query+"%")
		argIndex++
	}

	limit := params.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}

	// count(*) OVER() gives the pre-window total in a single query.
	query := fmt.Sprintf(`
		SELECT p.id, p.title, p.handle, p.description, p.thumbnail, p.status,
			   p.tags, p.collection_id, COALESCE(col.title, ''), p.created_at,
			   count(*) OVER() AS total_count
		FROM products p
		LEFT JOIN collections col ON col.id = p.collection_id
		WHERE %s
		ORDER BY p.created_at DESC, p.id
		LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), argIndex, argIndex+1,
	)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products []domain.Product
		total    int
		ids      []string
	)

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID,
			&p.Title,
			&p.Handle,
			&p.Description,
			&p.Thumbnail,
			&p.Status,
			&p.Tags,
			&p.CollectionID,
			&p.CollectionTitle,
			&p.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if len(products) == 0 {
		return []domain.Product{}, total, nil
	}

	if err := s.attachCategories(ctx, products, ids); err != nil {
		return nil, 0, err
	}
	if err := s.attachVariants(ctx, products, ids); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// attachCategories batch-loads category ids and names for the given products.
func (s *ProductStore) attachCategories(ctx context.Context, products []domain.Product, ids []string) error {
	rows, err := s.pool.Query(ctx, `
		SELECT pc.product_id, c.id, c.name
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1)
		ORDER BY c.name`, ids)
	if err != nil {
		return fmt.Errorf("load product categories: %w", err)
	}
	defer rows.Close()

	byProduct := indexByID(products)

	for rows.Next() {
		var productID, categoryID, categoryName string
		if err := rows.Scan(&productID, &categoryID, &categoryName); err != nil {
			return fmt.Errorf("scan product category row: %w", err)
		}
		if p, ok := byProduct[productID]; ok {
			p.CategoryIDs = append(p.CategoryIDs, categoryID)
			p.CategoryNames = append(p.CategoryNames, categoryName)
		}
	}

	return rows.Err()
}

// attachVariants batch-loads variants and their per-currency prices.
func (s *ProductStore) attachVariants(ctx context.Context, products []domain.Product, ids []string) error {
	rows, err := s.pool.Query(ctx, `
		SELECT v.product_id, v.id, v.sku, v.title, v.manage_inventory, v.inventory_quantity
		FROM variants v
		WHERE v.product_id = ANY($1)
		ORDER BY v.product_id, v.id`, ids)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	byProduct := indexByID(products)
	variantOwner := make(map[string]*domain.Product)
	var variantIDs []string

	for rows.Next() {
		var (
			productID string
			v         domain.Variant
		)
		if err := rows.Scan(&productID, &v.ID, &v.SKU, &v.Title, &v.ManageInventory, &v.InventoryQuantity); err != nil {
			return fmt.Errorf("scan variant row: %w", err)
		}
		v.Prices = map[string]int64{}
		if p, ok := byProduct[productID]; ok {
			p.Variants = append(p.Variants, v)
			variantOwner[v.ID] = p
			variantIDs = append(variantIDs, v.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate variant rows: %w", err)
	}

	if len(variantIDs) == 0 {
		return nil
	}

	priceRows, err := s.pool.Query(ctx, `
		SELECT variant_id, currency_code, amount
		FROM variant_prices
		WHERE variant_id = ANY($1)`, variantIDs)
	if err != nil {
		return fmt.Errorf("load variant prices: %w", err)
	}
	defer priceRows.Close()

	for priceRows.Next() {
		var (
			variantID, currency string
			amount              int64
		)
		if err := priceRows.Scan(&variantID, &currency, &amount); err != nil {
			return fmt.Errorf("scan variant price row: %w", err)
		}
		p, ok := variantOwner[variantID]
		if !ok {
			continue
		}
		for i := range p.Variants {
			if p.Variants[i].ID == variantID {
				p.Variants[i].Prices[currency] = amount
				break
			}
		}
	}

	return priceRows.Err()
}

func indexByID(products []domain.Product) map[string]*domain.Product {
	m := make(map[string]*domain.Product, len(products))
	for i := range products {
		m[products[i].ID] = &products[i]
	}
	return m
}
