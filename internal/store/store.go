package store

import (
	"context"

	"github.com/utafrali/catalog-discovery/internal/domain"
)

// ListParams is the relationally expressible subset of a catalog filter:
// what the product store can apply natively. Availability, price bounds, and
// price sorts cannot be pushed down (they derive from nested variant data)
// and are applied in memory by the fallback engine.
type ListParams struct {
	CategoryIDs  []string
	CollectionID string
	Query        string
	Limit        int
	Offset       int
}

// ProductStore is the relational product API consumed by the fallback path.
// List returns matching products and the total match count before the
// limit/offset window.
type ProductStore interface {
	List(ctx context.Context, params ListParams) ([]domain.Product, int, error)
}

// CategoryStore is the category lookup boundary used by the tree resolver.
type CategoryStore interface {
	ByID(ctx context.Context, id string) (*domain.Category, error)
	ByHandle(ctx context.Context, handle string) (*domain.Category, error)
	Children(ctx context.Context, parentID string) ([]domain.Category, error)
}
