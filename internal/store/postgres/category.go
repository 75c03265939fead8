package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/pkg/database"
	apperrors "github.com/utafrali/catalog-discovery/pkg/errors"
)

// categoryColumns is the standard SELECT column list for categories.
const categoryColumns = `id, name, handle, parent_id`

// CategoryStore implements category lookups against PostgreSQL.
type CategoryStore struct {
	pool database.DBTX
}

// NewCategoryStore creates a new PostgreSQL-backed category store.
func NewCategoryStore(pool database.DBTX) *CategoryStore {
	return &CategoryStore{pool: pool}
}

// ByID retrieves a category by its unique identifier.
func (s *CategoryStore) ByID(ctx context.Context, id string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE id = $1`, categoryColumns)
	return s.scanCategory(ctx, query, id, id)
}

// ByHandle retrieves a category by its URL-safe handle.
func (s *CategoryStore) ByHandle(ctx context.Context, handle string) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE handle = $1`, categoryColumns)
	return s.scanCategory(ctx, query, handle, handle)
}

// Children returns the direct children of the given category, ordered by name.
func (s *CategoryStore) Children(ctx context.Context, parentID string) ([]domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE parent_id = $1 ORDER BY name`, categoryColumns)

	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Handle, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}

// scanCategory executes a query expected to return a single category row.
// ref names the looked-up id or handle in the not-found error.
func (s *CategoryStore) scanCategory(ctx context.Context, query, ref string, args ...any) (*domain.Category, error) {
	var c domain.Category

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.Name,
		&c.Handle,
		&c.ParentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", ref)
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}

	return &c, nil
}
