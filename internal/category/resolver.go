package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/utafrali/catalog-discovery/internal/domain"
	"github.com/utafrali/catalog-discovery/internal/store"
	apperrors "github.com/utafrali/catalog-discovery/pkg/errors"
	"github.com/utafrali/catalog-discovery/pkg/logger"
)

// maxDepth bounds the tree walk. A forest deeper than this is malformed;
// the walk stops there and logs instead of failing the whole search.
const maxDepth = 16

// Resolved is the closure of one category filter: the requested category id
// plus every descendant id, with the matching names in the same order.
// Empty IDs means "no category filter applies".
type Resolved struct {
	IDs   []string `json:"ids"`
	Names []string `json:"names"`
}

// Resolver expands a category id or handle into the id set used for
// filtering. Results are cached across requests; categories change rarely
// relative to search traffic.
type Resolver struct {
	store store.CategoryStore
	cache Cache
}

// NewResolver creates a category tree resolver backed by the given store
// and cache.
func NewResolver(s store.CategoryStore, c Cache) *Resolver {
	return &Resolver{store: s, cache: c}
}

// Resolve expands the given category reference into its full descendant
// closure. The id wins when both are set. An unknown id or handle yields an
// empty Resolved and no error. Store read failures are wrapped as
// ErrCategoryLookup; callers degrade to "no category filter" on that error.
func (r *Resolver) Resolve(ctx context.Context, id, handle string) (Resolved, error) {
	if id == "" && handle == "" {
		return Resolved{}, nil
	}

	key := "id:" + id
	if id == "" {
		key = "handle:" + handle
	}

	if cached, ok := r.cache.Get(ctx, key); ok {
		return cached, nil
	}

	root, err := r.lookupRoot(ctx, id, handle)
	if err != nil {
		return Resolved{}, apperrors.CategoryLookup(err)
	}
	if root == nil {
		logger.FromContext(ctx).Debug("category not found, skipping category filter",
			"category_id", id, "category_handle", handle)
		return Resolved{}, nil
	}

	visited := map[string]bool{}
	var resolved Resolved
	if err := r.walk(ctx, *root, 0, visited, &resolved); err != nil {
		return Resolved{}, apperrors.CategoryLookup(err)
	}

	r.cache.Set(ctx, key, resolved)
	return resolved, nil
}

// lookupRoot resolves the requested reference to a single category, or nil
// when no such category exists.
func (r *Resolver) lookupRoot(ctx context.Context, id, handle string) (*domain.Category, error) {
	var (
		cat *domain.Category
		err error
	)
	if id != "" {
		cat, err = r.store.ByID(ctx, id)
	} else {
		cat, err = r.store.ByHandle(ctx, handle)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup category: %w", err)
	}
	return cat, nil
}

// walk accumulates the subtree rooted at cat into resolved, depth-first.
// The visited set guards against re-traversal should the forest carry a
// cycle; ids are accumulated once regardless of how they are reached.
func (r *Resolver) walk(ctx context.Context, cat domain.Category, depth int, visited map[string]bool, resolved *Resolved) error {
	if visited[cat.ID] {
		return nil
	}
	visited[cat.ID] = true

	resolved.IDs = append(resolved.IDs, cat.ID)
	resolved.Names = append(resolved.Names, cat.Name)

	if depth >= maxDepth {
		logger.FromContext(ctx).Warn("category tree deeper than supported, truncating walk",
			"category_id", cat.ID, "depth", depth)
		return nil
	}

	children, err := r.store.Children(ctx, cat.ID)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", cat.ID, err)
	}

	for _, child := range children {
		if err := r.walk(ctx, child, depth+1, visited, resolved); err != nil {
			return err
		}
	}
	return nil
}
