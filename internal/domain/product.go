package domain

import (
	"time"
)

// Product status constants.
const (
	ProductStatusDraft     = "draft"
	ProductStatusPublished = "published"
)

// Category represents a node in the product category forest. ParentID is nil
// for root categories. The catalog engine reads categories but never writes
// them; they are owned by an external catalog-management component.
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Handle   string  `json:"handle"`
	ParentID *string `json:"parent_id,omitempty"`
}

// Variant represents a purchasable variant of a product. Prices are minor
// units (cents) keyed by ISO currency code. A variant that does not manage
// inventory is always considered purchasable.
type Variant struct {
	ID                string           `json:"id"`
	SKU               string           `json:"sku"`
	Title             string           `json:"title"`
	Prices            map[string]int64 `json:"prices"`
	ManageInventory   bool             `json:"manage_inventory"`
	InventoryQuantity int              `json:"inventory_quantity"`
}

// InStock reports whether the variant can currently be sold.
func (v Variant) InStock() bool {
	return !v.ManageInventory || v.InventoryQuantity > 0
}

// Product is the canonical product projection shared by both search paths.
// Both the search index adapter and the relational fallback populate this
// shape; adapter-specific fields (processing time, scores) stay outside it.
type Product struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Handle          string    `json:"handle"`
	Description     string    `json:"description"`
	Thumbnail       string    `json:"thumbnail,omitempty"`
	Status          string    `json:"status"`
	Tags            []string  `json:"tags"`
	CategoryIDs     []string  `json:"category_ids"`
	CategoryNames   []string  `json:"category_names"`
	CollectionID    *string   `json:"collection_id,omitempty"`
	CollectionTitle string    `json:"collection_title,omitempty"`
	Variants        []Variant `json:"variants"`
	CreatedAt       time.Time `json:"created_at"`
}

// InStock reports whether the product is available: true iff at least one
// variant either does not manage inventory or has quantity > 0.
func (p *Product) InStock() bool {
	for _, v := range p.Variants {
		if v.InStock() {
			return true
		}
	}
	return false
}

// MinPrice returns the minimum variant price in the given currency and true,
// or (0, false) when no variant carries a price in that currency. Price
// filtering and price sorting both use this value, never the first variant's
// price, so the two search paths order identically.
func (p *Product) MinPrice(currency string) (int64, bool) {
	var min int64
	found := false
	for _, v := range p.Variants {
		amount, ok := v.Prices[currency]
		if !ok {
			continue
		}
		if !found || amount < min {
			min = amount
			found = true
		}
	}
	return min, found
}

// HasTag reports whether the product carries the given tag.
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// InCategory reports whether the product belongs to any of the given
// category ids.
func (p *Product) InCategory(ids []string) bool {
	for _, want := range ids {
		for _, have := range p.CategoryIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}
