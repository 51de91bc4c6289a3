// Package catalog provides read-only access to the product catalog.
package catalog

import (
	"context"
	"strings"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// Catalog lists the products shoppers can be recommended.
type Catalog interface {
	List(ctx context.Context) ([]model.Product, error)
}

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Category string
	Type     string
}

// Apply returns the products matching f, preserving order.
func (f Filter) Apply(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(string(p.Type), f.Type) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// StaticCatalog serves a fixed product list from memory.
type StaticCatalog struct {
	products []model.Product
}

// NewStaticCatalog creates a catalog over products.
func NewStaticCatalog(products []model.Product) *StaticCatalog {
	cp := make([]model.Product, len(products))
	copy(cp, products)
	return &StaticCatalog{products: cp}
}

func (c *StaticCatalog) List(_ context.Context) ([]model.Product, error) {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}
