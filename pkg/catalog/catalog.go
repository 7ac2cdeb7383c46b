// Package catalog provides read-only access to the product catalog.
//
// The catalog is fetched once from a Source and memoized for the life of
// the Accessor. A failed fetch is returned to the caller and not cached, so
// the next call tries again.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is one catalog entry. Specs values are strings or numbers.
type Product struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Price       float64        `json:"price"`
	Category    string         `json:"category"`
	Type        string         `json:"type,omitempty"`
	Rating      float64        `json:"rating"`
	Reviews     int            `json:"reviews"`
	Image       string         `json:"image"`
	Badge       string         `json:"badge,omitempty"`
	Description string         `json:"description"`
	Specs       map[string]any `json:"specs"`
}

// Category describes a browsable product category.
type Category struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var categories = []Category{
	{"reels", "Fishing Reels", "High-performance reels for every fishing style"},
	{"rods", "Fishing Rods", "Premium quality rods engineered for precision"},
	{"lines", "Fishing Lines", "Strong and reliable fishing lines"},
	{"lures", "Fishing Lures", "Authentic lures to attract your catch"},
	{"accessories", "Accessories", "Essential accessories for fishing"},
	{"diving", "Diving Gear", "Complete diving equipment for water sports"},
}

// Categories returns the known categories in display order.
func Categories() []Category {
	return slices.Clone(categories)
}

// CategoryBySlug looks up a category.
func CategoryBySlug(slug string) (Category, bool) {
	for _, c := range categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

// Accessor memoizes the catalog fetched from a Source.
type Accessor struct {
	src   Source
	group singleflight.Group

	mu       sync.RWMutex
	loaded   bool
	products []Product
}

// New returns an Accessor reading from src.
func New(src Source) *Accessor {
	return &Accessor{src: src}
}

// Products returns the whole catalog, fetching it on first use. Concurrent
// first calls share one fetch.
func (a *Accessor) Products(ctx context.Context) ([]Product, error) {
	if products, ok := a.cached(); ok {
		return products, nil
	}
	v, err, _ := a.group.Do("products", func() (any, error) {
		if products, ok := a.cached(); ok {
			return products, nil
		}
		products, err := a.src.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch catalog: %w", err)
		}
		if products == nil {
			products = []Product{}
		}
		a.mu.Lock()
		a.products, a.loaded = products, true
		a.mu.Unlock()
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Product)), nil
}

// Invalidate drops the memoized catalog; the next call fetches again.
func (a *Accessor) Invalidate() {
	a.mu.Lock()
	a.products, a.loaded = nil, false
	a.mu.Unlock()
	a.group.Forget("products")
}

// ProductByID returns the product with id or ErrNotFound.
func (a *Accessor) ProductByID(ctx context.Context, id int64) (Product, error) {
	products, err := a.Products(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

// ProductsByCategory returns the products in category.
func (a *Accessor) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	return a.filter(ctx, func(p Product) bool { return p.Category == category })
}

// ProductsByType returns the products of the given type.
func (a *Accessor) ProductsByType(ctx context.Context, typ string) ([]Product, error) {
	return a.filter(ctx, func(p Product) bool { return p.Type == typ })
}

// Types returns the distinct product types within category, in catalog
// order. Products without a type are skipped.
func (a *Accessor) Types(ctx context.Context, category string) ([]string, error) {
	products, err := a.ProductsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	types := []string{}
	for _, p := range products {
		if p.Type != "" && !slices.Contains(types, p.Type) {
			types = append(types, p.Type)
		}
	}
	return types, nil
}

func (a *Accessor) cached() ([]Product, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.loaded {
		return nil, false
	}
	return slices.Clone(a.products), true
}

func (a *Accessor) filter(ctx context.Context, keep func(Product) bool) ([]Product, error) {
	products, err := a.Products(ctx)
	if err != nil {
		return nil, err
	}
	out := []Product{}
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}
