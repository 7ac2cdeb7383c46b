package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// SortOption orders search results.
type SortOption string

// Sort options. SortRelevance keeps catalog order.
const (
	SortRelevance SortOption = "relevance"
	SortPriceLow  SortOption = "price-low"
	SortPriceHigh SortOption = "price-high"
	SortRating    SortOption = "rating"
	SortNewest    SortOption = "newest"
)

// ParseSort validates s; an empty string means SortRelevance.
func ParseSort(s string) (SortOption, error) {
	switch o := SortOption(s); o {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort option %q", s)
}

// Query filters and orders a catalog search. Zero values match everything;
// MaxPrice <= 0 means no upper bound.
type Query struct {
	Text     string
	Category string
	Type     string
	MinPrice float64
	MaxPrice float64
	Sort     SortOption
}

func (q Query) match(p Product) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.Type != "" && p.Type != q.Type {
		return false
	}
	if p.Price < q.MinPrice || (q.MaxPrice > 0 && p.Price > q.MaxPrice) {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Description, p.Type, p.Category} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

// Search returns the products matching q in the requested order. Ties keep
// catalog order.
func (a *Accessor) Search(ctx context.Context, q Query) ([]Product, error) {
	out, err := a.filter(ctx, q.match)
	if err != nil {
		return nil, err
	}
	switch q.Sort {
	case SortPriceLow:
		slices.SortStableFunc(out, func(x, y Product) int { return cmp.Compare(x.Price, y.Price) })
	case SortPriceHigh:
		slices.SortStableFunc(out, func(x, y Product) int { return cmp.Compare(y.Price, x.Price) })
	case SortRating:
		slices.SortStableFunc(out, func(x, y Product) int { return cmp.Compare(y.Rating, x.Rating) })
	case SortNewest:
		slices.SortStableFunc(out, func(x, y Product) int { return cmp.Compare(y.ID, x.ID) })
	}
	return out, nil
}
