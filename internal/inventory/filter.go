package inventory

import (
	"net/url"
	"slices"
	"strings"
)

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Status       Status
	Category     string
	Search       string
	HideArchived bool
}

// FilterFromQuery reads status, category, q and archived=false.
func FilterFromQuery(q url.Values) ProductFilter {
	return ProductFilter{
		Status:       Status(strings.TrimSpace(q.Get("status"))),
		Category:     strings.TrimSpace(q.Get("category")),
		Search:       strings.ToLower(strings.TrimSpace(q.Get("q"))),
		HideArchived: q.Get("archived") == "false",
	}
}

// Match reports whether p passes every set criterion. Search is a
// case-insensitive substring match on name, product id and category;
// category must match exactly.
func (f ProductFilter) Match(p Product) bool {
	switch {
	case f.Status != "" && p.Status != f.Status:
		return false
	case f.Category != "" && p.Category != f.Category:
		return false
	case f.HideArchived && p.Archived:
		return false
	}
	if f.Search == "" {
		return true
	}
	return slices.ContainsFunc([]string{p.Name, p.ProductID, p.Category}, func(field string) bool {
		return strings.Contains(strings.ToLower(field), f.Search)
	})
}

// Filter returns the products matching f in their original order.
func (f ProductFilter) Filter(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists the distinct categories of products, sorted.
func Categories(products []Product) []string {
	out := make([]string, 0)
	for _, p := range products {
		if p.Category != "" && !slices.Contains(out, p.Category) {
			out = append(out, p.Category)
		}
	}
	slices.Sort(out)
	return out
}
