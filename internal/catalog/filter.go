// Package catalog filters and pages an already-fetched product collection for
// the storefront. Everything here is pure and cheap enough to run per keystroke.
package catalog

import (
	"strings"

	"chillistore/internal/models"

	"golang.org/x/text/cases"
)

// SortOption orders the matched products.
type SortOption string

const (
	SortRecent  SortOption = "recent"
	SortPopular SortOption = "popular"
)

// ParseSort maps a query value to a SortOption, defaulting to SortRecent.
func ParseSort(value string) SortOption {
	if SortOption(strings.ToLower(strings.TrimSpace(value))) == SortPopular {
		return SortPopular
	}
	return SortRecent
}

// Query is the shopper's filter state.
type Query struct {
	SearchTerm string
	Category   string
	Sort       SortOption
}

// Result is the ordered set of matches.
type Result struct {
	Items []models.Product
	Total int
}

// Filter returns the products matching both the search term and the category.
// The input slice is never modified.
//
// Both sort options keep the fetch order, which the store already returns
// newest first. There is no ranking signal behind "popular" yet.
func Filter(products []models.Product, q Query) Result {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.SearchTerm))
	category := strings.TrimSpace(q.Category)

	items := make([]models.Product, 0, len(products))
	for _, p := range products {
		if !matchesSearch(fold, p, needle) || !matchesCategory(p, category) {
			continue
		}
		items = append(items, p)
	}

	return Result{Items: items, Total: len(items)}
}

func matchesSearch(fold cases.Caser, p models.Product, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Description, p.BrandName()} {
		if field != "" && strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}

func matchesCategory(p models.Product, category string) bool {
	if category == "" {
		return true
	}
	if p.CategoryID != nil && *p.CategoryID == category {
		return true
	}
	if p.Category == nil {
		return false
	}
	return p.Category.ID == category || p.Category.Slug == category
}
