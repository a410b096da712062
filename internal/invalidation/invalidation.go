// Package invalidation carries "this view is stale" signals from catalog
// mutations to whatever caches or downstream consumers depend on them.
package invalidation

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const maxLocaleLength = 35

// Signal names one stale view path.
type Signal struct {
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// Invalidator accepts paths to invalidate. Implementations must not block the caller.
type Invalidator interface {
	Invalidate(path string)
}

// Publisher delivers a signal to one sink.
type Publisher interface {
	Publish(ctx context.Context, sig Signal) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, sig Signal) error

func (f PublisherFunc) Publish(ctx context.Context, sig Signal) error {
	return f(ctx, sig)
}

// NormalizeLocale returns the canonical form of a BCP 47 locale tag, or false
// when s is empty or not a well-formed tag.
func NormalizeLocale(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxLocaleLength {
		return "", false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	return tag.String(), true
}

// AdminProductsPath is the admin product listing for locale.
func AdminProductsPath(locale string) string {
	return "/" + strings.Trim(locale, "/") + "/admin/products"
}

// AdminProductPath is the admin edit view of one product.
func AdminProductPath(locale, productID string) string {
	return AdminProductsPath(locale) + "/" + productID
}

// IsProductPath reports whether path refers to product listings or product pages.
func IsProductPath(path string) bool {
	return strings.Contains(path, "/products")
}
