package repositories

import "errors"

var (
	// ErrProductNotFound is returned when no product matches the lookup.
	ErrProductNotFound = errors.New("product not found")
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrBrandNotFound is returned when no brand matches the lookup.
	ErrBrandNotFound = errors.New("brand not found")
	// ErrDuplicateSlug is returned when a write would violate a slug unique index.
	ErrDuplicateSlug = errors.New("slug already exists")
)
