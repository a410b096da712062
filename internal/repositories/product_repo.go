package repositories

import (
	"context"

	"chillistore/internal/models"
)

// ProductRepository defines the interface for product data access.
// Reads return products with their category, brand and chilli types attached.
type ProductRepository interface {
	// GetAll returns every product, newest first.
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	GetAll(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Count(ctx context.Context) (int64, error)
}

// BrandRepository defines the interface for brand data access.
type BrandRepository interface {
	GetAll(ctx context.Context) ([]models.Brand, error)
	GetByID(ctx context.Context, id string) (*models.Brand, error)
	Create(ctx context.Context, brand *models.Brand) error
	Count(ctx context.Context) (int64, error)
}
