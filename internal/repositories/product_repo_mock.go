package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chillistore/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// It enforces slug uniqueness the way the database index does.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetAll returns all products, newest first.
func (r *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sort.SliceStable(productList, func(i, j int) bool {
		if productList[i].CreatedAt.Equal(productList[j].CreatedAt) {
			return productList[i].ID < productList[j].ID
		}
		return productList[i].CreatedAt.After(productList[j].CreatedAt)
	})
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
	}
	return &product, nil
}

// GetBySlug returns a product by its slug.
func (r *MockProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.Slug == slug {
			product := p
			return &product, nil
		}
	}
	return nil, fmt.Errorf("product with slug %s: %w", slug, ErrProductNotFound)
}

// Create adds a new product.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.checkSlugLocked(product.ID, product.Slug); err != nil {
		return err
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrProductNotFound)
	}
	if err := r.checkSlugLocked(product.ID, product.Slug); err != nil {
		return err
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
	}
	delete(r.products, id)
	return nil
}

// Count returns the number of products.
func (r *MockProductRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.products)), nil
}

func (r *MockProductRepository) checkSlugLocked(id, slug string) error {
	for _, p := range r.products {
		if p.ID != id && p.Slug == slug {
			return fmt.Errorf("%w: %s", ErrDuplicateSlug, slug)
		}
	}
	return nil
}
