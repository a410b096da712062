package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chillistore/internal/models"

	"github.com/google/uuid"
)

// MockCategoryRepository is an in-memory implementation of CategoryRepository.
type MockCategoryRepository struct {
	categories map[string]models.Category
	mu         sync.RWMutex
}

// NewMockCategoryRepository creates a new instance of MockCategoryRepository.
func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{categories: make(map[string]models.Category)}
}

func (r *MockCategoryRepository) GetAll(ctx context.Context) ([]models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MockCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	for _, c := range r.categories {
		if c.Slug == category.Slug {
			return fmt.Errorf("%w: %s", ErrDuplicateSlug, category.Slug)
		}
	}
	r.categories[category.ID] = *category
	return nil
}

func (r *MockCategoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.categories)), nil
}

// MockBrandRepository is an in-memory implementation of BrandRepository.
type MockBrandRepository struct {
	brands map[string]models.Brand
	mu     sync.RWMutex
}

// NewMockBrandRepository creates a new instance of MockBrandRepository.
func NewMockBrandRepository() *MockBrandRepository {
	return &MockBrandRepository{brands: make(map[string]models.Brand)}
}

func (r *MockBrandRepository) GetAll(ctx context.Context) ([]models.Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Brand, 0, len(r.brands))
	for _, b := range r.brands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MockBrandRepository) GetByID(ctx context.Context, id string) (*models.Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.brands[id]
	if !ok {
		return nil, fmt.Errorf("brand with ID %s: %w", id, ErrBrandNotFound)
	}
	return &b, nil
}

func (r *MockBrandRepository) Create(ctx context.Context, brand *models.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if brand.ID == "" {
		brand.ID = uuid.New().String()
	}
	for _, b := range r.brands {
		if b.Slug == brand.Slug {
			return fmt.Errorf("%w: %s", ErrDuplicateSlug, brand.Slug)
		}
	}
	r.brands[brand.ID] = *brand
	return nil
}

func (r *MockBrandRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.brands)), nil
}
