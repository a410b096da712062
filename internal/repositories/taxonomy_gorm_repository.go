package repositories

import (
	"context"
	"errors"
	"fmt"

	"chillistore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

// NewGORMCategoryRepository creates a new instance of GORMCategoryRepository.
func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

// GetAll returns categories ordered by name.
func (r *GORMCategoryRepository) GetAll(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", translate(err))
	}
	return nil
}

func (r *GORMCategoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Category{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

// GORMBrandRepository is a GORM implementation of BrandRepository.
type GORMBrandRepository struct {
	db *gorm.DB
}

// NewGORMBrandRepository creates a new instance of GORMBrandRepository.
func NewGORMBrandRepository(db *gorm.DB) *GORMBrandRepository {
	return &GORMBrandRepository{db: db}
}

// GetAll returns brands ordered by name.
func (r *GORMBrandRepository) GetAll(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("failed to get brands: %w", err)
	}
	return brands, nil
}

func (r *GORMBrandRepository) GetByID(ctx context.Context, id string) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("brand with ID %s: %w", id, ErrBrandNotFound)
		}
		return nil, fmt.Errorf("failed to get brand by ID %s: %w", id, err)
	}
	return &brand, nil
}

func (r *GORMBrandRepository) Create(ctx context.Context, brand *models.Brand) error {
	if brand.ID == "" {
		brand.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(brand).Error; err != nil {
		return fmt.Errorf("failed to create brand: %w", translate(err))
	}
	return nil
}

func (r *GORMBrandRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Brand{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count brands: %w", err)
	}
	return n, nil
}
