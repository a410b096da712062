package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chillistore/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// productColumns are the columns an update may change.
var productColumns = []string{
	"name", "slug", "price_cents", "currency", "description",
	"image_url", "category_id", "brand_id", "updated_at",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func (r *GORMProductRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Category").
		Preload("Brand").
		Preload("ChilliTypes")
}

// GetAll retrieves all products from the database, newest first.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.withRelations(ctx).Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.withRelations(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// GetBySlug retrieves a single product by its slug from the database.
func (r *GORMProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.withRelations(ctx).First(&product, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with slug %s: %w", slug, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by slug %s: %w", slug, err)
	}
	return &product, nil
}

// Create inserts a new product. Referenced categories and brands must already exist.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Category", "Brand").Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", translate(err))
	}
	return nil
}

// Update writes the editable columns of an existing product in one statement.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select(productColumns).
		Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrProductNotFound)
	}
	return nil
}

// Delete removes a product and its chilli type links.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Select("ChilliTypes").Delete(&models.Product{ID: id})
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", id, ErrProductNotFound)
	}
	return nil
}

// Count returns the number of products.
func (r *GORMProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// translate keeps the driver message and tags unique violations with ErrDuplicateSlug.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicateSlug, err)
	}
	return err
}
