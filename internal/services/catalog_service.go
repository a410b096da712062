package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"chillistore/internal/catalog"
	"chillistore/internal/invalidation"
	"chillistore/internal/models"
	"chillistore/internal/repositories"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

// ProductDetail is a product with its description rendered for display.
type ProductDetail struct {
	models.Product
	DescriptionHTML string `json:"description_html"`
}

// Stats are the admin dashboard counters.
type Stats struct {
	Products   int64 `json:"products"`
	Brands     int64 `json:"brands"`
	Categories int64 `json:"categories"`
}

// CatalogServiceDeps bundles the collaborators of CatalogService.
type CatalogServiceDeps struct {
	Products   repositories.ProductRepository
	Categories repositories.CategoryRepository
	Brands     repositories.BrandRepository
	Logger     *zap.Logger
}

// CatalogService serves shopper reads from a snapshot of the product table.
// The snapshot is dropped whenever a product path is invalidated.
type CatalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	brands     repositories.BrandRepository
	logger     *zap.Logger
	markdown   goldmark.Markdown
	policy     *bluemonday.Policy

	mu       sync.Mutex
	snapshot []models.Product
	loaded   bool
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(deps CatalogServiceDeps) *CatalogService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		products:   deps.Products,
		categories: deps.Categories,
		brands:     deps.Brands,
		logger:     logger,
		markdown:   goldmark.New(),
		policy:     bluemonday.UGCPolicy(),
	}
}

// Browse filters the catalog and cuts it to window.
func (s *CatalogService) Browse(ctx context.Context, q catalog.Query, window catalog.Window) (catalog.Page, error) {
	products, err := s.all(ctx)
	if err != nil {
		return catalog.Page{}, err
	}
	return window.Apply(catalog.Filter(products, q)), nil
}

// ProductBySlug returns one product with its markdown description rendered to safe HTML.
func (s *CatalogService) ProductBySlug(ctx context.Context, slug string) (*ProductDetail, error) {
	product, err := s.products.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	html, err := s.RenderDescription(product.Description)
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: *product, DescriptionHTML: html}, nil
}

// RenderDescription converts markdown to sanitised HTML.
func (s *CatalogService) RenderDescription(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render description: %w", err)
	}
	return string(s.policy.SanitizeBytes(buf.Bytes())), nil
}

// Categories lists every category.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.categories.GetAll(ctx)
}

// Brands lists every brand.
func (s *CatalogService) Brands(ctx context.Context) ([]models.Brand, error) {
	return s.brands.GetAll(ctx)
}

// Stats counts products, brands and categories.
func (s *CatalogService) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.Products, err = s.products.Count(ctx); err != nil {
		return Stats{}, err
	}
	if stats.Brands, err = s.brands.Count(ctx); err != nil {
		return Stats{}, err
	}
	if stats.Categories, err = s.categories.Count(ctx); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Publish drops the snapshot when sig concerns products. It lets the service act as an invalidation sink.
func (s *CatalogService) Publish(_ context.Context, sig invalidation.Signal) error {
	if !invalidation.IsProductPath(sig.Path) {
		return nil
	}
	s.Reset()
	s.logger.Debug("catalog snapshot dropped", zap.String("path", sig.Path))
	return nil
}

// Reset forgets the snapshot so the next read reloads it.
func (s *CatalogService) Reset() {
	s.mu.Lock()
	s.snapshot = nil
	s.loaded = false
	s.mu.Unlock()
}

func (s *CatalogService) all(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.snapshot, nil
	}
	products, err := s.products.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	s.snapshot = products
	s.loaded = true
	return products, nil
}
