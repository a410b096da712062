package services

import (
	"context"
	"errors"
	"strings"

	"chillistore/internal/invalidation"
	"chillistore/internal/models"
	"chillistore/internal/repositories"

	"go.uber.org/zap"
)

// LifecycleState is a step of a product mutation.
type LifecycleState string

const (
	StatePending     LifecycleState = "pending"
	StateAuthorizing LifecycleState = "authorizing"
	StateValidating  LifecycleState = "validating"
	StatePersisting  LifecycleState = "persisting"
	StateSucceeded   LifecycleState = "succeeded"
	StateFailed      LifecycleState = "failed"
)

const (
	OperationCreate      = "create"
	OperationUpdate      = "update"
	OperationDelete      = "delete"
	OperationRemoveImage = "remove_image"
)

// Transition is reported to the observer hook on every state change.
type Transition struct {
	Operation string
	ProductID string
	State     LifecycleState
	Err       error
}

// Authorizer decides whether a caller may mutate the catalog.
type Authorizer interface {
	Authorize(ctx context.Context, caller CallerContext) (*AuthorizedSession, error)
}

// BrandLookup resolves a brand by id.
type BrandLookup interface {
	GetByID(ctx context.Context, id string) (*models.Brand, error)
}

// ProductServiceDeps bundles the collaborators of ProductService.
type ProductServiceDeps struct {
	Repository    repositories.ProductRepository
	Authorizer    Authorizer
	Validator     *ProductValidator
	// Brands, when set, rejects products whose brand is not on record.
	Brands        BrandLookup
	Invalidator   invalidation.Invalidator
	Logger        *zap.Logger
	DefaultLocale string
	// OnTransition, when set, is called synchronously for every state change.
	OnTransition func(Transition)
}

// ProductService coordinates product mutations: authorize, validate, write once, invalidate.
type ProductService struct {
	repo          repositories.ProductRepository
	auth          Authorizer
	validator     *ProductValidator
	brands        BrandLookup
	invalidator   invalidation.Invalidator
	logger        *zap.Logger
	defaultLocale string
	onTransition  func(Transition)
}

// NewProductService creates a new ProductService.
func NewProductService(deps ProductServiceDeps) *ProductService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locale, ok := invalidation.NormalizeLocale(deps.DefaultLocale)
	if !ok {
		locale = "en"
	}
	return &ProductService{
		repo:          deps.Repository,
		auth:          deps.Authorizer,
		validator:     deps.Validator,
		brands:        deps.Brands,
		invalidator:   deps.Invalidator,
		logger:        logger,
		defaultLocale: locale,
		onTransition:  deps.OnTransition,
	}
}

// GetAllProducts retrieves all products, newest first.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

// CreateProduct validates input and inserts a new product.
func (s *ProductService) CreateProduct(ctx context.Context, caller CallerContext, input ProductInput) (*models.Product, error) {
	run := s.begin(OperationCreate, "")

	session, err := s.authorize(ctx, run, caller)
	if err != nil {
		return nil, err
	}

	run.to(StateValidating)
	product, err := s.validator.Validate(input, nil)
	if err != nil {
		return nil, run.fail(err)
	}
	if err := s.checkBrand(ctx, product.BrandID); err != nil {
		return nil, run.fail(err)
	}

	run.to(StatePersisting)
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, run.fail(persistenceError(err))
	}
	run.productID = product.ID
	run.to(StateSucceeded)

	s.invalidate(s.locale(session), "")
	return &product, nil
}

// UpdateProduct validates input against the saved product and overwrites it.
func (s *ProductService) UpdateProduct(ctx context.Context, caller CallerContext, input ProductInput) (*models.Product, error) {
	return s.update(ctx, OperationUpdate, caller, func(*models.Product) ProductInput { return input }, trimmed(input.ProductID))
}

// RemoveProductImage clears the image reference of a saved product. The blob itself is kept.
func (s *ProductService) RemoveProductImage(ctx context.Context, caller CallerContext, id string) (*models.Product, error) {
	return s.update(ctx, OperationRemoveImage, caller, func(existing *models.Product) ProductInput {
		input := inputFromProduct(existing)
		empty := ""
		input.ImageURL = &empty
		return input
	}, strings.TrimSpace(id))
}

func (s *ProductService) update(ctx context.Context, op string, caller CallerContext, build func(*models.Product) ProductInput, id string) (*models.Product, error) {
	run := s.begin(op, id)

	session, err := s.authorize(ctx, run, caller)
	if err != nil {
		return nil, err
	}

	run.to(StateValidating)
	if id == "" {
		return nil, run.fail(newValidationError("missing product identifier"))
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, run.fail(ErrNotFound)
		}
		return nil, run.fail(persistenceError(err))
	}
	product, err := s.validator.Validate(build(existing), existing)
	if err != nil {
		return nil, run.fail(err)
	}
	if err := s.checkBrand(ctx, product.BrandID); err != nil {
		return nil, run.fail(err)
	}

	run.to(StatePersisting)
	if err := s.repo.Update(ctx, &product); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, run.fail(ErrNotFound)
		}
		return nil, run.fail(persistenceError(err))
	}
	run.to(StateSucceeded)

	s.invalidate(s.locale(session), id)
	return &product, nil
}

// DeleteProduct removes a product permanently. Callers confirm with the operator first.
func (s *ProductService) DeleteProduct(ctx context.Context, caller CallerContext, id string) error {
	id = strings.TrimSpace(id)
	run := s.begin(OperationDelete, id)

	session, err := s.authorize(ctx, run, caller)
	if err != nil {
		return err
	}
	if id == "" {
		return run.fail(newValidationError("missing product identifier"))
	}

	run.to(StatePersisting)
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return run.fail(ErrNotFound)
		}
		return run.fail(persistenceError(err))
	}
	run.to(StateSucceeded)

	s.invalidate(s.locale(session), "")
	return nil
}

func (s *ProductService) checkBrand(ctx context.Context, brandID *string) error {
	if s.brands == nil || brandID == nil {
		return nil
	}
	if _, err := s.brands.GetByID(ctx, *brandID); err != nil {
		if errors.Is(err, repositories.ErrBrandNotFound) {
			return newValidationError("unknown brand")
		}
		return persistenceError(err)
	}
	return nil
}

func (s *ProductService) authorize(ctx context.Context, run *lifecycle, caller CallerContext) (*AuthorizedSession, error) {
	run.to(StateAuthorizing)
	session, err := s.auth.Authorize(ctx, caller)
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			s.logger.Warn("authorization check failed", zap.Error(err))
		}
		return nil, run.fail(ErrUnauthorized)
	}
	return session, nil
}

func (s *ProductService) locale(session *AuthorizedSession) string {
	if session != nil {
		if locale, ok := invalidation.NormalizeLocale(session.Locale); ok {
			return locale
		}
	}
	return s.defaultLocale
}

// invalidate refreshes the listing, plus the edit view when productID is set.
func (s *ProductService) invalidate(locale, productID string) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.Invalidate(invalidation.AdminProductsPath(locale))
	if productID != "" {
		s.invalidator.Invalidate(invalidation.AdminProductPath(locale, productID))
	}
}

func (s *ProductService) begin(op, productID string) *lifecycle {
	l := &lifecycle{service: s, operation: op, productID: productID}
	l.to(StatePending)
	return l
}

// lifecycle tracks one operation through its states.
type lifecycle struct {
	service   *ProductService
	operation string
	productID string
}

func (l *lifecycle) to(state LifecycleState) {
	l.emit(Transition{Operation: l.operation, ProductID: l.productID, State: state})
}

func (l *lifecycle) fail(err error) error {
	l.emit(Transition{Operation: l.operation, ProductID: l.productID, State: StateFailed, Err: err})
	return err
}

func (l *lifecycle) emit(t Transition) {
	fields := []zap.Field{
		zap.String("operation", t.Operation),
		zap.String("state", string(t.State)),
	}
	if t.ProductID != "" {
		fields = append(fields, zap.String("product_id", t.ProductID))
	}
	if t.Err != nil {
		fields = append(fields, zap.Error(t.Err))
	}
	l.service.logger.Debug("product lifecycle", fields...)
	if l.service.onTransition != nil {
		l.service.onTransition(t)
	}
}

func inputFromProduct(p *models.Product) ProductInput {
	id := p.ID
	currencyCode := p.Currency
	description := p.Description
	image := p.ImageURL
	return ProductInput{
		ProductID:   &id,
		Name:        p.Name,
		Slug:        p.Slug,
		PriceCents:  formatCents(p.PriceCents),
		Currency:    &currencyCode,
		Description: &description,
		CategoryID:  p.CategoryID,
		BrandID:     p.BrandID,
		ImageURL:    &image,
	}
}
