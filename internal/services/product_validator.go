package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chillistore/internal/models"
	"chillistore/internal/storemode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
)

// ProductInput is the raw admin form submission. Nil pointers mean the field was not sent.
type ProductInput struct {
	ProductID   *string
	Name        string
	Slug        string
	PriceCents  string
	Currency    *string
	Description *string
	CategoryID  *string
	BrandID     *string
	ImageURL    *string
}

// ImageOwner reports whether a URL points at an asset this service uploaded.
type ImageOwner interface {
	OwnsURL(url string) bool
}

// ProductValidator turns form input into a product that is valid for the store mode.
type ProductValidator struct {
	mode     storemode.Mode
	images   ImageOwner
	validate *validator.Validate
}

// NewProductValidator creates a validator for mode. images may be nil, in which
// case only an empty or inherited image URL is accepted.
func NewProductValidator(mode storemode.Mode, images ImageOwner) *ProductValidator {
	return &ProductValidator{
		mode:     mode,
		images:   images,
		validate: validator.New(),
	}
}

// Mode returns the store mode the validator enforces.
func (v *ProductValidator) Mode() storemode.Mode {
	return v.mode
}

// Validate normalizes input. existing is the saved product for an update, nil for a create;
// its brand is the default when the form omits one and its image may be kept as is.
// On error the returned product is the zero value.
func (v *ProductValidator) Validate(input ProductInput, existing *models.Product) (models.Product, error) {
	name := strings.TrimSpace(input.Name)
	slug := strings.TrimSpace(input.Slug)
	rawPrice := strings.TrimSpace(input.PriceCents)
	if name == "" || slug == "" || rawPrice == "" {
		return models.Product{}, newValidationError("missing required fields")
	}

	price, err := strconv.ParseInt(rawPrice, 10, 64)
	if err != nil || price < 0 {
		return models.Product{}, newValidationError("price must be a non-negative whole number of minor units")
	}

	code := strings.ToUpper(trimmed(input.Currency))
	if code == "" {
		code = models.DefaultCurrency
	}
	if _, err := currency.ParseISO(code); err != nil || !models.IsSupportedCurrency(code) {
		return models.Product{}, newValidationError("unsupported currency %q", code)
	}

	var inherited string
	if existing != nil {
		inherited = existing.ImageURL
	}
	image := trimmed(input.ImageURL)
	if image != "" && image != inherited && (v.images == nil || !v.images.OwnsURL(image)) {
		return models.Product{}, newValidationError("image must be uploaded before saving")
	}

	brandID, err := v.resolveBrand(input.BrandID, existing)
	if err != nil {
		return models.Product{}, err
	}

	product := models.Product{
		Name:        name,
		Slug:        slug,
		PriceCents:  price,
		Currency:    code,
		Description: trimmed(input.Description),
		ImageURL:    image,
		CategoryID:  optional(input.CategoryID),
		BrandID:     brandID,
	}
	if existing != nil {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
		product.HeatLevel = existing.HeatLevel
	}

	if err := v.validate.Struct(product); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.Product{}, newValidationError("field '%s' failed on the '%s' rule", fe.Field(), fe.Tag())
		}
		return models.Product{}, newValidationError("%v", err)
	}
	return product, nil
}

func (v *ProductValidator) resolveBrand(submitted *string, existing *models.Product) (*string, error) {
	switch m := v.mode.(type) {
	case storemode.Single:
		return optional(&m.DefaultBrandID), nil
	case storemode.Multi:
		if id := optional(submitted); id != nil {
			return id, nil
		}
		if existing != nil {
			if id := optional(existing.BrandID); id != nil {
				return id, nil
			}
		}
		return nil, newValidationError("brand is required in multi-store mode")
	default:
		return nil, fmt.Errorf("unsupported store mode %T", v.mode)
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func optional(s *string) *string {
	v := trimmed(s)
	if v == "" {
		return nil
	}
	return &v
}

func formatCents(v int64) string {
	return strconv.FormatInt(v, 10)
}
