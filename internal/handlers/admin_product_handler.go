package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"chillistore/internal/middleware"
	"chillistore/internal/models"
	"chillistore/internal/services"
	"chillistore/internal/storemode"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const formSessionHeader = "X-Form-Session"

// priceField accepts price_cents as a JSON number or string. Parsing is left to the validator.
type priceField string

func (p *priceField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = priceField(s)
		return nil
	}
	if string(b) == "null" {
		*p = ""
		return nil
	}
	*p = priceField(b)
	return nil
}

// productForm is the admin product form as submitted.
type productForm struct {
	ProductID   *string    `json:"product_id,omitempty" form:"product_id"`
	Name        string     `json:"name" form:"name"`
	Slug        string     `json:"slug" form:"slug"`
	PriceCents  priceField `json:"price_cents" form:"price_cents"`
	Currency    *string    `json:"currency,omitempty" form:"currency"`
	Description *string    `json:"description,omitempty" form:"description"`
	CategoryID  *string    `json:"category_id,omitempty" form:"category_id"`
	BrandID     *string    `json:"brand_id,omitempty" form:"brand_id"`
	ImageURL    *string    `json:"image_url,omitempty" form:"image_url"`
}

func (f productForm) input() services.ProductInput {
	return services.ProductInput{
		ProductID:   f.ProductID,
		Name:        f.Name,
		Slug:        f.Slug,
		PriceCents:  string(f.PriceCents),
		Currency:    f.Currency,
		Description: f.Description,
		CategoryID:  f.CategoryID,
		BrandID:     f.BrandID,
		ImageURL:    f.ImageURL,
	}
}

// AdminProductHandlerDeps bundles the collaborators of AdminProductHandler.
type AdminProductHandlerDeps struct {
	Products *services.ProductService
	Catalog  *services.CatalogService
	Assets   *services.AssetService
	Guard    *services.SubmissionGuard
	Mode     storemode.Mode
	Logger   *zap.Logger
}

// AdminProductHandler serves the shop owner's product console.
type AdminProductHandler struct {
	products *services.ProductService
	catalog  *services.CatalogService
	assets   *services.AssetService
	guard    *services.SubmissionGuard
	mode     storemode.Mode
	logger   *zap.Logger
}

// NewAdminProductHandler creates a new AdminProductHandler.
func NewAdminProductHandler(deps AdminProductHandlerDeps) *AdminProductHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := deps.Guard
	if guard == nil {
		guard = services.NewSubmissionGuard()
	}
	return &AdminProductHandler{
		products: deps.Products,
		catalog:  deps.Catalog,
		assets:   deps.Assets,
		guard:    guard,
		mode:     deps.Mode,
		logger:   logger,
	}
}

// RegisterRoutes registers the admin routes. router is expected to be behind middleware.AuthRequired.
func (h *AdminProductHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/stats", h.Stats)
	router.Get("/products", h.ListProducts)
	router.Get("/products/:id", h.EditView)
	router.Post("/products", h.CreateProduct)
	router.Put("/products/:id", h.UpdateProduct)
	router.Delete("/products/:id", h.DeleteProduct)
	router.Delete("/products/:id/image", h.RemoveImage)
	router.Post("/assets", h.UploadImage)
}

// Stats returns the dashboard counters.
func (h *AdminProductHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.catalog.Stats(c.UserContext())
	if err != nil {
		h.logger.Error("failed to load stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load stats",
			"error":   err.Error(),
		})
	}
	return c.JSON(stats)
}

// ListProducts returns every product, newest first.
func (h *AdminProductHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.products.GetAllProducts(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to retrieve products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// EditView returns a product together with what the edit form needs to render.
func (h *AdminProductHandler) EditView(c *fiber.Ctx) error {
	ctx := c.UserContext()
	product, err := h.products.GetProductByID(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err, nil)
	}

	meta, err := h.formMeta(ctx)
	if err != nil {
		h.logger.Error("failed to load form options", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to load form options",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"product": product,
		"form":    meta,
	})
}

func (h *AdminProductHandler) formMeta(ctx context.Context) (fiber.Map, error) {
	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		return nil, err
	}

	meta := fiber.Map{
		"store_mode":          h.mode.Name(),
		"brand_field_visible": storemode.BrandFieldVisible(h.mode),
		"categories":          categories,
		"currencies":          models.Currencies,
		"default_currency":    models.DefaultCurrency,
	}
	switch m := h.mode.(type) {
	case storemode.Multi:
		brands, err := h.catalog.Brands(ctx)
		if err != nil {
			return nil, err
		}
		meta["brands"] = brands
	case storemode.Single:
		meta["default_brand_id"] = m.DefaultBrandID
	}
	return meta, nil
}

// CreateProduct handles the create form.
func (h *AdminProductHandler) CreateProduct(c *fiber.Ctx) error {
	var form productForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c, err)
	}
	form.ProductID = nil

	caller, release, err := h.begin(c, "create", "")
	if err != nil {
		return respondError(c, err, form)
	}
	defer release()

	product, err := h.products.CreateProduct(c.UserContext(), caller, form.input())
	if err != nil {
		return respondError(c, err, form)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created",
		"product": product,
	})
}

// UpdateProduct handles the edit form. The id in the path wins over the form field.
func (h *AdminProductHandler) UpdateProduct(c *fiber.Ctx) error {
	var form productForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c, err)
	}
	id := c.Params("id")
	form.ProductID = &id

	caller, release, err := h.begin(c, "update", id)
	if err != nil {
		return respondError(c, err, form)
	}
	defer release()

	product, err := h.products.UpdateProduct(c.UserContext(), caller, form.input())
	if err != nil {
		return respondError(c, err, form)
	}
	return c.JSON(fiber.Map{
		"message": "Product updated",
		"product": product,
	})
}

// DeleteProduct removes a product once the operator confirmed with ?confirm=true.
func (h *AdminProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if !c.QueryBool("confirm") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Deletion must be confirmed",
		})
	}

	caller, release, err := h.begin(c, "delete", id)
	if err != nil {
		return respondError(c, err, nil)
	}
	defer release()

	if err := h.products.DeleteProduct(c.UserContext(), caller, id); err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"message": "Product deleted",
	})
}

// RemoveImage clears the saved image of a product.
func (h *AdminProductHandler) RemoveImage(c *fiber.Ctx) error {
	id := c.Params("id")
	caller, release, err := h.begin(c, "update", id)
	if err != nil {
		return respondError(c, err, nil)
	}
	defer release()

	product, err := h.products.RemoveProductImage(c.UserContext(), caller, id)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(fiber.Map{
		"message": "Image removed",
		"product": product,
	})
}

// UploadImage stores the multipart "file" and returns its URL. The optional
// "current_image_url" field is returned unchanged when the upload fails.
func (h *AdminProductHandler) UploadImage(c *fiber.Ctx) error {
	slot := services.NewImageSlot(c.FormValue("current_image_url"))

	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":   "A file is required",
			"error":     err.Error(),
			"image_url": slot.URL(),
		})
	}
	f, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":   "Could not read file",
			"error":     err.Error(),
			"image_url": slot.URL(),
		})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, services.MaxImageBytes+1))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":   "Could not read file",
			"error":     err.Error(),
			"image_url": slot.URL(),
		})
	}

	err = h.assets.UploadInto(c.UserContext(), slot, services.File{
		Name:        header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"message":   messageFor(err),
			"error":     err.Error(),
			"image_url": slot.URL(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Image uploaded",
		"image_url": slot.URL(),
	})
}

// begin resolves the caller and takes the form's submission slot.
func (h *AdminProductHandler) begin(c *fiber.Ctx, op, id string) (services.CallerContext, func(), error) {
	caller, err := middleware.Caller(c)
	if err != nil {
		return services.CallerContext{}, nil, services.ErrUnauthorized
	}

	key := strings.TrimSpace(c.Get(formSessionHeader))
	if key == "" {
		key = caller.Token + "|" + op + "|" + id
	}
	release, err := h.guard.Acquire(key)
	if err != nil {
		return services.CallerContext{}, nil, err
	}
	return caller, release, nil
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}
