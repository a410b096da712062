package handlers

import (
	"errors"

	"chillistore/internal/catalog"
	"chillistore/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProductHandler serves the shopper-facing catalog.
type ProductHandler struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(catalogService *services.CatalogService, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{catalog: catalogService, logger: logger}
}

// RegisterRoutes registers the storefront routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/products", h.ListProducts)
	router.Get("/products/:slug", h.GetProduct)
	router.Get("/categories", h.ListCategories)
	router.Get("/brands", h.ListBrands)
}

// ListProducts filters the catalog.
// Query: search, category, sort (recent|popular), limit (reveal window size).
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	q := catalog.Query{
		SearchTerm: c.Query("search"),
		Category:   c.Query("category"),
		Sort:       catalog.ParseSort(c.Query("sort")),
	}
	window := catalog.WindowOf(c.QueryInt("limit", catalog.InitialWindow))

	page, err := h.catalog.Browse(c.UserContext(), q, window)
	if err != nil {
		h.logger.Error("failed to browse catalog", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to retrieve products",
			"error":   err.Error(),
		})
	}

	body := fiber.Map{
		"items":     page.Items,
		"total":     page.Total,
		"displayed": len(page.Items),
		"has_more":  page.HasMore,
		"sort":      q.Sort,
	}
	if page.HasMore {
		body["next_limit"] = window.RevealMore().Size()
	}
	return c.JSON(body)
}

// GetProduct returns one product by slug with its description rendered.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	detail, err := h.catalog.ProductBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		h.logger.Error("failed to load product", zap.String("slug", c.Params("slug")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to retrieve product",
			"error":   err.Error(),
		})
	}
	return c.JSON(detail)
}

func (h *ProductHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.Categories(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to retrieve categories",
			"error":   err.Error(),
		})
	}
	return c.JSON(categories)
}

func (h *ProductHandler) ListBrands(c *fiber.Ctx) error {
	brands, err := h.catalog.Brands(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to retrieve brands",
			"error":   err.Error(),
		})
	}
	return c.JSON(brands)
}
