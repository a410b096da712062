package handlers

import (
	"chillistore/pkg/blobstore"

	"github.com/gofiber/fiber/v2"
)

// AssetHandler serves blobs held by an in-memory store.
type AssetHandler struct {
	store *blobstore.MemoryStore
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(store *blobstore.MemoryStore) *AssetHandler {
	return &AssetHandler{store: store}
}

// RegisterRoutes mounts GET <prefix>/* on router.
func (h *AssetHandler) RegisterRoutes(router fiber.Router, prefix string) {
	router.Get(prefix+"/*", h.Serve)
}

// Serve writes the object named by the wildcard.
func (h *AssetHandler) Serve(c *fiber.Ctx) error {
	obj, ok := h.store.Get(c.Params("*"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Asset not found",
		})
	}
	if obj.ContentType != "" {
		c.Set(fiber.HeaderContentType, obj.ContentType)
	}
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(obj.Data)
}
