package services

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"chillistore/pkg/blobstore"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	// MaxImageBytes caps a single product image upload.
	MaxImageBytes = 5 << 20

	productAssetPrefix = "products/"
	defaultExtension   = "bin"
	maxExtensionLength = 8
)

// imageTypes are the sniffed types accepted for product images. SVG is never
// sniffed as an image, so scripted documents cannot be stored.
var imageTypes = map[string]bool{
	"image/png":    true,
	"image/jpeg":   true,
	"image/gif":    true,
	"image/webp":   true,
	"image/bmp":    true,
	"image/x-icon": true,
}

// File is an uploaded binary as received from the admin form. ContentType is
// what the client declared; the stored type is always detected from Data.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// AssetService stores product images in blob storage.
type AssetService struct {
	store  blobstore.Store
	logger *zap.Logger
}

// NewAssetService creates a new AssetService.
func NewAssetService(store blobstore.Store, logger *zap.Logger) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetService{store: store, logger: logger}
}

// Upload writes f under products/<ulid>.<ext> and returns its public URL.
func (s *AssetService) Upload(ctx context.Context, f File) (string, error) {
	if len(f.Data) == 0 {
		return "", rejectUpload("file is empty")
	}
	if len(f.Data) > MaxImageBytes {
		return "", rejectUpload("file exceeds %d bytes", MaxImageBytes)
	}

	contentType := http.DetectContentType(f.Data)
	if !imageTypes[contentType] {
		return "", rejectUpload("%s is not a supported image", contentType)
	}
	if declared := strings.TrimSpace(f.ContentType); declared != "" && declared != contentType {
		s.logger.Debug("declared content type ignored", zap.String("declared", declared), zap.String("detected", contentType))
	}

	key := productAssetPrefix + ulid.Make().String() + "." + extension(f.Name)
	err := s.store.Put(ctx, key, f.Data, blobstore.PutOptions{
		Overwrite:   false,
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("failed to upload product image", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	url := s.store.PublicURL(key)
	s.logger.Info("product image uploaded", zap.String("key", key), zap.Int("bytes", len(f.Data)))
	return url, nil
}

// OwnsURL reports whether url was produced by Upload.
func (s *AssetService) OwnsURL(url string) bool {
	prefix := s.store.PublicURL(productAssetPrefix)
	return strings.HasPrefix(url, prefix) && len(url) > len(prefix)
}

// UploadInto uploads f and points slot at it. On failure the slot keeps its previous image.
func (s *AssetService) UploadInto(ctx context.Context, slot *ImageSlot, f File) error {
	url, err := s.Upload(ctx, f)
	if err != nil {
		return err
	}
	slot.url = url
	return nil
}

// rejectUpload reports a file that was refused before reaching the blob store.
func rejectUpload(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrUpload, newValidationError(format, args...))
}

// extension returns a lower-case alphanumeric extension of name, or "bin".
func extension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" || len(out) > maxExtensionLength {
		return defaultExtension
	}
	return out
}

// ImageSlot is the image currently selected in one edit session.
type ImageSlot struct {
	url string
}

// NewImageSlot starts a slot at the product's saved image, which may be empty.
func NewImageSlot(current string) *ImageSlot {
	return &ImageSlot{url: strings.TrimSpace(current)}
}

// URL returns the selected image, or an empty string.
func (s *ImageSlot) URL() string {
	return s.url
}

// Remove clears the selection. The stored blob is left in place.
func (s *ImageSlot) Remove() {
	s.url = ""
}
