package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStore writes blobs to a Google Cloud Storage bucket that is publicly readable.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore wraps an existing client. An empty baseURL resolves objects via
// storage.googleapis.com; set it when the bucket is fronted by a CDN.
func NewGCSStore(client *storage.Client, bucket, baseURL string) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("blobstore: gcs client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("blobstore: bucket name is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = gcsPublicHost + "/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

// Put uploads data to key. Without Overwrite the write is conditional on the
// object not existing yet.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	obj := s.client.Bucket(s.bucket).Object(key)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.CacheControl = "public, max-age=31536000"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("blobstore: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return fmt.Errorf("blobstore: finalize %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the URL the object is served from.
func (s *GCSStore) PublicURL(key string) string {
	return joinURL(s.baseURL, key)
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
