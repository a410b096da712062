package blobstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Object is a stored blob held by MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps blobs in process memory. It backs local development,
// where the HTTP server exposes the objects under BaseURL.
type MemoryStore struct {
	baseURL string
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore creates a MemoryStore whose public URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]Object),
	}
}

// Put stores a copy of data under key.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("blobstore: key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists && !opts.Overwrite {
		return ErrObjectExists
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = Object{Data: buf, ContentType: opts.ContentType}
	return nil
}

// Get returns the object stored under key.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// PublicURL returns the URL the object is served from.
func (s *MemoryStore) PublicURL(key string) string {
	return joinURL(s.baseURL, key)
}
