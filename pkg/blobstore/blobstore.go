// Package blobstore stores opaque asset bytes and hands back public URLs.
package blobstore

import (
	"context"
	"errors"
	"strings"
)

// ErrObjectExists is returned by Put when the key is taken and overwriting was not requested.
var ErrObjectExists = errors.New("blobstore: object already exists")

// PutOptions control a single write.
type PutOptions struct {
	Overwrite   bool
	ContentType string
}

// Store is the blob backend used for product images.
type Store interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	PublicURL(key string) string
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
