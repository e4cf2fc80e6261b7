// Package storage provides the durable object store behind persisted video
// artifacts. It defines the Store interface (port) and implementations for
// S3-compatible object storage and local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotConfigured is returned when store operations are attempted without
// proper configuration.
var ErrNotConfigured = errors.New("storage: store is not configured")

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Store defines the interface for the durable artifact store.
// Keys are deterministic slash-separated paths; uploading an existing key
// overwrites it.
type Store interface {
	// Upload writes an object and returns a fetchable URL for it: a
	// presigned URL with the store's default TTL, or the public URL when
	// the store is public-read.
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)

	// Download opens an object for reading.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// SignedURL returns a time-limited URL for an existing object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// PublicURL returns the unauthenticated URL for a key. Only useful when
	// the backing bucket is public-read.
	PublicURL(key string) string

	// KeyFromURL reports whether the URL points into this store and, if so,
	// the object key it addresses. Both virtual-hosted and path-style URL
	// shapes are recognized; query strings from expired signatures are ignored.
	KeyFromURL(url string) (key string, ok bool)
}
