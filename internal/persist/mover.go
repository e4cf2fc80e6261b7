// Package persist copies ephemeral provider artifacts into the durable
// store. Provider URLs expire within hours; everything a client may fetch
// later must be re-homed under a deterministic key first.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/recastlabs/recast-api/internal/storage"
)

// Static errors for persistence operations.
var (
	// ErrSourceURLRequired is returned when no source URL is provided.
	ErrSourceURLRequired = errors.New("persist: source URL is required")
	// ErrTaskIDRequired is returned when no task ID is provided.
	ErrTaskIDRequired = errors.New("persist: task ID is required")
	// ErrDownloadFailed is returned when the ephemeral artifact cannot be fetched.
	ErrDownloadFailed = errors.New("persist: download failed")
)

// VideoKey returns the durable key for a task's persisted video.
// Keys are deterministic so re-persisting the same task overwrites.
func VideoKey(taskID string) string {
	return fmt.Sprintf("videos/%s.mp4", taskID)
}

// MixedKey returns the durable key for a task's remuxed video.
func MixedKey(taskID string) string {
	return fmt.Sprintf("mixed/%s.mp4", taskID)
}

// Mover copies artifacts from ephemeral provider URLs into the durable store.
type Mover struct {
	store      storage.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// MoverOption is a function that configures a Mover.
type MoverOption func(*Mover)

// WithHTTPClient sets a custom HTTP client for artifact downloads.
func WithHTTPClient(c *http.Client) MoverOption {
	return func(m *Mover) {
		m.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MoverOption {
	return func(m *Mover) {
		m.logger = l
	}
}

// NewMover creates a Mover over the given store.
func NewMover(store storage.Store, opts ...MoverOption) *Mover {
	m := &Mover{
		store:      store,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Persist downloads the artifact at sourceURL and uploads it under the
// task's video key, returning the durable URL.
func (m *Mover) Persist(ctx context.Context, taskID, sourceURL string) (string, error) {
	if taskID == "" {
		return "", ErrTaskIDRequired
	}
	return m.move(ctx, VideoKey(taskID), sourceURL)
}

// PersistedURL returns a fresh URL for a task's video an earlier Persist
// already stored, or ok=false when nothing is stored for the task yet.
// Lookup failures report ok=false so the caller falls back to persisting.
func (m *Mover) PersistedURL(ctx context.Context, taskID string) (string, bool) {
	if taskID == "" {
		return "", false
	}

	key := VideoKey(taskID)
	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		m.logger.Warn("existence check failed", "key", key, "error", err)
		return "", false
	}
	if !exists {
		return "", false
	}

	url, err := m.store.SignedURL(ctx, key, 0)
	if err != nil {
		m.logger.Warn("re-sign failed for persisted artifact", "key", key, "error", err)
		return "", false
	}
	return url, true
}

// move streams sourceURL into the store under key.
func (m *Mover) move(ctx context.Context, key, sourceURL string) (string, error) {
	if sourceURL == "" {
		return "", ErrSourceURLRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("persist: create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	url, err := m.store.Upload(ctx, key, resp.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("persist: upload %s: %w", key, err)
	}

	m.logger.Info("artifact persisted", "key", key)
	return url, nil
}

// Store uploads data under the given key and returns the durable URL.
// It exists so downstream stages can write derived artifacts through the
// same store without learning its configuration.
func (m *Mover) Store(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	url, err := m.store.Upload(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("persist: upload %s: %w", key, err)
	}
	return url, nil
}

// ResolveIfDurable re-signs a URL that already points into the durable
// store, so expired signatures on persisted artifacts heal on read.
// URLs outside the store are returned unchanged with ok=false.
func (m *Mover) ResolveIfDurable(ctx context.Context, url string) (string, bool) {
	key, ok := m.store.KeyFromURL(url)
	if !ok {
		return url, false
	}

	signed, err := m.store.SignedURL(ctx, key, 0)
	if err != nil {
		m.logger.Warn("re-sign failed, returning original URL", "key", key, "error", err)
		return url, true
	}
	return signed, true
}
