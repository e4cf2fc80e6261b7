// Package generate accepts video generation requests, resolves their inputs
// to fetchable URLs, routes them to a provider, and creates the task record.
package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/recastlabs/recast-api/internal/provider"
	"github.com/recastlabs/recast-api/internal/remux"
	"github.com/recastlabs/recast-api/internal/router"
	"github.com/recastlabs/recast-api/internal/storage"
	"github.com/recastlabs/recast-api/internal/task"
)

// Request is a video generation submission. Images may be fetchable URLs
// or inline data: URIs; inline payloads are staged to the durable store
// before they reach any provider.
type Request struct {
	Model          string
	Prompt         string
	Images         []string
	SourceVideoURL string
	DurationSec    int
	AspectRatio    string
	NegativePrompt string
	StaticMaskURL  string
	AudioTracks    []remux.Track
}

// Service submits generation jobs and records them.
type Service struct {
	repo   task.Repository
	router *router.Router
	store  storage.Store
	logger *slog.Logger
}

// NewService creates a generate Service.
func NewService(repo task.Repository, rt *router.Router, store storage.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, router: rt, store: store, logger: logger}
}

// Submit routes the request to a provider, submits it, and saves the task
// record in the processing state. Routing and submission errors are
// synchronous; no record is created for them.
func (s *Service) Submit(ctx context.Context, req Request) (*task.Record, error) {
	images := make([]string, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, s.resolveImage(ctx, img))
	}

	adapter, err := s.router.Select(req.Model)
	if err != nil {
		return nil, err
	}

	taskID, err := adapter.Submit(ctx, provider.SubmitRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		ImageURLs:      images,
		SourceVideoURL: req.SourceVideoURL,
		DurationSec:    req.DurationSec,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
		StaticMaskURL:  req.StaticMaskURL,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: submit to %s: %w", adapter.Name(), err)
	}

	rec := task.New(taskID, adapter.Name(), req.Model)
	rec.Prompt = req.Prompt
	rec.AudioTracks = req.AudioTracks
	rec.AspectRatio = req.AspectRatio

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("generate: save record: %w", err)
	}

	s.logger.Info("generation submitted",
		"task_id", taskID, "provider", adapter.Name(), "model", req.Model)
	return rec, nil
}

// resolveImage stages inline data: URIs to the durable store and returns
// the staged URL. Fetchable URLs pass through; a failed staging upload
// falls back to the original reference rather than failing the submission.
func (s *Service) resolveImage(ctx context.Context, image string) string {
	if !strings.HasPrefix(image, "data:") {
		return image
	}
	if s.store == nil {
		return image
	}

	contentType, payload, err := decodeDataURI(image)
	if err != nil {
		s.logger.Warn("inline image decode failed, passing original reference", "error", err)
		return image
	}

	key := fmt.Sprintf("temp-gen/%s%s", uuid.NewString(), extensionFor(contentType))
	url, err := s.store.Upload(ctx, key, bytes.NewReader(payload), contentType)
	if err != nil {
		s.logger.Warn("inline image staging failed, passing original reference",
			"key", key, "error", err)
		return image
	}
	return url
}

// decodeDataURI splits a data: URI into its content type and decoded payload.
func decodeDataURI(uri string) (string, []byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("generate: malformed data URI")
	}

	contentType := "application/octet-stream"
	base64Encoded := false
	for i, part := range strings.Split(meta, ";") {
		if i == 0 && part != "" {
			contentType = part
			continue
		}
		if part == "base64" {
			base64Encoded = true
		}
	}

	if !base64Encoded {
		return "", nil, fmt.Errorf("generate: unsupported data URI encoding")
	}

	payload, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, fmt.Errorf("generate: decode data URI: %w", err)
	}
	return contentType, payload, nil
}

// extensionFor maps staged image content types to file extensions.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
