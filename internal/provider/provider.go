// Package provider defines the common contract every video generation
// backend adapts into. Adapters normalize each backend's status vocabulary
// and response shapes, so no caller above this boundary ever branches on
// provider-specific payloads.
package provider

import (
	"context"
	"errors"

	"github.com/recastlabs/recast-api/internal/task"
)

// NormalizedStatus is the canonical three-state vocabulary all backends map into.
type NormalizedStatus string

const (
	// StatusProcessing indicates the backend has not produced a result yet.
	// Any status string an adapter does not recognize maps here, never to a
	// terminal state.
	StatusProcessing NormalizedStatus = "processing"
	// StatusCompleted indicates the backend finished and produced an artifact.
	StatusCompleted NormalizedStatus = "completed"
	// StatusFailed indicates the backend reported a failure.
	StatusFailed NormalizedStatus = "failed"
)

// ErrNotConfigured is returned when an adapter is used without credentials.
var ErrNotConfigured = errors.New("provider: not configured")

// SubmitRequest contains the normalized parameters for submitting a job.
// Image references must already be fetchable URLs; inline payloads are
// resolved to storage URLs before this boundary.
type SubmitRequest struct {
	Model          string   // Requested model name
	Prompt         string   // Generation prompt
	ImageURLs      []string // Zero or more source image URLs
	SourceVideoURL string   // Source video for video-to-video edits
	DurationSec    int      // Requested output duration in seconds
	AspectRatio    string   // Requested aspect ratio, e.g. "16:9"
	NegativePrompt string   // Optional negative prompt
	StaticMaskURL  string   // Optional inpainting mask URL
}

// PollResult is the tagged result every adapter's Poll returns.
type PollResult struct {
	Status NormalizedStatus // Canonical status
	URL    string           // Ephemeral artifact URL (only when completed)
	// Message is a best-effort human-readable provider message,
	// used as the failure reason when Status is failed.
	Message string
}

// Adapter is implemented once per backend. Adapters carry no state beyond
// their HTTP client and never touch the task record; only the status
// resolver writes shared state.
type Adapter interface {
	// Name identifies the backend this adapter fronts.
	Name() task.Provider

	// Submit sends a generation job and returns the provider-assigned task ID.
	// Missing credentials fail fast with ErrNotConfigured (or a wrapped
	// client sentinel); this is a configuration error, not a transient one.
	Submit(ctx context.Context, req SubmitRequest) (taskID string, err error)

	// Poll checks a job's status. The model the job was created with is
	// passed along because some backends key their status endpoints by model.
	// Transport errors are returned as err; provider-reported outcomes
	// arrive through the PollResult.
	Poll(ctx context.Context, taskID, model string) (PollResult, error)
}
