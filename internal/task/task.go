// Package task provides the task Record for tracking video generation jobs.
// It includes the canonical status state machine shared by every provider
// and repository interfaces for persistence.
package task

import (
	"errors"
	"time"

	"github.com/recastlabs/recast-api/internal/remux"
)

// Provider represents the video generation backend that owns a task.
type Provider string

const (
	// ProviderFreepik routes through the Freepik AI API.
	ProviderFreepik Provider = "freepik"
	// ProviderReplicate routes through the Replicate predictions API.
	ProviderReplicate Provider = "replicate"
	// ProviderWavespeed routes through the Wavespeed v3 API.
	ProviderWavespeed Provider = "wavespeed"
	// ProviderAtlas routes through the Atlas Cloud API.
	ProviderAtlas Provider = "atlas"
	// ProviderKling routes through the legacy signed Kling API.
	ProviderKling Provider = "kling"
)

// IsValid returns true if the provider is one of the known backends.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderFreepik, ProviderReplicate, ProviderWavespeed, ProviderAtlas, ProviderKling:
		return true
	default:
		return false
	}
}

// Status represents the current state of a task Record.
type Status string

const (
	// StatusProcessing indicates the provider has not finished the job yet.
	StatusProcessing Status = "processing"
	// StatusMixingAudio indicates the generated video is being remuxed with audio.
	StatusMixingAudio Status = "mixing_audio"
	// StatusCompleted indicates the job finished and the artifact URL is final.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job failed with an error message.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if no further automatic transition occurs.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusProcessing:  {StatusMixingAudio, StatusCompleted, StatusFailed},
	StatusMixingAudio: {StatusCompleted, StatusFailed},
	StatusCompleted:   {},
	StatusFailed:      {},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Update carries the only fields a status transition is permitted to change.
// Nil fields are left untouched.
type Update struct {
	// VideoURL is the durable artifact URL, set on completion.
	VideoURL *string
	// ErrorMessage is the failure reason, set when transitioning to failed.
	ErrorMessage *string
}

// Record is the durable row describing a single generation task.
// It is created at submission time and mutated only by the status resolver.
type Record struct {
	// TaskID is the provider-assigned identifier, used as the lookup key.
	TaskID string `json:"task_id"`
	// Provider is the backend that owns this task. Immutable once set;
	// subsequent polls must use this value, never a client-supplied hint.
	Provider Provider `json:"provider"`
	// Model is the generation model requested at submission time.
	Model string `json:"model"`
	// Prompt is the generation prompt, echoed for diagnostics.
	Prompt string `json:"prompt"`
	// AudioTracks describes the audio to remux onto the generated video.
	// Empty when the template has no audio.
	AudioTracks []remux.Track `json:"audio_tracks,omitempty"`
	// AspectRatio is the target output ratio for the remux stage.
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// Status is the current task state.
	Status Status `json:"status"`
	// VideoURL is the durable artifact URL. Only finalized on completion.
	VideoURL string `json:"video_url,omitempty"`
	// ErrorMessage holds the failure reason when Status is failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a Record in the initial processing state.
func New(taskID string, provider Provider, model string) *Record {
	now := time.Now()
	return &Record{
		TaskID:    taskID,
		Provider:  provider,
		Model:     model,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NeedsRemux returns true if the task requires the audio remux stage
// before it is considered complete.
func (r *Record) NeedsRemux() bool {
	return len(r.AudioTracks) > 0
}

// Apply mutates the record with the permitted update fields.
func (r *Record) Apply(to Status, up Update) {
	r.Status = to
	if up.VideoURL != nil {
		r.VideoURL = *up.VideoURL
	}
	if up.ErrorMessage != nil {
		r.ErrorMessage = *up.ErrorMessage
	}
	r.UpdatedAt = time.Now()
}

// Clone creates a copy of the record for safe reads.
func (r *Record) Clone() *Record {
	c := *r
	if r.AudioTracks != nil {
		c.AudioTracks = make([]remux.Track, len(r.AudioTracks))
		copy(c.AudioTracks, r.AudioTracks)
	}
	return &c
}
