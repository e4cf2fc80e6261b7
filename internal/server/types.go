// Package server provides the HTTP surface over the generation pipeline.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// AudioTrackRequest describes one audio track to remux onto the generated video.
type AudioTrackRequest struct {
	// SourceURL is the fetchable URL of the audio source.
	SourceURL string `json:"source_url" validate:"required,url"`
	// StartTime is where the track starts in the output, in seconds.
	StartTime float64 `json:"start_time" validate:"gte=0"`
	// Duration is how long the track plays in the output, in seconds.
	Duration float64 `json:"duration" validate:"required,gt=0"`
	// SourceStart is the trim offset into the source, in seconds.
	SourceStart float64 `json:"source_start" validate:"gte=0"`
}

// GenerateRequest is the HTTP request body for submitting a generation.
type GenerateRequest struct {
	// Model is the requested generation model; routing derives the provider from it.
	Model string `json:"model" validate:"required"`
	// Prompt is the generation prompt.
	Prompt string `json:"prompt" validate:"required"`
	// Images are source image references: fetchable URLs or inline data: URIs.
	Images []string `json:"images,omitempty" validate:"max=10"`
	// SourceVideoURL is the source video for video-to-video edits.
	SourceVideoURL string `json:"source_video_url,omitempty" validate:"omitempty,url"`
	// Duration is the requested output duration in seconds.
	Duration int `json:"duration,omitempty" validate:"omitempty,min=1,max=60"`
	// AspectRatio is the target output ratio, e.g. "16:9".
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// NegativePrompt steers generation away from unwanted content.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// StaticMaskURL is an optional inpainting mask URL.
	StaticMaskURL string `json:"static_mask_url,omitempty" validate:"omitempty,url"`
	// AudioTracks to remux onto the finished video. Empty means no remux.
	AudioTracks []AudioTrackRequest `json:"audio_tracks,omitempty" validate:"dive"`
}

// GenerateResponse is the HTTP response after submitting a generation.
type GenerateResponse struct {
	// TaskID is the provider-assigned task identifier.
	TaskID string `json:"task_id"`
	// Provider is the backend the router selected.
	Provider string `json:"provider"`
	// Status is the initial task status.
	Status string `json:"status"`
}

// StatusResponse is the HTTP response for a status poll.
type StatusResponse struct {
	// TaskID is the task identifier.
	TaskID string `json:"task_id"`
	// Status is the current task status.
	Status string `json:"status"`
	// VideoURL is the artifact URL, set when completed.
	VideoURL string `json:"video_url,omitempty"`
	// Error contains the failure reason when the task failed.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
