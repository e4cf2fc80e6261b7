// Package wavespeed provides an HTTP client for the Wavespeed v3 API.
package wavespeed

import "strings"

// Status represents a Wavespeed prediction status as reported by the API.
type Status string

// Wavespeed prediction statuses aligned with the v3 API.
const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Known model paths with dedicated request shapes.
const (
	ModelReferenceToVideo = "kwaivgi/kling-video-o1/reference-to-video"
	ModelVideoEdit        = "kwaivgi/kling-video-o1/video-edit"
	modelI2VStandard      = "kwaivgi/kling-v1.6-i2v-standard"
	modelI2VPro           = "kwaivgi/kling-v1.6-i2v-pro"
)

// ResolveModelPath maps a requested model name to the Wavespeed model path.
// Explicit kwaivgi/... paths pass through; kling-pro aliases upgrade to the
// pro endpoint; everything else defaults to the standard I2V model.
func ResolveModelPath(model string) string {
	if strings.HasPrefix(model, "kwaivgi/") {
		return model
	}
	if model == "kling-pro" || model == "kling-v1-pro" {
		return modelI2VPro
	}
	return modelI2VStandard
}

// GenerateParams contains the parameters for starting a generation task.
type GenerateParams struct {
	Prompt         string
	ImageURL       string   // Standard image-to-video source
	ImageURLs      []string // Reference-to-video sources
	VideoURL       string   // Video-edit source
	Model          string
	DurationSec    int
	AspectRatio    string
	NegativePrompt string
}

// generateRequest is the request body for the model endpoints. Fields are
// populated per model type; the API rejects unknown fields on some models,
// so everything optional is omitempty.
type generateRequest struct {
	Prompt            string   `json:"prompt"`
	Duration          int      `json:"duration,omitempty"`
	AspectRatio       string   `json:"aspect_ratio,omitempty"`
	Image             string   `json:"image,omitempty"`
	Images            []string `json:"images"`
	Video             *string  `json:"video,omitempty"`
	KeepOriginalSound *bool    `json:"keep_original_sound,omitempty"`
	GuidanceScale     float64  `json:"guidance_scale,omitempty"`
	NegativePrompt    string   `json:"negative_prompt,omitempty"`
}

// generateResponse is the response from the model endpoints. The task ID
// location moved across API revisions, so all three spots are checked.
type generateResponse struct {
	ID        string `json:"id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Data      struct {
		ID string `json:"id,omitempty"`
	} `json:"data"`
}

// taskID returns the first non-empty identifier in the response.
func (r generateResponse) taskID() string {
	if r.Data.ID != "" {
		return r.Data.ID
	}
	if r.RequestID != "" {
		return r.RequestID
	}
	return r.ID
}

// resultResponse is the response from GET /predictions/{id}/result.
type resultResponse struct {
	Status  string   `json:"status,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
	Data    struct {
		Status  string   `json:"status,omitempty"`
		Outputs []string `json:"outputs,omitempty"`
		Output  string   `json:"output,omitempty"`
		Error   string   `json:"error,omitempty"`
		Message string   `json:"message,omitempty"`
		Detail  string   `json:"detail,omitempty"`
	} `json:"data"`
}

// TaskResult contains the outcome of a status check.
type TaskResult struct {
	Status Status
	// URLs are the generated artifact URLs, in provider order.
	URLs []string
	// Message is the most actionable provider message found in the payload.
	Message string
}
