// Package atlas provides an HTTP client for the AtlasCloud model API.
package atlas

import "strings"

// Status represents an AtlasCloud prediction status as reported by the API.
type Status string

// AtlasCloud prediction statuses.
const (
	StatusCreated    Status = "created"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// defaultModel is used when the requested model is an unnamespaced alias.
const defaultModel = "kwaivgi/kling-v2.1-i2v-standard"

// ResolveModel maps a requested model name to the AtlasCloud model path.
// Namespaced paths pass through untouched; aliases fall back to the default.
func ResolveModel(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return defaultModel
}

// GenerateParams contains the parameters for starting a generation task.
type GenerateParams struct {
	Prompt      string
	ImageURLs   []string
	Model       string
	DurationSec int
	AspectRatio string
}

// generateRequest is the request body for POST /api/v1/model/generateVideo.
type generateRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	AspectRatio       string   `json:"aspect_ratio"`
	Duration          int      `json:"duration"`
	Images            []string `json:"images"`
	KeepOriginalSound bool     `json:"keep_original_sound"`
	Video             string   `json:"video"`
}

// generateResponse is the response from the generateVideo endpoint.
type generateResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// predictionResponse is the response from GET /api/v1/model/prediction/{id}.
type predictionResponse struct {
	Data struct {
		ID      string   `json:"id"`
		Status  string   `json:"status"`
		Outputs []string `json:"outputs,omitempty"`
		Error   string   `json:"error,omitempty"`
		Message string   `json:"message,omitempty"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}

// TaskResult contains the outcome of a status check.
type TaskResult struct {
	Status  Status
	URLs    []string
	Message string
}
