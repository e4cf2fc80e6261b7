// Package freepik provides an HTTP client for the Freepik AI video generation API.
package freepik

import (
	"encoding/json"
	"strings"
)

// Status represents a Freepik task status as reported by the API.
type Status string

// Freepik task statuses aligned with the Freepik API.
const (
	StatusCreated    Status = "CREATED"
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

// GenerateParams contains the parameters for starting a generation task.
type GenerateParams struct {
	Prompt         string
	ImageURL       string // Image-to-video source; empty means text-to-video
	StaticMaskURL  string // Optional inpainting mask
	Model          string
	NegativePrompt string
	DurationSec    int
	AspectRatio    string // "16:9", "9:16", "1:1" or a Freepik enum value
}

// ModelSlug determines the endpoint slug for the given model.
// kling-elements-pro has its own endpoint; every other kling variant goes
// through the v2.1 master endpoint; anything else maps directly.
func ModelSlug(model string) string {
	if model == "kling-elements-pro" {
		return "kling-elements-pro"
	}
	if strings.HasPrefix(model, "kling") {
		return "kling-v2-1-master"
	}
	return model
}

// aspectRatios maps common ratios to the Freepik aspect ratio enum.
// Valid enum values pass through unchanged.
var aspectRatios = map[string]string{
	"16:9":             "widescreen_16_9",
	"9:16":             "social_story_9_16",
	"1:1":              "square_1_1",
	"widescreen_16_9":  "widescreen_16_9",
	"social_story_9_16": "social_story_9_16",
	"square_1_1":       "square_1_1",
}

// mapAspectRatio converts a ratio to the Freepik enum, defaulting to widescreen.
func mapAspectRatio(ratio string) string {
	if v, ok := aspectRatios[ratio]; ok {
		return v
	}
	return "widescreen_16_9"
}

// generateRequest is the request body for the generation endpoints.
type generateRequest struct {
	Prompt         string   `json:"prompt"`
	Duration       string   `json:"duration"`
	AspectRatio    string   `json:"aspect_ratio"`
	Image          string   `json:"image,omitempty"`
	Images         []string `json:"images,omitempty"`
	StaticMask     string   `json:"static_mask,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
}

// generateResponse is the response from the generation endpoints.
type generateResponse struct {
	Data struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusResponse is the response from the task status endpoint.
type statusResponse struct {
	Data struct {
		TaskID    string            `json:"task_id"`
		Status    string            `json:"status"`
		Generated []json.RawMessage `json:"generated"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}

// TaskResult contains the outcome of a status check.
type TaskResult struct {
	Status Status
	// URLs are the generated artifact URLs, in provider order.
	URLs []string
	// Message is a provider message, when present.
	Message string
}

// generatedURL extracts a URL from a generated entry, which the API returns
// either as a bare string or as an object with a url field.
func generatedURL(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}
