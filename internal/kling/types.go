// Package kling provides an HTTP client for the Kling open API, using the
// HS256 bearer tokens the platform requires.
package kling

import "strings"

// Status represents a Kling task status as reported by the API.
type Status string

// Kling task statuses.
const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusSucceed    Status = "succeed"
	StatusFailed     Status = "failed"
)

// modelName maps legacy kling* model aliases to the API model name.
func modelName(model string) string {
	switch model {
	case "kling-pro", "kling-v1-pro":
		return "kling-v1"
	}
	if strings.HasPrefix(model, "kling") {
		return "kling-v1"
	}
	return model
}

// modelMode returns the generation mode for a model alias.
func modelMode(model string) string {
	if model == "kling-pro" || model == "kling-v1-pro" {
		return "pro"
	}
	return "std"
}

// GenerateParams contains the parameters for starting a generation task.
type GenerateParams struct {
	Prompt         string
	ImageURL       string
	Model          string
	DurationSec    int
	AspectRatio    string
	NegativePrompt string
}

// generateRequest is the request body for the video creation endpoints.
type generateRequest struct {
	ModelName      string `json:"model_name"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Image          string `json:"image,omitempty"`
	Mode           string `json:"mode"`
	Duration       string `json:"duration"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
}

// apiResponse is the envelope every Kling endpoint returns.
type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg,omitempty"`
		TaskResult    struct {
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// TaskResult contains the outcome of a status check.
type TaskResult struct {
	Status  Status
	URLs    []string
	Message string
}
