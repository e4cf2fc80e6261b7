// Package replicate provides an HTTP client for the Replicate predictions API.
package replicate

import "encoding/json"

// Status represents a Replicate prediction status as reported by the API.
type Status string

// Replicate prediction statuses aligned with the Replicate API.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// PredictionParams contains the parameters for creating a prediction.
type PredictionParams struct {
	Model          string // Alias model name, e.g. "svd", "minimax", "wan21"
	Prompt         string
	ImageURL       string
	MaskURL        string // Experimental inpainting mask, passed where supported
	AspectRatio    string
	NegativePrompt string
}

// createRequest is the request body for POST /v1/predictions.
type createRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

// Prediction is a Replicate prediction as returned by the API.
// Output shape varies per model: a bare string, an array of strings, or an
// object; OutputURL flattens them.
type Prediction struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// OutputURL extracts the artifact URL from the prediction output.
// Arrays take the first element; extra indicates more than one was returned.
func (p Prediction) OutputURL() (url string, extra int) {
	if len(p.Output) == 0 {
		return "", 0
	}

	var s string
	if err := json.Unmarshal(p.Output, &s); err == nil {
		return s, 0
	}

	var arr []string
	if err := json.Unmarshal(p.Output, &arr); err == nil && len(arr) > 0 {
		return arr[0], len(arr) - 1
	}

	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(p.Output, &obj); err == nil {
		return obj.URL, 0
	}
	return "", 0
}

// ErrorMessage extracts the provider error as a plain string when present.
func (p Prediction) ErrorMessage() string {
	if len(p.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Error, &s); err == nil {
		return s
	}
	return string(p.Error)
}

// modelResponse is the response from GET /v1/models/{owner}/{name}.
type modelResponse struct {
	LatestVersion struct {
		ID string `json:"id"`
	} `json:"latest_version"`
}
