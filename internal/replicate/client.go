package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for Replicate client operations.
var (
	// ErrTokenNotSet is returned when no API token is provided or found in
	// the REPLICATE_API_TOKEN environment variable.
	ErrTokenNotSet = errors.New("replicate: REPLICATE_API_TOKEN is not set")
	// ErrPredictionIDRequired is returned when the prediction ID is not provided.
	ErrPredictionIDRequired = errors.New("replicate: prediction ID is required")
	// ErrUnknownModel is returned when no version mapping exists for a model.
	ErrUnknownModel = errors.New("replicate: unknown model")
	// ErrNoVersion is returned when a model lookup yields no latest version.
	ErrNoVersion = errors.New("replicate: model has no latest version")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("replicate: request failed")
)

// pinnedVersions maps alias models to fixed version hashes.
var pinnedVersions = map[string]string{
	"svd":          "3f0457e4619daac51203dedb472816fd4af51f3149fa7a9e0b5ffcf1b8172438",
	"animate-diff": "beecf59c4aee8d81bf04f0381033dfa10dc16e845b4ae00d281e2fa377e48a9f",
}

// lookupModels maps alias models to owner/name pairs resolved to their
// latest version at submit time.
var lookupModels = map[string][2]string{
	"minimax": {"minimax", "video-01"},
	"luma":    {"luma", "ray"},
	"hunyuan": {"tencent", "hunyuan-video"},
}

// Client defines the interface for interacting with the Replicate API.
type Client interface {
	// CreatePrediction starts an async prediction and returns it.
	CreatePrediction(ctx context.Context, params PredictionParams) (Prediction, error)

	// PredictionStatus fetches the current state of a prediction.
	PredictionStatus(ctx context.Context, predictionID string) (Prediction, error)
}

// HTTPClient is the HTTP implementation of the Replicate Client interface.
type HTTPClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Replicate API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// NewClient creates a new Replicate HTTP client.
// The token can be set via the WithToken option. If not provided,
// it is read from the environment variable REPLICATE_API_TOKEN.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.replicate.com/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.token == "" {
		c.token = os.Getenv("REPLICATE_API_TOKEN")
	}

	if c.token == "" {
		return nil, ErrTokenNotSet
	}

	return c, nil
}

// CreatePrediction starts an async prediction via POST /predictions.
func (c *HTTPClient) CreatePrediction(ctx context.Context, params PredictionParams) (Prediction, error) {
	version, input, err := c.resolveModel(ctx, params)
	if err != nil {
		return Prediction{}, err
	}

	bodyBytes, err := json.Marshal(createRequest{Version: version, Input: input})
	if err != nil {
		return Prediction{}, fmt.Errorf("replicate: marshal request: %w", err)
	}

	var pred Prediction
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/predictions", bodyBytes, &pred); err != nil {
		return Prediction{}, err
	}
	return pred, nil
}

// PredictionStatus fetches the current state of a prediction.
func (c *HTTPClient) PredictionStatus(ctx context.Context, predictionID string) (Prediction, error) {
	if predictionID == "" {
		return Prediction{}, ErrPredictionIDRequired
	}

	var pred Prediction
	url := fmt.Sprintf("%s/predictions/%s", c.baseURL, predictionID)
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &pred); err != nil {
		return Prediction{}, err
	}
	return pred, nil
}

// resolveModel maps an alias model to a version hash and input payload.
func (c *HTTPClient) resolveModel(ctx context.Context, params PredictionParams) (string, map[string]any, error) {
	aspect := params.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	switch params.Model {
	case "svd":
		input := map[string]any{
			"input_image":       params.ImageURL,
			"video_length":      "25_frames_with_svd_xt",
			"sizing_strategy":   "maintain_aspect_ratio",
			"frames_per_second": 6,
			"motion_bucket_id":  127,
			"cond_aug":          0.02,
		}
		if params.MaskURL != "" {
			input["mask"] = params.MaskURL
		}
		return pinnedVersions["svd"], input, nil

	case "animate-diff":
		return pinnedVersions["animate-diff"], map[string]any{
			"prompt":        params.Prompt,
			"motion_module": "mm_sd_v15_v2.ckpt",
		}, nil

	case "minimax":
		version, err := c.latestVersion(ctx, "minimax", "video-01")
		if err != nil {
			return "", nil, err
		}
		input := map[string]any{
			"prompt":            params.Prompt,
			"first_frame_image": params.ImageURL,
		}
		if params.MaskURL != "" {
			input["mask"] = params.MaskURL
		}
		return version, input, nil

	case "luma":
		version, err := c.latestVersion(ctx, "luma", "ray")
		if err != nil {
			return "", nil, err
		}
		return version, map[string]any{
			"prompt":       params.Prompt,
			"aspect_ratio": aspect,
			"loop":         false,
		}, nil

	case "hunyuan":
		version, err := c.latestVersion(ctx, "tencent", "hunyuan-video")
		if err != nil {
			return "", nil, err
		}
		return version, map[string]any{
			"prompt":       params.Prompt,
			"video_length": 129,
			"resolution":   "1280x720",
		}, nil

	case "wan21":
		// Image-to-video and text-to-video are separate models.
		input := map[string]any{
			"prompt":             params.Prompt,
			"aspect_ratio":       aspect,
			"sample_shift":       5,
			"sample_steps":       30,
			"sample_guide_scale": 5,
		}
		name := "wan-2.1-t2v-720p"
		if params.ImageURL != "" {
			name = "wan-2.1-i2v-720p"
			input["image"] = params.ImageURL
			input["num_frames"] = 81
		}
		version, err := c.latestVersion(ctx, "wavespeedai", name)
		if err != nil {
			return "", nil, err
		}
		return version, input, nil
	}

	return "", nil, fmt.Errorf("%w: %s", ErrUnknownModel, params.Model)
}

// latestVersion resolves a model's latest version ID via the models endpoint.
func (c *HTTPClient) latestVersion(ctx context.Context, owner, name string) (string, error) {
	var resp modelResponse
	url := fmt.Sprintf("%s/models/%s/%s", c.baseURL, owner, name)
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return "", err
	}
	if resp.LatestVersion.ID == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrNoVersion, owner, name)
	}
	return resp.LatestVersion.ID, nil
}

// doRequest performs a single HTTP request against the Replicate API.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("replicate: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("replicate: unmarshal response: %w", err)
		}
	}
	return nil
}
