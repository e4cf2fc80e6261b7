package wavespeed

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

// Static errors for Wavespeed client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided or found in
	// the WAVESPEED_API_KEY environment variable.
	ErrAPIKeyNotSet = errors.New("wavespeed: WAVESPEED_API_KEY is not set")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("wavespeed: task ID is required")
	// ErrNoTaskIDReturned is returned when the generate response contains no task ID.
	ErrNoTaskIDReturned = errors.New("wavespeed: generate failed: no task ID returned")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("wavespeed: request failed")
)

// Client defines the interface for interacting with the Wavespeed v3 API.
type Client interface {
	// Generate starts a video generation task and returns its ID.
	Generate(ctx context.Context, params GenerateParams) (taskID string, err error)

	// TaskResult fetches the current state of a generation task.
	TaskResult(ctx context.Context, taskID string) (TaskResult, error)
}

// HTTPClient is the HTTP implementation of the Wavespeed Client interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Wavespeed API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// NewClient creates a new Wavespeed HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable WAVESPEED_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.wavespeed.ai/api/v3",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("WAVESPEED_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Generate starts a video generation task and returns its ID.
func (c *HTTPClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	modelPath := ResolveModelPath(params.Model)

	duration := params.DurationSec
	if duration <= 0 {
		duration = 5
	}
	aspect := params.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	reqBody := generateRequest{
		Prompt:      params.Prompt,
		Duration:    duration,
		AspectRatio: aspect,
	}

	switch modelPath {
	case ModelReferenceToVideo:
		off := false
		reqBody.KeepOriginalSound = &off
		reqBody.Images = referenceImages(params)
		empty := ""
		reqBody.Video = &empty

	case ModelVideoEdit:
		on := true
		reqBody.KeepOriginalSound = &on
		reqBody.Images = referenceImages(params)
		if params.VideoURL != "" {
			reqBody.Video = &params.VideoURL
		}

	default:
		reqBody.GuidanceScale = 0.5
		reqBody.Image = params.ImageURL
		reqBody.Images = nil
		reqBody.NegativePrompt = params.NegativePrompt
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("wavespeed: marshal request: %w", err)
	}

	var resp generateResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/"+modelPath, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.taskID() == "" {
		return "", ErrNoTaskIDReturned
	}
	return resp.taskID(), nil
}

// referenceImages collects the image inputs for the multi-image models,
// preferring the explicit array over the single image URL.
func referenceImages(params GenerateParams) []string {
	if len(params.ImageURLs) > 0 {
		return params.ImageURLs
	}
	if params.ImageURL != "" {
		return []string{params.ImageURL}
	}
	return []string{}
}

// TaskResult fetches the current state of a generation task via
// GET /predictions/{id}/result.
func (c *HTTPClient) TaskResult(ctx context.Context, taskID string) (TaskResult, error) {
	if taskID == "" {
		return TaskResult{}, ErrTaskIDRequired
	}

	var resp resultResponse
	url := fmt.Sprintf("%s/predictions/%s/result", c.baseURL, taskID)
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return TaskResult{}, err
	}

	status := resp.Data.Status
	if status == "" {
		status = resp.Status
	}

	result := TaskResult{Status: Status(status)}

	urls := resp.Data.Outputs
	if len(urls) == 0 {
		urls = resp.Outputs
	}
	if len(urls) == 0 && resp.Data.Output != "" {
		urls = []string{resp.Data.Output}
	}
	result.URLs = urls

	// First non-empty candidate wins; the payload location varies.
	for _, m := range []string{resp.Data.Error, resp.Data.Message, resp.Data.Detail, resp.Error, resp.Message} {
		if m != "" {
			result.Message = m
			break
		}
	}

	return result, nil
}

// doRequest performs a single HTTP request against the Wavespeed API.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("wavespeed: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wavespeed: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("wavespeed: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("wavespeed: unmarshal response: %w", err)
		}
	}
	return nil
}
