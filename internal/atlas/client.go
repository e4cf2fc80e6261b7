package atlas

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

// Static errors for AtlasCloud client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided or found in
	// the ATLASCLOUD_API_KEY environment variable.
	ErrAPIKeyNotSet = errors.New("atlas: ATLASCLOUD_API_KEY is not set")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("atlas: task ID is required")
	// ErrNoTaskIDReturned is returned when the generate response contains no task ID.
	ErrNoTaskIDReturned = errors.New("atlas: generate failed: no task ID returned")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("atlas: request failed")
)

// Client defines the interface for interacting with the AtlasCloud API.
type Client interface {
	// Generate starts a video generation task and returns its ID.
	Generate(ctx context.Context, params GenerateParams) (taskID string, err error)

	// Prediction fetches the current state of a generation task.
	Prediction(ctx context.Context, taskID string) (TaskResult, error)
}

// HTTPClient is the HTTP implementation of the AtlasCloud Client interface.
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

// WithBaseURL sets a custom base URL for the AtlasCloud API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// NewClient creates a new AtlasCloud HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable ATLASCLOUD_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.atlascloud.ai",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("ATLASCLOUD_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Generate starts a video generation task via POST /api/v1/model/generateVideo.
func (c *HTTPClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	duration := params.DurationSec
	if duration <= 0 {
		duration = 5
	}
	aspect := params.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	images := params.ImageURLs
	if images == nil {
		images = []string{}
	}

	reqBody := generateRequest{
		Model:             ResolveModel(params.Model),
		Prompt:            params.Prompt,
		AspectRatio:       aspect,
		Duration:          duration,
		Images:            images,
		KeepOriginalSound: false,
		Video:             "",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("atlas: marshal request: %w", err)
	}

	var resp generateResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/api/v1/model/generateVideo", bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Data.ID == "" {
		return "", ErrNoTaskIDReturned
	}
	return resp.Data.ID, nil
}

// Prediction fetches the current state of a generation task via
// GET /api/v1/model/prediction/{id}.
func (c *HTTPClient) Prediction(ctx context.Context, taskID string) (TaskResult, error) {
	if taskID == "" {
		return TaskResult{}, ErrTaskIDRequired
	}

	var resp predictionResponse
	url := fmt.Sprintf("%s/api/v1/model/prediction/%s", c.baseURL, taskID)
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return TaskResult{}, err
	}

	result := TaskResult{
		Status: Status(resp.Data.Status),
		URLs:   resp.Data.Outputs,
	}
	for _, m := range []string{resp.Data.Error, resp.Data.Message, resp.Message} {
		if m != "" {
			result.Message = m
			break
		}
	}
	return result, nil
}

// doRequest performs a single HTTP request against the AtlasCloud API.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("atlas: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("atlas: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("atlas: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("atlas: unmarshal response: %w", err)
		}
	}
	return nil
}
