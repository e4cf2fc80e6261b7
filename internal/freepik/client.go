package freepik

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Static errors for Freepik client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided or found in
	// the FREEPIK_API_KEY environment variable.
	ErrAPIKeyNotSet = errors.New("freepik: FREEPIK_API_KEY is not set")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("freepik: task ID is required")
	// ErrNoTaskIDReturned is returned when the generate response contains no task ID.
	ErrNoTaskIDReturned = errors.New("freepik: generate failed: no task ID returned")
	// ErrTaskNotFound is returned when neither the image-to-video nor the
	// text-to-video endpoint knows the task.
	ErrTaskNotFound = errors.New("freepik: task not found on either endpoint")
	// ErrInlineImage is returned when a data: URI reaches the client; inline
	// payloads must be uploaded to storage before this boundary.
	ErrInlineImage = errors.New("freepik: inline image passed to client, must be uploaded to storage first")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("freepik: request failed")
)

// Client defines the interface for interacting with the Freepik AI API.
type Client interface {
	// Generate starts a video generation task and returns its ID.
	Generate(ctx context.Context, params GenerateParams) (taskID string, err error)

	// TaskStatus checks the status of a generation task. The model is needed
	// to derive the endpoint slug the task was created under.
	TaskStatus(ctx context.Context, taskID, model string) (TaskResult, error)
}

// HTTPClient is the HTTP implementation of the Freepik Client interface.
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

// WithBaseURL sets a custom base URL for the Freepik API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// NewClient creates a new Freepik HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable FREEPIK_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.freepik.com/v1/ai",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("FREEPIK_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Generate starts a video generation task and returns its ID.
// Image-to-video and text-to-video use different endpoints; the presence
// of an image URL decides which one is called.
func (c *HTTPClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	slug := ModelSlug(params.Model)

	endpointType := "text-to-video"
	if params.ImageURL != "" {
		endpointType = "image-to-video"
	}
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, endpointType, slug)

	duration := params.DurationSec
	if duration <= 0 {
		duration = 5
	}

	reqBody := generateRequest{
		Prompt:         params.Prompt,
		Duration:       strconv.Itoa(duration),
		AspectRatio:    mapAspectRatio(params.AspectRatio),
		NegativePrompt: params.NegativePrompt,
	}

	if params.ImageURL != "" {
		if err := rejectInline(params.ImageURL); err != nil {
			return "", err
		}
		// kling-elements-pro strictly requires an images array; the other
		// endpoints strictly require a single image string.
		if slug == "kling-elements-pro" {
			reqBody.Images = []string{params.ImageURL}
		} else {
			reqBody.Image = params.ImageURL
		}
	}
	if params.StaticMaskURL != "" {
		if err := rejectInline(params.StaticMaskURL); err != nil {
			return "", err
		}
		reqBody.StaticMask = params.StaticMaskURL
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("freepik: marshal request: %w", err)
	}

	var resp generateResponse
	if err := c.doRequest(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Data.TaskID == "" {
		return "", ErrNoTaskIDReturned
	}
	return resp.Data.TaskID, nil
}

// TaskStatus checks the status of a generation task. The API does not say
// which endpoint type created a task ID, so the image-to-video endpoint is
// checked first and the text-to-video one on 404.
func (c *HTTPClient) TaskStatus(ctx context.Context, taskID, model string) (TaskResult, error) {
	if taskID == "" {
		return TaskResult{}, ErrTaskIDRequired
	}
	slug := ModelSlug(model)

	for _, endpointType := range []string{"image-to-video", "text-to-video"} {
		url := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, endpointType, slug, taskID)

		var resp statusResponse
		err := c.doRequest(ctx, http.MethodGet, url, nil, &resp)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code == http.StatusNotFound {
				continue
			}
			return TaskResult{}, err
		}

		result := TaskResult{
			Status:  Status(resp.Data.Status),
			Message: resp.Message,
		}
		for _, g := range resp.Data.Generated {
			if u := generatedURL(g); u != "" {
				result.URLs = append(result.URLs, u)
			}
		}
		return result, nil
	}

	return TaskResult{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// doRequest performs a single HTTP request against the Freepik API.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("freepik: create request: %w", err)
	}

	req.Header.Set("x-freepik-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("freepik: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("freepik: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("freepik: unmarshal response: %w", err)
		}
	}
	return nil
}

// rejectInline fails fast on data: URIs.
func rejectInline(url string) error {
	if len(url) >= 5 && url[:5] == "data:" {
		return ErrInlineImage
	}
	return nil
}

// statusError carries a non-2xx HTTP status for callers that branch on 404.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v with status %d: %s", ErrRequestFailed, e.code, e.body)
}

func (e *statusError) Unwrap() error {
	return ErrRequestFailed
}
