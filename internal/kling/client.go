package kling

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

	"github.com/golang-jwt/jwt/v5"
)

// Static errors for Kling client operations.
var (
	// ErrCredentialsNotSet is returned when the access or secret key is
	// missing from both the options and the environment.
	ErrCredentialsNotSet = errors.New("kling: KLING_ACCESS_KEY or KLING_SECRET_KEY is not set")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("kling: task ID is required")
	// ErrNoTaskIDReturned is returned when the generate response contains no task ID.
	ErrNoTaskIDReturned = errors.New("kling: generate failed: no task ID returned")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("kling: request failed")
	// ErrAPIError is returned when the API envelope carries a non-zero code.
	ErrAPIError = errors.New("kling: api error")
)

// Client defines the interface for interacting with the Kling open API.
type Client interface {
	// Generate starts a video generation task and returns its ID.
	Generate(ctx context.Context, params GenerateParams) (taskID string, err error)

	// TaskStatus fetches the current state of a generation task.
	TaskStatus(ctx context.Context, taskID string) (TaskResult, error)
}

// HTTPClient is the HTTP implementation of the Kling Client interface.
type HTTPClient struct {
	accessKey  string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithCredentials sets the access and secret keys for token signing.
func WithCredentials(accessKey, secretKey string) ClientOption {
	return func(hc *HTTPClient) {
		hc.accessKey = accessKey
		hc.secretKey = secretKey
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Kling API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// NewClient creates a new Kling HTTP client.
// Credentials can be set via WithCredentials. If not provided, they are
// read from the KLING_ACCESS_KEY and KLING_SECRET_KEY environment variables.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.klingai.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.accessKey == "" {
		c.accessKey = os.Getenv("KLING_ACCESS_KEY")
	}
	if c.secretKey == "" {
		c.secretKey = os.Getenv("KLING_SECRET_KEY")
	}

	if c.accessKey == "" || c.secretKey == "" {
		return nil, ErrCredentialsNotSet
	}

	return c, nil
}

// bearerToken signs a short-lived HS256 token the way the platform expects:
// issuer is the access key, expiry 30 minutes out, not-before 5 seconds back.
func (c *HTTPClient) bearerToken() (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": c.accessKey,
		"exp": now.Add(30 * time.Minute).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	})
	signed, err := token.SignedString([]byte(c.secretKey))
	if err != nil {
		return "", fmt.Errorf("kling: sign token: %w", err)
	}
	return signed, nil
}

// Generate starts a video generation task and returns its ID.
// Image-to-video and text-to-video use different endpoints; the presence
// of an image URL decides which one is called.
func (c *HTTPClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	endpoint := "/v1/videos/text2video"
	if params.ImageURL != "" {
		endpoint = "/v1/videos/image2video"
	}

	duration := params.DurationSec
	if duration <= 0 {
		duration = 5
	}

	reqBody := generateRequest{
		ModelName:      modelName(params.Model),
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		Image:          params.ImageURL,
		Mode:           modelMode(params.Model),
		Duration:       strconv.Itoa(duration),
		AspectRatio:    params.AspectRatio,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("kling: marshal request: %w", err)
	}

	var resp apiResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+endpoint, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Data.TaskID == "" {
		return "", ErrNoTaskIDReturned
	}
	return resp.Data.TaskID, nil
}

// TaskStatus fetches the current state of a generation task via
// GET /v1/videos/status/{taskID}.
func (c *HTTPClient) TaskStatus(ctx context.Context, taskID string) (TaskResult, error) {
	if taskID == "" {
		return TaskResult{}, ErrTaskIDRequired
	}

	var resp apiResponse
	url := fmt.Sprintf("%s/v1/videos/status/%s", c.baseURL, taskID)
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return TaskResult{}, err
	}

	result := TaskResult{
		Status:  Status(resp.Data.TaskStatus),
		Message: resp.Data.TaskStatusMsg,
	}
	for _, v := range resp.Data.TaskResult.Videos {
		if v.URL != "" {
			result.URLs = append(result.URLs, v.URL)
		}
	}
	return result, nil
}

// doRequest performs a single HTTP request against the Kling API, signing
// a fresh bearer token per call.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result *apiResponse) error {
	token, err := c.bearerToken()
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("kling: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kling: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kling: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("kling: unmarshal response: %w", err)
		}
		if result.Code != 0 {
			return fmt.Errorf("%w: code %d: %s", ErrAPIError, result.Code, result.Message)
		}
	}
	return nil
}
