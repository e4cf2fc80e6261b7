package atlas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"kwaivgi/kling-v2.1-i2v-pro", "kwaivgi/kling-v2.1-i2v-pro"},
		{"atlascloud/some-model", "atlascloud/some-model"},
		{"kling", defaultModel},
		{"kling-v1", defaultModel},
	}
	for _, tt := range tests {
		if got := ResolveModel(tt.model); got != tt.want {
			t.Errorf("ResolveModel(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/model/generateVideo" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Error("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "at-1"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	taskID, err := c.Generate(context.Background(), GenerateParams{
		Model:     "kling",
		Prompt:    "a cat",
		ImageURLs: []string{"https://img/1.png"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if taskID != "at-1" {
		t.Errorf("taskID = %q", taskID)
	}
	if gotBody.Model != defaultModel {
		t.Errorf("model = %q, want %q", gotBody.Model, defaultModel)
	}
	if gotBody.KeepOriginalSound {
		t.Error("keep_original_sound must be false")
	}
	if gotBody.Video != "" {
		t.Errorf("video = %q, want empty", gotBody.Video)
	}
	if len(gotBody.Images) != 1 {
		t.Errorf("images = %v", gotBody.Images)
	}
	if gotBody.Duration != 5 {
		t.Errorf("duration = %d, want default 5", gotBody.Duration)
	}
}

func TestPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/model/prediction/at-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":      "at-1",
				"status":  "completed",
				"outputs": []string{"https://cdn/out.mp4"},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := c.Prediction(context.Background(), "at-1")
	if err != nil {
		t.Fatalf("Prediction: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.URLs) != 1 || res.URLs[0] != "https://cdn/out.mp4" {
		t.Errorf("urls = %v", res.URLs)
	}
}

func TestPredictionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":     "at-1",
				"status": "failed",
				"error":  "model overloaded",
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := c.Prediction(context.Background(), "at-1")
	if err != nil {
		t.Fatalf("Prediction: %v", err)
	}
	if res.Status != StatusFailed || res.Message != "model overloaded" {
		t.Errorf("result = %s/%q", res.Status, res.Message)
	}
}

func TestClientErrors(t *testing.T) {
	t.Setenv("ATLASCLOUD_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("err = %v, want ErrAPIKeyNotSet", err)
	}

	c, err := NewClient(WithAPIKey("k"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Prediction(context.Background(), ""); !errors.Is(err, ErrTaskIDRequired) {
		t.Errorf("err = %v, want ErrTaskIDRequired", err)
	}
}
