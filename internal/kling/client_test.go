package kling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("KLING_ACCESS_KEY", "")
	t.Setenv("KLING_SECRET_KEY", "")

	if _, err := NewClient(); !errors.Is(err, ErrCredentialsNotSet) {
		t.Errorf("err = %v, want ErrCredentialsNotSet", err)
	}
	if _, err := NewClient(WithCredentials("ak", "")); !errors.Is(err, ErrCredentialsNotSet) {
		t.Errorf("err = %v, want ErrCredentialsNotSet", err)
	}
	if _, err := NewClient(WithCredentials("ak", "sk")); err != nil {
		t.Errorf("NewClient: %v", err)
	}
}

func TestBearerTokenClaims(t *testing.T) {
	c, err := NewClient(WithCredentials("ak", "sk"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	signed, err := c.bearerToken()
	if err != nil {
		t.Fatalf("bearerToken: %v", err)
	}

	token, err := jwt.Parse(signed, func(tk *jwt.Token) (any, error) {
		if tk.Method != jwt.SigningMethodHS256 {
			t.Errorf("alg = %v, want HS256", tk.Method)
		}
		return []byte("sk"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	claims := token.Claims.(jwt.MapClaims)
	if claims["iss"] != "ak" {
		t.Errorf("iss = %v, want ak", claims["iss"])
	}
	if exp := int64(claims["exp"].(float64)); exp != now.Add(30*time.Minute).Unix() {
		t.Errorf("exp = %d, want now+30m", exp)
	}
	if nbf := int64(claims["nbf"].(float64)); nbf != now.Add(-5*time.Second).Unix() {
		t.Errorf("nbf = %d, want now-5s", nbf)
	}
}

func TestGenerateEndpointSelection(t *testing.T) {
	var gotPath string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]string{"task_id": "kl-1"},
		})
	}))
	defer srv.Close()

	c, err := NewClient(WithCredentials("ak", "sk"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// Image input selects image2video.
	taskID, err := c.Generate(context.Background(), GenerateParams{
		Model:    "kling-pro",
		Prompt:   "a cat",
		ImageURL: "https://img/1.png",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if taskID != "kl-1" {
		t.Errorf("taskID = %q", taskID)
	}
	if gotPath != "/v1/videos/image2video" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.ModelName != "kling-v1" || gotBody.Mode != "pro" {
		t.Errorf("model/mode = %q/%q", gotBody.ModelName, gotBody.Mode)
	}

	// No image selects text2video.
	if _, err := c.Generate(context.Background(), GenerateParams{Model: "kling", Prompt: "a cat"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotPath != "/v1/videos/text2video" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.Mode != "std" {
		t.Errorf("mode = %q, want std", gotBody.Mode)
	}
}

func TestTaskStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/videos/status/kl-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{
				"task_id":     "kl-1",
				"task_status": "succeed",
				"task_result": map[string]any{
					"videos": []map[string]string{{"url": "https://cdn/out.mp4"}},
				},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(WithCredentials("ak", "sk"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := c.TaskStatus(context.Background(), "kl-1")
	if err != nil {
		t.Fatalf("TaskStatus: %v", err)
	}
	if res.Status != StatusSucceed {
		t.Errorf("status = %s", res.Status)
	}
	if len(res.URLs) != 1 || res.URLs[0] != "https://cdn/out.mp4" {
		t.Errorf("urls = %v", res.URLs)
	}
}

func TestTaskStatusAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    1102,
			"message": "account balance not enough",
		})
	}))
	defer srv.Close()

	c, err := NewClient(WithCredentials("ak", "sk"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.TaskStatus(context.Background(), "kl-1")
	if !errors.Is(err, ErrAPIError) {
		t.Errorf("err = %v, want ErrAPIError", err)
	}
}

func TestModelNameMapping(t *testing.T) {
	tests := []struct {
		model    string
		wantName string
		wantMode string
	}{
		{"kling", "kling-v1", "std"},
		{"kling-v1", "kling-v1", "std"},
		{"kling-pro", "kling-v1", "pro"},
		{"kling-v1-pro", "kling-v1", "pro"},
		{"kling-anything", "kling-v1", "std"},
	}
	for _, tt := range tests {
		if got := modelName(tt.model); got != tt.wantName {
			t.Errorf("modelName(%q) = %q, want %q", tt.model, got, tt.wantName)
		}
		if got := modelMode(tt.model); got != tt.wantMode {
			t.Errorf("modelMode(%q) = %q, want %q", tt.model, got, tt.wantMode)
		}
	}
}
