package storage

import (
	"context"
	"testing"
)

func newTestS3Store(t *testing.T, cfg S3Config) *S3Store {
	t.Helper()
	cfg.AccessKeyID = "test-access-key"
	cfg.SecretAccessKey = "test-secret-key"
	store, err := NewS3Store(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	return store
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Error("expected error without a bucket")
	}
}

func TestS3StorePublicURL(t *testing.T) {
	aws := newTestS3Store(t, S3Config{Bucket: "vids", Region: "eu-west-1"})
	if got := aws.PublicURL("videos/t.mp4"); got != "https://vids.s3.eu-west-1.amazonaws.com/videos/t.mp4" {
		t.Errorf("PublicURL = %q", got)
	}

	custom := newTestS3Store(t, S3Config{Bucket: "vids", Region: "auto", Endpoint: "https://minio.internal:9000"})
	if got := custom.PublicURL("videos/t.mp4"); got != "https://minio.internal:9000/vids/videos/t.mp4" {
		t.Errorf("PublicURL = %q", got)
	}
}

func TestS3StoreKeyFromURL(t *testing.T) {
	store := newTestS3Store(t, S3Config{Bucket: "vids", Region: "eu-west-1"})

	tests := []struct {
		name    string
		url     string
		wantKey string
		wantOK  bool
	}{
		{"virtual-hosted", "https://vids.s3.eu-west-1.amazonaws.com/videos/t.mp4", "videos/t.mp4", true},
		{"virtual-hosted global", "https://vids.s3.amazonaws.com/videos/t.mp4", "videos/t.mp4", true},
		{"presigned query ignored", "https://vids.s3.eu-west-1.amazonaws.com/mixed/t.mp4?X-Amz-Signature=abc&X-Amz-Expires=3600", "mixed/t.mp4", true},
		{"path-style regional", "https://s3.eu-west-1.amazonaws.com/vids/videos/t.mp4", "videos/t.mp4", true},
		{"other bucket", "https://other.s3.eu-west-1.amazonaws.com/videos/t.mp4", "", false},
		{"provider url", "https://cdn.provider.com/out/t.mp4", "", false},
		{"not a url", "::::", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := store.KeyFromURL(tt.url)
			if key != tt.wantKey || ok != tt.wantOK {
				t.Errorf("KeyFromURL(%q) = %q/%v, want %q/%v", tt.url, key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestS3StoreKeyFromURLCustomEndpoint(t *testing.T) {
	store := newTestS3Store(t, S3Config{Bucket: "vids", Region: "auto", Endpoint: "https://minio.internal:9000"})

	key, ok := store.KeyFromURL("https://minio.internal:9000/vids/videos/t.mp4")
	if !ok || key != "videos/t.mp4" {
		t.Errorf("KeyFromURL = %q/%v", key, ok)
	}

	if _, ok := store.KeyFromURL("https://minio.other:9000/vids/videos/t.mp4"); ok {
		t.Error("wrong host matched the store")
	}
}
