// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// ErrNoProviderConfigured is returned when no provider credential is set;
// a deployment with zero providers cannot route anything.
var ErrNoProviderConfigured = errors.New("config: no provider credentials configured")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Provider credentials; a provider is enabled by the presence of its key.
	FreepikAPIKey     string `env:"FREEPIK_API_KEY" json:"-"`     // Masked in JSON
	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN" json:"-"` // Masked in JSON
	WavespeedAPIKey   string `env:"WAVESPEED_API_KEY" json:"-"`   // Masked in JSON
	AtlasAPIKey       string `env:"ATLASCLOUD_API_KEY" json:"-"`  // Masked in JSON
	KlingAccessKey    string `env:"KLING_ACCESS_KEY" json:"-"`    // Masked in JSON
	KlingSecretKey    string `env:"KLING_SECRET_KEY" json:"-"`    // Masked in JSON

	// Durable storage settings
	S3Bucket           string        `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string        `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PublicRead       bool          `env:"S3_PUBLIC_READ, default=false" json:"s3_public_read"`
	SignedURLTTL       time.Duration `env:"SIGNED_URL_TTL, default=1h" json:"signed_url_ttl"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	StoreDir           string        `env:"STORE_DIR" json:"store_dir,omitempty"`

	// Task repository settings; empty REDIS_ADDR selects the in-memory store.
	RedisAddr     string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON

	// Remux settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	TempDir    string `env:"TEMP_DIR, default=/tmp/recast" json:"temp_dir"`

	// Provider call settings
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT, default=30s" json:"provider_timeout"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if durable S3 storage is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// RedisEnabled returns true if a Redis task store is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration can run at all: at least one
// provider credential must be present. Individual providers stay optional;
// the router skips the unconfigured ones.
func (c *Config) Validate() error {
	if c.FreepikAPIKey == "" &&
		c.ReplicateAPIToken == "" &&
		c.WavespeedAPIKey == "" &&
		c.AtlasAPIKey == "" &&
		(c.KlingAccessKey == "" || c.KlingSecretKey == "") {
		return ErrNoProviderConfigured
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// Providers lists the enabled provider names, for startup logging.
func (c *Config) Providers() []string {
	var ps []string
	if c.WavespeedAPIKey != "" {
		ps = append(ps, "wavespeed")
	}
	if c.AtlasAPIKey != "" {
		ps = append(ps, "atlas")
	}
	if c.FreepikAPIKey != "" {
		ps = append(ps, "freepik")
	}
	if c.ReplicateAPIToken != "" {
		ps = append(ps, "replicate")
	}
	if c.KlingAccessKey != "" && c.KlingSecretKey != "" {
		ps = append(ps, "kling")
	}
	return ps
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Providers: %v, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, RedisAddr: %s, FFmpegPath: %s, TempDir: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Providers(),
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.RedisAddr,
		c.FFmpegPath,
		c.TempDir,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
