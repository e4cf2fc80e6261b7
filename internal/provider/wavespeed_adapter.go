package provider

import (
	"context"
	"log/slog"

	"github.com/recastlabs/recast-api/internal/task"
	"github.com/recastlabs/recast-api/internal/wavespeed"
)

// WavespeedAdapter adapts the Wavespeed client to the Adapter contract.
type WavespeedAdapter struct {
	client wavespeed.Client
	logger *slog.Logger
}

var _ Adapter = (*WavespeedAdapter)(nil)

// NewWavespeedAdapter creates a Wavespeed adapter around an existing client.
func NewWavespeedAdapter(client wavespeed.Client, logger *slog.Logger) *WavespeedAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WavespeedAdapter{client: client, logger: logger}
}

// Name identifies the backend this adapter fronts.
func (a *WavespeedAdapter) Name() task.Provider {
	return task.ProviderWavespeed
}

// Submit sends a generation job and returns the provider-assigned task ID.
func (a *WavespeedAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}

	params := wavespeed.GenerateParams{
		Prompt:         req.Prompt,
		ImageURLs:      req.ImageURLs,
		VideoURL:       req.SourceVideoURL,
		Model:          req.Model,
		DurationSec:    req.DurationSec,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	}
	if len(req.ImageURLs) > 0 {
		params.ImageURL = req.ImageURLs[0]
	}

	return a.client.Generate(ctx, params)
}

// Poll checks a task's status and maps the Wavespeed vocabulary to the
// canonical one. Unrecognized statuses stay processing.
func (a *WavespeedAdapter) Poll(ctx context.Context, taskID, _ string) (PollResult, error) {
	if a.client == nil {
		return PollResult{}, ErrNotConfigured
	}

	res, err := a.client.TaskResult(ctx, taskID)
	if err != nil {
		return PollResult{}, err
	}

	switch res.Status {
	case wavespeed.StatusCompleted, wavespeed.StatusSucceeded:
		if len(res.URLs) == 0 {
			return PollResult{Status: StatusCompleted}, nil
		}
		if len(res.URLs) > 1 {
			a.logger.Warn("provider returned multiple artifacts, using first",
				"provider", a.Name(), "task_id", taskID, "count", len(res.URLs))
		}
		return PollResult{Status: StatusCompleted, URL: res.URLs[0]}, nil
	case wavespeed.StatusFailed:
		return PollResult{Status: StatusFailed, Message: res.Message}, nil
	case wavespeed.StatusCreated, wavespeed.StatusProcessing:
		return PollResult{Status: StatusProcessing}, nil
	default:
		a.logger.Debug("unknown provider status, treating as processing",
			"provider", a.Name(), "task_id", taskID, "status", string(res.Status))
		return PollResult{Status: StatusProcessing}, nil
	}
}
