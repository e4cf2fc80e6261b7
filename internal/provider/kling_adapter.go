package provider

import (
	"context"
	"log/slog"

	"github.com/recastlabs/recast-api/internal/kling"
	"github.com/recastlabs/recast-api/internal/task"
)

// KlingAdapter adapts the Kling client to the Adapter contract.
type KlingAdapter struct {
	client kling.Client
	logger *slog.Logger
}

var _ Adapter = (*KlingAdapter)(nil)

// NewKlingAdapter creates a Kling adapter around an existing client.
func NewKlingAdapter(client kling.Client, logger *slog.Logger) *KlingAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &KlingAdapter{client: client, logger: logger}
}

// Name identifies the backend this adapter fronts.
func (a *KlingAdapter) Name() task.Provider {
	return task.ProviderKling
}

// Submit sends a generation job and returns the provider-assigned task ID.
func (a *KlingAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}

	params := kling.GenerateParams{
		Prompt:         req.Prompt,
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

// Poll checks a task's status and maps the Kling vocabulary to the
// canonical one. Unrecognized statuses stay processing.
func (a *KlingAdapter) Poll(ctx context.Context, taskID, _ string) (PollResult, error) {
	if a.client == nil {
		return PollResult{}, ErrNotConfigured
	}

	res, err := a.client.TaskStatus(ctx, taskID)
	if err != nil {
		return PollResult{}, err
	}

	switch res.Status {
	case kling.StatusSucceed:
		if len(res.URLs) == 0 {
			return PollResult{Status: StatusCompleted}, nil
		}
		if len(res.URLs) > 1 {
			a.logger.Warn("provider returned multiple artifacts, using first",
				"provider", a.Name(), "task_id", taskID, "count", len(res.URLs))
		}
		return PollResult{Status: StatusCompleted, URL: res.URLs[0]}, nil
	case kling.StatusFailed:
		return PollResult{Status: StatusFailed, Message: res.Message}, nil
	case kling.StatusSubmitted, kling.StatusProcessing:
		return PollResult{Status: StatusProcessing}, nil
	default:
		a.logger.Debug("unknown provider status, treating as processing",
			"provider", a.Name(), "task_id", taskID, "status", string(res.Status))
		return PollResult{Status: StatusProcessing}, nil
	}
}
