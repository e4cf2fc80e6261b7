package provider

import (
	"context"
	"log/slog"

	"github.com/recastlabs/recast-api/internal/freepik"
	"github.com/recastlabs/recast-api/internal/task"
)

// FreepikAdapter adapts the Freepik client to the Adapter contract.
type FreepikAdapter struct {
	client freepik.Client
	logger *slog.Logger
}

var _ Adapter = (*FreepikAdapter)(nil)

// NewFreepikAdapter creates a Freepik adapter around an existing client.
func NewFreepikAdapter(client freepik.Client, logger *slog.Logger) *FreepikAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FreepikAdapter{client: client, logger: logger}
}

// Name identifies the backend this adapter fronts.
func (a *FreepikAdapter) Name() task.Provider {
	return task.ProviderFreepik
}

// Submit sends a generation job and returns the provider-assigned task ID.
func (a *FreepikAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}

	params := freepik.GenerateParams{
		Prompt:         req.Prompt,
		StaticMaskURL:  req.StaticMaskURL,
		Model:          req.Model,
		NegativePrompt: req.NegativePrompt,
		DurationSec:    req.DurationSec,
		AspectRatio:    req.AspectRatio,
	}
	if len(req.ImageURLs) > 0 {
		params.ImageURL = req.ImageURLs[0]
	}

	return a.client.Generate(ctx, params)
}

// Poll checks a job's status and maps the Freepik vocabulary to the
// canonical one. Unrecognized statuses stay processing.
func (a *FreepikAdapter) Poll(ctx context.Context, taskID, model string) (PollResult, error) {
	if a.client == nil {
		return PollResult{}, ErrNotConfigured
	}

	res, err := a.client.TaskStatus(ctx, taskID, model)
	if err != nil {
		return PollResult{}, err
	}

	switch res.Status {
	case freepik.StatusCompleted, freepik.StatusSucceeded:
		if len(res.URLs) == 0 {
			return PollResult{Status: StatusCompleted}, nil
		}
		if len(res.URLs) > 1 {
			a.logger.Warn("provider returned multiple artifacts, using first",
				"provider", a.Name(), "task_id", taskID, "count", len(res.URLs))
		}
		return PollResult{Status: StatusCompleted, URL: res.URLs[0]}, nil
	case freepik.StatusFailed:
		return PollResult{Status: StatusFailed, Message: res.Message}, nil
	case freepik.StatusCreated, freepik.StatusPending, freepik.StatusInProgress:
		return PollResult{Status: StatusProcessing}, nil
	default:
		a.logger.Debug("unknown provider status, treating as processing",
			"provider", a.Name(), "task_id", taskID, "status", string(res.Status))
		return PollResult{Status: StatusProcessing}, nil
	}
}
