package provider

import (
	"context"
	"log/slog"

	"github.com/recastlabs/recast-api/internal/atlas"
	"github.com/recastlabs/recast-api/internal/task"
)

// AtlasAdapter adapts the AtlasCloud client to the Adapter contract.
type AtlasAdapter struct {
	client atlas.Client
	logger *slog.Logger
}

var _ Adapter = (*AtlasAdapter)(nil)

// NewAtlasAdapter creates an AtlasCloud adapter around an existing client.
func NewAtlasAdapter(client atlas.Client, logger *slog.Logger) *AtlasAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AtlasAdapter{client: client, logger: logger}
}

// Name identifies the backend this adapter fronts.
func (a *AtlasAdapter) Name() task.Provider {
	return task.ProviderAtlas
}

// Submit sends a generation job and returns the provider-assigned task ID.
func (a *AtlasAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}

	return a.client.Generate(ctx, atlas.GenerateParams{
		Prompt:      req.Prompt,
		ImageURLs:   req.ImageURLs,
		Model:       req.Model,
		DurationSec: req.DurationSec,
		AspectRatio: req.AspectRatio,
	})
}

// Poll checks a task's status and maps the AtlasCloud vocabulary to the
// canonical one. Unrecognized statuses stay processing.
func (a *AtlasAdapter) Poll(ctx context.Context, taskID, _ string) (PollResult, error) {
	if a.client == nil {
		return PollResult{}, ErrNotConfigured
	}

	res, err := a.client.Prediction(ctx, taskID)
	if err != nil {
		return PollResult{}, err
	}

	switch res.Status {
	case atlas.StatusCompleted, atlas.StatusSucceeded:
		if len(res.URLs) == 0 {
			return PollResult{Status: StatusCompleted}, nil
		}
		if len(res.URLs) > 1 {
			a.logger.Warn("provider returned multiple artifacts, using first",
				"provider", a.Name(), "task_id", taskID, "count", len(res.URLs))
		}
		return PollResult{Status: StatusCompleted, URL: res.URLs[0]}, nil
	case atlas.StatusFailed:
		return PollResult{Status: StatusFailed, Message: res.Message}, nil
	case atlas.StatusCreated, atlas.StatusPending, atlas.StatusProcessing:
		return PollResult{Status: StatusProcessing}, nil
	default:
		a.logger.Debug("unknown provider status, treating as processing",
			"provider", a.Name(), "task_id", taskID, "status", string(res.Status))
		return PollResult{Status: StatusProcessing}, nil
	}
}
