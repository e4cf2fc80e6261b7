package provider

import (
	"context"
	"log/slog"

	"github.com/recastlabs/recast-api/internal/replicate"
	"github.com/recastlabs/recast-api/internal/task"
)

// ReplicateAdapter adapts the Replicate client to the Adapter contract.
type ReplicateAdapter struct {
	client replicate.Client
	logger *slog.Logger
}

var _ Adapter = (*ReplicateAdapter)(nil)

// NewReplicateAdapter creates a Replicate adapter around an existing client.
func NewReplicateAdapter(client replicate.Client, logger *slog.Logger) *ReplicateAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplicateAdapter{client: client, logger: logger}
}

// Name identifies the backend this adapter fronts.
func (a *ReplicateAdapter) Name() task.Provider {
	return task.ProviderReplicate
}

// Submit sends a generation job and returns the provider-assigned prediction ID.
func (a *ReplicateAdapter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}

	params := replicate.PredictionParams{
		Model:          req.Model,
		Prompt:         req.Prompt,
		MaskURL:        req.StaticMaskURL,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	}
	if len(req.ImageURLs) > 0 {
		params.ImageURL = req.ImageURLs[0]
	}

	pred, err := a.client.CreatePrediction(ctx, params)
	if err != nil {
		return "", err
	}
	return pred.ID, nil
}

// Poll checks a prediction's status and maps the Replicate vocabulary to the
// canonical one. Unrecognized statuses stay processing.
func (a *ReplicateAdapter) Poll(ctx context.Context, taskID, _ string) (PollResult, error) {
	if a.client == nil {
		return PollResult{}, ErrNotConfigured
	}

	pred, err := a.client.PredictionStatus(ctx, taskID)
	if err != nil {
		return PollResult{}, err
	}

	switch pred.Status {
	case replicate.StatusSucceeded:
		url, extra := pred.OutputURL()
		if extra > 0 {
			a.logger.Warn("provider returned multiple artifacts, using first",
				"provider", a.Name(), "task_id", taskID, "count", extra+1)
		}
		return PollResult{Status: StatusCompleted, URL: url}, nil
	case replicate.StatusFailed, replicate.StatusCanceled:
		return PollResult{Status: StatusFailed, Message: pred.ErrorMessage()}, nil
	case replicate.StatusStarting, replicate.StatusProcessing:
		return PollResult{Status: StatusProcessing}, nil
	default:
		a.logger.Debug("unknown provider status, treating as processing",
			"provider", a.Name(), "task_id", taskID, "status", string(pred.Status))
		return PollResult{Status: StatusProcessing}, nil
	}
}
