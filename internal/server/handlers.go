package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/recastlabs/recast-api/internal/generate"
	"github.com/recastlabs/recast-api/internal/remux"
	"github.com/recastlabs/recast-api/internal/resolver"
	"github.com/recastlabs/recast-api/internal/router"
	"github.com/recastlabs/recast-api/internal/task"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	generator *generate.Service
	resolver  *resolver.Resolver
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(generator *generate.Service, res *resolver.Resolver, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		generator: generator,
		resolver:  res,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GenerateVideo handles POST /videos/generate requests. Routing and
// submission errors surface synchronously; a successful submission answers
// 202 with the task in the processing state.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	tracks := make([]remux.Track, 0, len(req.AudioTracks))
	for _, t := range req.AudioTracks {
		tracks = append(tracks, remux.Track{
			SourceURL:   t.SourceURL,
			StartTime:   t.StartTime,
			Duration:    t.Duration,
			SourceStart: t.SourceStart,
		})
	}

	rec, err := h.generator.Submit(r.Context(), generate.Request{
		Model:          req.Model,
		Prompt:         req.Prompt,
		Images:         req.Images,
		SourceVideoURL: req.SourceVideoURL,
		DurationSec:    req.Duration,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
		StaticMaskURL:  req.StaticMaskURL,
		AudioTracks:    tracks,
	})
	if err != nil {
		if errors.Is(err, router.ErrNoProviderForModel) {
			writeError(w, http.StatusBadRequest, "no provider for model "+req.Model, "UNKNOWN_MODEL")
			return
		}
		h.logger.Error("submission failed",
			slog.String("model", req.Model),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to submit generation", "SUBMIT_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, GenerateResponse{
		TaskID:   rec.TaskID,
		Provider: string(rec.Provider),
		Status:   string(rec.Status),
	})
}

// VideoStatus handles GET /videos/status requests. The provider query
// parameter is only a fallback hint; the persisted record's provider wins.
func (h *Handlers) VideoStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required", "MISSING_TASK_ID")
		return
	}
	hint := task.Provider(r.URL.Query().Get("provider"))

	rec, err := h.resolver.Resolve(r.Context(), taskID, hint)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		if errors.Is(err, resolver.ErrUnknownProvider) {
			writeError(w, http.StatusBadRequest, "unknown provider", "UNKNOWN_PROVIDER")
			return
		}
		h.logger.Error("status resolution failed",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve status", "STATUS_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		TaskID:   rec.TaskID,
		Status:   string(rec.Status),
		VideoURL: rec.VideoURL,
		Error:    rec.ErrorMessage,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
