// Package resolver drives the task state machine. It is the single writer
// of task records: adapters only talk to providers, the router only picks
// adapters, and every status mutation funnels through Resolve.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recastlabs/recast-api/internal/persist"
	"github.com/recastlabs/recast-api/internal/provider"
	"github.com/recastlabs/recast-api/internal/remux"
	"github.com/recastlabs/recast-api/internal/router"
	"github.com/recastlabs/recast-api/internal/task"
)

// ErrUnknownProvider is returned when a task record is missing and the
// caller's provider hint does not identify a configured adapter.
var ErrUnknownProvider = errors.New("resolver: unknown provider")

// genericFailure is used when a provider reports failure without a message.
const genericFailure = "video generation failed"

// noOutputFailure marks provider successes that carried no artifact.
const noOutputFailure = "provider reported success but returned no output"

// Resolver polls providers and advances task records to terminal states.
type Resolver struct {
	repo   task.Repository
	router *router.Router
	mover  *persist.Mover
	mixer  remux.Mixer
	logger *slog.Logger

	// locks serializes concurrent polls per task ID, so the persistence
	// and remux side effects of a completed task run exactly once in-process.
	// The repository's conditional Transition guards cross-process races.
	locks sync.Map
}

// Option is a function that configures a Resolver.
type Option func(*Resolver)

// WithMixer sets the audio remux stage. Without one, tasks that carry
// audio tracks complete with the silent video.
func WithMixer(m remux.Mixer) Option {
	return func(r *Resolver) {
		r.mixer = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver.
func New(repo task.Repository, rt *router.Router, mover *persist.Mover, opts ...Option) *Resolver {
	r := &Resolver{
		repo:   repo,
		router: rt,
		mover:  mover,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lockFor returns the mutex serializing polls for one task ID.
func (r *Resolver) lockFor(taskID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(taskID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Resolve polls the owning provider and advances the task record.
// The returned record is a snapshot; callers must not mutate it.
//
// hint is only consulted when no record exists for the task ID. Once a
// record is persisted, its provider is authoritative.
func (r *Resolver) Resolve(ctx context.Context, taskID string, hint task.Provider) (*task.Record, error) {
	mu := r.lockFor(taskID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := r.resolve(ctx, taskID, hint)
	if err == nil && rec.Status.IsTerminal() {
		// Terminal records never change, so their poll lock is done;
		// dropping it keeps the lock map bounded by in-flight tasks.
		r.locks.Delete(taskID)
	}
	return rec, err
}

func (r *Resolver) resolve(ctx context.Context, taskID string, hint task.Provider) (*task.Record, error) {
	rec, err := r.repo.FindByTaskID(ctx, taskID)
	if errors.Is(err, task.ErrTaskNotFound) {
		return r.resolveTransient(ctx, taskID, hint)
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: load record: %w", err)
	}

	// Terminal records never change again; completed ones get their durable
	// URL re-signed on read so expired signatures heal without a write.
	if rec.Status.IsTerminal() {
		if rec.Status == task.StatusCompleted && rec.VideoURL != "" {
			if signed, ok := r.mover.ResolveIfDurable(ctx, rec.VideoURL); ok {
				rec.VideoURL = signed
			}
		}
		return rec, nil
	}

	adapter, ok := r.router.Adapter(rec.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, rec.Provider)
	}

	res, err := adapter.Poll(ctx, taskID, rec.Model)
	if err != nil {
		// Transient poll failures (including timeouts) are not task
		// failures; the next poll retries.
		r.logger.Warn("provider poll failed, still processing",
			"task_id", taskID, "provider", rec.Provider, "error", err)
		return rec, nil
	}

	switch res.Status {
	case provider.StatusProcessing:
		return rec, nil

	case provider.StatusFailed:
		msg := res.Message
		if msg == "" {
			msg = genericFailure
		}
		return r.finalize(ctx, rec, task.StatusFailed, task.Update{ErrorMessage: &msg})

	case provider.StatusCompleted:
		if res.URL == "" {
			msg := noOutputFailure
			return r.finalize(ctx, rec, task.StatusFailed, task.Update{ErrorMessage: &msg})
		}
		return r.complete(ctx, rec, res.URL)
	}

	return rec, nil
}

// complete runs the persistence and optional remux pipeline for a task the
// provider reports finished, then writes the terminal state.
func (r *Resolver) complete(ctx context.Context, rec *task.Record, ephemeralURL string) (*task.Record, error) {
	durableURL, err := r.mover.Persist(ctx, rec.TaskID, ephemeralURL)
	if err != nil {
		// Degraded success: serve the provider's URL rather than discard
		// a finished generation.
		r.logger.Warn("persistence failed, completing with ephemeral URL",
			"task_id", rec.TaskID, "error", err)
		durableURL = ephemeralURL
	}

	if !rec.NeedsRemux() || r.mixer == nil {
		return r.finalize(ctx, rec, task.StatusCompleted, task.Update{VideoURL: &durableURL})
	}

	// A record already in mixing_audio is a resumed run: a crash or panic
	// interrupted an earlier remux after its transition was written. Skip
	// the CAS that run already won and redo the remux.
	if rec.Status != task.StatusMixingAudio {
		won, err := r.repo.Transition(ctx, rec.TaskID, rec.Status, task.StatusMixingAudio, task.Update{})
		if err != nil {
			return nil, fmt.Errorf("resolver: transition to mixing: %w", err)
		}
		if !won {
			return r.reload(ctx, rec.TaskID)
		}
	}

	finalURL, err := r.mixer.Remux(ctx, rec.TaskID, durableURL, rec.AudioTracks, rec.AspectRatio)
	if err != nil {
		// A silent video is still a deliverable; the remux stage never
		// fails the whole generation.
		r.logger.Error("audio remux failed, completing with silent video",
			"task_id", rec.TaskID, "error", err)
		finalURL = durableURL
	}

	won, err := r.repo.Transition(ctx, rec.TaskID, task.StatusMixingAudio, task.StatusCompleted, task.Update{VideoURL: &finalURL})
	if err != nil {
		return nil, fmt.Errorf("resolver: transition to completed: %w", err)
	}
	if !won {
		r.logger.Warn("lost terminal transition after remux", "task_id", rec.TaskID)
	}
	return r.reload(ctx, rec.TaskID)
}

// finalize performs the guarded terminal write and returns the fresh record.
func (r *Resolver) finalize(ctx context.Context, rec *task.Record, to task.Status, up task.Update) (*task.Record, error) {
	won, err := r.repo.Transition(ctx, rec.TaskID, rec.Status, to, up)
	if err != nil {
		return nil, fmt.Errorf("resolver: transition to %s: %w", to, err)
	}
	if !won {
		r.logger.Debug("terminal transition already applied", "task_id", rec.TaskID, "to", to)
	}
	return r.reload(ctx, rec.TaskID)
}

// reload fetches the current record after a write.
func (r *Resolver) reload(ctx context.Context, taskID string) (*task.Record, error) {
	rec, err := r.repo.FindByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("resolver: reload record: %w", err)
	}
	return rec, nil
}

// resolveTransient handles polls for task IDs with no persisted record,
// falling back to the caller's provider hint. The result is a snapshot
// only; no row is invented for a task this service never submitted.
func (r *Resolver) resolveTransient(ctx context.Context, taskID string, hint task.Provider) (*task.Record, error) {
	if !hint.IsValid() {
		return nil, task.ErrTaskNotFound
	}
	adapter, ok := r.router.Adapter(hint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, hint)
	}

	res, err := adapter.Poll(ctx, taskID, "")
	if err != nil {
		r.logger.Warn("provider poll failed for transient task",
			"task_id", taskID, "provider", hint, "error", err)
		return task.New(taskID, hint, ""), nil
	}

	rec := task.New(taskID, hint, "")
	switch res.Status {
	case provider.StatusFailed:
		msg := res.Message
		if msg == "" {
			msg = genericFailure
		}
		rec.Apply(task.StatusFailed, task.Update{ErrorMessage: &msg})

	case provider.StatusCompleted:
		if res.URL == "" {
			msg := noOutputFailure
			rec.Apply(task.StatusFailed, task.Update{ErrorMessage: &msg})
			break
		}
		// With no record to mark the copy done, repeated hint polls would
		// re-download the artifact every time; reuse the stored object when
		// an earlier poll already persisted it.
		url, ok := r.mover.PersistedURL(ctx, taskID)
		if !ok {
			var err error
			url, err = r.mover.Persist(ctx, taskID, res.URL)
			if err != nil {
				r.logger.Warn("persistence failed for transient task, using ephemeral URL",
					"task_id", taskID, "error", err)
				url = res.URL
			}
		}
		rec.Apply(task.StatusCompleted, task.Update{VideoURL: &url})
	}

	return rec, nil
}
