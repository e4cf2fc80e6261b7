// Package router selects a provider for a requested model through an
// ordered rule table. Selection is deterministic: the first matching rule
// whose provider has a registered adapter wins.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recastlabs/recast-api/internal/provider"
	"github.com/recastlabs/recast-api/internal/task"
)

// ErrNoProviderForModel is returned when no configured provider claims the model.
var ErrNoProviderForModel = errors.New("router: no provider for model")

// rule maps a model predicate to a provider. Rules are data, evaluated in
// declaration order; the table is the single place routing policy lives.
type rule struct {
	provider task.Provider
	matches  func(model string) bool
}

// rules is the routing policy, highest priority first.
var rules = []rule{
	// Namespaced wavespeed models route unconditionally.
	{task.ProviderWavespeed, func(m string) bool {
		return strings.Contains(m, "wavespeed") || strings.HasPrefix(m, "kwaivgi/")
	}},
	// Wavespeed is the preferred home for the plain kling aliases.
	{task.ProviderWavespeed, oneOf("kling", "kling-v1", "kling-standard")},
	// Namespaced atlas models.
	{task.ProviderAtlas, func(m string) bool {
		return strings.Contains(m, "atlas")
	}},
	// Atlas picks up the plain kling aliases when wavespeed is absent.
	{task.ProviderAtlas, oneOf("kling", "kling-v1", "kling-standard")},
	// Freepik covers the wider kling family and its own namespace.
	{task.ProviderFreepik, func(m string) bool {
		switch m {
		case "kling-v1", "kling-v2", "kling-v2.5", "kling-pro", "kling-standard", "kling-elements-pro":
			return true
		}
		return strings.HasPrefix(m, "kling") || strings.HasPrefix(m, "freepik-")
	}},
	// Replicate hosts the non-kling alias models.
	{task.ProviderReplicate, oneOf("svd", "animate-diff", "minimax", "wan21", "luma", "hunyuan")},
	// Legacy direct kling path, last resort.
	{task.ProviderKling, func(m string) bool {
		return strings.HasPrefix(m, "kling")
	}},
}

func oneOf(models ...string) func(string) bool {
	set := make(map[string]struct{}, len(models))
	for _, m := range models {
		set[m] = struct{}{}
	}
	return func(m string) bool {
		_, ok := set[m]
		return ok
	}
}

// Router resolves models to registered provider adapters.
type Router struct {
	adapters map[task.Provider]provider.Adapter
	logger   *slog.Logger
}

// New creates a router over the given adapters. A nil adapter is treated
// as an unconfigured provider and never selected.
func New(adapters []provider.Adapter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[task.Provider]provider.Adapter, len(adapters))
	for _, a := range adapters {
		if a != nil {
			m[a.Name()] = a
		}
	}
	return &Router{adapters: m, logger: logger}
}

// Adapter returns the registered adapter for a provider, if any.
func (r *Router) Adapter(p task.Provider) (provider.Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// Select returns the adapter for the first rule matching the model.
// Rules whose provider has no registered adapter are skipped, so the same
// model can land on different providers depending on deployment config,
// always in the table's priority order.
func (r *Router) Select(model string) (provider.Adapter, error) {
	for _, rl := range rules {
		if !rl.matches(model) {
			continue
		}
		a, ok := r.adapters[rl.provider]
		if !ok {
			continue
		}
		r.logger.Debug("routed model to provider", "model", model, "provider", rl.provider)
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoProviderForModel, model)
}
