package router

import (
	"context"
	"errors"
	"testing"

	"github.com/recastlabs/recast-api/internal/provider"
	"github.com/recastlabs/recast-api/internal/task"
)

// stubAdapter is a no-op adapter carrying only a provider name.
type stubAdapter struct {
	name task.Provider
}

func (s *stubAdapter) Name() task.Provider { return s.name }

func (s *stubAdapter) Submit(context.Context, provider.SubmitRequest) (string, error) {
	return "stub-task", nil
}

func (s *stubAdapter) Poll(context.Context, string, string) (provider.PollResult, error) {
	return provider.PollResult{Status: provider.StatusProcessing}, nil
}

func newTestRouter(providers ...task.Provider) *Router {
	adapters := make([]provider.Adapter, 0, len(providers))
	for _, p := range providers {
		adapters = append(adapters, &stubAdapter{name: p})
	}
	return New(adapters, nil)
}

func TestSelectPriorityOrder(t *testing.T) {
	tests := []struct {
		name       string
		configured []task.Provider
		model      string
		want       task.Provider
	}{
		{"kwaivgi namespace routes to wavespeed", all(), "kwaivgi/kling-video-o1/reference-to-video", task.ProviderWavespeed},
		{"wavespeed substring routes to wavespeed", all(), "wavespeed-kling", task.ProviderWavespeed},
		{"plain kling prefers wavespeed", all(), "kling", task.ProviderWavespeed},
		{"kling-v1 prefers wavespeed", all(), "kling-v1", task.ProviderWavespeed},
		{"atlas namespace routes to atlas", all(), "atlascloud/kling-v2.1", task.ProviderAtlas},
		{"plain kling falls to atlas without wavespeed", []task.Provider{task.ProviderAtlas, task.ProviderFreepik}, "kling", task.ProviderAtlas},
		{"plain kling falls to freepik without wavespeed and atlas", []task.Provider{task.ProviderFreepik, task.ProviderKling}, "kling", task.ProviderFreepik},
		{"kling-elements-pro routes to freepik", all(), "kling-elements-pro", task.ProviderFreepik},
		{"kling-v2 routes to freepik", all(), "kling-v2", task.ProviderFreepik},
		{"freepik- prefix routes to freepik", all(), "freepik-mystic", task.ProviderFreepik},
		{"svd routes to replicate", all(), "svd", task.ProviderReplicate},
		{"minimax routes to replicate", all(), "minimax", task.ProviderReplicate},
		{"wan21 routes to replicate", all(), "wan21", task.ProviderReplicate},
		{"kling prefix last-resorts to kling", []task.Provider{task.ProviderKling}, "kling-v1-pro", task.ProviderKling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(tt.configured...)
			a, err := r.Select(tt.model)
			if err != nil {
				t.Fatalf("Select(%q): %v", tt.model, err)
			}
			if a.Name() != tt.want {
				t.Errorf("Select(%q) = %s, want %s", tt.model, a.Name(), tt.want)
			}
		})
	}
}

func TestSelectNoProvider(t *testing.T) {
	r := newTestRouter(all()...)

	_, err := r.Select("sora")
	if !errors.Is(err, ErrNoProviderForModel) {
		t.Errorf("err = %v, want ErrNoProviderForModel", err)
	}

	// Matching rules whose providers are unconfigured also fail.
	empty := newTestRouter()
	_, err = empty.Select("kling")
	if !errors.Is(err, ErrNoProviderForModel) {
		t.Errorf("err = %v, want ErrNoProviderForModel", err)
	}
}

func TestSelectDeterminism(t *testing.T) {
	r := newTestRouter(all()...)

	first, err := r.Select("kling")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for i := 0; i < 50; i++ {
		a, err := r.Select("kling")
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if a.Name() != first.Name() {
			t.Fatalf("Select returned %s after returning %s", a.Name(), first.Name())
		}
	}
}

func TestAdapterLookup(t *testing.T) {
	r := newTestRouter(task.ProviderFreepik)

	if _, ok := r.Adapter(task.ProviderFreepik); !ok {
		t.Error("configured adapter not found")
	}
	if _, ok := r.Adapter(task.ProviderKling); ok {
		t.Error("unconfigured adapter reported present")
	}
}

func all() []task.Provider {
	return []task.Provider{
		task.ProviderFreepik,
		task.ProviderReplicate,
		task.ProviderWavespeed,
		task.ProviderAtlas,
		task.ProviderKling,
	}
}
