package resolver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recastlabs/recast-api/internal/persist"
	"github.com/recastlabs/recast-api/internal/provider"
	"github.com/recastlabs/recast-api/internal/remux"
	"github.com/recastlabs/recast-api/internal/router"
	"github.com/recastlabs/recast-api/internal/storage"
	"github.com/recastlabs/recast-api/internal/task"
)

type fakeAdapter struct {
	name      task.Provider
	result    provider.PollResult
	pollErr   error
	polls     atomic.Int64
	lastModel string
}

var _ provider.Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Name() task.Provider { return f.name }

func (f *fakeAdapter) Submit(context.Context, provider.SubmitRequest) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeAdapter) Poll(_ context.Context, _ string, model string) (provider.PollResult, error) {
	f.polls.Add(1)
	f.lastModel = model
	if f.pollErr != nil {
		return provider.PollResult{}, f.pollErr
	}
	return f.result, nil
}

// countingStore is an in-memory storage.Store that counts uploads.
type countingStore struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	uploadN   int
	uploadErr error
}

var _ storage.Store = (*countingStore)(nil)

func newCountingStore() *countingStore {
	return &countingStore{uploads: make(map[string][]byte)}
}

func (s *countingStore) Upload(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.uploads[key] = b
	s.uploadN++
	return "https://store/" + key, nil
}

func (s *countingStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *countingStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.uploads[key]
	return ok, nil
}

func (s *countingStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store/" + key + "?sig=fresh", nil
}

func (s *countingStore) PublicURL(key string) string { return "https://store/" + key }

func (s *countingStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, "https://store/") {
		return "", false
	}
	key := strings.TrimPrefix(url, "https://store/")
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	return key, true
}

type fakeMixer struct {
	url      string
	err      error
	calls    atomic.Int64
	gotVideo string
}

var _ remux.Mixer = (*fakeMixer)(nil)

func (f *fakeMixer) Remux(_ context.Context, _ string, videoURL string, _ []remux.Track, _ string) (string, error) {
	f.calls.Add(1)
	f.gotVideo = videoURL
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// fixture wires a resolver over a memory repository, a single fake adapter,
// and a counting store, with an HTTP server standing in for the provider CDN.
type fixture struct {
	repo    *task.MemoryRepository
	adapter *fakeAdapter
	store   *countingStore
	res     *Resolver
	cdn     *httptest.Server
}

func newFixture(t *testing.T, name task.Provider, opts ...Option) *fixture {
	t.Helper()
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	t.Cleanup(cdn.Close)

	f := &fixture{
		repo:    task.NewMemoryRepository(),
		adapter: &fakeAdapter{name: name},
		store:   newCountingStore(),
		cdn:     cdn,
	}
	rt := router.New([]provider.Adapter{f.adapter}, slog.New(slog.DiscardHandler))
	mover := persist.NewMover(f.store)
	opts = append(opts, WithLogger(slog.New(slog.DiscardHandler)))
	f.res = New(f.repo, rt, mover, opts...)
	return f
}

func (f *fixture) saveProcessing(t *testing.T, taskID string, tracks []remux.Track) {
	t.Helper()
	rec := task.New(taskID, f.adapter.name, "kling-v2")
	rec.AudioTracks = tracks
	rec.AspectRatio = "9:16"
	if err := f.repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestResolveStillProcessing(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusProcessing}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusProcessing {
		t.Errorf("status = %s", rec.Status)
	}
	if f.adapter.lastModel != "kling-v2" {
		t.Errorf("poll model = %q, want the record's model", f.adapter.lastModel)
	}
	if f.store.uploadN != 0 {
		t.Errorf("uploads = %d, want none while processing", f.store.uploadN)
	}
}

func TestResolveCompleted(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Fatalf("status = %s", rec.Status)
	}
	if rec.VideoURL != "https://store/videos/t-1.mp4" {
		t.Errorf("video_url = %q, want the durable URL", rec.VideoURL)
	}
	if string(f.store.uploads["videos/t-1.mp4"]) != "video-bytes" {
		t.Error("artifact was not copied to durable storage")
	}

	// Terminal records are never polled again; reads re-sign the URL.
	rec, err = f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := f.adapter.polls.Load(); got != 1 {
		t.Errorf("polls = %d, want 1", got)
	}
	if rec.VideoURL != "https://store/videos/t-1.mp4?sig=fresh" {
		t.Errorf("video_url = %q, want re-signed URL", rec.VideoURL)
	}
}

func TestResolveConcurrentPollsPersistOnce(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	const n = 16
	var wg sync.WaitGroup
	recs := make([]*task.Record, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs[i], errs[i] = f.res.Resolve(context.Background(), "t-1", "")
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("Resolve[%d]: %v", i, errs[i])
		}
		if recs[i].Status != task.StatusCompleted {
			t.Errorf("Resolve[%d] status = %s", i, recs[i].Status)
		}
	}
	if f.store.uploadN != 1 {
		t.Errorf("uploads = %d, want exactly one persistence", f.store.uploadN)
	}
	if got := f.adapter.polls.Load(); got != 1 {
		t.Errorf("polls = %d, want 1 (losers observe the terminal record)", got)
	}
}

func TestResolveProviderFailure(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusFailed, Message: "nsfw content detected"}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusFailed || rec.ErrorMessage != "nsfw content detected" {
		t.Errorf("record = %s/%q", rec.Status, rec.ErrorMessage)
	}
}

func TestResolveProviderFailureWithoutMessage(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusFailed}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.ErrorMessage != "video generation failed" {
		t.Errorf("error_message = %q", rec.ErrorMessage)
	}
}

func TestResolveCompletedWithoutOutput(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if rec.ErrorMessage != "provider reported success but returned no output" {
		t.Errorf("error_message = %q", rec.ErrorMessage)
	}
}

func TestResolvePollErrorKeepsProcessing(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.pollErr = errors.New("connection reset")

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusProcessing {
		t.Errorf("status = %s, want processing after transport error", rec.Status)
	}
}

func TestResolvePersistFailureCompletesEphemeral(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.store.uploadErr = errors.New("bucket gone")
	src := f.cdn.URL + "/out.mp4"
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: src}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Errorf("status = %s, want completed despite persistence failure", rec.Status)
	}
	if rec.VideoURL != src {
		t.Errorf("video_url = %q, want the provider's ephemeral URL", rec.VideoURL)
	}
}

func TestResolveRemux(t *testing.T) {
	mixer := &fakeMixer{url: "https://store/mixed/t-1.mp4"}
	f := newFixture(t, task.ProviderFreepik, WithMixer(mixer))
	f.saveProcessing(t, "t-1", []remux.Track{{SourceURL: "https://cdn/a.mp3", Duration: 3}})
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.VideoURL != "https://store/mixed/t-1.mp4" {
		t.Errorf("video_url = %q, want the mixed URL", rec.VideoURL)
	}
	if mixer.gotVideo != "https://store/videos/t-1.mp4" {
		t.Errorf("mixer input = %q, want the persisted silent video", mixer.gotVideo)
	}
	if got := mixer.calls.Load(); got != 1 {
		t.Errorf("mixer calls = %d", got)
	}
}

func TestResolveRemuxFailureCompletesSilent(t *testing.T) {
	mixer := &fakeMixer{err: errors.New("ffmpeg exploded")}
	f := newFixture(t, task.ProviderFreepik, WithMixer(mixer))
	f.saveProcessing(t, "t-1", []remux.Track{{SourceURL: "https://cdn/a.mp3", Duration: 3}})
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Errorf("status = %s, want completed despite remux failure", rec.Status)
	}
	if rec.VideoURL != "https://store/videos/t-1.mp4" {
		t.Errorf("video_url = %q, want the silent durable URL", rec.VideoURL)
	}
}

func TestResolveResumesInterruptedRemux(t *testing.T) {
	mixer := &fakeMixer{url: "https://store/mixed/t-1.mp4"}
	f := newFixture(t, task.ProviderFreepik, WithMixer(mixer))

	// A crash or recovered panic mid-remux leaves the record parked in
	// mixing_audio; the next poll must still drive it to a terminal state.
	rec := task.New("t-1", f.adapter.name, "kling-v2")
	rec.AudioTracks = []remux.Track{{SourceURL: "https://cdn/a.mp3", Duration: 3}}
	rec.AspectRatio = "9:16"
	rec.Apply(task.StatusMixingAudio, task.Update{})
	if err := f.repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	got, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != task.StatusCompleted {
		t.Fatalf("status = %s, want completed after resumed remux", got.Status)
	}
	if got.VideoURL != "https://store/mixed/t-1.mp4" {
		t.Errorf("video_url = %q, want the mixed URL", got.VideoURL)
	}
	if calls := mixer.calls.Load(); calls != 1 {
		t.Errorf("mixer calls = %d", calls)
	}
}

func TestResolveResumedRemuxFailureCompletesSilent(t *testing.T) {
	mixer := &fakeMixer{err: errors.New("ffmpeg exploded")}
	f := newFixture(t, task.ProviderFreepik, WithMixer(mixer))

	rec := task.New("t-1", f.adapter.name, "kling-v2")
	rec.AudioTracks = []remux.Track{{SourceURL: "https://cdn/a.mp3", Duration: 3}}
	rec.Apply(task.StatusMixingAudio, task.Update{})
	if err := f.repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	got, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != task.StatusCompleted {
		t.Errorf("status = %s, want completed despite remux failure", got.Status)
	}
	if got.VideoURL != "https://store/videos/t-1.mp4" {
		t.Errorf("video_url = %q, want the silent durable URL", got.VideoURL)
	}
}

func TestResolveDropsLockAfterTerminal(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", nil)
	f.adapter.result = provider.PollResult{Status: provider.StatusProcessing}

	if _, err := f.res.Resolve(context.Background(), "t-1", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := f.res.locks.Load("t-1"); !ok {
		t.Error("in-flight task lost its poll lock entry")
	}

	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}
	if _, err := f.res.Resolve(context.Background(), "t-1", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := f.res.locks.Load("t-1"); ok {
		t.Error("terminal task still holds a poll lock entry")
	}

	// Reads of the terminal record don't leave a fresh entry behind either.
	if _, err := f.res.Resolve(context.Background(), "t-1", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := f.res.locks.Load("t-1"); ok {
		t.Error("terminal read repopulated the poll lock map")
	}
}

func TestResolveTracksWithoutMixer(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.saveProcessing(t, "t-1", []remux.Track{{SourceURL: "https://cdn/a.mp3", Duration: 3}})
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	rec, err := f.res.Resolve(context.Background(), "t-1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusCompleted || rec.VideoURL != "https://store/videos/t-1.mp4" {
		t.Errorf("record = %s/%q", rec.Status, rec.VideoURL)
	}
}

func TestResolveTransientHint(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}

	rec, err := f.res.Resolve(context.Background(), "unknown-task", task.ProviderFreepik)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Status != task.StatusCompleted {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.VideoURL != "https://store/videos/unknown-task.mp4" {
		t.Errorf("video_url = %q", rec.VideoURL)
	}

	// The snapshot is not persisted as a record.
	if _, err := f.repo.FindByTaskID(context.Background(), "unknown-task"); !errors.Is(err, task.ErrTaskNotFound) {
		t.Errorf("repo err = %v, want ErrTaskNotFound", err)
	}
}

func TestResolveTransientRepeatedPollsPersistOnce(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)
	f.adapter.result = provider.PollResult{Status: provider.StatusCompleted, URL: f.cdn.URL + "/out.mp4"}
	ctx := context.Background()

	first, err := f.res.Resolve(ctx, "unknown-task", task.ProviderFreepik)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.VideoURL != "https://store/videos/unknown-task.mp4" {
		t.Errorf("first video_url = %q", first.VideoURL)
	}

	// Without a record marking the copy done, a second hint poll must find
	// the stored object instead of copying the artifact again.
	second, err := f.res.Resolve(ctx, "unknown-task", task.ProviderFreepik)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if f.store.uploadN != 1 {
		t.Errorf("uploads = %d, want the artifact copied once across polls", f.store.uploadN)
	}
	if second.VideoURL != "https://store/videos/unknown-task.mp4?sig=fresh" {
		t.Errorf("second video_url = %q, want a re-signed stored URL", second.VideoURL)
	}
}

func TestResolveTransientInvalidHint(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)

	_, err := f.res.Resolve(context.Background(), "unknown-task", "")
	if !errors.Is(err, task.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
	_, err = f.res.Resolve(context.Background(), "unknown-task", "midjourney")
	if !errors.Is(err, task.ErrTaskNotFound) {
		t.Errorf("err = %v, want ErrTaskNotFound for unknown provider names", err)
	}
}

func TestResolveTransientUnregisteredHint(t *testing.T) {
	f := newFixture(t, task.ProviderFreepik)

	_, err := f.res.Resolve(context.Background(), "unknown-task", task.ProviderKling)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}
