package remux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Static errors for remux operations.
var (
	// ErrVideoURLRequired is returned when no video URL is provided.
	ErrVideoURLRequired = errors.New("remux: video URL is required")
	// ErrUploaderRequired is returned when the mixer was built without an uploader.
	ErrUploaderRequired = errors.New("remux: uploader is required")
	// ErrDownloadFailed is returned when a source download returns a non-2xx status.
	ErrDownloadFailed = errors.New("remux: download failed")
)

// aspectDims maps a target aspect ratio to exact output pixel dimensions.
// 16:9 is the source-native ratio and keeps the stream untouched.
var aspectDims = map[string][2]int{
	"16:9": {1920, 1080},
	"9:16": {1080, 1920},
	"1:1":  {1080, 1080},
	"4:5":  {1080, 1350},
	"4:3":  {1440, 1080},
	"1:2":  {960, 1920},
	"2:4":  {960, 1920},
}

// Compile-time check that FFmpegMixer implements Mixer.
var _ Mixer = (*FFmpegMixer)(nil)

// FFmpegMixer implements Mixer using the ffmpeg CLI.
type FFmpegMixer struct {
	ffmpegPath string
	tempDir    string
	uploader   Uploader
	httpClient *http.Client
	logger     *slog.Logger
}

// MixerOption configures an FFmpegMixer.
type MixerOption func(*FFmpegMixer)

// WithTempDir sets the directory for scratch files. Defaults to os.TempDir().
func WithTempDir(dir string) MixerOption {
	return func(m *FFmpegMixer) {
		m.tempDir = dir
	}
}

// WithHTTPClient sets a custom HTTP client for source downloads.
func WithHTTPClient(c *http.Client) MixerOption {
	return func(m *FFmpegMixer) {
		m.httpClient = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) MixerOption {
	return func(m *FFmpegMixer) {
		m.logger = l
	}
}

// NewFFmpegMixer creates a new FFmpegMixer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegMixer(ffmpegPath string, uploader Uploader, opts ...MixerOption) *FFmpegMixer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	m := &FFmpegMixer{
		ffmpegPath: ffmpegPath,
		tempDir:    os.TempDir(),
		uploader:   uploader,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Remux downloads the video and every distinct audio source in parallel,
// runs the filter-graph mux, and uploads the result under mixed/{taskID}.mp4.
// All temporary files are removed on every exit path.
func (m *FFmpegMixer) Remux(ctx context.Context, taskID, videoURL string, tracks []Track, aspectRatio string) (string, error) {
	if videoURL == "" {
		return "", ErrVideoURLRequired
	}
	if m.uploader == nil {
		return "", ErrUploaderRequired
	}

	scratch, err := os.MkdirTemp(m.tempDir, "remux-*")
	if err != nil {
		return "", fmt.Errorf("remux: create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	videoPath := filepath.Join(scratch, "input.mp4")
	outputPath := filepath.Join(scratch, "output.mp4")

	// Deduplicate audio sources by URL so each is fetched exactly once.
	audioURLs := uniqueSourceURLs(tracks)
	audioPaths := make(map[string]string, len(audioURLs))
	for i, u := range audioURLs {
		audioPaths[u] = filepath.Join(scratch, fmt.Sprintf("audio_%d", i))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.download(gctx, videoURL, videoPath)
	})
	for _, u := range audioURLs {
		g.Go(func() error {
			return m.download(gctx, u, audioPaths[u])
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	args := buildMuxArgs(videoPath, audioURLs, audioPaths, tracks, aspectRatio, outputPath)
	if err := m.runFFmpeg(ctx, args); err != nil {
		return "", err
	}

	out, err := os.Open(outputPath) // #nosec G304 - outputPath is constructed internally
	if err != nil {
		return "", fmt.Errorf("remux: open output: %w", err)
	}
	defer func() { _ = out.Close() }()

	url, err := m.uploader.Store(ctx, "mixed/"+taskID+".mp4", out, "video/mp4")
	if err != nil {
		return "", fmt.Errorf("remux: upload output: %w", err)
	}

	m.logger.Info("remux completed",
		slog.String("task_id", taskID),
		slog.Int("tracks", len(tracks)),
		slog.String("aspect_ratio", aspectRatio),
	)

	return url, nil
}

// uniqueSourceURLs returns the distinct track source URLs in first-seen order.
func uniqueSourceURLs(tracks []Track) []string {
	seen := make(map[string]bool, len(tracks))
	var urls []string
	for _, t := range tracks {
		if !seen[t.SourceURL] {
			seen[t.SourceURL] = true
			urls = append(urls, t.SourceURL)
		}
	}
	return urls
}

// buildMuxArgs constructs the full ffmpeg argument list for the mux.
//
// Per track: trim the source audio to [SourceStart, SourceStart+Duration],
// reset its timestamp base, and delay it by StartTime milliseconds. All
// delayed tracks are mixed into a single output stream; overlapping ranges
// are additive. With zero tracks the output carries no audio stream at all.
// When a non-native aspect ratio is requested the video is scaled to cover
// the target dimensions and center-cropped, which forces a re-encode;
// otherwise the video stream is copied untouched.
func buildMuxArgs(videoPath string, audioURLs []string, audioPaths map[string]string, tracks []Track, aspectRatio, outputPath string) []string {
	args := []string{"-y", "-i", videoPath}
	for _, u := range audioURLs {
		args = append(args, "-i", audioPaths[u])
	}

	inputIndex := make(map[string]int, len(audioURLs))
	for i, u := range audioURLs {
		inputIndex[u] = i + 1 // input 0 is the video
	}

	var filters []string
	var mixLabels []string
	for i, t := range tracks {
		delayMs := int(t.StartTime*1000 + 0.5)
		end := t.SourceStart + t.Duration
		filters = append(filters, fmt.Sprintf(
			"[%d:a]atrim=start=%g:end=%g,asetpts=PTS-STARTPTS,adelay=%d|%d[a%d]",
			inputIndex[t.SourceURL], t.SourceStart, end, delayMs, delayMs, i,
		))
		mixLabels = append(mixLabels, fmt.Sprintf("[a%d]", i))
	}

	mapVideo := "0:v"
	videoCodec := []string{"-c:v", "copy"}
	if dims, ok := aspectDims[aspectRatio]; ok && aspectRatio != "16:9" {
		// force_original_aspect_ratio=increase makes the video cover the
		// target box; crop then cuts it to exact dimensions (center crop).
		filters = append(filters, fmt.Sprintf(
			"[0:v]scale=w=%d:h=%d:force_original_aspect_ratio=increase,crop=%d:%d[vout]",
			dims[0], dims[1], dims[0], dims[1],
		))
		mapVideo = "[vout]"
		videoCodec = []string{"-c:v", "libx264", "-preset", "ultrafast", "-crf", "23"}
	}

	if len(mixLabels) > 0 {
		filters = append(filters, fmt.Sprintf(
			"%samix=inputs=%d:dropout_transition=0[aout]",
			strings.Join(mixLabels, ""), len(mixLabels),
		))
	}

	if len(filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
	}

	args = append(args, "-map", mapVideo)
	args = append(args, videoCodec...)

	if len(mixLabels) > 0 {
		args = append(args, "-map", "[aout]", "-c:a", "aac")
	} else {
		args = append(args, "-an")
	}

	// Clip to the shortest of the video/audio streams.
	args = append(args, "-shortest", outputPath)
	return args
}

// download fetches a URL into a local file.
func (m *FFmpegMixer) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("remux: create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remux: fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrDownloadFailed, url, resp.StatusCode)
	}

	f, err := os.Create(destPath) // #nosec G304 - destPath is constructed internally
	if err != nil {
		return fmt.Errorf("remux: create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("remux: write file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (m *FFmpegMixer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
