// Package remux attaches original audio tracks to a silently generated video.
// It builds an ffmpeg filter graph that trims, delays, and mixes the tracks,
// optionally rescaling the video to a target aspect ratio, and uploads the
// result to durable storage.
package remux

import (
	"context"
	"io"
)

// Track describes one audio track to place into the output timeline.
type Track struct {
	// SourceURL is where the audio is fetched from. Tracks may share a source.
	SourceURL string `json:"source_url"`
	// StartTime is where the track begins in the output, in seconds.
	StartTime float64 `json:"start_time"`
	// Duration is how long the track plays in the output, in seconds.
	Duration float64 `json:"duration"`
	// SourceStart is the offset into the source audio, in seconds.
	SourceStart float64 `json:"source_start"`
}

// Uploader stores a finished artifact under a deterministic key and returns
// a stable URL for it. The persistence mover satisfies this.
type Uploader interface {
	Store(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
}

// Mixer performs the audio remux stage.
type Mixer interface {
	// Remux downloads the silent video and every distinct audio source,
	// muxes them according to the track list, and returns the durable URL
	// of the uploaded result. Zero tracks produce an output with no audio
	// stream at all.
	Remux(ctx context.Context, taskID, videoURL string, tracks []Track, aspectRatio string) (string, error)
}
