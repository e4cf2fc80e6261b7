package remux

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func muxArgsFor(t *testing.T, tracks []Track, aspectRatio string) []string {
	t.Helper()
	urls := uniqueSourceURLs(tracks)
	paths := make(map[string]string, len(urls))
	for i, u := range urls {
		paths[u] = "/scratch/audio_" + string(rune('0'+i))
	}
	return buildMuxArgs("/scratch/input.mp4", urls, paths, tracks, aspectRatio, "/scratch/output.mp4")
}

func argsContain(args []string, want string) bool {
	return strings.Contains(strings.Join(args, " "), want)
}

func TestBuildMuxArgsSingleTrack(t *testing.T) {
	tracks := []Track{{
		SourceURL:   "https://cdn/a.mp3",
		StartTime:   0,
		Duration:    3,
		SourceStart: 2,
	}}

	args := muxArgsFor(t, tracks, "16:9")

	// Trim [2,5) of the source, reset timestamps, no delay.
	if !argsContain(args, "[1:a]atrim=start=2:end=5,asetpts=PTS-STARTPTS,adelay=0|0[a0]") {
		t.Errorf("trim filter missing in %v", args)
	}
	if !argsContain(args, "[a0]amix=inputs=1:dropout_transition=0[aout]") {
		t.Errorf("amix filter missing in %v", args)
	}
	if !argsContain(args, "-map 0:v -c:v copy") {
		t.Errorf("16:9 must stream-copy the video, got %v", args)
	}
	if !argsContain(args, "-map [aout] -c:a aac") {
		t.Errorf("mixed audio not mapped in %v", args)
	}
	if !argsContain(args, "-shortest /scratch/output.mp4") {
		t.Errorf("-shortest missing in %v", args)
	}
}

func TestBuildMuxArgsDelayedOverlappingTracks(t *testing.T) {
	tracks := []Track{
		{SourceURL: "https://cdn/a.mp3", StartTime: 1.5, Duration: 4, SourceStart: 0},
		{SourceURL: "https://cdn/b.mp3", StartTime: 3, Duration: 2, SourceStart: 0.5},
	}

	args := muxArgsFor(t, tracks, "16:9")

	if !argsContain(args, "adelay=1500|1500[a0]") {
		t.Errorf("first track delay missing in %v", args)
	}
	if !argsContain(args, "atrim=start=0.5:end=2.5") {
		t.Errorf("second track trim missing in %v", args)
	}
	if !argsContain(args, "adelay=3000|3000[a1]") {
		t.Errorf("second track delay missing in %v", args)
	}
	// Overlapping ranges mix additively into one stream.
	if !argsContain(args, "[a0][a1]amix=inputs=2:dropout_transition=0[aout]") {
		t.Errorf("amix of both tracks missing in %v", args)
	}
}

func TestBuildMuxArgsZeroTracksNoAudioStream(t *testing.T) {
	args := buildMuxArgs("/scratch/input.mp4", nil, nil, nil, "16:9", "/scratch/output.mp4")

	if !argsContain(args, "-an") {
		t.Errorf("zero tracks must disable audio, got %v", args)
	}
	if argsContain(args, "-filter_complex") {
		t.Errorf("no filters expected without tracks or scaling, got %v", args)
	}
	if argsContain(args, "aout") {
		t.Errorf("no audio stream must be mapped, got %v", args)
	}
}

func TestBuildMuxArgsAspectScaling(t *testing.T) {
	tests := []struct {
		ratio string
		w, h  int
	}{
		{"9:16", 1080, 1920},
		{"1:1", 1080, 1080},
		{"4:5", 1080, 1350},
		{"4:3", 1440, 1080},
		{"1:2", 960, 1920},
	}

	for _, tt := range tests {
		t.Run(tt.ratio, func(t *testing.T) {
			args := buildMuxArgs("/scratch/input.mp4", nil, nil, nil, tt.ratio, "/scratch/output.mp4")

			want := fmt.Sprintf("[0:v]scale=w=%d:h=%d:force_original_aspect_ratio=increase,crop=%d:%d[vout]",
				tt.w, tt.h, tt.w, tt.h)
			if !argsContain(args, want) {
				t.Errorf("scale filter %q missing in %v", want, args)
			}
			if !argsContain(args, "-map [vout] -c:v libx264 -preset ultrafast -crf 23") {
				t.Errorf("re-encode flags missing in %v", args)
			}
		})
	}

	// Native and unknown ratios keep the stream untouched.
	for _, ratio := range []string{"16:9", "", "7:3"} {
		args := buildMuxArgs("/scratch/input.mp4", nil, nil, nil, ratio, "/scratch/output.mp4")
		if !argsContain(args, "-map 0:v -c:v copy") {
			t.Errorf("ratio %q must stream-copy, got %v", ratio, args)
		}
	}
}

func TestUniqueSourceURLs(t *testing.T) {
	tracks := []Track{
		{SourceURL: "https://cdn/a.mp3"},
		{SourceURL: "https://cdn/b.mp3"},
		{SourceURL: "https://cdn/a.mp3"},
	}

	urls := uniqueSourceURLs(tracks)
	if len(urls) != 2 || urls[0] != "https://cdn/a.mp3" || urls[1] != "https://cdn/b.mp3" {
		t.Errorf("urls = %v, want deduplicated in first-seen order", urls)
	}
}

func TestRemuxValidation(t *testing.T) {
	ctx := context.Background()

	m := NewFFmpegMixer("ffmpeg", nil)
	if _, err := m.Remux(ctx, "t", "https://cdn/v.mp4", nil, ""); !errors.Is(err, ErrUploaderRequired) {
		t.Errorf("err = %v, want ErrUploaderRequired", err)
	}
	if _, err := m.Remux(ctx, "t", "", nil, ""); !errors.Is(err, ErrVideoURLRequired) {
		t.Errorf("err = %v, want ErrVideoURLRequired", err)
	}
}

func TestFFmpegErrorUnwrap(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &FFmpegError{Args: []string{"-i", "x"}, Stderr: "boom", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("FFmpegError must unwrap to the exec error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "boom") || !strings.Contains(msg, "exit status 1") {
		t.Errorf("message = %q", msg)
	}
}
