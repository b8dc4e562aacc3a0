// Package selection finds the parts of source videos that illustrate a
// script section. Two strategies are provided: an exhaustive pass that
// samples a frame per window, labels every frame and keeps majority
// positive clips, and a bounded random search that cuts around the first
// frame the vision model accepts.
package selection

import (
	"context"
	"errors"
	"time"
)

// ErrPartition is returned when frame samples do not tile the frame range
var ErrPartition = errors.New("frame samples do not partition the video")

// FrameSample is one sampled frame and the window of frames it stands for
type FrameSample struct {
	FramePath  string
	StartFrame int // inclusive
	EndFrame   int // exclusive
}

// Labels holds one 0/1 relevance label per video frame
type Labels []int

// Positives counts the positive labels in [start, end)
func (l Labels) Positives(start, end int) int {
	n := 0
	for _, v := range l[start:end] {
		n += v
	}
	return n
}

// CandidateClip is an exported segment of a source video
type CandidateClip struct {
	Path       string
	StartFrame int
	EndFrame   int
	Start      time.Duration
	End        time.Duration
	// Positive is false for a fallback clip cut after all trials were rejected
	Positive bool
}

// Meta is what the selection code needs to know about a video
type Meta struct {
	FPS    float64
	Frames int
}

// Media reads and writes video
type Media interface {
	Probe(ctx context.Context, path string) (Meta, error)
	// WriteFrame writes frame index of the video as an image
	WriteFrame(ctx context.Context, path string, frame int, fps float64, out string) error
	// WriteFrameRange re-encodes frames [start, end) to out
	WriteFrameRange(ctx context.Context, path string, start, end int, fps float64, out string) error
	// WriteClip cuts [start, end) to out, copying streams when copyCodec is set
	WriteClip(ctx context.Context, path string, start, end time.Duration, out string, copyCodec bool) error
}

// Oracle answers a natural language question about an image
type Oracle interface {
	Ask(ctx context.Context, imagePath, question string) (string, error)
}
