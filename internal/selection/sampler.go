package selection

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/pkg/util"
)

// Sampling is the result of sampling one video
type Sampling struct {
	Meta     Meta
	Interval int // frames per window
	Samples  []FrameSample
}

// Sampler picks one frame per fixed time window
type Sampler struct {
	logger zerolog.Logger
	media  Media
}

func NewSampler(logger zerolog.Logger, media Media) *Sampler {
	return &Sampler{
		logger: logger.With().Str("component", "sampler").Logger(),
		media:  media,
	}
}

// FrameInterval converts a window length in seconds to frames (at least 1)
func FrameInterval(fps, seconds float64) int {
	return max(1, util.FramesIn(fps, seconds))
}

// Sample writes the midpoint frame of every intervalSeconds window of the
// video into outDir, which is emptied first. The windows are contiguous
// from frame 0; a trailing partial window is kept only when its midpoint
// exists. A video that cannot be opened yields an empty Sampling.
func (s *Sampler) Sample(ctx context.Context, videoPath string, intervalSeconds float64, outDir string) (Sampling, error) {
	meta, err := s.media.Probe(ctx, videoPath)
	if err != nil {
		if ctx.Err() != nil {
			return Sampling{}, ctx.Err()
		}
		s.logger.Error().Err(err).Str("video", videoPath).Msg("cannot open video")
		return Sampling{}, nil
	}

	if err := util.RecreateDir(outDir); err != nil {
		return Sampling{}, fmt.Errorf("failed to prepare frames dir: %w", err)
	}

	interval := FrameInterval(meta.FPS, intervalSeconds)
	out := Sampling{Meta: meta, Interval: interval}

	for start := 0; ; start += interval {
		mid := start + interval/2
		if mid >= meta.Frames {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		sample := FrameSample{
			FramePath:  filepath.Join(outDir, fmt.Sprintf("frame_%d.jpg", mid)),
			StartFrame: start,
			EndFrame:   min(start+interval, meta.Frames),
		}
		if err := s.media.WriteFrame(ctx, videoPath, mid, meta.FPS, sample.FramePath); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			// the window still needs a verdict; a missing image classifies as 0
			s.logger.Warn().Err(err).Int("frame", mid).Str("video", videoPath).Msg("frame extraction failed")
		}
		out.Samples = append(out.Samples, sample)
	}

	s.logger.Debug().
		Str("video", videoPath).
		Int("frames", meta.Frames).
		Int("interval", interval).
		Int("samples", len(out.Samples)).
		Msg("video sampled")
	return out, nil
}
