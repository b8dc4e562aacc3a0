package selection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/pkg/util"
)

// ExhaustionPolicy decides what happens when every trial is rejected
type ExhaustionPolicy string

const (
	// TakeLastOnExhaustion cuts around the last sampled frame anyway
	TakeLastOnExhaustion ExhaustionPolicy = "take-last-on-exhaustion"
	// SkipOnExhaustion produces no clip
	SkipOnExhaustion ExhaustionPolicy = "skip"
)

// ParseExhaustionPolicy accepts the policy names; empty means the default
func ParseExhaustionPolicy(s string) (ExhaustionPolicy, error) {
	switch ExhaustionPolicy(s) {
	case "", TakeLastOnExhaustion:
		return TakeLastOnExhaustion, nil
	case SkipOnExhaustion:
		return SkipOnExhaustion, nil
	default:
		return "", fmt.Errorf("unknown exhaustion policy %q", s)
	}
}

// Trials evaluates random frames until one is accepted or MaxTrials frames
// have been tried, then cuts [t-Offset, t+Offset] around it.
type Trials struct {
	logger     zerolog.Logger
	media      Media
	classifier *Classifier
	rng        *rand.Rand

	MaxTrials int
	Offset    time.Duration
	Policy    ExhaustionPolicy
}

func NewTrials(logger zerolog.Logger, media Media, classifier *Classifier, maxTrials int, offset time.Duration, policy ExhaustionPolicy) *Trials {
	seed := uint64(time.Now().UnixNano())
	return &Trials{
		logger:     logger.With().Str("component", "trials").Logger(),
		media:      media,
		classifier: classifier,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		MaxTrials:  maxTrials,
		Offset:     offset,
		Policy:     policy,
	}
}

// WithRand replaces the frame picker's random source
func (t *Trials) WithRand(r *rand.Rand) *Trials {
	t.rng = r
	return t
}

func (t *Trials) Select(ctx context.Context, job Job) ([]CandidateClip, error) {
	meta, err := t.media.Probe(ctx, job.Video)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.Error().Err(err).Str("video", job.Video).Msg("cannot open video")
		return nil, nil
	}
	if meta.Frames <= 0 {
		t.logger.Error().Str("video", job.Video).Msg("video has no frames")
		return nil, nil
	}
	if err := util.RecreateDir(job.FramesDir); err != nil {
		return nil, fmt.Errorf("failed to prepare frames dir: %w", err)
	}

	trials := max(1, t.MaxTrials)
	last := -1
	for i := 0; i < trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame := t.rng.IntN(meta.Frames)
		framePath := filepath.Join(job.FramesDir, fmt.Sprintf("frame_%d.jpg", frame))
		if err := t.media.WriteFrame(ctx, job.Video, frame, meta.FPS, framePath); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.logger.Warn().Err(err).Int("frame", frame).Msg("frame extraction failed")
			continue
		}
		last = frame

		if t.classifier.Classify(ctx, framePath, job.Question) == 1 {
			t.logger.Debug().Int("frame", frame).Int("trial", i+1).Msg("good fit found")
			return t.cut(ctx, job, meta, frame, true)
		}
	}

	if t.Policy == SkipOnExhaustion || last < 0 {
		t.logger.Info().Str("video", job.Video).Int("trials", trials).Msg("no good fit found")
		return nil, nil
	}
	t.logger.Info().Str("video", job.Video).Int("trials", trials).Int("frame", last).
		Msg("no good fit found, using last sampled frame")
	return t.cut(ctx, job, meta, last, false)
}

func (t *Trials) cut(ctx context.Context, job Job, meta Meta, frame int, positive bool) ([]CandidateClip, error) {
	if err := util.RecreateDir(job.ClipsDir); err != nil {
		return nil, fmt.Errorf("failed to prepare clips dir: %w", err)
	}

	start, end := Window(util.FrameTime(frame, meta.FPS), t.Offset)
	clip := CandidateClip{
		Path:       filepath.Join(job.ClipsDir, "clip_0.mp4"),
		StartFrame: util.FramesIn(meta.FPS, start.Seconds()),
		EndFrame:   min(meta.Frames, util.FramesIn(meta.FPS, end.Seconds())),
		Start:      start,
		End:        end,
		Positive:   positive,
	}
	if err := t.media.WriteClip(ctx, job.Video, start, end, clip.Path, true); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.logger.Warn().Err(err).Str("video", job.Video).Msg("clip export failed")
		return nil, nil
	}
	return []CandidateClip{clip}, nil
}

// Window returns [ts-offset, ts+offset] clamped at zero
func Window(ts, offset time.Duration) (time.Duration, time.Duration) {
	return max(0, ts-offset), ts + offset
}
