package selection

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Job is one (section, source video) pair to find clips for
type Job struct {
	Video     string
	Question  string
	FramesDir string
	ClipsDir  string
}

// Strategy turns a job into candidate clips
type Strategy interface {
	Select(ctx context.Context, job Job) ([]CandidateClip, error)
}

// Exhaustive samples every window, labels every frame and extracts the
// majority positive clips.
type Exhaustive struct {
	logger     zerolog.Logger
	sampler    *Sampler
	classifier *Classifier
	extractor  *Extractor

	IntervalSeconds float64
	ClipSeconds     float64
	// Progress receives a per-frame progress bar; nil disables it
	Progress io.Writer
}

func NewExhaustive(logger zerolog.Logger, media Media, classifier *Classifier, intervalSeconds, clipSeconds float64) *Exhaustive {
	return &Exhaustive{
		logger:          logger.With().Str("component", "exhaustive").Logger(),
		sampler:         NewSampler(logger, media),
		classifier:      classifier,
		extractor:       NewExtractor(logger, media),
		IntervalSeconds: intervalSeconds,
		ClipSeconds:     clipSeconds,
	}
}

func (x *Exhaustive) Select(ctx context.Context, job Job) ([]CandidateClip, error) {
	sampling, err := x.sampler.Sample(ctx, job.Video, x.IntervalSeconds, job.FramesDir)
	if err != nil {
		return nil, err
	}
	if len(sampling.Samples) == 0 {
		return nil, nil
	}

	bar := x.newBar(len(sampling.Samples))
	verdicts := make([]int, len(sampling.Samples))
	positives := 0
	for i, s := range sampling.Samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		verdicts[i] = x.classifier.Classify(ctx, s.FramePath, job.Question)
		positives += verdicts[i]
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	labels, err := Label(sampling.Samples, verdicts, sampling.Meta.Frames, sampling.Interval)
	if err != nil {
		return nil, fmt.Errorf("failed to label %s: %w", job.Video, err)
	}

	x.logger.Info().
		Str("video", job.Video).
		Int("samples", len(verdicts)).
		Int("positive", positives).
		Msg("frames classified")

	return x.extractor.Extract(ctx, job.Video, labels, sampling.Meta.FPS, x.ClipSeconds, job.ClipsDir)
}

func (x *Exhaustive) newBar(n int) *progressbar.ProgressBar {
	if x.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(x.Progress),
		progressbar.OptionSetDescription("classifying frames"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
