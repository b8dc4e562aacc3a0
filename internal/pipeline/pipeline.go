// Package pipeline runs the stages that turn an article into shorts. Each
// stage loads a fact record, transforms it and saves it back, so a run can
// be resumed from any stage.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/facts"
	"github.com/keagan/factreel/internal/logging"
)

// Pipeline orchestrates the whole fact-to-short workflow
type Pipeline struct {
	logger zerolog.Logger
	repo   facts.Repository
	deps   Deps
	opts   Options
	closer func()
}

// New creates a pipeline from already built collaborators
func New(logger zerolog.Logger, repo facts.Repository, deps Deps, opts Options) *Pipeline {
	if opts.FactCount <= 0 {
		opts.FactCount = 3
	}
	if opts.Sections <= 0 {
		opts.Sections = 3
	}
	if opts.MatchesPerSection <= 0 {
		opts.MatchesPerSection = 2
	}
	if opts.PerQuery <= 0 {
		opts.PerQuery = 3
	}
	if opts.KeywordCount <= 0 {
		opts.KeywordCount = 5
	}
	if opts.IndexTopK <= 0 {
		opts.IndexTopK = 5
	}
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		repo:   repo,
		deps:   deps,
		opts:   opts,
	}
}

// Close releases resources acquired by Build
func (p *Pipeline) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// Layout returns the directory tree of a fact
func (p *Pipeline) Layout(key string) facts.Layout {
	return facts.Layout{Base: p.opts.OutputPath, Fact: key}
}

// Result summarizes a full run
type Result struct {
	RunID     string
	Fact      string
	Videos    int
	Selection SelectionReport
	Shorts    []string
}

// Run processes one fact end to end. With a non-empty url the document is
// rebuilt from the article first; otherwise the stored document is used.
func (p *Pipeline) Run(ctx context.Context, url, key string) (*Result, error) {
	runID := uuid.NewString()[:8]
	logger := logging.WithRun(p.logger, runID, key)
	ctx = context.WithValue(ctx, runLoggerKey{}, logger)

	logger.Info().Str("article", url).Msg("starting pipeline")
	res := &Result{RunID: runID, Fact: key}

	if url != "" {
		doc, err := p.Document(ctx, url)
		if err != nil {
			return res, err
		}
		if _, ok := doc.Facts[key]; !ok {
			return res, fmt.Errorf("article produced %d facts, %s: %w", len(doc.Facts), key, facts.ErrNotFound)
		}
	}

	rec, err := p.Footage(ctx, key)
	if err != nil {
		return res, err
	}
	res.Videos = len(rec.VideoPaths)

	_, report, err := p.Selection(ctx, key)
	if err != nil {
		return res, err
	}
	res.Selection = report

	if err := p.Narration(ctx, key); err != nil {
		return res, err
	}

	shorts, err := p.Edit(ctx, key)
	if err != nil {
		return res, err
	}
	res.Shorts = shorts

	logger.Info().
		Int("videos", res.Videos).
		Int("clips", report.Total()).
		Int("shorts", len(shorts)).
		Msg("pipeline complete")
	return res, nil
}

type runLoggerKey struct{}

// log returns the run-scoped logger stored on ctx by Run, or the pipeline's
func (p *Pipeline) log(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(runLoggerKey{}).(zerolog.Logger); ok {
		return &l
	}
	return &p.logger
}
