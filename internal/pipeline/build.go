package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/article"
	"github.com/keagan/factreel/internal/config"
	"github.com/keagan/factreel/internal/editor"
	"github.com/keagan/factreel/internal/facts"
	"github.com/keagan/factreel/internal/ffmpeg"
	"github.com/keagan/factreel/internal/footage"
	"github.com/keagan/factreel/internal/llm"
	"github.com/keagan/factreel/internal/prompts"
	"github.com/keagan/factreel/internal/selection"
	"github.com/keagan/factreel/internal/storyboard"
	"github.com/keagan/factreel/internal/tts"
	"github.com/keagan/factreel/internal/vision"
	"github.com/keagan/factreel/pkg/util"
)

// Build wires every collaborator from configuration. progress receives
// progress bars and may be nil. Call Close on the result when done.
func Build(ctx context.Context, logger zerolog.Logger, cfg *config.Config, progress io.Writer) (*Pipeline, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Pipeline, error) {
		closeAll()
		return nil, err
	}

	repo, err := buildRepository(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if pg, ok := repo.(*facts.PostgresRepository); ok {
		closers = append(closers, pg.Close)
	}

	store := prompts.Default()
	if cfg.PromptsFile != "" {
		if store, err = prompts.Load(cfg.PromptsFile); err != nil {
			return fail(err)
		}
	}

	chat, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		Host:     cfg.LLM.Host,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize llm: %w", err))
	}

	oracle, closeOracle, err := buildOracle(cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeOracle)

	exec, err := ffmpeg.New(logger, ffmpeg.Options{Threads: cfg.FFmpeg.Threads, Preset: cfg.FFmpeg.Preset})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize ffmpeg: %w", err))
	}

	cache, closeCache, err := buildCache(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeCache)

	deps := Deps{
		Article: article.NewFetcher(logger, nil),
		Planner: storyboard.New(logger, chat, store),
		Footage: footage.New(logger, footage.Options{
			BinaryPath:  cfg.Footage.BinaryPath,
			MinInterval: cfg.Footage.MinInterval,
			Cache:       cache,
			Progress:    progress,
		}),
		Editor: editor.New(logger, exec, editor.Options{
			Shorts:    cfg.Edit.Shorts,
			Width:     cfg.Edit.Width,
			Height:    cfg.Edit.Height,
			FPS:       cfg.Edit.FPS,
			Gain:      cfg.Edit.AudioGain,
			Subtitles: cfg.Edit.Subtitles.Enabled,
			Style: ffmpeg.SubtitleStyle{
				FontName:  cfg.Edit.Subtitles.FontName,
				FontSize:  cfg.Edit.Subtitles.FontSize,
				FontColor: cfg.Edit.Subtitles.FontColor,
				MarginV:   60,
			},
		}),
	}

	var normalizer tts.Normalizer
	if cfg.TTS.Normalize {
		normalizer = exec
	}
	deps.Narrator = tts.NewNarrator(logger,
		tts.NewCoqui(logger, cfg.TTS.BinaryPath, cfg.TTS.Model, cfg.TTS.Speaker),
		normalizer, cfg.TTS.Loudness)

	if deps.Strategy, err = buildStrategy(cfg, logger, selection.NewFFmpegMedia(exec), oracle, progress); err != nil {
		return fail(err)
	}

	if cfg.Index.Enabled {
		embedder, err := llm.NewOllama(cfg.LLM.Host, cfg.Index.EmbedModel, logger)
		if err != nil {
			return fail(err)
		}
		ix, err := article.NewIndex(ctx, logger, cfg.Index.DatabaseURL, embedder, article.IndexOptions{
			ChunkWords: cfg.Index.ChunkWords,
			Overlap:    cfg.Index.Overlap,
			Dimensions: cfg.Index.Dimensions,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to open article index: %w", err))
		}
		closers = append(closers, ix.Close)
		deps.Index = ix
	}

	p := New(logger, repo, deps, optionsFromConfig(cfg))
	p.closer = closeAll
	return p, nil
}

// optionsFromConfig maps configuration onto the stage knobs. Trials judge
// a frame against the section sentence, so keyword questions only apply to
// the exhaustive strategy.
func optionsFromConfig(cfg *config.Config) Options {
	return Options{
		OutputPath:        cfg.OutputPath,
		FactCount:         cfg.LLM.NumFacts,
		Sections:          cfg.Selection.Sections,
		MatchesPerSection: cfg.Selection.MatchesPerSection,
		UseKeywords:       cfg.Selection.UseKeywords,
		SentenceQuestions: strings.EqualFold(cfg.Selection.Strategy, "trials"),
		PerQuery:          cfg.Footage.PerQuery,
		MaxDuration:       cfg.Footage.MaxDuration,
		IndexTopK:         cfg.Index.TopK,
	}
}

func buildRepository(ctx context.Context, cfg *config.Config) (facts.Repository, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "", "file":
		return facts.NewFileRepository(cfg.FactsPath()), nil
	case "postgres":
		repo, err := facts.NewPostgresRepository(ctx, cfg.Store.DatabaseURL, cfg.Store.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to open fact store: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildOracle(cfg *config.Config, logger zerolog.Logger) (selection.Oracle, func(), error) {
	noop := func() {}
	switch strings.ToLower(cfg.Vision.Provider) {
	case "", "ollama":
		o, err := llm.NewOllama(cfg.LLM.Host, cfg.Vision.Model, logger)
		return o, noop, err
	case "openai":
		if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
			return nil, noop, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		return llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Vision.Model, logger), noop, nil
	case "onnx":
		c, err := vision.NewClassifier(logger, cfg.Vision.ModelPath)
		if err != nil {
			return nil, noop, err
		}
		return c, func() {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close classifier")
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown vision provider %q", cfg.Vision.Provider)
	}
}

func buildCache(ctx context.Context, cfg *config.Config) (footage.Cache, func(), error) {
	c := cfg.Footage.Cache
	switch strings.ToLower(c.Backend) {
	case "", "memory":
		return footage.NewMemoryCache(c.TTL), func() {}, nil
	case "redis":
		rc, err := footage.NewRedisCache(ctx, c.RedisURL, c.TTL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}

func buildStrategy(cfg *config.Config, logger zerolog.Logger, media selection.Media, oracle selection.Oracle, progress io.Writer) (selection.Strategy, error) {
	sc := cfg.Selection
	classifier := selection.NewClassifier(logger, oracle, cfg.Vision.Factor)

	switch strings.ToLower(sc.Strategy) {
	case "", "exhaustive":
		x := selection.NewExhaustive(logger, media, classifier, sc.IntervalSeconds, sc.ClipSeconds)
		x.Progress = progress
		return x, nil
	case "trials":
		policy, err := selection.ParseExhaustionPolicy(sc.OnExhaustion)
		if err != nil {
			return nil, err
		}
		return selection.NewTrials(logger, media, classifier, sc.MaxTrials, util.Seconds(sc.OffsetSeconds), policy), nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", sc.Strategy)
	}
}
