package footage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/keagan/factreel/pkg/util"
)

// runFunc executes a binary and returns its stdout
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures a Client
type Options struct {
	BinaryPath  string
	MinInterval time.Duration
	Cache       Cache
	// Progress receives a download progress bar; nil disables it
	Progress io.Writer
}

// Client wraps the yt-dlp binary
type Client struct {
	logger   zerolog.Logger
	binary   string
	limiter  *rate.Limiter
	cache    Cache
	progress io.Writer
	run      runFunc
}

// New creates a client. Every yt-dlp invocation waits for the limiter.
func New(logger zerolog.Logger, opts Options) *Client {
	binary := opts.BinaryPath
	if binary == "" {
		binary = "yt-dlp"
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(time.Hour)
	}

	return &Client{
		logger:   logger.With().Str("component", "footage").Logger(),
		binary:   binary,
		limiter:  rate.NewLimiter(limit, 1),
		cache:    cache,
		progress: opts.Progress,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Search returns up to max results for query. Failures are logged and
// yield an empty list.
func (c *Client) Search(ctx context.Context, query string, max int) []Video {
	key := cacheKey(query, max)
	if videos, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug().Str("query", query).Int("results", len(videos)).Msg("search cache hit")
		return videos
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	out, err := c.run(ctx, c.binary,
		fmt.Sprintf("ytsearch%d:%s", max, query),
		"--flat-playlist", "-J", "--quiet", "--no-warnings")
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil
	}

	videos, err := parseSearch(out)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil
	}

	c.cache.Set(ctx, key, videos)
	c.logger.Debug().Str("query", query).Int("results", len(videos)).Msg("search completed")
	return videos
}

// Download fetches url into dir and returns the written file path
func (c *Client) Download(ctx context.Context, url, dir string) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	out, err := c.run(ctx, c.binary,
		"-f", "best",
		"-o", filepath.Join(dir, "%(title)s [%(id)s].%(ext)s"),
		"--print", "after_move:filepath",
		"--quiet", "--no-warnings", "--no-simulate",
		url)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("failed to download %s: no output path reported", url)
	}
	return path, nil
}

// Downloaded is a video stored on disk
type Downloaded struct {
	Title string
	Path  string
}

// Collect searches every query, merges the unique results in order, and
// downloads those shorter than maxDuration into dir.
func (c *Client) Collect(ctx context.Context, queries []string, perQuery int, maxDuration time.Duration, dir string) ([]Downloaded, error) {
	var lists [][]Video
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lists = append(lists, c.Search(ctx, q, perQuery))
	}
	videos := Unique(lists...)
	c.logger.Info().Int("videos", len(videos)).Int("queries", len(queries)).Msg("unique videos found")

	var bar *progressbar.ProgressBar
	if c.progress != nil {
		bar = progressbar.NewOptions(len(videos),
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	var (
		results  []Downloaded
		rejected int
	)
	for _, v := range videos {
		if bar != nil {
			bar.Add(1)
		}
		if maxDuration > 0 && v.Length() >= maxDuration {
			rejected++
			c.logger.Debug().Err(ErrTooLong).Str("title", v.Title).Dur("duration", v.Length()).Msg("video rejected")
			continue
		}

		path, err := c.Download(ctx, v.URL, dir)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			c.logger.Warn().Err(err).Str("title", v.Title).Msg("download failed")
			continue
		}
		results = append(results, Downloaded{Title: v.Title, Path: path})
	}

	c.logger.Info().
		Int("downloaded", len(results)).
		Int("rejected", rejected).
		Dur("max_duration", maxDuration).
		Msg("footage collected")
	return results, nil
}
