// Package editor assembles portrait shorts from per-section clips and the
// narration track.
package editor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/ffmpeg"
	"github.com/keagan/factreel/pkg/util"
)

// Media is the subset of ffmpeg operations the editor uses
type Media interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	Render(ctx context.Context, opts ffmpeg.RenderOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	MuxAudio(ctx context.Context, opts ffmpeg.MuxOptions) error
	ApplySubtitles(ctx context.Context, input, subtitles, output string, style ffmpeg.SubtitleStyle, progressFunc ffmpeg.ProgressFunc) error
}

// Options controls the output format
type Options struct {
	Shorts    int
	Width     int
	Height    int
	FPS       float64
	Gain      float64
	Subtitles bool
	Style     ffmpeg.SubtitleStyle
}

// Input is everything needed to cut the shorts of one fact
type Input struct {
	Sections []string   // narration text per section
	Clips    [][]string // candidate clip paths per section
	Audio    string
	OutDir   string
}

// Editor renders shorts
type Editor struct {
	logger zerolog.Logger
	media  Media
	opts   Options
	rng    *rand.Rand
}

func New(logger zerolog.Logger, media Media, opts Options) *Editor {
	seed := uint64(time.Now().UnixNano())
	return &Editor{
		logger: logger.With().Str("component", "editor").Logger(),
		media:  media,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(seed, seed+1)),
	}
}

// WithRand replaces the clip picker's random source
func (e *Editor) WithRand(r *rand.Rand) *Editor {
	e.rng = r
	return e
}

// PickClips returns n clips: a random sample without replacement when
// there are enough, otherwise every clip followed by random repeats.
func PickClips(rng *rand.Rand, clips []string, n int) []string {
	if len(clips) == 0 || n <= 0 {
		return nil
	}
	if n <= len(clips) {
		out := make([]string, n)
		for i, j := range rng.Perm(len(clips))[:n] {
			out[i] = clips[j]
		}
		return out
	}
	out := append([]string(nil), clips...)
	for len(out) < n {
		out = append(out, clips[rng.IntN(len(clips))])
	}
	return out
}

// Assemble writes short_<n>.mp4 files into in.OutDir, which is emptied
// first, and returns their paths.
func (e *Editor) Assemble(ctx context.Context, in Input) ([]string, error) {
	if len(in.Sections) == 0 {
		return nil, fmt.Errorf("no script sections")
	}
	if len(in.Clips) != len(in.Sections) {
		return nil, fmt.Errorf("%d clip lists for %d sections", len(in.Clips), len(in.Sections))
	}

	audioDur, err := e.media.ProbeDuration(ctx, in.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration: %w", err)
	}
	sectionDur := audioDur / time.Duration(len(in.Sections))

	shorts := max(1, e.opts.Shorts)
	picks := make([][]string, len(in.Sections))
	usable := 0
	for s, clips := range in.Clips {
		if len(clips) == 0 {
			continue
		}
		picks[s] = PickClips(e.rng, clips, shorts)
		usable++
	}
	own := slices.Clone(picks)
	for s := range picks {
		if picks[s] != nil {
			continue
		}
		if donor := nearestWithClips(own, s); donor >= 0 {
			e.logger.Warn().Int("section", s).Int("donor", donor).Msg("section has no clips, reusing neighbour footage")
			picks[s] = picks[donor]
		}
	}

	if err := util.RecreateDir(in.OutDir); err != nil {
		return nil, fmt.Errorf("failed to prepare output dir: %w", err)
	}
	if usable == 0 {
		e.logger.Warn().Msg("no section has clips, nothing to edit")
		return nil, nil
	}

	work, err := os.MkdirTemp("", "factreel-edit-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	var subs string
	if e.opts.Subtitles {
		subs = filepath.Join(work, "sections.srt")
		if err := WriteSRT(subs, in.Sections, sectionDur); err != nil {
			return nil, err
		}
	}

	var outputs []string
	for i := 0; i < shorts; i++ {
		out := filepath.Join(in.OutDir, fmt.Sprintf("short_%d.mp4", i))
		if err := e.short(ctx, i, picks, in.Audio, sectionDur, subs, work, out); err != nil {
			return outputs, fmt.Errorf("short %d: %w", i, err)
		}
		outputs = append(outputs, out)
		e.logger.Info().Str("output", out).Dur("duration", audioDur).Msg("short rendered")
	}
	return outputs, nil
}

// nearestWithClips returns the closest section with picks, preferring the
// earlier one on ties, or -1 when there is none.
func nearestWithClips(picks [][]string, s int) int {
	for d := 1; d < len(picks); d++ {
		if i := s - d; i >= 0 && len(picks[i]) > 0 {
			return i
		}
		if i := s + d; i < len(picks) && len(picks[i]) > 0 {
			return i
		}
	}
	return -1
}

func (e *Editor) short(ctx context.Context, n int, picks [][]string, audio string, sectionDur time.Duration, subs, work, out string) error {
	filters := ffmpeg.NewFilterBuilder().Cover(e.opts.Width, e.opts.Height).FPS(e.opts.FPS).BuildAll()

	var segments []string
	for s, clips := range picks {
		if len(clips) == 0 {
			continue
		}
		seg := filepath.Join(work, fmt.Sprintf("short%d_section%d.mp4", n, s))
		err := e.media.Render(ctx, ffmpeg.RenderOptions{
			Input:    clips[n],
			Output:   seg,
			Duration: sectionDur,
			Loop:     true,
			Filters:  filters,
			NoAudio:  true,
			FPS:      e.opts.FPS,
		})
		if err != nil {
			return err
		}
		segments = append(segments, seg)
	}

	video := filepath.Join(work, fmt.Sprintf("short%d_video.mp4", n))
	if err := e.media.Concat(ctx, ffmpeg.ConcatOptions{Inputs: segments, Output: video, NoAudio: true}); err != nil {
		return err
	}

	muxed := out
	if subs != "" {
		muxed = filepath.Join(work, fmt.Sprintf("short%d_muxed.mp4", n))
	}
	err := e.media.MuxAudio(ctx, ffmpeg.MuxOptions{
		Video:    video,
		Audio:    audio,
		Output:   muxed,
		Gain:     e.opts.Gain,
		Bitrate:  ffmpeg.DefaultAudioBitrate,
		Shortest: true,
	})
	if err != nil {
		return err
	}

	if subs == "" {
		return nil
	}
	return e.media.ApplySubtitles(ctx, muxed, subs, out, e.opts.Style, func(p *ffmpeg.Progress) {
		e.logger.Debug().Int("short", n).Dur("elapsed", p.Elapsed).Str("speed", p.Speed).Msg("burning subtitles")
	})
}
