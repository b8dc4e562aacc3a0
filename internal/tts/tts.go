// Package tts produces the narration track of a short.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/ffmpeg"
	"github.com/keagan/factreel/internal/script"
	"github.com/keagan/factreel/pkg/util"
)

// ErrNoSpeech is returned for a script without any quoted line
var ErrNoSpeech = errors.New("script has no spoken lines")

// Synthesizer renders text to an audio file
type Synthesizer interface {
	Synthesize(ctx context.Context, text, out string) error
}

type runFunc func(ctx context.Context, name string, args ...string) error

// Coqui drives the Coqui TTS command line
type Coqui struct {
	logger  zerolog.Logger
	binary  string
	model   string
	speaker string
	run     runFunc
}

func NewCoqui(logger zerolog.Logger, binary, model, speaker string) *Coqui {
	if binary == "" {
		binary = "tts"
	}
	return &Coqui{
		logger:  logger.With().Str("component", "tts").Logger(),
		binary:  binary,
		model:   model,
		speaker: speaker,
		run:     runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func (c *Coqui) Synthesize(ctx context.Context, text, out string) error {
	args := []string{"--text", text, "--model_name", c.model, "--out_path", out}
	if c.speaker != "" {
		args = append(args, "--speaker_idx", c.speaker)
	}

	c.logger.Debug().Str("model", c.model).Str("speaker", c.speaker).Int("chars", len(text)).Msg("synthesizing")
	if err := c.run(ctx, c.binary, args...); err != nil {
		return fmt.Errorf("tts failed: %w", err)
	}
	if !util.FileExists(out) {
		return fmt.Errorf("tts produced no file at %s", out)
	}
	return nil
}

// Normalizer evens out loudness
type Normalizer interface {
	NormalizeAudio(ctx context.Context, input, output string, targetLevel float64, progressFunc ffmpeg.ProgressFunc) error
}

// Narrator turns a video script into audio/audio.wav
type Narrator struct {
	logger     zerolog.Logger
	synth      Synthesizer
	normalizer Normalizer
	loudness   float64
}

// NewNarrator creates a narrator; a nil normalizer skips loudness correction
func NewNarrator(logger zerolog.Logger, synth Synthesizer, normalizer Normalizer, loudness float64) *Narrator {
	return &Narrator{
		logger:     logger.With().Str("component", "narrator").Logger(),
		synth:      synth,
		normalizer: normalizer,
		loudness:   loudness,
	}
}

// Narrate speaks the quoted lines of videoScript into out. The directory
// holding out is emptied first.
func (n *Narrator) Narrate(ctx context.Context, videoScript, out string) error {
	text := script.Spoken(videoScript)
	if text == "" {
		return ErrNoSpeech
	}
	if err := util.RecreateDir(filepath.Dir(out)); err != nil {
		return fmt.Errorf("failed to prepare audio dir: %w", err)
	}

	if n.normalizer == nil {
		if err := n.synth.Synthesize(ctx, text, out); err != nil {
			return err
		}
		n.logger.Info().Str("output", out).Msg("narration generated")
		return nil
	}

	raw := strings.TrimSuffix(out, filepath.Ext(out)) + ".raw" + filepath.Ext(out)
	if err := n.synth.Synthesize(ctx, text, raw); err != nil {
		return err
	}
	defer os.Remove(raw)

	if err := n.normalizer.NormalizeAudio(ctx, raw, out, n.loudness, nil); err != nil {
		return fmt.Errorf("failed to normalize narration: %w", err)
	}
	n.logger.Info().Str("output", out).Float64("loudness", n.loudness).Msg("narration generated")
	return nil
}
