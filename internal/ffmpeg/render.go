package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/keagan/factreel/pkg/util"
)

// Render performs a single-input re-encode with filters, trimming and rate conversion
func (e *Executor) Render(ctx context.Context, opts RenderOptions) error {
	if err := validateRenderOptions(opts); err != nil {
		return fmt.Errorf("invalid render options: %w", err)
	}

	e.logger.Debug().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Msg("starting render")

	var args []string
	if opts.Start > 0 {
		args = append(args, "-ss", util.FormatDuration(opts.Start))
	}
	if opts.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-i", opts.Input)
	if opts.Duration > 0 {
		args = append(args, "-t", util.FormatDuration(opts.Duration))
	}

	if len(opts.Filters) > 0 {
		args = append(args, "-vf", strings.Join(opts.Filters, ","))
	}

	args = append(args, e.encodeArgs(opts.VideoCodec, opts.AudioCodec, opts.CRF, opts.Preset)...)
	if opts.NoAudio {
		args = append(args, "-an")
	}

	if opts.FPS > 0 {
		args = append(args, "-r", fmt.Sprintf("%.2f", opts.FPS))
	}

	args = append(args, opts.CustomArgs...)
	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Debug().Str("output", opts.Output).Msg("render completed")
	return nil
}

// SubtitleStyle maps to ASS style fields understood by the subtitles filter
type SubtitleStyle struct {
	FontName  string
	FontSize  int
	FontColor string // #RRGGBB
	MarginV   int
}

// ForceStyle renders the style as a force_style value
func (s SubtitleStyle) ForceStyle() string {
	var parts []string
	if s.FontName != "" {
		parts = append(parts, "FontName="+s.FontName)
	}
	if s.FontSize > 0 {
		parts = append(parts, fmt.Sprintf("FontSize=%d", s.FontSize))
	}
	if c := assColor(s.FontColor); c != "" {
		parts = append(parts, "PrimaryColour="+c)
	}
	parts = append(parts, "BorderStyle=3", "Alignment=2")
	if s.MarginV > 0 {
		parts = append(parts, fmt.Sprintf("MarginV=%d", s.MarginV))
	}
	return strings.Join(parts, ",")
}

// ApplySubtitles burns subtitles into the video
func (e *Executor) ApplySubtitles(ctx context.Context, input, subtitles, output string, style SubtitleStyle, progressFunc ProgressFunc) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if subtitles == "" {
		return fmt.Errorf("subtitles path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("subtitles", subtitles).
		Str("output", output).
		Msg("applying subtitles")

	args := []string{
		"-i", input,
		"-vf", NewFilterBuilder().Subtitles(subtitles, style.ForceStyle()).Build(),
		"-c:v", DefaultVideoCodec,
		"-crf", fmt.Sprintf("%d", DefaultCRF),
		"-preset", e.preset,
		"-c:a", "copy",
		output,
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("subtitle output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("subtitle application failed: %w", err)
	}

	return nil
}

// validateRenderOptions validates the render options
func validateRenderOptions(opts RenderOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	if opts.FPS < 0 {
		return fmt.Errorf("FPS cannot be negative")
	}
	if opts.Start < 0 || opts.Duration < 0 {
		return fmt.Errorf("start and duration cannot be negative")
	}
	if opts.Loop && opts.Duration == 0 {
		return fmt.Errorf("looped input needs a duration")
	}
	return nil
}

// escapeFilterPath escapes a file path for use inside an ffmpeg filter argument
func escapeFilterPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	if runtime.GOOS == "windows" {
		absPath = strings.ReplaceAll(absPath, "\\", "/")
	}

	escaped := strings.ReplaceAll(absPath, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, ":", "\\:")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	escaped = strings.ReplaceAll(escaped, ",", "\\,")

	return escaped
}

// assColor converts #RRGGBB into ASS &H00BBGGRR notation
func assColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return ""
	}
	return "&H00" + strings.ToUpper(hex[4:6]+hex[2:4]+hex[0:2])
}
