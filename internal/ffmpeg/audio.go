package ffmpeg

import (
	"context"
	"fmt"
)

// MuxOptions describes laying a narration track over a silent video
type MuxOptions struct {
	Video        string
	Audio        string
	Output       string
	Gain         float64 // linear volume multiplier, 0 leaves the track untouched
	Bitrate      string
	Shortest     bool
	ProgressFunc ProgressFunc
}

// MuxAudio replaces the audio of a video with an external track
func (e *Executor) MuxAudio(ctx context.Context, opts MuxOptions) error {
	if opts.Video == "" || opts.Audio == "" || opts.Output == "" {
		return fmt.Errorf("video, audio and output paths are required")
	}

	e.logger.Info().
		Str("video", opts.Video).
		Str("audio", opts.Audio).
		Str("output", opts.Output).
		Float64("gain", opts.Gain).
		Msg("muxing narration")

	bitrate := opts.Bitrate
	if bitrate == "" {
		bitrate = DefaultAudioBitrate
	}

	args := []string{
		"-i", opts.Video,
		"-i", opts.Audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", DefaultAudioCodec,
		"-b:a", bitrate,
	}

	if opts.Gain > 0 && opts.Gain != 1 {
		args = append(args, "-af", NewFilterBuilder().Volume(opts.Gain).Build())
	}
	if opts.Shortest {
		args = append(args, "-shortest")
	}

	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio mux")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("audio mux failed: %w", err)
	}
	return nil
}

// NormalizeAudio applies EBU R128 loudness normalization to an audio file
func (e *Executor) NormalizeAudio(ctx context.Context, input, output string, targetLevel float64, progressFunc ProgressFunc) error {
	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Float64("target_level", targetLevel).
		Msg("normalizing audio")

	filter := fmt.Sprintf("loudnorm=I=%.1f:TP=-1.5:LRA=11", targetLevel)

	args := []string{
		"-i", input,
		"-af", filter,
		"-vn",
		output,
	}

	opts := RunOptions{
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio normalization")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return fmt.Errorf("audio normalization failed: %w", err)
	}
	return nil
}
