package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/factreel/pkg/util"
)

// ClipOptions defines clip extraction parameters
type ClipOptions struct {
	Start        time.Duration
	End          time.Duration
	Output       string
	CopyCodec    bool // stream copy; cut points snap to keyframes
	VideoCodec   string
	AudioCodec   string
	CRF          int // Quality (0-51, lower = better)
	MaxFrames    int // exact video frame budget when re-encoding, 0 = unbounded
	ProgressFunc ProgressFunc
}

// ExtractClip cuts a segment from a video
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	if input == "" || opts.Output == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if opts.Start < 0 {
		opts.Start = 0
	}
	duration := opts.End - opts.Start
	if duration <= 0 {
		return fmt.Errorf("invalid clip duration: end must be after start")
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", duration).
		Bool("copy_codec", opts.CopyCodec).
		Msg("extracting clip")

	var args []string
	if opts.CopyCodec {
		// input seeking, same as cutting with ss/to on the demuxer
		args = []string{
			"-ss", util.FormatDuration(opts.Start),
			"-i", input,
			"-t", util.FormatDuration(duration),
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
		}
	} else {
		args = []string{
			"-i", input,
			"-ss", util.FormatDuration(opts.Start),
			"-t", util.FormatDuration(duration),
		}
		if opts.MaxFrames > 0 {
			args = append(args, "-frames:v", fmt.Sprintf("%d", opts.MaxFrames))
		}
		args = append(args, e.encodeArgs(opts.VideoCodec, opts.AudioCodec, opts.CRF, "")...)
	}

	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}

	e.logger.Debug().Str("output", opts.Output).Msg("clip extraction complete")
	return nil
}

// ExtractFrameRange re-encodes exactly the frames [startFrame, endFrame) of input
func (e *Executor) ExtractFrameRange(ctx context.Context, input string, startFrame, endFrame int, fps float64, output string) error {
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %f", fps)
	}
	if endFrame <= startFrame {
		return fmt.Errorf("invalid frame range [%d, %d)", startFrame, endFrame)
	}

	return e.ExtractClip(ctx, input, ClipOptions{
		Start:     util.FrameTime(startFrame, fps),
		End:       util.FrameTime(endFrame, fps),
		Output:    output,
		MaxFrames: endFrame - startFrame,
	})
}

// encodeArgs builds the codec section shared by re-encoding operations
func (e *Executor) encodeArgs(videoCodec, audioCodec string, crf int, preset string) []string {
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	if audioCodec == "" {
		audioCodec = DefaultAudioCodec
	}
	if crf == 0 {
		crf = DefaultCRF
	}
	if preset == "" {
		preset = e.preset
	}

	return []string{
		"-c:v", videoCodec,
		"-crf", fmt.Sprintf("%d", crf),
		"-preset", preset,
		"-pix_fmt", DefaultPixelFormat,
		"-c:a", audioCodec,
	}
}
