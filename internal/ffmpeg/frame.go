package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/factreel/pkg/util"
)

// ExtractFrame writes the single frame shown at timestamp to an image file
func (e *Executor) ExtractFrame(ctx context.Context, input string, timestamp time.Duration, output string) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	args := []string{
		"-ss", util.FormatDuration(timestamp),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2", // high quality JPEG
		output,
	}

	opts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame extraction")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return fmt.Errorf("frame extraction at %s failed: %w", util.FormatDuration(timestamp), err)
	}
	if !util.FileExists(output) {
		return fmt.Errorf("no frame decoded at %s", util.FormatDuration(timestamp))
	}
	return nil
}

// ExtractFrameAt writes frame number index (0-based) to an image file
func (e *Executor) ExtractFrameAt(ctx context.Context, input string, index int, fps float64, output string) error {
	if index < 0 || fps <= 0 {
		return fmt.Errorf("invalid frame %d at %f fps", index, fps)
	}
	return e.ExtractFrame(ctx, input, util.FrameTime(index, fps), output)
}
