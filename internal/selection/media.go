package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/factreel/internal/ffmpeg"
)

// FFmpegMedia implements Media with ffmpeg and ffprobe
type FFmpegMedia struct {
	exec *ffmpeg.Executor
}

func NewFFmpegMedia(exec *ffmpeg.Executor) *FFmpegMedia {
	return &FFmpegMedia{exec: exec}
}

func (m *FFmpegMedia) Probe(ctx context.Context, path string) (Meta, error) {
	info, err := m.exec.ProbeVideo(ctx, path)
	if err != nil {
		return Meta{}, err
	}
	if !info.HasVideo || info.FPS <= 0 || info.Frames <= 0 {
		return Meta{}, fmt.Errorf("no readable video stream in %s", path)
	}
	return Meta{FPS: info.FPS, Frames: info.Frames}, nil
}

func (m *FFmpegMedia) WriteFrame(ctx context.Context, path string, frame int, fps float64, out string) error {
	return m.exec.ExtractFrameAt(ctx, path, frame, fps, out)
}

func (m *FFmpegMedia) WriteFrameRange(ctx context.Context, path string, start, end int, fps float64, out string) error {
	return m.exec.ExtractFrameRange(ctx, path, start, end, fps, out)
}

func (m *FFmpegMedia) WriteClip(ctx context.Context, path string, start, end time.Duration, out string, copyCodec bool) error {
	return m.exec.ExtractClip(ctx, path, ffmpeg.ClipOptions{
		Start:     start,
		End:       end,
		Output:    out,
		CopyCodec: copyCodec,
	})
}
