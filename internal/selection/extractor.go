package selection

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/pkg/util"
)

// Extractor exports the majority positive windows of a labeled video
type Extractor struct {
	logger zerolog.Logger
	media  Media
}

func NewExtractor(logger zerolog.Logger, media Media) *Extractor {
	return &Extractor{
		logger: logger.With().Str("component", "extractor").Logger(),
		media:  media,
	}
}

// Windows splits [0, total) into consecutive windows of size frames; the
// last may be shorter.
func Windows(total, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	var out [][2]int
	for start := 0; start < total; start += size {
		out = append(out, [2]int{start, min(start+size, total)})
	}
	return out
}

// Extract writes clip_<n>.mp4 into outDir (emptied first) for every window
// of clipSeconds whose positive labels are strictly more than half.
func (e *Extractor) Extract(ctx context.Context, videoPath string, labels Labels, fps, clipSeconds float64, outDir string) ([]CandidateClip, error) {
	if !util.FileExists(videoPath) {
		e.logger.Error().Str("video", videoPath).Msg("cannot open video")
		return nil, nil
	}
	if err := util.RecreateDir(outDir); err != nil {
		return nil, fmt.Errorf("failed to prepare clips dir: %w", err)
	}

	var clips []CandidateClip
	for _, w := range Windows(len(labels), FrameInterval(fps, clipSeconds)) {
		start, end := w[0], w[1]
		if labels.Positives(start, end)*2 <= end-start {
			continue
		}

		clip := CandidateClip{
			Path:       filepath.Join(outDir, fmt.Sprintf("clip_%d.mp4", len(clips))),
			StartFrame: start,
			EndFrame:   end,
			Start:      util.FrameTime(start, fps),
			End:        util.FrameTime(end, fps),
			Positive:   true,
		}
		if err := e.media.WriteFrameRange(ctx, videoPath, start, end, fps, clip.Path); err != nil {
			if ctx.Err() != nil {
				return clips, ctx.Err()
			}
			e.logger.Warn().Err(err).Str("video", videoPath).Int("start", start).Int("end", end).Msg("clip export failed")
			continue
		}
		clips = append(clips, clip)
	}

	e.logger.Debug().Str("video", videoPath).Int("clips", len(clips)).Msg("clips extracted")
	return clips, nil
}
