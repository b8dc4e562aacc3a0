package facts

import (
	"fmt"
	"path/filepath"
)

// Layout resolves the on-disk tree for one fact:
//
//	<base>/<fact>/videos/...
//	<base>/<fact>/frames/<section>/<video-stem>/frame_<n>.jpg
//	<base>/<fact>/clips/<section>/<video-stem>/clip_<n>.mp4
//	<base>/<fact>/audio/audio.wav
//	<base>/<fact>/final_videos/short_<n>.mp4
type Layout struct {
	Base string
	Fact string
}

// Root is the directory holding everything produced for the fact
func (l Layout) Root() string {
	return filepath.Join(l.Base, l.Fact)
}

func (l Layout) VideosDir() string {
	return filepath.Join(l.Root(), "videos")
}

func (l Layout) FramesDir(section int, videoStem string) string {
	return filepath.Join(l.Root(), "frames", SectionKey(section), videoStem)
}

func (l Layout) ClipsRoot() string {
	return filepath.Join(l.Root(), "clips")
}

func (l Layout) ClipsDir(section int, videoStem string) string {
	return filepath.Join(l.ClipsRoot(), SectionKey(section), videoStem)
}

func (l Layout) ClipPath(section int, videoStem string, n int) string {
	return filepath.Join(l.ClipsDir(section, videoStem), fmt.Sprintf("clip_%d.mp4", n))
}

func (l Layout) AudioDir() string {
	return filepath.Join(l.Root(), "audio")
}

func (l Layout) AudioPath() string {
	return filepath.Join(l.AudioDir(), "audio.wav")
}

func (l Layout) FinalDir() string {
	return filepath.Join(l.Root(), "final_videos")
}

func (l Layout) ShortPath(n int) string {
	return filepath.Join(l.FinalDir(), fmt.Sprintf("short_%d.mp4", n))
}

// SectionClips lists the exported clips of a section across all its videos,
// sorted by path.
func (l Layout) SectionClips(section int) ([]string, error) {
	pattern := filepath.Join(l.ClipsRoot(), SectionKey(section), "*", "clip_*.mp4")
	return filepath.Glob(pattern)
}
