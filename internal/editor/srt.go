package editor

import (
	"fmt"
	"strings"
	"time"

	"github.com/keagan/factreel/pkg/util"
)

// SRT renders one cue per section, each lasting sectionDur. Empty sections
// keep their time slot but get no cue.
func SRT(sections []string, sectionDur time.Duration) string {
	var b strings.Builder
	cue := 1
	for i, text := range sections {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		start := time.Duration(i) * sectionDur
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", cue, util.FormatSRT(start), util.FormatSRT(start+sectionDur), text)
		cue++
	}
	return b.String()
}

// WriteSRT writes the section subtitles to path
func WriteSRT(path string, sections []string, sectionDur time.Duration) error {
	return util.WriteFileAtomic(path, []byte(SRT(sections, sectionDur)), 0o644)
}
