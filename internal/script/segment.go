// Package script turns a narration script into the spoken text used for
// synthesis and into the ordered sections that drive clip selection.
package script

import (
	"regexp"
	"strings"
)

var (
	stageDirection = regexp.MustCompile(`\[.*?\]`)
	quotedLine     = regexp.MustCompile(`"(.*?)"`)
)

// SpokenLines drops bracketed stage directions and returns the double-quoted
// lines of the script in order of appearance.
func SpokenLines(script string) []string {
	cleaned := stageDirection.ReplaceAllString(script, "")
	matches := quotedLine.FindAllStringSubmatch(cleaned, -1)

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, m[1])
	}
	return lines
}

// Spoken returns every spoken line joined with a single space.
func Spoken(script string) string {
	return strings.Join(SpokenLines(script), " ")
}

// Split divides the spoken lines into numParts contiguous sections. Each
// section holds floor(total/numParts) lines and the last one also takes the
// remainder, so with fewer lines than parts the leading sections are empty.
// A non-positive numParts yields nil.
func Split(script string, numParts int) []string {
	if numParts <= 0 {
		return nil
	}
	return Group(SpokenLines(script), numParts)
}

// Group applies the Split partition to an already extracted list of lines.
func Group(lines []string, numParts int) []string {
	if numParts <= 0 {
		return nil
	}

	total := len(lines)
	size := total / numParts

	parts := make([]string, numParts)
	for i := 0; i < numParts; i++ {
		start := i * size
		end := start + size
		if i == numParts-1 {
			end = total
		}
		parts[i] = strings.Join(lines[start:end], " ")
	}
	return parts
}
