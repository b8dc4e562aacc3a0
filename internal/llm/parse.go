package llm

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberedItem = regexp.MustCompile(`\d+\.\s(.+)`)
	indexList    = regexp.MustCompile(`\[([\d,\s]+)\]`)
)

// NumberedList returns the items of a "1. foo" style list in order
func NumberedList(text string) []string {
	matches := numberedItem.FindAllStringSubmatch(text, -1)
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		item := strings.Trim(strings.TrimSpace(m[1]), `"`)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// IndexList returns the integers of the first "[a, b, c]" list in text.
// ok is false when no such list is present.
func IndexList(text string) (indices []int, ok bool) {
	m := indexList.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	return indices, len(indices) > 0
}

// SplitList splits a comma or newline separated reply into trimmed items
func SplitList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(strings.Trim(strings.TrimSpace(f), `-*."'`))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
