// Package facts defines the persisted fact document and the repositories
// that load and save it.
package facts

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a fact key or document does not exist
var ErrNotFound = errors.New("fact not found")

// Record is one fun fact and everything derived from it. Stages receive a
// Record by value and return the updated copy.
type Record struct {
	Text             string              `json:"text"`
	YouTubeQueries   []string            `json:"youtube_queries,omitempty"`
	VideoScript      string              `json:"video_script,omitempty"`
	ScriptSections   []string            `json:"video_script_sections,omitempty"`
	KeywordsSections map[string][]string `json:"keywords_sections,omitempty"`
	VideoTitles      []string            `json:"video_titles,omitempty"`
	VideoPaths       []string            `json:"video_paths,omitempty"`
	BestVideoIdx     map[string][]int    `json:"best_video_idx,omitempty"`
}

// Document is the persisted collection of facts extracted from one article
type Document struct {
	ArticleURL string            `json:"article_url"`
	Facts      map[string]Record `json:"fun_facts"`
}

// NewDocument creates an empty document for an article
func NewDocument(articleURL string) *Document {
	return &Document{ArticleURL: articleURL, Facts: make(map[string]Record)}
}

// Key returns the fact key for a 1-based position ("fact1", "fact2", ...)
func Key(n int) string {
	return "fact" + strconv.Itoa(n)
}

// SectionKey returns the map key used for a 0-based section index
func SectionKey(i int) string {
	return strconv.Itoa(i)
}

// Keys returns the document's fact keys in numeric order
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Facts))
	for k := range d.Facts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, oki := factNumber(keys[i])
		nj, okj := factNumber(keys[j])
		if oki && okj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func factNumber(key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "fact"))
	return n, err == nil && strings.HasPrefix(key, "fact")
}

// Clone returns a deep copy so the caller can modify it freely
func (r Record) Clone() Record {
	out := r
	out.YouTubeQueries = slices.Clone(r.YouTubeQueries)
	out.ScriptSections = slices.Clone(r.ScriptSections)
	out.VideoTitles = slices.Clone(r.VideoTitles)
	out.VideoPaths = slices.Clone(r.VideoPaths)

	if r.KeywordsSections != nil {
		out.KeywordsSections = make(map[string][]string, len(r.KeywordsSections))
		for k, v := range r.KeywordsSections {
			out.KeywordsSections[k] = slices.Clone(v)
		}
	}
	if r.BestVideoIdx != nil {
		out.BestVideoIdx = make(map[string][]int, len(r.BestVideoIdx))
		for k, v := range r.BestVideoIdx {
			out.BestVideoIdx[k] = slices.Clone(v)
		}
	}
	return out
}

// Matches returns the matched video indices for a section
func (r Record) Matches(section int) []int {
	return r.BestVideoIdx[SectionKey(section)]
}

// Keywords returns the keywords extracted for a section
func (r Record) Keywords(section int) []string {
	return r.KeywordsSections[SectionKey(section)]
}

// Validate checks that per-section maps reference exactly the script sections
// and that matched indices point at known videos.
func (r Record) Validate() error {
	n := len(r.ScriptSections)
	check := func(name string, keys []string) error {
		if len(keys) == 0 {
			return nil
		}
		if len(keys) != n {
			return fmt.Errorf("%s covers %d sections, script has %d", name, len(keys), n)
		}
		for _, k := range keys {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 || i >= n {
				return fmt.Errorf("%s has invalid section key %q", name, k)
			}
		}
		return nil
	}

	if err := check("best_video_idx", slices.Collect(maps.Keys(r.BestVideoIdx))); err != nil {
		return err
	}
	if err := check("keywords_sections", slices.Collect(maps.Keys(r.KeywordsSections))); err != nil {
		return err
	}

	if len(r.VideoTitles) != len(r.VideoPaths) {
		return fmt.Errorf("%d video titles for %d video paths", len(r.VideoTitles), len(r.VideoPaths))
	}
	for section, idx := range r.BestVideoIdx {
		for _, v := range idx {
			if v < 0 || v >= len(r.VideoPaths) {
				return fmt.Errorf("section %s references video %d of %d", section, v, len(r.VideoPaths))
			}
		}
	}
	return nil
}
