// Package prompts holds the language-model prompt templates. Templates are
// addressed by id and rendered with text/template over named variables.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Template ids used by the pipeline
const (
	FunFacts        = "fun_facts"
	YouTubeQueries  = "youtube_queries"
	VideoScript     = "video_script"
	SectionKeywords = "section_keywords"
	SectionMatch    = "section_match"
	FrameRelevance  = "frame_relevance"
	FrameKeywords   = "frame_keywords"
)

//go:embed defaults.yaml
var defaultTemplates []byte

// Vars are the named values a template is rendered with
type Vars map[string]any

var funcs = template.FuncMap{
	"join": strings.Join,
}

// Store is a set of parsed templates keyed by id
type Store struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// Default returns the built-in templates
func Default() *Store {
	s, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("prompts: built-in templates are invalid: %v", err))
	}
	return s
}

// Load returns the built-in templates overridden by the ids found in path.
// An empty path yields the defaults.
func Load(path string) (*Store, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	for id, tmpl := range overrides.templates {
		s.templates[id] = tmpl
	}
	return s, nil
}

// Parse reads a YAML mapping of id -> template text
func Parse(data []byte) (*Store, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	s := &Store{templates: make(map[string]*template.Template, len(raw))}
	for id, text := range raw {
		tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", id, err)
		}
		s.templates[id] = tmpl
	}
	return s, nil
}

// Render executes the template registered under id
func (s *Store) Render(id string, vars Vars) (string, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[id]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", id)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(vars)); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", id, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// IDs lists the registered template ids in sorted order
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
