package pipeline

import (
	"context"
	"time"

	"github.com/keagan/factreel/internal/editor"
	"github.com/keagan/factreel/internal/footage"
	"github.com/keagan/factreel/internal/selection"
)

// ArticleSource fetches article text
type ArticleSource interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ContextIndex narrows an article down to the passages relevant to a query
type ContextIndex interface {
	Add(ctx context.Context, source, text string) (int, error)
	Context(ctx context.Context, source, query string, k int) (string, error)
}

// Planner writes facts, queries and scripts and plans each section
type Planner interface {
	Facts(ctx context.Context, article string, count int) ([]string, error)
	Queries(ctx context.Context, fact string) ([]string, error)
	Script(ctx context.Context, fact string) (string, error)
	Keywords(ctx context.Context, section string, count int) ([]string, error)
	Match(ctx context.Context, section string, titles []string, count int) []int
	RelevanceQuestion(section string, keywords []string) (string, error)
}

// FootageSource finds and downloads source videos
type FootageSource interface {
	Collect(ctx context.Context, queries []string, perQuery int, maxDuration time.Duration, dir string) ([]footage.Downloaded, error)
}

// Narrator speaks a video script into an audio file
type Narrator interface {
	Narrate(ctx context.Context, videoScript, out string) error
}

// Assembler cuts the final shorts
type Assembler interface {
	Assemble(ctx context.Context, in editor.Input) ([]string, error)
}

// Deps are the collaborators of every stage
type Deps struct {
	Article  ArticleSource
	Index    ContextIndex // optional
	Planner  Planner
	Footage  FootageSource
	Strategy selection.Strategy
	Narrator Narrator
	Editor   Assembler
}

// Options holds the per-run knobs
type Options struct {
	OutputPath        string
	FactCount         int
	Sections          int
	MatchesPerSection int
	UseKeywords       bool
	// SentenceQuestions asks about the section sentence even when keywords
	// were extracted
	SentenceQuestions bool
	KeywordCount      int
	PerQuery          int
	MaxDuration       time.Duration
	IndexTopK         int
}

// indexQuery selects the article passages facts are extracted from
const indexQuery = "surprising, unusual and little known facts"

// SelectionReport counts the clips found per section
type SelectionReport struct {
	Clips map[int]int
	Jobs  int
}

// Total is the number of clips across all sections
func (r SelectionReport) Total() int {
	n := 0
	for _, c := range r.Clips {
		n += c
	}
	return n
}
