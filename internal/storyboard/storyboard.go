// Package storyboard turns article text into the written material of a
// short: facts, search queries, a narration script, and per-section
// keywords and footage matches.
package storyboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/llm"
	"github.com/keagan/factreel/internal/prompts"
)

// Planner renders prompts and interprets the model's replies
type Planner struct {
	logger  zerolog.Logger
	chat    llm.Chatter
	prompts *prompts.Store
	rng     *rand.Rand
}

// New creates a planner with a time-seeded random source
func New(logger zerolog.Logger, chat llm.Chatter, store *prompts.Store) *Planner {
	seed := uint64(time.Now().UnixNano())
	return &Planner{
		logger:  logger.With().Str("component", "storyboard").Logger(),
		chat:    chat,
		prompts: store,
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// WithRand replaces the random source used for fallback matches
func (p *Planner) WithRand(r *rand.Rand) *Planner {
	p.rng = r
	return p
}

func (p *Planner) ask(ctx context.Context, id string, vars prompts.Vars) (string, error) {
	prompt, err := p.prompts.Render(id, vars)
	if err != nil {
		return "", err
	}
	return p.chat.Chat(ctx, prompt)
}

// Facts extracts count facts from article text
func (p *Planner) Facts(ctx context.Context, article string, count int) ([]string, error) {
	reply, err := p.ask(ctx, prompts.FunFacts, prompts.Vars{"count": count, "article": article})
	if err != nil {
		return nil, fmt.Errorf("failed to extract facts: %w", err)
	}
	found := llm.NumberedList(reply)
	if len(found) == 0 {
		return nil, fmt.Errorf("no numbered facts in reply %q", reply)
	}
	p.logger.Info().Int("facts", len(found)).Msg("facts extracted")
	return found, nil
}

// Queries generates YouTube search queries for a fact
func (p *Planner) Queries(ctx context.Context, fact string) ([]string, error) {
	reply, err := p.ask(ctx, prompts.YouTubeQueries, prompts.Vars{"fact": fact})
	if err != nil {
		return nil, fmt.Errorf("failed to generate queries: %w", err)
	}
	return llm.NumberedList(reply), nil
}

// Script writes the narration script for a fact
func (p *Planner) Script(ctx context.Context, fact string) (string, error) {
	reply, err := p.ask(ctx, prompts.VideoScript, prompts.Vars{"fact": fact})
	if err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	return reply, nil
}

type keywordReply struct {
	Keywords []string `json:"keywords" jsonschema:"description=Concrete visual keywords"`
}

// Keywords lists visual keywords for a section. A reply that is not JSON is
// read as a comma separated list.
func (p *Planner) Keywords(ctx context.Context, section string, count int) ([]string, error) {
	prompt, err := p.prompts.Render(prompts.SectionKeywords, prompts.Vars{"count": count, "section": section})
	if err != nil {
		return nil, err
	}

	reply, err := llm.ChatInto[keywordReply](ctx, p.chat, prompt, "section_keywords", "Visual keywords for a narration section")
	var de *llm.DecodeError
	switch {
	case errors.As(err, &de):
		p.logger.Debug().Err(err).Msg("keyword reply is not JSON, splitting")
		return capList(llm.SplitList(de.Raw), count), nil
	case err != nil:
		return nil, fmt.Errorf("failed to extract keywords: %w", err)
	}

	var kw []string
	for _, k := range reply.Keywords {
		if k != "" && !slices.Contains(kw, k) {
			kw = append(kw, k)
		}
	}
	return capList(kw, count), nil
}

// Match picks up to count video indices for a section. Out of range and
// repeated indices are dropped; when nothing usable comes back a random
// sample of min(count, len(titles)) distinct indices is returned.
func (p *Planner) Match(ctx context.Context, section string, titles []string, count int) []int {
	if len(titles) == 0 || count <= 0 {
		return nil
	}

	reply, err := p.ask(ctx, prompts.SectionMatch, prompts.Vars{
		"section": section,
		"titles":  titles,
		"count":   count,
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("match request failed, sampling at random")
		return p.sample(len(titles), count)
	}

	idx, ok := llm.IndexList(reply)
	if !ok {
		p.logger.Warn().Str("reply", reply).Msg("no index list in match reply, sampling at random")
		return p.sample(len(titles), count)
	}

	var out []int
	for _, i := range idx {
		if i < 0 || i >= len(titles) || slices.Contains(out, i) {
			continue
		}
		out = append(out, i)
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		p.logger.Warn().Ints("indices", idx).Msg("match indices out of range, sampling at random")
		return p.sample(len(titles), count)
	}
	return out
}

func (p *Planner) sample(n, k int) []int {
	return p.rng.Perm(n)[:min(k, n)]
}

// RelevanceQuestion is the question put to the vision model for each frame.
// With keywords the question is yes/no over the keywords, otherwise good/bad
// over the section sentence.
func (p *Planner) RelevanceQuestion(section string, keywords []string) (string, error) {
	if len(keywords) > 0 {
		return p.prompts.Render(prompts.FrameKeywords, prompts.Vars{"keywords": keywords})
	}
	return p.prompts.Render(prompts.FrameRelevance, prompts.Vars{"section": section})
}

func capList(s []string, n int) []string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
