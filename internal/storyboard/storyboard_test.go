package storyboard

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/prompts"
)

type scriptedChat struct {
	replies []string
	err     error
	prompts []string
}

func (s *scriptedChat) Chat(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func newPlanner(chat *scriptedChat) *Planner {
	return New(zerolog.Nop(), chat, prompts.Default()).WithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestFacts(t *testing.T) {
	chat := &scriptedChat{replies: []string{"1. Fact one.\n2. Fact two.\n3. Fact three."}}
	p := newPlanner(chat)

	got, err := p.Facts(context.Background(), "ARTICLE BODY", 3)
	if err != nil {
		t.Fatalf("Facts() error = %v", err)
	}
	if len(got) != 3 || got[1] != "Fact two." {
		t.Errorf("Facts() = %q", got)
	}
	if !strings.Contains(chat.prompts[0], "ARTICLE BODY") || !strings.Contains(chat.prompts[0], "Extract 3") {
		t.Errorf("prompt not rendered: %q", chat.prompts[0])
	}

	if _, err := newPlanner(&scriptedChat{replies: []string{"nothing numbered"}}).Facts(context.Background(), "x", 3); err == nil {
		t.Error("expected error without a numbered list")
	}
}

func TestKeywordsJSON(t *testing.T) {
	chat := &scriptedChat{replies: []string{`{"keywords": ["octopus", "heart", "octopus", "ocean"]}`}}
	got, err := newPlanner(chat).Keywords(context.Background(), "Octopuses have three hearts.", 2)
	if err != nil {
		t.Fatalf("Keywords() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"octopus", "heart"}) {
		t.Errorf("Keywords() = %q", got)
	}
}

func TestKeywordsFallback(t *testing.T) {
	chat := &scriptedChat{replies: []string{"octopus, heart, ocean"}}
	got, err := newPlanner(chat).Keywords(context.Background(), "s", 5)
	if err != nil {
		t.Fatalf("Keywords() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"octopus", "heart", "ocean"}) {
		t.Errorf("Keywords() = %q", got)
	}

	boom := errors.New("boom")
	if _, err := newPlanner(&scriptedChat{err: boom}).Keywords(context.Background(), "s", 5); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestMatch(t *testing.T) {
	titles := []string{"a", "b", "c", "d"}

	tests := []struct {
		name  string
		reply string
		count int
		want  []int
	}{
		{"in order", "[2, 0]", 2, []int{2, 0}},
		{"drops out of range", "Top: [9, 3, 3, 1]", 2, []int{3, 1}},
		{"caps at count", "[0, 1, 2]", 2, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlanner(&scriptedChat{replies: []string{tt.reply}})
			got := p.Match(context.Background(), "section", titles, tt.count)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchRandomFallback(t *testing.T) {
	titles := []string{"a", "b", "c"}

	for _, reply := range []string{"I like the first one", "[7, 8]"} {
		p := newPlanner(&scriptedChat{replies: []string{reply}})
		got := p.Match(context.Background(), "section", titles, 5)
		if len(got) != 3 {
			t.Fatalf("reply %q: got %v, want 3 distinct indices", reply, got)
		}
		sorted := slices.Sorted(slices.Values(got))
		if !reflect.DeepEqual(sorted, []int{0, 1, 2}) {
			t.Errorf("reply %q: indices %v not distinct/in range", reply, got)
		}
	}

	p := newPlanner(&scriptedChat{err: errors.New("down")})
	if got := p.Match(context.Background(), "s", titles, 2); len(got) != 2 {
		t.Errorf("error fallback = %v", got)
	}

	if got := p.Match(context.Background(), "s", nil, 2); got != nil {
		t.Errorf("no titles = %v", got)
	}
}

func TestMatchPromptListsTitles(t *testing.T) {
	chat := &scriptedChat{replies: []string{"[0]"}}
	newPlanner(chat).Match(context.Background(), "Octopus hearts", []string{"Deep sea", "Cooking"}, 1)
	if !strings.Contains(chat.prompts[0], "0: Deep sea") || !strings.Contains(chat.prompts[0], "1: Cooking") {
		t.Errorf("prompt = %q", chat.prompts[0])
	}
}

func TestRelevanceQuestion(t *testing.T) {
	p := newPlanner(&scriptedChat{})

	q, err := p.RelevanceQuestion("Octopuses have three hearts.", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(q, "Octopuses have three hearts.") || !strings.Contains(q, "'good' or 'bad'") {
		t.Errorf("sentence question = %q", q)
	}

	q, err = p.RelevanceQuestion("ignored", []string{"octopus", "heart"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(q, "octopus, heart") || !strings.Contains(q, "'yes' or 'no'") {
		t.Errorf("keyword question = %q", q)
	}
}
