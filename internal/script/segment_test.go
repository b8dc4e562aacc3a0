package script

import (
	"strings"
	"testing"
)

const sample = `[Upbeat music starts]
Narrator: "Did you know the Eiffel Tower grows in summer?"
[Cut to tower]
Narrator: "Heat makes the iron expand." "Up to fifteen centimeters!"
[Zoom out] "So next time you visit..." "bring a tape measure."`

func TestSpokenLines(t *testing.T) {
	lines := SpokenLines(sample)
	want := []string{
		"Did you know the Eiffel Tower grows in summer?",
		"Heat makes the iron expand.",
		"Up to fifteen centimeters!",
		"So next time you visit...",
		"bring a tape measure.",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSpokenIgnoresQuotesInsideDirections(t *testing.T) {
	got := Spoken(`[Sign reads "closed"] "Hello" [whisper "psst"] "world"`)
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}
}

func TestSplitRemainderGoesLast(t *testing.T) {
	parts := Split(sample, 2)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0] != "Did you know the Eiffel Tower grows in summer? Heat makes the iron expand." {
		t.Errorf("part 0: %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "Up to fifteen") || !strings.HasSuffix(parts[1], "tape measure.") {
		t.Errorf("part 1: %q", parts[1])
	}
}

func TestSplitFewerLinesThanParts(t *testing.T) {
	parts := Split(`"one" "two"`, 3)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if parts[0] != "" || parts[1] != "" || parts[2] != "one two" {
		t.Errorf("got %q", parts)
	}
}

func TestSplitNonPositive(t *testing.T) {
	if parts := Split(sample, 0); parts != nil {
		t.Errorf("expected nil, got %q", parts)
	}
}

func TestSplitPreservesEveryLineOnce(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f", "g"}
	for n := 1; n <= 9; n++ {
		parts := Group(lines, n)
		if len(parts) != n {
			t.Fatalf("n=%d: expected %d parts, got %d", n, n, len(parts))
		}

		var rejoined []string
		for _, p := range parts {
			if p != "" {
				rejoined = append(rejoined, p)
			}
		}
		if got := strings.Join(rejoined, " "); got != strings.Join(lines, " ") {
			t.Errorf("n=%d: rejoined %q", n, got)
		}
	}
}
