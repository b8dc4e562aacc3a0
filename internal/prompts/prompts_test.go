package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsCoverPipeline(t *testing.T) {
	s := Default()
	for _, id := range []string{FunFacts, YouTubeQueries, VideoScript, SectionKeywords, SectionMatch, FrameRelevance, FrameKeywords} {
		found := false
		for _, have := range s.IDs() {
			if have == id {
				found = true
			}
		}
		if !found {
			t.Errorf("missing built-in prompt %q", id)
		}
	}
}

func TestRenderSectionMatch(t *testing.T) {
	out, err := Default().Render(SectionMatch, Vars{
		"section": "Lions sleep up to twenty hours a day.",
		"titles":  []string{"Lion documentary", "Cooking pasta"},
		"count":   2,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Lions sleep", "0: Lion documentary", "1: Cooking pasta", "top 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderKeywordsJoin(t *testing.T) {
	out, err := Default().Render(FrameKeywords, Vars{"keywords": []string{"lion", "savanna"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "lion, savanna") {
		t.Errorf("got %q", out)
	}
}

func TestRenderMissingVariable(t *testing.T) {
	if _, err := Default().Render(YouTubeQueries, Vars{}); err == nil {
		t.Error("expected error for missing variable")
	}
}

func TestRenderUnknownID(t *testing.T) {
	if _, err := Default().Render("nope", nil); err == nil {
		t.Error("expected unknown prompt error")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("video_script: \"Tell it like a pirate: {{.fact}}\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := s.Render(VideoScript, Vars{"fact": "octopuses have three hearts"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Tell it like a pirate: octopuses have three hearts" {
		t.Errorf("override not applied: %q", out)
	}
	// other ids keep their built-in text
	if _, err := s.Render(FrameRelevance, Vars{"section": "x"}); err != nil {
		t.Errorf("default template lost: %v", err)
	}
}
