package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/config"
	"github.com/keagan/factreel/internal/editor"
	"github.com/keagan/factreel/internal/facts"
	"github.com/keagan/factreel/internal/footage"
	"github.com/keagan/factreel/internal/selection"
	"github.com/keagan/factreel/pkg/util"
)

const testScript = `[Intro] "Octopuses have three hearts." [Cut] "Two pump blood to the gills." "Their blood is blue."`

type fakeArticle struct {
	text string
	err  error
}

func (f *fakeArticle) Fetch(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

type fakeIndex struct {
	narrowed string
	addErr   error
	added    []string
}

func (f *fakeIndex) Add(ctx context.Context, source, text string) (int, error) {
	f.added = append(f.added, source)
	return 1, f.addErr
}

func (f *fakeIndex) Context(ctx context.Context, source, query string, k int) (string, error) {
	return f.narrowed, nil
}

type fakePlanner struct {
	facts      []string
	factsFrom  string
	matches    []int
	matchCalls int
}

func (f *fakePlanner) Facts(ctx context.Context, article string, count int) ([]string, error) {
	f.factsFrom = article
	if len(f.facts) > count {
		return f.facts[:count], nil
	}
	return f.facts, nil
}

func (f *fakePlanner) Queries(ctx context.Context, fact string) ([]string, error) {
	return []string{"query " + fact}, nil
}

func (f *fakePlanner) Script(ctx context.Context, fact string) (string, error) {
	return testScript, nil
}

func (f *fakePlanner) Keywords(ctx context.Context, section string, count int) ([]string, error) {
	return []string{strings.ToLower(strings.Fields(section)[0])}, nil
}

func (f *fakePlanner) Match(ctx context.Context, section string, titles []string, count int) []int {
	f.matchCalls++
	return f.matches
}

func (f *fakePlanner) RelevanceQuestion(section string, keywords []string) (string, error) {
	if len(keywords) > 0 {
		return "Does the frame show any of " + strings.Join(keywords, ", ") + "?", nil
	}
	return "Does the frame show " + section + "?", nil
}

type fakeFootage struct{ dir string }

func (f *fakeFootage) Collect(ctx context.Context, queries []string, perQuery int, maxDuration time.Duration, dir string) ([]footage.Downloaded, error) {
	f.dir = dir
	return []footage.Downloaded{
		{Title: "Octopus hearts", Path: filepath.Join(dir, "Octopus hearts.mp4")},
		{Title: "Blue blood", Path: filepath.Join(dir, "Blue blood.mp4")},
	}, nil
}

// fakeStrategy writes one clip per job unless the video is listed in fail
type fakeStrategy struct {
	jobs []selection.Job
	fail map[string]error
}

func (f *fakeStrategy) Select(ctx context.Context, job selection.Job) ([]selection.CandidateClip, error) {
	f.jobs = append(f.jobs, job)
	if err := f.fail[filepath.Base(job.Video)]; err != nil {
		return nil, err
	}
	if err := os.MkdirAll(job.ClipsDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(job.ClipsDir, "clip_0.mp4")
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		return nil, err
	}
	return []selection.CandidateClip{{Path: path, Positive: true}}, nil
}

type fakeNarrator struct{ script, out string }

func (f *fakeNarrator) Narrate(ctx context.Context, videoScript, out string) error {
	f.script, f.out = videoScript, out
	return nil
}

type fakeEditor struct{ in editor.Input }

func (f *fakeEditor) Assemble(ctx context.Context, in editor.Input) ([]string, error) {
	f.in = in
	return []string{filepath.Join(in.OutDir, "short_0.mp4")}, nil
}

type harness struct {
	p        *Pipeline
	article  *fakeArticle
	repo     *facts.FileRepository
	planner  *fakePlanner
	footage  *fakeFootage
	strategy *fakeStrategy
	narrator *fakeNarrator
	editor   *fakeEditor
	out      string
}

func newHarness(t *testing.T, index ContextIndex) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		article:  &fakeArticle{text: "Octopus article text."},
		repo:     facts.NewFileRepository(filepath.Join(dir, "facts.json")),
		planner:  &fakePlanner{facts: []string{"Octopuses have three hearts.", "Octopus blood is blue."}, matches: []int{0, 1}},
		footage:  &fakeFootage{},
		strategy: &fakeStrategy{},
		narrator: &fakeNarrator{},
		editor:   &fakeEditor{},
		out:      filepath.Join(dir, "out"),
	}
	h.p = New(zerolog.Nop(), h.repo, Deps{
		Article:  h.article,
		Index:    index,
		Planner:  h.planner,
		Footage:  h.footage,
		Strategy: h.strategy,
		Narrator: h.narrator,
		Editor:   h.editor,
	}, Options{OutputPath: h.out, Sections: 3, MatchesPerSection: 2, UseKeywords: true})
	return h
}

func (h *harness) seed(t *testing.T, rec facts.Record) {
	t.Helper()
	doc := facts.NewDocument("https://example.org/octopus")
	doc.Facts["fact1"] = rec
	if err := h.repo.SaveDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
}

func downloadedRecord() facts.Record {
	return facts.Record{
		Text:           "Octopuses have three hearts.",
		YouTubeQueries: []string{"octopus hearts"},
		VideoScript:    testScript,
		VideoTitles:    []string{"Octopus hearts", "Blue blood"},
		VideoPaths:     []string{"/videos/Octopus hearts.mp4", "/videos/Blue blood.mp4"},
	}
}

func TestDocument(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	doc, err := h.p.Document(ctx, "https://example.org/octopus")
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Keys(); len(got) != 2 || got[0] != "fact1" || got[1] != "fact2" {
		t.Fatalf("keys = %v", got)
	}
	if h.planner.factsFrom != "Octopus article text." {
		t.Errorf("facts extracted from %q", h.planner.factsFrom)
	}

	rec, err := h.repo.Load(ctx, "fact2")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Text != "Octopus blood is blue." || rec.VideoScript != testScript {
		t.Errorf("stored record = %+v", rec)
	}
	if len(rec.YouTubeQueries) != 1 || rec.YouTubeQueries[0] != "query Octopus blood is blue." {
		t.Errorf("queries = %v", rec.YouTubeQueries)
	}
}

func TestDocumentUsesIndex(t *testing.T) {
	ix := &fakeIndex{narrowed: "Octopuses have three hearts."}
	h := newHarness(t, ix)

	if _, err := h.p.Document(context.Background(), "https://example.org/octopus"); err != nil {
		t.Fatal(err)
	}
	if len(ix.added) != 1 || ix.added[0] != "https://example.org/octopus" {
		t.Errorf("indexed sources = %v", ix.added)
	}
	if h.planner.factsFrom != ix.narrowed {
		t.Errorf("facts extracted from %q, want narrowed context", h.planner.factsFrom)
	}
}

func TestDocumentIndexFailureUsesFullText(t *testing.T) {
	h := newHarness(t, &fakeIndex{narrowed: "unused", addErr: errors.New("db down")})

	if _, err := h.p.Document(context.Background(), "https://example.org/octopus"); err != nil {
		t.Fatal(err)
	}
	if h.planner.factsFrom != "Octopus article text." {
		t.Errorf("facts extracted from %q", h.planner.factsFrom)
	}
}

func TestFootage(t *testing.T) {
	h := newHarness(t, nil)
	rec := downloadedRecord()
	rec.VideoTitles, rec.VideoPaths = nil, nil
	h.seed(t, rec)

	got, err := h.p.Footage(context.Background(), "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if want := h.p.Layout("fact1").VideosDir(); h.footage.dir != want {
		t.Errorf("download dir = %s, want %s", h.footage.dir, want)
	}

	stored, err := h.repo.Load(context.Background(), "fact1")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []facts.Record{got, stored} {
		if len(r.VideoTitles) != 2 || r.VideoTitles[1] != "Blue blood" || len(r.VideoPaths) != 2 {
			t.Errorf("videos = %v %v", r.VideoTitles, r.VideoPaths)
		}
	}
}

func TestFootageRequiresQueries(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, facts.Record{Text: "no queries"})

	if _, err := h.p.Footage(context.Background(), "fact1"); err == nil {
		t.Fatal("expected error for record without queries")
	}
}

func TestSelection(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, downloadedRecord())
	ctx := context.Background()

	rec, report, err := h.p.Selection(ctx, "fact1")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Octopuses have three hearts.", "Two pump blood to the gills.", "Their blood is blue."}
	if len(rec.ScriptSections) != 3 {
		t.Fatalf("sections = %v", rec.ScriptSections)
	}
	for i := range want {
		if rec.ScriptSections[i] != want[i] {
			t.Errorf("section %d = %q, want %q", i, rec.ScriptSections[i], want[i])
		}
	}
	if kw := rec.Keywords(1); len(kw) != 1 || kw[0] != "two" {
		t.Errorf("section 1 keywords = %v", kw)
	}

	if report.Jobs != 6 || report.Total() != 6 || report.Clips[2] != 2 {
		t.Errorf("report = %+v", report)
	}

	layout := h.p.Layout("fact1")
	job := h.strategy.jobs[1]
	if job.Video != "/videos/Blue blood.mp4" || job.FramesDir != layout.FramesDir(0, "Blue blood") || job.ClipsDir != layout.ClipsDir(0, "Blue blood") {
		t.Errorf("job = %+v", job)
	}
	if job.Question != "Does the frame show any of octopuses?" {
		t.Errorf("question = %q", job.Question)
	}

	stored, err := h.repo.Load(ctx, "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if got := stored.Matches(2); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("stored matches = %v", got)
	}
}

func TestSelectionSkipsFailedJobs(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, downloadedRecord())
	h.strategy.fail = map[string]error{"Blue blood.mp4": errors.New("probe failed")}

	_, report, err := h.p.Selection(context.Background(), "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if report.Jobs != 6 || report.Total() != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestSelectionPartitionErrorIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, downloadedRecord())
	h.strategy.fail = map[string]error{
		"Octopus hearts.mp4": fmt.Errorf("labeling: %w", selection.ErrPartition),
	}

	_, report, err := h.p.Selection(context.Background(), "fact1")
	if !errors.Is(err, selection.ErrPartition) {
		t.Fatalf("err = %v, want ErrPartition", err)
	}
	if report.Jobs != 1 {
		t.Errorf("jobs run after partition error: %d", report.Jobs)
	}
}

func TestSelectionRequiresVideos(t *testing.T) {
	h := newHarness(t, nil)
	rec := downloadedRecord()
	rec.VideoTitles, rec.VideoPaths = nil, nil
	h.seed(t, rec)

	if _, _, err := h.p.Selection(context.Background(), "fact1"); err == nil {
		t.Fatal("expected error without videos")
	}
}

func TestPlanRejectsSilentScript(t *testing.T) {
	h := newHarness(t, nil)
	rec := downloadedRecord()
	rec.VideoScript = "[Intro] no spoken lines here"

	if _, err := h.p.Plan(context.Background(), rec); err == nil {
		t.Fatal("expected error for script without spoken lines")
	}
}

func TestEditRequiresSections(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, downloadedRecord())

	if _, err := h.p.Edit(context.Background(), "fact1"); err == nil {
		t.Fatal("expected error before selection")
	}
}

func TestRun(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.p.Run(context.Background(), "https://example.org/octopus", "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RunID) != 8 || res.Fact != "fact1" {
		t.Errorf("result = %+v", res)
	}
	if res.Videos != 2 || res.Selection.Total() != 6 || len(res.Shorts) != 1 {
		t.Errorf("result = %+v", res)
	}

	layout := h.p.Layout("fact1")
	if h.narrator.out != layout.AudioPath() || h.narrator.script != testScript {
		t.Errorf("narration = %+v", h.narrator)
	}

	in := h.editor.in
	if in.Audio != layout.AudioPath() || in.OutDir != layout.FinalDir() || len(in.Sections) != 3 {
		t.Errorf("editor input = %+v", in)
	}
	for i, clips := range in.Clips {
		if len(clips) != 2 {
			t.Errorf("section %d clips = %v", i, clips)
		}
	}
}

func TestRunUnknownFact(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.p.Run(context.Background(), "https://example.org/octopus", "fact9")
	if !errors.Is(err, facts.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunResumesFromStoredDocument(t *testing.T) {
	h := newHarness(t, nil)
	rec := downloadedRecord()
	rec.VideoTitles, rec.VideoPaths = nil, nil
	h.seed(t, rec)

	res, err := h.p.Run(context.Background(), "", "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if h.planner.factsFrom != "" {
		t.Error("document rebuilt without an article url")
	}
	if res.Videos != 2 {
		t.Errorf("videos = %d", res.Videos)
	}
}

func TestDocumentFetchFailureKeepsStoredDocument(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, downloadedRecord())
	h.article.err = errors.New("connection reset")
	ctx := context.Background()

	doc, err := h.p.Document(ctx, "https://example.org/octopus")
	if err != nil {
		t.Fatalf("fetch failure should degrade, got %v", err)
	}
	if len(doc.Facts) != 0 {
		t.Errorf("facts = %v", doc.Facts)
	}
	if h.planner.factsFrom != "" {
		t.Error("facts extracted without an article")
	}
	if _, err := h.repo.Load(ctx, "fact1"); err != nil {
		t.Errorf("stored document lost: %v", err)
	}
}

func TestRunFetchFailureReportsMissingFact(t *testing.T) {
	h := newHarness(t, nil)
	h.article.err = errors.New("connection reset")

	_, err := h.p.Run(context.Background(), "https://example.org/octopus", "fact1")
	if !errors.Is(err, facts.ErrNotFound) || !strings.Contains(err.Error(), "0 facts") {
		t.Fatalf("err = %v", err)
	}
}

func TestSelectionSentenceQuestions(t *testing.T) {
	h := newHarness(t, nil)
	h.p.opts.SentenceQuestions = true
	h.seed(t, downloadedRecord())

	rec, _, err := h.p.Selection(context.Background(), "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Keywords(0)) == 0 {
		t.Error("keywords should still be planned")
	}
	for _, job := range h.strategy.jobs {
		if strings.Contains(job.Question, "any of") {
			t.Errorf("keyword question for a sentence strategy: %q", job.Question)
		}
	}
	if q := h.strategy.jobs[2].Question; q != "Does the frame show Two pump blood to the gills.?" {
		t.Errorf("section 1 question = %q", q)
	}
}

func TestSelectionSkipsEmptySections(t *testing.T) {
	h := newHarness(t, nil)
	rec := downloadedRecord()
	rec.VideoScript = `"Octopuses have three hearts." "Their blood is blue."`
	h.seed(t, rec)

	got, report, err := h.p.Selection(context.Background(), "fact1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ScriptSections[0] != "" || got.ScriptSections[1] != "" {
		t.Fatalf("sections = %q", got.ScriptSections)
	}
	if report.Jobs != 2 || h.planner.matchCalls != 1 {
		t.Errorf("jobs = %d, match calls = %d", report.Jobs, h.planner.matchCalls)
	}
	for _, job := range h.strategy.jobs {
		if job.ClipsDir != h.p.Layout("fact1").ClipsDir(2, util.Stem(job.Video)) {
			t.Errorf("job outside the narrated section: %+v", job)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	for strategy, sentence := range map[string]bool{"exhaustive": false, "trials": true, "Trials": true} {
		cfg := config.Default()
		cfg.Selection.Strategy = strategy
		opts := optionsFromConfig(cfg)
		if opts.SentenceQuestions != sentence {
			t.Errorf("%s: SentenceQuestions = %v", strategy, opts.SentenceQuestions)
		}
		if opts.UseKeywords != cfg.Selection.UseKeywords || opts.FactCount != cfg.LLM.NumFacts {
			t.Errorf("%s: options %+v", strategy, opts)
		}
	}
}
