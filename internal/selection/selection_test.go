package selection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type clipCall struct {
	start, end time.Duration
	out        string
	copyCodec  bool
}

type fakeMedia struct {
	meta   map[string]Meta
	mu     sync.Mutex
	frames []int
	ranges [][2]int
	clips  []clipCall
}

func (m *fakeMedia) Probe(_ context.Context, path string) (Meta, error) {
	meta, ok := m.meta[path]
	if !ok {
		return Meta{}, errors.New("moov atom not found")
	}
	return meta, nil
}

func (m *fakeMedia) WriteFrame(_ context.Context, _ string, frame int, _ float64, out string) error {
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	m.mu.Unlock()
	return os.WriteFile(out, []byte("jpg"), 0o644)
}

func (m *fakeMedia) WriteFrameRange(_ context.Context, _ string, start, end int, _ float64, out string) error {
	m.ranges = append(m.ranges, [2]int{start, end})
	return os.WriteFile(out, []byte("mp4"), 0o644)
}

func (m *fakeMedia) WriteClip(_ context.Context, _ string, start, end time.Duration, out string, copyCodec bool) error {
	m.clips = append(m.clips, clipCall{start, end, out, copyCodec})
	return os.WriteFile(out, []byte("mp4"), 0o644)
}

// scriptedOracle answers from the frame index encoded in the file name
type scriptedOracle struct {
	answer func(frame int) (string, error)
	asked  []string
}

func (o *scriptedOracle) Ask(_ context.Context, imagePath, _ string) (string, error) {
	o.asked = append(o.asked, imagePath)
	name := strings.TrimSuffix(filepath.Base(imagePath), ".jpg")
	n, _ := strconv.Atoi(strings.TrimPrefix(name, "frame_"))
	return o.answer(n)
}

func constant(answer string) func(int) (string, error) {
	return func(int) (string, error) { return answer, nil }
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in     string
		label  int
		wantOK bool
	}{
		{"Good", 1, true},
		{" good ", 1, true},
		{"YES\n", 1, true},
		{"bad", 0, true},
		{"No", 0, true},
		{"maybe", 0, false},
		{"good.", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		label, ok := ParseVerdict(tt.in)
		if label != tt.label || ok != tt.wantOK {
			t.Errorf("ParseVerdict(%q) = %d, %v; want %d, %v", tt.in, label, ok, tt.label, tt.wantOK)
		}
	}
}

func TestClassifierNeverFails(t *testing.T) {
	ctx := context.Background()
	frame := touch(t, t.TempDir(), "frame_3.jpg")

	tests := []struct {
		name   string
		answer func(int) (string, error)
		want   int
	}{
		{"good", constant("Good"), 1},
		{"yes", constant(" yes "), 1},
		{"bad", constant("bad"), 0},
		{"anomaly", constant("maybe"), 0},
		{"error", func(int) (string, error) { return "", errors.New("timeout") }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(zerolog.Nop(), &scriptedOracle{answer: tt.answer}, 1)
			if got := c.Classify(ctx, frame, "q"); got != tt.want {
				t.Errorf("Classify() = %d, want %d", got, tt.want)
			}
		})
	}

	c := NewClassifier(zerolog.Nop(), &scriptedOracle{answer: constant("good")}, 0.5)
	if got := c.Classify(ctx, filepath.Join(t.TempDir(), "missing.jpg"), "q"); got != 0 {
		t.Errorf("missing frame = %d, want 0", got)
	}
}

func TestClassifierRemovesDownscaledFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	path := filepath.Join(t.TempDir(), "frame_0.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	oracle := &scriptedOracle{answer: constant("good")}
	c := NewClassifier(zerolog.Nop(), oracle, 0.5)
	if got := c.Classify(context.Background(), path, "q"); got != 1 {
		t.Fatalf("Classify() = %d", got)
	}

	if len(oracle.asked) != 1 || oracle.asked[0] == path {
		t.Fatalf("oracle should see a downscaled copy, got %v", oracle.asked)
	}
	if _, err := os.Stat(oracle.asked[0]); !os.IsNotExist(err) {
		t.Error("downscaled frame left behind")
	}
}

func TestSamplerWindows(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "v.mp4")

	for _, total := range []int{1, 100, 119, 120, 121, 239, 240, 2880, 2900, 3000, 3001, 3119} {
		t.Run(strconv.Itoa(total), func(t *testing.T) {
			media := &fakeMedia{meta: map[string]Meta{video: {FPS: 24, Frames: total}}}
			s := NewSampler(zerolog.Nop(), media)

			got, err := s.Sample(context.Background(), video, 10, filepath.Join(dir, "frames"))
			if err != nil {
				t.Fatalf("Sample() error = %v", err)
			}
			if got.Interval != 240 {
				t.Fatalf("interval = %d", got.Interval)
			}

			next := 0
			for i, smp := range got.Samples {
				if smp.StartFrame != next {
					t.Fatalf("sample %d starts at %d, want %d", i, smp.StartFrame, next)
				}
				if smp.EndFrame-smp.StartFrame > 240 || smp.EndFrame <= smp.StartFrame {
					t.Fatalf("sample %d has window [%d, %d)", i, smp.StartFrame, smp.EndFrame)
				}
				mid := smp.StartFrame + 120
				if media.frames[i] != mid || filepath.Base(smp.FramePath) != fmt.Sprintf("frame_%d.jpg", mid) {
					t.Errorf("sample %d frame %d path %s", i, media.frames[i], smp.FramePath)
				}
				next = smp.EndFrame
			}
			if gap := total - next; gap >= 240 {
				t.Errorf("trailing gap %d frames", gap)
			}
			if _, err := Label(got.Samples, make([]int, len(got.Samples)), total, got.Interval); err != nil {
				t.Errorf("samples do not label cleanly: %v", err)
			}
		})
	}
}

func TestSamplerDropsPartialWindowWithoutMidpoint(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "v.mp4")
	ctx := context.Background()

	// 2880 + 100 frames: midpoint of the tail window (3000) does not exist
	media := &fakeMedia{meta: map[string]Meta{video: {FPS: 24, Frames: 2980}}}
	got, _ := NewSampler(zerolog.Nop(), media).Sample(ctx, video, 10, filepath.Join(dir, "a"))
	if len(got.Samples) != 12 {
		t.Errorf("samples = %d, want 12", len(got.Samples))
	}

	// 2880 + 121 frames: the tail window is kept and ends at the last frame
	media = &fakeMedia{meta: map[string]Meta{video: {FPS: 24, Frames: 3001}}}
	got, _ = NewSampler(zerolog.Nop(), media).Sample(ctx, video, 10, filepath.Join(dir, "b"))
	if len(got.Samples) != 13 || got.Samples[12].EndFrame != 3001 {
		t.Errorf("samples = %+v", got.Samples[len(got.Samples)-1])
	}
}

func TestSamplerOpenFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "frames")
	media := &fakeMedia{}

	got, err := NewSampler(zerolog.Nop(), media).Sample(context.Background(), filepath.Join(dir, "nope.mp4"), 10, out)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(got.Samples) != 0 {
		t.Errorf("expected no samples, got %d", len(got.Samples))
	}
}

func TestSamplerRecreatesDir(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "v.mp4")
	out := filepath.Join(dir, "frames")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := touch(t, out, "frame_999.jpg")

	media := &fakeMedia{meta: map[string]Meta{video: {FPS: 1, Frames: 20}}}
	if _, err := NewSampler(zerolog.Nop(), media).Sample(context.Background(), video, 10, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale frame survived")
	}
}

func TestLabel(t *testing.T) {
	samples := []FrameSample{
		{StartFrame: 0, EndFrame: 4},
		{StartFrame: 4, EndFrame: 8},
		{StartFrame: 8, EndFrame: 10},
	}
	got, err := Label(samples, []int{1, 0, 1}, 10, 4)
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	want := Labels{1, 1, 1, 1, 0, 0, 0, 0, 1, 1}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Label() = %v, want %v", got, want)
	}

	// a trailing gap shorter than one window stays 0
	got, err = Label(samples[:2], []int{1, 1}, 10, 4)
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if got[8] != 0 || got[9] != 0 || len(got) != 10 {
		t.Errorf("tail = %v", got)
	}
}

func TestLabelPartitionErrors(t *testing.T) {
	tests := []struct {
		name     string
		samples  []FrameSample
		verdicts []int
		total    int
	}{
		{"count mismatch", []FrameSample{{"", 0, 4}}, nil, 4},
		{"gap", []FrameSample{{"", 0, 4}, {"", 5, 8}}, []int{1, 1}, 8},
		{"overlap", []FrameSample{{"", 0, 4}, {"", 3, 8}}, []int{1, 1}, 8},
		{"not from zero", []FrameSample{{"", 1, 4}}, []int{1}, 4},
		{"past end", []FrameSample{{"", 0, 4}, {"", 4, 9}}, []int{1, 1}, 8},
		{"uncovered tail", []FrameSample{{"", 0, 4}}, []int{1}, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Label(tt.samples, tt.verdicts, tt.total, 4); !errors.Is(err, ErrPartition) {
				t.Errorf("err = %v, want ErrPartition", err)
			}
		})
	}

	if _, err := Label([]FrameSample{{"", 0, 4}}, []int{2}, 4, 4); err == nil || errors.Is(err, ErrPartition) {
		t.Errorf("invalid verdict err = %v", err)
	}
}

func TestWindows(t *testing.T) {
	got := Windows(10, 4)
	if fmt.Sprint(got) != "[[0 4] [4 8] [8 10]]" {
		t.Errorf("Windows() = %v", got)
	}
	if Windows(0, 4) != nil {
		t.Error("expected no windows for empty video")
	}
}

func TestExtractorMajority(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "v.mp4")

	tests := []struct {
		name   string
		labels Labels
		want   [][2]int
	}{
		{"half is negative", Labels{1, 1, 0, 0}, nil},
		{"three quarters", Labels{1, 1, 1, 0}, [][2]int{{0, 4}}},
		{"per window", Labels{1, 1, 1, 0, 0, 0, 1, 0, 1, 1}, [][2]int{{0, 4}, {8, 10}}},
		{"short tail tie", Labels{0, 0, 0, 0, 1, 0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := &fakeMedia{}
			out := filepath.Join(dir, tt.name)
			clips, err := NewExtractor(zerolog.Nop(), media).Extract(context.Background(), video, tt.labels, 4, 1, out)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if fmt.Sprint(media.ranges) != fmt.Sprint(tt.want) && !(len(tt.want) == 0 && len(media.ranges) == 0) {
				t.Errorf("ranges = %v, want %v", media.ranges, tt.want)
			}
			for i, c := range clips {
				if filepath.Base(c.Path) != fmt.Sprintf("clip_%d.mp4", i) {
					t.Errorf("clip %d path %s", i, c.Path)
				}
			}
		})
	}
}

func TestExtractorMissingSource(t *testing.T) {
	media := &fakeMedia{}
	clips, err := NewExtractor(zerolog.Nop(), media).Extract(context.Background(),
		filepath.Join(t.TempDir(), "gone.mp4"), Labels{1, 1, 1}, 1, 1, t.TempDir())
	if err != nil || len(clips) != 0 || len(media.ranges) != 0 {
		t.Errorf("clips = %v, err = %v", clips, err)
	}
}

// 120 s at 24 fps, 10 s windows, positive only for samples in [20 s, 40 s)
func TestExhaustiveEndToEnd(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "source.mp4")
	media := &fakeMedia{meta: map[string]Meta{video: {FPS: 24, Frames: 120 * 24}}}
	oracle := &scriptedOracle{answer: func(frame int) (string, error) {
		sec := float64(frame) / 24
		if sec >= 20 && sec < 40 {
			return "good", nil
		}
		return "bad", nil
	}}

	x := NewExhaustive(zerolog.Nop(), media, NewClassifier(zerolog.Nop(), oracle, 1), 10, 10)
	clips, err := x.Select(context.Background(), Job{
		Video:     video,
		Question:  "Octopuses have three hearts.",
		FramesDir: filepath.Join(dir, "frames"),
		ClipsDir:  filepath.Join(dir, "clips"),
	})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if len(oracle.asked) != 12 {
		t.Errorf("oracle asked %d times, want 12", len(oracle.asked))
	}
	if len(clips) != 2 {
		t.Fatalf("clips = %+v, want 2", clips)
	}
	if clips[0].StartFrame != 480 || clips[0].EndFrame != 720 || clips[1].StartFrame != 720 || clips[1].EndFrame != 960 {
		t.Errorf("unexpected windows %+v", clips)
	}
	if clips[0].Start != 20*time.Second || clips[1].End != 40*time.Second {
		t.Errorf("unexpected times %v-%v", clips[0].Start, clips[1].End)
	}
	for i, c := range clips {
		if _, err := os.Stat(c.Path); err != nil {
			t.Errorf("clip %d not written: %v", i, err)
		}
	}
}

func TestExhaustiveUnreadableVideo(t *testing.T) {
	dir := t.TempDir()
	x := NewExhaustive(zerolog.Nop(), &fakeMedia{}, NewClassifier(zerolog.Nop(), &scriptedOracle{answer: constant("good")}, 1), 10, 10)
	clips, err := x.Select(context.Background(), Job{Video: filepath.Join(dir, "x.mp4"), FramesDir: dir, ClipsDir: dir})
	if err != nil || clips != nil {
		t.Errorf("clips = %v, err = %v", clips, err)
	}
}

func newTrials(media Media, oracle Oracle, maxTrials int, policy ExhaustionPolicy) *Trials {
	c := NewClassifier(zerolog.Nop(), oracle, 1)
	return NewTrials(zerolog.Nop(), media, c, maxTrials, 5*time.Second, policy).
		WithRand(rand.New(rand.NewPCG(7, 11)))
}

func trialJob(t *testing.T) (Job, *fakeMedia) {
	dir := t.TempDir()
	video := touch(t, dir, "source.mp4")
	media := &fakeMedia{meta: map[string]Meta{video: {FPS: 24, Frames: 2400}}}
	return Job{
		Video:     video,
		Question:  "q",
		FramesDir: filepath.Join(dir, "frames"),
		ClipsDir:  filepath.Join(dir, "clips"),
	}, media
}

func TestTrialsFirstPositive(t *testing.T) {
	job, media := trialJob(t)
	oracle := &scriptedOracle{answer: constant("good")}

	clips, err := newTrials(media, oracle, 5, TakeLastOnExhaustion).Select(context.Background(), job)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(oracle.asked) != 1 {
		t.Errorf("oracle asked %d times, want 1", len(oracle.asked))
	}
	if len(clips) != 1 || !clips[0].Positive {
		t.Fatalf("clips = %+v", clips)
	}

	ts := time.Duration(float64(media.frames[0]) / 24 * float64(time.Second))
	wantStart, wantEnd := Window(ts, 5*time.Second)
	call := media.clips[0]
	if !call.copyCodec || call.start != wantStart || call.end != wantEnd {
		t.Errorf("cut = %+v, want [%v, %v] with codec copy", call, wantStart, wantEnd)
	}
	if filepath.Base(clips[0].Path) != "clip_0.mp4" {
		t.Errorf("path = %s", clips[0].Path)
	}
}

func TestTrialsExhaustion(t *testing.T) {
	t.Run("take last", func(t *testing.T) {
		job, media := trialJob(t)
		oracle := &scriptedOracle{answer: constant("bad")}

		clips, err := newTrials(media, oracle, 3, TakeLastOnExhaustion).Select(context.Background(), job)
		if err != nil {
			t.Fatal(err)
		}
		if len(oracle.asked) != 3 {
			t.Errorf("oracle asked %d times, want 3", len(oracle.asked))
		}
		if len(clips) != 1 || clips[0].Positive {
			t.Fatalf("clips = %+v, want one fallback clip", clips)
		}
		last := media.frames[len(media.frames)-1]
		ts := time.Duration(float64(last) / 24 * float64(time.Second))
		if want, _ := Window(ts, 5*time.Second); media.clips[0].start != want {
			t.Errorf("fallback cut at %v, want %v", media.clips[0].start, want)
		}
	})

	t.Run("skip", func(t *testing.T) {
		job, media := trialJob(t)
		oracle := &scriptedOracle{answer: constant("maybe")}

		clips, err := newTrials(media, oracle, 3, SkipOnExhaustion).Select(context.Background(), job)
		if err != nil {
			t.Fatal(err)
		}
		if clips != nil || len(media.clips) != 0 {
			t.Errorf("expected no clip, got %+v", clips)
		}
	})

	t.Run("at least one trial", func(t *testing.T) {
		job, media := trialJob(t)
		oracle := &scriptedOracle{answer: constant("bad")}

		if _, err := newTrials(media, oracle, 0, SkipOnExhaustion).Select(context.Background(), job); err != nil {
			t.Fatal(err)
		}
		if len(oracle.asked) != 1 {
			t.Errorf("oracle asked %d times, want 1", len(oracle.asked))
		}
	})
}

func TestTrialsUnreadableVideo(t *testing.T) {
	job, _ := trialJob(t)
	oracle := &scriptedOracle{answer: constant("good")}
	clips, err := newTrials(&fakeMedia{}, oracle, 3, TakeLastOnExhaustion).Select(context.Background(), job)
	if err != nil || clips != nil || len(oracle.asked) != 0 {
		t.Errorf("clips = %v, err = %v, asked = %d", clips, err, len(oracle.asked))
	}
}

func TestTrialsCancelled(t *testing.T) {
	job, media := trialJob(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTrials(media, &scriptedOracle{answer: constant("bad")}, 3, TakeLastOnExhaustion).Select(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWindowClamp(t *testing.T) {
	start, end := Window(2*time.Second, 5*time.Second)
	if start != 0 || end != 7*time.Second {
		t.Errorf("Window() = %v, %v", start, end)
	}
	start, end = Window(20*time.Second, 5*time.Second)
	if start != 15*time.Second || end != 25*time.Second {
		t.Errorf("Window() = %v, %v", start, end)
	}
}

func TestParseExhaustionPolicy(t *testing.T) {
	for in, want := range map[string]ExhaustionPolicy{
		"":                        TakeLastOnExhaustion,
		"take-last-on-exhaustion": TakeLastOnExhaustion,
		"skip":                    SkipOnExhaustion,
	} {
		got, err := ParseExhaustionPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseExhaustionPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseExhaustionPolicy("retry-forever"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
