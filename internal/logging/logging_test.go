package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRunAndJobFields(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJob(WithRun(NewLogger(&buf), "ab12cd34", "fact2"), 1, "Octopus hearts [abc]")
	logger.Info().Msg("clips selected")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %q", buf.String())
	}
	want := map[string]any{"run": "ab12cd34", "fact": "fact2", "section": float64(1), "video": "Octopus hearts [abc]"}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}
