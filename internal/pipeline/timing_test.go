package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTimingJSONLWritten(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "three_state.json")
	timingPath := filepath.Join(dir, "timing.jsonl")

	r := New(testConfig(dir))
	r.NoGraph = true
	r.JSONOutput = true
	r.Timing = true
	r.TimingPath = timingPath
	r.Out = &bytes.Buffer{}
	runForTest(t, r, []string{file}, []string{"busy"})

	raw, err := os.ReadFile(timingPath)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	if len(lines) == 0 {
		t.Fatalf("expected timing events, found none")
	}

	stages := make(map[string]bool)
	var designEvent, queryEvent bool
	for _, line := range lines {
		var ev analysisEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("parse timing event: %v", err)
		}
		switch ev.Kind {
		case "stage":
			stages[ev.Phase] = true
		case "design":
			if ev.Design != "three_state.json" || ev.Status != "ok" || ev.FSMs != 1 || ev.Loops != 1 {
				t.Fatalf("unexpected design event %+v", ev)
			}
			designEvent = true
		case "query":
			if ev.Signal != "top.busy" || ev.Rows != 1 {
				t.Fatalf("unexpected query event %+v", ev)
			}
			queryEvent = true
		}
	}
	for _, phase := range []string{"scan", "analyze", "report", "policy", "total"} {
		if !stages[phase] {
			t.Fatalf("missing %s stage in %v", phase, stages)
		}
	}
	if !designEvent || !queryEvent {
		t.Fatalf("expected design and query events, got design=%v query=%v", designEvent, queryEvent)
	}
}

func TestTimingPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)

	t.Setenv("VLOG_TIMING_JSONL", "")
	t.Setenv("VLOG_TIMING", "")
	if got := r.resolveTimingPath(dir); got != "" {
		t.Fatalf("expected timing disabled, got %q", got)
	}

	t.Setenv("VLOG_TIMING", "yes")
	if got := r.resolveTimingPath(dir); got != filepath.Join(dir, "timing.jsonl") {
		t.Fatalf("unexpected default timing path %q", got)
	}

	t.Setenv("VLOG_TIMING_JSONL", filepath.Join(dir, "custom.jsonl"))
	if got := r.resolveTimingPath(dir); got != filepath.Join(dir, "custom.jsonl") {
		t.Fatalf("expected env path to win, got %q", got)
	}

	t.Setenv("VLOG_TIMING_JSONL", "")
	t.Setenv("VLOG_TIMING", "")
	r.Timing = true
	r.TimingPath = filepath.Join(dir, "run.jsonl")
	if got := r.resolveTimingPath(dir); got != r.TimingPath {
		t.Fatalf("expected the runner path, got %q", got)
	}
}
