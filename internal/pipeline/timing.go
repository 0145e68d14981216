package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robert-at-pretension-io/vlog-flow/internal/report"
)

// analysisEvent is one line of the timing log. Stage events time a pipeline
// step; design events also count what the analyzer reconstructed; query
// events time one active-condition query and count the rows it produced.
type analysisEvent struct {
	Kind        string  `json:"kind"`
	Phase       string  `json:"phase"`
	Design      string  `json:"design,omitempty"`
	Signal      string  `json:"signal,omitempty"`
	Status      string  `json:"status,omitempty"`
	FSMs        int     `json:"fsms,omitempty"`
	Transitions int     `json:"transitions,omitempty"`
	Loops       int     `json:"loops,omitempty"`
	Rows        int     `json:"rows,omitempty"`
	StartMS     float64 `json:"start_ms"`
	DurationMS  float64 `json:"duration_ms"`
}

// queryTiming is the cost of one ActiveConditions call on a design.
type queryTiming struct {
	signal   string
	start    time.Time
	duration time.Duration
	rows     int
}

// analysisLog appends events to a JSONL file. A nil or disabled log drops
// them, so callers never check whether timing was requested.
type analysisLog struct {
	origin time.Time
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	err    error
}

func openAnalysisLog(origin time.Time, path string) *analysisLog {
	l := &analysisLog{origin: origin}
	if path == "" {
		return l
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.err = err
		return l
	}
	f, err := os.Create(path)
	if err != nil {
		l.err = err
		return l
	}
	l.file = f
	l.enc = json.NewEncoder(f)
	return l
}

func (l *analysisLog) Err() error { return l.err }

func (l *analysisLog) Close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

func (l *analysisLog) emit(ev analysisEvent, start time.Time, d time.Duration) {
	if l.enc == nil {
		return
	}
	ev.StartMS = millis(start.Sub(l.origin))
	ev.DurationMS = millis(d)
	l.mu.Lock()
	_ = l.enc.Encode(ev)
	l.mu.Unlock()
}

// Stage records one pipeline step.
func (l *analysisLog) Stage(phase string, start time.Time, d time.Duration) {
	l.emit(analysisEvent{Kind: "stage", Phase: phase}, start, d)
}

// Design records the analysis of one dump, with the size of what it found,
// followed by its queries.
func (l *analysisLog) Design(dr *designResult, status string, start time.Time, d time.Duration) {
	ev := analysisEvent{Kind: "design", Phase: "analyze", Design: dr.name, Status: status}
	countTables(&ev, dr.tables)
	l.emit(ev, start, d)
	for _, q := range dr.queries {
		l.emit(analysisEvent{Kind: "query", Phase: "active", Design: dr.name, Signal: q.signal, Rows: q.rows}, q.start, q.duration)
	}
}

func countTables(ev *analysisEvent, t report.Tables) {
	ev.FSMs = len(t.FSMs)
	ev.Transitions = len(t.Transitions)
	ev.Loops = len(t.Loops)
	ev.Rows = len(t.ActiveConditions)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// resolveTimingPath picks the timing log: VLOG_TIMING_JSONL wins, then the
// runner's settings, then VLOG_TIMING as a switch for the default location.
func (r *Runner) resolveTimingPath(rootPath string) string {
	if p := os.Getenv("VLOG_TIMING_JSONL"); p != "" {
		return p
	}
	def := filepath.Join(rootPath, "timing.jsonl")
	switch {
	case r.Timing && r.TimingPath != "":
		return r.TimingPath
	case r.Timing, envBool("VLOG_TIMING"):
		return def
	}
	return ""
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	}
	return d.Round(time.Microsecond).String()
}
