package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/vlog-flow/internal/config"
	"github.com/robert-at-pretension-io/vlog-flow/internal/report"
)

func copyFixture(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "designs", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func testConfig(graphDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Graph.Format = "dot"
	cfg.Graph.Dir = graphDir
	return cfg
}

func runForTest(t *testing.T, r *Runner, paths []string, signals []string) *Result {
	t.Helper()
	res, err := r.Run(paths, signals)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestRunThreeState(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "three_state.json")
	graphDir := filepath.Join(dir, "graphs")

	var out bytes.Buffer
	r := New(testConfig(graphDir))
	r.Out = &out
	r.Ranges = true
	res := runForTest(t, r, []string{file}, []string{"busy"})

	if len(res.Designs) != 1 || res.Designs[0] != "three_state.json" {
		t.Fatalf("unexpected designs %v", res.Designs)
	}
	if len(res.Tables.FSMs) != 1 || res.Tables.FSMs[0].Name != "top.state" {
		t.Fatalf("unexpected FSMs %+v", res.Tables.FSMs)
	}
	if len(res.Tables.ActiveConditions) != 1 || res.Tables.ActiveConditions[0].State != 1 {
		t.Fatalf("unexpected active conditions %+v", res.Tables.ActiveConditions)
	}
	if len(res.Tables.ActiveRanges) != 1 || res.Tables.ActiveRanges[0].Ranges != "[(1, 1)]" {
		t.Fatalf("unexpected active ranges %+v", res.Tables.ActiveRanges)
	}
	if res.Summary.TotalViolations != 0 {
		t.Fatalf("expected a clean design, got %+v", res.Violations)
	}

	if len(res.Graphs) != 1 {
		t.Fatalf("expected one graph, got %v (warnings %v)", res.Graphs, res.Warnings)
	}
	graph, err := os.ReadFile(res.Graphs[0])
	if err != nil {
		t.Fatalf("read graph: %v", err)
	}
	if !strings.Contains(string(graph), "s0 -> s1") {
		t.Fatalf("unexpected graph:\n%s", graph)
	}

	text := out.String()
	for _, want := range []string{
		"Found 1 design dumps",
		"=== Finite State Machines ===",
		"0 --(top.go>32'd0)--> 1",
		"3 --None--> 0",
		"Loop (0, 1, 2)",
		"top.busy in top.state=1 when None",
		"=== Policy Summary ===",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestRunTrapViolations(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "trap.json")

	var out bytes.Buffer
	r := New(testConfig(dir))
	r.Out = &out
	r.JSONOutput = true
	r.NoGraph = true
	runForTest(t, r, []string{file}, nil)

	var res Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode JSON output: %v\n%s", err, out.String())
	}
	rules := make(map[string]string)
	for _, v := range res.Violations {
		rules[v.Rule] = v.Severity
	}
	want := map[string]string{
		"fsm_dead_end_state": "warning",
		"fsm_no_loop":        "info",
		"irregular_reset":    "error",
	}
	for rule, sev := range want {
		if rules[rule] != sev {
			t.Fatalf("expected %s with severity %s, got %v", rule, sev, res.Violations)
		}
	}
	if res.Summary.Errors != 1 || res.Summary.Warnings != 1 || res.Summary.Info != 1 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if len(res.Graphs) != 0 {
		t.Fatalf("graphs written with NoGraph: %v", res.Graphs)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "irregular reset value") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an irregular reset warning, got %v", res.Warnings)
	}
}

func TestRunRuleSeverityOverride(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "trap.json")

	cfg := testConfig(dir)
	cfg.Graph.Enabled = new(bool)
	cfg.Lint.Rules = map[string]string{"irregular_reset": "off", "fsm_no_loop": "error"}
	r := New(cfg)
	r.Out = &bytes.Buffer{}
	res := runForTest(t, r, []string{file}, nil)

	for _, v := range res.Violations {
		if v.Rule == "irregular_reset" {
			t.Fatalf("disabled rule reported: %+v", v)
		}
	}
	if res.Summary.Errors != 1 || res.Summary.Warnings != 1 || res.Summary.Info != 0 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("disabled reset check still warned: %v", res.Warnings)
	}
}

func TestRunDirectoryCollectsDesignErrors(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "three_state.json")
	bad := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(bad, []byte(`{"top": "top", "binds": [{"dest": "top.x", "tree": {"kind": "lambda"}}]}`), 0644); err != nil {
		t.Fatalf("write dump: %v", err)
	}

	r := New(testConfig(dir))
	r.NoGraph = true
	r.Out = &bytes.Buffer{}
	res, err := r.Run([]string{dir}, nil)
	if err == nil {
		t.Fatalf("expected pipeline errors")
	}
	if !strings.Contains(err.Error(), "pipeline errors:") || !strings.Contains(err.Error(), "broken.json") {
		t.Fatalf("unexpected error %v", err)
	}
	if res == nil || len(res.Designs) != 1 || res.Designs[0] != "three_state.json" {
		t.Fatalf("expected the valid design to be reported, got %+v", res)
	}
}

func TestRunMissingPath(t *testing.T) {
	r := New(config.DefaultConfig())
	r.Out = &bytes.Buffer{}
	if _, err := r.Run([]string{filepath.Join(t.TempDir(), "nope.json")}, nil); err == nil {
		t.Fatalf("expected an error for a missing dump")
	}
}

func TestRunUnknownSignalWarns(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "three_state.json")

	r := New(testConfig(dir))
	r.NoGraph = true
	r.Out = &bytes.Buffer{}
	res := runForTest(t, r, []string{file}, []string{"top.nothing"})
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "top.nothing is not assigned") {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
	if len(res.Tables.ActiveConditions) != 0 {
		t.Fatalf("unexpected active conditions %+v", res.Tables.ActiveConditions)
	}
}

func TestRunVerbosePrintsAnalyzerSections(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "three_state.json")

	var out bytes.Buffer
	r := New(testConfig(dir))
	r.NoGraph = true
	r.Verbose = true
	r.Out = &out
	runForTest(t, r, []string{file}, []string{"top.busy"})

	text := out.String()
	for _, want := range []string{
		"=== Analysis Progress ===",
		"=== Design three_state.json ===",
		"=== FSM top.state ===",
		"=== Active conditions of top.busy ===",
		"=== Timing Summary ===",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in verbose output:\n%s", want, text)
		}
	}
}

func TestSnapshotAndDelta(t *testing.T) {
	dir := t.TempDir()
	trap := copyFixture(t, dir, "trap.json")
	three := copyFixture(t, dir, "three_state.json")
	snapshot := filepath.Join(dir, "out", "report.json")
	deltaPath := filepath.Join(dir, "out", "delta.json")

	r := New(testConfig(dir))
	r.NoGraph = true
	r.Out = &bytes.Buffer{}
	r.Output = snapshot
	runForTest(t, r, []string{trap}, nil)

	prev, err := ReadTables(snapshot)
	if err != nil {
		t.Fatalf("ReadTables: %v", err)
	}
	if len(prev.FSMs) != 1 || prev.FSMs[0].Name != "top.mode" {
		t.Fatalf("unexpected snapshot %+v", prev.FSMs)
	}

	r = New(testConfig(dir))
	r.NoGraph = true
	r.Out = &bytes.Buffer{}
	r.DeltaFrom = snapshot
	r.DeltaOut = deltaPath
	runForTest(t, r, []string{three}, nil)

	raw, err := os.ReadFile(deltaPath)
	if err != nil {
		t.Fatalf("read delta: %v", err)
	}
	var delta report.Delta
	if err := json.Unmarshal(raw, &delta); err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if len(delta.Added.FSMs) != 1 || delta.Added.FSMs[0].Name != "top.state" {
		t.Fatalf("unexpected added FSMs %+v", delta.Added.FSMs)
	}
	if len(delta.Removed.FSMs) != 1 || delta.Removed.FSMs[0].Name != "top.mode" {
		t.Fatalf("unexpected removed FSMs %+v", delta.Removed.FSMs)
	}
}

func TestDeltaFlagsMustBePaired(t *testing.T) {
	dir := t.TempDir()
	file := copyFixture(t, dir, "three_state.json")

	r := New(testConfig(dir))
	r.NoGraph = true
	r.Out = &bytes.Buffer{}
	r.DeltaOut = filepath.Join(dir, "delta.json")
	if _, err := r.Run([]string{file}, nil); err == nil || !strings.Contains(err.Error(), "must be used together") {
		t.Fatalf("expected a pairing error, got %v", err)
	}
}

func TestQualify(t *testing.T) {
	tests := []struct {
		name, top, want string
	}{
		{"busy", "top", "top.busy"},
		{"top.busy", "top", "top.busy"},
		{"busy", "", "busy"},
		{"u0.busy", "top", "u0.busy"},
	}
	for _, tt := range tests {
		if got := qualify(tt.name, tt.top); got != tt.want {
			t.Fatalf("qualify(%q, %q) = %q, want %q", tt.name, tt.top, got, tt.want)
		}
	}
}

func TestRunFilterSignals(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "three_state.json")
	copyFixture(t, dir, "trap.json")

	r := New(testConfig(dir))
	r.NoGraph = true
	r.FilterSignals = true
	r.Out = &bytes.Buffer{}
	res := runForTest(t, r, []string{dir}, []string{"busy"})

	if len(res.Designs) != 2 {
		t.Fatalf("expected both designs analyzed, got %v", res.Designs)
	}
	if len(res.Tables.FSMs) != 1 || res.Tables.FSMs[0].Name != "top.state" {
		t.Fatalf("expected only the machine constraining top.busy, got %+v", res.Tables.FSMs)
	}
	if res.Summary.TotalViolations != 0 {
		t.Fatalf("filtered rows still produced violations: %+v", res.Violations)
	}
}
