package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-at-pretension-io/vlog-flow/internal/report"
)

// trapTables describes top.state: 0 -> 1 -> 2 with 2 a dead end, reset to a
// non-zero value, plus a delayed copy top.state_d and a stuck machine top.mode.
func trapTables() report.Tables {
	tables := report.EmptyTables()
	tables.FSMs = []report.FSMRow{
		{Design: "d", Name: "top.state", Source: "top.state", Width: 2, States: 3, Transitions: 2},
		{Design: "d", Name: "top.state_d", Source: "top.state", Width: 2, DelayCnt: 1, States: 2, Transitions: 2},
		{Design: "d", Name: "top.mode", Source: "top.mode", Width: 1, States: 2, Transitions: 2},
	}
	tables.Transitions = []report.TransitionRow{
		{Design: "d", FSM: "top.state", Src: 0, Dst: 1, Guard: "(top.go>32'd0)"},
		{Design: "d", FSM: "top.state", Src: 1, Dst: 2, Unconditional: true},
		{Design: "d", FSM: "top.state_d", Src: 0, Dst: 1, Unconditional: true},
		{Design: "d", FSM: "top.state_d", Src: 1, Dst: 0, Unconditional: true},
		{Design: "d", FSM: "top.mode", Src: 0, Dst: 1, Unconditional: true},
		{Design: "d", FSM: "top.mode", Src: 1, Dst: 1, Unconditional: true},
	}
	tables.Loops = []report.LoopRow{
		{Design: "d", FSM: "top.state_d", Loop: "(0, 1)", Head: 0, Length: 2},
		{Design: "d", FSM: "top.mode", Loop: "(1)", Head: 1, Length: 1},
	}
	tables.Resets = []report.ResetRow{
		{Design: "d", Signal: "top.state", Guard: "top.RST", Value: "2'd1", Regular: false},
		{Design: "d", Signal: "top.mode", Guard: "top.RST", Value: "1'd0", Regular: true},
	}
	return tables
}

func byRule(result *Result) map[string][]Violation {
	out := make(map[string][]Violation)
	for _, v := range result.Violations {
		out[v.Rule] = append(out[v.Rule], v)
	}
	return out
}

func TestBuiltinRules(t *testing.T) {
	engine, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := engine.Evaluate(context.Background(), trapTables(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	rules := byRule(result)

	dead := rules["fsm_dead_end_state"]
	if len(dead) != 1 || dead[0].Signal != "top.state" || dead[0].Severity != "warning" {
		t.Fatalf("unexpected dead-end violations %+v", dead)
	}
	if dead[0].Message != "state 2 of top.state has no outgoing transition" {
		t.Fatalf("unexpected message %q", dead[0].Message)
	}
	if noLoop := rules["fsm_no_loop"]; len(noLoop) != 1 || noLoop[0].Signal != "top.state" {
		t.Fatalf("unexpected no-loop violations %+v", noLoop)
	}
	if delayed := rules["fsm_delayed_observation"]; len(delayed) != 1 || delayed[0].Signal != "top.state_d" {
		t.Fatalf("unexpected delayed-observation violations %+v", delayed)
	}
	reset := rules["irregular_reset"]
	if len(reset) != 1 || reset[0].Severity != "error" || reset[0].Message != "top.state is reset to 2'd1 under top.RST" {
		t.Fatalf("unexpected reset violations %+v", reset)
	}
	if stuck := rules["unconditional_self_loop"]; len(stuck) != 1 || stuck[0].Signal != "top.mode" {
		t.Fatalf("unexpected self-loop violations %+v", stuck)
	}

	want := Summary{TotalViolations: 5, Errors: 1, Warnings: 2, Info: 2}
	if result.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, result.Summary)
	}
}

func TestSeverityOverrides(t *testing.T) {
	engine, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rules := map[string]string{
		"fsm_no_loop":     "off",
		"irregular_reset": "warning",
	}
	result, err := engine.Evaluate(context.Background(), trapTables(), rules)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	byName := byRule(result)
	if len(byName["fsm_no_loop"]) != 0 {
		t.Fatalf("disabled rule still reported: %+v", byName["fsm_no_loop"])
	}
	if r := byName["irregular_reset"]; len(r) != 1 || r[0].Severity != "warning" {
		t.Fatalf("override not applied: %+v", r)
	}
	want := Summary{TotalViolations: 4, Errors: 0, Warnings: 3, Info: 1}
	if result.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, result.Summary)
	}
}

func TestCleanReport(t *testing.T) {
	engine, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tables := report.EmptyTables()
	tables.FSMs = []report.FSMRow{{Design: "d", Name: "top.state", Source: "top.state", Width: 1, States: 2, Transitions: 2}}
	tables.Transitions = []report.TransitionRow{
		{Design: "d", FSM: "top.state", Src: 0, Dst: 1, Unconditional: true},
		{Design: "d", FSM: "top.state", Src: 1, Dst: 0, Unconditional: true},
	}
	tables.Loops = []report.LoopRow{{Design: "d", FSM: "top.state", Loop: "(0, 1)", Length: 2}}

	result, err := engine.Evaluate(context.Background(), tables, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Violations) != 0 || result.Summary.TotalViolations != 0 {
		t.Fatalf("expected no violations, got %+v", result.Violations)
	}
}

func TestPolicyDirOverride(t *testing.T) {
	dir := t.TempDir()
	module := `package vlog.fsm

import rego.v1

all_violations := [{"rule": "always", "severity": "info", "design": "", "signal": "", "message": "hello"}]

summary := {"total_violations": 1, "errors": 0, "warnings": 0, "info": 1}
`
	if err := os.WriteFile(filepath.Join(dir, "custom.rego"), []byte(module), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	engine, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := engine.Evaluate(context.Background(), report.EmptyTables(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Violations) != 1 || result.Violations[0].Message != "hello" || result.Summary.Info != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := New(t.TempDir()); err == nil {
		t.Fatalf("expected an error for a directory without policies")
	}
}
