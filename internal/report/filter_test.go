package report

import "testing"

func TestFilterTablesBySignals(t *testing.T) {
	tables := Tables{
		FSMs:        []FSMRow{{Name: "top.state"}, {Name: "top.mode"}},
		Transitions: []TransitionRow{{FSM: "top.state"}, {FSM: "top.mode"}},
		ActiveConditions: []ActiveConditionRow{
			{Signal: "top.busy", FSM: "top.state"},
			{Signal: "top.led", FSM: "top.mode"},
		},
		ActiveRanges: []ActiveRangeRow{{Signal: "top.busy"}, {Signal: "top.led"}},
		Resets:       []ResetRow{{Signal: "top.state"}, {Signal: "top.mode"}},
	}

	out := FilterTablesBySignals(tables, map[string]bool{"top.state": true})

	if len(out.FSMs) != 1 || out.FSMs[0].Name != "top.state" {
		t.Fatalf("unexpected FSMs %+v", out.FSMs)
	}
	if len(out.Transitions) != 1 || len(out.Resets) != 1 {
		t.Fatalf("unexpected rows %+v", out)
	}
	if len(out.ActiveConditions) != 1 || out.ActiveConditions[0].Signal != "top.busy" {
		t.Fatalf("expected the condition referencing top.state, got %+v", out.ActiveConditions)
	}
	if len(out.ActiveRanges) != 0 {
		t.Fatalf("expected no ranges, got %+v", out.ActiveRanges)
	}

	if empty := FilterTablesBySignals(tables, nil); empty.Len() != 0 {
		t.Fatalf("expected empty tables for an empty filter")
	}
}
