// Package report flattens analysis results into relational tables that the
// policy engine, the validator and the delta tooling consume.
package report

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/vlog-flow/internal/active"
	"github.com/robert-at-pretension-io/vlog-flow/internal/controlflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/splitter"
)

// Tables is the relational report model.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	FSMs             []FSMRow             `json:"fsms"`
	Transitions      []TransitionRow      `json:"transitions"`
	Loops            []LoopRow            `json:"loops"`
	ActiveConditions []ActiveConditionRow `json:"active_conditions"`
	ActiveRanges     []ActiveRangeRow     `json:"active_ranges"`
	Resets           []ResetRow           `json:"resets"`
}

type FSMRow struct {
	Design      string `json:"design"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Width       int    `json:"width"`
	DelayCnt    int    `json:"delay_cnt"`
	States      int    `json:"states"`
	Transitions int    `json:"transitions"`
}

type TransitionRow struct {
	Design        string `json:"design"`
	FSM           string `json:"fsm"`
	Src           int64  `json:"src"`
	FromAny       bool   `json:"from_any"`
	Dst           int64  `json:"dst"`
	Guard         string `json:"guard"`
	Unconditional bool   `json:"unconditional"`
}

type LoopRow struct {
	Design string `json:"design"`
	FSM    string `json:"fsm"`
	Loop   string `json:"loop"`
	Head   int64  `json:"head"`
	Length int    `json:"length"`
}

// ActiveConditionRow is one (fsm, state, guard) under which Signal is active.
type ActiveConditionRow struct {
	Design   string `json:"design"`
	Signal   string `json:"signal"`
	FSM      string `json:"fsm"`
	State    int64  `json:"state"`
	AnyState bool   `json:"any_state"`
	Guard    string `json:"guard"`
}

// ActiveRangeRow is one term of one clause of Signal's active ranges. An
// unconstrained signal has a single row with Unconstrained set.
type ActiveRangeRow struct {
	Design        string `json:"design"`
	Signal        string `json:"signal"`
	Clause        int    `json:"clause"`
	Term          string `json:"term"`
	Ranges        string `json:"ranges"`
	Unconstrained bool   `json:"unconstrained"`
}

type ResetRow struct {
	Design  string `json:"design"`
	Signal  string `json:"signal"`
	Guard   string `json:"guard"`
	Value   string `json:"value"`
	Regular bool   `json:"regular"`
}

// Results carries the per-signal query results that go into a report.
type Results struct {
	// Actives maps a target signal to its active conditions per FSM.
	Actives map[string]map[string][]controlflow.StateGuard
	// Ranges maps a target signal to its active ranges.
	Ranges map[string]active.ConditionList
	// Resets maps a register to the values assigned under reset.
	Resets map[string][]splitter.ResetAssignment
}

// BuildTables flattens the machines of a and the query results into tables.
// design names the dump the rows come from.
func BuildTables(design string, a *controlflow.Analyzer, res Results) Tables {
	out := EmptyTables()
	loops, fsms := a.Loops()

	for _, name := range a.FSMNames() {
		fsm := fsms[name]
		all := fsm.AllTransitions()
		anys := fsm.AnyTransitions()
		out.FSMs = append(out.FSMs, FSMRow{
			Design:      design,
			Name:        name,
			Source:      fsm.Source,
			Width:       fsm.Width,
			DelayCnt:    fsm.DelayCnt,
			States:      len(fsm.States()),
			Transitions: len(all) + len(anys),
		})
		for _, tr := range all {
			out.Transitions = append(out.Transitions, transitionRow(design, name, tr, false))
		}
		for _, tr := range anys {
			out.Transitions = append(out.Transitions, transitionRow(design, name, tr, true))
		}
		for _, l := range loops[name] {
			out.Loops = append(out.Loops, LoopRow{
				Design: design,
				FSM:    name,
				Loop:   l.String(),
				Head:   l[0],
				Length: len(l),
			})
		}
	}

	for _, sig := range sortedKeys(res.Actives) {
		perFSM := res.Actives[sig]
		for _, fsm := range sortedKeys(perFSM) {
			for _, sg := range perFSM[fsm] {
				out.ActiveConditions = append(out.ActiveConditions, ActiveConditionRow{
					Design:   design,
					Signal:   sig,
					FSM:      fsm,
					State:    sg.State,
					AnyState: sg.Any,
					Guard:    guardCode(sg.Guard),
				})
			}
		}
	}

	for _, sig := range sortedKeys(res.Ranges) {
		out.ActiveRanges = append(out.ActiveRanges, rangeRows(design, sig, res.Ranges[sig])...)
	}

	for _, sig := range sortedKeys(res.Resets) {
		for _, ra := range res.Resets[sig] {
			out.Resets = append(out.Resets, ResetRow{
				Design:  design,
				Signal:  sig,
				Guard:   guardCode(ra.Guard),
				Value:   dataflow.ToCode(ra.Value),
				Regular: ra.Zero,
			})
		}
	}
	return out
}

func transitionRow(design, fsm string, tr controlflow.Transition, fromAny bool) TransitionRow {
	row := TransitionRow{
		Design:        design,
		FSM:           fsm,
		Dst:           tr.Dst,
		FromAny:       fromAny,
		Guard:         guardCode(tr.Guard),
		Unconditional: tr.Guard == nil,
	}
	if !fromAny {
		row.Src = tr.Src
	}
	return row
}

func rangeRows(design, sig string, l active.ConditionList) []ActiveRangeRow {
	if l.IsTrue() {
		return []ActiveRangeRow{{Design: design, Signal: sig, Unconstrained: true}}
	}
	var rows []ActiveRangeRow
	for i, c := range l {
		for _, t := range c {
			parts := make([]string, len(t.Ranges))
			for j, r := range t.Ranges {
				parts[j] = r.String()
			}
			rows = append(rows, ActiveRangeRow{
				Design: design,
				Signal: sig,
				Clause: i,
				Term:   t.Name,
				Ranges: "[" + strings.Join(parts, ", ") + "]",
			})
		}
	}
	return rows
}

func guardCode(g dataflow.Node) string {
	if g == nil {
		return ""
	}
	return dataflow.ToCode(g)
}

// Merge appends the rows of every table in others to t.
func (t *Tables) Merge(others ...Tables) {
	for _, o := range others {
		t.FSMs = append(t.FSMs, o.FSMs...)
		t.Transitions = append(t.Transitions, o.Transitions...)
		t.Loops = append(t.Loops, o.Loops...)
		t.ActiveConditions = append(t.ActiveConditions, o.ActiveConditions...)
		t.ActiveRanges = append(t.ActiveRanges, o.ActiveRanges...)
		t.Resets = append(t.Resets, o.Resets...)
	}
}

// EmptyTables returns tables with every relation present and empty, so they
// encode as [] rather than null.
func EmptyTables() Tables {
	return Tables{
		FSMs:             []FSMRow{},
		Transitions:      []TransitionRow{},
		Loops:            []LoopRow{},
		ActiveConditions: []ActiveConditionRow{},
		ActiveRanges:     []ActiveRangeRow{},
		Resets:           []ResetRow{},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
