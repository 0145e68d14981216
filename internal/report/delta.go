package report

import "strconv"

// Delta captures added and removed report rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// IsEmpty reports whether nothing changed.
func (d Delta) IsEmpty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len returns the total number of rows.
func (t Tables) Len() int {
	return len(t.FSMs) + len(t.Transitions) + len(t.Loops) +
		len(t.ActiveConditions) + len(t.ActiveRanges) + len(t.Resets)
}

func diffTables(from, to Tables) Tables {
	out := EmptyTables()

	out.FSMs = diffRows(from.FSMs, to.FSMs, func(r FSMRow) string {
		return r.Design + "|" + r.Name + "|" + r.Source + "|" + intKey(r.Width) + "|" + intKey(r.DelayCnt) +
			"|" + intKey(r.States) + "|" + intKey(r.Transitions)
	})
	out.Transitions = diffRows(from.Transitions, to.Transitions, func(r TransitionRow) string {
		return r.Design + "|" + r.FSM + "|" + int64Key(r.Src) + "|" + boolKey(r.FromAny) + "|" + int64Key(r.Dst) +
			"|" + r.Guard + "|" + boolKey(r.Unconditional)
	})
	out.Loops = diffRows(from.Loops, to.Loops, func(r LoopRow) string {
		return r.Design + "|" + r.FSM + "|" + r.Loop
	})
	out.ActiveConditions = diffRows(from.ActiveConditions, to.ActiveConditions, func(r ActiveConditionRow) string {
		return r.Design + "|" + r.Signal + "|" + r.FSM + "|" + int64Key(r.State) + "|" + boolKey(r.AnyState) + "|" + r.Guard
	})
	out.ActiveRanges = diffRows(from.ActiveRanges, to.ActiveRanges, func(r ActiveRangeRow) string {
		return r.Design + "|" + r.Signal + "|" + intKey(r.Clause) + "|" + r.Term + "|" + r.Ranges + "|" + boolKey(r.Unconstrained)
	})
	out.Resets = diffRows(from.Resets, to.Resets, func(r ResetRow) string {
		return r.Design + "|" + r.Signal + "|" + r.Guard + "|" + r.Value + "|" + boolKey(r.Regular)
	})

	return out
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string { return strconv.Itoa(v) }

func int64Key(v int64) string { return strconv.FormatInt(v, 10) }
