package controlflow

import (
	"fmt"

	"github.com/robert-at-pretension-io/vlog-flow/internal/active"
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/splitter"
	"github.com/robert-at-pretension-io/vlog-flow/internal/statenode"
)

// StateGuard is one state of an FSM, together with the residual guard under
// which a signal is active there. Any marks a signal active regardless of
// state; a nil Guard is unconditional.
type StateGuard struct {
	State int64
	Any   bool
	Guard dataflow.Node
}

func (sg StateGuard) String() string {
	if sg.Any {
		return fmt.Sprintf("(any, %s)", guardText(sg.Guard))
	}
	return fmt.Sprintf("(%d, %s)", sg.State, guardText(sg.Guard))
}

// activeFuncdict returns the reset-free condition table of the paths of name
// whose leaf satisfies pred. ok is false when name has no bind.
func (a *Analyzer) activeFuncdict(name string, pred splitter.Predicate) (fd *splitter.Funcdict, ok bool, err error) {
	if len(a.design.BindsOf(name)) == 0 {
		return nil, false, nil
	}
	if pred == nil {
		pred = splitter.ActiveConstant
	}
	tree, err := a.MakeTree(name)
	if err != nil {
		return nil, false, err
	}
	fd = splitter.Filter(splitTree(tree), name, pred)
	return splitter.RemoveResetCondition(fd), true, nil
}

// ActiveConditions returns, per FSM, the states and guards under which name
// is assigned a value accepted by pred (ActiveConstant when nil). A signal
// assigned on an unguarded path is reported as active in any state of
// itself. When no FSM constrains the signal, name is tried as its own FSM.
func (a *Analyzer) ActiveConditions(name string, pred splitter.Predicate) (map[string][]StateGuard, error) {
	out := make(map[string][]StateGuard)
	fd, ok, err := a.activeFuncdict(name, pred)
	if err != nil || !ok {
		return out, err
	}
	if fd.IsUnconditional() {
		out[name] = []StateGuard{{Any: true}}
		return out, nil
	}
	for _, fsmSig := range a.fsmOrder {
		res, err := a.activeConditionsFSM(fsmSig, fd)
		if err != nil {
			return nil, err
		}
		if len(res) > 0 {
			out[fsmSig] = res
		}
	}
	if len(out) == 0 {
		res, err := a.activeConditionsFSM(name, fd)
		if err != nil {
			return nil, err
		}
		if len(res) > 0 {
			out[name] = res
		}
	}
	fmt.Fprintf(a.log, "\n=== Active conditions of %s ===\n", name)
	for _, fsmSig := range sortedKeys(out) {
		for _, sg := range out[fsmSig] {
			fmt.Fprintf(a.log, "%s %s\n", fsmSig, sg)
		}
	}
	return out, nil
}

func (a *Analyzer) activeConditionsFSM(fsmSig string, fd *splitter.Funcdict) ([]StateGuard, error) {
	width := a.GetWidth(fsmSig)
	max := statenode.MaxValue(width)
	known := make(map[int64]bool)
	if fsm, ok := a.fsms[fsmSig]; ok {
		for _, s := range fsm.States() {
			known[s] = true
		}
	}

	var out []StateGuard
	seen := make(map[string]bool)
	for _, e := range fd.SortedEntries() {
		nodes, err := a.walker.WalkCondlist(e.Conds, fsmSig, width)
		if err != nil {
			return nil, err
		}
		for _, sn := range nodes {
			if sn.IsAny {
				continue
			}
			g := a.opt.Optimize(sn.Transcond)
			if v, ok := g.(*dataflow.EvalValue); ok {
				if v.Value == 0 {
					continue
				}
				g = nil
			}
			for _, r := range sn.Ranges {
				for _, s := range a.enumerate(r, known, max) {
					key := fmt.Sprintf("%d\x00%s", s, dataflow.Key(g))
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, StateGuard{State: s, Guard: g})
				}
			}
		}
	}
	return out, nil
}

// ActiveRanges returns the value ranges of the signals compared in the guards
// of name's active paths. An unguarded path yields the unconstrained list.
func (a *Analyzer) ActiveRanges(name string, pred splitter.Predicate) (active.ConditionList, error) {
	fd, ok, err := a.activeFuncdict(name, pred)
	if err != nil || !ok {
		return nil, err
	}
	if fd.IsUnconditional() {
		return active.True(), nil
	}
	entries := fd.SortedEntries()
	condlists := make([][]dataflow.Node, len(entries))
	for i, e := range entries {
		condlists[i] = e.Conds
	}
	return a.activeWalker().InferActiveConditions(condlists)
}
