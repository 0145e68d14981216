package controlflow

import (
	"fmt"
	"io"
	"sort"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/optimizer"
)

// Transition is one edge of a state machine. A nil Guard is unconditional.
type Transition struct {
	Src   int64
	Guard dataflow.Node
	Dst   int64
}

type edge struct {
	guard dataflow.Node
	dst   int64
}

// edgeSet keeps at most one destination per guard, in insertion order.
type edgeSet struct {
	edges []edge
	index map[string]int
}

func newEdgeSet() *edgeSet {
	return &edgeSet{index: make(map[string]int)}
}

func (s *edgeSet) set(guard dataflow.Node, dst int64) {
	key := dataflow.Key(guard)
	if i, ok := s.index[key]; ok {
		s.edges[i].dst = dst
		return
	}
	s.index[key] = len(s.edges)
	s.edges = append(s.edges, edge{guard: guard, dst: dst})
}

func (s *edgeSet) has(guard dataflow.Node) bool {
	_, ok := s.index[dataflow.Key(guard)]
	return ok
}

// FSM is the transition graph reconstructed for one state signal.
type FSM struct {
	Name string
	// Source is the signal whose conditions drive the transitions. It differs
	// from Name when Name is a delayed copy of another register.
	Source   string
	Width    int
	DelayCnt int

	states map[int64]*edgeSet
	any    *edgeSet
}

// NewFSM returns an empty machine for name.
func NewFSM(name string, width int) *FSM {
	return &FSM{
		Name:   name,
		Source: name,
		Width:  width,
		states: make(map[int64]*edgeSet),
		any:    newEdgeSet(),
	}
}

// Set records src --guard--> dst. A later edge with the same source and
// guard replaces the earlier one.
func (f *FSM) Set(src int64, guard dataflow.Node, dst int64) {
	s, ok := f.states[src]
	if !ok {
		s = newEdgeSet()
		f.states[src] = s
	}
	s.set(guard, dst)
}

// SetAny records a transition taken from every state.
func (f *FSM) SetAny(guard dataflow.Node, dst int64) {
	f.any.set(guard, dst)
}

// Len returns the number of explicit transitions.
func (f *FSM) Len() int {
	n := 0
	for _, s := range f.states {
		n += len(s.edges)
	}
	return n
}

// Sources returns the states with outgoing transitions, ascending.
func (f *FSM) Sources() []int64 {
	out := make([]int64, 0, len(f.states))
	for src := range f.states {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// States returns every state that appears as a source or destination, ascending.
func (f *FSM) States() []int64 {
	seen := make(map[int64]bool)
	for src, s := range f.states {
		seen[src] = true
		for _, e := range s.edges {
			seen[e.dst] = true
		}
	}
	for _, e := range f.any.edges {
		seen[e.dst] = true
	}
	out := make([]int64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transitions returns the edges leaving src in insertion order.
func (f *FSM) Transitions(src int64) []Transition {
	s, ok := f.states[src]
	if !ok {
		return nil
	}
	out := make([]Transition, len(s.edges))
	for i, e := range s.edges {
		out[i] = Transition{Src: src, Guard: e.guard, Dst: e.dst}
	}
	return out
}

// AllTransitions returns every explicit edge ordered by source.
func (f *FSM) AllTransitions() []Transition {
	var out []Transition
	for _, src := range f.Sources() {
		out = append(out, f.Transitions(src)...)
	}
	return out
}

// AnyTransitions returns the transitions valid from every state.
func (f *FSM) AnyTransitions() []Transition {
	out := make([]Transition, len(f.any.edges))
	for i, e := range f.any.edges {
		out[i] = Transition{Guard: e.guard, Dst: e.dst}
	}
	return out
}

// Next returns the distinct successors of src, ascending.
func (f *FSM) Next(src int64) []int64 {
	s, ok := f.states[src]
	if !ok {
		return nil
	}
	seen := make(map[int64]bool)
	var out []int64
	for _, e := range s.edges {
		if !seen[e.dst] {
			seen[e.dst] = true
			out = append(out, e.dst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyAny copies the universal transitions onto every known state without
// overriding an explicit edge with the same guard.
func (f *FSM) ApplyAny() {
	if len(f.any.edges) == 0 {
		return
	}
	for _, src := range f.States() {
		for _, e := range f.any.edges {
			s, ok := f.states[src]
			if ok && s.has(e.guard) {
				continue
			}
			f.Set(src, e.guard, e.dst)
		}
	}
}

// Resolve merges the edges of each state that share a destination by OR-ing
// their guards. Guards that are always true become nil; guards that are
// always false are dropped.
func (f *FSM) Resolve(opt *optimizer.Optimizer) {
	if opt == nil {
		opt = optimizer.New(nil)
	}
	for src, s := range f.states {
		var order []int64
		guards := make(map[int64]dataflow.Node)
		uncond := make(map[int64]bool)
		for _, e := range s.edges {
			if _, ok := guards[e.dst]; !ok && !uncond[e.dst] {
				order = append(order, e.dst)
			}
			if e.guard == nil || uncond[e.dst] {
				uncond[e.dst] = true
				delete(guards, e.dst)
				continue
			}
			guards[e.dst] = dataflow.Or(guards[e.dst], e.guard)
		}
		merged := newEdgeSet()
		for _, dst := range order {
			if uncond[dst] {
				merged.set(nil, dst)
				continue
			}
			g := opt.Optimize(guards[dst])
			if v, ok := g.(*dataflow.EvalValue); ok {
				if v.Value == 0 {
					continue
				}
				g = nil
			} else if IsTautology(g) {
				g = nil
			}
			merged.set(g, dst)
		}
		if len(merged.edges) == 0 {
			delete(f.states, src)
			continue
		}
		f.states[src] = merged
	}
}

// View writes one line per transition.
func (f *FSM) View(w io.Writer) {
	fmt.Fprintf(w, "# SIGNAL NAME: %s\n", f.Name)
	fmt.Fprintf(w, "# DELAY CNT: %d\n", f.DelayCnt)
	for _, t := range f.AllTransitions() {
		fmt.Fprintf(w, "%d --%s--> %d\n", t.Src, guardText(t.Guard), t.Dst)
	}
	for _, t := range f.AnyTransitions() {
		fmt.Fprintf(w, "any --%s--> %d\n", guardText(t.Guard), t.Dst)
	}
}

func guardText(g dataflow.Node) string {
	if g == nil {
		return "None"
	}
	return dataflow.ToCode(g)
}
