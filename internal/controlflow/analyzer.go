// Package controlflow reconstructs the finite state machines of a design from
// its dataflow trees and answers which FSM states activate a signal.
package controlflow

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/vlog-flow/internal/active"
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/optimizer"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
	"github.com/robert-at-pretension-io/vlog-flow/internal/splitter"
	"github.com/robert-at-pretension-io/vlog-flow/internal/statenode"
	"github.com/robert-at-pretension-io/vlog-flow/internal/transition"
)

// DefaultFSMVars are the name fragments that mark a signal as an FSM candidate.
var DefaultFSMVars = []string{"fsm", "state", "count", "cnt", "step", "mode"}

const (
	// DefaultMaxStateSpan is the widest range enumerated state by state.
	DefaultMaxStateSpan = 65536
	defaultWidth        = 32
)

// Options tunes the analysis.
type Options struct {
	// FSMVars are added to DefaultFSMVars.
	FSMVars       []string
	MaxLoopDepth  int
	MaxStateSpan  int64
	MaxConditions int
	Verbose       bool
	Log           io.Writer
}

// Analyzer holds one design and the state machines found in it. The machine
// and loop catalogues are built by New and not modified afterwards.
type Analyzer struct {
	design  *dataflow.Design
	opts    Options
	fsmVars []string
	opt     *optimizer.Optimizer
	walker  *transition.Walker
	log     io.Writer

	fsms     map[string]*FSM
	fsmOrder []string
	loops    map[string][]Loop
}

// Source is the condition table driving a register, after following pure
// register-to-register copies back to the signal that computes the value.
type Source struct {
	Name     string
	Funcdict *splitter.Funcdict
	DelayCnt int
}

// New analyzes design and builds its FSM and loop catalogues.
func New(design *dataflow.Design, opts Options) (*Analyzer, error) {
	if design == nil {
		return nil, fmt.Errorf("nil design")
	}
	if opts.MaxLoopDepth <= 0 {
		opts.MaxLoopDepth = DefaultMaxLoopDepth
	}
	if opts.MaxStateSpan <= 0 {
		opts.MaxStateSpan = DefaultMaxStateSpan
	}
	log := opts.Log
	if log == nil {
		log = io.Discard
		if opts.Verbose {
			log = os.Stdout
		}
	} else if !opts.Verbose {
		log = io.Discard
	}

	vars := append([]string(nil), DefaultFSMVars...)
	for _, v := range opts.FSMVars {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			vars = append(vars, v)
		}
	}

	opt := optimizer.New(design.Constants)
	a := &Analyzer{
		design:  design,
		opts:    opts,
		fsmVars: vars,
		opt:     opt,
		walker:  transition.NewWalker(opt),
		log:     log,
		fsms:    make(map[string]*FSM),
		loops:   make(map[string][]Loop),
	}

	for _, name := range design.BoundNames() {
		if !a.IsFSMVar(name) {
			continue
		}
		fsm, err := a.buildFSM(name)
		if err != nil {
			return nil, fmt.Errorf("building FSM %s: %w", name, err)
		}
		if fsm == nil || fsm.Len() == 0 {
			continue
		}
		a.fsms[name] = fsm
		a.fsmOrder = append(a.fsmOrder, name)
		a.loops[name] = FindLoops(fsm, opts.MaxLoopDepth)

		fmt.Fprintf(a.log, "\n=== FSM %s ===\n", name)
		fsm.View(a.log)
		for _, l := range a.loops[name] {
			fmt.Fprintf(a.log, "Loop %s\n", l)
		}
	}
	return a, nil
}

// Design returns the analyzed design.
func (a *Analyzer) Design() *dataflow.Design { return a.design }

// Optimizer returns the constant folder bound to the design's parameters.
func (a *Analyzer) Optimizer() *optimizer.Optimizer { return a.opt }

// IsFSMVar reports whether the lower-cased name contains an FSM keyword.
func (a *Analyzer) IsFSMVar(name string) bool {
	lower := strings.ToLower(name)
	for _, v := range a.fsmVars {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// FiniteStateMachines returns the machines found, keyed by signal name.
func (a *Analyzer) FiniteStateMachines() map[string]*FSM {
	out := make(map[string]*FSM, len(a.fsms))
	for k, v := range a.fsms {
		out[k] = v
	}
	return out
}

// FSMNames returns the names of the machines found, sorted by name.
func (a *Analyzer) FSMNames() []string {
	return append([]string(nil), a.fsmOrder...)
}

// Loops returns the cycles of every machine along with the machines.
func (a *Analyzer) Loops() (map[string][]Loop, map[string]*FSM) {
	out := make(map[string][]Loop, len(a.loops))
	for k, v := range a.loops {
		out[k] = append([]Loop(nil), v...)
	}
	return out, a.FiniteStateMachines()
}

// GetWidth returns the declared bit width of name, or 32 when the term has
// no constant range.
func (a *Analyzer) GetWidth(name string) int {
	t := a.design.Term(name)
	if t == nil || t.MSB == nil || t.LSB == nil {
		return defaultWidth
	}
	msb, ok := a.opt.OptimizeConstant(t.MSB)
	if !ok {
		return defaultWidth
	}
	lsb, ok := a.opt.OptimizeConstant(t.LSB)
	if !ok {
		return defaultWidth
	}
	w := msb.Value - lsb.Value
	if w < 0 {
		w = -w
	}
	return int(w) + 1
}

// MakeTree returns the next-value tree of name with combinational signals
// inlined, constants folded and unassigned paths replaced by name itself.
// It returns nil when name has no bind.
func (a *Analyzer) MakeTree(name string) (dataflow.Node, error) {
	binds := a.design.BindsOf(name)
	if len(binds) == 0 {
		return nil, nil
	}
	t := &treeWalker{a: a, root: name, cache: make(map[string]dataflow.Node), path: make(map[string]bool)}
	tree, err := t.signal(name)
	if err != nil {
		return nil, err
	}
	tree = optimizer.Reorder(a.opt.Optimize(tree))
	tree = a.opt.Optimize(tree)
	return optimizer.ReplaceUndefined(tree, name), nil
}

// treeWalker inlines the trees of combinational signals into a root tree.
type treeWalker struct {
	a     *Analyzer
	root  string
	cache map[string]dataflow.Node
	path  map[string]bool
}

func (t *treeWalker) signal(name string) (dataflow.Node, error) {
	if tree, ok := t.cache[name]; ok {
		return tree, nil
	}
	t.path[name] = true
	defer delete(t.path, name)

	tree := t.a.bindTree(name)
	if tree == nil {
		return nil, nil
	}
	out, err := dataflow.Rewrite(tree, func(n dataflow.Node) (dataflow.Node, error) {
		term, ok := n.(*dataflow.Terminal)
		if !ok || !t.inlinable(term.Name) {
			return n, nil
		}
		if t.path[term.Name] {
			if term.Name == t.root {
				return n, nil
			}
			return nil, dataflow.Errorf("walk "+t.root, "combinational loop through %s", term.Name)
		}
		sub, err := t.signal(term.Name)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return n, nil
		}
		return sub, nil
	})
	if err != nil {
		return nil, err
	}
	t.cache[name] = out
	return out, nil
}

// inlinable reports whether a referenced signal is driven combinationally.
func (t *treeWalker) inlinable(name string) bool {
	if _, ok := t.a.design.Constants[name]; ok {
		return false
	}
	if len(t.a.design.BindsOf(name)) == 0 {
		return false
	}
	if term := t.a.design.Term(name); term != nil && signaltype.IsInput(term.Types) {
		return false
	}
	return !t.a.design.IsClockEdge(name)
}

// bindTree returns the tree driving name. Signals assigned slice by slice
// are assembled into a concatenation, most significant slice first.
func (a *Analyzer) bindTree(name string) dataflow.Node {
	binds := a.design.BindsOf(name)
	switch len(binds) {
	case 0:
		return nil
	case 1:
		return binds[0].Tree
	}
	type slice struct {
		msb  int64
		tree dataflow.Node
	}
	var slices []slice
	for _, b := range binds {
		if b.MSB == nil || b.Ptr != nil {
			return binds[0].Tree
		}
		msb, ok := a.opt.OptimizeConstant(b.MSB)
		if !ok {
			return binds[0].Tree
		}
		slices = append(slices, slice{msb: msb.Value, tree: b.Tree})
	}
	sort.SliceStable(slices, func(i, j int) bool { return slices[i].msb > slices[j].msb })
	c := &dataflow.Concat{}
	for _, s := range slices {
		c.Children = append(c.Children, s.tree)
	}
	return c
}

// GetFuncdict returns the reset-free condition table of a clocked register,
// following pure copies of another register. Unclocked signals and renames
// yield an empty table.
func (a *Analyzer) GetFuncdict(name string, delaycnt int) (*Source, error) {
	visited := make(map[string]bool)
	for {
		src := &Source{Name: name, Funcdict: splitter.NewFuncdict(), DelayCnt: delaycnt}
		if visited[name] || !a.design.IsClockEdge(name) {
			return src, nil
		}
		visited[name] = true
		if term := a.design.Term(name); term != nil && signaltype.IsRename(term.Types) {
			return src, nil
		}
		tree, err := a.MakeTree(name)
		if err != nil {
			return nil, err
		}
		src.Funcdict = splitter.RemoveResetCondition(splitTree(tree))
		if !src.Funcdict.IsUnconditional() {
			return src, nil
		}
		leaf, _ := src.Funcdict.Get(nil)
		other, ok := leaf.(*dataflow.Terminal)
		if !ok || other.Name == name || len(a.design.BindsOf(other.Name)) == 0 {
			return src, nil
		}
		name = other.Name
		delaycnt++
	}
}

// splitTree splits a tree; a tree without branches becomes one unguarded entry.
func splitTree(tree dataflow.Node) *splitter.Funcdict {
	fd := splitter.Split(tree)
	if fd.Len() == 0 && tree != nil {
		fd.Set(nil, tree)
	}
	return fd
}

func (a *Analyzer) buildFSM(name string) (*FSM, error) {
	src, err := a.GetFuncdict(name, 0)
	if err != nil {
		return nil, err
	}
	if src.Funcdict.Len() == 0 {
		return nil, nil
	}
	width := a.GetWidth(src.Name)
	fsm := NewFSM(name, width)
	fsm.Source = src.Name
	fsm.DelayCnt = src.DelayCnt
	max := statenode.MaxValue(width)

	entries := src.Funcdict.SortedEntries()
	known := make(map[int64]bool)
	for _, e := range entries {
		if v, ok := e.Leaf.(*dataflow.EvalValue); ok {
			known[mask(v.Value, width)] = true
		}
	}

	for _, e := range entries {
		v, ok := e.Leaf.(*dataflow.EvalValue)
		if !ok {
			continue
		}
		dst := mask(v.Value, width)
		nodes, err := a.walker.WalkCondlist(e.Conds, src.Name, width)
		if err != nil {
			return nil, err
		}
		for _, sn := range nodes {
			if sn.IsAny {
				fsm.SetAny(sn.Transcond, dst)
				continue
			}
			for _, r := range sn.Ranges {
				for _, s := range a.enumerate(r, known, max) {
					fsm.Set(s, sn.Transcond, dst)
				}
			}
		}
	}
	fsm.ApplyAny()
	fsm.Resolve(a.opt)
	return fsm, nil
}

// enumerate lists the states of r. Ranges wider than MaxStateSpan are only
// sampled at their endpoints and at the known values they contain.
func (a *Analyzer) enumerate(r statenode.Range, known map[int64]bool, max int64) []int64 {
	if r.Hi > max {
		r.Hi = max
	}
	if r.Span() <= a.opts.MaxStateSpan {
		out := make([]int64, 0, r.Span())
		for s := r.Lo; s <= r.Hi; s++ {
			out = append(out, s)
			if s == r.Hi {
				break
			}
		}
		return out
	}
	set := map[int64]bool{r.Lo: true, r.Hi: true}
	for v := range known {
		if v >= r.Lo && v <= r.Hi {
			set[v] = true
		}
	}
	out := make([]int64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mask(v int64, width int) int64 {
	if width <= 0 || width >= 63 {
		return v
	}
	return v & (int64(1)<<uint(width) - 1)
}

// activeWalker returns an active-condition walker bound to this design.
func (a *Analyzer) activeWalker() *active.Walker {
	w := active.NewWalker(a.opt, a.GetWidth)
	w.MaxConditions = a.opts.MaxConditions
	return w
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
