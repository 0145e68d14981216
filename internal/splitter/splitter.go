// Package splitter flattens if-then-else dataflow trees into condition lists.
package splitter

import (
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
)

// Predicate decides whether the leaf assigned to signal name is kept by Filter.
type Predicate func(name string, leaf dataflow.Node) bool

// ActiveConstant keeps leaves that are positive constants.
func ActiveConstant(name string, leaf dataflow.Node) bool {
	v, ok := leaf.(*dataflow.EvalValue)
	return ok && v.Value > 0
}

// ActiveModify keeps leaves that change the signal.
func ActiveModify(name string, leaf dataflow.Node) bool {
	return !ActiveUnmodify(name, leaf)
}

// ActiveUnmodify keeps leaves that hold the signal's current value.
func ActiveUnmodify(name string, leaf dataflow.Node) bool {
	t, ok := leaf.(*dataflow.Terminal)
	return ok && t.Name == name
}

// Split returns one entry per path through the branches of tree. The false
// side of a branch is guarded by Ulnot(cond). A tree without branches splits
// into an empty dict.
func Split(tree dataflow.Node) *Funcdict {
	fd := NewFuncdict()
	root, ok := tree.(*dataflow.Branch)
	if !ok || !hasChildren(root) {
		return fd
	}

	type item struct {
		node   dataflow.Node
		conds  []dataflow.Node
		isLeaf bool
	}
	extend := func(conds []dataflow.Node, c dataflow.Node) []dataflow.Node {
		out := make([]dataflow.Node, len(conds)+1)
		copy(out, conds)
		out[len(conds)] = c
		return out
	}
	child := func(n dataflow.Node, conds []dataflow.Node) item {
		if br, ok := n.(*dataflow.Branch); ok && hasChildren(br) {
			return item{node: br, conds: conds}
		}
		return item{node: n, conds: conds, isLeaf: true}
	}

	stack := []item{{node: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.isLeaf {
			fd.Set(it.conds, it.node)
			continue
		}
		br := it.node.(*dataflow.Branch)
		// false first so the true side is emitted first
		if br.False != nil {
			stack = append(stack, child(br.False, extend(it.conds, dataflow.Not(br.Cond))))
		}
		if br.True != nil {
			stack = append(stack, child(br.True, extend(it.conds, br.Cond)))
		}
	}
	return fd
}

func hasChildren(br *dataflow.Branch) bool {
	return br.True != nil || br.False != nil
}

// IsResetCondition reports whether a guard mentions a reset by name.
func IsResetCondition(cond dataflow.Node) bool {
	return signaltype.IsReset(dataflow.LocalCode(cond))
}

// RemoveResetCondition drops every reset guard from every condition list.
// When this leaves an empty list next to other entries, the empty list is
// removed as well.
func RemoveResetCondition(fd *Funcdict) *Funcdict {
	out := NewFuncdict()
	for _, e := range fd.Entries() {
		conds := make([]dataflow.Node, 0, len(e.Conds))
		for _, c := range e.Conds {
			if IsResetCondition(c) {
				continue
			}
			conds = append(conds, c)
		}
		out.Set(conds, e.Leaf)
	}
	if out.Len() > 1 {
		if _, ok := out.Get(nil); ok {
			out.Delete(nil)
		}
	}
	return out
}

// Filter keeps the entries whose leaf satisfies pred.
func Filter(fd *Funcdict, name string, pred Predicate) *Funcdict {
	out := NewFuncdict()
	for _, e := range fd.Entries() {
		if pred(name, e.Leaf) {
			out.Set(e.Conds, e.Leaf)
		}
	}
	return out
}
