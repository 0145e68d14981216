package transition

import (
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/optimizer"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
	"github.com/robert-at-pretension-io/vlog-flow/internal/statenode"
)

// Walker evaluates guards against one candidate state signal. Comparisons
// between that signal and a constant become ranges; everything else is kept
// as a residual transcond.
type Walker struct {
	Optimizer *optimizer.Optimizer
}

// NewWalker returns a walker that folds comparison operands with opt.
func NewWalker(opt *optimizer.Optimizer) *Walker {
	if opt == nil {
		opt = optimizer.New(nil)
	}
	return &Walker{Optimizer: opt}
}

// Infer returns the interval admitted by comparing a signal against node with
// op. ok is false when node does not fold to a constant.
func (w *Walker) Infer(op string, node dataflow.Node) (iv InferredValue, ok bool, err error) {
	v, isConst := w.Optimizer.OptimizeConstant(node)
	if !isConst {
		if !signaltype.IsCompare(op) {
			return InferredValue{}, false, dataflow.Errorf("infer", "unsupported operator %s", op)
		}
		return InferredValue{}, false, nil
	}
	iv, err = InferValue(op, v.Value)
	if err != nil {
		return InferredValue{}, false, err
	}
	return iv, true, nil
}

// WalkCondlist returns the conjunction of every guard in conds as seen from
// termname. An empty list holds for every state.
func (w *Walker) WalkCondlist(conds []dataflow.Node, termname string, width int) (statenode.List, error) {
	acc := statenode.List{statenode.NewAny(statenode.MaxValue(width), nil)}
	for _, c := range conds {
		l, err := w.WalkCond(c, termname, width)
		if err != nil {
			return nil, err
		}
		acc = statenode.And(acc, l)
		if len(acc) == 0 {
			return nil, nil
		}
	}
	return acc, nil
}

// WalkCond returns the predicate cond places on termname.
func (w *Walker) WalkCond(cond dataflow.Node, termname string, width int) (statenode.List, error) {
	max := statenode.MaxValue(width)
	return dataflow.Fold(cond, SplitChildren, func(n dataflow.Node, kids []statenode.List) (statenode.List, error) {
		switch n := n.(type) {
		case *dataflow.Terminal:
			return w.compare(dataflow.Op("GreaterThan", n, dataflow.Int(0)), termname, width)
		case *dataflow.EvalValue:
			if n.Value == 0 {
				return nil, nil
			}
			return statenode.List{statenode.NewAny(max, nil)}, nil
		case *dataflow.Operator:
			switch {
			case len(kids) == 1:
				return statenode.Not(kids[0], max), nil
			case len(kids) == 2 && signaltype.IsOr(n.Op):
				return statenode.Or(kids[0], kids[1]), nil
			case len(kids) == 2 && signaltype.IsAnd(n.Op):
				return statenode.And(kids[0], kids[1]), nil
			case len(n.Children) == 2 && signaltype.IsCompare(n.Op):
				return w.compare(n, termname, width)
			}
		}
		return statenode.List{statenode.NewAny(max, n)}, nil
	})
}

// SplitChildren selects the sub-guards the walkers decompose: the operand of
// a negation, both sides of a logical and/or, and both sides of a bitwise
// and/or whose operands are themselves conditions. A bit test such as
// state & 1 is left whole.
func SplitChildren(n dataflow.Node) []dataflow.Node {
	op, ok := n.(*dataflow.Operator)
	if !ok {
		return nil
	}
	switch {
	case len(op.Children) == 1 && signaltype.IsNot(op.Op):
		return op.Children
	case len(op.Children) == 2 && signaltype.IsLogical(op.Op):
		return op.Children
	case len(op.Children) == 2 && (signaltype.IsAnd(op.Op) || signaltype.IsOr(op.Op)):
		if isCondition(op.Children[0]) && isCondition(op.Children[1]) {
			return op.Children
		}
	}
	return nil
}

// isCondition reports whether n evaluates to a truth value: a comparison, a
// negation, or a connective over conditions.
func isCondition(n dataflow.Node) bool {
	op, ok := n.(*dataflow.Operator)
	if !ok {
		return false
	}
	switch {
	case signaltype.IsCompare(op.Op), signaltype.IsNot(op.Op), signaltype.IsLogical(op.Op):
		return true
	case signaltype.IsAnd(op.Op) || signaltype.IsOr(op.Op):
		return len(op.Children) == 2 && isCondition(op.Children[0]) && isCondition(op.Children[1])
	}
	return false
}

func (w *Walker) compare(n *dataflow.Operator, termname string, width int) (statenode.List, error) {
	max := statenode.MaxValue(width)
	l, r := n.Children[0], n.Children[1]
	op := n.Op
	other := r
	switch {
	case isTerm(l, termname):
	case isTerm(r, termname):
		flipped, _ := signaltype.FlipOp(op)
		op, other = flipped, l
	default:
		return statenode.List{statenode.NewAny(max, n)}, nil
	}
	iv, ok, err := w.Infer(op, other)
	if err != nil {
		return nil, err
	}
	if !ok {
		return statenode.List{statenode.NewAny(max, n)}, nil
	}
	return CreateStateNode(iv, width), nil
}

func isTerm(n dataflow.Node, name string) bool {
	t, ok := n.(*dataflow.Terminal)
	return ok && t.Name == name
}
