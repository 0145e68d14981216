package active

import (
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/optimizer"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
	"github.com/robert-at-pretension-io/vlog-flow/internal/statenode"
	"github.com/robert-at-pretension-io/vlog-flow/internal/transition"
)

// Walker turns guards into condition lists over every signal they compare
// against a constant.
type Walker struct {
	Optimizer *optimizer.Optimizer
	// WidthOf returns the bit width of a signal. Nil means 32 bits.
	WidthOf func(name string) int
	// MaxConditions caps the size of intermediate lists; a larger list is
	// replaced by the unconstrained one. Zero disables the cap.
	MaxConditions int

	infer *transition.Walker
}

// NewWalker returns a walker resolving constants with opt.
func NewWalker(opt *optimizer.Optimizer, widthOf func(string) int) *Walker {
	if opt == nil {
		opt = optimizer.New(nil)
	}
	return &Walker{Optimizer: opt, WidthOf: widthOf, infer: transition.NewWalker(opt)}
}

func (w *Walker) width(name string) int {
	if w.WidthOf == nil {
		return 32
	}
	return w.WidthOf(name)
}

func (w *Walker) limit(l ConditionList) walked {
	if w.MaxConditions > 0 && len(l) > w.MaxConditions {
		return undecided()
	}
	return walked{list: l}
}

// walked is a partial result of WalkActiveCond. unknown marks a list that is
// unconstrained because part of the guard could not be decided, as opposed to
// a guard that is literally true.
type walked struct {
	list    ConditionList
	unknown bool
}

func undecided() walked { return walked{list: True(), unknown: true} }

// WalkActiveCond returns the condition list equivalent to cond. Comparisons
// that do not relate a signal to a constant are unconstrained, and so is the
// negation of anything that contains one.
func (w *Walker) WalkActiveCond(cond dataflow.Node) (ConditionList, error) {
	if w.infer == nil {
		w.infer = transition.NewWalker(w.Optimizer)
	}
	res, err := dataflow.Fold(cond, transition.SplitChildren, func(n dataflow.Node, kids []walked) (walked, error) {
		switch n := n.(type) {
		case *dataflow.Terminal:
			return w.compare(dataflow.Op("GreaterThan", n, dataflow.Int(0)))
		case *dataflow.EvalValue:
			if n.Value == 0 {
				return walked{}, nil
			}
			return walked{list: True()}, nil
		case *dataflow.Operator:
			switch {
			case len(kids) == 1:
				if kids[0].unknown {
					return undecided(), nil
				}
				return w.limit(Not(kids[0].list)), nil
			case len(kids) == 2 && signaltype.IsOr(n.Op):
				return w.join(Or(kids[0].list, kids[1].list), kids), nil
			case len(kids) == 2 && signaltype.IsAnd(n.Op):
				return w.join(And(kids[0].list, kids[1].list), kids), nil
			case len(n.Children) == 2 && signaltype.IsCompare(n.Op):
				return w.compare(n)
			}
		}
		return undecided(), nil
	})
	if err != nil {
		return nil, err
	}
	return res.list, nil
}

func (w *Walker) join(l ConditionList, kids []walked) walked {
	res := w.limit(l)
	for _, k := range kids {
		res.unknown = res.unknown || k.unknown
	}
	return res
}

func (w *Walker) compare(n *dataflow.Operator) (walked, error) {
	l, r := n.Children[0], n.Children[1]
	if t, ok := l.(*dataflow.Terminal); ok {
		if cl, ok, err := w.term(t.Name, n.Op, r); ok || err != nil {
			return walked{list: cl}, err
		}
	}
	if t, ok := r.(*dataflow.Terminal); ok {
		flipped, _ := signaltype.FlipOp(n.Op)
		if cl, ok, err := w.term(t.Name, flipped, l); ok || err != nil {
			return walked{list: cl}, err
		}
	}
	return undecided(), nil
}

func (w *Walker) term(name, op string, other dataflow.Node) (ConditionList, bool, error) {
	iv, ok, err := w.infer.Infer(op, other)
	if err != nil || !ok {
		return nil, false, err
	}
	max := statenode.MaxValue(w.width(name))
	return NewTerm(name, iv.Ranges(max), max), true, nil
}

// InferActiveCondition returns the conjunction of the guards in conds.
func (w *Walker) InferActiveCondition(conds []dataflow.Node) (ConditionList, error) {
	acc := True()
	for _, c := range conds {
		l, err := w.WalkActiveCond(c)
		if err != nil {
			return nil, err
		}
		acc = w.limit(And(acc, l)).list
		if len(acc) == 0 {
			return nil, nil
		}
	}
	return acc, nil
}

// InferActiveConditions flattens every condition list and collects the
// distinct, non-empty conditions in order of appearance.
func (w *Walker) InferActiveConditions(condlists [][]dataflow.Node) (ConditionList, error) {
	var out ConditionList
	seen := make(map[uint64]bool)
	for _, conds := range condlists {
		l, err := w.InferActiveCondition(conds)
		if err != nil {
			return nil, err
		}
		for _, c := range l {
			if len(c) == 0 {
				continue
			}
			h := c.Hash()
			if seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, c)
		}
	}
	return out, nil
}
