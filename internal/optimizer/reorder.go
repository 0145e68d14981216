package optimizer

import (
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
)

// Reorder moves constant operands to the right of comparisons and commutative
// operators, so that 0 == state reads state == 0 and 3 < cnt reads cnt > 3.
func Reorder(n dataflow.Node) dataflow.Node {
	if n == nil {
		return nil
	}
	out, _ := dataflow.Rewrite(n, func(n dataflow.Node) (dataflow.Node, error) {
		op, ok := n.(*dataflow.Operator)
		if !ok || len(op.Children) != 2 {
			return n, nil
		}
		l, r := op.Children[0], op.Children[1]
		if !isConstant(l) || isConstant(r) {
			return n, nil
		}
		if signaltype.IsCompare(op.Op) {
			flipped, _ := signaltype.FlipOp(op.Op)
			return dataflow.Op(flipped, r, l), nil
		}
		if signaltype.IsCommutative(op.Op) {
			return dataflow.Op(op.Op, r, l), nil
		}
		return n, nil
	})
	return out
}

// ReplaceUndefined substitutes Terminal(name) for every unassigned path in a
// signal's own tree: a register that is not assigned keeps its value.
func ReplaceUndefined(n dataflow.Node, name string) dataflow.Node {
	if n == nil {
		return nil
	}
	out, _ := dataflow.Rewrite(n, func(n dataflow.Node) (dataflow.Node, error) {
		if _, ok := n.(*dataflow.Undefined); ok {
			return dataflow.Ref(name), nil
		}
		return n, nil
	})
	return out
}

func isConstant(n dataflow.Node) bool {
	switch n.(type) {
	case *dataflow.EvalValue, *dataflow.IntConst:
		return true
	}
	return false
}
