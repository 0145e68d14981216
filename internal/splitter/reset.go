package splitter

import (
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/optimizer"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
)

// ResetAssignment is the value a branch assigns while its reset is asserted.
type ResetAssignment struct {
	Guard dataflow.Node
	Value dataflow.Node
	Zero  bool
}

// ResetValues returns the value assigned on the true side of every branch of
// tree whose condition tests a reset signal, negated or compared to a
// constant. Reset branches are written as if (rst) or if (!rst_n), so the
// true side is the one taken while reset is asserted.
func ResetValues(tree dataflow.Node) []ResetAssignment {
	var out []ResetAssignment
	stack := []dataflow.Node{tree}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if br, ok := n.(*dataflow.Branch); ok && br.True != nil && isResetGuard(br.Cond) {
			out = append(out, ResetAssignment{Guard: br.Cond, Value: br.True, Zero: isZero(br.True)})
		}
		kids := dataflow.Children(n)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// CheckResetValues returns a FormatError for the first reset branch of name's
// tree that does not assign a zero constant.
func CheckResetValues(name string, tree dataflow.Node) error {
	for _, ra := range ResetValues(tree) {
		if !ra.Zero {
			return dataflow.Errorf("reset "+name, "irregular reset value %s under %s",
				dataflow.ToCode(ra.Value), dataflow.ToCode(ra.Guard))
		}
	}
	return nil
}

func isResetGuard(cond dataflow.Node) bool {
	for {
		switch c := cond.(type) {
		case *dataflow.Terminal:
			return signaltype.IsReset(dataflow.LocalName(c.Name))
		case *dataflow.Operator:
			if signaltype.IsNot(c.Op) && len(c.Children) == 1 {
				cond = c.Children[0]
				continue
			}
			if len(c.Children) != 2 {
				return false
			}
			switch signaltype.NormalizeOp(c.Op) {
			case "Eq", "Eql", "NotEq", "NotEql":
			default:
				return false
			}
			t, ok := c.Children[0].(*dataflow.Terminal)
			if _, isConst := constValue(c.Children[1]); !ok || !isConst {
				return false
			}
			return signaltype.IsReset(dataflow.LocalName(t.Name))
		default:
			return false
		}
	}
}

func constValue(n dataflow.Node) (int64, bool) {
	switch n := n.(type) {
	case *dataflow.EvalValue:
		return n.Value, true
	case *dataflow.IntConst:
		if v, ok := optimizer.ParseIntConst(n.Value); ok {
			return v.Value, true
		}
	}
	return 0, false
}

func isZero(n dataflow.Node) bool {
	v, ok := constValue(n)
	return ok && v == 0
}
