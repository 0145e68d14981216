package controlflow

import (
	"github.com/dalzilio/rudd"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
)

// IsTautology reports whether guard holds for every valuation of its atoms.
// Atoms are the maximal sub-expressions that are not logical connectives;
// two atoms are the same variable when they render to the same code.
func IsTautology(guard dataflow.Node) bool {
	if guard == nil {
		return true
	}
	atoms := make(map[string]int)
	_, _ = dataflow.Fold(guard, logicChildren, func(n dataflow.Node, _ []struct{}) (struct{}, error) {
		if len(logicChildren(n)) == 0 {
			if _, ok := n.(*dataflow.EvalValue); !ok {
				key := dataflow.Key(n)
				if _, seen := atoms[key]; !seen {
					atoms[key] = len(atoms)
				}
			}
		}
		return struct{}{}, nil
	})

	varnum := len(atoms)
	if varnum == 0 {
		varnum = 1
	}
	bdd, err := rudd.New(varnum, rudd.Nodesize(1000), rudd.Cachesize(500))
	if err != nil {
		return false
	}
	root, err := dataflow.Fold(guard, logicChildren, func(n dataflow.Node, kids []rudd.Node) (rudd.Node, error) {
		switch n := n.(type) {
		case *dataflow.EvalValue:
			if n.Value != 0 {
				return bdd.True(), nil
			}
			return bdd.False(), nil
		case *dataflow.Operator:
			switch {
			case len(kids) == 1:
				return bdd.Not(kids[0]), nil
			case len(kids) == 2 && n.Op == "Land":
				return bdd.And(kids[0], kids[1]), nil
			case len(kids) == 2 && n.Op == "Lor":
				return bdd.Or(kids[0], kids[1]), nil
			}
		}
		return bdd.Ithvar(atoms[dataflow.Key(n)]), nil
	})
	if err != nil || root == nil {
		return false
	}
	return bdd.Equal(root, bdd.True())
}

// logicChildren selects the operands of logical connectives.
func logicChildren(n dataflow.Node) []dataflow.Node {
	op, ok := n.(*dataflow.Operator)
	if !ok {
		return nil
	}
	switch {
	case op.Op == "Ulnot" && len(op.Children) == 1:
		return op.Children
	case (op.Op == "Land" || op.Op == "Lor") && len(op.Children) == 2:
		return op.Children
	}
	return nil
}
