// Package transition walks the guards of a condition list against a candidate
// state signal and turns them into state-node predicates.
package transition

import (
	"math"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
	"github.com/robert-at-pretension-io/vlog-flow/internal/statenode"
)

// InferredValue is the inclusive interval a comparison against a constant
// admits. An absent bound means the universe bound. Inv marks the complement
// of the interval; Empty marks a comparison no value satisfies.
type InferredValue struct {
	Min    int64
	Max    int64
	HasMin bool
	HasMax bool
	Inv    bool
	Empty  bool
}

// InferValue returns the interval admitted by "x op v".
func InferValue(op string, v int64) (InferredValue, error) {
	switch signaltype.NormalizeOp(op) {
	case "LessThan":
		if v <= 0 {
			return InferredValue{Empty: true}, nil
		}
		return InferredValue{Min: 0, Max: v - 1, HasMin: true, HasMax: true}, nil
	case "GreaterThan":
		if v == math.MaxInt64 {
			return InferredValue{Empty: true}, nil
		}
		return InferredValue{Min: v + 1, HasMin: true}, nil
	case "LessEq":
		if v < 0 {
			return InferredValue{Empty: true}, nil
		}
		return InferredValue{Min: 0, Max: v, HasMin: true, HasMax: true}, nil
	case "GreaterEq":
		return InferredValue{Min: v, HasMin: true}, nil
	case "Eq", "Eql":
		return InferredValue{Min: v, Max: v, HasMin: true, HasMax: true}, nil
	case "NotEq", "NotEql":
		return InferredValue{Min: v, Max: v, HasMin: true, HasMax: true, Inv: true}, nil
	}
	return InferredValue{}, dataflow.Errorf("infer", "unsupported operator %s", op)
}

// Ranges returns the ranges of iv over [0, max].
func (iv InferredValue) Ranges(max int64) []statenode.Range {
	if iv.Empty {
		if iv.Inv {
			return []statenode.Range{{Lo: 0, Hi: max}}
		}
		return nil
	}
	lo, hi := int64(0), max
	if iv.HasMin {
		lo = iv.Min
	}
	if iv.HasMax {
		hi = iv.Max
	}
	ranges := statenode.Normalize([]statenode.Range{{Lo: lo, Hi: hi}}, 0, max)
	if iv.Inv {
		return statenode.Invert(ranges, 0, max)
	}
	return ranges
}

// CreateStateNode turns an inferred interval into a predicate over a
// width-bit signal.
func CreateStateNode(iv InferredValue, width int) statenode.List {
	max := statenode.MaxValue(width)
	ranges := iv.Ranges(max)
	if len(ranges) == 0 {
		return nil
	}
	return statenode.List{&statenode.Node{Ranges: ranges, Min: 0, Max: max}}
}
