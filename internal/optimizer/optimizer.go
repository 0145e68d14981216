// Package optimizer folds constants in dataflow trees and brings them into
// the canonical shape the control-flow analysis expects.
package optimizer

import (
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/signaltype"
)

// Optimizer folds constant sub-expressions. Terminals naming an entry of
// Constants are replaced by its value.
type Optimizer struct {
	Constants map[string]*dataflow.EvalValue
}

// New returns an optimizer that resolves the given parameter values.
func New(constants map[string]*dataflow.EvalValue) *Optimizer {
	if constants == nil {
		constants = make(map[string]*dataflow.EvalValue)
	}
	return &Optimizer{Constants: constants}
}

// Optimize returns n with every constant sub-expression folded. The input is
// not modified.
func (o *Optimizer) Optimize(n dataflow.Node) dataflow.Node {
	if n == nil {
		return nil
	}
	out, _ := dataflow.Rewrite(n, func(n dataflow.Node) (dataflow.Node, error) {
		return o.fold(n), nil
	})
	return out
}

// OptimizeConstant folds n and returns it when the result is a constant.
func (o *Optimizer) OptimizeConstant(n dataflow.Node) (*dataflow.EvalValue, bool) {
	if n == nil {
		return nil, false
	}
	v, ok := o.Optimize(n).(*dataflow.EvalValue)
	return v, ok
}

func (o *Optimizer) fold(n dataflow.Node) dataflow.Node {
	switch n := n.(type) {
	case *dataflow.IntConst:
		if v, ok := ParseIntConst(n.Value); ok {
			return v
		}
	case *dataflow.Terminal:
		if c, ok := o.Constants[n.Name]; ok {
			cp := *c
			return &cp
		}
	case *dataflow.Operator:
		return foldOperator(n)
	case *dataflow.Branch:
		if c, ok := n.Cond.(*dataflow.EvalValue); ok {
			pick := n.False
			if c.Value != 0 {
				pick = n.True
			}
			if pick != nil {
				return pick
			}
		}
		if n.True != nil && n.False != nil && dataflow.Equal(n.True, n.False) {
			return n.True
		}
	case *dataflow.Partselect:
		v, vok := n.Var.(*dataflow.EvalValue)
		msb, mok := n.MSB.(*dataflow.EvalValue)
		lsb, lok := n.LSB.(*dataflow.EvalValue)
		if vok && mok && lok && msb.Value >= lsb.Value && lsb.Value >= 0 && lsb.Value < 64 {
			width := int(msb.Value-lsb.Value) + 1
			return &dataflow.EvalValue{Value: mask(v.Value>>uint(lsb.Value), width), Width: width}
		}
	case *dataflow.Concat:
		var acc int64
		total := 0
		for _, c := range n.Children {
			v, ok := c.(*dataflow.EvalValue)
			if !ok || v.Width <= 0 {
				return n
			}
			total += v.Width
			if total > 62 {
				return n
			}
			acc = acc<<uint(v.Width) | mask(v.Value, v.Width)
		}
		return &dataflow.EvalValue{Value: acc, Width: total}
	}
	return n
}

func foldOperator(n *dataflow.Operator) dataflow.Node {
	op := signaltype.NormalizeOp(n.Op)
	switch len(n.Children) {
	case 1:
		if v, ok := n.Children[0].(*dataflow.EvalValue); ok {
			if r, ok := evalUnary(op, v); ok {
				return r
			}
		}
		if op == "Ulnot" {
			if inner, ok := n.Children[0].(*dataflow.Operator); ok && inner.Op == "Ulnot" && len(inner.Children) == 1 {
				return inner.Children[0]
			}
		}
	case 2:
		l, lok := n.Children[0].(*dataflow.EvalValue)
		r, rok := n.Children[1].(*dataflow.EvalValue)
		if lok && rok {
			if v, ok := evalBinary(op, l, r); ok {
				return v
			}
		}
		switch op {
		case "Land":
			if lok {
				if l.Value == 0 {
					return boolValue(false)
				}
				return n.Children[1]
			}
			if rok {
				if r.Value == 0 {
					return boolValue(false)
				}
				return n.Children[0]
			}
		case "Lor":
			if lok {
				if l.Value != 0 {
					return boolValue(true)
				}
				return n.Children[1]
			}
			if rok {
				if r.Value != 0 {
					return boolValue(true)
				}
				return n.Children[0]
			}
		}
	}
	if op != n.Op {
		return &dataflow.Operator{Op: op, Children: n.Children}
	}
	return n
}

func boolValue(b bool) *dataflow.EvalValue {
	if b {
		return &dataflow.EvalValue{Value: 1, Width: 1}
	}
	return &dataflow.EvalValue{Value: 0, Width: 1}
}

func mask(v int64, width int) int64 {
	if width <= 0 || width >= 63 {
		return v
	}
	return v & (int64(1)<<uint(width) - 1)
}

func evalUnary(op string, v *dataflow.EvalValue) (*dataflow.EvalValue, bool) {
	switch op {
	case "Ulnot":
		return boolValue(v.Value == 0), true
	case "Unot":
		return &dataflow.EvalValue{Value: mask(^v.Value, v.Width), Width: v.Width, Signed: v.Signed}, true
	case "Uminus":
		return &dataflow.EvalValue{Value: -v.Value, Width: v.Width, Signed: v.Signed}, true
	case "Uplus":
		return v, true
	case "Uor":
		return boolValue(v.Value != 0), true
	case "Unor":
		return boolValue(v.Value == 0), true
	case "Uand", "Unand":
		if v.Width <= 0 || v.Width >= 63 {
			return nil, false
		}
		all := mask(v.Value, v.Width) == mask(-1, v.Width)
		return boolValue(all == (op == "Uand")), true
	case "Uxor", "Uxnor":
		odd := bits.OnesCount64(uint64(mask(v.Value, v.Width)))%2 == 1
		return boolValue(odd == (op == "Uxor")), true
	}
	return nil, false
}

func evalBinary(op string, l, r *dataflow.EvalValue) (*dataflow.EvalValue, bool) {
	width := l.Width
	if r.Width > width {
		width = r.Width
	}
	signed := l.Signed && r.Signed
	arith := func(v int64) (*dataflow.EvalValue, bool) {
		if !signed {
			v = mask(v, width)
		}
		return &dataflow.EvalValue{Value: v, Width: width, Signed: signed}, true
	}
	a, b := l.Value, r.Value
	switch op {
	case "Plus":
		return arith(a + b)
	case "Minus":
		return arith(a - b)
	case "Times":
		return arith(a * b)
	case "Divide":
		if b == 0 {
			return nil, false
		}
		return arith(a / b)
	case "Mod":
		if b == 0 {
			return nil, false
		}
		return arith(a % b)
	case "Power":
		if b < 0 {
			return nil, false
		}
		p := math.Pow(float64(a), float64(b))
		if p > math.MaxInt64/2 {
			return nil, false
		}
		return arith(int64(p))
	case "Sll", "Sla":
		if b < 0 || b > 62 {
			return nil, false
		}
		return &dataflow.EvalValue{Value: mask(a<<uint(b), l.Width), Width: l.Width, Signed: l.Signed}, true
	case "Srl":
		if b < 0 || b > 62 {
			return nil, false
		}
		return &dataflow.EvalValue{Value: int64(uint64(mask(a, l.Width)) >> uint(b)), Width: l.Width}, true
	case "Sra":
		if b < 0 || b > 62 {
			return nil, false
		}
		return &dataflow.EvalValue{Value: a >> uint(b), Width: l.Width, Signed: l.Signed}, true
	case "LessThan":
		return boolValue(a < b), true
	case "GreaterThan":
		return boolValue(a > b), true
	case "LessEq":
		return boolValue(a <= b), true
	case "GreaterEq":
		return boolValue(a >= b), true
	case "Eq", "Eql":
		return boolValue(a == b), true
	case "NotEq", "NotEql":
		return boolValue(a != b), true
	case "And":
		return arith(a & b)
	case "Or":
		return arith(a | b)
	case "Xor":
		return arith(a ^ b)
	case "Xnor":
		return arith(^(a ^ b))
	case "Land":
		return boolValue(a != 0 && b != 0), true
	case "Lor":
		return boolValue(a != 0 || b != 0), true
	}
	return nil, false
}

// ParseIntConst parses a Verilog integer literal such as 10, 4'b0010, 'hff or
// 8'sd3. Literals containing x, z or ? digits do not parse.
func ParseIntConst(lit string) (*dataflow.EvalValue, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(lit), "_", "")
	if s == "" {
		return nil, false
	}
	q := strings.IndexByte(s, '\'')
	if q < 0 {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return &dataflow.EvalValue{Value: v, Width: 32, Signed: true}, true
	}
	width := 32
	if q > 0 {
		w, err := strconv.Atoi(s[:q])
		if err != nil || w <= 0 {
			return nil, false
		}
		width = w
	}
	rest := strings.ToLower(s[q+1:])
	signed := false
	if strings.HasPrefix(rest, "s") {
		signed = true
		rest = rest[1:]
	}
	if rest == "" {
		return nil, false
	}
	base := 10
	switch rest[0] {
	case 'b':
		base = 2
	case 'o':
		base = 8
	case 'd':
		base = 10
	case 'h':
		base = 16
	default:
		return nil, false
	}
	digits := rest[1:]
	if digits == "" || strings.ContainsAny(digits, "xz?") {
		return nil, false
	}
	u, err := strconv.ParseUint(digits, base, 64)
	if err != nil || u > math.MaxInt64 {
		return nil, false
	}
	return &dataflow.EvalValue{Value: mask(int64(u), width), Width: width, Signed: signed}, true
}
