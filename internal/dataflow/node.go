package dataflow

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Node is a symbolic dataflow expression: the next value of a signal, or a
// guard on one of its paths.
type Node interface {
	isNode()
}

// IntConst is an integer literal as written in the source, e.g. 4'b0010.
type IntConst struct {
	Value string
}

// EvalValue is a fully evaluated constant.
type EvalValue struct {
	Value  int64
	Width  int
	Signed bool
}

// Terminal references a signal by its fully qualified, dot separated name.
type Terminal struct {
	Name string
}

// Operator applies a named operator (Plus, Eq, Land, Ulnot, ...) to its children.
type Operator struct {
	Op       string
	Children []Node
}

// Branch is a conditional expression. Either branch may be nil.
type Branch struct {
	Cond  Node
	True  Node
	False Node
}

// Partselect is a bit slice var[msb:lsb].
type Partselect struct {
	Var Node
	MSB Node
	LSB Node
}

// Pointer is an indexed access var[ptr].
type Pointer struct {
	Var Node
	Ptr Node
}

// Concat is a concatenation {a, b, ...}, most significant part first.
type Concat struct {
	Children []Node
}

// Undefined marks a path on which the signal is not assigned.
type Undefined struct{}

func (*IntConst) isNode()   {}
func (*EvalValue) isNode()  {}
func (*Terminal) isNode()   {}
func (*Operator) isNode()   {}
func (*Branch) isNode()     {}
func (*Partselect) isNode() {}
func (*Pointer) isNode()    {}
func (*Concat) isNode()     {}
func (*Undefined) isNode()  {}

// Ref returns a terminal node referring to name.
func Ref(name string) *Terminal { return &Terminal{Name: name} }

// Int returns a 32 bit evaluated constant.
func Int(v int64) *EvalValue { return &EvalValue{Value: v, Width: 32} }

// Op returns an operator node.
func Op(op string, children ...Node) *Operator {
	return &Operator{Op: op, Children: children}
}

// Br returns a branch node.
func Br(cond, t, f Node) *Branch { return &Branch{Cond: cond, True: t, False: f} }

// Not wraps n in a logical negation.
func Not(n Node) *Operator { return Op("Ulnot", n) }

// And returns the logical conjunction of a and b. A nil operand is ignored.
func And(a, b Node) Node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return Op("Land", a, b)
}

// Or returns the logical disjunction of a and b. A nil operand is ignored.
func Or(a, b Node) Node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return Op("Lor", a, b)
}

var opMarks = map[string]string{
	"Uminus":      "-",
	"Uplus":       "+",
	"Ulnot":       "!",
	"Unot":        "~",
	"Uand":        "&",
	"Unand":       "~&",
	"Uor":         "|",
	"Unor":        "~|",
	"Uxor":        "^",
	"Uxnor":       "~^",
	"Power":       "**",
	"Times":       "*",
	"Divide":      "/",
	"Mod":         "%",
	"Plus":        "+",
	"Minus":       "-",
	"Sll":         "<<",
	"Srl":         ">>",
	"Sla":         "<<<",
	"Sra":         ">>>",
	"LessThan":    "<",
	"GreaterThan": ">",
	"LessEq":      "<=",
	"LassEq":      "<=",
	"GreaterEq":   ">=",
	"Eq":          "==",
	"NotEq":       "!=",
	"Eql":         "===",
	"NotEql":      "!==",
	"And":         "&",
	"Xor":         "^",
	"Xnor":        "~^",
	"Or":          "|",
	"Land":        "&&",
	"Lor":         "||",
}

// OpMark returns the Verilog spelling of an operator name, or the name itself
// when it has none.
func OpMark(op string) string {
	if m, ok := opMarks[op]; ok {
		return m
	}
	return op
}

// ToCode renders n as parenthesised Verilog.
func ToCode(n Node) string {
	var b strings.Builder
	render(&b, n, false)
	return b.String()
}

// LocalCode renders n like ToCode but with every terminal reduced to the
// last component of its hierarchical name.
func LocalCode(n Node) string {
	var b strings.Builder
	render(&b, n, true)
	return b.String()
}

// LocalName returns the last component of a dot separated name.
func LocalName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func render(b *strings.Builder, n Node, local bool) {
	switch n := n.(type) {
	case nil:
		b.WriteString("None")
	case *IntConst:
		b.WriteString(n.Value)
	case *EvalValue:
		if n.Width > 0 {
			b.WriteString(strconv.Itoa(n.Width))
			if n.Signed {
				b.WriteString("'sd")
			} else {
				b.WriteString("'d")
			}
		}
		b.WriteString(strconv.FormatInt(n.Value, 10))
	case *Terminal:
		if local {
			b.WriteString(LocalName(n.Name))
		} else {
			b.WriteString(n.Name)
		}
	case *Operator:
		b.WriteByte('(')
		mark := OpMark(n.Op)
		if len(n.Children) == 1 {
			b.WriteString(mark)
			render(b, n.Children[0], local)
		} else {
			for i, c := range n.Children {
				if i > 0 {
					b.WriteString(mark)
				}
				render(b, c, local)
			}
		}
		b.WriteByte(')')
	case *Branch:
		b.WriteString("((")
		render(b, n.Cond, local)
		b.WriteString(")? ")
		render(b, n.True, local)
		b.WriteString(" : ")
		render(b, n.False, local)
		b.WriteByte(')')
	case *Partselect:
		render(b, n.Var, local)
		b.WriteByte('[')
		render(b, n.MSB, local)
		b.WriteByte(':')
		render(b, n.LSB, local)
		b.WriteByte(']')
	case *Pointer:
		render(b, n.Var, local)
		b.WriteByte('[')
		render(b, n.Ptr, local)
		b.WriteByte(']')
	case *Concat:
		b.WriteByte('{')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, c, local)
		}
		b.WriteByte('}')
	case *Undefined:
		b.WriteString("'hx")
	}
}

// Key returns a stable string key for n. Structurally equal nodes share a key.
func Key(n Node) string {
	if n == nil {
		return ""
	}
	return ToCode(n)
}

// Hash returns the xxhash of Key(n).
func Hash(n Node) uint64 {
	return xxhash.Sum64String(Key(n))
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Node) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case *IntConst:
		o, ok := b.(*IntConst)
		return ok && a.Value == o.Value
	case *EvalValue:
		o, ok := b.(*EvalValue)
		return ok && a.Value == o.Value && a.Width == o.Width && a.Signed == o.Signed
	case *Terminal:
		o, ok := b.(*Terminal)
		return ok && a.Name == o.Name
	case *Operator:
		o, ok := b.(*Operator)
		return ok && a.Op == o.Op && equalSlices(a.Children, o.Children)
	case *Branch:
		o, ok := b.(*Branch)
		return ok && Equal(a.Cond, o.Cond) && Equal(a.True, o.True) && Equal(a.False, o.False)
	case *Partselect:
		o, ok := b.(*Partselect)
		return ok && Equal(a.Var, o.Var) && Equal(a.MSB, o.MSB) && Equal(a.LSB, o.LSB)
	case *Pointer:
		o, ok := b.(*Pointer)
		return ok && Equal(a.Var, o.Var) && Equal(a.Ptr, o.Ptr)
	case *Concat:
		o, ok := b.(*Concat)
		return ok && equalSlices(a.Children, o.Children)
	case *Undefined:
		_, ok := b.(*Undefined)
		return ok
	}
	return false
}

func equalSlices(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Children returns the direct sub-expressions of n in source order. Absent
// branches are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *Operator:
		for _, c := range n.Children {
			add(c)
		}
	case *Branch:
		add(n.Cond)
		add(n.True)
		add(n.False)
	case *Partselect:
		add(n.Var)
		add(n.MSB)
		add(n.LSB)
	case *Pointer:
		add(n.Var)
		add(n.Ptr)
	case *Concat:
		for _, c := range n.Children {
			add(c)
		}
	}
	return out
}

// Terminals returns the distinct terminal names referenced by n, in order of
// first appearance.
func Terminals(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	stack := []Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t, ok := cur.(*Terminal); ok {
			if !seen[t.Name] {
				seen[t.Name] = true
				names = append(names, t.Name)
			}
			continue
		}
		kids := Children(cur)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return names
}
