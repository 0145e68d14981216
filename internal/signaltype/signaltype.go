// Package signaltype classifies operator names and signal type tags.
package signaltype

import "strings"

var compareOps = map[string]bool{
	"LessThan":    true,
	"GreaterThan": true,
	"LessEq":      true,
	"LassEq":      true,
	"GreaterEq":   true,
	"Eq":          true,
	"NotEq":       true,
	"Eql":         true,
	"NotEql":      true,
}

var notOps = map[string]bool{
	"Ulnot": true,
	"Unot":  true,
}

var andOps = map[string]bool{
	"Land": true,
	"And":  true,
}

var orOps = map[string]bool{
	"Lor": true,
	"Or":  true,
}

// NormalizeOp maps alternative operator spellings onto one name. The parser
// front-end historically emits LassEq for <=.
func NormalizeOp(op string) string {
	if op == "LassEq" {
		return "LessEq"
	}
	return op
}

// IsCompare reports whether op is a relational or equality operator.
func IsCompare(op string) bool { return compareOps[op] }

// IsNot reports whether op is a logical or bitwise negation.
func IsNot(op string) bool { return notOps[op] }

// IsAnd reports whether op is a logical or bitwise and. The bitwise form is
// only a connective when both operands are conditions.
func IsAnd(op string) bool { return andOps[op] }

// IsOr reports whether op is a logical or bitwise or, with the same caveat
// as IsAnd.
func IsOr(op string) bool { return orOps[op] }

// IsLogical reports whether op is && or ||, which always join conditions.
func IsLogical(op string) bool { return op == "Land" || op == "Lor" }

// IsNonConditionOp reports whether op cannot be decomposed into range
// predicates: anything that is not a comparison, negation, and, or or.
func IsNonConditionOp(op string) bool {
	return !IsCompare(op) && !IsNot(op) && !IsAnd(op) && !IsOr(op)
}

// FlipOp returns the comparison that holds with its operands swapped:
// a < b becomes b > a. Equality operators are symmetric. ok is false for
// anything that is not a comparison.
func FlipOp(op string) (string, bool) {
	switch NormalizeOp(op) {
	case "LessThan":
		return "GreaterThan", true
	case "GreaterThan":
		return "LessThan", true
	case "LessEq":
		return "GreaterEq", true
	case "GreaterEq":
		return "LessEq", true
	case "Eq", "NotEq", "Eql", "NotEql":
		return op, true
	}
	return "", false
}

// IsCommutative reports whether the operands of op may be swapped freely.
func IsCommutative(op string) bool {
	switch op {
	case "Plus", "Times", "And", "Or", "Xor", "Xnor", "Land", "Lor", "Eq", "NotEq", "Eql", "NotEql":
		return true
	}
	return false
}

func hasTag(types []string, tags ...string) bool {
	for _, t := range types {
		for _, tag := range tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}

// IsInput reports whether a term tagged with types is an input port.
func IsInput(types []string) bool { return hasTag(types, "Input") }

// IsOutput reports whether a term tagged with types is an output port.
func IsOutput(types []string) bool { return hasTag(types, "Output") }

// IsInout reports whether a term tagged with types is a bidirectional port.
func IsInout(types []string) bool { return hasTag(types, "Inout") }

// IsReg reports whether a term tagged with types is a reg.
func IsReg(types []string) bool { return hasTag(types, "Reg") }

// IsWire reports whether a term tagged with types is a wire.
func IsWire(types []string) bool { return hasTag(types, "Wire") }

// IsInteger reports whether a term tagged with types is an integer variable.
func IsInteger(types []string) bool { return hasTag(types, "Integer") }

// IsGenvar reports whether a term tagged with types is a genvar.
func IsGenvar(types []string) bool { return hasTag(types, "Genvar") }

// IsParameter reports whether a term tagged with types is a parameter.
func IsParameter(types []string) bool { return hasTag(types, "Parameter") }

// IsLocalparam reports whether a term tagged with types is a localparam.
func IsLocalparam(types []string) bool { return hasTag(types, "Localparam") }

// IsRename reports whether a term tagged with types is a rename introduced by the dataflow front-end.
func IsRename(types []string) bool { return hasTag(types, "Rename") }

// IsFunction reports whether a term tagged with types is a function.
func IsFunction(types []string) bool { return hasTag(types, "Function") }

// IsConstantType reports whether a term is a parameter, localparam or genvar.
func IsConstantType(types []string) bool {
	return hasTag(types, "Parameter", "Localparam", "Genvar")
}

var resetNames = []string{"reset", "rst"}

var clockNames = []string{"clk", "clock"}

// IsReset reports whether name looks like a reset signal.
func IsReset(name string) bool {
	return containsAny(name, resetNames)
}

// IsClock reports whether name looks like a clock signal.
func IsClock(name string) bool {
	return containsAny(name, clockNames)
}

func containsAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
