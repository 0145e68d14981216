package signaltype

import "testing"

func TestTypeTags(t *testing.T) {
	types := []string{"Reg", "Output"}
	if !IsReg(types) || !IsOutput(types) || IsInput(types) || IsWire(types) {
		t.Fatalf("unexpected classification of %v", types)
	}
	if !IsConstantType([]string{"Localparam"}) || IsConstantType([]string{"Integer"}) {
		t.Fatalf("unexpected constant classification")
	}
	if IsRename(nil) {
		t.Fatalf("nil tags must not match")
	}
}

func TestResetAndClockNames(t *testing.T) {
	tests := []struct {
		name         string
		reset, clock bool
	}{
		{"RST", true, false},
		{"rst_n", true, false},
		{"nReset", true, false},
		{"CLK", false, true},
		{"sys_clock", false, true},
		{"state", false, false},
	}
	for _, tt := range tests {
		if IsReset(tt.name) != tt.reset || IsClock(tt.name) != tt.clock {
			t.Fatalf("%s: expected reset=%v clock=%v", tt.name, tt.reset, tt.clock)
		}
	}
}

func TestOperatorClasses(t *testing.T) {
	if !IsCompare("LassEq") || IsCompare("Plus") {
		t.Fatalf("unexpected compare classification")
	}
	if !IsNot("Unot") || !IsAnd("Land") || !IsOr("Or") {
		t.Fatalf("unexpected logic classification")
	}
	if !IsNonConditionOp("Plus") || IsNonConditionOp("Eq") || IsNonConditionOp("Ulnot") {
		t.Fatalf("unexpected non-condition classification")
	}
	if NormalizeOp("LassEq") != "LessEq" || NormalizeOp("Eq") != "Eq" {
		t.Fatalf("unexpected normalization")
	}
}

func TestFlipOp(t *testing.T) {
	tests := map[string]string{
		"LessThan":    "GreaterThan",
		"GreaterThan": "LessThan",
		"LessEq":      "GreaterEq",
		"LassEq":      "GreaterEq",
		"GreaterEq":   "LessEq",
		"Eq":          "Eq",
		"NotEql":      "NotEql",
	}
	for op, want := range tests {
		got, ok := FlipOp(op)
		if !ok || got != want {
			t.Fatalf("FlipOp(%s): expected %s, got %s", op, want, got)
		}
	}
	if _, ok := FlipOp("Plus"); ok {
		t.Fatalf("expected Plus to have no flip")
	}
}

func TestLogicalConnectives(t *testing.T) {
	for _, op := range []string{"Land", "Lor"} {
		if !IsLogical(op) {
			t.Fatalf("%s should be logical", op)
		}
	}
	for _, op := range []string{"And", "Or", "Ulnot", "Eq"} {
		if IsLogical(op) {
			t.Fatalf("%s should not be logical", op)
		}
	}
}
