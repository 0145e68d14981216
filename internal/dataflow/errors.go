package dataflow

import "fmt"

// FormatError reports input that does not satisfy the analyzer's contract:
// an operator that cannot be reasoned about, a reset branch that does not
// assign a zero constant, or a combinational loop between signals.
type FormatError struct {
	Op  string
	Msg string
}

func (e *FormatError) Error() string {
	if e.Op == "" {
		return "format error: " + e.Msg
	}
	return fmt.Sprintf("format error in %s: %s", e.Op, e.Msg)
}

// Errorf builds a FormatError for operation op.
func Errorf(op, format string, args ...interface{}) *FormatError {
	return &FormatError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
