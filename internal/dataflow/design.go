package dataflow

import "sort"

// Term is the declaration metadata of one signal.
type Term struct {
	Name   string
	Types  []string
	MSB    Node
	LSB    Node
	LenMSB Node
	LenLSB Node
}

// HasType reports whether the term carries the given type tag.
func (t *Term) HasType(tag string) bool {
	if t == nil {
		return false
	}
	for _, ty := range t.Types {
		if ty == tag {
			return true
		}
	}
	return false
}

// Bind is one driver of a signal: its next-value tree plus the optional
// slice or pointer it assigns and the always-block that contains it.
type Bind struct {
	Dest      string
	Tree      Node
	MSB       Node
	LSB       Node
	Ptr       Node
	ClockName string
	ClockEdge string
	ResetName string
	ResetEdge string
}

// IsClockEdge reports whether the bind is driven from an edge-triggered block.
func (b *Bind) IsClockEdge() bool {
	if b == nil || b.ClockName == "" {
		return false
	}
	return b.ClockEdge == "posedge" || b.ClockEdge == "negedge"
}

// IsCombination reports whether the bind is a continuous or level-sensitive assignment.
func (b *Bind) IsCombination() bool {
	return !b.IsClockEdge()
}

// Design is the elaborated dataflow of a top module as produced by the parser
// front-end. The resolved tables have parameters and instance ports already
// substituted; when a dump carries no resolved tables the plain ones are used.
type Design struct {
	TopModule     string
	Terms         map[string]*Term
	Binds         map[string][]*Bind
	ResolvedTerms map[string]*Term
	ResolvedBinds map[string][]*Bind
	Constants     map[string]*EvalValue
}

// NewDesign returns an empty design for top.
func NewDesign(top string) *Design {
	return &Design{
		TopModule:     top,
		Terms:         make(map[string]*Term),
		Binds:         make(map[string][]*Bind),
		ResolvedTerms: make(map[string]*Term),
		ResolvedBinds: make(map[string][]*Bind),
		Constants:     make(map[string]*EvalValue),
	}
}

// AddTerm registers a term in both the plain and resolved tables.
func (d *Design) AddTerm(t *Term) {
	d.Terms[t.Name] = t
	d.ResolvedTerms[t.Name] = t
}

// AddBind appends a bind to both the plain and resolved tables.
func (d *Design) AddBind(b *Bind) {
	d.Binds[b.Dest] = append(d.Binds[b.Dest], b)
	d.ResolvedBinds[b.Dest] = append(d.ResolvedBinds[b.Dest], b)
}

// SetConstant records the value of a parameter or localparam.
func (d *Design) SetConstant(name string, v *EvalValue) {
	d.Constants[name] = v
}

// Term returns the resolved term for name, falling back to the plain table.
func (d *Design) Term(name string) *Term {
	if t, ok := d.ResolvedTerms[name]; ok {
		return t
	}
	return d.Terms[name]
}

// BindsOf returns the resolved binds of name, falling back to the plain table.
func (d *Design) BindsOf(name string) []*Bind {
	if bs, ok := d.ResolvedBinds[name]; ok {
		return bs
	}
	return d.Binds[name]
}

// BoundNames returns every signal with at least one bind, sorted.
func (d *Design) BoundNames() []string {
	seen := make(map[string]bool)
	for name := range d.ResolvedBinds {
		seen[name] = true
	}
	for name := range d.Binds {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsClockEdge reports whether any bind of name is edge-triggered.
func (d *Design) IsClockEdge(name string) bool {
	for _, b := range d.BindsOf(name) {
		if b.IsClockEdge() {
			return true
		}
	}
	return false
}
