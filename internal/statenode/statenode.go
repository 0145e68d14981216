// Package statenode implements predicates over the value of one signal as
// unions of inclusive integer intervals, with an optional residual guard that
// cannot be expressed as a range.
package statenode

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
)

// Range is the inclusive interval [Lo, Hi].
type Range struct {
	Lo int64
	Hi int64
}

func (r Range) String() string {
	return "(" + strconv.FormatInt(r.Lo, 10) + ", " + strconv.FormatInt(r.Hi, 10) + ")"
}

// Span returns the number of values in r, saturating at math.MaxInt64.
func (r Range) Span() int64 {
	if r.Hi < r.Lo {
		return 0
	}
	d := r.Hi - r.Lo
	if d < 0 || d == math.MaxInt64 {
		return math.MaxInt64
	}
	return d + 1
}

// Node is a predicate over one signal. Unless IsAny is set it holds for the
// values in Ranges; Transcond, when non-nil, must hold as well.
type Node struct {
	Ranges    []Range
	Min       int64
	Max       int64
	Transcond dataflow.Node
	IsAny     bool
}

// List is a disjunction of nodes. A nil or empty list is false.
type List []*Node

// MaxValue returns the largest unsigned value of a width-bit signal.
func MaxValue(width int) int64 {
	if width <= 0 || width >= 63 {
		return math.MaxInt64
	}
	return int64(1)<<uint(width) - 1
}

// NewRange returns the node holding for [lo, hi] within the universe
// [min, max]. It returns nil when the clipped interval is empty.
func NewRange(lo, hi, min, max int64) *Node {
	n := &Node{Ranges: []Range{{Lo: lo, Hi: hi}}, Min: min, Max: max}
	n.Ranges = Normalize(n.Ranges, min, max)
	if len(n.Ranges) == 0 {
		return nil
	}
	return n
}

// NewAny returns the node holding for every value of a signal whose largest
// value is max, subject to transcond.
func NewAny(max int64, transcond dataflow.Node) *Node {
	return &Node{Max: max, Transcond: transcond, IsAny: true}
}

// Single wraps n in a list; a nil node yields the false list.
func Single(n *Node) List {
	if n == nil {
		return nil
	}
	return List{n}
}

// Normalize clips ranges to [min, max], sorts them by lower bound and merges
// overlapping and adjacent intervals.
func Normalize(ranges []Range, min, max int64) []Range {
	clipped := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Lo < min {
			r.Lo = min
		}
		if r.Hi > max {
			r.Hi = max
		}
		if r.Lo <= r.Hi {
			clipped = append(clipped, r)
		}
	}
	sort.Slice(clipped, func(i, j int) bool {
		if clipped[i].Lo != clipped[j].Lo {
			return clipped[i].Lo < clipped[j].Lo
		}
		return clipped[i].Hi < clipped[j].Hi
	})
	var out []Range
	for _, r := range clipped {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Hi == math.MaxInt64 || r.Lo <= last.Hi+1 {
				if r.Hi > last.Hi {
					last.Hi = r.Hi
				}
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Invert returns the gaps of ranges within [min, max].
func Invert(ranges []Range, min, max int64) []Range {
	var out []Range
	next := min
	done := false
	for _, r := range Normalize(ranges, min, max) {
		if r.Lo > next {
			out = append(out, Range{Lo: next, Hi: r.Lo - 1})
		}
		if r.Hi == math.MaxInt64 {
			done = true
			break
		}
		next = r.Hi + 1
	}
	if !done && next <= max {
		out = append(out, Range{Lo: next, Hi: max})
	}
	return out
}

// Intersect returns the intersection of two sorted, disjoint range lists.
func Intersect(a, b []Range) []Range {
	var out []Range
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := a[i].Lo
		if b[j].Lo > lo {
			lo = b[j].Lo
		}
		hi := a[i].Hi
		if b[j].Hi < hi {
			hi = b[j].Hi
		}
		if lo <= hi {
			if len(out) == 0 || out[len(out)-1] != (Range{Lo: lo, Hi: hi}) {
				out = append(out, Range{Lo: lo, Hi: hi})
			}
		}
		if a[i].Hi < b[j].Hi {
			i++
		} else {
			j++
		}
	}
	return out
}

// NotNode negates a single node.
func NotNode(n *Node) List {
	if n == nil {
		return List{NewAny(0, nil)}
	}
	if n.IsAny {
		if n.Transcond == nil {
			return nil
		}
		return List{&Node{Min: n.Min, Max: n.Max, Transcond: NegateCond(n.Transcond), IsAny: true}}
	}
	var out List
	if gaps := Invert(n.Ranges, n.Min, n.Max); len(gaps) > 0 {
		out = append(out, &Node{Ranges: gaps, Min: n.Min, Max: n.Max})
	}
	if n.Transcond != nil {
		out = Or(out, List{&Node{
			Ranges:    append([]Range(nil), n.Ranges...),
			Min:       n.Min,
			Max:       n.Max,
			Transcond: NegateCond(n.Transcond),
		}})
	}
	return out
}

// Not negates a disjunction over a signal whose largest value is max: the
// result is the AND of the negated members. The negation of the false list
// is the unconstrained node over [0, max].
func Not(l List, max int64) List {
	if len(l) == 0 {
		return List{NewAny(max, nil)}
	}
	out := NotNode(l[0])
	for _, n := range l[1:] {
		out = And(out, NotNode(n))
	}
	return out
}

// AndNode returns the conjunction of two nodes, or nil when no value
// satisfies both. An empty intersection drops the transconds with it.
func AndNode(a, b *Node) *Node {
	if a == nil || b == nil {
		return nil
	}
	out := &Node{
		Min:       a.Min,
		Max:       a.Max,
		Transcond: dataflow.And(a.Transcond, b.Transcond),
	}
	if b.Min < out.Min {
		out.Min = b.Min
	}
	if b.Max > out.Max {
		out.Max = b.Max
	}
	switch {
	case a.IsAny && b.IsAny:
		out.IsAny = true
	case a.IsAny:
		out.Ranges = append([]Range(nil), b.Ranges...)
	case b.IsAny:
		out.Ranges = append([]Range(nil), a.Ranges...)
	default:
		out.Ranges = Intersect(a.Ranges, b.Ranges)
	}
	if !out.IsAny && len(out.Ranges) == 0 {
		return nil
	}
	return out
}

// And distributes the conjunction over both disjunctions.
func And(a, b List) List {
	var out List
	for _, x := range a {
		for _, y := range b {
			if n := AndNode(x, y); n != nil {
				out = appendDistinct(out, n)
			}
		}
	}
	return out
}

// Or returns the disjunction of a and b without duplicates.
func Or(a, b List) List {
	var out List
	for _, n := range a {
		out = appendDistinct(out, n)
	}
	for _, n := range b {
		out = appendDistinct(out, n)
	}
	return out
}

func appendDistinct(l List, n *Node) List {
	if n == nil {
		return l
	}
	for _, m := range l {
		if Equal(m, n) {
			return l
		}
	}
	return append(l, n)
}

// NegateCond returns the logical negation of a guard, cancelling a leading Ulnot.
func NegateCond(c dataflow.Node) dataflow.Node {
	if op, ok := c.(*dataflow.Operator); ok && op.Op == "Ulnot" && len(op.Children) == 1 {
		return op.Children[0]
	}
	return dataflow.Not(c)
}

// Equal compares two nodes by ranges, universe bounds and guard. A range
// covering the whole universe equals the any node of that universe.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Min != b.Min || a.Max != b.Max {
		return false
	}
	if a.coversUniverse() || b.coversUniverse() {
		return a.coversUniverse() && b.coversUniverse() &&
			dataflow.Key(a.Transcond) == dataflow.Key(b.Transcond)
	}
	if a.IsAny != b.IsAny || len(a.Ranges) != len(b.Ranges) {
		return false
	}
	for i := range a.Ranges {
		if a.Ranges[i] != b.Ranges[i] {
			return false
		}
	}
	return dataflow.Key(a.Transcond) == dataflow.Key(b.Transcond)
}

func (n *Node) coversUniverse() bool {
	if n.IsAny {
		return true
	}
	return len(n.Ranges) == 1 && n.Ranges[0].Lo <= n.Min && n.Ranges[0].Hi >= n.Max
}

func (n *Node) String() string {
	if n == nil {
		return "false"
	}
	var b strings.Builder
	if n.IsAny {
		b.WriteString("any")
	} else {
		b.WriteByte('[')
		for i, r := range n.Ranges {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(']')
	}
	if n.Transcond != nil {
		b.WriteString(" if ")
		b.WriteString(dataflow.ToCode(n.Transcond))
	}
	return b.String()
}

func (l List) String() string {
	if len(l) == 0 {
		return "false"
	}
	parts := make([]string, len(l))
	for i, n := range l {
		parts[i] = n.String()
	}
	return strings.Join(parts, " | ")
}
