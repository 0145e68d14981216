// Package active represents the conditions under which a signal is assigned
// as a disjunction of conjunctions of per-signal value ranges.
package active

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-at-pretension-io/vlog-flow/internal/statenode"
)

// Term restricts one signal to a union of ranges within [Min, Max].
type Term struct {
	Name   string
	Ranges []statenode.Range
	Min    int64
	Max    int64
}

func (t *Term) String() string {
	parts := make([]string, len(t.Ranges))
	for i, r := range t.Ranges {
		parts[i] = r.String()
	}
	return t.Name + ":[" + strings.Join(parts, ", ") + "]"
}

// Condition is the conjunction of its terms, at most one per signal, sorted
// by name. An empty Condition holds unconditionally.
type Condition []*Term

// ConditionList is the disjunction of its conditions. A nil list is false.
type ConditionList []Condition

// True returns the unconstrained list.
func True() ConditionList {
	return ConditionList{Condition{}}
}

// IsTrue reports whether l contains an unconstrained condition.
func (l ConditionList) IsTrue() bool {
	for _, c := range l {
		if len(c) == 0 {
			return true
		}
	}
	return false
}

// Lookup returns the term for name.
func (c Condition) Lookup(name string) (*Term, bool) {
	i := sort.Search(len(c), func(i int) bool { return c[i].Name >= name })
	if i < len(c) && c[i].Name == name {
		return c[i], true
	}
	return nil, false
}

func (c Condition) String() string {
	if len(c) == 0 {
		return "any"
	}
	parts := make([]string, len(c))
	for i, t := range c {
		parts[i] = t.String()
	}
	return strings.Join(parts, " && ")
}

// Hash returns the xxhash of the condition's canonical text.
func (c Condition) Hash() uint64 {
	return xxhash.Sum64String(c.String())
}

func (l ConditionList) String() string {
	if len(l) == 0 {
		return "false"
	}
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = "(" + c.String() + ")"
	}
	return strings.Join(parts, " || ")
}

// NewTerm returns the single-term list restricting name to ranges, or the
// false list when no value remains.
func NewTerm(name string, ranges []statenode.Range, max int64) ConditionList {
	ranges = statenode.Normalize(ranges, 0, max)
	if len(ranges) == 0 {
		return nil
	}
	return ConditionList{Condition{{Name: name, Ranges: ranges, Max: max}}}
}

// andCondition merges two conjunctions; terms over the same signal intersect.
// ok is false when some signal is left without values.
func andCondition(a, b Condition) (Condition, bool) {
	out := make(Condition, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].Name < b[j].Name):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j].Name < a[i].Name:
			out = append(out, b[j])
			j++
		default:
			ranges := statenode.Intersect(a[i].Ranges, b[j].Ranges)
			if len(ranges) == 0 {
				return nil, false
			}
			max := a[i].Max
			if b[j].Max > max {
				max = b[j].Max
			}
			out = append(out, &Term{Name: a[i].Name, Ranges: ranges, Min: a[i].Min, Max: max})
			i++
			j++
		}
	}
	return out, true
}

// dedup keeps the first occurrence of every distinct condition.
func dedup(l ConditionList) ConditionList {
	if len(l) == 0 {
		return nil
	}
	seen := make(map[uint64]bool, len(l))
	out := make(ConditionList, 0, len(l))
	for _, c := range l {
		h := c.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, c)
	}
	return out
}

// And distributes the conjunction over both lists.
func And(a, b ConditionList) ConditionList {
	var out ConditionList
	for _, x := range a {
		for _, y := range b {
			if c, ok := andCondition(x, y); ok {
				out = append(out, c)
			}
		}
	}
	return dedup(out)
}

// Or joins two lists. Any unconstrained member makes the whole list unconstrained.
func Or(a, b ConditionList) ConditionList {
	if a.IsTrue() || b.IsTrue() {
		return True()
	}
	out := make(ConditionList, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return dedup(out)
}

// Not negates a list: every condition is negated into a disjunction of
// inverted terms and the results are conjoined.
func Not(l ConditionList) ConditionList {
	if len(l) == 0 {
		return True()
	}
	out := True()
	for _, c := range l {
		out = And(out, notCondition(c))
		if len(out) == 0 {
			return nil
		}
	}
	return out
}

func notCondition(c Condition) ConditionList {
	if len(c) == 0 {
		return nil
	}
	var out ConditionList
	for _, t := range c {
		gaps := statenode.Invert(t.Ranges, t.Min, t.Max)
		if len(gaps) == 0 {
			continue
		}
		out = append(out, Condition{{Name: t.Name, Ranges: gaps, Min: t.Min, Max: t.Max}})
	}
	return dedup(out)
}
