package statenode

import (
	"reflect"
	"testing"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
)

func TestNotInvertsRanges(t *testing.T) {
	n := &Node{Ranges: []Range{{2, 4}, {7, 9}}, Min: 0, Max: 15}

	got := NotNode(n)

	if len(got) != 1 {
		t.Fatalf("expected one node, got %v", got)
	}
	want := []Range{{0, 1}, {5, 6}, {10, 15}}
	if !reflect.DeepEqual(got[0].Ranges, want) {
		t.Fatalf("expected %v, got %v", want, got[0].Ranges)
	}
}

func TestNotNotIsIdentity(t *testing.T) {
	cases := [][]Range{
		{{2, 4}, {7, 9}},
		{{0, 0}},
		{{15, 15}},
		{{0, 3}, {5, 5}, {12, 14}},
		{{0, 15}},
	}
	for _, ranges := range cases {
		n := &Node{Ranges: ranges, Min: 0, Max: 15}
		back := Not(Not(List{n}, 15), 15)
		if len(back) != 1 || !Equal(back[0], n) {
			t.Fatalf("NOT(NOT(%v)) = %v", n, back)
		}
	}

	full := Not(Not(List{NewAny(15, nil)}, 15), 15)
	if len(full) != 1 || !full[0].IsAny || full[0].Max != 15 {
		t.Fatalf("NOT(NOT(any)) = %v", full)
	}
}

func TestNotOfFalseKeepsUniverse(t *testing.T) {
	got := Not(nil, 7)
	if len(got) != 1 || !got[0].IsAny || got[0].Max != 7 || got[0].Transcond != nil {
		t.Fatalf("expected any over [0, 7], got %v", got)
	}
}

func TestFullRangeEqualsAny(t *testing.T) {
	full := &Node{Ranges: []Range{{0, 3}}, Max: 3}
	if !Equal(full, NewAny(3, nil)) || !Equal(NewAny(3, nil), full) {
		t.Fatalf("a range covering the universe should equal any")
	}
	if Equal(full, NewAny(7, nil)) {
		t.Fatalf("different universes must differ")
	}
	if Equal(&Node{Ranges: []Range{{0, 2}}, Max: 3}, NewAny(3, nil)) {
		t.Fatalf("a partial range must not equal any")
	}
	if Equal(full, NewAny(3, dataflow.Ref("go"))) {
		t.Fatalf("guards must still be compared")
	}
}

func TestAndIntersectsRanges(t *testing.T) {
	a := &Node{Ranges: []Range{{0, 5}, {10, 15}}, Min: 0, Max: 15}
	b := &Node{Ranges: []Range{{3, 12}}, Min: 0, Max: 15}

	got := And(List{a}, List{b})

	if len(got) != 1 {
		t.Fatalf("expected one node, got %v", got)
	}
	want := []Range{{3, 5}, {10, 12}}
	if !reflect.DeepEqual(got[0].Ranges, want) {
		t.Fatalf("expected %v, got %v", want, got[0].Ranges)
	}
}

func TestAndMatchesSetIntersection(t *testing.T) {
	a := []Range{{1, 3}, {6, 6}, {9, 13}}
	b := []Range{{0, 1}, {3, 9}, {12, 15}}

	got := Intersect(a, b)

	members := func(rs []Range) map[int64]bool {
		m := make(map[int64]bool)
		for _, r := range rs {
			for v := r.Lo; v <= r.Hi; v++ {
				m[v] = true
			}
		}
		return m
	}
	ma, mb, mg := members(a), members(b), members(got)
	for v := int64(0); v <= 15; v++ {
		if mg[v] != (ma[v] && mb[v]) {
			t.Fatalf("value %d: got %v, want %v", v, mg[v], ma[v] && mb[v])
		}
	}
}

func TestEmptyIntersectionDropsTranscond(t *testing.T) {
	a := &Node{Ranges: []Range{{0, 1}}, Max: 3, Transcond: dataflow.Ref("a")}
	b := &Node{Ranges: []Range{{2, 3}}, Max: 3, Transcond: dataflow.Ref("b")}

	if n := AndNode(a, b); n != nil {
		t.Fatalf("expected nil, got %v", n)
	}
	if l := And(List{a}, List{b}); l != nil {
		t.Fatalf("expected false list, got %v", l)
	}
}

func TestAndWithAnyKeepsRangesAndJoinsTranscond(t *testing.T) {
	r := &Node{Ranges: []Range{{0, 0}}, Max: 3}
	any := NewAny(3, dataflow.Ref("go"))

	n := AndNode(r, any)

	if n == nil || n.IsAny {
		t.Fatalf("expected a range node, got %v", n)
	}
	if !reflect.DeepEqual(n.Ranges, []Range{{0, 0}}) {
		t.Fatalf("unexpected ranges %v", n.Ranges)
	}
	if got := dataflow.ToCode(n.Transcond); got != "go" {
		t.Fatalf("unexpected transcond %s", got)
	}

	both := AndNode(NewAny(3, nil), NewAny(3, nil))
	if both == nil || !both.IsAny || both.Transcond != nil {
		t.Fatalf("any AND any should be any, got %v", both)
	}
}

func TestNotAnyNegatesTranscond(t *testing.T) {
	cond := dataflow.Op("GreaterThan", dataflow.Ref("go"), dataflow.Int(0))
	got := NotNode(NewAny(3, cond))
	if len(got) != 1 || !got[0].IsAny {
		t.Fatalf("expected one any node, got %v", got)
	}
	if s := dataflow.ToCode(got[0].Transcond); s != "(!(go>32'd0))" {
		t.Fatalf("unexpected transcond %s", s)
	}
	if again := NotNode(got[0]); !Equal(again[0], NewAny(3, cond)) {
		t.Fatalf("double negation changed the guard: %v", again)
	}
	if l := NotNode(NewAny(3, nil)); l != nil {
		t.Fatalf("NOT(any) should be false, got %v", l)
	}
}

func TestNotWithTranscondSplits(t *testing.T) {
	n := &Node{Ranges: []Range{{1, 1}}, Max: 3, Transcond: dataflow.Ref("go")}

	got := NotNode(n)

	if len(got) != 2 {
		t.Fatalf("expected two nodes, got %v", got)
	}
	if got[0].Transcond != nil || !reflect.DeepEqual(got[0].Ranges, []Range{{0, 0}, {2, 3}}) {
		t.Fatalf("unexpected first node %v", got[0])
	}
	if !reflect.DeepEqual(got[1].Ranges, []Range{{1, 1}}) || dataflow.ToCode(got[1].Transcond) != "(!go)" {
		t.Fatalf("unexpected second node %v", got[1])
	}
}

func TestOrDeduplicates(t *testing.T) {
	a := NewRange(1, 2, 0, 3)
	b := NewRange(1, 2, 0, 3)
	c := NewRange(3, 3, 0, 3)

	got := Or(List{a, c}, List{b})

	if len(got) != 2 {
		t.Fatalf("expected two nodes, got %v", got)
	}
	if got := Or(nil, List{c}); len(got) != 1 {
		t.Fatalf("OR with false should keep the other side, got %v", got)
	}
}

func TestNormalizeMergesAdjacent(t *testing.T) {
	got := Normalize([]Range{{5, 6}, {0, 2}, {3, 4}, {9, 20}}, 0, 15)
	want := []Range{{0, 6}, {9, 15}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMaxValue(t *testing.T) {
	if MaxValue(2) != 3 || MaxValue(8) != 255 {
		t.Fatalf("unexpected max values %d %d", MaxValue(2), MaxValue(8))
	}
	if NewRange(5, 9, 0, 3) != nil {
		t.Fatalf("range outside the universe should be nil")
	}
}
