package dataflow

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestToCode(t *testing.T) {
	state := Ref("top.state")
	tests := []struct {
		node Node
		want string
	}{
		{nil, "None"},
		{&IntConst{Value: "4'b0010"}, "4'b0010"},
		{&EvalValue{Value: 3, Width: 2}, "2'd3"},
		{&EvalValue{Value: -1, Width: 8, Signed: true}, "8'sd-1"},
		{Op("Eq", state, Int(1)), "(top.state==32'd1)"},
		{Not(Ref("top.RST")), "(!top.RST)"},
		{Br(Ref("top.go"), Int(1), nil), "((top.go)? 32'd1 : None)"},
		{&Partselect{Var: Ref("top.bus"), MSB: &IntConst{Value: "7"}, LSB: &IntConst{Value: "0"}}, "top.bus[7:0]"},
		{&Pointer{Var: Ref("top.mem"), Ptr: Ref("top.addr")}, "top.mem[top.addr]"},
		{&Concat{Children: []Node{Ref("top.a"), Ref("top.b")}}, "{top.a, top.b}"},
		{&Undefined{}, "'hx"},
		{Op("LassEq", state, Int(2)), "(top.state<=32'd2)"},
	}
	for _, tt := range tests {
		if got := ToCode(tt.node); got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestLocalCodeStripsHierarchy(t *testing.T) {
	n := Op("Land", Ref("top.first_stage.valid"), Not(Ref("top.u0.rst_n")))
	if got := LocalCode(n); got != "(valid&&(!rst_n))" {
		t.Fatalf("unexpected local code %q", got)
	}
}

func TestEqualAndKey(t *testing.T) {
	a := Br(Op("Eq", Ref("s"), Int(0)), Int(1), Ref("s"))
	b := Br(Op("Eq", Ref("s"), Int(0)), Int(1), Ref("s"))
	c := Br(Op("Eq", Ref("s"), Int(1)), Int(1), Ref("s"))
	if !Equal(a, b) || Key(a) != Key(b) || Hash(a) != Hash(b) {
		t.Fatalf("expected structurally equal nodes to match")
	}
	if Equal(a, c) || Key(a) == Key(c) {
		t.Fatalf("expected different nodes to differ")
	}
	if !Equal(nil, nil) || Equal(a, nil) {
		t.Fatalf("unexpected nil equality")
	}
}

func TestTerminalsInOrder(t *testing.T) {
	n := Br(Op("Eq", Ref("b"), Ref("a")), Ref("c"), Ref("b"))
	want := []string{"b", "a", "c"}
	if got := Terminals(n); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFoldHandlesDeepTrees(t *testing.T) {
	var n Node = Ref("leaf")
	for i := 0; i < 100000; i++ {
		n = Br(Ref("c"), n, nil)
	}
	depth, err := Fold(n, Children, func(n Node, kids []int) (int, error) {
		max := 0
		for _, k := range kids {
			if k > max {
				max = k
			}
		}
		if _, ok := n.(*Branch); ok {
			return max + 1, nil
		}
		return max, nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if depth != 100000 {
		t.Fatalf("expected depth 100000, got %d", depth)
	}
}

func TestRewriteReplacesBottomUp(t *testing.T) {
	n := Op("Plus", Ref("a"), Br(Ref("c"), Ref("a"), nil))
	out, err := Rewrite(n, func(n Node) (Node, error) {
		if t, ok := n.(*Terminal); ok && t.Name == "a" {
			return Ref("b"), nil
		}
		return n, nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got := ToCode(out); got != "(b+((c)? b : None))" {
		t.Fatalf("unexpected rewrite %s", got)
	}
	if got := ToCode(n); got != "(a+((c)? a : None))" {
		t.Fatalf("input was modified: %s", got)
	}
}

const sampleDump = `{
  "top": "top",
  "terms": [
    {"name": "top.state", "types": ["Reg"], "msb": {"kind": "intconst", "value": "1"}, "lsb": {"kind": "intconst", "value": 0}},
    {"name": "top.RST", "types": ["Input"]}
  ],
  "binds": [
    {"dest": "top.state", "clock_name": "top.CLK", "clock_edge": "posedge",
     "tree": {"kind": "branch",
              "cond": {"kind": "terminal", "name": "top.RST"},
              "true": {"kind": "intconst", "value": "2'd0"},
              "false": {"kind": "operator", "op": "Plus", "children": [
                 {"kind": "terminal", "name": "top.state"},
                 {"kind": "evalvalue", "value": 1, "width": 2}]}}}
  ],
  "constants": [{"name": "top.IDLE", "value": 0, "width": 2}]
}`

func TestDecodeDump(t *testing.T) {
	d, err := Decode([]byte(sampleDump))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.TopModule != "top" {
		t.Fatalf("unexpected top %q", d.TopModule)
	}
	term := d.Term("top.state")
	if term == nil || !term.HasType("Reg") || ToCode(term.MSB) != "1" || ToCode(term.LSB) != "0" {
		t.Fatalf("unexpected term %+v", term)
	}
	binds := d.BindsOf("top.state")
	if len(binds) != 1 || !binds[0].IsClockEdge() {
		t.Fatalf("unexpected binds %+v", binds)
	}
	if got := ToCode(binds[0].Tree); got != "((top.RST)? 2'd0 : (top.state+2'd1))" {
		t.Fatalf("unexpected tree %s", got)
	}
	if !d.IsClockEdge("top.state") || d.IsClockEdge("top.RST") {
		t.Fatalf("unexpected clock edge classification")
	}
	if c := d.Constants["top.IDLE"]; c == nil || c.Width != 2 {
		t.Fatalf("unexpected constant %+v", c)
	}
	if names := d.BoundNames(); !reflect.DeepEqual(names, []string{"top.state"}) {
		t.Fatalf("unexpected bound names %v", names)
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	d, err := Decode([]byte(sampleDump))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := filepath.Join(t.TempDir(), "design.json")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ToCode(back.BindsOf("top.state")[0].Tree) != ToCode(d.BindsOf("top.state")[0].Tree) {
		t.Fatalf("tree changed in round trip")
	}
}

func TestLoadYAML(t *testing.T) {
	yamlDump := `top: top
terms:
  - name: top.mode
    types: [Reg]
binds:
  - dest: top.mode
    clock_name: top.CLK
    clock_edge: negedge
    tree:
      kind: operator
      op: Eq
      children:
        - {kind: terminal, name: top.mode}
        - {kind: intconst, value: "4'b0010"}
`
	path := filepath.Join(t.TempDir(), "design.yaml")
	if err := os.WriteFile(path, []byte(yamlDump), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := ToCode(d.BindsOf("top.mode")[0].Tree); got != "(top.mode==4'b0010)" {
		t.Fatalf("unexpected tree %s", got)
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"top": "t", "binds": [{"dest": "t.x", "tree": {"kind": "lambda"}}]}`))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if !strings.Contains(err.Error(), "binds[0]") {
		t.Fatalf("expected the failing bind in the message, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
