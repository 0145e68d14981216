package dataflow

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Dump is the on-disk form of a Design.
type Dump struct {
	Top           string      `json:"top"`
	Terms         []TermDump  `json:"terms"`
	Binds         []BindDump  `json:"binds"`
	ResolvedTerms []TermDump  `json:"resolved_terms,omitempty"`
	ResolvedBinds []BindDump  `json:"resolved_binds,omitempty"`
	Constants     []ConstDump `json:"constants,omitempty"`
}

type TermDump struct {
	Name   string    `json:"name"`
	Types  []string  `json:"types"`
	MSB    *NodeDump `json:"msb,omitempty"`
	LSB    *NodeDump `json:"lsb,omitempty"`
	LenMSB *NodeDump `json:"len_msb,omitempty"`
	LenLSB *NodeDump `json:"len_lsb,omitempty"`
}

type BindDump struct {
	Dest      string    `json:"dest"`
	Tree      *NodeDump `json:"tree"`
	MSB       *NodeDump `json:"msb,omitempty"`
	LSB       *NodeDump `json:"lsb,omitempty"`
	Ptr       *NodeDump `json:"ptr,omitempty"`
	ClockName string    `json:"clock_name,omitempty"`
	ClockEdge string    `json:"clock_edge,omitempty"`
	ResetName string    `json:"reset_name,omitempty"`
	ResetEdge string    `json:"reset_edge,omitempty"`
}

type ConstDump struct {
	Name   string `json:"name"`
	Value  int64  `json:"value"`
	Width  int    `json:"width,omitempty"`
	Signed bool   `json:"signed,omitempty"`
}

// NodeDump encodes one Node. Kind selects which fields are meaningful.
type NodeDump struct {
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Width    int             `json:"width,omitempty"`
	Signed   bool            `json:"signed,omitempty"`
	Name     string          `json:"name,omitempty"`
	Op       string          `json:"op,omitempty"`
	Children []*NodeDump     `json:"children,omitempty"`
	Cond     *NodeDump       `json:"cond,omitempty"`
	True     *NodeDump       `json:"true,omitempty"`
	False    *NodeDump       `json:"false,omitempty"`
	Var      *NodeDump       `json:"var,omitempty"`
	MSB      *NodeDump       `json:"msb,omitempty"`
	LSB      *NodeDump       `json:"lsb,omitempty"`
	Ptr      *NodeDump       `json:"ptr,omitempty"`
}

// ReadDump reads a dump file and returns it as JSON. YAML files (.yaml, .yml)
// are converted.
func ReadDump(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dump %s", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing yaml dump %s", path)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "converting yaml dump %s", path)
	}
	return out, nil
}

// Load reads and decodes a dump file.
func Load(path string) (*Design, error) {
	data, err := ReadDump(path)
	if err != nil {
		return nil, err
	}
	d, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return d, nil
}

// Decode builds a Design from its JSON dump.
func Decode(data []byte) (*Design, error) {
	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, errors.Wrap(err, "parsing dump")
	}
	return dump.Design()
}

// Design converts the dump into its in-memory form.
func (dump *Dump) Design() (*Design, error) {
	d := NewDesign(dump.Top)
	d.ResolvedTerms = make(map[string]*Term)
	d.ResolvedBinds = make(map[string][]*Bind)

	for i, td := range dump.Terms {
		t, err := td.term()
		if err != nil {
			return nil, errors.Wrapf(err, "terms[%d]", i)
		}
		d.Terms[t.Name] = t
	}
	for i, bd := range dump.Binds {
		b, err := bd.bind()
		if err != nil {
			return nil, errors.Wrapf(err, "binds[%d]", i)
		}
		d.Binds[b.Dest] = append(d.Binds[b.Dest], b)
	}
	for i, td := range dump.ResolvedTerms {
		t, err := td.term()
		if err != nil {
			return nil, errors.Wrapf(err, "resolved_terms[%d]", i)
		}
		d.ResolvedTerms[t.Name] = t
	}
	for i, bd := range dump.ResolvedBinds {
		b, err := bd.bind()
		if err != nil {
			return nil, errors.Wrapf(err, "resolved_binds[%d]", i)
		}
		d.ResolvedBinds[b.Dest] = append(d.ResolvedBinds[b.Dest], b)
	}
	if len(dump.ResolvedTerms) == 0 {
		for name, t := range d.Terms {
			d.ResolvedTerms[name] = t
		}
	}
	if len(dump.ResolvedBinds) == 0 {
		for name, bs := range d.Binds {
			d.ResolvedBinds[name] = bs
		}
	}
	for _, c := range dump.Constants {
		d.Constants[c.Name] = &EvalValue{Value: c.Value, Width: c.Width, Signed: c.Signed}
	}
	return d, nil
}

func (td TermDump) term() (*Term, error) {
	if td.Name == "" {
		return nil, Errorf("term", "missing name")
	}
	t := &Term{Name: td.Name, Types: td.Types}
	var err error
	if t.MSB, err = td.MSB.Node(); err != nil {
		return nil, errors.Wrap(err, "msb")
	}
	if t.LSB, err = td.LSB.Node(); err != nil {
		return nil, errors.Wrap(err, "lsb")
	}
	if t.LenMSB, err = td.LenMSB.Node(); err != nil {
		return nil, errors.Wrap(err, "len_msb")
	}
	if t.LenLSB, err = td.LenLSB.Node(); err != nil {
		return nil, errors.Wrap(err, "len_lsb")
	}
	return t, nil
}

func (bd BindDump) bind() (*Bind, error) {
	if bd.Dest == "" {
		return nil, Errorf("bind", "missing dest")
	}
	b := &Bind{
		Dest:      bd.Dest,
		ClockName: bd.ClockName,
		ClockEdge: bd.ClockEdge,
		ResetName: bd.ResetName,
		ResetEdge: bd.ResetEdge,
	}
	var err error
	if b.Tree, err = bd.Tree.Node(); err != nil {
		return nil, errors.Wrapf(err, "tree of %s", bd.Dest)
	}
	if b.MSB, err = bd.MSB.Node(); err != nil {
		return nil, errors.Wrap(err, "msb")
	}
	if b.LSB, err = bd.LSB.Node(); err != nil {
		return nil, errors.Wrap(err, "lsb")
	}
	if b.Ptr, err = bd.Ptr.Node(); err != nil {
		return nil, errors.Wrap(err, "ptr")
	}
	return b, nil
}

// Node decodes nd. A nil dump decodes to a nil node.
func (nd *NodeDump) Node() (Node, error) {
	if nd == nil {
		return nil, nil
	}
	switch nd.Kind {
	case "intconst":
		var s string
		if err := json.Unmarshal(nd.Value, &s); err != nil {
			var v json.Number
			if err2 := json.Unmarshal(nd.Value, &v); err2 != nil {
				return nil, Errorf("intconst", "bad literal %s", string(nd.Value))
			}
			s = v.String()
		}
		return &IntConst{Value: s}, nil
	case "evalvalue":
		var v int64
		if err := json.Unmarshal(nd.Value, &v); err != nil {
			return nil, Errorf("evalvalue", "bad value %s", string(nd.Value))
		}
		return &EvalValue{Value: v, Width: nd.Width, Signed: nd.Signed}, nil
	case "terminal":
		if nd.Name == "" {
			return nil, Errorf("terminal", "missing name")
		}
		return &Terminal{Name: nd.Name}, nil
	case "operator":
		if nd.Op == "" {
			return nil, Errorf("operator", "missing op")
		}
		kids, err := decodeAll(nd.Children)
		if err != nil {
			return nil, errors.Wrap(err, nd.Op)
		}
		return &Operator{Op: nd.Op, Children: kids}, nil
	case "branch":
		c, err := nd.Cond.Node()
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}
		t, err := nd.True.Node()
		if err != nil {
			return nil, errors.Wrap(err, "true")
		}
		f, err := nd.False.Node()
		if err != nil {
			return nil, errors.Wrap(err, "false")
		}
		if c == nil {
			return nil, Errorf("branch", "missing cond")
		}
		return &Branch{Cond: c, True: t, False: f}, nil
	case "partselect":
		v, err := nd.Var.Node()
		if err != nil {
			return nil, err
		}
		m, err := nd.MSB.Node()
		if err != nil {
			return nil, err
		}
		l, err := nd.LSB.Node()
		if err != nil {
			return nil, err
		}
		return &Partselect{Var: v, MSB: m, LSB: l}, nil
	case "pointer":
		v, err := nd.Var.Node()
		if err != nil {
			return nil, err
		}
		p, err := nd.Ptr.Node()
		if err != nil {
			return nil, err
		}
		return &Pointer{Var: v, Ptr: p}, nil
	case "concat":
		kids, err := decodeAll(nd.Children)
		if err != nil {
			return nil, errors.Wrap(err, "concat")
		}
		return &Concat{Children: kids}, nil
	case "undefined":
		return &Undefined{}, nil
	}
	return nil, Errorf("node", "unknown kind %q", nd.Kind)
}

func decodeAll(nds []*NodeDump) ([]Node, error) {
	out := make([]Node, 0, len(nds))
	for i, nd := range nds {
		n, err := nd.Node()
		if err != nil {
			return nil, errors.Wrapf(err, "children[%d]", i)
		}
		out = append(out, n)
	}
	return out, nil
}

// DumpNode encodes n.
func DumpNode(n Node) *NodeDump {
	switch n := n.(type) {
	case *IntConst:
		raw, _ := json.Marshal(n.Value)
		return &NodeDump{Kind: "intconst", Value: raw}
	case *EvalValue:
		raw, _ := json.Marshal(n.Value)
		return &NodeDump{Kind: "evalvalue", Value: raw, Width: n.Width, Signed: n.Signed}
	case *Terminal:
		return &NodeDump{Kind: "terminal", Name: n.Name}
	case *Operator:
		return &NodeDump{Kind: "operator", Op: n.Op, Children: dumpAll(n.Children)}
	case *Branch:
		return &NodeDump{Kind: "branch", Cond: DumpNode(n.Cond), True: DumpNode(n.True), False: DumpNode(n.False)}
	case *Partselect:
		return &NodeDump{Kind: "partselect", Var: DumpNode(n.Var), MSB: DumpNode(n.MSB), LSB: DumpNode(n.LSB)}
	case *Pointer:
		return &NodeDump{Kind: "pointer", Var: DumpNode(n.Var), Ptr: DumpNode(n.Ptr)}
	case *Concat:
		return &NodeDump{Kind: "concat", Children: dumpAll(n.Children)}
	case *Undefined:
		return &NodeDump{Kind: "undefined"}
	}
	return nil
}

func dumpAll(ns []Node) []*NodeDump {
	out := make([]*NodeDump, 0, len(ns))
	for _, n := range ns {
		out = append(out, DumpNode(n))
	}
	return out
}

// Dump converts d back into its on-disk form with entries sorted by name.
func (d *Design) Dump() *Dump {
	dump := &Dump{Top: d.TopModule}
	dump.Terms = dumpTerms(d.Terms)
	dump.Binds = dumpBinds(d.Binds)
	dump.ResolvedTerms = dumpTerms(d.ResolvedTerms)
	dump.ResolvedBinds = dumpBinds(d.ResolvedBinds)
	for _, name := range sortedKeys(d.Constants) {
		c := d.Constants[name]
		dump.Constants = append(dump.Constants, ConstDump{Name: name, Value: c.Value, Width: c.Width, Signed: c.Signed})
	}
	return dump
}

func dumpTerms(terms map[string]*Term) []TermDump {
	out := []TermDump{}
	for _, name := range sortedKeys(terms) {
		t := terms[name]
		out = append(out, TermDump{
			Name:   t.Name,
			Types:  t.Types,
			MSB:    DumpNode(t.MSB),
			LSB:    DumpNode(t.LSB),
			LenMSB: DumpNode(t.LenMSB),
			LenLSB: DumpNode(t.LenLSB),
		})
	}
	return out
}

func dumpBinds(binds map[string][]*Bind) []BindDump {
	out := []BindDump{}
	for _, name := range sortedKeys(binds) {
		for _, b := range binds[name] {
			out = append(out, BindDump{
				Dest:      b.Dest,
				Tree:      DumpNode(b.Tree),
				MSB:       DumpNode(b.MSB),
				LSB:       DumpNode(b.LSB),
				Ptr:       DumpNode(b.Ptr),
				ClockName: b.ClockName,
				ClockEdge: b.ClockEdge,
				ResetName: b.ResetName,
				ResetEdge: b.ResetEdge,
			})
		}
	}
	return out
}

// Write encodes d as indented JSON.
func (d *Design) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(d.Dump()), "encoding dump")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
