package splitter

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
)

// Entry is one path through a decision tree: the conjunction of guards taken
// to reach Leaf.
type Entry struct {
	Conds []dataflow.Node
	Leaf  dataflow.Node
}

// Key returns the textual key of the entry's condition list.
func (e Entry) Key() string {
	return CondKey(e.Conds)
}

// Funcdict maps condition lists to the expression assigned under them. It
// keeps insertion order; setting an existing key replaces its leaf in place.
type Funcdict struct {
	entries []Entry
	index   map[string]int
}

// NewFuncdict returns an empty Funcdict.
func NewFuncdict() *Funcdict {
	return &Funcdict{index: make(map[string]int)}
}

// CondKey joins the textual forms of a condition list.
func CondKey(conds []dataflow.Node) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = dataflow.Key(c)
	}
	return strings.Join(parts, "\x00")
}

// Set records leaf under conds.
func (fd *Funcdict) Set(conds []dataflow.Node, leaf dataflow.Node) {
	key := CondKey(conds)
	if i, ok := fd.index[key]; ok {
		fd.entries[i].Leaf = leaf
		return
	}
	fd.index[key] = len(fd.entries)
	fd.entries = append(fd.entries, Entry{Conds: conds, Leaf: leaf})
}

// Get returns the leaf recorded under conds.
func (fd *Funcdict) Get(conds []dataflow.Node) (dataflow.Node, bool) {
	i, ok := fd.index[CondKey(conds)]
	if !ok {
		return nil, false
	}
	return fd.entries[i].Leaf, true
}

// Delete removes the entry recorded under conds.
func (fd *Funcdict) Delete(conds []dataflow.Node) {
	key := CondKey(conds)
	i, ok := fd.index[key]
	if !ok {
		return
	}
	fd.entries = append(fd.entries[:i], fd.entries[i+1:]...)
	delete(fd.index, key)
	for k, j := range fd.index {
		if j > i {
			fd.index[k] = j - 1
		}
	}
}

func (fd *Funcdict) Len() int {
	if fd == nil {
		return 0
	}
	return len(fd.entries)
}

// Entries returns the entries in insertion order.
func (fd *Funcdict) Entries() []Entry {
	if fd == nil {
		return nil
	}
	out := make([]Entry, len(fd.entries))
	copy(out, fd.entries)
	return out
}

// SortedEntries returns the entries ordered by condition count, then by key.
func (fd *Funcdict) SortedEntries() []Entry {
	out := fd.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Conds) != len(out[j].Conds) {
			return len(out[i].Conds) < len(out[j].Conds)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// IsUnconditional reports whether the dict holds exactly one entry and that
// entry has no guards.
func (fd *Funcdict) IsUnconditional() bool {
	return fd.Len() == 1 && len(fd.entries[0].Conds) == 0
}
