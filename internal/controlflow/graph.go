package controlflow

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WriteDOT writes the machine as a Graphviz digraph. With nolabel set the
// edges carry no guard text.
func (f *FSM) WriteDOT(w io.Writer, nolabel bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", f.Name)
	b.WriteString("label = \"" + dotEscape(f.Name) + "\";\n")
	b.WriteString("labelloc = \"t\";\n")
	b.WriteString("node [fontname = \"Monospace\"];\n")
	b.WriteString("\n")
	// Node IDs cannot start with a digit.
	for _, s := range f.States() {
		fmt.Fprintf(&b, "s%d [label=\"%d\"];\n", s, s)
	}
	b.WriteString("\n")
	for _, t := range f.AllTransitions() {
		if nolabel || t.Guard == nil {
			fmt.Fprintf(&b, "s%d -> s%d;\n", t.Src, t.Dst)
			continue
		}
		fmt.Fprintf(&b, "s%d -> s%d [label=\"%s\"];\n", t.Src, t.Dst, dotEscape(guardText(t.Guard)))
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func dotEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// ToGraph writes the machine to filename. A .dot file is written directly;
// any other extension is rendered by the Graphviz dot program.
func (f *FSM) ToGraph(filename string, nolabel bool) error {
	var buf bytes.Buffer
	if err := f.WriteDOT(&buf, nolabel); err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating graph directory: %w", err)
		}
	}
	format := strings.TrimPrefix(filepath.Ext(filename), ".")
	if format == "" || format == "dot" || format == "gv" {
		return os.WriteFile(filename, buf.Bytes(), 0644)
	}
	cmd := exec.Command("dot", "-T"+format, "-o", filename)
	cmd.Stdin = &buf
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running dot for %s: %w: %s", filename, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
