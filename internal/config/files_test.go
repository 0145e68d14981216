package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveDesignsWithDoubleStar(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "top.json")
	nested := filepath.Join(root, "rtl", "core", "core.dataflow.yaml")
	skipped := filepath.Join(root, "rtl", "notes.txt")
	cfgFile := filepath.Join(root, "vlog_flow.json")
	for _, f := range []string{top, nested, skipped, cfgFile} {
		writeFile(t, f)
	}

	cfg := DefaultConfig()
	files, err := cfg.ResolveDesigns(root)
	if err != nil {
		t.Fatalf("ResolveDesigns: %v", err)
	}
	if !containsPath(files, top) || !containsPath(files, nested) {
		t.Fatalf("expected %s and %s, got %v", top, nested, files)
	}
	if containsPath(files, skipped) || containsPath(files, cfgFile) {
		t.Fatalf("unexpected files in %v", files)
	}
}

func TestResolveDesignsExclude(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "a.json")
	drop := filepath.Join(root, "b.json")
	writeFile(t, keep)
	writeFile(t, drop)

	cfg := Config{Designs: []string{"*.json"}, Exclude: []string{"b.json"}}
	files, err := cfg.ResolveDesigns(root)
	if err != nil {
		t.Fatalf("ResolveDesigns: %v", err)
	}
	if len(files) != 1 || !containsPath(files, keep) {
		t.Fatalf("expected only %s, got %v", keep, files)
	}
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
