package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vlog_flow.json")
	data := `{"topModule": "led", "analysis": {"fsmVars": ["phase"]}, "lint": {"rules": {"fsm_no_loop": "off"}}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.TopModule != "led" {
		t.Fatalf("expected topModule led, got %q", cfg.TopModule)
	}
	if !reflect.DeepEqual(cfg.Analysis.FSMVars, []string{"phase"}) {
		t.Fatalf("unexpected fsmVars %v", cfg.Analysis.FSMVars)
	}
	if cfg.Analysis.MaxLoopDepth != 50 || cfg.Analysis.MaxStateSpan != 65536 {
		t.Fatalf("expected default limits, got %+v", cfg.Analysis)
	}
	if !cfg.GraphEnabled() || cfg.Graph.Format != "png" || cfg.Graph.Dir != "out" {
		t.Fatalf("expected default graph settings, got %+v", cfg.Graph)
	}
	if cfg.Analysis.Cache.Enabled != nil || cfg.Analysis.Cache.Dir != ".vlog_flow_cache" {
		t.Fatalf("expected the cache dir default only, got %+v", cfg.Analysis.Cache)
	}
	if cfg.IsRuleEnabled("fsm_no_loop") || !cfg.IsRuleEnabled("fsm_dead_end_state") {
		t.Fatalf("unexpected rule enablement")
	}
	if got := cfg.GetRuleSeverity("irregular_reset", "error"); got != "error" {
		t.Fatalf("expected default severity, got %q", got)
	}
}

func TestLoadFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vlog_flow.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadSearchesRoot(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.TopModule = "cpu"
	if err := cfg.Save(filepath.Join(root, "vlog_flow.json")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TopModule != "cpu" {
		t.Fatalf("expected config from root, got %q", loaded.TopModule)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := DefaultConfig()
	cfg.Graph.NoLabel = true
	cfg.Lint.Rules["fsm_no_loop"] = "info"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !back.Graph.NoLabel || back.GetRuleSeverity("fsm_no_loop", "warning") != "info" {
		t.Fatalf("settings lost in round trip: %+v", back)
	}
}
