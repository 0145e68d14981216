package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for vlog-flow
type Config struct {
	// TopModule is the instance prefix of the analyzed design, e.g. "top"
	TopModule string `json:"topModule,omitempty"`

	// Designs is a list of glob patterns for dataflow dumps
	Designs []string `json:"designs,omitempty"`

	// Exclude is a list of glob patterns removed from Designs
	Exclude []string `json:"exclude,omitempty"`

	// Analysis contains FSM and active-condition analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty"`

	// Graph controls state graph output
	Graph GraphConfig `json:"graph,omitempty"`

	// Lint contains policy rule configuration
	Lint LintConfig `json:"lint,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// FSMVars are name fragments that mark a register as a state variable,
	// in addition to the built-in fsm, state, count, cnt, step and mode
	FSMVars []string `json:"fsmVars,omitempty"`

	// MaxLoopDepth bounds the depth of the loop search
	MaxLoopDepth int `json:"maxLoopDepth,omitempty"`

	// MaxStateSpan bounds the number of states enumerated from one value range
	MaxStateSpan int64 `json:"maxStateSpan,omitempty"`

	// MaxConditions caps active condition lists (0 = unlimited)
	MaxConditions int `json:"maxConditions,omitempty"`

	// Cache controls the per-design report cache
	Cache CacheConfig `json:"cache,omitempty"`
}

// CacheConfig controls the per-design report cache
type CacheConfig struct {
	// Enabled turns the cache on (default: false)
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`
}

// GraphConfig controls state graph output
type GraphConfig struct {
	// Enabled writes one graph per FSM
	Enabled *bool `json:"enabled,omitempty"`

	// NoLabel omits guards from edges
	NoLabel bool `json:"noLabel,omitempty"`

	// Format is the output format passed to dot: "png", "svg", "dot", ...
	Format string `json:"format,omitempty"`

	// Dir is the output directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`
}

// LintConfig contains policy configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		TopModule: "top",
		Designs:   []string{"*.json", "**/*.dataflow.json", "**/*.dataflow.yaml"},
		Exclude:   []string{},
		Analysis: AnalysisConfig{
			FSMVars:       []string{},
			MaxLoopDepth:  50,
			MaxStateSpan:  65536,
			MaxConditions: 0, // unlimited
			Cache: CacheConfig{
				Enabled: boolPtr(false),
				Dir:     ".vlog_flow_cache",
			},
		},
		Graph: GraphConfig{
			Enabled: boolPtr(true),
			Format:  "png",
			Dir:     "out",
		},
		Lint: LintConfig{
			Rules: map[string]string{},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./vlog_flow.json (current working directory)
//  2. ./.vlog_flow.json (current working directory)
//  3. <rootPath>/vlog_flow.json (if different from cwd)
//  4. ~/.config/vlog_flow/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "vlog_flow.json"),
		filepath.Join(cwd, ".vlog_flow.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "vlog_flow.json"),
				filepath.Join(rootPath, ".vlog_flow.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "vlog_flow", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.TopModule == "" {
		c.TopModule = def.TopModule
	}
	if len(c.Designs) == 0 {
		c.Designs = def.Designs
	}
	if c.Analysis.FSMVars == nil {
		c.Analysis.FSMVars = def.Analysis.FSMVars
	}
	if c.Analysis.MaxLoopDepth <= 0 {
		c.Analysis.MaxLoopDepth = def.Analysis.MaxLoopDepth
	}
	if c.Analysis.MaxStateSpan <= 0 {
		c.Analysis.MaxStateSpan = def.Analysis.MaxStateSpan
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = def.Analysis.Cache.Dir
	}
	if c.Graph.Enabled == nil {
		c.Graph.Enabled = boolPtr(true)
	}
	if c.Graph.Format == "" {
		c.Graph.Format = def.Graph.Format
	}
	if c.Graph.Dir == "" {
		c.Graph.Dir = def.Graph.Dir
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GraphEnabled reports whether state graphs should be written
func (c *Config) GraphEnabled() bool {
	return c.Graph.Enabled == nil || *c.Graph.Enabled
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}
