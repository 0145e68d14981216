package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-at-pretension-io/vlog-flow/internal/config"
	"github.com/robert-at-pretension-io/vlog-flow/internal/report"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	ContentHash string `json:"content_hash"`
	OptionsHash string `json:"options_hash"`
	ReportPath  string `json:"report_path"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// cachedDesign is everything a design contributes to a run.
type cachedDesign struct {
	Tables   report.Tables `json:"tables"`
	Graphs   []string      `json:"graphs"`
	Warnings []string      `json:"warnings"`
}

type reportCache struct {
	dir         string
	optionsHash string
	mu          sync.Mutex
	index       cacheIndex
}

func newReportCache(dir, optionsHash string) *reportCache {
	return &reportCache{
		dir:         dir,
		optionsHash: optionsHash,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *reportCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *reportCache) reportPathFor(key string) string {
	return filepath.Join(c.dir, "reports", hashString(key)+".json")
}

func (c *reportCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *reportCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

// Get returns the cached contribution of the design at key. An entry whose
// graphs have since been removed is a miss.
func (c *reportCache) Get(key, contentHash string) (cachedDesign, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[key]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash || entry.OptionsHash != c.optionsHash {
		return cachedDesign{}, false, nil
	}

	data, err := os.ReadFile(entry.ReportPath)
	if err != nil {
		return cachedDesign{}, false, fmt.Errorf("read cached report: %w", err)
	}
	var cd cachedDesign
	if err := json.Unmarshal(data, &cd); err != nil {
		return cachedDesign{}, false, fmt.Errorf("parse cached report: %w", err)
	}
	for _, g := range cd.Graphs {
		if _, err := os.Stat(g); err != nil {
			return cachedDesign{}, false, nil
		}
	}
	return cd, true, nil
}

func (c *reportCache) Put(key, contentHash string, cd cachedDesign) error {
	reportPath := c.reportPathFor(key)
	if err := writeJSONAtomic(reportPath, cd); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[key] = cacheEntry{
		ContentHash: contentHash,
		OptionsHash: c.optionsHash,
		ReportPath:  reportPath,
	}
	c.mu.Unlock()
	return nil
}

func cacheEnabled(cfg *config.Config) bool {
	if cfg == nil || cfg.Analysis.Cache.Enabled == nil {
		return false
	}
	return *cfg.Analysis.Cache.Enabled
}

func resolveCacheDir(rootPath string, cfg *config.Config) string {
	cacheDir := cfg.Analysis.Cache.Dir
	if cacheDir == "" {
		cacheDir = ".vlog_flow_cache"
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(rootPath, cacheDir)
	}
	return cacheDir
}

// optionsHash covers every setting that changes what a design contributes.
func (r *Runner) optionsHash(signals []string) (string, error) {
	data, err := json.Marshal(struct {
		Version   int
		Top       string
		Analysis  config.AnalysisConfig
		Graph     config.GraphConfig
		NoGraph   bool
		Signals   []string
		Predicate string
		Ranges    bool
		Rules     map[string]string
	}{
		Version:   cacheIndexVersion,
		Top:       r.Config.TopModule,
		Analysis:  r.Config.Analysis,
		Graph:     r.Config.Graph,
		NoGraph:   r.NoGraph,
		Signals:   signals,
		Predicate: r.Predicate,
		Ranges:    r.Ranges,
		Rules:     r.Config.Lint.Rules,
	})
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

func hashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}
