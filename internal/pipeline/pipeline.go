package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robert-at-pretension-io/vlog-flow/internal/active"
	"github.com/robert-at-pretension-io/vlog-flow/internal/config"
	"github.com/robert-at-pretension-io/vlog-flow/internal/controlflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-flow/internal/policy"
	"github.com/robert-at-pretension-io/vlog-flow/internal/report"
	"github.com/robert-at-pretension-io/vlog-flow/internal/splitter"
	"github.com/robert-at-pretension-io/vlog-flow/internal/validator"
)

// Runner drives the analysis of one or more dataflow dumps: load, validate,
// analyze, build the report, evaluate the policy rules and print.
type Runner struct {
	// Configuration loaded from vlog_flow.json
	Config *config.Config

	// Verbose output (analyzer sections per design)
	Verbose bool

	// Progress output (one line per design)
	Progress bool

	// JSON output mode
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// PolicyDir overrides the embedded rule set
	PolicyDir string

	// NoGraph disables state graph output regardless of the config
	NoGraph bool

	// Predicate names the active paths of queried signals: "constant"
	// (default), "modify" or "unmodify"
	Predicate string

	// Ranges adds the active value ranges of queried signals
	Ranges bool

	// FilterSignals limits the report to the queried signals and the
	// machines their active conditions refer to
	FilterSignals bool

	// Output writes the report tables to a file
	Output string

	// DeltaFrom and DeltaOut write the row delta against a previous snapshot
	DeltaFrom string
	DeltaOut  string

	// Out receives the printed report (default os.Stdout)
	Out io.Writer
}

// Result is the structured result of a run. It is what --json prints.
type Result struct {
	Designs    []string           `json:"designs"`
	Tables     report.Tables      `json:"tables"`
	Violations []policy.Violation `json:"violations"`
	Summary    policy.Summary     `json:"summary"`
	Graphs     []string           `json:"graphs,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

type designResult struct {
	path     string
	name     string
	tables   report.Tables
	graphs   []string
	warnings []string
	queries  []queryTiming
	log      bytes.Buffer
	cached   bool
	err      error
	cacheErr error
}

// New returns a runner for cfg.
func New(cfg *config.Config) *Runner {
	return &Runner{Config: cfg}
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

// Run analyzes the dumps found under paths. A directory is expanded with the
// configured design patterns. signals are the targets of the active-condition
// queries; a name without a hierarchy separator is prefixed with the top
// module. Per-design failures do not stop the other designs; they are
// collected and returned together once the report has been printed.
func (r *Runner) Run(paths []string, signals []string) (*Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no design given")
	}
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}
	rootPath := rootOf(paths[0])
	timing := openAnalysisLog(runStart, r.resolveTimingPath(rootPath))
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()
	w := r.out()

	// 0. Load configuration if not already loaded
	if r.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		r.Config = cfg
	}

	// 1. Find the design dumps
	stepStart := time.Now()
	files, err := r.resolveDesigns(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no design dumps found in %s", strings.Join(paths, ", "))
	}
	if !r.JSONOutput {
		fmt.Fprintf(w, "Found %d design dumps\n", len(files))
	}
	scanDuration := time.Since(stepStart)
	timing.Stage("scan", stepStart, scanDuration)

	// 2. Per-design analysis
	stepStart = time.Now()
	designValidator, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("initialize validator: %w", err)
	}
	var cache *reportCache
	if cacheEnabled(r.Config) {
		if h, err := r.optionsHash(signals); err != nil {
			recordPipelineErr(fmt.Errorf("cache disabled: %w", err))
		} else {
			cache = newReportCache(resolveCacheDir(rootPath, r.Config), h)
			if err := cache.Load(); err != nil {
				recordPipelineErr(fmt.Errorf("cache disabled: %w", err))
				cache = nil
			}
		}
	}
	progressEnabled := (r.Verbose || r.Progress) && !r.JSONOutput
	if progressEnabled {
		fmt.Fprintf(w, "\n=== Analysis Progress ===\n")
	}
	results := make([]*designResult, len(files))
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	progress := 0
	for i, file := range files {
		results[i] = &designResult{path: file, name: designName(rootPath, file)}
		wg.Add(1)
		go func(dr *designResult) {
			defer wg.Done()
			start := time.Now()
			r.analyzeDesign(dr, designValidator, cache, signals)
			status := "ok"
			if dr.err != nil {
				status = "error"
			} else if dr.cached {
				status = "cache_hit"
			}
			duration := time.Since(start)
			timing.Design(dr, status, start, duration)
			if progressEnabled {
				progressMu.Lock()
				progress++
				fmt.Fprintf(w, "  [%d/%d] %s (%s, %s)\n", progress, len(files), dr.name, status, formatDuration(duration))
				progressMu.Unlock()
			}
		}(results[i])
	}
	wg.Wait()
	if cache != nil {
		if err := cache.Save(); err != nil {
			recordPipelineErr(fmt.Errorf("cache save failed: %w", err))
		}
	}
	analyzeDuration := time.Since(stepStart)
	timing.Stage("analyze", stepStart, analyzeDuration)

	// 3. Merge and validate the report
	stepStart = time.Now()
	res := &Result{Designs: []string{}, Tables: report.EmptyTables(), Violations: []policy.Violation{}}
	for _, dr := range results {
		if r.Verbose && !r.JSONOutput && dr.log.Len() > 0 {
			fmt.Fprintf(w, "\n=== Design %s ===", dr.name)
			_, _ = w.Write(dr.log.Bytes())
		}
		if dr.err != nil {
			recordPipelineErr(fmt.Errorf("%s: %w", dr.name, dr.err))
			continue
		}
		if dr.cacheErr != nil {
			recordPipelineErr(fmt.Errorf("%s: %w", dr.name, dr.cacheErr))
		}
		res.Designs = append(res.Designs, dr.name)
		res.Tables.Merge(dr.tables)
		res.Graphs = append(res.Graphs, dr.graphs...)
		res.Warnings = append(res.Warnings, dr.warnings...)
	}
	if r.FilterSignals {
		res.Tables = report.FilterTablesBySignals(res.Tables, r.signalSet(res.Tables, signals))
	}
	reportValidator, err := validator.NewReportValidator()
	if err != nil {
		return nil, fmt.Errorf("initialize report validator: %w", err)
	}
	if err := reportValidator.Validate(res.Tables); err != nil {
		return nil, fmt.Errorf("report validation failed: %w", err)
	}
	reportDuration := time.Since(stepStart)
	timing.Stage("report", stepStart, reportDuration)

	// 4. Policy
	stepStart = time.Now()
	engine, err := policy.New(r.PolicyDir)
	if err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	policyResult, err := engine.Evaluate(context.Background(), res.Tables, r.Config.Lint.Rules)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	res.Violations = policyResult.Violations
	res.Summary = policyResult.Summary
	policyDuration := time.Since(stepStart)
	timing.Stage("policy", stepStart, policyDuration)

	// 5. Snapshots
	if r.Output != "" {
		if err := writeJSONAtomic(r.Output, res.Tables); err != nil {
			recordPipelineErr(fmt.Errorf("write report: %w", err))
		}
	}
	if r.DeltaFrom != "" || r.DeltaOut != "" {
		if r.DeltaFrom == "" || r.DeltaOut == "" {
			recordPipelineErr(fmt.Errorf("--delta-from and --delta-out must be used together"))
		} else if prev, err := ReadTables(r.DeltaFrom); err != nil {
			recordPipelineErr(fmt.Errorf("read delta-from: %w", err))
		} else if err := writeJSONAtomic(r.DeltaOut, report.ComputeDelta(prev, res.Tables)); err != nil {
			recordPipelineErr(fmt.Errorf("write delta: %w", err))
		}
	}

	// 6. Output
	if r.JSONOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return nil, fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		printText(w, res)
	}

	if progressEnabled {
		fmt.Fprintf(w, "\n=== Timing Summary ===\n")
		fmt.Fprintf(w, "  scan:     %s\n", formatDuration(scanDuration))
		fmt.Fprintf(w, "  analyze:  %s\n", formatDuration(analyzeDuration))
		fmt.Fprintf(w, "  report:   %s\n", formatDuration(reportDuration))
		fmt.Fprintf(w, "  policy:   %s\n", formatDuration(policyDuration))
		fmt.Fprintf(w, "  total:    %s\n", formatDuration(time.Since(runStart)))
	}
	timing.Stage("total", runStart, time.Since(runStart))

	if len(pipelineErrs) > 0 {
		return res, fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return res, nil
}

func (r *Runner) analyzeDesign(dr *designResult, v *validator.Validator, cache *reportCache, signals []string) {
	data, err := dataflow.ReadDump(dr.path)
	if err != nil {
		dr.err = err
		return
	}
	if cache == nil {
		r.analyze(dr, data, v, signals)
		return
	}

	key := dr.name + "\x00" + dr.path
	contentHash := hashBytes(data)
	if cd, ok, err := cache.Get(key, contentHash); err != nil {
		dr.cacheErr = fmt.Errorf("cache read failed: %w", err)
	} else if ok {
		dr.tables = cd.Tables
		dr.graphs = cd.Graphs
		dr.warnings = cd.Warnings
		dr.cached = true
		return
	}
	r.analyze(dr, data, v, signals)
	if dr.err != nil {
		return
	}
	cd := cachedDesign{Tables: dr.tables, Graphs: dr.graphs, Warnings: dr.warnings}
	if err := cache.Put(key, contentHash, cd); err != nil {
		dr.cacheErr = fmt.Errorf("cache write failed: %w", err)
	}
}

func (r *Runner) analyze(dr *designResult, data []byte, v *validator.Validator, signals []string) {
	if errs := v.ValidationErrors(data); len(errs) > 0 {
		dr.err = fmt.Errorf("invalid dump:\n  %s", strings.Join(errs, "\n  "))
		return
	}
	design, err := dataflow.Decode(data)
	if err != nil {
		dr.err = err
		return
	}

	an := r.Config.Analysis
	a, err := controlflow.New(design, controlflow.Options{
		FSMVars:       an.FSMVars,
		MaxLoopDepth:  an.MaxLoopDepth,
		MaxStateSpan:  an.MaxStateSpan,
		MaxConditions: an.MaxConditions,
		Verbose:       r.Verbose && !r.JSONOutput,
		Log:           &dr.log,
	})
	if err != nil {
		dr.err = fmt.Errorf("analysis: %w", err)
		return
	}

	pred, ok := PredicateByName(r.Predicate)
	if !ok {
		dr.err = fmt.Errorf("unknown predicate %q", r.Predicate)
		return
	}
	res := report.Results{
		Actives: make(map[string]map[string][]controlflow.StateGuard),
		Ranges:  make(map[string]active.ConditionList),
		Resets:  make(map[string][]splitter.ResetAssignment),
	}
	top := r.Config.TopModule
	if top == "" {
		top = design.TopModule
	}
	for _, sig := range signals {
		name := qualify(sig, top)
		if len(design.BindsOf(name)) == 0 {
			dr.warnings = append(dr.warnings, fmt.Sprintf("%s: signal %s is not assigned", dr.name, name))
			continue
		}
		start := time.Now()
		conds, err := a.ActiveConditions(name, pred)
		if err != nil {
			dr.err = fmt.Errorf("active conditions of %s: %w", name, err)
			return
		}
		q := queryTiming{signal: name, start: start, duration: time.Since(start)}
		for _, sgs := range conds {
			q.rows += len(sgs)
		}
		dr.queries = append(dr.queries, q)
		res.Actives[name] = conds
		if r.Ranges {
			ranges, err := a.ActiveRanges(name, pred)
			if err != nil {
				dr.err = fmt.Errorf("active ranges of %s: %w", name, err)
				return
			}
			res.Ranges[name] = ranges
		}
	}

	for _, name := range a.FSMNames() {
		for _, b := range design.BindsOf(name) {
			res.Resets[name] = append(res.Resets[name], splitter.ResetValues(b.Tree)...)
			if !r.Config.IsRuleEnabled("irregular_reset") {
				continue
			}
			if err := splitter.CheckResetValues(name, b.Tree); err != nil {
				sev := r.Config.GetRuleSeverity("irregular_reset", "error")
				dr.warnings = append(dr.warnings, fmt.Sprintf("%s: %v [%s]", dr.name, err, sev))
			}
		}
	}

	dr.tables = report.BuildTables(dr.name, a, res)
	r.writeGraphs(dr, a)
}

// writeGraphs renders one graph per FSM. Failures, e.g. a missing dot
// program, are reported as warnings.
func (r *Runner) writeGraphs(dr *designResult, a *controlflow.Analyzer) {
	gc := r.Config.Graph
	if r.NoGraph || !r.Config.GraphEnabled() {
		return
	}
	format := gc.Format
	if format == "" {
		format = "png"
	}
	dir := gc.Dir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(dr.path), dir)
	}
	stem := strings.TrimSuffix(filepath.Base(dr.path), filepath.Ext(dr.path))
	fsms := a.FiniteStateMachines()
	for _, name := range a.FSMNames() {
		file := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", stem, strings.ReplaceAll(name, ".", "_"), format))
		if err := fsms[name].ToGraph(file, gc.NoLabel); err != nil {
			dr.warnings = append(dr.warnings, fmt.Sprintf("%s: graph of %s: %v", dr.name, name, err))
			continue
		}
		dr.graphs = append(dr.graphs, file)
	}
}

// signalSet returns the qualified query targets plus the FSMs that constrain them.
func (r *Runner) signalSet(t report.Tables, signals []string) map[string]bool {
	set := make(map[string]bool)
	for _, sig := range signals {
		set[qualify(sig, r.Config.TopModule)] = true
	}
	for _, row := range t.ActiveConditions {
		if set[row.Signal] {
			set[row.FSM] = true
		}
	}
	return set
}

func (r *Runner) resolveDesigns(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scanning designs: %w", err)
		}
		var found []string
		if info.IsDir() {
			found, err = r.Config.ResolveDesigns(p)
			if err != nil {
				return nil, fmt.Errorf("scanning designs: %w", err)
			}
		} else {
			found = []string{p}
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, nil
}

func printText(w io.Writer, res *Result) {
	t := res.Tables
	if len(t.FSMs) > 0 {
		fmt.Fprintf(w, "\n=== Finite State Machines ===\n")
		for _, fsm := range t.FSMs {
			source := ""
			if fsm.Source != fsm.Name {
				source = fmt.Sprintf(", copy of %s delayed %d", fsm.Source, fsm.DelayCnt)
			}
			fmt.Fprintf(w, "%s: %s (%d bits, %d states, %d transitions%s)\n",
				fsm.Design, fsm.Name, fsm.Width, fsm.States, fsm.Transitions, source)
			for _, tr := range t.Transitions {
				if tr.Design != fsm.Design || tr.FSM != fsm.Name {
					continue
				}
				src := fmt.Sprintf("%d", tr.Src)
				if tr.FromAny {
					src = "any"
				}
				guard := tr.Guard
				if tr.Unconditional {
					guard = "None"
				}
				fmt.Fprintf(w, "  %s --%s--> %d\n", src, guard, tr.Dst)
			}
			for _, l := range t.Loops {
				if l.Design == fsm.Design && l.FSM == fsm.Name {
					fmt.Fprintf(w, "  Loop %s\n", l.Loop)
				}
			}
		}
	}

	if len(t.ActiveConditions) > 0 {
		fmt.Fprintf(w, "\n=== Active Conditions ===\n")
		for _, ac := range t.ActiveConditions {
			state := fmt.Sprintf("%d", ac.State)
			if ac.AnyState {
				state = "any"
			}
			guard := ac.Guard
			if guard == "" {
				guard = "None"
			}
			fmt.Fprintf(w, "%s: %s in %s=%s when %s\n", ac.Design, ac.Signal, ac.FSM, state, guard)
		}
	}

	if len(t.ActiveRanges) > 0 {
		fmt.Fprintf(w, "\n=== Active Ranges ===\n")
		for _, ar := range t.ActiveRanges {
			if ar.Unconstrained {
				fmt.Fprintf(w, "%s: %s clause %d unconstrained\n", ar.Design, ar.Signal, ar.Clause)
				continue
			}
			fmt.Fprintf(w, "%s: %s clause %d %s:%s\n", ar.Design, ar.Signal, ar.Clause, ar.Term, ar.Ranges)
		}
	}

	if len(t.Resets) > 0 {
		fmt.Fprintf(w, "\n=== Reset Values ===\n")
		for _, rr := range t.Resets {
			mark := "✓"
			if !rr.Regular {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s: %s <= %s under %s\n", mark, rr.Design, rr.Signal, rr.Value, rr.Guard)
		}
	}

	if len(res.Violations) > 0 {
		fmt.Fprintf(w, "\n=== Policy Violations ===\n")
		for _, v := range res.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Fprintf(w, "%s [%s] %s:%s - %s\n", icon, v.Rule, v.Design, v.Signal, v.Message)
		}
	}

	fmt.Fprintf(w, "\n=== Policy Summary ===\n")
	fmt.Fprintf(w, "  Errors:   %d\n", res.Summary.Errors)
	fmt.Fprintf(w, "  Warnings: %d\n", res.Summary.Warnings)
	fmt.Fprintf(w, "  Info:     %d\n", res.Summary.Info)

	if len(res.Graphs) > 0 {
		fmt.Fprintf(w, "\n=== Graphs ===\n")
		for _, g := range res.Graphs {
			fmt.Fprintf(w, "  %s\n", g)
		}
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\n=== Warnings ===\n")
		for _, msg := range res.Warnings {
			fmt.Fprintf(w, "  %s\n", msg)
		}
	}
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

var predicates = map[string]splitter.Predicate{
	"constant": splitter.ActiveConstant,
	"modify":   splitter.ActiveModify,
	"unmodify": splitter.ActiveUnmodify,
}

// PredicateByName returns the active-path predicate called name. The empty
// name selects "constant".
func PredicateByName(name string) (splitter.Predicate, bool) {
	if name == "" {
		name = "constant"
	}
	p, ok := predicates[name]
	return p, ok
}

// qualify prefixes a local signal name with the top module.
func qualify(name, top string) string {
	if strings.Contains(name, ".") || top == "" {
		return name
	}
	return top + "." + name
}

func rootOf(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func designName(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
