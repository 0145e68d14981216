// =============================================================================
// vlog-fsm - Finite State Machine Extraction
// =============================================================================
//
// Reads the elaborated dataflow of a Verilog design (a JSON or YAML dump
// produced by the parser front-end) and reconstructs the state machines that
// live in it.
//
// THE PIPELINE:
//   1. CUE Validator checks each dump against the #Design contract
//   2. The controlflow analyzer finds state registers and walks their
//      next-value trees into transitions
//   3. Loops, active conditions and reset values are flattened into tables
//   4. CUE Validator checks the tables against the #Report contract
//   5. OPA evaluates the FSM rules against the tables
//   6. Graphs are rendered with Graphviz
//
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/vlog-flow/internal/config"
	"github.com/robert-at-pretension-io/vlog-flow/internal/pipeline"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		runInit()
		return
	}

	var signals stringList
	configPath := flag.String("config", "", "config file (default: search vlog_flow.json)")
	flag.StringVar(configPath, "c", "", "config file (shorthand)")
	top := flag.String("top", "", "top module name (default: from config)")
	flag.StringVar(top, "t", "", "top module name (shorthand)")
	flag.Var(&signals, "signal", "target signal of the active-condition query (repeatable)")
	flag.Var(&signals, "s", "target signal (shorthand)")
	noGraph := flag.Bool("nograph", false, "do not write state graphs")
	noLabel := flag.Bool("nolabel", false, "omit guards from graph edges")
	graphFormat := flag.String("graphformat", "", "graph format passed to dot (default: png)")
	output := flag.String("output", "", "write report tables JSON to file")
	flag.StringVar(output, "o", "", "write report tables JSON to file (shorthand)")
	jsonOut := flag.Bool("json", false, "print the result as JSON")
	deltaFrom := flag.String("delta-from", "", "previous report JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	verbose := flag.Bool("verbose", false, "print analyzer sections")
	flag.BoolVar(verbose, "v", false, "print analyzer sections (shorthand)")
	progress := flag.Bool("progress", false, "print one line per design")
	timing := flag.Bool("timing", false, "write stage timing to timing.jsonl")
	policyDir := flag.String("policy-dir", "", "directory of .rego rules replacing the built-in ones")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *top != "" {
		cfg.TopModule = *top
	}
	if *noLabel {
		cfg.Graph.NoLabel = true
	}
	if *graphFormat != "" {
		cfg.Graph.Format = *graphFormat
	}

	r := pipeline.New(cfg)
	r.Verbose = *verbose
	r.Progress = *progress
	r.JSONOutput = *jsonOut
	r.Timing = *timing
	r.PolicyDir = *policyDir
	r.NoGraph = *noGraph
	r.Output = *output
	r.DeltaFrom = *deltaFrom
	r.DeltaOut = *deltaOut
	if _, err := r.Run(args, signals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath, target string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	root := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		root = filepath.Dir(target)
	}
	return config.Load(root)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: vlog-fsm [command] [options] <dump|dir>...

Commands:
  init                  Create a vlog_flow.json configuration file
  <dump|dir>            Extract state machines from dataflow dumps

Options:
  -c, --config FILE     Specify config file
  -t, --top NAME        Top module name (default: top)
  -s, --signal NAME     Report the active conditions of NAME (repeatable)
  --nograph             Do not write state graphs
  --nolabel             Omit guards from graph edges
  --graphformat FMT     Graph format passed to dot (png, svg, dot, ...)
  -o, --output FILE     Write report tables JSON to FILE
  --json                Print the result as JSON
  --delta-from FILE     Previous report tables (with --delta-out)
  --delta-out FILE      Write added and removed rows to FILE
  -v, --verbose         Print analyzer sections
  --progress            Print one line per design
  --timing              Write stage timing to timing.jsonl
  --policy-dir DIR      Use the .rego rules in DIR

Configuration:
  vlog-fsm looks for configuration in:
    1. ./vlog_flow.json
    2. ./.vlog_flow.json
    3. <dir>/vlog_flow.json
    4. ~/.config/vlog_flow/config.json

  Run 'vlog-fsm init' to create a default configuration file.`)
}

func runInit() {
	configPath := "vlog_flow.json"

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Design dump patterns")
	fmt.Println("  - State variable name fragments")
	fmt.Println("  - Graph output")
	fmt.Println("  - Lint rule severities")
}
