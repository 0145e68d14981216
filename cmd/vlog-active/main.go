// vlog-active reports when the given signals of a Verilog design are
// assigned: per state machine, the states and residual guards of each
// active path, and optionally the value ranges the guards compare against.
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
	var signals stringList
	configPath := flag.String("config", "", "config file (default: search vlog_flow.json)")
	flag.StringVar(configPath, "c", "", "config file (shorthand)")
	top := flag.String("top", "", "top module name (default: from config)")
	flag.StringVar(top, "t", "", "top module name (shorthand)")
	flag.Var(&signals, "signal", "target signal (repeatable)")
	flag.Var(&signals, "s", "target signal (shorthand)")
	predicate := flag.String("predicate", "constant", "active paths: constant, modify or unmodify")
	ranges := flag.Bool("ranges", false, "also report the active value ranges")
	jsonOut := flag.Bool("json", false, "print the result as JSON")
	verbose := flag.Bool("verbose", false, "print analyzer sections")
	flag.BoolVar(verbose, "v", false, "print analyzer sections (shorthand)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(signals) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: vlog-active -s SIGNAL... [--predicate constant|modify|unmodify] [--ranges] [--json] [-c config] [-t top] <dump>")
		os.Exit(1)
	}
	if _, ok := pipeline.PredicateByName(*predicate); !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown predicate %q\n", *predicate)
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load(filepath.Dir(args[0]))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *top != "" {
		cfg.TopModule = *top
	}

	r := pipeline.New(cfg)
	r.Predicate = *predicate
	r.Ranges = *ranges
	r.FilterSignals = true
	r.NoGraph = true
	r.JSONOutput = *jsonOut
	r.Verbose = *verbose
	if _, err := r.Run(args, signals); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
