package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/tomopipe/tomopipe/internal/model"
	"github.com/tomopipe/tomopipe/internal/pipeline"
	"github.com/tomopipe/tomopipe/internal/progress"
	"github.com/tomopipe/tomopipe/internal/setup"
	"github.com/tomopipe/tomopipe/internal/status"
	"github.com/tomopipe/tomopipe/internal/watch"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "new":
		runNew(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	case "recon":
		runRecon(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "version":
		fmt.Printf("tomopipe %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// commonOpts holds the flags shared by every stage command.
type commonOpts struct {
	dir      string
	project  string
	binary   string
	logLevel string
}

// parseCommon consumes the shared flags and returns the remainder.
func parseCommon(cmd string, args []string) (commonOpts, []string) {
	opts := commonOpts{dir: ".", logLevel: "info"}
	var rest []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dir":
			i++
			opts.dir = flagValue(cmd, "--dir", args, i)
		case "--project":
			i++
			opts.project = flagValue(cmd, "--project", args, i)
		case "--binary":
			i++
			opts.binary = flagValue(cmd, "--binary", args, i)
		case "--log-level":
			i++
			opts.logLevel = flagValue(cmd, "--log-level", args, i)
		default:
			rest = append(rest, args[i])
		}
	}

	if opts.project == "" {
		abs, err := filepath.Abs(opts.dir)
		if err != nil {
			fatal(cmd, err)
		}
		opts.project = filepath.Base(abs)
	}
	return opts, rest
}

func flagValue(cmd, flag string, args []string, i int) string {
	if i >= len(args) {
		fmt.Fprintf(os.Stderr, "%s: %s requires a value\n", cmd, flag)
		os.Exit(1)
	}
	return args[i]
}

func rejectUnknown(cmd, usage string, rest []string) {
	if len(rest) > 0 {
		fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: %s\n", rest[0], usage)
		os.Exit(1)
	}
}

func runNew(args []string) {
	dir := "."
	project := ""
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--project":
			i++
			project = flagValue("new", "--project", args, i)
		default:
			rest = append(rest, args[i])
		}
	}
	if len(rest) > 0 {
		dir = rest[0]
		rest = rest[1:]
	}
	rejectUnknown("new", "tomopipe new [dir] [--project name]", rest)

	if err := setup.Run(dir, project); err != nil {
		fatal("new", err)
	}
	absDir, _ := filepath.Abs(dir)
	fmt.Printf("Initialized project in %s\n", absDir)
}

func runScan(args []string) {
	opts, rest := parseCommon("scan", args)
	rejectUnknown("scan", "tomopipe scan [--dir d] [--project p]", rest)

	err := pipeline.Scan(pipeline.Options{
		Dir:     opts.dir,
		Project: opts.project,
	})
	if err != nil {
		fatal("scan", err)
	}
	fmt.Println("Master metadata written.")
}

func runRecon(args []string) {
	opts, rest := parseCommon("recon", args)
	rejectUnknown("recon", "tomopipe recon [--dir d] [--project p] [--binary path] [--log-level l]", rest)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := pipeline.Reconstruct(ctx, pipeline.Options{
		Dir:      opts.dir,
		Project:  opts.project,
		Binary:   opts.binary,
		Reporter: progress.NewTerminal(os.Stdout, "reconstruct"),
		Logger:   log.New(os.Stderr, "", log.LstdFlags),
		LogLevel: opts.logLevel,
	})
	if err != nil {
		fatal("recon", err)
	}
}

func runStatus(args []string) {
	jsonOutput := false
	var filtered []string
	for _, a := range args {
		if a == "--json" {
			jsonOutput = true
			continue
		}
		filtered = append(filtered, a)
	}
	opts, rest := parseCommon("status", filtered)
	rejectUnknown("status", "tomopipe status [--dir d] [--project p] [--json]", rest)

	if err := status.Run(opts.dir, opts.project, jsonOutput, os.Stdout); err != nil {
		fatal("status", err)
	}
}

func runWatch(args []string) {
	settle := watch.DefaultSettle
	interval := watch.DefaultInterval
	var filtered []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--settle":
			i++
			settle = durationValue("watch", "--settle", args, i)
		case "--interval":
			i++
			interval = durationValue("watch", "--interval", args, i)
		default:
			filtered = append(filtered, args[i])
		}
	}
	opts, rest := parseCommon("watch", filtered)
	rejectUnknown("watch", "tomopipe watch [--dir d] [--project p] [--binary path] [--settle 5s] [--interval 10m]", rest)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	popts := pipeline.Options{
		Dir:      opts.dir,
		Project:  opts.project,
		Binary:   opts.binary,
		Reporter: progress.NewTerminal(os.Stdout, "reconstruct"),
		Logger:   logger,
		LogLevel: opts.logLevel,
	}

	sourceDir, err := pipeline.SourceDir(popts)
	if err != nil {
		fatal("watch", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(sourceDir, settle, interval, func(ctx context.Context) error {
		if err := pipeline.Scan(popts); err != nil {
			return err
		}
		return pipeline.Reconstruct(ctx, popts)
	}, logger, watch.ParseLogLevel(opts.logLevel))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal("watch", err)
	}
}

func durationValue(cmd, flag string, args []string, i int) time.Duration {
	s := flagValue(cmd, flag, args, i)
	d, err := time.ParseDuration(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", cmd, flag, err)
		os.Exit(1)
	}
	return d
}

// fatal prints an error tailored to its kind and exits non-zero.
func fatal(cmd string, err error) {
	errColor := color.New(color.FgRed)

	var cfgErr *model.ConfigurationError
	var corruptErr *model.CorruptRecordError
	var toolErr *model.ExternalToolError
	switch {
	case errors.As(err, &cfgErr):
		errColor.Fprintf(os.Stderr, "%s: configuration: %v\n", cmd, cfgErr)
	case errors.As(err, &corruptErr):
		errColor.Fprintf(os.Stderr, "%s: %v\n", cmd, corruptErr)
		fmt.Fprintln(os.Stderr, "The completion record could not be parsed. Restore it from the .bak copy or delete it to reprocess from scratch.")
	case errors.As(err, &toolErr):
		errColor.Fprintf(os.Stderr, "%s: %v\n", cmd, toolErr)
		fmt.Fprintln(os.Stderr, "Completed items were recorded; rerun to resume from the failed tilt-series.")
	default:
		errColor.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
	}
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `tomopipe %s - batch tomogram reconstruction pipeline

Usage: tomopipe <command> [options]

Commands:
  new [dir] [--project name]   Write a default stage parameter file
  scan [options]               Index raw images into master metadata
  recon [options]              Align and reconstruct pending tilt-series
  status [--json] [options]    Show per-stage progress
  watch [options]              Re-run scan+recon as raw images arrive
  version                      Show version
  help                         Show this help

Common options:
  --dir <path>        Project directory (default ".")
  --project <name>    Project name (default: directory basename)
  --binary <path>     batchruntomo executable override
  --log-level <lvl>   debug, info, warn, error (default info)

`, version)
}
