// galileo-metrics pulls evaluation metrics for sessions, traces and spans
// out of the Galileo API.
//
// Usage:
//
//	galileo-metrics <command> [flags]
//
// Commands:
//
//	fetch-logstream-metrics  Fetch and aggregate every session of a log stream
//	fetch-session-metrics    Show the metrics of one session
//	fetch-experiment         Show the newest traces of an experiment
//	snapshots                List or export stored log stream snapshots
//	import-snapshots         Load a snapshot export into a store
//	prune                    Delete old snapshots
//	version                  Print version information
//
// Credentials come from GALILEO_API_KEY and GALILEO_API_URL, read from the
// environment or a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/galileo"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errUsage marks command line mistakes; run prints a usage hint for them.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	logger   *log.Logger
	settings config.Settings
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	a := &app{
		stdout: stdout,
		stderr: stderr,
		logger: log.New(stderr, "", log.LstdFlags),
	}

	var err error
	switch args[0] {
	case "fetch-logstream-metrics":
		err = a.cmdFetchLogStream(ctx, args[1:])
	case "fetch-session-metrics":
		err = a.cmdFetchSession(ctx, args[1:])
	case "fetch-experiment":
		err = a.cmdFetchExperiment(ctx, args[1:])
	case "snapshots":
		err = a.cmdSnapshots(ctx, args[1:])
	case "import-snapshots":
		err = a.cmdImportSnapshots(ctx, args[1:])
	case "prune":
		err = a.cmdPrune(ctx, args[1:])
	case "version":
		fmt.Fprintf(stdout, "galileo-metrics v%s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 1
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "Run 'galileo-metrics %s -h' for details.\n", args[0])
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `galileo-metrics: evaluation metrics from the Galileo API

Usage:
  galileo-metrics <command> [flags]

Commands:
  fetch-logstream-metrics [project logstream]   Fetch and aggregate a log stream
  fetch-session-metrics <session_id>            Show the metrics of one session
  fetch-experiment <experiment_id> [limit]      Show the newest traces of an experiment
  snapshots [-latest]                           List, export or show stored snapshots
  import-snapshots <file>                       Load a snapshot export into a store
  prune                                         Delete old snapshots
  version                                       Print version information

Environment:
  GALILEO_API_KEY, GALILEO_API_URL              Credentials (required for fetch commands)
  GALILEO_PROJECT, GALILEO_LOG_STREAM           Defaults for fetch-logstream-metrics
  GALILEO_PROJECT_ID                            Default for session and experiment commands
  GALILEO_PAGE_SIZE, GALILEO_STORE_DIR          Defaults for -page-size and -store

Flags may come before or after arguments.
Run 'galileo-metrics <command> -h' for details on each command.`)
}

// newFlagSet creates a flag set that reports to stderr instead of exiting.
func (a *app) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: galileo-metrics %s %s\n\nFlags:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags that appear before, between or after positional
// arguments and returns the positional ones in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// loadSettings reads the environment once flags are about to be defined.
func (a *app) loadSettings() {
	a.settings = config.Load(a.logger)
}

// newClient builds an API client from the loaded settings. inst may be nil.
func (a *app) newClient(inst *galileo.Instrumentation) (*galileo.Client, error) {
	return galileo.New(galileo.ClientConfig{
		APIKey:          a.settings.APIKey,
		BaseURL:         a.settings.APIURL,
		Instrumentation: inst,
	})
}

// newMetrics creates a private registry with client instrumentation.
func newMetrics() (*prometheus.Registry, *galileo.Instrumentation, error) {
	reg := prometheus.NewRegistry()
	inst, err := galileo.NewInstrumentation(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return reg, inst, nil
}

// writeTextfile writes reg in the node_exporter textfile format. Failures
// are logged; the command result stands.
func (a *app) writeTextfile(path string, reg *prometheus.Registry) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		a.logger.Printf("⚠️  Failed to write metrics to %s: %v", path, err)
		return
	}
	a.logger.Printf("📈 Wrote client metrics to %s", path)
}
