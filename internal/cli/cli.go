package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/graphbeam"
	"github.com/hupe1980/graphbeam/codec"
	"github.com/hupe1980/graphbeam/config"
	"github.com/hupe1980/graphbeam/resource"
	"github.com/hupe1980/graphbeam/transport"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options are the parsed command-line arguments.
type Options struct {
	ConfigPath string
	// Node is the node to run in cluster mode, or -1 to run the whole tree
	// in this process.
	Node int
	// LogLevel and LogFormat override the run file when set.
	LogLevel  string
	LogFormat string
	// Output is how the final level is printed: text, json or none.
	Output string
}

// Parse processes command-line arguments. It returns the parsed options,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	flagSet := flag.NewFlagSet("graphbeam", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
graphbeam - distributed beam search for small-distance bounded-degree graphs.

Usage:
  graphbeam [options] [RUN_FILE]

Arguments:
  RUN_FILE
    Path to an .hcl run file. Without one, built-in defaults are used.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the run file.")
	cFlag := flagSet.String("c", "", "Path to the run file (shorthand).")
	nodeFlag := flagSet.Int("node", -1, "Node id to run in cluster mode. -1 runs every node in this process.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	outputFlag := flagSet.String("output", "text", "Result output. Options: 'text', 'json' or 'none'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *configFlag
	if path == "" {
		path = *cFlag
	}
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	opts := &Options{
		ConfigPath: path,
		Node:       *nodeFlag,
		LogFormat:  strings.ToLower(*logFormatFlag),
		LogLevel:   strings.ToLower(*logLevelFlag),
		Output:     strings.ToLower(*outputFlag),
	}

	switch opts.LogFormat {
	case "", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	switch opts.Output {
	case "text", "json", "none":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid output: must be 'text', 'json' or 'none'"}
	}
	if opts.Node < -1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid node: must be -1 or a node id"}
	}

	return opts, false, nil
}

// Run executes a search. The result goes to outW and logs to logW.
func Run(ctx context.Context, outW, logW io.Writer, opts *Options) error {
	f := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if f, err = config.Load(opts.ConfigPath); err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
	}
	if opts.LogLevel != "" {
		f.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		f.Logging.Format = opts.LogFormat
	}
	logger := newLogger(logW, f.Logging)

	searchOpts, err := searchOptions(f, logger)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	var res *graphbeam.Result
	if opts.Node < 0 {
		res, err = graphbeam.Search(ctx, searchOpts...)
	} else {
		res, err = runNode(ctx, f, opts.Node, logger, searchOpts)
	}
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	if err := printResult(outW, res, opts.Output); err != nil {
		return err
	}
	return publish(ctx, f.Report, res, logger)
}

func newLogger(w io.Writer, cfg *config.Logging) *graphbeam.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.Format == "json" {
		return graphbeam.NewJSONLogger(w, level)
	}
	return graphbeam.NewTextLogger(w, level)
}

func searchOptions(f *config.File, logger *graphbeam.Logger) ([]graphbeam.Option, error) {
	topo, err := f.Topology()
	if err != nil {
		return nil, err
	}
	opts := []graphbeam.Option{
		graphbeam.WithMaxDegree(f.Search.MaxDegree),
		graphbeam.WithCapacity(f.Search.Capacity),
		graphbeam.WithLevels(f.Search.StartN, f.Search.FinalN),
		graphbeam.WithTopology(topo),
		graphbeam.WithCompression(f.Compression(), f.Wire.Threshold),
		graphbeam.WithResourceLimits(resource.Config{
			MemoryLimitBytes:   f.Limits.MemoryBytes,
			MaxWorkers:         f.Limits.MaxWorkers,
			IOLimitBytesPerSec: f.Limits.IOBytesPerSec,
		}),
		graphbeam.WithLogger(logger),
	}
	if seeds := f.SeedEdges(); seeds != nil {
		opts = append(opts, graphbeam.WithSeedGraphs(seeds...))
	}
	return opts, nil
}

// runNode runs one node of the tree over websockets.
func runNode(ctx context.Context, f *config.File, id int, logger *graphbeam.Logger, opts []graphbeam.Option) (*graphbeam.Result, error) {
	topo, err := f.Topology()
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	if !topo.Contains(id) {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("node %d is not part of a %d node tree", id, topo.Len())}
	}

	wsCfg := transport.WSConfig{
		ID:       id,
		Children: topo.Children(id),
		Limits:   resource.NewController(resource.Config{IOLimitBytesPerSec: f.Limits.IOBytesPerSec}),
		Logger:   logger.WithNode(id).Logger,
	}
	if len(wsCfg.Children) > 0 {
		self, ok := f.Node(id)
		if !ok || self.Listen == "" {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("node %d has children but no listen address", id)}
		}
		wsCfg.ListenAddr = self.Listen
	}
	if parent, ok := topo.Parent(id); ok {
		p, found := f.Node(parent)
		if !found || p.Address == "" {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("parent %d of node %d has no address", parent, id)}
		}
		wsCfg.Parent = parent
		wsCfg.ParentAddr = p.Address
	}

	ep, err := transport.ListenWS(ctx, wsCfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ep.Close() }()

	return graphbeam.RunNode(ctx, id, ep, opts...)
}

func printResult(w io.Writer, res *graphbeam.Result, format string) error {
	switch format {
	case "json":
		data, err := codec.GoJSON{}.MarshalIndent(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "none":
		return nil
	default:
		return res.WriteText(w)
	}
}
