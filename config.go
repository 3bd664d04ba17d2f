package main

import (
	"flag"
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptsim/dbms/bench"
	"github.com/btree-query-bench/bptsim/dbms/index/bptree"
)

// ErrInvalidConfig marks every flag validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is everything the driver reads from its flags.
type Config struct {
	// Block geometry
	BlockSize   int
	KeySize     int
	PointerSize int

	// Workload
	N         int
	Workload  string
	Seed      int64
	Threshold int64
	Span      int64

	BufferPages int
	Verify      bool

	// Outputs
	ResultsDir string
	CSVPath    string
	ChartPath  string
	DOTPath    string
	Metrics    bool

	LogLevel  string
	LogFormat string
}

func DefaultConfig() Config {
	return Config{
		BlockSize:   bptree.DefaultConfig.BlockSize,
		KeySize:     bptree.DefaultConfig.KeySize,
		PointerSize: bptree.DefaultConfig.PointerSize,
		N:           50,
		Workload:    string(bench.Demo),
		Seed:        1,
		Threshold:   280,
		Span:        100,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// parseFlags fills a Config from args. It does not validate.
func parseFlags(args []string, output io.Writer) (Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("bptsim", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "disk block size C in bytes")
	fs.IntVar(&cfg.KeySize, "key-size", cfg.KeySize, "key size γ in bytes")
	fs.IntVar(&cfg.PointerSize, "pointer-size", cfg.PointerSize, "block pointer size η in bytes")
	fs.IntVar(&cfg.N, "n", cfg.N, "number of entries to insert")
	fs.StringVar(&cfg.Workload, "workload", cfg.Workload, "demo, sequential or random")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed of the random workload")
	fs.Int64Var(&cfg.Threshold, "threshold", cfg.Threshold, "pivot key of the less-than, greater-than and equality queries")
	fs.Int64Var(&cfg.Span, "span", cfg.Span, "width of the range query starting at the threshold")
	fs.IntVar(&cfg.BufferPages, "buffer", cfg.BufferPages, "buffer pool size in blocks (0 disables)")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "check every answer against a linear reference index")
	fs.StringVar(&cfg.ResultsDir, "results", cfg.ResultsDir, "pebble directory to append measurements to")
	fs.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "write measurements as CSV to this file")
	fs.StringVar(&cfg.ChartPath, "chart", cfg.ChartPath, "render a chart of block accesses (.png, .svg or .pdf)")
	fs.StringVar(&cfg.DOTPath, "dot", cfg.DOTPath, "write the final tree in Graphviz DOT format")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "dump the disk counters in Prometheus text format")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "unexpected arguments %q", fs.Args())
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var problems []string
	if err := c.Tree().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.N < 0 {
		problems = append(problems, "-n must not be negative")
	}
	if _, err := bench.ParseWorkload(c.Workload); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Span < 0 {
		problems = append(problems, "-span must not be negative")
	}
	if c.BufferPages < 0 {
		problems = append(problems, "-buffer must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, "-log-format must be text or json")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Wrapf(ErrInvalidConfig, "%s", strings.Join(problems, "; "))
}

func (c Config) Tree() bptree.Config {
	return bptree.Config{BlockSize: c.BlockSize, KeySize: c.KeySize, PointerSize: c.PointerSize}
}

func (c Config) Bench() bench.Workload {
	return bench.Workload{
		Type:      bench.WorkloadType(c.Workload),
		N:         c.N,
		Seed:      c.Seed,
		Threshold: c.Threshold,
		Span:      c.Span,
	}
}

// Logger builds the slog logger selected by the log flags.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Newf("unknown log level %q", s)
	}
	return l, nil
}
