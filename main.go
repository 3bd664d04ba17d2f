package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/term"

	"github.com/btree-query-bench/bptsim/dbms/bench"
	"github.com/btree-query-bench/bptsim/dbms/index/bptree"
	"github.com/btree-query-bench/bptsim/dbms/report"
	"github.com/btree-query-bench/bptsim/dbms/results"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	log := cfg.Logger(stderr)
	if err := simulate(ctx, cfg, stdout, log); err != nil {
		log.Error("simulation failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func simulate(ctx context.Context, cfg Config, stdout io.Writer, log *slog.Logger) error {
	tc := cfg.Tree()
	order := bptree.Order(tc)
	fmt.Fprintf(stdout, "Block: %s, key: %s, pointer: %s\n",
		humanize.IBytes(uint64(tc.BlockSize)), humanize.IBytes(uint64(tc.KeySize)), humanize.IBytes(uint64(tc.PointerSize)))
	fmt.Fprintf(stdout, "Calculated order: %d (up to %d keys per block)\n", order, 2*order)

	suite := &bench.Suite{
		Tree:        tc,
		BufferPages: cfg.BufferPages,
		Verify:      cfg.Verify,
		Logger:      log,
	}
	if cfg.ResultsDir != "" {
		store, err := results.Open(cfg.ResultsDir)
		if err != nil {
			return err
		}
		defer store.Close()
		if suite.RunID, err = store.NextRun(); err != nil {
			return err
		}
		suite.Store = store
	}
	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		suite.Registerer = reg
	}

	w := cfg.Bench()
	rep, err := suite.Run(ctx, w)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)
	printReport(out, rep, w, termWidth(stdout))
	if err := out.Flush(); err != nil {
		return err
	}
	if suite.Store != nil {
		log.Info("measurements stored", slog.String("dir", cfg.ResultsDir), slog.Uint64("run", suite.RunID))
	}

	if cfg.CSVPath != "" {
		if err := writeFile(cfg.CSVPath, func(f io.Writer) error {
			return report.NewCSVWriter(f).Record(rep.Measurements...)
		}); err != nil {
			return err
		}
	}
	if cfg.ChartPath != "" {
		if err := report.SaveChart(cfg.ChartPath, fmt.Sprintf("%s workload, order %d", w.Type, order), rep.Measurements); err != nil {
			return err
		}
	}
	if cfg.DOTPath != "" {
		if err := writeFile(cfg.DOTPath, rep.Tree.WriteDOT); err != nil {
			return err
		}
	}
	if reg != nil {
		mfs, err := reg.Gather()
		if err != nil {
			return errors.Wrap(err, "gather metrics")
		}
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(stdout, mf); err != nil {
				return errors.Wrap(err, "write metrics")
			}
		}
	}
	return nil
}

func printReport(out io.Writer, rep *bench.Report, w bench.Workload, width int) {
	fmt.Fprintln(out)
	_ = rep.Tree.Fprint(out)
	fmt.Fprintf(out, "Height of B+ Tree: %d\n", rep.Tree.Height())

	fmt.Fprintf(out, "\nValues for keys less than %d (%d):\n%s\n",
		w.Threshold, len(rep.LessThan), report.FormatValues(rep.LessThan, width))
	fmt.Fprintf(out, "\nValues for keys greater than %d (%d):\n%s\n",
		w.Threshold, len(rep.GreaterThan), report.FormatValues(rep.GreaterThan, width))
	if rep.Found {
		fmt.Fprintf(out, "\nValue for key %d: %d\n", w.Threshold, rep.Value)
	} else {
		fmt.Fprintf(out, "\nKey %d not found\n", w.Threshold)
	}
	fmt.Fprintf(out, "\nValues for keys in [%d, %d] (%d):\n%s\n",
		w.Threshold, w.Threshold+w.Span, len(rep.Range), report.FormatValues(rep.Range, width))

	fmt.Fprintln(out, "\nDisk metrics:")
	_ = report.WriteTable(out, rep.Measurements)
}

// termWidth is the column count of w when it is a terminal, 0 otherwise.
func termWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
