// Package bench runs a workload against a simulated B+ tree and measures
// every query phase in isolation: the device is reset before each phase and
// read right after it.
package bench

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/btree-query-bench/bptsim/dbms/disk"
	"github.com/btree-query-bench/bptsim/dbms/index"
	"github.com/btree-query-bench/bptsim/dbms/index/bptree"
	"github.com/btree-query-bench/bptsim/dbms/index/listindex"
	"github.com/btree-query-bench/bptsim/dbms/results"
)

// ErrMismatch marks a query whose tree answer differs from the reference.
var ErrMismatch = errors.New("bench: tree disagrees with reference index")

// Phase names, in the order Run executes them.
const (
	PhaseInsert      = "insert"
	PhaseLessThan    = "less-than"
	PhaseGreaterThan = "greater-than"
	PhaseEquality    = "equality"
	PhaseRange       = "range"
)

// Suite holds everything a run needs besides the workload.
type Suite struct {
	Tree        bptree.Config
	BufferPages int  // >0 puts a buffer pool of that many blocks in front of the disk
	Verify      bool // compare every answer against listindex

	Store      *results.Store        // optional: persist measurements
	RunID      uint64                // run number used for Store keys
	Registerer prometheus.Registerer // optional: export the device counters
	Logger     *slog.Logger
}

// Report is the outcome of one run.
type Report struct {
	Tree         *bptree.Tree
	Measurements []results.Measurement

	LessThan    []int64
	GreaterThan []int64
	Found       bool
	Value       int64
	Range       []int64
}

// Run builds a tree from w and measures each phase.
func (s *Suite) Run(ctx context.Context, w Workload) (*Report, error) {
	log := s.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var dev disk.Device = disk.NewModel()
	if s.BufferPages > 0 {
		buf, err := disk.NewBuffered(dev, s.BufferPages)
		if err != nil {
			return nil, err
		}
		defer buf.Close()
		dev = buf
	}
	if s.Registerer != nil {
		if err := s.Registerer.Register(disk.NewCollector(string(w.Type), dev)); err != nil {
			return nil, errors.Wrap(err, "bench: register collector")
		}
	}

	tree, err := bptree.New(s.Tree, bptree.WithDevice(dev), bptree.WithLogger(log))
	if err != nil {
		return nil, err
	}
	var ref *listindex.ListIndex
	if s.Verify {
		ref = listindex.NewListIndex()
	}

	rep := &Report{Tree: tree}
	measure := func(phase string, fn func() int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tree.ResetDiskMetrics()
		start := time.Now()
		n := fn()
		s.record(rep, w, phase, n, time.Since(start), log)
		return nil
	}

	// 1. Load
	entries := w.Entries()
	if err := measure(PhaseInsert, func() int {
		for i, e := range entries {
			if i%1024 == 0 && ctx.Err() != nil {
				return i
			}
			tree.Insert(e.Key, e.Value)
			if ref != nil {
				ref.Insert(e.Key, e.Value)
			}
		}
		return len(entries)
	}); err != nil {
		return nil, err
	}

	// 2. Queries around the threshold
	phases := []struct {
		name string
		run  func() int
	}{
		{PhaseLessThan, func() int {
			rep.LessThan = tree.SearchLessThan(w.Threshold)
			return len(rep.LessThan)
		}},
		{PhaseGreaterThan, func() int {
			rep.GreaterThan = tree.SearchGreaterThan(w.Threshold)
			return len(rep.GreaterThan)
		}},
		{PhaseEquality, func() int {
			rep.Value, rep.Found = tree.Search(w.Threshold)
			if rep.Found {
				return 1
			}
			return 0
		}},
		{PhaseRange, func() int {
			rep.Range, _ = index.Collect(tree.Range(w.Threshold, w.Threshold+w.Span))
			return len(rep.Range)
		}},
	}
	for _, p := range phases {
		if err := measure(p.name, p.run); err != nil {
			return nil, err
		}
	}

	if ref != nil {
		if err := verify(rep, ref, w); err != nil {
			return nil, err
		}
	}
	if s.Store != nil {
		for _, m := range rep.Measurements {
			if err := s.Store.Put(m); err != nil {
				return nil, err
			}
		}
	}
	return rep, nil
}

func (s *Suite) record(rep *Report, w Workload, phase string, n int, elapsed time.Duration, log *slog.Logger) {
	m := rep.Tree.DiskMetrics()
	meas := results.Measurement{
		Run:       s.RunID,
		Seq:       uint32(len(rep.Measurements)),
		Workload:  string(w.Type),
		Phase:     phase,
		Seeks:     m.Seeks,
		Transfers: m.Transfers,
		Hits:      m.Hits,
		Results:   n,
		Height:    rep.Tree.Height(),
		Latency:   elapsed,
	}
	rep.Measurements = append(rep.Measurements, meas)
	log.Info("phase complete",
		slog.String("workload", meas.Workload),
		slog.String("phase", phase),
		slog.Int("results", n),
		slog.Int64("seeks", m.Seeks),
		slog.Int64("transfers", m.Transfers),
		slog.Int64("hits", m.Hits),
		slog.Duration("latency", elapsed))
}

// verify compares the tree's answers with the reference index. Range answers
// are compared as multisets: with duplicate keys the leaf chain order of
// equal keys depends on split history.
func verify(rep *Report, ref *listindex.ListIndex, w Workload) error {
	check := func(phase string, got, want []int64) error {
		if !sameValues(got, want) {
			return errors.Wrapf(ErrMismatch, "%s %d: got %d values, want %d", phase, w.Threshold, len(got), len(want))
		}
		return nil
	}
	if err := check(PhaseLessThan, rep.LessThan, ref.SearchLessThan(w.Threshold)); err != nil {
		return err
	}
	if err := check(PhaseGreaterThan, rep.GreaterThan, ref.SearchGreaterThan(w.Threshold)); err != nil {
		return err
	}
	want, _ := index.Collect(ref.Range(w.Threshold, w.Threshold+w.Span))
	if err := check(PhaseRange, rep.Range, want); err != nil {
		return err
	}
	equal := ref.Values(w.Threshold)
	if rep.Found != (len(equal) > 0) || (rep.Found && !slices.Contains(equal, rep.Value)) {
		return errors.Wrapf(ErrMismatch, "%s %d: got (%d, %t)", PhaseEquality, w.Threshold, rep.Value, rep.Found)
	}
	return nil
}

func sameValues(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
