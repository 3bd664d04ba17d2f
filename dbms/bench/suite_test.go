package bench

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/bptsim/dbms/index/bptree"
	"github.com/btree-query-bench/bptsim/dbms/index/listindex"
	"github.com/btree-query-bench/bptsim/dbms/results"
)

var demo = Workload{Type: Demo, N: 50, Threshold: 280, Span: 30}

func TestParseWorkload(t *testing.T) {
	for _, s := range []string{"demo", "sequential", "random"} {
		w, err := ParseWorkload(s)
		require.NoError(t, err)
		assert.Equal(t, WorkloadType(s), w)
	}
	_, err := ParseWorkload("zipf")
	assert.Error(t, err)
}

func TestEntries(t *testing.T) {
	e := demo.Entries()
	require.Len(t, e, 50)
	assert.Equal(t, bptree.Entry{Key: 10, Value: 100}, e[0])
	assert.Equal(t, bptree.Entry{Key: 500, Value: 5000}, e[49])

	s := Workload{Type: Sequential, N: 3}.Entries()
	assert.Equal(t, []bptree.Entry{{Key: 1, Value: 10}, {Key: 2, Value: 20}, {Key: 3, Value: 30}}, s)

	r1 := Workload{Type: Random, N: 100, Seed: 9}.Entries()
	r2 := Workload{Type: Random, N: 100, Seed: 9}.Entries()
	assert.Equal(t, r1, r2)
	for _, e := range r1 {
		assert.GreaterOrEqual(t, e.Key, int64(0))
		assert.Less(t, e.Key, int64(1000))
	}
}

func TestRunDemo(t *testing.T) {
	s := &Suite{Tree: bptree.DefaultConfig, Verify: true}
	rep, err := s.Run(context.Background(), demo)
	require.NoError(t, err)

	assert.Len(t, rep.LessThan, 27)
	assert.Len(t, rep.GreaterThan, 22)
	assert.True(t, rep.Found)
	assert.Equal(t, int64(2800), rep.Value)
	assert.Equal(t, []int64{2800, 2900, 3000, 3100}, rep.Range)

	phases := make([]string, len(rep.Measurements))
	for i, m := range rep.Measurements {
		phases[i] = m.Phase
		assert.Equal(t, uint32(i), m.Seq)
		assert.Equal(t, 2, m.Height)
	}
	assert.Equal(t, []string{PhaseInsert, PhaseLessThan, PhaseGreaterThan, PhaseEquality, PhaseRange}, phases)

	byPhase := func(p string) results.Measurement { return rep.Measurements[indexOf(phases, p)] }
	assert.Equal(t, int64(59), byPhase(PhaseInsert).Transfers)
	assert.Equal(t, int64(8), byPhase(PhaseInsert).Seeks)
	assert.Equal(t, int64(3), byPhase(PhaseLessThan).Seeks)
	assert.Equal(t, 27, byPhase(PhaseLessThan).Results)
	assert.Equal(t, int64(2), byPhase(PhaseGreaterThan).Transfers)
	assert.Equal(t, 1, byPhase(PhaseEquality).Results)
}

func indexOf(s []string, v string) int {
	for i := range s {
		if s[i] == v {
			return i
		}
	}
	return -1
}

func TestRunRandomVerifies(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		s := &Suite{Tree: bptree.Config{BlockSize: 128, KeySize: 4, PointerSize: 8}, Verify: true}
		_, err := s.Run(context.Background(), Workload{Type: Random, N: 2000, Seed: seed, Threshold: 7000, Span: 500})
		require.NoError(t, err, "seed %d", seed)
	}
}

func TestRunWithBufferPool(t *testing.T) {
	s := &Suite{Tree: bptree.DefaultConfig, BufferPages: 8}
	rep, err := s.Run(context.Background(), demo)
	require.NoError(t, err)

	ins := rep.Measurements[0]
	// 59 accesses in total; the pool absorbs some of them.
	assert.Equal(t, int64(59), ins.Hits+ins.Transfers)
}

func TestRunPersistsAndExports(t *testing.T) {
	store, err := results.Open("results", results.WithFS(vfs.NewMem()))
	require.NoError(t, err)
	defer store.Close()

	reg := prometheus.NewRegistry()
	s := &Suite{Tree: bptree.DefaultConfig, Store: store, RunID: 7, Registerer: reg}
	rep, err := s.Run(context.Background(), demo)
	require.NoError(t, err)

	stored, err := store.Run(7)
	require.NoError(t, err)
	assert.Equal(t, rep.Measurements, stored)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 3)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Suite{Tree: bptree.DefaultConfig}
	_, err := s.Run(ctx, demo)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunRejectsDegenerateTree(t *testing.T) {
	s := &Suite{Tree: bptree.Config{BlockSize: 16, KeySize: 4, PointerSize: 8}}
	_, err := s.Run(context.Background(), demo)
	assert.True(t, errors.Is(err, bptree.ErrDegenerateOrder))
}

func TestVerifyReportsMismatch(t *testing.T) {
	ref := listindex.NewListIndex()
	for _, e := range demo.Entries() {
		ref.Insert(e.Key, e.Value)
	}
	rep := &Report{
		LessThan:    ref.SearchLessThan(280)[1:],
		GreaterThan: ref.SearchGreaterThan(280),
	}
	err := verify(rep, ref, demo)
	assert.True(t, errors.Is(err, ErrMismatch))
}
