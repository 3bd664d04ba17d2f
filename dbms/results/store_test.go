package results

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open("results", WithFS(vfs.NewMem()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStorePutRun(t *testing.T) {
	s := openMem(t)

	want := []Measurement{
		{Run: 1, Seq: 0, Workload: "demo", Phase: "insert", Seeks: 8, Transfers: 59, Results: 50, Height: 2, Latency: 3 * time.Microsecond},
		{Run: 1, Seq: 1, Workload: "demo", Phase: "less-than", Seeks: 3, Transfers: 3, Results: 27, Height: 2},
		{Run: 1, Seq: 2, Workload: "demo", Phase: "greater-than", Seeks: 1, Transfers: 2, Hits: 4, Results: 22, Height: 2},
	}
	// Insert out of order; the store orders by key.
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, s.Put(want[i]))
	}
	require.NoError(t, s.Put(Measurement{Run: 2, Workload: "random", Phase: "insert"}))

	got, err := s.Run(1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = s.Run(3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreRunsAndNextRun(t *testing.T) {
	s := openMem(t)

	next, err := s.NextRun()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	for _, run := range []uint64{3, 1, 3, 7} {
		require.NoError(t, s.Put(Measurement{Run: run, Seq: uint32(run), Phase: "insert"}))
	}
	require.NoError(t, s.Put(Measurement{Run: 3, Seq: 9, Phase: "equality"}))

	runs, err := s.Runs()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 7}, runs)

	next, err = s.NextRun()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), next)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	fs := vfs.NewMem()
	s, err := Open("results", WithFS(fs))
	require.NoError(t, err)
	m := Measurement{Run: 4, Seq: 1, Workload: "sequential", Phase: "range", Seeks: 2, Transfers: 9}
	require.NoError(t, s.Put(m))
	require.NoError(t, s.Close())

	s, err = Open("results", WithFS(fs))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Run(4)
	require.NoError(t, err)
	assert.Equal(t, []Measurement{m}, got)
}

func TestDecodeRejectsCorruptValues(t *testing.T) {
	key := encodeKey(1, 1)
	val := encodeValue(Measurement{Workload: "demo", Phase: "insert"})

	_, err := decode(key[:5], val)
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = decode(key, val[:fixedSize-1])
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = decode(key, val[:len(val)-2])
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = decode(key, append(val, 0xff))
	assert.True(t, errors.Is(err, ErrCorrupt))
}
