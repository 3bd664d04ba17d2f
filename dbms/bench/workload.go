package bench

import (
	"math/rand"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptsim/dbms/index/bptree"
)

type WorkloadType string

const (
	// Demo is the classic sample: keys 10·i with values 100·i.
	Demo WorkloadType = "demo"
	// Sequential inserts keys 1..n in order.
	Sequential WorkloadType = "sequential"
	// Random inserts n seeded random keys in [0, 10n); duplicates happen.
	Random WorkloadType = "random"
)

// ParseWorkload maps a flag value to a WorkloadType.
func ParseWorkload(s string) (WorkloadType, error) {
	switch w := WorkloadType(s); w {
	case Demo, Sequential, Random:
		return w, nil
	}
	return "", errors.Newf("bench: unknown workload %q (want demo, sequential or random)", s)
}

// Workload describes the data set and the queries run against it.
type Workload struct {
	Type      WorkloadType
	N         int
	Seed      int64
	Threshold int64 // pivot of the less-than, greater-than and equality queries
	Span      int64 // width of the closed range query starting at Threshold
}

// Entries generates the key/value pairs in insertion order.
func (w Workload) Entries() []bptree.Entry {
	out := make([]bptree.Entry, 0, w.N)
	switch w.Type {
	case Demo:
		for i := 1; i <= w.N; i++ {
			out = append(out, bptree.Entry{Key: int64(i) * 10, Value: int64(i) * 100})
		}
	case Sequential:
		for i := 1; i <= w.N; i++ {
			out = append(out, bptree.Entry{Key: int64(i), Value: int64(i) * 10})
		}
	case Random:
		rng := rand.New(rand.NewSource(w.Seed))
		for i := 0; i < w.N; i++ {
			key := int64(rng.Intn(10 * w.N))
			out = append(out, bptree.Entry{Key: key, Value: int64(i)})
		}
	}
	return out
}
