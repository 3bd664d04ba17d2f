// Package results keeps the disk-cost measurements of simulation runs in a
// Pebble database so runs can be compared after the process exits.
//
// Key layout (big-endian, so Pebble's byte order is run order):
//
//	[0-7]   uint64  run number
//	[8-11]  uint32  sequence of the measurement within the run
//
// Value layout:
//
//	[0-7]   int64   seeks
//	[8-15]  int64   transfers
//	[16-23] int64   buffer hits
//	[24-27] uint32  result count
//	[28-31] uint32  tree height
//	[32-39] int64   latency in nanoseconds
//	[40+]   uvarint-prefixed workload name, uvarint-prefixed phase name
package results

import (
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// ErrCorrupt is returned when a stored key or value cannot be decoded.
var ErrCorrupt = errors.New("results: corrupt record")

const (
	keySize   = 8 + 4
	fixedSize = 40
)

// Measurement is the cost of one phase of a run.
type Measurement struct {
	Run       uint64
	Seq       uint32
	Workload  string
	Phase     string
	Seeks     int64
	Transfers int64
	Hits      int64
	Results   int
	Height    int
	Latency   time.Duration
}

// Store is a Pebble-backed measurement store.
type Store struct {
	db *pebble.DB
}

// Option configures Open.
type Option func(*pebble.Options)

// WithFS runs the store on fs, e.g. vfs.NewMem() in tests.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options) { o.FS = fs }
}

// Open opens (or creates) a store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	o := &pebble.Options{
		// Measurements are tiny; a small memtable keeps the footprint low.
		MemTableSize:                4 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	for _, opt := range opts {
		opt(o)
	}

	db, err := pebble.Open(dir, o)
	if err != nil {
		return nil, errors.Wrapf(err, "results: open %s", dir)
	}
	return &Store{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores m under (m.Run, m.Seq), replacing any previous record there.
func (s *Store) Put(m Measurement) error {
	if err := s.db.Set(encodeKey(m.Run, m.Seq), encodeValue(m), pebble.Sync); err != nil {
		return errors.Wrapf(err, "results: put run %d seq %d", m.Run, m.Seq)
	}
	return nil
}

// Run returns the measurements of run in sequence order.
func (s *Store) Run(run uint64) ([]Measurement, error) {
	iterOpts := &pebble.IterOptions{LowerBound: runPrefix(run)}
	if run < ^uint64(0) {
		iterOpts.UpperBound = runPrefix(run + 1)
	}
	iter, err := s.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "results: run")
	}

	var out []Measurement
	for valid := iter.First(); valid; valid = iter.Next() {
		m, err := decode(iter.Key(), iter.Value())
		if err != nil {
			_ = iter.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "results: run")
	}
	return out, nil
}

// Runs lists the distinct run numbers present, ascending.
func (s *Store) Runs() ([]uint64, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "results: runs")
	}

	var runs []uint64
	for valid := iter.First(); valid; {
		k := iter.Key()
		if len(k) != keySize {
			_ = iter.Close()
			return nil, errors.Wrapf(ErrCorrupt, "key length %d", len(k))
		}
		run := binary.BigEndian.Uint64(k[:8])
		runs = append(runs, run)
		if run == ^uint64(0) {
			break
		}
		// Skip the rest of this run.
		valid = iter.SeekGE(runPrefix(run + 1))
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "results: runs")
	}
	return runs, nil
}

// NextRun returns one past the largest stored run, or 1 for an empty store.
func (s *Store) NextRun() (uint64, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return 0, errors.Wrap(err, "results: next run")
	}
	next := uint64(1)
	if iter.Last() {
		k := iter.Key()
		if len(k) != keySize {
			_ = iter.Close()
			return 0, errors.Wrapf(ErrCorrupt, "key length %d", len(k))
		}
		next = binary.BigEndian.Uint64(k[:8]) + 1
	}
	if err := iter.Close(); err != nil {
		return 0, errors.Wrap(err, "results: next run")
	}
	return next, nil
}

// ─── Encoding ─────────────────────────────────────────────────────────────────

func runPrefix(run uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, run)
	return b
}

func encodeKey(run uint64, seq uint32) []byte {
	b := make([]byte, keySize)
	binary.BigEndian.PutUint64(b[0:8], run)
	binary.BigEndian.PutUint32(b[8:12], seq)
	return b
}

func encodeValue(m Measurement) []byte {
	b := make([]byte, fixedSize, fixedSize+2*binary.MaxVarintLen64+len(m.Workload)+len(m.Phase))
	binary.BigEndian.PutUint64(b[0:8], uint64(m.Seeks))
	binary.BigEndian.PutUint64(b[8:16], uint64(m.Transfers))
	binary.BigEndian.PutUint64(b[16:24], uint64(m.Hits))
	binary.BigEndian.PutUint32(b[24:28], uint32(m.Results))
	binary.BigEndian.PutUint32(b[28:32], uint32(m.Height))
	binary.BigEndian.PutUint64(b[32:40], uint64(m.Latency))
	b = binary.AppendUvarint(b, uint64(len(m.Workload)))
	b = append(b, m.Workload...)
	b = binary.AppendUvarint(b, uint64(len(m.Phase)))
	b = append(b, m.Phase...)
	return b
}

func decode(key, val []byte) (Measurement, error) {
	if len(key) != keySize {
		return Measurement{}, errors.Wrapf(ErrCorrupt, "key length %d", len(key))
	}
	if len(val) < fixedSize {
		return Measurement{}, errors.Wrapf(ErrCorrupt, "value length %d", len(val))
	}
	m := Measurement{
		Run:       binary.BigEndian.Uint64(key[0:8]),
		Seq:       binary.BigEndian.Uint32(key[8:12]),
		Seeks:     int64(binary.BigEndian.Uint64(val[0:8])),
		Transfers: int64(binary.BigEndian.Uint64(val[8:16])),
		Hits:      int64(binary.BigEndian.Uint64(val[16:24])),
		Results:   int(binary.BigEndian.Uint32(val[24:28])),
		Height:    int(binary.BigEndian.Uint32(val[28:32])),
		Latency:   time.Duration(binary.BigEndian.Uint64(val[32:40])),
	}

	rest := val[fixedSize:]
	var err error
	if m.Workload, rest, err = readString(rest); err != nil {
		return Measurement{}, err
	}
	if m.Phase, rest, err = readString(rest); err != nil {
		return Measurement{}, err
	}
	if len(rest) != 0 {
		return Measurement{}, errors.Wrapf(ErrCorrupt, "%d trailing bytes", len(rest))
	}
	return m, nil
}

func readString(b []byte) (string, []byte, error) {
	n, w := binary.Uvarint(b)
	if w <= 0 || uint64(len(b)-w) < n {
		return "", nil, errors.Wrap(ErrCorrupt, "string field")
	}
	// Copy out: Pebble reuses the value buffer on Next().
	return string(b[w : w+int(n)]), b[w+int(n):], nil
}
