package bptree

import (
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/bptsim/dbms/disk"
)

// ErrDegenerateOrder is returned when a block budget cannot hold even one
// key per half node.
var ErrDegenerateOrder = errors.New("bptree: degenerate order")

// Config is the block budget a node must fit in, in bytes.
type Config struct {
	BlockSize   int // C: bytes per block
	KeySize     int // γ: bytes per key
	PointerSize int // η: bytes per child pointer
}

// DefaultConfig is the budget of the demo experiment: 512-byte blocks,
// 4-byte keys and 8-byte pointers, which gives order 21.
var DefaultConfig = Config{BlockSize: 512, KeySize: 4, PointerSize: 8}

// Order derives the tree order from the budget:
//
//	order = ⌊(C − η) / (2·(γ + η))⌋
//
// so that 2·order keys and 2·order+1 pointers fit in C bytes.
// The result is meaningless unless Validate passes.
func Order(cfg Config) int {
	per := 2 * (cfg.KeySize + cfg.PointerSize)
	if per <= 0 {
		return 0
	}
	return (cfg.BlockSize - cfg.PointerSize) / per
}

// Validate rejects non-positive sizes and budgets whose order is below 1.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.KeySize <= 0 || c.PointerSize <= 0 {
		return errors.Wrapf(ErrDegenerateOrder,
			"sizes must be positive (block=%d key=%d pointer=%d)", c.BlockSize, c.KeySize, c.PointerSize)
	}
	if o := Order(c); o < 1 {
		return errors.Wrapf(ErrDegenerateOrder,
			"order %d from block=%d key=%d pointer=%d", o, c.BlockSize, c.KeySize, c.PointerSize)
	}
	return nil
}

// ─── Options ──────────────────────────────────────────────────────────────────

// Option configures a Tree.
type Option func(*options)

type options struct {
	device disk.Device
	blocks *disk.Allocator
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		device: disk.NewModel(),
		blocks: &disk.Allocator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithDevice charges the tree's block accesses to dev instead of a private
// disk.Model.
func WithDevice(dev disk.Device) Option {
	return func(o *options) { o.device = dev }
}

// WithAllocator draws block ids from a, which may be shared with other trees.
func WithAllocator(a *disk.Allocator) Option {
	return func(o *options) { o.blocks = a }
}

// WithLogger sets the logger used for structural events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}
