package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/bptsim/dbms/bench"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())

	w := cfg.Bench()
	assert.Equal(t, bench.Demo, w.Type)
	assert.Equal(t, int64(280), w.Threshold)
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-block-size", "128", "-workload", "random", "-n", "1000", "-seed", "7",
		"-buffer", "16", "-verify", "-log-format", "json",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.BlockSize)
	assert.Equal(t, "random", cfg.Workload)
	assert.Equal(t, 1000, cfg.N)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 16, cfg.BufferPages)
	assert.True(t, cfg.Verify)
	require.NoError(t, cfg.Validate())

	_, err = parseFlags([]string{"-n", "x"}, io.Discard)
	assert.Error(t, err)

	_, err = parseFlags([]string{"extra"}, io.Discard)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 16
	cfg.Workload = "zipf"
	cfg.BufferPages = -1
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	for _, want := range []string{"degenerate order", "zipf", "-buffer", "loud", "-log-format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLogger(t *testing.T) {
	var sb strings.Builder
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	log := cfg.Logger(&sb)

	log.Info("hidden")
	log.Warn("shown", slog.Int("n", 1))
	assert.NotContains(t, sb.String(), "hidden")
	assert.Contains(t, sb.String(), `"msg":"shown"`)
}
