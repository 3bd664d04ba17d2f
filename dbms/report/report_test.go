package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/bptsim/dbms/results"
)

var sample = []results.Measurement{
	{Run: 3, Seq: 0, Workload: "demo", Phase: "insert", Seeks: 8, Transfers: 59, Results: 50, Height: 2, Latency: 12 * time.Microsecond},
	{Run: 3, Seq: 1, Workload: "demo", Phase: "less-than", Seeks: 3, Transfers: 3, Results: 27, Height: 2},
	{Run: 3, Seq: 2, Workload: "demo", Phase: "greater-than", Seeks: 1, Transfers: 2, Hits: 1, Results: 22, Height: 2},
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	require.NoError(t, w.Record(sample[0]))
	require.NoError(t, w.Record(sample[1:]...))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"3", "demo", "insert", "8", "59", "0", "50", "2", "12000"}, rows[1])
	assert.Equal(t, []string{"3", "demo", "greater-than", "1", "2", "1", "22", "2", "0"}, rows[3])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sample))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "transfers")
	assert.Equal(t, []string{"insert", "8", "59", "0", "50", "12µs"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"less-than", "3", "3", "0", "27", "0s"}, strings.Fields(lines[2]))
}

func TestFormatValues(t *testing.T) {
	vals := []int64{100, 200, 300, 4000, 5}
	assert.Equal(t, "100 200 300 4000 5", FormatValues(vals, 0))
	assert.Equal(t, "100 200\n300 4000\n5", FormatValues(vals, 8))
	assert.Equal(t, "", FormatValues(nil, 10))
	assert.Equal(t, "12345", FormatValues([]int64{12345}, 2))
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, "png", "demo", sample))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	_, err := Chart("empty", nil)
	assert.Error(t, err)
}
