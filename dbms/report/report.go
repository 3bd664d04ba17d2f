// Package report renders run measurements as CSV, an aligned text table and
// a bar chart of block accesses per phase.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/btree-query-bench/bptsim/dbms/results"
)

var header = []string{"Run", "Workload", "Phase", "Seeks", "Transfers", "Hits", "Results", "Height", "LatencyNs"}

// ─── CSV ──────────────────────────────────────────────────────────────────────

// CSVWriter appends measurements as CSV rows. The header goes out with the
// first row.
type CSVWriter struct {
	w       *csv.Writer
	started bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Record writes one row per measurement and flushes.
func (c *CSVWriter) Record(ms ...results.Measurement) error {
	if !c.started {
		if err := c.w.Write(header); err != nil {
			return errors.Wrap(err, "report: csv header")
		}
		c.started = true
	}
	for _, m := range ms {
		row := []string{
			strconv.FormatUint(m.Run, 10),
			m.Workload,
			m.Phase,
			strconv.FormatInt(m.Seeks, 10),
			strconv.FormatInt(m.Transfers, 10),
			strconv.FormatInt(m.Hits, 10),
			strconv.Itoa(m.Results),
			strconv.Itoa(m.Height),
			strconv.FormatInt(m.Latency.Nanoseconds(), 10),
		}
		if err := c.w.Write(row); err != nil {
			return errors.Wrapf(err, "report: csv row %s", m.Phase)
		}
	}
	c.w.Flush()
	return errors.Wrap(c.w.Error(), "report: csv flush")
}

// ─── Table ────────────────────────────────────────────────────────────────────

// WriteTable prints the measurements as an aligned table.
func WriteTable(w io.Writer, ms []results.Measurement) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tseeks\ttransfers\thits\tresults\tlatency\t")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			m.Phase,
			humanize.Comma(m.Seeks),
			humanize.Comma(m.Transfers),
			humanize.Comma(m.Hits),
			humanize.Comma(int64(m.Results)),
			m.Latency)
	}
	return tw.Flush()
}

// FormatValues joins vals with spaces, breaking lines before they exceed
// width columns. width <= 0 means a single line.
func FormatValues(vals []int64, width int) string {
	var sb strings.Builder
	col := 0
	for i, v := range vals {
		s := strconv.FormatInt(v, 10)
		if i > 0 {
			if width > 0 && col+1+len(s) > width {
				sb.WriteByte('\n')
				col = 0
			} else {
				sb.WriteByte(' ')
				col++
			}
		}
		sb.WriteString(s)
		col += len(s)
	}
	return sb.String()
}

// ─── Chart ────────────────────────────────────────────────────────────────────

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// Chart plots seeks and transfers per phase as grouped bars.
func Chart(title string, ms []results.Measurement) (*plot.Plot, error) {
	if len(ms) == 0 {
		return nil, errors.New("report: chart: no measurements")
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "block accesses"
	p.Legend.Top = true

	seeks := make(plotter.Values, len(ms))
	transfers := make(plotter.Values, len(ms))
	names := make([]string, len(ms))
	for i, m := range ms {
		seeks[i] = float64(m.Seeks)
		transfers[i] = float64(m.Transfers)
		names[i] = m.Phase
	}

	w := vg.Points(14)
	for i, s := range []struct {
		label string
		vals  plotter.Values
	}{{"seeks", seeks}, {"transfers", transfers}} {
		bars, err := plotter.NewBarChart(s.vals, w)
		if err != nil {
			return nil, errors.Wrapf(err, "report: chart %s", s.label)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(2*i-1) * w / 2
		p.Add(bars)
		p.Legend.Add(s.label, bars)
	}
	p.NominalX(names...)
	return p, nil
}

// SaveChart renders the chart to path; the extension picks the format
// (png, svg, pdf).
func SaveChart(path, title string, ms []results.Measurement) error {
	p, err := Chart(title, ms)
	if err != nil {
		return err
	}
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return errors.Wrapf(err, "report: save chart %s", path)
	}
	return nil
}

// WriteChart renders the chart in format to w.
func WriteChart(w io.Writer, format, title string, ms []results.Measurement) error {
	p, err := Chart(title, ms)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(chartWidth, chartHeight, format)
	if err != nil {
		return errors.Wrapf(err, "report: chart format %s", format)
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "report: write chart")
}
