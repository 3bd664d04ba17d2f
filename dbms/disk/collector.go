package disk

import "github.com/prometheus/client_golang/prometheus"

const (
	seeksMetric     = "bptsim_disk_seeks_total"
	transfersMetric = "bptsim_disk_transfers_total"
	hitsMetric      = "bptsim_disk_buffer_hits_total"
)

// collector exposes a Device's counters. The tree name is a const label so
// several trees can share one registry.
type collector struct {
	dev       Device
	seeks     *prometheus.Desc
	transfers *prometheus.Desc
	hits      *prometheus.Desc
}

// NewCollector returns a prometheus.Collector reporting dev's counters,
// labelled with tree.
func NewCollector(tree string, dev Device) prometheus.Collector {
	labels := prometheus.Labels{"tree": tree}
	return &collector{
		dev:       dev,
		seeks:     prometheus.NewDesc(seeksMetric, "Simulated seeks charged since the last reset.", nil, labels),
		transfers: prometheus.NewDesc(transfersMetric, "Simulated block transfers charged since the last reset.", nil, labels),
		hits:      prometheus.NewDesc(hitsMetric, "Block accesses served by the buffer pool since the last reset.", nil, labels),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.seeks
	ch <- c.transfers
	ch <- c.hits
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := c.dev.Metrics()
	// Reset drops the counters to zero; scrapers treat that as a counter reset.
	ch <- prometheus.MustNewConstMetric(c.seeks, prometheus.CounterValue, float64(m.Seeks))
	ch <- prometheus.MustNewConstMetric(c.transfers, prometheus.CounterValue, float64(m.Transfers))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(m.Hits))
}
