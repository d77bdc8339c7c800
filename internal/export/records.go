package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
)

// RecordCollector exposes node-level KPM records as gauges, evaluated at
// scrape time. Metrics without a value are omitted.
type RecordCollector struct {
	provider *provider.Provider
	desc     *prometheus.Desc
}

var _ prometheus.Collector = (*RecordCollector)(nil)

// NewRecordCollector creates a collector over p. nodeName is attached as a
// constant label.
func NewRecordCollector(p *provider.Provider, nodeName string) *RecordCollector {
	return &RecordCollector{
		provider: p,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "measurement"),
			"Current E2 node level KPM measurement value.",
			[]string{"metric", "type"},
			prometheus.Labels{"node": nodeName},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *RecordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *RecordCollector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.provider.SupportedMetricNames(catalog.LevelNode) {
		recs := c.provider.GetMeasData(name, nil, nil, nil)
		if len(recs) == 0 {
			continue
		}

		v, ok := recs[0].Value()
		if !ok {
			continue
		}

		ch <- prometheus.MustNewConstMetric(
			c.desc,
			prometheus.GaugeValue,
			v,
			name,
			recs[0].Type.String(),
		)
	}
}
