package export

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

func scrape(t *testing.T, h *HealthMetrics) map[string]map[string]float64 {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	var parser expfmt.TextParser

	families, err := parser.TextToMetricFamilies(rec.Body)
	require.NoError(t, err)

	out := make(map[string]map[string]float64)

	mf, ok := families["e2kpm_measurement"]
	if !ok {
		return out
	}

	for _, m := range mf.GetMetric() {
		labels := make(map[string]string, len(m.GetLabel()))
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}

		assert.Equal(t, "du-1", labels["node"])

		if out[labels["type"]] == nil {
			out[labels["type"]] = make(map[string]float64)
		}

		out[labels["type"]][labels["metric"]] = m.GetGauge().GetValue()
	}

	return out
}

func TestRecordCollector_SkipsNoValue(t *testing.T) {
	acc := telemetry.New(testLog())
	p := provider.New(testLog(), acc)

	h := NewHealthMetrics(testLog(), HealthConfig{})
	require.NoError(t, h.Register(NewRecordCollector(p, "du-1")))

	got := scrape(t, h)

	// Before any telemetry every value is zero or no-value.
	for _, byName := range got {
		for name, v := range byName {
			assert.Zero(t, v, name)
		}
	}

	assert.NotContains(t, got["real"], catalog.MetricRlcDelayUl)
	assert.NotContains(t, got["real"], catalog.MetricAirIfDelayUl)
	assert.Contains(t, got["integer"], catalog.MetricPrbAvailDl)
}

func TestRecordCollector_ReportsValues(t *testing.T) {
	acc := telemetry.New(testLog())
	p := provider.New(testLog(), acc)

	acc.IngestScheduler(telemetry.SchedulerCellMetrics{
		PCI:        1,
		NofPRBs:    52,
		NofDLSlots: 14,
		NofULSlots: 14,
		UEs: []telemetry.SchedulerUEMetrics{
			{UEIndex: 0, PCI: 1, DLBitrateKbps: 1000},
			{UEIndex: 1, PCI: 1, DLBitrateKbps: 3000},
		},
	})

	h := NewHealthMetrics(testLog(), HealthConfig{})
	require.NoError(t, h.Register(NewRecordCollector(p, "du-1")))

	got := scrape(t, h)

	assert.InDelta(t, 52*14, got["integer"][catalog.MetricPrbAvailDl], 1e-9)
	assert.InDelta(t, 2000, got["real"][catalog.MetricUEThpDl], 1e-9)
	assert.InDelta(t, 2, got["real"][catalog.MetricRRCConnMean], 1e-9)
}
