package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

func startHealth(t *testing.T) *HealthMetrics {
	t.Helper()

	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: "127.0.0.1:0",
	})

	ctx := context.Background()
	require.NoError(t, h.Start(ctx))

	t.Cleanup(func() {
		h.Stop()
	})

	// Give server a moment to start serving.
	time.Sleep(50 * time.Millisecond)

	return h
}

func TestHealthMetrics_StartStop(t *testing.T) {
	h := startHealth(t)
	assert.True(t, h.running.Load())
	assert.NotEmpty(t, h.Addr())
}

func TestHealthMetrics_CounterIncrement(t *testing.T) {
	h := startHealth(t)

	h.ReportsReceived.WithLabelValues("scheduler", "http").Inc()
	h.ReportsReceived.WithLabelValues("scheduler", "http").Inc()
	h.ReportsReceived.WithLabelValues("rlc", "valkey").Inc()
	h.PeriodsCollected.Inc()
	h.UEsTracked.Set(5)
	h.CurrentPeriod.Set(12345)
	h.IngestConnected.WithLabelValues("websocket").Set(0)

	url := fmt.Sprintf("http://%s/metrics", h.Addr())

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bodyStr := string(body)
	assert.Contains(t, bodyStr, `e2kpm_reports_received_total{source="scheduler",transport="http"} 2`)
	assert.Contains(t, bodyStr, `e2kpm_reports_received_total{source="rlc",transport="valkey"} 1`)
	assert.Contains(t, bodyStr, "e2kpm_periods_collected_total 1")
	assert.Contains(t, bodyStr, "e2kpm_ues_tracked 5")
	assert.Contains(t, bodyStr, "e2kpm_current_period 12345")
	assert.Contains(t, bodyStr, `e2kpm_ingest_connected{transport="websocket"} 0`)
}

func TestHealthMetrics_HealthzResponse(t *testing.T) {
	h := startHealth(t)

	url := fmt.Sprintf("http://%s/healthz", h.Addr())

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestHealthMetrics_StopIdempotent(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{})

	assert.NoError(t, h.Stop())
	assert.NoError(t, h.Stop())
}

func TestHealthMetrics_AddrBeforeStart(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: ":9999",
	})

	// Before Start, Addr returns the configured address.
	assert.Equal(t, ":9999", h.Addr())
}

func TestHealthMetrics_RegisterDuplicate(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{})

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "extra_gauge", Help: "x"})

	require.NoError(t, h.Register(g))
	require.Error(t, h.Register(g))
}
