package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "e2kpm"

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics for agent health.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	// Ingest.
	ReportsReceived  *prometheus.CounterVec // source, transport
	ReportsRejected  *prometheus.CounterVec // transport, reason
	ReportsDropped   prometheus.Gauge       // out-of-arena reports seen by the accumulator
	IngestConnected  *prometheus.GaugeVec   // transport
	IngestReconnects *prometheus.CounterVec // transport

	// Telemetry state.
	CellsTracked  prometheus.Gauge
	UEsTracked    prometheus.Gauge
	CurrentPeriod prometheus.Gauge

	// Collection.
	PeriodsCollected         prometheus.Counter
	CollectDuration          prometheus.Histogram
	RowsCollected            *prometheus.CounterVec // level, record_type
	UnsupportedSubscriptions prometheus.Counter

	// Export.
	ExportErrors        prometheus.Counter
	ExportBatchErrors   *prometheus.CounterVec   // exporter, error_type
	ExportBatchSize     *prometheus.HistogramVec // exporter
	ExportDuration      *prometheus.HistogramVec // exporter
	ClickHouseConnected *prometheus.GaugeVec     // exporter

	// Query API.
	QueryRequests *prometheus.CounterVec // route, status

	AgentStartDuration *prometheus.GaugeVec // phase

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		ReportsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_received_total",
				Help:      "Total DU telemetry reports ingested by source and transport.",
			},
			[]string{"source", "transport"},
		),
		ReportsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_rejected_total",
				Help:      "Total DU telemetry reports rejected before ingest.",
			},
			[]string{"transport", "reason"},
		),
		ReportsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reports_dropped",
			Help:      "Reports dropped by the accumulator for out-of-range UE or bearer ids.",
		}),
		IngestConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ingest_connected",
				Help:      "Whether a streaming ingest transport is connected (1=yes, 0=no).",
			},
			[]string{"transport"},
		),
		IngestReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_reconnects_total",
				Help:      "Total reconnect attempts by ingest transport.",
			},
			[]string{"transport"},
		),
		CellsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cells_tracked",
			Help:      "Number of cells with scheduler state.",
		}),
		UEsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ues_tracked",
			Help:      "Number of UEs with scheduler or RLC state.",
		}),
		CurrentPeriod: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_period",
			Help:      "Current granularity period number.",
		}),
		PeriodsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periods_collected_total",
			Help:      "Total granularity periods collected.",
		}),
		CollectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collect_duration_seconds",
			Help:      "Time to evaluate every subscription for one period.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}, // 100us-100ms
		}),
		RowsCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_collected_total",
				Help:      "Total measurement rows collected by level and record type.",
			},
			[]string{"level", "record_type"},
		),
		UnsupportedSubscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsupported_subscriptions_total",
			Help:      "Configured metric subscriptions skipped as unsupported.",
		}),
		ExportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_errors_total",
			Help:      "Total export errors across all exporters.",
		}),
		ExportBatchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_batch_errors_total",
				Help:      "Total export batch errors by exporter and error type.",
			},
			[]string{"exporter", "error_type"},
		),
		ExportBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_batch_size",
				Help:      "Number of rows per exported batch.",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"exporter"},
		),
		ExportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Time to export one batch by exporter.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, // 1ms-1s
			},
			[]string{"exporter"},
		),
		ClickHouseConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "clickhouse_connected",
				Help:      "Whether ClickHouse connection is established (1=yes, 0=no).",
			},
			[]string{"exporter"},
		),
		QueryRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total HTTP API requests by route and status code.",
			},
			[]string{"route", "status"},
		),
		AgentStartDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "agent_start_duration_seconds",
				Help:      "Duration of agent startup phases.",
			},
			[]string{"phase"},
		),
	}

	reg.MustRegister(
		h.ReportsReceived,
		h.ReportsRejected,
		h.ReportsDropped,
		h.IngestConnected,
		h.IngestReconnects,
		h.CellsTracked,
		h.UEsTracked,
		h.CurrentPeriod,
		h.PeriodsCollected,
		h.CollectDuration,
		h.RowsCollected,
		h.UnsupportedSubscriptions,
		h.ExportErrors,
		h.ExportBatchErrors,
		h.ExportBatchSize,
		h.ExportDuration,
		h.ClickHouseConnected,
		h.QueryRequests,
		h.AgentStartDuration,
	)

	return h
}

// Register adds an extra collector to the health registry.
func (h *HealthMetrics) Register(c prometheus.Collector) error {
	if err := h.registry.Register(c); err != nil {
		return fmt.Errorf("registering collector: %w", err)
	}

	return nil
}

// Handler returns the /metrics handler for the health registry.
func (h *HealthMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop gracefully shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
