package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/clock"
	"github.com/ethpandaops/e2kpm/internal/collector"
	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/ingest"
	"github.com/ethpandaops/e2kpm/internal/ingest/httpapi"
	"github.com/ethpandaops/e2kpm/internal/ingest/stream"
	"github.com/ethpandaops/e2kpm/internal/ingest/wsfeed"
	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
	"github.com/ethpandaops/e2kpm/internal/kpm/ueid"
	"github.com/ethpandaops/e2kpm/internal/migrate"
)

const shutdownTimeout = 5 * time.Second

// Agent is the top-level orchestrator for e2kpm.
type Agent interface {
	// Start initializes all components and begins ingesting and collecting.
	Start(ctx context.Context) error
	// Stop shuts down all components gracefully.
	Stop() error
}

// source is a producer transport.
type source interface {
	Start(ctx context.Context) error
	Stop() error
}

type apiSource struct {
	*httpapi.Server
}

func (s apiSource) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.Server.Stop(ctx)
}

type agent struct {
	log      logrus.FieldLogger
	cfg      *Config
	health   *export.HealthMetrics
	acc      *telemetry.Accumulator
	provider *provider.Provider
	ingester *ingest.Ingester
	clock    clock.Clock
	runner   *collector.Runner
	api      *httpapi.Server
	sources  []source
	started  []source

	cancel context.CancelFunc
}

// New creates a new Agent.
func New(log logrus.FieldLogger, cfg *Config) (Agent, error) {
	health := export.NewHealthMetrics(log, cfg.Health)
	acc := telemetry.New(log)

	var (
		translator ueid.Translator = ueid.IndexTranslator{}
		ingestOpts []ingest.Option
	)

	if cfg.UEs.Mode == UEModeRNTI {
		rntis := ueid.NewMapTranslator()
		translator = rntis

		ingestOpts = append(ingestOpts, ingest.WithSchedulerHook(func(m telemetry.SchedulerCellMetrics) {
			rntis.BindRNTIs(m)
		}))
	}

	sources := make([]catalog.Source, 0, 2)
	if cfg.Sources.Scheduler {
		sources = append(sources, catalog.SourceScheduler)
	}

	if cfg.Sources.RLC {
		sources = append(sources, catalog.SourceRLC)
	}

	p := provider.New(log, acc,
		provider.WithSources(sources...),
		provider.WithTranslator(translator),
	)

	clk, err := clock.New(log, cfg.Period.Origin, cfg.Period.Duration, cfg.Period.PeriodsPerReport)
	if err != nil {
		return nil, fmt.Errorf("creating clock: %w", err)
	}

	coll, err := collector.New(log, p, acc, cfg.Metrics, health)
	if err != nil {
		return nil, fmt.Errorf("creating collector: %w", err)
	}

	exporters := make([]collector.Exporter, 0, 2)

	if cfg.Export.ClickHouse.Enabled {
		writer := export.NewClickHouseWriter(log, cfg.Export.ClickHouse.ClickHouseConfig)
		exporters = append(exporters, collector.NewClickHouseExporter(log, writer, health))
	}

	if cfg.Export.HTTP.Enabled {
		e, err := collector.NewHTTPExporter(log, cfg.Export.HTTP, health)
		if err != nil {
			return nil, fmt.Errorf("creating http exporter: %w", err)
		}

		exporters = append(exporters, e)
	}

	if cfg.Export.Prometheus.Enabled {
		if err := health.Register(export.NewRecordCollector(p, cfg.NodeName)); err != nil {
			return nil, fmt.Errorf("registering measurement gauges: %w", err)
		}
	}

	ing := ingest.NewIngester(log, acc, health, ingestOpts...)

	a := &agent{
		log:      log.WithField("component", "agent"),
		cfg:      cfg,
		health:   health,
		acc:      acc,
		provider: p,
		ingester: ing,
		clock:    clk,
		runner: collector.NewRunner(
			log, coll, clk, cfg.NodeName, cfg.Metrics.QueueSize, health, exporters...,
		),
		sources: make([]source, 0, 3),
	}

	if cfg.Ingest.HTTP.Enabled {
		a.api = httpapi.NewServer(log, cfg.Ingest.HTTP, ing, p, health)
		a.sources = append(a.sources, apiSource{a.api})
	}

	if cfg.Ingest.Valkey.Enabled {
		a.sources = append(a.sources, stream.New(log, cfg.Ingest.Valkey, ing, health))
	}

	if cfg.Ingest.Websocket.Enabled {
		a.sources = append(a.sources, wsfeed.New(log, cfg.Ingest.Websocket, ing, health))
	}

	return a, nil
}

func (a *agent) Start(ctx context.Context) error {
	started := time.Now()

	ctx, a.cancel = context.WithCancel(ctx)

	// 1. Start health metrics server.
	if err := a.health.Start(ctx); err != nil {
		return fmt.Errorf("starting health metrics: %w", err)
	}

	a.phase("health", started)

	// 2. Apply the ClickHouse schema when asked to.
	if a.cfg.Export.ClickHouse.Enabled && a.cfg.Export.ClickHouse.Migrate {
		phaseStart := time.Now()

		m := migrate.New(a.log, migrate.DSN(a.cfg.Export.ClickHouse.ClickHouseConfig))
		if err := m.Up(ctx); err != nil {
			return fmt.Errorf("migrating clickhouse schema: %w", err)
		}

		a.phase("migrate", phaseStart)
	}

	// 3. Start exporters and register the period callback before the clock
	// ticks.
	phaseStart := time.Now()

	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("starting collection runner: %w", err)
	}

	a.phase("exporters", phaseStart)

	// 4. Start the clock.
	if err := a.clock.Start(ctx); err != nil {
		return fmt.Errorf("starting clock: %w", err)
	}

	a.health.CurrentPeriod.Set(float64(a.clock.CurrentPeriod()))

	// 5. Open producer transports last so nothing is ingested before
	// collection runs.
	phaseStart = time.Now()

	for _, s := range a.sources {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("starting ingest source: %w", err)
		}

		a.started = append(a.started, s)
	}

	a.phase("ingest", phaseStart)
	a.phase("total", started)

	a.log.WithFields(logrus.Fields{
		"node":    a.cfg.NodeName,
		"period":  a.clock.Period(),
		"sources": len(a.started),
		"metrics": len(a.provider.SupportedMetricNames(catalog.LevelNode)),
	}).Info("Agent fully started")

	return nil
}

func (a *agent) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	// Stop in reverse order.
	for i := len(a.started) - 1; i >= 0; i-- {
		if err := a.started[i].Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping ingest source")
		}
	}

	a.started = nil

	if a.clock != nil {
		if err := a.clock.Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping clock")
		}
	}

	// Flushes the in-progress period to the exporters.
	if err := a.runner.Stop(); err != nil {
		a.log.WithError(err).Error("Error stopping collection runner")
	}

	if a.health != nil {
		if err := a.health.Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping health metrics")
		}
	}

	return nil
}

func (a *agent) phase(name string, since time.Time) {
	a.health.AgentStartDuration.WithLabelValues(name).Set(time.Since(since).Seconds())
}
