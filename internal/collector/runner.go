package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/clock"
	"github.com/ethpandaops/e2kpm/internal/export"
)

// Runner collects a batch when each granularity period closes and fans
// it out to the exporters.
type Runner struct {
	log       logrus.FieldLogger
	collector *Collector
	clock     clock.Clock
	exporters []Exporter
	health    *export.HealthMetrics
	nodeName  string

	periodCh chan uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRunner creates a runner. queueSize bounds pending period ticks.
func NewRunner(
	log logrus.FieldLogger,
	c *Collector,
	clk clock.Clock,
	nodeName string,
	queueSize int,
	health *export.HealthMetrics,
	exporters ...Exporter,
) *Runner {
	if queueSize <= 0 {
		queueSize = 16
	}

	return &Runner{
		log:       log.WithField("component", "runner"),
		collector: c,
		clock:     clk,
		exporters: exporters,
		health:    health,
		nodeName:  nodeName,
		periodCh:  make(chan uint64, queueSize),
		done:      make(chan struct{}),
	}
}

// Start starts the exporters and the collection loop. Exporters that fail
// to start are stopped again in reverse order.
func (r *Runner) Start(ctx context.Context) error {
	for i, e := range r.exporters {
		if err := e.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := r.exporters[j].Stop(); stopErr != nil {
					r.log.WithError(stopErr).WithField("exporter", r.exporters[j].Name()).
						Warn("Failed to stop exporter")
				}
			}

			return fmt.Errorf("starting %s exporter: %w", e.Name(), err)
		}
	}

	ctx, r.cancel = context.WithCancel(ctx)

	r.clock.OnPeriodChanged(r.onPeriodChanged)

	go r.runLoop(ctx)

	r.log.WithField("exporters", len(r.exporters)).Info("Collection runner started")

	return nil
}

// Stop ends the loop, flushes the in-progress period and stops the
// exporters.
func (r *Runner) Stop() error {
	if r.cancel == nil {
		return nil
	}

	r.cancel()
	<-r.done

	r.Flush(context.Background(), r.clock.CurrentPeriod())

	var firstErr error

	for i := len(r.exporters) - 1; i >= 0; i-- {
		if err := r.exporters[i].Stop(); err != nil {
			r.log.WithError(err).WithField("exporter", r.exporters[i].Name()).
				Error("Failed to stop exporter")

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	r.cancel = nil

	return firstErr
}

func (r *Runner) onPeriodChanged(period uint64) {
	select {
	case r.periodCh <- period:
	default:
		r.log.WithField("period", period).Warn("Period queue full, skipping collection")
	}
}

func (r *Runner) runLoop(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case period := <-r.periodCh:
			// The tick announces the new period; collect the one that closed.
			if period == 0 {
				continue
			}

			r.Flush(ctx, period-1)
		}
	}
}

// Flush collects the given period and exports it. Exporter failures are
// logged and counted; they never stop the loop.
func (r *Runner) Flush(ctx context.Context, period uint64) Batch {
	info := PeriodInfo{
		Number:    period,
		StartTime: r.clock.PeriodStartTime(period),
		Duration:  r.clock.Period(),
		Report:    r.clock.ReportOf(period),
	}

	batch := r.collector.Collect(info, BatchMetadata{
		NodeName:    r.nodeName,
		UpdatedTime: time.Now(),
	})

	for _, e := range r.exporters {
		started := time.Now()

		err := e.Export(ctx, batch)

		if r.health != nil {
			r.health.ExportDuration.WithLabelValues(e.Name()).Observe(time.Since(started).Seconds())
		}

		if err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"exporter": e.Name(),
				"period":   period,
				"rows":     batch.Len(),
			}).Error("Export failed")

			if r.health != nil {
				r.health.ExportErrors.Inc()
				r.health.ExportBatchErrors.WithLabelValues(e.Name(), "export").Inc()
			}
		}
	}

	return batch
}
