// Package collector evaluates KPM subscriptions once per granularity period
// and hands the resulting rows to exporters.
package collector

import (
	"fmt"
	"time"

	e2sm_mho "github.com/onosproject/onos-e2-sm/servicemodels/e2sm_mho/v1/e2sm-mho"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
	"github.com/ethpandaops/e2kpm/internal/kpm/ueid"
)

type subscription struct {
	level     catalog.Level
	names     []string
	labels    []provider.LabelInfo
	cell      *cellid.CellGlobalID
	cellProto *e2sm_mho.CellGlobalId
}

// Collector turns provider answers into period batches.
type Collector struct {
	log      logrus.FieldLogger
	provider *provider.Provider
	acc      *telemetry.Accumulator
	health   *export.HealthMetrics
	subs     []subscription
}

// New resolves the configured subscriptions against the provider.
// Configured names the provider cannot serve are logged and skipped.
func New(
	log logrus.FieldLogger,
	p *provider.Provider,
	acc *telemetry.Accumulator,
	cfg Config,
	health *export.HealthMetrics,
) (*Collector, error) {
	c := &Collector{
		log:      log.WithField("component", "collector"),
		provider: p,
		acc:      acc,
		health:   health,
	}

	for i, raw := range cfg.Subscriptions {
		parsed, err := raw.parse()
		if err != nil {
			return nil, fmt.Errorf("subscriptions[%d]: %w", i, err)
		}

		sub, err := c.resolve(parsed)
		if err != nil {
			return nil, fmt.Errorf("subscriptions[%d]: %w", i, err)
		}

		c.subs = append(c.subs, sub)
	}

	return c, nil
}

func (c *Collector) resolve(in parsedSubscription) (subscription, error) {
	sub := subscription{
		level: in.level,
		cell:  in.cell,
	}

	for _, l := range in.labels {
		sub.labels = append(sub.labels, provider.LabelInfo{Label: l})
	}

	if in.cell != nil {
		proto, err := in.cell.Proto()
		if err != nil {
			return subscription{}, fmt.Errorf("encoding cell %s: %w", in.cell, err)
		}

		sub.cellProto = proto
	}

	explicit := len(in.names) > 0

	names := in.names
	if !explicit {
		names = c.provider.SupportedMetricNames(in.level)
	}

	for _, name := range names {
		if c.servable(name, sub) {
			sub.names = append(sub.names, name)

			continue
		}

		if !explicit {
			continue
		}

		c.log.WithFields(logrus.Fields{
			"metric": name,
			"level":  LevelName(in.level),
			"cell":   cellName(in.cell),
		}).Warn("Skipping unsupported metric subscription")

		if c.health != nil {
			c.health.UnsupportedSubscriptions.Inc()
		}
	}

	c.log.WithFields(logrus.Fields{
		"level":   LevelName(sub.level),
		"metrics": len(sub.names),
		"labels":  len(sub.labels),
		"cell":    cellName(sub.cell),
	}).Info("Resolved metric subscription")

	return sub, nil
}

func (c *Collector) servable(name string, sub subscription) bool {
	for _, l := range sub.labels {
		if !c.provider.IsMetricSupported(name, l.Label, sub.level, sub.cell != nil) {
			return false
		}
	}

	return true
}

// Metrics returns the number of resolved metric names per subscription.
func (c *Collector) Metrics() []int {
	out := make([]int, len(c.subs))
	for i, s := range c.subs {
		out[i] = len(s.names)
	}

	return out
}

// Collect evaluates every subscription against the current telemetry.
func (c *Collector) Collect(period PeriodInfo, meta BatchMetadata) Batch {
	started := time.Now()

	batch := Batch{
		Metadata: meta,
		Period:   period,
	}

	ues := c.knownUEs()

	for _, sub := range c.subs {
		switch sub.level {
		case catalog.LevelNode:
			batch.Rows = c.collectNode(batch.Rows, sub)
		case catalog.LevelUE:
			batch.Rows = c.collectUE(batch.Rows, sub, ues)
		}
	}

	c.observe(&batch, time.Since(started))

	return batch
}

func (c *Collector) collectNode(rows []Row, sub subscription) []Row {
	for _, name := range sub.names {
		recs := c.provider.GetMeasData(name, sub.labels, nil, sub.cellProto)

		for i, rec := range recs {
			rows = append(rows, Row{
				Metric: name,
				Level:  catalog.LevelNode,
				Label:  sub.labels[i].Label,
				Cell:   sub.cell,
				Record: rec,
			})
		}
	}

	return rows
}

func (c *Collector) collectUE(rows []Row, sub subscription, ues []ueid.ID) []Row {
	if len(ues) == 0 {
		return rows
	}

	for _, name := range sub.names {
		recs := c.provider.GetMeasData(name, sub.labels, ues, sub.cellProto)

		// Records are label-major: one run of len(ues) per label.
		if len(recs) != len(sub.labels)*len(ues) {
			c.log.WithFields(logrus.Fields{
				"metric":   name,
				"records":  len(recs),
				"expected": len(sub.labels) * len(ues),
			}).Warn("Unexpected UE record count, skipping metric")

			continue
		}

		for li, l := range sub.labels {
			for ui, id := range ues {
				rows = append(rows, Row{
					Metric: name,
					Level:  catalog.LevelUE,
					Label:  l.Label,
					UEID:   id,
					Cell:   sub.cell,
					Record: recs[li*len(ues)+ui],
				})
			}
		}
	}

	return rows
}

// knownUEs returns the identities of every UE with telemetry that the
// translator can name.
func (c *Collector) knownUEs() []ueid.ID {
	states := c.acc.UEs()
	out := make([]ueid.ID, 0, len(states))

	translator := c.provider.Translator()

	for _, st := range states {
		id, ok := translator.ToID(st.Index)
		if !ok {
			continue
		}

		out = append(out, id)
	}

	return out
}

func (c *Collector) observe(batch *Batch, took time.Duration) {
	if c.health == nil {
		return
	}

	c.health.PeriodsCollected.Inc()
	c.health.CollectDuration.Observe(took.Seconds())
	c.health.CurrentPeriod.Set(float64(batch.Period.Number))
	c.health.CellsTracked.Set(float64(len(c.acc.Cells())))
	c.health.UEsTracked.Set(float64(len(c.acc.UEs())))
	c.health.ReportsDropped.Set(float64(c.acc.Stats().Dropped))

	for _, r := range batch.Rows {
		c.health.RowsCollected.WithLabelValues(LevelName(r.Level), r.Record.Type.String()).Inc()
	}
}
