// Package ingest feeds DU producer reports into the telemetry accumulator.
// Every transport (HTTP push, valkey stream, websocket feed) goes through an
// Ingester so reports are validated and counted the same way.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/ingest/schema"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

// Transport names used as metric labels.
const (
	TransportHTTP      = "http"
	TransportValkey    = "valkey"
	TransportWebsocket = "websocket"
)

const (
	reasonInvalid = "invalid"
	reasonDecode  = "decode"
)

// SchedulerHook observes every accepted scheduler report before it is
// ingested.
type SchedulerHook func(telemetry.SchedulerCellMetrics)

// Option configures an Ingester.
type Option func(*Ingester)

// WithSchedulerHook registers a hook run for each accepted scheduler report.
func WithSchedulerHook(fn SchedulerHook) Option {
	return func(i *Ingester) {
		i.hooks = append(i.hooks, fn)
	}
}

// Ingester validates reports and hands them to the accumulator.
type Ingester struct {
	log    logrus.FieldLogger
	acc    *telemetry.Accumulator
	health *export.HealthMetrics
	hooks  []SchedulerHook
}

// NewIngester creates an Ingester. health may be nil.
func NewIngester(
	log logrus.FieldLogger,
	acc *telemetry.Accumulator,
	health *export.HealthMetrics,
	opts ...Option,
) *Ingester {
	i := &Ingester{
		log:    log.WithField("component", "ingest"),
		acc:    acc,
		health: health,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Scheduler ingests one scheduler report.
func (i *Ingester) Scheduler(transport string, r *schema.SchedulerReport) error {
	m, err := r.ToTelemetry()
	if err != nil {
		i.reject(transport, reasonInvalid)

		return err
	}

	for _, hook := range i.hooks {
		hook(m)
	}

	i.acc.IngestScheduler(m)
	i.accept(schema.TypeScheduler, transport)

	return nil
}

// RLC ingests one RLC report.
func (i *Ingester) RLC(transport string, r *schema.RLCReport) error {
	m, err := r.ToTelemetry()
	if err != nil {
		i.reject(transport, reasonInvalid)

		return err
	}

	i.acc.IngestRLC(m)
	i.accept(schema.TypeRLC, transport)

	return nil
}

// Envelope ingests the payload carried by env.
func (i *Ingester) Envelope(transport string, env *schema.Envelope) error {
	if err := env.CheckShape(); err != nil {
		i.reject(transport, reasonInvalid)

		return err
	}

	if env.Type == schema.TypeScheduler {
		return i.Scheduler(transport, env.Scheduler)
	}

	return i.RLC(transport, env.RLC)
}

// Decode parses a JSON envelope and ingests it.
func (i *Ingester) Decode(transport string, data []byte) error {
	env, err := schema.ParseEnvelope(data)
	if err != nil {
		reason := reasonInvalid
		if errors.Is(err, schema.ErrMalformed) {
			reason = reasonDecode
		}

		i.reject(transport, reason)

		return err
	}

	if env.Type == schema.TypeScheduler {
		return i.Scheduler(transport, env.Scheduler)
	}

	return i.RLC(transport, env.RLC)
}

// DecodeReport parses a bare report of type typ, as pushed over HTTP, and
// ingests it.
func (i *Ingester) DecodeReport(transport, typ string, data []byte) error {
	env := schema.Envelope{Type: typ}

	var err error

	switch typ {
	case schema.TypeScheduler:
		env.Scheduler = &schema.SchedulerReport{}
		err = json.Unmarshal(data, env.Scheduler)
	case schema.TypeRLC:
		env.RLC = &schema.RLCReport{}
		err = json.Unmarshal(data, env.RLC)
	}

	if err != nil {
		i.reject(transport, reasonDecode)

		return fmt.Errorf("%w: %w", schema.ErrMalformed, err)
	}

	return i.Envelope(transport, &env)
}

func (i *Ingester) accept(source, transport string) {
	if i.health == nil {
		return
	}

	i.health.ReportsReceived.WithLabelValues(source, transport).Inc()
	i.health.ReportsDropped.Set(float64(i.acc.Stats().Dropped))
}

func (i *Ingester) reject(transport, reason string) {
	i.log.WithFields(logrus.Fields{
		"transport": transport,
		"reason":    reason,
	}).Debug("Rejected report")

	if i.health == nil {
		return
	}

	i.health.ReportsRejected.WithLabelValues(transport, reason).Inc()
}
