package collector

import (
	"context"
	"fmt"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/export"
	httpexport "github.com/ethpandaops/e2kpm/internal/export/http"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
)

const timeFormat = "2006-01-02 15:04:05.000"

// MeasurementJSON is the NDJSON schema of one exported row.
type MeasurementJSON struct {
	UpdatedDateTime     string          `json:"updated_date_time"`
	Period              uint64          `json:"period"`
	PeriodStartDateTime string          `json:"period_start_date_time"`
	PeriodDurationMs    int64           `json:"period_duration_ms"`
	Report              uint64          `json:"report"`
	Metric              string          `json:"metric"`
	Level               string          `json:"level"`
	Label               string          `json:"label"`
	UEID                string          `json:"ue_id,omitempty"`
	Cell                string          `json:"cell,omitempty"`
	Record              provider.Record `json:"record"`
	MetaNodeName        string          `json:"meta_node_name,omitempty"`
}

// HTTPExporter queues rows on a batch processor that posts NDJSON.
type HTTPExporter struct {
	log    logrus.FieldLogger
	proc   *processor.BatchItemProcessor[MeasurementJSON]
	health *export.HealthMetrics
}

var _ Exporter = (*HTTPExporter)(nil)

// NewHTTPExporter creates the exporter and its batch processor.
func NewHTTPExporter(
	log logrus.FieldLogger,
	cfg httpexport.Config,
	health *export.HealthMetrics,
) (*HTTPExporter, error) {
	proc, err := httpexport.NewProcessor[MeasurementJSON](log, cfg, "kpm_http")
	if err != nil {
		return nil, fmt.Errorf("creating HTTP processor: %w", err)
	}

	return &HTTPExporter{
		log:    log.WithField("exporter", "http"),
		proc:   proc,
		health: health,
	}, nil
}

// Name returns the exporter identifier.
func (e *HTTPExporter) Name() string {
	return "http"
}

// Start starts the batch processor workers.
func (e *HTTPExporter) Start(ctx context.Context) error {
	e.proc.Start(ctx)
	e.log.Info("HTTP export started")

	return nil
}

// Stop drains and shuts down the batch processor.
func (e *HTTPExporter) Stop() error {
	return e.proc.Shutdown(context.Background())
}

// Export converts the batch and queues it for delivery.
func (e *HTTPExporter) Export(ctx context.Context, batch Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	events := MeasurementsJSON(&batch)

	if err := e.proc.Write(ctx, events); err != nil {
		return fmt.Errorf("queueing %d rows: %w", len(events), err)
	}

	if e.health != nil {
		e.health.ExportBatchSize.WithLabelValues(e.Name()).Observe(float64(len(events)))
	}

	return nil
}

// MeasurementsJSON converts every row of batch to its JSON form.
func MeasurementsJSON(batch *Batch) []*MeasurementJSON {
	out := make([]*MeasurementJSON, 0, batch.Len())

	updated := batch.Metadata.UpdatedTime.Format(timeFormat)
	start := batch.Period.StartTime.Format(timeFormat)

	for _, r := range batch.Rows {
		out = append(out, &MeasurementJSON{
			UpdatedDateTime:     updated,
			Period:              batch.Period.Number,
			PeriodStartDateTime: start,
			PeriodDurationMs:    batch.Period.Duration.Milliseconds(),
			Report:              batch.Period.Report,
			Metric:              r.Metric,
			Level:               LevelName(r.Level),
			Label:               r.Label.String(),
			UEID:                string(r.UEID),
			Cell:                cellName(r.Cell),
			Record:              r.Record,
			MetaNodeName:        batch.Metadata.NodeName,
		})
	}

	return out
}
