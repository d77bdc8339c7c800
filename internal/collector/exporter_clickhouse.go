package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/export"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
)

const insertMeasurements = `INSERT INTO %s (
	updated_date_time, period, period_start_date_time, period_duration_ms, report,
	metric, level, label, ue_id, cell,
	record_type, value_int, value_real,
	meta_node_name
)`

// ClickHouseExporter writes rows to the kpm_measurements table.
type ClickHouseExporter struct {
	log    logrus.FieldLogger
	writer *export.ClickHouseWriter
	health *export.HealthMetrics
}

var _ Exporter = (*ClickHouseExporter)(nil)

// NewClickHouseExporter creates a new ClickHouse exporter.
func NewClickHouseExporter(
	log logrus.FieldLogger,
	writer *export.ClickHouseWriter,
	health *export.HealthMetrics,
) *ClickHouseExporter {
	return &ClickHouseExporter{
		log:    log.WithField("exporter", "clickhouse"),
		writer: writer,
		health: health,
	}
}

// Name returns the exporter identifier.
func (e *ClickHouseExporter) Name() string {
	return "clickhouse"
}

// Start connects the writer.
func (e *ClickHouseExporter) Start(ctx context.Context) error {
	if err := e.writer.Start(ctx); err != nil {
		return err
	}

	if e.health != nil {
		e.health.ClickHouseConnected.WithLabelValues(e.Name()).Set(1)
	}

	return nil
}

// Stop closes the writer.
func (e *ClickHouseExporter) Stop() error {
	if e.health != nil {
		e.health.ClickHouseConnected.WithLabelValues(e.Name()).Set(0)
	}

	return e.writer.Stop()
}

// Export inserts every row of the batch in one native batch.
func (e *ClickHouseExporter) Export(ctx context.Context, batch Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	cfg := e.writer.Config()
	table := cfg.QualifiedTable()

	b, err := e.writer.Conn().PrepareBatch(ctx, fmt.Sprintf(insertMeasurements, table))
	if err != nil {
		return fmt.Errorf("preparing %s batch: %w", cfg.Table, err)
	}

	for i := range batch.Rows {
		if err := b.Append(clickHouseValues(&batch, &batch.Rows[i])...); err != nil {
			_ = b.Abort()

			return fmt.Errorf("appending %s row: %w", cfg.Table, err)
		}
	}

	if err := b.Send(); err != nil {
		return fmt.Errorf("sending %s batch: %w", cfg.Table, err)
	}

	if e.health != nil {
		e.health.ExportBatchSize.WithLabelValues(e.Name()).Observe(float64(batch.Len()))
	}

	e.log.WithFields(logrus.Fields{
		"rows":   batch.Len(),
		"period": batch.Period.Number,
	}).Debug("Flushed measurement rows")

	return nil
}

// clickHouseValues returns the column values in insertMeasurements order.
// No-value records leave both value columns NULL.
func clickHouseValues(batch *Batch, r *Row) []any {
	var (
		valueInt  *int64
		valueReal *float64
	)

	switch r.Record.Type {
	case provider.RecordInteger:
		v := r.Record.Integer
		valueInt = &v
	case provider.RecordReal:
		v := r.Record.Real
		valueReal = &v
	}

	return []any{
		batch.Metadata.UpdatedTime,
		batch.Period.Number,
		batch.Period.StartTime,
		uint32(batch.Period.Duration / time.Millisecond),
		batch.Period.Report,
		r.Metric,
		LevelName(r.Level),
		r.Label.String(),
		string(r.UEID),
		cellName(r.Cell),
		r.Record.Type.String(),
		valueInt,
		valueReal,
		batch.Metadata.NodeName,
	}
}
