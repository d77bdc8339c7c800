package collector

import "context"

// Exporter ships collected batches to a destination.
type Exporter interface {
	// Name returns the exporter's identifier for logging.
	Name() string
	// Start initializes the exporter.
	Start(ctx context.Context) error
	// Export writes one period batch.
	Export(ctx context.Context, batch Batch) error
	// Stop shuts down the exporter gracefully.
	Stop() error
}
