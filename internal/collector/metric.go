package collector

import (
	"time"

	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
	"github.com/ethpandaops/e2kpm/internal/kpm/provider"
	"github.com/ethpandaops/e2kpm/internal/kpm/ueid"
)

// PeriodInfo identifies the granularity period a batch was collected for.
type PeriodInfo struct {
	Number    uint64
	StartTime time.Time
	Duration  time.Duration
	// Report is the reporting period the granularity period belongs to.
	Report uint64
}

// BatchMetadata contains export-time metadata.
type BatchMetadata struct {
	NodeName    string
	UpdatedTime time.Time
}

// Row is one measurement record with its query coordinates. UEID is empty
// and Cell nil for node-level rows without a cell filter.
type Row struct {
	Metric string
	Level  catalog.Level
	Label  catalog.Label
	UEID   ueid.ID
	Cell   *cellid.CellGlobalID
	Record provider.Record
}

// Batch contains every row collected for one period.
type Batch struct {
	Metadata BatchMetadata
	Period   PeriodInfo
	Rows     []Row
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// LevelName is the short level name used in exported rows.
func LevelName(l catalog.Level) string {
	switch l {
	case catalog.LevelNode:
		return "node"
	case catalog.LevelUE:
		return "ue"
	default:
		return l.String()
	}
}

func cellName(c *cellid.CellGlobalID) string {
	if c == nil {
		return ""
	}

	return c.String()
}
