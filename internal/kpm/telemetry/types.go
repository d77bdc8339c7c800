package telemetry

import (
	"time"

	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
)

// UEIndex is the DU-local subscriber index.
type UEIndex uint16

// BearerID identifies a radio bearer within a UE.
type BearerID uint8

const (
	// MaxNofUEs bounds the UE index space.
	MaxNofUEs = 1024
	// MaxNofBearers bounds the bearer ID space per UE.
	MaxNofBearers = 32
)

// Valid reports whether the index fits the arena.
func (i UEIndex) Valid() bool {
	return int(i) < MaxNofUEs
}

// Valid reports whether the bearer ID fits the arena.
func (b BearerID) Valid() bool {
	return int(b) < MaxNofBearers
}

// Mode is the RLC entity mode.
type Mode uint8

const (
	ModeTM Mode = iota
	ModeUM
	ModeAM
)

func (m Mode) String() string {
	switch m {
	case ModeTM:
		return "tm"
	case ModeUM:
		return "um"
	case ModeAM:
		return "am"
	default:
		return "unknown"
	}
}

// SchedulerCellMetrics is one MAC scheduler report for a cell.
type SchedulerCellMetrics struct {
	PCI               uint16
	CellID            *cellid.CellGlobalID
	NofPRBs           uint32
	NofDLSlots        uint32
	NofULSlots        uint32
	NofPRACHPreambles uint32
	UEs               []SchedulerUEMetrics
}

// SchedulerUEMetrics is the per-UE part of a scheduler report.
type SchedulerUEMetrics struct {
	UEIndex UEIndex
	PCI     uint16
	RNTI    uint16

	CQI  SampleStats
	DLRI SampleStats
	ULRI SampleStats
	TA   SampleStats

	DLMCS         uint8
	ULMCS         uint8
	TotPDSCHPRBs  uint64
	TotPUSCHPRBs  uint64
	DLBitrateKbps float64
	ULBitrateKbps float64
	DLNofOK       uint64
	DLNofNOK      uint64
	ULNofOK       uint64
	ULNofNOK      uint64

	// AvgCRCDelayMs is nil when no UL CRC was decoded in the period.
	AvgCRCDelayMs *float64
	PUSCHSNRdB    float64
	// LastPHR is nil when no power headroom report was received.
	LastPHR        *int
	DLBufferStatus uint64
	BSR            uint64
}

// RLCRxMetrics are the receive-side counters of an RLC entity.
type RLCRxMetrics struct {
	NumPDUs          uint64
	NumPDUBytes      uint64
	NumSDUs          uint64
	NumSDUBytes      uint64
	NumLostPDUs      uint64
	NumMalformedPDUs uint64
	// SDULatencyUs is the summed SDU latency over the period.
	SDULatencyUs uint64
}

// RLCTxHighMetrics are the upper-layer transmit counters.
type RLCTxHighMetrics struct {
	NumSDUs            uint64
	NumSDUBytes        uint64
	NumDroppedSDUs     uint64
	NumDiscardedSDUs   uint64
	NumDiscardFailures uint64
}

// RLCAMTxLowMetrics are the AM-only lower transmit counters.
type RLCAMTxLowMetrics struct {
	NumPDUsWithSegmentation     uint64
	NumPDUBytesWithSegmentation uint64
	NumRetxPDUs                 uint64
}

// RLCTxLowMetrics are the lower-layer transmit counters.
type RLCTxLowMetrics struct {
	SumSDULatencyUs           uint64
	NumPulledSDUs             uint64
	NumPDUsNoSegmentation     uint64
	NumPDUBytesNoSegmentation uint64
	AM                        *RLCAMTxLowMetrics
}

// RLCTxMetrics groups both transmit halves.
type RLCTxMetrics struct {
	High RLCTxHighMetrics
	Low  RLCTxLowMetrics
}

// RLCMetrics is one RLC report for a single bearer.
type RLCMetrics struct {
	UEIndex  UEIndex
	BearerID BearerID
	Mode     Mode
	Period   time.Duration
	RX       RLCRxMetrics
	TX       RLCTxMetrics
}

// RLCTotals are running sums of every RLC report seen for a bearer.
type RLCTotals struct {
	RX RLCRxMetrics
	TX RLCTxMetrics
}

func (t *RLCTotals) add(m RLCMetrics) {
	t.RX.NumPDUs += m.RX.NumPDUs
	t.RX.NumPDUBytes += m.RX.NumPDUBytes
	t.RX.NumSDUs += m.RX.NumSDUs
	t.RX.NumSDUBytes += m.RX.NumSDUBytes
	t.RX.NumLostPDUs += m.RX.NumLostPDUs
	t.RX.NumMalformedPDUs += m.RX.NumMalformedPDUs
	t.RX.SDULatencyUs += m.RX.SDULatencyUs

	t.TX.High.NumSDUs += m.TX.High.NumSDUs
	t.TX.High.NumSDUBytes += m.TX.High.NumSDUBytes
	t.TX.High.NumDroppedSDUs += m.TX.High.NumDroppedSDUs
	t.TX.High.NumDiscardedSDUs += m.TX.High.NumDiscardedSDUs
	t.TX.High.NumDiscardFailures += m.TX.High.NumDiscardFailures

	t.TX.Low.SumSDULatencyUs += m.TX.Low.SumSDULatencyUs
	t.TX.Low.NumPulledSDUs += m.TX.Low.NumPulledSDUs
	t.TX.Low.NumPDUsNoSegmentation += m.TX.Low.NumPDUsNoSegmentation
	t.TX.Low.NumPDUBytesNoSegmentation += m.TX.Low.NumPDUBytesNoSegmentation

	if m.TX.Low.AM != nil {
		if t.TX.Low.AM == nil {
			t.TX.Low.AM = &RLCAMTxLowMetrics{}
		}

		t.TX.Low.AM.NumPDUsWithSegmentation += m.TX.Low.AM.NumPDUsWithSegmentation
		t.TX.Low.AM.NumPDUBytesWithSegmentation += m.TX.Low.AM.NumPDUBytesWithSegmentation
		t.TX.Low.AM.NumRetxPDUs += m.TX.Low.AM.NumRetxPDUs
	}
}

// CellState is a read-only copy of the latest report for one cell.
type CellState struct {
	PCI        uint16
	Latest     SchedulerCellMetrics
	Reports    uint64
	LastUpdate time.Time
}

// BearerState is a read-only copy of one bearer's RLC state.
type BearerState struct {
	ID      BearerID
	Mode    Mode
	Latest  RLCMetrics
	Totals  RLCTotals
	Reports uint64
}

// UEState is a read-only copy of one UE's state. Scheduler is nil until a
// scheduler report mentioned the UE.
type UEState struct {
	Index     UEIndex
	Scheduler *SchedulerUEMetrics

	// CellPCI is the PCI of the cell report that last carried the UE.
	CellPCI uint16
	Bearers []BearerState
}

// IngestStats counts reports seen by the accumulator.
type IngestStats struct {
	SchedulerReports uint64
	RLCReports       uint64
	Dropped          uint64
}
