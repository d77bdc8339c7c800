package telemetry

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
)

func newTestAccumulator() *Accumulator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return New(log)
}

func TestSampleStats(t *testing.T) {
	var s SampleStats

	assert.True(t, s.Empty())
	assert.Zero(t, s.Mean())

	for i := 0; i < 10; i++ {
		s.Update(float64(i))
	}

	assert.Equal(t, uint32(10), s.Count)
	assert.InDelta(t, 4.5, s.Mean(), 1e-9)
	assert.Zero(t, s.Min)
	assert.Equal(t, 9.0, s.Max)

	var o SampleStats
	o.Update(-3)
	o.Update(20)

	s.Merge(o)
	assert.Equal(t, uint32(12), s.Count)
	assert.Equal(t, -3.0, s.Min)
	assert.Equal(t, 20.0, s.Max)
	assert.InDelta(t, 62.0, s.Sum, 1e-9)

	var empty SampleStats
	empty.Merge(o)
	assert.Equal(t, o, empty)

	before := s
	s.Merge(SampleStats{})
	assert.Equal(t, before, s)
}

func TestIngestScheduler_ReplacesLatest(t *testing.T) {
	acc := newTestAccumulator()

	cgi := &cellid.CellGlobalID{PLMN: 0x00f110, NCI: 1}
	acc.IngestScheduler(SchedulerCellMetrics{
		PCI:     1,
		CellID:  cgi,
		NofPRBs: 52,
		UEs: []SchedulerUEMetrics{
			{UEIndex: 0, PCI: 1, DLBitrateKbps: 100},
			{UEIndex: 1, PCI: 1, DLBitrateKbps: 200},
		},
	})
	acc.IngestScheduler(SchedulerCellMetrics{
		PCI:     1,
		CellID:  cgi,
		NofPRBs: 106,
		UEs:     []SchedulerUEMetrics{{UEIndex: 0, PCI: 1, DLBitrateKbps: 300}},
	})

	cell, ok := acc.Cell(1)
	require.True(t, ok)
	assert.Equal(t, uint32(106), cell.Latest.NofPRBs)
	assert.Len(t, cell.Latest.UEs, 1)
	assert.Equal(t, uint64(2), cell.Reports)

	ue, ok := acc.UE(0)
	require.True(t, ok)
	require.NotNil(t, ue.Scheduler)
	assert.Equal(t, 300.0, ue.Scheduler.DLBitrateKbps)

	// UE 1 keeps its last scheduler state.
	ue, ok = acc.UE(1)
	require.True(t, ok)
	assert.Equal(t, 200.0, ue.Scheduler.DLBitrateKbps)

	_, ok = acc.Cell(2)
	assert.False(t, ok)
}

func TestIngestScheduler_RecordsCarryingCell(t *testing.T) {
	acc := newTestAccumulator()

	acc.IngestScheduler(SchedulerCellMetrics{
		PCI: 7,
		UEs: []SchedulerUEMetrics{{UEIndex: 3, PCI: 1}},
	})

	ue, ok := acc.UE(3)
	require.True(t, ok)
	assert.Equal(t, uint16(7), ue.CellPCI)
	assert.Equal(t, uint16(1), ue.Scheduler.PCI)

	// A handover moves the UE to the new carrying cell.
	acc.IngestScheduler(SchedulerCellMetrics{
		PCI: 9,
		UEs: []SchedulerUEMetrics{{UEIndex: 3, PCI: 9}},
	})

	ue, ok = acc.UE(3)
	require.True(t, ok)
	assert.Equal(t, uint16(9), ue.CellPCI)
}

func TestIngestRLC_LatestAndTotals(t *testing.T) {
	acc := newTestAccumulator()

	report := RLCMetrics{
		UEIndex:  3,
		BearerID: 1,
		Mode:     ModeAM,
		RX:       RLCRxMetrics{NumSDUs: 5, NumSDUBytes: 5000},
		TX: RLCTxMetrics{
			High: RLCTxHighMetrics{NumSDUs: 10, NumSDUBytes: 10000},
			Low:  RLCTxLowMetrics{AM: &RLCAMTxLowMetrics{NumRetxPDUs: 2}},
		},
	}

	acc.IngestRLC(report)

	report.RX.NumSDUBytes = 1000
	report.TX.Low.AM = nil
	acc.IngestRLC(report)

	ue, ok := acc.UE(3)
	require.True(t, ok)
	assert.Nil(t, ue.Scheduler)
	require.Len(t, ue.Bearers, 1)

	b := ue.Bearers[0]
	assert.Equal(t, BearerID(1), b.ID)
	assert.Equal(t, ModeAM, b.Mode)
	assert.Equal(t, uint64(2), b.Reports)
	assert.Equal(t, uint64(1000), b.Latest.RX.NumSDUBytes)
	assert.Nil(t, b.Latest.TX.Low.AM)
	assert.Equal(t, uint64(6000), b.Totals.RX.NumSDUBytes)
	assert.Equal(t, uint64(20000), b.Totals.TX.High.NumSDUBytes)
	require.NotNil(t, b.Totals.TX.Low.AM)
	assert.Equal(t, uint64(2), b.Totals.TX.Low.AM.NumRetxPDUs)
}

func TestIngest_DropsOutOfArena(t *testing.T) {
	acc := newTestAccumulator()

	acc.IngestRLC(RLCMetrics{UEIndex: MaxNofUEs, BearerID: 1})
	acc.IngestRLC(RLCMetrics{UEIndex: 0, BearerID: MaxNofBearers})
	acc.IngestScheduler(SchedulerCellMetrics{
		PCI: 1,
		UEs: []SchedulerUEMetrics{{UEIndex: MaxNofUEs + 5}, {UEIndex: 7}},
	})

	stats := acc.Stats()
	assert.Equal(t, uint64(2), stats.RLCReports)
	assert.Equal(t, uint64(1), stats.SchedulerReports)
	assert.Equal(t, uint64(3), stats.Dropped)

	ues := acc.UEs()
	require.Len(t, ues, 1)
	assert.Equal(t, UEIndex(7), ues[0].Index)

	_, ok := acc.UE(MaxNofUEs)
	assert.False(t, ok)
}

func TestSnapshots_AreCopies(t *testing.T) {
	acc := newTestAccumulator()

	delay := 5.0
	acc.IngestScheduler(SchedulerCellMetrics{
		PCI: 1,
		UEs: []SchedulerUEMetrics{{UEIndex: 0, AvgCRCDelayMs: &delay}},
	})

	delay = 99

	ue, ok := acc.UE(0)
	require.True(t, ok)
	require.NotNil(t, ue.Scheduler.AvgCRCDelayMs)
	assert.Equal(t, 5.0, *ue.Scheduler.AvgCRCDelayMs)

	*ue.Scheduler.AvgCRCDelayMs = 42
	ue.Scheduler.DLBitrateKbps = 1

	again, _ := acc.UE(0)
	assert.Equal(t, 5.0, *again.Scheduler.AvgCRCDelayMs)
	assert.Zero(t, again.Scheduler.DLBitrateKbps)

	cells := acc.Cells()
	require.Len(t, cells, 1)
	cells[0].Latest.UEs[0].UEIndex = 9

	cell, _ := acc.Cell(1)
	assert.Equal(t, UEIndex(0), cell.Latest.UEs[0].UEIndex)
}

func TestCells_Ordered(t *testing.T) {
	acc := newTestAccumulator()

	for _, pci := range []uint16{9, 2, 5} {
		acc.IngestScheduler(SchedulerCellMetrics{PCI: pci})
	}

	cells := acc.Cells()
	require.Len(t, cells, 3)
	assert.Equal(t, []uint16{2, 5, 9}, []uint16{cells[0].PCI, cells[1].PCI, cells[2].PCI})
}

func TestAccumulator_Concurrent(t *testing.T) {
	acc := newTestAccumulator()

	const workers = 8

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for i := 0; i < 100; i++ {
				acc.IngestRLC(RLCMetrics{
					UEIndex:  UEIndex(i % 4),
					BearerID: BearerID(w % 2),
					RX:       RLCRxMetrics{NumSDUs: 1},
				})
				acc.IngestScheduler(SchedulerCellMetrics{
					PCI: uint16(w),
					UEs: []SchedulerUEMetrics{{UEIndex: UEIndex(i % 4)}},
				})
				_ = acc.UEs()
				_ = acc.Cells()
			}
		}(w)
	}

	wg.Wait()

	var total uint64

	for _, ue := range acc.UEs() {
		for _, b := range ue.Bearers {
			total += b.Totals.RX.NumSDUs
		}
	}

	assert.Equal(t, uint64(workers*100), total)
	assert.Len(t, acc.Cells(), workers)
	assert.Zero(t, acc.Stats().Dropped)
}
