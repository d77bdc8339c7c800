// Package telemetry holds the latest DU scheduler and RLC reports, keyed by
// cell, UE and bearer, for the measurement provider to query.
package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type bearerSlot struct {
	mode    Mode
	latest  RLCMetrics
	totals  RLCTotals
	reports uint64
}

type ueSlot struct {
	mu      sync.Mutex
	sched   *SchedulerUEMetrics
	cellPCI uint16
	bearers [MaxNofBearers]*bearerSlot
}

type cellSlot struct {
	latest     SchedulerCellMetrics
	reports    uint64
	lastUpdate time.Time
}

// Accumulator stores telemetry from producers. Producers and readers may run
// concurrently; readers only ever receive copies.
type Accumulator struct {
	log logrus.FieldLogger

	cellsMu sync.RWMutex
	cells   map[uint16]*cellSlot

	// slotsMu guards slot creation only. Each slot carries its own lock.
	slotsMu sync.Mutex
	ues     [MaxNofUEs]atomic.Pointer[ueSlot]

	schedReports atomic.Uint64
	rlcReports   atomic.Uint64
	dropped      atomic.Uint64

	now func() time.Time
}

// New creates an empty accumulator.
func New(log logrus.FieldLogger) *Accumulator {
	return &Accumulator{
		log:   log.WithField("component", "telemetry"),
		cells: make(map[uint16]*cellSlot, 4),
		now:   time.Now,
	}
}

// IngestScheduler replaces the cell's latest snapshot and the scheduler
// state of every UE in the report.
func (a *Accumulator) IngestScheduler(m SchedulerCellMetrics) {
	a.schedReports.Add(1)

	report := cloneCellMetrics(m)

	a.cellsMu.Lock()

	slot, ok := a.cells[m.PCI]
	if !ok {
		slot = &cellSlot{}
		a.cells[m.PCI] = slot
	}

	slot.latest = report
	slot.reports++
	slot.lastUpdate = a.now()

	a.cellsMu.Unlock()

	for i := range report.UEs {
		ue := report.UEs[i]

		if !ue.UEIndex.Valid() {
			a.drop("scheduler", ue.UEIndex, 0)

			continue
		}

		s := a.getOrCreate(ue.UEIndex)

		s.mu.Lock()
		s.sched = &ue
		s.cellPCI = m.PCI
		s.mu.Unlock()
	}
}

// IngestRLC replaces the bearer's latest snapshot and adds the report to the
// bearer's running totals.
func (a *Accumulator) IngestRLC(m RLCMetrics) {
	a.rlcReports.Add(1)

	if !m.UEIndex.Valid() || !m.BearerID.Valid() {
		a.drop("rlc", m.UEIndex, m.BearerID)

		return
	}

	m = cloneRLCMetrics(m)
	s := a.getOrCreate(m.UEIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bearers[m.BearerID]
	if b == nil {
		b = &bearerSlot{}
		s.bearers[m.BearerID] = b
	}

	b.mode = m.Mode
	b.latest = m
	b.totals.add(m)
	b.reports++
}

// Cells returns a snapshot of every known cell ordered by PCI.
func (a *Accumulator) Cells() []CellState {
	a.cellsMu.RLock()
	defer a.cellsMu.RUnlock()

	out := make([]CellState, 0, len(a.cells))
	for pci, slot := range a.cells {
		out = append(out, slot.state(pci))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PCI < out[j].PCI })

	return out
}

// Cell returns a snapshot of one cell.
func (a *Accumulator) Cell(pci uint16) (CellState, bool) {
	a.cellsMu.RLock()
	defer a.cellsMu.RUnlock()

	slot, ok := a.cells[pci]
	if !ok {
		return CellState{}, false
	}

	return slot.state(pci), true
}

// UEs returns a snapshot of every UE that has reported, ordered by index.
func (a *Accumulator) UEs() []UEState {
	out := make([]UEState, 0, 16)

	for i := range a.ues {
		s := a.ues[i].Load()
		if s == nil {
			continue
		}

		out = append(out, s.state(UEIndex(i)))
	}

	return out
}

// UE returns a snapshot of one UE. Unknown or out-of-range indexes miss.
func (a *Accumulator) UE(idx UEIndex) (UEState, bool) {
	if !idx.Valid() {
		return UEState{}, false
	}

	s := a.ues[idx].Load()
	if s == nil {
		return UEState{}, false
	}

	return s.state(idx), true
}

// Stats returns the ingest counters.
func (a *Accumulator) Stats() IngestStats {
	return IngestStats{
		SchedulerReports: a.schedReports.Load(),
		RLCReports:       a.rlcReports.Load(),
		Dropped:          a.dropped.Load(),
	}
}

func (a *Accumulator) getOrCreate(idx UEIndex) *ueSlot {
	if s := a.ues[idx].Load(); s != nil {
		return s
	}

	a.slotsMu.Lock()
	defer a.slotsMu.Unlock()

	if s := a.ues[idx].Load(); s != nil {
		return s
	}

	s := &ueSlot{}
	a.ues[idx].Store(s)

	return s
}

func (a *Accumulator) drop(source string, ue UEIndex, bearer BearerID) {
	a.dropped.Add(1)

	a.log.WithFields(logrus.Fields{
		"source":    source,
		"ue_index":  ue,
		"bearer_id": bearer,
	}).Debug("Dropped report outside of the UE/bearer arena")
}

func (c *cellSlot) state(pci uint16) CellState {
	return CellState{
		PCI:        pci,
		Latest:     cloneCellMetrics(c.latest),
		Reports:    c.reports,
		LastUpdate: c.lastUpdate,
	}
}

func (s *ueSlot) state(idx UEIndex) UEState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := UEState{Index: idx}

	if s.sched != nil {
		sched := *s.sched
		sched.AvgCRCDelayMs = clonePtr(sched.AvgCRCDelayMs)
		sched.LastPHR = clonePtr(sched.LastPHR)
		st.Scheduler = &sched
		st.CellPCI = s.cellPCI
	}

	for id, b := range s.bearers {
		if b == nil {
			continue
		}

		st.Bearers = append(st.Bearers, BearerState{
			ID:      BearerID(id),
			Mode:    b.mode,
			Latest:  cloneRLCMetrics(b.latest),
			Totals:  RLCTotals{RX: b.totals.RX, TX: cloneTx(b.totals.TX)},
			Reports: b.reports,
		})
	}

	return st
}

func cloneCellMetrics(m SchedulerCellMetrics) SchedulerCellMetrics {
	out := m
	out.CellID = clonePtr(m.CellID)

	if m.UEs != nil {
		out.UEs = make([]SchedulerUEMetrics, len(m.UEs))
		for i, ue := range m.UEs {
			ue.AvgCRCDelayMs = clonePtr(ue.AvgCRCDelayMs)
			ue.LastPHR = clonePtr(ue.LastPHR)
			out.UEs[i] = ue
		}
	}

	return out
}

func cloneRLCMetrics(m RLCMetrics) RLCMetrics {
	m.TX = cloneTx(m.TX)

	return m
}

func cloneTx(tx RLCTxMetrics) RLCTxMetrics {
	tx.Low.AM = clonePtr(tx.Low.AM)

	return tx
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
