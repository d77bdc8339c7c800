package provider

import (
	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

// scope is the telemetry visible to one metric evaluation.
type scope struct {
	ueLevel bool
	label   catalog.Label
	window  catalog.Window
	cells   []telemetry.CellState
	ues     []telemetry.SchedulerUEMetrics
	bearers []telemetry.BearerState

	// nullable reports no-value instead of zero for an empty distribution.
	nullable bool
}

func (s *scope) withLabel(label catalog.Label, window catalog.Window) *scope {
	c := *s
	c.label = label
	c.window = window

	return &c
}

func (s *scope) absent(src catalog.Source) bool {
	switch src {
	case catalog.SourceScheduler:
		if s.ueLevel {
			return len(s.ues) == 0
		}

		return len(s.cells) == 0
	case catalog.SourceRLC:
		return len(s.bearers) == 0
	default:
		return true
	}
}

// rlc returns the bearer counters for the evaluation window.
func (s *scope) rlc(b telemetry.BearerState) (telemetry.RLCRxMetrics, telemetry.RLCTxMetrics) {
	if s.window == catalog.WindowCumulative {
		return b.Totals.RX, b.Totals.TX
	}

	return b.Latest.RX, b.Latest.TX
}

type reduction uint8

const (
	reduceMean reduction = iota
	reduceSum
)

// pick applies the requested label to st. NoLabel falls back to def.
func (s *scope) pick(st telemetry.SampleStats, def reduction) (float64, bool) {
	label := s.label
	if label == catalog.NoLabel {
		label = catalog.AvgLabel
		if def == reduceSum {
			label = catalog.SumLabel
		}
	}

	if st.Empty() && label != catalog.SumLabel {
		return s.none()
	}

	switch label {
	case catalog.SumLabel:
		return st.Sum, true
	case catalog.AvgLabel:
		return st.Mean(), true
	case catalog.MinLabel:
		return st.Min, true
	case catalog.MaxLabel:
		return st.Max, true
	default:
		return 0, false
	}
}

// none is the value of a reduction over no samples.
func (s *scope) none() (float64, bool) {
	return 0, !s.nullable
}

func ratio(num, den, scale float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}

	return num / den * scale, true
}
