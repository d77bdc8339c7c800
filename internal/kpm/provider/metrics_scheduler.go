package provider

import (
	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

type metricFunc func(s *scope) (float64, bool)

// computer is a registered computation. kind must match the catalog.
type computer struct {
	kind catalog.DataType
	fn   metricFunc
}

type ueSample func(ue *telemetry.SchedulerUEMetrics) (float64, bool)

// perUE reduces one optional sample per UE.
func perUE(sample ueSample, def reduction) metricFunc {
	return func(s *scope) (float64, bool) {
		var st telemetry.SampleStats

		for i := range s.ues {
			if v, ok := sample(&s.ues[i]); ok {
				st.Update(v)
			}
		}

		return s.pick(st, def)
	}
}

// perUEStats merges a per-UE running statistic.
func perUEStats(stats func(ue *telemetry.SchedulerUEMetrics) telemetry.SampleStats) metricFunc {
	return func(s *scope) (float64, bool) {
		var st telemetry.SampleStats

		for i := range s.ues {
			st.Merge(stats(&s.ues[i]))
		}

		return s.pick(st, reduceMean)
	}
}

func perCell(value func(c *telemetry.SchedulerCellMetrics) float64) metricFunc {
	return func(s *scope) (float64, bool) {
		var st telemetry.SampleStats

		for i := range s.cells {
			st.Update(value(&s.cells[i].Latest))
		}

		return s.pick(st, reduceSum)
	}
}

func always(f func(ue *telemetry.SchedulerUEMetrics) float64) ueSample {
	return func(ue *telemetry.SchedulerUEMetrics) (float64, bool) {
		return f(ue), true
	}
}

func countUEs(active func(ue *telemetry.SchedulerUEMetrics) bool) metricFunc {
	return func(s *scope) (float64, bool) {
		n := 0

		for i := range s.ues {
			if active(&s.ues[i]) {
				n++
			}
		}

		return float64(n), true
	}
}

func prbUtilisation(used func(ue *telemetry.SchedulerUEMetrics) uint64, slots func(c *telemetry.SchedulerCellMetrics) uint32) metricFunc {
	return func(s *scope) (float64, bool) {
		var usedPRBs, availPRBs float64

		for i := range s.cells {
			c := &s.cells[i].Latest
			availPRBs += float64(c.NofPRBs) * float64(slots(c))
		}

		for i := range s.ues {
			usedPRBs += float64(used(&s.ues[i]))
		}

		v, ok := ratio(usedPRBs, availPRBs, 100)

		return min(v, 100), ok
	}
}

func ulSuccessRate(s *scope) (float64, bool) {
	if len(s.ues) == 0 {
		return s.none()
	}

	var good, total float64

	for i := range s.ues {
		good += float64(s.ues[i].ULNofOK)
		total += float64(s.ues[i].ULNofOK + s.ues[i].ULNofNOK)
	}

	return ratio(good, total, 100)
}

var schedulerMetrics = map[string]computer{
	catalog.MetricCQI: {catalog.Real, perUEStats(func(ue *telemetry.SchedulerUEMetrics) telemetry.SampleStats {
		return ue.CQI
	})},
	catalog.MetricAirIfDelayUl: {catalog.Real, perUE(func(ue *telemetry.SchedulerUEMetrics) (float64, bool) {
		if ue.AvgCRCDelayMs == nil {
			return 0, false
		}

		return *ue.AvgCRCDelayMs, true
	}, reduceMean)},
	catalog.MetricPacketSuccessRateUl: {catalog.Real, ulSuccessRate},
	catalog.MetricUEThpDl: {catalog.Real, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return ue.DLBitrateKbps
	}), reduceMean)},
	catalog.MetricUEThpUl: {catalog.Real, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return ue.ULBitrateKbps
	}), reduceMean)},
	catalog.MetricPrbAvailDl: {catalog.Integer, perCell(func(c *telemetry.SchedulerCellMetrics) float64 {
		return float64(c.NofPRBs) * float64(c.NofDLSlots)
	})},
	catalog.MetricPrbAvailUl: {catalog.Integer, perCell(func(c *telemetry.SchedulerCellMetrics) float64 {
		return float64(c.NofPRBs) * float64(c.NofULSlots)
	})},
	catalog.MetricPrbUsedDl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.TotPDSCHPRBs)
	}), reduceSum)},
	catalog.MetricPrbUsedUl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.TotPUSCHPRBs)
	}), reduceSum)},
	catalog.MetricPrbTotDl: {catalog.Real, prbUtilisation(
		func(ue *telemetry.SchedulerUEMetrics) uint64 { return ue.TotPDSCHPRBs },
		func(c *telemetry.SchedulerCellMetrics) uint32 { return c.NofDLSlots },
	)},
	catalog.MetricPrbTotUl: {catalog.Real, prbUtilisation(
		func(ue *telemetry.SchedulerUEMetrics) uint64 { return ue.TotPUSCHPRBs },
		func(c *telemetry.SchedulerCellMetrics) uint32 { return c.NofULSlots },
	)},
	catalog.MetricRachPreambleACell: {catalog.Integer, perCell(func(c *telemetry.SchedulerCellMetrics) float64 {
		return float64(c.NofPRACHPreambles)
	})},
	catalog.MetricTBTotNbrDl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.DLNofOK + ue.DLNofNOK)
	}), reduceSum)},
	catalog.MetricTBTotNbrUl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.ULNofOK + ue.ULNofNOK)
	}), reduceSum)},
	catalog.MetricTBErrTotalNbrDl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.DLNofNOK)
	}), reduceSum)},
	catalog.MetricTBErrTotalNbrUl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.ULNofNOK)
	}), reduceSum)},
	catalog.MetricMeanActiveUeDl: {catalog.Real, countUEs(func(ue *telemetry.SchedulerUEMetrics) bool {
		return ue.DLBitrateKbps > 0 || ue.DLBufferStatus > 0
	})},
	catalog.MetricMeanActiveUeUl: {catalog.Real, countUEs(func(ue *telemetry.SchedulerUEMetrics) bool {
		return ue.ULBitrateKbps > 0 || ue.BSR > 0
	})},
	catalog.MetricRRCConnMean: {catalog.Real, countUEs(func(*telemetry.SchedulerUEMetrics) bool {
		return true
	})},

	// Extension table.
	catalog.MetricRIDl: {catalog.Real, perUEStats(func(ue *telemetry.SchedulerUEMetrics) telemetry.SampleStats {
		return ue.DLRI
	})},
	catalog.MetricRIUl: {catalog.Real, perUEStats(func(ue *telemetry.SchedulerUEMetrics) telemetry.SampleStats {
		return ue.ULRI
	})},
	catalog.MetricTA: {catalog.Real, perUEStats(func(ue *telemetry.SchedulerUEMetrics) telemetry.SampleStats {
		return ue.TA
	})},
	catalog.MetricPHR: {catalog.Integer, perUE(func(ue *telemetry.SchedulerUEMetrics) (float64, bool) {
		if ue.LastPHR == nil {
			return 0, false
		}

		return float64(*ue.LastPHR), true
	}, reduceMean)},
	catalog.MetricBSR: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.BSR)
	}), reduceSum)},
	catalog.MetricDlBufferStatus: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.DLBufferStatus)
	}), reduceSum)},
	catalog.MetricPuschSnr: {catalog.Real, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return ue.PUSCHSNRdB
	}), reduceMean)},
	catalog.MetricMcsDl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.DLMCS)
	}), reduceMean)},
	catalog.MetricMcsUl: {catalog.Integer, perUE(always(func(ue *telemetry.SchedulerUEMetrics) float64 {
		return float64(ue.ULMCS)
	}), reduceMean)},
}
