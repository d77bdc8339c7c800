package provider

import (
	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

type bearerValue func(rx *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64

// perBearer sums one counter over every bearer in scope.
func perBearer(value bearerValue) metricFunc {
	return func(s *scope) (float64, bool) {
		var st telemetry.SampleStats

		for _, b := range s.bearers {
			rx, tx := s.rlc(b)
			st.Update(value(&rx, &tx))
		}

		return s.pick(st, reduceSum)
	}
}

// bearerRatio divides two counters summed over every bearer in scope.
func bearerRatio(num, den bearerValue, scale float64) metricFunc {
	return func(s *scope) (float64, bool) {
		var n, d float64

		for _, b := range s.bearers {
			rx, tx := s.rlc(b)
			n += num(&rx, &tx)
			d += den(&rx, &tx)
		}

		return ratio(n, d, scale)
	}
}

func bytesToKbit(b uint64) float64 {
	return float64(b) * 8 / 1000
}

func amCounter(f func(am *telemetry.RLCAMTxLowMetrics) uint64) bearerValue {
	return func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 {
		if tx.Low.AM == nil {
			return 0
		}

		return float64(f(tx.Low.AM))
	}
}

var (
	rlcTxVolume = perBearer(func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 {
		return bytesToKbit(tx.High.NumSDUBytes)
	})
	rlcRxVolume = perBearer(func(rx *telemetry.RLCRxMetrics, _ *telemetry.RLCTxMetrics) float64 {
		return bytesToKbit(rx.NumSDUBytes)
	})
)

// rlcMetrics are computed from bearer state; window selection happens in
// scope.rlc, so the cumulative volume metrics share the period computation.
var rlcMetrics = map[string]computer{
	catalog.MetricRlcDelayUl: {catalog.Real, bearerRatio(
		func(rx *telemetry.RLCRxMetrics, _ *telemetry.RLCTxMetrics) float64 { return float64(rx.SDULatencyUs) },
		func(rx *telemetry.RLCRxMetrics, _ *telemetry.RLCTxMetrics) float64 { return float64(rx.NumSDUs) },
		1e-3,
	)},
	catalog.MetricRlcPacketDropRateDl: {catalog.Real, bearerRatio(
		func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 { return float64(tx.High.NumDroppedSDUs) },
		func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 { return float64(tx.High.NumSDUs) },
		100,
	)},
	catalog.MetricRlcSduDelayDl: {catalog.Real, bearerRatio(
		func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 { return float64(tx.Low.SumSDULatencyUs) },
		func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 { return float64(tx.Low.NumPulledSDUs) },
		1e-3,
	)},
	catalog.MetricPacketLossRateUl: {catalog.Real, bearerRatio(
		func(rx *telemetry.RLCRxMetrics, _ *telemetry.RLCTxMetrics) float64 { return float64(rx.NumLostPDUs) },
		func(rx *telemetry.RLCRxMetrics, _ *telemetry.RLCTxMetrics) float64 {
			return float64(rx.NumPDUs + rx.NumLostPDUs)
		},
		100,
	)},
	catalog.MetricRlcSduTxVolumeDl: {catalog.Integer, rlcTxVolume},
	catalog.MetricRlcSduTxVolumeUl: {catalog.Integer, rlcRxVolume},

	// Extension table.
	catalog.MetricRlcMalformedPdus: {catalog.Integer, perBearer(func(rx *telemetry.RLCRxMetrics, _ *telemetry.RLCTxMetrics) float64 {
		return float64(rx.NumMalformedPDUs)
	})},
	catalog.MetricRlcDiscardFailure: {catalog.Integer, perBearer(func(_ *telemetry.RLCRxMetrics, tx *telemetry.RLCTxMetrics) float64 {
		return float64(tx.High.NumDiscardFailures)
	})},
	catalog.MetricRlcSegmentedPdus: {catalog.Integer, perBearer(amCounter(func(am *telemetry.RLCAMTxLowMetrics) uint64 {
		return am.NumPDUsWithSegmentation
	}))},
	catalog.MetricRlcRetxPdus: {catalog.Integer, perBearer(amCounter(func(am *telemetry.RLCAMTxLowMetrics) uint64 {
		return am.NumRetxPDUs
	}))},
	catalog.MetricRlcSduVolDlTotal: {catalog.Integer, rlcTxVolume},
	catalog.MetricRlcSduVolUlTotal: {catalog.Integer, rlcRxVolume},
}
