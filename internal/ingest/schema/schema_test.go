package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

const schedulerEnvelope = `{
	"type": "scheduler",
	"scheduler": {
		"pci": 1,
		"cell_id": "00f110/00000019b",
		"nof_prbs": 52,
		"nof_dl_slots": 14,
		"nof_ul_slots": 14,
		"ues": [{
			"ue_index": 3,
			"pci": 1,
			"rnti": 17921,
			"cqi": {"count": 2, "sum": 24, "min": 11, "max": 13},
			"dl_brate_kbps": 1500.5,
			"dl_nof_ok": 90,
			"dl_nof_nok": 10,
			"avg_crc_delay_ms": 2.5,
			"last_phr": 12
		}]
	}
}`

const rlcEnvelope = `{
	"type": "rlc",
	"rlc": {
		"ue_index": 3,
		"bearer_id": 4,
		"mode": "am",
		"period_ms": 1000,
		"rx": {"num_sdus": 5, "num_sdu_bytes": 500, "sdu_latency_us": 1200},
		"tx": {
			"high": {"num_sdus": 7, "num_dropped_sdus": 1},
			"low": {"num_pulled_sdus": 6, "am": {"num_retx_pdus": 2}}
		}
	}
}`

func TestDecodeEnvelope_Scheduler(t *testing.T) {
	env, err := DecodeEnvelope([]byte(schedulerEnvelope))
	require.NoError(t, err)
	require.NotNil(t, env.Scheduler)
	assert.Nil(t, env.RLC)

	m, err := env.Scheduler.ToTelemetry()
	require.NoError(t, err)

	assert.Equal(t, uint16(1), m.PCI)
	assert.Equal(t, uint32(52), m.NofPRBs)
	require.NotNil(t, m.CellID)
	assert.Equal(t, cellid.CellGlobalID{PLMN: 0x00f110, NCI: 0x19b}, *m.CellID)

	require.Len(t, m.UEs, 1)

	ue := m.UEs[0]
	assert.Equal(t, telemetry.UEIndex(3), ue.UEIndex)
	assert.Equal(t, uint16(17921), ue.RNTI)
	assert.Equal(t, telemetry.SampleStats{Count: 2, Sum: 24, Min: 11, Max: 13}, ue.CQI)
	assert.True(t, ue.DLRI.Empty())
	assert.InDelta(t, 1500.5, ue.DLBitrateKbps, 1e-9)
	assert.Equal(t, uint64(90), ue.DLNofOK)
	require.NotNil(t, ue.AvgCRCDelayMs)
	assert.InDelta(t, 2.5, *ue.AvgCRCDelayMs, 1e-9)
	require.NotNil(t, ue.LastPHR)
	assert.Equal(t, 12, *ue.LastPHR)
}

func TestDecodeEnvelope_RLC(t *testing.T) {
	env, err := DecodeEnvelope([]byte(rlcEnvelope))
	require.NoError(t, err)
	require.NotNil(t, env.RLC)

	m, err := env.RLC.ToTelemetry()
	require.NoError(t, err)

	assert.Equal(t, telemetry.UEIndex(3), m.UEIndex)
	assert.Equal(t, telemetry.BearerID(4), m.BearerID)
	assert.Equal(t, telemetry.ModeAM, m.Mode)
	assert.Equal(t, time.Second, m.Period)
	assert.Equal(t, uint64(500), m.RX.NumSDUBytes)
	assert.Equal(t, uint64(1200), m.RX.SDULatencyUs)
	assert.Equal(t, uint64(1), m.TX.High.NumDroppedSDUs)
	assert.Equal(t, uint64(6), m.TX.Low.NumPulledSDUs)
	require.NotNil(t, m.TX.Low.AM)
	assert.Equal(t, uint64(2), m.TX.Low.AM.NumRetxPDUs)
}

func TestRLCReport_NoAMCounters(t *testing.T) {
	r := RLCReport{UEIndex: 1, BearerID: 1, Mode: "um", PeriodMs: 100}

	m, err := r.ToTelemetry()
	require.NoError(t, err)

	assert.Equal(t, telemetry.ModeUM, m.Mode)
	assert.Nil(t, m.TX.Low.AM)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed json", data: `{"type":`},
		{name: "unknown type", data: `{"type":"pdcp"}`},
		{name: "missing payload", data: `{"type":"scheduler"}`},
		{name: "mismatched payload", data: `{"type":"rlc","scheduler":{"pci":1}}`},
		{name: "both payloads", data: `{"type":"rlc","rlc":{"mode":"tm"},"scheduler":{"pci":1}}`},
		{name: "bad cell id", data: `{"type":"scheduler","scheduler":{"pci":1,"cell_id":"zz/1"}}`},
		{
			name: "stats min above max",
			data: `{"type":"scheduler","scheduler":{"pci":1,"ues":[{"ta":{"count":1,"sum":5,"min":9,"max":1}}]}}`,
		},
		{name: "unknown rlc mode", data: `{"type":"rlc","rlc":{"mode":"xm"}}`},
		{name: "am counters on um bearer", data: `{"type":"rlc","rlc":{"mode":"um","tx":{"low":{"am":{}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestStats_EmptyIgnoresBounds(t *testing.T) {
	// A zero count carries no samples, so min and max are not checked.
	s := Stats{Min: 5, Max: 1}

	require.NoError(t, s.validate("cqi"))
	assert.Equal(t, telemetry.SampleStats{}, s.toTelemetry())
}

func TestSchedulerReport_OutOfRangeUEAccepted(t *testing.T) {
	r := SchedulerReport{PCI: 1, UEs: []SchedulerUE{{UEIndex: telemetry.MaxNofUEs + 5}}}

	assert.NoError(t, r.Validate())
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope([]byte("not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrInvalid)

	// Shape problems are invalid but not malformed.
	_, err = ParseEnvelope([]byte(`{"type":"rlc"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestParseEnvelope_SkipsPayloadValidation(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"rlc","rlc":{"mode":"xm"}}`))
	require.NoError(t, err)
	assert.Error(t, env.Validate())
}
