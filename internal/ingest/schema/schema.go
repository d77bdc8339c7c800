// Package schema defines the JSON wire format DU producers use to push
// scheduler and RLC reports, and its conversion to telemetry types.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

// Envelope types.
const (
	TypeScheduler = "scheduler"
	TypeRLC       = "rlc"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid report")
	// ErrMalformed is returned for payloads that are not JSON envelopes.
	ErrMalformed = fmt.Errorf("%w: malformed json", ErrInvalid)
)

// Stats is a serialized running statistic.
type Stats struct {
	Count uint32  `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func (s Stats) validate(field string) error {
	if s.Count > 0 && s.Min > s.Max {
		return fmt.Errorf("%w: %s: min %v > max %v", ErrInvalid, field, s.Min, s.Max)
	}

	return nil
}

func (s Stats) toTelemetry() telemetry.SampleStats {
	if s.Count == 0 {
		return telemetry.SampleStats{}
	}

	return telemetry.SampleStats{Count: s.Count, Sum: s.Sum, Min: s.Min, Max: s.Max}
}

// SchedulerReport is one MAC scheduler report for a cell.
type SchedulerReport struct {
	PCI uint16 `json:"pci"`
	// CellID is the NR CGI as hex "plmn/nci"; optional.
	CellID            string        `json:"cell_id,omitempty"`
	NofPRBs           uint32        `json:"nof_prbs"`
	NofDLSlots        uint32        `json:"nof_dl_slots"`
	NofULSlots        uint32        `json:"nof_ul_slots"`
	NofPRACHPreambles uint32        `json:"nof_prach_preambles"`
	UEs               []SchedulerUE `json:"ues"`
}

// SchedulerUE is the per-UE part of a scheduler report.
type SchedulerUE struct {
	UEIndex        uint16   `json:"ue_index"`
	PCI            uint16   `json:"pci"`
	RNTI           uint16   `json:"rnti"`
	CQI            Stats    `json:"cqi"`
	DLRI           Stats    `json:"dl_ri"`
	ULRI           Stats    `json:"ul_ri"`
	TA             Stats    `json:"ta"`
	DLMCS          uint8    `json:"dl_mcs"`
	ULMCS          uint8    `json:"ul_mcs"`
	TotPDSCHPRBs   uint64   `json:"tot_pdsch_prbs"`
	TotPUSCHPRBs   uint64   `json:"tot_pusch_prbs"`
	DLBitrateKbps  float64  `json:"dl_brate_kbps"`
	ULBitrateKbps  float64  `json:"ul_brate_kbps"`
	DLNofOK        uint64   `json:"dl_nof_ok"`
	DLNofNOK       uint64   `json:"dl_nof_nok"`
	ULNofOK        uint64   `json:"ul_nof_ok"`
	ULNofNOK       uint64   `json:"ul_nof_nok"`
	AvgCRCDelayMs  *float64 `json:"avg_crc_delay_ms,omitempty"`
	PUSCHSNRdB     float64  `json:"pusch_snr_db"`
	LastPHR        *int     `json:"last_phr,omitempty"`
	DLBufferStatus uint64   `json:"dl_bs"`
	BSR            uint64   `json:"bsr"`
}

// Validate checks structural consistency. Out-of-range UE indexes are
// accepted here; the accumulator drops and counts them.
func (r *SchedulerReport) Validate() error {
	_, err := r.ToTelemetry()

	return err
}

// ToTelemetry converts and validates the report.
func (r *SchedulerReport) ToTelemetry() (telemetry.SchedulerCellMetrics, error) {
	out := telemetry.SchedulerCellMetrics{
		PCI:               r.PCI,
		NofPRBs:           r.NofPRBs,
		NofDLSlots:        r.NofDLSlots,
		NofULSlots:        r.NofULSlots,
		NofPRACHPreambles: r.NofPRACHPreambles,
		UEs:               make([]telemetry.SchedulerUEMetrics, 0, len(r.UEs)),
	}

	if r.CellID != "" {
		cgi, err := cellid.Parse(r.CellID)
		if err != nil {
			return telemetry.SchedulerCellMetrics{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}

		out.CellID = &cgi
	}

	for i := range r.UEs {
		ue := &r.UEs[i]

		for field, st := range map[string]Stats{"cqi": ue.CQI, "dl_ri": ue.DLRI, "ul_ri": ue.ULRI, "ta": ue.TA} {
			if err := st.validate(fmt.Sprintf("ues[%d].%s", i, field)); err != nil {
				return telemetry.SchedulerCellMetrics{}, err
			}
		}

		out.UEs = append(out.UEs, telemetry.SchedulerUEMetrics{
			UEIndex:        telemetry.UEIndex(ue.UEIndex),
			PCI:            ue.PCI,
			RNTI:           ue.RNTI,
			CQI:            ue.CQI.toTelemetry(),
			DLRI:           ue.DLRI.toTelemetry(),
			ULRI:           ue.ULRI.toTelemetry(),
			TA:             ue.TA.toTelemetry(),
			DLMCS:          ue.DLMCS,
			ULMCS:          ue.ULMCS,
			TotPDSCHPRBs:   ue.TotPDSCHPRBs,
			TotPUSCHPRBs:   ue.TotPUSCHPRBs,
			DLBitrateKbps:  ue.DLBitrateKbps,
			ULBitrateKbps:  ue.ULBitrateKbps,
			DLNofOK:        ue.DLNofOK,
			DLNofNOK:       ue.DLNofNOK,
			ULNofOK:        ue.ULNofOK,
			ULNofNOK:       ue.ULNofNOK,
			AvgCRCDelayMs:  ue.AvgCRCDelayMs,
			PUSCHSNRdB:     ue.PUSCHSNRdB,
			LastPHR:        ue.LastPHR,
			DLBufferStatus: ue.DLBufferStatus,
			BSR:            ue.BSR,
		})
	}

	return out, nil
}

// RLCReport is one RLC report for a single bearer.
type RLCReport struct {
	UEIndex  uint16 `json:"ue_index"`
	BearerID uint8  `json:"bearer_id"`
	// Mode is "tm", "um" or "am".
	Mode     string `json:"mode"`
	PeriodMs uint32 `json:"period_ms"`
	RX       RLCRx  `json:"rx"`
	TX       RLCTx  `json:"tx"`
}

// RLCRx are the receive-side counters.
type RLCRx struct {
	NumPDUs          uint64 `json:"num_pdus"`
	NumPDUBytes      uint64 `json:"num_pdu_bytes"`
	NumSDUs          uint64 `json:"num_sdus"`
	NumSDUBytes      uint64 `json:"num_sdu_bytes"`
	NumLostPDUs      uint64 `json:"num_lost_pdus"`
	NumMalformedPDUs uint64 `json:"num_malformed_pdus"`
	SDULatencyUs     uint64 `json:"sdu_latency_us"`
}

// RLCTx are the transmit-side counters.
type RLCTx struct {
	High RLCTxHigh `json:"high"`
	Low  RLCTxLow  `json:"low"`
}

// RLCTxHigh are the upper-layer transmit counters.
type RLCTxHigh struct {
	NumSDUs            uint64 `json:"num_sdus"`
	NumSDUBytes        uint64 `json:"num_sdu_bytes"`
	NumDroppedSDUs     uint64 `json:"num_dropped_sdus"`
	NumDiscardedSDUs   uint64 `json:"num_discarded_sdus"`
	NumDiscardFailures uint64 `json:"num_discard_failures"`
}

// RLCTxLow are the lower-layer transmit counters. AM is only present for
// acknowledged-mode bearers.
type RLCTxLow struct {
	SumSDULatencyUs           uint64      `json:"sum_sdu_latency_us"`
	NumPulledSDUs             uint64      `json:"num_pulled_sdus"`
	NumPDUsNoSegmentation     uint64      `json:"num_pdus_no_segmentation"`
	NumPDUBytesNoSegmentation uint64      `json:"num_pdu_bytes_no_segmentation"`
	AM                        *RLCTxLowAM `json:"am,omitempty"`
}

// RLCTxLowAM are the acknowledged-mode lower transmit counters.
type RLCTxLowAM struct {
	NumPDUsWithSegmentation     uint64 `json:"num_pdus_with_segmentation"`
	NumPDUBytesWithSegmentation uint64 `json:"num_pdu_bytes_with_segmentation"`
	NumRetxPDUs                 uint64 `json:"num_retx_pdus"`
}

func parseMode(s string) (telemetry.Mode, bool) {
	switch s {
	case "tm":
		return telemetry.ModeTM, true
	case "um":
		return telemetry.ModeUM, true
	case "am":
		return telemetry.ModeAM, true
	default:
		return 0, false
	}
}

// Validate checks structural consistency.
func (r *RLCReport) Validate() error {
	_, err := r.ToTelemetry()

	return err
}

// ToTelemetry converts and validates the report.
func (r *RLCReport) ToTelemetry() (telemetry.RLCMetrics, error) {
	mode, ok := parseMode(r.Mode)
	if !ok {
		return telemetry.RLCMetrics{}, fmt.Errorf("%w: unknown rlc mode %q", ErrInvalid, r.Mode)
	}

	if r.TX.Low.AM != nil && mode != telemetry.ModeAM {
		return telemetry.RLCMetrics{}, fmt.Errorf("%w: am counters on %s bearer", ErrInvalid, r.Mode)
	}

	out := telemetry.RLCMetrics{
		UEIndex:  telemetry.UEIndex(r.UEIndex),
		BearerID: telemetry.BearerID(r.BearerID),
		Mode:     mode,
		Period:   time.Duration(r.PeriodMs) * time.Millisecond,
		RX:       telemetry.RLCRxMetrics(r.RX),
		TX: telemetry.RLCTxMetrics{
			High: telemetry.RLCTxHighMetrics(r.TX.High),
			Low: telemetry.RLCTxLowMetrics{
				SumSDULatencyUs:           r.TX.Low.SumSDULatencyUs,
				NumPulledSDUs:             r.TX.Low.NumPulledSDUs,
				NumPDUsNoSegmentation:     r.TX.Low.NumPDUsNoSegmentation,
				NumPDUBytesNoSegmentation: r.TX.Low.NumPDUBytesNoSegmentation,
			},
		},
	}

	if am := r.TX.Low.AM; am != nil {
		out.TX.Low.AM = &telemetry.RLCAMTxLowMetrics{
			NumPDUsWithSegmentation:     am.NumPDUsWithSegmentation,
			NumPDUBytesWithSegmentation: am.NumPDUBytesWithSegmentation,
			NumRetxPDUs:                 am.NumRetxPDUs,
		}
	}

	return out, nil
}

// Envelope carries one report on the stream and websocket transports.
type Envelope struct {
	Type      string           `json:"type"`
	Scheduler *SchedulerReport `json:"scheduler,omitempty"`
	RLC       *RLCReport       `json:"rlc,omitempty"`
}

// CheckShape checks that exactly the payload named by Type is present,
// without validating the payload itself.
func (e *Envelope) CheckShape() error {
	switch e.Type {
	case TypeScheduler:
		if e.Scheduler == nil || e.RLC != nil {
			return fmt.Errorf("%w: scheduler envelope needs exactly a scheduler payload", ErrInvalid)
		}
	case TypeRLC:
		if e.RLC == nil || e.Scheduler != nil {
			return fmt.Errorf("%w: rlc envelope needs exactly an rlc payload", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown envelope type %q", ErrInvalid, e.Type)
	}

	return nil
}

// Validate checks the envelope shape and its payload.
func (e *Envelope) Validate() error {
	if err := e.CheckShape(); err != nil {
		return err
	}

	if e.Type == TypeScheduler {
		return e.Scheduler.Validate()
	}

	return e.RLC.Validate()
}

// ParseEnvelope unmarshals one JSON envelope and checks its shape.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope

	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := env.CheckShape(); err != nil {
		return Envelope{}, err
	}

	return env, nil
}

// DecodeEnvelope parses and fully validates one JSON envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return Envelope{}, err
	}

	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}

	return env, nil
}
