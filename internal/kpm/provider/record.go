package provider

import (
	"encoding/json"
	"strconv"
)

// RecordType is the kind of a measurement record.
type RecordType uint8

const (
	RecordInteger RecordType = iota
	RecordReal
	RecordNoValue
)

func (t RecordType) String() string {
	switch t {
	case RecordInteger:
		return "integer"
	case RecordReal:
		return "real"
	default:
		return "no_value"
	}
}

// Record is one E2SM-KPM measurement record item.
type Record struct {
	Type    RecordType
	Integer int64
	Real    float64
}

// IntegerRecord returns an integer record.
func IntegerRecord(v int64) Record {
	return Record{Type: RecordInteger, Integer: v}
}

// RealRecord returns a real record.
func RealRecord(v float64) Record {
	return Record{Type: RecordReal, Real: v}
}

// NoValueRecord returns the no-value sentinel.
func NoValueRecord() Record {
	return Record{Type: RecordNoValue}
}

// Value returns the record as a float. ok is false for no-value records.
func (r Record) Value() (v float64, ok bool) {
	switch r.Type {
	case RecordInteger:
		return float64(r.Integer), true
	case RecordReal:
		return r.Real, true
	default:
		return 0, false
	}
}

func (r Record) String() string {
	switch r.Type {
	case RecordInteger:
		return strconv.FormatInt(r.Integer, 10)
	case RecordReal:
		return strconv.FormatFloat(r.Real, 'g', -1, 64)
	default:
		return "no_value"
	}
}

type recordJSON struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value"`
}

// MarshalJSON renders {"type": "...", "value": n}; no-value records carry a
// null value.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Type: r.Type.String()}

	if v, ok := r.Value(); ok {
		out.Value = &v
	}

	return json.Marshal(out)
}
