package catalog

import "strings"

// DataType is the numeric kind of a measurement value.
type DataType uint8

const (
	// Integer values are reported as integer records.
	Integer DataType = iota
	// Real values are reported as real records.
	Real
)

func (d DataType) String() string {
	if d == Integer {
		return "INTEGER"
	}

	return "REAL"
}

// Level is a bitmask of the scope levels a metric applies to.
type Level uint8

const (
	// LevelNode is the E2 node level (whole DU / cell aggregate).
	LevelNode Level = 1 << iota
	// LevelUE is the per-subscriber level.
	LevelUE

	levelAll = LevelNode | LevelUE
)

// Has reports whether l includes every bit of other.
func (l Level) Has(other Level) bool {
	return other != 0 && l&other == other
}

func (l Level) String() string {
	switch l {
	case LevelNode:
		return "E2_NODE_LEVEL"
	case LevelUE:
		return "UE_LEVEL"
	case levelAll:
		return "E2_NODE_LEVEL|UE_LEVEL"
	default:
		return "UNKNOWN_LEVEL"
	}
}

// ParseLevel parses "node" or "ue" (case-insensitive). The E2SM names
// E2_NODE_LEVEL and UE_LEVEL are accepted as well.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "node", "e2_node_level", "e2node":
		return LevelNode, true
	case "ue", "ue_level":
		return LevelUE, true
	default:
		return 0, false
	}
}

// Label selects the derived statistic reported for a metric.
type Label uint8

const (
	// NoLabel requests the metric's default statistic.
	NoLabel Label = iota
	// MinLabel requests the minimum.
	MinLabel
	// MaxLabel requests the maximum.
	MaxLabel
	// AvgLabel requests the mean.
	AvgLabel
	// SumLabel requests the sum.
	SumLabel

	numLabels
)

var labelNames = [numLabels]string{"no_label", "min", "max", "avg", "sum"}

func (l Label) String() string {
	if l < numLabels {
		return labelNames[l]
	}

	return "unknown"
}

// ParseLabel parses a label name as rendered by Label.String. The empty
// string maps to NoLabel.
func ParseLabel(s string) (Label, bool) {
	if s == "" {
		return NoLabel, true
	}

	for i, name := range labelNames {
		if strings.EqualFold(s, name) {
			return Label(i), true
		}
	}

	return 0, false
}

// Labels is a bitmask of accepted labels.
type Labels uint8

// LabelSet builds a Labels mask. NoLabel is always included.
func LabelSet(labels ...Label) Labels {
	set := Labels(1 << NoLabel)
	for _, l := range labels {
		set |= 1 << l
	}

	return set
}

// Accepts reports whether the label is part of the set.
func (s Labels) Accepts(l Label) bool {
	return l < numLabels && s&(1<<l) != 0
}

// List returns the labels in the set in enum order.
func (s Labels) List() []Label {
	out := make([]Label, 0, numLabels)

	for l := Label(0); l < numLabels; l++ {
		if s.Accepts(l) {
			out = append(out, l)
		}
	}

	return out
}

// Source is the producing subsystem a metric is computed from.
type Source uint8

const (
	// SourceScheduler metrics are derived from MAC scheduler cell reports.
	SourceScheduler Source = iota
	// SourceRLC metrics are derived from per-bearer RLC reports.
	SourceRLC
)

func (s Source) String() string {
	if s == SourceScheduler {
		return "scheduler"
	}

	return "rlc"
}

// Window selects whether a metric reads the latest report or running totals.
type Window uint8

const (
	// WindowPeriod metrics only see the latest report per key.
	WindowPeriod Window = iota
	// WindowCumulative metrics see sums over every report since start.
	WindowCumulative
)

func (w Window) String() string {
	if w == WindowCumulative {
		return "cumulative"
	}

	return "period"
}

// Provenance names the table a definition was declared in.
type Provenance uint8

const (
	// ProvenanceTS28552 is the general 3GPP TS 28.552 KPI table.
	ProvenanceTS28552 Provenance = iota
	// ProvenanceExtension is the O-RAN / vendor extension table.
	ProvenanceExtension
)

func (p Provenance) String() string {
	if p == ProvenanceTS28552 {
		return "3GPP TS 28.552"
	}

	return "extension"
}

// Definition describes one named KPM metric. Values are immutable once the
// catalog is built.
type Definition struct {
	Name     string
	DataType DataType
	Unit     string
	Levels   Level
	Labels   Labels
	Source   Source
	Window   Window
	// CellScope is set when the metric can be filtered by cell global ID.
	CellScope bool
	// NoValueWhenAbsent metrics report the no-value sentinel instead of zero
	// when no telemetry exists for them.
	NoValueWhenAbsent bool
	// Supported is false for metrics 3GPP declares that this provider
	// cannot compute.
	Supported  bool
	Provenance Provenance
}
