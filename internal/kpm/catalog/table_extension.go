package catalog

// Metric names from the extension table.
const (
	MetricRIDl              = "UE.RI.Dl"
	MetricRIUl              = "UE.RI.Ul"
	MetricTA                = "UE.TA"
	MetricPHR               = "UE.PHR"
	MetricBSR               = "UE.BSR"
	MetricDlBufferStatus    = "UE.DlBufferStatus"
	MetricPuschSnr          = "UE.PuschSnr"
	MetricMcsDl             = "UE.McsDl"
	MetricMcsUl             = "UE.McsUl"
	MetricRlcMalformedPdus  = "RLC.MalformedPdusUl"
	MetricRlcDiscardFailure = "RLC.DiscardFailuresDl"
	MetricRlcSegmentedPdus  = "RLC.SegmentedPdusDl"
	MetricRlcRetxPdus       = "RLC.RetxPdusDl"
	MetricRlcSduVolDlTotal  = "RLC.SduVolumeDlTotal"
	MetricRlcSduVolUlTotal  = "RLC.SduVolumeUlTotal"
)

// extensionTable holds the O-RAN / vendor metrics. CQI is declared here as
// well with a coarser integer kind; the general table's definition wins.
var extensionTable = []Definition{
	{
		Name: MetricCQI, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRIDl, DataType: Real, Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRIUl, DataType: Real, Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricTA, DataType: Real, Unit: "us", Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPHR, DataType: Integer, Unit: "dB", Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricBSR, DataType: Integer, Unit: "byte", Levels: levelAll,
		Labels: LabelSet(SumLabel, MinLabel, MaxLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricDlBufferStatus, DataType: Integer, Unit: "byte", Levels: levelAll,
		Labels: LabelSet(SumLabel, MinLabel, MaxLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPuschSnr, DataType: Real, Unit: "dB", Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricMcsDl, DataType: Integer, Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricMcsUl, DataType: Integer, Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRlcMalformedPdus, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricRlcDiscardFailure, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricRlcSegmentedPdus, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricRlcRetxPdus, DataType: Integer, Levels: LevelUE,
		Labels: LabelSet(SumLabel), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricRlcSduVolDlTotal, DataType: Integer, Unit: "kbit", Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC, Window: WindowCumulative,
		Supported: true,
	},
	{
		Name: MetricRlcSduVolUlTotal, DataType: Integer, Unit: "kbit", Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC, Window: WindowCumulative,
		Supported: true,
	},
}
