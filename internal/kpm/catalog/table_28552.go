package catalog

// Metric names from 3GPP TS 28.552.
const (
	MetricCQI                 = "CQI"
	MetricRSRP                = "RSRP"
	MetricRSRQ                = "RSRQ"
	MetricAirIfDelayUl        = "DRB.AirIfDelayUl"
	MetricPacketSuccessRateUl = "DRB.PacketSuccessRateUlgNBUu"
	MetricRlcDelayUl          = "DRB.RlcDelayUl"
	MetricRlcPacketDropRateDl = "DRB.RlcPacketDropRateDl"
	MetricRlcSduDelayDl       = "DRB.RlcSduDelayDl"
	MetricPacketLossRateUl    = "DRB.PacketLossRateUl"
	MetricRlcSduTxVolumeDl    = "DRB.RlcSduTransmittedVolumeDL"
	MetricRlcSduTxVolumeUl    = "DRB.RlcSduTransmittedVolumeUL"
	MetricUEThpDl             = "DRB.UEThpDl"
	MetricUEThpUl             = "DRB.UEThpUl"
	MetricPrbAvailDl          = "RRU.PrbAvailDl"
	MetricPrbAvailUl          = "RRU.PrbAvailUl"
	MetricPrbUsedDl           = "RRU.PrbUsedDl"
	MetricPrbUsedUl           = "RRU.PrbUsedUl"
	MetricPrbTotDl            = "RRU.PrbTotDl"
	MetricPrbTotUl            = "RRU.PrbTotUl"
	MetricRachPreambleACell   = "RACH.PreambleACell"
	MetricRachPreambleDedCell = "RACH.PreambleDedCell"
	MetricTBTotNbrDl          = "TB.TotNbrDl"
	MetricTBTotNbrUl          = "TB.TotNbrUl"
	MetricTBErrTotalNbrDl     = "TB.ErrTotalNbrDl"
	MetricTBErrTotalNbrUl     = "TB.ErrTotalNbrUl"
	MetricMeanActiveUeDl      = "DRB.MeanActiveUeDl"
	MetricMeanActiveUeUl      = "DRB.MeanActiveUeUl"
	MetricRRCConnMean         = "RRC.ConnMean"
)

var distributionLabels = LabelSet(MinLabel, MaxLabel, AvgLabel)

// general28552 is the general KPI table. Order is significant: it defines
// the order of supported-name listings.
var general28552 = []Definition{
	{
		Name: MetricCQI, DataType: Real, Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRSRP, DataType: Integer, Unit: "dBm", Levels: LevelUE,
		Labels: LabelSet(), Source: SourceScheduler,
	},
	{
		Name: MetricRSRQ, DataType: Integer, Unit: "dB", Levels: LevelUE,
		Labels: LabelSet(), Source: SourceScheduler,
	},
	{
		Name: MetricAirIfDelayUl, DataType: Real, Unit: "ms", Levels: levelAll,
		Labels: LabelSet(AvgLabel), Source: SourceScheduler,
		CellScope: true, NoValueWhenAbsent: true, Supported: true,
	},
	{
		Name: MetricPacketSuccessRateUl, DataType: Real, Unit: "%", Levels: levelAll,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRlcDelayUl, DataType: Real, Unit: "ms", Levels: levelAll,
		Labels: LabelSet(AvgLabel), Source: SourceRLC,
		NoValueWhenAbsent: true, Supported: true,
	},
	{
		Name: MetricRlcPacketDropRateDl, DataType: Real, Unit: "%", Levels: levelAll,
		Labels: LabelSet(), Source: SourceRLC,
		NoValueWhenAbsent: true, Supported: true,
	},
	{
		Name: MetricRlcSduDelayDl, DataType: Real, Unit: "ms", Levels: levelAll,
		Labels: LabelSet(AvgLabel), Source: SourceRLC,
		NoValueWhenAbsent: true, Supported: true,
	},
	{
		Name: MetricPacketLossRateUl, DataType: Real, Unit: "%", Levels: levelAll,
		Labels: LabelSet(), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricRlcSduTxVolumeDl, DataType: Integer, Unit: "kbit", Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricRlcSduTxVolumeUl, DataType: Integer, Unit: "kbit", Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceRLC,
		Supported: true,
	},
	{
		Name: MetricUEThpDl, DataType: Real, Unit: "kbps", Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricUEThpUl, DataType: Real, Unit: "kbps", Levels: levelAll,
		Labels: distributionLabels, Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPrbAvailDl, DataType: Integer, Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPrbAvailUl, DataType: Integer, Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPrbUsedDl, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPrbUsedUl, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPrbTotDl, DataType: Real, Unit: "%", Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricPrbTotUl, DataType: Real, Unit: "%", Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRachPreambleACell, DataType: Integer, Levels: LevelNode,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRachPreambleDedCell, DataType: Integer, Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true,
	},
	{
		Name: MetricTBTotNbrDl, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricTBTotNbrUl, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricTBErrTotalNbrDl, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricTBErrTotalNbrUl, DataType: Integer, Levels: levelAll,
		Labels: LabelSet(SumLabel), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricMeanActiveUeDl, DataType: Real, Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricMeanActiveUeUl, DataType: Real, Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
	{
		Name: MetricRRCConnMean, DataType: Real, Levels: LevelNode,
		Labels: LabelSet(), Source: SourceScheduler,
		CellScope: true, Supported: true,
	},
}
