package domain

// Fill is one execution-level record. Every fill back-references the event
// it was emitted under (never the other way around), and a position's fill
// set must sum exactly to its aggregate fields:
//
//	sum(Fees)             == Position.FeesTotal
//	sum(RealizedPnLDelta) == Position.RealizedPnL
//	sum(QuantityDelta)    == 0 once closed
type Fill struct {
	FillID      string
	EventID     string
	PositionID  string
	Ordinal     int64 // emission order within the run, dense from zero
	TimestampMs int64

	// QuantityDelta is the SOL-basis size change: positive on entry,
	// negative on reductions and closure.
	QuantityDelta float64

	RawPrice      float64
	ExecutedPrice float64

	Fees float64

	// RealizedPnLDelta is the gross pnl contribution of this fill, before
	// fees. Zero on entry fills.
	RealizedPnLDelta float64
}
