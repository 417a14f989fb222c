package domain

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

// Position status constants. A position is open from admission until its
// remaining size reaches zero, then closed and immutable.
const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is the engine-owned financial record of one admitted blueprint.
// RemainingSize decreases monotonically from OriginalSize and reaches zero
// exactly when Status flips to closed. RealizedPnL and FeesTotal are sums
// of the position's fill fields and are frozen at close.
type Position struct {
	PositionID string
	SignalID   string
	ContractID string

	EntryTime int64 // ms
	ExitTime  int64 // ms, 0 while open
	Status    PositionStatus

	OriginalSize  float64 // SOL notional committed at entry
	RemainingSize float64 // SOL basis still held

	EntryPriceRaw      float64
	EntryPriceExecuted float64
	ExitPriceRaw       float64 // raw price of the closing fill
	ExitPriceExecuted  float64

	RealizedPnL float64 // gross of fees, sum of fill pnl deltas
	FeesTotal   float64 // sum of fill fees

	CloseReason CloseReason

	// PeakMultiple is the highest raw-price multiple observed over the
	// position's own blueprint events. Consumed by tail protection.
	PeakMultiple float64

	// MarkPriceRaw is the last known raw price for the contract, used to
	// value the position between blueprint events and on forced closure.
	MarkPriceRaw float64

	// MarkPriceFallback is set when a forced closure had to fall back to
	// the entry price because no later raw price was known.
	MarkPriceFallback bool

	// MarketCapProxy mirrors the blueprint field. Nil means unknown.
	MarketCapProxy *float64

	ResetFlags ResetFlags
}

// ResetFlags record a position's role in a profit-reset episode.
type ResetFlags struct {
	// ResetTrigger marks the position the PORTFOLIO_RESET_TRIGGERED event
	// references.
	ResetTrigger bool

	// SyntheticMarker marks a zero-size position created only so a reset
	// with no open positions still has a valid position reference.
	SyntheticMarker bool
}

// CurrentMultiple returns the position's mark-to-market raw multiple.
// Before any price has been observed past entry it is 1.0.
func (p *Position) CurrentMultiple() float64 {
	if p.EntryPriceRaw <= 0 {
		return 0
	}
	mark := p.MarkPriceRaw
	if mark <= 0 {
		mark = p.EntryPriceRaw
	}
	return mark / p.EntryPriceRaw
}

// HoldDurationMs returns the hold time up to now (open) or at exit (closed).
func (p *Position) HoldDurationMs(nowMs int64) int64 {
	if p.Status == PositionClosed {
		return p.ExitTime - p.EntryTime
	}
	return nowMs - p.EntryTime
}

// MarkValue returns the mark-to-market SOL value of the remaining size.
func (p *Position) MarkValue() float64 {
	return p.RemainingSize * p.CurrentMultiple()
}
