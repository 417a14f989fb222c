package domain

// CloseReason is the closed set of canonical reasons carried by ledger
// events and closing fills. Free-form strategy reasons from blueprints are
// preserved in event meta, never in this enum.
type CloseReason string

// Canonical reasons.
const (
	// ReasonNone is the zero value, legal only on POSITION_OPENED events.
	ReasonNone CloseReason = ""

	// ReasonPartialExit tags ladder rungs: a target-hit reduction.
	ReasonPartialExit CloseReason = "partial_exit"

	// ReasonStrategyExit is the blueprint's own final exit.
	ReasonStrategyExit CloseReason = "strategy_exit"

	// ReasonProfitReset is a forced closure by the profit-reset policy.
	ReasonProfitReset CloseReason = "profit_reset"

	// ReasonCapacityPrune is a forced closure by the capacity-prune policy.
	ReasonCapacityPrune CloseReason = "capacity_prune"

	// ReasonMaxHold is a forced closure by the max-hold policy.
	ReasonMaxHold CloseReason = "max_hold"

	// ReasonEndOfData is the end-of-timeline safety bound.
	ReasonEndOfData CloseReason = "end_of_data"
)

// Valid reports whether r is a member of the canonical set (ReasonNone
// excluded; openings carry no reason).
func (r CloseReason) Valid() bool {
	switch r {
	case ReasonPartialExit, ReasonStrategyExit, ReasonProfitReset,
		ReasonCapacityPrune, ReasonMaxHold, ReasonEndOfData:
		return true
	}
	return false
}

// Forced reports whether r is a policy- or safety-driven closure rather
// than a blueprint-scheduled one.
func (r CloseReason) Forced() bool {
	switch r {
	case ReasonProfitReset, ReasonCapacityPrune, ReasonMaxHold, ReasonEndOfData:
		return true
	}
	return false
}
