package domain

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Blueprint validation errors.
var (
	ErrBlueprintInvalid = errors.New("invalid trade blueprint")
)

// TradeBlueprint is the immutable output of the strategy layer: one entry,
// an optional partial-exit ladder and an optional final exit, all expressed
// in raw (theoretical) prices. The engine never mutates a blueprint and
// never re-derives strategy intent from it.
//
// Blueprints carry no portfolio-level fields (capital size, fees, pnl);
// those are illegal at this boundary and belong to the engine alone.
type TradeBlueprint struct {
	SignalID      string
	ContractID    string // token mint address, base58
	EntryTime     int64  // ms
	EntryPriceRaw float64

	PartialExits []PartialExitLevel
	FinalExit    *FinalExit

	// LastKnownRawPrice is optional strategy-layer metadata used as the
	// second tier of mark-price resolution on forced closure.
	LastKnownRawPrice *float64

	// MarketCapProxy is an optional liquidity/size proxy consumed by the
	// capacity-prune candidate filter. Nil means unknown.
	MarketCapProxy *float64
}

// PartialExitLevel is one rung of the blueprint's exit ladder.
type PartialExitLevel struct {
	Time               int64 // ms
	TargetMultiple     float64
	FractionOfOriginal float64
	RawPrice           float64
}

// FinalExit is the blueprint's own terminal exit, if the strategy produced one.
type FinalExit struct {
	Time     int64 // ms
	RawPrice float64
	Reason   string // opaque strategy reason, recorded in event meta
}

// FractionSumTolerance absorbs float accumulation when checking that
// ladder fractions sum to at most 1.0.
const FractionSumTolerance = 1e-9

// Validate checks a blueprint against the input contract. It returns a
// wrapped ErrBlueprintInvalid describing the first violation found.
func (b *TradeBlueprint) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil blueprint", ErrBlueprintInvalid)
	}
	if b.SignalID == "" {
		return fmt.Errorf("%w: empty signal_id", ErrBlueprintInvalid)
	}
	if err := ValidateContractID(b.ContractID); err != nil {
		return fmt.Errorf("%w: signal %s: %v", ErrBlueprintInvalid, b.SignalID, err)
	}
	if b.EntryPriceRaw <= 0 {
		return fmt.Errorf("%w: signal %s: entry price %f must be positive", ErrBlueprintInvalid, b.SignalID, b.EntryPriceRaw)
	}

	fractionSum := 0.0
	prevTime := b.EntryTime
	for i, pe := range b.PartialExits {
		if pe.Time <= prevTime {
			return fmt.Errorf("%w: signal %s: partial exit %d time %d not after %d", ErrBlueprintInvalid, b.SignalID, i, pe.Time, prevTime)
		}
		if pe.FractionOfOriginal <= 0 || pe.FractionOfOriginal > 1 {
			return fmt.Errorf("%w: signal %s: partial exit %d fraction %f out of (0,1]", ErrBlueprintInvalid, b.SignalID, i, pe.FractionOfOriginal)
		}
		if pe.RawPrice <= 0 {
			return fmt.Errorf("%w: signal %s: partial exit %d price %f must be positive", ErrBlueprintInvalid, b.SignalID, i, pe.RawPrice)
		}
		if pe.TargetMultiple <= 0 {
			return fmt.Errorf("%w: signal %s: partial exit %d target multiple %f must be positive", ErrBlueprintInvalid, b.SignalID, i, pe.TargetMultiple)
		}
		fractionSum += pe.FractionOfOriginal
		prevTime = pe.Time
	}
	if fractionSum > 1.0+FractionSumTolerance {
		return fmt.Errorf("%w: signal %s: partial exit fractions sum to %f > 1.0", ErrBlueprintInvalid, b.SignalID, fractionSum)
	}

	if fe := b.FinalExit; fe != nil {
		if fe.Time <= b.EntryTime {
			return fmt.Errorf("%w: signal %s: final exit time %d not after entry %d", ErrBlueprintInvalid, b.SignalID, fe.Time, b.EntryTime)
		}
		if fe.Time < prevTime {
			return fmt.Errorf("%w: signal %s: final exit time %d before last partial exit %d", ErrBlueprintInvalid, b.SignalID, fe.Time, prevTime)
		}
		if fe.RawPrice <= 0 {
			return fmt.Errorf("%w: signal %s: final exit price %f must be positive", ErrBlueprintInvalid, b.SignalID, fe.RawPrice)
		}
	}

	if b.LastKnownRawPrice != nil && *b.LastKnownRawPrice <= 0 {
		return fmt.Errorf("%w: signal %s: last known price %f must be positive", ErrBlueprintInvalid, b.SignalID, *b.LastKnownRawPrice)
	}

	return nil
}

// ValidateContractID checks that the contract is a plausible SPL mint:
// base58, exactly 32 bytes, and on the ed25519 curve (PDAs are off-curve
// and cannot be mints).
func ValidateContractID(contractID string) error {
	if contractID == "" {
		return fmt.Errorf("empty contract_id")
	}
	decoded, err := base58.Decode(contractID)
	if err != nil {
		return fmt.Errorf("contract_id is not base58: %v", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("contract_id decodes to %d bytes, want 32", len(decoded))
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return fmt.Errorf("contract_id is off the ed25519 curve")
	}
	return nil
}
