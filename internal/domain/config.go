package domain

import (
	"errors"
	"fmt"
)

// Config validation errors.
var (
	ErrConfigInvalid = errors.New("invalid simulation config")
)

// SizingMode selects the base for per-trade notional sizing.
type SizingMode string

// Sizing modes: fixed uses the starting balance, dynamic the current
// available capital.
const (
	SizingFixed   SizingMode = "fixed"
	SizingDynamic SizingMode = "dynamic"
)

// CostModelConfig parameterizes the execution pricing model.
// Slippage on an exit is BaseSlippagePct scaled by the reason multiplier;
// entries use EntryMultiplier. Fees are (SwapFeeRate + LiquidityFeeRate)
// applied to notional plus a fixed network fee per transaction.
type CostModelConfig struct {
	PresetID        string
	BaseSlippagePct float64 // percent of price at multiplier 1.0

	EntryMultiplier   float64
	ReasonMultipliers map[CloseReason]float64

	SwapFeeRate      float64 // fraction of notional
	LiquidityFeeRate float64 // fraction of notional
	NetworkFeeSOL    float64 // per transaction, once on entry, once per exit fill
}

// Cost preset IDs, named after execution quality assumptions.
const (
	CostPresetOptimistic  = "optimistic"
	CostPresetRealistic   = "realistic"
	CostPresetPessimistic = "pessimistic"
	CostPresetDegraded    = "degraded"
)

// defaultReasonMultipliers encodes the reason ordering: target-hit partial
// exits see less slippage than the strategy's own panic/stop exits, and
// timeout/forced closures see the least.
func defaultReasonMultipliers() map[CloseReason]float64 {
	return map[CloseReason]float64{
		ReasonPartialExit:   0.5,
		ReasonStrategyExit:  1.0,
		ReasonProfitReset:   0.25,
		ReasonCapacityPrune: 0.25,
		ReasonMaxHold:       0.25,
		ReasonEndOfData:     0.25,
	}
}

// CostPreset returns the predefined cost model for a preset ID, or nil if
// the ID is unknown.
func CostPreset(id string) *CostModelConfig {
	base := CostModelConfig{
		PresetID:          id,
		EntryMultiplier:   1.0,
		ReasonMultipliers: defaultReasonMultipliers(),
	}
	switch id {
	case CostPresetOptimistic:
		base.BaseSlippagePct = 0.5
		base.SwapFeeRate = 0.0025
		base.LiquidityFeeRate = 0.0005
		base.NetworkFeeSOL = 0.000005
	case CostPresetRealistic:
		base.BaseSlippagePct = 2.0
		base.SwapFeeRate = 0.0025
		base.LiquidityFeeRate = 0.001
		base.NetworkFeeSOL = 0.0001
	case CostPresetPessimistic:
		base.BaseSlippagePct = 5.0
		base.SwapFeeRate = 0.003
		base.LiquidityFeeRate = 0.002
		base.NetworkFeeSOL = 0.001
	case CostPresetDegraded:
		base.BaseSlippagePct = 10.0
		base.SwapFeeRate = 0.003
		base.LiquidityFeeRate = 0.005
		base.NetworkFeeSOL = 0.01
	default:
		return nil
	}
	return &base
}

// AllocationConfig bounds admission and sizing.
type AllocationConfig struct {
	StartingBalanceSOL float64
	PercentPerTrade    float64 // fraction of the sizing base
	SizingMode         SizingMode
	MaxOpenPositions   int
	MaxExposure        float64 // open_notional/(total_capital) bound, in (0,1)
}

// ProfitResetConfig controls the profit-taking reset policy.
// A Multiple <= 1.0 disables the policy with a recorded warning instead of
// failing the run.
type ProfitResetConfig struct {
	Enabled  bool
	Multiple float64 // cycle equity growth multiple that triggers a reset
}

// CapacityPruneConfig controls the capacity-pressure pruning policy.
type CapacityPruneConfig struct {
	Enabled bool

	// Trigger conditions: all must hold.
	OpenRatioThreshold    float64 // open count / MaxOpenPositions
	BlockedRatioThreshold float64 // blocked admissions / window
	BlockedWindowSize     int     // rolling admission-outcome window
	MinAvgHoldMs          int64   // average open hold time floor
	CooldownMs            int64   // quiet period after a prune episode

	// Candidate filters.
	MinHoldMs             int64   // candidates must be held at least this long
	MaxMarketCap          float64 // exclude larger caps when proxy known; 0 = no filter
	LossThresholdMultiple float64 // candidate if current multiple <= threshold
	TailProtectMultiple   float64 // never prune if peak multiple >= floor

	// Selection.
	PruneFraction float64 // share of candidates closed, ceil, min 1
	MinCandidates int     // skip the episode entirely below this
}

// MaxHoldConfig is the optional third policy: a portfolio-level hold
// duration bound independent of the blueprint ladder. Zero disables it.
type MaxHoldConfig struct {
	MaxHoldMs int64
}

// SimConfig is the complete configuration of one simulation run.
type SimConfig struct {
	Cost       CostModelConfig
	Allocation AllocationConfig

	ProfitReset   ProfitResetConfig
	CapacityPrune CapacityPruneConfig
	MaxHold       MaxHoldConfig
}

// Validate checks hard config errors. Policy-level soft errors (e.g. a
// reset multiple <= 1.0) are not checked here: policies disable themselves
// with a warning instead.
func (c *SimConfig) Validate() error {
	if c.Allocation.StartingBalanceSOL <= 0 {
		return fmt.Errorf("%w: starting balance %f must be positive", ErrConfigInvalid, c.Allocation.StartingBalanceSOL)
	}
	if c.Allocation.PercentPerTrade <= 0 || c.Allocation.PercentPerTrade > 1 {
		return fmt.Errorf("%w: percent per trade %f out of (0,1]", ErrConfigInvalid, c.Allocation.PercentPerTrade)
	}
	if c.Allocation.SizingMode != SizingFixed && c.Allocation.SizingMode != SizingDynamic {
		return fmt.Errorf("%w: unknown sizing mode %q", ErrConfigInvalid, c.Allocation.SizingMode)
	}
	if c.Allocation.MaxOpenPositions <= 0 {
		return fmt.Errorf("%w: max open positions %d must be positive", ErrConfigInvalid, c.Allocation.MaxOpenPositions)
	}
	if c.Allocation.MaxExposure <= 0 || c.Allocation.MaxExposure >= 1 {
		return fmt.Errorf("%w: max exposure %f out of (0,1)", ErrConfigInvalid, c.Allocation.MaxExposure)
	}
	if c.Cost.BaseSlippagePct < 0 {
		return fmt.Errorf("%w: base slippage %f must be non-negative", ErrConfigInvalid, c.Cost.BaseSlippagePct)
	}
	if c.Cost.SwapFeeRate < 0 || c.Cost.LiquidityFeeRate < 0 || c.Cost.NetworkFeeSOL < 0 {
		return fmt.Errorf("%w: fee rates must be non-negative", ErrConfigInvalid)
	}
	if c.MaxHold.MaxHoldMs < 0 {
		return fmt.Errorf("%w: max hold %d must be non-negative", ErrConfigInvalid, c.MaxHold.MaxHoldMs)
	}
	return nil
}
