// Package pricing converts raw (theoretical) prices into executed prices
// and fee amounts. The model is stateless and callable per fill.
package pricing

import (
	"errors"
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// Model errors.
var (
	ErrNonPositivePrice = errors.New("raw price must be positive")
)

// Model applies slippage and fees from a cost model config.
type Model struct {
	cfg domain.CostModelConfig
}

// NewModel creates a pricing model. Missing reason multipliers fall back
// to 1.0.
func NewModel(cfg domain.CostModelConfig) *Model {
	return &Model{cfg: cfg}
}

// ApplyEntry converts a raw entry price into an executed price.
// Entries pay slippage upward: executed = raw * (1 + base * entryMult).
func (m *Model) ApplyEntry(rawPrice float64) (float64, error) {
	if rawPrice <= 0 {
		return 0, fmt.Errorf("%w: entry %f", ErrNonPositivePrice, rawPrice)
	}
	slip := m.cfg.BaseSlippagePct / 100 * m.cfg.EntryMultiplier
	return rawPrice * (1 + slip), nil
}

// ApplyExit converts a raw exit price into an executed price for the given
// reason. Exits pay slippage downward: executed = raw * (1 - base * mult).
func (m *Model) ApplyExit(rawPrice float64, reason domain.CloseReason) (float64, error) {
	if rawPrice <= 0 {
		return 0, fmt.Errorf("%w: exit %f (%s)", ErrNonPositivePrice, rawPrice, reason)
	}
	slip := m.cfg.BaseSlippagePct / 100 * m.reasonMultiplier(reason)
	return rawPrice * (1 - slip), nil
}

// Fees returns the variable fee on a notional amount:
// (swap rate + liquidity rate) * notional. The fixed network fee is
// charged separately per transaction via NetworkFee.
func (m *Model) Fees(notional float64) float64 {
	if notional <= 0 {
		return 0
	}
	return notional * (m.cfg.SwapFeeRate + m.cfg.LiquidityFeeRate)
}

// NetworkFee returns the fixed per-transaction fee, applied once on entry
// and once per exit fill.
func (m *Model) NetworkFee() float64 {
	return m.cfg.NetworkFeeSOL
}

func (m *Model) reasonMultiplier(reason domain.CloseReason) float64 {
	if mult, ok := m.cfg.ReasonMultipliers[reason]; ok {
		return mult
	}
	return 1.0
}
