package policy

import (
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// MaxHold force-closes positions held longer than a portfolio-level bound,
// independent of the blueprint's own ladder. Disabled when the bound is
// zero.
type MaxHold struct {
	cfg domain.MaxHoldConfig
}

// NewMaxHold builds the policy.
func NewMaxHold(cfg domain.MaxHoldConfig) *MaxHold {
	return &MaxHold{cfg: cfg}
}

// Enabled reports whether the policy can fire.
func (p *MaxHold) Enabled() bool { return p.cfg.MaxHoldMs > 0 }

// Evaluate returns open positions past the hold bound, in position-id
// order for determinism.
func (p *MaxHold) Evaluate(s Snapshot) []*domain.Position {
	if !p.Enabled() {
		return nil
	}
	var out []*domain.Position
	for _, pos := range s.OpenPositions {
		if pos.ResetFlags.SyntheticMarker {
			continue
		}
		if pos.HoldDurationMs(s.NowMs) >= p.cfg.MaxHoldMs {
			out = append(out, pos)
		}
	}
	return out
}
