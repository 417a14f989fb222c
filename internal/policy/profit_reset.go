package policy

import (
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// ProfitReset fires when the cycle equity peak reaches the configured
// multiple of the cycle start equity. It is evaluated once per timeline
// tick before scheduled exits, so a reset can preempt them.
type ProfitReset struct {
	cfg      domain.ProfitResetConfig
	disabled bool
}

// NewProfitReset builds the policy. A configured multiple <= 1.0 disables
// the policy and returns a warning instead of failing the run.
func NewProfitReset(cfg domain.ProfitResetConfig) (*ProfitReset, string) {
	p := &ProfitReset{cfg: cfg}
	if !cfg.Enabled {
		p.disabled = true
		return p, ""
	}
	if cfg.Multiple <= 1.0 {
		p.disabled = true
		return p, fmt.Sprintf("profit_reset disabled: multiple %.4f must exceed 1.0", cfg.Multiple)
	}
	return p, ""
}

// Enabled reports whether the policy can fire.
func (p *ProfitReset) Enabled() bool { return !p.disabled }

// ShouldFire evaluates the trigger. The anti-spam guard refuses to fire
// twice at one timestamp even if equity stays above the threshold.
func (p *ProfitReset) ShouldFire(s Snapshot) bool {
	if p.disabled {
		return false
	}
	if s.LastResetMs == s.NowMs {
		return false
	}
	if s.CycleStartEquity <= 0 {
		return false
	}
	return s.EquityPeakInCycle >= s.CycleStartEquity*p.cfg.Multiple
}
