package policy

import (
	"math"
	"sort"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// CapacityPrune trims losing, stale positions when the portfolio is under
// capacity pressure. Unlike ProfitReset it never touches cycle equity or
// the reset counter; it owns only its prune counter and cooldown timer.
type CapacityPrune struct {
	cfg domain.CapacityPruneConfig
}

// NewCapacityPrune builds the policy.
func NewCapacityPrune(cfg domain.CapacityPruneConfig) *CapacityPrune {
	return &CapacityPrune{cfg: cfg}
}

// Enabled reports whether the policy can fire.
func (p *CapacityPrune) Enabled() bool { return p.cfg.Enabled }

// Evaluate returns the positions to force-close, worst first, and whether
// the trigger condition held. A true trigger with an empty target list is
// a skipped episode (candidate floor not met); the engine records it for
// diagnostics but closes nothing.
func (p *CapacityPrune) Evaluate(s Snapshot) (targets []*domain.Position, triggered bool) {
	if !p.cfg.Enabled {
		return nil, false
	}
	if s.PruneCooldownUntilMs > 0 && s.NowMs < s.PruneCooldownUntilMs {
		return nil, false
	}
	if s.openRatio() < p.cfg.OpenRatioThreshold {
		return nil, false
	}
	if s.BlockedRatio < p.cfg.BlockedRatioThreshold {
		return nil, false
	}
	if s.avgHoldMs() < float64(p.cfg.MinAvgHoldMs) {
		return nil, false
	}

	candidates := p.selectCandidates(s)
	if len(candidates) < p.cfg.MinCandidates {
		return nil, true
	}

	sort.Slice(candidates, func(i, j int) bool {
		si, sj := p.score(candidates[i], s.NowMs), p.score(candidates[j], s.NowMs)
		if si != sj {
			return si > sj
		}
		return candidates[i].PositionID < candidates[j].PositionID
	})

	k := int(math.Ceil(p.cfg.PruneFraction * float64(len(candidates))))
	if k < 1 {
		k = 1
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], true
}

// selectCandidates filters open positions by minimum hold time, market-cap
// proxy and mark-to-market loss. Positions whose peak multiple already
// cleared the tail-protection floor are never candidates.
func (p *CapacityPrune) selectCandidates(s Snapshot) []*domain.Position {
	var out []*domain.Position
	for _, pos := range s.OpenPositions {
		if pos.ResetFlags.SyntheticMarker {
			continue
		}
		if pos.HoldDurationMs(s.NowMs) < p.cfg.MinHoldMs {
			continue
		}
		if p.cfg.MaxMarketCap > 0 && pos.MarketCapProxy != nil && *pos.MarketCapProxy > p.cfg.MaxMarketCap {
			continue
		}
		if p.cfg.TailProtectMultiple > 0 && pos.PeakMultiple >= p.cfg.TailProtectMultiple {
			continue
		}
		if pos.CurrentMultiple() > p.cfg.LossThresholdMultiple {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// score ranks candidates: deeper loss, longer hold and smaller cap score
// higher. Components are normalized so no single axis dominates.
func (p *CapacityPrune) score(pos *domain.Position, nowMs int64) float64 {
	loss := p.cfg.LossThresholdMultiple - pos.CurrentMultiple()
	if loss < 0 {
		loss = 0
	}

	age := 0.0
	if p.cfg.MinHoldMs > 0 {
		age = float64(pos.HoldDurationMs(nowMs)) / float64(p.cfg.MinHoldMs)
	}

	cap := 0.5 // unknown caps rank in the middle
	if p.cfg.MaxMarketCap > 0 && pos.MarketCapProxy != nil {
		cap = 1 - *pos.MarketCapProxy/p.cfg.MaxMarketCap
		if cap < 0 {
			cap = 0
		}
	}

	return loss + 0.25*age + 0.25*cap
}

// CooldownUntil returns the end of the cooldown started by an episode at
// nowMs.
func (p *CapacityPrune) CooldownUntil(nowMs int64) int64 {
	return nowMs + p.cfg.CooldownMs
}
