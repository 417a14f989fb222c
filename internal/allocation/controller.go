// Package allocation decides whether a desired entry is admitted and at
// what notional size, under capital, exposure and position-count bounds.
package allocation

import (
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// SkipReason explains why a blueprint was risk-skipped. Skipped blueprints
// never re-enter the timeline.
type SkipReason string

// Skip reasons.
const (
	SkipNone                SkipReason = ""
	SkipPositionCap         SkipReason = "position_cap"
	SkipExposure            SkipReason = "exposure"
	SkipInsufficientCapital SkipReason = "insufficient_capital"
)

// PortfolioView is the read-only slice of portfolio state the controller
// needs. OpenNotional is the entry-basis size still held across open
// positions; TotalCapital is Balance + OpenNotional.
type PortfolioView struct {
	StartingBalance float64
	Balance         float64
	OpenCount       int
	OpenNotional    float64
}

// TotalCapital returns balance plus open notional.
func (v PortfolioView) TotalCapital() float64 {
	return v.Balance + v.OpenNotional
}

// Decision is the controller's verdict on one desired entry.
type Decision struct {
	Admitted bool
	Size     float64 // SOL notional, 0 unless admitted
	Skip     SkipReason
}

// Controller sizes and admits entries.
type Controller struct {
	cfg domain.AllocationConfig
}

// NewController creates a capacity controller.
func NewController(cfg domain.AllocationConfig) *Controller {
	return &Controller{cfg: cfg}
}

// Decide computes the desired notional (base * percent_per_trade, base
// chosen by sizing mode) and admits it only if the open-position count is
// below the cap, the exposure bound still holds after admission, and the
// balance covers the size. There is no partial admission: an entry that
// does not fit in full is skipped entirely.
//
// The exposure bound (open_notional + s) / (total_capital + s) <= E is
// solved algebraically for s rather than checked post-hoc, so entries that
// legitimately fit are never rejected:
//
//	s <= (E*total_capital - open_notional) / (1 - E)
func (c *Controller) Decide(view PortfolioView) Decision {
	if view.OpenCount >= c.cfg.MaxOpenPositions {
		return Decision{Skip: SkipPositionCap}
	}

	base := view.StartingBalance
	if c.cfg.SizingMode == domain.SizingDynamic {
		base = view.Balance
	}
	desired := base * c.cfg.PercentPerTrade
	if desired <= 0 || desired > view.Balance {
		return Decision{Skip: SkipInsufficientCapital}
	}

	maxAdditional := c.MaxAdditionalSize(view)
	if desired > maxAdditional {
		return Decision{Skip: SkipExposure}
	}

	return Decision{Admitted: true, Size: desired}
}

// MaxAdditionalSize returns the largest notional that still satisfies the
// exposure bound, clamped at zero.
func (c *Controller) MaxAdditionalSize(view PortfolioView) float64 {
	e := c.cfg.MaxExposure
	s := (e*view.TotalCapital() - view.OpenNotional) / (1 - e)
	if s < 0 {
		return 0
	}
	return s
}
