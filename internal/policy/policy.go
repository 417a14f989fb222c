// Package policy implements the autonomous portfolio risk controllers.
// Policies only inspect state and nominate closures; the engine loop is
// the single writer that executes them and keeps the books.
package policy

import (
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// Snapshot is the read-only view of portfolio state handed to policies at
// each timeline tick.
type Snapshot struct {
	NowMs int64

	Balance           float64
	Equity            float64
	CycleStartEquity  float64
	EquityPeakInCycle float64

	OpenPositions    []*domain.Position
	MaxOpenPositions int

	// BlockedRatio is blocked admissions over the rolling outcome window;
	// -1 when the window has no samples yet.
	BlockedRatio float64

	// LastResetMs is the timestamp of the previous profit reset, -1 if
	// none fired yet.
	LastResetMs int64

	// PruneCooldownUntilMs is the end of the current prune cooldown, 0 if
	// no prune happened yet.
	PruneCooldownUntilMs int64
}

// openRatio returns open count over the configured cap.
func (s Snapshot) openRatio() float64 {
	if s.MaxOpenPositions <= 0 {
		return 0
	}
	return float64(len(s.OpenPositions)) / float64(s.MaxOpenPositions)
}

// avgHoldMs returns the mean hold duration of open positions, 0 when none.
func (s Snapshot) avgHoldMs() float64 {
	if len(s.OpenPositions) == 0 {
		return 0
	}
	var total int64
	for _, p := range s.OpenPositions {
		total += p.HoldDurationMs(s.NowMs)
	}
	return float64(total) / float64(len(s.OpenPositions))
}
