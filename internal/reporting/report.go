package reporting

import (
	"time"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// Report is the rendered view of one completed simulation run.
type Report struct {
	GeneratedAt time.Time
	RunID       string

	// Summary is the run's counter block, always present.
	Summary *domain.RunSummary

	// Aggregate is the pnl distribution block, nil when the run closed
	// no positions.
	Aggregate *domain.RunAggregate

	// ClosureBreakdown lists closure counts per canonical reason, in the
	// fixed reason order.
	ClosureBreakdown []ClosureRow
}

// ClosureRow is one row of the closure-reason table.
type ClosureRow struct {
	Reason domain.CloseReason
	Count  int
}

// buildClosureBreakdown expands summary counters into ordered rows.
func buildClosureBreakdown(s *domain.RunSummary) []ClosureRow {
	return []ClosureRow{
		{domain.ReasonStrategyExit, s.ClosedStrategyExit},
		{domain.ReasonProfitReset, s.ClosedProfitReset},
		{domain.ReasonCapacityPrune, s.ClosedCapacityPrune},
		{domain.ReasonMaxHold, s.ClosedMaxHold},
		{domain.ReasonEndOfData, s.ClosedEndOfData},
	}
}
