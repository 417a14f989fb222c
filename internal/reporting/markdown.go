package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Simulation Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Cost preset: %s\n\n", r.Summary.CostPresetID))

	s := r.Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Blueprints | %d |\n", s.BlueprintCount))
	sb.WriteString(fmt.Sprintf("| Admitted | %d |\n", s.AdmittedCount))
	sb.WriteString(fmt.Sprintf("| Risk-skipped | %d |\n", s.RiskSkipped))
	sb.WriteString(fmt.Sprintf("| Positions Opened | %d |\n", s.PositionsOpened))
	sb.WriteString(fmt.Sprintf("| Positions Closed | %d |\n", s.PositionsClosed))
	sb.WriteString(fmt.Sprintf("| Partial Exits | %d |\n", s.PartialExits))
	sb.WriteString(fmt.Sprintf("| Profit Resets | %d |\n", s.ProfitResets))
	sb.WriteString(fmt.Sprintf("| Prune Episodes | %d |\n", s.PruneEpisodes))
	sb.WriteString(fmt.Sprintf("| Avg Pruned Hold (ms) | %.0f |\n", s.AvgPrunedHoldMs))
	sb.WriteString(fmt.Sprintf("| Forced Closure Share | %.4f |\n", s.ForcedClosureShare))
	sb.WriteString(fmt.Sprintf("| Final Balance (SOL) | %.6f |\n", s.FinalBalance))
	sb.WriteString(fmt.Sprintf("| Final Equity (SOL) | %.6f |\n", s.FinalEquity))
	sb.WriteString(fmt.Sprintf("| End Timestamp (ms) | %d |\n", s.EndTimestampMs))
	sb.WriteString("\n")

	sb.WriteString("## Closures by Reason\n\n")
	sb.WriteString("| Reason | Count |\n")
	sb.WriteString("|--------|-------|\n")
	for _, row := range r.ClosureBreakdown {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Reason, row.Count))
	}
	sb.WriteString("\n")

	sb.WriteString("## PnL Distribution\n\n")
	if a := r.Aggregate; a != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Closed Positions | %d |\n", a.ClosedPositions))
		sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", a.Wins, a.Losses))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", a.WinRate))
		sb.WriteString(fmt.Sprintf("| Mean | %.6f |\n", a.PnLMean))
		sb.WriteString(fmt.Sprintf("| Median | %.6f |\n", a.PnLMedian))
		sb.WriteString(fmt.Sprintf("| P10 / P90 | %.6f / %.6f |\n", a.PnLP10, a.PnLP90))
		sb.WriteString(fmt.Sprintf("| P25 / P75 | %.6f / %.6f |\n", a.PnLP25, a.PnLP75))
		sb.WriteString(fmt.Sprintf("| Min / Max | %.6f / %.6f |\n", a.PnLMin, a.PnLMax))
		sb.WriteString(fmt.Sprintf("| Stddev | %.6f |\n", a.PnLStddev))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.6f |\n", a.MaxDrawdown))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", a.MaxConsecutiveLosses))
		sb.WriteString(fmt.Sprintf("| Gross Profit / Loss | %.6f / %.6f |\n", a.GrossProfit, a.GrossLoss))
		sb.WriteString(fmt.Sprintf("| Total Fees | %.6f |\n", a.TotalFees))
		sb.WriteString(fmt.Sprintf("| Net PnL | %.6f |\n", a.NetPnL))
		sb.WriteString(fmt.Sprintf("| Profit Factor | %.4f |\n", a.ProfitFactor))
	} else {
		sb.WriteString("No positions closed.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Warnings\n\n")
	if len(s.Warnings) > 0 {
		for _, w := range s.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
	} else {
		sb.WriteString("None.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
