package metrics

import (
	"math"
	"sort"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// computeFromPositions calculates the run aggregate from closed positions.
// Positions are sorted by ExitTime ASC, PositionID ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses). Synthetic
// reset markers and still-open positions are excluded.
func computeFromPositions(positions []*domain.Position) *domain.RunAggregate {
	closed := make([]*domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.ResetFlags.SyntheticMarker || p.Status != domain.PositionClosed {
			continue
		}
		closed = append(closed, p)
	}

	n := len(closed)
	if n == 0 {
		return &domain.RunAggregate{}
	}

	sort.Slice(closed, func(i, j int) bool {
		if closed[i].ExitTime != closed[j].ExitTime {
			return closed[i].ExitTime < closed[j].ExitTime
		}
		return closed[i].PositionID < closed[j].PositionID
	})

	// Net pnl per position in close order for order-dependent metrics.
	pnls := make([]float64, n)
	wins := 0
	var grossProfit, grossLoss, totalFees float64
	for i, p := range closed {
		net := p.RealizedPnL - p.FeesTotal
		pnls[i] = net
		totalFees += p.FeesTotal
		if net > 0 {
			wins++
			grossProfit += net
		} else {
			grossLoss += -net
		}
	}

	sortedPnLs := make([]float64, n)
	copy(sortedPnLs, pnls)
	sort.Float64s(sortedPnLs)

	mean := computeMean(pnls)

	agg := &domain.RunAggregate{
		ClosedPositions: n,
		Wins:            wins,
		Losses:          n - wins,
		WinRate:         float64(wins) / float64(n),

		PnLMean:   mean,
		PnLMedian: computePercentile(sortedPnLs, 0.50),
		PnLP10:    computePercentile(sortedPnLs, 0.10),
		PnLP25:    computePercentile(sortedPnLs, 0.25),
		PnLP75:    computePercentile(sortedPnLs, 0.75),
		PnLP90:    computePercentile(sortedPnLs, 0.90),
		PnLMin:    sortedPnLs[0],
		PnLMax:    sortedPnLs[n-1],
		PnLStddev: computeStddev(pnls, mean),

		MaxDrawdown:          computeMaxDrawdown(pnls),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(pnls),

		GrossProfit: grossProfit,
		GrossLoss:   grossLoss,
		TotalFees:   totalFees,
		NetPnL:      grossProfit - grossLoss,
	}
	if grossLoss > 0 {
		agg.ProfitFactor = grossProfit / grossLoss
	}
	return agg
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is the percentile (0.10 = 10th).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough on the cumulative
// net pnl series. Values must be in chronological order.
func computeMaxDrawdown(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}

	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range pnls {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of net pnl <= 0.
// Values must be in chronological order.
func computeMaxConsecutiveLosses(pnls []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, v := range pnls {
		if v <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
