package domain

// RunAggregate is the computed performance profile of one run's closed
// positions. Order-dependent fields (drawdown, loss streak) use close-time
// order; synthetic reset markers are excluded everywhere.
type RunAggregate struct {
	RunID string

	ClosedPositions int
	Wins            int
	Losses          int
	WinRate         float64

	// Per-position realized pnl distribution, net of fees.
	PnLMean   float64
	PnLMedian float64
	PnLP10    float64
	PnLP25    float64
	PnLP75    float64
	PnLP90    float64
	PnLMin    float64
	PnLMax    float64
	PnLStddev float64

	MaxDrawdown          float64
	MaxConsecutiveLosses int

	GrossProfit float64 // sum of winning net pnl
	GrossLoss   float64 // sum of losing net pnl, as a positive number
	TotalFees   float64
	NetPnL      float64

	// ProfitFactor is GrossProfit / GrossLoss, 0 when there are no losses.
	ProfitFactor float64
}
