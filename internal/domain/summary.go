package domain

// RunSummary aggregates one simulation run for storage and reporting.
// All fields derive deterministically from the ledger.
type RunSummary struct {
	RunID        string
	CostPresetID string

	BlueprintCount int
	AdmittedCount  int
	RiskSkipped    int // blueprints rejected by the capacity controller

	PositionsOpened int
	PositionsClosed int
	PartialExits    int

	// Closure counts by canonical reason.
	ClosedStrategyExit  int
	ClosedProfitReset   int
	ClosedCapacityPrune int
	ClosedMaxHold       int
	ClosedEndOfData     int

	ProfitResets  int
	PruneEpisodes int

	// AvgPrunedHoldMs is the mean hold duration of capacity-pruned
	// positions, 0 when none were pruned.
	AvgPrunedHoldMs float64

	// ForcedClosureShare is forced closures / total closures, 0 when no
	// position closed.
	ForcedClosureShare float64

	FinalBalance     float64
	FinalEquity      float64
	CycleStartEquity float64

	EndTimestampMs int64 // last timeline tick processed

	// Warnings records policy auto-disable and mark-price fallback notes,
	// scoped to the run.
	Warnings []string
}
