package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// Real SPL mints; the contract validator rejects made-up strings.
const (
	mintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	mintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	mintRAY  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	mintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// zeroCostConfig removes slippage and fees so balance math is exact.
func zeroCostConfig() domain.SimConfig {
	return domain.SimConfig{
		Cost: domain.CostModelConfig{
			PresetID:        "zero",
			EntryMultiplier: 1.0,
		},
		Allocation: domain.AllocationConfig{
			StartingBalanceSOL: 100,
			PercentPerTrade:    0.2,
			SizingMode:         domain.SizingFixed,
			MaxOpenPositions:   10,
			MaxExposure:        0.9,
		},
	}
}

func ladderBlueprint() *domain.TradeBlueprint {
	return &domain.TradeBlueprint{
		SignalID:      "sig-ladder",
		ContractID:    mintUSDC,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		PartialExits: []domain.PartialExitLevel{
			{Time: 2000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 2.0},
		},
		FinalExit: &domain.FinalExit{Time: 3000, RawPrice: 2.8, Reason: "trailing_stop"},
	}
}

func mustRun(t *testing.T, cfg domain.SimConfig, blueprints ...*domain.TradeBlueprint) *Result {
	t.Helper()
	e, err := New("run-test", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background(), blueprints)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func approx(t *testing.T, got, want float64, what string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestEngineLadderLifecycle(t *testing.T) {
	res := mustRun(t, zeroCostConfig(), ladderBlueprint())

	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	pos := res.Positions[0]
	if pos.Status != domain.PositionClosed || pos.CloseReason != domain.ReasonStrategyExit {
		t.Errorf("position ended %s/%s, want closed/strategy_exit", pos.Status, pos.CloseReason)
	}
	approx(t, pos.OriginalSize, 20, "original size")
	approx(t, pos.RemainingSize, 0, "remaining size")
	// Half out at 2.0x (+10), rest at 2.8x (+18).
	approx(t, pos.RealizedPnL, 28, "realized pnl")
	approx(t, res.Summary.FinalBalance, 128, "final balance")

	wantTypes := []domain.EventType{
		domain.EventPositionOpened,
		domain.EventPositionPartialExit,
		domain.EventPositionClosed,
	}
	if len(res.Events) != len(wantTypes) {
		t.Fatalf("events = %d, want %d", len(res.Events), len(wantTypes))
	}
	for i, ev := range res.Events {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d type %s, want %s", i, ev.Type, wantTypes[i])
		}
		if ev.Seq != int64(i) {
			t.Errorf("event %d seq %d, want %d", i, ev.Seq, i)
		}
		if ev.PositionID != pos.PositionID {
			t.Errorf("event %d references %s, want %s", i, ev.PositionID, pos.PositionID)
		}
	}

	if len(res.Fills) != 3 {
		t.Fatalf("fills = %d, want 3", len(res.Fills))
	}
	wantQty := []float64{20, -10, -10}
	for i, f := range res.Fills {
		approx(t, f.QuantityDelta, wantQty[i], "fill quantity")
		if f.EventID != res.Events[i].EventID {
			t.Errorf("fill %d references event %s, want %s", i, f.EventID, res.Events[i].EventID)
		}
	}

	if res.Summary.PartialExits != 1 || res.Summary.ClosedStrategyExit != 1 {
		t.Errorf("summary partials=%d strategy_exits=%d, want 1/1",
			res.Summary.PartialExits, res.Summary.ClosedStrategyExit)
	}
}

func TestEngineLadderCompletesPosition(t *testing.T) {
	b := &domain.TradeBlueprint{
		SignalID:      "sig-full-ladder",
		ContractID:    mintUSDC,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		PartialExits: []domain.PartialExitLevel{
			{Time: 2000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 2.0},
			{Time: 3000, TargetMultiple: 3.0, FractionOfOriginal: 0.5, RawPrice: 3.0},
		},
	}
	res := mustRun(t, zeroCostConfig(), b)

	pos := res.Positions[0]
	if pos.Status != domain.PositionClosed || pos.CloseReason != domain.ReasonStrategyExit {
		t.Fatalf("position ended %s/%s, want closed/strategy_exit", pos.Status, pos.CloseReason)
	}
	last := res.Events[len(res.Events)-1]
	if last.Type != domain.EventPositionClosed || last.Meta["ladder_complete"] != "true" {
		t.Errorf("final rung should close the position with ladder_complete meta, got %s %v", last.Type, last.Meta)
	}
	// +10 at 2.0x, +20 at 3.0x.
	approx(t, pos.RealizedPnL, 30, "realized pnl")
	if res.Summary.ClosedEndOfData != 0 {
		t.Error("completed ladder must not reach the end-of-data closure")
	}
}

func TestEngineRiskSkipOnPositionCap(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.Allocation.MaxOpenPositions = 1

	first := ladderBlueprint()
	second := &domain.TradeBlueprint{
		SignalID:      "sig-late",
		ContractID:    mintUSDT,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		FinalExit:     &domain.FinalExit{Time: 2500, RawPrice: 1.5},
	}
	res := mustRun(t, cfg, first, second)

	if res.Summary.RiskSkipped != 1 || res.Summary.AdmittedCount != 1 {
		t.Fatalf("skipped=%d admitted=%d, want 1/1", res.Summary.RiskSkipped, res.Summary.AdmittedCount)
	}
	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1 (skipped blueprint never re-enters)", len(res.Positions))
	}
	for _, ev := range res.Events {
		if ev.PositionID != res.Positions[0].PositionID {
			t.Errorf("event %d references a position the skipped blueprint should not have", ev.Seq)
		}
	}
}

func TestEngineProfitResetPreemptsScheduledExits(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.Allocation.PercentPerTrade = 0.5
	cfg.ProfitReset = domain.ProfitResetConfig{Enabled: true, Multiple: 1.2}

	b := &domain.TradeBlueprint{
		SignalID:      "sig-runner",
		ContractID:    mintRAY,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		PartialExits: []domain.PartialExitLevel{
			{Time: 2000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 2.0},
		},
		FinalExit: &domain.FinalExit{Time: 3000, RawPrice: 2.0},
	}
	res := mustRun(t, cfg, b)

	pos := res.Positions[0]
	if pos.CloseReason != domain.ReasonProfitReset {
		t.Fatalf("close reason %s, want profit_reset (reset preempts the ladder)", pos.CloseReason)
	}
	if !pos.ResetFlags.ResetTrigger || pos.ResetFlags.SyntheticMarker {
		t.Errorf("reset flags %+v, want real trigger position", pos.ResetFlags)
	}

	// 50 in at 1.0, all out at 2.0.
	approx(t, pos.RealizedPnL, 50, "realized pnl")
	approx(t, res.Summary.FinalBalance, 150, "final balance")
	approx(t, res.Summary.CycleStartEquity, 150, "post-reset cycle equity")
	if res.Summary.ProfitResets != 1 || res.Summary.PartialExits != 0 {
		t.Errorf("resets=%d partials=%d, want 1/0", res.Summary.ProfitResets, res.Summary.PartialExits)
	}

	// Reset event comes after every closure it caused, at the same timestamp.
	last := res.Events[len(res.Events)-1]
	if last.Type != domain.EventPortfolioResetTriggered {
		t.Fatalf("last event %s, want PORTFOLIO_RESET_TRIGGERED", last.Type)
	}
	closed := res.Events[len(res.Events)-2]
	if closed.Type != domain.EventPositionClosed || closed.TimestampMs != last.TimestampMs {
		t.Errorf("closure %s at %d, reset at %d: closures and reset must share the tick",
			closed.Type, closed.TimestampMs, last.TimestampMs)
	}
}

func TestEngineResetSyntheticMarker(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.ProfitReset = domain.ProfitResetConfig{Enabled: true, Multiple: 1.2}
	e, err := New("run-marker", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.performReset(500); err != nil {
		t.Fatalf("performReset: %v", err)
	}

	if len(e.positions) != 1 || !e.positions[0].ResetFlags.SyntheticMarker {
		t.Fatal("reset with no open positions must create a synthetic marker")
	}
	marker := e.positions[0]
	if !marker.ResetFlags.ResetTrigger || marker.OriginalSize != 0 {
		t.Errorf("marker flags=%+v size=%f, want trigger flag and zero size", marker.ResetFlags, marker.OriginalSize)
	}

	events := e.led.Events()
	wantTypes := []domain.EventType{
		domain.EventPositionOpened,
		domain.EventPositionClosed,
		domain.EventPortfolioResetTriggered,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("events = %d, want %d", len(events), len(wantTypes))
	}
	for i, ev := range events {
		if ev.Type != wantTypes[i] || ev.PositionID != marker.PositionID {
			t.Errorf("event %d = %s on %s, want %s on marker", i, ev.Type, ev.PositionID, wantTypes[i])
		}
	}
	if e.led.FillCount() != 0 {
		t.Error("synthetic marker must not produce fills")
	}
}

func TestEngineCapacityPrune(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.Allocation.MaxOpenPositions = 2
	cfg.CapacityPrune = domain.CapacityPruneConfig{
		Enabled:               true,
		OpenRatioThreshold:    0.8,
		BlockedRatioThreshold: 0.5,
		BlockedWindowSize:     10,
		MinAvgHoldMs:          1000,
		CooldownMs:            60000,
		MinHoldMs:             500,
		LossThresholdMultiple: 0.95,
		TailProtectMultiple:   3.0,
		PruneFraction:         1.0,
		MinCandidates:         2,
	}

	loser := func(signal, mint string, entry int64) *domain.TradeBlueprint {
		return &domain.TradeBlueprint{
			SignalID:      signal,
			ContractID:    mint,
			EntryTime:     entry,
			EntryPriceRaw: 1.0,
			PartialExits: []domain.PartialExitLevel{
				{Time: 5000, TargetMultiple: 0.5, FractionOfOriginal: 0.1, RawPrice: 0.5},
			},
			FinalExit: &domain.FinalExit{Time: 9000, RawPrice: 0.4},
		}
	}
	blocked := func(signal, mint string, entry int64) *domain.TradeBlueprint {
		return &domain.TradeBlueprint{
			SignalID:      signal,
			ContractID:    mint,
			EntryTime:     entry,
			EntryPriceRaw: 1.0,
			FinalExit:     &domain.FinalExit{Time: 8000, RawPrice: 1.0},
		}
	}

	res := mustRun(t, cfg,
		loser("sig-a", mintUSDC, 1000),
		loser("sig-b", mintUSDT, 1100),
		blocked("sig-c", mintRAY, 2000),
		blocked("sig-d", mintBONK, 2100),
	)

	if res.Summary.PruneEpisodes != 1 || res.Summary.ClosedCapacityPrune != 2 {
		t.Fatalf("episodes=%d pruned=%d, want 1/2", res.Summary.PruneEpisodes, res.Summary.ClosedCapacityPrune)
	}
	if res.Summary.RiskSkipped != 2 {
		t.Errorf("risk skipped = %d, want 2", res.Summary.RiskSkipped)
	}
	// Pruning must never touch the reset cycle bookkeeping.
	approx(t, res.Summary.CycleStartEquity, 100, "cycle start equity")
	if res.Summary.ProfitResets != 0 {
		t.Error("prune episode must not count as a reset")
	}
	approx(t, res.Summary.AvgPrunedHoldMs, 3950, "avg pruned hold")
	// 20 in per position; 2 out at 0.5x (-1), 18 out at 0.5x (-9) each.
	approx(t, res.Summary.FinalBalance, 80, "final balance")
	approx(t, res.Summary.ForcedClosureShare, 1.0, "forced closure share")

	for _, p := range res.Positions {
		if p.Status != domain.PositionClosed || p.CloseReason != domain.ReasonCapacityPrune {
			t.Errorf("position %s ended %s/%s, want closed/capacity_prune", p.SignalID, p.Status, p.CloseReason)
		}
	}
}

func TestEngineMaxHold(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.MaxHold = domain.MaxHoldConfig{MaxHoldMs: 3000}

	stale := &domain.TradeBlueprint{
		SignalID:      "sig-stale",
		ContractID:    mintUSDC,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		FinalExit:     &domain.FinalExit{Time: 9000, RawPrice: 2.0},
	}
	pacer := &domain.TradeBlueprint{
		SignalID:      "sig-pacer",
		ContractID:    mintUSDT,
		EntryTime:     5000,
		EntryPriceRaw: 1.0,
		FinalExit:     &domain.FinalExit{Time: 9000, RawPrice: 1.0},
	}
	res := mustRun(t, cfg, stale, pacer)

	var stalePos *domain.Position
	for _, p := range res.Positions {
		if p.SignalID == "sig-stale" {
			stalePos = p
		}
	}
	if stalePos == nil || stalePos.CloseReason != domain.ReasonMaxHold {
		t.Fatalf("stale position close reason = %v, want max_hold", stalePos)
	}
	if stalePos.ExitTime != 5000 {
		t.Errorf("stale position closed at %d, want the first tick past the bound (5000)", stalePos.ExitTime)
	}
	// No price was ever observed past entry, so the closure fell back.
	if !stalePos.MarkPriceFallback {
		t.Error("forced closure without an observed mark must flag the fallback")
	}
	found := false
	for _, w := range res.Summary.Warnings {
		if strings.Contains(w, "mark fallback") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings %v should record the mark fallback", res.Summary.Warnings)
	}
	if res.Summary.ClosedMaxHold != 1 {
		t.Errorf("max-hold closures = %d, want 1", res.Summary.ClosedMaxHold)
	}
}

func TestEngineEndOfDataClosure(t *testing.T) {
	b := &domain.TradeBlueprint{
		SignalID:      "sig-open-ended",
		ContractID:    mintUSDC,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		PartialExits: []domain.PartialExitLevel{
			{Time: 2000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 2.0},
		},
	}
	res := mustRun(t, zeroCostConfig(), b)

	pos := res.Positions[0]
	if pos.Status != domain.PositionClosed || pos.CloseReason != domain.ReasonEndOfData {
		t.Fatalf("position ended %s/%s, want closed/end_of_data", pos.Status, pos.CloseReason)
	}
	// The partial at 2.0 is the last observed mark; no fallback needed.
	approx(t, pos.ExitPriceRaw, 2.0, "exit raw price")
	if pos.MarkPriceFallback {
		t.Error("closure at an observed mark must not flag the fallback")
	}
	if res.Summary.ClosedEndOfData != 1 {
		t.Errorf("end-of-data closures = %d, want 1", res.Summary.ClosedEndOfData)
	}
}

func TestEngineConservation(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.Cost = *domain.CostPreset(domain.CostPresetRealistic)

	res := mustRun(t, cfg,
		ladderBlueprint(),
		&domain.TradeBlueprint{
			SignalID:      "sig-loss",
			ContractID:    mintUSDT,
			EntryTime:     1500,
			EntryPriceRaw: 2.0,
			FinalExit:     &domain.FinalExit{Time: 2500, RawPrice: 1.0},
		},
	)

	var pnl, fees float64
	for _, p := range res.Positions {
		pnl += p.RealizedPnL
		fees += p.FeesTotal
	}
	approx(t, res.Summary.FinalBalance, cfg.Allocation.StartingBalanceSOL+pnl-fees, "balance conservation")

	// Per-position fill sums must reproduce the position aggregates.
	for _, p := range res.Positions {
		var fillPnL, fillFees float64
		for _, f := range res.Fills {
			if f.PositionID == p.PositionID {
				fillPnL += f.RealizedPnLDelta
				fillFees += f.Fees
			}
		}
		approx(t, fillPnL, p.RealizedPnL, "fill pnl sum for "+p.SignalID)
		approx(t, fillFees, p.FeesTotal, "fill fee sum for "+p.SignalID)
	}
}

func TestEngineDeterministicReplay(t *testing.T) {
	cfg := zeroCostConfig()
	cfg.Cost = *domain.CostPreset(domain.CostPresetRealistic)
	cfg.ProfitReset = domain.ProfitResetConfig{Enabled: true, Multiple: 1.3}

	blueprints := func() []*domain.TradeBlueprint {
		return []*domain.TradeBlueprint{
			ladderBlueprint(),
			{
				SignalID:      "sig-2",
				ContractID:    mintUSDT,
				EntryTime:     1000,
				EntryPriceRaw: 0.5,
				FinalExit:     &domain.FinalExit{Time: 2500, RawPrice: 1.5},
			},
		}
	}

	run := func() *Result { return mustRun(t, cfg, blueprints()...) }
	a, b := run(), run()

	if len(a.Events) != len(b.Events) || len(a.Fills) != len(b.Fills) {
		t.Fatalf("replay sizes differ: %d/%d events, %d/%d fills",
			len(a.Events), len(b.Events), len(a.Fills), len(b.Fills))
	}
	for i := range a.Events {
		ae, be := a.Events[i], b.Events[i]
		if ae.EventID != be.EventID || ae.Seq != be.Seq || ae.TimestampMs != be.TimestampMs ||
			ae.Type != be.Type || ae.PositionID != be.PositionID || ae.Reason != be.Reason ||
			ae.Meta.String() != be.Meta.String() {
			t.Fatalf("event %d differs between replays:\n%+v\n%+v", i, ae, be)
		}
	}
	for i := range a.Fills {
		if *a.Fills[i] != *b.Fills[i] {
			t.Fatalf("fill %d differs between replays:\n%+v\n%+v", i, a.Fills[i], b.Fills[i])
		}
	}
}

func TestEngineRejectsInvalidBlueprint(t *testing.T) {
	bad := ladderBlueprint()
	bad.PartialExits[0].FractionOfOriginal = 1.5

	e, err := New("run-invalid", zeroCostConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background(), []*domain.TradeBlueprint{ladderBlueprint(), bad})
	if !errors.Is(err, domain.ErrBlueprintInvalid) {
		t.Fatalf("err = %v, want ErrBlueprintInvalid", err)
	}
	if res != nil {
		t.Error("a rejected input set must not produce partial results")
	}
	if e.led.EventCount() != 0 {
		t.Error("fail-fast validation must run before any event is emitted")
	}
}

type captureSink struct {
	events []*domain.Event
}

func (s *captureSink) Publish(e *domain.Event) { s.events = append(s.events, e) }

func TestEngineEventSink(t *testing.T) {
	e, err := New("run-sink", zeroCostConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := &captureSink{}
	e.SetSink(sink)

	res, err := e.Run(context.Background(), []*domain.TradeBlueprint{ladderBlueprint()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.events) != len(res.Events) {
		t.Fatalf("sink saw %d events, ledger has %d", len(sink.events), len(res.Events))
	}
	for i := range sink.events {
		if sink.events[i].EventID != res.Events[i].EventID {
			t.Errorf("sink event %d out of order", i)
		}
	}
}
