package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/memory"
)

const mintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func runnerConfig() domain.SimConfig {
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

func ladderBlueprint(signalID string) *domain.TradeBlueprint {
	return &domain.TradeBlueprint{
		SignalID:      signalID,
		ContractID:    mintUSDC,
		EntryTime:     1000,
		EntryPriceRaw: 1.0,
		PartialExits: []domain.PartialExitLevel{
			{Time: 2000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 2.0},
		},
		FinalExit: &domain.FinalExit{Time: 3000, RawPrice: 2.8, Reason: "trailing_stop"},
	}
}

type runnerStores struct {
	blueprints *memory.BlueprintStore
	positions  *memory.PositionStore
	events     *memory.EventStore
	fills      *memory.FillStore
	summaries  *memory.SummaryStore
	aggregates *memory.AggregateStore
}

func newRunnerStores() *runnerStores {
	return &runnerStores{
		blueprints: memory.NewBlueprintStore(),
		positions:  memory.NewPositionStore(),
		events:     memory.NewEventStore(),
		fills:      memory.NewFillStore(),
		summaries:  memory.NewSummaryStore(),
		aggregates: memory.NewAggregateStore(),
	}
}

func newTestRunner(s *runnerStores) *Runner {
	return NewRunner(RunnerOptions{
		BlueprintStore: s.blueprints,
		PositionStore:  s.positions,
		EventStore:     s.events,
		FillStore:      s.fills,
		SummaryStore:   s.summaries,
		AggregateStore: s.aggregates,
		Label:          "test",
	})
}

func TestRunner_RunPersistsEverything(t *testing.T) {
	s := newRunnerStores()
	r := newTestRunner(s)
	ctx := context.Background()

	out, err := r.Run(ctx, runnerConfig(), []*domain.TradeBlueprint{ladderBlueprint("sig-1")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.RunID == "" {
		t.Fatal("expected non-empty run id")
	}
	if out.Audit == nil || out.Audit.HasBlocking() {
		t.Fatalf("expected clean audit, got %+v", out.Audit)
	}

	positions, err := s.positions.GetByRunID(ctx, out.RunID)
	if err != nil || len(positions) != 1 {
		t.Fatalf("GetByRunID(positions) = %d, %v, want 1 position", len(positions), err)
	}
	events, err := s.events.GetByRunID(ctx, out.RunID)
	if err != nil || len(events) != 3 {
		t.Fatalf("GetByRunID(events) = %d, %v, want 3 events", len(events), err)
	}
	fills, err := s.fills.GetByRunID(ctx, out.RunID)
	if err != nil || len(fills) != 3 {
		t.Fatalf("GetByRunID(fills) = %d, %v, want 3 fills", len(fills), err)
	}

	sum, err := s.summaries.GetByRunID(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GetByRunID(summary) error = %v", err)
	}
	if sum.FinalBalance != 128 {
		t.Errorf("FinalBalance = %v, want 128", sum.FinalBalance)
	}

	agg, err := s.aggregates.GetByRunID(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GetByRunID(aggregate) error = %v", err)
	}
	if agg.ClosedPositions != 1 || agg.Wins != 1 {
		t.Errorf("aggregate = %d closed / %d wins, want 1/1", agg.ClosedPositions, agg.Wins)
	}
}

func TestRunner_LoadsBlueprintsFromStore(t *testing.T) {
	s := newRunnerStores()
	r := newTestRunner(s)
	ctx := context.Background()

	if err := s.blueprints.Insert(ctx, ladderBlueprint("sig-stored")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	out, err := r.Run(ctx, runnerConfig(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.Result.Summary.BlueprintCount; got != 1 {
		t.Errorf("BlueprintCount = %d, want 1", got)
	}
}

func TestRunner_DeterministicRunID(t *testing.T) {
	ctx := context.Background()
	cfg := runnerConfig()

	// Same label, preset and blueprint set must produce the same run id.
	a, err := newTestRunner(newRunnerStores()).Run(ctx, cfg, []*domain.TradeBlueprint{
		ladderBlueprint("sig-1"),
	})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	b, err := newTestRunner(newRunnerStores()).Run(ctx, cfg, []*domain.TradeBlueprint{
		ladderBlueprint("sig-1"),
	})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if a.RunID != b.RunID {
		t.Errorf("run ids differ: %s vs %s", a.RunID, b.RunID)
	}

	other := NewRunner(RunnerOptions{Label: "other"})
	c, err := other.Run(ctx, cfg, []*domain.TradeBlueprint{ladderBlueprint("sig-1")})
	if err != nil {
		t.Fatalf("labeled Run() error = %v", err)
	}
	if c.RunID == a.RunID {
		t.Error("different labels must produce different run ids")
	}
}

func TestRunner_RerunFailsOnDuplicate(t *testing.T) {
	s := newRunnerStores()
	r := newTestRunner(s)
	ctx := context.Background()

	blueprints := []*domain.TradeBlueprint{ladderBlueprint("sig-1")}
	if _, err := r.Run(ctx, runnerConfig(), blueprints); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	_, err := r.Run(ctx, runnerConfig(), blueprints)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("second Run() error = %v, want ErrDuplicateKey", err)
	}
}

func TestRunner_InvalidBlueprintFailsBeforePersist(t *testing.T) {
	s := newRunnerStores()
	r := newTestRunner(s)
	ctx := context.Background()

	bad := ladderBlueprint("sig-bad")
	bad.PartialExits[0].FractionOfOriginal = 1.5

	_, err := r.Run(ctx, runnerConfig(), []*domain.TradeBlueprint{bad})
	if !errors.Is(err, domain.ErrBlueprintInvalid) {
		t.Fatalf("Run() error = %v, want ErrBlueprintInvalid", err)
	}

	if all, _ := s.summaries.GetAll(ctx); len(all) != 0 {
		t.Errorf("expected nothing persisted, found %d summaries", len(all))
	}
}

type captureSink struct {
	events []*domain.Event
}

func (c *captureSink) Publish(e *domain.Event) { c.events = append(c.events, e) }

func TestRunner_SinkReceivesEvents(t *testing.T) {
	sink := &captureSink{}
	r := NewRunner(RunnerOptions{Label: "test", Sink: sink})
	ctx := context.Background()

	out, err := r.Run(ctx, runnerConfig(), []*domain.TradeBlueprint{ladderBlueprint("sig-1")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.events) != len(out.Result.Events) {
		t.Errorf("sink saw %d events, ledger has %d", len(sink.events), len(out.Result.Events))
	}
}
