// Package simulation orchestrates one full run: load blueprints, execute
// the engine, audit the ledgers, persist the outputs.
package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/audit"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/engine"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/idhash"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/metrics"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// Runner errors.
var (
	// ErrAuditBlocked means the run produced P0 audit findings. Nothing is
	// persisted; the findings ride on the returned result.
	ErrAuditBlocked = errors.New("run blocked by P0 audit findings")
)

// Runner executes simulations and persists their outputs. Every store is
// optional; a nil store skips that persistence step, so the runner works
// unchanged for dry runs and in-memory tests.
type Runner struct {
	blueprintStore storage.BlueprintStore
	positionStore  storage.PositionStore
	eventStore     storage.EventStore
	fillStore      storage.FillStore
	summaryStore   storage.RunSummaryStore
	aggregateStore storage.RunAggregateStore

	sink  engine.EventSink
	label string
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	BlueprintStore storage.BlueprintStore
	PositionStore  storage.PositionStore
	EventStore     storage.EventStore
	FillStore      storage.FillStore
	SummaryStore   storage.RunSummaryStore
	AggregateStore storage.RunAggregateStore

	// Sink receives ledger events as they are emitted, e.g. a websocket hub.
	Sink engine.EventSink

	// Label distinguishes runs of the same blueprints and preset; it feeds
	// the run id hash.
	Label string
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		blueprintStore: opts.BlueprintStore,
		positionStore:  opts.PositionStore,
		eventStore:     opts.EventStore,
		fillStore:      opts.FillStore,
		summaryStore:   opts.SummaryStore,
		aggregateStore: opts.AggregateStore,
		sink:           opts.Sink,
		label:          opts.Label,
	}
}

// RunResult bundles everything one run produced.
type RunResult struct {
	RunID     string
	Result    *engine.Result
	Aggregate *domain.RunAggregate // nil when no position closed
	Audit     *audit.Report
}

// Run executes one simulation. Steps:
//  1. Load blueprints from the store when none are passed
//  2. Compute the deterministic run id
//  3. Execute the engine over the merged timeline
//  4. Compute the run aggregate
//  5. Audit the ledgers; P0 findings block persistence
//  6. Persist positions, events, fills, summary and aggregate
func (r *Runner) Run(ctx context.Context, cfg domain.SimConfig, blueprints []*domain.TradeBlueprint) (*RunResult, error) {
	if blueprints == nil && r.blueprintStore != nil {
		var err error
		blueprints, err = r.blueprintStore.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load blueprints: %w", err)
		}
	}

	runID := idhash.ComputeRunID(r.label, cfg.Cost.PresetID, fingerprint(blueprints))

	eng, err := engine.New(runID, cfg)
	if err != nil {
		return nil, err
	}
	if r.sink != nil {
		eng.SetSink(r.sink)
	}

	res, err := eng.Run(ctx, blueprints)
	if err != nil {
		return nil, err
	}

	out := &RunResult{RunID: runID, Result: res}

	agg := metrics.Aggregate(runID, res.Positions)
	if agg.ClosedPositions > 0 {
		out.Aggregate = agg
	}

	out.Audit = audit.New().Check(audit.Input{
		Config:    cfg,
		Summary:   res.Summary,
		Positions: res.Positions,
		Events:    res.Events,
		Fills:     res.Fills,
	})
	if out.Audit.HasBlocking() {
		return out, ErrAuditBlocked
	}

	if err := r.persist(ctx, out); err != nil {
		return out, err
	}
	return out, nil
}

// persist writes the run outputs to whichever stores are configured.
func (r *Runner) persist(ctx context.Context, out *RunResult) error {
	res := out.Result

	if r.positionStore != nil {
		if err := r.positionStore.InsertBulk(ctx, out.RunID, res.Positions); err != nil {
			return fmt.Errorf("persist positions: %w", err)
		}
	}
	if r.eventStore != nil {
		if err := r.eventStore.InsertBulk(ctx, out.RunID, res.Events); err != nil {
			return fmt.Errorf("persist events: %w", err)
		}
	}
	if r.fillStore != nil {
		if err := r.fillStore.InsertBulk(ctx, out.RunID, res.Fills); err != nil {
			return fmt.Errorf("persist fills: %w", err)
		}
	}
	if r.summaryStore != nil {
		if err := r.summaryStore.Insert(ctx, res.Summary); err != nil {
			return fmt.Errorf("persist summary: %w", err)
		}
	}
	if r.aggregateStore != nil && out.Aggregate != nil {
		if err := r.aggregateStore.Insert(ctx, out.Aggregate); err != nil {
			return fmt.Errorf("persist aggregate: %w", err)
		}
	}
	return nil
}

// fingerprint reduces a blueprint set to its identity keys.
func fingerprint(blueprints []*domain.TradeBlueprint) string {
	keys := make([]string, 0, len(blueprints))
	for _, b := range blueprints {
		keys = append(keys, fmt.Sprintf("%s|%s|%d", b.SignalID, b.ContractID, b.EntryTime))
	}
	return idhash.ComputeBlueprintFingerprint(keys)
}
