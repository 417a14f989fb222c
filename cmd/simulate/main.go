// Package main runs one portfolio simulation: blueprints in, ledgers out.
// Blueprints come from a JSON file or from the blueprint table; outputs go
// to PostgreSQL and ClickHouse, or stay in memory for dry runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/observability"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/simulation"
	chstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/clickhouse"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/memory"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/migrations"
	pgstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/postgres"
)

func main() {
	// Inputs
	blueprintFile := flag.String("blueprints", "", "JSON blueprint file; empty loads stored blueprints")
	label := flag.String("label", "", "Run label, feeds the run id hash")

	// Cost model
	preset := flag.String("preset", domain.CostPresetRealistic, "Cost preset: optimistic, realistic, pessimistic, degraded")

	// Allocation
	balance := flag.Float64("balance", 100, "Starting balance in SOL")
	percentPerTrade := flag.Float64("percent-per-trade", 0.1, "Fraction of the sizing base per trade")
	sizing := flag.String("sizing", string(domain.SizingFixed), "Sizing mode: fixed or dynamic")
	maxOpen := flag.Int("max-open", 10, "Maximum concurrently open positions")
	maxExposure := flag.Float64("max-exposure", 0.8, "Open notional / total capital bound, in (0,1)")

	// Policies
	profitResetMultiple := flag.Float64("profit-reset-multiple", 0, "Cycle equity multiple triggering a profit reset; 0 disables")
	enablePrune := flag.Bool("enable-prune", false, "Enable the capacity-prune policy with default thresholds")
	maxHoldMs := flag.Int64("max-hold-ms", 0, "Portfolio-level max hold in ms; 0 disables")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Run in memory, persist nothing")
	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)
	ctx := context.Background()

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
		os.Exit(1)
	}
	if *blueprintFile == "" && *useMemory {
		fmt.Fprintln(os.Stderr, "Error: --use-memory requires --blueprints, there is no stored blueprint table to load")
		os.Exit(1)
	}

	cfg, err := buildConfig(*preset, *balance, *percentPerTrade, *sizing, *maxOpen, *maxExposure,
		*profitResetMultiple, *enablePrune, *maxHoldMs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var blueprints []*domain.TradeBlueprint
	if *blueprintFile != "" {
		blueprints, err = LoadBlueprintFile(*blueprintFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading blueprints: %v\n", err)
			os.Exit(1)
		}
		logger.Printf("loaded %d blueprints from %s", len(blueprints), *blueprintFile)
	}

	var opts simulation.RunnerOptions
	if *useMemory {
		opts = memoryStores()
	} else {
		var cleanup func()
		opts, cleanup, err = databaseStores(ctx, *postgresDSN, *clickhouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
	}
	opts.Label = *label

	runner := simulation.NewRunner(opts)

	started := time.Now()
	out, err := runner.Run(ctx, *cfg, blueprints)
	elapsed := time.Since(started).Seconds()

	if errors.Is(err, simulation.ErrAuditBlocked) {
		observability.RecordRun("blocked", elapsed, out.Result.Summary)
		logger.Printf("run %s BLOCKED: %d P0 findings, nothing persisted", out.RunID, out.Audit.P0Count)
		printFindings(out)
		os.Exit(1)
	}
	if err != nil {
		observability.RecordRun("failed", elapsed, nil)
		fmt.Fprintf(os.Stderr, "Error running simulation: %v\n", err)
		os.Exit(1)
	}

	observability.RecordRun("ok", elapsed, out.Result.Summary)
	observability.RecordAudit(out.Audit.P0Count, out.Audit.P1Count, out.Audit.P2Count)

	s := out.Result.Summary
	logger.Printf("run %s finished in %.2fs", out.RunID, elapsed)
	logger.Printf("blueprints=%d admitted=%d risk_skipped=%d", s.BlueprintCount, s.AdmittedCount, s.RiskSkipped)
	logger.Printf("opened=%d closed=%d partial_exits=%d resets=%d prunes=%d",
		s.PositionsOpened, s.PositionsClosed, s.PartialExits, s.ProfitResets, s.PruneEpisodes)
	logger.Printf("final balance=%.9f equity=%.9f", s.FinalBalance, s.FinalEquity)
	for _, w := range s.Warnings {
		logger.Printf("warning: %s", w)
	}
	printFindings(out)

	fmt.Println(out.RunID)
}

// buildConfig assembles and validates the run config from flag values.
func buildConfig(preset string, balance, percentPerTrade float64, sizing string, maxOpen int,
	maxExposure, profitResetMultiple float64, enablePrune bool, maxHoldMs int64) (*domain.SimConfig, error) {
	cost := domain.CostPreset(preset)
	if cost == nil {
		return nil, fmt.Errorf("unknown cost preset %q", preset)
	}

	cfg := &domain.SimConfig{
		Cost: *cost,
		Allocation: domain.AllocationConfig{
			StartingBalanceSOL: balance,
			PercentPerTrade:    percentPerTrade,
			SizingMode:         domain.SizingMode(sizing),
			MaxOpenPositions:   maxOpen,
			MaxExposure:        maxExposure,
		},
		MaxHold: domain.MaxHoldConfig{MaxHoldMs: maxHoldMs},
	}
	if profitResetMultiple > 0 {
		cfg.ProfitReset = domain.ProfitResetConfig{Enabled: true, Multiple: profitResetMultiple}
	}
	if enablePrune {
		cfg.CapacityPrune = defaultPruneConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultPruneConfig is the stock capacity-prune parameterization used when
// --enable-prune is set without a dedicated config surface.
func defaultPruneConfig() domain.CapacityPruneConfig {
	return domain.CapacityPruneConfig{
		Enabled:               true,
		OpenRatioThreshold:    0.8,
		BlockedRatioThreshold: 0.5,
		BlockedWindowSize:     10,
		MinAvgHoldMs:          30 * 60 * 1000,
		CooldownMs:            10 * 60 * 1000,
		MinHoldMs:             15 * 60 * 1000,
		LossThresholdMultiple: 1.0,
		TailProtectMultiple:   2.0,
		PruneFraction:         0.25,
		MinCandidates:         2,
	}
}

// memoryStores wires the runner to in-memory stores for dry runs.
func memoryStores() simulation.RunnerOptions {
	return simulation.RunnerOptions{
		PositionStore:  memory.NewPositionStore(),
		EventStore:     memory.NewEventStore(),
		FillStore:      memory.NewFillStore(),
		SummaryStore:   memory.NewSummaryStore(),
		AggregateStore: memory.NewAggregateStore(),
	}
}

// databaseStores connects to both databases, applies migrations and wires
// the runner stores. Blueprints, positions and run rows live in Postgres;
// the event and fill ledgers go to ClickHouse.
func databaseStores(ctx context.Context, postgresDSN, clickhouseDSN string) (simulation.RunnerOptions, func(), error) {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return simulation.RunnerOptions{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return simulation.RunnerOptions{}, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return simulation.RunnerOptions{}, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	opts := simulation.RunnerOptions{
		BlueprintStore: pgstore.NewBlueprintStore(pool),
		PositionStore:  pgstore.NewPositionStore(pool),
		EventStore:     chstore.NewEventStore(conn),
		FillStore:      chstore.NewFillStore(conn),
		SummaryStore:   pgstore.NewSummaryStore(pool),
		AggregateStore: pgstore.NewAggregateStore(pool),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return opts, cleanup, nil
}

// printFindings prints audit findings grouped the way the report orders
// them, P0 first.
func printFindings(out *simulation.RunResult) {
	if out == nil || out.Audit == nil || len(out.Audit.Findings) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "audit: %d P0, %d P1, %d P2\n", out.Audit.P0Count, out.Audit.P1Count, out.Audit.P2Count)
	for _, f := range out.Audit.Findings {
		fmt.Fprintf(os.Stderr, "  [%s] %s %s %s\n", f.Severity, f.Check, f.PositionID, f.Detail)
	}
}
