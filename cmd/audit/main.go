// Package main re-audits a stored run. It reloads the run artifacts from
// both databases, replays every invariant check over them and exits
// non-zero when the run carries P0 findings. The allocation side of the
// original config is not stored, so the two figures the auditor needs are
// passed back in as flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/audit"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/observability"
	chstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/clickhouse"
	pgstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run to audit")
	balance := flag.Float64("starting-balance", 100, "Starting balance the run was executed with")
	maxExposure := flag.Float64("max-exposure", 0, "Exposure bound the run was executed with; 0 skips the exposure check")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	flag.Parse()

	logger := log.New(os.Stderr, "[audit] ", log.LstdFlags)
	ctx := context.Background()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required")
		os.Exit(1)
	}

	in, err := loadRun(ctx, *runID, *postgresDSN, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading run: %v\n", err)
		os.Exit(1)
	}

	cost := domain.CostPreset(in.Summary.CostPresetID)
	if cost == nil {
		logger.Printf("unknown stored cost preset %q, auditing without it", in.Summary.CostPresetID)
		cost = &domain.CostModelConfig{PresetID: in.Summary.CostPresetID}
	}
	in.Config = domain.SimConfig{
		Cost: *cost,
		Allocation: domain.AllocationConfig{
			StartingBalanceSOL: *balance,
			MaxExposure:        *maxExposure,
		},
	}

	report := audit.New().Check(*in)
	observability.RecordAudit(report.P0Count, report.P1Count, report.P2Count)

	logger.Printf("run %s: %d positions, %d events, %d fills",
		*runID, len(in.Positions), len(in.Events), len(in.Fills))
	fmt.Printf("audit %s: %d P0, %d P1, %d P2\n", *runID, report.P0Count, report.P1Count, report.P2Count)
	for _, f := range report.Findings {
		fmt.Printf("  [%s] %s %s %s\n", f.Severity, f.Check, f.PositionID, f.Detail)
	}

	if report.HasBlocking() {
		fmt.Fprintln(os.Stderr, "run is BLOCKED: P0 findings present")
		os.Exit(1)
	}
	fmt.Println("run is clean")
}

// loadRun pulls the run artifacts: summary and positions from Postgres,
// event and fill ledgers from ClickHouse.
func loadRun(ctx context.Context, runID, postgresDSN, clickhouseDSN string) (*audit.Input, error) {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	summary, err := pgstore.NewSummaryStore(pool).GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	positions, err := pgstore.NewPositionStore(pool).GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	events, err := chstore.NewEventStore(conn).GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	fills, err := chstore.NewFillStore(conn).GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load fills: %w", err)
	}

	return &audit.Input{
		Summary:   summary,
		Positions: positions,
		Events:    events,
		Fills:     fills,
	}, nil
}
