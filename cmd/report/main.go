// Package main renders a stored run as research artifacts: a markdown
// summary plus positions, events and fills CSVs, written to one directory
// per run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/reporting"
	chstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/clickhouse"
	pgstore "github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run to report on")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	flag.Parse()

	ctx := context.Background()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required")
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	generator := reporting.NewGenerator(pgstore.NewSummaryStore(pool), pgstore.NewAggregateStore(pool))
	report, err := generator.Generate(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	positions, err := pgstore.NewPositionStore(pool).GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading positions: %v\n", err)
		os.Exit(1)
	}
	events, err := chstore.NewEventStore(conn).GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading events: %v\n", err)
		os.Exit(1)
	}
	fills, err := chstore.NewFillStore(conn).GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fills: %v\n", err)
		os.Exit(1)
	}

	dir := filepath.Join(*outputDir, *runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"REPORT.md":     reporting.RenderMarkdown(report),
		"positions.csv": reporting.RenderPositionsCSV(positions),
		"events.csv":    reporting.RenderEventsCSV(events),
		"fills.csv":     reporting.RenderFillsCSV(fills),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Report generated for run %s:\n", *runID)
	for _, name := range []string{"REPORT.md", "positions.csv", "events.csv", "fills.csv"} {
		fmt.Printf("  - %s\n", filepath.Join(dir, name))
	}
}
