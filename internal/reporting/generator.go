// Package reporting renders completed runs as CSV and Markdown for
// offline inspection.
package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// Generator produces reports from stored run data.
type Generator struct {
	summaryStore   storage.RunSummaryStore
	aggregateStore storage.RunAggregateStore
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(summaryStore storage.RunSummaryStore, aggregateStore storage.RunAggregateStore) *Generator {
	return &Generator{
		summaryStore:   summaryStore,
		aggregateStore: aggregateStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one stored run. A missing aggregate is
// not an error: runs that closed nothing have no distribution block.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	summary, err := g.summaryStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt:      g.now(),
		RunID:            runID,
		Summary:          summary,
		ClosureBreakdown: buildClosureBreakdown(summary),
	}

	agg, err := g.aggregateStore.GetByRunID(ctx, runID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	} else {
		report.Aggregate = agg
	}

	return report, nil
}
