package main

import (
	"context"
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
)

// seedDemoBlueprints loads a small deterministic blueprint set so the
// in-memory server can execute runs without any database.
func seedDemoBlueprints(ctx context.Context, store storage.BlueprintStore) error {
	lastKnown := 0.0000032
	mcap := 250_000.0

	blueprints := []*domain.TradeBlueprint{
		{
			SignalID:      "demo_ladder",
			ContractID:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			EntryTime:     1704067200000, // 2024-01-01 00:00:00 UTC
			EntryPriceRaw: 0.0000021,
			PartialExits: []domain.PartialExitLevel{
				{Time: 1704067260000, TargetMultiple: 2.0, FractionOfOriginal: 0.5, RawPrice: 0.0000042},
				{Time: 1704067320000, TargetMultiple: 3.0, FractionOfOriginal: 0.25, RawPrice: 0.0000063},
			},
			FinalExit: &domain.FinalExit{
				Time:     1704067500000,
				RawPrice: 0.0000055,
				Reason:   "trailing_stop",
			},
		},
		{
			SignalID:      "demo_loser",
			ContractID:    "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
			EntryTime:     1704067230000,
			EntryPriceRaw: 0.0000040,
			FinalExit: &domain.FinalExit{
				Time:     1704067400000,
				RawPrice: 0.0000018,
				Reason:   "stop_loss",
			},
			LastKnownRawPrice: &lastKnown,
			MarketCapProxy:    &mcap,
		},
		{
			SignalID:      "demo_open_ended",
			ContractID:    "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
			EntryTime:     1704067290000,
			EntryPriceRaw: 0.0000100,
			PartialExits: []domain.PartialExitLevel{
				{Time: 1704067350000, TargetMultiple: 1.5, FractionOfOriginal: 0.3, RawPrice: 0.0000150},
			},
			// No final exit: closed by the end-of-data bound.
		},
	}

	for _, b := range blueprints {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("demo blueprint %s: %w", b.SignalID, err)
		}
	}
	if err := store.InsertBulk(ctx, blueprints); err != nil {
		return fmt.Errorf("insert demo blueprints: %w", err)
	}
	return nil
}
