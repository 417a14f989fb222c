package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// blueprintJSON is the file form of one trade blueprint.
type blueprintJSON struct {
	SignalID      string  `json:"signal_id"`
	ContractID    string  `json:"contract_id"`
	EntryTimeMs   int64   `json:"entry_time_ms"`
	EntryPriceRaw float64 `json:"entry_price_raw"`

	PartialExits []partialExitJSON `json:"partial_exits,omitempty"`
	FinalExit    *finalExitJSON    `json:"final_exit,omitempty"`

	LastKnownRawPrice *float64 `json:"last_known_raw_price,omitempty"`
	MarketCapProxy    *float64 `json:"market_cap_proxy,omitempty"`
}

type partialExitJSON struct {
	TimeMs             int64   `json:"time_ms"`
	TargetMultiple     float64 `json:"target_multiple"`
	FractionOfOriginal float64 `json:"fraction_of_original"`
	RawPrice           float64 `json:"raw_price"`
}

type finalExitJSON struct {
	TimeMs   int64   `json:"time_ms"`
	RawPrice float64 `json:"raw_price"`
	Reason   string  `json:"reason"`
}

// LoadBlueprintFile reads a JSON array of blueprints and validates each
// one, so a broken file fails before any simulation starts.
func LoadBlueprintFile(path string) ([]*domain.TradeBlueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rows []blueprintJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	blueprints := make([]*domain.TradeBlueprint, 0, len(rows))
	for i, row := range rows {
		b := &domain.TradeBlueprint{
			SignalID:          row.SignalID,
			ContractID:        row.ContractID,
			EntryTime:         row.EntryTimeMs,
			EntryPriceRaw:     row.EntryPriceRaw,
			LastKnownRawPrice: row.LastKnownRawPrice,
			MarketCapProxy:    row.MarketCapProxy,
		}
		for _, pe := range row.PartialExits {
			b.PartialExits = append(b.PartialExits, domain.PartialExitLevel{
				Time:               pe.TimeMs,
				TargetMultiple:     pe.TargetMultiple,
				FractionOfOriginal: pe.FractionOfOriginal,
				RawPrice:           pe.RawPrice,
			})
		}
		if fe := row.FinalExit; fe != nil {
			b.FinalExit = &domain.FinalExit{Time: fe.TimeMs, RawPrice: fe.RawPrice, Reason: fe.Reason}
		}

		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", path, i, err)
		}
		blueprints = append(blueprints, b)
	}
	return blueprints, nil
}
