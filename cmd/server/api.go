package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/reporting"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/simulation"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/storage"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/stream"
)

// JSON wire shapes. Field names follow the storage column names so API
// consumers and the CSV exports agree.

type runSummaryJSON struct {
	RunID        string `json:"run_id"`
	CostPresetID string `json:"cost_preset_id"`

	BlueprintCount int `json:"blueprint_count"`
	AdmittedCount  int `json:"admitted_count"`
	RiskSkipped    int `json:"risk_skipped"`

	PositionsOpened int `json:"positions_opened"`
	PositionsClosed int `json:"positions_closed"`
	PartialExits    int `json:"partial_exits"`

	ClosedStrategyExit  int `json:"closed_strategy_exit"`
	ClosedProfitReset   int `json:"closed_profit_reset"`
	ClosedCapacityPrune int `json:"closed_capacity_prune"`
	ClosedMaxHold       int `json:"closed_max_hold"`
	ClosedEndOfData     int `json:"closed_end_of_data"`

	ProfitResets  int `json:"profit_resets"`
	PruneEpisodes int `json:"prune_episodes"`

	AvgPrunedHoldMs    float64 `json:"avg_pruned_hold_ms"`
	ForcedClosureShare float64 `json:"forced_closure_share"`

	FinalBalance     float64 `json:"final_balance"`
	FinalEquity      float64 `json:"final_equity"`
	CycleStartEquity float64 `json:"cycle_start_equity"`

	EndTimestampMs int64    `json:"end_timestamp_ms"`
	Warnings       []string `json:"warnings,omitempty"`
}

func summaryToJSON(s *domain.RunSummary) *runSummaryJSON {
	return &runSummaryJSON{
		RunID:               s.RunID,
		CostPresetID:        s.CostPresetID,
		BlueprintCount:      s.BlueprintCount,
		AdmittedCount:       s.AdmittedCount,
		RiskSkipped:         s.RiskSkipped,
		PositionsOpened:     s.PositionsOpened,
		PositionsClosed:     s.PositionsClosed,
		PartialExits:        s.PartialExits,
		ClosedStrategyExit:  s.ClosedStrategyExit,
		ClosedProfitReset:   s.ClosedProfitReset,
		ClosedCapacityPrune: s.ClosedCapacityPrune,
		ClosedMaxHold:       s.ClosedMaxHold,
		ClosedEndOfData:     s.ClosedEndOfData,
		ProfitResets:        s.ProfitResets,
		PruneEpisodes:       s.PruneEpisodes,
		AvgPrunedHoldMs:     s.AvgPrunedHoldMs,
		ForcedClosureShare:  s.ForcedClosureShare,
		FinalBalance:        s.FinalBalance,
		FinalEquity:         s.FinalEquity,
		CycleStartEquity:    s.CycleStartEquity,
		EndTimestampMs:      s.EndTimestampMs,
		Warnings:            s.Warnings,
	}
}

type runAggregateJSON struct {
	RunID string `json:"run_id"`

	ClosedPositions int     `json:"closed_positions"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"win_rate"`

	PnLMean   float64 `json:"pnl_mean"`
	PnLMedian float64 `json:"pnl_median"`
	PnLP10    float64 `json:"pnl_p10"`
	PnLP25    float64 `json:"pnl_p25"`
	PnLP75    float64 `json:"pnl_p75"`
	PnLP90    float64 `json:"pnl_p90"`
	PnLMin    float64 `json:"pnl_min"`
	PnLMax    float64 `json:"pnl_max"`
	PnLStddev float64 `json:"pnl_stddev"`

	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	TotalFees    float64 `json:"total_fees"`
	NetPnL       float64 `json:"net_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
}

func aggregateToJSON(a *domain.RunAggregate) *runAggregateJSON {
	return &runAggregateJSON{
		RunID:                a.RunID,
		ClosedPositions:      a.ClosedPositions,
		Wins:                 a.Wins,
		Losses:               a.Losses,
		WinRate:              a.WinRate,
		PnLMean:              a.PnLMean,
		PnLMedian:            a.PnLMedian,
		PnLP10:               a.PnLP10,
		PnLP25:               a.PnLP25,
		PnLP75:               a.PnLP75,
		PnLP90:               a.PnLP90,
		PnLMin:               a.PnLMin,
		PnLMax:               a.PnLMax,
		PnLStddev:            a.PnLStddev,
		MaxDrawdown:          a.MaxDrawdown,
		MaxConsecutiveLosses: a.MaxConsecutiveLosses,
		GrossProfit:          a.GrossProfit,
		GrossLoss:            a.GrossLoss,
		TotalFees:            a.TotalFees,
		NetPnL:               a.NetPnL,
		ProfitFactor:         a.ProfitFactor,
	}
}

type positionJSON struct {
	PositionID string `json:"position_id"`
	SignalID   string `json:"signal_id"`
	ContractID string `json:"contract_id"`

	EntryTime int64  `json:"entry_time"`
	ExitTime  int64  `json:"exit_time"`
	Status    string `json:"status"`

	OriginalSize  float64 `json:"original_size"`
	RemainingSize float64 `json:"remaining_size"`

	EntryPriceRaw      float64 `json:"entry_price_raw"`
	EntryPriceExecuted float64 `json:"entry_price_executed"`
	ExitPriceRaw       float64 `json:"exit_price_raw"`
	ExitPriceExecuted  float64 `json:"exit_price_executed"`

	RealizedPnL float64 `json:"realized_pnl"`
	FeesTotal   float64 `json:"fees_total"`

	CloseReason  string  `json:"close_reason,omitempty"`
	PeakMultiple float64 `json:"peak_multiple"`

	MarkPriceRaw      float64  `json:"mark_price_raw"`
	MarkPriceFallback bool     `json:"mark_price_fallback"`
	MarketCapProxy    *float64 `json:"market_cap_proxy,omitempty"`

	ResetTrigger    bool `json:"reset_trigger"`
	SyntheticMarker bool `json:"synthetic_marker"`
}

func positionToJSON(p *domain.Position) *positionJSON {
	return &positionJSON{
		PositionID:         p.PositionID,
		SignalID:           p.SignalID,
		ContractID:         p.ContractID,
		EntryTime:          p.EntryTime,
		ExitTime:           p.ExitTime,
		Status:             string(p.Status),
		OriginalSize:       p.OriginalSize,
		RemainingSize:      p.RemainingSize,
		EntryPriceRaw:      p.EntryPriceRaw,
		EntryPriceExecuted: p.EntryPriceExecuted,
		ExitPriceRaw:       p.ExitPriceRaw,
		ExitPriceExecuted:  p.ExitPriceExecuted,
		RealizedPnL:        p.RealizedPnL,
		FeesTotal:          p.FeesTotal,
		CloseReason:        string(p.CloseReason),
		PeakMultiple:       p.PeakMultiple,
		MarkPriceRaw:       p.MarkPriceRaw,
		MarkPriceFallback:  p.MarkPriceFallback,
		MarketCapProxy:     p.MarketCapProxy,
		ResetTrigger:       p.ResetFlags.ResetTrigger,
		SyntheticMarker:    p.ResetFlags.SyntheticMarker,
	}
}

// eventToJSON reuses the websocket payload shape, so stored and streamed
// events serialize identically.
func eventToJSON(e *domain.Event) *stream.EventPayload {
	return &stream.EventPayload{
		EventID:     e.EventID,
		Seq:         e.Seq,
		TimestampMs: e.TimestampMs,
		Type:        string(e.Type),
		PositionID:  e.PositionID,
		Reason:      string(e.Reason),
		Meta:        e.Meta,
	}
}

type fillJSON struct {
	FillID      string `json:"fill_id"`
	EventID     string `json:"event_id"`
	PositionID  string `json:"position_id"`
	Ordinal     int64  `json:"ordinal"`
	TimestampMs int64  `json:"timestamp_ms"`

	QuantityDelta    float64 `json:"quantity_delta"`
	RawPrice         float64 `json:"raw_price"`
	ExecutedPrice    float64 `json:"executed_price"`
	Fees             float64 `json:"fees"`
	RealizedPnLDelta float64 `json:"realized_pnl_delta"`
}

func fillToJSON(f *domain.Fill) *fillJSON {
	return &fillJSON{
		FillID:           f.FillID,
		EventID:          f.EventID,
		PositionID:       f.PositionID,
		Ordinal:          f.Ordinal,
		TimestampMs:      f.TimestampMs,
		QuantityDelta:    f.QuantityDelta,
		RawPrice:         f.RawPrice,
		ExecutedPrice:    f.ExecutedPrice,
		Fees:             f.Fees,
		RealizedPnLDelta: f.RealizedPnLDelta,
	}
}

type closureRowJSON struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type reportJSON struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	RunID            string            `json:"run_id"`
	Summary          *runSummaryJSON   `json:"summary"`
	Aggregate        *runAggregateJSON `json:"aggregate,omitempty"`
	ClosureBreakdown []closureRowJSON  `json:"closure_breakdown"`
}

func reportToJSON(r *reporting.Report) *reportJSON {
	out := &reportJSON{
		GeneratedAt: r.GeneratedAt,
		RunID:       r.RunID,
		Summary:     summaryToJSON(r.Summary),
	}
	if r.Aggregate != nil {
		out.Aggregate = aggregateToJSON(r.Aggregate)
	}
	for _, row := range r.ClosureBreakdown {
		out.ClosureBreakdown = append(out.ClosureBreakdown, closureRowJSON{
			Reason: string(row.Reason),
			Count:  row.Count,
		})
	}
	return out
}

type runResponseJSON struct {
	RunID        string  `json:"run_id"`
	Blocked      bool    `json:"blocked"`
	P0Count      int     `json:"p0_count"`
	P1Count      int     `json:"p1_count"`
	P2Count      int     `json:"p2_count"`
	FinalBalance float64 `json:"final_balance"`
	FinalEquity  float64 `json:"final_equity"`
}

func runResponseFrom(out *simulation.RunResult, blocked bool) *runResponseJSON {
	return &runResponseJSON{
		RunID:        out.RunID,
		Blocked:      blocked,
		P0Count:      out.Audit.P0Count,
		P1Count:      out.Audit.P1Count,
		P2Count:      out.Audit.P2Count,
		FinalBalance: out.Result.Summary.FinalBalance,
		FinalEquity:  out.Result.Summary.FinalEquity,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeStoreError maps storage sentinels to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
