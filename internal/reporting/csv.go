package reporting

import (
	"fmt"
	"strings"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// RenderPositionsCSV renders positions as a CSV string, one row per
// position in the given order.
func RenderPositionsCSV(positions []*domain.Position) string {
	var sb strings.Builder

	sb.WriteString("position_id,signal_id,contract_id,entry_time,exit_time,status,")
	sb.WriteString("original_size,remaining_size,entry_price_raw,entry_price_executed,")
	sb.WriteString("exit_price_raw,exit_price_executed,realized_pnl,fees_total,close_reason,")
	sb.WriteString("peak_multiple,mark_price_fallback,reset_trigger,synthetic_marker\n")

	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%s,%.9f,%.9f,%.9f,%.9f,%.9f,%.9f,%.9f,%.9f,%s,%.6f,%t,%t,%t\n",
			p.PositionID,
			p.SignalID,
			p.ContractID,
			p.EntryTime,
			p.ExitTime,
			p.Status,
			p.OriginalSize,
			p.RemainingSize,
			p.EntryPriceRaw,
			p.EntryPriceExecuted,
			p.ExitPriceRaw,
			p.ExitPriceExecuted,
			p.RealizedPnL,
			p.FeesTotal,
			p.CloseReason,
			p.PeakMultiple,
			p.MarkPriceFallback,
			p.ResetFlags.ResetTrigger,
			p.ResetFlags.SyntheticMarker,
		))
	}

	return sb.String()
}

// RenderEventsCSV renders ledger events as a CSV string in sequence order.
// Meta is serialized with sorted keys, quoted because it carries
// semicolon-joined pairs.
func RenderEventsCSV(events []*domain.Event) string {
	var sb strings.Builder

	sb.WriteString("seq,event_id,timestamp_ms,event_type,position_id,reason,meta\n")

	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%d,%s,%d,%s,%s,%s,%q\n",
			e.Seq,
			e.EventID,
			e.TimestampMs,
			e.Type,
			e.PositionID,
			e.Reason,
			e.Meta.String(),
		))
	}

	return sb.String()
}

// RenderFillsCSV renders fills as a CSV string in emission order.
func RenderFillsCSV(fills []*domain.Fill) string {
	var sb strings.Builder

	sb.WriteString("ordinal,fill_id,event_id,position_id,timestamp_ms,")
	sb.WriteString("quantity_delta,raw_price,executed_price,fees,realized_pnl_delta\n")

	for _, f := range fills {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%d,%.9f,%.9f,%.9f,%.9f,%.9f\n",
			f.Ordinal,
			f.FillID,
			f.EventID,
			f.PositionID,
			f.TimestampMs,
			f.QuantityDelta,
			f.RawPrice,
			f.ExecutedPrice,
			f.Fees,
			f.RealizedPnLDelta,
		))
	}

	return sb.String()
}
