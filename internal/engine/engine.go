// Package engine replays trade blueprints against a simulated capital pool
// and produces the canonical position/event/fill record of what the
// portfolio did. The loop is single-threaded and deterministic: identical
// blueprints and config yield byte-identical ledgers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/allocation"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/idhash"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/ledger"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/lookup"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/policy"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/pricing"
)

// Engine errors.
var (
	ErrNoBlueprints = errors.New("no blueprints to simulate")
)

// sizeEpsilon treats remainders below this as fully exited.
const sizeEpsilon = 1e-12

// EventSink receives ledger events as they are emitted. Optional; used by
// the server to stream a run live.
type EventSink interface {
	Publish(e *domain.Event)
}

// Result is the complete, cross-referential output of one run.
type Result struct {
	RunID     string
	Positions []*domain.Position
	Events    []*domain.Event
	Fills     []*domain.Fill
	Summary   *domain.RunSummary
}

// Engine owns one simulation run.
type Engine struct {
	runID string
	cfg   domain.SimConfig

	pricer  *pricing.Model
	alloc   *allocation.Controller
	reset   *policy.ProfitReset
	prune   *policy.CapacityPrune
	maxHold *policy.MaxHold

	led   *ledger.Ledger
	state *portfolioState
	sink  EventSink

	blueprints  []*domain.TradeBlueprint
	positions   []*domain.Position
	bpByPosID   map[string]*domain.TradeBlueprint
	riskSkipped int

	warnings []string

	prunedHoldMsTotal int64
	prunedCount       int
}

// New creates an engine for one run. Hard config errors fail here; policy
// soft errors become recorded warnings and disable only that policy.
func New(runID string, cfg domain.SimConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		runID:     runID,
		cfg:       cfg,
		pricer:    pricing.NewModel(cfg.Cost),
		alloc:     allocation.NewController(cfg.Allocation),
		prune:     policy.NewCapacityPrune(cfg.CapacityPrune),
		maxHold:   policy.NewMaxHold(cfg.MaxHold),
		led:       ledger.New(runID),
		state:     newPortfolioState(cfg.Allocation.StartingBalanceSOL, cfg.CapacityPrune.BlockedWindowSize),
		bpByPosID: make(map[string]*domain.TradeBlueprint),
	}

	var warn string
	e.reset, warn = policy.NewProfitReset(cfg.ProfitReset)
	if warn != "" {
		e.warnings = append(e.warnings, warn)
	}
	return e, nil
}

// SetSink attaches an optional event sink. Must be called before Run.
func (e *Engine) SetSink(sink EventSink) { e.sink = sink }

// Run validates all blueprints, then replays the merged timeline. At each
// timestamp: mark updates, the profit-reset check (which can preempt
// scheduled exits), scheduled exits, capacity-prune and max-hold checks,
// entries, and finally the cycle equity peak update. Any position still
// open after the last tick is closed by the end-of-data safety bound.
func (e *Engine) Run(ctx context.Context, blueprints []*domain.TradeBlueprint) (*Result, error) {
	if len(blueprints) == 0 {
		return nil, ErrNoBlueprints
	}
	for _, b := range blueprints {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}
	e.blueprints = blueprints

	timeline := buildTimeline(blueprints)
	ticks := groupTicks(timeline)

	var lastTs int64
	for _, tick := range ticks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lastTs = tick[0].TimestampMs
		if err := e.processTick(tick); err != nil {
			return nil, err
		}
	}

	if err := e.closeRemaining(lastTs); err != nil {
		return nil, err
	}

	return e.buildResult(lastTs), nil
}

func (e *Engine) processTick(tick []timelineItem) error {
	ts := tick[0].TimestampMs

	// Mark every position touched at this tick before anything trades, so
	// policies see the same prices the scheduled exits would realize.
	e.applyMarks(tick)
	e.updateEquityPeak()

	if e.reset.ShouldFire(e.snapshot(ts)) {
		if err := e.performReset(ts); err != nil {
			return err
		}
	}

	for _, item := range tick {
		switch item.Kind {
		case kindPartialExit:
			if err := e.processPartialExit(ts, item); err != nil {
				return err
			}
		case kindFinalExit:
			if err := e.processFinalExit(ts, item); err != nil {
				return err
			}
		}
	}

	if err := e.runPrune(ts); err != nil {
		return err
	}
	if err := e.runMaxHold(ts); err != nil {
		return err
	}

	for _, item := range tick {
		if item.Kind == kindEntry {
			if err := e.processEntry(ts, item); err != nil {
				return err
			}
		}
	}

	e.updateEquityPeak()
	return nil
}

// applyMarks pushes this tick's raw prices into the touched positions.
func (e *Engine) applyMarks(tick []timelineItem) {
	for _, item := range tick {
		var raw float64
		b := e.blueprints[item.BlueprintIdx]
		switch item.Kind {
		case kindPartialExit:
			raw = b.PartialExits[item.PartialIdx].RawPrice
		case kindFinalExit:
			raw = b.FinalExit.RawPrice
		default:
			continue
		}
		pos := e.positionForBlueprint(item.BlueprintIdx)
		if pos == nil || pos.Status != domain.PositionOpen {
			continue
		}
		pos.MarkPriceRaw = raw
		if m := pos.CurrentMultiple(); m > pos.PeakMultiple {
			pos.PeakMultiple = m
		}
	}
}

func (e *Engine) updateEquityPeak() {
	if eq := e.state.equity(); eq > e.state.equityPeakInCycle {
		e.state.equityPeakInCycle = eq
	}
}

func (e *Engine) snapshot(ts int64) policy.Snapshot {
	return policy.Snapshot{
		NowMs:                ts,
		Balance:              e.state.balance,
		Equity:               e.state.equity(),
		CycleStartEquity:     e.state.cycleStartEquity,
		EquityPeakInCycle:    e.state.equityPeakInCycle,
		OpenPositions:        e.state.open,
		MaxOpenPositions:     e.cfg.Allocation.MaxOpenPositions,
		BlockedRatio:         e.state.blockedRatio(),
		LastResetMs:          e.state.lastResetMs,
		PruneCooldownUntilMs: e.state.pruneCooldownUntil,
	}
}

// processEntry runs admission and, if admitted, opens the position.
func (e *Engine) processEntry(ts int64, item timelineItem) error {
	b := e.blueprints[item.BlueprintIdx]

	view := allocation.PortfolioView{
		StartingBalance: e.cfg.Allocation.StartingBalanceSOL,
		Balance:         e.state.balance,
		OpenCount:       len(e.state.open),
		OpenNotional:    e.state.openNotional(),
	}
	decision := e.alloc.Decide(view)
	e.state.recordAdmission(!decision.Admitted)
	if !decision.Admitted {
		e.riskSkipped++
		return nil
	}

	execPrice, err := e.pricer.ApplyEntry(b.EntryPriceRaw)
	if err != nil {
		return err
	}
	size := decision.Size
	fees := e.pricer.Fees(size) + e.pricer.NetworkFee()

	pos := &domain.Position{
		PositionID:         idhash.ComputePositionID(e.runID, b.SignalID, b.ContractID, b.EntryTime),
		SignalID:           b.SignalID,
		ContractID:         b.ContractID,
		EntryTime:          ts,
		Status:             domain.PositionOpen,
		OriginalSize:       size,
		RemainingSize:      size,
		EntryPriceRaw:      b.EntryPriceRaw,
		EntryPriceExecuted: execPrice,
		PeakMultiple:       1.0,
		MarketCapProxy:     b.MarketCapProxy,
	}

	e.state.balance -= size + fees
	e.state.addOpen(pos)
	e.positions = append(e.positions, pos)
	e.bpByPosID[pos.PositionID] = b

	meta := domain.Meta{
		"signal_id":            b.SignalID,
		"size":                 fmtFloat(size),
		"open_notional_after":  fmtFloat(view.OpenNotional + size),
		"total_capital_before": fmtFloat(view.TotalCapital()),
		"open_count_after":     strconv.Itoa(len(e.state.open)),
	}
	event, err := e.emitEvent(ts, domain.EventPositionOpened, pos.PositionID, domain.ReasonNone, meta)
	if err != nil {
		return err
	}
	fill := e.led.AppendFill(event, size, b.EntryPriceRaw, execPrice, fees, 0)
	pos.FeesTotal += fill.Fees
	return nil
}

// processPartialExit reduces the position by the ladder fraction. A rung
// that exhausts the remainder closes the position instead, with the
// reduction as its closing fill.
func (e *Engine) processPartialExit(ts int64, item timelineItem) error {
	pos := e.positionForBlueprint(item.BlueprintIdx)
	if pos == nil || pos.Status != domain.PositionOpen {
		return nil // skipped blueprint, or preempted by a policy closure
	}
	b := e.blueprints[item.BlueprintIdx]
	pe := b.PartialExits[item.PartialIdx]

	exitSize := pos.OriginalSize * pe.FractionOfOriginal
	if exitSize > pos.RemainingSize {
		exitSize = pos.RemainingSize
	}
	if exitSize <= sizeEpsilon {
		return nil
	}

	if pos.RemainingSize-exitSize <= sizeEpsilon {
		// Ladder completes the position.
		meta := domain.Meta{
			"ladder_complete": "true",
			"target_multiple": fmtFloat(pe.TargetMultiple),
		}
		return e.closePosition(pos, ts, domain.ReasonStrategyExit, pe.RawPrice, false, meta)
	}

	execPrice, err := e.pricer.ApplyExit(pe.RawPrice, domain.ReasonPartialExit)
	if err != nil {
		return err
	}
	multiple := execPrice / pos.EntryPriceExecuted
	proceeds := exitSize * multiple
	pnl := exitSize * (multiple - 1)
	fees := e.pricer.Fees(proceeds) + e.pricer.NetworkFee()

	pos.RemainingSize -= exitSize
	pos.RealizedPnL += pnl
	pos.FeesTotal += fees
	e.state.balance += proceeds - fees

	meta := domain.Meta{
		"target_multiple":      fmtFloat(pe.TargetMultiple),
		"fraction_of_original": fmtFloat(pe.FractionOfOriginal),
		"remaining_size":       fmtFloat(pos.RemainingSize),
	}
	event, err := e.emitEvent(ts, domain.EventPositionPartialExit, pos.PositionID, domain.ReasonPartialExit, meta)
	if err != nil {
		return err
	}
	e.led.AppendFill(event, -exitSize, pe.RawPrice, execPrice, fees, pnl)
	return nil
}

// processFinalExit closes the remainder per the blueprint's own exit.
func (e *Engine) processFinalExit(ts int64, item timelineItem) error {
	pos := e.positionForBlueprint(item.BlueprintIdx)
	if pos == nil || pos.Status != domain.PositionOpen {
		return nil
	}
	fe := e.blueprints[item.BlueprintIdx].FinalExit

	meta := domain.Meta{}
	if fe.Reason != "" {
		meta["strategy_reason"] = fe.Reason
	}
	return e.closePosition(pos, ts, domain.ReasonStrategyExit, fe.RawPrice, false, meta)
}

// closePosition closes the full remainder at rawPrice and freezes the
// position's aggregates. The closing fill carries the whole residual size.
func (e *Engine) closePosition(pos *domain.Position, ts int64, reason domain.CloseReason, rawPrice float64, markFallback bool, meta domain.Meta) error {
	execPrice, err := e.pricer.ApplyExit(rawPrice, reason)
	if err != nil {
		return err
	}
	exitSize := pos.RemainingSize
	multiple := execPrice / pos.EntryPriceExecuted
	proceeds := exitSize * multiple
	pnl := exitSize * (multiple - 1)
	fees := e.pricer.Fees(proceeds) + e.pricer.NetworkFee()

	pos.RemainingSize = 0
	pos.Status = domain.PositionClosed
	pos.ExitTime = ts
	pos.ExitPriceRaw = rawPrice
	pos.ExitPriceExecuted = execPrice
	pos.CloseReason = reason
	pos.RealizedPnL += pnl
	pos.FeesTotal += fees
	if markFallback {
		pos.MarkPriceFallback = true
	}

	e.state.balance += proceeds - fees
	e.state.removeOpen(pos.PositionID)

	if meta == nil {
		meta = domain.Meta{}
	}
	if markFallback {
		meta["mark_fallback"] = "true"
	}
	event, err := e.emitEvent(ts, domain.EventPositionClosed, pos.PositionID, reason, meta)
	if err != nil {
		return err
	}
	e.led.AppendFill(event, -exitSize, rawPrice, execPrice, fees, pnl)
	return nil
}

// forceClose resolves a mark price and closes the position outside of the
// blueprint schedule.
func (e *Engine) forceClose(pos *domain.Position, ts int64, reason domain.CloseReason) error {
	b := e.bpByPosID[pos.PositionID]
	var metaPrice *float64
	if b != nil {
		metaPrice = b.LastKnownRawPrice
	}
	markPrice, fallback := lookup.MarkPrice(pos, metaPrice)
	if fallback {
		e.warnings = append(e.warnings, fmt.Sprintf("mark fallback to entry price for position %s at %d (%s)", pos.PositionID, ts, reason))
	}
	return e.closePosition(pos, ts, reason, markPrice, fallback, nil)
}

// performReset closes every open position, flags the marker, emits the
// single PORTFOLIO_RESET_TRIGGERED event after all closures, and restarts
// the cycle bookkeeping at the post-closure balance.
func (e *Engine) performReset(ts int64) error {
	peak := e.state.equityPeakInCycle
	start := e.state.cycleStartEquity

	toClose := make([]*domain.Position, len(e.state.open))
	copy(toClose, e.state.open)

	var marker *domain.Position
	for _, pos := range toClose {
		if err := e.forceClose(pos, ts, domain.ReasonProfitReset); err != nil {
			return err
		}
		marker = pos
	}

	if marker == nil {
		// No real position: synthesize a zero-size marker so the reset
		// event still has a valid position reference.
		marker = &domain.Position{
			PositionID:   idhash.ComputeMarkerPositionID(e.runID, e.state.resetCount, ts),
			SignalID:     fmt.Sprintf("reset-marker-%d", e.state.resetCount),
			ContractID:   "",
			EntryTime:    ts,
			ExitTime:     ts,
			Status:       domain.PositionClosed,
			CloseReason:  domain.ReasonProfitReset,
			PeakMultiple: 1.0,
			ResetFlags:   domain.ResetFlags{SyntheticMarker: true},
		}
		e.positions = append(e.positions, marker)

		if _, err := e.emitEvent(ts, domain.EventPositionOpened, marker.PositionID, domain.ReasonNone, domain.Meta{"synthetic_marker": "true"}); err != nil {
			return err
		}
		if _, err := e.emitEvent(ts, domain.EventPositionClosed, marker.PositionID, domain.ReasonProfitReset, domain.Meta{"synthetic_marker": "true"}); err != nil {
			return err
		}
	}
	marker.ResetFlags.ResetTrigger = true

	e.state.resetCount++
	e.state.lastResetMs = ts
	e.state.cycleStartEquity = e.state.balance
	e.state.equityPeakInCycle = e.state.balance

	meta := domain.Meta{
		"cycle_start_equity": fmtFloat(start),
		"equity_peak":        fmtFloat(peak),
		"post_balance":       fmtFloat(e.state.balance),
		"reset_ordinal":      strconv.Itoa(e.state.resetCount),
	}
	_, err := e.emitEvent(ts, domain.EventPortfolioResetTriggered, marker.PositionID, domain.ReasonProfitReset, meta)
	return err
}

func (e *Engine) runPrune(ts int64) error {
	targets, triggered := e.prune.Evaluate(e.snapshot(ts))
	if !triggered {
		return nil
	}
	if len(targets) == 0 {
		e.warnings = append(e.warnings, fmt.Sprintf("capacity_prune condition met at %d but skipped: candidates below floor", ts))
		return nil
	}

	for _, pos := range targets {
		e.prunedHoldMsTotal += pos.HoldDurationMs(ts)
		e.prunedCount++
		if err := e.forceClose(pos, ts, domain.ReasonCapacityPrune); err != nil {
			return err
		}
	}
	e.state.pruneEpisodes++
	e.state.pruneCooldownUntil = e.prune.CooldownUntil(ts)
	return nil
}

func (e *Engine) runMaxHold(ts int64) error {
	for _, pos := range e.maxHold.Evaluate(e.snapshot(ts)) {
		if err := e.forceClose(pos, ts, domain.ReasonMaxHold); err != nil {
			return err
		}
	}
	return nil
}

// closeRemaining is the end-of-timeline safety bound.
func (e *Engine) closeRemaining(ts int64) error {
	remaining := make([]*domain.Position, len(e.state.open))
	copy(remaining, e.state.open)
	for _, pos := range remaining {
		if err := e.forceClose(pos, ts, domain.ReasonEndOfData); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) positionForBlueprint(idx int) *domain.Position {
	b := e.blueprints[idx]
	id := idhash.ComputePositionID(e.runID, b.SignalID, b.ContractID, b.EntryTime)
	for _, p := range e.positions {
		if p.PositionID == id {
			return p
		}
	}
	return nil
}

func (e *Engine) emitEvent(ts int64, typ domain.EventType, positionID string, reason domain.CloseReason, meta domain.Meta) (*domain.Event, error) {
	event, err := e.led.AppendEvent(ts, typ, positionID, reason, meta)
	if err != nil {
		return nil, err
	}
	if e.sink != nil {
		e.sink.Publish(event)
	}
	return event, nil
}

func (e *Engine) buildResult(lastTs int64) *Result {
	summary := &domain.RunSummary{
		RunID:            e.runID,
		CostPresetID:     e.cfg.Cost.PresetID,
		BlueprintCount:   len(e.blueprints),
		AdmittedCount:    0,
		RiskSkipped:      e.riskSkipped,
		ProfitResets:     e.state.resetCount,
		PruneEpisodes:    e.state.pruneEpisodes,
		FinalBalance:     e.state.balance,
		FinalEquity:      e.state.equity(),
		CycleStartEquity: e.state.cycleStartEquity,
		EndTimestampMs:   lastTs,
		Warnings:         e.warnings,
	}

	forced := 0
	for _, p := range e.positions {
		if p.ResetFlags.SyntheticMarker {
			continue
		}
		summary.AdmittedCount++
		summary.PositionsOpened++
		if p.Status == domain.PositionClosed {
			summary.PositionsClosed++
			switch p.CloseReason {
			case domain.ReasonStrategyExit:
				summary.ClosedStrategyExit++
			case domain.ReasonProfitReset:
				summary.ClosedProfitReset++
			case domain.ReasonCapacityPrune:
				summary.ClosedCapacityPrune++
			case domain.ReasonMaxHold:
				summary.ClosedMaxHold++
			case domain.ReasonEndOfData:
				summary.ClosedEndOfData++
			}
			if p.CloseReason.Forced() {
				forced++
			}
		}
	}
	for _, ev := range e.led.Events() {
		if ev.Type == domain.EventPositionPartialExit {
			summary.PartialExits++
		}
	}
	if summary.PositionsClosed > 0 {
		summary.ForcedClosureShare = float64(forced) / float64(summary.PositionsClosed)
	}
	if e.prunedCount > 0 {
		summary.AvgPrunedHoldMs = float64(e.prunedHoldMsTotal) / float64(e.prunedCount)
	}

	return &Result{
		RunID:     e.runID,
		Positions: e.positions,
		Events:    e.led.Events(),
		Fills:     e.led.Fills(),
		Summary:   summary,
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
