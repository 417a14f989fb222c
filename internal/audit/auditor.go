// Package audit re-checks a finished run's ledger against the engine's
// structural and financial invariants. The auditor never mutates anything;
// it reads the run artifacts and reports findings by severity.
package audit

import (
	"fmt"
	"math"
	"strconv"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons across the
// conservation checks.
const FloatTolerance = 1e-7

// Severity classifies a finding. P0 findings invalidate the run.
type Severity string

// Severity levels: P0 corrupt run, P1 suspicious bookkeeping, P2 notes.
const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
)

// Finding is one invariant violation or note.
type Finding struct {
	Severity   Severity
	Check      string // short machine-friendly check name
	PositionID string // empty for run-level findings
	EventID    string // empty unless a specific event is implicated
	Detail     string
}

// Report is the auditor's verdict on one run.
type Report struct {
	RunID    string
	Findings []Finding

	P0Count int
	P1Count int
	P2Count int
}

// HasBlocking reports whether any P0 finding was raised.
func (r *Report) HasBlocking() bool { return r.P0Count > 0 }

// Input bundles the run artifacts the auditor reads.
type Input struct {
	Config    domain.SimConfig
	Summary   *domain.RunSummary
	Positions []*domain.Position
	Events    []*domain.Event
	Fills     []*domain.Fill
}

// Auditor checks one run.
type Auditor struct{}

// New creates an auditor.
func New() *Auditor { return &Auditor{} }

// Check runs every audit over the input and returns the report.
func (a *Auditor) Check(in Input) *Report {
	r := &Report{}
	if in.Summary != nil {
		r.RunID = in.Summary.RunID
	}

	posByID := make(map[string]*domain.Position, len(in.Positions))
	for _, p := range in.Positions {
		posByID[p.PositionID] = p
	}
	eventByID := make(map[string]*domain.Event, len(in.Events))
	for _, e := range in.Events {
		eventByID[e.EventID] = e
	}

	a.checkSequence(r, in.Events)
	a.checkReferences(r, in, posByID, eventByID)
	a.checkLifecycles(r, in, posByID)
	a.checkConservation(r, in)
	a.checkResetChains(r, in, posByID)
	a.checkCapacity(r, in)
	a.checkNotes(r, in)

	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityP0:
			r.P0Count++
		case SeverityP1:
			r.P1Count++
		case SeverityP2:
			r.P2Count++
		}
	}
	return r
}

func (r *Report) add(f Finding) { r.Findings = append(r.Findings, f) }

// checkSequence verifies explicit sequence numbers are dense from zero and
// timestamps never regress across the event stream.
func (a *Auditor) checkSequence(r *Report, events []*domain.Event) {
	var lastTs int64
	for i, e := range events {
		if e.Seq != int64(i) {
			r.add(Finding{
				Severity: SeverityP0, Check: "event_sequence", EventID: e.EventID,
				Detail: fmt.Sprintf("seq %d at stream index %d", e.Seq, i),
			})
		}
		if e.TimestampMs < lastTs {
			r.add(Finding{
				Severity: SeverityP0, Check: "event_time_order", EventID: e.EventID,
				Detail: fmt.Sprintf("timestamp %d precedes predecessor %d", e.TimestampMs, lastTs),
			})
		}
		lastTs = e.TimestampMs
	}
}

// checkReferences verifies every event points to a known position and every
// fill points to a known event of the same position.
func (a *Auditor) checkReferences(r *Report, in Input, posByID map[string]*domain.Position, eventByID map[string]*domain.Event) {
	for _, e := range in.Events {
		if _, ok := posByID[e.PositionID]; !ok {
			r.add(Finding{
				Severity: SeverityP0, Check: "event_position_ref", EventID: e.EventID,
				PositionID: e.PositionID,
				Detail:     "event references a position absent from the run",
			})
		}
	}
	for _, f := range in.Fills {
		e, ok := eventByID[f.EventID]
		if !ok {
			r.add(Finding{
				Severity: SeverityP0, Check: "fill_event_ref", PositionID: f.PositionID,
				Detail: fmt.Sprintf("fill %s references unknown event %s", f.FillID, f.EventID),
			})
			continue
		}
		if e.PositionID != f.PositionID {
			r.add(Finding{
				Severity: SeverityP0, Check: "fill_position_ref", EventID: e.EventID, PositionID: f.PositionID,
				Detail: fmt.Sprintf("fill %s and its event disagree on the position", f.FillID),
			})
		}
	}
}

// checkLifecycles replays each position's event stream against the
// open -> partial* -> closed state machine.
func (a *Auditor) checkLifecycles(r *Report, in Input, posByID map[string]*domain.Position) {
	type lifecycle struct {
		opened bool
		closed bool
	}
	states := make(map[string]*lifecycle, len(in.Positions))
	for id := range posByID {
		states[id] = &lifecycle{}
	}

	for _, e := range in.Events {
		st, ok := states[e.PositionID]
		if !ok {
			continue // already a P0 reference finding
		}
		switch e.Type {
		case domain.EventPositionOpened:
			if st.opened {
				r.add(Finding{Severity: SeverityP0, Check: "double_open", EventID: e.EventID, PositionID: e.PositionID,
					Detail: "second OPENED event for the position"})
			}
			st.opened = true
		case domain.EventPositionPartialExit:
			if !st.opened || st.closed {
				r.add(Finding{Severity: SeverityP0, Check: "partial_outside_lifecycle", EventID: e.EventID, PositionID: e.PositionID,
					Detail: "PARTIAL_EXIT outside the open window"})
			}
		case domain.EventPositionClosed:
			if !st.opened {
				r.add(Finding{Severity: SeverityP0, Check: "close_before_open", EventID: e.EventID, PositionID: e.PositionID,
					Detail: "CLOSED event precedes OPENED"})
			}
			if st.closed {
				r.add(Finding{Severity: SeverityP0, Check: "double_close", EventID: e.EventID, PositionID: e.PositionID,
					Detail: "second CLOSED event for the position"})
			}
			st.closed = true
		}
	}

	for id, p := range posByID {
		st := states[id]
		if !st.opened {
			r.add(Finding{Severity: SeverityP0, Check: "missing_open_event", PositionID: id,
				Detail: "position has no OPENED event"})
		}
		if p.Status == domain.PositionClosed && !st.closed {
			r.add(Finding{Severity: SeverityP0, Check: "missing_close_event", PositionID: id,
				Detail: "closed position has no CLOSED event"})
		}
		if p.Status == domain.PositionOpen && st.closed {
			r.add(Finding{Severity: SeverityP0, Check: "closed_but_open", PositionID: id,
				Detail: "open position has a CLOSED event"})
		}
		if p.Status == domain.PositionClosed && math.Abs(p.RemainingSize) > FloatTolerance {
			r.add(Finding{Severity: SeverityP0, Check: "closed_with_remainder", PositionID: id,
				Detail: fmt.Sprintf("closed position holds remaining size %g", p.RemainingSize)})
		}
	}
}

// checkConservation re-derives position aggregates and the final balance
// from the fills and compares within FloatTolerance.
func (a *Auditor) checkConservation(r *Report, in Input) {
	pnlByPos := make(map[string]float64)
	feesByPos := make(map[string]float64)
	qtyByPos := make(map[string]float64)

	var totalPnL, totalFees float64
	for _, f := range in.Fills {
		pnlByPos[f.PositionID] += f.RealizedPnLDelta
		feesByPos[f.PositionID] += f.Fees
		qtyByPos[f.PositionID] += f.QuantityDelta
		totalPnL += f.RealizedPnLDelta
		totalFees += f.Fees
	}

	for _, p := range in.Positions {
		if p.ResetFlags.SyntheticMarker {
			continue
		}
		if !floatEquals(pnlByPos[p.PositionID], p.RealizedPnL) {
			r.add(Finding{Severity: SeverityP0, Check: "pnl_conservation", PositionID: p.PositionID,
				Detail: fmt.Sprintf("fills sum to pnl %g, position records %g", pnlByPos[p.PositionID], p.RealizedPnL)})
		}
		if !floatEquals(feesByPos[p.PositionID], p.FeesTotal) {
			r.add(Finding{Severity: SeverityP0, Check: "fee_conservation", PositionID: p.PositionID,
				Detail: fmt.Sprintf("fills sum to fees %g, position records %g", feesByPos[p.PositionID], p.FeesTotal)})
		}
		if p.Status == domain.PositionClosed && !floatEquals(qtyByPos[p.PositionID], 0) {
			r.add(Finding{Severity: SeverityP0, Check: "quantity_conservation", PositionID: p.PositionID,
				Detail: fmt.Sprintf("closed position quantity deltas sum to %g", qtyByPos[p.PositionID])})
		}
	}

	if in.Summary != nil {
		want := in.Config.Allocation.StartingBalanceSOL + totalPnL - totalFees
		if !floatEquals(in.Summary.FinalBalance, want) {
			r.add(Finding{Severity: SeverityP0, Check: "balance_conservation",
				Detail: fmt.Sprintf("final balance %g, fills reconstruct %g", in.Summary.FinalBalance, want)})
		}
	}
}

// checkResetChains verifies each PORTFOLIO_RESET_TRIGGERED event follows
// its closure batch at the same timestamp and points at the flagged marker.
func (a *Auditor) checkResetChains(r *Report, in Input, posByID map[string]*domain.Position) {
	resetEvents := 0
	for i, e := range in.Events {
		if e.Type != domain.EventPortfolioResetTriggered {
			continue
		}
		resetEvents++

		marker, ok := posByID[e.PositionID]
		if ok && !marker.ResetFlags.ResetTrigger {
			r.add(Finding{Severity: SeverityP1, Check: "reset_marker_unflagged", EventID: e.EventID, PositionID: e.PositionID,
				Detail: "reset event references a position without the trigger flag"})
		}

		// The closure that produced the marker must immediately precede the
		// reset event within the same timestamp.
		if i == 0 {
			r.add(Finding{Severity: SeverityP0, Check: "reset_without_closure", EventID: e.EventID,
				Detail: "reset event is the first event of the run"})
			continue
		}
		prev := in.Events[i-1]
		if prev.TimestampMs != e.TimestampMs || prev.Type != domain.EventPositionClosed ||
			prev.Reason != domain.ReasonProfitReset {
			r.add(Finding{Severity: SeverityP0, Check: "reset_without_closure", EventID: e.EventID,
				Detail: fmt.Sprintf("reset not preceded by a profit_reset closure at %d", e.TimestampMs)})
		}
	}

	flagged := 0
	for _, p := range in.Positions {
		if p.ResetFlags.ResetTrigger {
			flagged++
		}
	}
	if flagged != resetEvents {
		r.add(Finding{Severity: SeverityP1, Check: "reset_count_mismatch",
			Detail: fmt.Sprintf("%d flagged marker positions, %d reset events", flagged, resetEvents)})
	}
	if in.Summary != nil && in.Summary.ProfitResets != resetEvents {
		r.add(Finding{Severity: SeverityP1, Check: "reset_count_mismatch",
			Detail: fmt.Sprintf("summary counts %d resets, ledger has %d", in.Summary.ProfitResets, resetEvents)})
	}
}

// checkCapacity re-evaluates the exposure bound from the admission numbers
// each OPENED event recorded.
func (a *Auditor) checkCapacity(r *Report, in Input) {
	maxExposure := in.Config.Allocation.MaxExposure
	if maxExposure <= 0 {
		return
	}
	for _, e := range in.Events {
		if e.Type != domain.EventPositionOpened {
			continue
		}
		openAfter, ok1 := parseMetaFloat(e.Meta, "open_notional_after")
		capitalBefore, ok2 := parseMetaFloat(e.Meta, "total_capital_before")
		if !ok1 || !ok2 || capitalBefore <= 0 {
			continue // synthetic markers carry no admission numbers
		}
		// Total capital is unchanged by the entry itself: cash converts to
		// open notional one for one, so the post-admission denominator is
		// the recorded pre-admission capital.
		exposure := openAfter / capitalBefore
		if exposure > maxExposure+FloatTolerance {
			r.add(Finding{Severity: SeverityP1, Check: "exposure_bound", EventID: e.EventID, PositionID: e.PositionID,
				Detail: fmt.Sprintf("admission left exposure %g above bound %g", exposure, maxExposure)})
		}
	}
}

// checkNotes surfaces run warnings as P2 findings so a report reader sees
// them next to the structural results.
func (a *Auditor) checkNotes(r *Report, in Input) {
	if in.Summary == nil {
		return
	}
	for _, w := range in.Summary.Warnings {
		r.add(Finding{Severity: SeverityP2, Check: "run_warning", Detail: w})
	}
}

func parseMetaFloat(meta domain.Meta, key string) (float64, bool) {
	raw, ok := meta[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
