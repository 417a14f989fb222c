// Package ledger owns the canonical append-only event and fill records of
// one simulation run. Events receive an explicit sequence number at
// emission; the sequence, not container order, is the tie-break within a
// timestamp. Nothing is ever mutated or deleted after append.
package ledger

import (
	"errors"
	"fmt"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/idhash"
)

// Ledger boundary errors.
var (
	ErrBadEventType  = errors.New("unknown event type")
	ErrBadReason     = errors.New("reason not in canonical set")
	ErrNoPosition    = errors.New("event requires a position reference")
	ErrTimeRegressed = errors.New("event timestamp precedes ledger head")
)

// Ledger accumulates events and fills for a single run.
type Ledger struct {
	runID string

	events []*domain.Event
	fills  []*domain.Fill

	nextSeq  int64
	nextFill int64
	lastTs   int64
}

// New creates an empty ledger for a run.
func New(runID string) *Ledger {
	return &Ledger{runID: runID}
}

// AppendEvent validates and appends one event, assigning its sequence
// number and deterministic id. The reason enum is enforced here: openings
// carry no reason, every other kind carries a canonical one.
func (l *Ledger) AppendEvent(timestampMs int64, typ domain.EventType, positionID string, reason domain.CloseReason, meta domain.Meta) (*domain.Event, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadEventType, typ)
	}
	if positionID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPosition, typ)
	}
	if typ == domain.EventPositionOpened {
		if reason != domain.ReasonNone {
			return nil, fmt.Errorf("%w: %q on %s", ErrBadReason, reason, typ)
		}
	} else if !reason.Valid() {
		return nil, fmt.Errorf("%w: %q on %s", ErrBadReason, reason, typ)
	}
	if timestampMs < l.lastTs {
		return nil, fmt.Errorf("%w: %d < %d", ErrTimeRegressed, timestampMs, l.lastTs)
	}

	e := &domain.Event{
		EventID:     idhash.ComputeEventID(l.runID, l.nextSeq),
		Seq:         l.nextSeq,
		TimestampMs: timestampMs,
		Type:        typ,
		PositionID:  positionID,
		Reason:      reason,
		Meta:        meta,
	}
	l.nextSeq++
	l.lastTs = timestampMs
	l.events = append(l.events, e)
	return e, nil
}

// AppendFill appends one fill under an already-emitted event.
func (l *Ledger) AppendFill(event *domain.Event, quantityDelta, rawPrice, executedPrice, fees, realizedPnLDelta float64) *domain.Fill {
	f := &domain.Fill{
		FillID:           idhash.ComputeFillID(l.runID, l.nextFill),
		Ordinal:          l.nextFill,
		EventID:          event.EventID,
		PositionID:       event.PositionID,
		TimestampMs:      event.TimestampMs,
		QuantityDelta:    quantityDelta,
		RawPrice:         rawPrice,
		ExecutedPrice:    executedPrice,
		Fees:             fees,
		RealizedPnLDelta: realizedPnLDelta,
	}
	l.nextFill++
	l.fills = append(l.fills, f)
	return f
}

// Events returns the event sequence in emission order.
func (l *Ledger) Events() []*domain.Event {
	out := make([]*domain.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Fills returns the fill sequence in emission order.
func (l *Ledger) Fills() []*domain.Fill {
	out := make([]*domain.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// EventCount returns the number of events appended so far.
func (l *Ledger) EventCount() int { return len(l.events) }

// FillCount returns the number of fills appended so far.
func (l *Ledger) FillCount() int { return len(l.fills) }
