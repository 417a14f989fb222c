package ledger

import (
	"errors"
	"testing"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

func TestAppendEvent_AssignsSequence(t *testing.T) {
	l := New("run1")

	a, err := l.AppendEvent(1000, domain.EventPositionOpened, "p1", domain.ReasonNone, nil)
	if err != nil {
		t.Fatalf("append opened: %v", err)
	}
	b, err := l.AppendEvent(1000, domain.EventPositionClosed, "p1", domain.ReasonStrategyExit, nil)
	if err != nil {
		t.Fatalf("append closed: %v", err)
	}

	if a.Seq != 0 || b.Seq != 1 {
		t.Errorf("expected seq 0,1 got %d,%d", a.Seq, b.Seq)
	}
	if a.EventID == b.EventID {
		t.Error("event ids must be unique")
	}
}

func TestAppendEvent_ReasonBoundary(t *testing.T) {
	l := New("run1")

	// Opened events carry no reason.
	if _, err := l.AppendEvent(1000, domain.EventPositionOpened, "p1", domain.ReasonStrategyExit, nil); !errors.Is(err, ErrBadReason) {
		t.Errorf("expected ErrBadReason for reasoned open, got %v", err)
	}

	// Free-form reasons are rejected at the boundary.
	if _, err := l.AppendEvent(1000, domain.EventPositionClosed, "p1", domain.CloseReason("rugged"), nil); !errors.Is(err, ErrBadReason) {
		t.Errorf("expected ErrBadReason for non-canonical reason, got %v", err)
	}

	if _, err := l.AppendEvent(1000, domain.EventType("POSITION_MOVED"), "p1", domain.ReasonNone, nil); !errors.Is(err, ErrBadEventType) {
		t.Errorf("expected ErrBadEventType, got %v", err)
	}

	if _, err := l.AppendEvent(1000, domain.EventPositionClosed, "", domain.ReasonStrategyExit, nil); !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
}

func TestAppendEvent_MonotonicTimestamps(t *testing.T) {
	l := New("run1")

	if _, err := l.AppendEvent(2000, domain.EventPositionOpened, "p1", domain.ReasonNone, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.AppendEvent(1999, domain.EventPositionClosed, "p1", domain.ReasonEndOfData, nil); !errors.Is(err, ErrTimeRegressed) {
		t.Errorf("expected ErrTimeRegressed, got %v", err)
	}
	// Equal timestamps are fine; seq breaks the tie.
	if _, err := l.AppendEvent(2000, domain.EventPositionClosed, "p1", domain.ReasonEndOfData, nil); err != nil {
		t.Errorf("equal timestamp should append: %v", err)
	}
}

func TestAppendFill_BackReferencesEvent(t *testing.T) {
	l := New("run1")

	e, err := l.AppendEvent(1000, domain.EventPositionOpened, "p1", domain.ReasonNone, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	f := l.AppendFill(e, 1.0, 2.0, 2.04, 0.003, 0)

	if f.EventID != e.EventID || f.PositionID != "p1" || f.TimestampMs != 1000 {
		t.Errorf("fill does not back-reference its event: %+v", f)
	}
}

func TestLedger_Deterministic(t *testing.T) {
	build := func() *Ledger {
		l := New("run1")
		e, _ := l.AppendEvent(1000, domain.EventPositionOpened, "p1", domain.ReasonNone, domain.Meta{"size": "1"})
		l.AppendFill(e, 1.0, 2.0, 2.04, 0.003, 0)
		e2, _ := l.AppendEvent(2000, domain.EventPositionClosed, "p1", domain.ReasonEndOfData, nil)
		l.AppendFill(e2, -1.0, 2.0, 1.99, 0.003, 0.1)
		return l
	}

	a, b := build(), build()
	ae, be := a.Events(), b.Events()
	for i := range ae {
		if ae[i].EventID != be[i].EventID || ae[i].Seq != be[i].Seq || ae[i].TimestampMs != be[i].TimestampMs || ae[i].Meta.String() != be[i].Meta.String() {
			t.Fatalf("event %d diverged between identical builds", i)
		}
	}
	af, bf := a.Fills(), b.Fills()
	for i := range af {
		if *af[i] != *bf[i] {
			t.Fatalf("fill %d diverged between identical builds", i)
		}
	}
}
