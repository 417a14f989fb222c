package domain

import (
	"sort"
	"strings"
)

// EventType is one of the four canonical ledger event kinds.
type EventType string

// Event type constants. No other kinds exist; within one position the only
// legal order is OPENED → PARTIAL_EXIT* → CLOSED.
const (
	EventPositionOpened          EventType = "POSITION_OPENED"
	EventPositionPartialExit     EventType = "POSITION_PARTIAL_EXIT"
	EventPositionClosed          EventType = "POSITION_CLOSED"
	EventPortfolioResetTriggered EventType = "PORTFOLIO_RESET_TRIGGERED"
)

// Valid reports whether t is a canonical event type.
func (t EventType) Valid() bool {
	switch t {
	case EventPositionOpened, EventPositionPartialExit,
		EventPositionClosed, EventPortfolioResetTriggered:
		return true
	}
	return false
}

// Event is one append-only ledger entry. Seq is assigned by the ledger at
// emission and is the tie-break within one timestamp; ordering never
// depends on container insertion order.
type Event struct {
	EventID     string
	Seq         int64
	TimestampMs int64
	Type        EventType
	PositionID  string
	Reason      CloseReason
	Meta        Meta
}

// Meta is a flat string map of event payload fields.
type Meta map[string]string

// String serializes meta with sorted keys as k=v pairs joined by ';' so
// identical runs serialize byte-identically.
func (m Meta) String() string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(m[k])
	}
	return sb.String()
}
