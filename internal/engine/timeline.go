package engine

import (
	"sort"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// itemKind orders item classes within one timestamp: exits resolve before
// entries, and partial exits before final exits.
type itemKind int

const (
	kindPartialExit itemKind = iota
	kindFinalExit
	kindEntry
)

// timelineItem is one scheduled blueprint transition on the merged global
// timeline.
type timelineItem struct {
	TimestampMs  int64
	Kind         itemKind
	BlueprintIdx int
	PartialIdx   int // valid for kindPartialExit only
}

// buildTimeline merges every blueprint's entry, partial-exit and final-exit
// timestamps into one chronological sequence. Ordering is total and
// deterministic: (timestamp, kind, blueprint index, partial index).
func buildTimeline(blueprints []*domain.TradeBlueprint) []timelineItem {
	var items []timelineItem
	for i, b := range blueprints {
		items = append(items, timelineItem{TimestampMs: b.EntryTime, Kind: kindEntry, BlueprintIdx: i})
		for j, pe := range b.PartialExits {
			items = append(items, timelineItem{TimestampMs: pe.Time, Kind: kindPartialExit, BlueprintIdx: i, PartialIdx: j})
		}
		if b.FinalExit != nil {
			items = append(items, timelineItem{TimestampMs: b.FinalExit.Time, Kind: kindFinalExit, BlueprintIdx: i})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return compareItems(items[i], items[j]) < 0
	})
	return items
}

// compareItems returns negative/zero/positive for a before/equal/after b.
func compareItems(a, b timelineItem) int {
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	if a.BlueprintIdx != b.BlueprintIdx {
		return a.BlueprintIdx - b.BlueprintIdx
	}
	return a.PartialIdx - b.PartialIdx
}

// groupTicks slices a sorted timeline into runs sharing one timestamp.
func groupTicks(items []timelineItem) [][]timelineItem {
	var ticks [][]timelineItem
	start := 0
	for i := 1; i <= len(items); i++ {
		if i == len(items) || items[i].TimestampMs != items[start].TimestampMs {
			ticks = append(ticks, items[start:i])
			start = i
		}
	}
	return ticks
}
