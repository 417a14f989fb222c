// Package lookup resolves the mark price used to value and force-close a
// position between blueprint events.
package lookup

import (
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// MarkPrice resolves a raw price for a position using the documented
// chain: last raw price observed on the position's own blueprint events,
// then strategy-layer metadata, then the entry price. The second return
// value is true when the entry-price fallback was taken; forced closures
// flag the position for downstream diagnosis in that case.
func MarkPrice(p *domain.Position, metadataPrice *float64) (float64, bool) {
	if p.MarkPriceRaw > 0 {
		return p.MarkPriceRaw, false
	}
	if metadataPrice != nil && *metadataPrice > 0 {
		return *metadataPrice, false
	}
	return p.EntryPriceRaw, true
}
