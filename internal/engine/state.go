package engine

import (
	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// portfolioState is the single shared mutable state of one run, owned
// exclusively by the engine loop. Open positions keep admission order so
// iteration is deterministic.
type portfolioState struct {
	balance float64

	open     []*domain.Position
	openByID map[string]*domain.Position

	cycleStartEquity  float64
	equityPeakInCycle float64

	resetCount    int
	pruneEpisodes int

	lastResetMs        int64 // -1 until the first reset
	pruneCooldownUntil int64

	// admissionWindow is the rolling record of admission outcomes
	// (true = blocked) feeding the capacity-prune blocked ratio.
	admissionWindow []bool
	windowSize      int
}

func newPortfolioState(startingBalance float64, windowSize int) *portfolioState {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &portfolioState{
		balance:           startingBalance,
		openByID:          make(map[string]*domain.Position),
		cycleStartEquity:  startingBalance,
		equityPeakInCycle: startingBalance,
		lastResetMs:       -1,
		windowSize:        windowSize,
	}
}

func (s *portfolioState) addOpen(p *domain.Position) {
	s.open = append(s.open, p)
	s.openByID[p.PositionID] = p
}

func (s *portfolioState) removeOpen(positionID string) {
	delete(s.openByID, positionID)
	for i, p := range s.open {
		if p.PositionID == positionID {
			s.open = append(s.open[:i], s.open[i+1:]...)
			return
		}
	}
}

// openNotional is the entry-basis size still held across open positions.
func (s *portfolioState) openNotional() float64 {
	var total float64
	for _, p := range s.open {
		total += p.RemainingSize
	}
	return total
}

// equity is balance plus the mark-to-market value of open positions.
func (s *portfolioState) equity() float64 {
	total := s.balance
	for _, p := range s.open {
		total += p.MarkValue()
	}
	return total
}

func (s *portfolioState) recordAdmission(blocked bool) {
	s.admissionWindow = append(s.admissionWindow, blocked)
	if len(s.admissionWindow) > s.windowSize {
		s.admissionWindow = s.admissionWindow[len(s.admissionWindow)-s.windowSize:]
	}
}

// blockedRatio over the rolling window; -1 with no samples.
func (s *portfolioState) blockedRatio() float64 {
	if len(s.admissionWindow) == 0 {
		return -1
	}
	blocked := 0
	for _, b := range s.admissionWindow {
		if b {
			blocked++
		}
	}
	return float64(blocked) / float64(len(s.admissionWindow))
}
