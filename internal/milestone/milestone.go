// Package milestone implements the MilestoneTracker (C8): once-per-level
// breakeven, partial-profit, and partial-loss events, plus the
// direction-locked trailing-stop discipline. One Tracker is owned
// exclusively by its StrategyEngine driver; never shared across signals.
package milestone

import (
	"github.com/shopspring/decimal"
)

// decileStep is the bucket width for partial-profit/partial-loss levels.
const decileStep = 10

// direction of an accepted trailing-stop adjustment, locked on first use.
type direction int

const (
	directionUnset direction = iota
	directionUp
	directionDown
)

// Tracker accumulates fired milestones for exactly one active signal.
type Tracker struct {
	breakevenFired       bool
	partialProfitHighest int
	partialLossHighest   int
	trailingDirection    direction
	trailingLastAccepted decimal.Decimal
	trailingHasAccepted  bool
}

// New returns an empty Tracker for a freshly opened signal.
func New() *Tracker {
	return &Tracker{}
}

// RehydrateFromSignal restores the partial-profit/partial-loss
// high-water marks from a persisted signal's append-only partial log,
// so a restart does not re-fire milestones that already happened before
// the crash. Breakeven state is not persisted on Signal and so is not
// rehydrated; a spurious re-fire of that single notification after a
// restart is accepted as harmless.
func (t *Tracker) RehydrateFromSignal(highestProfit, highestLoss int) {
	t.partialProfitHighest = highestProfit
	t.partialLossHighest = highestLoss
}

// CheckBreakeven reports whether progress (a fraction 0..1 of progress
// toward TP) has just crossed threshold for the first time. Fires at
// most once per Tracker lifetime.
func (t *Tracker) CheckBreakeven(progress, threshold decimal.Decimal) bool {
	if t.breakevenFired {
		return false
	}
	if progress.GreaterThanOrEqual(threshold) {
		t.breakevenFired = true
		return true
	}
	return false
}

// CheckPartialProfit returns every decile level (10, 20, ..., 90) newly
// crossed by progress (a fraction 0..1 of progress toward TP), in
// ascending order. A price reversal that re-crosses a level below the
// high-water mark fires nothing.
func (t *Tracker) CheckPartialProfit(progress decimal.Decimal) []int {
	return checkDeciles(&t.partialProfitHighest, progress)
}

// CheckPartialLoss mirrors CheckPartialProfit for progress toward SL.
func (t *Tracker) CheckPartialLoss(progress decimal.Decimal) []int {
	return checkDeciles(&t.partialLossHighest, progress)
}

// checkDeciles implements bucket = floor(progress*100 / 10) * 10.
func checkDeciles(highest *int, progress decimal.Decimal) []int {
	if progress.IsNegative() {
		return nil
	}
	level := int(progress.Mul(decimal.NewFromInt(10)).IntPart()) * decileStep
	if level > 90 {
		level = 90
	}
	if level <= *highest {
		return nil
	}

	var fired []int
	for lvl := *highest + decileStep; lvl <= level; lvl += decileStep {
		fired = append(fired, lvl)
	}
	*highest = level
	return fired
}

// TrailingStop evaluates a candidate new stop-loss. The first call is
// always accepted and only records a baseline; it locks no direction.
// The first later call that differs from the last accepted value locks
// the direction of that move (up or down); the position side is not
// consulted. Every subsequent call is accepted only if it continues in
// that same direction relative to the last accepted value. A rejection
// is silent: it returns (zero, false) and leaves Tracker state unchanged.
func (t *Tracker) TrailingStop(candidateSL decimal.Decimal) (decimal.Decimal, bool) {
	if !t.trailingHasAccepted {
		t.trailingHasAccepted = true
		t.trailingLastAccepted = candidateSL
		t.trailingDirection = directionUnset
		return candidateSL, true
	}

	if candidateSL.Equal(t.trailingLastAccepted) {
		return decimal.Zero, false
	}

	moveUp := candidateSL.GreaterThan(t.trailingLastAccepted)
	wantDirection := directionDown
	if moveUp {
		wantDirection = directionUp
	}

	if t.trailingDirection == directionUnset {
		t.trailingDirection = wantDirection
		t.trailingLastAccepted = candidateSL
		return candidateSL, true
	}

	if t.trailingDirection != wantDirection {
		return decimal.Zero, false
	}

	t.trailingLastAccepted = candidateSL
	return candidateSL, true
}
