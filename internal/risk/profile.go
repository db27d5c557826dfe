// Package risk implements the admission-control RiskProfile (C5): a named
// policy shared by every strategy that references it, counting active
// positions and evaluating user-supplied predicates before a signal is
// allowed to open. Adapted from the teacher's internal/risk.Manager, whose
// single-account PnL/drawdown bookkeeping is generalized here into a
// shared active-position admission gate keyed by (riskName, strategyName).
package risk

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// CheckInput is the context a Predicate evaluates. CurrentPrice is the
// signal's candidate entry (VWAP for immediate signals, priceOpen for
// scheduled ones).
type CheckInput struct {
	Symbol          string
	StrategyName    string
	CurrentPrice    decimal.Decimal
	ActivePositions int
}

// Predicate is a user-supplied admission rule. Returning reject=true
// rejects the signal; the reason is carried onto the RejectedError.
type Predicate func(CheckInput) (reason string, reject bool)

// RejectedError is returned by CheckSignal when a predicate rejects.
// Corresponds to spec.md's RiskRejected error kind.
type RejectedError struct {
	Reason          string
	CurrentPrice    decimal.Decimal
	ActivePositions int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("risk rejected: %s (active=%d price=%s)", e.Reason, e.ActivePositions, e.CurrentPrice)
}

// Profile is a named admission-control policy. Lifecycle: created at
// registration, cleared only by explicit administrative action (Clear).
// Mutation of the active-set is serialized per riskName — here, per
// *Profile instance, since each Profile already corresponds to one
// riskName and is the shared resource strategies reference by pointer.
type Profile struct {
	riskName string

	mu         sync.Mutex
	active     map[string]int // strategyName -> count of active positions
	predicates []Predicate
}

// New creates a RiskProfile named riskName with the given admission
// predicates, evaluated in order on every CheckSignal call.
func New(riskName string, predicates ...Predicate) *Profile {
	return &Profile{
		riskName:   riskName,
		active:     make(map[string]int),
		predicates: predicates,
	}
}

// Name returns the riskName this profile was registered under.
func (p *Profile) Name() string {
	return p.riskName
}

// CheckSignal evaluates every predicate against the current active-set
// count for strategyName (symbol is passed to predicates but does not
// key the count). The first rejecting predicate wins.
func (p *Profile) CheckSignal(symbol, strategyName string, currentPrice decimal.Decimal) error {
	p.mu.Lock()
	active := p.active[strategyName]
	p.mu.Unlock()

	input := CheckInput{
		Symbol:          symbol,
		StrategyName:    strategyName,
		CurrentPrice:    currentPrice,
		ActivePositions: active,
	}
	for _, pred := range p.predicates {
		if reason, reject := pred(input); reject {
			return &RejectedError{Reason: reason, CurrentPrice: currentPrice, ActivePositions: active}
		}
	}
	return nil
}

// AddSignal increments the active-position count for strategyName under
// this risk profile. Called once a scheduled signal activates or an
// immediate signal opens.
func (p *Profile) AddSignal(strategyName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[strategyName]++
}

// RemoveSignal decrements the active-position count for strategyName.
// Called when a pending signal closes.
func (p *Profile) RemoveSignal(strategyName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[strategyName] > 0 {
		p.active[strategyName]--
	}
}

// ActiveCount returns the current active-position count for strategyName.
func (p *Profile) ActiveCount(strategyName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[strategyName]
}

// Clear resets the active-set. If strategyName is empty, every strategy's
// count under this profile is reset; used between optimizer/walker runs.
func (p *Profile) Clear(strategyName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strategyName == "" {
		p.active = make(map[string]int)
		return
	}
	delete(p.active, strategyName)
}

// MaxActivePositions returns a Predicate rejecting admission once
// ActivePositions reaches max, the most common risk-profile shape.
func MaxActivePositions(max int) Predicate {
	return func(in CheckInput) (string, bool) {
		if in.ActivePositions >= max {
			return fmt.Sprintf("max active positions (%d) reached for strategy %s", max, in.StrategyName), true
		}
		return "", false
	}
}
