// Package signal defines the Signal data model shared by the scheduled and
// pending shapes, grounded on the teacher's internal/strategy.Signal.
package signal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position is the side of a proposed or active trade.
type Position string

const (
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

// PartialType distinguishes a partial-profit milestone from a partial-loss
// milestone in the append-only _partial log.
type PartialType string

const (
	PartialProfit PartialType = "profit"
	PartialLoss   PartialType = "loss"
)

// Partial is one entry in a Signal's append-only partial-closure log.
// Invariant (enforced by MilestoneTracker, not here): strictly increasing
// Percent within Type; each Percent appears at most once per Type.
type Partial struct {
	Type    PartialType
	Percent int
	Price   decimal.Decimal
}

// Signal is the single unit of work the engine tracks per (symbol,
// strategyName): at most one scheduled-or-pending Signal may exist at a
// time (the one-active invariant, enforced by the Engine, not this type).
type Signal struct {
	ID                  string
	Symbol              string
	StrategyName        string
	ExchangeName        string
	Position            Position
	PriceOpen           decimal.Decimal
	PriceTakeProfit     decimal.Decimal
	PriceStopLoss       decimal.Decimal
	MinuteEstimatedTime int
	Timestamp           time.Time
	Note                string
	Partials            []Partial
}

// New constructs a Signal with a fresh ID and the given creation timestamp,
// which callers set to the ambient ExecutionContext.When — never the wall
// clock — to preserve look-ahead freedom in persisted/replayed signals.
func New(symbol, strategyName, exchangeName string, position Position, priceOpen, tp, sl decimal.Decimal, minuteEstimatedTime int, when time.Time, note string) *Signal {
	return &Signal{
		ID:                  uuid.New().String(),
		Symbol:              symbol,
		StrategyName:        strategyName,
		ExchangeName:        exchangeName,
		Position:            position,
		PriceOpen:           priceOpen,
		PriceTakeProfit:     tp,
		PriceStopLoss:       sl,
		MinuteEstimatedTime: minuteEstimatedTime,
		Timestamp:           when,
		Note:                note,
	}
}

// AppendPartial records a new partial milestone. The caller (MilestoneTracker)
// is responsible for dedup/monotonicity; this method only appends.
func (s *Signal) AppendPartial(t PartialType, percent int, price decimal.Decimal) {
	s.Partials = append(s.Partials, Partial{Type: t, Percent: percent, Price: price})
}

// HasFiredPartial reports whether percent has already fired for t.
func (s *Signal) HasFiredPartial(t PartialType, percent int) bool {
	for _, p := range s.Partials {
		if p.Type == t && p.Percent == percent {
			return true
		}
	}
	return false
}

// HighestFiredPartial returns the highest percent already fired for t, or 0
// if none has fired yet.
func (s *Signal) HighestFiredPartial(t PartialType) int {
	highest := 0
	for _, p := range s.Partials {
		if p.Type == t && p.Percent > highest {
			highest = p.Percent
		}
	}
	return highest
}

// PnLPercent computes the percentage move from PriceOpen to exitPrice,
// signed so a favorable move is positive regardless of position side.
func (s *Signal) PnLPercent(exitPrice decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	move := exitPrice.Sub(s.PriceOpen).Div(s.PriceOpen).Mul(hundred)
	if s.Position == PositionShort {
		return move.Neg()
	}
	return move
}
