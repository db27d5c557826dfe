package engine

import (
	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
)

// Kind is the discriminant of Result. Exhaustive switches over Kind are
// the only sanctioned way to branch on a Result; no boolean scaffolding
// fields.
type Kind string

const (
	KindIdle      Kind = "idle"
	KindScheduled Kind = "scheduled"
	KindOpened    Kind = "opened"
	KindActive    Kind = "active"
	KindClosed    Kind = "closed"
	KindCancelled Kind = "cancelled"
)

// CloseReason explains a terminal Closed or Cancelled result.
type CloseReason string

const (
	ReasonTakeProfit  CloseReason = "take_profit"
	ReasonStopLoss    CloseReason = "stop_loss"
	ReasonTimeExpired CloseReason = "time_expired"
	ReasonCancelled   CloseReason = "cancelled"
	ReasonTimeout     CloseReason = "timeout"
	ReasonEndOfData   CloseReason = "end_of_data"
)

// Result is the sealed outcome of one Tick/Backtest call. Fields outside
// a Kind's relevant set are left at their zero value; callers switch on
// Kind rather than probing for non-nil.
type Result struct {
	Kind         Kind
	Symbol       string
	StrategyName string
	Signal       *signal.Signal // nil for Idle

	// Populated only for Closed/Cancelled.
	CloseReason CloseReason
	PnLPercent  decimal.Decimal
	CloseTime   int64 // unix seconds; 0 if not terminal
}

func idleResult(symbol, strategyName string) Result {
	return Result{Kind: KindIdle, Symbol: symbol, StrategyName: strategyName}
}

func scheduledResult(symbol, strategyName string, s *signal.Signal) Result {
	return Result{Kind: KindScheduled, Symbol: symbol, StrategyName: strategyName, Signal: s}
}

func openedResult(symbol, strategyName string, s *signal.Signal) Result {
	return Result{Kind: KindOpened, Symbol: symbol, StrategyName: strategyName, Signal: s}
}

func activeResult(symbol, strategyName string, s *signal.Signal) Result {
	return Result{Kind: KindActive, Symbol: symbol, StrategyName: strategyName, Signal: s}
}

func closedResult(symbol, strategyName string, s *signal.Signal, reason CloseReason, pnlPercent decimal.Decimal, closeTime int64) Result {
	return Result{
		Kind: KindClosed, Symbol: symbol, StrategyName: strategyName, Signal: s,
		CloseReason: reason, PnLPercent: pnlPercent, CloseTime: closeTime,
	}
}

func cancelledResult(symbol, strategyName string, s *signal.Signal, reason CloseReason, closeTime int64) Result {
	return Result{
		Kind: KindCancelled, Symbol: symbol, StrategyName: strategyName, Signal: s,
		CloseReason: reason, CloseTime: closeTime,
	}
}
