package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/milestone"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/vwap"
)

// Backtest resolves the current scheduled-or-pending signal against a
// candle slice in one fast-path call, per spec.md §4.7 "backtest(candles)".
// The context need not carry an ExecutionContext; candle timestamps drive
// every decision instead of the wall clock.
func (e *Engine) Backtest(ctx context.Context, candles []candle.Candle) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modeTopic = eventbus.TopicSignalBacktest

	if e.scheduled != nil && e.pending == nil {
		res, rest, transitioned := e.backtestScheduled(candles)
		if !transitioned {
			return res
		}
		return e.backtestPending(rest)
	}

	if e.pending != nil {
		return e.backtestPending(candles)
	}

	return idleResult(e.symbol, e.strategyName)
}

// backtestScheduled implements Phase A. It returns the remaining candle
// slice starting just after the activating candle when transitioned is
// true, for Phase B to continue from.
func (e *Engine) backtestScheduled(candles []candle.Candle) (res Result, rest []candle.Candle, transitioned bool) {
	s := e.scheduled

	for i, c := range candles {
		cancel, activate := scheduledCandlePredicates(s, c)
		if cancel {
			e.scheduled = nil
			res = cancelledResult(e.symbol, e.strategyName, s, ReasonCancelled, c.Timestamp.Unix())
			e.logTransition("scheduled", "cancelled", "stop_loss")
			e.emitSignal(res)
			return res, nil, false
		}
		if activate {
			s.Timestamp = c.Timestamp
			e.scheduled = nil
			e.pending = s
			e.tracker = milestone.New()
			if e.riskProfile != nil {
				e.riskProfile.AddSignal(e.strategyName)
			}
			res = openedResult(e.symbol, e.strategyName, s)
			e.logTransition("scheduled", "opened", "activated")
			e.emitSignal(res)
			return res, candles[i+1:], true
		}
	}

	e.scheduled = nil
	last := candles[len(candles)-1]
	res = cancelledResult(e.symbol, e.strategyName, s, ReasonTimeout, last.Timestamp.Unix())
	e.logTransition("scheduled", "cancelled", "timeout")
	e.emitSignal(res)
	return res, nil, false
}

// scheduledCandlePredicates implements the backtest (candle-range-based)
// activation/cancellation rules of spec.md §4.7 Phase A, distinct from
// the live VWAP-based scheduledPredicates.
func scheduledCandlePredicates(s *signal.Signal, c candle.Candle) (cancel, activate bool) {
	switch s.Position {
	case signal.PositionLong:
		cancel = c.Low.LessThanOrEqual(s.PriceStopLoss)
		activate = c.Low.LessThanOrEqual(s.PriceOpen)
	case signal.PositionShort:
		cancel = c.High.GreaterThanOrEqual(s.PriceStopLoss)
		activate = c.High.GreaterThanOrEqual(s.PriceOpen)
	}
	return
}

// backtestPending implements Phase B: a trailing-VWAP walk over candles,
// starting once 5 candles are available to warm the window.
func (e *Engine) backtestPending(candles []candle.Candle) Result {
	s := e.pending

	start := e.cfg.VWAPWindow - 1
	if start < 0 {
		start = 0
	}
	if start >= len(candles) {
		start = len(candles) - 1
	}
	if start < 0 {
		// No candles at all: close immediately as time_expired with no
		// meaningful exit price.
		return e.closePending(s, ReasonTimeExpired, decimal.Zero, s.Timestamp)
	}

	for i := start; i < len(candles); i++ {
		windowStart := i - e.cfg.VWAPWindow + 1
		if windowStart < 0 {
			windowStart = 0
		}
		vw := vwap.Of(candles[windowStart : i+1])
		c := candles[i]

		e.checkMilestones(s, vw)

		if res, closed := e.checkTPSL(s, vw, c.Timestamp); closed {
			return res
		}
	}

	lastWindowStart := len(candles) - e.cfg.VWAPWindow
	if lastWindowStart < 0 {
		lastWindowStart = 0
	}
	finalVWAP := vwap.Of(candles[lastWindowStart:])
	lastTimestamp := candles[len(candles)-1].Timestamp
	return e.closePending(s, ReasonTimeExpired, finalVWAP, lastTimestamp)
}
