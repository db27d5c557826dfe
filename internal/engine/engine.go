// Package engine implements the StrategyEngine (C7): the per-(symbol,
// strategyName) signal lifecycle state machine. Tick drives live
// evaluation one instant at a time; Backtest resolves an already-created
// signal against a candle slice in one fast-path call. Grounded on the
// teacher's internal/backtesting.Engine (struct shape, Run/feedCandle
// staging) and internal/order.Manager (safeInvoke-style callback
// isolation, per-driver locking).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/circuitbreaker"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/milestone"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/persistence"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/ratelimit"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/risk"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/telemetry"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/vwap"
)

// Engine is the state machine for exactly one (symbol, strategyName)
// pair. It exclusively owns its signal slots and persistence file;
// RiskProfile and EventBus, if set, are shared resources referenced by
// pointer, never owned.
type Engine struct {
	symbol       string
	strategyName string
	cfg          Config

	candleSource candle.Source
	validator    *signal.Validator
	getSignal    GetSignalFunc

	riskProfile *risk.Profile
	persist     *persistence.Adapter
	bus         *eventbus.Bus
	breaker     *circuitbreaker.CircuitBreaker
	limiter     ratelimit.Limiter
	log         *logger.Logger

	mu           sync.Mutex
	stopped      bool
	pending      *signal.Signal
	scheduled    *signal.Signal
	lastSignalAt *time.Time
	tracker      *milestone.Tracker
	modeTopic    string
}

// New constructs an Engine for (symbol, strategyName). Optional
// collaborators (risk profile, persistence, event bus, circuit breaker)
// are wired in afterwards with the Set* methods, following the teacher's
// SetOnTrade/SetOnEquityUpdate convention.
func New(symbol, strategyName string, cfg Config, src candle.Source, getSignal GetSignalFunc) *Engine {
	return &Engine{
		symbol:       symbol,
		strategyName: strategyName,
		cfg:          cfg,
		candleSource: src,
		validator:    signal.NewValidator(signal.DefaultValidatorConfig()),
		getSignal:    getSignal,
		limiter:      ratelimit.NewNoOpLimiter(),
		log:          logger.Component("engine"),
	}
}

func (e *Engine) SetValidator(v *signal.Validator)                    { e.validator = v }
func (e *Engine) SetRiskProfile(p *risk.Profile)                      { e.riskProfile = p }
func (e *Engine) SetPersistence(a *persistence.Adapter)               { e.persist = a }
func (e *Engine) SetEventBus(b *eventbus.Bus)                         { e.bus = b }
func (e *Engine) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) { e.breaker = cb }

// SetRateLimiter throttles outbound candleSource.Fetch and getSignal calls
// through limiter, e.g. a ratelimit.TokenBucket sized to an exchange's
// documented rate limit. Defaults to a no-op limiter that never blocks.
func (e *Engine) SetRateLimiter(limiter ratelimit.Limiter) { e.limiter = limiter }

// Pending returns a snapshot of the currently active signal, or nil.
func (e *Engine) Pending() *signal.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Scheduled returns a snapshot of the currently scheduled signal, or nil.
func (e *Engine) Scheduled() *signal.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduled
}

// Stop sets stopped=true. Cooperative: an already-pending or -scheduled
// signal continues to be monitored to closure; no new signals are
// generated.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// Rehydrate loads the persisted pending signal (if any) on first live
// use. Backtest drivers skip this entirely — they never persist.
func (e *Engine) Rehydrate(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.persist.Read(e.symbol, e.strategyName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if s == nil {
		return nil
	}
	e.pending = s
	tr := milestone.New()
	tr.RehydrateFromSignal(s.HighestFiredPartial(signal.PartialProfit), s.HighestFiredPartial(signal.PartialLoss))
	e.tracker = tr
	e.log.Info("rehydrated pending signal", "symbol", e.symbol, "strategy", e.strategyName, "signalId", s.ID)
	e.emitBus(eventbus.TopicActivePing, s)
	return nil
}

// Tick evaluates one step of the state machine at ctx's ExecutionContext.
func (e *Engine) Tick(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modeTopic = eventbus.TopicSignalLive
	telemetry.RecordTick(e.symbol, e.strategyName)

	ec, err := execctx.Current(ctx)
	if err != nil {
		e.log.Error("tick: missing execution context", "symbol", e.symbol, "strategy", e.strategyName)
		return idleResult(e.symbol, e.strategyName)
	}

	if e.scheduled != nil && e.pending == nil {
		return e.evaluateScheduled(ctx, ec)
	}

	if e.scheduled == nil && e.pending == nil && !e.stopped {
		return e.generateSignal(ctx, ec)
	}

	if e.pending != nil {
		return e.evaluatePending(ctx, ec)
	}

	return idleResult(e.symbol, e.strategyName)
}

// evaluateScheduled implements spec.md §4.7 phase 1.
func (e *Engine) evaluateScheduled(ctx context.Context, ec execctx.ExecutionContext) Result {
	s := e.scheduled

	if ec.When.Sub(s.Timestamp) >= time.Duration(e.cfg.ScheduleAwaitMinutes)*time.Minute {
		e.scheduled = nil
		res := cancelledResult(e.symbol, e.strategyName, s, ReasonTimeout, ec.When.Unix())
		e.logTransition("scheduled", "cancelled", "timeout")
		e.emitSignal(res)
		return res
	}

	vw, err := e.fetchVWAP(ctx)
	if err != nil {
		e.emitError(err)
		return idleResult(e.symbol, e.strategyName)
	}

	cancel, activate := scheduledPredicates(s, vw)
	if cancel {
		e.scheduled = nil
		res := cancelledResult(e.symbol, e.strategyName, s, ReasonCancelled, ec.When.Unix())
		e.logTransition("scheduled", "cancelled", "stop_loss")
		e.emitSignal(res)
		return res
	}
	if activate {
		s.Timestamp = ec.When
		e.scheduled = nil
		e.pending = s
		e.tracker = milestone.New()
		if e.riskProfile != nil {
			e.riskProfile.AddSignal(e.strategyName)
		}
		if err := e.persistPending(); err != nil {
			e.emitError(err)
		}
		res := openedResult(e.symbol, e.strategyName, s)
		e.logTransition("scheduled", "opened", "activated")
		e.emitSignal(res)
		return res
	}

	e.emitBus(eventbus.TopicSchedulePing, vw)
	return activeResult(e.symbol, e.strategyName, s)
}

// scheduledPredicates implements the live (VWAP-based) activation and
// cancellation rules of spec.md §4.7.1.b. Cancellation takes priority.
func scheduledPredicates(s *signal.Signal, vw decimal.Decimal) (cancel, activate bool) {
	switch s.Position {
	case signal.PositionLong:
		cancel = vw.LessThanOrEqual(s.PriceStopLoss)
		activate = vw.LessThanOrEqual(s.PriceOpen)
	case signal.PositionShort:
		cancel = vw.GreaterThanOrEqual(s.PriceStopLoss)
		activate = vw.GreaterThanOrEqual(s.PriceOpen)
	}
	return
}

// generateSignal implements spec.md §4.7 phase 2.
func (e *Engine) generateSignal(ctx context.Context, ec execctx.ExecutionContext) Result {
	if e.lastSignalAt != nil && ec.When.Sub(*e.lastSignalAt) < e.cfg.IntervalDuration {
		return idleResult(e.symbol, e.strategyName)
	}

	proposal, err := e.callGetSignal(ctx)
	if err != nil {
		e.emitError(fmt.Errorf("%w: %v", ErrUserCallbackFailure, err))
		return idleResult(e.symbol, e.strategyName)
	}
	if proposal == nil {
		return idleResult(e.symbol, e.strategyName)
	}

	now := ec.When
	e.lastSignalAt = &now

	if !proposal.PriceOpen.IsZero() {
		s := signal.New(e.symbol, e.strategyName, e.cfg.ExchangeName, proposal.Position,
			proposal.PriceOpen, proposal.PriceTakeProfit, proposal.PriceStopLoss,
			proposal.MinuteEstimatedTime, ec.When, proposal.Note)
		if err := e.validator.Validate(s, signal.ModeScheduled, decimal.Zero); err != nil {
			e.emitError(fmt.Errorf("%w: %v", ErrInvalidSignal, err))
			return idleResult(e.symbol, e.strategyName)
		}
		e.scheduled = s
		res := scheduledResult(e.symbol, e.strategyName, s)
		e.logTransition("idle", "scheduled", "awaiting entry")
		e.emitSignal(res)
		return res
	}

	vw, err := e.fetchVWAP(ctx)
	if err != nil {
		e.emitError(err)
		return idleResult(e.symbol, e.strategyName)
	}

	if e.riskProfile != nil {
		if err := e.riskProfile.CheckSignal(e.symbol, e.strategyName, vw); err != nil {
			telemetry.RecordRiskRejection(e.riskProfile.Name())
			e.emitBus(eventbus.TopicRisk, err)
			return idleResult(e.symbol, e.strategyName)
		}
	}

	s := signal.New(e.symbol, e.strategyName, e.cfg.ExchangeName, proposal.Position,
		vw, proposal.PriceTakeProfit, proposal.PriceStopLoss, proposal.MinuteEstimatedTime,
		ec.When, proposal.Note)
	if err := e.validator.Validate(s, signal.ModeImmediate, vw); err != nil {
		e.emitError(fmt.Errorf("%w: %v", ErrInvalidSignal, err))
		return idleResult(e.symbol, e.strategyName)
	}

	e.pending = s
	e.tracker = milestone.New()
	if e.riskProfile != nil {
		e.riskProfile.AddSignal(e.strategyName)
	}
	if err := e.persistPending(); err != nil {
		e.emitError(err)
	}
	res := openedResult(e.symbol, e.strategyName, s)
	e.logTransition("idle", "opened", "immediate entry")
	e.emitSignal(res)
	return res
}

// evaluatePending implements spec.md §4.7 phase 3.
func (e *Engine) evaluatePending(ctx context.Context, ec execctx.ExecutionContext) Result {
	s := e.pending

	vw, err := e.fetchVWAP(ctx)
	if err != nil {
		e.emitError(err)
		return activeResult(e.symbol, e.strategyName, s)
	}

	if ec.When.Sub(s.Timestamp) >= time.Duration(s.MinuteEstimatedTime)*time.Minute {
		return e.closePending(s, ReasonTimeExpired, vw, ec.When)
	}

	e.checkMilestones(s, vw)

	if res, closed := e.checkTPSL(s, vw, ec.When); closed {
		return res
	}

	e.emitBus(eventbus.TopicActivePing, vw)
	return activeResult(e.symbol, e.strategyName, s)
}

// checkTPSL evaluates TP before SL for both sides, the documented
// tie-break policy of spec.md §4.7 when a single sample satisfies both.
func (e *Engine) checkTPSL(s *signal.Signal, vw decimal.Decimal, when time.Time) (Result, bool) {
	switch s.Position {
	case signal.PositionLong:
		if vw.GreaterThanOrEqual(s.PriceTakeProfit) {
			return e.closePending(s, ReasonTakeProfit, vw, when), true
		}
		if vw.LessThanOrEqual(s.PriceStopLoss) {
			return e.closePending(s, ReasonStopLoss, vw, when), true
		}
	case signal.PositionShort:
		if vw.LessThanOrEqual(s.PriceTakeProfit) {
			return e.closePending(s, ReasonTakeProfit, vw, when), true
		}
		if vw.GreaterThanOrEqual(s.PriceStopLoss) {
			return e.closePending(s, ReasonStopLoss, vw, when), true
		}
	}
	return Result{}, false
}

func (e *Engine) closePending(s *signal.Signal, reason CloseReason, priceClose decimal.Decimal, when time.Time) Result {
	pnl := s.PnLPercent(priceClose)
	e.pending = nil
	e.tracker = nil
	if e.riskProfile != nil {
		e.riskProfile.RemoveSignal(e.strategyName)
	}
	if err := e.persistClear(); err != nil {
		e.emitError(err)
	}
	res := closedResult(e.symbol, e.strategyName, s, reason, pnl, when.Unix())
	telemetry.RecordCloseReason(string(reason))
	e.logTransition("active", "closed", string(reason))
	e.emitSignal(res)
	return res
}

func (e *Engine) checkMilestones(s *signal.Signal, vw decimal.Decimal) {
	if e.tracker == nil {
		return
	}
	tpProgress := progressFraction(s.PriceOpen, vw, s.PriceTakeProfit)
	if e.tracker.CheckBreakeven(tpProgress, e.cfg.BreakevenProgressPct.Div(decimal.NewFromInt(100))) {
		e.log.Milestone(map[string]any{"symbol": e.symbol, "strategy": e.strategyName, "type": "breakeven"})
		telemetry.RecordMilestone(e.symbol, e.strategyName, "breakeven")
		e.emitBus(eventbus.TopicBreakevenAvailable, s)
	}
	for _, lvl := range e.tracker.CheckPartialProfit(tpProgress) {
		s.AppendPartial(signal.PartialProfit, lvl, vw)
		e.log.Milestone(map[string]any{"symbol": e.symbol, "strategy": e.strategyName, "type": "partial_profit", "percent": lvl})
		telemetry.RecordMilestone(e.symbol, e.strategyName, "partial_profit")
		e.emitBus(eventbus.TopicPartialProfitAvailable, lvl)
	}

	slProgress := progressFraction(s.PriceOpen, vw, s.PriceStopLoss)
	for _, lvl := range e.tracker.CheckPartialLoss(slProgress) {
		s.AppendPartial(signal.PartialLoss, lvl, vw)
		e.log.Milestone(map[string]any{"symbol": e.symbol, "strategy": e.strategyName, "type": "partial_loss", "percent": lvl})
		telemetry.RecordMilestone(e.symbol, e.strategyName, "partial_loss")
		e.emitBus(eventbus.TopicPartialLossAvailable, lvl)
	}
}

// progressFraction computes how far current has moved from entry toward
// target, as a fraction of the total entry-to-target distance. Negative
// progress (moving away from target) clamps to zero rather than firing
// milestones in reverse.
func progressFraction(entry, current, target decimal.Decimal) decimal.Decimal {
	total := target.Sub(entry)
	if total.IsZero() {
		return decimal.Zero
	}
	frac := current.Sub(entry).Div(total)
	if frac.IsNegative() {
		return decimal.Zero
	}
	return frac
}

func (e *Engine) fetchVWAP(ctx context.Context) (decimal.Decimal, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	var vw decimal.Decimal
	run := func() error {
		v, err := vwap.Current(ctx, e.candleSource, e.symbol, e.cfg.Interval, e.cfg.VWAPWindow)
		if err != nil {
			return err
		}
		vw = v
		return nil
	}
	var err error
	if e.breaker != nil {
		err = e.breaker.Execute(ctx, run)
	} else {
		err = run()
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	return vw, nil
}

func (e *Engine) callGetSignal(ctx context.Context) (p *Proposal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if werr := e.limiter.Wait(ctx); werr != nil {
		return nil, werr
	}

	run := func() error {
		pp, callErr := e.getSignal(ctx, e.symbol)
		p = pp
		return callErr
	}
	if e.breaker != nil {
		if bErr := e.breaker.Execute(ctx, run); bErr != nil {
			return nil, bErr
		}
		return p, nil
	}
	if rErr := run(); rErr != nil {
		return nil, rErr
	}
	return p, nil
}

func (e *Engine) persistPending() error {
	if e.persist == nil {
		return nil
	}
	start := time.Now()
	err := e.persist.Write(e.pending, e.symbol, e.strategyName)
	telemetry.RecordPersistenceWrite(time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return nil
}

func (e *Engine) persistClear() error {
	if e.persist == nil {
		return nil
	}
	start := time.Now()
	err := e.persist.Write(nil, e.symbol, e.strategyName)
	telemetry.RecordPersistenceWrite(time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return nil
}

func (e *Engine) emitBus(topic string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(topic, payload)
}

// emitSignal fans a transition out to the generic "signal" topic plus
// the mode-specific signalLive/signalBacktest topic, per spec.md §4.10.
func (e *Engine) emitSignal(res Result) {
	e.emitBus(eventbus.TopicSignal, res)
	if e.modeTopic != "" {
		e.emitBus(e.modeTopic, res)
	}
}

func (e *Engine) emitError(err error) {
	e.log.Error("engine error", "symbol", e.symbol, "strategy", e.strategyName, "err", err)
	telemetry.RecordError(fmt.Sprintf("%T", err))
	e.emitBus(eventbus.TopicError, err)
}

func (e *Engine) logTransition(from, to, reason string) {
	e.log.Signal(map[string]any{
		"symbol":   e.symbol,
		"strategy": e.strategyName,
		"from":     from,
		"to":       to,
		"reason":   reason,
	})
	telemetry.RecordTransition(e.symbol, e.strategyName, to)
}
