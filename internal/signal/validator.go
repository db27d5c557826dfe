package signal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode distinguishes the two validation passes spec.md §4.4 names: a
// scheduled signal has not yet reached its entry price, while an immediate
// signal is being opened this instant against the current VWAP.
type Mode string

const (
	ModeScheduled Mode = "scheduled"
	ModeImmediate Mode = "immediate"
)

// InvalidSignalError reports the first failing check, matching the
// teacher's OrderError wrap-with-Op convention.
type InvalidSignalError struct {
	Reason string
}

func (e *InvalidSignalError) Error() string {
	return fmt.Sprintf("invalid signal: %s", e.Reason)
}

func invalid(format string, args ...any) error {
	return &InvalidSignalError{Reason: fmt.Sprintf(format, args...)}
}

// ValidatorConfig holds the configurable heuristics used by risk-reward and
// TP-distance checks, sourced from CC_PERCENT_SLIPPAGE/CC_PERCENT_FEE/
// CC_MAX_MINUTE_ESTIMATED_TIME.
type ValidatorConfig struct {
	PercentSlippage        decimal.Decimal
	PercentFee             decimal.Decimal
	MaxStopLossMovePercent decimal.Decimal // default 20
	MaxMinuteEstimatedTime int             // default 30 days in minutes
}

// DefaultValidatorConfig mirrors spec.md's stated defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		PercentSlippage:        decimal.NewFromFloat(0.05),
		PercentFee:             decimal.NewFromFloat(0.1),
		MaxStopLossMovePercent: decimal.NewFromInt(20),
		MaxMinuteEstimatedTime: 30 * 24 * 60,
	}
}

// Validator runs the fail-fast checks of spec.md §4.4, in order.
type Validator struct {
	cfg ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs checks 1-4 always, and check 5 (VWAP-vs-SL/TP sanity) only
// for ModeImmediate signals, per spec.md §4.4.
func (v *Validator) Validate(s *Signal, mode Mode, currentVWAP decimal.Decimal) error {
	if err := v.validateBasics(s); err != nil {
		return err
	}
	if err := v.validateGeometry(s); err != nil {
		return err
	}
	if err := v.validateRiskReward(s); err != nil {
		return err
	}
	if s.MinuteEstimatedTime > v.cfg.MaxMinuteEstimatedTime {
		return invalid("minuteEstimatedTime %d exceeds configured maximum %d", s.MinuteEstimatedTime, v.cfg.MaxMinuteEstimatedTime)
	}
	if mode == ModeImmediate {
		if err := v.validateImmediateVWAP(s, currentVWAP); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateBasics(s *Signal) error {
	if !s.PriceOpen.IsPositive() {
		return invalid("priceOpen must be > 0, got %s", s.PriceOpen)
	}
	if !s.PriceTakeProfit.IsPositive() {
		return invalid("priceTakeProfit must be > 0, got %s", s.PriceTakeProfit)
	}
	if !s.PriceStopLoss.IsPositive() {
		return invalid("priceStopLoss must be > 0, got %s", s.PriceStopLoss)
	}
	if s.MinuteEstimatedTime <= 0 {
		return invalid("minuteEstimatedTime must be > 0, got %d", s.MinuteEstimatedTime)
	}
	if s.Timestamp.IsZero() {
		return invalid("timestamp must be set")
	}
	return nil
}

func (v *Validator) validateGeometry(s *Signal) error {
	switch s.Position {
	case PositionLong:
		if !s.PriceTakeProfit.GreaterThan(s.PriceOpen) {
			return invalid("long TP %s must be > priceOpen %s", s.PriceTakeProfit, s.PriceOpen)
		}
		if !s.PriceStopLoss.LessThan(s.PriceOpen) {
			return invalid("long SL %s must be < priceOpen %s", s.PriceStopLoss, s.PriceOpen)
		}
	case PositionShort:
		if !s.PriceTakeProfit.LessThan(s.PriceOpen) {
			return invalid("short TP %s must be < priceOpen %s", s.PriceTakeProfit, s.PriceOpen)
		}
		if !s.PriceStopLoss.GreaterThan(s.PriceOpen) {
			return invalid("short SL %s must be > priceOpen %s", s.PriceStopLoss, s.PriceOpen)
		}
	default:
		return invalid("unknown position %q", s.Position)
	}
	return nil
}

// validateRiskReward rejects TP closer than the round-trip slippage+fee
// cost, and SL worse than MaxStopLossMovePercent, per spec.md §4.4.3.
func (v *Validator) validateRiskReward(s *Signal) error {
	roundTripCostPercent := v.cfg.PercentSlippage.Add(v.cfg.PercentFee).Mul(decimal.NewFromInt(2))
	hundred := decimal.NewFromInt(100)

	tpDistancePercent := s.PriceTakeProfit.Sub(s.PriceOpen).Div(s.PriceOpen).Abs().Mul(hundred)
	if tpDistancePercent.LessThanOrEqual(roundTripCostPercent) {
		return invalid("TP distance %s%% does not clear round-trip cost %s%%", tpDistancePercent.StringFixed(4), roundTripCostPercent.StringFixed(4))
	}

	slDistancePercent := s.PriceStopLoss.Sub(s.PriceOpen).Div(s.PriceOpen).Abs().Mul(hundred)
	if slDistancePercent.GreaterThan(v.cfg.MaxStopLossMovePercent) {
		return invalid("SL distance %s%% exceeds configured maximum %s%%", slDistancePercent.StringFixed(4), v.cfg.MaxStopLossMovePercent)
	}
	return nil
}

// validateImmediateVWAP rejects a signal whose entry point has already
// been passed by the market: VWAP must not already be beyond SL (would be
// instantly cancelled) nor beyond TP (opportunity already passed). Uses
// strict inequality per spec.md §4.4.5.
func (v *Validator) validateImmediateVWAP(s *Signal, vwap decimal.Decimal) error {
	switch s.Position {
	case PositionLong:
		if vwap.LessThan(s.PriceStopLoss) {
			return invalid("current VWAP %s already below SL %s", vwap, s.PriceStopLoss)
		}
		if vwap.GreaterThan(s.PriceTakeProfit) {
			return invalid("current VWAP %s already above TP %s", vwap, s.PriceTakeProfit)
		}
	case PositionShort:
		if vwap.GreaterThan(s.PriceStopLoss) {
			return invalid("current VWAP %s already above SL %s", vwap, s.PriceStopLoss)
		}
		if vwap.LessThan(s.PriceTakeProfit) {
			return invalid("current VWAP %s already below TP %s", vwap, s.PriceTakeProfit)
		}
	}
	return nil
}
