package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
)

// Proposal is what a user's GetSignalFunc returns: a draft signal that
// may omit PriceOpen (zero value) to request immediate entry at the
// current VWAP, per spec.md §4.7.2.
type Proposal struct {
	Position            signal.Position
	PriceOpen           decimal.Decimal // zero means "immediate"
	PriceTakeProfit     decimal.Decimal
	PriceStopLoss       decimal.Decimal
	MinuteEstimatedTime int
	Note                string
}

// GetSignalFunc is the user-supplied signal generator. Returning (nil, nil)
// means "no signal this tick". Errors are caught by the engine, emitted on
// the error bus topic, and degrade the tick to idle — never propagated.
type GetSignalFunc func(ctx context.Context, symbol string) (*Proposal, error)

// Config holds the per-driver tunables sourced from internal/config's
// CC_* environment keys.
type Config struct {
	ExchangeName         string
	Interval             string        // candle interval, e.g. "5m"
	IntervalDuration     time.Duration // simulated duration of one interval
	ScheduleAwaitMinutes int           // CC_SCHEDULE_AWAIT_MINUTES
	VWAPWindow           int           // CC_AVG_PRICE_CANDLES_COUNT
	BreakevenProgressPct decimal.Decimal
	RiskName             string // label only; admission control is enabled by SetRiskProfile
}

// DefaultConfig mirrors the CC_* defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		Interval:             "5m",
		IntervalDuration:     5 * time.Minute,
		ScheduleAwaitMinutes: 120,
		VWAPWindow:           5,
		BreakevenProgressPct: decimal.NewFromInt(30),
	}
}
