// Package vwap computes the volume-weighted average price the engine
// treats as the canonical "current price". Grounded on the teacher's
// decimal-arithmetic rolling-window style in internal/strategy/indicators.go.
package vwap

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
)

// DefaultWindow is the number of trailing candles getAveragePrice uses,
// overridable via CC_AVG_PRICE_CANDLES_COUNT.
const DefaultWindow = 5

// Of computes VWAP over candles: typical price (H+L+C)/3 weighted by
// volume, falling back to the arithmetic mean of Close when total volume
// is zero. An empty slice returns decimal.Zero.
func Of(candles []candle.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}

	totalVolume := decimal.Zero
	weightedSum := decimal.Zero
	closeSum := decimal.Zero
	three := decimal.NewFromInt(3)

	for _, c := range candles {
		typical := c.High.Add(c.Low).Add(c.Close).Div(three)
		weightedSum = weightedSum.Add(typical.Mul(c.Volume))
		totalVolume = totalVolume.Add(c.Volume)
		closeSum = closeSum.Add(c.Close)
	}

	if totalVolume.IsZero() {
		return closeSum.Div(decimal.NewFromInt(int64(len(candles))))
	}
	return weightedSum.Div(totalVolume)
}

// Current fetches the trailing window-sized candle slice ending at the
// ambient ExecutionContext's When (inclusive, per spec resolution of the
// VWAP boundary open question) and returns its VWAP. window defaults to
// DefaultWindow when <= 0.
func Current(ctx context.Context, src candle.Source, symbol, interval string, window int) (decimal.Decimal, error) {
	if _, err := execctx.Current(ctx); err != nil {
		return decimal.Zero, err
	}
	if window <= 0 {
		window = DefaultWindow
	}

	candles, err := candle.Window(ctx, src, symbol, interval, window, false)
	if err != nil {
		return decimal.Zero, err
	}
	return Of(candles), nil
}
