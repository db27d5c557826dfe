// Package strategy retains the teacher's indicator math (EMA/SMA/RSI/
// MACD/BollingerBands/ATR/VWAP/Stochastic) as a reference toolkit a
// GetSignalFunc can build on. CrossoverSignal is the one piece of
// decision logic kept here: a minimal EMA-crossover rule, grounded on
// the teacher's own short/long EMA strategy parameters (cmd/backtest's
// former -short-ema/-long-ema flags), used by the example GetSignalFunc
// callbacks in cmd/backtest and cmd/live instead of inventing a new
// indicator from scratch.
package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
)

// CrossoverSignal reports whether the short EMA has just crossed above
// (bullish=true) or below (bullish=false) the long EMA on the last two
// candles of closes. ok is false when closes doesn't carry enough
// history to compute both EMAs at two consecutive points.
func CrossoverSignal(closes []decimal.Decimal, shortPeriod, longPeriod int) (bullish, ok bool) {
	shortEMA := EMA(closes, shortPeriod)
	longEMA := EMA(closes, longPeriod)
	if len(shortEMA) < 2 || len(longEMA) < 2 {
		return false, false
	}

	offset := len(shortEMA) - len(longEMA)
	if offset < 0 {
		return false, false
	}

	prevShort, curShort := shortEMA[offset+len(longEMA)-2], shortEMA[offset+len(longEMA)-1]
	prevLong, curLong := longEMA[len(longEMA)-2], longEMA[len(longEMA)-1]

	crossedUp := prevShort.LessThanOrEqual(prevLong) && curShort.GreaterThan(curLong)
	crossedDown := prevShort.GreaterThanOrEqual(prevLong) && curShort.LessThan(curLong)
	if crossedUp {
		return true, true
	}
	if crossedDown {
		return false, true
	}
	return false, false
}

// ClosesOf extracts the Close price series from candles in order,
// the shape CrossoverSignal and the rest of this package's indicator
// math consume.
func ClosesOf(candles []candle.Candle) []decimal.Decimal {
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
