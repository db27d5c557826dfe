package vwap

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
)

func c(h, l, cl, v float64) candle.Candle {
	return candle.Candle{
		Timestamp: time.Unix(0, 0),
		High:      decimal.NewFromFloat(h),
		Low:       decimal.NewFromFloat(l),
		Close:     decimal.NewFromFloat(cl),
		Volume:    decimal.NewFromFloat(v),
	}
}

func TestOf_Empty(t *testing.T) {
	assert.True(t, Of(nil).IsZero())
}

func TestOf_ZeroVolumeFallsBackToCloseMean(t *testing.T) {
	candles := []candle.Candle{c(10, 8, 9, 0), c(12, 10, 11, 0)}
	got := Of(candles)
	want := decimal.NewFromFloat(10) // mean of closes 9, 11
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}

func TestOf_VolumeWeighted(t *testing.T) {
	// Single candle: typical = (h+l+c)/3, VWAP of one candle equals its typical price.
	candles := []candle.Candle{c(12, 8, 10, 5)}
	got := Of(candles)
	want := decimal.NewFromFloat(10) // (12+8+10)/3 == 10
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}

func TestOf_WeightsByVolume(t *testing.T) {
	// Two candles with different typical prices and different volumes;
	// the heavier-volume candle dominates.
	a := c(12, 8, 10, 1)  // typical 10
	b := c(24, 16, 20, 9) // typical 20
	got := Of([]candle.Candle{a, b})
	// weighted = (10*1 + 20*9) / 10 = 190/10 = 19
	want := decimal.NewFromFloat(19)
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
}
