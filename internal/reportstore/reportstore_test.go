package reportstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
)

func closedResult(symbol, strategy string, pnlPercent float64, closeTime int64) engine.Result {
	return engine.Result{
		Kind:         engine.KindClosed,
		Symbol:       symbol,
		StrategyName: strategy,
		CloseReason:  engine.ReasonTakeProfit,
		PnLPercent:   decimal.NewFromFloat(pnlPercent),
		CloseTime:    closeTime,
	}
}

func cancelledResult(symbol, strategy string, closeTime int64) engine.Result {
	return engine.Result{
		Kind:         engine.KindCancelled,
		Symbol:       symbol,
		StrategyName: strategy,
		CloseReason:  engine.ReasonCancelled,
		CloseTime:    closeTime,
	}
}

func TestRecord_IgnoresNonTerminalResults(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	s.Record(engine.Result{Kind: engine.KindIdle, Symbol: key.Symbol, StrategyName: key.StrategyName})
	s.Record(engine.Result{Kind: engine.KindOpened, Symbol: key.Symbol, StrategyName: key.StrategyName})
	s.Record(engine.Result{Kind: engine.KindActive, Symbol: key.Symbol, StrategyName: key.StrategyName})

	assert.Empty(t, s.GetData(key))
}

func TestRecord_RecordsClosedAndCancelled(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	s.Record(closedResult(key.Symbol, key.StrategyName, 5.0, 100))
	s.Record(cancelledResult(key.Symbol, key.StrategyName, 200))

	data := s.GetData(key)
	require.Len(t, data, 2)
	// newest at front.
	assert.Equal(t, engine.KindCancelled, data[0].Kind)
	assert.Equal(t, engine.KindClosed, data[1].Kind)
}

func TestRecord_BoundsAtCapacityDroppingOldest(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	for i := 0; i < Capacity+10; i++ {
		s.Record(closedResult(key.Symbol, key.StrategyName, float64(i), int64(i)))
	}

	data := s.GetData(key)
	require.Len(t, data, Capacity)
	// newest entry (i=Capacity+9) is at the front; oldest 10 were dropped.
	assert.Equal(t, int64(Capacity+9), data[0].CloseTime)
	assert.Equal(t, int64(10), data[len(data)-1].CloseTime)
}

func TestGetStats_EmptyStoreReturnsAllNil(t *testing.T) {
	s := New()
	stats := s.GetStats(Key{Symbol: "BTCUSDT", StrategyName: "s1"})

	assert.Equal(t, 0, stats.TotalTrades)
	assert.Nil(t, stats.WinRatePct)
	assert.Nil(t, stats.AveragePnLPercent)
	assert.Nil(t, stats.SharpeRatio)
	assert.Nil(t, stats.CertaintyRatio)
	assert.Nil(t, stats.ExpectedYearlyReturn)
}

func TestGetStats_OnlyCancellationsYieldNilStatistics(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}
	s.Record(cancelledResult(key.Symbol, key.StrategyName, 100))
	s.Record(cancelledResult(key.Symbol, key.StrategyName, 200))

	stats := s.GetStats(key)
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 2, stats.CancelledTrades)
	assert.Equal(t, 0, stats.ClosedTrades)
	assert.Nil(t, stats.WinRatePct)
	assert.Nil(t, stats.AveragePnLPercent)
}

func TestGetStats_WinRateAndAverageOverClosedTrades(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	// Two wins, one loss.
	s.Record(closedResult(key.Symbol, key.StrategyName, 10, 100))
	s.Record(closedResult(key.Symbol, key.StrategyName, 6, 200))
	s.Record(closedResult(key.Symbol, key.StrategyName, -4, 300))

	stats := s.GetStats(key)
	require.NotNil(t, stats.WinRatePct)
	require.NotNil(t, stats.AveragePnLPercent)
	require.NotNil(t, stats.TotalPnLPercent)

	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)

	winRate, _ := stats.WinRatePct.Float64()
	assert.InDelta(t, 200.0/3.0, winRate, 0.01)

	avg, _ := stats.AveragePnLPercent.Float64()
	assert.InDelta(t, 4.0, avg, 0.01) // (10+6-4)/3

	total, _ := stats.TotalPnLPercent.Float64()
	assert.InDelta(t, 12.0, total, 0.01)
}

func TestGetStats_StandardDeviationAndSharpeNilWhenVarianceIsZero(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	// Every trade returns exactly the same PnL: zero variance.
	s.Record(closedResult(key.Symbol, key.StrategyName, 5, 100))
	s.Record(closedResult(key.Symbol, key.StrategyName, 5, 200))

	stats := s.GetStats(key)
	assert.Nil(t, stats.StandardDeviation)
	assert.Nil(t, stats.SharpeRatio)
}

func TestGetStats_SharpeRatioPositiveWhenAverageOutpacesVolatility(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	s.Record(closedResult(key.Symbol, key.StrategyName, 10, 100))
	s.Record(closedResult(key.Symbol, key.StrategyName, 12, 200))
	s.Record(closedResult(key.Symbol, key.StrategyName, 8, 300))

	stats := s.GetStats(key)
	require.NotNil(t, stats.StandardDeviation)
	require.NotNil(t, stats.SharpeRatio)
	assert.True(t, stats.SharpeRatio.GreaterThan(decimal.Zero))
}

func TestGetStats_CertaintyRatioNilWithNoLosses(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	s.Record(closedResult(key.Symbol, key.StrategyName, 5, 100))
	s.Record(closedResult(key.Symbol, key.StrategyName, 7, 200))

	stats := s.GetStats(key)
	assert.Nil(t, stats.CertaintyRatio)
}

func TestGetStats_ExpectedYearlyReturnNilWithFewerThanTwoTrades(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}
	s.Record(closedResult(key.Symbol, key.StrategyName, 5, 100))

	stats := s.GetStats(key)
	assert.Nil(t, stats.ExpectedYearlyReturn)
}

func TestGetStats_ExpectedYearlyReturnNilWhenSpanCollapses(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	// Same CloseTime for both trades: zero elapsed span.
	s.Record(closedResult(key.Symbol, key.StrategyName, 5, 100))
	s.Record(closedResult(key.Symbol, key.StrategyName, 3, 100))

	stats := s.GetStats(key)
	assert.Nil(t, stats.ExpectedYearlyReturn)
}

func TestGetStats_ExpectedYearlyReturnComputedOverObservedSpan(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	// Three trades spaced a day apart, +1% average each.
	const day = int64(24 * 3600)
	s.Record(closedResult(key.Symbol, key.StrategyName, 1, day))
	s.Record(closedResult(key.Symbol, key.StrategyName, 1, 2*day))
	s.Record(closedResult(key.Symbol, key.StrategyName, 1, 3*day))

	stats := s.GetStats(key)
	require.NotNil(t, stats.ExpectedYearlyReturn)
	// 2 trades per 2 days observed span -> 1 trade/day -> ~365 trades/year * 1% avg.
	yearly, _ := stats.ExpectedYearlyReturn.Float64()
	assert.InDelta(t, 365.25, yearly, 1.0)
}

func TestGetReport_RendersAllSectionsAndNilSentinels(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}
	s.Record(cancelledResult(key.Symbol, key.StrategyName, 100))

	report := s.GetReport(key)
	assert.Contains(t, report, "BTCUSDT / s1")
	assert.Contains(t, report, "Cancelled:")
	assert.Contains(t, report, "∅") // win rate undefined with zero closed trades
}

func TestGetSummary_RendersNilSentinelAsSymbol(t *testing.T) {
	s := New()
	key := Key{Symbol: "BTCUSDT", StrategyName: "s1"}

	summary := s.GetSummary(key)
	assert.Contains(t, summary, "∅")
}

func TestSubscribe_RecordsTerminalResultsEmittedOnBus(t *testing.T) {
	bus := eventbus.New()
	s := New()
	s.Subscribe(bus)

	key := Key{Symbol: "ETHUSDT", StrategyName: "s2"}
	bus.Emit(eventbus.TopicSignal, closedResult(key.Symbol, key.StrategyName, 3, 100))

	require.Eventually(t, func() bool {
		return len(s.GetData(key)) == 1
	}, time.Second, 5*time.Millisecond)
}
