package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
)

func mkCandle(ts time.Time, h, l, c, v float64) candle.Candle {
	return candle.Candle{
		Timestamp: ts,
		Open:      decimal.NewFromFloat((h + l) / 2),
		High:      decimal.NewFromFloat(h),
		Low:       decimal.NewFromFloat(l),
		Close:     decimal.NewFromFloat(c),
		Volume:    decimal.NewFromFloat(v),
	}
}

func TestLiveDriver_TicksUntilStopped(t *testing.T) {
	calls := 0
	getSignal := func(ctx context.Context, symbol string) (*engine.Proposal, error) {
		calls++
		return nil, nil
	}
	cfg := engine.DefaultConfig()
	eng := engine.New("BTCUSDT", "s1", cfg, candle.NewMockSource(nil), getSignal)
	drv := NewLiveDriver(eng, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := drv.Run(ctx)

	received := 0
	for range out {
		received++
		if received >= 2 {
			cancel()
		}
	}
	assert.GreaterOrEqual(t, received, 2)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestLiveDriver_StopClosesChannel(t *testing.T) {
	eng := engine.New("BTCUSDT", "s1", engine.DefaultConfig(), candle.NewMockSource(nil), nil)
	drv := NewLiveDriver(eng, 5*time.Millisecond, nil)
	out := drv.Run(context.Background())

	<-out
	drv.Stop()

	_, stillOpen := <-out
	for stillOpen {
		_, stillOpen = <-out
	}
	assert.False(t, stillOpen)
}

func TestBacktestDriver_OpensAndResolvesWithinFrame(t *testing.T) {
	start := time.Unix(1_000_000, 0)
	candles := make([]candle.Candle, 0, 20)
	for i := 0; i < 20; i++ {
		candles = append(candles, mkCandle(start.Add(time.Duration(i)*time.Minute), 43100, 42900, 43000, 1))
	}

	opens := 0
	getSignal := func(ctx context.Context, symbol string) (*engine.Proposal, error) {
		opens++
		if opens > 1 {
			return nil, nil
		}
		return &engine.Proposal{
			Position:            signal.PositionLong,
			PriceTakeProfit:     decimal.NewFromInt(43500),
			PriceStopLoss:       decimal.NewFromInt(42500),
			MinuteEstimatedTime: 5,
		}, nil
	}
	cfg := engine.DefaultConfig()
	cfg.Interval = "1m"
	eng := engine.New("BTCUSDT", "s1", cfg, candle.NewMockSource(candles), getSignal)
	frame := Frame{Name: "test", Candles: candles}
	drv := NewBacktestDriver(eng, frame, nil)

	var results []engine.Result
	for res := range drv.Run(context.Background()) {
		results = append(results, res)
	}

	require.NotEmpty(t, results)
	sawOpened := false
	for _, r := range results {
		if r.Kind == engine.KindOpened {
			sawOpened = true
		}
	}
	assert.True(t, sawOpened, "expected at least one opened result over the frame")
}

func TestBacktestDriver_EmptyFrameProducesNoResults(t *testing.T) {
	eng := engine.New("BTCUSDT", "s1", engine.DefaultConfig(), candle.NewMockSource(nil), nil)
	drv := NewBacktestDriver(eng, Frame{Name: "empty"}, nil)

	var results []engine.Result
	for res := range drv.Run(context.Background()) {
		results = append(results, res)
	}
	assert.Empty(t, results)
}

func TestBacktestDriver_CancellationStopsWalkEarly(t *testing.T) {
	start := time.Unix(2_000_000, 0)
	candles := make([]candle.Candle, 0, 1000)
	for i := 0; i < 1000; i++ {
		candles = append(candles, mkCandle(start.Add(time.Duration(i)*time.Minute), 100, 99, 100, 1))
	}
	eng := engine.New("BTCUSDT", "s1", engine.DefaultConfig(), candle.NewMockSource(candles), nil)
	drv := NewBacktestDriver(eng, Frame{Name: "long", Candles: candles}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := drv.Run(ctx)

	count := 0
	for range out {
		count++
		if count == 3 {
			cancel()
		}
	}
	assert.Less(t, count, 1000)
}
