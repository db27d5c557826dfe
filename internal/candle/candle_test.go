package candle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
)

func mkCandle(ts int64, close float64) Candle {
	return Candle{
		Timestamp: time.Unix(ts, 0).UTC(),
		Open:      decimal.NewFromFloat(close),
		High:      decimal.NewFromFloat(close),
		Low:       decimal.NewFromFloat(close),
		Close:     decimal.NewFromFloat(close),
		Volume:    decimal.NewFromFloat(1),
	}
}

func TestWindow_ClipsFutureCandles(t *testing.T) {
	src := NewMockSource([]Candle{
		mkCandle(100, 1), mkCandle(200, 2), mkCandle(300, 3), mkCandle(400, 4), mkCandle(500, 5),
	})

	ctx := context.Background()
	ec := execctx.Sim(time.Unix(300, 0).UTC())

	var got []Candle
	var fetchErr error
	err := execctx.Run(ctx, ec, func(ctx context.Context) error {
		got, fetchErr = Window(ctx, src, "BTCUSDT", "1m", 5, false)
		return fetchErr
	})
	require.NoError(t, err)
	for _, c := range got {
		assert.False(t, c.Timestamp.After(ec.When))
	}
}

func TestWindow_RequireFullFailsShort(t *testing.T) {
	src := NewMockSource([]Candle{mkCandle(100, 1), mkCandle(200, 2)})
	ctx := execctx.Run
	_ = ctx

	var err error
	runErr := execctx.Run(context.Background(), execctx.Sim(time.Unix(200, 0)), func(c context.Context) error {
		_, err = Window(c, src, "BTCUSDT", "1m", 5, true)
		return nil
	})
	require.NoError(t, runErr)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWindow_MissingContext(t *testing.T) {
	src := NewMockSource([]Candle{mkCandle(100, 1)})
	_, err := Window(context.Background(), src, "BTCUSDT", "1m", 1, false)
	assert.ErrorIs(t, err, execctx.ErrContextMissing)
}
