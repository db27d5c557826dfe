// Package candle defines the OHLCV type and the CandleSource contract the
// engine fetches through. Every fetch is clipped to the ambient
// ExecutionContext so a strategy can never see a candle from the future.
package candle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
)

// ErrNoData is returned when an adapter cannot supply the requested number
// of candles and the caller demands an exact count.
var ErrNoData = errors.New("candle: insufficient data")

// Candle is an immutable OHLCV bar. Ordered by Timestamp strictly ascending
// within any slice returned by a Source.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Source is the user-supplied adapter contract. Implementations fetch
// candles for (symbol, interval) ending at or before the ambient
// ExecutionContext's When, never at the real wall clock. since is derived
// internally from (ctx.When, interval, limit) — callers of Fetch never
// pass it directly.
type Source interface {
	Fetch(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// Window fetches up to limit candles ending at ctx's ExecutionContext.When
// and fails with ErrNoData if requireFull is set and fewer than limit were
// returned. If fewer than 5 candles come back and the caller is about to
// feed a VWAP computation, a warning (not an error) is logged.
func Window(ctx context.Context, src Source, symbol, interval string, limit int, requireFull bool) ([]Candle, error) {
	ec, err := execctx.Current(ctx)
	if err != nil {
		return nil, err
	}

	candles, err := src.Fetch(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	// Defensive clip: an adapter must never hand back a candle later than
	// ctx.When. The core does not trust adapters blindly.
	clipped := candles[:0:0]
	for _, c := range candles {
		if !c.Timestamp.After(ec.When) {
			clipped = append(clipped, c)
		}
	}

	if requireFull && len(clipped) < limit {
		return clipped, ErrNoData
	}
	if len(clipped) < 5 {
		logger.Component("candle").Warn("short candle window fed to consumer",
			"symbol", symbol, "interval", interval, "got", len(clipped), "want", limit)
	}
	return clipped, nil
}
