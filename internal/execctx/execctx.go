// Package execctx carries the ambient execution context that the signal
// engine reads for "now" instead of the wall clock. Every time-sensitive
// call threads it explicitly so look-ahead bias is architecturally
// impossible rather than merely discouraged.
package execctx

import (
	"context"
	"errors"
	"time"
)

// ErrContextMissing is returned when a time-sensitive call is made without
// an ExecutionContext installed on the context.Context chain. It is a
// programming error, not a business condition, and callers should treat it
// as fatal to the offending call.
var ErrContextMissing = errors.New("execctx: no ExecutionContext on context")

// ExecutionContext is the ambient {when, backtest} record. All candle
// fetches, averages, and "current time" reads resolve When rather than
// time.Now() so simulated and live ticks share identical code paths.
type ExecutionContext struct {
	When     time.Time
	Backtest bool
}

type ctxKey struct{}

// Run installs ec on ctx, invokes fn, and guarantees removal on every exit
// path. Nested Run calls simply shadow the outer ExecutionContext for the
// duration of fn; the outer value is restored when fn returns.
func Run(ctx context.Context, ec ExecutionContext, fn func(context.Context) error) error {
	return fn(context.WithValue(ctx, ctxKey{}, ec))
}

// Current returns the ambient ExecutionContext or ErrContextMissing if none
// is installed.
func Current(ctx context.Context) (ExecutionContext, error) {
	ec, ok := ctx.Value(ctxKey{}).(ExecutionContext)
	if !ok {
		return ExecutionContext{}, ErrContextMissing
	}
	return ec, nil
}

// MustCurrent panics if no ExecutionContext is installed. Use only at
// entry points that are themselves programming errors to call without one
// (e.g. deep inside a component that the engine always wraps).
func MustCurrent(ctx context.Context) ExecutionContext {
	ec, err := Current(ctx)
	if err != nil {
		panic(err)
	}
	return ec
}

// Live builds an ExecutionContext pinned to the wall clock.
func Live(when time.Time) ExecutionContext {
	return ExecutionContext{When: when, Backtest: false}
}

// Sim builds an ExecutionContext for a simulated backtest instant.
func Sim(when time.Time) ExecutionContext {
	return ExecutionContext{When: when, Backtest: true}
}
