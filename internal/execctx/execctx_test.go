package execctx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_MissingIsError(t *testing.T) {
	_, err := Current(context.Background())
	assert.ErrorIs(t, err, ErrContextMissing)
}

func TestRun_InstallsAndRestores(t *testing.T) {
	base := context.Background()
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var seen ExecutionContext
	err := Run(base, Sim(when), func(ctx context.Context) error {
		var err error
		seen, err = Current(ctx)
		return err
	})
	require.NoError(t, err)
	assert.True(t, seen.When.Equal(when))
	assert.True(t, seen.Backtest)

	// Outer context still has no ambient value.
	_, err = Current(base)
	assert.ErrorIs(t, err, ErrContextMissing)
}

func TestRun_NestedShadowing(t *testing.T) {
	outer := Live(time.Unix(1000, 0))
	inner := Sim(time.Unix(2000, 0))

	err := Run(context.Background(), outer, func(ctx context.Context) error {
		return Run(ctx, inner, func(ctx context.Context) error {
			ec := MustCurrent(ctx)
			assert.True(t, ec.When.Equal(inner.When))
			assert.True(t, ec.Backtest)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestMustCurrent_PanicsWithoutContext(t *testing.T) {
	assert.Panics(t, func() {
		MustCurrent(context.Background())
	})
}
