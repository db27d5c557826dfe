package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWithNoEnvironmentSet(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":9100", cfg.TelemetryAddr)
	assert.Equal(t, "./dump", cfg.PersistenceDir)
	assert.Equal(t, 120, cfg.ScheduleAwaitMinutes)
	assert.Equal(t, 5, cfg.AvgPriceCandlesCount)
	assert.Equal(t, 30*24*60, cfg.MaxMinuteEstimatedTime)
	assert.Equal(t, 30, cfg.BreakevenProgressPct)
	assert.True(t, cfg.PercentSlippage.GreaterThan(decimal.Zero))
	assert.True(t, cfg.PercentFee.GreaterThan(decimal.Zero))
}

func TestLoad_HonorsOverriddenEnvironmentVariables(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CC_SCHEDULE_AWAIT_MINUTES", "45")
	t.Setenv("CC_AVG_PRICE_CANDLES_COUNT", "10")
	t.Setenv("CC_BREAKEVEN_PROGRESS_PCT", "20")
	t.Setenv("CC_PERSISTENCE_DIR", "/tmp/dump")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 45, cfg.ScheduleAwaitMinutes)
	assert.Equal(t, 10, cfg.AvgPriceCandlesCount)
	assert.Equal(t, 20, cfg.BreakevenProgressPct)
	assert.Equal(t, "/tmp/dump", cfg.PersistenceDir)
}

func TestLoad_FallsBackToDefaultOnUnparsableInt(t *testing.T) {
	t.Setenv("CC_SCHEDULE_AWAIT_MINUTES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.ScheduleAwaitMinutes)
}

func TestScheduleAwaitDuration_ConvertsMinutesToDuration(t *testing.T) {
	t.Setenv("CC_SCHEDULE_AWAIT_MINUTES", "45")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, cfg.ScheduleAwaitDuration())
}
