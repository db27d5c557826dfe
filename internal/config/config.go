// Package config loads the flat environment mapping the runtime needs,
// grounded on the teacher's own internal/config.Load (the getEnv/
// getEnvBool/getEnvInt/getEnvDecimal helper family and the .env-via-
// godotenv convention), retargeted from per-exchange API credentials
// onto the engine's own CC_* knobs.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// AppConfig aggregates every environment-tunable knob the engine,
// scheduler, persistence layer, and telemetry server read at startup.
type AppConfig struct {
	Environment    string
	TelemetryAddr  string
	PersistenceDir string

	PercentSlippage        decimal.Decimal
	PercentFee             decimal.Decimal
	ScheduleAwaitMinutes   int
	AvgPriceCandlesCount   int
	MaxMinuteEstimatedTime int
	BreakevenProgressPct   int
}

// Load reads the process environment, applying the defaults spec.md §6
// names. Callers load .env before calling Load, the way the teacher's
// cmd/bot/main.go calls godotenv.Load() ahead of config.Load() rather
// than baking dotenv parsing into the config package itself.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Environment:    getEnv("APP_ENV", "development"),
		TelemetryAddr:  getEnv("TELEMETRY_ADDR", ":9100"),
		PersistenceDir: getEnv("CC_PERSISTENCE_DIR", "./dump"),

		PercentSlippage:        getEnvDecimal("CC_PERCENT_SLIPPAGE", decimal.NewFromFloat(0.05)),
		PercentFee:             getEnvDecimal("CC_PERCENT_FEE", decimal.NewFromFloat(0.1)),
		ScheduleAwaitMinutes:   getEnvInt("CC_SCHEDULE_AWAIT_MINUTES", 120),
		AvgPriceCandlesCount:   getEnvInt("CC_AVG_PRICE_CANDLES_COUNT", 5),
		MaxMinuteEstimatedTime: getEnvInt("CC_MAX_MINUTE_ESTIMATED_TIME", 30*24*60),
		BreakevenProgressPct:   getEnvInt("CC_BREAKEVEN_PROGRESS_PCT", 30),
	}

	return cfg, nil
}

// ScheduleAwaitDuration is ScheduleAwaitMinutes expressed as a
// time.Duration, the shape the scheduler/engine actually consume.
func (c *AppConfig) ScheduleAwaitDuration() time.Duration {
	return time.Duration(c.ScheduleAwaitMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := decimal.NewFromString(value); err == nil {
		return parsed
	}
	return defaultValue
}
