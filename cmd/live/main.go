// Command live runs the engine's live Scheduler: one LiveDriver per
// registered (symbol, strategyName) pair, ticking on a fixed wall-clock
// cadence against the ambient ExecutionContext. Grounded on the teacher's
// cmd/bot/main.go wiring order (godotenv.Load() before config.Load(),
// signal.Notify for graceful shutdown, a background telemetry server)
// retargeted from the order/risk/strategy stack onto registry+scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/circuitbreaker"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/config"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/persistence"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/ratelimit"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/registry"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/reportstore"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/risk"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/scheduler"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/strategy"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/telemetry"
)

// demoEMAShort/demoEMALong mirror cmd/backtest's own crossover periods, so
// a reader comparing live and backtest runs sees the same entry rule.
const (
	demoEMAShort = 9
	demoEMALong  = 21

	demoTakeProfitPct = "0.02"
	demoStopLossPct   = "0.01"
)

// pair is one (symbol, strategyName, candleSource, getSignal) tuple this
// process drives. A real deployment would build this list from its own
// strategy registration code; main wires a single demo strategy so the
// binary runs end to end out of the box.
type pair struct {
	symbol       string
	strategyName string
	source       candle.Source
	getSignal    engine.GetSignalFunc
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load failed", "err", err)
	}

	log := logger.New(&logger.Config{Level: logger.DefaultConfig().Level, Format: "json"})
	logger.SetDefault(log)

	telemetryServer := telemetry.NewServer(cfg.TelemetryAddr)
	if telemetryServer != nil {
		go func() {
			if err := telemetryServer.Start(); err != nil {
				log.Error("telemetry server stopped", "err", err)
			}
		}()
		telemetryServer.SetReady(true)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			telemetryServer.Shutdown(ctx)
		}()
	}

	bus := eventbus.New()
	store := reportstore.New()
	unsubscribe := store.Subscribe(bus)
	defer unsubscribe()

	persist := persistence.New(cfg.PersistenceDir)
	riskProfile := risk.New("default", risk.MaxActivePositions(3))
	limiter := ratelimit.NewTokenBucket(5, 10)

	pairs := demoPairs(cfg)

	reg := registry.New(func(symbol, strategyName string) *engine.Engine {
		for _, p := range pairs {
			if p.symbol == symbol && p.strategyName == strategyName {
				eng := engine.New(symbol, strategyName, engineConfig(cfg), p.source, p.getSignal)
				eng.SetRiskProfile(riskProfile)
				eng.SetPersistence(persist)
				eng.SetEventBus(bus)
				eng.SetCircuitBreaker(circuitbreaker.New(fmt.Sprintf("%s/%s", symbol, strategyName), circuitbreaker.DefaultConfig()))
				eng.SetRateLimiter(limiter)
				return eng
			}
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var drivers []*scheduler.LiveDriver
	for _, p := range pairs {
		eng := reg.Get(p.symbol, p.strategyName)
		if eng == nil {
			continue
		}
		if err := eng.Rehydrate(ctx); err != nil {
			log.Error("rehydrate failed", "symbol", p.symbol, "strategy", p.strategyName, "err", err)
		}
		driver := scheduler.NewLiveDriver(eng, time.Minute, bus)
		drivers = append(drivers, driver)
		results := driver.Run(ctx)
		go drainResults(log, p.symbol, p.strategyName, results)
	}

	log.Info("live scheduler started", "pairs", len(drivers), "telemetry_addr", cfg.TelemetryAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping drivers")
	for _, d := range drivers {
		d.Stop()
	}
	cancel()

	for _, key := range reg.Keys() {
		log.Info("final report", "symbol", key.Symbol, "strategy", key.StrategyName, "summary", store.GetSummary(reportstore.Key{Symbol: key.Symbol, StrategyName: key.StrategyName}))
	}
}

func drainResults(log *logger.Logger, symbol, strategyName string, results <-chan engine.Result) {
	for res := range results {
		if res.Kind == engine.KindIdle {
			continue
		}
		log.Signal(map[string]any{
			"symbol":   symbol,
			"strategy": strategyName,
			"kind":     string(res.Kind),
		})
	}
}

func engineConfig(cfg *config.AppConfig) engine.Config {
	ec := engine.DefaultConfig()
	ec.ScheduleAwaitMinutes = cfg.ScheduleAwaitMinutes
	ec.VWAPWindow = cfg.AvgPriceCandlesCount
	ec.BreakevenProgressPct = decimal.NewFromInt(int64(cfg.BreakevenProgressPct))
	ec.RiskName = "default"
	return ec
}

// demoPairs wires a single BTCUSDT/momentum-demo strategy against an
// empty candle.MockSource, standing in for a real exchange candle.Source
// until one is configured. getSignal proposes a long entry on a bullish
// short/long EMA crossover, the same rule cmd/backtest uses, so the
// process runs its Scheduler loop and occasionally opens a position once
// a real candle.Source replaces the empty MockSource.
func demoPairs(cfg *config.AppConfig) []pair {
	source := candle.NewMockSource(nil)
	return []pair{
		{
			symbol:       "BTCUSDT",
			strategyName: "momentum-demo",
			source:       source,
			getSignal:    demoGetSignal(source, engineConfig(cfg)),
		},
	}
}

// demoGetSignal mirrors cmd/backtest's own crossover rule: it proposes a
// long entry only on a detected bullish short/long EMA crossover,
// otherwise it abstains (nil, nil).
func demoGetSignal(source candle.Source, cfg engine.Config) engine.GetSignalFunc {
	tpPct := decimal.RequireFromString(demoTakeProfitPct)
	slPct := decimal.RequireFromString(demoStopLossPct)

	return func(ctx context.Context, sym string) (*engine.Proposal, error) {
		candles, err := candle.Window(ctx, source, sym, cfg.Interval, demoEMALong+5, false)
		if err != nil || len(candles) == 0 {
			return nil, nil
		}
		bullish, ok := strategy.CrossoverSignal(strategy.ClosesOf(candles), demoEMAShort, demoEMALong)
		if !ok || !bullish {
			return nil, nil
		}

		last := candles[len(candles)-1].Close
		return &engine.Proposal{
			Position:            signal.PositionLong,
			PriceTakeProfit:     last.Mul(decimal.NewFromInt(1).Add(tpPct)),
			PriceStopLoss:       last.Mul(decimal.NewFromInt(1).Sub(slPct)),
			MinuteEstimatedTime: 60,
			Note:                "EMA crossover entry",
		}, nil
	}
}
