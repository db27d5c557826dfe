// Command backtest replays a CSV candle file through the engine's
// BacktestDriver and prints the resulting reportstore summary. Grounded
// on the teacher's cmd/backtest/main.go flag surface (data file, symbol,
// verbosity) and banner convention, retargeted from the teacher's
// EMA/RSI-crossover strategy + equity-curve reporter onto the signal
// lifecycle engine + reportstore.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/config"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/registry"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/reportstore"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/risk"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/scheduler"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/strategy"
)

var (
	dataFile      = flag.String("data", "", "Path to a CSV file of OHLCV candles (required)")
	symbol        = flag.String("symbol", "BTC-USD", "Trading symbol")
	strategyLabel = flag.String("strategy", "demo", "Strategy name this run is attributed to")
	maxPositions  = flag.Int("max-positions", 1, "Maximum concurrent active signals admitted by the default risk profile")
	takeProfit    = flag.Float64("take-profit", 2.0, "Take profit percent above entry the demo proposal requests")
	stopLoss      = flag.Float64("stop-loss", 1.0, "Stop loss percent below entry the demo proposal requests")
	verbose       = flag.Bool("verbose", false, "Log every non-idle signal transition as it streams")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	printBanner()

	if *dataFile == "" {
		return fmt.Errorf("the -data flag is required")
	}

	log.Printf("loading candles from %s...\n", *dataFile)
	candles, err := candle.LoadCSV(*dataFile)
	if err != nil {
		return fmt.Errorf("failed to load candles: %w", err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles loaded from %s", *dataFile)
	}
	log.Printf("loaded %d candles, %s to %s\n", len(candles),
		candles[0].Timestamp.Format(time.RFC3339), candles[len(candles)-1].Timestamp.Format(time.RFC3339))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	bus := eventbus.New()
	store := reportstore.New()
	unsubscribe := store.Subscribe(bus)
	defer unsubscribe()

	riskProfile := risk.New("backtest", risk.MaxActivePositions(*maxPositions))
	source := candle.NewMockSource(candles)

	ec := engine.DefaultConfig()
	ec.ScheduleAwaitMinutes = cfg.ScheduleAwaitMinutes
	ec.VWAPWindow = cfg.AvgPriceCandlesCount
	ec.BreakevenProgressPct = decimal.NewFromInt(int64(cfg.BreakevenProgressPct))
	ec.RiskName = riskProfile.Name()

	tpPct := decimal.NewFromFloat(*takeProfit).Div(decimal.NewFromInt(100))
	slPct := decimal.NewFromFloat(*stopLoss).Div(decimal.NewFromInt(100))
	getSignal := demoGetSignal(source, ec, tpPct, slPct)

	reg := registry.New(func(sym, strat string) *engine.Engine {
		eng := engine.New(sym, strat, ec, source, getSignal)
		eng.SetRiskProfile(riskProfile)
		eng.SetEventBus(bus)
		return eng
	})

	eng := reg.Get(*symbol, *strategyLabel)
	driver := scheduler.NewBacktestDriver(eng, scheduler.Frame{Name: *symbol, Candles: candles}, bus)

	ctx := context.Background()
	results := driver.Run(ctx)
	closedCount := 0
	for res := range results {
		if res.Kind == engine.KindIdle {
			continue
		}
		if *verbose {
			log.Printf("%s %s: %s\n", *symbol, *strategyLabel, res.Kind)
		}
		if res.Kind == engine.KindClosed {
			closedCount++
		}
	}

	log.Printf("backtest complete: %d closed signals\n\n", closedCount)
	key := reportstore.Key{Symbol: *symbol, StrategyName: *strategyLabel}
	fmt.Println(store.GetReport(key))
	return nil
}

// demoEMAShort/demoEMALong mirror the teacher's own former -short-ema/
// -long-ema flag defaults.
const (
	demoEMAShort = 9
	demoEMALong  = 21
)

// demoGetSignal proposes an immediate-entry long signal on a bullish
// short/long EMA crossover, the minimal GetSignalFunc a reader can swap
// for a real strategy callback without touching the wiring above:
// take-profit and stop-loss are offset from the trailing VWAP by the
// -take-profit/-stop-loss flags.
func demoGetSignal(source candle.Source, cfg engine.Config, tpPct, slPct decimal.Decimal) engine.GetSignalFunc {
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

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════╗
║              BACKTEST-KIT REPLAY ENGINE                ║
╚═══════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}
