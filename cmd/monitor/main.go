// Command monitor runs a small demo registry of engines alongside a
// bubbletea dashboard observing them over the EventBus, grounded on the
// teacher's former cmd/bot wiring of its TUI (aggregator/order-manager/
// risk-manager construction followed by tea.NewProgram(model).Run()),
// retargeted onto this repo's own registry/scheduler/reportstore stack.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/config"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/registry"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/reportstore"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/risk"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/scheduler"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/tui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file loaded:", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	bus := eventbus.New()
	store := reportstore.New()
	unsubscribe := store.Subscribe(bus)
	defer unsubscribe()

	riskProfile := risk.New("default", risk.MaxActivePositions(3))
	source := candle.NewMockSource(nil)

	ec := engine.DefaultConfig()
	ec.ScheduleAwaitMinutes = cfg.ScheduleAwaitMinutes
	ec.VWAPWindow = cfg.AvgPriceCandlesCount

	reg := registry.New(func(symbol, strategyName string) *engine.Engine {
		eng := engine.New(symbol, strategyName, ec, source, abstainGetSignal)
		eng.SetRiskProfile(riskProfile)
		eng.SetEventBus(bus)
		return eng
	})

	pairs := [][2]string{{"BTCUSDT", "momentum-demo"}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, p := range pairs {
		eng := reg.Get(p[0], p[1])
		driver := scheduler.NewLiveDriver(eng, time.Minute, bus)
		results := driver.Run(ctx)
		go func() {
			for range results {
				// consumed only to keep the driver's channel unblocked;
				// the TUI observes state through the EventBus instead.
			}
		}()
	}

	model := tui.NewModel(reg, store, true)
	program := tea.NewProgram(model, tea.WithAltScreen())

	unsubscribeSignal := bus.On(eventbus.TopicSignal, func(evt eventbus.Event) {
		res, ok := evt.Payload.(engine.Result)
		if !ok {
			return
		}
		program.Send(tui.SignalCmd(res.Symbol, res.StrategyName, res))
	})
	defer unsubscribeSignal()

	unsubscribeError := bus.On(eventbus.TopicError, func(evt eventbus.Event) {
		if err, ok := evt.Payload.(error); ok {
			program.Send(tui.ErrorCmd(err))
		}
	})
	defer unsubscribeError()

	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "monitor exited with error:", err)
		os.Exit(1)
	}
}

func abstainGetSignal(ctx context.Context, symbol string) (*engine.Proposal, error) {
	return nil, nil
}
