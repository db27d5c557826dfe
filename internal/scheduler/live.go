// Package scheduler implements the Scheduler/Runner (C9): the live ticker
// driver and the backtest timeframe driver that advance exactly one
// (symbol, strategyName) Engine at a time. Grounded on the teacher's
// internal/order/manager.go monitor() ticker loop (live) and
// internal/backtesting/engine.go's Run() index-walk (backtest), rewritten
// around the explicit ExecutionContext time-travel the engine requires
// instead of either teacher loop's implicit wall-clock/index notion of now.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
)

// LiveDriver ticks one Engine at a fixed wall-clock cadence. At most one
// Tick is ever in flight: the driver is a single goroutine reading its own
// ticker, so the single-flight guarantee falls out of the loop shape
// itself rather than needing a separate token.
type LiveDriver struct {
	eng      *engine.Engine
	interval time.Duration
	bus      *eventbus.Bus
	log      *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewLiveDriver constructs a driver that calls eng.Tick every interval.
func NewLiveDriver(eng *engine.Engine, interval time.Duration, bus *eventbus.Bus) *LiveDriver {
	return &LiveDriver{
		eng:      eng,
		interval: interval,
		bus:      bus,
		log:      logger.Component("scheduler"),
		stop:     make(chan struct{}),
	}
}

// Run starts the ticker loop and returns a channel of every Tick result,
// closed once the driver stops (by ctx cancellation or Stop()). The final
// send is always followed by a doneLive bus event.
func (d *LiveDriver) Run(ctx context.Context) <-chan engine.Result {
	out := make(chan engine.Result)
	go d.loop(ctx, out)
	return out
}

// Background runs the driver without a result channel, relying entirely on
// the EventBus for observation; returns a cancel handle per spec.md §4.9's
// stop() contract.
func (d *LiveDriver) Background(ctx context.Context) (cancel func()) {
	runCtx, cancelFn := context.WithCancel(ctx)
	out := d.Run(runCtx)
	go func() {
		for range out {
			// Drained silently; subscribers observe via the bus.
		}
	}()
	return func() {
		cancelFn()
		d.Stop()
	}
}

// Stop signals the driver to exit at its next safe point, between ticks.
func (d *LiveDriver) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

func (d *LiveDriver) loop(ctx context.Context, out chan<- engine.Result) {
	defer close(out)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.emitDone()
			return
		case <-d.stop:
			d.emitDone()
			return
		case now := <-ticker.C:
			res := d.tickAt(ctx, now)
			select {
			case out <- res:
			case <-ctx.Done():
				d.emitDone()
				return
			case <-d.stop:
				d.emitDone()
				return
			}
		}
	}
}

func (d *LiveDriver) tickAt(ctx context.Context, when time.Time) engine.Result {
	var res engine.Result
	err := execctx.Run(ctx, execctx.Live(when), func(c context.Context) error {
		res = d.eng.Tick(c)
		return nil
	})
	if err != nil {
		d.log.Error("live tick failed", "err", err)
	}
	return res
}

func (d *LiveDriver) emitDone() {
	if d.bus == nil {
		return
	}
	d.bus.Emit(eventbus.TopicDoneLive, nil)
}
