package scheduler

import (
	"context"
	"time"

	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/eventbus"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
)

// forwardWindowPad is the extra margin of candles fetched beyond a
// signal's minuteEstimatedTime when resolving it via Backtest(candles),
// per spec.md §4.9 ("minuteEstimatedTime+4 forward candles").
const forwardWindowPad = 4

// Frame defines the domain of simulated timestamps a BacktestDriver walks,
// per spec.md §6's Frame schema. Candles must be ordered by strictly
// ascending Timestamp and spaced at Interval; the driver holds the full
// slice in memory and indexes into it directly, grounded on the teacher's
// internal/backtesting.HistoricalData array-walk rather than going through
// the look-ahead-clipped candle.Source contract the live path uses.
type Frame struct {
	Name    string
	Candles []candle.Candle
}

// BacktestDriver walks a Frame one simulated timestamp at a time, invoking
// Tick(); when a signal opens it immediately resolves it via Backtest with
// a forward slice, then fast-forwards the outer loop to the candle just
// after the resolution, per spec.md §4.9.
type BacktestDriver struct {
	eng   *engine.Engine
	frame Frame
	bus   *eventbus.Bus
	log   *logger.Logger
}

// NewBacktestDriver constructs a driver over frame for eng.
func NewBacktestDriver(eng *engine.Engine, frame Frame, bus *eventbus.Bus) *BacktestDriver {
	return &BacktestDriver{eng: eng, frame: frame, bus: bus, log: logger.Component("scheduler")}
}

// Run walks the frame to completion, emitting every Tick/Backtest result on
// the returned channel (closed on exhaustion) and a doneBacktest event on
// the bus.
func (d *BacktestDriver) Run(ctx context.Context) <-chan engine.Result {
	out := make(chan engine.Result)
	go d.walk(ctx, out)
	return out
}

func (d *BacktestDriver) walk(ctx context.Context, out chan<- engine.Result) {
	defer close(out)
	defer d.emitDone()

	candles := d.frame.Candles
	idx := 0
	for idx < len(candles) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ts := candles[idx].Timestamp
		res := d.tickAt(ctx, ts)
		if !d.send(ctx, out, res) {
			return
		}

		if res.Kind != engine.KindOpened {
			idx++
			continue
		}

		window := d.forwardWindow(idx, res)
		btRes := d.backtestAt(ctx, ts, window)
		if !d.send(ctx, out, btRes) {
			return
		}
		idx = d.nextIndex(idx, len(window), btRes.CloseTime)
	}
}

func (d *BacktestDriver) forwardWindow(idx int, res engine.Result) []candle.Candle {
	minuteEstimatedTime := 0
	if res.Signal != nil {
		minuteEstimatedTime = res.Signal.MinuteEstimatedTime
	}
	limit := minuteEstimatedTime + forwardWindowPad
	end := idx + limit
	if end > len(d.frame.Candles) {
		end = len(d.frame.Candles)
	}
	return d.frame.Candles[idx:end]
}

// nextIndex locates the candle matching btRes' close timestamp within the
// window just resolved and resumes just past it, per spec.md §4.9
// ("advances simulated time to closeTimestamp + 1·interval"). If the close
// timestamp cannot be found (end-of-data exhaustion) the loop resumes past
// the entire window.
func (d *BacktestDriver) nextIndex(windowStart, windowLen int, closeTime int64) int {
	end := windowStart + windowLen
	for i := windowStart; i < end; i++ {
		if d.frame.Candles[i].Timestamp.Unix() == closeTime {
			return i + 1
		}
	}
	return end
}

func (d *BacktestDriver) tickAt(ctx context.Context, when time.Time) engine.Result {
	var res engine.Result
	_ = execctx.Run(ctx, execctx.Sim(when), func(c context.Context) error {
		res = d.eng.Tick(c)
		return nil
	})
	return res
}

func (d *BacktestDriver) backtestAt(ctx context.Context, when time.Time, window []candle.Candle) engine.Result {
	var res engine.Result
	_ = execctx.Run(ctx, execctx.Sim(when), func(c context.Context) error {
		res = d.eng.Backtest(c, window)
		return nil
	})
	return res
}

func (d *BacktestDriver) send(ctx context.Context, out chan<- engine.Result, res engine.Result) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *BacktestDriver) emitDone() {
	if d.bus == nil {
		return
	}
	d.bus.Emit(eventbus.TopicDoneBacktest, nil)
}
