package candle

import (
	"context"
	"sync"

	"github.com/tripolskypetr/backtest-kit-sub014/internal/execctx"
)

// MockSource is a test double implementing Source over an in-memory slice,
// grounded on the teacher's fields-struct test-exchange convention. All
// candles in Data are returned regardless of symbol/interval; FetchErr, if
// set, is returned instead.
type MockSource struct {
	mu       sync.Mutex
	Data     []Candle
	FetchErr error
	Calls    int
}

// NewMockSource seeds a MockSource with data ordered by ascending Timestamp.
func NewMockSource(data []Candle) *MockSource {
	return &MockSource{Data: data}
}

// Fetch returns the trailing limit candles from Data, ignoring symbol and
// interval (tests seed exactly the data they want returned). When ctx
// carries an ExecutionContext, Data is first narrowed to candles at or
// before ec.When, so a double seeded with an entire dataset behaves like a
// real feed when walked across many simulated instants (a scheduler
// driving many Tick/Backtest calls over one Frame, for instance) instead
// of always handing back the tail of the whole dataset.
func (m *MockSource) Fetch(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	data := m.Data
	if ec, err := execctx.Current(ctx); err == nil {
		cut := len(data)
		for cut > 0 && data[cut-1].Timestamp.After(ec.When) {
			cut--
		}
		data = data[:cut]
	}

	if limit <= 0 || limit > len(data) {
		limit = len(data)
	}
	start := len(data) - limit
	out := make([]Candle, limit)
	copy(out, data[start:])
	return out, nil
}
