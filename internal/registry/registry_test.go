package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/candle"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/engine"
)

func mkFactory(calls *int) Factory {
	var mu sync.Mutex
	return func(symbol, strategyName string) *engine.Engine {
		mu.Lock()
		*calls++
		mu.Unlock()
		return engine.New(symbol, strategyName, engine.DefaultConfig(), candle.NewMockSource(nil), nil)
	}
}

func TestGet_ConstructsOnFirstAccessOnly(t *testing.T) {
	calls := 0
	r := New(mkFactory(&calls))

	e1 := r.Get("BTCUSDT", "momentum")
	e2 := r.Get("BTCUSDT", "momentum")

	assert.Same(t, e1, e2)
	assert.Equal(t, 1, calls)
}

func TestGet_DistinctKeysGetDistinctEngines(t *testing.T) {
	calls := 0
	r := New(mkFactory(&calls))

	btc := r.Get("BTCUSDT", "momentum")
	eth := r.Get("ETHUSDT", "momentum")
	btcOther := r.Get("BTCUSDT", "meanrev")

	assert.NotSame(t, btc, eth)
	assert.NotSame(t, btc, btcOther)
	assert.Equal(t, 3, calls)
}

func TestLookup_ReportsAbsenceWithoutConstructing(t *testing.T) {
	calls := 0
	r := New(mkFactory(&calls))

	_, ok := r.Lookup("BTCUSDT", "momentum")
	assert.False(t, ok)
	assert.Equal(t, 0, calls)

	r.Get("BTCUSDT", "momentum")
	e, ok := r.Lookup("BTCUSDT", "momentum")
	assert.True(t, ok)
	assert.NotNil(t, e)
}

func TestDelete_EvictsSoNextGetRebuilds(t *testing.T) {
	calls := 0
	r := New(mkFactory(&calls))

	first := r.Get("BTCUSDT", "momentum")
	r.Delete("BTCUSDT", "momentum")

	_, ok := r.Lookup("BTCUSDT", "momentum")
	assert.False(t, ok)

	second := r.Get("BTCUSDT", "momentum")
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, calls)
}

func TestAllAndKeys_EnumerateEveryMemoizedEngine(t *testing.T) {
	calls := 0
	r := New(mkFactory(&calls))

	r.Get("BTCUSDT", "momentum")
	r.Get("ETHUSDT", "meanrev")

	require.Len(t, r.All(), 2)
	keys := r.Keys()
	require.Len(t, keys, 2)

	seen := map[Key]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	assert.True(t, seen[Key{Symbol: "BTCUSDT", StrategyName: "momentum"}])
	assert.True(t, seen[Key{Symbol: "ETHUSDT", StrategyName: "meanrev"}])
}

func TestGet_ConcurrentFirstAccessConvergesOnOneEngine(t *testing.T) {
	calls := 0
	r := New(mkFactory(&calls))

	const n = 50
	results := make([]*engine.Engine, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = r.Get("BTCUSDT", "momentum")
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}
