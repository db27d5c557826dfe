package risk

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSignal_NoPredicatesAlwaysAdmits(t *testing.T) {
	p := New("default")
	err := p.CheckSignal("BTCUSDT", "s1", decimal.NewFromInt(42000))
	assert.NoError(t, err)
}

func TestCheckSignal_RejectsAtMaxActive(t *testing.T) {
	p := New("conservative", MaxActivePositions(2))
	p.AddSignal("s1")
	p.AddSignal("s1")

	err := p.CheckSignal("BTCUSDT", "s1", decimal.NewFromInt(42000))
	require.Error(t, err)
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 2, rej.ActivePositions)
}

func TestCheckSignal_PerStrategyCountsAreIndependent(t *testing.T) {
	p := New("shared", MaxActivePositions(1))
	p.AddSignal("strategyA")

	assert.Error(t, p.CheckSignal("BTCUSDT", "strategyA", decimal.NewFromInt(1)))
	assert.NoError(t, p.CheckSignal("ETHUSDT", "strategyB", decimal.NewFromInt(1)))
}

func TestRemoveSignal_DecrementsAndUnblocks(t *testing.T) {
	p := New("r", MaxActivePositions(1))
	p.AddSignal("s1")
	require.Error(t, p.CheckSignal("BTCUSDT", "s1", decimal.Zero))

	p.RemoveSignal("s1")
	assert.NoError(t, p.CheckSignal("BTCUSDT", "s1", decimal.Zero))
}

func TestRemoveSignal_NeverGoesNegative(t *testing.T) {
	p := New("r")
	p.RemoveSignal("s1")
	assert.Equal(t, 0, p.ActiveCount("s1"))
}

func TestClear_SingleStrategy(t *testing.T) {
	p := New("r", MaxActivePositions(1))
	p.AddSignal("s1")
	p.AddSignal("s2")

	p.Clear("s1")
	assert.Equal(t, 0, p.ActiveCount("s1"))
	assert.Equal(t, 1, p.ActiveCount("s2"))
}

func TestClear_AllStrategies(t *testing.T) {
	p := New("r")
	p.AddSignal("s1")
	p.AddSignal("s2")

	p.Clear("")
	assert.Equal(t, 0, p.ActiveCount("s1"))
	assert.Equal(t, 0, p.ActiveCount("s2"))
}

func TestName_ReturnsRiskName(t *testing.T) {
	p := New("aggressive")
	assert.Equal(t, "aggressive", p.Name())
}

func TestProfile_ConcurrentMutationIsSerialized(t *testing.T) {
	p := New("r")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.AddSignal("s1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, p.ActiveCount("s1"))
}
