package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
)

func testSignal() *signal.Signal {
	s := signal.New("BTCUSDT", "s1", "e1", signal.PositionLong,
		decimal.NewFromInt(42000), decimal.NewFromInt(43000), decimal.NewFromInt(41000),
		60, time.Unix(1700000000, 0).UTC(), "note")
	s.AppendPartial(signal.PartialProfit, 50, decimal.NewFromInt(42500))
	return s
}

func TestWriteRead_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	want := testSignal()

	require.NoError(t, a.Write(want, "BTCUSDT", "s1"))

	got, err := a.Read("BTCUSDT", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.PriceOpen.Equal(got.PriceOpen))
	assert.True(t, want.PriceTakeProfit.Equal(got.PriceTakeProfit))
	assert.True(t, want.PriceStopLoss.Equal(got.PriceStopLoss))
	assert.Equal(t, want.Timestamp.Unix(), got.Timestamp.Unix())
	require.Len(t, got.Partials, 1)
	assert.Equal(t, signal.PartialProfit, got.Partials[0].Type)
	assert.True(t, decimal.NewFromInt(42500).Equal(got.Partials[0].Price))
}

func TestRead_AbsentReturnsNilNil(t *testing.T) {
	a := New(t.TempDir())
	got, err := a.Read("BTCUSDT", "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestWrite_NilRemovesFile(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.Write(testSignal(), "BTCUSDT", "s1"))

	require.NoError(t, a.Write(nil, "BTCUSDT", "s1"))

	got, err := a.Read("BTCUSDT", "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWrite_NilOnAbsentFileIsNotAnError(t *testing.T) {
	a := New(t.TempDir())
	assert.NoError(t, a.Write(nil, "BTCUSDT", "s1"))
}

func TestWrite_NeverLeavesTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.Write(testSignal(), "BTCUSDT", "s1"))

	_, err := os.Stat(filepath.Join(dir, "BTCUSDT_s1.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRead_DistinctPairsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	require.NoError(t, a.Write(testSignal(), "BTCUSDT", "s1"))
	require.NoError(t, a.Write(testSignal(), "BTCUSDT", "s2"))

	got, err := a.Read("BTCUSDT", "s2")
	require.NoError(t, err)
	require.NotNil(t, got)

	absent, err := a.Read("ETHUSDT", "s1")
	require.NoError(t, err)
	assert.Nil(t, absent)
}
