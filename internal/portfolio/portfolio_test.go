package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosim/internal/market"
)

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func TestBuyFillVWAPEntry(t *testing.T) {
	tr := NewTracker(1_000_000)
	tr.ApplyBuyFill(0, 100, 10_000, day)
	tr.ApplyBuyFill(0, 100, 12_000, day.AddDate(0, 0, 1))

	pos, ok := tr.Position(0)
	require.True(t, ok)
	assert.Equal(t, 200.0, pos.Quantity)
	assert.InDelta(t, 11_000.0, pos.EntryPrice, 1e-9)
	assert.Equal(t, day, pos.EntryDate) // 加仓不改建仓日
}

func TestSellFillPartialAndFull(t *testing.T) {
	tr := NewTracker(0)
	tr.ApplyBuyFill(0, 200, 10_000, day)

	_, closed := tr.ApplySellFill(0, 50)
	assert.False(t, closed)
	pos, _ := tr.Position(0)
	assert.Equal(t, 150.0, pos.Quantity)
	assert.Equal(t, 10_000.0, pos.EntryPrice) // 部分减仓不动成本价

	snapshot, closed := tr.ApplySellFill(0, 150)
	require.True(t, closed)
	assert.Equal(t, 150.0, snapshot.Quantity)
	_, ok := tr.Position(0)
	assert.False(t, ok)
}

func TestSellFillMissingPositionIsNoop(t *testing.T) {
	tr := NewTracker(100)
	_, closed := tr.ApplySellFill(7, 10)
	assert.False(t, closed)
	assert.Equal(t, 100.0, tr.Cash())
}

func TestValueIdentity(t *testing.T) {
	tr := NewTracker(1_000_000)
	tr.AdjustCash(-100 * 10_000)
	tr.ApplyBuyFill(0, 100, 10_000, day)
	tr.AdjustCash(-50 * 20_000)
	tr.ApplyBuyFill(1, 50, 20_000, day)

	tr.MarkPrices(map[market.Instrument]float64{0: 11_000, 1: 19_000})
	want := tr.Cash() + 100*11_000 + 50*19_000
	assert.InDelta(t, want, tr.Value(), 1e-6)

	pt := tr.RecordEquity(day)
	assert.InDelta(t, want, pt.Value, 1e-6)
	assert.Len(t, tr.Equity(), 1)
}

func TestMarkPricesSkipsUnknown(t *testing.T) {
	tr := NewTracker(0)
	tr.ApplyBuyFill(0, 10, 5_000, day)
	tr.MarkPrices(map[market.Instrument]float64{9: 1}) // 数据缺口：保持原标记
	pos, _ := tr.Position(0)
	assert.Equal(t, 5_000.0, pos.MarkPrice)
}

func TestUnrealizedPnL(t *testing.T) {
	p := Position{Quantity: 100, EntryPrice: 10_000, MarkPrice: 10_500}
	assert.InDelta(t, 50_000.0, p.UnrealizedPnL(), 1e-9)
}
