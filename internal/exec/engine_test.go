package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosim/internal/cost"
	"kosim/internal/market"
)

func zeroCostModel() *cost.Model {
	return cost.New(cost.Config{
		Broker:  "free",
		Brokers: map[string]cost.BrokerSchedule{"free": {}},
	})
}

func testBar(o, h, l, c, v float64) market.Bar {
	return market.Bar{
		Date:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: v,
	}
}

func TestSubmitValidation(t *testing.T) {
	e := New(Config{}, zeroCostModel())

	_, err := e.Submit(SubmitInput{Type: Limit, Side: cost.Buy, Quantity: 10})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = e.Submit(SubmitInput{Type: Stop, Side: cost.Sell, Quantity: 10})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = e.Submit(SubmitInput{Type: StopLimit, Side: cost.Buy, Quantity: 10, LimitPrice: 1_000})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = e.Submit(SubmitInput{Type: Market, Side: cost.Buy, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	o, err := e.Submit(SubmitInput{Type: Limit, Side: cost.Buy, Quantity: 10, LimitPrice: 1_003})
	require.NoError(t, err)
	assert.Equal(t, Submitted, o.Status)
	assert.Equal(t, 1_005.0, o.LimitPrice) // 提交时落档位网格
}

func TestMarketOrderFillsAtOpen(t *testing.T) {
	e := New(Config{}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: Market, Side: cost.Buy, Quantity: 100})
	require.NoError(t, err)

	fills := e.ProcessBar(0, testBar(60_000, 60_500, 59_500, 60_200, 1_000_000), 1_000_000)
	require.Len(t, fills, 1)
	assert.Equal(t, 60_000.0, fills[0].Price)
	assert.Equal(t, 100.0, fills[0].Quantity)
	assert.Equal(t, Filled, o.Status)
	assert.Empty(t, e.Open())
}

func TestLimitSellGating(t *testing.T) {
	e := New(Config{PriceImprovement: true}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: Limit, Side: cost.Sell, Quantity: 50, LimitPrice: 61_000})
	require.NoError(t, err)

	// high 未触及限价：不成交
	fills := e.ProcessBar(0, testBar(60_000, 60_800, 59_500, 60_500, 0), 0)
	assert.Empty(t, fills)
	assert.Equal(t, Submitted, o.Status)

	// 下一根触及：按 ≥61,000 成交
	fills = e.ProcessBar(0, testBar(61_200, 61_500, 60_900, 61_100, 0), 0)
	require.Len(t, fills, 1)
	assert.GreaterOrEqual(t, fills[0].Price, 61_000.0)
	assert.Equal(t, Filled, o.Status)
}

func TestLimitBuyPriceImprovement(t *testing.T) {
	improved := New(Config{PriceImprovement: true}, zeroCostModel())
	o, err := improved.Submit(SubmitInput{Type: Limit, Side: cost.Buy, Quantity: 10, LimitPrice: 60_000})
	require.NoError(t, err)
	fills := improved.ProcessBar(0, testBar(59_500, 60_200, 59_000, 60_000, 0), 0)
	require.Len(t, fills, 1)
	assert.Equal(t, 59_500.0, fills[0].Price) // 开盘更优
	assert.Equal(t, Filled, o.Status)

	strict := New(Config{}, zeroCostModel())
	_, err = strict.Submit(SubmitInput{Type: Limit, Side: cost.Buy, Quantity: 10, LimitPrice: 60_000})
	require.NoError(t, err)
	fills = strict.ProcessBar(0, testBar(59_500, 60_200, 59_000, 60_000, 0), 0)
	require.Len(t, fills, 1)
	assert.Equal(t, 60_000.0, fills[0].Price) // 不启用改善：恰按限价
}

func TestPartialFillParticipationCap(t *testing.T) {
	e := New(Config{PartialFills: true, MaxParticipationRate: 0.05}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: Market, Side: cost.Buy, Quantity: 100_000})
	require.NoError(t, err)

	fills := e.ProcessBar(0, testBar(10_000, 10_100, 9_900, 10_050, 500_000), 500_000)
	require.Len(t, fills, 1)
	assert.Equal(t, 25_000.0, fills[0].Quantity)
	assert.Equal(t, Partial, o.Status)
	assert.Equal(t, 75_000.0, o.Remaining())
	assert.Len(t, e.Open(), 1)

	// 成交上界不变式
	assert.GreaterOrEqual(t, o.FilledQuantity, 0.0)
	assert.LessOrEqual(t, o.FilledQuantity, o.Quantity)
}

func TestPartialFillVWAP(t *testing.T) {
	e := New(Config{PartialFills: true, MaxParticipationRate: 0.5}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: Market, Side: cost.Buy, Quantity: 200})
	require.NoError(t, err)

	e.ProcessBar(0, testBar(10_000, 10_100, 9_900, 10_050, 200), 200)  // 100 股 @10,000
	e.ProcessBar(0, testBar(10_200, 10_300, 10_100, 10_250, 200), 200) // 100 股 @10,200
	assert.Equal(t, Filled, o.Status)
	assert.InDelta(t, 10_100.0, o.AvgFillPrice, 1e-9)
}

func TestZeroComputedQuantityNoFill(t *testing.T) {
	e := New(Config{PartialFills: true, MaxParticipationRate: 0.05}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: Market, Side: cost.Buy, Quantity: 100})
	require.NoError(t, err)

	fills := e.ProcessBar(0, testBar(10_000, 10_100, 9_900, 10_050, 10), 10) // floor(10×0.05)=0
	assert.Empty(t, fills)
	assert.Equal(t, Submitted, o.Status)
}

func TestStopOrders(t *testing.T) {
	e := New(Config{}, zeroCostModel())
	buy, err := e.Submit(SubmitInput{Type: Stop, Side: cost.Buy, Quantity: 10, StopPrice: 61_000})
	require.NoError(t, err)

	fills := e.ProcessBar(0, testBar(60_000, 60_500, 59_500, 60_200, 0), 0)
	assert.Empty(t, fills) // high 未触发

	fills = e.ProcessBar(0, testBar(60_800, 61_500, 60_700, 61_200, 0), 0)
	require.Len(t, fills, 1)
	assert.Equal(t, 61_000.0, fills[0].Price) // max(stop, open)
	assert.Equal(t, Filled, buy.Status)

	sell, err := e.Submit(SubmitInput{Type: Stop, Side: cost.Sell, Quantity: 10, StopPrice: 59_000})
	require.NoError(t, err)
	fills = e.ProcessBar(0, testBar(58_500, 59_200, 58_000, 58_700, 0), 0)
	require.Len(t, fills, 1)
	assert.Equal(t, 58_500.0, fills[0].Price) // min(stop, open)
	assert.Equal(t, Filled, sell.Status)
}

func TestStopLimitBecomesLimitOnTrigger(t *testing.T) {
	e := New(Config{PriceImprovement: true}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: StopLimit, Side: cost.Buy, Quantity: 10, StopPrice: 61_000, LimitPrice: 61_500})
	require.NoError(t, err)

	// 触发但 low 高于限价的情况不存在（low=60,700 < 61,500），应按限价逻辑成交
	fills := e.ProcessBar(0, testBar(60_800, 61_400, 60_700, 61_200, 0), 0)
	require.Len(t, fills, 1)
	assert.Equal(t, 60_800.0, fills[0].Price) // min(limit, open)
	assert.Equal(t, Filled, o.Status)
}

func TestCancel(t *testing.T) {
	e := New(Config{}, zeroCostModel())
	o, err := e.Submit(SubmitInput{Type: Limit, Side: cost.Buy, Quantity: 10, LimitPrice: 50_000})
	require.NoError(t, err)

	assert.True(t, e.Cancel(o.ID))
	assert.Equal(t, Cancelled, o.Status)
	assert.Empty(t, e.Open())

	assert.False(t, e.Cancel(o.ID)) // 已终态
	assert.False(t, e.Cancel("missing"))
}

func TestCostsFoldedIntoOrderAndFill(t *testing.T) {
	m := cost.New(cost.Config{
		Broker:      "alpha",
		Brokers:     map[string]cost.BrokerSchedule{"alpha": {Rate: 0.001}},
		TaxRate:     0.002,
		SlippageBps: 10,
	})
	e := New(Config{}, m)
	o, err := e.Submit(SubmitInput{Type: Market, Side: cost.Sell, Quantity: 100})
	require.NoError(t, err)

	fills := e.ProcessBar(0, testBar(10_000, 10_100, 9_900, 10_050, 0), 0)
	require.Len(t, fills, 1)
	value := 10_000.0 * 100
	assert.InDelta(t, value*0.001, fills[0].Commission, 1e-9)
	assert.InDelta(t, value*0.002, fills[0].Tax, 1e-9)
	assert.InDelta(t, value*10/10_000, fills[0].Slippage, 1e-9)
	assert.InDelta(t, fills[0].Commission, o.Commission, 1e-9)
	assert.InDelta(t, fills[0].Tax, o.Tax, 1e-9)
	assert.InDelta(t, fills[0].Slippage, o.Slippage, 1e-9)
}
