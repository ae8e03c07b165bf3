// Package portfolio 独占现金与持仓账本：接收成交回报更新仓位，
// 按最新标记价计算组合净值并记录资金曲线。
package portfolio

import (
	"time"

	"kosim/internal/logger"
	"kosim/internal/market"
)

// Position 是一笔未平仓持仓。Quantity 在持仓存续期内恒为正。
type Position struct {
	Instrument market.Instrument `json:"instrument"`
	Quantity   float64           `json:"quantity"`
	EntryPrice float64           `json:"entry_price"` // 成交量加权
	EntryDate  time.Time         `json:"entry_date"`
	MarkPrice  float64           `json:"mark_price"`
}

// UnrealizedPnL 返回按标记价的浮动盈亏。
func (p Position) UnrealizedPnL() float64 {
	return (p.MarkPrice - p.EntryPrice) * p.Quantity
}

// EquityPoint 是资金曲线上的一个点。
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Tracker 持有现金、持仓表与资金曲线。所有变更只经由下面的方法。
type Tracker struct {
	cash      float64
	positions map[market.Instrument]*Position
	equity    []EquityPoint
}

// NewTracker 以初始资金构造。
func NewTracker(initialCash float64) *Tracker {
	return &Tracker{
		cash:      initialCash,
		positions: make(map[market.Instrument]*Position),
	}
}

// Cash 返回当前现金。
func (t *Tracker) Cash() float64 { return t.cash }

// AdjustCash 把成交现金变动记入账本（买入为负、卖出为正）。
func (t *Tracker) AdjustCash(delta float64) { t.cash += delta }

// ApplyBuyFill 建仓或按成交量加权抬高既有仓位。
func (t *Tracker) ApplyBuyFill(inst market.Instrument, qty, price float64, date time.Time) {
	if qty <= 0 {
		return
	}
	pos, ok := t.positions[inst]
	if !ok {
		t.positions[inst] = &Position{
			Instrument: inst,
			Quantity:   qty,
			EntryPrice: price,
			EntryDate:  market.Day(date),
			MarkPrice:  price,
		}
		return
	}
	total := pos.Quantity + qty
	pos.EntryPrice = (pos.EntryPrice*pos.Quantity + price*qty) / total
	pos.Quantity = total
	pos.MarkPrice = price
}

// ApplySellFill 减少仓位；完全平掉时移除并返回平仓前快照。
// 对不存在的仓位减仓是上游时序 bug，记警告后忽略，不让整轮回测失败。
func (t *Tracker) ApplySellFill(inst market.Instrument, qty float64) (Position, bool) {
	pos, ok := t.positions[inst]
	if !ok {
		logger.Warnf("[portfolio] 对不存在的持仓 %d 减仓 %v，忽略", inst, qty)
		return Position{}, false
	}
	if qty >= pos.Quantity {
		closed := *pos
		delete(t.positions, inst)
		return closed, true
	}
	pos.Quantity -= qty
	return Position{}, false
}

// MarkPrices 按最新收盘价刷新标记价；map 里没有的持仓保持原标记。
func (t *Tracker) MarkPrices(prices map[market.Instrument]float64) {
	for inst, pos := range t.positions {
		if p, ok := prices[inst]; ok {
			pos.MarkPrice = p
		}
	}
}

// Value 返回组合净值 = 现金 + Σ(数量 × 标记价)。
func (t *Tracker) Value() float64 {
	v := t.cash
	for _, pos := range t.positions {
		v += pos.Quantity * pos.MarkPrice
	}
	return v
}

// RecordEquity 追加一个资金曲线点。调用方保证每个模拟日恰好一次。
func (t *Tracker) RecordEquity(date time.Time) EquityPoint {
	pt := EquityPoint{Date: market.Day(date), Value: t.Value()}
	t.equity = append(t.equity, pt)
	return pt
}

// Equity 返回资金曲线。
func (t *Tracker) Equity() []EquityPoint {
	return append([]EquityPoint(nil), t.equity...)
}

// Position 查询某标的持仓。
func (t *Tracker) Position(inst market.Instrument) (Position, bool) {
	pos, ok := t.positions[inst]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Holdings 返回持仓数量表的只读副本。
func (t *Tracker) Holdings() map[market.Instrument]float64 {
	out := make(map[market.Instrument]float64, len(t.positions))
	for inst, pos := range t.positions {
		out[inst] = pos.Quantity
	}
	return out
}
