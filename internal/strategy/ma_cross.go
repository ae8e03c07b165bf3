package strategy

import (
	talib "github.com/markcheno/go-talib"

	"kosim/internal/market"
)

// MACross 在快线上穿慢线期间持有。慢线未形成的日子信号为 false。
type MACross struct {
	fast int
	slow int
}

// NewMACross 构造均线交叉策略，非法参数回退 5/20。
func NewMACross(fast, slow int) MACross {
	if fast <= 0 {
		fast = 5
	}
	if slow <= fast {
		slow = 20
		if slow <= fast {
			slow = fast * 4
		}
	}
	return MACross{fast: fast, slow: slow}
}

func (m MACross) Name() string { return "ma_cross" }

func (m MACross) Signals(bars market.Bars) market.HoldSeries {
	out := make(market.HoldSeries, len(bars))
	if len(bars) < m.slow {
		for _, b := range bars {
			out.Set(b.Date, false)
		}
		return out
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	fastMA := talib.Sma(closes, m.fast)
	slowMA := talib.Sma(closes, m.slow)
	for i, b := range bars {
		hold := i >= m.slow-1 && fastMA[i] > slowMA[i]
		out.Set(b.Date, hold)
	}
	return out
}
