// Package strategy 把行情序列加工成回测核心消费的布尔持有信号。
package strategy

import (
	"fmt"
	"strings"

	"kosim/internal/market"
)

// Strategy 对单个标的生成逐日持有信号。
type Strategy interface {
	// Signals 对整段序列计算信号；没有 bar 的日期没有信号。
	Signals(bars market.Bars) market.HoldSeries
	Name() string
}

// New 按名字构造策略。参数：ma_cross 接受 fast/slow。
func New(name string, params map[string]int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "buy_hold", "buyhold":
		return BuyHold{}, nil
	case "ma_cross", "macross":
		fast, slow := params["fast"], params["slow"]
		return NewMACross(fast, slow), nil
	default:
		return nil, fmt.Errorf("未知策略: %s", name)
	}
}

// BuyHold 从第一根 K 线起一直持有。
type BuyHold struct{}

func (BuyHold) Name() string { return "buy_hold" }

func (BuyHold) Signals(bars market.Bars) market.HoldSeries {
	out := make(market.HoldSeries, len(bars))
	for _, b := range bars {
		out.Set(b.Date, true)
	}
	return out
}
