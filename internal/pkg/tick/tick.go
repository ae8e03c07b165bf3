// Package tick 实现价位相关的最小报价单位（호가단위）网格。
// 为避免浮点误差导致的网格漂移，取整通过 decimal 完成。
package tick

import "github.com/shopspring/decimal"

type band struct {
	floor float64 // 价格下界（含）
	size  float64 // 该价位带的最小变动单位
}

// KRX 风格的价位带：低价股 1 元档，50 万以上 1000 元档。
var bands = []band{
	{floor: 500_000, size: 1_000},
	{floor: 100_000, size: 500},
	{floor: 50_000, size: 100},
	{floor: 10_000, size: 50},
	{floor: 5_000, size: 10},
	{floor: 1_000, size: 5},
	{floor: 0, size: 1},
}

// Size 返回给定价格所在价位带的档位大小。
func Size(price float64) float64 {
	if price <= 0 {
		return bands[len(bands)-1].size
	}
	for _, b := range bands {
		if price >= b.floor {
			return b.size
		}
	}
	return 1
}

// Round 把价格取整到最近的有效档位。幂等：Round(Round(x)) == Round(x)。
func Round(price float64) float64 {
	if price <= 0 {
		return 0
	}
	size := decimal.NewFromFloat(Size(price))
	p := decimal.NewFromFloat(price)
	rounded := p.Div(size).Round(0).Mul(size)
	// 取整后跨入相邻价位带时，按新价位带再取整一次即可稳定。
	f, _ := rounded.Float64()
	if Size(f) != Size(price) {
		size = decimal.NewFromFloat(Size(f))
		rounded = decimal.NewFromFloat(f).Div(size).Round(0).Mul(size)
		f, _ = rounded.Float64()
	}
	return f
}
