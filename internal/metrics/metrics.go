// Package metrics 在回测完成后对收益序列做一次性统计。
// 所有比率在分母为零时返回 0，绝不向调用方暴露 NaN/±Inf。
package metrics

import (
	"math"
	"sort"

	"kosim/internal/portfolio"
)

// Config 控制年化与风险指标参数。
type Config struct {
	PeriodsPerYear int     `mapstructure:"periods_per_year" json:"periods_per_year,omitempty" yaml:"periods_per_year,omitempty"` // 默认 252
	RiskFreeRate   float64 `mapstructure:"risk_free_rate" json:"risk_free_rate,omitempty" yaml:"risk_free_rate,omitempty"`       // 年化
	MAR            float64 `mapstructure:"mar" json:"mar,omitempty" yaml:"mar,omitempty"`                                        // Sortino 的最低可接受收益（年化）
	Confidence     float64 `mapstructure:"confidence" json:"confidence,omitempty" yaml:"confidence,omitempty"`                   // VaR/CVaR 置信度，默认 0.95
}

func (c Config) withDefaults() Config {
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 252
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		c.Confidence = 0.95
	}
	return c
}

// Report 是全部指标的扁平载体。
type Report struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	Sharpe           float64 `json:"sharpe_ratio"`
	Sortino          float64 `json:"sortino_ratio"`
	Calmar           float64 `json:"calmar_ratio"`
	Omega            float64 `json:"omega_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`      // 负数或 0
	DrawdownDays     int     `json:"max_drawdown_days"` // 最长连续回撤段
	RecoveryFactor   float64 `json:"recovery_factor"`
	Skewness         float64 `json:"skewness"`
	Kurtosis         float64 `json:"kurtosis"` // 超额峰度
	VaR              float64 `json:"var"`
	CVaR             float64 `json:"cvar"`
	WinRate          float64 `json:"win_rate"`
}

// Returns 从资金曲线导出逐期收益率。
func Returns(equity []portfolio.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}
	return out
}

// Compute 对收益序列计算全套指标。纯函数。
func Compute(returns []float64, cfg Config) Report {
	cfg = cfg.withDefaults()
	var r Report
	n := len(returns)
	if n == 0 {
		return r
	}
	periods := float64(cfg.PeriodsPerYear)

	// 几何累计
	wealth := 1.0
	wins := 0
	for _, ret := range returns {
		wealth *= 1 + ret
		if ret > 0 {
			wins++
		}
	}
	r.TotalReturn = wealth - 1
	r.WinRate = float64(wins) / float64(n)
	if wealth > 0 {
		r.AnnualReturn = math.Pow(wealth, periods/float64(n)) - 1
	} else {
		r.AnnualReturn = -1
	}

	mean := meanOf(returns)
	sd := stdOf(returns, mean)
	r.AnnualVolatility = sd * math.Sqrt(periods)

	rfPerPeriod := cfg.RiskFreeRate / periods
	if sd > 0 {
		r.Sharpe = (mean - rfPerPeriod) * periods / (sd * math.Sqrt(periods))
	}

	marPerPeriod := cfg.MAR / periods
	dd := downsideDeviation(returns, marPerPeriod)
	if dd > 0 {
		r.Sortino = (mean - marPerPeriod) * periods / (dd * math.Sqrt(periods))
	}

	r.MaxDrawdown, r.DrawdownDays = drawdown(returns)
	if r.MaxDrawdown < 0 {
		r.Calmar = r.AnnualReturn / math.Abs(r.MaxDrawdown)
		r.RecoveryFactor = r.TotalReturn / math.Abs(r.MaxDrawdown)
	}

	r.Omega = omega(returns, marPerPeriod)
	r.Skewness, r.Kurtosis = moments(returns, mean, sd)
	r.VaR, r.CVaR = valueAtRisk(returns, cfg.Confidence)
	return r
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdOf 用样本标准差（n-1）；单点序列返回 0。
// 常数序列的均值扣减会留下 1e-17 量级的浮点残差，这里压回 0，
// 保证零波动时 Sharpe/年化波动率严格为 0。
func stdOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	sd := math.Sqrt(sum / float64(len(xs)-1))
	if sd < 1e-12*math.Max(math.Abs(mean), 1) {
		return 0
	}
	return sd
}

func downsideDeviation(xs []float64, mar float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		if x < mar {
			d := x - mar
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// drawdown 返回最深回撤（负数）与最长连续回撤期数。
func drawdown(returns []float64) (float64, int) {
	wealth := 1.0
	peak := 1.0
	maxDD := 0.0
	longest, current := 0, 0
	for _, ret := range returns {
		wealth *= 1 + ret
		if wealth > peak {
			peak = wealth
			current = 0
		} else {
			current++
			if current > longest {
				longest = current
			}
		}
		if peak > 0 {
			dd := wealth/peak - 1
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, longest
}

func omega(xs []float64, threshold float64) float64 {
	var gains, losses float64
	for _, x := range xs {
		if x >= threshold {
			gains += x - threshold
		} else {
			losses += threshold - x
		}
	}
	if losses == 0 {
		return 0
	}
	return gains / losses
}

// moments 返回偏度与超额峰度；方差为零时均为 0。
func moments(xs []float64, mean, sd float64) (float64, float64) {
	if sd == 0 || len(xs) == 0 {
		return 0, 0
	}
	var m3, m4 float64
	for _, x := range xs {
		d := (x - mean) / sd
		m3 += d * d * d
		m4 += d * d * d * d
	}
	n := float64(len(xs))
	return m3 / n, m4/n - 3
}

// valueAtRisk 返回历史法 VaR（(1-置信度) 分位收益）与该尾部的均值 CVaR。
func valueAtRisk(xs []float64, confidence float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	v := sorted[idx]
	sum := 0.0
	count := 0
	for _, x := range sorted {
		if x <= v {
			sum += x
			count++
		}
	}
	cvar := v
	if count > 0 {
		cvar = sum / float64(count)
	}
	return v, cvar
}
