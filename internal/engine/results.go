package engine

import (
	"time"

	"kosim/internal/ledger"
	"kosim/internal/metrics"
	"kosim/internal/portfolio"
)

// Results 汇总一次回测的全部产出。
type Results struct {
	NoData       bool                    `json:"no_data"`
	InitialValue float64                 `json:"initial_value"`
	FinalValue   float64                 `json:"final_value"`
	Equity       []portfolio.EquityPoint `json:"equity"`
	Trades       []ledger.Trade          `json:"trades"`
	TradeStats   ledger.Stats            `json:"trade_stats"`
	Metrics      metrics.Report          `json:"metrics"`
	Positions    map[string]float64      `json:"positions"` // 期末持仓：代码 → 数量
	Start        time.Time               `json:"start"`
	End          time.Time               `json:"end"`
}

// collect 在日期循环结束后装配 Results。
func (e *Engine) collect(dates []time.Time) Results {
	equity := e.tracker.Equity()
	rets := metrics.Returns(equity)
	report := metrics.Compute(rets, e.params.Metrics)

	positions := make(map[string]float64)
	for inst, qty := range e.tracker.Holdings() {
		positions[e.universe.Code(inst)] = qty
	}

	final := e.params.InitialCash
	if len(equity) > 0 {
		final = equity[len(equity)-1].Value
	}
	return Results{
		InitialValue: e.params.InitialCash,
		FinalValue:   final,
		Equity:       equity,
		Trades:       e.trades.Trades(),
		TradeStats:   e.trades.Stats(),
		Metrics:      report,
		Positions:    positions,
		Start:        dates[0],
		End:          dates[len(dates)-1],
	}
}

// Flat 把指标与交易统计合并成扁平表，供落库与报表使用。
func (r Results) Flat() map[string]float64 {
	m := map[string]float64{
		"initial_value":     r.InitialValue,
		"final_value":       r.FinalValue,
		"total_return":      r.Metrics.TotalReturn,
		"annual_return":     r.Metrics.AnnualReturn,
		"annual_volatility": r.Metrics.AnnualVolatility,
		"sharpe_ratio":      r.Metrics.Sharpe,
		"sortino_ratio":     r.Metrics.Sortino,
		"calmar_ratio":      r.Metrics.Calmar,
		"omega_ratio":       r.Metrics.Omega,
		"max_drawdown":      r.Metrics.MaxDrawdown,
		"max_drawdown_days": float64(r.Metrics.DrawdownDays),
		"recovery_factor":   r.Metrics.RecoveryFactor,
		"skewness":          r.Metrics.Skewness,
		"kurtosis":          r.Metrics.Kurtosis,
		"var":               r.Metrics.VaR,
		"cvar":              r.Metrics.CVaR,
		"daily_win_rate":    r.Metrics.WinRate,
		"total_trades":      float64(r.TradeStats.Total),
		"winning_trades":    float64(r.TradeStats.Winning),
		"losing_trades":     float64(r.TradeStats.Losing),
		"trade_win_rate":    r.TradeStats.WinRate,
		"avg_win":           r.TradeStats.AvgWin,
		"avg_loss":          r.TradeStats.AvgLoss,
		"avg_holding_days":  r.TradeStats.AvgHoldingDays,
		"total_pnl":         r.TradeStats.TotalPnL,
		"total_commission":  r.TradeStats.TotalCommission,
		"total_tax":         r.TradeStats.TotalTax,
	}
	return m
}
