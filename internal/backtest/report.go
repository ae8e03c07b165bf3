package backtest

import (
	"context"
	"os"
	"strings"
	"time"

	"kosim/internal/engine"
	"kosim/internal/ledger"
	"kosim/internal/logger"
	"kosim/internal/metrics"
	"kosim/internal/portfolio"
	"kosim/internal/report"
)

// ReportOptions 控制任务完成后的报告产出。OutputDir 为空时不生成。
type ReportOptions struct {
	OutputDir string
	RenderPNG bool
	Timeout   time.Duration
}

// writeReport 在任务完成后落盘 HTML（可选 PNG）报告。
// 报告失败只记日志，不影响任务状态。
func (s *Simulator) writeReport(ctx context.Context, runID, name string, results engine.Results) {
	if s.report.OutputDir == "" {
		return
	}
	in := report.Input{
		Title:   name + " " + shortID(runID),
		Equity:  results.Equity,
		Trades:  results.Trades,
		Metrics: results.Metrics,
	}
	path, err := report.WriteHTML(s.report.OutputDir, in)
	if err != nil {
		logger.Warnf("[backtest] 任务 %s 报告生成失败: %v", runID, err)
		return
	}
	logger.Infof("[backtest] 任务 %s 报告已写入 %s", runID, path)
	if !s.report.RenderPNG {
		return
	}
	png, err := report.RenderPNG(ctx, in, s.report.Timeout)
	if err != nil {
		logger.Warnf("[backtest] 任务 %s PNG 渲染失败: %v", runID, err)
		return
	}
	pngPath := strings.TrimSuffix(path, ".html") + ".png"
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		logger.Warnf("[backtest] 任务 %s PNG 写入失败: %v", runID, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// reportInputFromRows 从落库行重建渲染素材，指标按场景配置重算。
func reportInputFromRows(run Run, equity []EquityRow, trades []TradeRow) report.Input {
	points := make([]portfolio.EquityPoint, 0, len(equity))
	for _, e := range equity {
		points = append(points, portfolio.EquityPoint{Date: time.UnixMilli(e.TS).UTC(), Value: e.Equity})
	}
	lts := make([]ledger.Trade, 0, len(trades))
	for _, tr := range trades {
		lts = append(lts, ledger.Trade{
			Code:        tr.Code,
			EntryDate:   time.UnixMilli(tr.EntryTS).UTC(),
			ExitDate:    time.UnixMilli(tr.ExitTS).UTC(),
			EntryPrice:  tr.EntryPrice,
			ExitPrice:   tr.ExitPrice,
			Quantity:    tr.Quantity,
			Commission:  tr.Commission,
			Tax:         tr.Tax,
			NetPnL:      tr.NetPnL,
			HoldingDays: tr.HoldingDays,
		})
	}
	rep := metrics.Compute(metrics.Returns(points), run.Scenario.Metrics)
	return report.Input{Title: run.Name, Equity: points, Trades: lts, Metrics: rep}
}
