package report

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosim/internal/ledger"
	"kosim/internal/metrics"
	"kosim/internal/portfolio"
)

func sampleInput() Input {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	equity := []portfolio.EquityPoint{
		{Date: start, Value: 1e8},
		{Date: start.AddDate(0, 0, 1), Value: 1.02e8},
		{Date: start.AddDate(0, 0, 2), Value: 0.99e8},
		{Date: start.AddDate(0, 0, 3), Value: 1.05e8},
	}
	return Input{
		Title:  "samsung daily",
		Equity: equity,
		Trades: []ledger.Trade{
			{Code: "005930", NetPnL: 250_000},
			{Code: "005930", NetPnL: -120_000},
		},
		Metrics: metrics.Report{TotalReturn: 0.05, AnnualReturn: 0.4, Sharpe: 1.3, MaxDrawdown: -0.03, DrawdownDays: 1},
	}
}

func TestBuildHTML(t *testing.T) {
	html, err := BuildHTML(sampleInput())
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "samsung daily 资金曲线")
	assert.Contains(t, s, "samsung daily 回撤")
	assert.Contains(t, s, "samsung daily 单笔盈亏")
	assert.Contains(t, s, "echarts")
}

func TestBuildHTMLNoEquity(t *testing.T) {
	_, err := BuildHTML(Input{Title: "empty"})
	assert.Error(t, err)
}

func TestBuildHTMLSkipsTradeChartWhenEmpty(t *testing.T) {
	in := sampleInput()
	in.Trades = nil
	html, err := BuildHTML(in)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "单笔盈亏")
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteHTML(dir, sampleInput())
	require.NoError(t, err)
	assert.Contains(t, path, "samsung_daily.html")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
