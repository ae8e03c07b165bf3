package backtest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosim/internal/cost"
	"kosim/internal/market"
	"kosim/internal/source"
)

// stubSource 产出合成日线，避免测试依赖外部文件。
type stubSource struct {
	bars map[string]market.Bars
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context, req source.Request) (market.Bars, error) {
	return s.bars[req.Code], nil
}

func risingBars(start time.Time, days int, base, step float64) market.Bars {
	bars := make(market.Bars, 0, days)
	for i := 0; i < days; i++ {
		p := base + float64(i)*step
		bars = append(bars, market.Bar{
			Date: start.AddDate(0, 0, i),
			Open: p, High: p * 1.01, Low: p * 0.99, Close: p * 1.005,
			Volume: 1_000_000,
		})
	}
	return bars
}

func newTestSimulator(t *testing.T, bars map[string]market.Bars) (*Simulator, *ResultStore) {
	t.Helper()
	results := newTestStore(t)
	sim, err := NewSimulator(SimulatorConfig{
		Results: results,
		Sources: map[string]source.Source{"csv": &stubSource{bars: bars}},
	})
	require.NoError(t, err)
	return sim, results
}

func waitForRun(t *testing.T, results *ResultStore, id string) Run {
	t.Helper()
	var run Run
	require.Eventually(t, func() bool {
		var err error
		run, err = results.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		return run.Status == RunStatusDone || run.Status == RunStatusFailed
	}, 10*time.Second, 20*time.Millisecond)
	return run
}

func TestStartRunBuyHold(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	sim, results := newTestSimulator(t, map[string]market.Bars{
		"005930": risingBars(start, 30, 60_000, 500),
	})

	run, err := sim.StartRun(Scenario{
		Name:        "buy-hold-rising",
		InitialCash: 1e8,
		Strategy:    "buy_hold",
		Instruments: []ScenarioInstrument{{Code: "005930", Source: "csv", Path: "ignored.csv"}},
	}.withDefaults())
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, run.Status)

	done := waitForRun(t, results, run.ID)
	require.Equal(t, RunStatusDone, done.Status, "message=%s", done.Message)
	assert.Greater(t, done.Stats.FinalValue, 0.0)
	// 单边上涨 + buy_hold：持仓到最后，权益应高于初始
	assert.Greater(t, done.Stats.TotalReturn, 0.0)

	equity, err := results.ListEquity(context.Background(), run.ID, 0)
	require.NoError(t, err)
	assert.Len(t, equity, 30)
}

func TestStartRunUnknownSourceFails(t *testing.T) {
	sim, results := newTestSimulator(t, nil)

	run, err := sim.StartRun(Scenario{
		Name:        "bad-source",
		InitialCash: 1e8,
		Strategy:    "buy_hold",
		Instruments: []ScenarioInstrument{{Code: "005930", Source: "cache"}},
	}.withDefaults())
	require.NoError(t, err, "校验通过，失败应发生在异步装载阶段")

	done := waitForRun(t, results, run.ID)
	assert.Equal(t, RunStatusFailed, done.Status)
	assert.NotEmpty(t, done.Message)
}

func TestStartRunEmptyBarsFails(t *testing.T) {
	sim, results := newTestSimulator(t, map[string]market.Bars{})

	run, err := sim.StartRun(Scenario{
		Name:        "no-bars",
		InitialCash: 1e8,
		Strategy:    "buy_hold",
		Instruments: []ScenarioInstrument{{Code: "005930", Source: "csv", Path: "ignored.csv"}},
	}.withDefaults())
	require.NoError(t, err)

	done := waitForRun(t, results, run.ID)
	assert.Equal(t, RunStatusFailed, done.Status)
}

func TestBrokerDefaultsApplyWhenScenarioSilent(t *testing.T) {
	sim, results := newTestSimulator(t, map[string]market.Bars{
		"005930": risingBars(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10, 60_000, 500),
	})
	sim.SetBrokerDefaults("alpha", map[string]cost.BrokerSchedule{
		"alpha": {Rate: 0.00015, Floor: 100},
	})

	run, err := sim.StartRun(Scenario{
		Name:        "broker-defaults",
		InitialCash: 1e8,
		Strategy:    "buy_hold",
		Instruments: []ScenarioInstrument{{Code: "005930", Source: "csv", Path: "ignored.csv"}},
	}.withDefaults())
	require.NoError(t, err)

	done := waitForRun(t, results, run.ID)
	require.Equal(t, RunStatusDone, done.Status, "message=%s", done.Message)
	// 落库的场景快照应带上注入的费率表
	assert.Equal(t, "alpha", done.Scenario.Cost.Broker)
	assert.Equal(t, 0.00015, done.Scenario.Cost.Brokers["alpha"].Rate)
}

func TestCompletedRunWritesReport(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	results := newTestStore(t)
	dir := t.TempDir()
	sim, err := NewSimulator(SimulatorConfig{
		Results: results,
		Sources: map[string]source.Source{"csv": &stubSource{bars: map[string]market.Bars{
			"005930": risingBars(start, 20, 60_000, 500),
		}}},
		Report: ReportOptions{OutputDir: dir},
	})
	require.NoError(t, err)

	run, err := sim.StartRun(Scenario{
		Name:        "report run",
		InitialCash: 1e8,
		Strategy:    "buy_hold",
		Instruments: []ScenarioInstrument{{Code: "005930", Source: "csv", Path: "ignored.csv"}},
	}.withDefaults())
	require.NoError(t, err)

	done := waitForRun(t, results, run.ID)
	require.Equal(t, RunStatusDone, done.Status, "message=%s", done.Message)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".html"))
	html, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(html), "资金曲线")
}

func TestStartRunRejectsBadScenario(t *testing.T) {
	sim, _ := newTestSimulator(t, nil)

	_, err := sim.StartRun(Scenario{
		Name:        "bad-range",
		InitialCash: 1e8,
		Start:       "2024-06-01",
		End:         "2024-01-01",
		Instruments: []ScenarioInstrument{{Code: "005930", Source: "cache"}},
	})
	assert.Error(t, err)
}
