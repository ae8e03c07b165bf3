// Package backtest 把回测引擎包装成可提交的异步任务：
// 场景校验、数据装载、运行、落库与 HTTP 查询。
package backtest

import (
	"encoding/json"
	"time"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunStats 是一次回测的指标快照，直接来自 Results.Flat。
type RunStats struct {
	InitialValue float64            `json:"initial_value"`
	FinalValue   float64            `json:"final_value"`
	TotalReturn  float64            `json:"total_return"`
	AnnualReturn float64            `json:"annual_return"`
	Sharpe       float64            `json:"sharpe"`
	MaxDrawdown  float64            `json:"max_drawdown"`
	WinRate      float64            `json:"win_rate"`
	Trades       int                `json:"trades"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Positions    map[string]float64 `json:"positions,omitempty"`
	FinishedAt   time.Time          `json:"finished_at"`
}

// Run 表示一次回测任务。
type Run struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Codes       []string  `json:"codes"`
	Strategy    string    `json:"strategy"`
	StartTS     int64     `json:"start_ts"`
	EndTS       int64     `json:"end_ts"`
	InitialCash float64   `json:"initial_cash"`
	Message     string    `json:"message"`
	Scenario    Scenario  `json:"scenario"`
	Stats       RunStats  `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarshalScenario 返回场景 JSON 快照，便于重放。
func (r Run) MarshalScenario() ([]byte, error) {
	return json.Marshal(r.Scenario)
}

// TradeRow 是落库的平仓记录。
type TradeRow struct {
	ID          int64   `json:"id"`
	RunID       string  `json:"run_id"`
	Code        string  `json:"code"`
	EntryTS     int64   `json:"entry_ts"`
	ExitTS      int64   `json:"exit_ts"`
	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	Quantity    float64 `json:"quantity"`
	Commission  float64 `json:"commission"`
	Tax         float64 `json:"tax"`
	NetPnL      float64 `json:"net_pnl"`
	HoldingDays int     `json:"holding_days"`
}

// EquityRow 是落库的每日权益点。
type EquityRow struct {
	ID     int64   `json:"id"`
	RunID  string  `json:"run_id"`
	TS     int64   `json:"ts"`
	Equity float64 `json:"equity"`
}
