package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ResultStore 管理 backtest_runs/trades/equity 表。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			codes TEXT NOT NULL,
			strategy TEXT NOT NULL,
			start_ts INTEGER NOT NULL,
			end_ts INTEGER NOT NULL,
			initial_cash REAL NOT NULL,
			final_value REAL NOT NULL DEFAULT 0,
			total_return REAL NOT NULL DEFAULT 0,
			max_drawdown REAL NOT NULL DEFAULT 0,
			win_rate REAL NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL DEFAULT 0,
			scenario_json TEXT NOT NULL,
			stats_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			code TEXT NOT NULL,
			entry_ts INTEGER NOT NULL,
			exit_ts INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			quantity REAL NOT NULL,
			commission REAL NOT NULL,
			tax REAL NOT NULL,
			net_pnl REAL NOT NULL,
			holding_days INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			equity REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_equity_run ON backtest_equity(run_id, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入一条 run 记录。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	scenarioJSON, err := json.Marshal(run.Scenario)
	if err != nil {
		return err
	}
	codesJSON, err := json.Marshal(run.Codes)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, name, status, codes, strategy, start_ts, end_ts, initial_cash,
			 final_value, total_return, max_drawdown, win_rate, trades,
			 scenario_json, stats_json, message, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Status, string(codesJSON), run.Strategy, run.StartTS, run.EndTS,
		run.InitialCash, run.Stats.FinalValue, run.Stats.TotalReturn, run.Stats.MaxDrawdown,
		run.Stats.WinRate, run.Stats.Trades, string(scenarioJSON), nil, run.Message,
		now, now, nullableTime(run.CompletedAt))
	return err
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

// UpdateRunSummary 更新状态与指标快照。
func (s *ResultStore) UpdateRunSummary(ctx context.Context, id, status string, stats RunStats, message string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, final_value=?, total_return=?, max_drawdown=?, win_rate=?, trades=?,
		    stats_json=?, message=?, updated_at=?,
		    completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`,
		status, stats.FinalValue, stats.TotalReturn, stats.MaxDrawdown, stats.WinRate,
		stats.Trades, string(statsJSON), message, now, completed, completed, id)
	return err
}

// UpdateRunStatus 仅更新状态与提示。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, message=?, updated_at=?, completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`, status, message, now, completed, completed, id)
	return err
}

// InsertTrades 批量写入平仓记录。
func (s *ResultStore) InsertTrades(ctx context.Context, rows []TradeRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, code, entry_ts, exit_ts, entry_price, exit_price,
			 quantity, commission, tax, net_pnl, holding_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Code, r.EntryTS, r.ExitTS,
			r.EntryPrice, r.ExitPrice, r.Quantity, r.Commission, r.Tax,
			r.NetPnL, r.HoldingDays); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertEquity 批量写入资金曲线。
func (s *ResultStore) InsertEquity(ctx context.Context, rows []EquityRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_equity (run_id, ts, equity) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.TS, r.Equity); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, codes, strategy, start_ts, end_ts, initial_cash,
		       scenario_json, stats_json, message, created_at, updated_at, completed_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, codes, strategy, start_ts, end_ts, initial_cash,
		       scenario_json, stats_json, message, created_at, updated_at, completed_at
		FROM backtest_runs WHERE id=?`, id)
	return scanRun(row)
}

func (s *ResultStore) ListTrades(ctx context.Context, runID string, limit int) ([]TradeRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, entry_ts, exit_ts, entry_price, exit_price,
		       quantity, commission, tax, net_pnl, holding_days
		FROM backtest_trades
		WHERE run_id=?
		ORDER BY exit_ts ASC, id ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TradeRow
	for rows.Next() {
		var r TradeRow
		if err := rows.Scan(&r.ID, &r.Code, &r.EntryTS, &r.ExitTS, &r.EntryPrice,
			&r.ExitPrice, &r.Quantity, &r.Commission, &r.Tax, &r.NetPnL, &r.HoldingDays); err != nil {
			return nil, err
		}
		r.RunID = runID
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ResultStore) ListEquity(ctx context.Context, runID string, limit int) ([]EquityRow, error) {
	if limit <= 0 || limit > 5000 {
		limit = 2000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, equity
		FROM backtest_equity
		WHERE run_id=?
		ORDER BY ts ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EquityRow
	for rows.Next() {
		var r EquityRow
		if err := rows.Scan(&r.ID, &r.TS, &r.Equity); err != nil {
			return nil, err
		}
		r.RunID = runID
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var codesStr, scenarioStr string
	var statsStr, messageStr sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Name, &run.Status, &codesStr, &run.Strategy,
		&run.StartTS, &run.EndTS, &run.InitialCash, &scenarioStr, &statsStr,
		&messageStr, &createdAt, &updatedAt, &completedAt); err != nil {
		return Run{}, err
	}
	if messageStr.Valid {
		run.Message = messageStr.String
	}
	run.CreatedAt = timeFromMillis(createdAt)
	run.UpdatedAt = timeFromMillis(updatedAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(codesStr), &run.Codes); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(scenarioStr), &run.Scenario); err != nil {
		return Run{}, err
	}
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &run.Stats); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
