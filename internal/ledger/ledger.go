// Package ledger 维护已平仓交易的只增账本并按需汇总统计。
package ledger

import (
	"time"

	"kosim/internal/market"
)

// Trade 是一笔完整闭合的交易记录，写入后不再修改。
type Trade struct {
	Instrument  market.Instrument `json:"instrument"`
	Code        string            `json:"code,omitempty"`
	EntryDate   time.Time         `json:"entry_date"`
	ExitDate    time.Time         `json:"exit_date"`
	EntryPrice  float64           `json:"entry_price"`
	ExitPrice   float64           `json:"exit_price"`
	Quantity    float64           `json:"quantity"`
	Commission  float64           `json:"commission"`
	Tax         float64           `json:"tax"`
	GrossPnL    float64           `json:"gross_pnl"`
	NetPnL      float64           `json:"net_pnl"`
	HoldingDays int               `json:"holding_days"`
}

// Stats 是账本的汇总统计。
type Stats struct {
	Total           int     `json:"total_trades"`
	Winning         int     `json:"winning_trades"`
	Losing          int     `json:"losing_trades"`
	WinRate         float64 `json:"win_rate"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	AvgHoldingDays  float64 `json:"avg_holding_days"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalCommission float64 `json:"total_commission"`
	TotalTax        float64 `json:"total_tax"`
}

// Logger 是只增交易账本。统计每次现算，回测内交易量级下足够便宜。
type Logger struct {
	trades []Trade
}

func New() *Logger { return &Logger{} }

// RecordInput 描述一笔待登记的平仓。
type RecordInput struct {
	Instrument market.Instrument
	Code       string
	EntryDate  time.Time
	ExitDate   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	Commission float64
	Tax        float64
}

// Record 登记一笔平仓交易并返回不可变记录。
func (l *Logger) Record(in RecordInput) Trade {
	gross := (in.ExitPrice - in.EntryPrice) * in.Quantity
	tr := Trade{
		Instrument:  in.Instrument,
		Code:        in.Code,
		EntryDate:   market.Day(in.EntryDate),
		ExitDate:    market.Day(in.ExitDate),
		EntryPrice:  in.EntryPrice,
		ExitPrice:   in.ExitPrice,
		Quantity:    in.Quantity,
		Commission:  in.Commission,
		Tax:         in.Tax,
		GrossPnL:    gross,
		NetPnL:      gross - in.Commission - in.Tax,
		HoldingDays: holdingDays(in.EntryDate, in.ExitDate),
	}
	l.trades = append(l.trades, tr)
	return tr
}

// Trades 返回账本副本，按登记顺序。
func (l *Logger) Trades() []Trade {
	return append([]Trade(nil), l.trades...)
}

// Stats 遍历全账本汇总。
func (l *Logger) Stats() Stats {
	var s Stats
	var winSum, lossSum, holdingSum float64
	for _, tr := range l.trades {
		s.Total++
		s.TotalPnL += tr.NetPnL
		s.TotalCommission += tr.Commission
		s.TotalTax += tr.Tax
		holdingSum += float64(tr.HoldingDays)
		if tr.NetPnL > 0 {
			s.Winning++
			winSum += tr.NetPnL
		} else {
			s.Losing++
			lossSum += tr.NetPnL
		}
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Winning) / float64(s.Total)
		s.AvgHoldingDays = holdingSum / float64(s.Total)
	}
	if s.Winning > 0 {
		s.AvgWin = winSum / float64(s.Winning)
	}
	if s.Losing > 0 {
		s.AvgLoss = lossSum / float64(s.Losing)
	}
	return s
}

func holdingDays(entry, exit time.Time) int {
	d := int(market.Day(exit).Sub(market.Day(entry)).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
