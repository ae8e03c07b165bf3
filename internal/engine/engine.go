// Package engine 是回测的编排器：按日期推进，串起信号解释、
// 撮合、持仓记账与交易登记，最后产出资金曲线与指标。
package engine

import (
	"context"
	"math"
	"time"

	"kosim/internal/cost"
	"kosim/internal/exec"
	"kosim/internal/ledger"
	"kosim/internal/logger"
	"kosim/internal/market"
	"kosim/internal/metrics"
	"kosim/internal/portfolio"
	"kosim/internal/signal"
)

// Params 是一次回测的全部参数。
type Params struct {
	InitialCash float64
	Start       time.Time // 零值不限
	End         time.Time
	Exec        exec.Config
	Cost        cost.Config
	Metrics     metrics.Config
}

// Engine 驱动单次回测。一次回测严格单线程：日期串行处理，
// 第 N 日的成交必须看到第 N−1 日留下的现金与持仓。
type Engine struct {
	params      Params
	universe    *market.Universe
	signals     map[market.Instrument]market.HoldSeries
	exec        *exec.Engine
	tracker     *portfolio.Tracker
	interpreter *signal.Interpreter
	trades      *ledger.Logger
}

// New 构造回测引擎及其内部组件。
func New(params Params, universe *market.Universe, signals map[market.Instrument]market.HoldSeries) *Engine {
	execEngine := exec.New(params.Exec, cost.New(params.Cost))
	tracker := portfolio.NewTracker(params.InitialCash)
	return &Engine{
		params:      params,
		universe:    universe,
		signals:     signals,
		exec:        execEngine,
		tracker:     tracker,
		interpreter: signal.NewInterpreter(execEngine, tracker),
		trades:      ledger.New(),
	}
}

// Run 执行回测。除配置类错误外，单笔订单/成交的异常只记日志，
// 不会中断整轮模拟。
func (e *Engine) Run(ctx context.Context) (Results, error) {
	dates := e.universe.DateUnion(e.params.Start, e.params.End)
	if len(dates) == 0 {
		logger.Warnf("[engine] 日期并集为空，返回 no-data 结果")
		return Results{NoData: true, InitialValue: e.params.InitialCash, FinalValue: e.params.InitialCash}, nil
	}

	for _, date := range dates {
		select {
		case <-ctx.Done():
			return Results{}, ctx.Err()
		default:
		}
		e.step(date)
	}

	return e.collect(dates), nil
}

// step 处理单个模拟日。
func (e *Engine) step(date time.Time) {
	// (a) 标记价：当日有 bar 的标的取收盘价
	prices := make(map[market.Instrument]float64)
	bars := make(map[market.Instrument]market.Bar)
	for _, inst := range e.universe.Instruments() {
		bar, ok := e.universe.Series(inst).At(date)
		if !ok {
			continue // 数据缺口：当日跳过该标的
		}
		bars[inst] = bar
		prices[inst] = bar.Close
	}
	e.tracker.MarkPrices(prices)

	// (b) 当日信号，缺失视为 false
	holds := make(map[market.Instrument]bool, len(e.signals))
	for inst, series := range e.signals {
		if series.Hold(date) {
			holds[inst] = true
		}
	}

	// (c) 信号 → 订单
	e.interpreter.Interpret(holds, prices, date)

	// (d) 对有未完结订单且当日有 bar 的标的撮合
	pending := make(map[market.Instrument]struct{})
	for _, o := range e.exec.Open() {
		pending[o.Instrument] = struct{}{}
	}
	var fills []exec.Fill
	for _, inst := range e.universe.Instruments() {
		if _, ok := pending[inst]; !ok {
			continue
		}
		bar, ok := bars[inst]
		if !ok {
			continue
		}
		fills = append(fills, e.exec.ProcessBar(inst, bar, bar.Volume)...)
	}

	// (e) 成交回报入账
	for _, f := range fills {
		e.routeFill(f)
	}

	// (f) 资金曲线
	e.tracker.RecordEquity(date)
}

// routeFill 把一笔成交落到现金、持仓与交易账本。
func (e *Engine) routeFill(f exec.Fill) {
	switch f.Side {
	case cost.Buy:
		e.tracker.AdjustCash(-(f.Value() + f.Commission + f.Slippage))
		e.tracker.ApplyBuyFill(f.Instrument, f.Quantity, f.Price, f.Date)
	case cost.Sell:
		// 只按账本实际减掉的数量入账，超量卖出不产生现金
		pos, _ := e.tracker.Position(f.Instrument)
		qty := math.Min(f.Quantity, pos.Quantity)
		if qty > 0 {
			e.tracker.AdjustCash(qty*f.Price - f.Commission - f.Tax - f.Slippage)
		}
		closed, ok := e.tracker.ApplySellFill(f.Instrument, f.Quantity)
		if !ok {
			return
		}
		e.trades.Record(ledger.RecordInput{
			Instrument: f.Instrument,
			Code:       e.universe.Code(f.Instrument),
			EntryDate:  closed.EntryDate,
			ExitDate:   f.Date,
			EntryPrice: closed.EntryPrice,
			ExitPrice:  f.Price,
			Quantity:   closed.Quantity,
			Commission: f.Commission,
			Tax:        f.Tax,
		})
	}
}

// Tracker 暴露持仓账本（只读用途）。
func (e *Engine) Tracker() *portfolio.Tracker { return e.tracker }

// Exec 暴露撮合引擎（只读用途）。
func (e *Engine) Exec() *exec.Engine { return e.exec }

// Trades 暴露交易账本。
func (e *Engine) Trades() *ledger.Logger { return e.trades }
