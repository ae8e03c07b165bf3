// Package signal 把布尔持有信号翻译成具体订单：
// 不再持有的全量市价卖出，新入选的按等额分配市价买入。
package signal

import (
	"math"
	"sort"
	"time"

	"kosim/internal/cost"
	"kosim/internal/exec"
	"kosim/internal/logger"
	"kosim/internal/market"
	"kosim/internal/portfolio"
)

// Interpreter 每个模拟日跑一遍信号差集并向撮合引擎提交订单。
type Interpreter struct {
	engine  *exec.Engine
	tracker *portfolio.Tracker
}

func NewInterpreter(engine *exec.Engine, tracker *portfolio.Tracker) *Interpreter {
	return &Interpreter{engine: engine, tracker: tracker}
}

// Interpret 对比目标集合与当前持仓，提交进出场订单并返回。
// 已持有且仍在目标内的标的不做再平衡。贪心单遍分配：
// 新开仓各分 available_cash/N，不考虑既有持仓的目标权重。
// 已有未完结订单的标的整体跳过：数据缺口日提交的订单会挂到
// 下一根 K 线，重复提交会把同一份持仓卖两次。
func (i *Interpreter) Interpret(signals map[market.Instrument]bool, prices map[market.Instrument]float64, date time.Time) []*exec.Order {
	var orders []*exec.Order

	held := i.tracker.Holdings()
	inFlight := make(map[market.Instrument]struct{})
	for _, o := range i.engine.Open() {
		inFlight[o.Instrument] = struct{}{}
	}

	// 退出：当前持有但信号已失效
	var exits []market.Instrument
	for inst := range held {
		if _, busy := inFlight[inst]; busy {
			continue
		}
		if !signals[inst] {
			exits = append(exits, inst)
		}
	}
	sort.Slice(exits, func(a, b int) bool { return exits[a] < exits[b] })
	for _, inst := range exits {
		o, err := i.engine.Submit(exec.SubmitInput{
			Instrument: inst,
			Type:       exec.Market,
			Side:       cost.Sell,
			Quantity:   held[inst],
		})
		if err != nil {
			logger.Warnf("[signal] %s 卖出提交失败 (inst=%d): %v", date.Format("2006-01-02"), inst, err)
			continue
		}
		orders = append(orders, o)
	}

	// 入场：目标内但尚未持有，且有可用价格
	var entries []market.Instrument
	for inst, hold := range signals {
		if !hold {
			continue
		}
		if _, ok := held[inst]; ok {
			continue
		}
		if _, busy := inFlight[inst]; busy {
			continue
		}
		if _, ok := prices[inst]; !ok {
			continue // 当日无价：跳过该标的
		}
		entries = append(entries, inst)
	}
	if len(entries) == 0 {
		return orders
	}
	// map 遍历无序，按句柄排序保证订单提交顺序确定
	sort.Slice(entries, func(a, b int) bool { return entries[a] < entries[b] })

	allocation := i.tracker.Cash() / float64(len(entries))
	for _, inst := range entries {
		price := prices[inst]
		if price <= 0 {
			continue
		}
		qty := math.Floor(allocation / price)
		if qty <= 0 {
			continue
		}
		o, err := i.engine.Submit(exec.SubmitInput{
			Instrument: inst,
			Type:       exec.Market,
			Side:       cost.Buy,
			Quantity:   qty,
		})
		if err != nil {
			logger.Warnf("[signal] %s 买入提交失败 (inst=%d): %v", date.Format("2006-01-02"), inst, err)
			continue
		}
		orders = append(orders, o)
	}
	return orders
}
