// Package exec 实现撮合引擎：持有未完结订单，逐根 K 线尝试成交，
// 产出 Fill 并累计成交成本。
package exec

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"kosim/internal/cost"
	"kosim/internal/logger"
	"kosim/internal/market"
	"kosim/internal/pkg/tick"
)

// ErrInvalidOrder 表示订单在提交时即不合法（缺少必要价格字段等）。
var ErrInvalidOrder = errors.New("invalid order")

// Config 控制撮合行为。
type Config struct {
	PriceImprovement     bool    `mapstructure:"price_improvement" json:"price_improvement,omitempty" yaml:"price_improvement,omitempty"`
	PartialFills         bool    `mapstructure:"partial_fills" json:"partial_fills,omitempty" yaml:"partial_fills,omitempty"`
	MaxParticipationRate float64 `mapstructure:"max_participation_rate" json:"max_participation_rate,omitempty" yaml:"max_participation_rate,omitempty"` // 单根 K 线最多吃掉的成交量占比
}

// Engine 独占未完结订单集合；其他组件只能提交订单、读取结果。
type Engine struct {
	cfg   Config
	costs *cost.Model

	open    []*Order          // 按提交顺序
	orders  map[string]*Order // 含终态订单
	fillLog []Fill
}

// New 构造撮合引擎。
func New(cfg Config, costs *cost.Model) *Engine {
	if cfg.MaxParticipationRate <= 0 || cfg.MaxParticipationRate > 1 {
		cfg.MaxParticipationRate = 1
	}
	return &Engine{
		cfg:    cfg,
		costs:  costs,
		orders: make(map[string]*Order),
	}
}

// SubmitInput 描述一笔待提交的订单。
type SubmitInput struct {
	Instrument market.Instrument
	Type       Type
	Side       cost.Side
	Quantity   float64
	LimitPrice float64
	StopPrice  float64
}

// Submit 校验并登记订单。限价/止损单缺少对应价格时立刻返回
// ErrInvalidOrder，不产生任何状态变化；合法订单的价格先落到档位网格。
func (e *Engine) Submit(in SubmitInput) (*Order, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity 必须为正，得到 %v", ErrInvalidOrder, in.Quantity)
	}
	switch in.Type {
	case Limit:
		if in.LimitPrice <= 0 {
			return nil, fmt.Errorf("%w: limit 单缺少 limit_price", ErrInvalidOrder)
		}
	case Stop:
		if in.StopPrice <= 0 {
			return nil, fmt.Errorf("%w: stop 单缺少 stop_price", ErrInvalidOrder)
		}
	case StopLimit:
		if in.LimitPrice <= 0 || in.StopPrice <= 0 {
			return nil, fmt.Errorf("%w: stop_limit 单需要 limit_price 和 stop_price", ErrInvalidOrder)
		}
	case Market:
	default:
		return nil, fmt.Errorf("%w: 未知订单类型 %d", ErrInvalidOrder, in.Type)
	}

	o := &Order{
		ID:         uuid.NewString(),
		Instrument: in.Instrument,
		Type:       in.Type,
		Side:       in.Side,
		Quantity:   in.Quantity,
		Status:     Pending,
	}
	if in.LimitPrice > 0 {
		o.LimitPrice = tick.Round(in.LimitPrice)
	}
	if in.StopPrice > 0 {
		o.StopPrice = tick.Round(in.StopPrice)
	}
	o.Status = Submitted
	e.open = append(e.open, o)
	e.orders[o.ID] = o
	return o, nil
}

// Cancel 撤销未完结订单；订单已终态或不存在时返回 false。
func (e *Engine) Cancel(orderID string) bool {
	o, ok := e.orders[orderID]
	if !ok || o.Status.Terminal() {
		return false
	}
	o.Status = Cancelled
	e.removeOpen(o.ID)
	return true
}

// ProcessBar 用一根 K 线驱动该标的的全部未完结订单，按提交顺序撮合。
// availableVolume<=0 时不做成交量约束。
func (e *Engine) ProcessBar(inst market.Instrument, bar market.Bar, availableVolume float64) []Fill {
	var fills []Fill
	// 撮合会把已完成订单移出 open，遍历副本保持提交顺序稳定。
	snapshot := append([]*Order(nil), e.open...)
	for _, o := range snapshot {
		if o.Instrument != inst || o.Status.Terminal() {
			continue
		}
		price, ok := e.executionPrice(o, bar)
		if !ok {
			continue
		}
		qty := e.fillQuantity(o, availableVolume)
		if qty <= 0 {
			continue
		}
		bd := e.costs.Estimate(cost.Input{
			Price:    price,
			Quantity: qty,
			Side:     o.Side,
			Volume:   availableVolume,
		})
		o.applyFill(qty, price, bd)
		fill := Fill{
			OrderID:    o.ID,
			Instrument: inst,
			Side:       o.Side,
			Quantity:   qty,
			Price:      price,
			Date:       bar.Date,
			Commission: bd.Commission,
			Tax:        bd.Tax,
			Slippage:   bd.Slippage,
		}
		fills = append(fills, fill)
		e.fillLog = append(e.fillLog, fill)
		if o.Status == Filled {
			e.removeOpen(o.ID)
		}
	}
	return fills
}

// executionPrice 判定订单在该 K 线上能否成交，并给出成交价（已落网格）。
func (e *Engine) executionPrice(o *Order, bar market.Bar) (float64, bool) {
	open := tick.Round(bar.Open)
	switch o.Type {
	case Market:
		// 保守地用开盘价成交，避免对 K 线内部走势的前视。
		return open, true
	case Limit:
		return e.limitPrice(o.Side, o.LimitPrice, bar, open)
	case Stop:
		if !stopTriggered(o.Side, o.StopPrice, bar) {
			return 0, false
		}
		// 触发后视同市价：按止损价与开盘价中对己更差的一侧成交。
		if o.Side == cost.Buy {
			return tick.Round(math.Max(o.StopPrice, open)), true
		}
		return tick.Round(math.Min(o.StopPrice, open)), true
	case StopLimit:
		if !stopTriggered(o.Side, o.StopPrice, bar) {
			return 0, false
		}
		return e.limitPrice(o.Side, o.LimitPrice, bar, open)
	default:
		// 未支持的订单类型：跳过本根 K 线，订单保持未完结。
		logger.Warnf("[exec] 订单 %s 类型 %d 不支持，跳过本根 K 线", o.ID, o.Type)
		return 0, false
	}
}

func (e *Engine) limitPrice(side cost.Side, limit float64, bar market.Bar, open float64) (float64, bool) {
	switch side {
	case cost.Buy:
		if bar.Low > limit {
			return 0, false
		}
		if e.cfg.PriceImprovement {
			return tick.Round(math.Min(limit, open)), true
		}
		return limit, true
	case cost.Sell:
		if bar.High < limit {
			return 0, false
		}
		if e.cfg.PriceImprovement {
			return tick.Round(math.Max(limit, open)), true
		}
		return limit, true
	default:
		return 0, false
	}
}

func stopTriggered(side cost.Side, stop float64, bar market.Bar) bool {
	if side == cost.Buy {
		return bar.High >= stop
	}
	return bar.Low <= stop
}

// fillQuantity 计算本次可成交数量：启用部分成交且给出成交量时，
// 封顶为 floor(volume × participation)。
func (e *Engine) fillQuantity(o *Order, availableVolume float64) float64 {
	remaining := o.Remaining()
	if !e.cfg.PartialFills || availableVolume <= 0 {
		return remaining
	}
	capQty := math.Floor(availableVolume * e.cfg.MaxParticipationRate)
	return math.Min(remaining, capQty)
}

// Open 返回未完结订单快照，按提交顺序。
func (e *Engine) Open() []*Order {
	return append([]*Order(nil), e.open...)
}

// Lookup 按 id 取订单（含终态）。
func (e *Engine) Lookup(orderID string) (*Order, bool) {
	o, ok := e.orders[orderID]
	return o, ok
}

// Fills 返回全部成交流水。
func (e *Engine) Fills() []Fill {
	return append([]Fill(nil), e.fillLog...)
}

func (e *Engine) removeOpen(orderID string) {
	for i, o := range e.open {
		if o.ID == orderID {
			e.open = append(e.open[:i], e.open[i+1:]...)
			return
		}
	}
}
