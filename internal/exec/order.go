package exec

import (
	"time"

	"kosim/internal/cost"
	"kosim/internal/market"
)

// Type 是订单类型的闭合枚举。
type Type int

const (
	Market Type = iota
	Limit
	Stop
	StopLimit
)

func (t Type) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case Stop:
		return "stop"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// Status 是订单状态机的闭合枚举。
// Pending → Submitted → {Partial → Filled | Filled} | Cancelled | Rejected。
type Status int

const (
	Pending Status = iota
	Submitted
	Partial
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Submitted:
		return "submitted"
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal 报告该状态之后订单是否不可再变。
func (s Status) Terminal() bool {
	switch s {
	case Filled, Cancelled, Rejected:
		return true
	default:
		return false
	}
}

// Order 是一张订单的完整账目。提交后只有引擎在撮合时修改它，
// 进入终态后不再变化。
type Order struct {
	ID         string            `json:"id"`
	Instrument market.Instrument `json:"instrument"`
	Type       Type              `json:"type"`
	Side       cost.Side         `json:"side"`
	Quantity   float64           `json:"quantity"`
	LimitPrice float64           `json:"limit_price,omitempty"`
	StopPrice  float64           `json:"stop_price,omitempty"`

	FilledQuantity float64 `json:"filled_quantity"`
	AvgFillPrice   float64 `json:"avg_fill_price"` // 成交量加权
	Commission     float64 `json:"commission"`
	Tax            float64 `json:"tax"`
	Slippage       float64 `json:"slippage"`

	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Remaining 返回未成交数量。
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// applyFill 累加成交并推进状态。filled_quantity 永不超过 quantity。
func (o *Order) applyFill(qty, price float64, bd cost.Breakdown) {
	prev := o.FilledQuantity
	o.FilledQuantity += qty
	if o.FilledQuantity > o.Quantity {
		o.FilledQuantity = o.Quantity
	}
	if o.FilledQuantity > 0 {
		o.AvgFillPrice = (o.AvgFillPrice*prev + price*qty) / o.FilledQuantity
	}
	o.Commission += bd.Commission
	o.Tax += bd.Tax
	o.Slippage += bd.Slippage
	if o.FilledQuantity >= o.Quantity {
		o.Status = Filled
	} else {
		o.Status = Partial
	}
}

// Fill 是一次成交事件的不可变记录。
type Fill struct {
	OrderID    string            `json:"order_id"`
	Instrument market.Instrument `json:"instrument"`
	Side       cost.Side         `json:"side"`
	Quantity   float64           `json:"quantity"`
	Price      float64           `json:"price"`
	Date       time.Time         `json:"date"`
	Commission float64           `json:"commission"`
	Tax        float64           `json:"tax"`
	Slippage   float64           `json:"slippage"`
}

// Value 返回成交金额。
func (f Fill) Value() float64 { return f.Price * f.Quantity }
