// Package cost 计算一笔成交的佣金、交易税与滑点。
package cost

import (
	"math"
	"strings"

	"kosim/internal/logger"
)

// Side 区分买卖方向。
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// SlippageModel 选择滑点模型。
type SlippageModel int

const (
	SlippageFixed SlippageModel = iota
	SlippageVolume
	SlippageVolatility
)

// ParseSlippageModel 解析配置里的滑点模型名，未知值回退 fixed。
func ParseSlippageModel(name string) SlippageModel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed":
		return SlippageFixed
	case "volume", "volume-scaled", "volume_scaled":
		return SlippageVolume
	case "volatility", "volatility-scaled", "volatility_scaled":
		return SlippageVolatility
	default:
		logger.Warnf("[cost] 未知滑点模型 %q，回退 fixed", name)
		return SlippageFixed
	}
}

// BrokerSchedule 是单个券商的佣金表。Cap<=0 表示无上限。
type BrokerSchedule struct {
	Rate  float64 `mapstructure:"rate" json:"rate" yaml:"rate"`
	Floor float64 `mapstructure:"floor" json:"floor" yaml:"floor"`
	Cap   float64 `mapstructure:"cap" json:"cap" yaml:"cap"`
}

// DefaultBroker 在券商 id 未配置时兜底：万 1.5 佣金、100 元起收。
var DefaultBroker = BrokerSchedule{Rate: 0.00015, Floor: 100}

// Config 是成本模型的全部配置。
type Config struct {
	Broker      string                    `mapstructure:"broker" json:"broker,omitempty" yaml:"broker,omitempty"`
	Brokers     map[string]BrokerSchedule `mapstructure:"brokers" json:"brokers,omitempty" yaml:"brokers,omitempty"`
	TaxRate     float64                   `mapstructure:"tax_rate" json:"tax_rate,omitempty" yaml:"tax_rate,omitempty"`             // 仅卖出收取
	Slippage    string                    `mapstructure:"slippage" json:"slippage,omitempty" yaml:"slippage,omitempty"`             // fixed | volume | volatility
	SlippageBps float64                   `mapstructure:"slippage_bps" json:"slippage_bps,omitempty" yaml:"slippage_bps,omitempty"` // fixed 模型的基准 bps
}

// Breakdown 是一次成交的成本拆解，只在成交瞬间存在，不落库。
type Breakdown struct {
	Value      float64 `json:"value"`
	Commission float64 `json:"commission"`
	Tax        float64 `json:"tax"`
	Slippage   float64 `json:"slippage"`
}

// Total 返回佣金+税+滑点之和。
func (b Breakdown) Total() float64 {
	return b.Commission + b.Tax + b.Slippage
}

// TotalBps 返回总成本占成交额的基点数；成交额为零时返回 0。
func (b Breakdown) TotalBps() float64 {
	if b.Value == 0 {
		return 0
	}
	return b.Total() / b.Value * 10_000
}

// Input 描述一次待计费的成交。Volume/Volatility 只有对应滑点模型才会用到。
type Input struct {
	Price      float64
	Quantity   float64
	Side       Side
	Volume     float64 // 日均成交量，可为 0
	Volatility float64 // 已实现波动率，可为 0
}

// Model 是纯函数式的成本模型，配置之外不携带状态。
type Model struct {
	schedule BrokerSchedule
	taxRate  float64
	slippage SlippageModel
	baseBps  float64
}

// New 按配置构造成本模型。未知券商 id 记警告并使用 DefaultBroker，不报错。
func New(cfg Config) *Model {
	schedule, ok := cfg.Brokers[cfg.Broker]
	if !ok {
		if cfg.Broker != "" {
			logger.Warnf("[cost] 未知券商 %q，使用默认佣金表", cfg.Broker)
		}
		schedule = DefaultBroker
	}
	baseBps := cfg.SlippageBps
	if baseBps < 0 {
		baseBps = 0
	}
	return &Model{
		schedule: schedule,
		taxRate:  cfg.TaxRate,
		slippage: ParseSlippageModel(cfg.Slippage),
		baseBps:  baseBps,
	}
}

// Estimate 计算一次成交的成本拆解。无副作用。
func (m *Model) Estimate(in Input) Breakdown {
	value := in.Price * in.Quantity
	if value <= 0 {
		return Breakdown{}
	}
	return Breakdown{
		Value:      value,
		Commission: m.commission(value),
		Tax:        m.tax(value, in.Side),
		Slippage:   m.slippageCost(value, in),
	}
}

func (m *Model) commission(value float64) float64 {
	c := value * m.schedule.Rate
	if m.schedule.Cap > 0 && c > m.schedule.Cap {
		c = m.schedule.Cap
	}
	if c < m.schedule.Floor {
		c = m.schedule.Floor
	}
	return c
}

// tax 只对卖出收取交易税。
func (m *Model) tax(value float64, side Side) float64 {
	if side != Sell {
		return 0
	}
	return value * m.taxRate
}

func (m *Model) slippageCost(value float64, in Input) float64 {
	base := value * m.baseBps / 10_000
	switch m.slippage {
	case SlippageVolume:
		if in.Volume <= 0 {
			return base
		}
		scaled := base * math.Sqrt(in.Quantity/in.Volume)
		return math.Min(scaled, value*0.01)
	case SlippageVolatility:
		vol := math.Max(in.Volatility, 0.001)
		scaled := base * (1 + 10*vol)
		return math.Min(scaled, value*0.02)
	default:
		return base
	}
}
