// Package source 提供行情数据源：本地 CSV/JSON 文件与 Binance 日线。
// 数据源只负责产出按日期排好的 Bars，缺口处理是引擎的事。
package source

import (
	"context"

	"kosim/internal/market"
)

// Request 描述一次拉取。本地文件源只用 Path，远端源用代码与区间。
type Request struct {
	Code  string
	Path  string
	Start int64 // Unix 毫秒，0 不限
	End   int64
	Limit int
}

// Source 是行情数据源的统一入口。
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) (market.Bars, error)
}
