// Package store 提供日线数据的本地缓存，避免每次回测都打远端。
package store

import (
	"context"

	"kosim/internal/market"
)

// Dataset 描述某个代码在缓存里的概况。
type Dataset struct {
	Code      string
	Source    string
	BarCount  int
	FirstDate int64
	LastDate  int64
	Meta      map[string]string
}

type BarStore interface {
	// SaveBars 覆盖式写入：同 code+date 的旧行会被替换。
	SaveBars(ctx context.Context, code, source string, bars market.Bars) error
	// LoadBars 按日期升序返回；start/end 为 Unix 秒，0 不限。
	LoadBars(ctx context.Context, code string, start, end int64) (market.Bars, error)
	Datasets(ctx context.Context) ([]Dataset, error)
	Close() error
}
