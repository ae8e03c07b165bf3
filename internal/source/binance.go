package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"kosim/internal/market"
)

// BinanceSource 通过 go-binance SDK 拉取现货日线，作为可选的远端数据源。
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource 构造匿名客户端；baseURL 为空用官方默认。
func NewBinanceSource(baseURL string) *BinanceSource {
	client := binance.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = baseURL
	}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Fetch(ctx context.Context, req Request) (market.Bars, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("binance source: code 不能为空")
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	svc := s.client.NewKlinesService().
		Symbol(strings.ToUpper(req.Code)).
		Interval("1d").
		Limit(limit)
	if req.Start > 0 {
		svc = svc.StartTime(req.Start)
	}
	if req.End > 0 {
		svc = svc.EndTime(req.End)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance source: %w", err)
	}
	bars := make(market.Bars, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, market.Bar{
			Date:   market.Day(time.UnixMilli(k.OpenTime)),
			Open:   parseFloat(k.Open),
			High:   parseFloat(k.High),
			Low:    parseFloat(k.Low),
			Close:  parseFloat(k.Close),
			Volume: parseFloat(k.Volume),
		})
	}
	return bars, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
