package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"kosim/internal/market"
)

// CSVSource 读取 date,open,high,low,close,volume 格式的本地文件。
// 首行允许是表头（date 列无法解析时跳过）。
type CSVSource struct{}

func NewCSVSource() *CSVSource { return &CSVSource{} }

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Fetch(_ context.Context, req Request) (market.Bars, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("csv source: path 不能为空")
	}
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv source: 解析 %s 失败: %w", req.Path, err)
	}

	var bars market.Bars
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("csv source: %s 第 %d 行字段不足", req.Path, i+1)
		}
		date, err := parseDate(row[0])
		if err != nil {
			if i == 0 {
				continue // 表头
			}
			return nil, fmt.Errorf("csv source: %s 第 %d 行日期无效: %w", req.Path, i+1, err)
		}
		bar := market.Bar{Date: date}
		fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
		for j, dst := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv source: %s 第 %d 行第 %d 列: %w", req.Path, i+1, j+2, err)
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return market.Day(t), nil
		}
	}
	// Unix 毫秒兜底
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return market.Day(time.UnixMilli(ms)), nil
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
}
