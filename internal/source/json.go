package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"kosim/internal/market"
)

// JSONSource 读取 bar 数组的 JSON 文件。根节点可以是数组，
// 也可以是带 "bars" 字段的对象。
type JSONSource struct{}

func NewJSONSource() *JSONSource { return &JSONSource{} }

func (s *JSONSource) Name() string { return "json" }

func (s *JSONSource) Fetch(_ context.Context, req Request) (market.Bars, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("json source: path 不能为空")
	}
	raw, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("json source: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("json source: %s 不是合法 JSON", req.Path)
	}
	root := gjson.ParseBytes(raw)
	list := root
	if !root.IsArray() {
		list = root.Get("bars")
		if !list.IsArray() {
			return nil, fmt.Errorf("json source: %s 根节点既不是数组也没有 bars 字段", req.Path)
		}
	}

	var bars market.Bars
	var parseErr error
	list.ForEach(func(idx, item gjson.Result) bool {
		date, err := parseDate(item.Get("date").String())
		if err != nil {
			parseErr = fmt.Errorf("json source: 第 %d 个 bar 日期无效: %w", int(idx.Int())+1, err)
			return false
		}
		bars = append(bars, market.Bar{
			Date:   date,
			Open:   item.Get("open").Float(),
			High:   item.Get("high").Float(),
			Low:    item.Get("low").Float(),
			Close:  item.Get("close").Float(),
			Volume: item.Get("volume").Float(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return bars, nil
}
