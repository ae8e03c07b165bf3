package market

import "time"

// Bar 表示单只标的在某个交易日的一根 OHLCV 日线。
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type Bars []Bar

// Day 把时间归一化到 UTC 零点，作为模拟日历的键。
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Series 是单只标的按日期索引的 K 线序列，日期严格递增。
type Series struct {
	bars  Bars
	index map[time.Time]int
}

// NewSeries 按日期排序去重后建立索引。后写入的同日 bar 覆盖先写入的。
func NewSeries(bars Bars) *Series {
	s := &Series{index: make(map[time.Time]int, len(bars))}
	for _, b := range bars {
		b.Date = Day(b.Date)
		if i, ok := s.index[b.Date]; ok {
			s.bars[i] = b
			continue
		}
		// 保持递增插入；乱序输入走插入排序路径
		pos := len(s.bars)
		for pos > 0 && s.bars[pos-1].Date.After(b.Date) {
			pos--
		}
		s.bars = append(s.bars, Bar{})
		copy(s.bars[pos+1:], s.bars[pos:])
		s.bars[pos] = b
		for i := pos; i < len(s.bars); i++ {
			s.index[s.bars[i].Date] = i
		}
	}
	return s
}

// At 返回指定日期的 bar；缺失返回 false（数据缺口，不是错误）。
func (s *Series) At(date time.Time) (Bar, bool) {
	if s == nil {
		return Bar{}, false
	}
	i, ok := s.index[Day(date)]
	if !ok {
		return Bar{}, false
	}
	return s.bars[i], true
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// Bars 返回底层序列（调用方不得修改）。
func (s *Series) Bars() Bars {
	if s == nil {
		return nil
	}
	return s.bars
}

// Dates 返回序列覆盖的全部日期，升序。
func (s *Series) Dates() []time.Time {
	if s == nil {
		return nil
	}
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Date
	}
	return out
}

// HoldSeries 是对齐到日期的布尔持有信号，缺失日期视为 false。
type HoldSeries map[time.Time]bool

// Hold 读取某日信号，缺失=false。
func (h HoldSeries) Hold(date time.Time) bool {
	if h == nil {
		return false
	}
	return h[Day(date)]
}

// Set 写入某日信号。
func (h HoldSeries) Set(date time.Time, hold bool) {
	h[Day(date)] = hold
}
