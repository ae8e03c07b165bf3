package market

import (
	"sort"
	"time"
)

// Instrument 是标的的整型句柄，代替散落各处的字符串代码作 map 键。
type Instrument int

// None 表示未注册的标的。
const None Instrument = -1

// Universe 维护标的代码与句柄的双向映射，以及各标的的行情序列。
// 句柄在一次回测内稳定，按注册顺序递增。
type Universe struct {
	codes   []string
	handles map[string]Instrument
	series  []*Series
}

func NewUniverse() *Universe {
	return &Universe{handles: make(map[string]Instrument)}
}

// Register 注册标的并绑定行情序列，重复注册覆盖序列并返回原句柄。
func (u *Universe) Register(code string, s *Series) Instrument {
	if h, ok := u.handles[code]; ok {
		u.series[h] = s
		return h
	}
	h := Instrument(len(u.codes))
	u.codes = append(u.codes, code)
	u.series = append(u.series, s)
	u.handles[code] = h
	return h
}

// Lookup 按代码取句柄。
func (u *Universe) Lookup(code string) (Instrument, bool) {
	h, ok := u.handles[code]
	if !ok {
		return None, false
	}
	return h, true
}

// Code 按句柄取代码；非法句柄返回空串。
func (u *Universe) Code(h Instrument) string {
	if h < 0 || int(h) >= len(u.codes) {
		return ""
	}
	return u.codes[h]
}

// Series 按句柄取行情序列。
func (u *Universe) Series(h Instrument) *Series {
	if h < 0 || int(h) >= len(u.series) {
		return nil
	}
	return u.series[h]
}

// Size 返回注册标的数量。
func (u *Universe) Size() int { return len(u.codes) }

// Instruments 返回全部句柄，按注册顺序。
func (u *Universe) Instruments() []Instrument {
	out := make([]Instrument, len(u.codes))
	for i := range u.codes {
		out[i] = Instrument(i)
	}
	return out
}

// DateUnion 返回所有标的交易日的并集，升序，可选 start/end 边界（零值不限）。
func (u *Universe) DateUnion(start, end time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, s := range u.series {
		for _, d := range s.Dates() {
			if !start.IsZero() && d.Before(Day(start)) {
				continue
			}
			if !end.IsZero() && d.After(Day(end)) {
				continue
			}
			seen[d] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
