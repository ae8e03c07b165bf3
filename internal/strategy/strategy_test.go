package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kosim/internal/market"
)

func bars(closes ...float64) market.Bars {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(market.Bars, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func TestBuyHold(t *testing.T) {
	bs := bars(1, 2, 3)
	sig := BuyHold{}.Signals(bs)
	for _, b := range bs {
		assert.True(t, sig.Hold(b.Date))
	}
}

func TestMACrossTurnsOnInUptrend(t *testing.T) {
	// 前 10 根横盘，随后持续上涨：快线必然上穿慢线
	closes := make([]float64, 30)
	for i := range closes {
		if i < 10 {
			closes[i] = 1_000
		} else {
			closes[i] = 1_000 + float64(i-9)*50
		}
	}
	bs := bars(closes...)
	sig := NewMACross(3, 10).Signals(bs)

	assert.False(t, sig.Hold(bs[0].Date)) // 慢线未形成
	assert.True(t, sig.Hold(bs[len(bs)-1].Date))
}

func TestMACrossShortSeries(t *testing.T) {
	bs := bars(1, 2, 3)
	sig := NewMACross(3, 10).Signals(bs)
	for _, b := range bs {
		assert.False(t, sig.Hold(b.Date))
	}
}

func TestNewByName(t *testing.T) {
	s, err := New("ma_cross", map[string]int{"fast": 5, "slow": 20})
	require.NoError(t, err)
	assert.Equal(t, "ma_cross", s.Name())

	s, err = New("", nil)
	require.NoError(t, err)
	assert.Equal(t, "buy_hold", s.Name())

	_, err = New("bogus", nil)
	assert.Error(t, err)
}
