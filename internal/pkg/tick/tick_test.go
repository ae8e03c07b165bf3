package tick

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeBands(t *testing.T) {
	cases := []struct {
		price float64
		want  float64
	}{
		{500, 1},
		{999, 1},
		{1_000, 5},
		{3_000, 5},
		{8_000, 10},
		{25_000, 50},
		{75_000, 100},
		{300_000, 500},
		{500_000, 1_000},
		{1_000_000, 1_000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Size(c.price), "price=%v", c.price)
	}
}

func TestRoundToGrid(t *testing.T) {
	cases := []struct {
		price float64
		want  float64
	}{
		{503.4, 503},
		{503.5, 504},
		{1_002, 1_000},
		{1_003, 1_005},
		{8_004, 8_000},
		{8_005, 8_010},
		{25_024, 25_000},
		{25_025, 25_050},
		{75_049, 75_000},
		{300_249, 300_000},
		{300_250, 300_500},
		{1_000_499, 1_000_000},
		{1_000_500, 1_001_000},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, Round(c.price), 1e-9, "price=%v", c.price)
	}
}

func TestRoundIdempotent(t *testing.T) {
	levels := []float64{500, 3_000, 8_000, 25_000, 75_000, 300_000, 1_000_000, 999.7, 4_998.2, 49_975, 512_345}
	for _, p := range levels {
		once := Round(p)
		assert.Equal(t, once, Round(once), "price=%v", p)
	}
}

func TestRoundNonPositive(t *testing.T) {
	assert.Equal(t, 0.0, Round(0))
	assert.Equal(t, 0.0, Round(-10))
}
