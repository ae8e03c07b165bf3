package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(`{
		"name": "samsung-daily",
		"initial_cash": 100000000,
		"start": "2024-01-02",
		"end": "2024-06-28",
		"strategy": "ma_cross",
		"params": {"fast": 5, "slow": 20},
		"instruments": [{"code": "005930", "path": "testdata/005930.csv"}],
		"cost": {"tax_rate": 0.0023, "slippage_bps": 2},
		"exec": {"partial_fills": true, "max_participation_rate": 0.1}
	}`))
	require.NoError(t, err)
	require.NoError(t, sc.Validate())

	assert.Equal(t, "samsung-daily", sc.Name)
	assert.Equal(t, "ma_cross", sc.Strategy)
	assert.Equal(t, 5, sc.Params["fast"])
	// path 给定且 source 省略时默认 csv
	assert.Equal(t, "csv", sc.Instruments[0].Source)
	assert.Equal(t, 0.0023, sc.Cost.TaxRate)
	assert.True(t, sc.Exec.PartialFills)

	params, err := sc.EngineParams()
	require.NoError(t, err)
	assert.Equal(t, 100000000.0, params.InitialCash)
	assert.Equal(t, 2024, params.Start.Year())
}

func TestParseScenarioSchemaRejects(t *testing.T) {
	cases := map[string]string{
		"缺 name":       `{"initial_cash": 1000, "instruments": [{"code": "005930"}]}`,
		"资金为零":         `{"name": "x", "initial_cash": 0, "instruments": [{"code": "005930"}]}`,
		"标的列表为空":       `{"name": "x", "initial_cash": 1000, "instruments": []}`,
		"标的缺 code":     `{"name": "x", "initial_cash": 1000, "instruments": [{}]}`,
		"source 不在枚举内": `{"name": "x", "initial_cash": 1000, "instruments": [{"code": "a", "source": "ftp"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseScenarioYAML(t *testing.T) {
	sc, err := ParseScenarioYAML([]byte(`
name: hynix-daily
initial_cash: 50000000
strategy: buy_hold
instruments:
  - code: "000660"
    source: cache
`))
	require.NoError(t, err)
	assert.Equal(t, "hynix-daily", sc.Name)
	assert.Equal(t, "buy_hold", sc.Strategy)
	assert.Equal(t, "cache", sc.Instruments[0].Source)
}

func TestScenarioValidateSemantics(t *testing.T) {
	sc, err := ParseScenario([]byte(`{
		"name": "x", "initial_cash": 1000, "start": "2024-06-01", "end": "2024-01-01",
		"instruments": [{"code": "005930", "source": "cache"}]
	}`))
	require.NoError(t, err)
	assert.Error(t, sc.Validate(), "end 早于 start 应被拒绝")

	sc2, err := ParseScenario([]byte(`{
		"name": "x", "initial_cash": 1000,
		"instruments": [{"code": "005930", "source": "csv"}]
	}`))
	require.NoError(t, err)
	assert.Error(t, sc2.Validate(), "csv 源缺 path 应被拒绝")
}
