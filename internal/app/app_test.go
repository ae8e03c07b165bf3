package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kcfg "kosim/internal/config"
	"kosim/internal/market"
	"kosim/internal/store"
)

// memCache 足够 Build 流程使用的内存桩。
type memCache struct {
	bars map[string]market.Bars
}

func (m *memCache) SaveBars(_ context.Context, code, _ string, bars market.Bars) error {
	if m.bars == nil {
		m.bars = make(map[string]market.Bars)
	}
	m.bars[code] = bars
	return nil
}

func (m *memCache) LoadBars(_ context.Context, code string, _, _ int64) (market.Bars, error) {
	return m.bars[code], nil
}

func (m *memCache) Datasets(context.Context) ([]store.Dataset, error) { return nil, nil }
func (m *memCache) Close() error                                      { return nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(t *testing.T) *kcfg.Config {
	t.Helper()
	dir := t.TempDir()
	return &kcfg.Config{
		App: kcfg.AppConfig{LogLevel: "info", HTTPAddr: ":0"},
		Data: kcfg.DataConfig{
			CachePath:  filepath.Join(dir, "bars.db"),
			ResultsDir: filepath.Join(dir, "results"),
		},
		Simulation: kcfg.SimulationConfig{MaxConcurrent: 1},
	}
}

func TestBuildAssemblesApp(t *testing.T) {
	b := NewAppBuilder(testConfig(t), WithBarCache(func(kcfg.DataConfig) (store.BarStore, error) {
		return &memCache{}, nil
	}))
	app, err := b.Build(context.Background())
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Simulator())
	assert.NotNil(t, app.server)
	assert.NotNil(t, app.results)
	assert.Nil(t, app.brokers, "未配置费率表时不应创建 loader")
}

func TestBuildWithBrokerProfile(t *testing.T) {
	cfg := testConfig(t)
	profile := filepath.Join(t.TempDir(), "brokers.yaml")
	writeFile(t, profile, "default: alpha\nbrokers:\n  alpha:\n    rate: 0.00015\n    floor: 100\n")
	cfg.Simulation.BrokerProfile = profile

	b := NewAppBuilder(cfg, WithBarCache(func(kcfg.DataConfig) (store.BarStore, error) {
		return &memCache{}, nil
	}))
	app, err := b.Build(context.Background())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.brokers)
	assert.Equal(t, "alpha", app.brokers.Snapshot().Default)
}

func TestNewAppNilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}
