package app

import (
	"context"
	"fmt"
	"time"

	"kosim/internal/backtest"
	kcfg "kosim/internal/config"
	cfgloader "kosim/internal/config/loader"
	"kosim/internal/logger"
	"kosim/internal/source"
	"kosim/internal/store"
	"kosim/internal/store/sqlite"
)

// AppBuilder 逐层装配依赖，override 钩子留给测试替换重实现。
type AppBuilder struct {
	cfg *kcfg.Config

	cacheFn   func(kcfg.DataConfig) (store.BarStore, error)
	resultsFn func(kcfg.DataConfig) (*backtest.ResultStore, error)
	sourcesFn func(kcfg.DataConfig) map[string]source.Source
	brokersFn func(string) (*cfgloader.BrokerLoader, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *kcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		cacheFn:   buildBarCache,
		resultsFn: buildResultStore,
		sourcesFn: buildSources,
		brokersFn: cfgloader.NewBrokerLoader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithBarCache 替换日线缓存实现（测试用）。
func WithBarCache(fn func(kcfg.DataConfig) (store.BarStore, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.cacheFn = fn }
}

func buildBarCache(data kcfg.DataConfig) (store.BarStore, error) {
	return sqlite.NewSqliteStore(data.CachePath)
}

func buildResultStore(data kcfg.DataConfig) (*backtest.ResultStore, error) {
	return backtest.NewResultStore(data.ResultsDir)
}

func buildSources(data kcfg.DataConfig) map[string]source.Source {
	return map[string]source.Source{
		"csv":     source.NewCSVSource(),
		"json":    source.NewJSONSource(),
		"binance": source.NewBinanceSource(data.BinanceBaseURL),
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg

	cache, err := b.cacheFn(cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("初始化日线缓存失败: %w", err)
	}
	results, err := b.resultsFn(cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}

	sim, err := backtest.NewSimulator(backtest.SimulatorConfig{
		Results:       results,
		Sources:       b.sourcesFn(cfg.Data),
		Cache:         cache,
		MaxConcurrent: cfg.Simulation.MaxConcurrent,
		Report: backtest.ReportOptions{
			OutputDir: cfg.Report.OutputDir,
			RenderPNG: cfg.Report.RenderPNG,
			Timeout:   time.Duration(cfg.Report.TimeoutSeconds) * time.Second,
		},
	})
	if err != nil {
		return nil, err
	}

	var brokers *cfgloader.BrokerLoader
	if cfg.Simulation.BrokerProfile != "" {
		brokers, err = b.brokersFn(cfg.Simulation.BrokerProfile)
		if err != nil {
			return nil, fmt.Errorf("加载券商费率表失败: %w", err)
		}
		brokers.Subscribe(func(snap cfgloader.BrokerSnapshot) {
			sim.SetBrokerDefaults(snap.Default, snap.Brokers)
			logger.Infof("券商费率表已更新（v%d，%d 家）", snap.Version, len(snap.Brokers))
		})
	}

	server, err := backtest.NewHTTPServer(backtest.HTTPConfig{
		Addr:      cfg.App.HTTPAddr,
		Simulator: sim,
		Results:   results,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		cache:   cache,
		results: results,
		sim:     sim,
		server:  server,
		brokers: brokers,
	}, nil
}
