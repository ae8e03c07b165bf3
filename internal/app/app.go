// Package app 负责应用级编排：加载配置→装配依赖→启动回测服务。
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"kosim/internal/backtest"
	kcfg "kosim/internal/config"
	cfgloader "kosim/internal/config/loader"
	"kosim/internal/logger"
	"kosim/internal/store"
)

type App struct {
	cfg     *kcfg.Config
	cache   store.BarStore
	results *backtest.ResultStore
	sim     *backtest.Simulator
	server  *backtest.HTTPServer
	brokers *cfgloader.BrokerLoader
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *kcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 结束。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	a.sim.SetContext(ctx)
	group.Go(func() error {
		logger.Infof("回测服务监听 %s", a.cfg.App.HTTPAddr)
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("backtest http server error: %w", err)
		}
		return nil
	})

	err := group.Wait()
	a.Close()
	return err
}

// Simulator 暴露底层模拟器（测试与脚本用）。
func (a *App) Simulator() *backtest.Simulator {
	if a == nil {
		return nil
	}
	return a.sim
}

// Close 释放存储资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.results != nil {
		_ = a.results.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
