package config

import (
	"kosim/internal/cost"
	"kosim/internal/exec"
	"kosim/internal/metrics"
)

// Config 是 kosim 的主配置载体。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Data       DataConfig       `mapstructure:"data"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Cost       cost.Config      `mapstructure:"cost"`
	Exec       exec.Config      `mapstructure:"exec"`
	Metrics    metrics.Config   `mapstructure:"metrics"`
	Report     ReportConfig     `mapstructure:"report"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// DataConfig 描述行情数据的来源与缓存位置。
type DataConfig struct {
	CachePath      string `mapstructure:"cache_path"`  // gorm 日线缓存
	ResultsDir     string `mapstructure:"results_dir"` // runs.db 目录
	BinanceBaseURL string `mapstructure:"binance_base_url"`
}

type SimulationConfig struct {
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	BrokerProfile string `mapstructure:"broker_profile"` // 券商费率表，支持热更新
}

type ReportConfig struct {
	OutputDir      string `mapstructure:"output_dir"`
	RenderPNG      bool   `mapstructure:"render_png"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}
