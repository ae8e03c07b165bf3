// Package loader 监听券商费率表文件，支持运行中热更新。
package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"kosim/internal/cost"
	"kosim/internal/logger"
)

// FileConfig 是费率表文件结构。
type FileConfig struct {
	Default string                         `mapstructure:"default"`
	Brokers map[string]cost.BrokerSchedule `mapstructure:"brokers"`
}

// BrokerSnapshot 对外暴露的只读快照。
type BrokerSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Default  string
	Brokers  map[string]cost.BrokerSchedule
}

// Schedule 返回指定券商的费率，id 为空时用 Default，都查不到回退内置缺省。
func (s BrokerSnapshot) Schedule(id string) cost.BrokerSchedule {
	if id == "" {
		id = s.Default
	}
	if b, ok := s.Brokers[id]; ok {
		return b
	}
	return cost.DefaultBroker
}

// ChangeListener 在费率表变更时被调用。
type ChangeListener func(BrokerSnapshot)

// BrokerLoader 负责从 YAML 文件加载券商费率并监听热更新。
type BrokerLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  BrokerSnapshot
	listeners []ChangeListener
}

// NewBrokerLoader 读取费率表并开始监听 FS 事件。
func NewBrokerLoader(path string) (*BrokerLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("broker loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read broker config failed: %w", err)
	}
	loader := &BrokerLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("broker reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot 返回当前费率快照（深拷贝）。
func (l *BrokerLoader) Snapshot() BrokerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *BrokerLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("broker listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *BrokerLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("broker listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *BrokerLoader) reload() error {
	var fileCfg FileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse broker config failed: %w", err)
	}
	normalized := make(map[string]cost.BrokerSchedule, len(fileCfg.Brokers))
	for id, b := range fileCfg.Brokers {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if b.Rate < 0 || b.Rate >= 1 {
			return fmt.Errorf("broker %s: rate must be in [0, 1)", id)
		}
		normalized[id] = b
	}
	def := strings.ToLower(strings.TrimSpace(fileCfg.Default))
	if def != "" {
		if _, ok := normalized[def]; !ok {
			return fmt.Errorf("default broker %q not defined", def)
		}
	}
	l.mu.Lock()
	l.snapshot = BrokerSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Default:  def,
		Brokers:  normalized,
	}
	l.mu.Unlock()
	logger.Infof("Broker loader reloaded %d schedules from %s", len(normalized), filepath.Base(l.path))
	return nil
}

func cloneSnapshot(in BrokerSnapshot) BrokerSnapshot {
	out := in
	out.Brokers = make(map[string]cost.BrokerSchedule, len(in.Brokers))
	for k, v := range in.Brokers {
		out.Brokers[k] = v
	}
	return out
}
