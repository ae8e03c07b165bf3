package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kosim/internal/cost"
	"kosim/internal/engine"
	"kosim/internal/logger"
	"kosim/internal/market"
	"kosim/internal/source"
	"kosim/internal/store"
	"kosim/internal/strategy"
)

type SimulatorConfig struct {
	Results       *ResultStore
	Sources       map[string]source.Source
	Cache         store.BarStore // 可为空；有则本地源写入、cache 源读取
	MaxConcurrent int
	Report        ReportOptions
}

// Simulator 负责把场景推演成资金曲线与交易流水，任务异步执行。
type Simulator struct {
	results *ResultStore
	sources map[string]source.Source
	cache   store.BarStore

	sem     chan struct{}
	baseCtx context.Context
	report  ReportOptions

	brokerMu      sync.RWMutex
	defaultBroker string
	brokers       map[string]cost.BrokerSchedule
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	if len(cfg.Sources) == 0 && cfg.Cache == nil {
		return nil, fmt.Errorf("至少需要一个数据源或缓存")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sources := make(map[string]source.Source, len(cfg.Sources))
	for k, v := range cfg.Sources {
		sources[k] = v
	}
	return &Simulator{
		results: cfg.Results,
		sources: sources,
		cache:   cfg.Cache,
		sem:     make(chan struct{}, maxConcurrent),
		baseCtx: context.Background(),
		report:  cfg.Report,
	}, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Simulator) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Simulator) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// SetBrokerDefaults 注入券商费率表，场景未显式配置时生效。
// 费率表支持热更新，已在跑的任务不受影响。
func (s *Simulator) SetBrokerDefaults(def string, brokers map[string]cost.BrokerSchedule) {
	s.brokerMu.Lock()
	defer s.brokerMu.Unlock()
	s.defaultBroker = def
	s.brokers = make(map[string]cost.BrokerSchedule, len(brokers))
	for k, v := range brokers {
		s.brokers[k] = v
	}
}

func (s *Simulator) applyBrokerDefaults(sc Scenario) Scenario {
	s.brokerMu.RLock()
	defer s.brokerMu.RUnlock()
	if len(sc.Cost.Brokers) > 0 || len(s.brokers) == 0 {
		return sc
	}
	sc.Cost.Brokers = make(map[string]cost.BrokerSchedule, len(s.brokers))
	for k, v := range s.brokers {
		sc.Cost.Brokers[k] = v
	}
	if sc.Cost.Broker == "" {
		sc.Cost.Broker = s.defaultBroker
	}
	return sc
}

// StartRun 校验场景、登记 pending 记录并异步执行。
func (s *Simulator) StartRun(sc Scenario) (Run, error) {
	if err := sc.Validate(); err != nil {
		return Run{}, err
	}
	sc = s.applyBrokerDefaults(sc)
	start, end, err := sc.timeRange()
	if err != nil {
		return Run{}, err
	}
	codes := make([]string, 0, len(sc.Instruments))
	for _, inst := range sc.Instruments {
		codes = append(codes, inst.Code)
	}
	run := Run{
		ID:          uuid.NewString(),
		Name:        sc.Name,
		Status:      RunStatusPending,
		Codes:       codes,
		Strategy:    sc.Strategy,
		InitialCash: sc.InitialCash,
		Scenario:    sc,
		CreatedAt:   time.Now(),
	}
	if !start.IsZero() {
		run.StartTS = start.UnixMilli()
	}
	if !end.IsZero() {
		run.EndTS = end.UnixMilli()
	}
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	logger.Infof("[backtest] 任务 %s 提交：%s 策略=%s 标的=%d", run.ID, run.Name, run.Strategy, len(codes))

	go s.runLoop(run.ID, sc)
	return run, nil
}

func (s *Simulator) runLoop(runID string, sc Scenario) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		_ = s.results.UpdateRunStatus(context.Background(), runID, RunStatusFailed, "服务已关闭")
		return
	}
	defer func() { <-s.sem }()

	ctx := s.ctx()
	if err := s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, ""); err != nil {
		logger.Warnf("[backtest] 任务 %s 状态更新失败: %v", runID, err)
	}
	if err := s.execute(ctx, runID, sc); err != nil {
		logger.Errorf("[backtest] 任务 %s 失败: %v", runID, err)
		_ = s.results.UpdateRunStatus(context.Background(), runID, RunStatusFailed, err.Error())
	}
}

func (s *Simulator) execute(ctx context.Context, runID string, sc Scenario) error {
	universe, err := s.loadUniverse(ctx, sc)
	if err != nil {
		return err
	}
	strat, err := strategy.New(sc.Strategy, sc.Params)
	if err != nil {
		return err
	}
	signals := make(map[market.Instrument]market.HoldSeries)
	for _, inst := range universe.Instruments() {
		signals[inst] = strat.Signals(universe.Series(inst).Bars())
	}

	params, err := sc.EngineParams()
	if err != nil {
		return err
	}
	results, err := engine.New(params, universe, signals).Run(ctx)
	if err != nil {
		return err
	}
	if results.NoData {
		return fmt.Errorf("区间内没有任何行情数据")
	}
	// 报告先于终态落地：状态翻到 done 时报告一定已经写完
	s.writeReport(ctx, runID, sc.Name, results)
	return s.persist(ctx, runID, universe, results)
}

func (s *Simulator) loadUniverse(ctx context.Context, sc Scenario) (*market.Universe, error) {
	universe := market.NewUniverse()
	start, end, _ := sc.timeRange()
	var startMs, endMs int64
	if !start.IsZero() {
		startMs = start.UnixMilli()
	}
	if !end.IsZero() {
		endMs = end.UnixMilli()
	}
	for _, inst := range sc.Instruments {
		var bars market.Bars
		var err error
		switch inst.Source {
		case "cache":
			if s.cache == nil {
				return nil, fmt.Errorf("标的 %s 指定 cache 数据源，但缓存未配置", inst.Code)
			}
			bars, err = s.cache.LoadBars(ctx, inst.Code, startMs/1000, endMs/1000)
		default:
			src, ok := s.sources[inst.Source]
			if !ok {
				return nil, fmt.Errorf("标的 %s 使用未知数据源 %q", inst.Code, inst.Source)
			}
			bars, err = src.Fetch(ctx, source.Request{
				Code:  inst.Code,
				Path:  inst.Path,
				Start: startMs,
				End:   endMs,
			})
			if err == nil && s.cache != nil {
				if cerr := s.cache.SaveBars(ctx, inst.Code, src.Name(), bars); cerr != nil {
					logger.Warnf("[backtest] 缓存 %s 失败: %v", inst.Code, cerr)
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("装载 %s 行情失败: %w", inst.Code, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("标的 %s 在区间内没有行情", inst.Code)
		}
		universe.Register(inst.Code, market.NewSeries(bars))
	}
	return universe, nil
}

func (s *Simulator) persist(ctx context.Context, runID string, universe *market.Universe, results engine.Results) error {
	tradeRows := make([]TradeRow, 0, len(results.Trades))
	for _, tr := range results.Trades {
		code := tr.Code
		if code == "" {
			code = universe.Code(tr.Instrument)
		}
		tradeRows = append(tradeRows, TradeRow{
			RunID:       runID,
			Code:        code,
			EntryTS:     tr.EntryDate.UnixMilli(),
			ExitTS:      tr.ExitDate.UnixMilli(),
			EntryPrice:  tr.EntryPrice,
			ExitPrice:   tr.ExitPrice,
			Quantity:    tr.Quantity,
			Commission:  tr.Commission,
			Tax:         tr.Tax,
			NetPnL:      tr.NetPnL,
			HoldingDays: tr.HoldingDays,
		})
	}
	if err := s.results.InsertTrades(ctx, tradeRows); err != nil {
		return err
	}

	equityRows := make([]EquityRow, 0, len(results.Equity))
	for _, p := range results.Equity {
		equityRows = append(equityRows, EquityRow{RunID: runID, TS: p.Date.UnixMilli(), Equity: p.Value})
	}
	if err := s.results.InsertEquity(ctx, equityRows); err != nil {
		return err
	}

	stats := RunStats{
		InitialValue: results.InitialValue,
		FinalValue:   results.FinalValue,
		TotalReturn:  results.Metrics.TotalReturn,
		AnnualReturn: results.Metrics.AnnualReturn,
		Sharpe:       results.Metrics.Sharpe,
		MaxDrawdown:  results.Metrics.MaxDrawdown,
		WinRate:      results.TradeStats.WinRate,
		Trades:       results.TradeStats.Total,
		Metrics:      results.Flat(),
		Positions:    results.Positions,
		FinishedAt:   time.Now(),
	}
	logger.Infof("[backtest] 任务 %s 完成：收益 %.2f%% 交易 %d 笔", runID, stats.TotalReturn*100, stats.Trades)
	return s.results.UpdateRunSummary(ctx, runID, RunStatusDone, stats, "")
}
