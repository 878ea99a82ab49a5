// Package main 是交易成本模拟器的入口点。
// 模拟器订阅 OKX L2 行情（或回放 JSONL 行情文件），对每条订单簿
// 更新重算一次完整交易成本：滑点、手续费、市场冲击、Maker/Taker
// 占比与合计净成本，并记录每 tick 的处理延迟。
//
// 重要：本系统仅做成本估算，严禁真实下单。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"okx-trade-simulator/internal/config"
	"okx-trade-simulator/internal/core/engine"
	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/core/store"
	"okx-trade-simulator/internal/cost/fee"
	"okx-trade-simulator/internal/cost/fitted"
	"okx-trade-simulator/internal/cost/impact"
	"okx-trade-simulator/internal/cost/makertaker"
	"okx-trade-simulator/internal/cost/slippage"
	"okx-trade-simulator/internal/exchange/okx"
	"okx-trade-simulator/internal/exchange/replay"
	"okx-trade-simulator/internal/logger"
	"okx-trade-simulator/internal/output/jsonl"
	"okx-trade-simulator/internal/stats/perf"
	"okx-trade-simulator/internal/util/timeutil"
)

type metricsSnapshot struct {
	// TsUnixNs 指标采集时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`

	// OKX OKX 连接指标（回放模式下为空）
	OKX *okx.ConnectionMetrics `json:"okx,omitempty"`

	// Engines 按交易对的性能统计
	Engines []enginePerf `json:"engines"`
}

type enginePerf struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// SimulationID 模拟运行标识
	SimulationID string `json:"simulation_id"`
	// Perf 性能统计快照
	Perf perf.Stats `json:"perf"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
	})
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	// 构建成本模型（文件缺省时使用内置系数）
	slipModel, err := loadSlippage(cfg.Models.SlippageFile)
	if err != nil {
		log.Error("加载滑点模型失败", zap.Error(err))
		os.Exit(1)
	}
	mtModel, err := loadMakerTaker(cfg.Models.MakerTakerFile)
	if err != nil {
		log.Error("加载 Maker/Taker 模型失败", zap.Error(err))
		os.Exit(1)
	}
	impactModel, err := loadImpact(cfg.Models.ImpactFile, impact.Basis(cfg.Models.ImpactBasis))
	if err != nil {
		log.Error("加载冲击模型失败", zap.Error(err))
		os.Exit(1)
	}
	feeModel := fee.New(cfg.FeeTable())

	// 每个交易对一个引擎，共享成本模型，性能统计各自独立
	symbols := cfg.GetSymbolInputs()
	engines := store.New()
	for _, sym := range symbols {
		e := engine.New(log, engine.Options{
			Fee:        feeModel,
			Slippage:   slipModel,
			MakerTkr:   mtModel,
			Impact:     impactModel,
			PerfWindow: cfg.Perf.WindowSize,
		})

		params := cfg.Simulation.Clone()
		params.Symbol = sym
		if err := e.Configure(params); err != nil {
			log.Error("配置引擎失败", zap.String("symbol", sym), zap.Error(err))
			os.Exit(1)
		}
		engines.Register(sym, e)
	}
	log.Info("引擎已就绪", zap.Int("symbols", engines.Len()))

	var resultsWriter *jsonl.Writer
	var metricsWriter *jsonl.Writer
	if cfg.Output.ResultsEnabled {
		resultsWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/results.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			log.Error("创建 results writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}
	if cfg.Output.MetricsEnabled {
		metricsWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/metrics.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			log.Error("创建 metrics writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}

	// 数据源：配置了回放文件时走离线回放，否则连接 OKX WebSocket
	var bookCh <-chan *model.BookUpdate
	var okxClient *okx.Client
	if cfg.Replay.File != "" {
		src := replay.New(cfg.Replay.File, cfg.Replay.IntervalMs, symbols, log)
		bookCh = src.BookCh()
		go func() {
			if err := src.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("回放失败", zap.Error(err))
			}
		}()
	} else {
		okxClient = okx.NewClient(&cfg.WS.OKX, symbols, log)

		startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
		defer startCancel()

		if err := okxClient.Connect(startCtx); err != nil {
			log.Error("OKX 连接失败", zap.Error(err))
			os.Exit(1)
		}
		if err := okxClient.Subscribe(); err != nil {
			log.Error("OKX 订阅失败", zap.Error(err))
			os.Exit(1)
		}

		go okxClient.Run(ctx)
		bookCh = okxClient.BookCh()
	}

	if err := runAggregator(ctx, log, engines, bookCh, okxClient, resultsWriter, metricsWriter, cfg.Output.MetricsIntervalMs); err != nil {
		log.Error("聚合器退出", zap.Error(err))
	}

	// 输出最后一条 metrics 快照（便于离线复盘）
	if metricsWriter != nil {
		_ = metricsWriter.Write(buildSnapshot(engines, okxClient))
		_ = metricsWriter.Flush()
	}

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if okxClient != nil {
			_ = okxClient.Close()
		}
		if resultsWriter != nil {
			_ = resultsWriter.Close()
		}
		if metricsWriter != nil {
			_ = metricsWriter.Close()
		}
	}()

	select {
	case <-shutdownCtx.Done():
		log.Warn("关闭超时，强制退出")
	case <-done:
		log.Info("关闭完成")
	}
}

// loadSlippage 加载滑点回归系数
// 文件路径为空时使用内置系数。
func loadSlippage(path string) (*slippage.Model, error) {
	if path == "" {
		return slippage.Default(), nil
	}
	c, err := fitted.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return slippage.New(c)
}

// loadMakerTaker 加载 Maker/Taker 逻辑回归系数
// 文件路径为空时使用内置系数。
func loadMakerTaker(path string) (*makertaker.Model, error) {
	if path == "" {
		return makertaker.Default(), nil
	}
	c, err := fitted.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return makertaker.New(c)
}

// loadImpact 加载 Almgren-Chriss 冲击参数
// 文件路径为空时使用内置参数。
func loadImpact(path string, basis impact.Basis) (*impact.Model, error) {
	if path == "" {
		return impact.New(impact.DefaultParameters(), basis)
	}
	p, err := impact.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return impact.New(p, basis)
}

func runAggregator(
	ctx context.Context,
	log *zap.Logger,
	engines *store.Store,
	bookCh <-chan *model.BookUpdate,
	okxClient *okx.Client,
	resultsWriter *jsonl.Writer,
	metricsWriter *jsonl.Writer,
	metricsIntervalMs int,
) error {
	if metricsIntervalMs <= 0 {
		metricsIntervalMs = 10000
	}
	metricsTicker := time.NewTicker(time.Duration(metricsIntervalMs) * time.Millisecond)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case update, ok := <-bookCh:
			if !ok {
				// 回放完成或客户端关闭
				return nil
			}
			handleBookUpdate(log, engines, resultsWriter, update)

		case <-metricsTicker.C:
			if metricsWriter == nil {
				continue
			}
			_ = metricsWriter.Write(buildSnapshot(engines, okxClient))
			_ = metricsWriter.Flush()
		}
	}
}

func handleBookUpdate(
	log *zap.Logger,
	engines *store.Store,
	resultsWriter *jsonl.Writer,
	update *model.BookUpdate,
) {
	if update == nil || update.Symbol == "" {
		return
	}

	e := engines.Get(update.Symbol)
	if e == nil {
		return
	}

	result, err := e.ProcessTick(update)
	if err != nil {
		// 非法消息已在引擎内记录，聚合器只跳过
		return
	}

	if result.Degraded {
		log.Debug("tick 结果降级",
			zap.String("symbol", update.Symbol),
			zap.Bool("fee_valid", result.FeeUSD.Valid),
			zap.Bool("slippage_valid", result.SlippagePct.Valid),
			zap.Bool("impact_valid", result.MarketImpactPct.Valid))
	}

	if resultsWriter != nil {
		_ = resultsWriter.Write(result)
	}
}

func buildSnapshot(engines *store.Store, okxClient *okx.Client) metricsSnapshot {
	snap := metricsSnapshot{
		TsUnixNs: timeutil.NowNano(),
	}
	if okxClient != nil {
		m := okxClient.Metrics()
		snap.OKX = &m
	}
	for _, sym := range engines.Symbols() {
		e := engines.Get(sym)
		snap.Engines = append(snap.Engines, enginePerf{
			Symbol:       sym,
			SimulationID: e.SimulationID(),
			Perf:         e.Monitor().Snapshot(),
		})
	}
	return snap
}
