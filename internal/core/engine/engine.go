// Package engine 实现单交易对的成本模拟引擎。
// 引擎串联订单簿、手续费/滑点/冲击/Maker-Taker 四个成本模型，
// 每收到一条行情 tick 重算一次完整成本结果，并记录处理延迟。
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"okx-trade-simulator/internal/core/book"
	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/cost/fee"
	"okx-trade-simulator/internal/cost/impact"
	"okx-trade-simulator/internal/cost/makertaker"
	"okx-trade-simulator/internal/cost/slippage"
	"okx-trade-simulator/internal/stats/perf"
	"okx-trade-simulator/internal/util/timeutil"
)

var (
	// ErrIncompleteParameters 模拟参数缺失或非法，拒绝配置
	ErrIncompleteParameters = errors.New("模拟参数不完整")
	// ErrNotConfigured 引擎未配置，不能处理 tick
	ErrNotConfigured = errors.New("引擎未配置")
	// ErrNoResultsYet 已配置但尚未处理任何 tick
	ErrNoResultsYet = errors.New("尚无模拟结果")
)

// State 引擎状态
type State int32

const (
	// StateIdle 初始状态，尚未配置
	StateIdle State = iota
	// StateConfigured 参数已就绪，等待首条 tick
	StateConfigured
	// StateRunning 已处理至少一条 tick
	StateRunning
)

// String 状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// Engine 单交易对成本模拟引擎
// ProcessTick 由互斥锁串行化：订单簿替换与特征提取不可并发。
// 参数通过指针整体交换，重配置不打断正在处理的 tick。
// 多个交易对各建一个引擎实例，实例间完全独立。
type Engine struct {
	// simulationID 本次模拟运行的唯一标识
	simulationID string

	logger *zap.Logger

	feeModel    *fee.Model
	slipModel   *slippage.Model
	mtModel     *makertaker.Model
	impactModel *impact.Model
	monitor     *perf.Monitor

	mu sync.Mutex
	// state 引擎状态，mu 保护
	state State
	// params 当前模拟参数（不可变快照），mu 保护
	params *model.Parameters
	// book 订单簿，mu 保护
	book *book.OrderBook
	// last 最近一条结果，mu 保护
	last *model.TickResult
}

// Options 引擎依赖
// 各模型为 nil 时使用对应缺省模型；Monitor 为 nil 时新建独立监视器。
type Options struct {
	Fee        *fee.Model
	Slippage   *slippage.Model
	MakerTkr   *makertaker.Model
	Impact     *impact.Model
	Monitor    *perf.Monitor
	PerfWindow int
}

// New 创建引擎（Idle 状态）
func New(logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Fee == nil {
		opts.Fee = fee.New(fee.DefaultTable())
	}
	if opts.Slippage == nil {
		opts.Slippage = slippage.Default()
	}
	if opts.MakerTkr == nil {
		opts.MakerTkr = makertaker.Default()
	}
	if opts.Impact == nil {
		opts.Impact, _ = impact.New(impact.DefaultParameters(), impact.BasisUSD)
	}
	if opts.Monitor == nil {
		win := opts.PerfWindow
		if win <= 0 {
			win = 10000
		}
		opts.Monitor = perf.NewMonitor(win)
	}

	return &Engine{
		simulationID: uuid.NewString(),
		logger:       logger,
		feeModel:     opts.Fee,
		slipModel:    opts.Slippage,
		mtModel:      opts.MakerTkr,
		impactModel:  opts.Impact,
		monitor:      opts.Monitor,
	}
}

// SimulationID 本次模拟运行的唯一标识
func (e *Engine) SimulationID() string {
	return e.simulationID
}

// Monitor 性能监视器
func (e *Engine) Monitor() *perf.Monitor {
	return e.monitor
}

// State 当前引擎状态
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Configure 配置或重配置模拟参数
// 参数整体替换，不支持逐字段修改；校验失败时旧参数保持生效。
// Running 状态下重配置不回退状态，下一条 tick 即用新参数。
func (e *Engine) Configure(p *model.Parameters) error {
	if p == nil {
		return fmt.Errorf("%w: 参数为空", ErrIncompleteParameters)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteParameters, err)
	}

	snap := p.Clone()

	e.mu.Lock()
	defer e.mu.Unlock()

	// 换交易对时重建订单簿，旧簿状态对新交易对无意义
	if e.book == nil || e.params == nil ||
		e.params.Exchange != snap.Exchange || e.params.Symbol != snap.Symbol {
		e.book = book.New(snap.Exchange, snap.Symbol)
	}
	e.params = snap
	if e.state == StateIdle {
		e.state = StateConfigured
	}

	e.logger.Info("引擎已配置",
		zap.String("simulation_id", e.simulationID),
		zap.String("symbol", snap.Symbol),
		zap.String("order_type", string(snap.OrderType)),
		zap.Float64("quantity_usd", snap.QuantityUSD))
	return nil
}

// Parameters 当前参数快照
// 返回: 参数副本；未配置时返回 ErrNotConfigured
func (e *Engine) Parameters() (*model.Parameters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return nil, ErrNotConfigured
	}
	return e.params.Clone(), nil
}

// ProcessTick 处理一条订单簿更新并产出完整成本结果
// 消息非法或深度不足时中止整个 tick，不产出结果（簿状态按
// book.Update 的语义保持或生效）。单个模型失败只令对应字段
// 失效并标记 Degraded，其余模型照常产出（部分失败语义）。
func (e *Engine) ProcessTick(u *model.BookUpdate) (*model.TickResult, error) {
	start := timeutil.NowNano()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateIdle || e.params == nil {
		return nil, ErrNotConfigured
	}
	p := e.params

	crossed := false
	updDur, err := e.book.Update(u)
	if err != nil {
		if !errors.Is(err, book.ErrCrossedBook) {
			e.logger.Warn("tick 被丢弃",
				zap.String("symbol", p.Symbol),
				zap.Error(err))
			return nil, err
		}
		// 交叉簿非致命，结果照常产出并打标记
		crossed = true
		e.logger.Debug("订单簿交叉", zap.String("symbol", p.Symbol), zap.Error(err))
	}

	feats, err := e.book.Features(book.DefaultDepthLevels)
	if err != nil {
		e.logger.Warn("tick 被丢弃: 特征提取失败",
			zap.String("symbol", p.Symbol),
			zap.Error(err))
		return nil, err
	}
	// 簿状态不含波动率，从模拟参数注入
	feats.Volatility = p.Volatility

	res := &model.TickResult{
		SimulationID: e.simulationID,
		Timestamp:    u.Timestamp,
		BestBid:      feats.BestBid,
		BestAsk:      feats.BestAsk,
		MidPrice:     feats.MidPrice,
		Spread:       feats.Spread,
		Crossed:      crossed,
	}

	// Maker/Taker 占比先算：手续费按占比混合双边费率
	var makerRatio *float64
	if ratio, err := e.mtModel.Predict(feats, p.QuantityUSD, p.OrderType); err != nil {
		res.MakerProportion = model.Unavailable(err)
	} else {
		res.MakerProportion = model.OK(ratio)
		makerRatio = &ratio
	}

	// 占比不可用时回退到订单类型缺省（市价全 taker，限价全 maker）
	if bd, err := e.feeModel.Calculate(p.Exchange, p.FeeTier, p.OrderType, p.QuantityUSD, makerRatio); err != nil {
		res.FeeUSD = model.Unavailable(err)
	} else {
		res.FeeUSD = model.OK(bd.EffectiveFee)
	}

	if slip, err := e.slipModel.Predict(feats, p.QuantityUSD, p.IsBuy); err != nil {
		res.SlippagePct = model.Unavailable(err)
	} else {
		res.SlippagePct = model.OK(slip)
	}

	if imp, err := e.impactModel.CalculateImpact(p.QuantityUSD, p.Volatility, p.AvgDailyVolumeUSD, feats.MidPrice); err != nil {
		res.MarketImpactPct = model.Unavailable(err)
	} else {
		res.MarketImpactPct = model.OK(imp.TotalPct)
	}

	// 净成本只在三个成本分量全部有效时有效
	if res.FeeUSD.Valid && res.SlippagePct.Valid && res.MarketImpactPct.Valid {
		net := res.FeeUSD.Value +
			math.Abs(res.SlippagePct.Value)/100.0*p.QuantityUSD +
			math.Abs(res.MarketImpactPct.Value)/100.0*p.QuantityUSD
		res.NetCostUSD = model.OK(net)
	} else {
		res.NetCostUSD = model.Unavailable(errors.New("成本分量不完整"))
	}

	res.Degraded = !res.FeeUSD.Valid || !res.SlippagePct.Valid ||
		!res.MarketImpactPct.Valid || !res.MakerProportion.Valid

	total := timeutil.SinceNano(start)
	res.BookUpdateMs = float64(updDur.Nanoseconds()) / 1_000_000.0
	res.InternalLatencyMs = float64(total.Nanoseconds()) / 1_000_000.0
	e.monitor.Record(updDur, total)

	e.last = res
	e.state = StateRunning
	return res, nil
}

// CurrentResult 最近一条 tick 结果
// 返回: 最近结果；未配置返回 ErrNotConfigured，已配置但
// 尚未处理 tick 返回 ErrNoResultsYet。
func (e *Engine) CurrentResult() (*model.TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.state == StateIdle:
		return nil, ErrNotConfigured
	case e.last == nil:
		return nil, ErrNoResultsYet
	}
	return e.last, nil
}

// Reset 清空模拟状态，回到 Idle
// 参数 resetMonitor: 是否连带清空性能统计（默认保留历史）
func (e *Engine) Reset(resetMonitor bool) {
	e.mu.Lock()
	e.state = StateIdle
	e.params = nil
	e.book = nil
	e.last = nil
	e.mu.Unlock()

	if resetMonitor {
		e.monitor.Reset()
	}
	e.logger.Info("引擎已重置", zap.String("simulation_id", e.simulationID))
}
