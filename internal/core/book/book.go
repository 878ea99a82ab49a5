// Package book 维护单一交易对的 L2 订单簿状态。
// 每条入站消息整体替换两侧深度（全量替换模型，不做增量合并），
// 并在替换后重建严格排序不变量：买盘按价格严格降序，卖盘严格升序。
package book

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/util/timeutil"
)

var (
	// ErrMalformedUpdate 更新消息中价格/数量非数值、非正或同侧价格重复
	// 该错误中止整个 tick：损坏的簿状态绝不能用于计算结果
	ErrMalformedUpdate = errors.New("订单簿更新数据非法")
	// ErrCrossedBook 替换后 best_bid >= best_ask（非致命）
	// 快市中交叉簿短暂出现，调用方应标记结果而非丢弃 tick
	ErrCrossedBook = errors.New("订单簿交叉")
	// ErrInsufficientDepth 某一侧为空，无法计算中间价/价差/特征
	ErrInsufficientDepth = errors.New("订单簿深度不足")
	// ErrInsufficientLiquidity 可见流动性不足以吃下请求的名义数量
	// 调用方自行决定按硬错误还是部分成交信号处理，核心绝不静默截断
	ErrInsufficientLiquidity = errors.New("订单簿流动性不足")
)

// MarketOrderCost 市价单成本计算结果
type MarketOrderCost struct {
	// TotalCostUSD 总成交金额（USD）
	TotalCostUSD decimal.Decimal
	// AvgPrice 成交量加权均价
	AvgPrice decimal.Decimal
	// SlippagePct 滑点（中间价百分比，买卖方向均为正表示劣于中间价）
	SlippagePct float64
}

// OrderBook 单一交易对的订单簿（可变实体）
// 仅持有一份当前快照与最后更新时间；进程启动时为空，随进程销毁。
// 同一实例的 Update/读取不支持并发调用：两侧替换不是原子操作，
// 调用方必须按交易对串行化（每个交易对一条处理流）。
type OrderBook struct {
	// exchange 交易所标识
	exchange string
	// symbol 交易对
	symbol string

	// bids 买盘，价格严格降序
	bids []model.Level
	// asks 卖盘，价格严格升序
	asks []model.Level

	// timestamp 最近一次更新的事件时间（ISO-8601）
	timestamp string
	// lastUpdateNs 最近一次更新的本机时间（纳秒）
	lastUpdateNs int64
	// initialized 是否已收到首条更新
	initialized bool
}

// New 创建空订单簿
// 参数 exchange: 交易所标识
// 参数 symbol: 交易对
func New(exchange, symbol string) *OrderBook {
	return &OrderBook{
		exchange: exchange,
		symbol:   symbol,
	}
}

// Symbol 获取交易对
func (b *OrderBook) Symbol() string {
	return b.symbol
}

// Timestamp 获取最近更新的事件时间（ISO-8601）
func (b *OrderBook) Timestamp() string {
	return b.timestamp
}

// Initialized 是否已收到首条更新
func (b *OrderBook) Initialized() bool {
	return b.initialized
}

// Update 用一条入站消息整体替换两侧深度
// 两侧先完整解析校验，全部合法后才替换，解析失败时旧状态保持不变。
// 返回: 替换耗时（用于延迟核算）；ErrMalformedUpdate 表示消息非法，
// ErrCrossedBook 表示替换成功但 best_bid >= best_ask（状态已生效）。
func (b *OrderBook) Update(u *model.BookUpdate) (time.Duration, error) {
	start := timeutil.NowNano()

	if u == nil {
		return 0, fmt.Errorf("%w: 消息为空", ErrMalformedUpdate)
	}

	bids, err := parseSide(u.Bids, true)
	if err != nil {
		return timeutil.SinceNano(start), err
	}
	asks, err := parseSide(u.Asks, false)
	if err != nil {
		return timeutil.SinceNano(start), err
	}

	b.bids = bids
	b.asks = asks
	b.timestamp = u.Timestamp
	b.lastUpdateNs = timeutil.NowNano()
	b.initialized = true

	elapsed := timeutil.SinceNano(start)

	// 交叉检查：状态已替换，仅向调用方报告
	if len(b.bids) > 0 && len(b.asks) > 0 && b.bids[0].Price.Cmp(b.asks[0].Price) >= 0 {
		return elapsed, fmt.Errorf("%w: bid=%s ask=%s", ErrCrossedBook, b.bids[0].Price, b.asks[0].Price)
	}

	return elapsed, nil
}

// parseSide 解析并排序一侧深度
// 数量为零的档位视为不存在直接丢弃；价格非正、字段非数值或
// 同侧价格重复均视为 MalformedUpdate。
func parseSide(raw [][2]string, isBid bool) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, fmt.Errorf("%w: 价格 '%s' 解析失败", ErrMalformedUpdate, pair[0])
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: 数量 '%s' 解析失败", ErrMalformedUpdate, pair[1])
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("%w: 价格 %s 非正", ErrMalformedUpdate, price)
		}
		if qty.Sign() < 0 {
			return nil, fmt.Errorf("%w: 数量 %s 为负", ErrMalformedUpdate, qty)
		}
		if qty.Sign() == 0 {
			continue
		}
		levels = append(levels, model.Level{Price: price, Qty: qty})
	}

	// 买盘降序、卖盘升序；排序后相邻等价即为重复价格
	if isBid {
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price.Cmp(levels[j].Price) > 0 })
	} else {
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price.Cmp(levels[j].Price) < 0 })
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Price.Cmp(levels[i-1].Price) == 0 {
			return nil, fmt.Errorf("%w: 同侧重复价格 %s", ErrMalformedUpdate, levels[i].Price)
		}
	}

	return levels, nil
}

// BestBid 最优买价
// 返回: 价格与是否存在（买盘为空时 false）
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.bids) == 0 {
		return decimal.Decimal{}, false
	}
	return b.bids[0].Price, true
}

// BestAsk 最优卖价
// 返回: 价格与是否存在（卖盘为空时 false）
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.asks) == 0 {
		return decimal.Decimal{}, false
	}
	return b.asks[0].Price, true
}

// MidPrice 中间价 (best_bid + best_ask) / 2
// 任一侧为空时返回 ErrInsufficientDepth
func (b *OrderBook) MidPrice() (decimal.Decimal, error) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, ErrInsufficientDepth
	}
	return bid.Add(ask).Div(two), nil
}

// Spread 买卖价差 best_ask - best_bid
// 任一侧为空时返回 ErrInsufficientDepth
func (b *OrderBook) Spread() (decimal.Decimal, error) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, ErrInsufficientDepth
	}
	return ask.Sub(bid), nil
}

// Depth 获取每侧最多 levels 个档位（按簿序）
// 档位不足时返回实际存在的档位，不补齐也不报错。
func (b *OrderBook) Depth(levels int) (bids, asks []model.Level) {
	if levels < 0 {
		levels = 0
	}
	n := levels
	if n > len(b.bids) {
		n = len(b.bids)
	}
	bids = make([]model.Level, n)
	copy(bids, b.bids[:n])

	n = levels
	if n > len(b.asks) {
		n = len(b.asks)
	}
	asks = make([]model.Level, n)
	copy(asks, b.asks[:n])
	return bids, asks
}

// MarketOrderCost 计算市价单成本：从最优价向外逐档吃单
// 每档按该档自身价格把名义数量换算为基础资产数量，直到吃满
// quantityUSD 或该侧耗尽。复杂度 O(实际消耗档数)，与簿总深度无关。
// 参数 quantityUSD: 订单名义价值（USD）
// 参数 isBuy: true 吃卖盘，false 吃买盘
// 返回: 成本明细；该侧耗尽仍未吃满时返回 ErrInsufficientLiquidity
func (b *OrderBook) MarketOrderCost(quantityUSD decimal.Decimal, isBuy bool) (MarketOrderCost, error) {
	var out MarketOrderCost

	if quantityUSD.Sign() <= 0 {
		return out, fmt.Errorf("%w: 名义数量 %s 非正", ErrMalformedUpdate, quantityUSD)
	}

	mid, err := b.MidPrice()
	if err != nil {
		return out, err
	}

	side := b.asks
	if !isBuy {
		side = b.bids
	}

	remaining := quantityUSD
	totalCost := decimal.Zero
	totalQty := decimal.Zero

	for _, lvl := range side {
		levelUSD := lvl.NotionalUSD()
		fill := remaining
		if levelUSD.Cmp(fill) < 0 {
			fill = levelUSD
		}

		totalCost = totalCost.Add(fill)
		totalQty = totalQty.Add(fill.Div(lvl.Price))
		remaining = remaining.Sub(fill)

		if remaining.Sign() <= 0 {
			break
		}
	}

	if remaining.Sign() > 0 {
		return out, fmt.Errorf("%w: 还差 %s USD 未能成交", ErrInsufficientLiquidity, remaining)
	}

	avgPrice := totalCost.Div(totalQty)

	// 滑点 = (均价-中间价)/中间价 × 100，按方向取号使“劣于中间价”为正
	diff := avgPrice.Sub(mid)
	if !isBuy {
		diff = mid.Sub(avgPrice)
	}
	slippagePct, _ := diff.Div(mid).Mul(hundred).Float64()

	out.TotalCostUSD = totalCost
	out.AvgPrice = avgPrice
	out.SlippagePct = slippagePct
	return out, nil
}

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)
