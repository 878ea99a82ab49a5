package book

import (
	"fmt"
)

// 特征名称常量
// 拟合模型通过名称绑定特征，顺序由模型系数文件中的 features 列表决定。
const (
	// FeatureBestBid 最优买价
	FeatureBestBid = "best_bid"
	// FeatureBestAsk 最优卖价
	FeatureBestAsk = "best_ask"
	// FeatureMidPrice 中间价
	FeatureMidPrice = "mid_price"
	// FeatureSpread 绝对价差
	FeatureSpread = "spread"
	// FeatureSpreadPct 相对价差（中间价百分比）
	FeatureSpreadPct = "spread_pct"
	// FeatureBidDepthUSD 买盘前 N 档名义深度（USD）
	FeatureBidDepthUSD = "bid_depth_usd"
	// FeatureAskDepthUSD 卖盘前 N 档名义深度（USD）
	FeatureAskDepthUSD = "ask_depth_usd"
	// FeatureImbalance 订单簿失衡度 (bid-ask)/(bid+ask)，按名义深度
	FeatureImbalance = "imbalance"
	// FeatureVolatility 短周期波动率代理（外部提供，由引擎注入）
	FeatureVolatility = "volatility"
)

// DefaultDepthLevels 特征提取默认使用的档位数
const DefaultDepthLevels = 10

// Features 固定形状的订单簿特征向量
// 每个 tick 基于当前快照整体重建，绝不部分更新；
// 是当前快照的纯函数，无隐藏状态。
type Features struct {
	// BestBid 最优买价
	BestBid float64
	// BestAsk 最优卖价
	BestAsk float64
	// MidPrice 中间价
	MidPrice float64
	// Spread 绝对价差
	Spread float64
	// SpreadPct 相对价差（中间价百分比）
	SpreadPct float64
	// BidDepthUSD 买盘前 N 档名义深度（USD）
	BidDepthUSD float64
	// AskDepthUSD 卖盘前 N 档名义深度（USD）
	AskDepthUSD float64
	// Imbalance 订单簿失衡度，区间 [-1, 1]
	Imbalance float64
	// Volatility 波动率代理；簿状态不含波动率，由引擎从模拟参数注入
	Volatility float64
}

// Get 按名称取特征值
// 返回: 特征值与是否识别该名称；未识别的名称意味着模型
// 的训练期 schema 与当前特征向量不匹配。
func (f *Features) Get(name string) (float64, bool) {
	switch name {
	case FeatureBestBid:
		return f.BestBid, true
	case FeatureBestAsk:
		return f.BestAsk, true
	case FeatureMidPrice:
		return f.MidPrice, true
	case FeatureSpread:
		return f.Spread, true
	case FeatureSpreadPct:
		return f.SpreadPct, true
	case FeatureBidDepthUSD:
		return f.BidDepthUSD, true
	case FeatureAskDepthUSD:
		return f.AskDepthUSD, true
	case FeatureImbalance:
		return f.Imbalance, true
	case FeatureVolatility:
		return f.Volatility, true
	}
	return 0, false
}

// Features 从当前快照确定性地构建特征向量
// 参数 levels: 每侧参与深度统计的档位数（<=0 时取 DefaultDepthLevels）
// 任一侧为空时返回 ErrInsufficientDepth。
func (b *OrderBook) Features(levels int) (*Features, error) {
	if levels <= 0 {
		levels = DefaultDepthLevels
	}

	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return nil, fmt.Errorf("%w: 特征提取需要两侧均非空", ErrInsufficientDepth)
	}

	mid, err := b.MidPrice()
	if err != nil {
		return nil, err
	}
	spread, err := b.Spread()
	if err != nil {
		return nil, err
	}

	bids, asks := b.Depth(levels)
	bidDepth := 0.0
	for _, lvl := range bids {
		v, _ := lvl.NotionalUSD().Float64()
		bidDepth += v
	}
	askDepth := 0.0
	for _, lvl := range asks {
		v, _ := lvl.NotionalUSD().Float64()
		askDepth += v
	}

	imbalance := 0.0
	if total := bidDepth + askDepth; total > 0 {
		imbalance = (bidDepth - askDepth) / total
	}

	bestBid, _ := bid.Float64()
	bestAsk, _ := ask.Float64()
	midF, _ := mid.Float64()
	spreadF, _ := spread.Float64()
	spreadPct, _ := spread.Div(mid).Mul(hundred).Float64()

	return &Features{
		BestBid:     bestBid,
		BestAsk:     bestAsk,
		MidPrice:    midF,
		Spread:      spreadF,
		SpreadPct:   spreadPct,
		BidDepthUSD: bidDepth,
		AskDepthUSD: askDepth,
		Imbalance:   imbalance,
	}, nil
}
