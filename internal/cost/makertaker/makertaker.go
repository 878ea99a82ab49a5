// Package makertaker 实现基于逻辑回归的 Maker 成交占比预测模型。
// score 经 logistic 函数压缩到 (0,1) 得到 Taker 概率，
// Maker 占比 = 1 - Taker 概率，最终钳制在 [0,1]。
package makertaker

import (
	"math"
	"sync/atomic"

	"okx-trade-simulator/internal/core/book"
	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/cost/fitted"
)

// 派生特征名称
const (
	// FeatureOrderTypeMarket 市价单指示量（市价 1，限价 0）
	FeatureOrderTypeMarket = "order_type_market"
	// FeatureSizeDepthRatio 订单名义 / 两侧平均深度名义，封顶 1
	FeatureSizeDepthRatio = "size_depth_ratio"
)

// marketTakerFloor 市价单的 Taker 占比下限
// 市价单以吃单为主，个别交易所存在部分挂单成交的机制，
// 但占比不会低于该下限。
const marketTakerFloor = 0.9

// Model Maker/Taker 占比预测模型
// 与滑点模型同一载体：不可变系数集 + 原子交换。
type Model struct {
	coeffs atomic.Pointer[fitted.Coefficients]
}

// New 用给定系数集创建模型
func New(c fitted.Coefficients) (*Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m := &Model{}
	m.coeffs.Store(&c)
	return m, nil
}

// Default 创建内置默认系数的模型
// 正截距偏向 Taker；市价单指示量、价差、相对订单规模与波动率
// 都推高 Taker 概率。
func Default() *Model {
	m, _ := New(fitted.Coefficients{
		Intercept: 2.0,
		Features: []string{
			FeatureOrderTypeMarket,
			book.FeatureSpreadPct,
			FeatureSizeDepthRatio,
			book.FeatureVolatility,
		},
		Weights: []float64{2.0, 0.5, 0.8, 0.3},
	})
	return m
}

// Swap 原子替换系数集
func (m *Model) Swap(c fitted.Coefficients) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.coeffs.Store(&c)
	return nil
}

// Coefficients 获取当前系数集快照
func (m *Model) Coefficients() fitted.Coefficients {
	return *m.coeffs.Load()
}

// Predict 预测 Maker 成交占比
// 参数 f: 当前簿特征向量
// 参数 quantityUSD: 订单名义价值（USD）
// 参数 orderType: 订单类型，影响指示量与 Taker 下限
// 返回: Maker 占比 ∈ [0,1]；schema 错配时返回 ErrFeatureShapeMismatch
func (m *Model) Predict(f *book.Features, quantityUSD float64, orderType model.OrderType) (float64, error) {
	coeffs := m.coeffs.Load()

	isMarket := orderType == model.OrderTypeMarket

	score, err := coeffs.Score(func(name string) (float64, bool) {
		switch name {
		case FeatureOrderTypeMarket:
			if isMarket {
				return 1, true
			}
			return 0, true
		case FeatureSizeDepthRatio:
			return sizeDepthRatio(f, quantityUSD), true
		}
		return f.Get(name)
	})
	if err != nil {
		return 0, err
	}

	taker := logistic(score)
	if isMarket && taker < marketTakerFloor {
		taker = marketTakerFloor
	}

	maker := 1 - taker
	return clamp01(maker), nil
}

// sizeDepthRatio 订单名义相对两侧平均深度的占比，封顶 1
func sizeDepthRatio(f *book.Features, quantityUSD float64) float64 {
	avgDepth := (f.BidDepthUSD + f.AskDepthUSD) / 2
	if avgDepth <= 0 {
		return 1
	}
	ratio := quantityUSD / avgDepth
	if ratio > 1 {
		return 1
	}
	return ratio
}

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
