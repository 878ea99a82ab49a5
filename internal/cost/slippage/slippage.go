// Package slippage 实现基于线性回归的滑点预测模型。
// score = coefficients · feature_vector + intercept，单位为中间价百分比。
// 模型只消费拟合好的系数集，离线训练由外部协作方完成。
package slippage

import (
	"math"
	"sync/atomic"

	"okx-trade-simulator/internal/core/book"
	"okx-trade-simulator/internal/cost/fitted"
)

// 派生特征名称
// 这些特征不在簿特征向量里，由预测入参现场计算。
const (
	// FeatureSizeDepthRatio 订单名义 / 相关侧深度名义，封顶 1
	FeatureSizeDepthRatio = "size_depth_ratio"
)

// Model 滑点预测模型
// 系数集不可变，重载通过原子指针交换，运行中的 ProcessTick
// 要么看到旧模型要么看到新模型，绝不会看到混合状态。
type Model struct {
	// coeffs 当前系数集
	coeffs atomic.Pointer[fitted.Coefficients]
}

// New 用给定系数集创建模型
// 返回: 模型；系数集自检失败时返回 ErrFeatureShapeMismatch
func New(c fitted.Coefficients) (*Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m := &Model{}
	m.coeffs.Store(&c)
	return m, nil
}

// Default 创建内置默认系数的模型
// 默认系数来自参考标定：价差越宽、订单相对深度越大、波动越高滑点越大，
// 买方深度占优（imbalance 为正）时买单滑点略降。
func Default() *Model {
	m, _ := New(fitted.Coefficients{
		Intercept: 0.01,
		Features: []string{
			book.FeatureSpreadPct,
			FeatureSizeDepthRatio,
			book.FeatureImbalance,
			book.FeatureVolatility,
		},
		Weights: []float64{0.5, 0.8, -0.2, 0.3},
	})
	return m
}

// Swap 原子替换系数集
// 返回: 校验失败时返回 ErrFeatureShapeMismatch，旧模型保持生效
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

// Predict 预测给定订单的滑点（中间价百分比，非负）
// 参数 f: 当前簿特征向量
// 参数 quantityUSD: 订单名义价值（USD）
// 参数 isBuy: 买卖方向，决定使用哪一侧深度与失衡符号
// 返回: 滑点百分比；schema 错配时返回 ErrFeatureShapeMismatch
func (m *Model) Predict(f *book.Features, quantityUSD float64, isBuy bool) (float64, error) {
	coeffs := m.coeffs.Load()

	score, err := coeffs.Score(func(name string) (float64, bool) {
		switch name {
		case FeatureSizeDepthRatio:
			return sizeDepthRatio(f, quantityUSD, isBuy), true
		case book.FeatureImbalance:
			// 卖单视角翻转失衡符号：卖方深度占优对卖单有利
			if isBuy {
				return f.Imbalance, true
			}
			return -f.Imbalance, true
		}
		return f.Get(name)
	})
	if err != nil {
		return 0, err
	}

	// 滑点不为负：模型外推出负值时截断为零
	return math.Max(0, score), nil
}

// sizeDepthRatio 订单名义相对相关侧深度的占比，封顶 1 避免外推爆炸
func sizeDepthRatio(f *book.Features, quantityUSD float64, isBuy bool) float64 {
	depth := f.AskDepthUSD
	if !isBuy {
		depth = f.BidDepthUSD
	}
	if depth <= 0 {
		return 1
	}
	ratio := quantityUSD / depth
	if ratio > 1 {
		return 1
	}
	return ratio
}
