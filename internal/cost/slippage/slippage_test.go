// Package slippage 滑点模型测试
package slippage

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"okx-trade-simulator/internal/core/book"
	"okx-trade-simulator/internal/cost/fitted"
)

func sampleFeatures() *book.Features {
	return &book.Features{
		BestBid:     95445.4,
		BestAsk:     95445.5,
		MidPrice:    95445.45,
		Spread:      0.1,
		SpreadPct:   0.000105,
		BidDepthUSD: 5_000_000,
		AskDepthUSD: 4_000_000,
		Imbalance:   0.11,
		Volatility:  0.3,
	}
}

func TestModel_Predict_Default(t *testing.T) {
	m := Default()

	got, err := m.Predict(sampleFeatures(), 100_000, true)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}
	if got < 0 {
		t.Fatalf("滑点不应为负: %v", got)
	}

	// 手工重算: intercept + w×[spread_pct, size_depth_ratio, imbalance, vol]
	f := sampleFeatures()
	want := 0.01 + 0.5*f.SpreadPct + 0.8*(100_000.0/f.AskDepthUSD) + -0.2*f.Imbalance + 0.3*f.Volatility
	if diff := got - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("Predict=%v, want %v", got, want)
	}
}

func TestModel_Predict_SellFlipsImbalance(t *testing.T) {
	m := Default()
	f := sampleFeatures()

	buy, err := m.Predict(f, 100_000, true)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}
	sell, err := m.Predict(f, 100_000, false)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}

	// 买方深度占优（imbalance>0）：买单滑点被压低，卖单被抬高，
	// 同时卖单使用买盘深度（更深），两个效应叠加后仍应不相等
	if buy == sell {
		t.Fatalf("买卖方向滑点不应完全相同: buy=%v sell=%v", buy, sell)
	}
}

func TestModel_Predict_ShapeMismatch(t *testing.T) {
	m, err := New(fitted.Coefficients{
		Intercept: 0.01,
		Features:  []string{"no_such_feature"},
		Weights:   []float64{1},
	})
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}

	if _, err := m.Predict(sampleFeatures(), 100_000, true); !errors.Is(err, fitted.ErrFeatureShapeMismatch) {
		t.Fatalf("err=%v, want ErrFeatureShapeMismatch", err)
	}
}

func TestModel_Swap(t *testing.T) {
	m := Default()

	// 非法系数不生效
	if err := m.Swap(fitted.Coefficients{Features: []string{"a"}, Weights: []float64{1, 2}}); !errors.Is(err, fitted.ErrFeatureShapeMismatch) {
		t.Fatalf("err=%v, want ErrFeatureShapeMismatch", err)
	}
	if got := m.Coefficients(); got.Intercept != 0.01 {
		t.Fatalf("校验失败后旧系数应保持生效: intercept=%v", got.Intercept)
	}

	// 合法交换生效
	if err := m.Swap(fitted.Coefficients{
		Intercept: 0.5,
		Features:  []string{book.FeatureVolatility},
		Weights:   []float64{1},
	}); err != nil {
		t.Fatalf("Swap 失败: %v", err)
	}
	got, err := m.Predict(sampleFeatures(), 100_000, true)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}
	if want := 0.5 + 1*0.3; got != want {
		t.Fatalf("交换后 Predict=%v, want %v", got, want)
	}
}

// **Feature: okx-trade-simulator, Property 6: Slippage Non-Negativity**
// **Validates: Requirements 5.3**

func TestModel_Predict_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	m := Default()

	properties.Property("任意输入下预测滑点非负且确定", prop.ForAll(
		func(q, spreadPct, imbalance, vol float64) bool {
			f := sampleFeatures()
			f.SpreadPct = spreadPct
			f.Imbalance = imbalance
			f.Volatility = vol

			s1, err1 := m.Predict(f, q, true)
			s2, err2 := m.Predict(f, q, true)
			if err1 != nil || err2 != nil {
				return false
			}
			return s1 >= 0 && s1 == s2
		},
		gen.Float64Range(1, 100_000_000),
		gen.Float64Range(0, 10),
		gen.Float64Range(-1, 1),
		gen.Float64Range(0, 5),
	))

	properties.TestingRun(t)
}
