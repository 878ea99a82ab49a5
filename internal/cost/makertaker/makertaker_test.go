// Package makertaker Maker/Taker 模型测试
package makertaker

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"okx-trade-simulator/internal/core/book"
	"okx-trade-simulator/internal/core/model"
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

func TestModel_Predict_MarketFloor(t *testing.T) {
	// 构造一个把 Taker 概率压到极低的系数集，验证市价单下限生效
	m, err := New(fitted.Coefficients{
		Intercept: -100,
		Features:  []string{FeatureOrderTypeMarket},
		Weights:   []float64{0},
	})
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}

	maker, err := m.Predict(sampleFeatures(), 100_000, model.OrderTypeMarket)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}
	// Taker 下限 0.9，Maker 最高 0.1
	if maker > 0.1+1e-12 {
		t.Fatalf("市价单 Maker 占比=%v，不应超过 0.1", maker)
	}

	// 同一系数下限价单不受下限约束
	maker, err = m.Predict(sampleFeatures(), 100_000, model.OrderTypeLimit)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}
	if maker < 0.99 {
		t.Fatalf("极低 Taker 概率的限价单 Maker 占比=%v，应接近 1", maker)
	}
}

func TestModel_Predict_OrderTypeOrdering(t *testing.T) {
	m := Default()
	f := sampleFeatures()

	makerMarket, err := m.Predict(f, 100_000, model.OrderTypeMarket)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}
	makerLimit, err := m.Predict(f, 100_000, model.OrderTypeLimit)
	if err != nil {
		t.Fatalf("Predict 失败: %v", err)
	}

	// 市价单指示量权重为正：同等条件下市价单 Maker 占比更低
	if makerMarket > makerLimit {
		t.Fatalf("市价单 Maker 占比应不高于限价单: market=%v limit=%v", makerMarket, makerLimit)
	}
}

func TestModel_Predict_ShapeMismatch(t *testing.T) {
	m, err := New(fitted.Coefficients{
		Intercept: 2.0,
		Features:  []string{"no_such_feature"},
		Weights:   []float64{1},
	})
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}

	if _, err := m.Predict(sampleFeatures(), 100_000, model.OrderTypeMarket); !errors.Is(err, fitted.ErrFeatureShapeMismatch) {
		t.Fatalf("err=%v, want ErrFeatureShapeMismatch", err)
	}
}

// **Feature: okx-trade-simulator, Property 7: Maker Proportion Bounds**
// **Validates: Requirements 6.2, 6.3**

func TestModel_Predict_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	m := Default()

	properties.Property("Maker 占比始终落在 [0,1]，市价单不超过 0.1", prop.ForAll(
		func(q, spreadPct, vol float64, isMarket bool) bool {
			f := sampleFeatures()
			f.SpreadPct = spreadPct
			f.Volatility = vol

			orderType := model.OrderTypeLimit
			if isMarket {
				orderType = model.OrderTypeMarket
			}

			maker, err := m.Predict(f, q, orderType)
			if err != nil {
				return false
			}
			if maker < 0 || maker > 1 {
				return false
			}
			if isMarket && maker > 1-marketTakerFloor+1e-12 {
				return false
			}
			return true
		},
		gen.Float64Range(1, 100_000_000),
		gen.Float64Range(0, 10),
		gen.Float64Range(0, 5),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
