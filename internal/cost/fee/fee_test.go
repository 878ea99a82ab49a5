// Package fee 手续费模型测试
package fee

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"okx-trade-simulator/internal/core/model"
)

func TestModel_Calculate_ByOrderType(t *testing.T) {
	m := New(nil)

	// 市价单全 Taker
	bd, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, 10_000, nil)
	if err != nil {
		t.Fatalf("Calculate 失败: %v", err)
	}
	if bd.EffectiveFee != 10_000*0.0010 {
		t.Fatalf("市价单 EffectiveFee=%v, want %v", bd.EffectiveFee, 10_000*0.0010)
	}
	if bd.TakerRate != 0.0010 || bd.MakerRate != 0.0008 {
		t.Fatalf("Tier 1 费率错误: maker=%v taker=%v", bd.MakerRate, bd.TakerRate)
	}

	// 限价单全 Maker
	bd, err = m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeLimit, 10_000, nil)
	if err != nil {
		t.Fatalf("Calculate 失败: %v", err)
	}
	if bd.EffectiveFee != 10_000*0.0008 {
		t.Fatalf("限价单 EffectiveFee=%v, want %v", bd.EffectiveFee, 10_000*0.0008)
	}
}

func TestModel_Calculate_MakerRatioBlend(t *testing.T) {
	m := New(nil)

	// r=1 全 Maker，r=0 全 Taker
	one, zero := 1.0, 0.0
	bdMaker, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, 10_000, &one)
	if err != nil {
		t.Fatalf("Calculate 失败: %v", err)
	}
	if bdMaker.EffectiveFee != bdMaker.MakerFee {
		t.Fatalf("r=1 时应为全 Maker 手续费: %v != %v", bdMaker.EffectiveFee, bdMaker.MakerFee)
	}

	bdTaker, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, 10_000, &zero)
	if err != nil {
		t.Fatalf("Calculate 失败: %v", err)
	}
	if bdTaker.EffectiveFee != bdTaker.TakerFee {
		t.Fatalf("r=0 时应为全 Taker 手续费: %v != %v", bdTaker.EffectiveFee, bdTaker.TakerFee)
	}

	// 中间值线性混合
	half := 0.5
	bd, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, 10_000, &half)
	if err != nil {
		t.Fatalf("Calculate 失败: %v", err)
	}
	want := (bdMaker.MakerFee + bdTaker.TakerFee) / 2
	if math.Abs(bd.EffectiveFee-want) > 1e-12 {
		t.Fatalf("r=0.5 EffectiveFee=%v, want %v", bd.EffectiveFee, want)
	}
}

func TestModel_Calculate_Errors(t *testing.T) {
	m := New(nil)

	if _, err := m.Calculate(model.ExchangeOKX, "Tier 99", model.OrderTypeMarket, 10_000, nil); !errors.Is(err, ErrUnknownFeeTier) {
		t.Fatalf("未知等级 err=%v, want ErrUnknownFeeTier", err)
	}
	if _, err := m.Calculate("NASDAQ", "Tier 1", model.OrderTypeMarket, 10_000, nil); !errors.Is(err, ErrUnknownFeeTier) {
		t.Fatalf("未知交易所 err=%v, want ErrUnknownFeeTier", err)
	}

	bad := 1.5
	if _, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, 10_000, &bad); !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("占比越界 err=%v, want ErrInvalidRatio", err)
	}
	neg := -0.1
	if _, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, 10_000, &neg); !errors.Is(err, ErrInvalidRatio) {
		t.Fatalf("占比为负 err=%v, want ErrInvalidRatio", err)
	}

	if _, err := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderType("stop"), 10_000, nil); !errors.Is(err, ErrUnknownOrderType) {
		t.Fatalf("未知订单类型 err=%v, want ErrUnknownOrderType", err)
	}
}

func TestModel_EstimateTier(t *testing.T) {
	m := New(nil)

	cases := []struct {
		name    string
		volume  float64
		holding float64
		want    string
	}{
		{"双阈值均不达标", 0, 0, "Tier 1"},
		{"成交量达标但持有量不足", 5_000_000, 1_000, "Tier 1"},
		{"持有量达标但成交量不足", 0, 10_000_000, "Tier 1"},
		{"双阈值达到 Tier 3", 5_000_000, 200_000, "Tier 3"},
		{"双阈值达到最高档", 200_000_000, 10_000_000, "Tier 5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, err := m.EstimateTier(model.ExchangeOKX, tc.volume, tc.holding)
			if err != nil {
				t.Fatalf("EstimateTier 失败: %v", err)
			}
			if tier.Name != tc.want {
				t.Fatalf("Tier=%s, want %s", tier.Name, tc.want)
			}
		})
	}

	if _, err := m.EstimateTier("NASDAQ", 0, 0); !errors.Is(err, ErrUnknownFeeTier) {
		t.Fatalf("未知交易所 err=%v, want ErrUnknownFeeTier", err)
	}
}

// **Feature: okx-trade-simulator, Property 4: Fee Blend Monotonicity**
// **Validates: Requirements 3.2**

func TestModel_FeeBlend_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	m := New(nil)

	properties.Property("Maker 占比越高手续费越低（maker 费率低于 taker 时）", prop.ForAll(
		func(q, r1, r2 float64) bool {
			if r1 > r2 {
				r1, r2 = r2, r1
			}
			bd1, err1 := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, q, &r1)
			bd2, err2 := m.Calculate(model.ExchangeOKX, "Tier 1", model.OrderTypeMarket, q, &r2)
			if err1 != nil || err2 != nil {
				return false
			}
			return bd2.EffectiveFee <= bd1.EffectiveFee+1e-9
		},
		gen.Float64Range(1, 10_000_000),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("混合手续费始终落在 [maker_fee, taker_fee] 区间", prop.ForAll(
		func(q, r float64) bool {
			bd, err := m.Calculate(model.ExchangeOKX, "Tier 2", model.OrderTypeMarket, q, &r)
			if err != nil {
				return false
			}
			return bd.EffectiveFee >= bd.MakerFee-1e-9 && bd.EffectiveFee <= bd.TakerFee+1e-9
		},
		gen.Float64Range(1, 10_000_000),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
