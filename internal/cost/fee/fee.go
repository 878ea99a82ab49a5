// Package fee 实现基于费率等级表的手续费模型。
// 等级表在启动时加载一次，运行期只读；计算本身是纯函数。
package fee

import (
	"errors"
	"fmt"

	"okx-trade-simulator/internal/core/model"
)

var (
	// ErrUnknownFeeTier (exchange, tier) 组合不在等级表中
	ErrUnknownFeeTier = errors.New("未知手续费等级")
	// ErrInvalidRatio maker_ratio 超出 [0,1]
	ErrInvalidRatio = errors.New("maker 占比非法")
	// ErrUnknownOrderType 订单类型既非纯 Maker 也非纯 Taker
	ErrUnknownOrderType = errors.New("未知订单类型")
)

// Tier 单个费率等级
type Tier struct {
	// Name 等级名称，如 Tier 1
	Name string `yaml:"name"`
	// MakerRate Maker 费率（0-1）
	MakerRate float64 `yaml:"maker_rate"`
	// TakerRate Taker 费率（0-1）
	TakerRate float64 `yaml:"taker_rate"`
	// VolumeThresholdUSD 达到该等级所需 30 日成交量（USD）
	VolumeThresholdUSD float64 `yaml:"volume_threshold_usd"`
	// HoldingThresholdUSD 达到该等级所需资产持有量（USD）
	HoldingThresholdUSD float64 `yaml:"holding_threshold_usd"`
}

// TierTable 费率等级表: exchange → 等级列表（由低到高）
// 运行期只读；加载一次后不再修改。
type TierTable map[string][]Tier

// DefaultTable OKX 缺省等级表（2025-05 档，与官方文档对齐后按需更新）
func DefaultTable() TierTable {
	return TierTable{
		model.ExchangeOKX: {
			{Name: "Tier 1", MakerRate: 0.0008, TakerRate: 0.0010, VolumeThresholdUSD: 0, HoldingThresholdUSD: 0},
			{Name: "Tier 2", MakerRate: 0.0006, TakerRate: 0.0008, VolumeThresholdUSD: 1_000_000, HoldingThresholdUSD: 50_000},
			{Name: "Tier 3", MakerRate: 0.0004, TakerRate: 0.0006, VolumeThresholdUSD: 5_000_000, HoldingThresholdUSD: 200_000},
			{Name: "Tier 4", MakerRate: 0.0002, TakerRate: 0.0004, VolumeThresholdUSD: 20_000_000, HoldingThresholdUSD: 1_000_000},
			{Name: "Tier 5", MakerRate: 0.0000, TakerRate: 0.0002, VolumeThresholdUSD: 100_000_000, HoldingThresholdUSD: 5_000_000},
		},
	}
}

// Breakdown 手续费明细
// MakerFee/TakerFee 分别是全部按 Maker 或全部按 Taker 成交时的
// 手续费，供对比；EffectiveFee 是按占比混合的实际预期手续费。
type Breakdown struct {
	// MakerFee 全 Maker 手续费（USD）
	MakerFee float64 `json:"maker_fee"`
	// TakerFee 全 Taker 手续费（USD）
	TakerFee float64 `json:"taker_fee"`
	// EffectiveFee 预期手续费（USD）
	EffectiveFee float64 `json:"effective_fee"`
	// MakerRate 采用的 Maker 费率
	MakerRate float64 `json:"maker_rate"`
	// TakerRate 采用的 Taker 费率
	TakerRate float64 `json:"taker_rate"`
}

// Model 手续费模型
type Model struct {
	// table 只读等级表
	table TierTable
}

// New 创建手续费模型
// 参数 table: 等级表；nil 时使用缺省 OKX 表
func New(table TierTable) *Model {
	if table == nil {
		table = DefaultTable()
	}
	return &Model{table: table}
}

// lookupTier 查找 (exchange, tier) 对应的等级
func (m *Model) lookupTier(exchange, tier string) (Tier, error) {
	tiers, ok := m.table[exchange]
	if !ok {
		return Tier{}, fmt.Errorf("%w: 交易所 '%s'", ErrUnknownFeeTier, exchange)
	}
	for _, t := range tiers {
		if t.Name == tier {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: '%s' @ %s", ErrUnknownFeeTier, tier, exchange)
}

// Calculate 计算手续费明细
// 参数 makerRatio: Maker 成交占比，nil 时按订单类型取纯 Maker/纯 Taker；
// 非 nil 时必须在 [0,1]，effective_fee = q×(r×maker + (1-r)×taker)。
// 返回: 明细；错误: ErrUnknownFeeTier / ErrInvalidRatio / ErrUnknownOrderType
func (m *Model) Calculate(exchange, tier string, orderType model.OrderType, quantityUSD float64, makerRatio *float64) (Breakdown, error) {
	var out Breakdown

	t, err := m.lookupTier(exchange, tier)
	if err != nil {
		return out, err
	}

	out.MakerRate = t.MakerRate
	out.TakerRate = t.TakerRate
	out.MakerFee = quantityUSD * t.MakerRate
	out.TakerFee = quantityUSD * t.TakerRate

	if makerRatio != nil {
		r := *makerRatio
		if r < 0 || r > 1 {
			return out, fmt.Errorf("%w: %g 不在 [0,1]", ErrInvalidRatio, r)
		}
		out.EffectiveFee = quantityUSD * (r*t.MakerRate + (1-r)*t.TakerRate)
		return out, nil
	}

	switch orderType {
	case model.OrderTypeMarket:
		out.EffectiveFee = out.TakerFee
	case model.OrderTypeLimit:
		out.EffectiveFee = out.MakerFee
	default:
		return out, fmt.Errorf("%w: '%s'", ErrUnknownOrderType, orderType)
	}
	return out, nil
}

// EstimateTier 按成交量与持有量估算费率等级
// 从最高等级向下扫描，返回第一个 volume_threshold 与
// holding_threshold 同时满足的等级；全部不满足时返回最低等级，
// 绝不报错（交易所未知除外）。
func (m *Model) EstimateTier(exchange string, tradingVolumeUSD, holdingAmountUSD float64) (Tier, error) {
	tiers, ok := m.table[exchange]
	if !ok || len(tiers) == 0 {
		return Tier{}, fmt.Errorf("%w: 交易所 '%s'", ErrUnknownFeeTier, exchange)
	}

	for i := len(tiers) - 1; i >= 0; i-- {
		t := tiers[i]
		if tradingVolumeUSD >= t.VolumeThresholdUSD && holdingAmountUSD >= t.HoldingThresholdUSD {
			return t, nil
		}
	}
	return tiers[0], nil
}

// Tiers 获取指定交易所的等级列表（由低到高）
func (m *Model) Tiers(exchange string) []Tier {
	return m.table[exchange]
}
