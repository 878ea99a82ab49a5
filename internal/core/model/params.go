package model

import (
	"fmt"
	"strings"
)

// OrderType 订单类型
type OrderType string

const (
	// OrderTypeMarket 市价单（纯 Taker）
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit 限价单（纯 Maker）
	OrderTypeLimit OrderType = "limit"
)

// Parameters 模拟参数
// 由调用方在运行前设置；引擎每个 tick 读取一份完整快照，
// 替换必须整体原子交换，严禁逐字段修改。
type Parameters struct {
	// Exchange 交易所标识
	Exchange string `yaml:"exchange" json:"exchange"`
	// Symbol 交易对
	Symbol string `yaml:"symbol" json:"symbol"`
	// FeeTier 手续费等级，如 Tier 1
	FeeTier string `yaml:"fee_tier" json:"fee_tier"`
	// OrderType 订单类型: market, limit
	OrderType OrderType `yaml:"order_type" json:"order_type"`
	// QuantityUSD 订单名义价值（USD）
	QuantityUSD float64 `yaml:"quantity_usd" json:"quantity_usd"`
	// IsBuy 买卖方向，true 为买入
	IsBuy bool `yaml:"is_buy" json:"is_buy"`
	// AvgDailyVolumeUSD 日均成交量（USD），市场冲击模型输入
	AvgDailyVolumeUSD float64 `yaml:"avg_daily_volume_usd" json:"avg_daily_volume_usd"`
	// Volatility 波动率（年化），外部提供的短周期代理值
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// Validate 验证参数完整性
// 返回: 缺失或非法字段的聚合错误；nil 表示参数完整
func (p *Parameters) Validate() error {
	var errs []string

	if p.Exchange == "" {
		errs = append(errs, "exchange: 交易所不能为空")
	}
	if p.Symbol == "" {
		errs = append(errs, "symbol: 交易对不能为空")
	}
	if p.FeeTier == "" {
		errs = append(errs, "fee_tier: 手续费等级不能为空")
	}
	switch p.OrderType {
	case OrderTypeMarket, OrderTypeLimit:
	case "":
		errs = append(errs, "order_type: 订单类型不能为空")
	default:
		errs = append(errs, fmt.Sprintf("order_type: 未知订单类型 '%s'，有效值: market, limit", p.OrderType))
	}
	if p.QuantityUSD <= 0 {
		errs = append(errs, "quantity_usd: 订单名义价值必须为正数")
	}
	if p.AvgDailyVolumeUSD <= 0 {
		errs = append(errs, "avg_daily_volume_usd: 日均成交量必须为正数")
	}
	if p.Volatility <= 0 {
		errs = append(errs, "volatility: 波动率必须为正数")
	}

	if len(errs) > 0 {
		return fmt.Errorf("参数不完整:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Clone 创建参数快照拷贝
func (p *Parameters) Clone() *Parameters {
	clone := *p
	return &clone
}
