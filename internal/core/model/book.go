// Package model 定义模拟器中使用的核心数据结构。
// 包含订单簿更新消息、价格档位、模拟参数与逐笔结果等核心类型。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange 交易所标识常量
const (
	// ExchangeOKX OKX 交易所
	ExchangeOKX = "OKX"
)

// Level 订单簿价格档位
// 价格与数量使用定点十进制，避免二进制浮点往返误差
type Level struct {
	// Price 价格
	Price decimal.Decimal
	// Qty 数量（基础资产）
	Qty decimal.Decimal
}

// NotionalUSD 档位名义价值（价格 × 数量）
func (l Level) NotionalUSD() decimal.Decimal {
	return l.Price.Mul(l.Qty)
}

// BookUpdate 入站订单簿更新消息（全量替换模型）
// 价格与数量保持十进制字符串原样，由 OrderBook.Update 解析并校验。
// 一条消息总是携带两侧的完整深度；引擎不做增量合并。
type BookUpdate struct {
	// Timestamp 交易所事件时间，ISO-8601 字符串
	Timestamp string `json:"timestamp"`
	// Exchange 交易所标识，如 OKX
	Exchange string `json:"exchange"`
	// Symbol 交易对，如 BTC-USDT-SWAP
	Symbol string `json:"symbol"`
	// Asks 卖盘档位: [[价格, 数量], ...]
	Asks [][2]string `json:"asks"`
	// Bids 买盘档位: [[价格, 数量], ...]
	Bids [][2]string `json:"bids"`

	// ArrivedAtUnixNs 本机收到消息的时间戳（纳秒）
	// 用于端到端延迟统计，不参与序列化
	ArrivedAtUnixNs int64 `json:"-"`
}

// ArrivedAt 获取到达时间的 time.Time 表示
func (u *BookUpdate) ArrivedAt() time.Time {
	return time.Unix(0, u.ArrivedAtUnixNs)
}

// Clone 创建 BookUpdate 的深拷贝
func (u *BookUpdate) Clone() *BookUpdate {
	clone := *u
	if u.Asks != nil {
		clone.Asks = make([][2]string, len(u.Asks))
		copy(clone.Asks, u.Asks)
	}
	if u.Bids != nil {
		clone.Bids = make([][2]string, len(u.Bids))
		copy(clone.Bids, u.Bids)
	}
	return &clone
}
