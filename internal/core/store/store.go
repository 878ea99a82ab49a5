// Package store 维护按交易对划分的模拟引擎注册表。
// 引擎在启动时一次性建好，运行期只读；每个交易对一个引擎实例，
// 实例间完全独立（各自的订单簿、参数与性能统计）。
package store

import (
	"sort"

	"okx-trade-simulator/internal/core/engine"
)

// Store 引擎注册表
// 注意：本结构体在启动阶段由主 goroutine 一次性填充，之后只读；
// 引擎自身的并发安全由 engine.Engine 内部保证。
type Store struct {
	// engines 按交易对缓存引擎
	// key: 交易对（如 BTC-USDT-SWAP）
	engines map[string]*engine.Engine
}

// New 创建空注册表
func New() *Store {
	return &Store{
		engines: make(map[string]*engine.Engine, 4),
	}
}

// Register 注册交易对引擎
// 同名交易对重复注册时后者覆盖前者。
func (s *Store) Register(symbol string, e *engine.Engine) {
	if symbol == "" || e == nil {
		return
	}
	s.engines[symbol] = e
}

// Get 获取指定交易对的引擎
// 返回值可能为 nil。
func (s *Store) Get(symbol string) *engine.Engine {
	return s.engines[symbol]
}

// Symbols 已注册交易对列表（字典序）
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.engines))
	for sym := range s.engines {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len 已注册引擎数量
func (s *Store) Len() int {
	return len(s.engines)
}
