package model

// ModelValue 单个模型输出的带标记结果
// Valid=false 表示该模型在本 tick 评估失败，Value 无意义；
// 用显式标记区分“评估失败”与“真实为零”，避免空值双关。
type ModelValue struct {
	// Value 模型输出值
	Value float64 `json:"value"`
	// Valid 是否有效
	Valid bool `json:"valid"`
	// Err 失败原因（Valid=false 时）
	Err string `json:"err,omitempty"`
}

// OK 构造有效结果
func OK(v float64) ModelValue {
	return ModelValue{Value: v, Valid: true}
}

// Unavailable 构造失败结果
func Unavailable(err error) ModelValue {
	if err == nil {
		return ModelValue{}
	}
	return ModelValue{Err: err.Error()}
}

// TickResult 单个 tick 的成本评估结果
// 不可变；引擎只保留最近一条，历史由调用方自行维护。
type TickResult struct {
	// SimulationID 本次模拟运行的唯一标识
	SimulationID string `json:"simulation_id"`
	// Timestamp 行情事件时间（ISO-8601，来自入站消息）
	Timestamp string `json:"timestamp"`

	// BestBid 最优买价
	BestBid float64 `json:"best_bid"`
	// BestAsk 最优卖价
	BestAsk float64 `json:"best_ask"`
	// MidPrice 中间价
	MidPrice float64 `json:"mid_price"`
	// Spread 买卖价差
	Spread float64 `json:"spread"`

	// SlippagePct 预测滑点（中间价百分比）
	SlippagePct ModelValue `json:"slippage_pct"`
	// FeeUSD 预期手续费（USD）
	FeeUSD ModelValue `json:"fee_usd"`
	// MarketImpactPct 预期市场冲击（中间价百分比，暂时+永久）
	MarketImpactPct ModelValue `json:"market_impact_pct"`
	// MakerProportion 预测 Maker 成交占比（0-1）
	MakerProportion ModelValue `json:"maker_proportion"`
	// NetCostUSD 合计净成本（USD）
	NetCostUSD ModelValue `json:"net_cost_usd"`

	// Crossed 本 tick 订单簿是否交叉（best_bid >= best_ask）
	// 交叉簿在快市中短暂出现，只标记不拒绝
	Crossed bool `json:"crossed,omitempty"`
	// Degraded 是否存在评估失败的模型（部分失败语义）
	Degraded bool `json:"degraded,omitempty"`

	// BookUpdateMs 订单簿替换耗时（毫秒）
	BookUpdateMs float64 `json:"book_update_ms"`
	// InternalLatencyMs 全流程处理延迟（毫秒）
	InternalLatencyMs float64 `json:"internal_latency_ms"`
}
