// Package okx 实现 OKX 交易所消息解析。
// 字段映射: ts -> Timestamp（ISO-8601）, bids/asks 前两列 -> [价格, 数量]
package okx

import (
	"encoding/json"
	"fmt"

	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/util/fastparse"
	"okx-trade-simulator/internal/util/timeutil"
)

// Parser OKX 消息解析器
// 价格与数量不在此处做数值转换：十进制字符串原样进入 BookUpdate，
// 由订单簿负责定点解析与校验。
type Parser struct {
	// symbols 已订阅的交易对集合，用于过滤未配置的 instId
	symbols map[string]bool
}

// NewParser 创建 OKX 消息解析器
// 参数 symbols: 已订阅的交易对列表（instId 格式）
func NewParser(symbols []string) *Parser {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return &Parser{
		symbols: set,
	}
}

// Parse 解析 OKX WebSocket 消息
// 参数 data: 原始消息字节
// 返回: BookUpdate 列表（一条消息可能包含多个数据）
func (p *Parser) Parse(data []byte) ([]*model.BookUpdate, error) {
	// 记录到达时间（纳秒）
	arrivedAt := timeutil.NowNano()

	// 尝试解析为 books5 消息
	var msg Books5Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 OKX 消息失败: %w", err)
	}

	// 检查是否为 books5 数据
	if msg.Arg.Channel != "books5" || len(msg.Data) == 0 {
		return nil, nil // 非 books5 消息，忽略
	}

	// 解析每条数据
	updates := make([]*model.BookUpdate, 0, len(msg.Data))
	for _, d := range msg.Data {
		update, err := p.parseBooks5Data(&d, arrivedAt)
		if err != nil {
			return nil, fmt.Errorf("解析 books5 数据失败: %w", err)
		}
		if update != nil {
			updates = append(updates, update)
		}
	}

	return updates, nil
}

// parseBooks5Data 解析单条 books5 数据
// 参数 d: books5 数据
// 参数 arrivedAt: 到达时间（纳秒）
// 返回: BookUpdate；未订阅的交易对返回 nil
func (p *Parser) parseBooks5Data(d *Books5Data, arrivedAt int64) (*model.BookUpdate, error) {
	// 过滤未订阅的交易对
	if !p.symbols[d.InstId] {
		return nil, nil
	}

	// 解析时间戳
	// OKX ts 字段为毫秒字符串，转为 ISO-8601
	ts := ""
	if ms, err := fastparse.ParseInt(d.Ts); err == nil {
		ts = timeutil.MsToISO8601(ms)
	}

	bids, err := convertSide(d.Bids, "bids")
	if err != nil {
		return nil, err
	}
	asks, err := convertSide(d.Asks, "asks")
	if err != nil {
		return nil, err
	}

	return &model.BookUpdate{
		Timestamp:       ts,
		Exchange:        model.ExchangeOKX,
		Symbol:          d.InstId,
		Bids:            bids,
		Asks:            asks,
		ArrivedAtUnixNs: arrivedAt,
	}, nil
}

// convertSide 提取一侧深度的 [价格, 数量] 两列
// OKX 每档为 [价格, 数量, 废弃, 订单数]，后两列丢弃。
func convertSide(raw [][]string, side string) ([][2]string, error) {
	out := make([][2]string, 0, len(raw))
	for i, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("%s[%d]: 档位字段不足", side, i)
		}
		out = append(out, [2]string{lvl[0], lvl[1]})
	}
	return out, nil
}

// IsSubscribeResponse 判断是否为订阅响应
func IsSubscribeResponse(data []byte) bool {
	var resp SubscribeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false
	}
	return resp.Event == "subscribe" || resp.Event == "error"
}

// IsPong 判断是否为 pong 响应
func IsPong(data []byte) bool {
	return string(data) == "pong"
}
