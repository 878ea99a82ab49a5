// Package book 订单簿测试
package book

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"okx-trade-simulator/internal/core/model"
)

func mustUpdate(t *testing.T, b *OrderBook, u *model.BookUpdate) {
	t.Helper()
	if _, err := b.Update(u); err != nil {
		t.Fatalf("Update 失败: %v", err)
	}
}

func sampleUpdate() *model.BookUpdate {
	return &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Exchange:  model.ExchangeOKX,
		Symbol:    "BTC-USDT-SWAP",
		Asks: [][2]string{
			{"95445.5", "9.06"},
			{"95448.0", "2.05"},
		},
		Bids: [][2]string{
			{"95445.4", "1104.23"},
			{"95445.3", "0.02"},
		},
	}
}

func TestOrderBook_Update_Replace(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	if b.Initialized() {
		t.Fatalf("空簿不应标记为已初始化")
	}

	mustUpdate(t, b, sampleUpdate())
	if !b.Initialized() {
		t.Fatalf("首条更新后应标记为已初始化")
	}

	bid, ok := b.BestBid()
	if !ok || !bid.Equal(decimal.RequireFromString("95445.4")) {
		t.Fatalf("BestBid=%s, want 95445.4", bid)
	}
	ask, ok := b.BestAsk()
	if !ok || !ask.Equal(decimal.RequireFromString("95445.5")) {
		t.Fatalf("BestAsk=%s, want 95445.5", ask)
	}

	mid, err := b.MidPrice()
	if err != nil {
		t.Fatalf("MidPrice 失败: %v", err)
	}
	if !mid.Equal(decimal.RequireFromString("95445.45")) {
		t.Fatalf("MidPrice=%s, want 95445.45", mid)
	}

	spread, err := b.Spread()
	if err != nil {
		t.Fatalf("Spread 失败: %v", err)
	}
	if !spread.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("Spread=%s, want 0.1", spread)
	}

	// 整体替换：第二条消息完全覆盖第一条
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:14Z",
		Asks:      [][2]string{{"96000", "1"}},
		Bids:      [][2]string{{"95999", "1"}},
	})
	bid, _ = b.BestBid()
	if !bid.Equal(decimal.RequireFromString("95999")) {
		t.Fatalf("替换后 BestBid=%s, want 95999", bid)
	}
	bids, asks := b.Depth(10)
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("替换后深度 bids=%d asks=%d, want 1/1", len(bids), len(asks))
	}
}

func TestOrderBook_Update_SortsUnorderedLevels(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"101", "1"}, {"100.5", "1"}, {"102", "1"}},
		Bids:      [][2]string{{"99", "1"}, {"100", "1"}, {"98.5", "1"}},
	})

	bids, asks := b.Depth(10)
	for i := 1; i < len(bids); i++ {
		if bids[i].Price.Cmp(bids[i-1].Price) >= 0 {
			t.Fatalf("买盘未按严格降序排列: %s >= %s", bids[i].Price, bids[i-1].Price)
		}
	}
	for i := 1; i < len(asks); i++ {
		if asks[i].Price.Cmp(asks[i-1].Price) <= 0 {
			t.Fatalf("卖盘未按严格升序排列: %s <= %s", asks[i].Price, asks[i-1].Price)
		}
	}
}

func TestOrderBook_Update_DropsZeroQty(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"101", "0"}, {"102", "1"}},
		Bids:      [][2]string{{"100", "1"}, {"99", "0"}},
	})

	bids, asks := b.Depth(10)
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("数量为零的档位应被丢弃: bids=%d asks=%d", len(bids), len(asks))
	}
}

func TestOrderBook_Update_Malformed(t *testing.T) {
	cases := []struct {
		name string
		u    *model.BookUpdate
	}{
		{"价格非数值", &model.BookUpdate{Asks: [][2]string{{"abc", "1"}}, Bids: [][2]string{{"100", "1"}}}},
		{"数量非数值", &model.BookUpdate{Asks: [][2]string{{"101", "x"}}, Bids: [][2]string{{"100", "1"}}}},
		{"价格为零", &model.BookUpdate{Asks: [][2]string{{"0", "1"}}, Bids: [][2]string{{"100", "1"}}}},
		{"价格为负", &model.BookUpdate{Asks: [][2]string{{"-1", "1"}}, Bids: [][2]string{{"100", "1"}}}},
		{"数量为负", &model.BookUpdate{Asks: [][2]string{{"101", "-2"}}, Bids: [][2]string{{"100", "1"}}}},
		{"同侧重复价格", &model.BookUpdate{Asks: [][2]string{{"101", "1"}, {"101", "2"}}, Bids: [][2]string{{"100", "1"}}}},
		{"消息为空", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
			mustUpdate(t, b, sampleUpdate())

			if _, err := b.Update(tc.u); !errors.Is(err, ErrMalformedUpdate) {
				t.Fatalf("err=%v, want ErrMalformedUpdate", err)
			}

			// 非法消息不得污染已有状态
			bid, ok := b.BestBid()
			if !ok || !bid.Equal(decimal.RequireFromString("95445.4")) {
				t.Fatalf("非法更新后旧状态被破坏: BestBid=%s", bid)
			}
		})
	}
}

func TestOrderBook_Update_Crossed(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	_, err := b.Update(&model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"100", "1"}},
		Bids:      [][2]string{{"100.5", "1"}},
	})
	if !errors.Is(err, ErrCrossedBook) {
		t.Fatalf("err=%v, want ErrCrossedBook", err)
	}

	// 交叉非致命：状态已生效
	bid, ok := b.BestBid()
	if !ok || !bid.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("交叉簿状态未生效: BestBid=%s", bid)
	}
}

func TestOrderBook_MidPrice_EmptySide(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"100", "1"}},
		Bids:      nil,
	})

	if _, err := b.MidPrice(); !errors.Is(err, ErrInsufficientDepth) {
		t.Fatalf("单侧为空时 MidPrice 应返回 ErrInsufficientDepth, got %v", err)
	}
	if _, err := b.Spread(); !errors.Is(err, ErrInsufficientDepth) {
		t.Fatalf("单侧为空时 Spread 应返回 ErrInsufficientDepth, got %v", err)
	}
	if _, err := b.Features(10); !errors.Is(err, ErrInsufficientDepth) {
		t.Fatalf("单侧为空时 Features 应返回 ErrInsufficientDepth, got %v", err)
	}
}

func TestOrderBook_MarketOrderCost_Buy(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, sampleUpdate())

	// $500,000 买单：最优卖档名义 95445.5×9.06 ≈ $864,736，一档吃满
	cost, err := b.MarketOrderCost(decimal.NewFromInt(500_000), true)
	if err != nil {
		t.Fatalf("MarketOrderCost 失败: %v", err)
	}

	avg, _ := cost.AvgPrice.Float64()
	if math.Abs(avg-95445.5) > 1e-6 {
		t.Fatalf("AvgPrice=%v, want 95445.5", avg)
	}

	// 滑点 = (95445.5 - 95445.45) / 95445.45 × 100 ≈ +0.0000524%
	want := (95445.5 - 95445.45) / 95445.45 * 100
	if math.Abs(cost.SlippagePct-want) > 1e-9 {
		t.Fatalf("SlippagePct=%v, want %v", cost.SlippagePct, want)
	}
}

func TestOrderBook_MarketOrderCost_MultiLevel(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"100", "1"}, {"101", "1"}},
		Bids:      [][2]string{{"99", "1000"}},
	})

	// $150 买单：吃满 100×1，再吃 101 档 $50
	cost, err := b.MarketOrderCost(decimal.NewFromInt(150), true)
	if err != nil {
		t.Fatalf("MarketOrderCost 失败: %v", err)
	}
	if !cost.TotalCostUSD.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("TotalCostUSD=%s, want 150", cost.TotalCostUSD)
	}

	// 成交数量 = 1 + 50/101，VWAP = 150 / (1 + 50/101)
	wantAvg := 150.0 / (1.0 + 50.0/101.0)
	avg, _ := cost.AvgPrice.Float64()
	if math.Abs(avg-wantAvg) > 1e-9 {
		t.Fatalf("AvgPrice=%v, want %v", avg, wantAvg)
	}
}

func TestOrderBook_MarketOrderCost_Sell(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"100.5", "10"}},
		Bids:      [][2]string{{"100", "10"}},
	})

	cost, err := b.MarketOrderCost(decimal.NewFromInt(500), false)
	if err != nil {
		t.Fatalf("MarketOrderCost 失败: %v", err)
	}

	// 卖单按 (mid-avg)/mid 取号：成交价低于中间价时滑点为正
	if cost.SlippagePct <= 0 {
		t.Fatalf("卖单劣于中间价时滑点应为正, got %v", cost.SlippagePct)
	}
}

func TestOrderBook_MarketOrderCost_InsufficientLiquidity(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"100", "1"}},
		Bids:      [][2]string{{"99", "1"}},
	})

	if _, err := b.MarketOrderCost(decimal.NewFromInt(1_000_000), true); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("err=%v, want ErrInsufficientLiquidity", err)
	}
}

func TestOrderBook_Features(t *testing.T) {
	b := New(model.ExchangeOKX, "BTC-USDT-SWAP")
	mustUpdate(t, b, &model.BookUpdate{
		Timestamp: "2025-05-04T10:39:13Z",
		Asks:      [][2]string{{"101", "1"}},
		Bids:      [][2]string{{"99", "3"}},
	})

	f, err := b.Features(10)
	if err != nil {
		t.Fatalf("Features 失败: %v", err)
	}

	if f.MidPrice != 100 {
		t.Fatalf("MidPrice=%v, want 100", f.MidPrice)
	}
	if f.Spread != 2 {
		t.Fatalf("Spread=%v, want 2", f.Spread)
	}
	if f.SpreadPct != 2 {
		t.Fatalf("SpreadPct=%v, want 2", f.SpreadPct)
	}

	// imbalance = (99×3 - 101×1) / (99×3 + 101×1)
	want := (297.0 - 101.0) / (297.0 + 101.0)
	if math.Abs(f.Imbalance-want) > 1e-12 {
		t.Fatalf("Imbalance=%v, want %v", f.Imbalance, want)
	}
	if f.Imbalance < -1 || f.Imbalance > 1 {
		t.Fatalf("Imbalance=%v 超出 [-1,1]", f.Imbalance)
	}

	// 波动率不来自簿状态
	if f.Volatility != 0 {
		t.Fatalf("Volatility=%v, want 0（由引擎注入）", f.Volatility)
	}

	// 已知名称可解析，未知名称拒绝
	if _, ok := f.Get(FeatureMidPrice); !ok {
		t.Fatalf("已知特征名应可解析")
	}
	if _, ok := f.Get("no_such_feature"); ok {
		t.Fatalf("未知特征名不应解析成功")
	}
}
