// Package replay 实现 JSONL 行情文件回放数据源。
// 每行一条订单簿更新消息，格式与 WebSocket 落盘格式一致，
// 用于离线重算成本与回归验证。
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/util/timeutil"
)

// Source JSONL 行情回放源
// 与 WebSocket 客户端暴露相同的通道接口，聚合器无需区分数据来源。
type Source struct {
	// path JSONL 文件路径
	path string
	// interval 相邻消息之间的固定间隔，0 表示全速回放
	interval time.Duration
	// symbols 订阅的交易对集合；为空时不过滤
	symbols map[string]bool
	// logger 日志记录器
	logger *zap.Logger
	// bookCh 订单簿更新输出通道
	bookCh chan *model.BookUpdate
	// lineCount 已发出的消息计数
	lineCount int64
	// skipCount 被跳过的非法行计数
	skipCount int64
}

// New 创建回放源
// 参数 path: JSONL 文件路径
// 参数 intervalMs: 消息间隔（毫秒），0 表示全速
// 参数 symbols: 订阅的交易对列表；为空时全量回放
func New(path string, intervalMs int, symbols []string, logger *zap.Logger) *Source {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return &Source{
		path:     path,
		interval: time.Duration(intervalMs) * time.Millisecond,
		symbols:  set,
		logger:   logger.Named("replay"),
		bookCh:   make(chan *model.BookUpdate, 1000),
	}
}

// Run 回放文件直至读完或上下文取消
// 结束时关闭输出通道，聚合器以通道关闭感知回放完成。
func (s *Source) Run(ctx context.Context) error {
	defer close(s.bookCh)

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("打开回放文件失败: %w", err)
	}
	defer f.Close()

	s.logger.Info("开始回放", zap.String("file", s.path), zap.Duration("interval", s.interval))

	scanner := bufio.NewScanner(f)
	// 单行深度数据可能超过默认 64KB 上限
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var update model.BookUpdate
		if err := json.Unmarshal(line, &update); err != nil {
			// 坏行跳过不中断：回放文件可能带有截断的尾行
			atomic.AddInt64(&s.skipCount, 1)
			s.logger.Warn("跳过非法回放行", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		if len(s.symbols) > 0 && !s.symbols[update.Symbol] {
			continue
		}
		update.ArrivedAtUnixNs = timeutil.NowNano()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.bookCh <- &update:
			atomic.AddInt64(&s.lineCount, 1)
		}

		if s.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.interval):
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取回放文件失败: %w", err)
	}

	s.logger.Info("回放完成",
		zap.Int64("emitted", atomic.LoadInt64(&s.lineCount)),
		zap.Int64("skipped", atomic.LoadInt64(&s.skipCount)))
	return nil
}

// BookCh 获取订单簿更新通道
func (s *Source) BookCh() <-chan *model.BookUpdate {
	return s.bookCh
}

// Emitted 已发出的消息计数
func (s *Source) Emitted() int64 {
	return atomic.LoadInt64(&s.lineCount)
}
