// Package perf 实现每 tick 的延迟/吞吐性能统计。
// 引擎每处理完一个 tick 调用一次 Record；累加器只增不减，
// 用于验证“实时”延迟预算是否达标。
package perf

import (
	"sort"
	"sync"
	"time"

	"okx-trade-simulator/internal/util/timeutil"
)

// Stats 性能统计快照
// 平均值来自进程级单调累加器，分位数来自滚动窗口。
type Stats struct {
	// TickCount 已记录的 tick 总数（累计）
	TickCount int64 `json:"tick_count"`

	// AvgBookUpdateMs 订单簿替换平均耗时（毫秒）
	AvgBookUpdateMs float64 `json:"avg_book_update_ms"`
	// AvgLatencyMs 全流程平均处理延迟（毫秒）
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// P50LatencyMs 滚动窗口 P50 延迟（毫秒）
	P50LatencyMs float64 `json:"p50_latency_ms"`
	// P95LatencyMs 滚动窗口 P95 延迟（毫秒）
	P95LatencyMs float64 `json:"p95_latency_ms"`
	// P99LatencyMs 滚动窗口 P99 延迟（毫秒）
	P99LatencyMs float64 `json:"p99_latency_ms"`

	// ThroughputPerSec 吞吐量: tick 数 / 首个 tick 以来的墙钟秒数
	ThroughputPerSec float64 `json:"throughput_per_sec"`
	// ElapsedSec 首个 tick 以来的墙钟秒数
	ElapsedSec float64 `json:"elapsed_sec"`
}

type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

func (w *rollingWindow) quantiles(qs ...float64) []int64 {
	values := make([]int64, len(qs))
	if len(w.buf) == 0 {
		return values
	}

	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	n := len(tmp)
	for i, q := range qs {
		if q <= 0 {
			values[i] = tmp[0]
			continue
		}
		if q >= 1 {
			values[i] = tmp[n-1]
			continue
		}
		idx := int(float64(n-1) * q)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		values[i] = tmp[idx]
	}
	return values
}

// Monitor 性能监视器（纯累加器）
// 进程级统计: tick 计数、簿替换耗时之和、全流程耗时之和，
// 外加一个用于 P50/P95/P99 的滚动窗口。只追加不淘汰，
// Reset 仅在显式调用时发生——引擎重新配置不会清空历史。
type Monitor struct {
	mu sync.Mutex

	// tickCount 已记录的 tick 总数
	tickCount int64
	// firstTickNs 首个 tick 的记录时间（纳秒）
	firstTickNs int64
	// updSumNs 簿替换耗时之和（纳秒）
	updSumNs int64
	// updCount 簿替换耗时样本数
	updCount int64
	// simSumNs 全流程耗时之和（纳秒）
	simSumNs int64
	// simCount 全流程耗时样本数
	simCount int64

	// window 全流程耗时滚动窗口（纳秒）
	window *rollingWindow
}

// NewMonitor 创建性能监视器
// 参数 windowSize: 分位数滚动窗口大小（建议 10000）
func NewMonitor(windowSize int) *Monitor {
	return &Monitor{
		window: newRollingWindow(windowSize),
	}
}

// Record 记录一个 tick 的耗时
// 参数 bookUpdate: 订单簿替换耗时
// 参数 total: 全流程处理耗时
func (m *Monitor) Record(bookUpdate, total time.Duration) {
	now := timeutil.NowNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickCount++
	if m.firstTickNs == 0 {
		m.firstTickNs = now
	}

	m.updSumNs += bookUpdate.Nanoseconds()
	m.updCount++
	m.simSumNs += total.Nanoseconds()
	m.simCount++

	m.window.add(total.Nanoseconds())
}

// AvgLatencyMs 全流程平均处理延迟（毫秒）
// 返回: 平均值与是否有样本；零样本时返回 (0, false)，绝不除零
func (m *Monitor) AvgLatencyMs() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.simCount == 0 {
		return 0, false
	}
	return float64(m.simSumNs) / float64(m.simCount) / 1_000_000.0, true
}

// AvgBookUpdateMs 订单簿替换平均耗时（毫秒）
// 返回: 平均值与是否有样本
func (m *Monitor) AvgBookUpdateMs() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updCount == 0 {
		return 0, false
	}
	return float64(m.updSumNs) / float64(m.updCount) / 1_000_000.0, true
}

// Throughput 吞吐量（tick/秒）
// 定义: 已记录 tick 数 / 首个 tick 以来的墙钟秒数；无样本时为 0。
func (m *Monitor) Throughput() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.throughputLocked(timeutil.NowNano())
}

func (m *Monitor) throughputLocked(nowNs int64) float64 {
	if m.tickCount == 0 || m.firstTickNs == 0 {
		return 0
	}
	elapsedSec := float64(nowNs-m.firstTickNs) / 1e9
	if elapsedSec <= 0 {
		return 0
	}
	return float64(m.tickCount) / elapsedSec
}

// Snapshot 获取完整统计快照
func (m *Monitor) Snapshot() Stats {
	now := timeutil.NowNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := Stats{TickCount: m.tickCount}

	if m.updCount > 0 {
		out.AvgBookUpdateMs = float64(m.updSumNs) / float64(m.updCount) / 1_000_000.0
	}
	if m.simCount > 0 {
		out.AvgLatencyMs = float64(m.simSumNs) / float64(m.simCount) / 1_000_000.0
	}

	qs := m.window.quantiles(0.50, 0.95, 0.99)
	out.P50LatencyMs = float64(qs[0]) / 1_000_000.0
	out.P95LatencyMs = float64(qs[1]) / 1_000_000.0
	out.P99LatencyMs = float64(qs[2]) / 1_000_000.0

	if m.firstTickNs > 0 {
		out.ElapsedSec = float64(now-m.firstTickNs) / 1e9
	}
	out.ThroughputPerSec = m.throughputLocked(now)
	return out
}

// Reset 清空全部统计
// 只在显式请求时调用；引擎 reset 默认不触及性能历史。
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickCount = 0
	m.firstTickNs = 0
	m.updSumNs = 0
	m.updCount = 0
	m.simSumNs = 0
	m.simCount = 0
	m.window = newRollingWindow(m.window.size)
}
