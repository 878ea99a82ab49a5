// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括行情连接、成本模型、模拟参数与输出设置。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"okx-trade-simulator/internal/core/model"
	"okx-trade-simulator/internal/cost/fee"
	"okx-trade-simulator/internal/cost/impact"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Symbols 用户配置的交易对列表
	Symbols []SymbolConfig `yaml:"symbols"`
	// WS WebSocket 连接配置
	WS WSConfig `yaml:"ws"`
	// Replay 行情回放配置（设置后替代 WebSocket 数据源）
	Replay ReplayConfig `yaml:"replay"`
	// Fees 手续费等级表配置
	Fees FeesConfig `yaml:"fees"`
	// Models 成本模型配置
	Models ModelsConfig `yaml:"models"`
	// Simulation 模拟参数默认值
	Simulation model.Parameters `yaml:"simulation"`
	// Perf 性能统计配置
	Perf PerfConfig `yaml:"perf"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// LogFile 日志文件路径；为空时只输出到标准错误
	LogFile string `yaml:"log_file"`
	// LogMaxSizeMB 单个日志文件大小上限（MB），超过即轮转
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	// LogMaxBackups 轮转后保留的历史文件数
	LogMaxBackups int `yaml:"log_max_backups"`
}

// SymbolConfig 交易对配置
type SymbolConfig struct {
	// Input 用户输入的交易对格式，如 BTC-USDT-SWAP
	Input string `yaml:"input"`
}

// WSConfig WebSocket 连接配置
type WSConfig struct {
	// OKX OKX WebSocket 配置
	OKX ExchangeWSConfig `yaml:"okx"`
}

// ExchangeWSConfig 单个交易所的 WebSocket 配置
type ExchangeWSConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
	// ReadTimeoutMs 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// ReplayConfig 行情回放配置
type ReplayConfig struct {
	// File JSONL 行情文件路径；非空时启用回放模式
	File string `yaml:"file"`
	// IntervalMs 相邻消息之间的固定间隔（毫秒），0 表示全速回放
	IntervalMs int `yaml:"interval_ms"`
}

// FeesConfig 手续费等级表配置
type FeesConfig struct {
	// Tiers 按交易所划分的等级表；为空时使用内置 OKX 等级表
	Tiers fee.TierTable `yaml:"tiers"`
}

// ModelsConfig 成本模型配置
type ModelsConfig struct {
	// SlippageFile 滑点回归系数文件（JSON）；为空时使用内置系数
	SlippageFile string `yaml:"slippage_file"`
	// MakerTakerFile Maker/Taker 逻辑回归系数文件（JSON）；为空时使用内置系数
	MakerTakerFile string `yaml:"maker_taker_file"`
	// ImpactFile Almgren-Chriss 参数文件（key=value）；为空时使用内置参数
	ImpactFile string `yaml:"impact_file"`
	// ImpactBasis 参与率基准: usd 或 base；为空时按 usd 处理
	ImpactBasis string `yaml:"impact_basis"`
}

// PerfConfig 性能统计配置
type PerfConfig struct {
	// WindowSize 延迟分位数滚动窗口大小
	WindowSize int `yaml:"window_size"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// ResultsEnabled 是否输出每 tick 成本结果文件
	ResultsEnabled bool `yaml:"results_enabled"`
	// MetricsEnabled 是否输出性能指标文件
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsIntervalMs 指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析 YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	cfg.setDefaults()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	// 应用默认值
	if c.App.Name == "" {
		c.App.Name = "okx-trade-simulator"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogMaxSizeMB == 0 {
		c.App.LogMaxSizeMB = 100
	}
	if c.App.LogMaxBackups == 0 {
		c.App.LogMaxBackups = 3
	}

	// WebSocket 默认配置
	if c.WS.OKX.URL == "" {
		c.WS.OKX.URL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.WS.OKX.PingIntervalMs == 0 {
		c.WS.OKX.PingIntervalMs = 25000 // 25 秒
	}
	if c.WS.OKX.PongTimeoutMs == 0 {
		c.WS.OKX.PongTimeoutMs = 10000 // 10 秒
	}
	if c.WS.OKX.ReadTimeoutMs == 0 {
		c.WS.OKX.ReadTimeoutMs = 30000 // 30 秒
	}

	// 模拟参数默认值
	if c.Simulation.Exchange == "" {
		c.Simulation.Exchange = model.ExchangeOKX
	}
	if c.Simulation.FeeTier == "" {
		c.Simulation.FeeTier = "Tier 1"
	}
	if c.Simulation.OrderType == "" {
		c.Simulation.OrderType = model.OrderTypeMarket
	}
	if c.Simulation.QuantityUSD == 0 {
		c.Simulation.QuantityUSD = 100
	}
	if c.Simulation.AvgDailyVolumeUSD == 0 {
		c.Simulation.AvgDailyVolumeUSD = 1_000_000_000 // 10 亿 USD
	}
	if c.Simulation.Volatility == 0 {
		c.Simulation.Volatility = 0.3
	}

	// 性能统计默认值
	if c.Perf.WindowSize == 0 {
		c.Perf.WindowSize = 10000
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 10000 // 10 秒
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证交易对配置
	if len(c.Symbols) == 0 {
		errs = append(errs, "symbols: 至少需要配置一个交易对")
	}
	for i, sym := range c.Symbols {
		if sym.Input == "" {
			errs = append(errs, fmt.Sprintf("symbols[%d].input: 交易对不能为空", i))
		}
	}

	// 验证数据源配置：回放模式下不要求 WebSocket 地址
	if c.Replay.File == "" && c.WS.OKX.URL == "" {
		errs = append(errs, "ws.okx.url: OKX WebSocket 地址不能为空")
	}
	if c.Replay.IntervalMs < 0 {
		errs = append(errs, "replay.interval_ms: 回放间隔不能为负数")
	}

	// 验证手续费等级表（范围 0-1）
	for exchange, tiers := range c.Fees.Tiers {
		for i, t := range tiers {
			if err := validateFeeRate(t.MakerRate, fmt.Sprintf("fees.tiers.%s[%d].maker_rate", exchange, i)); err != nil {
				errs = append(errs, err.Error())
			}
			if err := validateFeeRate(t.TakerRate, fmt.Sprintf("fees.tiers.%s[%d].taker_rate", exchange, i)); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	// 验证冲击模型参与率基准
	switch impact.Basis(c.Models.ImpactBasis) {
	case "", impact.BasisUSD, impact.BasisBase:
	default:
		errs = append(errs, fmt.Sprintf("models.impact_basis: 无效的参与率基准 '%s'，有效值: usd, base", c.Models.ImpactBasis))
	}

	// 验证模拟参数
	if c.Simulation.QuantityUSD <= 0 {
		errs = append(errs, "simulation.quantity_usd: 订单名义价值必须为正数")
	}
	if c.Simulation.AvgDailyVolumeUSD <= 0 {
		errs = append(errs, "simulation.avg_daily_volume_usd: 日均成交量必须为正数")
	}
	if c.Simulation.Volatility < 0 {
		errs = append(errs, "simulation.volatility: 波动率不能为负数")
	}
	if c.Simulation.OrderType != model.OrderTypeMarket && c.Simulation.OrderType != model.OrderTypeLimit {
		errs = append(errs, fmt.Sprintf("simulation.order_type: 无效的订单类型 '%s'，有效值: market, limit", c.Simulation.OrderType))
	}

	// 验证输出配置
	if c.Output.MetricsIntervalMs <= 0 {
		errs = append(errs, "output.metrics_interval_ms: 指标输出间隔必须为正数")
	}
	if c.Output.BufferSize <= 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小必须为正数")
	}

	// 验证性能统计配置
	if c.Perf.WindowSize <= 0 {
		errs = append(errs, "perf.window_size: 滚动窗口大小必须为正数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateFeeRate 验证手续费率范围
// 参数 rate: 费率值
// 参数 field: 字段名称，用于错误消息
// 返回: 若费率无效则返回错误
func validateFeeRate(rate float64, field string) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%s: 费率必须在 0-1 之间，当前值: %f", field, rate)
	}
	return nil
}

// GetSymbolInputs 获取所有配置的交易对输入
// 返回: 交易对输入字符串列表
func (c *Config) GetSymbolInputs() []string {
	inputs := make([]string, len(c.Symbols))
	for i, sym := range c.Symbols {
		inputs[i] = sym.Input
	}
	return inputs
}

// FeeTable 有效手续费等级表
// 配置为空时回退到内置 OKX 等级表。
func (c *Config) FeeTable() fee.TierTable {
	if len(c.Fees.Tiers) == 0 {
		return fee.DefaultTable()
	}
	return c.Fees.Tiers
}
