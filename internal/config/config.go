// Package config 负责加载和验证 YAML 配置文件。
// 提供扫描器所需的全部配置项：数据源、指标参数、评分权重、过滤阈值、
// 监控与输出设置。未知键忽略，缺失键回退默认值；权重和不为 100
// 属于硬性校验失败，绝不静默归一化。
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WeightKeys 评分维度的全部合法键
// 配置文件中出现的其他键会被忽略。
var WeightKeys = []string{
	"structure", "divergence", "volume_price", "time",
	"position", "sub_level", "strength", "confirmation",
}

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Feed 数据源配置
	Feed FeedConfig `yaml:"feed"`
	// Indicator 指标参数
	Indicator IndicatorConfig `yaml:"indicator"`
	// Scorer 信号评分配置
	Scorer ScorerConfig `yaml:"scorer"`
	// Filter 信号过滤配置
	Filter FilterConfig `yaml:"filter"`
	// Monitor 实时监控配置
	Monitor MonitorConfig `yaml:"monitor"`
	// Backtest 影子回测配置
	Backtest BacktestConfig `yaml:"backtest"`
	// Store 信号持久化配置
	Store StoreConfig `yaml:"store"`
	// Notify 通知配置
	Notify NotifyConfig `yaml:"notify"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// FeedConfig 数据源配置
type FeedConfig struct {
	// Source 数据来源: csv 或 binance
	Source string `yaml:"source"`
	// CSVPath CSV 文件路径（source=csv 时必填）
	CSVPath string `yaml:"csv_path"`
	// Symbol 交易对，如 BTCUSDT
	Symbol string `yaml:"symbol"`
	// Interval K 线周期，如 5m / 1h
	Interval string `yaml:"interval"`
	// RESTURL 历史 K 线 REST 地址
	RESTURL string `yaml:"rest_url"`
	// WSURL 实时 K 线 WebSocket 地址
	WSURL string `yaml:"ws_url"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// ReadTimeoutMs WebSocket 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// HistoryBars 启动时拉取的历史 K 线数量
	HistoryBars int `yaml:"history_bars"`
}

// IndicatorConfig 指标参数
type IndicatorConfig struct {
	// MACDFast MACD 快线 EMA 跨度
	MACDFast int `yaml:"macd_fast"`
	// MACDSlow MACD 慢线 EMA 跨度
	MACDSlow int `yaml:"macd_slow"`
	// MACDSignal MACD 信号线 EMA 跨度
	MACDSignal int `yaml:"macd_signal"`
	// ATRPeriod ATR 周期
	ATRPeriod int `yaml:"atr_period"`
}

// ScorerConfig 信号评分配置
type ScorerConfig struct {
	// Weights 八个维度的权重，总和必须为 100
	Weights map[string]float64 `yaml:"weights"`
	// MinScore 最低综合评分，低于此值的信号在过滤前即被丢弃
	MinScore float64 `yaml:"min_score"`
}

// FilterConfig 信号过滤配置
type FilterConfig struct {
	// CheckStructureComplete 是否强制要求结构完整
	CheckStructureComplete bool `yaml:"check_structure_complete"`
	// CheckFractalConfirmation 是否强制要求分型确认
	CheckFractalConfirmation bool `yaml:"check_fractal_confirmation"`
	// CheckPositionClear 是否强制要求价格位置清晰
	CheckPositionClear bool `yaml:"check_position_clear"`
	// LimitMovePercent 涨跌停/极端波动排除阈值（百分比）
	LimitMovePercent float64 `yaml:"limit_move_percent"`
	// LowLiquidityWindowMinutes 低流动性时段窗口（分钟）
	LowLiquidityWindowMinutes int `yaml:"low_liquidity_window_minutes"`
	// MinATR 市场状态过滤的最小 ATR（0 表示不启用）
	MinATR float64 `yaml:"min_atr"`
	// MaxStopPercent 止损距离占信号价的最大百分比
	MaxStopPercent float64 `yaml:"max_stop_percent"`
}

// MonitorConfig 实时监控配置
type MonitorConfig struct {
	// WindowBars 滑动窗口 K 线数量（限制在 500–2000）
	WindowBars int `yaml:"window_bars"`
	// IntervalMs 轮询间隔（毫秒），仅 CSV 重放时有效
	IntervalMs int `yaml:"interval_ms"`
}

// BacktestConfig 影子回测配置
type BacktestConfig struct {
	// Equity 初始权益
	Equity float64 `yaml:"equity"`
	// RiskRatio 单笔风险占权益比例
	RiskRatio float64 `yaml:"risk_ratio"`
	// MaxHoldBars 最长持仓 K 线数，超时强制平仓
	MaxHoldBars int `yaml:"max_hold_bars"`
}

// StoreConfig 信号持久化配置
type StoreConfig struct {
	// Enabled 是否启用数据库持久化
	Enabled bool `yaml:"enabled"`
	// DSN PostgreSQL 连接串
	DSN string `yaml:"dsn"`
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	// Console 是否输出到控制台
	Console bool `yaml:"console"`
	// WebhookURL Webhook 地址（为空则不推送）
	WebhookURL string `yaml:"webhook_url"`
	// TimeoutMs Webhook 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// SignalsEnabled 是否输出信号文件
	SignalsEnabled bool `yaml:"signals_enabled"`
	// TradesEnabled 是否输出回测成交文件
	TradesEnabled bool `yaml:"trades_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// Default 返回全默认配置
// 数据源路径等必填项仍需调用方补齐后再 Validate。
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// DefaultWeights 默认评分权重（总和 100）
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"structure":    20,
		"divergence":   20,
		"volume_price": 10,
		"time":         10,
		"position":     10,
		"sub_level":    10,
		"strength":     10,
		"confirmation": 10,
	}
}

// setDefaults 设置配置默认值
// 权重表只接收合法键：未知键忽略，缺失键取默认。
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "chan-structure-scanner"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Feed.Source == "" {
		c.Feed.Source = "csv"
	}
	if c.Feed.Interval == "" {
		c.Feed.Interval = "5m"
	}
	if c.Feed.TimeoutMs == 0 {
		c.Feed.TimeoutMs = 10000
	}
	if c.Feed.ReadTimeoutMs == 0 {
		c.Feed.ReadTimeoutMs = 30000
	}
	if c.Feed.PingIntervalMs == 0 {
		c.Feed.PingIntervalMs = 25000
	}
	if c.Feed.HistoryBars == 0 {
		c.Feed.HistoryBars = 1000
	}

	if c.Indicator.MACDFast == 0 {
		c.Indicator.MACDFast = 12
	}
	if c.Indicator.MACDSlow == 0 {
		c.Indicator.MACDSlow = 26
	}
	if c.Indicator.MACDSignal == 0 {
		c.Indicator.MACDSignal = 9
	}
	if c.Indicator.ATRPeriod == 0 {
		c.Indicator.ATRPeriod = 14
	}

	defaults := DefaultWeights()
	merged := make(map[string]float64, len(defaults))
	for _, key := range WeightKeys {
		if v, ok := c.Scorer.Weights[key]; ok {
			merged[key] = v
		} else {
			merged[key] = defaults[key]
		}
	}
	c.Scorer.Weights = merged
	if c.Scorer.MinScore == 0 {
		c.Scorer.MinScore = 60
	}

	if c.Filter.LimitMovePercent == 0 {
		c.Filter.LimitMovePercent = 2.0
	}
	if c.Filter.LowLiquidityWindowMinutes == 0 {
		c.Filter.LowLiquidityWindowMinutes = 30
	}
	if c.Filter.MaxStopPercent == 0 {
		c.Filter.MaxStopPercent = 2.0
	}

	if c.Monitor.WindowBars == 0 {
		c.Monitor.WindowBars = 1000
	}
	if c.Monitor.WindowBars < 500 {
		c.Monitor.WindowBars = 500
	}
	if c.Monitor.WindowBars > 2000 {
		c.Monitor.WindowBars = 2000
	}
	if c.Monitor.IntervalMs == 0 {
		c.Monitor.IntervalMs = 60000
	}

	if c.Backtest.Equity == 0 {
		c.Backtest.Equity = 100000
	}
	if c.Backtest.RiskRatio == 0 {
		c.Backtest.RiskRatio = 0.01
	}
	if c.Backtest.MaxHoldBars == 0 {
		c.Backtest.MaxHoldBars = 120
	}

	if c.Notify.TimeoutMs == 0 {
		c.Notify.TimeoutMs = 5000
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围，一次性收集全部错误。
func (c *Config) Validate() error {
	var errs []string

	switch c.Feed.Source {
	case "csv":
		if c.Feed.CSVPath == "" {
			errs = append(errs, "feed.csv_path: source=csv 时文件路径不能为空")
		}
	case "binance":
		if c.Feed.Symbol == "" {
			errs = append(errs, "feed.symbol: source=binance 时交易对不能为空")
		}
	default:
		errs = append(errs, fmt.Sprintf("feed.source: 无效的数据来源 '%s'，有效值: csv, binance", c.Feed.Source))
	}

	if c.Indicator.MACDFast >= c.Indicator.MACDSlow {
		errs = append(errs, "indicator: macd_fast 必须小于 macd_slow")
	}
	if c.Indicator.ATRPeriod < 1 {
		errs = append(errs, "indicator.atr_period: ATR 周期必须为正数")
	}

	// 权重和必须为 100，硬性失败，不归一化
	var total float64
	for _, key := range WeightKeys {
		w := c.Scorer.Weights[key]
		if w < 0 {
			errs = append(errs, fmt.Sprintf("scorer.weights.%s: 权重不能为负数", key))
		}
		total += w
	}
	if math.Abs(total-100.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("scorer.weights: 权重总和应为 100，当前为 %.2f", total))
	}

	if c.Scorer.MinScore < 0 || c.Scorer.MinScore > 100 {
		errs = append(errs, "scorer.min_score: 最低评分必须在 0-100 之间")
	}

	if c.Filter.LimitMovePercent < 0 {
		errs = append(errs, "filter.limit_move_percent: 阈值不能为负数")
	}
	if c.Filter.MaxStopPercent <= 0 {
		errs = append(errs, "filter.max_stop_percent: 止损比例必须为正数")
	}

	if c.Backtest.RiskRatio <= 0 || c.Backtest.RiskRatio > 0.5 {
		errs = append(errs, "backtest.risk_ratio: 单笔风险比例必须在 (0, 0.5] 之间")
	}

	if c.Store.Enabled && c.Store.DSN == "" {
		errs = append(errs, "store.dsn: 启用持久化时连接串不能为空")
	}

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
