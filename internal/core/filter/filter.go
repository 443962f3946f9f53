// Package filter 对已评分信号做多级过滤与确认。
// 过滤按固定顺序短路：强制条件、排除条件、评分门槛、市场状态、
// 风险控制；任一级拒绝即返回原因，不再继续。
package filter

import (
	"fmt"
	"time"

	"chan-structure-scanner/internal/core/model"
)

// Config 过滤器配置
type Config struct {
	// CheckStructureComplete 强制要求结构完整
	CheckStructureComplete bool
	// CheckFractalConfirmation 强制要求分型确认
	CheckFractalConfirmation bool
	// CheckPositionClear 强制要求价格位置清晰（非区间中部模糊带）
	CheckPositionClear bool
	// MinScore 最低综合评分
	MinScore float64
	// LimitMovePercent 单根 K 线极端波动排除阈值（百分比）
	LimitMovePercent float64
	// LowLiquidityWindowMinutes 开收盘前后的低流动性窗口（分钟）
	LowLiquidityWindowMinutes int
	// MinATR 最小 ATR，低于此值视为波动不足（0 不启用）
	MinATR float64
	// MaxStopPercent 止损距离占信号价的最大百分比
	MaxStopPercent float64
}

// MarketContext 过滤所需的市场快照
type MarketContext struct {
	// ATR 当前 ATR 值
	ATR float64
	// LastBarMovePercent 最近一根 K 线的涨跌幅（百分比，带符号）
	LastBarMovePercent float64
	// SessionOpen / SessionClose 交易时段边界；零值表示连续交易市场
	SessionOpen  time.Time
	SessionClose time.Time
}

// Filter 信号过滤器
type Filter struct {
	cfg Config
}

// New 创建过滤器
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Apply 执行全部过滤级别并写回 Signal.Accepted
// 返回是否通过以及拒绝原因（通过时为空串）。
func (f *Filter) Apply(sig *model.Signal, mkt MarketContext) (bool, string) {
	checks := []func(*model.Signal, MarketContext) (bool, string){
		f.mandatory,
		f.exclusion,
		f.scoreGate,
		f.marketState,
		f.riskControl,
	}
	for _, check := range checks {
		if ok, reason := check(sig, mkt); !ok {
			sig.Accepted = false
			return false, reason
		}
	}
	sig.Accepted = true
	return true, ""
}

// mandatory 强制条件：缺一即拒
func (f *Filter) mandatory(sig *model.Signal, _ MarketContext) (bool, string) {
	if f.cfg.CheckStructureComplete && !sig.Features.StructureComplete {
		return false, "结构不完整"
	}
	if f.cfg.CheckFractalConfirmation && !sig.Features.FractalConfirmed {
		return false, "分型未确认"
	}
	if f.cfg.CheckPositionClear && !positionClear(sig) {
		return false, "价格位置不清晰"
	}
	return true, ""
}

// exclusion 排除条件：极端行情与低流动性时段
func (f *Filter) exclusion(sig *model.Signal, mkt MarketContext) (bool, string) {
	move := mkt.LastBarMovePercent
	if move < 0 {
		move = -move
	}
	if f.cfg.LimitMovePercent > 0 && move >= f.cfg.LimitMovePercent {
		return false, fmt.Sprintf("极端波动 %.2f%% 超过阈值 %.2f%%", move, f.cfg.LimitMovePercent)
	}
	if f.inLowLiquidityWindow(sig.Time, mkt) {
		return false, "低流动性时段"
	}
	return true, ""
}

// scoreGate 评分门槛
func (f *Filter) scoreGate(sig *model.Signal, _ MarketContext) (bool, string) {
	if sig.Score < f.cfg.MinScore {
		return false, fmt.Sprintf("评分 %.1f 低于门槛 %.1f", sig.Score, f.cfg.MinScore)
	}
	return true, ""
}

// marketState 市场状态：波动不足的市场不产出信号
func (f *Filter) marketState(_ *model.Signal, mkt MarketContext) (bool, string) {
	if f.cfg.MinATR > 0 && mkt.ATR < f.cfg.MinATR {
		return false, fmt.Sprintf("ATR %.4f 低于最小值 %.4f", mkt.ATR, f.cfg.MinATR)
	}
	return true, ""
}

// riskControl 风险控制：止损必须存在且距离可控
func (f *Filter) riskControl(sig *model.Signal, _ MarketContext) (bool, string) {
	dist := sig.StopDistance()
	if dist <= 0 {
		return false, "缺少有效止损"
	}
	if sig.Price <= 0 {
		return false, "信号价格无效"
	}
	pct := dist / sig.Price * 100
	if pct > f.cfg.MaxStopPercent {
		return false, fmt.Sprintf("止损距离 %.2f%% 超过上限 %.2f%%", pct, f.cfg.MaxStopPercent)
	}
	return true, ""
}

// positionClear 位置清晰：买点应处于区间下半部，卖点处于上半部
// 中部 40-60 的模糊带视为不清晰。
func positionClear(sig *model.Signal) bool {
	level := sig.Features.PositionLevel
	if level > 40 && level < 60 {
		return false
	}
	if sig.IsBuy() {
		return level <= 40
	}
	return level >= 60
}

// inLowLiquidityWindow 信号时间是否落在开收盘附近的低流动性窗口
// 连续交易市场（未设置时段边界）恒为假。
func (f *Filter) inLowLiquidityWindow(t time.Time, mkt MarketContext) bool {
	if f.cfg.LowLiquidityWindowMinutes <= 0 {
		return false
	}
	window := time.Duration(f.cfg.LowLiquidityWindowMinutes) * time.Minute
	if !mkt.SessionOpen.IsZero() {
		if !t.Before(mkt.SessionOpen) && t.Before(mkt.SessionOpen.Add(window)) {
			return true
		}
	}
	if !mkt.SessionClose.IsZero() {
		if t.After(mkt.SessionClose.Add(-window)) && !t.After(mkt.SessionClose) {
			return true
		}
	}
	return false
}
