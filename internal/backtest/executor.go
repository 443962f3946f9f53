// Package backtest 实现信号的影子成交与滚动绩效统计。
// 重要：仅用于研究/验证，严禁真实下单。
package backtest

import (
	"fmt"
	"time"

	"chan-structure-scanner/internal/core/model"
)

// ExitReason 平仓原因
type ExitReason string

const (
	// ExitTP 止盈
	ExitTP ExitReason = "tp"
	// ExitSL 止损
	ExitSL ExitReason = "sl"
	// ExitTimeout 超时
	ExitTimeout ExitReason = "timeout"
)

// Position 影子仓位
type Position struct {
	// ID 仓位标识，沿用信号 ID
	ID string `json:"id"`
	// Tag 信号标记，如 1B / 3S
	Tag string `json:"tag"`
	// Side 方向
	Side model.Side `json:"side"`
	// Qty 数量
	Qty float64 `json:"qty"`
	// EntryPx / ExitPx 开平仓价
	EntryPx float64 `json:"entry_px"`
	ExitPx  float64 `json:"exit_px"`
	// StopLoss / TakeProfit 离场价位
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	// EntryTime / ExitTime 开平仓时间
	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`
	// HoldBars 已持仓 K 线数
	HoldBars int `json:"hold_bars"`
	// ExitReason 平仓原因
	ExitReason ExitReason `json:"exit_reason"`
	// GrossPnL / NetPnL 毛利与净利（计入手续费）
	GrossPnL float64 `json:"gross_pnl"`
	NetPnL   float64 `json:"net_pnl"`
	// Fee 往返手续费
	Fee float64 `json:"fee"`
	// Closed 是否已平仓
	Closed bool `json:"closed"`
}

// direction 多头 +1，空头 −1
func (p *Position) direction() float64 {
	if p.Side == model.SideBuy {
		return 1
	}
	return -1
}

// Config 影子成交配置
type Config struct {
	// Equity 初始权益
	Equity float64
	// RiskRatio 单笔风险占权益比例
	RiskRatio float64
	// MaxHoldBars 最长持仓 K 线数
	MaxHoldBars int
	// FeeRate 单边手续费率（如 0.0005），往返计两次
	FeeRate float64
}

// Executor 影子成交执行器
// 单标的串行执行：同一时刻至多一个未平仓仓位。
type Executor struct {
	cfg    Config
	equity float64
	open   *Position
}

// NewExecutor 创建影子成交执行器
func NewExecutor(cfg Config) *Executor {
	if cfg.Equity <= 0 {
		cfg.Equity = 100000
	}
	if cfg.RiskRatio <= 0 {
		cfg.RiskRatio = 0.01
	}
	if cfg.MaxHoldBars <= 0 {
		cfg.MaxHoldBars = 120
	}
	return &Executor{cfg: cfg, equity: cfg.Equity}
}

// Equity 当前权益
func (e *Executor) Equity() float64 {
	return e.equity
}

// Open 当前未平仓仓位；无则返回 nil
func (e *Executor) Open() *Position {
	return e.open
}

// TryOpen 尝试按信号开仓
// 已有未平仓仓位时返回 (nil, false, nil)；信号缺少有效止损时返回错误。
func (e *Executor) TryOpen(sig *model.Signal) (*Position, bool, error) {
	if sig == nil {
		return nil, false, nil
	}
	if e.open != nil && !e.open.Closed {
		return nil, false, nil
	}

	dist := sig.StopDistance()
	if dist <= 0 {
		return nil, false, fmt.Errorf("信号缺少有效止损: %s", sig.ID)
	}

	// 按固定风险比例定量: qty = equity × risk / 止损距离
	qty := e.equity * e.cfg.RiskRatio / dist
	if qty <= 0 {
		return nil, false, fmt.Errorf("仓位数量无效")
	}

	pos := &Position{
		ID:         sig.ID,
		Tag:        sig.Tag(),
		Side:       sig.Side,
		Qty:        qty,
		EntryPx:    sig.Price,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		EntryTime:  sig.Time,
	}
	e.open = pos
	return pos, true, nil
}

// Evaluate 用一根新 K 线评估持仓的离场条件
// 止损优先于止盈：同一根 K 线同时触及时按保守口径记止损。
// 返回已平仓的仓位；未触发时返回 nil。
func (e *Executor) Evaluate(bar model.Bar) *Position {
	pos := e.open
	if pos == nil || pos.Closed {
		return nil
	}
	pos.HoldBars++

	if pos.Side == model.SideBuy {
		if pos.StopLoss > 0 && bar.Low <= pos.StopLoss {
			return e.close(pos, pos.StopLoss, bar.Time, ExitSL)
		}
		if pos.TakeProfit > 0 && bar.High >= pos.TakeProfit {
			return e.close(pos, pos.TakeProfit, bar.Time, ExitTP)
		}
	} else {
		if pos.StopLoss > 0 && bar.High >= pos.StopLoss {
			return e.close(pos, pos.StopLoss, bar.Time, ExitSL)
		}
		if pos.TakeProfit > 0 && bar.Low <= pos.TakeProfit {
			return e.close(pos, pos.TakeProfit, bar.Time, ExitTP)
		}
	}

	if pos.HoldBars >= e.cfg.MaxHoldBars {
		return e.close(pos, bar.Close, bar.Time, ExitTimeout)
	}
	return nil
}

func (e *Executor) close(pos *Position, px float64, t time.Time, reason ExitReason) *Position {
	pos.ExitPx = px
	pos.ExitTime = t
	pos.ExitReason = reason
	pos.Closed = true

	pos.GrossPnL = (pos.ExitPx - pos.EntryPx) * pos.Qty * pos.direction()
	pos.Fee = (pos.EntryPx + pos.ExitPx) * pos.Qty * e.cfg.FeeRate
	pos.NetPnL = pos.GrossPnL - pos.Fee

	e.equity += pos.NetPnL
	e.open = nil
	return pos
}
