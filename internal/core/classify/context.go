// Package classify 实现三类买卖点的检测。
// 每个候选笔依次做第一/二/三类检测；第二、三类检查的是互不相交的
// 笔窗口，同一笔可以同时产生两类信号。找不到所需中枢或进入笔时
// 视为"不适用"，静默跳过，不算错误。
package classify

import (
	"chan-structure-scanner/internal/core/model"
)

// Config 分类器参数
type Config struct {
	// DivergenceThreshold 背驰面积衰减阈值（0.3 表示离开段面积须小于进入段的 70%）
	DivergenceThreshold float64
	// ATRStopFactor 止损距离的 ATR 倍数
	ATRStopFactor float64
	// TakeProfitRR 止盈相对止损距离的盈亏比
	TakeProfitRR float64
}

// DefaultConfig 默认分类器参数
func DefaultConfig() Config {
	return Config{
		DivergenceThreshold: 0.3,
		ATRStopFactor:       0.5,
		TakeProfitRR:        2.0,
	}
}

// Context 单次检测调用的完整类型化上下文
// 所有切片均为已构建完成的只读数据；Signals 为按发出顺序累积的
// 历史信号，第二类检测据此回查第一类信号。
type Context struct {
	// Bars 原始 K 线
	Bars []model.Bar
	// Merged 合成 K 线
	Merged []model.MergedBar
	// Strokes 笔（动量已附着）
	Strokes []model.Stroke
	// Centers 中枢
	Centers []model.Center
	// Signals 已发出的信号（含未过评分门槛的候选）
	Signals []*model.Signal
	// Histogram 振荡柱序列（与 Bars 对齐）
	Histogram []float64
	// ATR ATR 序列（与 Bars 对齐）
	ATR []float64
}

// Detector 买卖点检测器
// 无内部状态，可跨多次 Detect 调用复用；状态全部在 Context 中。
type Detector struct {
	cfg Config
}

// NewDetector 创建检测器
func NewDetector(cfg Config) *Detector {
	if cfg.DivergenceThreshold <= 0 || cfg.DivergenceThreshold >= 1 {
		cfg.DivergenceThreshold = 0.3
	}
	if cfg.ATRStopFactor <= 0 {
		cfg.ATRStopFactor = 0.5
	}
	if cfg.TakeProfitRR <= 0 {
		cfg.TakeProfitRR = 2.0
	}
	return &Detector{cfg: cfg}
}

// Detect 对候选笔 i 依次做三类检测，返回本笔产生的全部信号
// 每类至多一个信号；第二、三类可同时成立。
func (d *Detector) Detect(ctx *Context, i int) []*model.Signal {
	if i < 0 || i >= len(ctx.Strokes) {
		return nil
	}

	var out []*model.Signal
	if sig := d.detectFirst(ctx, i); sig != nil {
		out = append(out, sig)
	}
	if sig := d.detectSecond(ctx, i); sig != nil {
		out = append(out, sig)
	}
	if sig := d.detectThird(ctx, i); sig != nil {
		out = append(out, sig)
	}
	return out
}

// sideOf 候选笔方向对应的买卖侧：向下笔是买点候选，向上笔是卖点候选
func sideOf(dir model.Trend) (model.Side, bool) {
	switch dir {
	case model.TrendDown:
		return model.SideBuy, true
	case model.TrendUp:
		return model.SideSell, true
	default:
		return 0, false
	}
}

// centerEndingAt 查找以笔 endStroke 收尾的中枢索引；无则返回 -1
// 中枢为追加式不可变序列，倒序线性扫描即可。
func centerEndingAt(centers []model.Center, endStroke int) int {
	for k := len(centers) - 1; k >= 0; k-- {
		if centers[k].EndStroke == endStroke {
			return k
		}
		if centers[k].EndStroke < endStroke {
			break
		}
	}
	return -1
}

// atrAt 取笔终点所在原始 K 线的 ATR 值
func atrAt(ctx *Context, s *model.Stroke) float64 {
	if s.End.MergedIndex >= len(ctx.Merged) {
		return 0
	}
	idx := ctx.Merged[s.End.MergedIndex].LastConstituent()
	if idx < 0 || idx >= len(ctx.ATR) {
		return 0
	}
	return ctx.ATR[idx]
}
