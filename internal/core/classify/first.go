package classify

import (
	"fmt"

	"github.com/google/uuid"

	"chan-structure-scanner/internal/core/model"
)

// detectFirst 第一类买卖点：趋势末端背驰
// 候选笔是刚完成中枢的离开笔：它从带内出发必与 [ZD, ZG] 有交集，
// 被延伸吸收为中枢末笔，故中枢恰以 i 笔收尾。候选笔须相对进入笔
// 创出新极值，且动量面积衰减达到阈值。
func (d *Detector) detectFirst(ctx *Context, i int) *model.Signal {
	cur := &ctx.Strokes[i]
	side, ok := sideOf(cur.Direction)
	if !ok {
		return nil
	}

	ci := centerEndingAt(ctx.Centers, i)
	if ci < 0 {
		return nil
	}
	c := &ctx.Centers[ci]

	enterIdx := c.StartStroke - 1
	if enterIdx < 0 {
		return nil
	}
	enter := &ctx.Strokes[enterIdx]
	if enter.Direction != cur.Direction {
		return nil
	}

	// 创新极值：同时突破中枢边沿与进入笔极值
	if side == model.SideBuy {
		if !(cur.Low() < c.ZD && cur.Low() < enter.Low()) {
			return nil
		}
	} else {
		if !(cur.High() > c.ZG && cur.High() > enter.High()) {
			return nil
		}
	}

	// 背驰：离开段面积须小于进入段面积 × (1 − 阈值)
	if !(cur.MomentumArea < enter.MomentumArea*(1-d.cfg.DivergenceThreshold)) {
		return nil
	}

	isTrend := d.hasTrendContext(ctx.Centers, ci, side)

	atr := atrAt(ctx, cur)
	var stop float64
	if atr > 0 {
		if side == model.SideBuy {
			stop = cur.Low() - d.cfg.ATRStopFactor*atr
		} else {
			stop = cur.High() + d.cfg.ATRStopFactor*atr
		}
	}

	quality := divergenceScore(cur.MomentumArea, enter.MomentumArea)
	sig := &model.Signal{
		ID:          uuid.NewString(),
		Class:       model.Class1,
		Side:        side,
		Price:       cur.End.Price,
		Time:        cur.End.Time,
		StrokeIndex: i,
		CenterIndex: ci,
		StopLoss:    stop,
		Features:    buildFeatures(ctx, cur, enter, quality, isTrend),
		Reason: fmt.Sprintf("背驰：离开段动量面积 %.2f < 进入段 %.2f × %.2f",
			cur.MomentumArea, enter.MomentumArea, 1-d.cfg.DivergenceThreshold),
	}
	sig.TakeProfit = takeProfit(sig, d.cfg.TakeProfitRR)
	return sig
}

// hasTrendContext 向前回查是否存在依次排列的前中枢
// 买点：更早中枢的 ZD 高于当前中枢的 ZG（严格非重叠下移），
// 退而求其次高于当前 ZD（宽松下移）；卖点对称。
// 仅影响评分（IsTrend 特征），不阻断第一类信号。
func (d *Detector) hasTrendContext(centers []model.Center, ci int, side model.Side) bool {
	c := &centers[ci]
	for k := ci - 1; k >= 0; k-- {
		prev := &centers[k]
		if side == model.SideBuy {
			if prev.ZD > c.ZG || prev.ZD > c.ZD {
				return true
			}
		} else {
			if prev.ZG < c.ZD || prev.ZG < c.ZG {
				return true
			}
		}
	}
	return false
}

// takeProfit 按配置盈亏比给出止盈价；无止损时不给出
func takeProfit(sig *model.Signal, rr float64) float64 {
	dist := sig.StopDistance()
	if dist <= 0 {
		return 0
	}
	if sig.Side == model.SideBuy {
		return sig.Price + rr*dist
	}
	return sig.Price - rr*dist
}
