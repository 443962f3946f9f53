package classify

import (
	"fmt"

	"github.com/google/uuid"

	"chan-structure-scanner/internal/core/model"
)

// detectThird 第三类买卖点：离开中枢后的回抽不回中枢
// 离开笔从带内出发必与 [ZD, ZG] 有交集，会被延伸吸收为中枢末笔，
// 因此中枢必须恰好以 i−1 笔收尾；离开笔须突破 ZG（买）/ ZD（卖），
// 当前回抽笔必须整体停留在边界之外（低点 > ZG / 高点 < ZD）。
func (d *Detector) detectThird(ctx *Context, i int) *model.Signal {
	cur := &ctx.Strokes[i]
	side, ok := sideOf(cur.Direction)
	if !ok {
		return nil
	}
	if i < 1 {
		return nil
	}

	leave := &ctx.Strokes[i-1]
	if leave.Direction == cur.Direction {
		return nil
	}

	ci := centerEndingAt(ctx.Centers, i-1)
	if ci < 0 {
		return nil
	}
	c := &ctx.Centers[ci]

	if side == model.SideBuy {
		// 离开笔向上突破 ZG，且起点不高于 ZG（确实从中枢带离开）
		if !(leave.Start.Price <= c.ZG && leave.High() > c.ZG) {
			return nil
		}
		// 回抽不回中枢
		if !(cur.Low() > c.ZG) {
			return nil
		}
	} else {
		if !(leave.Start.Price >= c.ZD && leave.Low() < c.ZD) {
			return nil
		}
		if !(cur.High() < c.ZD) {
			return nil
		}
	}

	atr := atrAt(ctx, cur)
	var stop float64
	if atr > 0 {
		if side == model.SideBuy {
			stop = cur.Low() - d.cfg.ATRStopFactor*atr
		} else {
			stop = cur.High() + d.cfg.ATRStopFactor*atr
		}
	}

	quality := thirdQuality(cur, leave, c, side)
	sig := &model.Signal{
		ID:          uuid.NewString(),
		Class:       model.Class3,
		Side:        side,
		Price:       cur.End.Price,
		Time:        cur.End.Time,
		StrokeIndex: i,
		CenterIndex: ci,
		StopLoss:    stop,
		Features:    buildFeatures(ctx, cur, leave, quality, false),
		Reason:      thirdReason(cur, c, side),
	}
	sig.TakeProfit = takeProfit(sig, d.cfg.TakeProfitRR)
	return sig
}

// thirdQuality 离开力度与回抽深度的组合结构质量（0-100）
// 离开越远、回抽越浅，质量越高。
func thirdQuality(cur, leave *model.Stroke, c *model.Center, side model.Side) float64 {
	height := c.Height()
	if height <= 0 {
		height = 1e-4
	}

	var leaveStrength, pullbackDepth float64
	if side == model.SideBuy {
		leaveStrength = (leave.High() - c.ZG) / height
		denom := leave.High() - c.ZG
		if denom <= 0 {
			denom = 1e-4
		}
		pullbackDepth = (leave.High() - cur.Low()) / denom
	} else {
		leaveStrength = (c.ZD - leave.Low()) / height
		denom := c.ZD - leave.Low()
		if denom <= 0 {
			denom = 1e-4
		}
		pullbackDepth = (cur.High() - leave.Low()) / denom
	}

	var leaveScore float64
	switch {
	case leaveStrength > 0.5:
		leaveScore = 100
	case leaveStrength > 0.3:
		leaveScore = 83
	case leaveStrength > 0.1:
		leaveScore = 67
	default:
		leaveScore = 33
	}

	var pullbackScore float64
	switch {
	case pullbackDepth < 0.5:
		pullbackScore = 100
	case pullbackDepth < 0.7:
		pullbackScore = 83
	case pullbackDepth < 0.9:
		pullbackScore = 67
	default:
		pullbackScore = 33
	}

	return (leaveScore + pullbackScore) / 2
}

func thirdReason(cur *model.Stroke, c *model.Center, side model.Side) string {
	if side == model.SideBuy {
		return fmt.Sprintf("回抽低点 %.2f 不回中枢上沿 %.2f", cur.Low(), c.ZG)
	}
	return fmt.Sprintf("回抽高点 %.2f 不回中枢下沿 %.2f", cur.High(), c.ZD)
}
