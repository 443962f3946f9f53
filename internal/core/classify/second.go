package classify

import (
	"fmt"

	"github.com/google/uuid"

	"chan-structure-scanner/internal/core/model"
)

// detectSecond 第二类买卖点：一买/一卖后的第一次回调不破前极值
// 两笔之前必须存在同向的第一类信号（候选亦可），且该信号笔再往前
// 两笔存在同向前驱（完整的 下-上-下 或 上-下-上 结构）。
// 不要求中枢归属。
func (d *Detector) detectSecond(ctx *Context, i int) *model.Signal {
	cur := &ctx.Strokes[i]
	side, ok := sideOf(cur.Direction)
	if !ok {
		return nil
	}
	if i < 4 {
		return nil
	}

	first := lastFirstClassAt(ctx.Signals, side, i-2)
	if first == nil {
		return nil
	}

	// 一类信号笔的同向前驱必须存在（四笔前）
	pred := &ctx.Strokes[i-4]
	if pred.Direction != cur.Direction {
		return nil
	}

	// 回调严格不触及前极值：买点要求更高的低点，卖点要求更低的高点
	if side == model.SideBuy {
		if !(cur.Low() > first.Price) {
			return nil
		}
	} else {
		if !(cur.High() < first.Price) {
			return nil
		}
	}

	firstStroke := &ctx.Strokes[i-2]

	atr := atrAt(ctx, cur)
	var stop float64
	if atr > 0 {
		if side == model.SideBuy {
			stop = cur.Low() - d.cfg.ATRStopFactor*atr
		} else {
			stop = cur.High() + d.cfg.ATRStopFactor*atr
		}
	}

	quality := pullbackQuality(cur, first, side)
	f := buildFeatures(ctx, cur, firstStroke, quality, first.Features.IsTrend)
	// 背驰维度继承一类信号的背驰强度：二类本身不做面积比较
	f.DivergenceScore = first.Features.DivergenceScore

	sig := &model.Signal{
		ID:          uuid.NewString(),
		Class:       model.Class2,
		Side:        side,
		Price:       cur.End.Price,
		Time:        cur.End.Time,
		StrokeIndex: i,
		CenterIndex: -1,
		StopLoss:    stop,
		Features:    f,
		Reason: fmt.Sprintf("回调不破%s前极值 %.2f",
			first.Tag(), first.Price),
	}
	sig.TakeProfit = takeProfit(sig, d.cfg.TakeProfitRR)
	return sig
}

// lastFirstClassAt 倒序查找触发笔为 strokeIdx 的同向第一类信号
func lastFirstClassAt(signals []*model.Signal, side model.Side, strokeIdx int) *model.Signal {
	for k := len(signals) - 1; k >= 0; k-- {
		s := signals[k]
		if s.Class == model.Class1 && s.Side == side && s.StrokeIndex == strokeIdx {
			return s
		}
	}
	return nil
}

// pullbackQuality 回调深度映射为结构质量（0-100）
// 理想回撤 30%–60%；过浅或过深均降档。
func pullbackQuality(cur *model.Stroke, first *model.Signal, side model.Side) float64 {
	var swing, retrace float64
	if side == model.SideBuy {
		// 一买低点 → 上笔峰 → 当前回调低点
		peak := cur.Start.Price
		swing = peak - first.Price
		retrace = peak - cur.Low()
	} else {
		valley := cur.Start.Price
		swing = first.Price - valley
		retrace = cur.High() - valley
	}
	if swing <= 0 {
		return 0
	}
	ratio := retrace / swing
	switch {
	case ratio >= 0.3 && ratio <= 0.6:
		return 100
	case ratio >= 0.2 && ratio <= 0.7:
		return 70
	default:
		return 40
	}
}
