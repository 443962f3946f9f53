package classify

import (
	"math"

	"chan-structure-scanner/internal/core/model"
)

// buildFeatures 组装评分特征记录
// cur 为信号笔，ref 为动量/量能的比较基准笔（第一类为进入笔，
// 第三类为离开笔，第二类为一买/一卖笔）。
func buildFeatures(ctx *Context, cur, ref *model.Stroke, quality float64, isTrend bool) model.Features {
	f := model.Features{
		StructureComplete: true,
		StructureQuality:  clamp01x100(quality),
		IsTrend:           isTrend,
		FractalConfirmed:  fractalConfirmed(ctx, cur),
		PositionLevel:     positionLevel(ctx.Bars, cur.End.Price),
		HasSubLevel:       hasSubLevelStructure(ctx, cur),
	}

	if cur.RawBars > 0 {
		f.Volume = cur.VolumeSum / float64(cur.RawBars)
	}
	f.AvgVolume = avgVolume(ctx.Bars)

	if ref != nil {
		f.DivergenceScore = divergenceScore(cur.MomentumArea, ref.MomentumArea)
		f.Momentum = reversalMomentum(cur.MomentumPeak, ref.MomentumPeak)
		f.TrendDuration = trendDuration(ctx, ref, cur)
	} else {
		f.Momentum = 50
		f.TrendDuration = float64(cur.RawBars)
	}

	return f
}

// divergenceScore 面积比映射为 0-100 的背驰强度
// 比值越小背驰越强：1.0 → 0，0.5 → 60，0 → 100（×1.2 轻微上浮后截断）。
func divergenceScore(leaveArea, enterArea float64) float64 {
	if enterArea <= 0 {
		return 0
	}
	ratio := leaveArea / enterArea
	if ratio >= 1.0 {
		return 0
	}
	return math.Min(100, (1.0-ratio)*120)
}

// reversalMomentum 反转动量强度（0-100）
// 信号笔柱体极值相对基准笔越弱，反转质量越高。
func reversalMomentum(curPeak, refPeak float64) float64 {
	ref := math.Abs(refPeak)
	if ref == 0 {
		return 50
	}
	v := (1.0 - math.Abs(curPeak)/ref) * 100
	return math.Max(0, math.Min(100, v))
}

// trendDuration 从基准笔起点到信号笔终点覆盖的原始 K 线数量
func trendDuration(ctx *Context, ref, cur *model.Stroke) float64 {
	if ref.Start.MergedIndex >= len(ctx.Merged) || cur.End.MergedIndex >= len(ctx.Merged) {
		return 0
	}
	start := ctx.Merged[ref.Start.MergedIndex].FirstConstituent()
	end := ctx.Merged[cur.End.MergedIndex].LastConstituent()
	if end < start {
		return 0
	}
	return float64(end - start + 1)
}

// positionLevel 信号价在全窗口高低区间中的相对位置（0=低，100=高）
func positionLevel(bars []model.Bar, price float64) float64 {
	if len(bars) == 0 {
		return 50
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for i := range bars {
		if bars[i].Low < lo {
			lo = bars[i].Low
		}
		if bars[i].High > hi {
			hi = bars[i].High
		}
	}
	if hi <= lo {
		return 50
	}
	v := (price - lo) / (hi - lo) * 100
	return math.Max(0, math.Min(100, v))
}

// fractalConfirmed 终点分型右侧是否已有 K 线
// 批量分析中恒为真；滑动窗口末端的最后一笔可能尚未确认。
func fractalConfirmed(ctx *Context, s *model.Stroke) bool {
	return s.End.MergedIndex < len(ctx.Merged)-1
}

// hasSubLevelStructure 笔内部是否出现次级别转折迹象
// 简化形态判断：笔内最后一根 K 线收出反向实体，或留下超过
// 四成振幅的反向影线。内部 K 线不足 4 根时视为无。
func hasSubLevelStructure(ctx *Context, s *model.Stroke) bool {
	if s.Start.MergedIndex >= len(ctx.Merged) || s.End.MergedIndex >= len(ctx.Merged) {
		return false
	}
	start := ctx.Merged[s.Start.MergedIndex].FirstConstituent()
	end := ctx.Merged[s.End.MergedIndex].LastConstituent()
	if start < 0 || end >= len(ctx.Bars) || end-start+1 < 4 {
		return false
	}

	last := &ctx.Bars[end]
	span := last.High - last.Low
	if span <= 0 {
		return false
	}

	if s.Direction == model.TrendDown {
		// 下笔末端：阳线或长下影暗示次级别买点
		if last.Close > last.Open {
			return true
		}
		body := math.Min(last.Open, last.Close)
		return (body-last.Low)/span > 0.4
	}
	// 上笔末端：阴线或长上影暗示次级别卖点
	if last.Close < last.Open {
		return true
	}
	body := math.Max(last.Open, last.Close)
	return (last.High-body)/span > 0.4
}

func avgVolume(bars []model.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for i := range bars {
		sum += bars[i].Volume
	}
	return sum / float64(len(bars))
}

func clamp01x100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
