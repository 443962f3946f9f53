package stroke

import (
	"math"

	"chan-structure-scanner/internal/core/model"
)

// AttachMomentum 为每笔附着动量指标
// 将笔的分型区间通过端点合成 K 线的首/末成分索引映射回原始 K 线区间，
// 在该区间上累加振荡柱绝对值得到面积，并记录柱体极值（上笔取最大、
// 下笔取最小，保留符号）。成交量同区间求和。
// histogram 与 volumes 需与原始 K 线逐索引对齐；区间越界时该笔动量保持为零。
func AttachMomentum(strokes []model.Stroke, merged []model.MergedBar, histogram, volumes []float64) {
	for i := range strokes {
		s := &strokes[i]
		if s.Start.MergedIndex >= len(merged) || s.End.MergedIndex >= len(merged) {
			continue
		}

		startRaw := merged[s.Start.MergedIndex].FirstConstituent()
		endRaw := merged[s.End.MergedIndex].LastConstituent()
		if startRaw > endRaw {
			startRaw, endRaw = endRaw, startRaw
		}
		if startRaw < 0 || endRaw >= len(histogram) {
			continue
		}

		var area, peak, volSum float64
		if s.Direction == model.TrendUp {
			peak = math.Inf(-1)
		} else {
			peak = math.Inf(1)
		}

		for j := startRaw; j <= endRaw; j++ {
			h := histogram[j]
			area += math.Abs(h)
			if s.Direction == model.TrendUp {
				if h > peak {
					peak = h
				}
			} else {
				if h < peak {
					peak = h
				}
			}
			if j < len(volumes) {
				volSum += volumes[j]
			}
		}

		s.MomentumArea = area
		s.MomentumPeak = peak
		s.VolumeSum = volSum
		s.RawBars = endRaw - startRaw + 1
	}
}
