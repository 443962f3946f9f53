package indicator

import (
	"math"

	"chan-structure-scanner/internal/core/model"
)

// ComputeATR 计算 Wilder ATR 序列（与原始 K 线等长、逐索引对齐）
// 前 period 根使用首个简单平均回填，K 线不足时整段回填首值。
func ComputeATR(bars []model.Bar, period int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	if n < 2 || period <= 0 {
		return out
	}

	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-bars[i-1].Close),
				math.Abs(bars[i].Low-bars[i-1].Close)))
		trs = append(trs, tr)
	}
	if len(trs) < period {
		// 历史不足：用已有 TR 的均值铺满，保证消费方无需判空
		var sum float64
		for _, v := range trs {
			sum += v
		}
		avg := sum / float64(len(trs))
		for i := range out {
			out[i] = avg
		}
		return out
	}

	var first float64
	for _, v := range trs[:period] {
		first += v
	}
	first /= float64(period)

	atr := first
	// trs[j] 对应原始索引 j+1
	for i := 0; i <= period; i++ {
		out[i] = first
	}
	for j := period; j < len(trs); j++ {
		atr = (atr*float64(period-1) + trs[j]) / float64(period)
		out[j+1] = atr
	}
	return out
}
