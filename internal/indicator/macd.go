// Package indicator 计算核心流水线依赖的外部指标序列。
// 仅提供 MACD 与 ATR：前者供笔的动量附着与背驰比较，
// 后者供止损与市场状态过滤，均与原始 K 线逐索引对齐。
package indicator

import (
	"chan-structure-scanner/internal/core/model"
)

// MACD 振荡指标序列（与原始 K 线等长、逐索引对齐）
type MACD struct {
	// Dif 快慢 EMA 之差
	Dif []float64
	// Dea Dif 的信号线 EMA
	Dea []float64
	// Histogram 柱体：(Dif − Dea) × 2
	Histogram []float64
}

// ComputeMACD 在收盘价上计算 MACD
// 参数 fast/slow/signal: EMA 跨度，常用 12/26/9
func ComputeMACD(bars []model.Bar, fast, slow, signal int) MACD {
	n := len(bars)
	out := MACD{
		Dif:       make([]float64, n),
		Dea:       make([]float64, n),
		Histogram: make([]float64, n),
	}
	if n == 0 {
		return out
	}

	closes := make([]float64, n)
	for i := range bars {
		closes[i] = bars[i].Close
	}

	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)
	for i := 0; i < n; i++ {
		out.Dif[i] = emaFast[i] - emaSlow[i]
	}
	out.Dea = ema(out.Dif, signal)
	for i := 0; i < n; i++ {
		out.Histogram[i] = (out.Dif[i] - out.Dea[i]) * 2
	}
	return out
}

// ema 跨度型指数移动平均
// alpha = 2/(span+1)，首值用序列首元素播种。
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if span <= 0 {
		copy(out, values)
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
