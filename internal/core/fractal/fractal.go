// Package fractal 实现顶底分型识别。
// 分型是三根合成 K 线的局部极值：中间 K 线的高点与低点必须同时
// 严格强于左右两侧，任一侧相等即不成分型。
package fractal

import (
	"chan-structure-scanner/internal/core/model"
)

// Detect 在合成 K 线序列上识别全部分型
// 仅看紧邻的左右两根，不做前瞻；不足三根返回空。
func Detect(merged []model.MergedBar) []model.Fractal {
	if len(merged) < 3 {
		return nil
	}

	fractals := make([]model.Fractal, 0, len(merged)/3)
	for i := 1; i < len(merged)-1; i++ {
		left := &merged[i-1]
		curr := &merged[i]
		right := &merged[i+1]

		switch {
		case curr.High > left.High && curr.High > right.High &&
			curr.Low > left.Low && curr.Low > right.Low:
			fractals = append(fractals, model.Fractal{
				Kind:        model.FractalTop,
				MergedIndex: i,
				Price:       curr.High,
				High:        curr.High,
				Low:         curr.Low,
				Time:        curr.Time,
			})
		case curr.Low < left.Low && curr.Low < right.Low &&
			curr.High < left.High && curr.High < right.High:
			fractals = append(fractals, model.Fractal{
				Kind:        model.FractalBottom,
				MergedIndex: i,
				Price:       curr.Low,
				High:        curr.High,
				Low:         curr.Low,
				Time:        curr.Time,
			})
		}
	}
	return fractals
}
