// Package stroke 实现笔的构造与动量附着。
// 笔由两个交替的分型构成（老笔定义）：分型间隔 ≥ 4 根合成 K 线，
// 且向上笔的顶必须高于底、向下笔的底必须低于顶。
package stroke

import (
	"chan-structure-scanner/internal/core/model"
)

// minMergedGap 两个分型之间的最小合成 K 线间隔
// 间隔 4 保证顶底分型之间至少存在一根独立 K 线。
const minMergedGap = 4

// Build 将有序分型序列交替成笔
// 单趟状态机：锚点分型为当前开放极值。同类分型只在更极端时替换锚点，
// 异类分型满足间隔与高低约束时成笔并成为新锚点，否则跳过。
func Build(fractals []model.Fractal) []model.Stroke {
	if len(fractals) == 0 {
		return nil
	}

	strokes := make([]model.Stroke, 0, len(fractals)/2)
	anchor := fractals[0]

	for _, fx := range fractals[1:] {
		if fx.Kind == anchor.Kind {
			// 同类分型：吸收中间噪音，不关闭笔
			if fx.Kind == model.FractalTop && fx.High > anchor.High {
				anchor = fx
			} else if fx.Kind == model.FractalBottom && fx.Low < anchor.Low {
				anchor = fx
			}
			continue
		}

		if fx.MergedIndex-anchor.MergedIndex < minMergedGap {
			continue
		}

		var dir model.Trend
		if anchor.Kind == model.FractalBottom {
			// 向上笔：顶必须高于底
			if fx.Price <= anchor.Price {
				continue
			}
			dir = model.TrendUp
		} else {
			// 向下笔：底必须低于顶
			if fx.Price >= anchor.Price {
				continue
			}
			dir = model.TrendDown
		}

		strokes = append(strokes, model.Stroke{
			Start:     anchor,
			End:       fx,
			Direction: dir,
		})
		anchor = fx
	}

	return strokes
}
