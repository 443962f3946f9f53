// Package kmerge 实现 K 线包含合并。
// 包含关系：一根 K 线的高低区间完全覆盖另一根时，两根折叠为一根合成 K 线。
// 上升趋势中取"高高"（高点大者、低点大者），下降趋势中取"低低"。
package kmerge

import (
	"chan-structure-scanner/internal/core/model"
)

// Merge 对有序 K 线序列做包含合并
// 趋势标志是折叠过程的局部累加器，不同序列的合并互不干扰。
// 本阶段永不失败：无效 K 线直接跳过，畸形输入按原样追加。
func Merge(bars []model.Bar) []model.MergedBar {
	if len(bars) == 0 {
		return nil
	}

	merged := make([]model.MergedBar, 0, len(bars))
	trend := model.TrendUp

	for i := range bars {
		b := &bars[i]
		if !b.Valid() {
			// 坏数据不中断整批分析
			continue
		}

		if len(merged) == 0 {
			merged = append(merged, newMergedBar(i, b))
			continue
		}

		prev := &merged[len(merged)-1]

		// 包含判断：任一方向的完全覆盖都算
		inclusive := prev.Contains(b.High, b.Low) || prev.ContainedBy(b.High, b.Low)

		if inclusive {
			fold(prev, i, b, trend)
			continue
		}

		// 非包含即趋势确认事件
		switch {
		case b.High > prev.High && b.Low > prev.Low:
			trend = model.TrendUp
		case b.High < prev.High && b.Low < prev.Low:
			trend = model.TrendDown
			// 其余情况在包含判定下不可能出现；若出现（畸形输入）保持原趋势
		}

		merged = append(merged, newMergedBar(i, b))
	}

	return merged
}

// fold 将新 K 线折入当前开放的合成 K 线
// 仅修改序列尾部元素，时间与收盘取最新成分。
func fold(m *model.MergedBar, idx int, b *model.Bar, trend model.Trend) {
	if trend == model.TrendUp {
		// 高高
		if b.High > m.High {
			m.High = b.High
		}
		if b.Low > m.Low {
			m.Low = b.Low
		}
	} else {
		// 低低
		if b.High < m.High {
			m.High = b.High
		}
		if b.Low < m.Low {
			m.Low = b.Low
		}
	}
	m.Time = b.Time
	m.Close = b.Close
	m.EndIndex = idx
	m.Constituents = append(m.Constituents, idx)
}

func newMergedBar(idx int, b *model.Bar) model.MergedBar {
	return model.MergedBar{
		EndIndex:     idx,
		Time:         b.Time,
		Open:         b.Open,
		High:         b.High,
		Low:          b.Low,
		Close:        b.Close,
		Constituents: []int{idx},
	}
}
