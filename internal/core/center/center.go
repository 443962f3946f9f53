// Package center 实现中枢识别。
// 中枢由至少三笔的重叠区间构成：ZG = min(三笔高点)，ZD = max(三笔低点)，
// ZG > ZD 时成立，随后贪心延伸直到首个不重叠的笔。
package center

import (
	"chan-structure-scanner/internal/core/model"
)

// Detect 在笔序列上线性扫描识别全部中枢
// 贪心且不回溯：中枢一经发出不再被拆分或重判，外层扫描从打破
// 重叠的那一笔继续，保证已消费的笔不会被重复扫描。
func Detect(strokes []model.Stroke) []model.Center {
	if len(strokes) < 3 {
		return nil
	}

	centers := make([]model.Center, 0, len(strokes)/3)
	i := 0
	for i <= len(strokes)-3 {
		b1 := &strokes[i]
		b2 := &strokes[i+1]
		b3 := &strokes[i+2]

		zg := min3(b1.High(), b2.High(), b3.High())
		zd := max3(b1.Low(), b2.Low(), b3.Low())

		if zg <= zd {
			i++
			continue
		}

		c := model.Center{
			StartStroke: i,
			EndStroke:   i + 2,
			ZG:          zg,
			ZD:          zd,
			GG:          max3(b1.High(), b2.High(), b3.High()),
			DD:          min3(b1.Low(), b2.Low(), b3.Low()),
			Direction:   b1.Direction,
			StartTime:   b1.Start.Time,
			EndTime:     b3.End.Time,
		}

		// 延伸：后续笔只要与 [ZD, ZG] 有交集就吸收
		j := i + 3
		for j < len(strokes) {
			bn := &strokes[j]
			if !c.Overlaps(bn.High(), bn.Low()) {
				break
			}
			c.EndStroke = j
			c.EndTime = bn.End.Time
			if bn.High() > c.GG {
				c.GG = bn.High()
			}
			if bn.Low() < c.DD {
				c.DD = bn.Low()
			}
			j++
		}

		centers = append(centers, c)
		i = j
	}

	return centers
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
