// Package score 对候选信号做八维度加权评分。
// 每个维度独立映射为 0-100 分，再按配置权重加权平均；
// 权重总和在配置加载阶段已校验为 100。
package score

import (
	"math"

	"chan-structure-scanner/internal/core/model"
)

// Scorer 信号评分器
type Scorer struct {
	weights  map[string]float64
	minScore float64
}

// New 创建评分器
// 参数 weights: 维度权重表（总和 100），minScore: 最低综合评分
func New(weights map[string]float64, minScore float64) *Scorer {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Scorer{weights: w, minScore: minScore}
}

// MinScore 返回最低评分阈值
func (s *Scorer) MinScore() float64 {
	return s.minScore
}

// Score 计算信号综合评分并写回 Signal
// 返回综合评分；同时填充 Signal.Score 与 Signal.ScoreDetail。
func (s *Scorer) Score(sig *model.Signal) float64 {
	f := &sig.Features
	detail := map[string]float64{
		"structure":    structureScore(f),
		"divergence":   clamp(f.DivergenceScore),
		"volume_price": volumePriceScore(f),
		"time":         timeScore(f),
		"position":     positionScore(sig),
		"sub_level":    boolScore(f.HasSubLevel),
		"strength":     clamp(f.Momentum),
		"confirmation": boolScore(f.FractalConfirmed),
	}

	var total, weightSum float64
	for key, w := range s.weights {
		d, ok := detail[key]
		if !ok {
			continue
		}
		total += d * w
		weightSum += w
	}
	if weightSum <= 0 {
		sig.Score = 0
		sig.ScoreDetail = detail
		return 0
	}

	sig.Score = total / weightSum
	sig.ScoreDetail = detail
	return sig.Score
}

// Accept 判断信号评分是否达到最低阈值
func (s *Scorer) Accept(sig *model.Signal) bool {
	return sig.Score >= s.minScore
}

// structureScore 结构完整性与质量的组合（0-100）
// 完整结构占一半底分，另一半来自结构质量。
func structureScore(f *model.Features) float64 {
	var base float64
	if f.StructureComplete {
		base = 50
	}
	return clamp(base + f.StructureQuality*0.5)
}

// volumePriceScore 信号笔均量相对全窗口均量的放量程度
// 无均量基准时给中性分。
func volumePriceScore(f *model.Features) float64 {
	if f.AvgVolume <= 0 {
		return 50
	}
	ratio := f.Volume / f.AvgVolume
	switch {
	case ratio > 2.0:
		return 100
	case ratio > 1.5:
		return 80
	case ratio > 1.0:
		return 60
	default:
		return 40
	}
}

// timeScore 趋势持续时间（原始 K 线数）越久，反转信号越可靠
func timeScore(f *model.Features) float64 {
	switch {
	case f.TrendDuration > 100:
		return 90
	case f.TrendDuration > 50:
		return 70
	default:
		return 50
	}
}

// positionScore 价格位置分：买点越低越好，卖点越高越好
func positionScore(sig *model.Signal) float64 {
	level := clamp(sig.Features.PositionLevel)
	if sig.IsBuy() {
		return 100 - level
	}
	return level
}

func boolScore(b bool) float64 {
	if b {
		return 100
	}
	return 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
