// Package model 定义缠论结构分析中使用的核心数据结构。
package model

import (
	"math"
	"time"
)

// Trend 趋势方向
type Trend int

const (
	// TrendNone 无趋势/初始状态
	TrendNone Trend = 0
	// TrendUp 上升
	TrendUp Trend = 1
	// TrendDown 下降
	TrendDown Trend = -1
)

// String 返回趋势的可读标识
func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "none"
	}
}

// Bar 单根原始 K 线（OHLCV）
// 由数据采集方保证时间戳严格递增；核心阶段只读不改。
type Bar struct {
	// Time K 线时间戳
	Time time.Time `json:"time"`
	// Open 开盘价
	Open float64 `json:"open"`
	// High 最高价
	High float64 `json:"high"`
	// Low 最低价
	Low float64 `json:"low"`
	// Close 收盘价
	Close float64 `json:"close"`
	// Volume 成交量
	Volume float64 `json:"volume"`
}

// Valid 判断 K 线价格是否有效
// NaN、非正价格或高低倒挂视为无效
func (b *Bar) Valid() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return b.High >= b.Low
}

// MergedBar 经过包含处理后的合成 K 线
// 仅由包含合并阶段在其仍为序列尾部时原地修改；一旦有后继则不再变更。
type MergedBar struct {
	// EndIndex 最后折入的原始 K 线索引
	EndIndex int `json:"end_index"`
	// Time 最新成分 K 线的时间戳
	Time time.Time `json:"time"`
	// Open 第一根成分 K 线的开盘价
	Open float64 `json:"open"`
	// High 合成最高价
	High float64 `json:"high"`
	// Low 合成最低价
	Low float64 `json:"low"`
	// Close 最后一根成分 K 线的收盘价
	Close float64 `json:"close"`
	// Constituents 成分原始 K 线索引（升序）
	Constituents []int `json:"constituents"`
}

// FirstConstituent 第一根成分 K 线的原始索引
func (m *MergedBar) FirstConstituent() int {
	if len(m.Constituents) == 0 {
		return m.EndIndex
	}
	return m.Constituents[0]
}

// LastConstituent 最后一根成分 K 线的原始索引
func (m *MergedBar) LastConstituent() int {
	if len(m.Constituents) == 0 {
		return m.EndIndex
	}
	return m.Constituents[len(m.Constituents)-1]
}

// Contains 判断本合成 K 线的高低区间是否完全包含另一根的区间
func (m *MergedBar) Contains(high, low float64) bool {
	return m.High >= high && m.Low <= low
}

// ContainedBy 判断本合成 K 线是否被给定区间完全包含
func (m *MergedBar) ContainedBy(high, low float64) bool {
	return high >= m.High && low <= m.Low
}
