package model

import "time"

// FractalKind 分型类型
type FractalKind int

const (
	// FractalTop 顶分型
	FractalTop FractalKind = 1
	// FractalBottom 底分型
	FractalBottom FractalKind = -1
)

// String 返回分型类型的可读标识
func (k FractalKind) String() string {
	if k == FractalTop {
		return "top"
	}
	return "bottom"
}

// Fractal 分型（三根合成 K 线的局部极值）
// 中间 K 线的高点与低点必须同时严格强于左右两侧。
type Fractal struct {
	// Kind 分型类型
	Kind FractalKind `json:"kind"`
	// MergedIndex 对应合成 K 线序列中的索引
	MergedIndex int `json:"merged_index"`
	// Price 极值价格：顶分型为 High，底分型为 Low
	Price float64 `json:"price"`
	// High 中间 K 线最高价
	High float64 `json:"high"`
	// Low 中间 K 线最低价
	Low float64 `json:"low"`
	// Time 中间 K 线时间戳
	Time time.Time `json:"time"`
}

// Stroke 笔（两个交替分型之间的方向性摆动）
// 构造后不再变更，动量字段由动量附着阶段一次性填充。
type Stroke struct {
	// Start 起始分型
	Start Fractal `json:"start"`
	// End 结束分型
	End Fractal `json:"end"`
	// Direction 方向：底→顶为上，顶→底为下
	Direction Trend `json:"direction"`
	// MomentumArea 区间内振荡柱绝对值之和
	MomentumArea float64 `json:"momentum_area"`
	// MomentumPeak 区间内振荡柱极值（上笔取最大，下笔取最小，保留符号）
	MomentumPeak float64 `json:"momentum_peak"`
	// VolumeSum 区间内原始 K 线成交量之和
	VolumeSum float64 `json:"volume_sum"`
	// RawBars 区间覆盖的原始 K 线数量
	RawBars int `json:"raw_bars"`
}

// High 笔的最高价
func (s *Stroke) High() float64 {
	if s.Start.High > s.End.High {
		return s.Start.High
	}
	return s.End.High
}

// Low 笔的最低价
func (s *Stroke) Low() float64 {
	if s.Start.Low < s.End.Low {
		return s.Start.Low
	}
	return s.End.Low
}

// MergedSpan 笔在合成 K 线序列上跨越的索引数
func (s *Stroke) MergedSpan() int {
	d := s.End.MergedIndex - s.Start.MergedIndex
	if d < 0 {
		return -d
	}
	return d
}

// Center 中枢（至少三笔的重叠区间）
// 延伸终止后不可变。
type Center struct {
	// StartStroke 构成中枢的第一笔索引
	StartStroke int `json:"start_stroke"`
	// EndStroke 构成中枢的最后一笔索引（含延伸）
	EndStroke int `json:"end_stroke"`
	// ZG 中枢上沿（三笔高点的最小值）
	ZG float64 `json:"zg"`
	// ZD 中枢下沿（三笔低点的最大值）
	ZD float64 `json:"zd"`
	// GG 区间内出现过的最高点
	GG float64 `json:"gg"`
	// DD 区间内出现过的最低点
	DD float64 `json:"dd"`
	// Direction 进入段方向
	Direction Trend `json:"direction"`
	// StartTime 第一笔起点时间
	StartTime time.Time `json:"start_time"`
	// EndTime 最后一笔终点时间
	EndTime time.Time `json:"end_time"`
}

// Height 中枢高度（ZG − ZD）
func (c *Center) Height() float64 {
	return c.ZG - c.ZD
}

// StrokeCount 构成中枢的笔数
func (c *Center) StrokeCount() int {
	return c.EndStroke - c.StartStroke + 1
}

// Overlaps 判断区间 [low, high] 是否与中枢带 [ZD, ZG] 相交
func (c *Center) Overlaps(high, low float64) bool {
	return !(high < c.ZD || low > c.ZG)
}
