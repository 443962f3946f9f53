package model

import (
	"fmt"
	"time"
)

// Side 买卖方向
type Side int

const (
	// SideBuy 买点
	SideBuy Side = 1
	// SideSell 卖点
	SideSell Side = -1
)

// String 返回方向的可读标识
func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// SignalClass 买卖点类别（第一/二/三类）
type SignalClass int

const (
	// Class1 第一类买卖点：趋势背驰
	Class1 SignalClass = 1
	// Class2 第二类买卖点：回调不破前极值
	Class2 SignalClass = 2
	// Class3 第三类买卖点：离开中枢后回抽不回中枢
	Class3 SignalClass = 3
)

// Features 信号评分所需的特征记录
// 由分类器在信号产生时一次性填充，评分与过滤阶段只读。
type Features struct {
	// StructureComplete 结构是否完整（笔/中枢几何条件全部满足）
	StructureComplete bool `json:"structure_complete"`
	// StructureQuality 结构质量（0-100，几何度量映射）
	StructureQuality float64 `json:"structure_quality"`
	// DivergenceScore 背驰强度（0-100，面积比映射）
	DivergenceScore float64 `json:"divergence_score"`
	// Volume 信号笔的平均每根成交量
	Volume float64 `json:"volume"`
	// AvgVolume 全窗口平均每根成交量
	AvgVolume float64 `json:"avg_volume"`
	// TrendDuration 趋势持续的原始 K 线数量
	TrendDuration float64 `json:"trend_duration"`
	// PositionLevel 信号价在窗口高低区间中的相对位置（0=低，100=高）
	PositionLevel float64 `json:"position_level"`
	// HasSubLevel 是否存在次级别结构
	HasSubLevel bool `json:"has_sub_level"`
	// Momentum 动量强度（0-100）
	Momentum float64 `json:"momentum"`
	// FractalConfirmed 终点分型是否已被后续 K 线确认
	FractalConfirmed bool `json:"fractal_confirmed"`
	// IsTrend 是否处于同向趋势（存在依次排列的前中枢）
	IsTrend bool `json:"is_trend"`
}

// Advice 仓位建议
type Advice struct {
	// Ratio 单笔风险占账户权益的比例
	Ratio float64 `json:"ratio"`
	// Amount 建议手数/数量
	Amount float64 `json:"amount"`
	// Description 建议说明
	Description string `json:"description"`
}

// Signal 买卖点信号
// 信号只引用笔/中枢（索引回查），不持有也不修改它们。
type Signal struct {
	// ID 信号唯一标识
	ID string `json:"id"`
	// Class 买卖点类别
	Class SignalClass `json:"class"`
	// Side 买卖方向
	Side Side `json:"side"`
	// Price 信号价格
	Price float64 `json:"price"`
	// Time 信号时间
	Time time.Time `json:"time"`
	// StrokeIndex 触发信号的笔索引
	StrokeIndex int `json:"stroke_index"`
	// CenterIndex 相关中枢索引；第二类买卖点无中枢时为 -1
	CenterIndex int `json:"center_index"`
	// StopLoss 建议止损价（0 表示未给出）
	StopLoss float64 `json:"stop_loss,omitempty"`
	// TakeProfit 建议止盈价（0 表示未给出）
	TakeProfit float64 `json:"take_profit,omitempty"`
	// Reason 信号依据的可读描述
	Reason string `json:"reason"`
	// Features 评分特征
	Features Features `json:"features"`
	// Score 综合评分（0-100）
	Score float64 `json:"score"`
	// ScoreDetail 各维度得分
	ScoreDetail map[string]float64 `json:"score_detail,omitempty"`
	// Accepted 是否通过过滤器
	Accepted bool `json:"accepted"`
	// Confirmed 是否已被后续 K 线确认
	Confirmed bool `json:"confirmed"`
	// Advice 仓位建议（仅 Accepted 信号填充）
	Advice *Advice `json:"advice,omitempty"`
}

// Tag 返回信号的文本标签，如 1B / 2S / 3B
// 仅用于输出与存储，内部分支一律使用 Class/Side。
func (s *Signal) Tag() string {
	side := "B"
	if s.Side == SideSell {
		side = "S"
	}
	return fmt.Sprintf("%d%s", int(s.Class), side)
}

// IsBuy 判断是否为买点
func (s *Signal) IsBuy() bool {
	return s.Side == SideBuy
}

// StopDistance 止损距离（绝对值）
func (s *Signal) StopDistance() float64 {
	if s.StopLoss <= 0 {
		return 0
	}
	d := s.Price - s.StopLoss
	if d < 0 {
		return -d
	}
	return d
}
