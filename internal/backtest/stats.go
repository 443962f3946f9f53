package backtest

// tradeSample 滚动统计样本
type tradeSample struct {
	win      bool
	grossPnL float64
	fee      float64
}

// Stats 滚动窗口绩效统计
// EV = p × (R - f) + (1 - p) × (-L - f)
// p_required = (L + f) / (R + L)
type Stats struct {
	// Count 样本数
	Count int64
	// WinCount 盈利样本数（净利>0）
	WinCount int64
	// LossCount 亏损样本数（净利<=0）
	LossCount int64

	// WinRate 胜率 p
	WinRate float64
	// AvgProfit 平均盈利 R（毛利）
	AvgProfit float64
	// AvgLoss 平均亏损 L（毛亏损绝对值）
	AvgLoss float64
	// AvgFee 平均手续费 f
	AvgFee float64

	// EV 单笔期望值
	EV float64
	// PRequired 盈亏平衡胜率
	PRequired float64
}

// Calculator 滚动窗口绩效计算器
// 环形缓冲维护最近 N 笔成交，统计量 O(1) 增量更新。
type Calculator struct {
	windowSize int
	buf        []tradeSample
	pos        int
	full       bool

	count     int64
	winCount  int64
	lossCount int64
	sumWinR   float64
	sumLossL  float64
	sumFee    float64
}

// NewCalculator 创建绩效计算器
// 参数 windowSize: 滚动窗口大小（建议 1000）
func NewCalculator(windowSize int) *Calculator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Calculator{
		windowSize: windowSize,
		buf:        make([]tradeSample, windowSize),
	}
}

// Add 添加一笔已平仓成交到滚动统计
func (c *Calculator) Add(pos *Position) {
	if pos == nil || !pos.Closed {
		return
	}

	s := tradeSample{
		win:      pos.NetPnL > 0,
		grossPnL: pos.GrossPnL,
		fee:      pos.Fee,
	}

	// 若环已满，移除旧样本对统计的贡献
	if c.full {
		old := c.buf[c.pos]
		c.count--
		if old.win {
			c.winCount--
			c.sumWinR -= old.grossPnL
		} else {
			c.lossCount--
			c.sumLossL -= abs(old.grossPnL)
		}
		c.sumFee -= old.fee
	}

	c.buf[c.pos] = s
	c.pos++
	if c.pos >= c.windowSize {
		c.pos = 0
		c.full = true
	}

	c.count++
	if s.win {
		c.winCount++
		c.sumWinR += s.grossPnL
	} else {
		c.lossCount++
		c.sumLossL += abs(s.grossPnL)
	}
	c.sumFee += s.fee
}

// Stats 返回滚动窗口统计
func (c *Calculator) Stats() Stats {
	out := Stats{
		Count:     c.count,
		WinCount:  c.winCount,
		LossCount: c.lossCount,
	}
	if c.count <= 0 {
		return out
	}

	out.WinRate = float64(c.winCount) / float64(c.count)
	out.AvgFee = c.sumFee / float64(c.count)

	if c.winCount > 0 {
		out.AvgProfit = c.sumWinR / float64(c.winCount)
	}
	if c.lossCount > 0 {
		out.AvgLoss = c.sumLossL / float64(c.lossCount)
	}

	p := out.WinRate
	r := out.AvgProfit
	l := out.AvgLoss
	f := out.AvgFee
	out.EV = p*(r-f) + (1-p)*(-l-f)

	den := r + l
	if den > 0 {
		out.PRequired = (l + f) / den
	} else {
		out.PRequired = 1
	}

	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
