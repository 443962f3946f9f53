package backtest

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func closedTrade(gross, fee float64) *Position {
	return &Position{
		Closed:   true,
		GrossPnL: gross,
		Fee:      fee,
		NetPnL:   gross - fee,
	}
}

func approxEq(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestCalculator_Basic(t *testing.T) {
	c := NewCalculator(100)
	c.Add(closedTrade(200, 10)) // 赢
	c.Add(closedTrade(-100, 10))
	c.Add(closedTrade(300, 10)) // 赢

	s := c.Stats()
	if s.Count != 3 || s.WinCount != 2 || s.LossCount != 1 {
		t.Fatalf("计数错误: %+v", s)
	}
	if !approxEq(s.WinRate, 2.0/3.0, 1e-12) {
		t.Errorf("胜率错误: %v", s.WinRate)
	}
	if s.AvgProfit != 250 || s.AvgLoss != 100 || s.AvgFee != 10 {
		t.Errorf("均值错误: R=%v L=%v f=%v", s.AvgProfit, s.AvgLoss, s.AvgFee)
	}

	wantEV := s.WinRate*(250-10) + (1-s.WinRate)*(-100-10)
	if !approxEq(s.EV, wantEV, 1e-12) {
		t.Errorf("EV 错误: %v, want %v", s.EV, wantEV)
	}
	if !approxEq(s.PRequired, (100.0+10)/(250+100), 1e-12) {
		t.Errorf("盈亏平衡胜率错误: %v", s.PRequired)
	}
}

func TestCalculator_WindowEviction(t *testing.T) {
	c := NewCalculator(2)
	c.Add(closedTrade(100, 0))
	c.Add(closedTrade(-50, 0))
	c.Add(closedTrade(-60, 0)) // 挤出第一笔

	s := c.Stats()
	if s.Count != 2 || s.WinCount != 0 || s.LossCount != 2 {
		t.Fatalf("挤出后计数错误: %+v", s)
	}
	if s.AvgLoss != 55 {
		t.Errorf("挤出后均亏错误: %v", s.AvgLoss)
	}
}

func TestCalculator_IgnoresOpenAndNil(t *testing.T) {
	c := NewCalculator(10)
	c.Add(nil)
	c.Add(&Position{Closed: false, GrossPnL: 100})

	if s := c.Stats(); s.Count != 0 {
		t.Errorf("未平仓成交不应计入: %+v", s)
	}
}

func TestCalculator_EmptyStats(t *testing.T) {
	s := NewCalculator(10).Stats()
	if s.Count != 0 || s.EV != 0 || s.WinRate != 0 {
		t.Errorf("空统计应为零值: %+v", s)
	}
}

// 滚动统计与手工聚合一致（窗口未满时）
func TestCalculator_RollingStats_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("Stats 与手工聚合一致", prop.ForAll(
		func(grosses []float64, fees []float64) bool {
			n := len(grosses)
			if len(fees) < n {
				n = len(fees)
			}
			if n == 0 {
				return true
			}

			c := NewCalculator(n + 10)

			var count, winCount, lossCount int64
			var sumWinR, sumLossL, sumFee float64
			for i := 0; i < n; i++ {
				g := grosses[i]
				f := fees[i]
				c.Add(closedTrade(g, f))

				count++
				sumFee += f
				if g-f > 0 {
					winCount++
					sumWinR += g
				} else {
					lossCount++
					sumLossL += math.Abs(g)
				}
			}

			s := c.Stats()
			if s.Count != count || s.WinCount != winCount || s.LossCount != lossCount {
				return false
			}

			wantP := float64(winCount) / float64(count)
			wantF := sumFee / float64(count)
			var wantR, wantL float64
			if winCount > 0 {
				wantR = sumWinR / float64(winCount)
			}
			if lossCount > 0 {
				wantL = sumLossL / float64(lossCount)
			}
			if !approxEq(s.WinRate, wantP, 1e-9) || !approxEq(s.AvgFee, wantF, 1e-9) ||
				!approxEq(s.AvgProfit, wantR, 1e-9) || !approxEq(s.AvgLoss, wantL, 1e-9) {
				return false
			}

			wantEV := wantP*(wantR-wantF) + (1-wantP)*(-wantL-wantF)
			return approxEq(s.EV, wantEV, 1e-9)
		},
		gen.SliceOfN(20, gen.Float64Range(-5000, 5000)),
		gen.SliceOfN(20, gen.Float64Range(0, 100)),
	))

	properties.TestingRun(t)
}

// 挤出旧样本后统计仍与窗口内样本一致
func TestCalculator_WindowConsistency_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("窗口满后 Count 恒等于窗口大小", prop.ForAll(
		func(grosses []float64) bool {
			window := 5
			c := NewCalculator(window)
			for _, g := range grosses {
				c.Add(closedTrade(g, 1))
			}

			s := c.Stats()
			wantCount := int64(len(grosses))
			if wantCount > int64(window) {
				wantCount = int64(window)
			}
			if s.Count != wantCount {
				return false
			}
			return s.WinCount+s.LossCount == s.Count
		},
		gen.SliceOfN(17, gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}
