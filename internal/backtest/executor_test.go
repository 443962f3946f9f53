package backtest

import (
	"testing"
	"time"

	"chan-structure-scanner/internal/core/model"
)

func buySignal() *model.Signal {
	return &model.Signal{
		ID:         "sig-1",
		Class:      model.Class1,
		Side:       model.SideBuy,
		Price:      100,
		StopLoss:   98,
		TakeProfit: 104,
		Time:       time.Unix(1000, 0),
	}
}

func evalBar(high, low, close float64) model.Bar {
	return model.Bar{
		Time:  time.Unix(2000, 0),
		Open:  close,
		High:  high,
		Low:   low,
		Close: close,
	}
}

func TestTryOpen_RiskSizing(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01, MaxHoldBars: 10})

	pos, ok, err := e.TryOpen(buySignal())
	if err != nil || !ok {
		t.Fatalf("TryOpen: ok=%v err=%v", ok, err)
	}
	// qty = 100000 × 0.01 / 2 = 500
	if pos.Qty != 500 {
		t.Errorf("风险定量错误: qty=%v", pos.Qty)
	}
	if pos.EntryPx != 100 || pos.StopLoss != 98 || pos.TakeProfit != 104 {
		t.Errorf("仓位价位错误: %+v", pos)
	}
}

func TestTryOpen_SinglePosition(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01})

	if _, ok, _ := e.TryOpen(buySignal()); !ok {
		t.Fatalf("首次开仓应成功")
	}
	if _, ok, err := e.TryOpen(buySignal()); ok || err != nil {
		t.Errorf("持仓中不应再开仓: ok=%v err=%v", ok, err)
	}
}

func TestTryOpen_MissingStop(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01})
	sig := buySignal()
	sig.StopLoss = 0

	if _, ok, err := e.TryOpen(sig); ok || err == nil {
		t.Errorf("缺少止损应报错: ok=%v err=%v", ok, err)
	}
}

func TestEvaluate_StopBeforeTakeProfit(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01, MaxHoldBars: 10, FeeRate: 0.001})
	e.TryOpen(buySignal())

	// 同一根 K 线同时触及止损与止盈：保守口径记止损
	pos := e.Evaluate(evalBar(105, 97, 100))
	if pos == nil || pos.ExitReason != ExitSL {
		t.Fatalf("应按止损平仓: %+v", pos)
	}
	if pos.ExitPx != 98 {
		t.Errorf("平仓价应为止损价: %v", pos.ExitPx)
	}
	// gross = (98-100)×500 = -1000; fee = (100+98)×500×0.001 = 99
	if pos.GrossPnL != -1000 || pos.Fee != 99 || pos.NetPnL != -1099 {
		t.Errorf("盈亏计算错误: gross=%v fee=%v net=%v", pos.GrossPnL, pos.Fee, pos.NetPnL)
	}
	if e.Equity() != 100000-1099 {
		t.Errorf("权益未更新: %v", e.Equity())
	}
	if e.Open() != nil {
		t.Errorf("平仓后不应有持仓")
	}
}

func TestEvaluate_TakeProfit(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01, MaxHoldBars: 10})
	e.TryOpen(buySignal())

	pos := e.Evaluate(evalBar(104.5, 99, 104))
	if pos == nil || pos.ExitReason != ExitTP {
		t.Fatalf("应按止盈平仓: %+v", pos)
	}
	if pos.ExitPx != 104 {
		t.Errorf("平仓价应为止盈价: %v", pos.ExitPx)
	}
	// gross = (104-100)×500 = 2000，无手续费
	if pos.NetPnL != 2000 || e.Equity() != 102000 {
		t.Errorf("盈亏错误: net=%v equity=%v", pos.NetPnL, e.Equity())
	}
}

func TestEvaluate_Timeout(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01, MaxHoldBars: 2})
	e.TryOpen(buySignal())

	if pos := e.Evaluate(evalBar(101, 99, 100.5)); pos != nil {
		t.Fatalf("第一根不应平仓: %+v", pos)
	}
	pos := e.Evaluate(evalBar(101, 99, 100.5))
	if pos == nil || pos.ExitReason != ExitTimeout {
		t.Fatalf("超时应强制平仓: %+v", pos)
	}
	if pos.ExitPx != 100.5 || pos.HoldBars != 2 {
		t.Errorf("超时平仓应取收盘价: px=%v hold=%d", pos.ExitPx, pos.HoldBars)
	}
}

func TestEvaluate_SellSide(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01, MaxHoldBars: 10})
	sig := buySignal()
	sig.Side = model.SideSell
	sig.StopLoss = 102
	sig.TakeProfit = 96
	e.TryOpen(sig)

	pos := e.Evaluate(evalBar(103, 100, 102.5))
	if pos == nil || pos.ExitReason != ExitSL {
		t.Fatalf("空头触及上方止损应平仓: %+v", pos)
	}
	// gross = (102-100)×500×(-1) = -1000
	if pos.GrossPnL != -1000 {
		t.Errorf("空头盈亏方向错误: %v", pos.GrossPnL)
	}
}

func TestEvaluate_NoPosition(t *testing.T) {
	e := NewExecutor(Config{Equity: 100000, RiskRatio: 0.01})
	if pos := e.Evaluate(evalBar(101, 99, 100)); pos != nil {
		t.Errorf("无持仓不应返回平仓: %+v", pos)
	}
}
