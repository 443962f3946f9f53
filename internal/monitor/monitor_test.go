package monitor

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/filter"
	"chan-structure-scanner/internal/core/model"
	"chan-structure-scanner/internal/core/pipeline"
	"chan-structure-scanner/internal/core/score"
)

type recordingNotifier struct {
	signals   []*model.Signal
	confirmed []*model.Signal
}

func (n *recordingNotifier) Notify(sig *model.Signal)        { n.signals = append(n.signals, sig) }
func (n *recordingNotifier) NotifyConfirm(sig *model.Signal) { n.confirmed = append(n.confirmed, sig) }

func newTestMonitor(windowBars int) (*Monitor, *recordingNotifier) {
	weights := map[string]float64{
		"structure": 20, "divergence": 20, "volume_price": 10, "time": 10,
		"position": 10, "sub_level": 10, "strength": 10, "confirmation": 10,
	}
	pipe := pipeline.New(pipeline.Config{}, score.New(weights, 60),
		filter.New(filter.Config{MinScore: 60, MaxStopPercent: 10}))
	n := &recordingNotifier{}
	return New(pipe, n, windowBars, zap.NewNop()), n
}

func flatBar(i int) model.Bar {
	return model.Bar{
		Time:   time.Unix(int64(i)*300, 0),
		Open:   100,
		High:   100.5,
		Low:    99.5,
		Close:  100.2,
		Volume: 1000,
	}
}

func TestNew_WindowClamped(t *testing.T) {
	m, _ := newTestMonitor(10)
	if m.windowBars != 500 {
		t.Errorf("过小窗口应收拢到 500: %d", m.windowBars)
	}
	m, _ = newTestMonitor(9999)
	if m.windowBars != 2000 {
		t.Errorf("过大窗口应收拢到 2000: %d", m.windowBars)
	}
}

func TestSeed_TrimsToWindow(t *testing.T) {
	m, _ := newTestMonitor(500)
	bars := make([]model.Bar, 600)
	for i := range bars {
		bars[i] = flatBar(i)
	}
	m.Seed(bars)

	if len(m.window) != 500 {
		t.Fatalf("窗口应裁剪到 500: %d", len(m.window))
	}
	// 保留最新的 K 线
	if !m.window[len(m.window)-1].Time.Equal(bars[599].Time) {
		t.Errorf("裁剪应丢弃最早的 K 线")
	}
}

func TestOnBar_InvalidBar(t *testing.T) {
	m, _ := newTestMonitor(500)
	if err := m.OnBar(model.Bar{}); err == nil {
		t.Fatalf("无效 K 线应报错")
	}
}

func TestOnBar_DuplicateOpenTimeReplaced(t *testing.T) {
	m, _ := newTestMonitor(500)
	m.Seed([]model.Bar{flatBar(0), flatBar(1)})

	dup := flatBar(1)
	dup.Close = 100.4
	if err := m.OnBar(dup); err != nil {
		t.Fatalf("OnBar: %v", err)
	}
	if len(m.window) != 2 {
		t.Fatalf("同一开盘时间应替换而非追加: %d", len(m.window))
	}
	if m.window[1].Close != 100.4 {
		t.Errorf("应保留最新推送的值: %v", m.window[1].Close)
	}
}

func TestOnBar_FlatDataNoSignals(t *testing.T) {
	m, n := newTestMonitor(500)
	bars := make([]model.Bar, 100)
	for i := range bars {
		bars[i] = flatBar(i)
	}
	m.Seed(bars)

	if err := m.OnBar(flatBar(100)); err != nil {
		t.Fatalf("OnBar: %v", err)
	}
	if len(n.signals) != 0 {
		t.Errorf("横盘数据不应推送信号: %d", len(n.signals))
	}
}

func TestAdvancePending_ConfirmAfterWindow(t *testing.T) {
	m, n := newTestMonitor(500)
	m.Seed([]model.Bar{flatBar(0)})

	sig := &model.Signal{
		Class: model.Class2,
		Side:  model.SideBuy,
		Price: 100,
		Time:  time.Unix(0, 0),
	}
	m.pending = append(m.pending, &pendingSignal{
		sig:            sig,
		triggerExtreme: 99.0, // 后续 K 线低点 99.5 未击穿
		avgVolume:      500,
		cc:             filter.ConfirmContext{NotReturned: true},
	})

	// 三根顺势放量 K 线: NextBarConfirms + VolumeExpands + MomentumTurns
	for i := 1; i <= 3; i++ {
		if err := m.OnBar(flatBar(i)); err != nil {
			t.Fatalf("OnBar: %v", err)
		}
	}

	if m.Pending() != 0 {
		t.Fatalf("观察满窗口后应移出待确认队列: %d", m.Pending())
	}
	if len(n.confirmed) != 1 {
		t.Fatalf("应推送确认结果: %d", len(n.confirmed))
	}
	if !sig.Confirmed {
		t.Errorf("二类信号两项以上证据应确认")
	}
}

func TestAdvancePending_ReturnedBreaksEvidence(t *testing.T) {
	m, _ := newTestMonitor(500)
	m.Seed([]model.Bar{flatBar(0)})

	sig := &model.Signal{Class: model.Class1, Side: model.SideBuy, Price: 100, Time: time.Unix(0, 0)}
	m.pending = append(m.pending, &pendingSignal{
		sig:            sig,
		triggerExtreme: 99.8, // 后续 K 线低点 99.5 会击穿
		cc:             filter.ConfirmContext{NotReturned: true},
	})

	for i := 1; i <= 3; i++ {
		if err := m.OnBar(flatBar(i)); err != nil {
			t.Fatalf("OnBar: %v", err)
		}
	}

	// 证据仅剩 PriceAdvanced 一项，不足一类的三项
	if sig.Confirmed {
		t.Errorf("回落破触发极值的一类信号不应确认")
	}
}

func TestAdvancePending_FirstClassPriceEvidence(t *testing.T) {
	m, n := newTestMonitor(500)
	m.Seed([]model.Bar{flatBar(0)})

	sig := &model.Signal{Class: model.Class1, Side: model.SideBuy, Price: 100, Time: time.Unix(0, 0)}
	m.pending = append(m.pending, &pendingSignal{
		sig:            sig,
		triggerExtreme: 99.0, // 后续 K 线低点 99.5 未击穿
		avgVolume:      500,
		cc:             filter.ConfirmContext{NotReturned: true},
	})

	// 收盘 100.2 越过信号价 100，量能 1000 高于均量 500
	for i := 1; i <= 3; i++ {
		if err := m.OnBar(flatBar(i)); err != nil {
			t.Fatalf("OnBar: %v", err)
		}
	}

	if len(n.confirmed) != 1 {
		t.Fatalf("应推送确认结果: %d", len(n.confirmed))
	}
	if !sig.Confirmed {
		t.Errorf("越过信号价、极值未破、量能放大三项应确认一类信号")
	}
}
