// Package monitor 实现实时滑动窗口监控。
// 每根收盘 K 线推进一次窗口并重跑完整分析；新信号去重后推送，
// 已推送的信号在随后数根 K 线内采集确认证据并回写确认状态。
package monitor

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/filter"
	"chan-structure-scanner/internal/core/model"
	"chan-structure-scanner/internal/core/pipeline"
)

// confirmWindowBars 信号触发后采集确认证据的 K 线数量
const confirmWindowBars = 3

// Notifier 信号通知接口
type Notifier interface {
	// Notify 推送新信号
	Notify(sig *model.Signal)
	// NotifyConfirm 推送确认结果
	NotifyConfirm(sig *model.Signal)
}

// Monitor 滑动窗口监控器
type Monitor struct {
	pipe     *pipeline.Pipeline
	notifier Notifier
	logger   *zap.Logger

	windowBars int
	window     []model.Bar

	// seen 已推送信号的去重键
	seen map[string]struct{}
	// pending 等待确认的信号
	pending []*pendingSignal
}

// pendingSignal 等待确认证据的已推送信号
type pendingSignal struct {
	sig *model.Signal
	// barsSeen 信号后已观察的 K 线数
	barsSeen int
	// triggerExtreme 触发极值（买点为信号笔低点方向的止损参考价）
	triggerExtreme float64
	// avgVolume 触发时的窗口均量
	avgVolume float64
	// triggerHist 触发时的振荡柱值
	triggerHist float64
	cc          filter.ConfirmContext
	// firstBar 是否已处理信号后第一根 K 线
	firstBar bool
}

// New 创建监控器
// windowBars 限制在 500–2000，越界时收拢到边界。
func New(pipe *pipeline.Pipeline, notifier Notifier, windowBars int, logger *zap.Logger) *Monitor {
	if windowBars < 500 {
		windowBars = 500
	}
	if windowBars > 2000 {
		windowBars = 2000
	}
	return &Monitor{
		pipe:       pipe,
		notifier:   notifier,
		logger:     logger.Named("monitor"),
		windowBars: windowBars,
		seen:       make(map[string]struct{}),
	}
}

// Seed 填充初始历史窗口，不触发分析
func (m *Monitor) Seed(bars []model.Bar) {
	m.window = append(m.window[:0], bars...)
	m.trimWindow()
	m.logger.Info("初始窗口已填充", zap.Int("bars", len(m.window)))
}

// Run 从通道消费收盘 K 线直到通道关闭或 ctx 取消
func (m *Monitor) Run(ctx context.Context, barCh <-chan model.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-barCh:
			if !ok {
				return nil
			}
			if err := m.OnBar(bar); err != nil {
				m.logger.Error("处理 K 线失败", zap.Error(err))
			}
		}
	}
}

// OnBar 处理一根新收盘 K 线：推进窗口、重跑分析、推送新信号
func (m *Monitor) OnBar(bar model.Bar) error {
	if !bar.Valid() {
		return fmt.Errorf("无效 K 线: %v", bar.Time)
	}
	// 同一开盘时间的重复推送只保留最新值
	if n := len(m.window); n > 0 && m.window[n-1].Time.Equal(bar.Time) {
		m.window[n-1] = bar
	} else {
		m.window = append(m.window, bar)
	}
	m.trimWindow()

	m.advancePending(bar)

	res, err := m.pipe.Analyze(m.window)
	if err != nil {
		return err
	}

	for _, sig := range res.Accepted() {
		key := dedupeKey(sig)
		if _, ok := m.seen[key]; ok {
			continue
		}
		m.seen[key] = struct{}{}

		m.logger.Info("新信号",
			zap.String("tag", sig.Tag()),
			zap.Float64("price", sig.Price),
			zap.Float64("score", sig.Score),
			zap.Time("time", sig.Time))
		m.notifier.Notify(sig)
		m.track(sig, res)
	}
	return nil
}

// Pending 返回当前等待确认的信号数量
func (m *Monitor) Pending() int {
	return len(m.pending)
}

func (m *Monitor) trimWindow() {
	if len(m.window) > m.windowBars {
		excess := len(m.window) - m.windowBars
		m.window = append(m.window[:0], m.window[excess:]...)
	}
}

// dedupeKey 信号去重键
// 笔索引随窗口滑动而漂移，改用级别+方向+触发时间标识同一信号。
func dedupeKey(sig *model.Signal) string {
	return fmt.Sprintf("%s/%d", sig.Tag(), sig.Time.UnixMilli())
}

// track 将新信号加入确认跟踪
func (m *Monitor) track(sig *model.Signal, res *pipeline.Result) {
	p := &pendingSignal{sig: sig}

	if sig.IsBuy() {
		p.triggerExtreme = math.Inf(1)
	} else {
		p.triggerExtreme = math.Inf(-1)
	}
	if sig.StrokeIndex >= 0 && sig.StrokeIndex < len(res.Strokes) {
		s := &res.Strokes[sig.StrokeIndex]
		if sig.IsBuy() {
			p.triggerExtreme = s.Low()
		} else {
			p.triggerExtreme = s.High()
		}
	}
	p.avgVolume = sig.Features.AvgVolume
	p.cc.NotReturned = true
	p.cc.SubLevelConfirms = sig.Features.HasSubLevel
	m.pending = append(m.pending, p)
}

// advancePending 用新 K 线为所有待确认信号累积证据
// 观察满窗口后执行确认清单并回写结果。
func (m *Monitor) advancePending(bar model.Bar) {
	remaining := m.pending[:0]
	for _, p := range m.pending {
		p.barsSeen++

		if !p.firstBar {
			p.firstBar = true
			if p.sig.IsBuy() {
				p.cc.NextBarConfirms = bar.Close > bar.Open
			} else {
				p.cc.NextBarConfirms = bar.Close < bar.Open
			}
		}

		if p.avgVolume > 0 && bar.Volume > p.avgVolume {
			p.cc.VolumeExpands = true
		}

		if p.sig.IsBuy() {
			if bar.Close > p.sig.Price {
				p.cc.PriceAdvanced = true
			}
			if bar.Low < p.triggerExtreme {
				p.cc.NotReturned = false
			}
			if bar.Close > bar.Open {
				p.cc.MomentumTurns = true
			}
		} else {
			if bar.Close < p.sig.Price {
				p.cc.PriceAdvanced = true
			}
			if bar.High > p.triggerExtreme {
				p.cc.NotReturned = false
			}
			if bar.Close < bar.Open {
				p.cc.MomentumTurns = true
			}
		}

		if p.barsSeen < confirmWindowBars {
			remaining = append(remaining, p)
			continue
		}

		filter.Confirm(p.sig, p.cc)
		m.logger.Info("信号确认结果",
			zap.String("tag", p.sig.Tag()),
			zap.Time("time", p.sig.Time),
			zap.Bool("confirmed", p.sig.Confirmed))
		m.notifier.NotifyConfirm(p.sig)
	}
	m.pending = remaining
}
