// Package notify 实现信号通知的输出端。
// 控制台端面向人读，Webhook 端推送 JSON 给外部系统；
// Multi 把多个输出端合并为一个。通知失败只记日志，不回传错误，
// 避免外部端点故障阻断信号链路。
package notify

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/model"
)

// Notifier 信号通知接口
type Notifier interface {
	Notify(sig *model.Signal)
	NotifyConfirm(sig *model.Signal)
}

// FormatSignal 信号的单行人读描述
// 未通过过滤的信号没有仓位建议，改为输出拒绝原因。
func FormatSignal(sig *model.Signal) string {
	detail := sig.Reason
	if sig.Advice != nil {
		detail = sig.Advice.Description
	}
	return fmt.Sprintf("[%s] %s 价格 %.2f 评分 %.1f 止损 %.2f 止盈 %.2f | %s",
		sig.Time.Format("2006-01-02 15:04"),
		sig.Tag(), sig.Price, sig.Score, sig.StopLoss, sig.TakeProfit,
		detail)
}

// Console 控制台通知端
type Console struct {
	logger *zap.Logger
}

// NewConsole 创建控制台通知端
func NewConsole(logger *zap.Logger) *Console {
	return &Console{logger: logger.Named("notify-console")}
}

// Notify 输出新信号
func (c *Console) Notify(sig *model.Signal) {
	fmt.Println(FormatSignal(sig))
}

// NotifyConfirm 输出确认结果
func (c *Console) NotifyConfirm(sig *model.Signal) {
	state := "未确认"
	if sig.Confirmed {
		state = "已确认"
	}
	fmt.Printf("[%s] %s %s\n", sig.Time.Format("2006-01-02 15:04"), sig.Tag(), state)
}

// webhookPayload Webhook 推送体
type webhookPayload struct {
	Event      string             `json:"event"`
	ID         string             `json:"id"`
	Tag        string             `json:"tag"`
	Price      float64            `json:"price"`
	Time       time.Time          `json:"time"`
	Score      float64            `json:"score"`
	StopLoss   float64            `json:"stop_loss"`
	TakeProfit float64            `json:"take_profit"`
	Confirmed  bool               `json:"confirmed"`
	Reason     string             `json:"reason"`
	Advice     string             `json:"advice"`
	Detail     map[string]float64 `json:"detail,omitempty"`
}

// Webhook HTTP 通知端
type Webhook struct {
	url    string
	http   *resty.Client
	logger *zap.Logger
}

// NewWebhook 创建 Webhook 通知端
func NewWebhook(url string, timeout time.Duration, logger *zap.Logger) *Webhook {
	http := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Webhook{
		url:    url,
		http:   http,
		logger: logger.Named("notify-webhook"),
	}
}

// Notify 推送新信号
func (w *Webhook) Notify(sig *model.Signal) {
	w.post(payload("signal", sig))
}

// NotifyConfirm 推送确认结果
func (w *Webhook) NotifyConfirm(sig *model.Signal) {
	w.post(payload("confirm", sig))
}

func payload(event string, sig *model.Signal) webhookPayload {
	var advice string
	if sig.Advice != nil {
		advice = sig.Advice.Description
	}
	return webhookPayload{
		Event:      event,
		ID:         sig.ID,
		Tag:        sig.Tag(),
		Price:      sig.Price,
		Time:       sig.Time,
		Score:      sig.Score,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Confirmed:  sig.Confirmed,
		Reason:     sig.Reason,
		Advice:     advice,
		Detail:     sig.ScoreDetail,
	}
}

func (w *Webhook) post(p webhookPayload) {
	resp, err := w.http.R().SetBody(p).Post(w.url)
	if err != nil {
		w.logger.Warn("Webhook 推送失败", zap.Error(err))
		return
	}
	if resp.StatusCode() >= 300 {
		w.logger.Warn("Webhook 返回非成功状态",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
	}
}

// Multi 多路通知端
type Multi struct {
	sinks []Notifier
}

// NewMulti 合并多个通知端
func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

// Notify 逐个推送新信号
func (m *Multi) Notify(sig *model.Signal) {
	for _, s := range m.sinks {
		s.Notify(sig)
	}
}

// NotifyConfirm 逐个推送确认结果
func (m *Multi) NotifyConfirm(sig *model.Signal) {
	for _, s := range m.sinks {
		s.NotifyConfirm(sig)
	}
}
