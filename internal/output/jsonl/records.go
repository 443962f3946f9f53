package jsonl

import (
	"time"

	"chan-structure-scanner/internal/backtest"
	"chan-structure-scanner/internal/core/model"
)

// SignalRecord 信号输出记录
type SignalRecord struct {
	ID          string             `json:"id"`
	Tag         string             `json:"tag"`
	Class       int                `json:"class"`
	Side        int                `json:"side"`
	Price       float64            `json:"price"`
	Time        time.Time          `json:"time"`
	StopLoss    float64            `json:"stop_loss"`
	TakeProfit  float64            `json:"take_profit"`
	Score       float64            `json:"score"`
	ScoreDetail map[string]float64 `json:"score_detail,omitempty"`
	Accepted    bool               `json:"accepted"`
	Confirmed   bool               `json:"confirmed"`
	Reason      string             `json:"reason"`
	Advice      string             `json:"advice,omitempty"`
}

// NewSignalRecord 从信号构造输出记录
// 被过滤拒绝的信号没有仓位建议，建议列留空。
func NewSignalRecord(sig *model.Signal) SignalRecord {
	var advice string
	if sig.Advice != nil {
		advice = sig.Advice.Description
	}
	return SignalRecord{
		ID:          sig.ID,
		Tag:         sig.Tag(),
		Class:       int(sig.Class),
		Side:        int(sig.Side),
		Price:       sig.Price,
		Time:        sig.Time,
		StopLoss:    sig.StopLoss,
		TakeProfit:  sig.TakeProfit,
		Score:       sig.Score,
		ScoreDetail: sig.ScoreDetail,
		Accepted:    sig.Accepted,
		Confirmed:   sig.Confirmed,
		Reason:      sig.Reason,
		Advice:      advice,
	}
}

// TradeRecord 影子成交输出记录
type TradeRecord struct {
	ID         string    `json:"id"`
	Tag        string    `json:"tag"`
	Side       int       `json:"side"`
	Qty        float64   `json:"qty"`
	EntryPx    float64   `json:"entry_px"`
	ExitPx     float64   `json:"exit_px"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	HoldBars   int       `json:"hold_bars"`
	ExitReason string    `json:"exit_reason"`
	GrossPnL   float64   `json:"gross_pnl"`
	NetPnL     float64   `json:"net_pnl"`
	Fee        float64   `json:"fee"`
}

// NewTradeRecord 从已平仓仓位构造输出记录
func NewTradeRecord(pos *backtest.Position) TradeRecord {
	return TradeRecord{
		ID:         pos.ID,
		Tag:        pos.Tag,
		Side:       int(pos.Side),
		Qty:        pos.Qty,
		EntryPx:    pos.EntryPx,
		ExitPx:     pos.ExitPx,
		EntryTime:  pos.EntryTime,
		ExitTime:   pos.ExitTime,
		HoldBars:   pos.HoldBars,
		ExitReason: string(pos.ExitReason),
		GrossPnL:   pos.GrossPnL,
		NetPnL:     pos.NetPnL,
		Fee:        pos.Fee,
	}
}
