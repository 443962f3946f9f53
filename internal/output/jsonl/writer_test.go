package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chan-structure-scanner/internal/backtest"
	"chan-structure-scanner/internal/core/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开输出文件失败: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("读取输出文件失败: %v", err)
	}
	return lines
}

func TestWriter_WriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.jsonl")

	w, err := NewWriter(path, 100)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := w.Write(map[string]any{"i": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 10 {
		t.Fatalf("期望 10 行: got %d", len(lines))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("输出不是合法 JSON: %v", err)
	}
}

func TestWriter_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewWriter(path, 10)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := w.Write(map[string]any{"a": 1}); err == nil {
		t.Errorf("关闭后写入应报错")
	}
	// Close 幂等
	if err := w.Close(); err != nil {
		t.Errorf("重复 Close 不应报错: %v", err)
	}
}

func TestWriter_FlushVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewWriter(path, 10)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Write(map[string]any{"a": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if lines := readLines(t, path); len(lines) != 1 {
		t.Errorf("Flush 后记录应可见: %d 行", len(lines))
	}
}

func TestWriter_DropsUnmarshalable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewWriter(path, 10)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Write(make(chan int)); err != nil { // 不可编码
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(map[string]any{"ok": true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if lines := readLines(t, path); len(lines) != 1 {
		t.Errorf("不可编码记录应被丢弃: %d 行", len(lines))
	}
	if w.Dropped() != 1 {
		t.Errorf("丢弃计数错误: %d", w.Dropped())
	}
}

// 信号记录序列化后必含下游消费所需的字段
func TestSignalRecord_Completeness_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("信号 JSON 必含必需字段", prop.ForAll(
		func(price, score float64, classIdx int, buy bool) bool {
			side := model.SideSell
			if buy {
				side = model.SideBuy
			}
			sig := &model.Signal{
				ID:       "id-1",
				Class:    model.SignalClass(classIdx%3 + 1),
				Side:     side,
				Price:    price,
				Time:     time.Unix(1700000000, 0),
				StopLoss: price * 0.98,
				Score:    score,
				Reason:   "r",
			}

			b, err := json.Marshal(NewSignalRecord(sig))
			if err != nil {
				return false
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				return false
			}
			for _, k := range []string{
				"id", "tag", "class", "side", "price", "time",
				"stop_loss", "take_profit", "score", "accepted", "confirmed", "reason",
			} {
				if _, ok := m[k]; !ok {
					return false
				}
			}
			return true
		},
		gen.Float64Range(1, 200000),
		gen.Float64Range(0, 100),
		gen.IntRange(0, 8),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestNewSignalRecord_RejectedWithoutAdvice(t *testing.T) {
	// 被过滤拒绝的信号没有仓位建议，构造记录不得崩溃
	sig := &model.Signal{
		ID:     "s-rejected",
		Class:  model.Class1,
		Side:   model.SideBuy,
		Price:  100,
		Score:  55,
		Reason: "评分不足",
	}

	rec := NewSignalRecord(sig)
	if rec.Advice != "" {
		t.Errorf("无建议信号的建议列应为空: %q", rec.Advice)
	}
	if rec.Accepted {
		t.Errorf("未过滤通过的信号不应标记 Accepted")
	}
}

func TestTradeRecord_Fields(t *testing.T) {
	pos := &backtest.Position{
		ID:         "p1",
		Tag:        "1B",
		Side:       model.SideBuy,
		Qty:        500,
		EntryPx:    100,
		ExitPx:     104,
		ExitReason: backtest.ExitTP,
		GrossPnL:   2000,
		NetPnL:     1900,
		Fee:        100,
		HoldBars:   7,
		Closed:     true,
	}

	rec := NewTradeRecord(pos)
	if rec.ExitReason != "tp" || rec.NetPnL != 1900 || rec.HoldBars != 7 {
		t.Errorf("成交记录字段错误: %+v", rec)
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, k := range []string{"id", "tag", "entry_px", "exit_px", "exit_reason", "gross_pnl", "net_pnl", "fee"} {
		if _, ok := m[k]; !ok {
			t.Errorf("成交 JSON 缺少字段 %q", k)
		}
	}
}
