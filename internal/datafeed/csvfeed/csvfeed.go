// Package csvfeed 从 CSV 文件加载历史 K 线。
// 列名做大小写无关的同义词匹配，兼容常见导出格式；时间列支持
// Unix 秒/毫秒时间戳与多种日期字符串。无效行跳过并计数，
// 不中断整个文件的加载。
package csvfeed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/model"
)

// 各字段可接受的列名同义词（全部小写）
var columnAliases = map[string][]string{
	"time":   {"time", "timestamp", "date", "datetime", "open_time"},
	"open":   {"open", "o"},
	"high":   {"high", "h"},
	"low":    {"low", "l"},
	"close":  {"close", "c"},
	"volume": {"volume", "vol", "v"},
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// Feed CSV K 线数据源
type Feed struct {
	path   string
	logger *zap.Logger
}

// New 创建 CSV 数据源
func New(path string, logger *zap.Logger) *Feed {
	return &Feed{path: path, logger: logger}
}

// Load 加载全部 K 线并按时间升序返回
func (f *Feed) Load() ([]model.Bar, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("打开 CSV 文件失败: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}

	cols, err := matchColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []model.Bar
	skipped := 0
	line := 1
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		line++

		bar, perr := parseRow(record, cols)
		if perr != nil {
			skipped++
			f.logger.Debug("跳过无效数据行",
				zap.Int("line", line),
				zap.Error(perr))
			continue
		}
		if !bar.Valid() {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	sortByTime(bars)

	f.logger.Info("CSV K 线加载完成",
		zap.String("path", f.path),
		zap.Int("bars", len(bars)),
		zap.Int("skipped", skipped))

	if len(bars) == 0 {
		return nil, fmt.Errorf("CSV 文件中没有有效 K 线: %s", f.path)
	}
	return bars, nil
}

// matchColumns 将表头映射到标准字段的列索引
func matchColumns(header []string) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}

	cols := make(map[string]int, len(columnAliases))
	var missing []string
	for field, aliases := range columnAliases {
		idx := -1
		for _, alias := range aliases {
			for i, h := range normalized {
				if h == alias {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		if idx < 0 {
			if field == "volume" {
				// 成交量缺失可容忍，按 0 处理
				cols[field] = -1
				continue
			}
			missing = append(missing, field)
			continue
		}
		cols[field] = idx
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV 缺少必需列: %s（表头: %s）",
			strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (model.Bar, error) {
	var bar model.Bar
	var err error

	bar.Time, err = parseTime(field(record, cols["time"]))
	if err != nil {
		return bar, err
	}
	if bar.Open, err = parseFloat(field(record, cols["open"])); err != nil {
		return bar, fmt.Errorf("open: %w", err)
	}
	if bar.High, err = parseFloat(field(record, cols["high"])); err != nil {
		return bar, fmt.Errorf("high: %w", err)
	}
	if bar.Low, err = parseFloat(field(record, cols["low"])); err != nil {
		return bar, fmt.Errorf("low: %w", err)
	}
	if bar.Close, err = parseFloat(field(record, cols["close"])); err != nil {
		return bar, fmt.Errorf("close: %w", err)
	}
	if cols["volume"] >= 0 {
		if bar.Volume, err = parseFloat(field(record, cols["volume"])); err != nil {
			return bar, fmt.Errorf("volume: %w", err)
		}
	}
	return bar, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("字段为空")
	}
	return strconv.ParseFloat(s, 64)
}

// parseTime 解析时间列：纯数字视为 Unix 时间戳（>1e12 按毫秒），
// 否则依次尝试常见日期格式。
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("时间字段为空")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间: %s", s)
}

// sortByTime 按时间升序排序（插入排序，导出文件通常已基本有序）
func sortByTime(bars []model.Bar) {
	for i := 1; i < len(bars); i++ {
		for j := i; j > 0 && bars[j].Time.Before(bars[j-1].Time); j-- {
			bars[j], bars[j-1] = bars[j-1], bars[j]
		}
	}
}
