// Package timeutil 提供时间戳工具。
// 交易所接口统一使用 Unix 毫秒时间戳，内部事件记录使用纳秒。
package timeutil

import (
	"time"
)

var (
	// baseTime 进程启动时间（含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 启动时间对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 当前 Unix 纳秒时间戳
// 由单调时钟差值加启动基准组成，系统时间跳变（NTP 校正）
// 不会破坏相邻读数的单调性。
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// MsToTime 将交易所毫秒时间戳转换为 UTC 时间
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
