// Package backoff 提供行情流断线重连的指数退避延迟。
package backoff

import (
	"math/rand"
	"time"
)

// Backoff 指数退避延迟序列
// 每次 Next 返回的延迟在前值基础上翻倍并叠加随机抖动，
// 封顶于最大延迟；连接恢复后 Reset 回到基础延迟。
type Backoff struct {
	base    time.Duration
	cap     time.Duration
	jitter  float64
	retries int
}

// New 创建退避序列
// 参数 base: 首次重试延迟
// 参数 cap: 延迟上限
// 参数 jitter: 抖动比例，0.2 表示在 ±20% 内随机浮动
func New(base, cap time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, cap: cap, jitter: jitter}
}

// NewDefault 行情流重连的默认序列: 1s 起步，30s 封顶，±20% 抖动
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next 返回下一次重试前的等待时间
func (b *Backoff) Next() time.Duration {
	delay := b.base
	// 翻倍到封顶为止，移位溢出前先行截断
	for i := 0; i < b.retries && delay < b.cap; i++ {
		delay *= 2
	}
	if delay > b.cap {
		delay = b.cap
	}

	if b.jitter > 0 {
		spread := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * spread)
	}

	b.retries++
	return delay
}

// Reset 连接成功后回到基础延迟
func (b *Backoff) Reset() {
	b.retries = 0
}

// Retries 自上次 Reset 以来的重试次数
func (b *Backoff) Retries() int {
	return b.retries
}
