package business

import (
	"math/rand"
	"time"
)

// NextRetryDelay 计算第 attempt 次失败后的重试延迟
// 指数退避 + 随机抖动：base * 2^attempt + rand(0, jitter)
// 抖动避免同一批失败的 Job 在同一时刻集中重投
func NextRetryDelay(attempt int, base, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := base << uint(attempt)
	if jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	return delay
}
