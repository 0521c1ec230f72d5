package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/pkg/ginx"
	"tpabridge/pkg/ratelimit"
)

// RateLimit 滑动窗口限流中间件（按用户 + 端点维度计数）
// 配额耗尽返回 429，Retry-After 为窗口剩余时间
func RateLimit(limiter ratelimit.Limiter, endpoint string, quota int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subjectKey := Subject(c) + ":" + endpoint

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), subjectKey, quota, window)
		if err != nil {
			// 限流器故障时放行（fail-open），不让 Redis 故障拖垮提交链路
			c.Next()
			return
		}
		if !allowed {
			ginx.TooManyRequests(c, int(retryAfter.Seconds())+1)
			c.Abort()
			return
		}

		c.Next()
	}
}
