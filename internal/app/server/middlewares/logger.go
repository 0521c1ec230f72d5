package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tpabridge/pkg/logger"
)

// Logger 请求日志中间件：生成 TraceID 并记录请求耗时
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-Id", requestID)

		// TraceID 注入到请求 Context，链路日志统一携带
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		log.Infof(ctx, "[HTTP] %s %s status=%d duration=%v subject=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(startTime), Subject(c))
	}
}
