package middlewares

import (
	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/pkg/ginx"
	"tpabridge/pkg/logger"
)

// ErrorHandler 统一错误处理中间件：捕获 panic 与挂到 gin 上的业务错误
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(c.Request.Context(), "[HTTP] panic recovered: %v", r)
				ginx.InternalError(c, "internal server error")
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			ginx.FromError(c, c.Errors.Last().Err)
		}
	}
}
