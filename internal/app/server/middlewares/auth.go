package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/pkg/ginx"
)

// CtxSubject gin 上下文中的用户标识键
const CtxSubject = "subject"

// Auth 令牌认证中间件
// Authorization: Bearer <token> 或 X-Token 头，token → 用户标识映射来自配置
func Auth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Token")
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if token == "" {
			ginx.Unauthorized(c, "missing auth token")
			c.Abort()
			return
		}

		subject, ok := tokens[token]
		if !ok {
			ginx.Unauthorized(c, "invalid auth token")
			c.Abort()
			return
		}

		c.Set(CtxSubject, subject)
		c.Next()
	}
}

// Subject 从 gin 上下文取当前用户标识
func Subject(c *gin.Context) string {
	return c.GetString(CtxSubject)
}
