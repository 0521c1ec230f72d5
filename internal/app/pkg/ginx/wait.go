package ginx

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// WaitSeconds 解析 ?wait=N 并夹取到 [0, max]
// Smart Wait 会占用一个处理协程和一条订阅连接，等待时长必须有上限
func WaitSeconds(c *gin.Context, max int) int {
	waitStr := c.Query("wait")
	if waitStr == "" {
		return 0
	}
	w, err := strconv.Atoi(waitStr)
	if err != nil || w <= 0 {
		return 0
	}
	if w > max {
		return max
	}
	return w
}
