package preauth

import (
	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/pkg/ginx"
)

// Void 作废预授权（软取消，绝不物理删除）
// DELETE /api/v1/preauth/:id
func (h *PreAuthHandler) Void(c *gin.Context) {
	id := c.Param("id")

	if err := h.submitService.Void(c.Request.Context(), id); err != nil {
		ginx.FromError(c, err)
		return
	}

	ginx.Success(c, gin.H{"id": id, "voided": true})
}
