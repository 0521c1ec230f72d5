package claim

import (
	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/domains/apimodel/response"
	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/pkg/ginx"
)

// Status 查询理赔状态（缓存快路径）
// GET /api/v1/claims/:id/status
func (h *ClaimHandler) Status(c *gin.Context) {
	id := c.Param("id")

	snapshot, cached, err := h.statusService.GetStatus(c.Request.Context(), etrequest.KindClaim, id)
	if err != nil {
		ginx.FromError(c, err)
		return
	}

	ginx.Success(c, response.FromStatusSnapshot(snapshot, cached))
}
