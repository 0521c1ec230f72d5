package reimbursement

import (
	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/domains/apimodel/response"
	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/pkg/ginx"
)

// Get 查询报销详情
// GET /api/v1/reimbursement/:id
func (h *ReimbursementHandler) Get(c *gin.Context) {
	id := c.Param("id")

	req, err := h.submitService.GetRequest(c.Request.Context(), id)
	if err != nil {
		ginx.FromError(c, err)
		return
	}
	if req.Kind != etrequest.KindReimbursement {
		ginx.NotFound(c, "reimbursement not found: "+id)
		return
	}

	ginx.Success(c, response.FromRequestEntity(req))
}
