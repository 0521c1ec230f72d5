package preauth

import (
	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/domains/apimodel/request"
	"tpabridge/internal/app/domains/apimodel/response"
	"tpabridge/internal/app/pkg/ginx"
)

// Revise 修订 pending 状态的预授权
// PUT /api/v1/preauth/:id
func (h *PreAuthHandler) Revise(c *gin.Context) {
	id := c.Param("id")

	var req request.ReviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	revised, err := h.submitService.Revise(c.Request.Context(), req.ToReviseInput(id))
	if err != nil {
		ginx.FromError(c, err)
		return
	}

	ginx.Success(c, response.FromRequestEntity(revised))
}
