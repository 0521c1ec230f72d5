package claim

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/domains/apimodel/request"
	"tpabridge/internal/app/domains/apimodel/response"
	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/pkg/ginx"
	"tpabridge/internal/app/server/middlewares"
)

// Create 提交理赔接口（可引用已批准的预授权）
// POST /api/v1/claims?wait=10
func (h *ClaimHandler) Create(c *gin.Context) {
	waitSeconds := ginx.WaitSeconds(c, h.maxWaitSeconds)

	var req request.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	input := req.ToSubmitInput(etrequest.KindClaim, middlewares.Subject(c), waitSeconds)
	created, snapshot, err := h.submitService.Submit(c.Request.Context(), input)
	if err != nil {
		ginx.FromError(c, err)
		return
	}

	if snapshot != nil {
		ginx.Success(c, response.FromStatusSnapshot(snapshot, false))
		return
	}

	ginx.Accepted(c, &response.AcceptedResponse{
		ID:      created.ID,
		Status:  string(etrequest.StatusPending),
		PollURL: fmt.Sprintf("/api/v1/claims/%s/status", created.ID),
	})
}
