package preauth

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/domains/apimodel/response"
	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/pkg/ginx"
	"tpabridge/internal/app/server/middlewares"
)

// Get 查询预授权详情
// GET /api/v1/preauth/:id
func (h *PreAuthHandler) Get(c *gin.Context) {
	id := c.Param("id")

	req, err := h.submitService.GetRequest(c.Request.Context(), id)
	if err != nil {
		ginx.FromError(c, err)
		return
	}
	if req.Kind != etrequest.KindPreAuth {
		ginx.NotFound(c, "preauth not found: "+id)
		return
	}

	ginx.Success(c, response.FromRequestEntity(req))
}

// List 分页查询当前用户的预授权
// GET /api/v1/preauth?page=1&limit=20
func (h *PreAuthHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	reqs, total, err := h.submitService.ListRequests(c.Request.Context(), middlewares.Subject(c), etrequest.KindPreAuth, page, limit)
	if err != nil {
		ginx.FromError(c, err)
		return
	}

	ginx.Success(c, response.FromRequestEntities(reqs, total, page, limit))
}
