package routers

import (
	"github.com/gin-gonic/gin"

	"tpabridge/internal/app/config"
	"tpabridge/internal/app/server/handlers/claim"
	"tpabridge/internal/app/server/handlers/preauth"
	"tpabridge/internal/app/server/handlers/reimbursement"
	"tpabridge/internal/app/server/middlewares"
	"tpabridge/pkg/logger"
	"tpabridge/pkg/ratelimit"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
// 提交类端点按用户 + 端点维度限流，配额来自配置
func SetupRoutes(
	cfg *config.Config,
	limiter ratelimit.Limiter,
	preauthHandler *preauth.PreAuthHandler,
	claimHandler *claim.ClaimHandler,
	reimbursementHandler *reimbursement.ReimbursementHandler,
	log logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.CORS())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": cfg.App.Name,
			"message": "Service is running",
		})
	})

	rl := cfg.RateLimit

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.Auth(cfg.Auth.Tokens))
	{
		preauths := v1.Group("/preauth")
		{
			preauths.POST("", middlewares.RateLimit(limiter, "preauth", rl.PreauthPerWindow, rl.Window), preauthHandler.Create)
			preauths.GET("", preauthHandler.List)
			preauths.GET("/:id", preauthHandler.Get)
			preauths.PUT("/:id", preauthHandler.Revise)
			preauths.DELETE("/:id", preauthHandler.Void)
		}

		claims := v1.Group("/claims")
		{
			claims.POST("", middlewares.RateLimit(limiter, "claim", rl.ClaimPerWindow, rl.Window), claimHandler.Create)
			claims.GET("/:id/status", middlewares.RateLimit(limiter, "status", rl.StatusPollPerWindow, rl.Window), claimHandler.Status)
		}

		reimbursements := v1.Group("/reimbursement")
		{
			reimbursements.POST("", middlewares.RateLimit(limiter, "reimbursement", rl.ReimbursePerWindow, rl.Window), reimbursementHandler.Create)
			reimbursements.GET("/:id", reimbursementHandler.Get)
		}
	}

	return r
}
