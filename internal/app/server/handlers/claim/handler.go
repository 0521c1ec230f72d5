package claim

import (
	"tpabridge/internal/app/domains/services/svstatus"
	"tpabridge/internal/app/domains/services/svsubmit"
	"tpabridge/pkg/logger"
)

// ClaimHandler 理赔 HTTP 处理器
type ClaimHandler struct {
	submitService  *svsubmit.SubmitService
	statusService  *svstatus.StatusService
	maxWaitSeconds int
	logger         logger.Logger
}

// NewClaimHandler 创建理赔处理器实例
func NewClaimHandler(submitService *svsubmit.SubmitService, statusService *svstatus.StatusService, maxWaitSeconds int, log logger.Logger) *ClaimHandler {
	return &ClaimHandler{
		submitService:  submitService,
		statusService:  statusService,
		maxWaitSeconds: maxWaitSeconds,
		logger:         log,
	}
}
