package preauth

import (
	"tpabridge/internal/app/domains/services/svstatus"
	"tpabridge/internal/app/domains/services/svsubmit"
	"tpabridge/pkg/logger"
)

// PreAuthHandler 预授权 HTTP 处理器
type PreAuthHandler struct {
	submitService  *svsubmit.SubmitService
	statusService  *svstatus.StatusService
	maxWaitSeconds int
	logger         logger.Logger
}

// NewPreAuthHandler 创建预授权处理器实例
func NewPreAuthHandler(submitService *svsubmit.SubmitService, statusService *svstatus.StatusService, maxWaitSeconds int, log logger.Logger) *PreAuthHandler {
	return &PreAuthHandler{
		submitService:  submitService,
		statusService:  statusService,
		maxWaitSeconds: maxWaitSeconds,
		logger:         log,
	}
}
