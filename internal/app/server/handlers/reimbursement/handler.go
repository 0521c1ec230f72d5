package reimbursement

import (
	"tpabridge/internal/app/domains/services/svsubmit"
	"tpabridge/pkg/logger"
)

// ReimbursementHandler 报销 HTTP 处理器
type ReimbursementHandler struct {
	submitService  *svsubmit.SubmitService
	maxWaitSeconds int
	logger         logger.Logger
}

// NewReimbursementHandler 创建报销处理器实例
func NewReimbursementHandler(submitService *svsubmit.SubmitService, maxWaitSeconds int, log logger.Logger) *ReimbursementHandler {
	return &ReimbursementHandler{
		submitService:  submitService,
		maxWaitSeconds: maxWaitSeconds,
		logger:         log,
	}
}
