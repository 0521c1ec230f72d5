package svsubmit

import (
	"context"
	"fmt"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/pkg/errorx"
)

// validateAmount 金额校验：正数且不超过配置的上限
func (s *SubmitService) validateAmount(amount float64) error {
	if amount <= 0 {
		return errorx.Validation("amount must be positive")
	}
	if amount > s.maxAmount {
		return errorx.Validation(fmt.Sprintf("amount exceeds ceiling: %.2f > %.2f", amount, s.maxAmount))
	}
	return nil
}

// validatePreAuthRef 理赔引用的预授权校验（只读查询，无副作用）
// 引用的预授权必须存在、类型正确、已批准且未作废
func (s *SubmitService) validatePreAuthRef(ctx context.Context, preAuthRef string) error {
	ref, err := s.repo.GetByID(ctx, preAuthRef)
	if err != nil {
		if errorx.KindOf(err) == errorx.KindNotFound {
			return errorx.InvalidReference("referenced preauth not found: " + preAuthRef)
		}
		return err
	}
	if ref.Kind != etrequest.KindPreAuth {
		return errorx.InvalidReference("referenced request is not a preauth: " + preAuthRef)
	}
	if ref.Voided {
		return errorx.InvalidReference("referenced preauth is voided: " + preAuthRef)
	}
	if ref.Status != etrequest.StatusApproved {
		return errorx.InvalidReference(fmt.Sprintf("referenced preauth is not approved: %s (status=%s)", preAuthRef, ref.Status))
	}
	return nil
}
