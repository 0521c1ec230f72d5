package request

import (
	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/services/svsubmit"
)

// ToSubmitInput 提交请求 → 服务入参
func (r *SubmitRequest) ToSubmitInput(kind etrequest.Kind, subject string, waitSeconds int) *svsubmit.SubmitInput {
	return &svsubmit.SubmitInput{
		Kind:           kind,
		Subject:        subject,
		PatientRef:     r.PatientRef,
		Amount:         r.Amount,
		ProcedureCodes: r.ProcedureCodes,
		PreAuthRef:     r.PreAuthRef,
		WaitSeconds:    waitSeconds,
	}
}

// ToReviseInput 修订请求 → 服务入参
func (r *ReviseRequest) ToReviseInput(id string) *svsubmit.ReviseInput {
	return &svsubmit.ReviseInput{
		ID:             id,
		PatientRef:     r.PatientRef,
		Amount:         r.Amount,
		ProcedureCodes: r.ProcedureCodes,
	}
}
