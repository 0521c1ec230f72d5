package request

// SubmitRequest 提交请求（预授权 / 理赔 / 报销共用）
type SubmitRequest struct {
	PatientRef     string   `json:"patient_ref" binding:"required" example:"PAT-88231"`
	Amount         float64  `json:"amount" binding:"required,gt=0" example:"2500.00"`
	ProcedureCodes []string `json:"procedure_codes" binding:"required,min=1,max=10,dive,alphanum" example:"CPT99213"`
	PreAuthRef     string   `json:"preauth_ref" example:"550e8400-e29b-41d4-a716-446655440000"` // 仅理赔可选
}

// ReviseRequest 修订请求（仅 pending 状态可改）
type ReviseRequest struct {
	PatientRef     string   `json:"patient_ref" binding:"required"`
	Amount         float64  `json:"amount" binding:"required,gt=0"`
	ProcedureCodes []string `json:"procedure_codes" binding:"required,min=1,max=10,dive,alphanum"`
}
