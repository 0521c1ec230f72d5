package response

import "time"

// AcceptedResponse 异步受理响应（202）
type AcceptedResponse struct {
	ID      string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status  string `json:"status" example:"pending"`
	PollURL string `json:"poll_url,omitempty" example:"/api/v1/preauth/550e8400-e29b-41d4-a716-446655440000"`
}

// RequestResponse 请求详情响应
type RequestResponse struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	PatientRef         string    `json:"patient_ref"`
	Amount             float64   `json:"amount"`
	ProcedureCodes     []string  `json:"procedure_codes"`
	PreAuthRef         string    `json:"preauth_ref,omitempty"`
	Status             string    `json:"status"`
	ExternalApprovalID string    `json:"external_approval_id,omitempty"`
	Voided             bool      `json:"voided,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ListResponse 分页列表响应
type ListResponse struct {
	Items []*RequestResponse `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// StatusResponse 状态查询响应（cached 标记快照来源）
type StatusResponse struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	ExternalApprovalID string    `json:"external_approval_id,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
	Cached             bool      `json:"cached"`
}
