package response

import (
	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
)

// FromRequestEntity 请求实体 → 响应
func FromRequestEntity(req *etrequest.Request) *RequestResponse {
	return &RequestResponse{
		ID:                 req.ID,
		Kind:               string(req.Kind),
		PatientRef:         req.PatientRef,
		Amount:             req.Amount,
		ProcedureCodes:     req.ProcedureCodes,
		PreAuthRef:         req.PreAuthRef,
		Status:             string(req.Status),
		ExternalApprovalID: req.ExternalApprovalID,
		Voided:             req.Voided,
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
	}
}

// FromRequestEntities 请求实体列表 → 分页响应
func FromRequestEntities(reqs []*etrequest.Request, total int64, page, limit int) *ListResponse {
	items := make([]*RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, FromRequestEntity(req))
	}
	return &ListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	}
}

// FromStatusSnapshot 状态快照 → 状态响应
func FromStatusSnapshot(snapshot *model.StatusSnapshot, cached bool) *StatusResponse {
	return &StatusResponse{
		ID:                 snapshot.ID,
		Kind:               snapshot.Kind,
		Status:             snapshot.Status,
		ExternalApprovalID: snapshot.ExternalApprovalID,
		UpdatedAt:          snapshot.UpdatedAt,
		Cached:             cached,
	}
}
