package model

import "time"

// StatusSnapshot 状态快照（缓存值 / 结果频道消息）
type StatusSnapshot struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	ExternalApprovalID string    `json:"external_approval_id,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CacheKey 缓存键（请求类型 + 请求ID）
func (s *StatusSnapshot) CacheKey() string {
	return s.Kind + ":" + s.ID
}

// StatusCacheKey 拼缓存键
func StatusCacheKey(kind, id string) string {
	return kind + ":" + id
}

// ResultChannel 终态结果的 Pub/Sub 频道名（Smart Wait 订阅用）
func ResultChannel(id string) string {
	return "tpa:result:" + id
}
