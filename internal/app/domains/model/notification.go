package model

import "time"

// 通知事件类型
const (
	EventApproved   = "approved"
	EventRejected   = "rejected"
	EventDeadLetter = "dead_letter"
)

// TagManualReview 死信通知的人工处理标记
const TagManualReview = "manual review required"

// NotificationEvent 终态通知事件（通知队列信封）
type NotificationEvent struct {
	RequestID  string    `json:"request_id"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"` // 提交用户标识（通知收件人定位用）
	Event      string    `json:"event"`   // approved / rejected / dead_letter
	Tag        string    `json:"tag,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
