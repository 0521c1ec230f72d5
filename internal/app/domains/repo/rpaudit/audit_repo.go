package rpaudit

import (
	"context"
	"time"
)

// Entry 审计条目（领域视图）
type Entry struct {
	ID         int64
	RequestID  string
	Kind       string // 审计事件类型，如 retention_soft_delete
	OldValues  []byte // 变更前的记录快照（JSON）
	RecordedAt time.Time
}

// AuditRepository 审计仓储接口
// 只有追加与查询，没有更新/删除——表的不可变性由接口收窄保证
type AuditRepository interface {
	// Append 追加一条审计记录
	Append(ctx context.Context, entry *Entry) error

	// ListByRequest 查询某请求的审计流水
	ListByRequest(ctx context.Context, requestID string) ([]*Entry, error)
}
