package entity

import "time"

// AuditEntry 审计流水表模型（追加写，永不更新或删除）
// 合规保留期独立于运营数据，清理任务不触碰本表
type AuditEntry struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	RequestID  string    `gorm:"column:request_id;size:36;index"`
	Kind       string    `gorm:"column:kind;size:32"` // 审计事件类型
	OldValues  []byte    `gorm:"column:old_values;type:json"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

// TableName 指定表名
func (AuditEntry) TableName() string {
	return "tpa_audit"
}
