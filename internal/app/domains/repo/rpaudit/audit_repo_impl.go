package rpaudit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tpabridge/internal/app/infra/persistence/entity"
	"tpabridge/pkg/idgen"
)

// AuditRepositoryImpl 审计仓储实现（MySQL）
type AuditRepositoryImpl struct {
	db    *gorm.DB
	idgen *idgen.SnowflakeIDGenerator
}

// NewAuditRepository 创建审计仓储实例
func NewAuditRepository(db *gorm.DB, gen *idgen.SnowflakeIDGenerator) AuditRepository {
	return &AuditRepositoryImpl{db: db, idgen: gen}
}

// Append 追加一条审计记录
func (r *AuditRepositoryImpl) Append(ctx context.Context, e *Entry) error {
	if e.ID == 0 {
		e.ID = r.idgen.NextID()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	po := &entity.AuditEntry{
		ID:         e.ID,
		RequestID:  e.RequestID,
		Kind:       e.Kind,
		OldValues:  e.OldValues,
		RecordedAt: e.RecordedAt,
	}
	return r.db.WithContext(ctx).Create(po).Error
}

// ListByRequest 查询某请求的审计流水
func (r *AuditRepositoryImpl) ListByRequest(ctx context.Context, requestID string) ([]*Entry, error) {
	var pos []entity.AuditEntry
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("recorded_at ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(pos))
	for i := range pos {
		entries = append(entries, &Entry{
			ID:         pos[i].ID,
			RequestID:  pos[i].RequestID,
			Kind:       pos[i].Kind,
			OldValues:  pos[i].OldValues,
			RecordedAt: pos[i].RecordedAt,
		})
	}
	return entries, nil
}

// MemoryAuditRepository 内存审计仓储（单测用）
type MemoryAuditRepository struct {
	entries []*Entry
}

// NewMemoryAuditRepository 创建内存审计仓储
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// Append 追加一条审计记录
func (m *MemoryAuditRepository) Append(ctx context.Context, e *Entry) error {
	cp := *e
	if cp.RecordedAt.IsZero() {
		cp.RecordedAt = time.Now()
	}
	m.entries = append(m.entries, &cp)
	return nil
}

// ListByRequest 查询某请求的审计流水
func (m *MemoryAuditRepository) ListByRequest(ctx context.Context, requestID string) ([]*Entry, error) {
	var matched []*Entry
	for _, e := range m.entries {
		if e.RequestID == requestID {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
