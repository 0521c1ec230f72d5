package rprequest

import (
	"context"
	"sort"
	"sync"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/pkg/crypto"
	"tpabridge/pkg/errorx"
)

// MemoryRepository 内存仓储实现（单测与 fasttest 工具用，语义与 MySQL 实现一致）
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*etrequest.Request
}

// NewMemoryRepository 创建内存仓储
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*etrequest.Request)}
}

func (m *MemoryRepository) clone(r *etrequest.Request) *etrequest.Request {
	cp := *r
	cp.ProcedureCodes = append([]string(nil), r.ProcedureCodes...)
	return &cp
}

// Create 创建请求
func (m *MemoryRepository) Create(ctx context.Context, req *etrequest.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[req.ID] = m.clone(req)
	return nil
}

// GetByID 根据ID查询
func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*etrequest.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	if !ok || row.Deleted {
		return nil, errorx.NotFound("request not found")
	}
	return m.clone(row), nil
}

// List 分页查询
func (m *MemoryRepository) List(ctx context.Context, subject string, kind etrequest.Kind, page, limit int) ([]*etrequest.Request, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*etrequest.Request
	for _, row := range m.rows {
		if row.Deleted || row.Kind != kind {
			continue
		}
		if subject != "" && row.Subject != subject {
			continue
		}
		matched = append(matched, m.clone(row))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// UpdatePending 修改 pending 状态的请求
func (m *MemoryRepository) UpdatePending(ctx context.Context, req *etrequest.Request) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[req.ID]
	if !ok || row.Deleted || row.Status != etrequest.StatusPending {
		return false, nil
	}
	row.PatientRef = req.PatientRef
	row.Amount = req.Amount
	row.ProcedureCodes = append([]string(nil), req.ProcedureCodes...)
	row.UpdatedAt = time.Now()
	return true, nil
}

// TransitionStatus 守卫式状态迁移
func (m *MemoryRepository) TransitionStatus(ctx context.Context, id string, target etrequest.Status, externalApprovalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Deleted || row.Voided {
		return false, nil
	}
	if !row.Status.CanTransitionTo(target) {
		return false, nil
	}
	row.Status = target
	if externalApprovalID != "" {
		row.ExternalApprovalID = externalApprovalID
	}
	row.UpdatedAt = time.Now()
	return true, nil
}

// MarkVoided 外部作废
func (m *MemoryRepository) MarkVoided(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Deleted || row.Status.IsTerminal() {
		return false, nil
	}
	row.MarkVoided()
	return true, nil
}

// ListRetentionExpired 查询超过运营保留期的请求
func (m *MemoryRepository) ListRetentionExpired(ctx context.Context, cutoff time.Time, limit int) ([]*etrequest.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var expired []*etrequest.Request
	for _, row := range m.rows {
		if row.Deleted || !row.UpdatedAt.Before(cutoff) {
			continue
		}
		expired = append(expired, m.clone(row))
		if len(expired) >= limit {
			break
		}
	}
	return expired, nil
}

// SoftDelete 软删除
func (m *MemoryRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Deleted {
		return false, nil
	}
	row.Deleted = true
	row.UpdatedAt = time.Now()
	return true, nil
}

// ReEncryptAll 内存实现无密文，轮换为空操作
func (m *MemoryRepository) ReEncryptAll(ctx context.Context, rc *crypto.RotatingCodec, batchSize int) (int, error) {
	return 0, nil
}
