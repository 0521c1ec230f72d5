package retention

import (
	"context"
	"encoding/json"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/repo/rpaudit"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/pkg/logger"
)

// AuditKindRetentionDelete 保留期清理的审计事件类型
const AuditKindRetentionDelete = "retention_soft_delete"

// Config 保留期清理配置
type Config struct {
	OperationalDays int // 运营数据保留天数
	BatchSize       int // 单批处理条数
}

// Sweeper 保留期清理任务
// 超过运营保留期的请求软删除出运营视图，同时在审计表留痕
// 审计表只追加不删除（审计保留远长于运营保留）
type Sweeper struct {
	cfg       *Config
	repo      rprequest.RequestRepository
	auditRepo rpaudit.AuditRepository
	logger    logger.Logger
}

// NewSweeper 创建清理任务
func NewSweeper(cfg *Config, repo rprequest.RequestRepository, auditRepo rpaudit.AuditRepository, log logger.Logger) *Sweeper {
	return &Sweeper{
		cfg:       cfg,
		repo:      repo,
		auditRepo: auditRepo,
		logger:    log,
	}
}

// auditSnapshot 留痕用的记录快照（不含敏感明文字段）
type auditSnapshot struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Subject            string    `json:"subject"`
	Status             string    `json:"status"`
	ExternalApprovalID string    `json:"external_approval_id,omitempty"`
	Voided             bool      `json:"voided"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Sweep 执行一轮清理，返回本轮清理条数
// 先留痕后删除；重复执行幂等（已软删除的记录不再出现在过期查询中）
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -s.cfg.OperationalDays)
	s.logger.Infof(ctx, "[Sweeper] Sweep started: cutoff=%s, batch_size=%d",
		cutoff.Format(time.RFC3339), s.cfg.BatchSize)

	purged := 0
	for {
		expired, err := s.repo.ListRetentionExpired(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return purged, err
		}
		if len(expired) == 0 {
			break
		}

		batchPurged := 0
		for _, req := range expired {
			if err := s.purgeOne(ctx, req); err != nil {
				// 单条失败不中断整批，下轮 Sweep 会重新扫到
				s.logger.Errorf(ctx, "[Sweeper] purge failed: id=%s, err=%v", req.ID, err)
				continue
			}
			batchPurged++
		}
		purged += batchPurged

		// 整批零进展（如审计存储持续故障）：过期查询会返回同一批记录，
		// 必须中止本轮，留给下轮 Sweep 重试
		if batchPurged == 0 {
			s.logger.Errorf(ctx, "[Sweeper] batch made no progress, aborting sweep: batch=%d", len(expired))
			break
		}

		// 批次不满说明已扫到尾部
		if len(expired) < s.cfg.BatchSize {
			break
		}
	}

	s.logger.Infof(ctx, "[Sweeper] Sweep complete: purged=%d", purged)
	return purged, nil
}

// purgeOne 清理单条记录：先写审计留痕，再软删除
func (s *Sweeper) purgeOne(ctx context.Context, req *etrequest.Request) error {
	snapshot := &auditSnapshot{
		ID:                 req.ID,
		Kind:               string(req.Kind),
		Subject:            req.Subject,
		Status:             string(req.Status),
		ExternalApprovalID: req.ExternalApprovalID,
		Voided:             req.Voided,
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
	}
	oldValues, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	if err := s.auditRepo.Append(ctx, &rpaudit.Entry{
		RequestID:  req.ID,
		Kind:       AuditKindRetentionDelete,
		OldValues:  oldValues,
		RecordedAt: time.Now(),
	}); err != nil {
		return err
	}

	if _, err := s.repo.SoftDelete(ctx, req.ID); err != nil {
		return err
	}

	s.logger.Debugf(ctx, "[Sweeper] request purged: id=%s, status=%s", req.ID, req.Status)
	return nil
}
