package svstatus

import (
	"context"
	"encoding/json"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/partner"
	"tpabridge/pkg/cache"
	"tpabridge/pkg/errorx"
	"tpabridge/pkg/logger"
)

// Config 状态服务配置
type Config struct {
	StatusTTL   time.Duration // 非终态快照 TTL
	ApprovalTTL time.Duration // 终态批复 TTL
}

// StatusService 状态查询服务
// 快路径读缓存，miss 时回源 DB；submitted 状态顺带查一次 TPA 侧进度
type StatusService struct {
	cfg        *Config
	repo       rprequest.RequestRepository
	cache      cache.Cache
	partnerCli partner.Client
	logger     logger.Logger
}

// NewStatusService 创建状态服务实例
func NewStatusService(cfg *Config, repo rprequest.RequestRepository, c cache.Cache, partnerCli partner.Client, log logger.Logger) *StatusService {
	return &StatusService{
		cfg:        cfg,
		repo:       repo,
		cache:      c,
		partnerCli: partnerCli,
		logger:     log,
	}
}

// GetStatus 查询请求状态
// 返回的 cached 标记快照是否来自缓存（响应里透出，便于联调排查）
func (s *StatusService) GetStatus(ctx context.Context, kind etrequest.Kind, id string) (*model.StatusSnapshot, bool, error) {
	key := model.StatusCacheKey(string(kind), id)

	// 1. 缓存快路径（过期读取视为 miss，绝不返回陈旧值）
	if value, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var snapshot model.StatusSnapshot
		if err := json.Unmarshal([]byte(value), &snapshot); err == nil {
			return &snapshot, true, nil
		}
		s.logger.Warnf(ctx, "[StatusService] corrupt cache value, falling through: key=%s", key)
	} else if err != nil {
		// 缓存故障降级走 DB，不影响可用性
		s.logger.Warnf(ctx, "[StatusService] cache get failed: key=%s, err=%v", key, err)
	}

	// 2. 回源 DB
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if req.Kind != kind {
		return nil, false, errorx.NotFound("request not found: " + id)
	}

	// 3. submitted 状态顺带查一次 TPA 侧进度（慢路径，失败忽略）
	if req.Status == etrequest.StatusSubmitted {
		req = s.refreshFromPartner(ctx, req)
	}

	snapshot := &model.StatusSnapshot{
		ID:                 req.ID,
		Kind:               string(req.Kind),
		Status:             string(req.Status),
		ExternalApprovalID: req.ExternalApprovalID,
		UpdatedAt:          req.UpdatedAt,
	}

	// 4. 回填缓存
	ttl := s.cfg.StatusTTL
	if req.Status.IsTerminal() {
		ttl = s.cfg.ApprovalTTL
	}
	if data, err := json.Marshal(snapshot); err == nil {
		if err := s.cache.Put(ctx, key, string(data), ttl); err != nil {
			s.logger.Warnf(ctx, "[StatusService] cache put failed: key=%s, err=%v", key, err)
		}
	}

	return snapshot, false, nil
}

// refreshFromPartner 查询 TPA 侧裁定进度，拿到终态时守卫式落库
// 与 worker 的终态提交走同一守卫条件，并发提交安全幂等
func (s *StatusService) refreshFromPartner(ctx context.Context, req *etrequest.Request) *etrequest.Request {
	result, err := s.partnerCli.QueryStatus(ctx, string(req.Kind), req.ID)
	if err != nil {
		s.logger.Debugf(ctx, "[StatusService] partner query failed (ignored): id=%s, err=%v", req.ID, err)
		return req
	}

	var target etrequest.Status
	switch result.Outcome {
	case partner.OutcomeApproved:
		target = etrequest.StatusApproved
	case partner.OutcomeRejected:
		target = etrequest.StatusRejected
	default:
		return req
	}

	ok, err := s.repo.TransitionStatus(ctx, req.ID, target, result.ApprovalID)
	if err != nil {
		s.logger.Warnf(ctx, "[StatusService] commit partner outcome failed: id=%s, err=%v", req.ID, err)
		return req
	}
	if !ok {
		// 守卫拒绝：已作废或 worker 先一步提交，以 DB 当前值为准
		if fresh, err := s.repo.GetByID(ctx, req.ID); err == nil {
			return fresh
		}
		return req
	}

	req.Status = target
	req.ExternalApprovalID = result.ApprovalID
	req.UpdatedAt = time.Now()
	return req
}
