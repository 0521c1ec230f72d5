package svsubmit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/pkg/errorx"
	"tpabridge/pkg/logger"

	"tpabridge/internal/app/domains/repo/rprequest"
)

// JobPublisher 提交任务发布接口（mdsubmit.SubmitModule 满足）
type JobPublisher interface {
	PublishSubmitJob(ctx context.Context, req *etrequest.Request) error
	WaitForResult(ctx context.Context, requestID string, timeout time.Duration) (*model.StatusSnapshot, error)
}

// SubmitInput 提交入参（三类请求共用）
type SubmitInput struct {
	Kind           etrequest.Kind
	Subject        string
	PatientRef     string
	Amount         float64
	ProcedureCodes []string
	PreAuthRef     string // 仅理赔可选
	WaitSeconds    int    // Smart Wait 秒数，0 表示立即返回
}

// SubmitService 提交服务，负责提交业务编排
type SubmitService struct {
	repo      rprequest.RequestRepository
	jobs      JobPublisher
	maxAmount float64
	logger    logger.Logger
}

// NewSubmitService 创建提交服务实例
func NewSubmitService(repo rprequest.RequestRepository, jobs JobPublisher, maxAmount float64, log logger.Logger) *SubmitService {
	return &SubmitService{
		repo:      repo,
		jobs:      jobs,
		maxAmount: maxAmount,
		logger:    log,
	}
}

// Submit 提交请求（完整业务流程）
// 1. 校验金额与编码（同步，校验失败不落库不入队）
// 2. 理赔引用的预授权校验
// 3. 创建请求并落库（pending）
// 4. 发布到提交队列
// 5. Smart Wait（可选，等待终态快照）
func (s *SubmitService) Submit(ctx context.Context, input *SubmitInput) (*etrequest.Request, *model.StatusSnapshot, error) {
	if err := s.validateAmount(input.Amount); err != nil {
		return nil, nil, err
	}

	if input.Kind == etrequest.KindClaim && input.PreAuthRef != "" {
		if err := s.validatePreAuthRef(ctx, input.PreAuthRef); err != nil {
			return nil, nil, err
		}
	}

	req, err := etrequest.NewRequest(uuid.New().String(), input.Kind, input.Subject, input.PatientRef, input.Amount, input.ProcedureCodes)
	if err != nil {
		return nil, nil, toValidationError(err)
	}
	req.PreAuthRef = input.PreAuthRef

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, nil, fmt.Errorf("save request failed: %w", err)
	}

	// 4. 发布到提交队列
	if err := s.jobs.PublishSubmitJob(ctx, req); err != nil {
		// 发布失败只记录日志，请求保持 pending，可由补偿任务重新入队
		s.logger.Warnf(ctx, "[SubmitService] publish submit job failed: id=%s, err=%v", req.ID, err)
		return req, nil, nil
	}

	// 5. Smart Wait（等待终态结果）
	if input.WaitSeconds > 0 {
		timeout := time.Duration(input.WaitSeconds) * time.Second
		snapshot, err := s.jobs.WaitForResult(ctx, req.ID, timeout)
		if err != nil {
			// 超时或订阅失败只记录日志，调用方轮询状态接口即可
			s.logger.Warnf(ctx, "[SubmitService] wait for result failed: id=%s, err=%v", req.ID, err)
			return req, nil, nil
		}
		return req, snapshot, nil
	}

	return req, nil, nil
}

// GetRequest 查询请求
func (s *SubmitService) GetRequest(ctx context.Context, id string) (*etrequest.Request, error) {
	return s.repo.GetByID(ctx, id)
}

// ListRequests 分页查询某用户某类型的请求
func (s *SubmitService) ListRequests(ctx context.Context, subject string, kind etrequest.Kind, page, limit int) ([]*etrequest.Request, int64, error) {
	return s.repo.List(ctx, subject, kind, page, limit)
}

// ReviseInput 修订入参（仅 pending 状态可改）
type ReviseInput struct {
	ID             string
	PatientRef     string
	Amount         float64
	ProcedureCodes []string
}

// Revise 修订 pending 状态的请求
// 请求已离开 pending 时返回状态冲突错误
func (s *SubmitService) Revise(ctx context.Context, input *ReviseInput) (*etrequest.Request, error) {
	if err := s.validateAmount(input.Amount); err != nil {
		return nil, err
	}

	req, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	// 用工厂重新校验字段组合
	revised, err := etrequest.NewRequest(req.ID, req.Kind, req.Subject, input.PatientRef, input.Amount, input.ProcedureCodes)
	if err != nil {
		return nil, toValidationError(err)
	}
	revised.PreAuthRef = req.PreAuthRef
	revised.CreatedAt = req.CreatedAt

	ok, err := s.repo.UpdatePending(ctx, revised)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorx.Conflict("request is no longer pending: " + input.ID)
	}
	return revised, nil
}

// Void 作废请求（终态后不再允许）
func (s *SubmitService) Void(ctx context.Context, id string) error {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		return errorx.Conflict(fmt.Sprintf("request already terminal: %s (status=%s)", id, req.Status))
	}

	ok, err := s.repo.MarkVoided(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errorx.Conflict("request already terminal: " + id)
	}

	s.logger.Infof(ctx, "[SubmitService] request voided: id=%s", id)
	return nil
}

// toValidationError 实体校验错误 → 业务校验错误
func toValidationError(err error) error {
	var e *errorx.Error
	if errors.As(err, &e) {
		return e
	}
	return errorx.Validation(err.Error())
}
