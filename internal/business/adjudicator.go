package business

import (
	"context"
	"encoding/json"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/framework"
	"tpabridge/internal/partner"
	"tpabridge/pkg/cache"
	"tpabridge/pkg/errorx"
	"tpabridge/pkg/logger"
)

// 队列消息 TTL（秒）：超过 24 小时仍未消费的 Job 直接过期
const jobTTLSeconds = 86400

// ResultPublisher 终态结果推送接口（Smart Wait 的唤醒通道）
type ResultPublisher interface {
	Publish(ctx context.Context, channel string, message string) error
}

// Config 裁定处理配置
type Config struct {
	SubmitQueue   string        // 提交队列（重试重新入队用）
	NotifyQueue   string        // 通知队列
	MaxAttempts   int           // 尝试上限
	BackoffBase   time.Duration // 指数退避基数
	BackoffJitter time.Duration // 抖动上限
	StatusTTL     time.Duration // 非终态快照缓存 TTL
	ApprovalTTL   time.Duration // 终态批复缓存 TTL
}

// Adjudicator 裁定处理器：消费提交队列，调 TPA 裁定，落终态
// 重试记账由它独占维护：临时故障时带延迟重新发布 attempt+1 的 Job，
// 并 Ack 原消息——队列本身的重投（租约）只兜底基础设施故障
type Adjudicator struct {
	cfg         *Config
	repo        rprequest.RequestRepository
	partnerCli  partner.Client
	publisher   framework.Publisher
	statusCache cache.Cache
	resultPub   ResultPublisher
	logger      logger.Logger
}

// NewAdjudicator 创建裁定处理器
func NewAdjudicator(
	cfg *Config,
	repo rprequest.RequestRepository,
	partnerCli partner.Client,
	publisher framework.Publisher,
	statusCache cache.Cache,
	resultPub ResultPublisher,
	log logger.Logger,
) *Adjudicator {
	return &Adjudicator{
		cfg:         cfg,
		repo:        repo,
		partnerCli:  partnerCli,
		publisher:   publisher,
		statusCache: statusCache,
		resultPub:   resultPub,
		logger:      log,
	}
}

// Proc 返回核心处理函数（注入到 Processor）
func (a *Adjudicator) Proc() framework.Proc {
	return func(ctx context.Context, msg *framework.Message) (resp *framework.JobResp) {
		// 捕获 panic：现场状态不明，不 Ack，等租约到期重投
		defer func() {
			if r := recover(); r != nil {
				a.logger.Errorf(ctx, "[Adjudicator] handler panic: %v", r)
				resp = &framework.JobResp{Action: framework.JobRespStatusRelease}
			}
		}()

		// 1. 解析 Job 信封
		jobData, err := ParseSubmitJob(msg.Data)
		if err != nil {
			// 信封损坏且无业务 ID 可追溯，Ack 丢弃（留日志排查）
			a.logger.Errorf(ctx, "[Adjudicator] parse job failed: %v, raw=%s", err, string(msg.Data))
			return &framework.JobResp{Action: framework.JobRespStatusSuccess}
		}

		// 2. 注入 TraceID
		ctx = context.WithValue(ctx, logger.CtxKeyRequestID, jobData.RequestID)
		ctx = context.WithValue(ctx, logger.CtxKeyActionType, jobData.ActionType)

		a.logger.Infof(ctx, "[Adjudicator] Processing job: id=%s, kind=%s, attempt=%d/%d",
			jobData.ID, jobData.Kind, jobData.Attempt, jobData.MaxAttempts)

		return a.process(ctx, jobData)
	}
}

// process 处理单个提交 Job
func (a *Adjudicator) process(ctx context.Context, jobData *model.SubmitJobData) *framework.JobResp {
	// 1. 加载请求
	req, err := a.repo.GetByID(ctx, jobData.ID)
	if err != nil {
		if errorx.KindOf(err) == errorx.KindNotFound {
			// 请求已被清理，Job 作废
			a.logger.Warnf(ctx, "[Adjudicator] request not found, discarding: id=%s", jobData.ID)
			return &framework.JobResp{Action: framework.JobRespStatusSuccess}
		}
		if errorx.KindOf(err) == errorx.KindIntegrity {
			// 密文被篡改或密钥不匹配：绝不带着可疑数据调用外部接口
			return a.toDeadLetter(ctx, jobData, nil, "integrity check failed: "+err.Error())
		}
		// 存储层故障：不 Ack，等租约到期重投
		a.logger.Errorf(ctx, "[Adjudicator] load request failed: id=%s, err=%v", jobData.ID, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}

	// 2. 作废检查：已被外部作废的请求直接丢弃，不再递交
	if req.Voided {
		a.logger.Infof(ctx, "[Adjudicator] request voided, discarding: id=%s", req.ID)
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}

	// 3. 终态检查：重复投递（Ack 丢失后的租约重投）直接确认
	if req.Status.IsTerminal() {
		a.logger.Infof(ctx, "[Adjudicator] request already terminal, discarding: id=%s, status=%s", req.ID, req.Status)
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}

	// 4. pending → submitted（守卫式更新，重复投递时幂等）
	if req.Status == etrequest.StatusPending {
		if _, err := a.repo.TransitionStatus(ctx, req.ID, etrequest.StatusSubmitted, ""); err != nil {
			a.logger.Errorf(ctx, "[Adjudicator] mark submitted failed: id=%s, err=%v", req.ID, err)
			return &framework.JobResp{Action: framework.JobRespStatusRelease}
		}
	}

	// 5. 调 TPA 裁定
	result, err := a.partnerCli.Adjudicate(ctx, &partner.AdjudicationRequest{
		RequestID:      req.ID,
		Kind:           string(req.Kind),
		PatientRef:     req.PatientRef,
		Amount:         req.Amount,
		ProcedureCodes: req.ProcedureCodes,
		PreAuthRef:     req.PreAuthRef,
	})
	if err != nil {
		return a.handleFailure(ctx, jobData, req, err)
	}

	// 6. TPA 返回 pending：对端尚未裁定，按临时情形走重试表
	if result.Outcome == partner.OutcomePending {
		return a.scheduleRetry(ctx, jobData, req, "partner adjudication still pending")
	}

	// 7. 提交终态
	target := etrequest.StatusApproved
	event := model.EventApproved
	if result.Outcome == partner.OutcomeRejected {
		target = etrequest.StatusRejected
		event = model.EventRejected
	}
	return a.commitTerminal(ctx, req, target, result.ApprovalID, event, "")
}

// handleFailure 按故障类型分流：临时 → 重试，永久 → rejected，完整性 → 死信
func (a *Adjudicator) handleFailure(ctx context.Context, jobData *model.SubmitJobData, req *etrequest.Request, err error) *framework.JobResp {
	switch errorx.KindOf(err) {
	case errorx.KindPartnerTransient:
		return a.scheduleRetry(ctx, jobData, req, err.Error())

	case errorx.KindPartnerPermanent:
		// 明确拒绝不重试，直接落 rejected
		a.logger.Warnf(ctx, "[Adjudicator] partner permanent failure: id=%s, err=%v", req.ID, err)
		return a.commitTerminal(ctx, req, etrequest.StatusRejected, "", model.EventRejected, "")

	case errorx.KindIntegrity:
		return a.toDeadLetter(ctx, jobData, req, err.Error())

	default:
		// 未知错误按基础设施故障处理，等租约重投
		a.logger.Errorf(ctx, "[Adjudicator] unexpected failure: id=%s, err=%v", req.ID, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}
}

// scheduleRetry 调度延迟重试；尝试耗尽则转死信
func (a *Adjudicator) scheduleRetry(ctx context.Context, jobData *model.SubmitJobData, req *etrequest.Request, reason string) *framework.JobResp {
	nextAttempt := jobData.Attempt + 1
	if nextAttempt >= jobData.MaxAttempts {
		return a.toDeadLetter(ctx, jobData, req, "retry exhausted after "+reason)
	}

	delay := NextRetryDelay(jobData.Attempt, a.cfg.BackoffBase, a.cfg.BackoffJitter)

	retryData := *jobData
	retryData.Attempt = nextAttempt
	payload, err := EncodeSubmitJob(&retryData)
	if err != nil {
		a.logger.Errorf(ctx, "[Adjudicator] encode retry job failed: id=%s, err=%v", req.ID, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}

	if err := a.publisher.Publish(a.cfg.SubmitQueue, payload, jobTTLSeconds, uint32(delay.Seconds())); err != nil {
		// 重新入队失败时不 Ack 原消息，租约重投兜底，不丢 Job
		a.logger.Errorf(ctx, "[Adjudicator] republish retry job failed: id=%s, err=%v", req.ID, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}

	a.logger.Warnf(ctx, "[Adjudicator] retry scheduled: id=%s, attempt=%d/%d, delay=%v, reason=%s",
		req.ID, nextAttempt, jobData.MaxAttempts, delay, reason)
	return &framework.JobResp{Action: framework.JobRespStatusSuccess}
}

// toDeadLetter 落死信终态并发人工处理通知
func (a *Adjudicator) toDeadLetter(ctx context.Context, jobData *model.SubmitJobData, req *etrequest.Request, reason string) *framework.JobResp {
	a.logger.Errorf(ctx, "[Adjudicator] job moved to dead letter: id=%s, reason=%s", jobData.ID, reason)

	if req == nil {
		return a.deadLetterUnloadable(ctx, jobData)
	}

	resp := a.commitTerminal(ctx, req, etrequest.StatusDeadLetter, "", model.EventDeadLetter, model.TagManualReview)
	if resp.Action == framework.JobRespStatusSuccess {
		resp.Action = framework.JobRespStatusBury
	}
	return resp
}

// deadLetterUnloadable 行无法加载（密文完整性错误）时的死信落库
// 行可能还停在 pending（没走到递交步骤），先推进到 submitted 再落死信，
// 状态字段是明文，守卫式迁移不受密文损坏影响
func (a *Adjudicator) deadLetterUnloadable(ctx context.Context, jobData *model.SubmitJobData) *framework.JobResp {
	if _, err := a.repo.TransitionStatus(ctx, jobData.ID, etrequest.StatusSubmitted, ""); err != nil {
		a.logger.Errorf(ctx, "[Adjudicator] mark submitted failed: id=%s, err=%v", jobData.ID, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}

	ok, err := a.repo.TransitionStatus(ctx, jobData.ID, etrequest.StatusDeadLetter, "")
	if err != nil {
		a.logger.Errorf(ctx, "[Adjudicator] commit dead letter failed: id=%s, err=%v", jobData.ID, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}
	if !ok {
		// 已是终态或已作废（重复投递），直接确认
		a.logger.Warnf(ctx, "[Adjudicator] dead letter commit rejected by guard: id=%s", jobData.ID)
		return &framework.JobResp{Action: framework.JobRespStatusBury}
	}

	snapshot := &model.StatusSnapshot{
		ID:        jobData.ID,
		Kind:      jobData.Kind,
		Status:    string(etrequest.StatusDeadLetter),
		UpdatedAt: time.Now(),
	}
	snapJSON, _ := json.Marshal(snapshot)

	if err := a.statusCache.Put(ctx, snapshot.CacheKey(), string(snapJSON), a.cfg.ApprovalTTL); err != nil {
		a.logger.Warnf(ctx, "[Adjudicator] cache put failed: id=%s, err=%v", jobData.ID, err)
	}
	if err := a.resultPub.Publish(ctx, model.ResultChannel(jobData.ID), string(snapJSON)); err != nil {
		a.logger.Warnf(ctx, "[Adjudicator] result publish failed: id=%s, err=%v", jobData.ID, err)
	}

	// 行解密失败取不到提交用户，通知里只带请求标识
	a.enqueueNotification(ctx, jobData.ID, jobData.Kind, "", model.EventDeadLetter, model.TagManualReview)

	return &framework.JobResp{Action: framework.JobRespStatusBury}
}

// commitTerminal 守卫式提交终态：落库、刷缓存、推结果频道、发通知
// 落库守卫（前置状态合法且未作废）不满足时丢弃结果——
// 已作废请求的迟到批复绝不能覆盖作废标记
func (a *Adjudicator) commitTerminal(ctx context.Context, req *etrequest.Request, target etrequest.Status, approvalID, event, tag string) *framework.JobResp {
	ok, err := a.repo.TransitionStatus(ctx, req.ID, target, approvalID)
	if err != nil {
		a.logger.Errorf(ctx, "[Adjudicator] commit terminal failed: id=%s, target=%s, err=%v", req.ID, target, err)
		return &framework.JobResp{Action: framework.JobRespStatusRelease}
	}
	if !ok {
		a.logger.Warnf(ctx, "[Adjudicator] terminal commit rejected by guard (voided or already terminal): id=%s, target=%s", req.ID, target)
		return &framework.JobResp{Action: framework.JobRespStatusSuccess}
	}

	a.logger.Infof(ctx, "[Adjudicator] request finalized: id=%s, status=%s, approval_id=%s", req.ID, target, approvalID)

	// 以下均为尽力而为：失败只记日志，不影响已落库的终态
	snapshot := &model.StatusSnapshot{
		ID:                 req.ID,
		Kind:               string(req.Kind),
		Status:             string(target),
		ExternalApprovalID: approvalID,
		UpdatedAt:          time.Now(),
	}
	snapJSON, _ := json.Marshal(snapshot)

	if err := a.statusCache.Put(ctx, snapshot.CacheKey(), string(snapJSON), a.cfg.ApprovalTTL); err != nil {
		a.logger.Warnf(ctx, "[Adjudicator] cache put failed: id=%s, err=%v", req.ID, err)
	}

	if err := a.resultPub.Publish(ctx, model.ResultChannel(req.ID), string(snapJSON)); err != nil {
		a.logger.Warnf(ctx, "[Adjudicator] result publish failed: id=%s, err=%v", req.ID, err)
	}

	a.enqueueNotification(ctx, req.ID, string(req.Kind), req.Subject, event, tag)

	return &framework.JobResp{Action: framework.JobRespStatusSuccess}
}

// enqueueNotification 终态通知入队（通知队列由独立 Worker 消费分发）
func (a *Adjudicator) enqueueNotification(ctx context.Context, id, kind, subject, event, tag string) {
	notification := &model.NotificationEvent{
		RequestID:  id,
		Kind:       kind,
		Subject:    subject,
		Event:      event,
		Tag:        tag,
		OccurredAt: time.Now(),
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		a.logger.Errorf(ctx, "[Adjudicator] marshal notification failed: id=%s, err=%v", id, err)
		return
	}
	if err := a.publisher.Publish(a.cfg.NotifyQueue, payload, jobTTLSeconds, 0); err != nil {
		a.logger.Warnf(ctx, "[Adjudicator] enqueue notification failed: id=%s, err=%v", id, err)
	}
}
