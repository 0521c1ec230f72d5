package business

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
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

const (
	testSubmitQueue = "tpa_submit_test"
	testNotifyQueue = "tpa_notify_test"
)

// scriptedPartner 按脚本返回结果的 TPA 桩
type scriptedPartner struct {
	calls   int
	results []func() (*partner.AdjudicationResult, error)
}

func (p *scriptedPartner) Adjudicate(ctx context.Context, req *partner.AdjudicationRequest) (*partner.AdjudicationResult, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	return p.results[idx]()
}

func (p *scriptedPartner) QueryStatus(ctx context.Context, kind, requestID string) (*partner.AdjudicationResult, error) {
	return &partner.AdjudicationResult{Outcome: partner.OutcomePending}, nil
}

func approve(approvalID string) func() (*partner.AdjudicationResult, error) {
	return func() (*partner.AdjudicationResult, error) {
		return &partner.AdjudicationResult{Outcome: partner.OutcomeApproved, ApprovalID: approvalID}, nil
	}
}

func transient() func() (*partner.AdjudicationResult, error) {
	return func() (*partner.AdjudicationResult, error) {
		return nil, errorx.PartnerTransient("simulated timeout")
	}
}

func permanent() func() (*partner.AdjudicationResult, error) {
	return func() (*partner.AdjudicationResult, error) {
		return nil, errorx.PartnerPermanent("simulated rejection")
	}
}

// capturingPublisher 记录发布的队列消息和延迟
type capturingPublisher struct {
	published []publishedMsg
}

type publishedMsg struct {
	queue string
	data  []byte
	delay uint32
}

func (p *capturingPublisher) Publish(queue string, data []byte, ttl uint32, delay uint32) error {
	p.published = append(p.published, publishedMsg{queue: queue, data: data, delay: delay})
	return nil
}

func (p *capturingPublisher) byQueue(queue string) []publishedMsg {
	var out []publishedMsg
	for _, m := range p.published {
		if m.queue == queue {
			out = append(out, m)
		}
	}
	return out
}

// capturingResultPub 记录结果频道推送
type capturingResultPub struct {
	messages map[string][]string
}

func (p *capturingResultPub) Publish(ctx context.Context, channel string, message string) error {
	if p.messages == nil {
		p.messages = make(map[string][]string)
	}
	p.messages[channel] = append(p.messages[channel], message)
	return nil
}

type testHarness struct {
	repo      *rprequest.MemoryRepository
	publisher *capturingPublisher
	cache     *cache.MemoryCache
	resultPub *capturingResultPub
	proc      framework.Proc
}

func newHarness(t *testing.T, partnerCli partner.Client, maxAttempts int) *testHarness {
	t.Helper()
	h := &testHarness{
		repo:      rprequest.NewMemoryRepository(),
		publisher: &capturingPublisher{},
		cache:     cache.NewMemoryCache(),
		resultPub: &capturingResultPub{},
	}
	adjudicator := NewAdjudicator(
		&Config{
			SubmitQueue:   testSubmitQueue,
			NotifyQueue:   testNotifyQueue,
			MaxAttempts:   maxAttempts,
			BackoffBase:   time.Second,
			BackoffJitter: 0, // 测试里不加抖动，延迟可精确断言
			StatusTTL:     time.Hour,
			ApprovalTTL:   24 * time.Hour,
		},
		h.repo, partnerCli, h.publisher, h.cache, h.resultPub, logger.Nop{},
	)
	h.proc = adjudicator.Proc()
	return h
}

func (h *testHarness) seedRequest(t *testing.T, id string) *etrequest.Request {
	t.Helper()
	req, err := etrequest.NewRequest(id, etrequest.KindPreAuth, "alice", "PAT-1", 2500.00, []string{"CPT99213"})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := h.repo.Create(context.Background(), req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return req
}

func submitJobMsg(t *testing.T, id string, attempt, maxAttempts int) *framework.Message {
	t.Helper()
	data, err := EncodeSubmitJob(&model.SubmitJobData{
		RequestID:   "trace-1",
		ActionType:  model.ActionTypeSubmit,
		ID:          id,
		Kind:        string(etrequest.KindPreAuth),
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	})
	if err != nil {
		t.Fatalf("EncodeSubmitJob failed: %v", err)
	}
	return &framework.Message{ID: fmt.Sprintf("job-%s-%d", id, attempt), Queue: testSubmitQueue, Data: data}
}

func decodeNotification(t *testing.T, data []byte) *model.NotificationEvent {
	t.Helper()
	var event model.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal notification failed: %v", err)
	}
	return &event
}

func TestAdjudicatorApproval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){approve("APR-123")}}, 3)
	req := h.seedRequest(t, "req-approve")

	resp := h.proc(ctx, submitJobMsg(t, req.ID, 0, 3))
	if resp.Action != framework.JobRespStatusSuccess {
		t.Fatalf("action = %d, want success", resp.Action)
	}

	// 终态落库且带批复单号
	final, _ := h.repo.GetByID(ctx, req.ID)
	if final.Status != etrequest.StatusApproved {
		t.Errorf("status = %s, want approved", final.Status)
	}
	if final.ExternalApprovalID != "APR-123" {
		t.Errorf("approval id = %q, want APR-123", final.ExternalApprovalID)
	}

	// 状态快照已写缓存
	key := model.StatusCacheKey(string(req.Kind), req.ID)
	if value, ok, _ := h.cache.Get(ctx, key); !ok {
		t.Error("terminal snapshot should be cached")
	} else {
		var snapshot model.StatusSnapshot
		json.Unmarshal([]byte(value), &snapshot)
		if snapshot.Status != string(etrequest.StatusApproved) {
			t.Errorf("cached status = %s, want approved", snapshot.Status)
		}
	}

	// 结果频道已推送（Smart Wait 唤醒）
	if len(h.resultPub.messages[model.ResultChannel(req.ID)]) != 1 {
		t.Error("terminal snapshot should be published to result channel")
	}

	// 一条 approved 通知
	notifications := h.publisher.byQueue(testNotifyQueue)
	if len(notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications))
	}
	event := decodeNotification(t, notifications[0].data)
	if event.Event != model.EventApproved || event.Subject != "alice" {
		t.Errorf("notification = %+v, want approved for alice", event)
	}
}

func TestAdjudicatorRetryThenDeadLetter(t *testing.T) {
	// 持续临时故障：精确重试 maxAttempts 次且延迟递增，然后进死信
	ctx := context.Background()
	maxAttempts := 3
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){transient()}}, maxAttempts)
	req := h.seedRequest(t, "req-exhaust")

	msg := submitJobMsg(t, req.ID, 0, maxAttempts)
	var delays []uint32

	for round := 0; ; round++ {
		if round > maxAttempts {
			t.Fatal("retry loop did not terminate")
		}

		resp := h.proc(ctx, msg)

		retries := h.publisher.byQueue(testSubmitQueue)
		if len(retries) > len(delays) {
			// 本轮调度了一次延迟重试
			if resp.Action != framework.JobRespStatusSuccess {
				t.Fatalf("round %d: action = %d, want success (ack after reschedule)", round, resp.Action)
			}
			last := retries[len(retries)-1]
			delays = append(delays, last.delay)
			msg = &framework.Message{ID: fmt.Sprintf("retry-%d", round), Queue: testSubmitQueue, Data: last.data}
			continue
		}

		// 没有新重试：应当已进入死信
		if resp.Action != framework.JobRespStatusBury {
			t.Fatalf("final round action = %d, want bury", resp.Action)
		}
		break
	}

	// 重试了 maxAttempts-1 次（首次尝试 + 2 次重试 = 3 次尝试）
	if len(delays) != maxAttempts-1 {
		t.Errorf("retries = %d, want %d", len(delays), maxAttempts-1)
	}

	// 延迟严格递增（指数退避）
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Errorf("delay[%d]=%d not greater than delay[%d]=%d", i, delays[i], i-1, delays[i-1])
		}
	}

	// 死信终态
	final, _ := h.repo.GetByID(ctx, req.ID)
	if final.Status != etrequest.StatusDeadLetter {
		t.Errorf("status = %s, want dead_letter", final.Status)
	}

	// 恰好一条带人工处理标记的死信通知
	notifications := h.publisher.byQueue(testNotifyQueue)
	if len(notifications) != 1 {
		t.Fatalf("notifications = %d, want exactly 1", len(notifications))
	}
	event := decodeNotification(t, notifications[0].data)
	if event.Event != model.EventDeadLetter || event.Tag != model.TagManualReview {
		t.Errorf("notification = %+v, want dead_letter with manual review tag", event)
	}
}

func TestAdjudicatorPermanentFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){permanent()}}, 3)
	req := h.seedRequest(t, "req-permanent")

	resp := h.proc(ctx, submitJobMsg(t, req.ID, 0, 3))
	if resp.Action != framework.JobRespStatusSuccess {
		t.Fatalf("action = %d, want success", resp.Action)
	}

	// 明确拒绝直接落 rejected，不重试
	final, _ := h.repo.GetByID(ctx, req.ID)
	if final.Status != etrequest.StatusRejected {
		t.Errorf("status = %s, want rejected", final.Status)
	}
	if len(h.publisher.byQueue(testSubmitQueue)) != 0 {
		t.Error("permanent failure must not schedule retries")
	}

	notifications := h.publisher.byQueue(testNotifyQueue)
	if len(notifications) != 1 || decodeNotification(t, notifications[0].data).Event != model.EventRejected {
		t.Errorf("want exactly one rejected notification, got %d", len(notifications))
	}
}

func TestAdjudicatorVoidedDropped(t *testing.T) {
	// 已作废的请求直接丢弃，绝不调用 TPA
	ctx := context.Background()
	stub := &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){approve("APR-X")}}
	h := newHarness(t, stub, 3)
	req := h.seedRequest(t, "req-voided")
	h.repo.MarkVoided(ctx, req.ID)

	resp := h.proc(ctx, submitJobMsg(t, req.ID, 0, 3))
	if resp.Action != framework.JobRespStatusSuccess {
		t.Fatalf("action = %d, want success (ack and drop)", resp.Action)
	}
	if stub.calls != 0 {
		t.Errorf("partner calls = %d, want 0", stub.calls)
	}

	final, _ := h.repo.GetByID(ctx, req.ID)
	if final.Status.IsTerminal() {
		t.Errorf("voided request must not be finalized, status = %s", final.Status)
	}
}

func TestAdjudicatorDuplicateDelivery(t *testing.T) {
	// 重复投递（Ack 丢失后的租约重投）幂等：终态不被改写，不重复通知
	ctx := context.Background()
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){approve("APR-1")}}, 3)
	req := h.seedRequest(t, "req-dup")

	msg := submitJobMsg(t, req.ID, 0, 3)
	h.proc(ctx, msg)

	resp := h.proc(ctx, msg)
	if resp.Action != framework.JobRespStatusSuccess {
		t.Fatalf("duplicate delivery action = %d, want success", resp.Action)
	}

	final, _ := h.repo.GetByID(ctx, req.ID)
	if final.Status != etrequest.StatusApproved || final.ExternalApprovalID != "APR-1" {
		t.Errorf("terminal state changed by duplicate delivery: %+v", final)
	}
	if n := len(h.publisher.byQueue(testNotifyQueue)); n != 1 {
		t.Errorf("notifications after duplicate = %d, want 1", n)
	}
}

func TestAdjudicatorPartnerPendingSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	pending := func() (*partner.AdjudicationResult, error) {
		return &partner.AdjudicationResult{Outcome: partner.OutcomePending}, nil
	}
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){pending}}, 3)
	req := h.seedRequest(t, "req-pending")

	resp := h.proc(ctx, submitJobMsg(t, req.ID, 0, 3))
	if resp.Action != framework.JobRespStatusSuccess {
		t.Fatalf("action = %d, want success", resp.Action)
	}

	retries := h.publisher.byQueue(testSubmitQueue)
	if len(retries) != 1 {
		t.Fatalf("retries = %d, want 1", len(retries))
	}
	jobData, err := ParseSubmitJob(retries[0].data)
	if err != nil {
		t.Fatalf("parse retry job failed: %v", err)
	}
	if jobData.Attempt != 1 {
		t.Errorf("retry attempt = %d, want 1", jobData.Attempt)
	}
}

func TestAdjudicatorCorruptEnvelope(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){approve("X")}}, 3)

	resp := h.proc(ctx, &framework.Message{ID: "bad", Queue: testSubmitQueue, Data: []byte("{not json")})
	if resp.Action != framework.JobRespStatusSuccess {
		t.Errorf("corrupt envelope action = %d, want success (ack and log)", resp.Action)
	}
}

// tamperedRepo 模拟密文被篡改：GetByID 永远返回完整性错误，其余操作透传
type tamperedRepo struct {
	*rprequest.MemoryRepository
}

func (r *tamperedRepo) GetByID(ctx context.Context, id string) (*etrequest.Request, error) {
	return nil, errorx.Integrity("field decryption failed", "gcm authentication failed")
}

func TestAdjudicatorIntegrityFailure(t *testing.T) {
	// 行加载失败（密文完整性错误）也必须落死信终态并发人工处理通知，
	// 不能只确认消息把行留在非终态
	ctx := context.Background()
	backing := rprequest.NewMemoryRepository()
	publisher := &capturingPublisher{}
	statusCache := cache.NewMemoryCache()
	resultPub := &capturingResultPub{}
	stub := &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){approve("APR-X")}}

	adjudicator := NewAdjudicator(
		&Config{
			SubmitQueue:   testSubmitQueue,
			NotifyQueue:   testNotifyQueue,
			MaxAttempts:   3,
			BackoffBase:   time.Second,
			BackoffJitter: 0,
			StatusTTL:     time.Hour,
			ApprovalTTL:   24 * time.Hour,
		},
		&tamperedRepo{MemoryRepository: backing}, stub, publisher, statusCache, resultPub, logger.Nop{},
	)
	proc := adjudicator.Proc()

	req, err := etrequest.NewRequest("req-tampered", etrequest.KindPreAuth, "alice", "PAT-1", 2500.00, []string{"CPT99213"})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := backing.Create(ctx, req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	resp := proc(ctx, submitJobMsg(t, req.ID, 0, 3))
	if resp.Action != framework.JobRespStatusBury {
		t.Fatalf("action = %d, want bury", resp.Action)
	}

	// 可疑数据绝不递交 TPA
	if stub.calls != 0 {
		t.Errorf("partner calls = %d, want 0", stub.calls)
	}

	// 行已落死信终态（状态字段明文，不受密文损坏影响）
	final, err := backing.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("load final state failed: %v", err)
	}
	if final.Status != etrequest.StatusDeadLetter {
		t.Errorf("status = %s, want dead_letter", final.Status)
	}

	// 恰好一条带人工处理标记的死信通知
	notifications := publisher.byQueue(testNotifyQueue)
	if len(notifications) != 1 {
		t.Fatalf("notifications = %d, want exactly 1", len(notifications))
	}
	event := decodeNotification(t, notifications[0].data)
	if event.Event != model.EventDeadLetter || event.Tag != model.TagManualReview {
		t.Errorf("notification = %+v, want dead_letter with manual review tag", event)
	}
	if event.RequestID != req.ID {
		t.Errorf("notification request id = %q, want %q", event.RequestID, req.ID)
	}

	// 结果频道已推送死信快照（Smart Wait 等待方也要被唤醒）
	if len(resultPub.messages[model.ResultChannel(req.ID)]) != 1 {
		t.Error("dead letter snapshot should be published to result channel")
	}

	// 重复投递幂等：守卫拒绝二次迁移，仍确认消息，不重复通知
	resp = proc(ctx, submitJobMsg(t, req.ID, 1, 3))
	if resp.Action != framework.JobRespStatusBury {
		t.Fatalf("duplicate delivery action = %d, want bury", resp.Action)
	}
	if n := len(publisher.byQueue(testNotifyQueue)); n != 1 {
		t.Errorf("notifications after duplicate = %d, want 1", n)
	}
}

func TestAdjudicatorRequestGone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &scriptedPartner{results: []func() (*partner.AdjudicationResult, error){approve("X")}}, 3)

	resp := h.proc(ctx, submitJobMsg(t, "no-such-request", 0, 3))
	if resp.Action != framework.JobRespStatusSuccess {
		t.Errorf("missing request action = %d, want success (discard)", resp.Action)
	}
}
