package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/business"
	"tpabridge/internal/framework"
	"tpabridge/internal/partner"
	"tpabridge/pkg/cache"
	"tpabridge/pkg/errorx"
	"tpabridge/pkg/logger"

	"github.com/google/uuid"
)

var (
	failTimes = flag.Int("fail-times", 0, "TPA 前 N 次返回临时故障")
	reject    = flag.Bool("reject", false, "TPA 返回明确拒绝")
)

// fakePartner 可编程的 TPA 桩：前 N 次临时故障，之后批准或拒绝
type fakePartner struct {
	failTimes int
	reject    bool
	calls     int
}

func (p *fakePartner) Adjudicate(ctx context.Context, req *partner.AdjudicationRequest) (*partner.AdjudicationResult, error) {
	p.calls++
	if p.calls <= p.failTimes {
		return nil, errorx.PartnerTransient(fmt.Sprintf("simulated timeout #%d", p.calls))
	}
	if p.reject {
		return nil, errorx.PartnerPermanent("simulated rejection")
	}
	return &partner.AdjudicationResult{
		Outcome:    partner.OutcomeApproved,
		ApprovalID: "APR-" + uuid.New().String()[:8],
	}, nil
}

func (p *fakePartner) QueryStatus(ctx context.Context, kind, requestID string) (*partner.AdjudicationResult, error) {
	return &partner.AdjudicationResult{Outcome: partner.OutcomePending}, nil
}

// memoryQueue 内存队列桩：记录发布的 Job，驱动重试循环
type memoryQueue struct {
	jobs map[string][][]byte
}

func (q *memoryQueue) Publish(queue string, data []byte, ttl uint32, delay uint32) error {
	q.jobs[queue] = append(q.jobs[queue], data)
	return nil
}

func (q *memoryQueue) pop(queue string) ([]byte, bool) {
	pending := q.jobs[queue]
	if len(pending) == 0 {
		return nil, false
	}
	q.jobs[queue] = pending[1:]
	return pending[0], true
}

// nopResultPub 结果频道桩
type nopResultPub struct{}

func (nopResultPub) Publish(ctx context.Context, channel string, message string) error { return nil }

func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("  FastTest - TPA Bridge 快速测试工具")
	fmt.Println("========================================")

	ctx := context.Background()
	repo := rprequest.NewMemoryRepository()
	queue := &memoryQueue{jobs: make(map[string][][]byte)}
	statusCache := cache.NewMemoryCache()
	partnerStub := &fakePartner{failTimes: *failTimes, reject: *reject}

	adjudicator := business.NewAdjudicator(
		&business.Config{
			SubmitQueue:   "tpa_submit_test",
			NotifyQueue:   "tpa_notify_test",
			MaxAttempts:   3,
			BackoffBase:   time.Millisecond,
			BackoffJitter: time.Millisecond,
			StatusTTL:     time.Hour,
			ApprovalTTL:   24 * time.Hour,
		},
		repo, partnerStub, queue, statusCache, nopResultPub{}, logger.Nop{},
	)

	// 1. 创建 pending 请求
	req, err := etrequest.NewRequest(uuid.New().String(), etrequest.KindPreAuth, "fasttest-user", "PAT-001", 2500.00, []string{"CPT99213"})
	if err != nil {
		fmt.Printf("❌ Failed to create request: %v\n", err)
		os.Exit(1)
	}
	if err := repo.Create(ctx, req); err != nil {
		fmt.Printf("❌ Failed to persist request: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Request created: id=%s, status=%s\n", req.ID, req.Status)

	// 2. 入队初始 Job
	jobData, _ := business.EncodeSubmitJob(&model.SubmitJobData{
		RequestID:   uuid.New().String(),
		ActionType:  model.ActionTypeSubmit,
		ID:          req.ID,
		Kind:        string(req.Kind),
		Attempt:     0,
		MaxAttempts: 3,
	})
	queue.Publish("tpa_submit_test", jobData, 86400, 0)

	// 3. 驱动处理循环（重试 Job 会重新入队）
	proc := adjudicator.Proc()
	round := 0
	for {
		data, ok := queue.pop("tpa_submit_test")
		if !ok {
			break
		}
		round++
		resp := proc(ctx, &framework.Message{ID: fmt.Sprintf("job-%d", round), Queue: "tpa_submit_test", Data: data})
		fmt.Printf("✅ Round %d processed: action=%d\n", round, resp.Action)
	}

	// 4. 校验最终状态
	final, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		fmt.Printf("❌ Failed to load final state: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Final status: %s, approval_id=%s, rounds=%d\n", final.Status, final.ExternalApprovalID, round)

	notifications := len(queue.jobs["tpa_notify_test"])
	fmt.Printf("✅ Notifications enqueued: %d\n", notifications)

	if !final.Status.IsTerminal() {
		fmt.Println("❌ Request did not reach terminal state")
		os.Exit(1)
	}

	fmt.Println("========================================")
	fmt.Println("  FastTest passed")
	fmt.Println("========================================")
}
