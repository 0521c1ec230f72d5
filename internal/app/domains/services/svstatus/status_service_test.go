package svstatus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/partner"
	"tpabridge/pkg/cache"
	"tpabridge/pkg/errorx"
	"tpabridge/pkg/logger"
)

// stubPartner 可编程的 TPA 查询桩
type stubPartner struct {
	result     *partner.AdjudicationResult
	err        error
	queryCalls int
}

func (s *stubPartner) Adjudicate(ctx context.Context, req *partner.AdjudicationRequest) (*partner.AdjudicationResult, error) {
	return nil, errors.New("not used in status tests")
}

func (s *stubPartner) QueryStatus(ctx context.Context, kind, requestID string) (*partner.AdjudicationResult, error) {
	s.queryCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestService(stub *stubPartner) (*StatusService, *rprequest.MemoryRepository, cache.Cache) {
	repo := rprequest.NewMemoryRepository()
	c := cache.NewMemoryCache()
	svc := NewStatusService(&Config{
		StatusTTL:   time.Hour,
		ApprovalTTL: 24 * time.Hour,
	}, repo, c, stub, logger.Nop{})
	return svc, repo, c
}

func seedRequest(t *testing.T, repo *rprequest.MemoryRepository, id string, status etrequest.Status) {
	t.Helper()
	req, err := etrequest.NewRequest(id, etrequest.KindClaim, "alice", "PAT-1", 100, []string{"CPT1"})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Status = status
	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

func TestGetStatusCacheHit(t *testing.T) {
	ctx := context.Background()
	stub := &stubPartner{}
	svc, _, c := newTestService(stub)

	cached := &model.StatusSnapshot{ID: "req-1", Kind: "claim", Status: string(etrequest.StatusApproved)}
	data, _ := json.Marshal(cached)
	c.Put(ctx, model.StatusCacheKey("claim", "req-1"), string(data), time.Hour)

	snapshot, fromCache, err := svc.GetStatus(ctx, etrequest.KindClaim, "req-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !fromCache {
		t.Error("want cache hit")
	}
	if snapshot.Status != string(etrequest.StatusApproved) {
		t.Errorf("status = %s, want approved", snapshot.Status)
	}
	// 快路径不查库也不查 TPA
	if stub.queryCalls != 0 {
		t.Errorf("partner queries = %d, want 0", stub.queryCalls)
	}
}

func TestGetStatusCacheMissFallsToDB(t *testing.T) {
	ctx := context.Background()
	svc, repo, c := newTestService(&stubPartner{})
	seedRequest(t, repo, "req-1", etrequest.StatusPending)

	snapshot, fromCache, err := svc.GetStatus(ctx, etrequest.KindClaim, "req-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if fromCache {
		t.Error("first read should miss cache")
	}
	if snapshot.Status != string(etrequest.StatusPending) {
		t.Errorf("status = %s, want pending", snapshot.Status)
	}

	// miss 后回填缓存，二次查询命中
	if _, ok, _ := c.Get(ctx, model.StatusCacheKey("claim", "req-1")); !ok {
		t.Error("snapshot should be cached after DB read")
	}
	if _, fromCache, _ := svc.GetStatus(ctx, etrequest.KindClaim, "req-1"); !fromCache {
		t.Error("second read should hit cache")
	}
}

func TestGetStatusSubmittedRefreshesFromPartner(t *testing.T) {
	ctx := context.Background()
	stub := &stubPartner{result: &partner.AdjudicationResult{
		Outcome:    partner.OutcomeApproved,
		ApprovalID: "APR-77",
	}}
	svc, repo, _ := newTestService(stub)
	seedRequest(t, repo, "req-1", etrequest.StatusSubmitted)

	snapshot, _, err := svc.GetStatus(ctx, etrequest.KindClaim, "req-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if snapshot.Status != string(etrequest.StatusApproved) || snapshot.ExternalApprovalID != "APR-77" {
		t.Errorf("snapshot = %+v, want approved with APR-77", snapshot)
	}

	// TPA 侧终态已守卫式落库
	persisted, _ := repo.GetByID(ctx, "req-1")
	if persisted.Status != etrequest.StatusApproved {
		t.Errorf("persisted status = %s, want approved", persisted.Status)
	}
}

func TestGetStatusPartnerPendingKeepsSubmitted(t *testing.T) {
	ctx := context.Background()
	stub := &stubPartner{result: &partner.AdjudicationResult{Outcome: partner.OutcomePending}}
	svc, repo, _ := newTestService(stub)
	seedRequest(t, repo, "req-1", etrequest.StatusSubmitted)

	snapshot, _, err := svc.GetStatus(ctx, etrequest.KindClaim, "req-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if snapshot.Status != string(etrequest.StatusSubmitted) {
		t.Errorf("status = %s, want submitted", snapshot.Status)
	}
}

func TestGetStatusPartnerErrorIgnored(t *testing.T) {
	// TPA 查询故障不影响状态读取，以 DB 当前值应答
	ctx := context.Background()
	stub := &stubPartner{err: errors.New("partner unavailable")}
	svc, repo, _ := newTestService(stub)
	seedRequest(t, repo, "req-1", etrequest.StatusSubmitted)

	snapshot, _, err := svc.GetStatus(ctx, etrequest.KindClaim, "req-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if snapshot.Status != string(etrequest.StatusSubmitted) {
		t.Errorf("status = %s, want submitted", snapshot.Status)
	}
}

func TestGetStatusKindMismatch(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(&stubPartner{})
	seedRequest(t, repo, "req-1", etrequest.StatusPending)

	// claim 的单子不能从 preauth 视图读到
	_, _, err := svc.GetStatus(ctx, etrequest.KindPreAuth, "req-1")
	if errorx.KindOf(err) != errorx.KindNotFound {
		t.Errorf("err kind = %q, want not_found", errorx.KindOf(err))
	}
}

func TestGetStatusUnknownID(t *testing.T) {
	svc, _, _ := newTestService(&stubPartner{})

	_, _, err := svc.GetStatus(context.Background(), etrequest.KindClaim, "no-such-id")
	if errorx.KindOf(err) != errorx.KindNotFound {
		t.Errorf("err kind = %q, want not_found", errorx.KindOf(err))
	}
}
