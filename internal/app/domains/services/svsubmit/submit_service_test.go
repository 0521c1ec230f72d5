package svsubmit

import (
	"context"
	"testing"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/domains/model"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/pkg/errorx"
	"tpabridge/pkg/logger"
)

// fakeJobPublisher 记录发布调用的桩
type fakeJobPublisher struct {
	published []*etrequest.Request
	snapshot  *model.StatusSnapshot
	waitErr   error
}

func (f *fakeJobPublisher) PublishSubmitJob(ctx context.Context, req *etrequest.Request) error {
	f.published = append(f.published, req)
	return nil
}

func (f *fakeJobPublisher) WaitForResult(ctx context.Context, requestID string, timeout time.Duration) (*model.StatusSnapshot, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return f.snapshot, nil
}

func newTestService() (*SubmitService, *rprequest.MemoryRepository, *fakeJobPublisher) {
	repo := rprequest.NewMemoryRepository()
	jobs := &fakeJobPublisher{}
	svc := NewSubmitService(repo, jobs, 1000000, logger.Nop{})
	return svc, repo, jobs
}

func validInput(kind etrequest.Kind) *SubmitInput {
	return &SubmitInput{
		Kind:           kind,
		Subject:        "alice",
		PatientRef:     "PAT-88231",
		Amount:         2500.00,
		ProcedureCodes: []string{"CPT99213"},
	}
}

func TestSubmitHappyPath(t *testing.T) {
	ctx := context.Background()
	svc, repo, jobs := newTestService()

	req, snapshot, err := svc.Submit(ctx, validInput(etrequest.KindPreAuth))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if snapshot != nil {
		t.Error("no wait requested, snapshot should be nil")
	}
	if req.Status != etrequest.StatusPending {
		t.Errorf("status = %s, want pending", req.Status)
	}

	// 已落库且已入队
	persisted, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("request not persisted: %v", err)
	}
	if persisted.Amount != 2500.00 {
		t.Errorf("persisted amount = %v, want 2500.00", persisted.Amount)
	}
	if len(jobs.published) != 1 {
		t.Errorf("published jobs = %d, want 1", len(jobs.published))
	}
}

func TestSubmitNegativeAmount(t *testing.T) {
	// 负数金额同步失败：不落库、不入队
	ctx := context.Background()
	svc, repo, jobs := newTestService()

	input := validInput(etrequest.KindClaim)
	input.Amount = -10.00

	_, _, err := svc.Submit(ctx, input)
	if errorx.KindOf(err) != errorx.KindValidation {
		t.Fatalf("err kind = %q, want validation", errorx.KindOf(err))
	}

	if _, total, _ := repo.List(ctx, "alice", etrequest.KindClaim, 1, 10); total != 0 {
		t.Errorf("persisted rows = %d, want 0", total)
	}
	if len(jobs.published) != 0 {
		t.Errorf("published jobs = %d, want 0", len(jobs.published))
	}
}

func TestSubmitAmountCeiling(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	input := validInput(etrequest.KindPreAuth)
	input.Amount = 1000001

	_, _, err := svc.Submit(ctx, input)
	if errorx.KindOf(err) != errorx.KindValidation {
		t.Errorf("err kind = %q, want validation", errorx.KindOf(err))
	}
}

func TestSubmitClaimPreAuthRef(t *testing.T) {
	ctx := context.Background()

	t.Run("dangling reference", func(t *testing.T) {
		svc, _, _ := newTestService()
		input := validInput(etrequest.KindClaim)
		input.PreAuthRef = "no-such-id"

		_, _, err := svc.Submit(ctx, input)
		if errorx.KindOf(err) != errorx.KindInvalidReference {
			t.Errorf("err kind = %q, want invalid_reference", errorx.KindOf(err))
		}
	})

	t.Run("preauth not approved", func(t *testing.T) {
		svc, repo, _ := newTestService()
		preauth, _ := etrequest.NewRequest("pa-1", etrequest.KindPreAuth, "alice", "PAT-1", 100, []string{"CPT1"})
		repo.Create(ctx, preauth) // 仍为 pending

		input := validInput(etrequest.KindClaim)
		input.PreAuthRef = "pa-1"

		_, _, err := svc.Submit(ctx, input)
		if errorx.KindOf(err) != errorx.KindInvalidReference {
			t.Errorf("err kind = %q, want invalid_reference", errorx.KindOf(err))
		}
	})

	t.Run("approved preauth accepted", func(t *testing.T) {
		svc, repo, jobs := newTestService()
		preauth, _ := etrequest.NewRequest("pa-2", etrequest.KindPreAuth, "alice", "PAT-1", 100, []string{"CPT1"})
		repo.Create(ctx, preauth)
		repo.TransitionStatus(ctx, "pa-2", etrequest.StatusSubmitted, "")
		repo.TransitionStatus(ctx, "pa-2", etrequest.StatusApproved, "APR-1")

		input := validInput(etrequest.KindClaim)
		input.PreAuthRef = "pa-2"

		req, _, err := svc.Submit(ctx, input)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if req.PreAuthRef != "pa-2" {
			t.Errorf("PreAuthRef = %q, want pa-2", req.PreAuthRef)
		}
		if len(jobs.published) != 1 {
			t.Errorf("published jobs = %d, want 1", len(jobs.published))
		}
	})

	t.Run("voided preauth rejected", func(t *testing.T) {
		svc, repo, _ := newTestService()
		preauth, _ := etrequest.NewRequest("pa-3", etrequest.KindPreAuth, "alice", "PAT-1", 100, []string{"CPT1"})
		preauth.Status = etrequest.StatusApproved
		preauth.Voided = true
		repo.Create(ctx, preauth)

		input := validInput(etrequest.KindClaim)
		input.PreAuthRef = "pa-3"

		_, _, err := svc.Submit(ctx, input)
		if errorx.KindOf(err) != errorx.KindInvalidReference {
			t.Errorf("err kind = %q, want invalid_reference", errorx.KindOf(err))
		}
	})
}

func TestSubmitSmartWait(t *testing.T) {
	ctx := context.Background()
	svc, _, jobs := newTestService()
	jobs.snapshot = &model.StatusSnapshot{Status: string(etrequest.StatusApproved), ExternalApprovalID: "APR-9"}

	input := validInput(etrequest.KindPreAuth)
	input.WaitSeconds = 5

	_, snapshot, err := svc.Submit(ctx, input)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if snapshot == nil || snapshot.ExternalApprovalID != "APR-9" {
		t.Errorf("snapshot = %+v, want approved with APR-9", snapshot)
	}
}

func TestReviseOnlyPending(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	req, _, _ := svc.Submit(ctx, validInput(etrequest.KindPreAuth))

	t.Run("pending revisable", func(t *testing.T) {
		revised, err := svc.Revise(ctx, &ReviseInput{
			ID:             req.ID,
			PatientRef:     "PAT-NEW",
			Amount:         999.99,
			ProcedureCodes: []string{"CPT11111"},
		})
		if err != nil {
			t.Fatalf("Revise failed: %v", err)
		}
		if revised.Amount != 999.99 || revised.PatientRef != "PAT-NEW" {
			t.Errorf("revised = %+v, want updated fields", revised)
		}
	})

	t.Run("submitted not revisable", func(t *testing.T) {
		repo.TransitionStatus(ctx, req.ID, etrequest.StatusSubmitted, "")

		_, err := svc.Revise(ctx, &ReviseInput{
			ID:             req.ID,
			PatientRef:     "PAT-X",
			Amount:         1,
			ProcedureCodes: []string{"CPT1"},
		})
		if errorx.KindOf(err) != errorx.KindConflict {
			t.Errorf("err kind = %q, want conflict", errorx.KindOf(err))
		}
	})
}

func TestVoid(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	req, _, _ := svc.Submit(ctx, validInput(etrequest.KindPreAuth))

	if err := svc.Void(ctx, req.ID); err != nil {
		t.Fatalf("Void failed: %v", err)
	}
	voided, _ := repo.GetByID(ctx, req.ID)
	if !voided.Voided {
		t.Error("request should carry voided flag")
	}

	// 终态后不可作废
	other, _, _ := svc.Submit(ctx, validInput(etrequest.KindPreAuth))
	repo.TransitionStatus(ctx, other.ID, etrequest.StatusSubmitted, "")
	repo.TransitionStatus(ctx, other.ID, etrequest.StatusApproved, "APR-1")

	if err := svc.Void(ctx, other.ID); errorx.KindOf(err) != errorx.KindConflict {
		t.Errorf("void terminal err kind = %q, want conflict", errorx.KindOf(err))
	}
}
