package etrequest

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRequestValidation(t *testing.T) {
	validCodes := []string{"CPT99213"}

	cases := []struct {
		name    string
		id      string
		ref     string
		amount  float64
		codes   []string
		wantErr error
	}{
		{"valid", "id-1", "PAT-1", 2500.00, validCodes, nil},
		{"empty id", "", "PAT-1", 100, validCodes, ErrInvalidRequestID},
		{"empty patient ref", "id-1", "", 100, validCodes, ErrInvalidPatientRef},
		{"negative amount", "id-1", "PAT-1", -10.00, validCodes, ErrInvalidAmount},
		{"zero amount", "id-1", "PAT-1", 0, validCodes, ErrInvalidAmount},
		{"no codes", "id-1", "PAT-1", 100, nil, ErrNoProcedureCodes},
		{"too many codes", "id-1", "PAT-1", 100, make11Codes(), ErrTooManyCodes},
		{"non-alphanumeric code", "id-1", "PAT-1", 100, []string{"CPT-99213"}, ErrInvalidCode},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := NewRequest(tc.id, KindPreAuth, "alice", tc.ref, tc.amount, tc.codes)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && req.Status != StatusPending {
				t.Errorf("new request status = %s, want pending", req.Status)
			}
		})
	}
}

func make11Codes() []string {
	codes := make([]string, 11)
	for i := range codes {
		codes[i] = "CODE" + strings.Repeat("X", i+1)
	}
	return codes
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusSubmitted, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusApproved, false}, // 不能跳过 submitted
		{StatusPending, StatusDeadLetter, false},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusSubmitted, StatusExpired, true},
		{StatusSubmitted, StatusDeadLetter, true},
		{StatusSubmitted, StatusPending, false}, // 不能回退
		{StatusApproved, StatusRejected, false}, // 终态不可离开
		{StatusRejected, StatusSubmitted, false},
		{StatusDeadLetter, StatusSubmitted, false},
		{StatusExpired, StatusSubmitted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusApproved, StatusRejected, StatusExpired, StatusDeadLetter}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusSubmitted} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestAllowedFrom(t *testing.T) {
	// dead_letter 只能从 submitted 到达
	from := AllowedFrom(StatusDeadLetter)
	if len(from) != 1 || from[0] != StatusSubmitted {
		t.Errorf("AllowedFrom(dead_letter) = %v, want [submitted]", from)
	}

	// expired 可从 pending 与 submitted 到达
	from = AllowedFrom(StatusExpired)
	if len(from) != 2 {
		t.Errorf("AllowedFrom(expired) = %v, want two sources", from)
	}
}

func TestTransition(t *testing.T) {
	req, _ := NewRequest("id-1", KindClaim, "alice", "PAT-1", 100, []string{"CPT1"})

	if err := req.Transition(StatusSubmitted); err != nil {
		t.Fatalf("pending -> submitted failed: %v", err)
	}
	before := req.UpdatedAt

	if err := req.Transition(StatusApproved); err != nil {
		t.Fatalf("submitted -> approved failed: %v", err)
	}
	if req.UpdatedAt.Before(before) {
		t.Error("UpdatedAt must be non-decreasing")
	}

	if err := req.Transition(StatusRejected); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("terminal transition err = %v, want ErrInvalidTransition", err)
	}
}
