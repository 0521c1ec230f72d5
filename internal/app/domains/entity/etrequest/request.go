package etrequest

import (
	"errors"
	"regexp"
	"time"
)

// 错误定义
var (
	ErrInvalidRequestID  = errors.New("request ID cannot be empty")
	ErrInvalidPatientRef = errors.New("patient ref cannot be empty")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNoProcedureCodes  = errors.New("procedure codes cannot be empty")
	ErrTooManyCodes      = errors.New("at most 10 procedure codes allowed")
	ErrInvalidCode       = errors.New("procedure code must be alphanumeric")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Kind 请求类型
type Kind string

const (
	KindPreAuth       Kind = "preauth"
	KindClaim         Kind = "claim"
	KindReimbursement Kind = "reimbursement"
)

// Status 请求状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
	StatusDeadLetter Status = "dead_letter"
)

// 状态机：只允许单向前进，终态不可离开
// dead_letter 仅在 submitted 重试耗尽后可达
var transitions = map[Status][]Status{
	StatusPending:   {StatusSubmitted, StatusExpired},
	StatusSubmitted: {StatusApproved, StatusRejected, StatusExpired, StatusDeadLetter},
}

// CanTransitionTo 判断状态迁移是否合法
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal 判断是否为终态
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired, StatusDeadLetter:
		return true
	}
	return false
}

// AllowedFrom 返回可以迁移到 target 的所有前置状态（仓储层守卫更新用）
func AllowedFrom(target Status) []Status {
	var from []Status
	for src, targets := range transitions {
		for _, t := range targets {
			if t == target {
				from = append(from, src)
			}
		}
	}
	return from
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Request 保险请求聚合根（预授权 / 理赔 / 报销共用）
type Request struct {
	ID                 string    // 请求ID (UUID)
	Kind               Kind      // 请求类型
	Subject            string    // 提交用户标识
	PatientRef         string    // 外部患者标识（绝不存原始证件号）
	Amount             float64   // 金额（落库前加密）
	ProcedureCodes     []string  // 诊疗项目编码，1..10 条
	PreAuthRef         string    // 理赔引用的预授权ID（可选）
	Status             Status    // 当前状态
	ExternalApprovalID string    // TPA 批复单号，仅终态时非空
	Voided             bool      // 外部作废标记（如被新预授权取代）
	Deleted            bool      // 保留期清理的软删除标记
	CreatedAt          time.Time // 创建时间
	UpdatedAt          time.Time // 更新时间（单调不减）
}

// NewRequest 创建请求（工厂方法）
func NewRequest(id string, kind Kind, subject, patientRef string, amount float64, codes []string) (*Request, error) {
	if id == "" {
		return nil, ErrInvalidRequestID
	}
	if patientRef == "" {
		return nil, ErrInvalidPatientRef
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(codes) == 0 {
		return nil, ErrNoProcedureCodes
	}
	if len(codes) > 10 {
		return nil, ErrTooManyCodes
	}
	for _, c := range codes {
		if !codePattern.MatchString(c) {
			return nil, ErrInvalidCode
		}
	}

	now := time.Now()
	return &Request{
		ID:             id,
		Kind:           kind,
		Subject:        subject,
		PatientRef:     patientRef,
		Amount:         amount,
		ProcedureCodes: codes,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Transition 状态迁移（领域行为）
func (r *Request) Transition(target Status) error {
	if !r.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	r.Status = target
	r.UpdatedAt = time.Now()
	return nil
}

// MarkVoided 外部作废（不走状态机，终态前随时可标记）
func (r *Request) MarkVoided() {
	r.Voided = true
	r.UpdatedAt = time.Now()
}
