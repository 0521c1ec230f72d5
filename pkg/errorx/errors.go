package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind 错误类别（决定重试策略和 HTTP 状态码）
type Kind string

const (
	KindValidation       Kind = "validation"        // 参数/业务规则错误，不重试
	KindInvalidReference Kind = "invalid_reference" // 引用的预授权不存在或状态不对
	KindRateLimited      Kind = "rate_limited"      // 超出限流配额
	KindIntegrity        Kind = "integrity"         // 密文被篡改或密钥不匹配，致命
	KindPartnerTransient Kind = "partner_transient" // TPA 临时故障（超时/5xx），可重试
	KindPartnerPermanent Kind = "partner_permanent" // TPA 明确拒绝（4xx），不重试
	KindRetryExhausted   Kind = "retry_exhausted"   // 重试次数耗尽，进入死信
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict" // 状态不允许该操作（修订非 pending、作废终态）
	KindInternal         Kind = "internal"
)

// Error 业务错误结构（包含类别与可重试标记）
type Error struct {
	Kind       Kind          `json:"kind"`
	Message    string        `json:"message"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // 限流错误的等待提示
	DevDetails string        `json:"dev_details,omitempty"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus 错误类别到 HTTP 状态码的映射
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidReference:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Validation 创建校验错误
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// InvalidReference 创建引用错误（悬空的预授权引用）
func InvalidReference(message string) *Error {
	return &Error{Kind: KindInvalidReference, Message: message}
}

// RateLimited 创建限流错误（带重试等待提示）
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// Integrity 创建完整性错误（解密失败，绝不静默降级为空值）
func Integrity(message string, details string) *Error {
	return &Error{Kind: KindIntegrity, Message: message, DevDetails: details}
}

// PartnerTransient 创建可重试的 TPA 错误
func PartnerTransient(message string) *Error {
	return &Error{Kind: KindPartnerTransient, Message: message, Retryable: true}
}

// PartnerPermanent 创建不可重试的 TPA 错误
func PartnerPermanent(message string) *Error {
	return &Error{Kind: KindPartnerPermanent, Message: message}
}

// RetryExhausted 创建重试耗尽错误（需要人工介入）
func RetryExhausted(message string) *Error {
	return &Error{Kind: KindRetryExhausted, Message: message}
}

// Conflict 创建状态冲突错误
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NotFound 创建未找到错误
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal 创建内部错误
func Internal(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// Wrap 包装错误（已是 *Error 则原样返回，否则归为内部错误）
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:       KindInternal,
		Message:    err.Error(),
		DevDetails: fmt.Sprintf("%+v", err),
	}
}

// KindOf 提取错误类别（非 *Error 返回 KindInternal）
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
