package rprequest

import (
	"context"
	"time"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/pkg/crypto"
)

// FieldCodec 字段加解密接口（pkg/crypto 的 Codec / RotatingCodec 均满足）
type FieldCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// RequestRepository 请求仓储接口（只定义，不实现）
// 实现在 MySQL（生产）与内存（测试/fasttest）两份
type RequestRepository interface {
	// Create 创建请求（敏感字段加密后落库）
	Create(ctx context.Context, req *etrequest.Request) error

	// GetByID 根据ID查询（已软删除的记录视为不存在）
	GetByID(ctx context.Context, id string) (*etrequest.Request, error)

	// List 分页查询某用户某类型的请求
	List(ctx context.Context, subject string, kind etrequest.Kind, page, limit int) ([]*etrequest.Request, int64, error)

	// UpdatePending 修改 pending 状态的请求（PUT 修订）
	// 返回 false 表示请求已离开 pending，不允许修改
	UpdatePending(ctx context.Context, req *etrequest.Request) (bool, error)

	// TransitionStatus 守卫式状态迁移：只在前置状态合法且未作废时生效
	// 返回 false 表示守卫条件不满足（重复投递或已作废），调用方据此丢弃结果
	TransitionStatus(ctx context.Context, id string, target etrequest.Status, externalApprovalID string) (bool, error)

	// MarkVoided 外部作废（终态后不再允许）
	MarkVoided(ctx context.Context, id string) (bool, error)

	// ListRetentionExpired 查询超过运营保留期且未软删除的请求
	ListRetentionExpired(ctx context.Context, cutoff time.Time, limit int) ([]*etrequest.Request, error)

	// SoftDelete 软删除（只由保留期清理任务调用，不触碰状态字段）
	SoftDelete(ctx context.Context, id string) (bool, error)

	// ReEncryptAll 密钥轮换批处理：逐条读旧密钥密文、写新密钥密文，单条独立事务
	ReEncryptAll(ctx context.Context, rc *crypto.RotatingCodec, batchSize int) (int, error)
}
