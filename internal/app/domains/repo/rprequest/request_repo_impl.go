package rprequest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"tpabridge/internal/app/domains/entity/etrequest"
	"tpabridge/internal/app/infra/persistence/entity"
	"tpabridge/pkg/crypto"
	"tpabridge/pkg/errorx"
)

// RequestRepositoryImpl 请求仓储实现（MySQL）
// 加解密收口在领域对象与 GORM 模型的转换处
type RequestRepositoryImpl struct {
	db    *gorm.DB
	codec FieldCodec
}

// NewRequestRepository 创建请求仓储实例
func NewRequestRepository(db *gorm.DB, codec FieldCodec) RequestRepository {
	return &RequestRepositoryImpl{db: db, codec: codec}
}

// Create 创建请求
func (r *RequestRepositoryImpl) Create(ctx context.Context, req *etrequest.Request) error {
	po, err := r.toGormModel(req)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(po).Error
}

// GetByID 根据ID查询
func (r *RequestRepositoryImpl) GetByID(ctx context.Context, id string) (*etrequest.Request, error) {
	var po entity.Request
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.NotFound("request not found")
		}
		return nil, err
	}
	return r.toDomainModel(&po)
}

// List 分页查询
func (r *RequestRepositoryImpl) List(ctx context.Context, subject string, kind etrequest.Kind, page, limit int) ([]*etrequest.Request, int64, error) {
	var total int64
	var pos []entity.Request

	query := r.db.WithContext(ctx).Model(&entity.Request{}).
		Where("kind = ? AND deleted = ?", string(kind), false)
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&pos).Error; err != nil {
		return nil, 0, err
	}

	reqs := make([]*etrequest.Request, 0, len(pos))
	for i := range pos {
		req, err := r.toDomainModel(&pos[i])
		if err != nil {
			return nil, 0, err
		}
		reqs = append(reqs, req)
	}

	return reqs, total, nil
}

// UpdatePending 修改 pending 状态的请求
func (r *RequestRepositoryImpl) UpdatePending(ctx context.Context, req *etrequest.Request) (bool, error) {
	po, err := r.toGormModel(req)
	if err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).
		Model(&entity.Request{}).
		Where("id = ? AND status = ? AND deleted = ?", req.ID, string(etrequest.StatusPending), false).
		Updates(map[string]interface{}{
			"patient_ref_cipher": po.PatientRefCipher,
			"amount_cipher":      po.AmountCipher,
			"procedure_codes":    po.ProcedureCodes,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionStatus 守卫式状态迁移
// WHERE 条件同时校验前置状态与作废标记，守卫不满足时零行更新
func (r *RequestRepositoryImpl) TransitionStatus(ctx context.Context, id string, target etrequest.Status, externalApprovalID string) (bool, error) {
	allowed := etrequest.AllowedFrom(target)
	if len(allowed) == 0 {
		return false, etrequest.ErrInvalidTransition
	}
	from := make([]string, 0, len(allowed))
	for _, s := range allowed {
		from = append(from, string(s))
	}

	updates := map[string]interface{}{
		"status":     string(target),
		"updated_at": time.Now(),
	}
	if externalApprovalID != "" {
		updates["external_approval_id"] = externalApprovalID
	}

	res := r.db.WithContext(ctx).
		Model(&entity.Request{}).
		Where("id = ? AND status IN ? AND voided = ? AND deleted = ?", id, from, false, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkVoided 外部作废
func (r *RequestRepositoryImpl) MarkVoided(ctx context.Context, id string) (bool, error) {
	terminal := []string{
		string(etrequest.StatusApproved),
		string(etrequest.StatusRejected),
		string(etrequest.StatusExpired),
		string(etrequest.StatusDeadLetter),
	}

	res := r.db.WithContext(ctx).
		Model(&entity.Request{}).
		Where("id = ? AND status NOT IN ? AND deleted = ?", id, terminal, false).
		Updates(map[string]interface{}{
			"voided":     true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListRetentionExpired 查询超过运营保留期的请求
func (r *RequestRepositoryImpl) ListRetentionExpired(ctx context.Context, cutoff time.Time, limit int) ([]*etrequest.Request, error) {
	var pos []entity.Request
	err := r.db.WithContext(ctx).
		Where("updated_at < ? AND deleted = ?", cutoff, false).
		Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	reqs := make([]*etrequest.Request, 0, len(pos))
	for i := range pos {
		req, err := r.toDomainModel(&pos[i])
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// SoftDelete 软删除（不触碰状态字段）
func (r *RequestRepositoryImpl) SoftDelete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Request{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{
			"deleted":    true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReEncryptAll 密钥轮换批处理
// 每条记录单独事务：读旧密文 → 重加密 → 条件更新，中途失败不影响已完成的记录
func (r *RequestRepositoryImpl) ReEncryptAll(ctx context.Context, rc *crypto.RotatingCodec, batchSize int) (int, error) {
	reEncrypted := 0
	lastID := ""

	for {
		var pos []entity.Request
		err := r.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(batchSize).
			Find(&pos).Error
		if err != nil {
			return reEncrypted, err
		}
		if len(pos) == 0 {
			return reEncrypted, nil
		}

		for i := range pos {
			po := &pos[i]
			lastID = po.ID

			if !rc.NeedsReEncryption(po.AmountCipher) && !rc.NeedsReEncryption(po.PatientRefCipher) {
				continue
			}

			newAmount, err := rc.ReEncrypt(po.AmountCipher)
			if err != nil {
				return reEncrypted, err
			}
			newRef, err := rc.ReEncrypt(po.PatientRefCipher)
			if err != nil {
				return reEncrypted, err
			}

			err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return tx.Model(&entity.Request{}).
					Where("id = ?", po.ID).
					Updates(map[string]interface{}{
						"amount_cipher":      newAmount,
						"patient_ref_cipher": newRef,
					}).Error
			})
			if err != nil {
				return reEncrypted, err
			}
			reEncrypted++
		}
	}
}

// toGormModel 领域对象转换为 GORM 模型（加密敏感字段）
func (r *RequestRepositoryImpl) toGormModel(req *etrequest.Request) (*entity.Request, error) {
	amountCipher, err := r.codec.Encrypt(strconv.FormatFloat(req.Amount, 'f', 2, 64))
	if err != nil {
		return nil, err
	}
	refCipher, err := r.codec.Encrypt(req.PatientRef)
	if err != nil {
		return nil, err
	}
	codesJSON, err := json.Marshal(req.ProcedureCodes)
	if err != nil {
		return nil, err
	}

	return &entity.Request{
		ID:                 req.ID,
		Kind:               string(req.Kind),
		Subject:            req.Subject,
		PatientRefCipher:   refCipher,
		AmountCipher:       amountCipher,
		ProcedureCodes:     codesJSON,
		PreAuthRef:         req.PreAuthRef,
		Status:             string(req.Status),
		ExternalApprovalID: req.ExternalApprovalID,
		Voided:             req.Voided,
		Deleted:            req.Deleted,
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
	}, nil
}

// toDomainModel GORM 模型转换为领域对象（解密敏感字段）
// 解密失败原样上抛 Integrity 错误，绝不降级为零值
func (r *RequestRepositoryImpl) toDomainModel(po *entity.Request) (*etrequest.Request, error) {
	amountStr, err := r.codec.Decrypt(po.AmountCipher)
	if err != nil {
		return nil, err
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return nil, errorx.Integrity("amount plaintext corrupted", err.Error())
	}
	patientRef, err := r.codec.Decrypt(po.PatientRefCipher)
	if err != nil {
		return nil, err
	}

	var codes []string
	if len(po.ProcedureCodes) > 0 {
		if err := json.Unmarshal(po.ProcedureCodes, &codes); err != nil {
			return nil, err
		}
	}

	return &etrequest.Request{
		ID:                 po.ID,
		Kind:               etrequest.Kind(po.Kind),
		Subject:            po.Subject,
		PatientRef:         patientRef,
		Amount:             amount,
		ProcedureCodes:     codes,
		PreAuthRef:         po.PreAuthRef,
		Status:             etrequest.Status(po.Status),
		ExternalApprovalID: po.ExternalApprovalID,
		Voided:             po.Voided,
		Deleted:            po.Deleted,
		CreatedAt:          po.CreatedAt,
		UpdatedAt:          po.UpdatedAt,
	}, nil
}
