package entity

import "time"

// Request 请求表模型（单表多态，按 kind 区分）
// 金额与患者标识只以密文落库
type Request struct {
	ID                 string    `gorm:"column:id;primaryKey;size:36"`
	Kind               string    `gorm:"column:kind;size:16;index:idx_kind_status"`
	Subject            string    `gorm:"column:subject;size:64;index"`
	PatientRefCipher   string    `gorm:"column:patient_ref_cipher;size:512"`
	AmountCipher       string    `gorm:"column:amount_cipher;size:512"`
	ProcedureCodes     []byte    `gorm:"column:procedure_codes;type:json"`
	PreAuthRef         string    `gorm:"column:preauth_ref;size:36;index"`
	Status             string    `gorm:"column:status;size:16;index:idx_kind_status"`
	ExternalApprovalID string    `gorm:"column:external_approval_id;size:64"`
	Voided             bool      `gorm:"column:voided"`
	Deleted            bool      `gorm:"column:deleted;index"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;index"`
}

// TableName 指定表名
func (Request) TableName() string {
	return "tpa_request"
}
