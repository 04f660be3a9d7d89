package stepup

import "time"

type OneTimeCode struct {
	ID           int64      `gorm:"primaryKey"`
	UserID       int64      `gorm:"column:user_id;not null;index"`
	Purpose      string     `gorm:"column:purpose;not null"`
	DocumentType *string    `gorm:"column:document_type"`
	DocumentID   *int64     `gorm:"column:document_id"`
	CodeHash     string     `gorm:"column:code_hash;not null"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;not null"`
	Used         bool       `gorm:"column:used;not null;default:false"`
	UsedAt       *time.Time `gorm:"column:used_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (OneTimeCode) TableName() string {
	return "one_time_codes"
}
