package notification

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID           int64          `gorm:"primaryKey"`
	UserID       int64          `gorm:"column:user_id;not null;index"`
	Title        string         `gorm:"column:title;not null"`
	Message      string         `gorm:"column:message;not null"`
	DocumentType string         `gorm:"column:document_type;not null"`
	DocumentID   int64          `gorm:"column:document_id;not null"`
	Action       string         `gorm:"column:action;not null"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
	IsRead       bool           `gorm:"column:is_read;not null;default:false;index"`
	ReadAt       *time.Time     `gorm:"column:read_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
