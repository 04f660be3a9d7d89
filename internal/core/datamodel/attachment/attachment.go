package attachment

import "time"

type Attachment struct {
	ID           int64     `gorm:"primaryKey"`
	DocumentType string    `gorm:"column:document_type;not null;index:idx_attachment_document"`
	DocumentID   int64     `gorm:"column:document_id;not null;index:idx_attachment_document"`
	Category     string    `gorm:"column:category;not null"`
	FileName     string    `gorm:"column:file_name;not null"`
	StorageKey   string    `gorm:"column:storage_key;not null;uniqueIndex"`
	ContentType  string    `gorm:"column:content_type"`
	SizeBytes    int64     `gorm:"column:size_bytes;not null"`
	UploadedBy   int64     `gorm:"column:uploaded_by;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Attachment) TableName() string {
	return "attachments"
}
