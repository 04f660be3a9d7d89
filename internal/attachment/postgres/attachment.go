package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/internal/attachment"
	attachmentDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/attachment"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"gorm.io/gorm"
)

type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) attachment.RepositoryAPI {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *attachmentDatamodel.Attachment) error {
	return database.Conn(ctx, r.db).Create(a).Error
}

func (r *AttachmentRepository) GetByID(ctx context.Context, id int64) (*attachmentDatamodel.Attachment, error) {
	var a attachmentDatamodel.Attachment
	if err := database.Conn(ctx, r.db).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AttachmentRepository) ListByDocument(ctx context.Context, documentType string, documentID int64) ([]*attachmentDatamodel.Attachment, error) {
	var rows []*attachmentDatamodel.Attachment
	err := database.Conn(ctx, r.db).
		Where("document_type = ? AND document_id = ?", documentType, documentID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	res := database.Conn(ctx, r.db).Delete(&attachmentDatamodel.Attachment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrAttachmentNotFound
	}
	return nil
}

func (r *AttachmentRepository) CountByCategory(ctx context.Context, documentType string, documentID int64, category string) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&attachmentDatamodel.Attachment{}).
		Where("document_type = ? AND document_id = ? AND category = ?", documentType, documentID, category).
		Count(&count).Error
	return count, err
}
