package postgres

import (
	"context"
	"errors"
	"time"

	stepupDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/stepup"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/stepup"
	"gorm.io/gorm"
)

type CodeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) stepup.RepositoryAPI {
	return &CodeRepository{db: db}
}

func (r *CodeRepository) Create(ctx context.Context, code *stepupDatamodel.OneTimeCode) error {
	return database.Conn(ctx, r.db).Create(code).Error
}

// FindActive returns the newest unused, unexpired code. A code issued without a document
// is valid for any document of the same purpose.
func (r *CodeRepository) FindActive(ctx context.Context, userID int64, purpose string, documentType string, documentID *int64, now time.Time) (*stepupDatamodel.OneTimeCode, error) {
	q := database.Conn(ctx, r.db).
		Where("user_id = ? AND purpose = ? AND used = ? AND expires_at > ?", userID, purpose, false, now)

	if documentID != nil {
		q = q.Where("(document_id IS NULL OR (document_id = ? AND document_type = ?))", *documentID, documentType)
	}

	var code stepupDatamodel.OneTimeCode
	err := q.Order("created_at DESC").Order("id DESC").First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stepup.ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *CodeRepository) Consume(ctx context.Context, id int64, usedAt time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&stepupDatamodel.OneTimeCode{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_at": usedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
