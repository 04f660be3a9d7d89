package postgres

import (
	"context"
	"errors"

	taxcodeDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/taxcode"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/taxcode"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaxCodeRepository struct {
	db *gorm.DB
}

func NewTaxCodeRepository(db *gorm.DB) taxcode.RepositoryAPI {
	return &TaxCodeRepository{db: db}
}

func (r *TaxCodeRepository) List(ctx context.Context, activeOnly bool) ([]*taxcodeDatamodel.TaxCode, error) {
	var rows []*taxcodeDatamodel.TaxCode
	q := database.Conn(ctx, r.db)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("code ASC").Find(&rows).Error
	return rows, err
}

// GetByCode returns nil without error when the code is unknown.
func (r *TaxCodeRepository) GetByCode(ctx context.Context, code string) (*taxcodeDatamodel.TaxCode, error) {
	var row taxcodeDatamodel.TaxCode
	err := database.Conn(ctx, r.db).Where("code = ?", code).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *TaxCodeRepository) Upsert(ctx context.Context, t *taxcodeDatamodel.TaxCode) error {
	return database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "default_rate", "is_active", "updated_at"}),
	}).Create(t).Error
}
