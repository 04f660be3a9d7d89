package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/spm-sp2d/internal"
	sp2dDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/sp2d"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/sp2d"
	"gorm.io/gorm"
)

type SP2DRepository struct {
	db *gorm.DB
}

func NewSP2DRepository(db *gorm.DB) sp2d.RepositoryAPI {
	return &SP2DRepository{db: db}
}

func (r *SP2DRepository) Create(ctx context.Context, doc *sp2dDatamodel.SP2D) error {
	return database.Conn(ctx, r.db).Create(doc).Error
}

func (r *SP2DRepository) GetByID(ctx context.Context, id int64) (*sp2dDatamodel.SP2D, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *SP2DRepository) GetByNomor(ctx context.Context, nomor string) (*sp2dDatamodel.SP2D, error) {
	return r.first(ctx, "nomor_sp2d = ?", nomor)
}

func (r *SP2DRepository) first(ctx context.Context, query string, arg interface{}) (*sp2dDatamodel.SP2D, error) {
	var doc sp2dDatamodel.SP2D
	err := database.Conn(ctx, r.db).
		Preload("Potongan", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where(query, arg).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSP2DNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *SP2DRepository) ExistsForSPM(ctx context.Context, spmID int64) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).
		Model(&sp2dDatamodel.SP2D{}).
		Where("spm_id = ?", spmID).
		Count(&count).Error
	return count > 0, err
}

// List joins the source SPM so callers can scope by its owner and OPD.
func (r *SP2DRepository) List(ctx context.Context, filter sp2d.ListFilter) ([]*sp2dDatamodel.SP2D, int64, error) {
	q := database.Conn(ctx, r.db).
		Model(&sp2dDatamodel.SP2D{}).
		Joins("JOIN spm ON spm.id = sp2d.spm_id")

	if filter.OwnerID != nil {
		q = q.Where("spm.created_by = ?", *filter.OwnerID)
	}
	if filter.OPDID != nil {
		q = q.Where("spm.opd_id = ?", *filter.OPDID)
	}
	if filter.Status != "" {
		q = q.Where("sp2d.status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []*sp2dDatamodel.SP2D
	err := q.Select("sp2d.*").
		Preload("Potongan").
		Order("sp2d.updated_at DESC").
		Order("sp2d.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&docs).Error
	return docs, total, err
}

func (r *SP2DRepository) Transition(ctx context.Context, id int64, expectedStatus string, updates map[string]interface{}) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&sp2dDatamodel.SP2D{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
