package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/spm-sp2d/internal"
	spmDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/spm"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/spm"
	"gorm.io/gorm"
)

// SPMRepository implements spm.RepositoryAPI using GORM
type SPMRepository struct {
	db *gorm.DB
}

func NewSPMRepository(db *gorm.DB) spm.RepositoryAPI {
	return &SPMRepository{db: db}
}

// Create inserts the SPM and its deduction lines.
func (r *SPMRepository) Create(ctx context.Context, doc *spmDatamodel.SPM) error {
	return database.Conn(ctx, r.db).Create(doc).Error
}

func (r *SPMRepository) GetByID(ctx context.Context, id int64) (*spmDatamodel.SPM, error) {
	var doc spmDatamodel.SPM
	err := database.Conn(ctx, r.db).
		Preload("Potongan", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSPMNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *SPMRepository) List(ctx context.Context, filter spm.ListFilter) ([]*spmDatamodel.SPM, int64, error) {
	q := database.Conn(ctx, r.db).Model(&spmDatamodel.SPM{})

	if filter.OwnerID != nil {
		q = q.Where("created_by = ?", *filter.OwnerID)
	}
	if filter.OPDID != nil {
		q = q.Where("opd_id = ?", *filter.OPDID)
	}
	if filter.NonDraft {
		q = q.Where("status <> ?", string(spm.StatusDraft))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []*spmDatamodel.SPM
	err := q.Preload("Potongan").
		Order("updated_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&docs).Error
	return docs, total, err
}

// ReplaceDraft rewrites the editable fields and the deduction lines while the document
// still has expectedStatus. Callers run it inside a transaction.
func (r *SPMRepository) ReplaceDraft(ctx context.Context, doc *spmDatamodel.SPM, expectedStatus string) (bool, error) {
	db := database.Conn(ctx, r.db)

	res := db.Model(&spmDatamodel.SPM{}).
		Where("id = ? AND status = ?", doc.ID, expectedStatus).
		Updates(map[string]interface{}{
			"jenis_spm":     doc.JenisSPM,
			"uraian":        doc.Uraian,
			"nama_penerima": doc.NamaPenerima,
			"nilai_spm":     doc.NilaiSPM,
			"nilai_bersih":  doc.NilaiBersih,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := db.Where("spm_id = ?", doc.ID).Delete(&spmDatamodel.Potongan{}).Error; err != nil {
		return false, err
	}
	if len(doc.Potongan) == 0 {
		return true, nil
	}
	for i := range doc.Potongan {
		doc.Potongan[i].ID = 0
		doc.Potongan[i].SPMID = doc.ID
	}
	if err := db.Create(&doc.Potongan).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *SPMRepository) Delete(ctx context.Context, id int64, expectedStatus string) (bool, error) {
	db := database.Conn(ctx, r.db)

	res := db.Where("id = ? AND status = ?", id, expectedStatus).Delete(&spmDatamodel.SPM{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := db.Where("spm_id = ?", id).Delete(&spmDatamodel.Potongan{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *SPMRepository) Transition(ctx context.Context, id int64, expectedStatus string, updates map[string]interface{}) (bool, error) {
	res := database.Conn(ctx, r.db).
		Model(&spmDatamodel.SPM{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SPMRepository) AppendEvent(ctx context.Context, event *spmDatamodel.StageEvent) error {
	return database.Conn(ctx, r.db).Create(event).Error
}

func (r *SPMRepository) ListEvents(ctx context.Context, spmID int64) ([]*spmDatamodel.StageEvent, error) {
	var events []*spmDatamodel.StageEvent
	err := database.Conn(ctx, r.db).
		Where("spm_id = ?", spmID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	return events, err
}
