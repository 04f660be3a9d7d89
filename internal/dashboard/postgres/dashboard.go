package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	sp2dDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/sp2d"
	spmDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/spm"
	"github.com/frahmantamala/spm-sp2d/internal/dashboard"
)

type DashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) dashboard.RepositoryAPI {
	return &DashboardRepository{db: db}
}

// scoped applies the scope to a query over the spm table.
func scoped(q *gorm.DB, scope dashboard.Scope) *gorm.DB {
	if scope.OwnerID != nil {
		q = q.Where("spm.created_by = ?", *scope.OwnerID)
	}
	if scope.OPDID != nil {
		q = q.Where("spm.opd_id = ?", *scope.OPDID)
	}
	if scope.NonDraft() {
		q = q.Where("spm.status <> ?", "draft")
	}
	return q
}

func (r *DashboardRepository) spm(ctx context.Context, scope dashboard.Scope) *gorm.DB {
	return scoped(r.db.WithContext(ctx).Model(&spmDatamodel.SPM{}), scope)
}

func (r *DashboardRepository) StatusTotals(ctx context.Context, scope dashboard.Scope) ([]dashboard.StatusTotal, error) {
	var rows []dashboard.StatusTotal
	err := r.spm(ctx, scope).
		Select("spm.status AS status, COUNT(*) AS count, COALESCE(SUM(spm.nilai_spm), 0) AS gross_total, COALESCE(SUM(spm.nilai_bersih), 0) AS net_total").
		Group("spm.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("status totals: %w", err)
	}
	return rows, nil
}

// Timeline reads submission, approval and revision times since from. Bucketing happens in
// Go so the query stays portable across drivers.
func (r *DashboardRepository) Timeline(ctx context.Context, scope dashboard.Scope, from time.Time) (dashboard.Timeline, error) {
	var out dashboard.Timeline

	if err := r.spm(ctx, scope).
		Where("spm.tanggal_ajuan >= ?", from).
		Pluck("spm.tanggal_ajuan", &out.Submitted).Error; err != nil {
		return out, fmt.Errorf("submitted timeline: %w", err)
	}
	if err := r.spm(ctx, scope).
		Where("spm.tanggal_disetujui >= ?", from).
		Pluck("spm.tanggal_disetujui", &out.Approved).Error; err != nil {
		return out, fmt.Errorf("approved timeline: %w", err)
	}

	revised := scoped(r.db.WithContext(ctx).
		Model(&spmDatamodel.StageEvent{}).
		Joins("JOIN spm ON spm.id = spm_stage_events.spm_id"), scope)
	if err := revised.
		Where("spm_stage_events.action = ? AND spm_stage_events.created_at >= ?", "revise", from).
		Pluck("spm_stage_events.created_at", &out.Revised).Error; err != nil {
		return out, fmt.Errorf("revised timeline: %w", err)
	}
	return out, nil
}

func (r *DashboardRepository) OPDTotals(ctx context.Context, scope dashboard.Scope) ([]dashboard.OPDTotal, error) {
	var rows []dashboard.OPDTotal
	err := r.spm(ctx, scope).
		Joins("LEFT JOIN opd ON opd.id = spm.opd_id").
		Select("spm.opd_id AS opd_id, COALESCE(opd.nama, '') AS opd_name, COUNT(*) AS count, COALESCE(SUM(spm.nilai_spm), 0) AS gross_total").
		Group("spm.opd_id, opd.nama").
		Order("gross_total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("opd totals: %w", err)
	}
	return rows, nil
}

func (r *DashboardRepository) VendorTotals(ctx context.Context, scope dashboard.Scope, limit int) ([]dashboard.VendorTotal, error) {
	var rows []dashboard.VendorTotal
	err := r.spm(ctx, scope).
		Select("spm.nama_penerima AS nama_penerima, COUNT(*) AS count, COALESCE(SUM(spm.nilai_spm), 0) AS gross_total").
		Group("spm.nama_penerima").
		Order("gross_total DESC").
		Order("spm.nama_penerima ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vendor totals: %w", err)
	}
	return rows, nil
}

func (r *DashboardRepository) SP2DStatusCounts(ctx context.Context, scope dashboard.Scope) ([]dashboard.StatusCount, error) {
	var rows []dashboard.StatusCount
	q := scoped(r.db.WithContext(ctx).
		Model(&sp2dDatamodel.SP2D{}).
		Joins("JOIN spm ON spm.id = sp2d.spm_id"), scope)
	err := q.Select("sp2d.status AS status, COUNT(*) AS count").
		Group("sp2d.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sp2d status counts: %w", err)
	}
	return rows, nil
}
