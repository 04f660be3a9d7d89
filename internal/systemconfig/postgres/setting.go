package postgres

import (
	"context"

	systemconfigDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/systemconfig"
	"github.com/frahmantamala/spm-sp2d/internal/platform/database"
	"github.com/frahmantamala/spm-sp2d/internal/systemconfig"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) systemconfig.RepositoryAPI {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) All(ctx context.Context) ([]*systemconfigDatamodel.Setting, error) {
	var rows []*systemconfigDatamodel.Setting
	err := database.Conn(ctx, r.db).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error
	return rows, err
}

func (r *SettingRepository) Upsert(ctx context.Context, setting *systemconfigDatamodel.Setting) error {
	return database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(setting).Error
}
