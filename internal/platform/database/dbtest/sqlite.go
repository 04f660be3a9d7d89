// Package dbtest opens throwaway sqlite databases carrying the full schema for repository
// and service tests.
package dbtest

import (
	"fmt"

	attachmentDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/attachment"
	notificationDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/notification"
	sp2dDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/sp2d"
	spmDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/spm"
	stepupDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/stepup"
	systemconfigDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/systemconfig"
	taxcodeDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/taxcode"
	userDatamodel "github.com/frahmantamala/spm-sp2d/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an in-memory database. The pool is pinned to one connection because every
// sqlite ":memory:" connection is its own database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&userDatamodel.User{},
		&userDatamodel.OPD{},
		&userDatamodel.RoleAssignment{},
		&spmDatamodel.SPM{},
		&spmDatamodel.Potongan{},
		&spmDatamodel.StageEvent{},
		&sp2dDatamodel.SP2D{},
		&sp2dDatamodel.Potongan{},
		&notificationDatamodel.Notification{},
		&stepupDatamodel.OneTimeCode{},
		&systemconfigDatamodel.Setting{},
		&attachmentDatamodel.Attachment{},
		&taxcodeDatamodel.TaxCode{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
