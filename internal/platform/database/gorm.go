package database

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenGorm builds a gorm handle on top of the already pooled connection so both the sqlx
// health checks and the gorm repositories share one pool.
func OpenGorm(conn *sql.DB, debug bool) (*gorm.DB, error) {
	logMode := gormlogger.Warn
	if debug {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logMode),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return db, nil
}
