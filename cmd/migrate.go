package cmd

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

const migrationTable = "schema_migrations"

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "Apply the SQL migrations under db/migrations",
		Long: `Apply pending goose migrations. --rollback undoes the latest one, or every
migration above --to when a target version is given. --status lists what is applied.`,
	}
	migrateRollback bool
	migrateStatus   bool
	migrateTo       int64
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "roll back the latest migration")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print migration status and exit")
	migrateCmd.Flags().Int64Var(&migrateTo, "to", -1, "target version for up or rollback")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "db/migrations", "sql migrations directory")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		return fmt.Errorf("goose: open db: %w", err)
	}
	defer db.Close()
	goose.SetTableName(migrationTable)

	command, args := migrationCommand()
	lg.Info("running migrations", "command", command, "dir", migrateDir, "args", args)
	if err := goose.RunContext(ctx, command, db, migrateDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	if version, err := goose.GetDBVersionContext(ctx, db); err == nil {
		lg.Info("migrations finished", "command", command, "version", version)
	}
	return nil
}

func migrationCommand() (string, []string) {
	switch {
	case migrateStatus:
		return "status", nil
	case migrateRollback && migrateTo >= 0:
		return "down-to", []string{fmt.Sprint(migrateTo)}
	case migrateRollback:
		return "down", nil
	case migrateTo >= 0:
		return "up-to", []string{fmt.Sprint(migrateTo)}
	default:
		return "up", nil
	}
}
