package cli

import (
	"context"
	"database/sql"
	"fmt"

	"triviacast-service/internal/config"
	pgmigrations "triviacast-service/internal/infra/postgres/migrations"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runMigrationsWithConfig(cmd.Context(), cfg, log)
		},
	}
}

func openBunDB(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := openBunDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("database schema up to date")
		return nil
	}
	log.Info("migrations applied", zap.String("group", group.String()))
	return nil
}
