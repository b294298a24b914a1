package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"postapi/internal/constants"
	"postapi/internal/content"
	"postapi/pkg/migrations"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for every configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			rt := NewRuntime(cfg, log)
			defer rt.Close(context.Background())

			return rt.Migrate(ctx)
		},
	}
}

// Migrate applies the queue, provider and content schemas and creates the
// outcome indexes when MongoDB is configured.
func (r *Runtime) Migrate(ctx context.Context) error {
	needsPostgres := r.Config.Queue.Backend == constants.QueueBackendPostgres ||
		r.Config.Providers.Source == constants.ProviderSourcePostgres

	if needsPostgres {
		db, err := r.postgres(ctx)
		if err != nil {
			return err
		}
		if err := migrations.Up(ctx, db, migrations.DialectPostgres); err != nil {
			return err
		}
		r.Logger.InfowCtx(ctx, "PostgreSQL migrations applied")
	}

	if r.Config.Queue.Backend == constants.QueueBackendSQLite {
		db, err := r.dbConnector.InitSQLite(ctx)
		if err != nil {
			return err
		}
		r.sqliteDB = db
		if err := migrations.Up(ctx, db, migrations.DialectSQLite); err != nil {
			return err
		}
		r.Logger.InfowCtx(ctx, "SQLite migrations applied", "path", r.Config.Database.SQLite.Path)
	}

	db, err := r.dbConnector.InitContentDB(ctx)
	if err != nil {
		return err
	}
	r.contentDB = db
	if err := content.Migrate(db); err != nil {
		return err
	}
	r.Logger.InfowCtx(ctx, "Content store migrated", "driver", r.Config.Content.Driver)

	if r.Config.Database.MongoDB.URI != "" {
		if err := r.InitHistory(ctx); err != nil {
			return fmt.Errorf("failed to create outcome indexes: %w", err)
		}
		r.Logger.InfowCtx(ctx, "MongoDB outcome indexes ensured", "collection", constants.OutcomesCollection)
	}

	return nil
}
