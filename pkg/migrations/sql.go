package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var sqlFiles embed.FS

// Up applies the embedded schema for dialect. The caller keeps ownership of db.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	switch dialect {
	case DialectPostgres:
		return upPostgres(db)
	case DialectSQLite:
		return upSQLite(ctx, db)
	default:
		return fmt.Errorf("unsupported migration dialect: %s", dialect)
	}
}

func upPostgres(db *sql.DB) error {
	source, err := iofs.New(sqlFiles, DialectPostgres)
	if err != nil {
		return fmt.Errorf("failed to open postgres migrations: %w", err)
	}

	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, DialectPostgres, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// upSQLite executes the up files in order. Every statement is IF NOT EXISTS,
// so running it against an existing database is a no-op.
func upSQLite(ctx context.Context, db *sql.DB) error {
	files, err := fs.Glob(sqlFiles, DialectSQLite+"/*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list sqlite migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		body, err := sqlFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
	}

	return nil
}
