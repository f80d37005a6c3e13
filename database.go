package auth

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

const sqliteMigrations = "data/sql/migrations/sqlite"

// MigrationsTable records which migrations ran
const MigrationsTable = "portal_migrations"

// GetMigrationsFS returns the SQL migrations shipped with the package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// OpenSQLite opens a bun database over sqlite. Use
// "file::memory:?cache=shared" for an in-memory database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}

	// sqlite allows a single writer
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewMigrator loads the embedded sqlite migrations into a bun migrator.
// A migration is marked applied only after it succeeds.
func NewMigrator(db *bun.DB) (*migrate.Migrator, error) {
	sub, err := fs.Sub(migrationsFS, sqliteMigrations)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}

	return migrate.NewMigrator(db, migrations,
		migrate.WithTableName(MigrationsTable),
		migrate.WithLocksTableName(MigrationsTable+"_locks"),
		migrate.WithMarkAppliedOnSuccess(true),
	), nil
}

// Migrate applies the migrations not yet recorded in MigrationsTable. The
// returned group is empty when the schema is current.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}

	if err := migrator.Init(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migrations table")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		md := map[string]any{}
		if group != nil {
			md["group"] = group.String()
		}
		return group, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations").
			WithMetadata(md)
	}

	return group, nil
}
