package leaderboard

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Migrate applies every pending migration for dialect and logs each one.
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, logger *log.Logger) error {
	dir := "migrations/sqlite"
	if dialect == goose.DialectPostgres {
		dir = "migrations/postgres"
	}
	fsys, err := fs.Sub(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("leaderboard: migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("leaderboard: migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("leaderboard: migrate up: %w", err)
	}
	for _, r := range results {
		if logger != nil {
			logger.Printf("migration_applied version=%d source=%s duration=%s",
				r.Source.Version, r.Source.Path, r.Duration)
		}
	}
	return nil
}
