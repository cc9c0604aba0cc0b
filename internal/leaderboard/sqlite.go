package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// OpenSQLite opens or creates the SQLite database at path and applies
// migrations. Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string, logger *log.Logger, opts ...Option) (Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: open sqlite: %w", err)
	}
	// One connection serialises writes and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db, goose.DialectSQLite3, logger); err != nil {
		db.Close()
		return nil, err
	}
	return newSQLStore(db, false, opts), nil
}
