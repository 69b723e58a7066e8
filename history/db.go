// Package history persists digital state transitions to SQLite: an
// append-only journal the daemon's observers write on every event, queried
// back over the control API.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// Journal files hold device activity, so they stay owner-private.
	dirPerm  = 0750
	filePerm = 0600

	// openProbeTimeout bounds the connectivity check during open.
	openProbeTimeout = 5 * time.Second
)

// Config holds journal storage options from the history section of
// config.yaml.
type Config struct {
	// Path locates the SQLite file. Parent directories are created on
	// first open.
	Path string

	// BusyTimeout is how many seconds a locked database is retried
	// before queries fail.
	BusyTimeout int
}

// open connects to the journal database and ensures its schema.
//
// The connection uses WAL mode (the journal is append-heavy and readers
// must not block the writer), a busy timeout, and a single connection,
// since SQLite supports one writer.
func open(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	// Option reference: github.com/mattn/go-sqlite3#connection-string.
	// _busy_timeout takes milliseconds.
	connStr := fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		cfg.BusyTimeout*1000,
	)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), openProbeTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying journal connection: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	// Owner read/write only; ignore error, first run creates the file later
	_ = os.Chmod(cfg.Path, filePerm)

	return db, nil
}

// ensureSchema creates the journal table and its lookup index. The schema
// is a single append-only table; there is no versioned migration machinery
// to run.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS state_changes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	instance_id TEXT    NOT NULL,
	state       TEXT    NOT NULL,
	at_ms       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_state_changes_instance
	ON state_changes (instance_id, at_ms DESC);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring journal schema: %w", err)
	}
	return nil
}
