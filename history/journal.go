package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/GeVanCo/pi4j-v2/digital"
)

const (
	// defaultHistoryLimit is the number of entries returned when the
	// caller doesn't specify a limit.
	defaultHistoryLimit = 50

	// maxHistoryLimit caps the number of entries a single query returns.
	maxHistoryLimit = 200
)

// Logger is the minimal logging interface the journal needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entry is one recorded state transition.
type Entry struct {
	ID         int64         `json:"id"`
	InstanceID string        `json:"instance_id"`
	State      digital.State `json:"state"`
	At         time.Time     `json:"at"`
}

// Journal records digital state transitions and serves them back newest
// first. All methods are safe for concurrent use.
type Journal struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	logger Logger
}

// Open creates or opens the journal database at cfg.Path.
//
// Parameters:
//   - cfg: database path and lock timeout
//
// Returns:
//   - *Journal: ready for Record/History calls
//   - error: directory creation, connection, or schema failures
func Open(cfg Config) (*Journal, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, path: cfg.Path, logger: noopLogger{}}, nil
}

// SetLogger replaces the journal's logger. Safe to call at any time.
func (j *Journal) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	j.mu.Lock()
	j.logger = l
	j.mu.Unlock()
}

func (j *Journal) log() Logger {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.logger
}

// Record appends one state transition for the given instance.
func (j *Journal) Record(ctx context.Context, instanceID string, state digital.State, at time.Time) error {
	const q = `INSERT INTO state_changes (instance_id, state, at_ms) VALUES (?, ?, ?)`

	if _, err := j.db.ExecContext(ctx, q, instanceID, state.String(), at.UnixMilli()); err != nil {
		return fmt.Errorf("recording state change for %q: %w", instanceID, err)
	}

	j.log().Debug("state change recorded", "instance", instanceID, "state", state.String())
	return nil
}

// History returns recorded transitions for an instance, newest first.
//
// A limit of zero or less selects the default of 50 entries; requests
// above 200 are clamped.
func (j *Journal) History(ctx context.Context, instanceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	const q = `
SELECT id, instance_id, state, at_ms
FROM state_changes
WHERE instance_id = ?
ORDER BY at_ms DESC, id DESC
LIMIT ?`

	rows, err := j.db.QueryContext(ctx, q, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history for %q: %w", instanceID, err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			state string
			atMS  int64
		)
		if err := rows.Scan(&e.ID, &e.InstanceID, &state, &atMS); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		// Rows only ever hold State.String() values; anything else is Unknown.
		e.State, _ = digital.ParseState(state)
		e.At = time.UnixMilli(atMS).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history rows: %w", err)
	}

	return entries, nil
}

// Prune deletes entries recorded before the given time and reports how
// many rows were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM state_changes WHERE at_ms < ?`

	res, err := j.db.ExecContext(ctx, q, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}

	if n > 0 {
		j.log().Info("journal pruned", "removed", n, "before", before.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// HealthCheck verifies the database is reachable.
func (j *Journal) HealthCheck(ctx context.Context) error {
	var result int
	if err := j.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("journal health check: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal database: %w", err)
	}
	return nil
}
