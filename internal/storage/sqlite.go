package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

const schema = `
CREATE TABLE IF NOT EXISTS monitors (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT    NOT NULL,
    target          TEXT    NOT NULL,
    type            TEXT    NOT NULL DEFAULT 'http',
    status          TEXT    NOT NULL DEFAULT 'unknown' CHECK(status IN ('unknown', 'up', 'slow', 'down')),
    response_ms     INTEGER NOT NULL DEFAULT 0,
    last_checked_at TEXT,
    paused          INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT    NOT NULL,
    UNIQUE(target, type)
);

CREATE TABLE IF NOT EXISTS checks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    monitor_id  INTEGER NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
    status      TEXT    NOT NULL CHECK(status IN ('up', 'slow', 'down')),
    response_ms INTEGER NOT NULL,
    error       TEXT,
    checked_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_checks_monitor_checked ON checks(monitor_id, checked_at DESC);
`

// timeLayout is fixed width so that lexical order of stored timestamps
// matches chronological order. All timestamps are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var (
	// ErrNotFound is returned when a monitor does not exist.
	ErrNotFound = errors.New("monitor not found")
	// ErrDuplicate is returned when a monitor with the same target and type exists.
	ErrDuplicate = errors.New("monitor with this target and type already exists")
	// ErrInvalid is returned when a monitor is missing required fields.
	ErrInvalid = errors.New("invalid monitor")
)

// DB wraps a SQLite database.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	// One connection: SQLite serialises writers anyway, per-connection
	// pragmas (foreign_keys) stay in effect, and ":memory:" stays a single
	// database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// WriteCheckResult atomically updates the monitor's live fields and appends
// a check record. It returns ErrNotFound, and writes nothing, when the
// monitor has been deleted.
func (d *DB) WriteCheckResult(ctx context.Context, r CheckResult) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = d.now()
	}
	checkedAt := formatTime(r.CheckedAt)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning check write for monitor %d: %w", r.MonitorID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE monitors SET status = ?, response_ms = ?, last_checked_at = ? WHERE id = ?`,
		string(r.Status), r.ResponseMs, checkedAt, r.MonitorID,
	)
	if err != nil {
		return fmt.Errorf("updating monitor %d: %w", r.MonitorID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("updating monitor %d: %w", r.MonitorID, err)
	} else if n == 0 {
		return fmt.Errorf("writing check for monitor %d: %w", r.MonitorID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checks (monitor_id, status, response_ms, error, checked_at) VALUES (?, ?, ?, ?, ?)`,
		r.MonitorID, string(r.Status), r.ResponseMs, nullString(r.Error), checkedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting check for monitor %d: %w", r.MonitorID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing check for monitor %d: %w", r.MonitorID, err)
	}
	return nil
}

// History returns check records for a monitor, most recent first, plus the
// total number of records.
func (d *DB) History(ctx context.Context, monitorID int64, limit, offset int) ([]CheckRecord, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checks WHERE monitor_id = ?`, monitorID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting checks for monitor %d: %w", monitorID, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, monitor_id, status, response_ms, error, checked_at FROM checks
		 WHERE monitor_id = ? ORDER BY checked_at DESC, id DESC LIMIT ? OFFSET ?`,
		monitorID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for monitor %d: %w", monitorID, err)
	}
	defer rows.Close()

	checks, err := scanChecks(rows)
	if err != nil {
		return nil, 0, err
	}
	return checks, total, nil
}

// ChecksSince returns check records newer than since, oldest first. A nil
// monitorID selects records of every monitor.
func (d *DB) ChecksSince(ctx context.Context, monitorID *int64, since time.Time) ([]CheckRecord, error) {
	query := `SELECT id, monitor_id, status, response_ms, error, checked_at FROM checks WHERE checked_at > ?`
	args := []any{formatTime(since)}
	if monitorID != nil {
		query += ` AND monitor_id = ?`
		args = append(args, *monitorID)
	}
	query += ` ORDER BY checked_at ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying checks since %s: %w", since.UTC().Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanChecks(rows)
}

// UptimeCounts returns the number of up checks and of all checks for a
// monitor over the trailing window.
func (d *DB) UptimeCounts(ctx context.Context, monitorID int64, window time.Duration) (up, total int, err error) {
	var upCount sql.NullInt64
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END)
		FROM checks
		WHERE monitor_id = ? AND checked_at > ?
	`, monitorID, formatTime(d.now().Add(-window))).Scan(&total, &upCount)
	if err != nil {
		return 0, 0, fmt.Errorf("calculating uptime for monitor %d: %w", monitorID, err)
	}
	return int(upCount.Int64), total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheck(row scanner) (*CheckRecord, error) {
	var c CheckRecord
	var status, checkedAt string
	var errText sql.NullString
	if err := row.Scan(&c.ID, &c.MonitorID, &status, &c.ResponseMs, &errText, &checkedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(checkedAt)
	if err != nil {
		return nil, err
	}
	c.Status = checker.Status(status)
	c.Error = errText.String
	c.CheckedAt = t
	return &c, nil
}

func scanChecks(rows *sql.Rows) ([]CheckRecord, error) {
	checks := []CheckRecord{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning check row: %w", err)
		}
		checks = append(checks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check rows: %w", err)
	}
	return checks, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Fallback for timestamps written by other tools.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
