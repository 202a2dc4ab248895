package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

// Monitor is a monitored target together with its last known state.
type Monitor struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Target        string         `json:"url"`
	Type          checker.Type   `json:"type"`
	Status        checker.Status `json:"status"`
	ResponseMs    int64          `json:"response_time"`
	LastCheckedAt *time.Time     `json:"last_checked"`
	Paused        bool           `json:"paused"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MonitorSpec holds the user-editable fields of a monitor.
type MonitorSpec struct {
	Name   string
	Target string
	Type   checker.Type
}

func (s MonitorSpec) normalize() (MonitorSpec, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Target = strings.TrimSpace(s.Target)
	if s.Name == "" {
		return s, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.Target == "" {
		return s, fmt.Errorf("%w: target is required", ErrInvalid)
	}
	s.Type, _ = checker.ParseType(string(s.Type))
	return s, nil
}

// CheckResult is a completed probe to be persisted for a monitor.
type CheckResult struct {
	MonitorID  int64
	Status     checker.Status
	ResponseMs int64
	Error      string
	CheckedAt  time.Time
}

// CheckRecord is a stored, immutable check result.
type CheckRecord struct {
	ID         int64          `json:"id"`
	MonitorID  int64          `json:"monitor_id"`
	Status     checker.Status `json:"status"`
	ResponseMs int64          `json:"response_time"`
	Error      string         `json:"error_message,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
}

const monitorColumns = `id, name, target, type, status, response_ms, last_checked_at, paused, created_at`

// AddMonitor creates a monitor in the unknown state. It returns ErrDuplicate
// when another monitor has the same target and type.
func (d *DB) AddMonitor(ctx context.Context, spec MonitorSpec) (Monitor, error) {
	spec, err := spec.normalize()
	if err != nil {
		return Monitor{}, err
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO monitors (name, target, type, created_at) VALUES (?, ?, ?, ?)`,
		spec.Name, spec.Target, string(spec.Type), formatTime(d.now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Monitor{}, ErrDuplicate
		}
		return Monitor{}, fmt.Errorf("inserting monitor %q: %w", spec.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Monitor{}, fmt.Errorf("reading monitor id: %w", err)
	}
	return d.GetMonitor(ctx, id)
}

// GetMonitor returns a monitor by id or ErrNotFound.
func (d *DB) GetMonitor(ctx context.Context, id int64) (Monitor, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, id)
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Monitor{}, ErrNotFound
	}
	if err != nil {
		return Monitor{}, fmt.Errorf("querying monitor %d: %w", id, err)
	}
	return *m, nil
}

// ListMonitors returns every monitor ordered by id.
func (d *DB) ListMonitors(ctx context.Context) ([]Monitor, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+monitorColumns+` FROM monitors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying monitors: %w", err)
	}
	defer rows.Close()

	monitors := []Monitor{}
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning monitor row: %w", err)
		}
		monitors = append(monitors, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating monitor rows: %w", err)
	}
	return monitors, nil
}

// UpdateMonitor edits the name, target and type of a monitor.
func (d *DB) UpdateMonitor(ctx context.Context, id int64, spec MonitorSpec) (Monitor, error) {
	spec, err := spec.normalize()
	if err != nil {
		return Monitor{}, err
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE monitors SET name = ?, target = ?, type = ? WHERE id = ?`,
		spec.Name, spec.Target, string(spec.Type), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Monitor{}, ErrDuplicate
		}
		return Monitor{}, fmt.Errorf("updating monitor %d: %w", id, err)
	}
	if err := expectRow(res, id); err != nil {
		return Monitor{}, err
	}
	return d.GetMonitor(ctx, id)
}

// SetPaused pauses or resumes a monitor.
func (d *DB) SetPaused(ctx context.Context, id int64, paused bool) error {
	res, err := d.db.ExecContext(ctx, `UPDATE monitors SET paused = ? WHERE id = ?`, paused, id)
	if err != nil {
		return fmt.Errorf("pausing monitor %d: %w", id, err)
	}
	return expectRow(res, id)
}

// DeleteMonitor removes a monitor and, through the foreign key cascade, all
// of its check records.
func (d *DB) DeleteMonitor(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting monitor %d: %w", id, err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("monitor %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMonitor(row scanner) (*Monitor, error) {
	var (
		m                      Monitor
		typ, status, createdAt string
		lastChecked            sql.NullString
	)
	err := row.Scan(&m.ID, &m.Name, &m.Target, &typ, &status, &m.ResponseMs, &lastChecked, &m.Paused, &createdAt)
	if err != nil {
		return nil, err
	}
	m.Type, _ = checker.ParseType(typ)
	m.Status = checker.Status(status)
	if lastChecked.Valid {
		t, err := parseTime(lastChecked.String)
		if err != nil {
			return nil, err
		}
		m.LastCheckedAt = &t
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}
