package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session is one pipeline run.
type Session struct {
	ID         string     `json:"session_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Source     string     `json:"source"`
	Color      string     `json:"color"`
	ConfigJSON string     `json:"config_json"`
	Frames     int        `json:"frame_count"`
	Matched    int        `json:"matched_count"`
}

// StartSession inserts a new session and returns it with a fresh ID.
// Empty Color and ConfigJSON take the column defaults.
func (db *DB) StartSession(ctx context.Context, s Session) (Session, error) {
	s.ID = uuid.NewString()
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if s.Color == "" {
		s.Color = "red"
	}
	if s.ConfigJSON == "" {
		s.ConfigJSON = "{}"
	}
	s.EndedAt = nil
	s.Frames, s.Matched = 0, 0

	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_ns, source, color, config_json)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.Source, s.Color, s.ConfigJSON)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// EndSession stamps the end time and final counters on a session.
func (db *DB) EndSession(ctx context.Context, id string, endedAt time.Time, frames, matched int) error {
	res, err := db.ExecContext(ctx, `
		UPDATE sessions SET ended_ns = ?, frame_count = ?, matched_count = ?
		WHERE session_id = ?`,
		endedAt.UnixNano(), frames, matched, id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("end session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

const sessionColumns = `session_id, started_ns, ended_ns, source, color, config_json, frame_count, matched_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := r.Scan(&s.ID, &started, &ended, &s.Source, &s.Color, &s.ConfigJSON, &s.Frames, &s.Matched); err != nil {
		return Session{}, err
	}
	s.StartedAt = time.Unix(0, started)
	if ended.Valid {
		t := time.Unix(0, ended.Int64)
		s.EndedAt = &t
	}
	return s, nil
}

// GetSession loads one session by ID.
func (db *DB) GetSession(ctx context.Context, id string) (Session, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// ListSessions returns sessions newest first. limit <= 0 returns all.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_ns DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, through the foreign key, its frames.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}
