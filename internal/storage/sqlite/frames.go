package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FrameRow is one persisted tracker snapshot.
type FrameRow struct {
	SessionID string    `json:"session_id"`
	Frame     uint64    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
	Lights    int       `json:"lights"`
	Plates    int       `json:"plates"`
	State     string    `json:"state"`
	Confirm   int       `json:"confirm_count"`
	Miss      int       `json:"miss_count"`
	Matched   bool      `json:"matched"`
	EpisodeID string    `json:"episode_id,omitempty"`

	// Plate fields are only meaningful when HasPlate is true.
	HasPlate  bool    `json:"has_plate"`
	PlateSize string  `json:"plate_size,omitempty"`
	PlateX    float64 `json:"plate_x"`
	PlateY    float64 `json:"plate_y"`

	PredX float64 `json:"pred_x"`
	PredY float64 `json:"pred_y"`
	VelX  float64 `json:"vel_x"`
	VelY  float64 `json:"vel_y"`
}

const insertFrameSQL = `
	INSERT INTO frames (
		session_id, frame, timestamp_ns, lights, plates, state,
		confirm_count, miss_count, matched, episode_id, plate_size,
		plate_x, plate_y, pred_x, pred_y, vel_x, vel_y
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFrame(ctx context.Context, ex execer, f FrameRow) error {
	var px, py sql.NullFloat64
	if f.HasPlate {
		px = sql.NullFloat64{Float64: f.PlateX, Valid: true}
		py = sql.NullFloat64{Float64: f.PlateY, Valid: true}
	}
	_, err := ex.ExecContext(ctx, insertFrameSQL,
		f.SessionID, int64(f.Frame), f.Timestamp.UnixNano(), f.Lights, f.Plates, f.State,
		f.Confirm, f.Miss, f.Matched, f.EpisodeID, f.PlateSize,
		px, py, f.PredX, f.PredY, f.VelX, f.VelY)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.Frame, err)
	}
	return nil
}

// InsertFrame stores one frame row.
func (db *DB) InsertFrame(ctx context.Context, f FrameRow) error {
	return insertFrame(ctx, db, f)
}

// InsertFrames stores rows in a single transaction.
func (db *DB) InsertFrames(ctx context.Context, rows []FrameRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, f := range rows {
		if err := insertFrame(ctx, tx, f); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListFrames returns a session's frames in frame order.
func (db *DB) ListFrames(ctx context.Context, sessionID string) ([]FrameRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, frame, timestamp_ns, lights, plates, state,
		       confirm_count, miss_count, matched, episode_id, plate_size,
		       plate_x, plate_y, pred_x, pred_y, vel_x, vel_y
		FROM frames WHERE session_id = ? ORDER BY frame`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRow
	for rows.Next() {
		var (
			f      FrameRow
			frame  int64
			ts     int64
			px, py sql.NullFloat64
		)
		if err := rows.Scan(&f.SessionID, &frame, &ts, &f.Lights, &f.Plates, &f.State,
			&f.Confirm, &f.Miss, &f.Matched, &f.EpisodeID, &f.PlateSize,
			&px, &py, &f.PredX, &f.PredY, &f.VelX, &f.VelY); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Frame = uint64(frame)
		f.Timestamp = time.Unix(0, ts)
		f.HasPlate = px.Valid && py.Valid
		f.PlateX, f.PlateY = px.Float64, py.Float64
		out = append(out, f)
	}
	return out, rows.Err()
}

// StateCounts returns how many frames of a session ended in each tracker
// state.
func (db *DB) StateCounts(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM frames WHERE session_id = ? GROUP BY state`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("state counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		out[state] = n
	}
	return out, rows.Err()
}

// Episodes returns the distinct tracking episode IDs of a session in the
// order they first appear.
func (db *DB) Episodes(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT episode_id FROM frames
		WHERE session_id = ? AND episode_id != ''
		GROUP BY episode_id ORDER BY MIN(frame)`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("episodes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
