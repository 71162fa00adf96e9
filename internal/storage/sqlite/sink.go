package sqlite

import (
	"context"
	"sync"

	"github.com/banshee-data/autoaim/internal/aim/pipeline"
)

// FrameSink persists pipeline results for one session. Rows are buffered
// and written in batches of BatchSize; call Flush when the run ends.
type FrameSink struct {
	db        *DB
	sessionID string
	batchSize int

	mu      sync.Mutex
	pending []FrameRow
}

var _ pipeline.PersistenceSink = (*FrameSink)(nil)

// NewFrameSink binds a sink to sessionID. batchSize <= 1 writes every frame
// immediately.
func NewFrameSink(db *DB, sessionID string, batchSize int) *FrameSink {
	if batchSize < 1 {
		batchSize = 1
	}
	return &FrameSink{db: db, sessionID: sessionID, batchSize: batchSize}
}

// SessionID returns the session rows are written under.
func (s *FrameSink) SessionID() string {
	return s.sessionID
}

// PersistFrame implements pipeline.PersistenceSink.
func (s *FrameSink) PersistFrame(ctx context.Context, r *pipeline.FrameResult) error {
	row := RowFromResult(s.sessionID, r)

	s.mu.Lock()
	s.pending = append(s.pending, row)
	full := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if !full {
		return nil
	}
	return s.Flush(ctx)
}

// Flush writes any buffered rows. On failure the rows are dropped so one
// bad batch cannot wedge the sink.
func (s *FrameSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	rows := s.pending
	s.pending = nil
	s.mu.Unlock()

	switch len(rows) {
	case 0:
		return nil
	case 1:
		return s.db.InsertFrame(ctx, rows[0])
	default:
		return s.db.InsertFrames(ctx, rows)
	}
}

// RowFromResult flattens a pipeline result into a FrameRow.
func RowFromResult(sessionID string, r *pipeline.FrameResult) FrameRow {
	snap := r.Snapshot
	row := FrameRow{
		SessionID: sessionID,
		Frame:     r.Frame,
		Timestamp: r.Timestamp,
		Lights:    r.Lights,
		Plates:    r.Plates,
		State:     snap.State.String(),
		Confirm:   snap.Confirm,
		Miss:      snap.Miss,
		Matched:   snap.Matched,
		EpisodeID: snap.EpisodeID,
		HasPlate:  snap.HasPlate,
		PredX:     snap.Predicted.X,
		PredY:     snap.Predicted.Y,
		VelX:      snap.Velocity.X,
		VelY:      snap.Velocity.Y,
	}
	if snap.HasPlate {
		row.PlateSize = snap.Plate.Size.String()
		row.PlateX = snap.Plate.Center.X
		row.PlateY = snap.Plate.Center.Y
	}
	return row
}
