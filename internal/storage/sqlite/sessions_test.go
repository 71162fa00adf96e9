package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndEndSession(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Unix(1700000000, 500)

	s, err := db.StartSession(ctx, Session{StartedAt: start, Source: "frames.jsonl", Color: "blue"})
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	require.NoError(t, err, "session IDs are UUIDs")

	got, err := db.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Nil(t, got.EndedAt)
	assert.Equal(t, "blue", got.Color)
	assert.Equal(t, "{}", got.ConfigJSON)

	end := start.Add(4 * time.Second)
	require.NoError(t, db.EndSession(ctx, s.ID, end, 120, 117))

	got, err = db.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(end))
	assert.Equal(t, 120, got.Frames)
	assert.Equal(t, 117, got.Matched)
}

func TestSessionDefaults(t *testing.T) {
	db := setupTestDB(t)
	s, err := db.StartSession(context.Background(), Session{})
	require.NoError(t, err)
	assert.Equal(t, "red", s.Color)
	assert.False(t, s.StartedAt.IsZero())
}

func TestSessionNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, db.EndSession(ctx, "missing", time.Now(), 0, 0), ErrSessionNotFound)
	assert.ErrorIs(t, db.DeleteSession(ctx, "missing"), ErrSessionNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := db.StartSession(ctx, Session{StartedAt: time.Unix(int64(1000+i), 0)})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	all, err := db.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	limited, err := db.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteSessionCascadesFrames(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s, err := db.StartSession(ctx, Session{})
	require.NoError(t, err)
	require.NoError(t, db.InsertFrame(ctx, FrameRow{SessionID: s.ID, Frame: 1, State: "LOST"}))

	require.NoError(t, db.DeleteSession(ctx, s.ID))
	frames, err := db.ListFrames(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, frames)
}
