package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndListFrames(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s, err := db.StartSession(ctx, Session{})
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0)
	want := []FrameRow{
		{SessionID: s.ID, Frame: 1, Timestamp: ts, Lights: 3, Plates: 1, State: "DETECTING",
			Confirm: 1, Matched: true, EpisodeID: "ep-1", HasPlate: true, PlateSize: "SMALL",
			PlateX: 300, PlateY: 360, PredX: 300, PredY: 360},
		{SessionID: s.ID, Frame: 2, Timestamp: ts.Add(time.Second / 30), Lights: 1, State: "LOST",
			PredX: 0, PredY: 0},
	}
	require.NoError(t, db.InsertFrames(ctx, want))

	got, err := db.ListFrames(ctx, s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertFrameRequiresSession(t *testing.T) {
	db := setupTestDB(t)
	err := db.InsertFrame(context.Background(), FrameRow{SessionID: "nope", Frame: 1, State: "LOST"})
	assert.Error(t, err)
}

func TestInsertFramesRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s, err := db.StartSession(ctx, Session{})
	require.NoError(t, err)

	rows := []FrameRow{
		{SessionID: s.ID, Frame: 1, State: "LOST"},
		{SessionID: s.ID, Frame: 1, State: "LOST"}, // duplicate key
	}
	require.Error(t, db.InsertFrames(ctx, rows))

	got, err := db.ListFrames(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStateCountsAndEpisodes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s, err := db.StartSession(ctx, Session{})
	require.NoError(t, err)

	rows := []FrameRow{
		{SessionID: s.ID, Frame: 1, State: "DETECTING", EpisodeID: "a"},
		{SessionID: s.ID, Frame: 2, State: "TRACKING", EpisodeID: "a"},
		{SessionID: s.ID, Frame: 3, State: "LOST"},
		{SessionID: s.ID, Frame: 4, State: "DETECTING", EpisodeID: "b"},
		{SessionID: s.ID, Frame: 5, State: "TRACKING", EpisodeID: "b"},
	}
	require.NoError(t, db.InsertFrames(ctx, rows))

	counts, err := db.StateCounts(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"DETECTING": 2, "TRACKING": 2, "LOST": 1}, counts)

	eps, err := db.Episodes(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, eps)
}
