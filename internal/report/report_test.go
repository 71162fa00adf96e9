package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l2plates"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/storage/sqlite"
)

type collectSink struct{ results []*pipeline.FrameResult }

func (c *collectSink) PublishFrame(r *pipeline.FrameResult) error {
	c.results = append(c.results, r)
	return nil
}

func syntheticSamples(t *testing.T) []Sample {
	t.Helper()
	scene := pipeline.DefaultSyntheticScene()
	scene.Frames = 60
	scene.Dropped = map[int]bool{30: true, 31: true}

	sink := &collectSink{}
	p, err := pipeline.New(pipeline.Config{
		Source:     pipeline.NewSliceSource(scene.Generate()),
		Matcher:    l2plates.NewMatcher(l2plates.DefaultMatcherConfig()),
		Tracker:    l4tracker.NewTracker(l4tracker.DefaultTrackerConfig()),
		Publishers: []pipeline.PublishSink{sink},
	})
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	return SamplesFromResults(sink.results)
}

func TestSummarise(t *testing.T) {
	t.Parallel()

	sum := Summarise(syntheticSamples(t))
	assert.Equal(t, 60, sum.Frames)
	assert.Equal(t, 58, sum.Matched)
	assert.Equal(t, 1, sum.Episodes)
	assert.Equal(t, 2, sum.StateFrames["DETECTING"])
	assert.Equal(t, 58, sum.StateFrames["TRACKING"], "a two-frame gap stays below the loss threshold")
	assert.Less(t, sum.MeanResidual, 10.0)
	assert.GreaterOrEqual(t, sum.MaxResidual, sum.MeanResidual)
	assert.Equal(t, []string{"DETECTING", "TRACKING"}, SortedStates(sum))
}

func TestSummariseEmpty(t *testing.T) {
	t.Parallel()

	sum := Summarise(nil)
	assert.Zero(t, sum.Frames)
	assert.Zero(t, sum.MeanResidual)
	assert.Empty(t, SortedStates(sum))
}

func TestSortedStatesKeepsUnknownLast(t *testing.T) {
	t.Parallel()

	sum := Summary{StateFrames: map[string]int{"zeta": 1, "TRACKING": 2, "alpha": 1, "LOST": 0}}
	assert.Equal(t, []string{"TRACKING", "alpha", "zeta"}, SortedStates(sum))
}

func TestSamplesFromRows(t *testing.T) {
	t.Parallel()

	rows := []sqlite.FrameRow{
		{Frame: 4, State: "TRACKING", Matched: true, HasPlate: true, PlateX: 10, PlateY: 20, PredX: 11, PredY: 21, EpisodeID: "e"},
		{Frame: 5, State: "LOST"},
	}
	got := SamplesFromRows(rows)
	require.Len(t, got, 2)
	assert.Equal(t, l1lights.Point{X: 10, Y: 20}, got[0].Measured)
	assert.Equal(t, l1lights.Point{X: 11, Y: 21}, got[0].Estimate)
	assert.Equal(t, "e", got[0].EpisodeID)
	assert.False(t, got[1].HasPlate)
}

func TestSamplesFromResultsSkipsNil(t *testing.T) {
	t.Parallel()

	got := SamplesFromResults([]*pipeline.FrameResult{nil, {Frame: 2}})
	require.Len(t, got, 1)
	assert.Equal(t, "LOST", got[0].State)
}

func TestTrajectoryPlot(t *testing.T) {
	t.Parallel()

	_, err := TrajectoryPlot(nil, "empty")
	assert.ErrorIs(t, err, ErrNoSamples)

	p, err := TrajectoryPlot(syntheticSamples(t), "synthetic")
	require.NoError(t, err)
	assert.Equal(t, "synthetic", p.Title.Text)
	assert.GreaterOrEqual(t, p.X.Max, 300.0+4*59-1)
	assert.LessOrEqual(t, p.Y.Max, 0.0, "image y is plotted negated")
}

func TestWriteTrajectoryPNG(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trajectory.png")
	require.NoError(t, WriteTrajectoryPNG(path, syntheticSamples(t), "synthetic"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")))
}

func TestWriteTimelineHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	assert.ErrorIs(t, WriteTimelineHTML(&buf, nil, "x"), ErrNoSamples)

	require.NoError(t, WriteTimelineHTML(&buf, syntheticSamples(t), "Session timeline"))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "renders a full page")
	assert.Contains(t, html, "Session timeline")
	assert.Contains(t, html, "TEMP_LOST")
	assert.Contains(t, html, "Frames per state")
}

func TestWriteTimelineFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "timeline.html")
	require.NoError(t, WriteTimelineFile(path, syntheticSamples(t), "t"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, WriteTimelineFile(filepath.Join(t.TempDir(), "missing", "x.html"), syntheticSamples(t), "t"))
}
