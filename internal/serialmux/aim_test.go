package serialmux

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/config"
)

var testCamera = Camera{Fx: 1000, Fy: 1000, Cx: 640, Cy: 360}

func TestCameraFromTuning(t *testing.T) {
	t.Parallel()
	assert.Equal(t, testCamera, CameraFromTuning(config.EmptyTuningConfig()))
}

func TestBearing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		p          l1lights.Point
		yaw, pitch float64
	}{
		{"optical centre", l1lights.Point{X: 640, Y: 360}, 0, 0},
		{"right 45", l1lights.Point{X: 1640, Y: 360}, 45, 0},
		{"left 45", l1lights.Point{X: -360, Y: 360}, -45, 0},
		{"up 45", l1lights.Point{X: 640, Y: -640}, 0, 45},
		{"down 45", l1lights.Point{X: 640, Y: 1360}, 0, -45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			yaw, pitch := testCamera.Bearing(tt.p)
			assert.InDelta(t, tt.yaw, yaw, 1e-9)
			assert.InDelta(t, tt.pitch, pitch, 1e-9)
		})
	}
}

func TestAimCommandWireFormat(t *testing.T) {
	t.Parallel()

	cmd := AimCommand{State: l4tracker.Tracking, X: 612.44, Y: 355, Yaw: -1.60321, Pitch: 0.2864}
	assert.Equal(t, "A,TRACKING,612.4,355.0,-1.603,0.286", cmd.String())

	got, err := ParseAimCommand(cmd.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, l4tracker.Tracking, got.State)
	assert.InDelta(t, 612.4, got.X, 1e-9)
	assert.InDelta(t, -1.603, got.Yaw, 1e-9)
}

func TestParseAimCommandErrors(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		"",
		"B,TRACKING,1,2,3,4",
		"A,TRACKING,1,2,3",
		"A,FLYING,1,2,3,4",
		"A,LOST,1,two,3,4",
	} {
		_, err := ParseAimCommand(line)
		assert.Error(t, err, line)
	}
}

func TestCommandForSnapshot(t *testing.T) {
	t.Parallel()

	lost := testCamera.CommandForSnapshot(l4tracker.Snapshot{State: l4tracker.Lost, Predicted: l1lights.Point{X: 9, Y: 9}})
	assert.Equal(t, "A,LOST,640.0,360.0,0.000,0.000", lost.String())

	tracking := testCamera.CommandForSnapshot(l4tracker.Snapshot{
		State:     l4tracker.TempLost,
		Predicted: l1lights.Point{X: 1640, Y: 360},
	})
	assert.Equal(t, l4tracker.TempLost, tracking.State)
	assert.InDelta(t, 45, tracking.Yaw, 1e-9)
	assert.Equal(t, 1640.0, tracking.X)
}

type recordingCommander struct {
	lines []string
	err   error
}

func (r *recordingCommander) SendCommand(s string) error {
	r.lines = append(r.lines, s)
	return r.err
}

func TestAimPublisher(t *testing.T) {
	t.Parallel()

	link := &recordingCommander{}
	pub := NewAimPublisher(link, testCamera)
	res := &pipeline.FrameResult{Frame: 3, Snapshot: l4tracker.Snapshot{
		State: l4tracker.Detecting, Predicted: l1lights.Point{X: 640, Y: 360},
	}}
	require.NoError(t, pub.PublishFrame(res))
	assert.Equal(t, []string{"A,DETECTING,640.0,360.0,0.000,0.000"}, link.lines)

	link.err = errors.New("unplugged")
	err := pub.PublishFrame(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 3")
	assert.ErrorIs(t, err, link.err)
}
