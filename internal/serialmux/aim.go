package serialmux

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/config"
)

// Camera holds pinhole intrinsics in pixels.
type Camera struct {
	Fx, Fy float64
	Cx, Cy float64
}

// CameraFromTuning reads intrinsics from cfg.
func CameraFromTuning(cfg *config.TuningConfig) Camera {
	return Camera{
		Fx: cfg.GetCameraFx(),
		Fy: cfg.GetCameraFy(),
		Cx: cfg.GetCameraCx(),
		Cy: cfg.GetCameraCy(),
	}
}

// Bearing converts an image point to yaw (right positive) and pitch (up
// positive) in degrees.
func (c Camera) Bearing(p l1lights.Point) (yaw, pitch float64) {
	yaw = math.Atan2(p.X-c.Cx, c.Fx) * 180 / math.Pi
	pitch = math.Atan2(c.Cy-p.Y, c.Fy) * 180 / math.Pi
	return yaw, pitch
}

// AimCommand is one line on the aim link.
type AimCommand struct {
	State l4tracker.TrackerState
	X, Y  float64
	Yaw   float64
	Pitch float64
}

// String renders the wire form without the trailing newline:
// A,<state>,<x>,<y>,<yaw_deg>,<pitch_deg>.
func (a AimCommand) String() string {
	return fmt.Sprintf("A,%s,%.1f,%.1f,%.3f,%.3f", a.State, a.X, a.Y, a.Yaw, a.Pitch)
}

// ParseAimCommand decodes a line produced by AimCommand.String.
func ParseAimCommand(line string) (AimCommand, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 || fields[0] != "A" {
		return AimCommand{}, fmt.Errorf("aim line %q: want A plus 5 fields", line)
	}
	state, err := l4tracker.ParseTrackerState(fields[1])
	if err != nil {
		return AimCommand{}, fmt.Errorf("aim line %q: %w", line, err)
	}
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i+2], 64)
		if err != nil {
			return AimCommand{}, fmt.Errorf("aim line %q: field %d: %w", line, i+2, err)
		}
		vals[i] = v
	}
	return AimCommand{State: state, X: vals[0], Y: vals[1], Yaw: vals[2], Pitch: vals[3]}, nil
}

// CommandForSnapshot aims at the tracker's predicted position. When no
// target is held the command points at the optical centre.
func (c Camera) CommandForSnapshot(s l4tracker.Snapshot) AimCommand {
	target := l1lights.Point{X: c.Cx, Y: c.Cy}
	if s.State != l4tracker.Lost {
		target = s.Predicted
	}
	yaw, pitch := c.Bearing(target)
	return AimCommand{State: s.State, X: target.X, Y: target.Y, Yaw: yaw, Pitch: pitch}
}

// Commander is the write side of a link.
type Commander interface {
	SendCommand(string) error
}

// AimPublisher sends one aim line per frame result.
type AimPublisher struct {
	Link   Commander
	Camera Camera
}

var _ pipeline.PublishSink = (*AimPublisher)(nil)

// NewAimPublisher returns a publisher writing to link.
func NewAimPublisher(link Commander, cam Camera) *AimPublisher {
	return &AimPublisher{Link: link, Camera: cam}
}

// PublishFrame implements pipeline.PublishSink.
func (p *AimPublisher) PublishFrame(r *pipeline.FrameResult) error {
	cmd := p.Camera.CommandForSnapshot(r.Snapshot)
	if err := p.Link.SendCommand(cmd.String()); err != nil {
		return fmt.Errorf("send aim for frame %d: %w", r.Frame, err)
	}
	return nil
}
