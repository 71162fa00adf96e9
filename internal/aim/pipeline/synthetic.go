package pipeline

import (
	"time"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
)

// SyntheticScene describes one plate moving at constant velocity, for
// replay tests and demo frame files.
type SyntheticScene struct {
	Frames      int
	Start       l1lights.Point // plate centre at frame 0
	Velocity    l1lights.Point // pixels per frame
	LightLength float64
	LightWidth  float64
	Spacing     float64 // light centre-to-centre distance in pixels
	Color       l1lights.Color
	Interval    time.Duration
	StartTime   time.Time

	// Dropped frames carry no plate lights.
	Dropped map[int]bool
	// Distractor adds a light of the opposite colour beside the plate.
	Distractor bool
}

// DefaultSyntheticScene is a red small plate crossing the image left to
// right at 4 px per frame.
func DefaultSyntheticScene() SyntheticScene {
	return SyntheticScene{
		Frames:      120,
		Start:       l1lights.Point{X: 300, Y: 360},
		Velocity:    l1lights.Point{X: 4, Y: 0},
		LightLength: 50,
		LightWidth:  10,
		Spacing:     120,
		Color:       l1lights.Red,
		Interval:    time.Second / 30,
		StartTime:   time.Unix(1700000000, 0),
		Distractor:  true,
	}
}

// Generate renders the scene into frames numbered from 1.
func (s SyntheticScene) Generate() []Frame {
	frames := make([]Frame, 0, s.Frames)
	half := s.LightLength / 2
	other := l1lights.Blue
	if s.Color == l1lights.Blue {
		other = l1lights.Red
	}

	for i := 0; i < s.Frames; i++ {
		f := Frame{Number: uint64(i + 1)}
		if !s.StartTime.IsZero() {
			f.Timestamp = s.StartTime.Add(time.Duration(i) * s.Interval)
		}
		c := s.Start.Add(s.Velocity.Scale(float64(i)))

		if !s.Dropped[i] {
			for _, dx := range []float64{-s.Spacing / 2, s.Spacing / 2} {
				f.Lights = append(f.Lights, l1lights.NewLight(
					l1lights.Point{X: c.X + dx, Y: c.Y - half},
					l1lights.Point{X: c.X + dx, Y: c.Y + half},
					s.LightWidth, s.Color,
				))
			}
		}
		if s.Distractor {
			x := c.X + s.Spacing
			f.Lights = append(f.Lights, l1lights.NewLight(
				l1lights.Point{X: x, Y: c.Y - half},
				l1lights.Point{X: x, Y: c.Y + half},
				s.LightWidth, other,
			))
		}
		frames = append(frames, f)
	}
	return frames
}
