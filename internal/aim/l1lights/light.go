package l1lights

import (
	"fmt"
	"math"
	"strings"
)

// Point is an image-plane position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p*k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Midpoint returns the componentwise average of p and q.
func Midpoint(p, q Point) Point { return p.Add(q).Scale(0.5) }

// Color is the colour label assigned to a light by the detector.
type Color int

const (
	Red Color = iota
	Blue
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// ParseColor maps "red"/"blue" (case-insensitive) to a Color.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return Red, nil
	case "blue":
		return Blue, nil
	default:
		return 0, fmt.Errorf("unknown light color %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Light is one detected light strip.
//
// Tilt is the strip's deviation from vertical in degrees, in [0, 90).
// Length >= Width is not enforced here; shape filtering happens before
// pairing.
type Light struct {
	Center Point   `json:"center"`
	Top    Point   `json:"top"`
	Bottom Point   `json:"bottom"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Tilt   float64 `json:"tilt"`
	Color  Color   `json:"color"`
}

// maxTilt is the largest representable tilt, just below a horizontal strip.
var maxTilt = math.Nextafter(90, 0)

// NewLight builds a Light from the two strip endpoints and its width.
// The endpoints may be given in either order; Top is always the one with
// the smaller image y.
func NewLight(top, bottom Point, width float64, color Color) Light {
	if top.Y > bottom.Y {
		top, bottom = bottom, top
	}
	d := bottom.Sub(top)
	return Light{
		Center: Midpoint(top, bottom),
		Top:    top,
		Bottom: bottom,
		Length: top.Dist(bottom),
		Width:  width,
		Tilt:   TiltDegrees(d.X, d.Y),
		Color:  color,
	}
}

// TiltDegrees returns the deviation of the vector (dx, dy) from the image
// vertical, in degrees within [0, 90).
func TiltDegrees(dx, dy float64) float64 {
	tilt := math.Atan2(math.Abs(dx), math.Abs(dy)) * 180 / math.Pi
	if tilt >= 90 {
		return maxTilt
	}
	return tilt
}
