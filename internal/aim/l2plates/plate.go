package l2plates

import (
	"github.com/banshee-data/autoaim/internal/aim/l1lights"
)

// Size is the plate size classification derived from light spacing.
type Size int

const (
	Invalid Size = iota
	Small
	Large
)

func (s Size) String() string {
	switch s {
	case Small:
		return "SMALL"
	case Large:
		return "LARGE"
	default:
		return "INVALID"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// as Invalid.
func (s *Size) UnmarshalText(b []byte) error {
	switch string(b) {
	case "SMALL":
		*s = Small
	case "LARGE":
		*s = Large
	default:
		*s = Invalid
	}
	return nil
}

// Vertex indices into Plate.Vertices.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Plate is a candidate target plate formed by two flanking lights.
type Plate struct {
	Left  *l1lights.Light
	Right *l1lights.Light

	// Center is the componentwise average of the two light centres.
	Center l1lights.Point
	// Vertices are ordered top-left, top-right, bottom-right, bottom-left.
	Vertices [4]l1lights.Point
	Size     Size
}

// NewPlate builds a plate from two lights given in any order. The lights'
// top/bottom points are re-sorted by image y and the pair by the tops'
// image x, so the vertex order never depends on input order.
func NewPlate(a, b *l1lights.Light, size Size) Plate {
	p := Plate{Left: a, Right: b, Size: size}
	if a == nil || b == nil {
		return p
	}
	p.Center = l1lights.Midpoint(a.Center, b.Center)

	leftTop, leftBottom := a.Top, a.Bottom
	rightTop, rightBottom := b.Top, b.Bottom
	if leftTop.Y > leftBottom.Y {
		leftTop, leftBottom = leftBottom, leftTop
	}
	if rightTop.Y > rightBottom.Y {
		rightTop, rightBottom = rightBottom, rightTop
	}
	if leftTop.X > rightTop.X {
		leftTop, rightTop = rightTop, leftTop
		leftBottom, rightBottom = rightBottom, leftBottom
		p.Left, p.Right = b, a
	}

	p.Vertices = [4]l1lights.Point{leftTop, rightTop, rightBottom, leftBottom}
	return p
}

// Valid reports whether the plate references two lights and carries a
// usable size classification.
func (p Plate) Valid() bool {
	return p.Left != nil && p.Right != nil && p.Size != Invalid
}

// Width is the horizontal extent of the top edge in pixels.
func (p Plate) Width() float64 {
	return p.Vertices[TopRight].X - p.Vertices[TopLeft].X
}

// Height is the vertical extent of the right edge in pixels.
func (p Plate) Height() float64 {
	return p.Vertices[BottomRight].Y - p.Vertices[TopRight].Y
}
