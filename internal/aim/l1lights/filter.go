package l1lights

// ShapeFilter rejects blobs whose proportions or tilt cannot be a light
// strip. A light passes when MinRatio < width/length < MaxRatio and
// Tilt < MaxTilt.
type ShapeFilter struct {
	MinRatio float64
	MaxRatio float64
	MaxTilt  float64 // degrees
}

// DefaultShapeFilter returns the reference light shape limits.
func DefaultShapeFilter() ShapeFilter {
	return ShapeFilter{MinRatio: 0.1, MaxRatio: 0.4, MaxTilt: 40}
}

// Accept reports whether l passes the filter.
func (f ShapeFilter) Accept(l Light) bool {
	ratio := l.Width / (l.Length + 1e-5)
	return ratio > f.MinRatio && ratio < f.MaxRatio && l.Tilt < f.MaxTilt
}

// SelectColor returns the lights of the given colour, in input order.
func SelectColor(lights []Light, color Color) []Light {
	out := make([]Light, 0, len(lights))
	for _, l := range lights {
		if l.Color == color {
			out = append(out, l)
		}
	}
	return out
}

// Filter returns the lights that pass f, in input order.
func (f ShapeFilter) Filter(lights []Light) []Light {
	out := make([]Light, 0, len(lights))
	for _, l := range lights {
		if f.Accept(l) {
			out = append(out, l)
		}
	}
	return out
}
