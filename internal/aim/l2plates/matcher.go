package l2plates

import (
	"math"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/config"
)

// RejectReason names the first pairing filter a light pair failed.
type RejectReason int

const (
	Accepted RejectReason = iota
	RejectLengthRatio
	RejectSpacing
	RejectAngle
	RejectOrientation
	RejectAspect
	RejectOcclusion
)

func (r RejectReason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectLengthRatio:
		return "length_ratio"
	case RejectSpacing:
		return "spacing"
	case RejectAngle:
		return "angle"
	case RejectOrientation:
		return "orientation"
	case RejectAspect:
		return "aspect"
	case RejectOcclusion:
		return "occlusion"
	default:
		return "unknown"
	}
}

// MatcherConfig holds the pairing thresholds. Distances are normalised by
// the pair's average light length unless noted.
type MatcherConfig struct {
	ShapeFilterEnabled bool
	ShapeFilter        l1lights.ShapeFilter

	MinLightLengthRatio    float64 // min(len)/max(len) lower bound
	MinSmallCenterDistance float64
	MaxSmallCenterDistance float64
	MinLargeCenterDistance float64
	MaxLargeCenterDistance float64
	MaxAngleDiff           float64 // degrees
	MaxVerticalRatio       float64 // |dy| must not exceed |dx| * ratio
	MinAspect              float64
	MaxAspect              float64
	OcclusionMargin        float64 // pixels
}

// DefaultMatcherConfig returns the built-in reference thresholds.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfigFromTuning(config.EmptyTuningConfig())
}

// MatcherConfigFromTuning builds a MatcherConfig from a loaded TuningConfig.
func MatcherConfigFromTuning(cfg *config.TuningConfig) MatcherConfig {
	return MatcherConfig{
		ShapeFilterEnabled: cfg.GetLightFilter(),
		ShapeFilter: l1lights.ShapeFilter{
			MinRatio: cfg.GetLightMinRatio(),
			MaxRatio: cfg.GetLightMaxRatio(),
			MaxTilt:  cfg.GetLightMaxTilt(),
		},
		MinLightLengthRatio:    cfg.GetMinLightLengthRatio(),
		MinSmallCenterDistance: cfg.GetMinSmallCenterDistance(),
		MaxSmallCenterDistance: cfg.GetMaxSmallCenterDistance(),
		MinLargeCenterDistance: cfg.GetMinLargeCenterDistance(),
		MaxLargeCenterDistance: cfg.GetMaxLargeCenterDistance(),
		MaxAngleDiff:           cfg.GetMaxAngleDiff(),
		MaxVerticalRatio:       cfg.GetMaxVerticalRatio(),
		MinAspect:              cfg.GetMinAspect(),
		MaxAspect:              cfg.GetMaxAspect(),
		OcclusionMargin:        cfg.GetOcclusionMargin(),
	}
}

// DebugCollector receives per-pair decisions. It uses plain types so the
// debug package does not need to import this one.
type DebugCollector interface {
	IsEnabled() bool
	RecordPair(i, j int, size string, reason string)
}

// Matcher pairs lights into plate candidates. It holds no per-frame state.
type Matcher struct {
	Config         MatcherConfig
	DebugCollector DebugCollector
}

// NewMatcher creates a Matcher with the given configuration.
func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{Config: cfg}
}

// Match returns every light pair of the selected colour that survives all
// pairing filters. The same light may appear in more than one plate; no
// mutual exclusion is applied. Returned plates point into a slice owned by
// this call and are valid for the current frame only.
func (m *Matcher) Match(lights []l1lights.Light, color l1lights.Color) []Plate {
	kept := l1lights.SelectColor(lights, color)
	if m.Config.ShapeFilterEnabled {
		kept = m.Config.ShapeFilter.Filter(kept)
	}
	if len(kept) < 2 {
		return nil
	}

	debugOn := m.DebugCollector != nil && m.DebugCollector.IsEnabled()

	var plates []Plate
	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			size, reason := m.Config.classifyPair(kept, i, j)
			if debugOn {
				m.DebugCollector.RecordPair(i, j, size.String(), reason.String())
			}
			if reason != Accepted {
				continue
			}
			plates = append(plates, NewPlate(&kept[i], &kept[j], size))
		}
	}
	return plates
}

// ClassifyPair runs the pairing filters on lights[i] and lights[j], using
// every other entry of lights for the occlusion check. The result does not
// depend on the order of i and j.
func (c MatcherConfig) ClassifyPair(lights []l1lights.Light, i, j int) (Size, RejectReason) {
	return c.classifyPair(lights, i, j)
}

func (c MatcherConfig) classifyPair(lights []l1lights.Light, i, j int) (Size, RejectReason) {
	a, b := &lights[i], &lights[j]

	shorter := math.Min(a.Length, b.Length)
	longer := math.Max(a.Length, b.Length)
	if longer <= 0 || shorter/longer < c.MinLightLengthRatio {
		return Invalid, RejectLengthRatio
	}

	avgLen := (a.Length + b.Length) / 2
	centerDist := a.Center.Dist(b.Center)
	spacing := centerDist / avgLen

	var size Size
	switch {
	case spacing >= c.MinSmallCenterDistance && spacing <= c.MaxSmallCenterDistance:
		size = Small
	case spacing >= c.MinLargeCenterDistance && spacing <= c.MaxLargeCenterDistance:
		size = Large
	default:
		return Invalid, RejectSpacing
	}

	if math.Abs(a.Tilt-b.Tilt) > c.MaxAngleDiff {
		return Invalid, RejectAngle
	}

	dx := math.Abs(a.Center.X - b.Center.X)
	dy := math.Abs(a.Center.Y - b.Center.Y)
	if dy > dx*c.MaxVerticalRatio {
		return Invalid, RejectOrientation
	}

	aspect := centerDist / avgLen
	if aspect < c.MinAspect || aspect > c.MaxAspect {
		return Invalid, RejectAspect
	}

	if c.occluded(lights, i, j) {
		return Invalid, RejectOcclusion
	}

	return size, Accepted
}

// occluded reports whether any light other than i and j has its centre or
// an endpoint inside the pair's endpoint bounding box grown by the margin.
func (c MatcherConfig) occluded(lights []l1lights.Light, i, j int) bool {
	a, b := &lights[i], &lights[j]
	box := newBox(a.Top, a.Bottom, b.Top, b.Bottom).grow(c.OcclusionMargin)

	for k := range lights {
		if k == i || k == j {
			continue
		}
		o := &lights[k]
		if box.contains(o.Center) || box.contains(o.Top) || box.contains(o.Bottom) {
			return true
		}
	}
	return false
}

type box struct {
	minX, minY, maxX, maxY float64
}

func newBox(pts ...l1lights.Point) box {
	b := box{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, p := range pts {
		b.minX = math.Min(b.minX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxX = math.Max(b.maxX, p.X)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	return b
}

func (b box) grow(margin float64) box {
	return box{minX: b.minX - margin, minY: b.minY - margin, maxX: b.maxX + margin, maxY: b.maxY + margin}
}

func (b box) contains(p l1lights.Point) bool {
	return p.X >= b.minX && p.X <= b.maxX && p.Y >= b.minY && p.Y <= b.maxY
}
