package l4tracker

import (
	"math"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l2plates"
)

// sizePenaltyWeight scales how much a size mismatch inflates the
// positional distance.
const sizePenaltyWeight = 0.1

// SelectionScore rates a candidate against the tracked plate: the distance
// from the anchor, inflated by 10% per unit of size ratio above 1.
func SelectionScore(candidate l2plates.Plate, anchor l1lights.Point, tracked TrackedPlate) float64 {
	dist := candidate.Center.Dist(anchor)
	penalty := math.Max(
		sizeRatio(candidate.Width(), tracked.Width),
		sizeRatio(candidate.Height(), tracked.Height),
	)
	return dist * (1 + sizePenaltyWeight*(penalty-1))
}

// sizeRatio is max(a,b)/min(a,b) on absolute sizes, or 1 when either size
// is degenerate.
func sizeRatio(a, b float64) float64 {
	a, b = math.Abs(a), math.Abs(b)
	if a <= 0 || b <= 0 {
		return 1
	}
	return math.Max(a, b) / math.Min(a, b)
}

// nearest returns the index of the plate whose centre is closest to ref.
// Ties keep the earliest plate. It returns -1 for an empty slice.
func nearest(plates []l2plates.Plate, ref l1lights.Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i := range plates {
		d := plates[i].Center.Dist(ref)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
