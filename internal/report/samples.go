package report

import (
	"math"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/storage/sqlite"
)

// Sample is the per-frame view used by every report.
type Sample struct {
	Frame     uint64
	State     string
	Confirm   int
	Miss      int
	Matched   bool
	HasPlate  bool
	Measured  l1lights.Point // tracked plate centre, valid when HasPlate
	Estimate  l1lights.Point // tracker position estimate
	EpisodeID string
}

// SamplesFromResults converts live pipeline results. Nil entries are skipped.
func SamplesFromResults(results []*pipeline.FrameResult) []Sample {
	out := make([]Sample, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		s := r.Snapshot
		out = append(out, Sample{
			Frame:     r.Frame,
			State:     s.State.String(),
			Confirm:   s.Confirm,
			Miss:      s.Miss,
			Matched:   s.Matched,
			HasPlate:  s.HasPlate,
			Measured:  s.Plate.Center,
			Estimate:  s.Predicted,
			EpisodeID: s.EpisodeID,
		})
	}
	return out
}

// SamplesFromRows converts stored frame rows.
func SamplesFromRows(rows []sqlite.FrameRow) []Sample {
	out := make([]Sample, 0, len(rows))
	for _, r := range rows {
		out = append(out, Sample{
			Frame:     r.Frame,
			State:     r.State,
			Confirm:   r.Confirm,
			Miss:      r.Miss,
			Matched:   r.Matched,
			HasPlate:  r.HasPlate,
			Measured:  l1lights.Point{X: r.PlateX, Y: r.PlateY},
			Estimate:  l1lights.Point{X: r.PredX, Y: r.PredY},
			EpisodeID: r.EpisodeID,
		})
	}
	return out
}

// Summary aggregates a session.
type Summary struct {
	Frames       int            `json:"frames"`
	Matched      int            `json:"matched"`
	Episodes     int            `json:"episodes"`
	StateFrames  map[string]int `json:"state_frames"`
	MeanResidual float64        `json:"mean_residual_px"` // estimate to measured centre on matched frames
	MaxResidual  float64        `json:"max_residual_px"`
}

// Summarise computes a Summary over samples.
func Summarise(samples []Sample) Summary {
	sum := Summary{StateFrames: make(map[string]int)}
	episodes := make(map[string]bool)
	var total float64
	for _, s := range samples {
		sum.Frames++
		sum.StateFrames[s.State]++
		if s.EpisodeID != "" {
			episodes[s.EpisodeID] = true
		}
		if !s.Matched || !s.HasPlate {
			continue
		}
		sum.Matched++
		r := s.Estimate.Dist(s.Measured)
		total += r
		sum.MaxResidual = math.Max(sum.MaxResidual, r)
	}
	sum.Episodes = len(episodes)
	if sum.Matched > 0 {
		sum.MeanResidual = total / float64(sum.Matched)
	}
	return sum
}

// stateOrder fixes the timeline's category axis.
var stateOrder = []string{
	l4tracker.Lost.String(),
	l4tracker.Detecting.String(),
	l4tracker.Tracking.String(),
	l4tracker.TempLost.String(),
}

func stateIndex(s string) int {
	for i, name := range stateOrder {
		if name == s {
			return i
		}
	}
	return 0
}
