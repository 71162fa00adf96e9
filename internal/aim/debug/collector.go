// Package debug provides instrumentation for the plate matcher and tracker.
// The Collector captures per-frame internals (pair decisions, selection
// scores, predictions, innovations and state transitions) for the admin
// status page and for offline tuning.
package debug

import "math"

// Pre-allocation capacities for per-frame slices. A frame usually carries
// a handful of lights, so a few dozen pairs at most.
const (
	defaultPairCapacity       = 32
	defaultCandidateCapacity  = 8
	defaultInnovationCapacity = 1
	defaultPredictionCapacity = 1
)

// Collector accumulates debug artifacts during a single frame.
//
// The collector is stateful: call BeginFrame, then the Record methods
// during processing, then Emit at frame completion. It is not safe for
// concurrent use; it lives on the pipeline goroutine.
type Collector struct {
	enabled bool
	current *Frame
}

// Frame holds every artifact recorded for one frame.
type Frame struct {
	FrameID     uint64            `json:"frame_id"`
	Pairs       []PairRecord      `json:"pairs"`
	Candidates  []CandidateRecord `json:"candidates"`
	Predictions []Prediction      `json:"predictions"`
	Innovations []Innovation      `json:"innovations"`
	Transitions []Transition      `json:"transitions,omitempty"`
}

// PairRecord is one light pair evaluated by the matcher.
type PairRecord struct {
	I      int    `json:"i"`
	J      int    `json:"j"`
	Size   string `json:"size"`
	Reason string `json:"reason"`
}

// CandidateRecord is one plate scored by the tracker's selection step.
type CandidateRecord struct {
	Index    int     `json:"index"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
	Score    float64 `json:"score"`
	Selected bool    `json:"selected"`
}

// Prediction is the estimator state after the predict step.
type Prediction struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}

// Innovation is a measurement residual seen by the correct step.
type Innovation struct {
	PredictedX  float64 `json:"predicted_x"`
	PredictedY  float64 `json:"predicted_y"`
	MeasuredX   float64 `json:"measured_x"`
	MeasuredY   float64 `json:"measured_y"`
	ResidualMag float64 `json:"residual"`
}

// Transition is a tracker state change.
type Transition struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Confirm int    `json:"confirm"`
	Miss    int    `json:"miss"`
}

// NewCollector creates a collector that's initially disabled.
func NewCollector() *Collector {
	return &Collector{}
}

// SetEnabled controls whether the collector records artifacts.
func (c *Collector) SetEnabled(enabled bool) {
	c.enabled = enabled
	if !enabled {
		c.current = nil
	}
}

// IsEnabled returns true if the collector is actively recording.
func (c *Collector) IsEnabled() bool {
	return c.enabled
}

// BeginFrame starts collection for a new frame, dropping anything not
// yet emitted.
func (c *Collector) BeginFrame(frameID uint64) {
	if !c.enabled {
		return
	}
	c.current = &Frame{
		FrameID:     frameID,
		Pairs:       make([]PairRecord, 0, defaultPairCapacity),
		Candidates:  make([]CandidateRecord, 0, defaultCandidateCapacity),
		Predictions: make([]Prediction, 0, defaultPredictionCapacity),
		Innovations: make([]Innovation, 0, defaultInnovationCapacity),
	}
}

// RecordPair captures a matcher pair decision.
func (c *Collector) RecordPair(i, j int, size, reason string) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Pairs = append(c.current.Pairs, PairRecord{I: i, J: j, Size: size, Reason: reason})
}

// RecordCandidate captures one selection score.
func (c *Collector) RecordCandidate(index int, centerX, centerY, score float64, selected bool) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Candidates = append(c.current.Candidates, CandidateRecord{
		Index:    index,
		CenterX:  centerX,
		CenterY:  centerY,
		Score:    score,
		Selected: selected,
	})
}

// RecordPrediction captures the estimator state after predict.
func (c *Collector) RecordPrediction(x, y, vx, vy float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Predictions = append(c.current.Predictions, Prediction{X: x, Y: y, VX: vx, VY: vy})
}

// RecordInnovation captures the residual between the estimate and a
// measurement.
func (c *Collector) RecordInnovation(predX, predY, measX, measY float64) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Innovations = append(c.current.Innovations, Innovation{
		PredictedX:  predX,
		PredictedY:  predY,
		MeasuredX:   measX,
		MeasuredY:   measY,
		ResidualMag: math.Hypot(measX-predX, measY-predY),
	})
}

// RecordTransition captures a tracker state change.
func (c *Collector) RecordTransition(from, to string, confirm, miss int) {
	if !c.enabled || c.current == nil {
		return
	}
	c.current.Transitions = append(c.current.Transitions, Transition{From: from, To: to, Confirm: confirm, Miss: miss})
}

// Emit returns the accumulated frame and clears it. Returns nil if
// collection is disabled or no frame was begun.
func (c *Collector) Emit() *Frame {
	if !c.enabled || c.current == nil {
		return nil
	}
	frame := c.current
	c.current = nil
	return frame
}

// Reset clears any pending artifacts without emitting them.
func (c *Collector) Reset() {
	c.current = nil
}
