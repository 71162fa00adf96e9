package l4tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/autoaim/internal/aim/l1lights"
	"github.com/banshee-data/autoaim/internal/aim/l2plates"
	"github.com/banshee-data/autoaim/internal/aim/l3estimate"
	"github.com/banshee-data/autoaim/internal/config"
	"github.com/banshee-data/autoaim/internal/monitoring"
)

// ErrReentrantUpdate is returned when Update is called while another
// Update on the same tracker is still running. The nested frame is dropped.
var ErrReentrantUpdate = errors.New("tracker: update already in progress")

// TrackerConfig holds the state machine thresholds.
type TrackerConfig struct {
	ConfirmThreshold int            // consecutive matches DETECTING needs to reach TRACKING
	LossThreshold    int            // misses before TEMP_LOST; twice this resets to LOST
	MaxMatchDistance float64        // selection score must be strictly below this (pixels)
	Reference        l1lights.Point // LOST picks the candidate nearest this point
	Estimator        l3estimate.EstimatorConfig
}

// DefaultTrackerConfig returns the built-in reference configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		ConfirmThreshold: cfg.GetConfirmThreshold(),
		LossThreshold:    cfg.GetLossThreshold(),
		MaxMatchDistance: cfg.GetMaxMatchDistance(),
		Reference:        l1lights.Point{X: cfg.GetReferenceX(), Y: cfg.GetReferenceY()},
		Estimator:        l3estimate.EstimatorConfigFromTuning(cfg),
	}
}

// TrackedPlate is the tracker's own copy of the matched plate. It stays
// valid after the frame that produced the match has been discarded.
type TrackedPlate struct {
	Center   l1lights.Point    `json:"center"`
	Vertices [4]l1lights.Point `json:"vertices"`
	Size     l2plates.Size     `json:"size"`
	Width    float64           `json:"width"`
	Height   float64           `json:"height"`
}

func copyPlate(p l2plates.Plate) TrackedPlate {
	return TrackedPlate{
		Center:   p.Center,
		Vertices: p.Vertices,
		Size:     p.Size,
		Width:    p.Width(),
		Height:   p.Height(),
	}
}

// Snapshot is a consistent read of the tracker's exposed state.
type Snapshot struct {
	Frame     uint64         `json:"frame"`
	State     TrackerState   `json:"state"`
	Confirm   int            `json:"confirm_count"`
	Miss      int            `json:"miss_count"`
	Predicted l1lights.Point `json:"predicted"`
	Velocity  l1lights.Point `json:"velocity"`
	HasPlate  bool           `json:"has_plate"`
	Plate     TrackedPlate   `json:"plate"`
	EpisodeID string         `json:"episode_id,omitempty"`
	Matched   bool           `json:"matched"`
}

// DebugCollector receives per-frame tracker internals. Plain types keep
// the debug package free of an import on this one.
type DebugCollector interface {
	IsEnabled() bool
	RecordCandidate(index int, centerX, centerY, score float64, selected bool)
	RecordPrediction(x, y, vx, vy float64)
	RecordInnovation(predX, predY, measX, measY float64)
	RecordTransition(from, to string, confirm, miss int)
}

// Tracker follows one target across frames. Update must be called from a
// single goroutine; the accessors may be called concurrently with it.
type Tracker struct {
	Config TrackerConfig

	// DebugCollector captures selection internals (optional).
	DebugCollector DebugCollector

	updating atomic.Bool

	mu         sync.RWMutex
	c          counters
	est        *l3estimate.Estimator
	plate      TrackedPlate
	hasPlate   bool
	matched    bool
	predicted  l1lights.Point
	episodeID  string
	frame      uint64
	lastUpdate time.Time
}

// NewTracker creates a tracker in the LOST state.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		Config: cfg,
		est:    l3estimate.NewEstimator(cfg.Estimator),
	}
}

// Reset returns the tracker to LOST with zero counters and no tracked plate.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.lastUpdate = time.Time{}
}

func (t *Tracker) resetLocked() {
	t.c = counters{State: Lost}
	t.est = l3estimate.NewEstimator(t.Config.Estimator)
	t.plate = TrackedPlate{}
	t.hasPlate = false
	t.predicted = l1lights.Point{}
	t.episodeID = ""
}

// Update advances the tracker by one nominal frame.
func (t *Tracker) Update(plates []l2plates.Plate) error {
	return t.UpdateAt(plates, time.Time{})
}

// UpdateAt advances the tracker by one frame captured at ts. The predict
// step uses the time elapsed since the previous timestamped frame; a zero
// ts or the first frame uses the nominal interval.
func (t *Tracker) UpdateAt(plates []l2plates.Plate, ts time.Time) error {
	if !t.updating.CompareAndSwap(false, true) {
		monitoring.Logf("[Tracker] nested update dropped")
		return ErrReentrantUpdate
	}
	defer t.updating.Store(false)

	t.mu.Lock()
	defer t.mu.Unlock()

	var dt time.Duration
	if !ts.IsZero() {
		if !t.lastUpdate.IsZero() {
			dt = ts.Sub(t.lastUpdate)
		}
		t.lastUpdate = ts
	}
	t.frame++

	valid := make([]l2plates.Plate, 0, len(plates))
	for _, p := range plates {
		if p.Valid() {
			valid = append(valid, p)
		}
	}

	debugOn := t.DebugCollector != nil && t.DebugCollector.IsEnabled()

	sel := -1
	switch t.c.State {
	case Lost:
		sel = nearest(valid, t.Config.Reference)
	case Detecting:
		sel = t.selectCandidate(valid, t.est.Position(), debugOn)
	case Tracking, TempLost:
		t.predicted = t.est.PredictDt(dt)
		if debugOn {
			v := t.est.Velocity()
			t.DebugCollector.RecordPrediction(t.predicted.X, t.predicted.Y, v.X, v.Y)
		}
		sel = t.selectCandidate(valid, t.predicted, debugOn)
	}

	ev := eventMatch
	switch {
	case len(valid) == 0:
		ev = eventEmpty
	case sel < 0:
		ev = eventMiss
	}

	prev := t.c
	next, eff := transition(t.c, ev, t.Config)

	if eff.has(effectReset) {
		t.resetLocked()
	}
	t.c = next
	t.matched = ev == eventMatch

	if ev == eventMatch {
		m := valid[sel]
		if eff.has(effectInitEstimator) {
			t.est.Init(m.Center)
			t.episodeID = uuid.NewString()
		}
		if eff.has(effectCorrectEstimator) {
			before := t.est.Position()
			t.est.Correct(m.Center)
			if debugOn {
				t.DebugCollector.RecordInnovation(before.X, before.Y, m.Center.X, m.Center.Y)
			}
		}
		t.predicted = t.est.Position()
		t.plate = copyPlate(m)
		t.hasPlate = true
	}

	if prev.State != next.State {
		monitoring.Logf("[Tracker] %s -> %s on %s (confirm=%d miss=%d episode=%s)",
			prev.State, next.State, ev, next.Confirm, next.Miss, t.episodeID)
		if debugOn {
			t.DebugCollector.RecordTransition(prev.State.String(), next.State.String(), next.Confirm, next.Miss)
		}
	}
	return nil
}

// selectCandidate returns the index of the lowest-scoring plate if its
// score is below MaxMatchDistance, or -1.
func (t *Tracker) selectCandidate(plates []l2plates.Plate, anchor l1lights.Point, debugOn bool) int {
	best := -1
	bestScore := 0.0
	scores := make([]float64, len(plates))
	for i := range plates {
		s := SelectionScore(plates[i], anchor, t.plate)
		scores[i] = s
		if best < 0 || s < bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore >= t.Config.MaxMatchDistance {
		best = -1
	}
	if debugOn {
		for i := range plates {
			t.DebugCollector.RecordCandidate(i, plates[i].Center.X, plates[i].Center.Y, scores[i], i == best)
		}
	}
	return best
}

// State returns the current lifecycle state.
func (t *Tracker) State() TrackerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.State
}

// IsTracking reports whether the target is confirmed and currently held.
// TEMP_LOST is not tracking.
func (t *Tracker) IsTracking() bool {
	return t.State() == Tracking
}

// TrackedPlate returns a copy of the last matched plate, if any.
func (t *Tracker) TrackedPlate() (TrackedPlate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.plate, t.hasPlate
}

// PredictedPosition returns the last predicted or corrected position.
func (t *Tracker) PredictedPosition() l1lights.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.predicted
}

// EstimatedVelocity returns the estimator's velocity in pixels per second.
func (t *Tracker) EstimatedVelocity() l1lights.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.est.Velocity()
}

// ConfirmCount returns the number of consecutive confirming matches.
func (t *Tracker) ConfirmCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Confirm
}

// MissCount returns the number of consecutive frames without a match.
func (t *Tracker) MissCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.c.Miss
}

// EpisodeID identifies the current tracking episode. It is empty in LOST.
func (t *Tracker) EpisodeID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.episodeID
}

// Snapshot returns the exposed state as of the last completed Update.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Frame:     t.frame,
		State:     t.c.State,
		Confirm:   t.c.Confirm,
		Miss:      t.c.Miss,
		Predicted: t.predicted,
		Velocity:  t.est.Velocity(),
		HasPlate:  t.hasPlate,
		Plate:     t.plate,
		EpisodeID: t.episodeID,
		Matched:   t.matched,
	}
}
