package debug

import (
	"testing"

	"github.com/banshee-data/autoaim/internal/aim/l2plates"
	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
)

// The collector must satisfy both instrumentation hooks.
var (
	_ l2plates.DebugCollector  = (*Collector)(nil)
	_ l4tracker.DebugCollector = (*Collector)(nil)
)

func TestNewCollector_InitiallyDisabled(t *testing.T) {
	c := NewCollector()
	if c.IsEnabled() {
		t.Error("Expected collector to be initially disabled")
	}
}

func TestCollector_DisabledRecordsNothing(t *testing.T) {
	c := NewCollector()
	c.BeginFrame(7)
	c.RecordPair(0, 1, "SMALL", "accepted")
	c.RecordCandidate(0, 1, 2, 3, true)
	c.RecordPrediction(1, 2, 3, 4)
	c.RecordInnovation(0, 0, 3, 4)
	c.RecordTransition("LOST", "DETECTING", 1, 0)

	if f := c.Emit(); f != nil {
		t.Errorf("Expected nil frame when disabled, got %+v", f)
	}
}

func TestCollector_RecordWithoutBeginFrame(t *testing.T) {
	c := NewCollector()
	c.SetEnabled(true)
	c.RecordPair(0, 1, "SMALL", "accepted")

	if f := c.Emit(); f != nil {
		t.Error("Expected nil frame when BeginFrame was not called")
	}
}

func TestCollector_FullFrame(t *testing.T) {
	c := NewCollector()
	c.SetEnabled(true)
	c.BeginFrame(42)

	c.RecordPair(0, 1, "SMALL", "accepted")
	c.RecordPair(0, 2, "INVALID", "occlusion")
	c.RecordCandidate(0, 140, 100, 12.5, true)
	c.RecordPrediction(139, 101, 30, -3)
	c.RecordInnovation(0, 0, 3, 4)
	c.RecordTransition("DETECTING", "TRACKING", 3, 0)

	f := c.Emit()
	if f == nil {
		t.Fatal("Expected non-nil frame")
	}
	if f.FrameID != 42 {
		t.Errorf("FrameID = %d, want 42", f.FrameID)
	}
	if len(f.Pairs) != 2 || f.Pairs[1].Reason != "occlusion" {
		t.Errorf("unexpected pairs %+v", f.Pairs)
	}
	if len(f.Candidates) != 1 || !f.Candidates[0].Selected {
		t.Errorf("unexpected candidates %+v", f.Candidates)
	}
	if len(f.Predictions) != 1 || f.Predictions[0].VX != 30 {
		t.Errorf("unexpected predictions %+v", f.Predictions)
	}
	if len(f.Innovations) != 1 || f.Innovations[0].ResidualMag != 5 {
		t.Errorf("unexpected innovations %+v", f.Innovations)
	}
	if len(f.Transitions) != 1 || f.Transitions[0].To != "TRACKING" {
		t.Errorf("unexpected transitions %+v", f.Transitions)
	}

	if again := c.Emit(); again != nil {
		t.Error("Expected Emit to clear the frame")
	}
}

func TestCollector_ResetDropsFrame(t *testing.T) {
	c := NewCollector()
	c.SetEnabled(true)
	c.BeginFrame(1)
	c.RecordPair(0, 1, "LARGE", "accepted")
	c.Reset()

	if f := c.Emit(); f != nil {
		t.Error("Expected nil frame after Reset")
	}
}

func TestCollector_DisableDropsFrame(t *testing.T) {
	c := NewCollector()
	c.SetEnabled(true)
	c.BeginFrame(1)
	c.SetEnabled(false)
	c.SetEnabled(true)

	if f := c.Emit(); f != nil {
		t.Error("Expected disabling to drop the pending frame")
	}
}
