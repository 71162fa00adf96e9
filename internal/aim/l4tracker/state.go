package l4tracker

import (
	"fmt"
	"strings"
)

// TrackerState is the lifecycle state of the single tracked target.
type TrackerState int

const (
	Lost TrackerState = iota
	Detecting
	Tracking
	TempLost
)

func (s TrackerState) String() string {
	switch s {
	case Lost:
		return "LOST"
	case Detecting:
		return "DETECTING"
	case Tracking:
		return "TRACKING"
	case TempLost:
		return "TEMP_LOST"
	default:
		return fmt.Sprintf("TrackerState(%d)", int(s))
	}
}

// ParseTrackerState is the inverse of TrackerState.String.
func ParseTrackerState(s string) (TrackerState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOST":
		return Lost, nil
	case "DETECTING":
		return Detecting, nil
	case "TRACKING":
		return Tracking, nil
	case "TEMP_LOST":
		return TempLost, nil
	default:
		return Lost, fmt.Errorf("unknown tracker state %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TrackerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TrackerState) UnmarshalText(b []byte) error {
	parsed, err := ParseTrackerState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// event is what one frame contributed to the state machine.
type event int

const (
	eventEmpty event = iota // no valid candidates
	eventMiss               // candidates present, none selected
	eventMatch              // a candidate was selected
)

func (e event) String() string {
	switch e {
	case eventEmpty:
		return "empty"
	case eventMiss:
		return "miss"
	case eventMatch:
		return "match"
	default:
		return "unknown"
	}
}

// effect is a bit set of actions the tracker applies after a transition.
type effect uint8

const (
	effectInitEstimator effect = 1 << iota
	effectCorrectEstimator
	effectReset
)

func (e effect) has(f effect) bool { return e&f != 0 }

// counters is the part of the tracker state the transition function owns.
type counters struct {
	State   TrackerState
	Confirm int
	Miss    int
}

// transition is the whole state machine. It is pure: the caller performs
// the estimator and tracked-plate side effects it returns.
func transition(c counters, ev event, cfg TrackerConfig) (counters, effect) {
	switch c.State {
	case Lost:
		if ev != eventMatch {
			return c, 0
		}
		return counters{State: Detecting, Confirm: 1}, effectInitEstimator

	case Detecting:
		if ev != eventMatch {
			return counters{State: Lost}, effectReset
		}
		c.Confirm++
		if c.Confirm >= cfg.ConfirmThreshold {
			c.State = Tracking
			c.Miss = 0
		}
		return c, effectCorrectEstimator

	case Tracking:
		if ev == eventMatch {
			c.Miss = 0
			return c, effectCorrectEstimator
		}
		c.Miss++
		if c.Miss >= cfg.LossThreshold {
			c.State = TempLost
		}
		return c, 0

	case TempLost:
		if ev == eventMatch {
			c.Miss = 0
			c.State = Tracking
			return c, effectCorrectEstimator
		}
		c.Miss++
		if c.Miss >= 2*cfg.LossThreshold {
			return counters{State: Lost}, effectReset
		}
		return c, 0
	}
	return c, 0
}
