package l4tracker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	cfg := TrackerConfig{ConfirmThreshold: 3, LossThreshold: 5}

	tests := []struct {
		name   string
		in     counters
		ev     event
		want   counters
		effect effect
	}{
		{"lost empty", counters{State: Lost}, eventEmpty, counters{State: Lost}, 0},
		{"lost miss", counters{State: Lost}, eventMiss, counters{State: Lost}, 0},
		{"lost match", counters{State: Lost}, eventMatch, counters{State: Detecting, Confirm: 1}, effectInitEstimator},

		{"detecting empty", counters{State: Detecting, Confirm: 2}, eventEmpty, counters{State: Lost}, effectReset},
		{"detecting miss", counters{State: Detecting, Confirm: 1}, eventMiss, counters{State: Lost}, effectReset},
		{"detecting match below threshold", counters{State: Detecting, Confirm: 1}, eventMatch, counters{State: Detecting, Confirm: 2}, effectCorrectEstimator},
		{"detecting match reaches threshold", counters{State: Detecting, Confirm: 2}, eventMatch, counters{State: Tracking, Confirm: 3}, effectCorrectEstimator},

		{"tracking empty", counters{State: Tracking, Confirm: 3}, eventEmpty, counters{State: Tracking, Confirm: 3, Miss: 1}, 0},
		{"tracking miss", counters{State: Tracking, Confirm: 3, Miss: 2}, eventMiss, counters{State: Tracking, Confirm: 3, Miss: 3}, 0},
		{"tracking miss reaches loss", counters{State: Tracking, Confirm: 3, Miss: 4}, eventMiss, counters{State: TempLost, Confirm: 3, Miss: 5}, 0},
		{"tracking empty reaches loss", counters{State: Tracking, Confirm: 3, Miss: 4}, eventEmpty, counters{State: TempLost, Confirm: 3, Miss: 5}, 0},
		{"tracking match", counters{State: Tracking, Confirm: 3, Miss: 4}, eventMatch, counters{State: Tracking, Confirm: 3}, effectCorrectEstimator},

		{"temp lost empty", counters{State: TempLost, Confirm: 3, Miss: 5}, eventEmpty, counters{State: TempLost, Confirm: 3, Miss: 6}, 0},
		{"temp lost miss", counters{State: TempLost, Confirm: 3, Miss: 7}, eventMiss, counters{State: TempLost, Confirm: 3, Miss: 8}, 0},
		{"temp lost reaches reset", counters{State: TempLost, Confirm: 3, Miss: 9}, eventEmpty, counters{State: Lost}, effectReset},
		{"temp lost match", counters{State: TempLost, Confirm: 3, Miss: 8}, eventMatch, counters{State: Tracking, Confirm: 3}, effectCorrectEstimator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, eff := transition(tt.in, tt.ev, cfg)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.effect, eff)
		})
	}
}

func TestTransitionResetFromFreshTempLost(t *testing.T) {
	t.Parallel()

	// Entering TEMP_LOST with a cleared miss count still needs the full
	// 2×LossThreshold misses to reset.
	cfg := TrackerConfig{ConfirmThreshold: 3, LossThreshold: 2}
	c := counters{State: TempLost}
	var eff effect
	for i := 1; i <= 3; i++ {
		c, eff = transition(c, eventEmpty, cfg)
		require.Equal(t, TempLost, c.State, "miss %d", i)
		require.Zero(t, eff)
	}
	c, eff = transition(c, eventEmpty, cfg)
	assert.Equal(t, counters{State: Lost}, c)
	assert.True(t, eff.has(effectReset))
}

func TestTrackerStateText(t *testing.T) {
	t.Parallel()

	for _, s := range []TrackerState{Lost, Detecting, Tracking, TempLost} {
		b, err := json.Marshal(s)
		require.NoError(t, err)

		var back TrackerState
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, s, back)
	}

	assert.Equal(t, "TEMP_LOST", TempLost.String())
	assert.Equal(t, "TrackerState(9)", TrackerState(9).String())

	_, err := ParseTrackerState("gone")
	assert.Error(t, err)
}
