package vision

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/geometry"
)

func visibleAt(ts float64) Observation {
	return Observation{
		Visible:              true,
		Pose:                 geometry.NewPose(1, 2, 0),
		TimestampSeconds:     ts,
		TagCount:             1,
		DistanceToNearestTag: 2.0,
		LatencySeconds:       0.03,
	}
}

func TestGateNoTargetsKeepsStreakAtZero(t *testing.T) {
	t.Parallel()
	g := NewGate(5)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, NotVisible, g.Evaluate(Observation{TimestampSeconds: float64(i) * 0.02}))
		assert.Equal(t, 0, g.ConsecutiveVisibleTicks())
	}
	assert.Equal(t, uint64(10), g.Stats().NotVisible)
}

func TestGateWarmup(t *testing.T) {
	t.Parallel()
	g := NewGate(5)
	var decisions []Decision
	for i := 1; i <= 7; i++ {
		decisions = append(decisions, g.Evaluate(visibleAt(float64(i)*0.02)))
	}
	assert.Equal(t, []Decision{WarmingUp, WarmingUp, WarmingUp, WarmingUp, WarmingUp, Accepted, Accepted}, decisions)
	assert.Equal(t, 7, g.ConsecutiveVisibleTicks())
	assert.InDelta(t, 0.14-0.03, g.LastAcceptedTimestamp(), 1e-12)
}

func TestGateTagCountZeroIsNotVisible(t *testing.T) {
	t.Parallel()
	g := NewGate(0)
	obs := visibleAt(1)
	obs.TagCount = 0
	assert.Equal(t, NotVisible, g.Evaluate(obs))
}

func TestGateFlickerResetsStreak(t *testing.T) {
	t.Parallel()
	g := NewGate(2)
	assert.Equal(t, WarmingUp, g.Evaluate(visibleAt(0.02)))
	assert.Equal(t, WarmingUp, g.Evaluate(visibleAt(0.04)))
	assert.Equal(t, NotVisible, g.Evaluate(Observation{}))
	assert.Equal(t, WarmingUp, g.Evaluate(visibleAt(0.08)))
	assert.Equal(t, WarmingUp, g.Evaluate(visibleAt(0.10)))
	assert.Equal(t, Accepted, g.Evaluate(visibleAt(0.12)))
}

func TestGateRejectsDuplicateFrames(t *testing.T) {
	t.Parallel()
	g := NewGate(0)
	require.Equal(t, Accepted, g.Evaluate(visibleAt(1.0)))
	assert.Equal(t, Stale, g.Evaluate(visibleAt(1.0)))
	assert.Equal(t, Stale, g.Evaluate(visibleAt(0.98)))
	assert.Equal(t, Accepted, g.Evaluate(visibleAt(1.02)))
	assert.Equal(t, uint64(2), g.Stats().Stale)
}

func TestGateResetAllowsEarlierFrames(t *testing.T) {
	t.Parallel()
	g := NewGate(0)
	require.Equal(t, Accepted, g.Evaluate(visibleAt(5)))
	require.Equal(t, Stale, g.Evaluate(visibleAt(2)))

	g.Reset()
	assert.Equal(t, 0.0, g.LastAcceptedTimestamp())
	assert.Equal(t, Accepted, g.Evaluate(visibleAt(2)))
}

func TestGateNeverAcceptsOldTimestamps(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 50; trial++ {
		g := NewGate(rng.IntN(4))
		for tick := 0; tick < 200; tick++ {
			before := g.LastAcceptedTimestamp()
			obs := Observation{
				Visible:          rng.Float64() < 0.8,
				TagCount:         rng.IntN(3),
				TimestampSeconds: rng.Float64() * 10,
				LatencySeconds:   rng.Float64() * 0.1,
			}
			if g.Evaluate(obs) == Accepted {
				require.Greater(t, obs.TimestampSeconds, before)
			} else {
				require.Equal(t, before, g.LastAcceptedTimestamp())
			}
			if rng.IntN(50) == 0 {
				g.Reset()
			}
		}
	}
}

func TestNegativeWarmupClamps(t *testing.T) {
	t.Parallel()
	g := NewGate(-3)
	assert.Equal(t, 0, g.WarmupTicks())
	assert.Equal(t, Accepted, g.Evaluate(visibleAt(1)))
}

func TestDecisionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "warming_up", WarmingUp.String())
	assert.Equal(t, "not_visible", NotVisible.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
