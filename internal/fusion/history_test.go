package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/geometry"
)

func TestPoseHistorySample(t *testing.T) {
	t.Parallel()
	h := NewPoseHistory(1.0, 16)

	_, ok := h.Sample(0)
	assert.False(t, ok, "empty history has nothing to sample")

	h.Add(0.0, geometry.NewPose(0, 0, 0))
	h.Add(0.1, geometry.NewPose(1, 0, 0))
	h.Add(0.2, geometry.NewPose(2, 0, 0))

	p, ok := h.Sample(0.15)
	require.True(t, ok)
	assert.InDelta(t, 1.5, p.X, 1e-9)

	p, ok = h.Sample(0.1)
	require.True(t, ok)
	assert.Equal(t, geometry.NewPose(1, 0, 0), p)

	p, ok = h.Sample(5)
	require.True(t, ok)
	assert.Equal(t, geometry.NewPose(2, 0, 0), p, "future samples clamp to latest")

	_, ok = h.Sample(-0.9)
	assert.False(t, ok, "outside the window")
}

func TestPoseHistoryPrunesByWindow(t *testing.T) {
	t.Parallel()
	h := NewPoseHistory(0.5, 64)
	for i := 0; i <= 20; i++ {
		h.Add(float64(i)*0.1, geometry.NewPose(float64(i), 0, 0))
	}
	// Entries at 1.5 .. 2.0 remain.
	assert.Equal(t, 6, h.Size())
	_, ok := h.Sample(1.2)
	assert.False(t, ok)
}

func TestPoseHistoryWrapsAtCapacity(t *testing.T) {
	t.Parallel()
	h := NewPoseHistory(100, 4)
	for i := 0; i < 10; i++ {
		h.Add(float64(i), geometry.NewPose(float64(i), 0, 0))
	}
	assert.Equal(t, 4, h.Size())
	p, ok := h.Sample(7.5)
	require.True(t, ok)
	assert.InDelta(t, 7.5, p.X, 1e-9)

	// Older than the oldest retained entry but within the window clamps.
	p, ok = h.Sample(1)
	require.True(t, ok)
	assert.Equal(t, 6.0, p.X)
}

func TestPoseHistoryOrdering(t *testing.T) {
	t.Parallel()
	h := NewPoseHistory(10, 8)
	h.Add(1, geometry.NewPose(1, 0, 0))
	h.Add(0.5, geometry.NewPose(9, 9, 0))
	h.Add(1, geometry.NewPose(2, 0, 0))

	assert.Equal(t, 1, h.Size())
	ts, p, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 1.0, ts)
	assert.Equal(t, 2.0, p.X)
}

func TestPoseHistoryRewriteAndClear(t *testing.T) {
	t.Parallel()
	h := NewPoseHistory(10, 8)
	for i := 0; i < 4; i++ {
		h.Add(float64(i), geometry.NewPose(float64(i), 0, 0))
	}
	h.Rewrite(2, func(p geometry.Pose) geometry.Pose {
		p.Y = 1
		return p
	})
	p, _ := h.Sample(1)
	assert.Equal(t, 0.0, p.Y)
	p, _ = h.Sample(3)
	assert.Equal(t, 1.0, p.Y)

	h.Clear()
	assert.Equal(t, 0, h.Size())
	_, _, ok := h.Latest()
	assert.False(t, ok)
}
