// Package vision decides which tag-based pose observations are fit to fuse,
// and simulates a camera that produces them.
package vision

import (
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/monitoring"
)

// Observation is one frame's worth of output from the vision collaborator.
// It is consumed once by the Gate and then discarded.
type Observation struct {
	Visible              bool          `json:"visible"`
	Pose                 geometry.Pose `json:"pose"`
	TimestampSeconds     float64       `json:"timestamp"` // when the result became available
	TagCount             int           `json:"tag_count"`
	DistanceToNearestTag float64       `json:"distance"` // meters
	LatencySeconds       float64       `json:"latency"`  // capture-to-result delay
}

// CaptureTime returns the estimated time the frame was exposed.
func (o Observation) CaptureTime() float64 {
	return o.TimestampSeconds - o.LatencySeconds
}

// HasTargets reports whether the frame saw at least one tag.
func (o Observation) HasTargets() bool {
	return o.Visible && o.TagCount > 0
}

// Decision is the outcome of evaluating one observation.
type Decision int

const (
	// NotVisible means no tag was seen; the visible streak was reset.
	NotVisible Decision = iota
	// WarmingUp means tags are visible but the streak is still too short.
	WarmingUp
	// Stale means the frame is not newer than the last accepted one.
	Stale
	// Accepted means the frame should be fused.
	Accepted
)

func (d Decision) String() string {
	switch d {
	case NotVisible:
		return "not_visible"
	case WarmingUp:
		return "warming_up"
	case Stale:
		return "stale"
	case Accepted:
		return "accepted"
	}
	return "unknown"
}

// GateStats counts decisions since construction.
type GateStats struct {
	Accepted   uint64 `json:"accepted"`
	Stale      uint64 `json:"stale"`
	WarmingUp  uint64 `json:"warming_up"`
	NotVisible uint64 `json:"not_visible"`
}

// Gate filters flicker detections and stale frames. It is evaluated exactly
// once per control tick and is not safe for concurrent use.
type Gate struct {
	warmupTicks int

	lastAcceptedTimestamp float64 // capture time of the last accepted frame
	lastAcceptedFrame     float64 // raw timestamp of the last accepted frame
	consecutiveVisible    int

	stats GateStats
}

// NewGate creates a gate that requires more than warmupTicks consecutive
// visible ticks before accepting a frame.
func NewGate(warmupTicks int) *Gate {
	if warmupTicks < 0 {
		warmupTicks = 0
	}
	return &Gate{warmupTicks: warmupTicks}
}

// Evaluate updates the visible streak with obs and reports whether it may be
// fused. Rejected frames are dropped, never retried.
func (g *Gate) Evaluate(obs Observation) Decision {
	if !obs.HasTargets() {
		g.consecutiveVisible = 0
		g.stats.NotVisible++
		return NotVisible
	}
	g.consecutiveVisible++

	ts := obs.TimestampSeconds
	if !(ts > g.lastAcceptedTimestamp) || !(ts > g.lastAcceptedFrame) {
		g.stats.Stale++
		monitoring.Debugf("vision: stale frame t=%.3f last=%.3f", ts, g.lastAcceptedTimestamp)
		return Stale
	}
	if g.consecutiveVisible <= g.warmupTicks {
		g.stats.WarmingUp++
		return WarmingUp
	}

	g.lastAcceptedTimestamp = obs.CaptureTime()
	g.lastAcceptedFrame = ts
	g.stats.Accepted++
	return Accepted
}

// Reset forgets the last accepted timestamp so frames after a pose reset are
// not rejected as stale. The visible streak is kept.
func (g *Gate) Reset() {
	g.lastAcceptedTimestamp = 0
	g.lastAcceptedFrame = 0
}

// ConsecutiveVisibleTicks returns the current visible streak.
func (g *Gate) ConsecutiveVisibleTicks() int { return g.consecutiveVisible }

// LastAcceptedTimestamp returns the capture time of the last accepted frame.
func (g *Gate) LastAcceptedTimestamp() float64 { return g.lastAcceptedTimestamp }

// WarmupTicks returns the configured warm-up threshold.
func (g *Gate) WarmupTicks() int { return g.warmupTicks }

// Stats returns decision counters.
func (g *Gate) Stats() GateStats { return g.stats }
