package fusion

import (
	"github.com/banshee-data/swervesim/internal/geometry"
)

type historyEntry struct {
	timestamp float64
	pose      geometry.Pose
}

// PoseHistory maintains a sliding window of timestamped poses so a vision
// sample can be compared against where the robot was when the frame was
// captured.
type PoseHistory struct {
	entries  []historyEntry
	window   float64 // seconds
	capacity int
	head     int // next write position
	size     int
}

// NewPoseHistory creates a history spanning window seconds with room for
// capacity entries.
func NewPoseHistory(window float64, capacity int) *PoseHistory {
	if capacity < 2 {
		capacity = 2
	}
	return &PoseHistory{
		entries:  make([]historyEntry, capacity),
		window:   window,
		capacity: capacity,
	}
}

// at returns the i-th entry counting from the oldest.
func (h *PoseHistory) at(i int) *historyEntry {
	return &h.entries[(h.head-h.size+i+h.capacity)%h.capacity]
}

// Add records pose at timestamp. A timestamp equal to the newest entry
// replaces it; an older one is ignored.
func (h *PoseHistory) Add(timestamp float64, pose geometry.Pose) {
	if h.size > 0 {
		newest := h.at(h.size - 1)
		if timestamp < newest.timestamp {
			return
		}
		if timestamp == newest.timestamp {
			newest.pose = pose
			return
		}
	}
	h.entries[h.head] = historyEntry{timestamp: timestamp, pose: pose}
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
	h.prune(timestamp - h.window)
}

// prune drops entries older than cutoff while keeping at least one.
func (h *PoseHistory) prune(cutoff float64) {
	for h.size > 1 && h.at(0).timestamp < cutoff {
		h.size--
	}
}

// Size returns the number of stored poses.
func (h *PoseHistory) Size() int { return h.size }

// Latest returns the newest entry.
func (h *PoseHistory) Latest() (timestamp float64, pose geometry.Pose, ok bool) {
	if h.size == 0 {
		return 0, geometry.Pose{}, false
	}
	e := h.at(h.size - 1)
	return e.timestamp, e.pose, true
}

// Sample returns the pose at timestamp, interpolating between neighbours.
// ok is false when the history is empty or timestamp falls outside the
// window. Timestamps newer than the latest entry return the latest pose.
func (h *PoseHistory) Sample(timestamp float64) (geometry.Pose, bool) {
	if h.size == 0 {
		return geometry.Pose{}, false
	}
	newest := h.at(h.size - 1)
	if timestamp < newest.timestamp-h.window {
		return geometry.Pose{}, false
	}
	if timestamp >= newest.timestamp {
		return newest.pose, true
	}
	oldest := h.at(0)
	if timestamp <= oldest.timestamp {
		return oldest.pose, true
	}

	// Binary search for the first entry at or after timestamp.
	lo, hi := 0, h.size-1
	for lo < hi {
		mid := (lo + hi) / 2
		if h.at(mid).timestamp < timestamp {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	after := h.at(lo)
	if after.timestamp == timestamp {
		return after.pose, true
	}
	before := h.at(lo - 1)
	frac := (timestamp - before.timestamp) / (after.timestamp - before.timestamp)
	return before.pose.Interpolate(after.pose, frac), true
}

// Rewrite replaces every pose with timestamp at or after from by fn(pose).
func (h *PoseHistory) Rewrite(from float64, fn func(geometry.Pose) geometry.Pose) {
	for i := 0; i < h.size; i++ {
		e := h.at(i)
		if e.timestamp >= from {
			e.pose = fn(e.pose)
		}
	}
}

// Clear removes all entries.
func (h *PoseHistory) Clear() {
	h.head = 0
	h.size = 0
}
