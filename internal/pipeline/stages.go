package pipeline

import (
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/telemetry"
	"github.com/banshee-data/swervesim/internal/vision"
)

// SimulationStage advances the physics behind the drive. Nil on hardware.
type SimulationStage interface {
	Step() error
	TruePose() geometry.Pose
	Time() float64
}

// VisionSource yields this tick's observation.
type VisionSource interface {
	Observe() vision.Observation
}

// PersistenceSink stores frames.
type PersistenceSink interface {
	Record(f telemetry.Frame) error
}

// PublishSink hands frames to live consumers.
type PublishSink interface {
	Publish(f telemetry.Frame)
}

// CameraSource points a simulated camera at the simulation's true pose.
type CameraSource struct {
	Camera *vision.SimulatedCamera
	Sim    SimulationStage
}

// Observe implements VisionSource.
func (c CameraSource) Observe() vision.Observation {
	return c.Camera.Observe(c.Sim.TruePose(), c.Sim.Time())
}

// RunRecorder writes frames to one telemetry run.
type RunRecorder struct {
	Store *telemetry.Store
	RunID string
}

// Record implements PersistenceSink.
func (r RunRecorder) Record(f telemetry.Frame) error {
	return r.Store.RecordFrame(r.RunID, f)
}
