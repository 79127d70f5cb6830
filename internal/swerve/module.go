package swerve

import (
	"github.com/banshee-data/swervesim/internal/kinematics"
)

// Module wraps one backend. It remembers only the last commanded setpoint
// and re-applies it every period against fresh measurements.
type Module struct {
	name        string
	io          ModuleIO
	wheelRadius float64

	inputs    ModuleInputs
	target    kinematics.ModuleState
	hasTarget bool
	positions []kinematics.ModulePosition
}

// NewModule creates a module over io. wheelRadius converts drive radians to
// meters.
func NewModule(name string, io ModuleIO, wheelRadius float64) *Module {
	return &Module{name: name, io: io, wheelRadius: wheelRadius}
}

// Name returns the module's configured name.
func (m *Module) Name() string { return m.name }

// Periodic reads the backend and rebuilds the cached odometry positions.
func (m *Module) Periodic() {
	m.io.UpdateInputs(&m.inputs)

	n := min(len(m.inputs.OdometryDrivePositionsRad), len(m.inputs.OdometrySteerPositions))
	m.positions = m.positions[:0]
	for i := 0; i < n; i++ {
		m.positions = append(m.positions, kinematics.ModulePosition{
			DistanceMeters: m.inputs.OdometryDrivePositionsRad[i] * m.wheelRadius,
			Angle:          m.inputs.OdometrySteerPositions[i],
		})
	}

	if m.hasTarget {
		m.io.SetTarget(m.target)
	}
}

// SetTarget optimizes state against the measured steer angle and commands it.
func (m *Module) SetTarget(state kinematics.ModuleState) {
	m.target = Optimize(state, m.inputs.SteerAbsolutePosition)
	m.hasTarget = true
	m.io.SetTarget(m.target)
}

// Target returns the last commanded setpoint.
func (m *Module) Target() kinematics.ModuleState { return m.target }

// Stop drops the setpoint and removes output.
func (m *Module) Stop() {
	m.hasTarget = false
	m.target = kinematics.ModuleState{Angle: m.inputs.SteerAbsolutePosition}
	m.io.Stop()
}

// MeasuredState returns the backend's measured speed and angle.
func (m *Module) MeasuredState() kinematics.ModuleState {
	return m.io.ReadState()
}

// MeasuredPosition returns the latest wheel distance and angle.
func (m *Module) MeasuredPosition() kinematics.ModulePosition {
	return kinematics.ModulePosition{
		DistanceMeters: m.inputs.DrivePositionRad * m.wheelRadius,
		Angle:          m.inputs.SteerAbsolutePosition,
	}
}

// CachedPositions returns the sub-tick positions read by the last
// Periodic, oldest first. The slice is reused by the next Periodic.
func (m *Module) CachedPositions() []kinematics.ModulePosition {
	return m.positions
}

// OdometryTimestamps returns the sub-tick timestamps matching
// CachedPositions.
func (m *Module) OdometryTimestamps() []float64 {
	return m.inputs.OdometryTimestamps
}

// Inputs returns a copy of the last inputs.
func (m *Module) Inputs() ModuleInputs { return m.inputs }

// Connected reports whether the backend answered the last read.
func (m *Module) Connected() bool { return m.inputs.Connected }
