package swerve

import (
	"github.com/banshee-data/swervesim/internal/kinematics"
)

type fakeSample struct {
	ts       float64
	driveRad float64
	steer    float64
}

// fakeModuleIO hands out whatever samples the test queued since the last
// read.
type fakeModuleIO struct {
	connected bool
	driveRad  float64
	steer     float64
	pending   []fakeSample

	targets []kinematics.ModuleState
	stops   int
}

func newFakeModuleIO(steer float64) *fakeModuleIO {
	return &fakeModuleIO{connected: true, steer: steer}
}

func (f *fakeModuleIO) queue(ts, driveRad, steer float64) {
	f.driveRad, f.steer = driveRad, steer
	f.pending = append(f.pending, fakeSample{ts: ts, driveRad: driveRad, steer: steer})
}

func (f *fakeModuleIO) UpdateInputs(in *ModuleInputs) {
	in.Connected = f.connected
	in.DrivePositionRad = f.driveRad
	in.SteerAbsolutePosition = f.steer
	in.OdometryTimestamps = in.OdometryTimestamps[:0]
	in.OdometryDrivePositionsRad = in.OdometryDrivePositionsRad[:0]
	in.OdometrySteerPositions = in.OdometrySteerPositions[:0]
	for _, s := range f.pending {
		in.OdometryTimestamps = append(in.OdometryTimestamps, s.ts)
		in.OdometryDrivePositionsRad = append(in.OdometryDrivePositionsRad, s.driveRad)
		in.OdometrySteerPositions = append(in.OdometrySteerPositions, s.steer)
	}
	f.pending = f.pending[:0]
}

func (f *fakeModuleIO) SetTarget(state kinematics.ModuleState) {
	f.targets = append(f.targets, state)
}

func (f *fakeModuleIO) ReadState() kinematics.ModuleState {
	return kinematics.ModuleState{Angle: f.steer}
}

func (f *fakeModuleIO) Stop() { f.stops++ }

type fakeGyroIO struct {
	connected bool
	yaw       float64
	pending   []float64
}

func (g *fakeGyroIO) queue(yaw float64) {
	g.yaw = yaw
	g.pending = append(g.pending, yaw)
}

func (g *fakeGyroIO) UpdateInputs(in *GyroInputs) {
	in.Connected = g.connected
	in.Yaw = g.yaw
	in.OdometryYaws = append(in.OdometryYaws[:0], g.pending...)
	g.pending = g.pending[:0]
}
