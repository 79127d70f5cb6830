package swerve

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/fusion"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/lookup"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/vision"
)

// TickReport summarises one Periodic call.
type TickReport struct {
	Timestamp       float64                  `json:"timestamp"`
	Pose            geometry.Pose            `json:"pose"`
	OdometrySamples int                      `json:"odometry_samples"`
	GyroConnected   bool                     `json:"gyro_connected"`
	GyroYaw         float64                  `json:"gyro_yaw"`
	Measured        []kinematics.ModuleState `json:"measured"`
	Targets         []kinematics.ModuleState `json:"targets"`
	Inputs          []ModuleInputs           `json:"inputs"`
	Vision          VisionReport             `json:"vision"`
	Errors          []string                 `json:"errors,omitempty"`
}

// VisionReport is what happened to this tick's vision observation.
type VisionReport struct {
	Decision    string             `json:"decision"`
	Observation vision.Observation `json:"observation"`
	Uncertainty lookup.Uncertainty `json:"uncertainty"`
	Correction  *fusion.Correction `json:"correction,omitempty"`
	Error       string             `json:"error,omitempty"`
	Stats       vision.GateStats   `json:"stats"`
}

// Fused reports whether the observation moved the estimate.
func (v VisionReport) Fused() bool { return v.Correction != nil }

// Drive owns the modules, the gyro and the pose estimate. Periodic, the
// Drive* commands and ResetPose belong to the control loop goroutine;
// Pose and LastReport may be called from anywhere.
type Drive struct {
	modules   []*Module
	gyro      GyroIO
	kin       *kinematics.SwerveKinematics
	estimator *fusion.Estimator
	gate      *vision.Gate
	selector  *lookup.Selector

	period   float64 // s
	maxSpeed float64 // m/s

	gyroInputs    GyroInputs
	rawYaw        float64
	lastPositions []kinematics.ModulePosition
	lastTimestamp float64

	mu         sync.RWMutex
	lastReport TickReport
}

// NewDrive assembles a drive over modules, listed in the same order as the
// configured module locations, and starts the estimate at initial.
func NewDrive(cfg *config.SwerveConfig, modules []*Module, gyro GyroIO, initial geometry.Pose) (*Drive, error) {
	locations := cfg.GetModuleLocations()
	if len(modules) != len(locations) {
		return nil, fmt.Errorf("swerve: %d modules for %d locations", len(modules), len(locations))
	}
	translations := make([]geometry.Translation, len(locations))
	for i, l := range locations {
		translations[i] = geometry.Translation{X: l.X, Y: l.Y}
	}
	kin, err := kinematics.NewSwerveKinematics(translations...)
	if err != nil {
		return nil, err
	}
	selector, err := lookup.NewSelector(cfg)
	if err != nil {
		return nil, err
	}

	d := &Drive{
		modules:  modules,
		gyro:     gyro,
		kin:      kin,
		gate:     vision.NewGate(cfg.GetVisionWarmupTicks()),
		selector: selector,
		period:   cfg.GetControlPeriod().Seconds(),
		maxSpeed: cfg.GetMaxModuleSpeed(),
	}
	d.refreshInputs()
	d.rawYaw = d.gyroInputs.Yaw
	d.lastPositions = d.measuredPositions()
	if ts := d.modules[0].OdometryTimestamps(); len(ts) > 0 {
		d.lastTimestamp = ts[len(ts)-1]
	}

	d.estimator, err = fusion.NewEstimator(fusion.NewEstimatorConfig(cfg), kin, d.lastTimestamp, d.rawYaw, d.lastPositions, initial)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Drive) refreshInputs() {
	d.gyro.UpdateInputs(&d.gyroInputs)
	for _, m := range d.modules {
		m.Periodic()
	}
}

func (d *Drive) measuredPositions() []kinematics.ModulePosition {
	out := make([]kinematics.ModulePosition, len(d.modules))
	for i, m := range d.modules {
		out[i] = m.MeasuredPosition()
	}
	return out
}

// odometrySampleCount returns how many sub-tick samples every source has.
func (d *Drive) odometrySampleCount() int {
	n := len(d.modules[0].OdometryTimestamps())
	for _, m := range d.modules {
		n = min(n, len(m.CachedPositions()))
	}
	if d.gyroInputs.Connected {
		n = min(n, len(d.gyroInputs.OdometryYaws))
	}
	return n
}

// Periodic runs one control period: read every backend, replay the
// sub-tick odometry samples into the estimator, then pass obs through the
// acquisition gate and fuse it if accepted.
func (d *Drive) Periodic(obs vision.Observation) (TickReport, error) {
	d.refreshInputs()

	var errs []error
	n := d.odometrySampleCount()
	timestamps := d.modules[0].OdometryTimestamps()
	positions := make([]kinematics.ModulePosition, len(d.modules))
	deltas := make([]kinematics.ModulePosition, len(d.modules))
	for i := 0; i < n; i++ {
		for j, m := range d.modules {
			positions[j] = m.CachedPositions()[i]
			deltas[j] = positions[j].Delta(d.lastPositions[j])
		}

		yaw := d.rawYaw
		if d.gyroInputs.Connected {
			yaw = d.gyroInputs.OdometryYaws[i]
		} else if tw, err := d.kin.ToTwist(deltas...); err == nil {
			yaw += tw.DTheta
		}

		// Replays from a backend that produced no new samples.
		if timestamps[i] <= d.lastTimestamp {
			continue
		}
		if _, err := d.estimator.Update(timestamps[i], yaw, positions); err != nil {
			errs = append(errs, fmt.Errorf("odometry sample %d: %w", i, err))
			continue
		}
		d.rawYaw = yaw
		d.lastTimestamp = timestamps[i]
		copy(d.lastPositions, positions)
	}

	report := TickReport{
		Timestamp:       d.lastTimestamp,
		OdometrySamples: n,
		GyroConnected:   d.gyroInputs.Connected,
		GyroYaw:         d.gyroInputs.Yaw,
	}
	report.Vision = d.applyVision(obs)
	report.Vision.Stats = d.gate.Stats()
	if report.Vision.Error != "" {
		monitoring.Debugf("swerve: vision sample at t=%.3f dropped: %s", obs.TimestampSeconds, report.Vision.Error)
	}

	report.Pose = d.estimator.CurrentPose()
	for _, m := range d.modules {
		report.Measured = append(report.Measured, m.MeasuredState())
		report.Targets = append(report.Targets, m.Target())
		report.Inputs = append(report.Inputs, m.Inputs())
		if !m.Connected() {
			errs = append(errs, fmt.Errorf("module %s disconnected", m.Name()))
		}
	}
	for _, err := range errs {
		report.Errors = append(report.Errors, err.Error())
	}

	d.mu.Lock()
	d.lastReport = report
	d.mu.Unlock()
	return report, errors.Join(errs...)
}

func (d *Drive) applyVision(obs vision.Observation) VisionReport {
	decision := d.gate.Evaluate(obs)
	vr := VisionReport{Decision: decision.String(), Observation: obs}

	if decision != vision.Accepted {
		return vr
	}
	u, ok := d.selector.Select(obs.TagCount, obs.DistanceToNearestTag)
	if !ok {
		return vr
	}
	vr.Uncertainty = u

	correction, err := d.estimator.AddVisionMeasurement(obs.Pose, obs.CaptureTime(), u)
	if err != nil {
		if errors.Is(err, fusion.ErrInvalidUncertainty) || errors.Is(err, fusion.ErrInvalidObservation) {
			monitoring.Logf("swerve: vision update skipped: %v", err)
		}
		vr.Error = err.Error()
		return vr
	}
	vr.Correction = &correction
	return vr
}

// DriveRobotRelative commands chassis speeds in the robot frame. Wheel
// speeds are desaturated to the module limit; a wheel with nothing to do
// keeps its current angle instead of snapping to zero.
func (d *Drive) DriveRobotRelative(speeds kinematics.ChassisSpeeds) {
	states := d.kin.ToModuleStates(kinematics.Discretize(speeds, d.period))
	kinematics.DesaturateWheelSpeeds(states, d.maxSpeed)
	for i, m := range d.modules {
		if states[i].SpeedMetersPerSecond == 0 {
			states[i].Angle = m.Inputs().SteerAbsolutePosition
		}
		m.SetTarget(states[i])
	}
}

// DriveFieldRelative commands a field-frame velocity using the estimated
// heading.
func (d *Drive) DriveFieldRelative(vx, vy, omega float64) {
	d.DriveRobotRelative(kinematics.FromFieldRelative(vx, vy, omega, d.estimator.CurrentPose().Heading))
}

// Stop removes output from every module.
func (d *Drive) Stop() {
	for _, m := range d.modules {
		m.Stop()
	}
}

// ResetPose overwrites the estimate and clears the acquisition gate. Vision
// captured before the reset is rejected as stale by the estimator. A
// non-finite pose is refused and nothing changes.
func (d *Drive) ResetPose(pose geometry.Pose) error {
	current := d.measuredPositions()
	if err := d.estimator.Reset(d.lastTimestamp, d.rawYaw, current, pose); err != nil {
		return fmt.Errorf("swerve: reset pose: %w", err)
	}
	copy(d.lastPositions, current)
	d.gate.Reset()
	p := d.estimator.CurrentPose()
	monitoring.Logf("swerve: pose reset to (%.3f, %.3f, %.3f)", p.X, p.Y, p.Heading)
	return nil
}

// Pose returns the current estimate.
func (d *Drive) Pose() geometry.Pose { return d.estimator.CurrentPose() }

// LastReport returns the report of the most recent Periodic.
func (d *Drive) LastReport() TickReport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastReport
}

// Modules returns the modules in location order.
func (d *Drive) Modules() []*Module { return d.modules }

// Kinematics returns the chassis kinematics.
func (d *Drive) Kinematics() *kinematics.SwerveKinematics { return d.kin }

// Estimator returns the pose estimator.
func (d *Drive) Estimator() *fusion.Estimator { return d.estimator }

// Gate returns the vision acquisition gate.
func (d *Drive) Gate() *vision.Gate { return d.gate }

// MeasuredSpeeds returns the chassis speeds implied by the measured module
// states.
func (d *Drive) MeasuredSpeeds() (kinematics.ChassisSpeeds, error) {
	states := make([]kinematics.ModuleState, len(d.modules))
	for i, m := range d.modules {
		states[i] = m.MeasuredState()
	}
	return d.kin.ToChassisSpeeds(states...)
}
