// Package fusion maintains the robot's best-estimate pose by combining
// wheel/gyro odometry with intermittent absolute vision observations.
package fusion

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/lookup"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/units"
)

var (
	// ErrInvalidUncertainty is returned when a vision sample's standard
	// deviations are non-positive or not finite. The pose is left untouched.
	ErrInvalidUncertainty = errors.New("fusion: invalid vision uncertainty")
	// ErrStaleObservation is returned when a vision sample predates the pose
	// history window.
	ErrStaleObservation = errors.New("fusion: vision sample older than pose history")
	// ErrInvalidObservation is returned for a vision pose with non-finite
	// components.
	ErrInvalidObservation = errors.New("fusion: vision pose is not finite")
	// ErrNonFinitePose is returned when odometry would produce a non-finite
	// pose; the update is dropped.
	ErrNonFinitePose = errors.New("fusion: non-finite pose")
)

// EstimatorConfig holds the fixed trust placed in odometry and the size of
// the latency-compensation history.
type EstimatorConfig struct {
	OdometryStdX              float64       // meters
	OdometryStdY              float64       // meters
	OdometryStdHeadingDegrees float64       // degrees
	HistoryWindow             time.Duration // how far back vision may be applied
	SamplePeriod              time.Duration // fastest odometry update rate
}

// NewEstimatorConfig reads estimator settings from the swerve configuration.
func NewEstimatorConfig(cfg *config.SwerveConfig) EstimatorConfig {
	return EstimatorConfig{
		OdometryStdX:              cfg.GetOdometryStdX(),
		OdometryStdY:              cfg.GetOdometryStdY(),
		OdometryStdHeadingDegrees: cfg.GetOdometryStdHeadingDegrees(),
		HistoryWindow:             cfg.GetPoseHistoryWindow(),
		SamplePeriod:              cfg.GetSubTickPeriod(),
	}
}

func (c EstimatorConfig) historyCapacity() int {
	if c.SamplePeriod <= 0 {
		return 512
	}
	return int(c.HistoryWindow/c.SamplePeriod) + 2
}

// VisionGain returns the fraction of a residual to apply when the odometry
// variance is q and the vision variance is r. It is the steady-state Kalman
// gain for a random-walk state observed directly, and falls strictly as r
// grows.
func VisionGain(q, r float64) float64 {
	if q <= 0 {
		return 0
	}
	return q / (q + math.Sqrt(q*r))
}

// Correction describes one applied vision update.
type Correction struct {
	Residual geometry.Twist `json:"residual"` // vision pose relative to the estimate at capture time
	Gain     [3]float64     `json:"gain"`     // per-axis gain (x, y, heading)
	Applied  geometry.Twist `json:"applied"`  // Gain ⊙ Residual
	Before   geometry.Pose  `json:"before"`   // current estimate before the update
	After    geometry.Pose  `json:"after"`    // current estimate after the update
}

// Estimator owns the robot pose. Odometry moves it every update; accepted
// vision samples pull it toward the observed pose in proportion to relative
// trust. All methods are safe for concurrent use.
type Estimator struct {
	mu       sync.RWMutex
	odometry *Odometry
	history  *PoseHistory
	q        [3]float64 // odometry variances (m², m², rad²)
	// resetAt is the time of the last Reset; vision captured before it is
	// stale.
	resetAt float64
}

// NewEstimator starts an estimator at initial, at time timestamp seconds.
func NewEstimator(cfg EstimatorConfig, kin *kinematics.SwerveKinematics, timestamp, gyroAngle float64, positions []kinematics.ModulePosition, initial geometry.Pose) (*Estimator, error) {
	for _, v := range []float64{cfg.OdometryStdX, cfg.OdometryStdY, cfg.OdometryStdHeadingDegrees} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("fusion: odometry standard deviations must be positive, got %v", v)
		}
	}
	odom, err := NewOdometry(kin, gyroAngle, positions, initial)
	if err != nil {
		return nil, err
	}
	headingStd := units.DegreesToRadians(cfg.OdometryStdHeadingDegrees)
	e := &Estimator{
		odometry: odom,
		history:  NewPoseHistory(cfg.HistoryWindow.Seconds(), cfg.historyCapacity()),
		q: [3]float64{
			cfg.OdometryStdX * cfg.OdometryStdX,
			cfg.OdometryStdY * cfg.OdometryStdY,
			headingStd * headingStd,
		},
		resetAt: math.Inf(-1),
	}
	e.history.Add(timestamp, odom.Pose())
	return e, nil
}

// CurrentPose returns the best-estimate pose.
func (e *Estimator) CurrentPose() geometry.Pose {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.odometry.Pose()
}

// Update applies one odometry sample taken at timestamp seconds.
func (e *Estimator) Update(timestamp, gyroAngle float64, positions []kinematics.ModulePosition) (geometry.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pose, err := e.odometry.Update(gyroAngle, positions)
	if err != nil {
		return pose, err
	}
	e.history.Add(timestamp, pose)
	return pose, nil
}

// Reset overwrites the pose, bypassing fusion, and forgets the history.
// Vision samples captured before timestamp are rejected as stale from then
// on. A non-finite pose returns ErrNonFinitePose and changes nothing.
func (e *Estimator) Reset(timestamp, gyroAngle float64, positions []kinematics.ModulePosition, pose geometry.Pose) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.odometry.Reset(gyroAngle, positions, pose); err != nil {
		return err
	}
	e.history.Clear()
	e.history.Add(timestamp, e.odometry.Pose())
	e.resetAt = timestamp
	return nil
}

// AddVisionMeasurement fuses an absolute pose captured at timestamp seconds
// with standard deviations u. On error the pose is unchanged.
func (e *Estimator) AddVisionMeasurement(visionPose geometry.Pose, timestamp float64, u lookup.Uncertainty) (Correction, error) {
	if !u.Valid() {
		return Correction{}, fmt.Errorf("%w: %+v", ErrInvalidUncertainty, u)
	}
	if !visionPose.IsFinite() || math.IsNaN(timestamp) || math.IsInf(timestamp, 0) {
		return Correction{}, ErrInvalidObservation
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if timestamp < e.resetAt {
		return Correction{}, fmt.Errorf("%w: t=%.3f before reset at %.3f", ErrStaleObservation, timestamp, e.resetAt)
	}
	sampled, ok := e.history.Sample(timestamp)
	if !ok {
		return Correction{}, fmt.Errorf("%w: t=%.3f", ErrStaleObservation, timestamp)
	}

	r := [3]float64{u.StdX * u.StdX, u.StdY * u.StdY, u.StdHeadingRadians() * u.StdHeadingRadians()}
	gain := mat.NewDiagDense(3, []float64{
		VisionGain(e.q[0], r[0]),
		VisionGain(e.q[1], r[1]),
		VisionGain(e.q[2], r[2]),
	})

	residual := sampled.Log(visionPose)
	var scaled mat.VecDense
	scaled.MulVec(gain, mat.NewVecDense(3, []float64{residual.DX, residual.DY, residual.DTheta}))
	applied := geometry.Twist{DX: scaled.AtVec(0), DY: scaled.AtVec(1), DTheta: scaled.AtVec(2)}

	before := e.odometry.Pose()
	c := Correction{
		Residual: residual,
		Gain:     [3]float64{gain.At(0, 0), gain.At(1, 1), gain.At(2, 2)},
		Applied:  applied,
		Before:   before,
		After:    before,
	}
	if applied == (geometry.Twist{}) {
		return c, nil
	}

	corrected := sampled.Exp(applied)
	shift := func(p geometry.Pose) geometry.Pose {
		return corrected.TransformBy(p.RelativeTo(sampled))
	}
	after := shift(before)
	if !after.IsFinite() {
		return Correction{}, ErrNonFinitePose
	}

	latest, _, _ := e.history.Latest()
	e.history.Rewrite(math.Min(timestamp, latest), shift)
	e.odometry.SetPose(after)
	c.After = after

	monitoring.Debugf("fusion: vision t=%.3f residual=(%.3f, %.3f, %.3f) applied=(%.3f, %.3f, %.3f)",
		timestamp, residual.DX, residual.DY, residual.DTheta, applied.DX, applied.DY, applied.DTheta)
	return c, nil
}
