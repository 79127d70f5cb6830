package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/lookup"
)

func testKinematics(t *testing.T) *kinematics.SwerveKinematics {
	t.Helper()
	k, err := kinematics.NewSwerveKinematics(
		geometry.Translation{X: 0.3, Y: 0.3},
		geometry.Translation{X: 0.3, Y: -0.3},
		geometry.Translation{X: -0.3, Y: 0.3},
		geometry.Translation{X: -0.3, Y: -0.3},
	)
	require.NoError(t, err)
	return k
}

func positions(distance, angle float64) []kinematics.ModulePosition {
	out := make([]kinematics.ModulePosition, 4)
	for i := range out {
		out[i] = kinematics.ModulePosition{DistanceMeters: distance, Angle: angle}
	}
	return out
}

func testEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		OdometryStdX:              0.1,
		OdometryStdY:              0.1,
		OdometryStdHeadingDegrees: 5,
		HistoryWindow:             1500 * time.Millisecond,
		SamplePeriod:              4 * time.Millisecond,
	}
}

func newTestEstimator(t *testing.T, initial geometry.Pose) *Estimator {
	t.Helper()
	e, err := NewEstimator(testEstimatorConfig(), testKinematics(t), 0, 0, positions(0, 0), initial)
	require.NoError(t, err)
	return e
}

func TestOdometryStraightLine(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})

	for i := 1; i <= 10; i++ {
		_, err := e.Update(float64(i)*0.02, 0, positions(float64(i)*0.1, 0))
		require.NoError(t, err)
	}
	p := e.CurrentPose()
	assert.InDelta(t, 1.0, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
	assert.InDelta(t, 0, p.Heading, 1e-9)
}

func TestOdometryUsesGyroWithResetOffset(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	require.NoError(t, e.Reset(0, 0.3, positions(0, 0), geometry.NewPose(1, 1, math.Pi/2)))

	_, err := e.Update(0.02, 0.3, positions(1, 0))
	require.NoError(t, err)
	p := e.CurrentPose()
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 2, p.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, p.Heading, 1e-9)

	// Gyro turns by 0.1 rad, heading follows.
	_, err = e.Update(0.04, 0.4, positions(1, 0))
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2+0.1, e.CurrentPose().Heading, 1e-9)
}

func TestOdometryZeroDisplacementKeepsPose(t *testing.T) {
	t.Parallel()
	start := geometry.NewPose(2, -1, 0.5)
	e := newTestEstimator(t, start)
	for i := 1; i <= 10; i++ {
		_, err := e.Update(float64(i)*0.02, 0, positions(0, 0))
		require.NoError(t, err)
	}
	assert.True(t, start.ApproxEqual(e.CurrentPose(), 1e-12), "pose drifted to %+v", e.CurrentPose())
}

func TestOdometryModuleCountMismatch(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	_, err := e.Update(0.02, 0, positions(1, 0)[:2])
	assert.ErrorIs(t, err, kinematics.ErrModuleCount)
	assert.Equal(t, geometry.Pose{}, e.CurrentPose())
}

func TestVisionZeroResidualIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.NewPose(3, 4, 1))
	_, err := e.Update(0.02, 0, positions(0.5, 0.2))
	require.NoError(t, err)
	pose := e.CurrentPose()

	for i := 0; i < 20; i++ {
		c, err := e.AddVisionMeasurement(pose, 0.02, lookup.Uncertainty{StdX: 0.1, StdY: 0.1, StdHeadingDegrees: 5})
		require.NoError(t, err)
		assert.Equal(t, geometry.Twist{}, c.Applied)
		assert.Equal(t, pose, e.CurrentPose())
	}
}

func TestVisionLargerUncertaintyCorrectsLess(t *testing.T) {
	t.Parallel()
	target := geometry.NewPose(1, 0.5, 0)

	correction := func(std float64) float64 {
		e := newTestEstimator(t, geometry.Pose{})
		c, err := e.AddVisionMeasurement(target, 0, lookup.Uncertainty{StdX: std, StdY: std, StdHeadingDegrees: 10 * std})
		require.NoError(t, err)
		return c.After.Translation().Minus(c.Before.Translation()).Norm()
	}

	prev := math.Inf(1)
	for _, std := range []float64{0.01, 0.05, 0.1, 0.5, 1, 5} {
		got := correction(std)
		assert.Greater(t, got, 0.0)
		assert.Less(t, got, prev, "std %v should correct less than a tighter sample", std)
		prev = got
	}
}

func TestVisionGainMatchesClosedForm(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	c, err := e.AddVisionMeasurement(geometry.NewPose(1, 0, 0), 0, lookup.Uncertainty{StdX: 0.1, StdY: 0.2, StdHeadingDegrees: 5})
	require.NoError(t, err)

	// Equal x variances give k = 1/2.
	assert.InDelta(t, 0.5, c.Gain[0], 1e-12)
	assert.InDelta(t, 0.01/(0.01+math.Sqrt(0.01*0.04)), c.Gain[1], 1e-12)
	assert.InDelta(t, 0.5, c.After.X, 1e-9)
}

func TestVisionInvalidUncertaintySkipped(t *testing.T) {
	t.Parallel()
	start := geometry.NewPose(1, 1, 0)
	e := newTestEstimator(t, start)

	for _, u := range []lookup.Uncertainty{
		{StdX: 0, StdY: 0.1, StdHeadingDegrees: 1},
		{StdX: 0.1, StdY: -1, StdHeadingDegrees: 1},
		{StdX: 0.1, StdY: 0.1, StdHeadingDegrees: math.NaN()},
		{StdX: math.Inf(1), StdY: 0.1, StdHeadingDegrees: 1},
	} {
		_, err := e.AddVisionMeasurement(geometry.NewPose(5, 5, 1), 0, u)
		assert.ErrorIs(t, err, ErrInvalidUncertainty)
		assert.Equal(t, start, e.CurrentPose())
	}

	// Odometry keeps working afterwards.
	_, err := e.Update(0.02, 0, positions(0.25, 0))
	require.NoError(t, err)
	assert.InDelta(t, 1.25, e.CurrentPose().X, 1e-9)
}

func TestVisionInvalidPoseSkipped(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	_, err := e.AddVisionMeasurement(geometry.Pose{X: math.NaN()}, 0, lookup.Uncertainty{StdX: 1, StdY: 1, StdHeadingDegrees: 1})
	assert.ErrorIs(t, err, ErrInvalidObservation)
	assert.Equal(t, geometry.Pose{}, e.CurrentPose())
}

func TestVisionStaleSampleSkipped(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	_, err := e.Update(5, 0, positions(0, 0))
	require.NoError(t, err)

	_, err = e.AddVisionMeasurement(geometry.NewPose(1, 1, 0), 1, lookup.Uncertainty{StdX: 1, StdY: 1, StdHeadingDegrees: 1})
	assert.ErrorIs(t, err, ErrStaleObservation)
	assert.Equal(t, geometry.Pose{}, e.CurrentPose())
}

func TestVisionCapturedBeforeResetIsStale(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	for i := 1; i <= 6; i++ {
		_, err := e.Update(float64(i)*0.02, 0, positions(0, 0))
		require.NoError(t, err)
	}
	target := geometry.NewPose(5, 5, 0)
	require.NoError(t, e.Reset(0.12, 0, positions(0, 0), target))

	u := lookup.Uncertainty{StdX: 0.1, StdY: 0.1, StdHeadingDegrees: 5}
	_, err := e.AddVisionMeasurement(geometry.Pose{}, 0.11, u)
	assert.ErrorIs(t, err, ErrStaleObservation)
	assert.Equal(t, target, e.CurrentPose())

	// A frame captured at the reset instant is measured against the new pose.
	c, err := e.AddVisionMeasurement(geometry.NewPose(5.1, 5, 0), 0.12, u)
	require.NoError(t, err)
	assert.Greater(t, c.After.X, 5.0)
}

func TestResetWrapsHeading(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	require.NoError(t, e.Reset(0.02, 0, positions(0, 0), geometry.Pose{X: 1, Y: 1, Heading: 3 * math.Pi / 2}))
	assert.InDelta(t, -math.Pi/2, e.CurrentPose().Heading, 1e-12)

	// The history entry is wrapped too, so a matching frame is a no-op.
	c, err := e.AddVisionMeasurement(geometry.NewPose(1, 1, -math.Pi/2), 0.02, lookup.Uncertainty{StdX: 0.1, StdY: 0.1, StdHeadingDegrees: 5})
	require.NoError(t, err)
	assert.InDelta(t, 0, c.Residual.DTheta, 1e-12)
	assert.InDelta(t, -math.Pi/2, e.CurrentPose().Heading, 1e-12)

	_, err = NewEstimator(testEstimatorConfig(), testKinematics(t), 0, 0, positions(0, 0), geometry.Pose{Heading: 5 * math.Pi})
	require.NoError(t, err)
}

func TestResetRejectsNonFinitePose(t *testing.T) {
	t.Parallel()
	start := geometry.NewPose(2, 1, 0.5)
	e := newTestEstimator(t, start)

	for _, bad := range []geometry.Pose{
		{X: math.NaN()},
		{Y: math.Inf(1)},
		{Heading: math.NaN()},
	} {
		err := e.Reset(0.02, 0, positions(0, 0), bad)
		assert.ErrorIs(t, err, ErrNonFinitePose)
		assert.Equal(t, start, e.CurrentPose())
	}

	// Odometry keeps working from the untouched state.
	_, err := e.Update(0.04, 0, positions(0.1, 0))
	require.NoError(t, err)
	assert.True(t, e.CurrentPose().IsFinite())

	_, err = NewEstimator(testEstimatorConfig(), testKinematics(t), 0, 0, positions(0, 0), geometry.Pose{X: math.NaN()})
	assert.ErrorIs(t, err, ErrNonFinitePose)
}

func TestVisionLatencyCompensation(t *testing.T) {
	t.Parallel()
	e := newTestEstimator(t, geometry.Pose{})
	// Drive 1 m forward over 1 s.
	for i := 1; i <= 50; i++ {
		_, err := e.Update(float64(i)*0.02, 0, positions(float64(i)*0.02, 0))
		require.NoError(t, err)
	}

	// At t=0.5 the robot was really 0.2 m further left than odometry thought.
	c, err := e.AddVisionMeasurement(geometry.NewPose(0.5, 0.2, 0), 0.5, lookup.Uncertainty{StdX: 0.1, StdY: 0.1, StdHeadingDegrees: 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, c.Residual.DY, 1e-9)
	assert.InDelta(t, 0, c.Residual.DX, 1e-9)

	p := e.CurrentPose()
	assert.InDelta(t, 1.0, p.X, 1e-9)
	assert.InDelta(t, 0.1, p.Y, 1e-9)

	// The history after the capture time was shifted too, so the same sample
	// now has half the residual.
	c, err = e.AddVisionMeasurement(geometry.NewPose(0.5, 0.2, 0), 0.5, lookup.Uncertainty{StdX: 0.1, StdY: 0.1, StdHeadingDegrees: 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, c.Residual.DY, 1e-9)
}

func TestVisionGain(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, VisionGain(0, 1))
	assert.InDelta(t, 0.5, VisionGain(2, 2), 1e-12)
	assert.InDelta(t, 1.0, VisionGain(1, 0), 1e-12)
	assert.Greater(t, VisionGain(1, 1), VisionGain(1, 2))
}

func TestNewEstimatorValidates(t *testing.T) {
	t.Parallel()
	cfg := testEstimatorConfig()
	cfg.OdometryStdY = 0
	_, err := NewEstimator(cfg, testKinematics(t), 0, 0, positions(0, 0), geometry.Pose{})
	assert.Error(t, err)

	_, err = NewEstimator(testEstimatorConfig(), testKinematics(t), 0, 0, positions(0, 0)[:3], geometry.Pose{})
	assert.ErrorIs(t, err, kinematics.ErrModuleCount)
}

func TestNewEstimatorConfigFromSwerve(t *testing.T) {
	t.Parallel()
	cfg := NewEstimatorConfig(config.EmptySwerveConfig())
	assert.Equal(t, 1500*time.Millisecond, cfg.HistoryWindow)
	assert.Equal(t, 4*time.Millisecond, cfg.SamplePeriod)
	assert.Equal(t, 377, cfg.historyCapacity())
}
