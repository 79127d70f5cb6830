package kinematics

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/geometry"
)

const half = 0.29

func squareKinematics(t *testing.T) *SwerveKinematics {
	t.Helper()
	k, err := NewSwerveKinematics(
		geometry.Translation{X: half, Y: half},
		geometry.Translation{X: half, Y: -half},
		geometry.Translation{X: -half, Y: half},
		geometry.Translation{X: -half, Y: -half},
	)
	require.NoError(t, err)
	return k
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestToModuleStatesStraight(t *testing.T) {
	t.Parallel()
	k := squareKinematics(t)
	states := k.ToModuleStates(ChassisSpeeds{VX: 2})
	require.Len(t, states, 4)
	for _, s := range states {
		assert.InDelta(t, 2, s.SpeedMetersPerSecond, 1e-9)
		assert.InDelta(t, 0, s.Angle, 1e-9)
	}

	states = k.ToModuleStates(ChassisSpeeds{VY: -1})
	for _, s := range states {
		assert.InDelta(t, 1, s.SpeedMetersPerSecond, 1e-9)
		assert.InDelta(t, -math.Pi/2, s.Angle, 1e-9)
	}
}

func TestToModuleStatesSpin(t *testing.T) {
	t.Parallel()
	k := squareKinematics(t)
	states := k.ToModuleStates(ChassisSpeeds{Omega: 1})

	want := []ModuleState{
		{SpeedMetersPerSecond: half * math.Sqrt2, Angle: 3 * math.Pi / 4},
		{SpeedMetersPerSecond: half * math.Sqrt2, Angle: math.Pi / 4},
		{SpeedMetersPerSecond: half * math.Sqrt2, Angle: -3 * math.Pi / 4},
		{SpeedMetersPerSecond: half * math.Sqrt2, Angle: -math.Pi / 4},
	}
	if diff := cmp.Diff(want, states, approx); diff != "" {
		t.Errorf("spin states mismatch (-want +got):\n%s", diff)
	}
}

func TestChassisSpeedsRoundTrip(t *testing.T) {
	t.Parallel()
	k := squareKinematics(t)
	tests := []ChassisSpeeds{
		{VX: 1.2, VY: -0.4, Omega: 0.7},
		{VX: -3, VY: 0, Omega: -2},
		{VX: 0, VY: 0.5, Omega: 0},
	}
	for _, want := range tests {
		got, err := k.ToChassisSpeeds(k.ToModuleStates(want)...)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestToTwist(t *testing.T) {
	t.Parallel()
	k := squareKinematics(t)

	deltas := []ModulePosition{
		{DistanceMeters: 0.1, Angle: 0},
		{DistanceMeters: 0.1, Angle: 0},
		{DistanceMeters: 0.1, Angle: 0},
		{DistanceMeters: 0.1, Angle: 0},
	}
	tw, err := k.ToTwist(deltas...)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, tw.DX, 1e-9)
	assert.InDelta(t, 0, tw.DY, 1e-9)
	assert.InDelta(t, 0, tw.DTheta, 1e-9)

	// A quarter spin in place.
	arc := half * math.Sqrt2 * math.Pi / 2
	spin := k.ToModuleStates(ChassisSpeeds{Omega: 1})
	for i := range deltas {
		deltas[i] = ModulePosition{DistanceMeters: arc, Angle: spin[i].Angle}
	}
	tw, err = k.ToTwist(deltas...)
	require.NoError(t, err)
	assert.InDelta(t, 0, tw.DX, 1e-9)
	assert.InDelta(t, math.Pi/2, tw.DTheta, 1e-9)
}

func TestModuleCountMismatch(t *testing.T) {
	t.Parallel()
	k := squareKinematics(t)
	_, err := k.ToChassisSpeeds(ModuleState{})
	assert.ErrorIs(t, err, ErrModuleCount)
	_, err = k.ToTwist(ModulePosition{}, ModulePosition{})
	assert.ErrorIs(t, err, ErrModuleCount)
}

func TestNewSwerveKinematicsErrors(t *testing.T) {
	t.Parallel()
	_, err := NewSwerveKinematics(geometry.Translation{X: 1})
	assert.Error(t, err)

	_, err = NewSwerveKinematics(geometry.Translation{X: 1}, geometry.Translation{X: 1})
	assert.Error(t, err, "coincident modules cannot resolve rotation")
}

func TestDesaturateWheelSpeeds(t *testing.T) {
	t.Parallel()
	states := []ModuleState{
		{SpeedMetersPerSecond: 6, Angle: 0.1},
		{SpeedMetersPerSecond: -3, Angle: 0.2},
		{SpeedMetersPerSecond: 1.5, Angle: 0.3},
	}
	DesaturateWheelSpeeds(states, 4.5)
	assert.InDelta(t, 4.5, states[0].SpeedMetersPerSecond, 1e-12)
	assert.InDelta(t, -2.25, states[1].SpeedMetersPerSecond, 1e-12)
	assert.InDelta(t, 1.125, states[2].SpeedMetersPerSecond, 1e-12)
	assert.Equal(t, 0.2, states[1].Angle)

	slow := []ModuleState{{SpeedMetersPerSecond: 1}}
	DesaturateWheelSpeeds(slow, 4.5)
	assert.Equal(t, 1.0, slow[0].SpeedMetersPerSecond)
}

func TestFromFieldRelative(t *testing.T) {
	t.Parallel()
	s := FromFieldRelative(1, 0, 0.5, math.Pi/2)
	assert.InDelta(t, 0, s.VX, 1e-12)
	assert.InDelta(t, -1, s.VY, 1e-12)
	assert.Equal(t, 0.5, s.Omega)
}

func TestDiscretize(t *testing.T) {
	t.Parallel()
	s := ChassisSpeeds{VX: 1, Omega: 1}
	d := Discretize(s, 0.02)
	// Holding the corrected speeds for dt must land on the desired pose.
	end := geometry.Pose{}.Exp(geometry.Twist{DX: d.VX * 0.02, DY: d.VY * 0.02, DTheta: d.Omega * 0.02})
	assert.True(t, end.ApproxEqual(geometry.NewPose(0.02, 0, 0.02), 1e-9), "end = %+v", end)

	assert.Equal(t, s, Discretize(s, 0))
	assert.True(t, ChassisSpeeds{}.IsZero())
}

func TestModulePositionDelta(t *testing.T) {
	t.Parallel()
	start := ModulePosition{DistanceMeters: 1.0, Angle: 0.1}
	end := ModulePosition{DistanceMeters: 1.25, Angle: 0.3}
	assert.Equal(t, ModulePosition{DistanceMeters: 0.25, Angle: 0.3}, end.Delta(start))
}
