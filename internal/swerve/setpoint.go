package swerve

import (
	"math"

	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/units"
)

const twoPi = 2 * math.Pi

// ContinuousSetpoint returns the angle equivalent to target that lies within
// π of current, so a position controller on an unwrapped encoder never takes
// the long way round. Non-finite inputs hold current.
func ContinuousSetpoint(current, target float64) float64 {
	if math.IsNaN(current) || math.IsInf(current, 0) || math.IsNaN(target) || math.IsInf(target, 0) {
		return current
	}
	reduced := units.Remainder(target, twoPi)
	adjusted := current - units.Remainder(current, twoPi) + reduced

	switch diff := adjusted - current; {
	case diff > math.Pi:
		adjusted -= twoPi
	case diff < -math.Pi:
		adjusted += twoPi
	}
	return adjusted
}

// Optimize flips a target that would need more than a quarter turn of the
// steer into the equivalent reversed-speed target.
func Optimize(desired kinematics.ModuleState, currentAngle float64) kinematics.ModuleState {
	delta := units.AngleDifference(desired.Angle, currentAngle)
	if math.Abs(delta) <= math.Pi/2 {
		return kinematics.ModuleState{SpeedMetersPerSecond: desired.SpeedMetersPerSecond, Angle: units.WrapAngle(desired.Angle)}
	}
	return kinematics.ModuleState{
		SpeedMetersPerSecond: -desired.SpeedMetersPerSecond,
		Angle:                units.WrapAngle(desired.Angle + math.Pi),
	}
}
