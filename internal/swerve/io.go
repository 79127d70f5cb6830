// Package swerve drives a set of steerable wheel modules and keeps the
// robot pose estimate current from their odometry and from vision.
package swerve

import (
	"github.com/banshee-data/swervesim/internal/kinematics"
)

// ModuleInputs is one control period's reading of a module. The Odometry*
// slices hold the sub-tick samples recorded since the previous period,
// oldest first, and always have equal length.
type ModuleInputs struct {
	Connected bool `json:"connected"`

	DrivePositionRad       float64 `json:"drive_position_rad"`
	DriveVelocityRadPerSec float64 `json:"drive_velocity_rad_s"`
	DriveAppliedVolts      float64 `json:"drive_applied_volts"`
	DriveCurrentAmps       float64 `json:"drive_current_amps"`

	SteerAbsolutePosition  float64 `json:"steer_absolute_rad"`
	SteerVelocityRadPerSec float64 `json:"steer_velocity_rad_s"`
	SteerAppliedVolts      float64 `json:"steer_applied_volts"`
	SteerCurrentAmps       float64 `json:"steer_current_amps"`

	// Skidding and CurrentLimited describe the latest sub-tick; only the
	// simulation reports them.
	Skidding       bool `json:"skidding"`
	CurrentLimited bool `json:"current_limited"`

	OdometryTimestamps        []float64 `json:"-"`
	OdometryDrivePositionsRad []float64 `json:"-"`
	OdometrySteerPositions    []float64 `json:"-"`
}

// ModuleIO is a module backend: the physics simulation or real hardware.
type ModuleIO interface {
	// UpdateInputs refreshes inputs in place.
	UpdateInputs(inputs *ModuleInputs)
	// SetTarget closes the loop on a wheel speed and steer angle.
	SetTarget(state kinematics.ModuleState)
	// ReadState returns the latest measured wheel speed and steer angle.
	ReadState() kinematics.ModuleState
	// Stop removes all output.
	Stop()
}

// GyroInputs is one control period's reading of the yaw sensor.
type GyroInputs struct {
	Connected    bool      `json:"connected"`
	Yaw          float64   `json:"yaw_rad"`
	YawRate      float64   `json:"yaw_rate_rad_s"`
	OdometryYaws []float64 `json:"-"`
}

// GyroIO is a yaw sensor backend.
type GyroIO interface {
	UpdateInputs(inputs *GyroInputs)
}
