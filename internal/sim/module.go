// Package sim models swerve modules, the gyro and the chassis they carry at
// a sub-tick resolution finer than the control loop.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/units"
)

// ErrNonFinite is returned once a module's state stops being finite. The
// module is faulted from then on and produces no force.
var ErrNonFinite = errors.New("sim: non-finite module state")

// ModuleConfig holds the electromechanical constants of one module.
type ModuleConfig struct {
	DriveMotor DCMotor
	SteerMotor DCMotor

	DriveCurrentLimit     float64 // A
	CurrentLimitThreshold float64 // multiple of the limit that triggers limiting
	SkidTorqueFraction    float64 // share of torque that spins a skidding wheel
	DriveGearRatio        float64
	SteerGearRatio        float64
	DriveFrictionVolts    float64
	SteerFrictionVolts    float64
	WheelCOF              float64
	WheelRadius           float64 // m
	SteerInertia          float64 // kg·m²
	DriveWheelInertia     float64 // kg·m²
	SupplyVolts           float64

	SubTickPeriod float64 // s
	CacheDepth    int     // sub-ticks per control period

	InitialSteerAngle  float64 // rad
	SteerEncoderOffset float64 // rad, relative encoder zero offset
}

// NewModuleConfig reads module constants from the swerve configuration. The
// steer starting angle and encoder offset are left at zero for the caller.
func NewModuleConfig(cfg *config.SwerveConfig) (ModuleConfig, error) {
	drive, err := MotorByName(cfg.GetDriveMotor(), 1)
	if err != nil {
		return ModuleConfig{}, err
	}
	steer, err := MotorByName(cfg.GetSteerMotor(), 1)
	if err != nil {
		return ModuleConfig{}, err
	}
	return ModuleConfig{
		DriveMotor:            drive,
		SteerMotor:            steer,
		DriveCurrentLimit:     cfg.GetDriveCurrentLimitAmps(),
		CurrentLimitThreshold: cfg.GetCurrentLimitThreshold(),
		SkidTorqueFraction:    cfg.GetSkidTorqueFraction(),
		DriveGearRatio:        cfg.GetDriveGearRatio(),
		SteerGearRatio:        cfg.GetSteerGearRatio(),
		DriveFrictionVolts:    cfg.GetDriveFrictionVolts(),
		SteerFrictionVolts:    cfg.GetSteerFrictionVolts(),
		WheelCOF:              cfg.GetWheelCOF(),
		WheelRadius:           cfg.GetWheelRadiusMeters(),
		SteerInertia:          cfg.GetSteerInertia(),
		DriveWheelInertia:     cfg.GetDriveWheelInertia(),
		SupplyVolts:           cfg.GetSupplyVolts(),
		SubTickPeriod:         cfg.GetSubTickPeriod().Seconds(),
		CacheDepth:            cfg.GetSubTicks(),
	}, nil
}

// ModuleSimulation is the physics of one swerve module. It is advanced once
// per sub-tick by DriveSimulation and is not safe for concurrent use.
type ModuleSimulation struct {
	cfg   ModuleConfig
	steer *BrushlessMotorSim

	driveRequestedVolts float64
	driveAppliedVolts   float64
	driveSupplyCurrent  float64
	driveLimited        bool
	skidding            bool

	driveUngearedPosition float64 // rad at the rotor
	driveUngearedSpeed    float64 // rad/s at the rotor

	steerFacing        float64 // rad, wrapped
	steerRelativePos   float64 // rad, unwrapped plus offset
	steerAbsoluteSpeed float64 // rad/s at the mechanism
	steerRelativeSpeed float64 // rad/s at the rotor

	cachedDrive       *SampleCache[float64]
	cachedSteerFacing *SampleCache[float64]

	fault error
}

// NewModuleSimulation creates a module at rest.
func NewModuleSimulation(cfg ModuleConfig) (*ModuleSimulation, error) {
	for name, v := range map[string]float64{
		"drive gear ratio":    cfg.DriveGearRatio,
		"steer gear ratio":    cfg.SteerGearRatio,
		"wheel radius":        cfg.WheelRadius,
		"steer inertia":       cfg.SteerInertia,
		"drive wheel inertia": cfg.DriveWheelInertia,
		"sub-tick period":     cfg.SubTickPeriod,
		"supply volts":        cfg.SupplyVolts,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("sim: %s must be positive, got %v", name, v)
		}
	}
	if cfg.CacheDepth < 1 {
		return nil, fmt.Errorf("sim: cache depth must be at least 1, got %d", cfg.CacheDepth)
	}

	m := &ModuleSimulation{
		cfg:   cfg,
		steer: NewBrushlessMotorSim(cfg.SteerMotor, cfg.SteerGearRatio, cfg.SteerInertia, cfg.SteerFrictionVolts, cfg.SupplyVolts, cfg.InitialSteerAngle),
	}
	m.steerFacing = units.WrapAngle(cfg.InitialSteerAngle)
	m.steerRelativePos = cfg.InitialSteerAngle + cfg.SteerEncoderOffset

	m.cachedDrive = NewSampleCache(cfg.CacheDepth, m.driveUngearedPosition)
	m.cachedSteerFacing = NewSampleCache(cfg.CacheDepth, m.steerFacing)
	return m, nil
}

// RequestDriveVoltage sets the drive voltage requested by the controller.
// The applied voltage may be lower under current limiting.
func (m *ModuleSimulation) RequestDriveVoltage(volts float64) {
	m.driveRequestedVolts = volts
}

// RequestSteerVoltage sets the steer voltage.
func (m *ModuleSimulation) RequestSteerVoltage(volts float64) {
	m.steer.SetInputVoltage(volts)
}

// Contact is what the chassis presents to one wheel for a sub-tick.
type Contact struct {
	GroundVelocity geometry.Translation // field velocity of the contact patch
	RobotHeading   float64
	NormalForce    float64 // N
	Mass           float64 // kg carried by this wheel; 0 treats the ground as fixed
}

// SubTick advances the module by one sub-tick and returns the propelling
// force it puts on the chassis, in the field frame.
func (m *ModuleSimulation) SubTick(c Contact) (geometry.Translation, error) {
	if m.fault != nil {
		return geometry.Translation{}, m.fault
	}

	m.updateSteer()

	grip := c.NormalForce * m.cfg.WheelCOF
	worldFacing := m.steerFacing + c.RobotHeading
	force := m.propellingForce(grip, worldFacing, c.GroundVelocity, c.Mass)
	m.updateDriveEncoder()

	if err := m.checkFinite(force); err != nil {
		m.fault = err
		return geometry.Translation{}, err
	}
	m.cachedSteerFacing.Push(m.steerFacing)
	m.cachedDrive.Push(m.driveUngearedPosition)
	return force, nil
}

func (m *ModuleSimulation) updateSteer() {
	m.steer.Update(m.cfg.SubTickPeriod)
	m.steerFacing = units.WrapAngle(m.steer.Position())
	m.steerRelativePos = m.steer.Position() + m.cfg.SteerEncoderOffset
	m.steerAbsoluteSpeed = m.steer.Velocity()
	m.steerRelativeSpeed = m.steerAbsoluteSpeed * m.cfg.SteerGearRatio
}

func (m *ModuleSimulation) propellingForce(grip, worldFacing float64, groundVelocity geometry.Translation, mass float64) geometry.Translation {
	torque := m.driveWheelTorque()
	theoretical := torque / m.cfg.WheelRadius
	m.skidding = math.Abs(theoretical) > grip

	force := theoretical
	if m.skidding {
		force = math.Copysign(grip, theoretical)
		// Only part of the torque spins the free wheel; the rest is lost to
		// the slipping contact patch.
		spin := torque * m.cfg.SkidTorqueFraction
		m.driveUngearedSpeed += spin / m.cfg.DriveWheelInertia * m.cfg.SubTickPeriod * m.cfg.DriveGearRatio
	} else {
		projection := groundVelocity.Dot(geometry.Polar(1, worldFacing))
		m.driveUngearedSpeed = projection / m.cfg.WheelRadius * m.cfg.DriveGearRatio
		if !m.driveLimited && mass > 0 {
			// Back-EMF stiffens with speed faster than a sub-tick can follow;
			// integrate it implicitly against the carried mass.
			force /= 1 + m.tractionDamping()*m.cfg.SubTickPeriod/mass
		}
	}
	return geometry.Polar(force, worldFacing)
}

// tractionDamping returns how fast the rolling wheel's force falls with
// ground speed, in N per m/s.
func (m *ModuleSimulation) tractionDamping() float64 {
	motor := m.cfg.DriveMotor
	g, r := m.cfg.DriveGearRatio, m.cfg.WheelRadius
	return g * g * motor.Kt / (motor.Kv * motor.R * r * r)
}

// driveWheelTorque returns the torque at the wheel after current limiting
// and friction.
func (m *ModuleSimulation) driveWheelTorque() float64 {
	m.driveAppliedVolts, m.driveLimited = LimitVoltage(
		m.cfg.DriveMotor,
		m.driveUngearedSpeed,
		m.driveRequestedVolts,
		m.driveSupplyCurrent,
		m.cfg.DriveCurrentLimit,
		m.cfg.CurrentLimitThreshold,
		m.cfg.SupplyVolts,
	)
	m.driveSupplyCurrent = m.cfg.DriveMotor.Current(
		m.driveUngearedSpeed,
		ApplyDeadband(m.driveAppliedVolts, m.cfg.DriveFrictionVolts, m.cfg.SupplyVolts),
	)
	return m.cfg.DriveMotor.Torque(m.driveSupplyCurrent) * m.cfg.DriveGearRatio
}

func (m *ModuleSimulation) updateDriveEncoder() {
	m.driveUngearedPosition += m.driveUngearedSpeed * m.cfg.SubTickPeriod
}

func (m *ModuleSimulation) checkFinite(force geometry.Translation) error {
	for _, v := range []float64{
		force.X, force.Y,
		m.driveUngearedSpeed, m.driveUngearedPosition, m.driveSupplyCurrent,
		m.steer.Position(), m.steer.Velocity(),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	return nil
}

// Fault returns the error that stopped the module, or nil.
func (m *ModuleSimulation) Fault() error { return m.fault }

// Skidding reports whether the wheel slipped on the last sub-tick.
func (m *ModuleSimulation) Skidding() bool { return m.skidding }

// CurrentLimited reports whether the drive voltage was cut on the last
// sub-tick.
func (m *ModuleSimulation) CurrentLimited() bool { return m.driveLimited }

// DriveRequestedVolts returns the last requested drive voltage.
func (m *ModuleSimulation) DriveRequestedVolts() float64 { return m.driveRequestedVolts }

// DriveAppliedVolts returns the drive voltage after limiting.
func (m *ModuleSimulation) DriveAppliedVolts() float64 { return m.driveAppliedVolts }

// DriveSupplyCurrent returns the drive motor current.
func (m *ModuleSimulation) DriveSupplyCurrent() float64 { return m.driveSupplyCurrent }

// SteerAppliedVolts returns the steer voltage.
func (m *ModuleSimulation) SteerAppliedVolts() float64 { return m.steer.InputVoltage() }

// SteerSupplyCurrent returns the steer motor current.
func (m *ModuleSimulation) SteerSupplyCurrent() float64 { return m.steer.Current() }

// DriveEncoderUngearedPosition returns the rotor position in radians.
func (m *ModuleSimulation) DriveEncoderUngearedPosition() float64 { return m.driveUngearedPosition }

// DriveEncoderUngearedSpeed returns the rotor speed in rad/s.
func (m *ModuleSimulation) DriveEncoderUngearedSpeed() float64 { return m.driveUngearedSpeed }

// DriveWheelPosition returns the wheel position in radians.
func (m *ModuleSimulation) DriveWheelPosition() float64 {
	return m.driveUngearedPosition / m.cfg.DriveGearRatio
}

// DriveWheelSpeed returns the wheel speed in rad/s.
func (m *ModuleSimulation) DriveWheelSpeed() float64 {
	return m.driveUngearedSpeed / m.cfg.DriveGearRatio
}

// SteerFacing returns the absolute steer angle, wrapped.
func (m *ModuleSimulation) SteerFacing() float64 { return m.steerFacing }

// SteerAbsoluteSpeed returns the steer speed in rad/s at the mechanism.
func (m *ModuleSimulation) SteerAbsoluteSpeed() float64 { return m.steerAbsoluteSpeed }

// SteerRelativePosition returns the relative steer encoder, which carries a
// fixed offset from the absolute facing.
func (m *ModuleSimulation) SteerRelativePosition() float64 { return m.steerRelativePos }

// SteerRelativeSpeed returns the steer rotor speed in rad/s.
func (m *ModuleSimulation) SteerRelativeSpeed() float64 { return m.steerRelativeSpeed }

// WheelRadius returns the configured wheel radius.
func (m *ModuleSimulation) WheelRadius() float64 { return m.cfg.WheelRadius }

// CachedDriveWheelPositions drains the sub-tick wheel positions (radians at
// the wheel), oldest first.
func (m *ModuleSimulation) CachedDriveWheelPositions(dst []float64) []float64 {
	dst = m.cachedDrive.Drain(dst)
	for i := range dst {
		dst[i] /= m.cfg.DriveGearRatio
	}
	return dst
}

// CachedSteerFacings drains the sub-tick absolute steer angles.
func (m *ModuleSimulation) CachedSteerFacings(dst []float64) []float64 {
	return m.cachedSteerFacing.Drain(dst)
}

// CacheDepth returns the number of samples held per cache.
func (m *ModuleSimulation) CacheDepth() int { return m.cachedDrive.Len() }

// CurrentState returns the measured wheel speed and steer angle.
func (m *ModuleSimulation) CurrentState() kinematics.ModuleState {
	return kinematics.ModuleState{
		SpeedMetersPerSecond: m.DriveWheelSpeed() * m.cfg.WheelRadius,
		Angle:                m.steerFacing,
	}
}
