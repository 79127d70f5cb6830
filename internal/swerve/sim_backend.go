package swerve

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/sim"
)

// Gains are the closed-loop constants used by SimulatedModule.
type Gains struct {
	DriveKS float64 // V
	DriveKV float64 // V per m/s
	DriveKP float64 // V per m/s of error
	SteerKP float64 // V per rad
	SteerKD float64 // V per rad/s
}

// NewGains reads controller gains from the swerve configuration.
func NewGains(cfg *config.SwerveConfig) Gains {
	return Gains{
		DriveKS: cfg.GetDriveKS(),
		DriveKV: cfg.GetDriveKV(),
		DriveKP: cfg.GetDriveKP(),
		SteerKP: cfg.GetSteerKP(),
		SteerKD: cfg.GetSteerKD(),
	}
}

// SimulatedModule runs the module's closed loop against the physics model.
type SimulatedModule struct {
	sim   *sim.ModuleSimulation
	chass *sim.DriveSimulation
	gains Gains
}

// NewSimulatedModule wraps module, which must belong to chassis.
func NewSimulatedModule(module *sim.ModuleSimulation, chassis *sim.DriveSimulation, gains Gains) *SimulatedModule {
	return &SimulatedModule{sim: module, chass: chassis, gains: gains}
}

// UpdateInputs implements ModuleIO.
func (m *SimulatedModule) UpdateInputs(in *ModuleInputs) {
	in.Connected = m.sim.Fault() == nil
	in.DrivePositionRad = m.sim.DriveWheelPosition()
	in.DriveVelocityRadPerSec = m.sim.DriveWheelSpeed()
	in.DriveAppliedVolts = m.sim.DriveAppliedVolts()
	in.DriveCurrentAmps = math.Abs(m.sim.DriveSupplyCurrent())
	in.SteerAbsolutePosition = m.sim.SteerFacing()
	in.SteerVelocityRadPerSec = m.sim.SteerAbsoluteSpeed()
	in.SteerAppliedVolts = m.sim.SteerAppliedVolts()
	in.SteerCurrentAmps = math.Abs(m.sim.SteerSupplyCurrent())
	in.Skidding = m.sim.Skidding()
	in.CurrentLimited = m.sim.CurrentLimited()

	in.OdometryTimestamps = m.chass.CachedTimestamps(in.OdometryTimestamps)
	in.OdometryDrivePositionsRad = m.sim.CachedDriveWheelPositions(in.OdometryDrivePositionsRad)
	in.OdometrySteerPositions = m.sim.CachedSteerFacings(in.OdometrySteerPositions)
	if !in.Connected {
		in.OdometryTimestamps = in.OdometryTimestamps[:0]
		in.OdometryDrivePositionsRad = in.OdometryDrivePositionsRad[:0]
		in.OdometrySteerPositions = in.OdometrySteerPositions[:0]
	}
}

// SetTarget implements ModuleIO with a feedforward plus proportional drive
// loop and a PD steer loop on the continuous setpoint. The speed is scaled
// by the cosine of the remaining steer error so the wheel does not push
// sideways while it turns.
func (m *SimulatedModule) SetTarget(state kinematics.ModuleState) {
	facing := m.sim.SteerFacing()
	setpoint := ContinuousSetpoint(facing, state.Angle)
	speed := state.SpeedMetersPerSecond * math.Cos(setpoint-facing)

	measured := m.sim.CurrentState().SpeedMetersPerSecond
	drive := m.gains.DriveKV*speed + m.gains.DriveKP*(speed-measured)
	if speed != 0 {
		drive += math.Copysign(m.gains.DriveKS, speed)
	}
	steer := m.gains.SteerKP*(setpoint-facing) - m.gains.SteerKD*m.sim.SteerAbsoluteSpeed()

	m.sim.RequestDriveVoltage(drive)
	m.sim.RequestSteerVoltage(steer)
}

// ReadState implements ModuleIO.
func (m *SimulatedModule) ReadState() kinematics.ModuleState {
	return m.sim.CurrentState()
}

// Stop implements ModuleIO.
func (m *SimulatedModule) Stop() {
	m.sim.RequestDriveVoltage(0)
	m.sim.RequestSteerVoltage(0)
}

// SimulatedGyro reads the simulated yaw sensor.
type SimulatedGyro struct {
	sim *sim.GyroSimulation
}

// NewSimulatedGyro wraps gyro.
func NewSimulatedGyro(gyro *sim.GyroSimulation) *SimulatedGyro {
	return &SimulatedGyro{sim: gyro}
}

// UpdateInputs implements GyroIO.
func (g *SimulatedGyro) UpdateInputs(in *GyroInputs) {
	in.Connected = true
	in.Yaw = g.sim.Yaw()
	in.YawRate = g.sim.YawRate()
	in.OdometryYaws = g.sim.CachedYaws(in.OdometryYaws)
}

// Simulation bundles a drive with the physics behind it.
type Simulation struct {
	Drive   *Drive
	Chassis *sim.DriveSimulation
}

// NewSimulation builds the physics for cfg, starts the chassis at initial,
// and puts a Drive with simulated backends on top. Steer encoders start at
// seeded random angles and offsets, as real modules do at power-on.
func NewSimulation(cfg *config.SwerveConfig, initial geometry.Pose) (*Simulation, error) {
	moduleCfg, err := sim.NewModuleConfig(cfg)
	if err != nil {
		return nil, err
	}
	seed := uint64(cfg.GetSeed())
	rng := rand.New(rand.NewPCG(seed, seed+1))

	locations := cfg.GetModuleLocations()
	translations := make([]geometry.Translation, len(locations))
	modules := make([]*sim.ModuleSimulation, len(locations))
	for i, l := range locations {
		translations[i] = geometry.Translation{X: l.X, Y: l.Y}
		mc := moduleCfg
		mc.InitialSteerAngle = (rng.Float64()*2 - 1) * math.Pi
		mc.SteerEncoderOffset = (rng.Float64() - 0.5) * 30
		if modules[i], err = sim.NewModuleSimulation(mc); err != nil {
			return nil, fmt.Errorf("module %s: %w", l.Name, err)
		}
	}

	gyro := sim.NewGyroSimulation(cfg.GetGyroNoiseStd(), cfg.GetGyroDriftRatio(), cfg.GetSubTicks(), seed+2, initial.Heading)
	chassis, err := sim.NewDriveSimulation(sim.ChassisConfig{
		MassKg:          cfg.GetRobotMassKg(),
		MOI:             cfg.GetRobotMOI(),
		ModuleLocations: translations,
		SubTicks:        cfg.GetSubTicks(),
		SubTickPeriod:   cfg.GetSubTickPeriod().Seconds(),
		WheelCOF:        cfg.GetWheelCOF(),
	}, modules, gyro, initial)
	if err != nil {
		return nil, err
	}

	gains := NewGains(cfg)
	wrapped := make([]*Module, len(modules))
	for i, m := range modules {
		wrapped[i] = NewModule(locations[i].Name, NewSimulatedModule(m, chassis, gains), cfg.GetWheelRadiusMeters())
	}
	drive, err := NewDrive(cfg, wrapped, NewSimulatedGyro(gyro), initial)
	if err != nil {
		return nil, err
	}
	return &Simulation{Drive: drive, Chassis: chassis}, nil
}

// Step advances the physics by one control period.
func (s *Simulation) Step() error { return s.Chassis.Step() }

// TruePose returns the simulated ground-truth pose.
func (s *Simulation) TruePose() geometry.Pose { return s.Chassis.Pose() }

// Time returns simulated seconds since start.
func (s *Simulation) Time() float64 { return s.Chassis.Time() }

// ResetPose moves the simulated robot and the estimate to pose together.
func (s *Simulation) ResetPose(pose geometry.Pose) error {
	if err := s.Drive.ResetPose(pose); err != nil {
		return err
	}
	s.Chassis.SetPose(s.Drive.Pose())
	return nil
}
