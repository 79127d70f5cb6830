package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/monitoring"
)

// Gravity is standard gravity in m/s².
const Gravity = 9.80665

// lateralDamping is the share of a wheel's sideways slip removed per
// sub-tick while the tyre holds.
const lateralDamping = 0.5

// ChassisConfig describes the rigid body carried by the modules.
type ChassisConfig struct {
	MassKg          float64
	MOI             float64 // kg·m² about the vertical axis
	ModuleLocations []geometry.Translation
	SubTicks        int
	SubTickPeriod   float64 // s
	WheelCOF        float64
}

// DriveSimulation is a planar rigid-body chassis pushed by its modules.
// Each Step advances one control period in SubTicks sub-ticks. It is not
// safe for concurrent use; the control loop owns it.
type DriveSimulation struct {
	cfg     ChassisConfig
	modules []*ModuleSimulation
	gyro    *GyroSimulation

	pose     geometry.Pose
	velocity geometry.Translation // field frame, m/s
	omega    float64              // rad/s

	time       float64 // s since start
	timestamps *SampleCache[float64]
}

// NewDriveSimulation assembles a chassis. modules and cfg.ModuleLocations
// must line up one to one.
func NewDriveSimulation(cfg ChassisConfig, modules []*ModuleSimulation, gyro *GyroSimulation, initial geometry.Pose) (*DriveSimulation, error) {
	if len(modules) != len(cfg.ModuleLocations) {
		return nil, fmt.Errorf("sim: %d modules for %d locations", len(modules), len(cfg.ModuleLocations))
	}
	if len(modules) < 2 {
		return nil, fmt.Errorf("sim: need at least 2 modules, got %d", len(modules))
	}
	if !(cfg.MassKg > 0) || !(cfg.MOI > 0) || !(cfg.SubTickPeriod > 0) || cfg.SubTicks < 1 {
		return nil, fmt.Errorf("sim: invalid chassis config %+v", cfg)
	}
	gyro.SetYaw(initial.Heading)
	return &DriveSimulation{
		cfg:        cfg,
		modules:    modules,
		gyro:       gyro,
		pose:       initial,
		timestamps: NewSampleCache(cfg.SubTicks, 0.0),
	}, nil
}

// Step runs one control period. Faulted modules stop pushing but the
// chassis keeps integrating; each module's fault is reported once per Step.
func (d *DriveSimulation) Step() error {
	faulted := make([]error, len(d.modules))
	var chassis error
	for i := 0; i < d.cfg.SubTicks; i++ {
		if err := d.subTick(faulted); err != nil && chassis == nil {
			chassis = err
			monitoring.Logf("sim: chassis state went non-finite at t=%.3f", d.time)
		}
	}

	var faults []error
	for i, err := range faulted {
		if err != nil {
			faults = append(faults, fmt.Errorf("module %d: %w", i, err))
		}
	}
	if chassis != nil {
		faults = append(faults, chassis)
	}
	return errors.Join(faults...)
}

// subTick advances the chassis by one sub-tick, recording the first fault of
// each module in faulted. It returns ErrNonFinite when the chassis itself
// goes non-finite.
func (d *DriveSimulation) subTick(faulted []error) error {
	dt := d.cfg.SubTickPeriod
	n := float64(len(d.modules))
	normal := d.cfg.MassKg * Gravity / n
	share := d.cfg.MassKg / n

	var total geometry.Translation
	var torque float64
	for i, m := range d.modules {
		r := d.cfg.ModuleLocations[i].Rotate(d.pose.Heading)
		ground := d.velocity.Plus(geometry.Translation{X: -d.omega * r.Y, Y: d.omega * r.X})

		force, err := m.SubTick(Contact{
			GroundVelocity: ground,
			RobotHeading:   d.pose.Heading,
			NormalForce:    normal,
			Mass:           share,
		})
		if err != nil {
			if faulted[i] == nil {
				faulted[i] = err
			}
			continue
		}
		force = force.Plus(lateralFriction(ground, m.SteerFacing()+d.pose.Heading, share, normal*d.cfg.WheelCOF, dt))

		total = total.Plus(force)
		torque += r.X*force.Y - r.Y*force.X
	}

	d.velocity = d.velocity.Plus(total.Times(dt / d.cfg.MassKg))
	d.omega += torque / d.cfg.MOI * dt
	moved := d.pose.Translation().Plus(d.velocity.Times(dt))
	d.pose = geometry.NewPose(moved.X, moved.Y, d.pose.Heading+d.omega*dt)
	d.gyro.SubTick(d.omega, dt)

	d.time += dt
	d.timestamps.Push(d.time)

	if !d.pose.IsFinite() {
		return ErrNonFinite
	}
	return nil
}

// lateralFriction opposes the slip of a contact patch across the wheel,
// limited by grip.
func lateralFriction(ground geometry.Translation, worldFacing, mass, grip, dt float64) geometry.Translation {
	side := geometry.Polar(1, worldFacing+math.Pi/2)
	slip := ground.Dot(side)
	f := -lateralDamping * mass * slip / dt
	f = clamp(f, -grip, grip)
	return side.Times(f)
}

// SetPose teleports the chassis and stops it. The gyro is not touched.
func (d *DriveSimulation) SetPose(p geometry.Pose) {
	d.pose = p
	d.velocity = geometry.Translation{}
	d.omega = 0
}

// Pose returns the true chassis pose.
func (d *DriveSimulation) Pose() geometry.Pose { return d.pose }

// Velocity returns the true field-relative chassis speeds.
func (d *DriveSimulation) Velocity() kinematics.ChassisSpeeds {
	return kinematics.ChassisSpeeds{VX: d.velocity.X, VY: d.velocity.Y, Omega: d.omega}
}

// RobotRelativeVelocity returns the chassis speeds in the robot frame.
func (d *DriveSimulation) RobotRelativeVelocity() kinematics.ChassisSpeeds {
	v := d.velocity.Rotate(-d.pose.Heading)
	return kinematics.ChassisSpeeds{VX: v.X, VY: v.Y, Omega: d.omega}
}

// Modules returns the simulated modules in location order.
func (d *DriveSimulation) Modules() []*ModuleSimulation { return d.modules }

// Gyro returns the simulated gyro.
func (d *DriveSimulation) Gyro() *GyroSimulation { return d.gyro }

// Time returns the simulated seconds since start.
func (d *DriveSimulation) Time() float64 { return d.time }

// CachedTimestamps drains the sub-tick timestamps of the last period,
// oldest first.
func (d *DriveSimulation) CachedTimestamps(dst []float64) []float64 {
	return d.timestamps.Drain(dst)
}

// SubTicks returns the number of sub-ticks per Step.
func (d *DriveSimulation) SubTicks() int { return d.cfg.SubTicks }
