// Package kinematics converts between chassis velocities and per-module
// swerve states.
//
// The inverse model stacks one 2×3 block per module,
//
//	[vx_i]   [1 0 -y_i] [vx]
//	[vy_i] = [0 1  x_i] [vy]
//	                    [ω ]
//
// and the forward model is its least-squares pseudo-inverse.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/units"
)

// ErrModuleCount is returned when the number of states or positions passed in
// does not match the number of modules.
var ErrModuleCount = errors.New("kinematics: module count mismatch")

// ChassisSpeeds is a robot-relative velocity.
type ChassisSpeeds struct {
	VX    float64 `json:"vx"`    // m/s, forward
	VY    float64 `json:"vy"`    // m/s, left
	Omega float64 `json:"omega"` // rad/s, counter-clockwise
}

// FromFieldRelative converts a field-relative velocity into robot-relative
// speeds given the robot heading.
func FromFieldRelative(vx, vy, omega, heading float64) ChassisSpeeds {
	v := geometry.Translation{X: vx, Y: vy}.Rotate(-heading)
	return ChassisSpeeds{VX: v.X, VY: v.Y, Omega: omega}
}

// Discretize corrects for the translational skew that appears when a
// velocity containing rotation is held constant for dt seconds.
func Discretize(s ChassisSpeeds, dt float64) ChassisSpeeds {
	if dt <= 0 {
		return s
	}
	desired := geometry.NewPose(s.VX*dt, s.VY*dt, s.Omega*dt)
	tw := geometry.Pose{}.Log(desired)
	return ChassisSpeeds{VX: tw.DX / dt, VY: tw.DY / dt, Omega: tw.DTheta / dt}
}

// IsZero reports whether every component is zero.
func (s ChassisSpeeds) IsZero() bool {
	return s.VX == 0 && s.VY == 0 && s.Omega == 0
}

// ModuleState is a wheel speed and steer angle.
type ModuleState struct {
	SpeedMetersPerSecond float64 `json:"speed_mps"`
	Angle                float64 `json:"angle"` // radians, wrapped
}

// ModulePosition is the cumulative wheel travel and steer angle.
type ModulePosition struct {
	DistanceMeters float64 `json:"distance_m"` // cumulative, signed
	Angle          float64 `json:"angle"`      // radians, wrapped
}

// Delta returns the travel from start to p, at p's angle.
func (p ModulePosition) Delta(start ModulePosition) ModulePosition {
	return ModulePosition{DistanceMeters: p.DistanceMeters - start.DistanceMeters, Angle: p.Angle}
}

// SwerveKinematics holds the module layout. It is immutable after
// construction and safe for concurrent use.
type SwerveKinematics struct {
	modules []geometry.Translation
	inverse *mat.Dense // 2N×3
	forward *mat.Dense // 3×2N
}

// NewSwerveKinematics builds the model for modules at the given positions
// relative to the chassis centre.
func NewSwerveKinematics(modules ...geometry.Translation) (*SwerveKinematics, error) {
	n := len(modules)
	if n < 2 {
		return nil, fmt.Errorf("kinematics: need at least 2 modules, got %d", n)
	}

	inverse := mat.NewDense(2*n, 3, nil)
	for i, m := range modules {
		inverse.SetRow(2*i, []float64{1, 0, -m.Y})
		inverse.SetRow(2*i+1, []float64{0, 1, m.X})
	}

	ones := make([]float64, 2*n)
	for i := range ones {
		ones[i] = 1
	}
	var forward mat.Dense
	if err := forward.Solve(inverse, mat.NewDiagDense(2*n, ones)); err != nil {
		return nil, fmt.Errorf("kinematics: module layout is degenerate: %w", err)
	}

	out := &SwerveKinematics{
		modules: append([]geometry.Translation(nil), modules...),
		inverse: inverse,
		forward: &forward,
	}
	return out, nil
}

// NumModules returns the number of modules.
func (k *SwerveKinematics) NumModules() int { return len(k.modules) }

// Modules returns a copy of the module positions.
func (k *SwerveKinematics) Modules() []geometry.Translation {
	return append([]geometry.Translation(nil), k.modules...)
}

// ToModuleStates returns the per-module state that realises speeds. A module
// with zero commanded speed reports angle 0.
func (k *SwerveKinematics) ToModuleStates(speeds ChassisSpeeds) []ModuleState {
	var v mat.VecDense
	v.MulVec(k.inverse, mat.NewVecDense(3, []float64{speeds.VX, speeds.VY, speeds.Omega}))

	states := make([]ModuleState, len(k.modules))
	for i := range states {
		t := geometry.Translation{X: v.AtVec(2 * i), Y: v.AtVec(2*i + 1)}
		states[i] = ModuleState{SpeedMetersPerSecond: t.Norm(), Angle: units.WrapAngle(t.Angle())}
	}
	return states
}

// ToChassisSpeeds returns the best-fit chassis velocity for measured module
// states.
func (k *SwerveKinematics) ToChassisSpeeds(states ...ModuleState) (ChassisSpeeds, error) {
	if len(states) != len(k.modules) {
		return ChassisSpeeds{}, fmt.Errorf("%w: got %d states for %d modules", ErrModuleCount, len(states), len(k.modules))
	}
	b := make([]float64, 2*len(states))
	for i, s := range states {
		t := geometry.Polar(s.SpeedMetersPerSecond, s.Angle)
		b[2*i], b[2*i+1] = t.X, t.Y
	}
	x := k.solve(b)
	return ChassisSpeeds{VX: x[0], VY: x[1], Omega: x[2]}, nil
}

// ToTwist returns the chassis motion implied by per-module travel since the
// previous sample. Each delta carries the distance travelled and the steer
// angle at the end of the interval.
func (k *SwerveKinematics) ToTwist(deltas ...ModulePosition) (geometry.Twist, error) {
	if len(deltas) != len(k.modules) {
		return geometry.Twist{}, fmt.Errorf("%w: got %d deltas for %d modules", ErrModuleCount, len(deltas), len(k.modules))
	}
	b := make([]float64, 2*len(deltas))
	for i, d := range deltas {
		t := geometry.Polar(d.DistanceMeters, d.Angle)
		b[2*i], b[2*i+1] = t.X, t.Y
	}
	x := k.solve(b)
	return geometry.Twist{DX: x[0], DY: x[1], DTheta: x[2]}, nil
}

func (k *SwerveKinematics) solve(b []float64) [3]float64 {
	var x mat.VecDense
	x.MulVec(k.forward, mat.NewVecDense(len(b), b))
	return [3]float64{x.AtVec(0), x.AtVec(1), x.AtVec(2)}
}

// DesaturateWheelSpeeds scales every state down proportionally so no wheel
// exceeds maxSpeed, preserving the commanded direction of travel.
func DesaturateWheelSpeeds(states []ModuleState, maxSpeed float64) {
	if maxSpeed <= 0 {
		return
	}
	fastest := 0.0
	for _, s := range states {
		fastest = math.Max(fastest, math.Abs(s.SpeedMetersPerSecond))
	}
	if fastest <= maxSpeed {
		return
	}
	scale := maxSpeed / fastest
	for i := range states {
		states[i].SpeedMetersPerSecond *= scale
	}
}
