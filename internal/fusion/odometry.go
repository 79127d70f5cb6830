package fusion

import (
	"fmt"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/units"
)

// Odometry dead-reckons the chassis pose from module travel and the gyro.
// Translation comes from the wheels; heading comes from the gyro, offset so
// that a reset can place the robot at any heading.
type Odometry struct {
	kin           *kinematics.SwerveKinematics
	pose          geometry.Pose
	gyroOffset    float64
	previousAngle float64
	previous      []kinematics.ModulePosition
}

// NewOdometry starts odometry at initial with the given sensor readings.
func NewOdometry(kin *kinematics.SwerveKinematics, gyroAngle float64, positions []kinematics.ModulePosition, initial geometry.Pose) (*Odometry, error) {
	o := &Odometry{kin: kin}
	if err := o.Reset(gyroAngle, positions, initial); err != nil {
		return nil, err
	}
	return o, nil
}

// Reset places the robot at pose without moving the sensors. The heading is
// wrapped; a non-finite pose is rejected and the state left as it was.
func (o *Odometry) Reset(gyroAngle float64, positions []kinematics.ModulePosition, pose geometry.Pose) error {
	if len(positions) != o.kin.NumModules() {
		return fmt.Errorf("%w: got %d positions for %d modules", kinematics.ErrModuleCount, len(positions), o.kin.NumModules())
	}
	if !pose.IsFinite() {
		return fmt.Errorf("odometry reset: %w", ErrNonFinitePose)
	}
	pose = geometry.NewPose(pose.X, pose.Y, pose.Heading)
	o.pose = pose
	o.gyroOffset = units.AngleDifference(pose.Heading, gyroAngle)
	o.previousAngle = pose.Heading
	o.previous = append(o.previous[:0], positions...)
	return nil
}

// Update advances the pose by the motion since the previous call and returns
// it. The wheel twist's rotation is replaced by the gyro's.
func (o *Odometry) Update(gyroAngle float64, positions []kinematics.ModulePosition) (geometry.Pose, error) {
	if len(positions) != len(o.previous) {
		return o.pose, fmt.Errorf("%w: got %d positions for %d modules", kinematics.ErrModuleCount, len(positions), len(o.previous))
	}
	deltas := make([]kinematics.ModulePosition, len(positions))
	for i := range positions {
		deltas[i] = positions[i].Delta(o.previous[i])
	}
	twist, err := o.kin.ToTwist(deltas...)
	if err != nil {
		return o.pose, err
	}

	angle := units.WrapAngle(gyroAngle + o.gyroOffset)
	twist.DTheta = units.AngleDifference(angle, o.previousAngle)

	next := o.pose.Exp(twist)
	next.Heading = angle
	if !next.IsFinite() {
		return o.pose, fmt.Errorf("odometry: %w", ErrNonFinitePose)
	}

	copy(o.previous, positions)
	o.previousAngle = angle
	o.pose = next
	return next, nil
}

// Pose returns the dead-reckoned pose.
func (o *Odometry) Pose() geometry.Pose { return o.pose }

// SetPose overwrites the pose, keeping the gyro offset aligned with it.
func (o *Odometry) SetPose(pose geometry.Pose) {
	o.gyroOffset += units.AngleDifference(pose.Heading, o.pose.Heading)
	o.previousAngle = pose.Heading
	o.pose = pose
}
