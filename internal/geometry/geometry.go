// Package geometry holds the planar rigid-body types shared by the estimator,
// the kinematics utility and the chassis simulation.
//
// Coordinate convention: field frame, X forward from the origin wall, Y to
// the left, headings counter-clockwise positive in radians.
package geometry

import (
	"math"

	"github.com/banshee-data/swervesim/internal/units"
)

// Translation is a 2D vector in meters.
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Plus returns t + o.
func (t Translation) Plus(o Translation) Translation {
	return Translation{X: t.X + o.X, Y: t.Y + o.Y}
}

// Minus returns t − o.
func (t Translation) Minus(o Translation) Translation {
	return Translation{X: t.X - o.X, Y: t.Y - o.Y}
}

// Times scales the vector.
func (t Translation) Times(s float64) Translation {
	return Translation{X: t.X * s, Y: t.Y * s}
}

// Rotate rotates the vector counter-clockwise by rad.
func (t Translation) Rotate(rad float64) Translation {
	c, s := math.Cos(rad), math.Sin(rad)
	return Translation{X: t.X*c - t.Y*s, Y: t.X*s + t.Y*c}
}

// Norm returns the Euclidean length.
func (t Translation) Norm() float64 {
	return math.Hypot(t.X, t.Y)
}

// Angle returns the direction of the vector, or 0 for the zero vector.
func (t Translation) Angle() float64 {
	if t.X == 0 && t.Y == 0 {
		return 0
	}
	return math.Atan2(t.Y, t.X)
}

// Dot returns the scalar product.
func (t Translation) Dot(o Translation) float64 {
	return t.X*o.X + t.Y*o.Y
}

// Polar builds a translation from a magnitude and direction.
func Polar(magnitude, angle float64) Translation {
	return Translation{X: magnitude * math.Cos(angle), Y: magnitude * math.Sin(angle)}
}

// Twist is a change in pose along an arc, expressed in the starting pose's
// frame.
type Twist struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	DTheta float64 `json:"dtheta"`
}

// Scale multiplies every component by s.
func (tw Twist) Scale(s float64) Twist {
	return Twist{DX: tw.DX * s, DY: tw.DY * s, DTheta: tw.DTheta * s}
}

// Pose is a position on the field plus a heading wrapped to (−π, π].
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// NewPose builds a pose and wraps the heading.
func NewPose(x, y, heading float64) Pose {
	return Pose{X: x, Y: y, Heading: units.WrapAngle(heading)}
}

// Translation returns the position part of the pose.
func (p Pose) Translation() Translation {
	return Translation{X: p.X, Y: p.Y}
}

// IsFinite reports whether every component is a finite number.
func (p Pose) IsFinite() bool {
	for _, v := range [3]float64{p.X, p.Y, p.Heading} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RelativeTo expresses p in the frame of origin.
func (p Pose) RelativeTo(origin Pose) Pose {
	d := p.Translation().Minus(origin.Translation()).Rotate(-origin.Heading)
	return Pose{X: d.X, Y: d.Y, Heading: units.AngleDifference(p.Heading, origin.Heading)}
}

// TransformBy applies rel, expressed in p's frame, on top of p. It is the
// inverse of RelativeTo: o.RelativeTo(p) transformed by p gives o back.
func (p Pose) TransformBy(rel Pose) Pose {
	moved := p.Translation().Plus(rel.Translation().Rotate(p.Heading))
	return NewPose(moved.X, moved.Y, p.Heading+rel.Heading)
}

// Exp integrates a twist starting from p using the SE(2) exponential map.
func (p Pose) Exp(tw Twist) Pose {
	dTheta := tw.DTheta
	sinTheta, cosTheta := math.Sin(dTheta), math.Cos(dTheta)

	var s, c float64
	if math.Abs(dTheta) < 1e-9 {
		s = 1.0 - dTheta*dTheta/6.0
		c = 0.5 * dTheta
	} else {
		s = sinTheta / dTheta
		c = (1 - cosTheta) / dTheta
	}

	local := Translation{X: tw.DX*s - tw.DY*c, Y: tw.DX*c + tw.DY*s}
	moved := p.Translation().Plus(local.Rotate(p.Heading))
	return NewPose(moved.X, moved.Y, p.Heading+dTheta)
}

// Log returns the twist that takes p onto end, the inverse of Exp.
func (p Pose) Log(end Pose) Twist {
	rel := end.RelativeTo(p)
	dTheta := rel.Heading
	halfDTheta := dTheta / 2.0
	cosMinusOne := math.Cos(dTheta) - 1

	var halfThetaByTanOfHalfDTheta float64
	if math.Abs(cosMinusOne) < 1e-9 {
		halfThetaByTanOfHalfDTheta = 1.0 - dTheta*dTheta/12.0
	} else {
		halfThetaByTanOfHalfDTheta = -(halfDTheta * math.Sin(dTheta)) / cosMinusOne
	}

	rot := math.Atan2(-halfDTheta, halfThetaByTanOfHalfDTheta)
	scale := math.Hypot(halfThetaByTanOfHalfDTheta, halfDTheta)
	part := rel.Translation().Rotate(rot).Times(scale)
	return Twist{DX: part.X, DY: part.Y, DTheta: dTheta}
}

// Interpolate returns the pose a fraction t ∈ [0, 1] of the way along the
// twist from p to end. t is clamped.
func (p Pose) Interpolate(end Pose, t float64) Pose {
	switch {
	case t <= 0:
		return p
	case t >= 1:
		return end
	}
	return p.Exp(p.Log(end).Scale(t))
}

// ApproxEqual reports whether two poses agree within tol on every axis.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	return math.Abs(p.X-o.X) <= tol &&
		math.Abs(p.Y-o.Y) <= tol &&
		math.Abs(units.AngleDifference(p.Heading, o.Heading)) <= tol
}
