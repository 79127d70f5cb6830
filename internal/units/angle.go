package units

import "math"

// WrapAngle maps an angle in radians onto (−π, π].
func WrapAngle(rad float64) float64 {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return rad
	}
	if rad > -math.Pi && rad <= math.Pi {
		return rad
	}
	wrapped := math.Mod(rad+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// AngleDifference returns the shortest signed rotation taking from onto to,
// in (−π, π].
func AngleDifference(to, from float64) float64 {
	return WrapAngle(to - from)
}

// Remainder returns x − n·y where n is x/y rounded to the nearest integer
// (ties to even), matching the IEEE 754 remainder operation.
func Remainder(x, y float64) float64 {
	return math.Remainder(x, y)
}
