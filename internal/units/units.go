// Package units provides shared conversions for angles and speeds used by
// the drive, simulation and status packages.
package units

import "math"

// Speed unit constants accepted by the status API.
const (
	MPS  = "mps"
	FPS  = "fps"
	KMPH = "kmph"
)

// ValidUnits contains all valid speed unit values
var ValidUnits = []string{MPS, FPS, KMPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, fps, kmph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Internally every speed is carried in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case FPS:
		return speedMPS * 3.280839895
	case KMPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(deg float64) float64 { return deg * math.Pi / 180 }

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// RPMToRadPerSec converts revolutions per minute to rad/s.
func RPMToRadPerSec(rpm float64) float64 { return rpm * 2 * math.Pi / 60 }
