package sim

import (
	"fmt"
	"math"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/units"
)

// DCMotor is a steady-state brushed/brushless DC motor model. Speeds are
// rotor speeds in rad/s, torques in N·m, currents in A.
type DCMotor struct {
	NominalVoltage float64
	StallTorque    float64
	StallCurrent   float64
	FreeCurrent    float64
	FreeSpeed      float64 // rad/s

	R  float64 // winding resistance, ohms
	Kv float64 // rad/s per volt
	Kt float64 // N·m per amp
}

// NewDCMotor derives the motor constants from datasheet values. The stall
// and free-current figures scale with the number of motors on the gearbox.
func NewDCMotor(nominalVoltage, stallTorque, stallCurrent, freeCurrent, freeSpeed float64, numMotors int) DCMotor {
	n := float64(numMotors)
	m := DCMotor{
		NominalVoltage: nominalVoltage,
		StallTorque:    stallTorque * n,
		StallCurrent:   stallCurrent * n,
		FreeCurrent:    freeCurrent * n,
		FreeSpeed:      freeSpeed,
	}
	m.R = m.NominalVoltage / m.StallCurrent
	m.Kv = m.FreeSpeed / (m.NominalVoltage - m.R*m.FreeCurrent)
	m.Kt = m.StallTorque / m.StallCurrent
	return m
}

// KrakenX60 returns numMotors Kraken X60s.
func KrakenX60(numMotors int) DCMotor {
	return NewDCMotor(12, 7.09, 366, 2, units.RPMToRadPerSec(6000), numMotors)
}

// Falcon500 returns numMotors Falcon 500s.
func Falcon500(numMotors int) DCMotor {
	return NewDCMotor(12, 4.69, 257, 1.5, units.RPMToRadPerSec(6380), numMotors)
}

// NEO returns numMotors REV NEOs.
func NEO(numMotors int) DCMotor {
	return NewDCMotor(12, 2.6, 105, 1.8, units.RPMToRadPerSec(5676), numMotors)
}

// MotorByName returns the preset for a config motor name.
func MotorByName(name string, numMotors int) (DCMotor, error) {
	switch name {
	case config.MotorKrakenX60:
		return KrakenX60(numMotors), nil
	case config.MotorFalcon500:
		return Falcon500(numMotors), nil
	case config.MotorNEO:
		return NEO(numMotors), nil
	}
	return DCMotor{}, fmt.Errorf("sim: unknown motor %q", name)
}

// Current returns the current drawn at rotor speed with volts applied.
func (m DCMotor) Current(speed, volts float64) float64 {
	return -speed/(m.Kv*m.R) + volts/m.R
}

// Torque returns the torque produced by current.
func (m DCMotor) Torque(current float64) float64 {
	return current * m.Kt
}

// CurrentForTorque returns the current needed to produce torque.
func (m DCMotor) CurrentForTorque(torque float64) float64 {
	return torque / m.Kt
}

// Voltage returns the voltage that produces torque at rotor speed.
func (m DCMotor) Voltage(torque, speed float64) float64 {
	return speed/m.Kv + torque*m.R/m.Kt
}

// Speed returns the rotor speed at which volts produces torque.
func (m DCMotor) Speed(torque, volts float64) float64 {
	return volts*m.Kv - torque*m.R*m.Kv/m.Kt
}

// ApplyDeadband zeroes values within ±deadband and rescales the rest so
// that ±maxMagnitude still maps onto itself.
func ApplyDeadband(value, deadband, maxMagnitude float64) float64 {
	if math.Abs(value) <= deadband {
		return 0
	}
	if deadband <= 0 || maxMagnitude/deadband > 1e12 {
		if value > 0 {
			return value - deadband
		}
		return value + deadband
	}
	if value > 0 {
		return maxMagnitude * (value - deadband) / (maxMagnitude - deadband)
	}
	return maxMagnitude * (value + deadband) / (maxMagnitude - deadband)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// LimitVoltage applies a motor controller's supply current limit. When the
// current drawn at the requested voltage exceeds threshold·limit and the
// request pushes the same way the motor is already drawing current
// (accelerating, not braking), the applied voltage is cut to the value that
// draws exactly ±limit at the present rotor speed. The result is always
// clamped to ±supply.
func LimitVoltage(motor DCMotor, speed, requested, previousCurrent, limit, threshold, supply float64) (applied float64, limited bool) {
	current := motor.Current(speed, requested)
	applied = requested
	if math.Abs(current) > threshold*limit && requested*previousCurrent > 0 {
		applied = motor.Voltage(motor.Torque(math.Copysign(limit, current)), speed)
		limited = true
	}
	return clamp(applied, -supply, supply), limited
}
