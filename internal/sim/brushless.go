package sim

// BrushlessMotorSim integrates a geared motor driving a pure inertia, with
// a friction deadband on the input voltage. Positions and velocities are at
// the mechanism (after the gearbox).
type BrushlessMotorSim struct {
	motor         DCMotor
	gearRatio     float64
	inertia       float64 // kg·m² at the mechanism
	frictionVolts float64
	supplyVolts   float64

	inputVolts float64
	position   float64 // rad
	velocity   float64 // rad/s
	current    float64 // A
}

// NewBrushlessMotorSim creates a simulated mechanism at rest at position.
func NewBrushlessMotorSim(motor DCMotor, gearRatio, inertia, frictionVolts, supplyVolts, position float64) *BrushlessMotorSim {
	return &BrushlessMotorSim{
		motor:         motor,
		gearRatio:     gearRatio,
		inertia:       inertia,
		frictionVolts: frictionVolts,
		supplyVolts:   supplyVolts,
		position:      position,
	}
}

// SetInputVoltage sets the voltage held across the next updates, clamped to
// the supply rail.
func (s *BrushlessMotorSim) SetInputVoltage(volts float64) {
	s.inputVolts = clamp(volts, -s.supplyVolts, s.supplyVolts)
}

// Update advances the mechanism by dt seconds with semi-implicit Euler.
func (s *BrushlessMotorSim) Update(dt float64) {
	effective := ApplyDeadband(s.inputVolts, s.frictionVolts, s.supplyVolts)
	s.current = s.motor.Current(s.velocity*s.gearRatio, effective)
	torque := s.motor.Torque(s.current) * s.gearRatio
	s.velocity += torque / s.inertia * dt
	s.position += s.velocity * dt
}

// InputVoltage returns the applied voltage.
func (s *BrushlessMotorSim) InputVoltage() float64 { return s.inputVolts }

// Position returns the unwrapped mechanism angle in radians.
func (s *BrushlessMotorSim) Position() float64 { return s.position }

// Velocity returns the mechanism speed in rad/s.
func (s *BrushlessMotorSim) Velocity() float64 { return s.velocity }

// Current returns the motor current from the last update.
func (s *BrushlessMotorSim) Current() float64 { return s.current }
