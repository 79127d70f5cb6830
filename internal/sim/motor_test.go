package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/config"
)

func TestDCMotorConstants(t *testing.T) {
	t.Parallel()

	m := KrakenX60(1)
	assert.InDelta(t, 12.0/366, m.R, 1e-12)
	assert.InDelta(t, 7.09/366, m.Kt, 1e-12)
	assert.InDelta(t, 6000*2*math.Pi/60/(12-m.R*2), m.Kv, 1e-9)

	// Stall: zero speed at nominal voltage draws the stall current.
	assert.InDelta(t, 366, m.Current(0, 12), 1e-9)
	// Free speed at nominal voltage draws the free current.
	assert.InDelta(t, 2, m.Current(m.FreeSpeed, 12), 1e-9)

	pair := KrakenX60(2)
	assert.InDelta(t, m.R/2, pair.R, 1e-12)
	assert.InDelta(t, m.Kt, pair.Kt, 1e-12)
}

func TestDCMotorInverses(t *testing.T) {
	t.Parallel()

	for _, m := range []DCMotor{KrakenX60(1), Falcon500(1), NEO(1)} {
		speed, torque := 120.0, 0.8
		v := m.Voltage(torque, speed)
		assert.InDelta(t, torque, m.Torque(m.Current(speed, v)), 1e-9)
		assert.InDelta(t, speed, m.Speed(torque, v), 1e-9)
		assert.InDelta(t, 17.0, m.CurrentForTorque(m.Torque(17)), 1e-12)
	}
}

func TestMotorByName(t *testing.T) {
	t.Parallel()

	m, err := MotorByName(config.MotorNEO, 1)
	require.NoError(t, err)
	assert.Equal(t, NEO(1), m)

	_, err = MotorByName("cim", 1)
	assert.Error(t, err)
}

func TestApplyDeadband(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"inside band", 0.1, 0},
		{"negative inside band", -0.25, 0},
		{"full scale", 12, 12},
		{"negative full scale", -12, -12},
		{"midpoint", 6.125, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ApplyDeadband(tt.value, 0.25, 12), 1e-12)
		})
	}
	assert.InDelta(t, 0.5, ApplyDeadband(1, 0.5, math.Inf(1)), 1e-12)
}

func TestLimitVoltageAccelerating(t *testing.T) {
	t.Parallel()

	m := KrakenX60(1)
	// Rotor speed at which 12 V draws exactly 50 A.
	speed := (12 - 50*m.R) * m.Kv
	require.InDelta(t, 50, m.Current(speed, 12), 1e-9)

	applied, limited := LimitVoltage(m, speed, 12, 50, 40, 1.2, 12)
	assert.True(t, limited)
	assert.Less(t, applied, 12.0)
	assert.InDelta(t, 40, m.Current(speed, applied), 1e-9)
}

func TestLimitVoltageBelowThreshold(t *testing.T) {
	t.Parallel()

	m := KrakenX60(1)
	// 45 A is over the 40 A limit but under 1.2 × 40.
	speed := (12 - 45*m.R) * m.Kv
	applied, limited := LimitVoltage(m, speed, 12, 45, 40, 1.2, 12)
	assert.False(t, limited)
	assert.Equal(t, 12.0, applied)
}

func TestLimitVoltageBraking(t *testing.T) {
	t.Parallel()

	m := KrakenX60(1)
	speed := 0.8 * m.FreeSpeed
	tests := []struct {
		name     string
		req      float64
		previous float64
	}{
		{"reverse request while driving forward", -12, 50},
		{"forward request while regenerating", 12, -50},
		{"first tick with no current", 12, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, limited := LimitVoltage(m, speed, tt.req, tt.previous, 40, 1.2, 12)
			assert.False(t, limited)
			assert.Equal(t, tt.req, applied)
		})
	}
}

func TestLimitVoltageClampsToSupply(t *testing.T) {
	t.Parallel()

	applied, _ := LimitVoltage(KrakenX60(1), 0, 20, 0, 40, 1.2, 12)
	assert.Equal(t, 12.0, applied)
	applied, _ = LimitVoltage(KrakenX60(1), 0, -20, 0, 40, 1.2, 12)
	assert.Equal(t, -12.0, applied)
}

func TestLimitVoltageProperty(t *testing.T) {
	t.Parallel()

	m := KrakenX60(1)
	for speed := 0.0; speed < m.FreeSpeed; speed += m.FreeSpeed / 37 {
		for _, limit := range []float64{20, 40, 60, 80} {
			applied, limited := LimitVoltage(m, speed, 12, 1, limit, 1.2, 12)
			assert.LessOrEqual(t, math.Abs(applied), 12.0)
			if limited {
				assert.InDelta(t, limit, m.Current(speed, applied), 1e-6)
			}
		}
	}
}

func TestBrushlessMotorSimSettles(t *testing.T) {
	t.Parallel()

	m := Falcon500(1)
	s := NewBrushlessMotorSim(m, 10, 0.01, 0, 12, 0)
	s.SetInputVoltage(24)
	assert.Equal(t, 12.0, s.InputVoltage())

	for i := 0; i < 2000; i++ {
		s.Update(0.001)
	}
	// With no load the mechanism approaches free speed over the gearbox.
	assert.InDelta(t, m.Speed(0, 12)/10, s.Velocity(), 0.5)
	assert.Greater(t, s.Position(), 0.0)
}

func TestSampleCache(t *testing.T) {
	t.Parallel()

	c := NewSampleCache(3, 0)
	assert.Equal(t, []int{0, 0, 0}, c.Drain(nil))

	for i := 1; i <= 5; i++ {
		c.Push(i)
		assert.Equal(t, 3, c.Len())
	}
	assert.Equal(t, 5, c.Latest())
	assert.Equal(t, []int{3, 4, 5}, c.Drain(nil))
	// Draining does not consume.
	assert.Equal(t, []int{3, 4, 5}, c.Drain(make([]int, 0, 8)))

	c.Reset(9)
	assert.Equal(t, []int{9, 9, 9}, c.Drain(nil))
	assert.Equal(t, 1, NewSampleCache(0, "x").Len())
}
