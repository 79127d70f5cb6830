package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/swervesim/internal/kinematics"
)

// Profile produces the robot-relative chassis speeds to command at t
// seconds into a run.
type Profile interface {
	Name() string
	Speeds(t float64) kinematics.ChassisSpeeds
}

// ConstantProfile commands the same speeds forever.
type ConstantProfile struct {
	Label  string
	Target kinematics.ChassisSpeeds
}

func (p ConstantProfile) Name() string { return p.Label }

func (p ConstantProfile) Speeds(float64) kinematics.ChassisSpeeds { return p.Target }

// CircleProfile drives forward while turning, tracing a circle of Radius.
type CircleProfile struct {
	Speed  float64 // m/s
	Radius float64 // m
}

func (CircleProfile) Name() string { return "circle" }

func (p CircleProfile) Speeds(float64) kinematics.ChassisSpeeds {
	if p.Radius == 0 {
		return kinematics.ChassisSpeeds{}
	}
	return kinematics.ChassisSpeeds{VX: p.Speed, Omega: p.Speed / p.Radius}
}

// StrafeProfile sweeps the heading of a fixed-speed translation while
// holding the chassis orientation, exercising every steer angle.
type StrafeProfile struct {
	Speed  float64 // m/s
	Period float64 // s per revolution of the translation direction
}

func (StrafeProfile) Name() string { return "strafe" }

func (p StrafeProfile) Speeds(t float64) kinematics.ChassisSpeeds {
	if p.Period <= 0 {
		return kinematics.ChassisSpeeds{VX: p.Speed}
	}
	a := 2 * math.Pi * t / p.Period
	return kinematics.ChassisSpeeds{VX: p.Speed * math.Cos(a), VY: p.Speed * math.Sin(a)}
}

var profiles = map[string]Profile{
	"idle":     ConstantProfile{Label: "idle"},
	"constant": ConstantProfile{Label: "constant", Target: kinematics.ChassisSpeeds{VX: 1}},
	"circle":   CircleProfile{Speed: 1.5, Radius: 1.5},
	"strafe":   StrafeProfile{Speed: 1, Period: 8},
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown profile %q (valid: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
