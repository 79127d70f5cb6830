package monitor

import (
	"fmt"
	"math"
	"net/http"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/httputil"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/units"
	"github.com/banshee-data/swervesim/internal/version"
	"github.com/banshee-data/swervesim/internal/vision"
)

type poseResponse struct {
	Tick          int64            `json:"tick"`
	SimTime       float64          `json:"sim_time"`
	Timestamp     float64          `json:"timestamp"`
	Pose          geometry.Pose    `json:"pose"`
	Finite        bool             `json:"finite"`
	Truth         *geometry.Pose   `json:"truth,omitempty"`
	Decision      string           `json:"vision_decision"`
	Fused         bool             `json:"vision_fused"`
	GateStats     vision.GateStats `json:"gate_stats"`
	GyroConnected bool             `json:"gyro_connected"`
	Overrun       bool             `json:"overrun"`
	Errors        []string         `json:"errors,omitempty"`
}

type moduleResponse struct {
	Name           string        `json:"name"`
	Units          string        `json:"units"`
	Connected      bool          `json:"connected"`
	Target         stateResponse `json:"target"`
	Measured       stateResponse `json:"measured"`
	DriveVolts     float64       `json:"drive_volts"`
	DriveAmps      float64       `json:"drive_amps"`
	SteerVolts     float64       `json:"steer_volts"`
	SteerAmps      float64       `json:"steer_amps"`
	Skidding       bool          `json:"skidding"`
	CurrentLimited bool          `json:"current_limited"`
}

// clean maps NaN and ±Inf to 0; encoding/json refuses them.
func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func cleanPose(p geometry.Pose) geometry.Pose {
	return geometry.Pose{X: clean(p.X), Y: clean(p.Y), Heading: clean(p.Heading)}
}

// stateResponse is a module state with the speed in the response's units.
type stateResponse struct {
	Speed float64 `json:"speed"`
	Angle float64 `json:"angle"`
}

func cleanState(s kinematics.ModuleState, speedUnits string) stateResponse {
	return stateResponse{
		Speed: units.ConvertSpeed(clean(s.SpeedMetersPerSecond), speedUnits),
		Angle: clean(s.Angle),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ok := s.snapshot()
	httputil.WriteJSONOK(w, map[string]any{
		"status":  "ok",
		"running": ok,
		"version": version.Version,
		"git_sha": version.GitSHA,
	})
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	f, ok := s.snapshot()
	if !ok {
		httputil.ServiceUnavailable(w, "no tick published yet")
		return
	}
	rep := f.Report
	resp := poseResponse{
		Tick:          f.Tick,
		SimTime:       clean(f.SimTime),
		Timestamp:     clean(rep.Timestamp),
		Pose:          cleanPose(rep.Pose),
		Finite:        rep.Pose.IsFinite(),
		Decision:      rep.Vision.Decision,
		Fused:         rep.Vision.Fused(),
		GateStats:     rep.Vision.Stats,
		GyroConnected: rep.GyroConnected,
		Overrun:       f.Overrun,
		Errors:        rep.Errors,
	}
	if f.Truth != nil {
		t := cleanPose(*f.Truth)
		resp.Truth = &t
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	speedUnits := r.URL.Query().Get("units")
	if speedUnits == "" {
		speedUnits = units.MPS
	}
	if !units.IsValid(speedUnits) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q, expected one of: %s", speedUnits, units.GetValidUnitsString()))
		return
	}
	f, ok := s.snapshot()
	if !ok {
		httputil.ServiceUnavailable(w, "no tick published yet")
		return
	}
	rep := f.Report
	out := make([]moduleResponse, len(rep.Inputs))
	for i, in := range rep.Inputs {
		m := moduleResponse{
			Name:           fmt.Sprintf("module_%d", i),
			Units:          speedUnits,
			Connected:      in.Connected,
			DriveVolts:     clean(in.DriveAppliedVolts),
			DriveAmps:      clean(in.DriveCurrentAmps),
			SteerVolts:     clean(in.SteerAppliedVolts),
			SteerAmps:      clean(in.SteerCurrentAmps),
			Skidding:       in.Skidding,
			CurrentLimited: in.CurrentLimited,
		}
		if i < len(s.moduleNames) {
			m.Name = s.moduleNames[i]
		}
		if i < len(rep.Targets) {
			m.Target = cleanState(rep.Targets[i], speedUnits)
		}
		if i < len(rep.Measured) {
			m.Measured = cleanState(rep.Measured[i], speedUnits)
		}
		out[i] = m
	}
	httputil.WriteJSONOK(w, out)
}
