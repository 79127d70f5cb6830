package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/lookup"
	"github.com/banshee-data/swervesim/internal/swerve"
)

// Frame is everything recorded for one control tick.
type Frame struct {
	Tick      int64
	SimTime   float64
	Truth     *geometry.Pose // nil on hardware
	Commanded kinematics.ChassisSpeeds
	Overrun   bool
	Report    swerve.TickReport
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	Name    string
	Profile string
	Config  any // marshalled to JSON
}

// BeginRun inserts a run row and returns its id.
func (s *Store) BeginRun(info RunInfo) (string, error) {
	cfg := []byte("{}")
	if info.Config != nil {
		var err error
		if cfg, err = json.Marshal(info.Config); err != nil {
			return "", fmt.Errorf("telemetry: encode run config: %w", err)
		}
	}
	id := uuid.NewString()
	_, err := s.Exec(`INSERT INTO runs (run_id, name, profile, config_json) VALUES (?, ?, ?, ?)`,
		id, info.Name, info.Profile, string(cfg))
	if err != nil {
		return "", fmt.Errorf("telemetry: begin run: %w", err)
	}
	return id, nil
}

// EndRun stamps the run's end time and counters.
func (s *Store) EndRun(runID string, ticks, overruns int64) error {
	res, err := s.Exec(`UPDATE runs SET ended_at = ?, ticks = ?, overruns = ? WHERE run_id = ?`,
		time.Now().UTC(), ticks, overruns, runID)
	if err != nil {
		return fmt.Errorf("telemetry: end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// RecordFrame writes one tick in a single transaction.
func (s *Store) RecordFrame(runID string, f Frame) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	if err := recordFrame(tx, runID, f); err != nil {
		tx.Rollback()
		return fmt.Errorf("telemetry: tick %d: %w", f.Tick, err)
	}
	return tx.Commit()
}

func recordFrame(tx *sql.Tx, runID string, f Frame) error {
	r := f.Report
	var truth struct{ x, y, h sql.NullFloat64 }
	if f.Truth != nil {
		truth.x, truth.y, truth.h = nullable(f.Truth.X), nullable(f.Truth.Y), nullable(f.Truth.Heading)
	}
	_, err := tx.Exec(`INSERT INTO poses (run_id, tick, sim_time, est_x, est_y, est_heading,
		true_x, true_y, true_heading, cmd_vx, cmd_vy, cmd_omega, odometry_n, overrun, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, f.Tick, finite(f.SimTime), finite(r.Pose.X), finite(r.Pose.Y), finite(r.Pose.Heading),
		truth.x, truth.y, truth.h,
		finite(f.Commanded.VX), finite(f.Commanded.VY), finite(f.Commanded.Omega),
		r.OdometrySamples, f.Overrun, strings.Join(r.Errors, "; "))
	if err != nil {
		return fmt.Errorf("pose: %w", err)
	}

	v := r.Vision
	var applied struct{ x, y, theta sql.NullFloat64 }
	if v.Correction != nil {
		applied.x = nullable(v.Correction.Applied.DX)
		applied.y = nullable(v.Correction.Applied.DY)
		applied.theta = nullable(v.Correction.Applied.DTheta)
	}
	var obs struct{ x, y, h sql.NullFloat64 }
	if v.Observation.Visible {
		obs.x, obs.y, obs.h = nullable(v.Observation.Pose.X), nullable(v.Observation.Pose.Y), nullable(v.Observation.Pose.Heading)
	}
	var std struct{ x, y, h sql.NullFloat64 }
	if v.Uncertainty != (lookup.Uncertainty{}) {
		std.x, std.y, std.h = nullable(v.Uncertainty.StdX), nullable(v.Uncertainty.StdY), nullable(v.Uncertainty.StdHeadingDegrees)
	}
	_, err = tx.Exec(`INSERT INTO vision (run_id, tick, decision, obs_timestamp, tag_count, distance,
		obs_x, obs_y, obs_heading, std_x, std_y, std_heading, applied_x, applied_y, applied_theta, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, f.Tick, v.Decision, finite(v.Observation.TimestampSeconds), v.Observation.TagCount,
		finite(v.Observation.DistanceToNearestTag),
		obs.x, obs.y, obs.h, std.x, std.y, std.h, applied.x, applied.y, applied.theta, v.Error)
	if err != nil {
		return fmt.Errorf("vision: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO modules (run_id, tick, module, connected, target_speed, target_angle,
		speed, angle, drive_volts, drive_amps, steer_volts, steer_amps, skidding, current_limited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range r.Inputs {
		in := r.Inputs[i]
		var target, measured kinematics.ModuleState
		if i < len(r.Targets) {
			target = r.Targets[i]
		}
		if i < len(r.Measured) {
			measured = r.Measured[i]
		}
		_, err := stmt.Exec(runID, f.Tick, i, in.Connected,
			finite(target.SpeedMetersPerSecond), finite(target.Angle),
			finite(measured.SpeedMetersPerSecond), finite(measured.Angle),
			finite(in.DriveAppliedVolts), finite(in.DriveCurrentAmps),
			finite(in.SteerAppliedVolts), finite(in.SteerCurrentAmps),
			in.Skidding, in.CurrentLimited)
		if err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}
