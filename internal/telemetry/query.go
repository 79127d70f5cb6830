package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/swervesim/internal/geometry"
)

// Run is a row of the runs table.
type Run struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Profile   string     `json:"profile"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Ticks     int64      `json:"ticks"`
	Overruns  int64      `json:"overruns"`
}

// PoseSample is one tick of a run's trajectory.
type PoseSample struct {
	Tick      int64          `json:"tick"`
	SimTime   float64        `json:"sim_time"`
	Estimated geometry.Pose  `json:"estimated"`
	Truth     *geometry.Pose `json:"truth,omitempty"`
}

// ModuleSample is one module's row for one tick.
type ModuleSample struct {
	Tick           int64   `json:"tick"`
	Module         int     `json:"module"`
	Connected      bool    `json:"connected"`
	Speed          float64 `json:"speed"`
	Angle          float64 `json:"angle"`
	DriveVolts     float64 `json:"drive_volts"`
	DriveAmps      float64 `json:"drive_amps"`
	Skidding       bool    `json:"skidding"`
	CurrentLimited bool    `json:"current_limited"`
}

// Runs lists runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query(`SELECT run_id, name, profile, started_at, ended_at, ticks, overruns
		FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ended sql.NullTime
		if err := rows.Scan(&r.ID, &r.Name, &r.Profile, &r.StartedAt, &ended, &r.Ticks, &r.Overruns); err != nil {
			return nil, err
		}
		if ended.Valid {
			r.EndedAt = &ended.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (Run, error) {
	runs, err := s.Runs()
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: no runs recorded", ErrUnknownRun)
	}
	return runs[0], nil
}

// Poses returns a run's trajectory in tick order.
func (s *Store) Poses(runID string) ([]PoseSample, error) {
	rows, err := s.Query(`SELECT tick, sim_time, est_x, est_y, est_heading, true_x, true_y, true_heading
		FROM poses WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PoseSample
	for rows.Next() {
		var p PoseSample
		var tx, ty, th sql.NullFloat64
		if err := rows.Scan(&p.Tick, &p.SimTime, &p.Estimated.X, &p.Estimated.Y, &p.Estimated.Heading, &tx, &ty, &th); err != nil {
			return nil, err
		}
		if tx.Valid && ty.Valid && th.Valid {
			p.Truth = &geometry.Pose{X: tx.Float64, Y: ty.Float64, Heading: th.Float64}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ModuleSamples returns one module's rows for a run in tick order.
func (s *Store) ModuleSamples(runID string, module int) ([]ModuleSample, error) {
	rows, err := s.Query(`SELECT tick, module, connected, speed, angle, drive_volts, drive_amps,
		skidding, current_limited
		FROM modules WHERE run_id = ? AND module = ? ORDER BY tick`, runID, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleSample
	for rows.Next() {
		var m ModuleSample
		if err := rows.Scan(&m.Tick, &m.Module, &m.Connected, &m.Speed, &m.Angle, &m.DriveVolts, &m.DriveAmps,
			&m.Skidding, &m.CurrentLimited); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// VisionDecisions counts a run's vision decisions by name.
func (s *Store) VisionDecisions(runID string) (map[string]int, error) {
	rows, err := s.Query(`SELECT decision, COUNT(*) FROM vision WHERE run_id = ? GROUP BY decision`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, err
		}
		out[decision] = n
	}
	return out, rows.Err()
}
