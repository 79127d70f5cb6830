// Package pipeline runs the periodic control loop: advance the plant, read
// vision, update the drive, command the next setpoints and hand the tick to
// storage and live consumers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/swerve"
	"github.com/banshee-data/swervesim/internal/telemetry"
	"github.com/banshee-data/swervesim/internal/timeutil"
	"github.com/banshee-data/swervesim/internal/vision"
)

// ErrNoDrive is returned by NewControlLoop without a drive.
var ErrNoDrive = errors.New("pipeline: drive is required")

// Config assembles a ControlLoop.
type Config struct {
	Drive   *swerve.Drive
	Sim     SimulationStage // optional
	Vision  VisionSource    // optional
	Persist []PersistenceSink
	Publish []PublishSink
	Profile Profile // defaults to idle
	Period  time.Duration
	Clock   timeutil.Clock // defaults to RealClock
}

// Stats counts what happened over a run.
type Stats struct {
	Ticks         int64 `json:"ticks"`
	Overruns      int64 `json:"overruns"`
	SimErrors     int64 `json:"sim_errors"`
	DriveErrors   int64 `json:"drive_errors"`
	PersistErrors int64 `json:"persist_errors"`
	VisionFused   int64 `json:"vision_fused"`
}

// ControlLoop is the composition root of a run. Its methods must be called
// from one goroutine; Stats may be read from any.
type ControlLoop struct {
	drive   *swerve.Drive
	sim     SimulationStage
	vision  VisionSource
	persist []PersistenceSink
	publish []PublishSink
	profile Profile
	period  time.Duration
	clock   timeutil.Clock

	tick          atomic.Int64
	overruns      atomic.Int64
	simErrors     atomic.Int64
	driveErrors   atomic.Int64
	persistErrors atomic.Int64
	visionFused   atomic.Int64
}

// NewControlLoop validates cfg and fills in defaults.
func NewControlLoop(cfg Config) (*ControlLoop, error) {
	if cfg.Drive == nil {
		return nil, ErrNoDrive
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("pipeline: period must be positive, got %s", cfg.Period)
	}
	if cfg.Profile == nil {
		cfg.Profile = profiles["idle"]
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &ControlLoop{
		drive:   cfg.Drive,
		sim:     cfg.Sim,
		vision:  cfg.Vision,
		persist: cfg.Persist,
		publish: cfg.Publish,
		profile: cfg.Profile,
		period:  cfg.Period,
		clock:   cfg.Clock,
	}, nil
}

// Stats returns the counters so far.
func (l *ControlLoop) Stats() Stats {
	return Stats{
		Ticks:         l.tick.Load(),
		Overruns:      l.overruns.Load(),
		SimErrors:     l.simErrors.Load(),
		DriveErrors:   l.driveErrors.Load(),
		PersistErrors: l.persistErrors.Load(),
		VisionFused:   l.visionFused.Load(),
	}
}

// RunTicks runs n ticks back to back, without waiting for wall time.
func (l *ControlLoop) RunTicks(n int) Stats {
	for i := 0; i < n; i++ {
		l.Tick()
	}
	return l.Stats()
}

// Run ticks once per period until ctx is done or maxTicks ticks have run
// (maxTicks ≤ 0 runs forever).
func (l *ControlLoop) Run(ctx context.Context, maxTicks int64) (Stats, error) {
	ticker := l.clock.NewTicker(l.period)
	defer ticker.Stop()

	var ran int64
	for maxTicks <= 0 || ran < maxTicks {
		select {
		case <-ctx.Done():
			return l.Stats(), ctx.Err()
		case <-ticker.C():
			l.Tick()
			ran++
		}
	}
	return l.Stats(), nil
}

// Tick runs one control period and returns the frame it produced.
func (l *ControlLoop) Tick() telemetry.Frame {
	started := l.clock.Now()
	tick := l.tick.Add(1)

	frame := telemetry.Frame{Tick: tick, SimTime: float64(tick) * l.period.Seconds()}
	if l.sim != nil {
		if err := l.sim.Step(); err != nil {
			l.simErrors.Add(1)
			monitoring.Logf("pipeline: tick %d: simulation: %v", tick, err)
		}
		truth := l.sim.TruePose()
		frame.Truth = &truth
		frame.SimTime = l.sim.Time()
	}

	var obs vision.Observation
	if l.vision != nil {
		obs = l.vision.Observe()
	}

	report, err := l.drive.Periodic(obs)
	if err != nil {
		l.driveErrors.Add(1)
		monitoring.Debugf("pipeline: tick %d: drive: %v", tick, err)
	}
	if report.Vision.Fused() {
		l.visionFused.Add(1)
	}
	frame.Report = report

	frame.Commanded = l.profile.Speeds(frame.SimTime)
	l.drive.DriveRobotRelative(frame.Commanded)

	if elapsed := l.clock.Since(started); elapsed > l.period {
		frame.Overrun = true
		n := l.overruns.Add(1)
		monitoring.Logf("pipeline: tick %d overran: %s > %s (%d overruns)", tick, elapsed, l.period, n)
	}

	for _, p := range l.persist {
		if err := p.Record(frame); err != nil {
			l.persistErrors.Add(1)
			monitoring.Logf("pipeline: tick %d: persist: %v", tick, err)
		}
	}
	for _, p := range l.publish {
		p.Publish(frame)
	}
	return frame
}

// ResetPose moves the estimate, and the simulated robot when there is one,
// to pose.
func (l *ControlLoop) ResetPose(pose geometry.Pose) error {
	if r, ok := l.sim.(interface{ ResetPose(geometry.Pose) error }); ok {
		return r.ResetPose(pose)
	}
	return l.drive.ResetPose(pose)
}
