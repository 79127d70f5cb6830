package swerve

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/serialmux"
	"github.com/banshee-data/swervesim/internal/sim"
	"github.com/banshee-data/swervesim/internal/timeutil"
)

// Wire messages exchanged with the module controller board, one JSON object
// per line.
type (
	moduleTargetMessage struct {
		Type  string  `json:"type"`
		ID    int     `json:"id"`
		Speed float64 `json:"speed"` // m/s
		Angle float64 `json:"angle"` // rad
	}

	moduleStopMessage struct {
		Type string `json:"type"`
		ID   int    `json:"id"`
	}

	moduleMessage struct {
		ID             int     `json:"id"`
		DriveRad       float64 `json:"drive_rad"`
		DriveRadPerSec float64 `json:"drive_rad_s"`
		SteerRad       float64 `json:"steer_rad"`
		Volts          float64 `json:"volts"`
		Amps           float64 `json:"amps"`
	}

	gyroMessage struct {
		YawRad  float64 `json:"yaw_rad"`
		YawRate float64 `json:"yaw_rate"`
	}
)

type moduleSample struct {
	timestamp float64
	driveRad  float64
	steerRad  float64
}

type gyroSample struct {
	timestamp float64
	yaw       float64
}

type bridgeModule struct {
	latest   moduleMessage
	lastSeen time.Time
	cache    *sim.SampleCache[moduleSample]
}

// SerialBridge is the single reader of the hardware serial link. Its Run
// goroutine is the only producer of the sample caches; the control loop
// consumes them through SerialModule and SerialGyro.
type SerialBridge struct {
	mux        serialmux.SerialMuxInterface
	clock      timeutil.Clock
	timebase   *timeutil.Timebase
	staleAfter time.Duration

	mu       sync.Mutex
	modules  []bridgeModule
	gyro     gyroMessage
	gyroSeen time.Time
	gyroLog  *sim.SampleCache[gyroSample]
	dropped  uint64
}

// NewSerialBridge creates a bridge for moduleCount modules, caching depth
// samples per module. A source silent for staleAfter reads as disconnected.
func NewSerialBridge(mux serialmux.SerialMuxInterface, clock timeutil.Clock, moduleCount, depth int, staleAfter time.Duration) *SerialBridge {
	b := &SerialBridge{
		mux:        mux,
		clock:      clock,
		timebase:   timeutil.NewTimebase(clock),
		staleAfter: staleAfter,
		modules:    make([]bridgeModule, moduleCount),
		gyroLog:    sim.NewSampleCache(depth, gyroSample{}),
	}
	for i := range b.modules {
		b.modules[i].cache = sim.NewSampleCache(depth, moduleSample{})
	}
	return b
}

// Run consumes lines until ctx is done or the mux closes the subscription.
func (b *SerialBridge) Run(ctx context.Context) error {
	id, lines := b.mux.Subscribe()
	defer b.mux.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := b.HandleLine(line); err != nil {
				monitoring.Debugf("serial bridge: %v", err)
			}
		}
	}
}

// HandleLine decodes one line from the device.
func (b *SerialBridge) HandleLine(line string) error {
	now := b.clock.Now()
	ts := b.timebase.Seconds()

	switch kind := serialmux.ClassifyLine(line); kind {
	case serialmux.EventTypeModule:
		var msg moduleMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return b.drop(fmt.Errorf("bad module line %q: %w", line, err))
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if msg.ID < 0 || msg.ID >= len(b.modules) {
			b.dropped++
			return fmt.Errorf("module id %d out of range", msg.ID)
		}
		m := &b.modules[msg.ID]
		m.latest = msg
		m.lastSeen = now
		m.cache.Push(moduleSample{timestamp: ts, driveRad: msg.DriveRad, steerRad: msg.SteerRad})
	case serialmux.EventTypeGyro:
		var msg gyroMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return b.drop(fmt.Errorf("bad gyro line %q: %w", line, err))
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.gyro = msg
		b.gyroSeen = now
		b.gyroLog.Push(gyroSample{timestamp: ts, yaw: msg.YawRad})
	case serialmux.EventTypeLog:
		monitoring.Logf("serial device: %s", line)
	default:
		return b.drop(fmt.Errorf("unrecognised line %q", line))
	}
	return nil
}

func (b *SerialBridge) drop(err error) error {
	b.mu.Lock()
	b.dropped++
	b.mu.Unlock()
	return err
}

// Dropped returns how many lines could not be used.
func (b *SerialBridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *SerialBridge) fresh(seen time.Time) bool {
	return !seen.IsZero() && b.clock.Since(seen) <= b.staleAfter
}

func (b *SerialBridge) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		monitoring.Logf("serial bridge: encode %T: %v", v, err)
		return
	}
	if err := b.mux.SendCommand(string(data)); err != nil {
		monitoring.Logf("serial bridge: send: %v", err)
	}
}

// SerialModule is a module whose closed loop runs on the controller board.
type SerialModule struct {
	bridge      *SerialBridge
	id          int
	wheelRadius float64
	samples     []moduleSample
}

// NewSerialModule returns the backend for module id on bridge.
func NewSerialModule(bridge *SerialBridge, id int, wheelRadius float64) *SerialModule {
	return &SerialModule{bridge: bridge, id: id, wheelRadius: wheelRadius}
}

// UpdateInputs implements ModuleIO.
func (m *SerialModule) UpdateInputs(in *ModuleInputs) {
	b := m.bridge
	b.mu.Lock()
	mod := b.modules[m.id]
	m.samples = mod.cache.Drain(m.samples)
	b.mu.Unlock()

	in.Connected = b.fresh(mod.lastSeen)
	in.DrivePositionRad = mod.latest.DriveRad
	in.DriveVelocityRadPerSec = mod.latest.DriveRadPerSec
	in.DriveAppliedVolts = mod.latest.Volts
	in.DriveCurrentAmps = mod.latest.Amps
	in.SteerAbsolutePosition = mod.latest.SteerRad

	in.OdometryTimestamps = in.OdometryTimestamps[:0]
	in.OdometryDrivePositionsRad = in.OdometryDrivePositionsRad[:0]
	in.OdometrySteerPositions = in.OdometrySteerPositions[:0]
	if !in.Connected {
		return
	}
	for _, s := range m.samples {
		in.OdometryTimestamps = append(in.OdometryTimestamps, s.timestamp)
		in.OdometryDrivePositionsRad = append(in.OdometryDrivePositionsRad, s.driveRad)
		in.OdometrySteerPositions = append(in.OdometrySteerPositions, s.steerRad)
	}
}

// SetTarget implements ModuleIO.
func (m *SerialModule) SetTarget(state kinematics.ModuleState) {
	m.bridge.send(moduleTargetMessage{Type: "module_target", ID: m.id, Speed: state.SpeedMetersPerSecond, Angle: state.Angle})
}

// ReadState implements ModuleIO.
func (m *SerialModule) ReadState() kinematics.ModuleState {
	m.bridge.mu.Lock()
	latest := m.bridge.modules[m.id].latest
	m.bridge.mu.Unlock()
	return kinematics.ModuleState{SpeedMetersPerSecond: latest.DriveRadPerSec * m.wheelRadius, Angle: latest.SteerRad}
}

// Stop implements ModuleIO.
func (m *SerialModule) Stop() {
	m.bridge.send(moduleStopMessage{Type: "module_stop", ID: m.id})
}

// SerialGyro reads yaw from the controller board.
type SerialGyro struct {
	bridge  *SerialBridge
	samples []gyroSample
}

// NewSerialGyro returns the gyro backend on bridge.
func NewSerialGyro(bridge *SerialBridge) *SerialGyro {
	return &SerialGyro{bridge: bridge}
}

// UpdateInputs implements GyroIO.
func (g *SerialGyro) UpdateInputs(in *GyroInputs) {
	b := g.bridge
	b.mu.Lock()
	msg, seen := b.gyro, b.gyroSeen
	g.samples = b.gyroLog.Drain(g.samples)
	b.mu.Unlock()

	in.Connected = b.fresh(seen)
	in.Yaw = msg.YawRad
	in.YawRate = msg.YawRate
	in.OdometryYaws = in.OdometryYaws[:0]
	for _, s := range g.samples {
		in.OdometryYaws = append(in.OdometryYaws, s.yaw)
	}
}
