package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/monitor"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/pipeline"
	"github.com/banshee-data/swervesim/internal/serialmux"
	"github.com/banshee-data/swervesim/internal/swerve"
	"github.com/banshee-data/swervesim/internal/telemetry"
	"github.com/banshee-data/swervesim/internal/timeutil"
	"github.com/banshee-data/swervesim/internal/version"
	"github.com/banshee-data/swervesim/internal/vision"
)

var (
	configPath  = flag.String("config", "", "Path to a swerve JSON config (default: "+config.DefaultConfigPath+" if present)")
	dbPath      = flag.String("db", "swervesim.db", "Telemetry database path; empty disables recording")
	listen      = flag.String("listen", ":8080", "Status server listen address; empty disables it")
	ticks       = flag.Int64("ticks", 500, "Number of control ticks to run; 0 runs until interrupted (real time only)")
	realtime    = flag.Bool("realtime", false, "Pace ticks at the control period instead of running as fast as possible")
	serialPort  = flag.String("serial", "", "Serial port of the hardware bridge; overrides the config and selects hardware mode")
	profileName = flag.String("profile", "constant", fmt.Sprintf("Motion profile, one of %v", pipeline.ProfileNames()))
	verbose     = flag.Bool("v", false, "Log per-tick diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// hardwareStaleAfter is how long a module may go quiet before it is
// reported disconnected.
const hardwareStaleAfter = 250 * time.Millisecond

// cameraSeedOffset keeps the camera noise stream independent of the
// simulation's seeded streams.
const cameraSeedOffset = 3

type options struct {
	ConfigPath string
	DBPath     string
	Listen     string
	Ticks      int64
	Realtime   bool
	SerialPort string
	Profile    string
}

// loadConfig reads path, or the defaults file when path is empty. A missing
// defaults file falls back to the built-in defaults.
func loadConfig(path string) (*config.SwerveConfig, error) {
	if path != "" {
		return config.LoadSwerveConfig(path)
	}
	cfg, err := config.LoadSwerveConfig(config.DefaultConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("no %s found, using built-in defaults", config.DefaultConfigPath)
		return config.EmptySwerveConfig(), nil
	}
	return cfg, err
}

// rig is what a run drives: a Drive plus, in simulation, the physics and
// camera behind it.
type rig struct {
	mode   string
	drive  *swerve.Drive
	sim    pipeline.SimulationStage
	vision pipeline.VisionSource
	serial serialmux.SerialMuxInterface
	bridge *swerve.SerialBridge
}

func newSimulationRig(cfg *config.SwerveConfig, initial geometry.Pose) (*rig, error) {
	simulation, err := swerve.NewSimulation(cfg, initial)
	if err != nil {
		return nil, fmt.Errorf("build simulation: %w", err)
	}
	camera := vision.NewSimulatedCamera(vision.NewCameraConfig(cfg), uint64(cfg.GetSeed())+cameraSeedOffset)
	return &rig{
		mode:   "sim",
		drive:  simulation.Drive,
		sim:    simulation,
		vision: pipeline.CameraSource{Camera: camera, Sim: simulation},
		serial: serialmux.NewDisabledSerialMux(),
	}, nil
}

func newHardwareRig(cfg *config.SwerveConfig, port serialmux.SerialMuxInterface, initial geometry.Pose) (*rig, error) {
	locations := cfg.GetModuleLocations()
	radius := cfg.GetWheelRadiusMeters()
	bridge := swerve.NewSerialBridge(port, timeutil.RealClock{}, len(locations), cfg.GetSubTicks(), hardwareStaleAfter)

	modules := make([]*swerve.Module, len(locations))
	for i, l := range locations {
		modules[i] = swerve.NewModule(l.Name, swerve.NewSerialModule(bridge, i, radius), radius)
	}
	drive, err := swerve.NewDrive(cfg, modules, swerve.NewSerialGyro(bridge), initial)
	if err != nil {
		return nil, fmt.Errorf("build drive: %w", err)
	}
	return &rig{mode: "hardware", drive: drive, serial: port, bridge: bridge}, nil
}

func moduleNames(cfg *config.SwerveConfig) []string {
	locations := cfg.GetModuleLocations()
	names := make([]string, len(locations))
	for i, l := range locations {
		names[i] = l.Name
	}
	return names
}

// run executes one session. port, when non-nil, replaces opening
// o.SerialPort; tests pass a serialmux over a FakePort.
func run(ctx context.Context, o options, port serialmux.SerialMuxInterface) (pipeline.Stats, error) {
	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return pipeline.Stats{}, fmt.Errorf("load config: %w", err)
	}
	profile, err := pipeline.ProfileByName(o.Profile)
	if err != nil {
		return pipeline.Stats{}, err
	}

	serialPath := o.SerialPort
	if serialPath == "" && port == nil {
		serialPath = cfg.GetSerialPort()
	}

	var r *rig
	if serialPath != "" || port != nil {
		if port == nil {
			realMux, err := serialmux.NewRealSerialMux(serialPath, serialmux.PortOptions{BaudRate: cfg.GetSerialBaudRate()})
			if err != nil {
				return pipeline.Stats{}, fmt.Errorf("open serial port %s: %w", serialPath, err)
			}
			port = realMux
		}
		defer port.Close()
		if err := port.Initialize(); err != nil {
			return pipeline.Stats{}, fmt.Errorf("initialize bridge: %w", err)
		}
		if r, err = newHardwareRig(cfg, port, geometry.Pose{}); err != nil {
			return pipeline.Stats{}, err
		}
	} else if r, err = newSimulationRig(cfg, geometry.Pose{}); err != nil {
		return pipeline.Stats{}, err
	}

	realtime := o.Realtime || r.mode == "hardware"
	if !realtime && o.Ticks <= 0 {
		return pipeline.Stats{}, fmt.Errorf("-ticks must be positive unless running in real time")
	}

	loopCfg := pipeline.Config{
		Drive:   r.drive,
		Profile: profile,
		Period:  cfg.GetControlPeriod(),
	}
	if r.sim != nil {
		loopCfg.Sim = r.sim
		loopCfg.Vision = r.vision
	}

	var store *telemetry.Store
	var runID string
	if o.DBPath != "" {
		if store, err = telemetry.Open(o.DBPath); err != nil {
			return pipeline.Stats{}, err
		}
		defer store.Close()

		runID, err = store.BeginRun(telemetry.RunInfo{
			Name:    fmt.Sprintf("%s-%s", r.mode, profile.Name()),
			Profile: profile.Name(),
			Config: map[string]any{
				"mode":    r.mode,
				"version": version.String(),
				"swerve":  cfg,
			},
		})
		if err != nil {
			return pipeline.Stats{}, err
		}
		loopCfg.Persist = append(loopCfg.Persist, pipeline.RunRecorder{Store: store, RunID: runID})
		log.Printf("recording run %s to %s", runID, o.DBPath)
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		wg.Wait()
	}()

	if o.Listen != "" {
		srv := monitor.NewServer(monitor.Config{
			Address:     o.Listen,
			ModuleNames: moduleNames(cfg),
			Store:       store,
		})
		r.serial.AttachAdminRoutes(srv.Mux())
		if store != nil {
			if err := store.AttachAdminRoutes(srv.Mux()); err != nil {
				return pipeline.Stats{}, err
			}
		}
		loopCfg.Publish = append(loopCfg.Publish, srv)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				log.Printf("status server: %v", err)
			}
		}()
	}

	if r.bridge != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := r.serial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("serial monitor routine terminated")
		}()
		go func() {
			defer wg.Done()
			if err := r.bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial bridge: %v", err)
			}
		}()
	}

	loop, err := pipeline.NewControlLoop(loopCfg)
	if err != nil {
		return pipeline.Stats{}, err
	}

	log.Printf("running %s with profile %q, period %s", r.mode, profile.Name(), cfg.GetControlPeriod())
	var stats pipeline.Stats
	if realtime {
		stats, err = loop.Run(ctx, o.Ticks)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		stats = loop.RunTicks(int(o.Ticks))
	}
	r.drive.Stop()

	if store != nil {
		if endErr := store.EndRun(runID, stats.Ticks, stats.Overruns); endErr != nil {
			log.Printf("failed to close run %s: %v", runID, endErr)
		}
	}
	return stats, err
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := run(ctx, options{
		ConfigPath: *configPath,
		DBPath:     *dbPath,
		Listen:     *listen,
		Ticks:      *ticks,
		Realtime:   *realtime,
		SerialPort: *serialPort,
		Profile:    *profileName,
	}, nil)
	if err != nil {
		log.Fatalf("swervesim: %v", err)
	}
	log.Printf("done: %d ticks, %d overruns, %d vision updates fused, %d persist errors",
		stats.Ticks, stats.Overruns, stats.VisionFused, stats.PersistErrors)
}
