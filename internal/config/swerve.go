package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical swerve defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/swerve.defaults.json"

// LookupRow is one row of a vision confidence table: at Distance meters from
// the nearest tag the vision pose has the given standard deviations.
type LookupRow struct {
	Distance          float64 `json:"distance"`
	StdX              float64 `json:"std_x"`
	StdY              float64 `json:"std_y"`
	StdHeadingDegrees float64 `json:"std_heading_deg"`
}

// Tag is a fixed landmark the simulated camera can detect.
type Tag struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// ModuleLocation places one swerve module relative to the chassis centre.
type ModuleLocation struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// SwerveConfig is the root configuration for the drive, estimator and
// simulation. Every field is optional; Get* accessors supply defaults so
// partial files are safe.
type SwerveConfig struct {
	// Loop timing
	ControlPeriod *string `json:"control_period,omitempty"` // duration string like "20ms"
	SubTicks      *int    `json:"sub_ticks,omitempty"`

	// Acquisition gate
	VisionWarmupTicks *int `json:"vision_warmup_ticks,omitempty"`

	// Estimator trust in odometry
	OdometryStdX              *float64 `json:"odometry_std_x,omitempty"`
	OdometryStdY              *float64 `json:"odometry_std_y,omitempty"`
	OdometryStdHeadingDegrees *float64 `json:"odometry_std_heading_deg,omitempty"`
	PoseHistoryWindow         *string  `json:"pose_history_window,omitempty"` // duration string like "1.5s"

	// Vision confidence tables
	SingleTagTable []LookupRow `json:"single_tag_table,omitempty"`
	MultiTagTable  []LookupRow `json:"multi_tag_table,omitempty"`

	// Module hardware
	DriveMotor            *string  `json:"drive_motor,omitempty"`
	SteerMotor            *string  `json:"steer_motor,omitempty"`
	DriveGearRatio        *float64 `json:"drive_gear_ratio,omitempty"`
	SteerGearRatio        *float64 `json:"steer_gear_ratio,omitempty"`
	WheelRadiusMeters     *float64 `json:"wheel_radius_m,omitempty"`
	WheelCOF              *float64 `json:"wheel_cof,omitempty"`
	DriveCurrentLimitAmps *float64 `json:"drive_current_limit_a,omitempty"`
	CurrentLimitThreshold *float64 `json:"current_limit_threshold,omitempty"`
	SkidTorqueFraction    *float64 `json:"skid_torque_fraction,omitempty"`
	DriveFrictionVolts    *float64 `json:"drive_friction_v,omitempty"`
	SteerFrictionVolts    *float64 `json:"steer_friction_v,omitempty"`
	SteerInertia          *float64 `json:"steer_inertia,omitempty"`
	DriveWheelInertia     *float64 `json:"drive_wheel_inertia,omitempty"`
	SupplyVolts           *float64 `json:"supply_volts,omitempty"`
	MaxModuleSpeed        *float64 `json:"max_module_speed_mps,omitempty"`

	// Chassis
	RobotMassKg     *float64         `json:"robot_mass_kg,omitempty"`
	RobotMOI        *float64         `json:"robot_moi,omitempty"`
	ModuleLocations []ModuleLocation `json:"module_locations,omitempty"`

	// Module controller gains
	DriveKS *float64 `json:"drive_ks,omitempty"`
	DriveKV *float64 `json:"drive_kv,omitempty"`
	DriveKP *float64 `json:"drive_kp,omitempty"`
	SteerKP *float64 `json:"steer_kp,omitempty"`
	SteerKD *float64 `json:"steer_kd,omitempty"`

	// Simulated gyro
	GyroNoiseStd   *float64 `json:"gyro_noise_std_rad_s,omitempty"`
	GyroDriftRatio *float64 `json:"gyro_drift_ratio,omitempty"`

	// Simulated camera
	Tags                   []Tag    `json:"tags,omitempty"`
	CameraMaxRange         *float64 `json:"camera_max_range_m,omitempty"`
	CameraFOVDegrees       *float64 `json:"camera_fov_deg,omitempty"`
	CameraNoiseBase        *float64 `json:"camera_noise_base_m,omitempty"`
	CameraNoisePerMeter    *float64 `json:"camera_noise_per_m,omitempty"`
	CameraHeadingNoiseDegs *float64 `json:"camera_heading_noise_deg,omitempty"`
	CameraLatency          *string  `json:"camera_latency,omitempty"` // duration string like "35ms"
	Seed                   *int64   `json:"seed,omitempty"`

	// Hardware bridge
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySwerveConfig returns a SwerveConfig with all fields unset.
// Use LoadSwerveConfig to load actual values from the defaults file.
func EmptySwerveConfig() *SwerveConfig {
	return &SwerveConfig{}
}

// LoadSwerveConfig loads a SwerveConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the file fall back to their defaults.
func LoadSwerveConfig(path string) (*SwerveConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySwerveConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SwerveConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/<pkg>/
		"../../../" + DefaultConfigPath,    // from cmd/<tool>/ subpackages
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSwerveConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set value is usable.
func (c *SwerveConfig) Validate() error {
	for name, v := range map[string]*string{
		"control_period":      c.ControlPeriod,
		"pose_history_window": c.PoseHistoryWindow,
		"camera_latency":      c.CameraLatency,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 || (d == 0 && name == "control_period") {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.SubTicks != nil && *c.SubTicks < 1 {
		return fmt.Errorf("sub_ticks must be at least 1, got %d", *c.SubTicks)
	}
	if c.VisionWarmupTicks != nil && *c.VisionWarmupTicks < 0 {
		return fmt.Errorf("vision_warmup_ticks must be non-negative, got %d", *c.VisionWarmupTicks)
	}

	positive := map[string]*float64{
		"odometry_std_x":           c.OdometryStdX,
		"odometry_std_y":           c.OdometryStdY,
		"odometry_std_heading_deg": c.OdometryStdHeadingDegrees,
		"drive_gear_ratio":         c.DriveGearRatio,
		"steer_gear_ratio":         c.SteerGearRatio,
		"wheel_radius_m":           c.WheelRadiusMeters,
		"wheel_cof":                c.WheelCOF,
		"drive_current_limit_a":    c.DriveCurrentLimitAmps,
		"current_limit_threshold":  c.CurrentLimitThreshold,
		"steer_inertia":            c.SteerInertia,
		"drive_wheel_inertia":      c.DriveWheelInertia,
		"supply_volts":             c.SupplyVolts,
		"max_module_speed_mps":     c.MaxModuleSpeed,
		"robot_mass_kg":            c.RobotMassKg,
		"robot_moi":                c.RobotMOI,
		"camera_max_range_m":       c.CameraMaxRange,
		"camera_fov_deg":           c.CameraFOVDegrees,
	}
	for name, v := range positive {
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
			return fmt.Errorf("%s must be a positive number, got %v", name, *v)
		}
	}

	nonNegative := map[string]*float64{
		"drive_friction_v":         c.DriveFrictionVolts,
		"steer_friction_v":         c.SteerFrictionVolts,
		"drive_ks":                 c.DriveKS,
		"drive_kv":                 c.DriveKV,
		"drive_kp":                 c.DriveKP,
		"steer_kp":                 c.SteerKP,
		"steer_kd":                 c.SteerKD,
		"camera_noise_base_m":      c.CameraNoiseBase,
		"camera_noise_per_m":       c.CameraNoisePerMeter,
		"camera_heading_noise_deg": c.CameraHeadingNoiseDegs,
		"gyro_noise_std_rad_s":     c.GyroNoiseStd,
	}
	for name, v := range nonNegative {
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, *v)
		}
	}

	if c.SkidTorqueFraction != nil && (*c.SkidTorqueFraction < 0 || *c.SkidTorqueFraction > 1) {
		return fmt.Errorf("skid_torque_fraction must be between 0 and 1, got %f", *c.SkidTorqueFraction)
	}

	if c.GyroDriftRatio != nil && (math.IsNaN(*c.GyroDriftRatio) || math.Abs(*c.GyroDriftRatio) >= 0.1) {
		return fmt.Errorf("gyro_drift_ratio must be within ±0.1, got %v", *c.GyroDriftRatio)
	}

	if c.SupplyVolts != nil {
		for name, v := range map[string]*float64{"drive_friction_v": c.DriveFrictionVolts, "steer_friction_v": c.SteerFrictionVolts} {
			if v != nil && *v >= *c.SupplyVolts {
				return fmt.Errorf("%s must be below supply_volts, got %v", name, *v)
			}
		}
	}

	if c.SingleTagTable != nil {
		if err := validateTable("single_tag_table", c.SingleTagTable); err != nil {
			return err
		}
	}
	if c.MultiTagTable != nil {
		if err := validateTable("multi_tag_table", c.MultiTagTable); err != nil {
			return err
		}
	}

	if c.ModuleLocations != nil && len(c.ModuleLocations) < 2 {
		return fmt.Errorf("module_locations needs at least 2 modules, got %d", len(c.ModuleLocations))
	}

	if c.DriveMotor != nil && !IsKnownMotor(*c.DriveMotor) {
		return fmt.Errorf("unknown drive_motor %q", *c.DriveMotor)
	}
	if c.SteerMotor != nil && !IsKnownMotor(*c.SteerMotor) {
		return fmt.Errorf("unknown steer_motor %q", *c.SteerMotor)
	}

	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}

	return nil
}

func validateTable(name string, rows []LookupRow) error {
	if len(rows) < 2 {
		return fmt.Errorf("%s needs at least 2 rows, got %d", name, len(rows))
	}
	for i, r := range rows {
		if r.Distance < 0 {
			return fmt.Errorf("%s row %d: distance must be non-negative, got %v", name, i, r.Distance)
		}
		if i > 0 && r.Distance < rows[i-1].Distance {
			return fmt.Errorf("%s row %d: distances must be sorted ascending", name, i)
		}
		if r.StdX <= 0 || r.StdY <= 0 || r.StdHeadingDegrees <= 0 {
			return fmt.Errorf("%s row %d: standard deviations must be positive", name, i)
		}
	}
	return nil
}

// Motor names accepted by drive_motor and steer_motor.
const (
	MotorKrakenX60 = "kraken_x60"
	MotorFalcon500 = "falcon500"
	MotorNEO       = "neo"
)

// IsKnownMotor reports whether name is one of the supported motor presets.
func IsKnownMotor(name string) bool {
	switch name {
	case MotorKrakenX60, MotorFalcon500, MotorNEO:
		return true
	}
	return false
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetControlPeriod returns the outer control loop period.
func (c *SwerveConfig) GetControlPeriod() time.Duration {
	return durationOr(c.ControlPeriod, 20*time.Millisecond)
}

// GetSubTicks returns the number of simulation sub-ticks per control period.
func (c *SwerveConfig) GetSubTicks() int {
	if c.SubTicks == nil {
		return 5
	}
	return *c.SubTicks
}

// GetSubTickPeriod returns the simulation integration step.
func (c *SwerveConfig) GetSubTickPeriod() time.Duration {
	return c.GetControlPeriod() / time.Duration(c.GetSubTicks())
}

// GetVisionWarmupTicks returns how many consecutive visible ticks must pass
// before vision samples are fused.
func (c *SwerveConfig) GetVisionWarmupTicks() int {
	if c.VisionWarmupTicks == nil {
		return 5
	}
	return *c.VisionWarmupTicks
}

// GetOdometryStdX returns the odometry x standard deviation in meters.
func (c *SwerveConfig) GetOdometryStdX() float64 {
	if c.OdometryStdX == nil {
		return 0.1
	}
	return *c.OdometryStdX
}

// GetOdometryStdY returns the odometry y standard deviation in meters.
func (c *SwerveConfig) GetOdometryStdY() float64 {
	if c.OdometryStdY == nil {
		return 0.1
	}
	return *c.OdometryStdY
}

// GetOdometryStdHeadingDegrees returns the odometry heading standard deviation.
func (c *SwerveConfig) GetOdometryStdHeadingDegrees() float64 {
	if c.OdometryStdHeadingDegrees == nil {
		return 5.0
	}
	return *c.OdometryStdHeadingDegrees
}

// GetPoseHistoryWindow returns how far back vision samples can be applied.
func (c *SwerveConfig) GetPoseHistoryWindow() time.Duration {
	return durationOr(c.PoseHistoryWindow, 1500*time.Millisecond)
}

// GetSingleTagTable returns the confidence table used when one tag is seen.
func (c *SwerveConfig) GetSingleTagTable() []LookupRow {
	if c.SingleTagTable == nil {
		return []LookupRow{
			{Distance: 0, StdX: 0.05, StdY: 0.05, StdHeadingDegrees: 10},
			{Distance: 1.5, StdX: 0.12, StdY: 0.12, StdHeadingDegrees: 20},
			{Distance: 3, StdX: 0.4, StdY: 0.4, StdHeadingDegrees: 45},
			{Distance: 5, StdX: 1.2, StdY: 1.2, StdHeadingDegrees: 90},
		}
	}
	return c.SingleTagTable
}

// GetMultiTagTable returns the confidence table used when several tags are seen.
func (c *SwerveConfig) GetMultiTagTable() []LookupRow {
	if c.MultiTagTable == nil {
		return []LookupRow{
			{Distance: 0, StdX: 0.02, StdY: 0.02, StdHeadingDegrees: 3},
			{Distance: 1.5, StdX: 0.05, StdY: 0.05, StdHeadingDegrees: 5},
			{Distance: 3, StdX: 0.15, StdY: 0.15, StdHeadingDegrees: 12},
			{Distance: 5, StdX: 0.4, StdY: 0.4, StdHeadingDegrees: 30},
		}
	}
	return c.MultiTagTable
}

// GetDriveMotor returns the drive motor preset name.
func (c *SwerveConfig) GetDriveMotor() string {
	if c.DriveMotor == nil {
		return MotorKrakenX60
	}
	return *c.DriveMotor
}

// GetSteerMotor returns the steer motor preset name.
func (c *SwerveConfig) GetSteerMotor() string {
	if c.SteerMotor == nil {
		return MotorFalcon500
	}
	return *c.SteerMotor
}

// GetDriveGearRatio returns the drive reduction (motor turns per wheel turn).
func (c *SwerveConfig) GetDriveGearRatio() float64 {
	if c.DriveGearRatio == nil {
		return 6.12
	}
	return *c.DriveGearRatio
}

// GetSteerGearRatio returns the steer reduction.
func (c *SwerveConfig) GetSteerGearRatio() float64 {
	if c.SteerGearRatio == nil {
		return 11.3142
	}
	return *c.SteerGearRatio
}

// GetWheelRadiusMeters returns the drive wheel radius.
func (c *SwerveConfig) GetWheelRadiusMeters() float64 {
	if c.WheelRadiusMeters == nil {
		return 0.0508 // 2 in
	}
	return *c.WheelRadiusMeters
}

// GetWheelCOF returns the tread coefficient of friction.
func (c *SwerveConfig) GetWheelCOF() float64 {
	if c.WheelCOF == nil {
		return 1.55 // rubber
	}
	return *c.WheelCOF
}

// GetDriveCurrentLimitAmps returns the drive motor supply current limit.
func (c *SwerveConfig) GetDriveCurrentLimitAmps() float64 {
	if c.DriveCurrentLimitAmps == nil {
		return 60
	}
	return *c.DriveCurrentLimitAmps
}

// GetCurrentLimitThreshold returns the multiple of the current limit above
// which the motor controller starts cutting voltage.
func (c *SwerveConfig) GetCurrentLimitThreshold() float64 {
	if c.CurrentLimitThreshold == nil {
		return 1.2
	}
	return *c.CurrentLimitThreshold
}

// GetSkidTorqueFraction returns the share of drive torque that spins a
// skidding wheel.
func (c *SwerveConfig) GetSkidTorqueFraction() float64 {
	if c.SkidTorqueFraction == nil {
		return 0.3
	}
	return *c.SkidTorqueFraction
}

// GetDriveFrictionVolts returns the drive friction deadband.
func (c *SwerveConfig) GetDriveFrictionVolts() float64 {
	if c.DriveFrictionVolts == nil {
		return 0.25
	}
	return *c.DriveFrictionVolts
}

// GetSteerFrictionVolts returns the steer friction deadband.
func (c *SwerveConfig) GetSteerFrictionVolts() float64 {
	if c.SteerFrictionVolts == nil {
		return 0.05
	}
	return *c.SteerFrictionVolts
}

// GetSteerInertia returns the steer assembly moment of inertia in kg·m².
func (c *SwerveConfig) GetSteerInertia() float64 {
	if c.SteerInertia == nil {
		return 0.05
	}
	return *c.SteerInertia
}

// GetDriveWheelInertia returns the drive wheel moment of inertia in kg·m².
func (c *SwerveConfig) GetDriveWheelInertia() float64 {
	if c.DriveWheelInertia == nil {
		return 0.01
	}
	return *c.DriveWheelInertia
}

// GetSupplyVolts returns the battery rail voltage.
func (c *SwerveConfig) GetSupplyVolts() float64 {
	if c.SupplyVolts == nil {
		return 12
	}
	return *c.SupplyVolts
}

// GetMaxModuleSpeed returns the wheel speed commands are desaturated to.
func (c *SwerveConfig) GetMaxModuleSpeed() float64 {
	if c.MaxModuleSpeed == nil {
		return 4.5
	}
	return *c.MaxModuleSpeed
}

// GetRobotMassKg returns the chassis mass.
func (c *SwerveConfig) GetRobotMassKg() float64 {
	if c.RobotMassKg == nil {
		return 50
	}
	return *c.RobotMassKg
}

// GetRobotMOI returns the chassis yaw moment of inertia in kg·m².
func (c *SwerveConfig) GetRobotMOI() float64 {
	if c.RobotMOI == nil {
		return 6
	}
	return *c.RobotMOI
}

// GetModuleLocations returns module positions relative to the chassis centre,
// front-left first.
func (c *SwerveConfig) GetModuleLocations() []ModuleLocation {
	if c.ModuleLocations == nil {
		const half = 0.29
		return []ModuleLocation{
			{Name: "front_left", X: half, Y: half},
			{Name: "front_right", X: half, Y: -half},
			{Name: "back_left", X: -half, Y: half},
			{Name: "back_right", X: -half, Y: -half},
		}
	}
	return c.ModuleLocations
}

// GetDriveKS returns the drive static feedforward in volts.
func (c *SwerveConfig) GetDriveKS() float64 {
	if c.DriveKS == nil {
		return 0.25
	}
	return *c.DriveKS
}

// GetDriveKV returns the drive velocity feedforward in volts per m/s.
func (c *SwerveConfig) GetDriveKV() float64 {
	if c.DriveKV == nil {
		return 2.3
	}
	return *c.DriveKV
}

// GetDriveKP returns the drive velocity feedback gain in volts per m/s.
func (c *SwerveConfig) GetDriveKP() float64 {
	if c.DriveKP == nil {
		return 1.0
	}
	return *c.DriveKP
}

// GetSteerKP returns the steer position gain in volts per radian.
func (c *SwerveConfig) GetSteerKP() float64 {
	if c.SteerKP == nil {
		return 3.0
	}
	return *c.SteerKP
}

// GetSteerKD returns the steer damping gain in volts per rad/s.
func (c *SwerveConfig) GetSteerKD() float64 {
	if c.SteerKD == nil {
		return 0.02
	}
	return *c.SteerKD
}

// GetTags returns the landmark layout.
func (c *SwerveConfig) GetTags() []Tag {
	if c.Tags == nil {
		return []Tag{
			{ID: 1, X: 8, Y: 0},
			{ID: 2, X: 8, Y: 2},
			{ID: 3, X: 0, Y: 4},
			{ID: 4, X: -2, Y: 0},
		}
	}
	return c.Tags
}

// GetCameraMaxRange returns the furthest a tag can be detected from.
func (c *SwerveConfig) GetCameraMaxRange() float64 {
	if c.CameraMaxRange == nil {
		return 6
	}
	return *c.CameraMaxRange
}

// GetCameraFOVDegrees returns the camera's horizontal field of view.
func (c *SwerveConfig) GetCameraFOVDegrees() float64 {
	if c.CameraFOVDegrees == nil {
		return 100
	}
	return *c.CameraFOVDegrees
}

// GetCameraNoiseBase returns the position noise at zero distance.
func (c *SwerveConfig) GetCameraNoiseBase() float64 {
	if c.CameraNoiseBase == nil {
		return 0.01
	}
	return *c.CameraNoiseBase
}

// GetCameraNoisePerMeter returns how much position noise grows per meter.
func (c *SwerveConfig) GetCameraNoisePerMeter() float64 {
	if c.CameraNoisePerMeter == nil {
		return 0.02
	}
	return *c.CameraNoisePerMeter
}

// GetCameraHeadingNoiseDegrees returns the heading noise per meter of
// distance.
func (c *SwerveConfig) GetCameraHeadingNoiseDegrees() float64 {
	if c.CameraHeadingNoiseDegs == nil {
		return 1.0
	}
	return *c.CameraHeadingNoiseDegs
}

// GetGyroNoiseStd returns the gyro rate noise in rad/s.
func (c *SwerveConfig) GetGyroNoiseStd() float64 {
	if c.GyroNoiseStd == nil {
		return 0.0005
	}
	return *c.GyroNoiseStd
}

// GetGyroDriftRatio returns the fractional scale error of the gyro.
func (c *SwerveConfig) GetGyroDriftRatio() float64 {
	if c.GyroDriftRatio == nil {
		return 0
	}
	return *c.GyroDriftRatio
}

// GetCameraLatency returns the simulated pipeline latency.
func (c *SwerveConfig) GetCameraLatency() time.Duration {
	return durationOr(c.CameraLatency, 35*time.Millisecond)
}

// GetSeed returns the random seed used by the simulation.
func (c *SwerveConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetSerialPort returns the hardware bridge device path, empty when the
// simulated backend is used.
func (c *SwerveConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaudRate returns the hardware bridge baud rate.
func (c *SwerveConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}
