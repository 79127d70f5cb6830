package vision

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/swervesim/internal/config"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/units"
)

// CameraConfig describes the simulated camera and the tag layout it sees.
type CameraConfig struct {
	Tags []config.Tag

	MaxRange float64 // meters
	FOV      float64 // radians, centred on the robot's heading

	// Position noise standard deviation is NoiseBase + NoisePerMeter·d,
	// divided by √tagCount. Heading noise is HeadingNoisePerMeter·d.
	NoiseBase            float64
	NoisePerMeter        float64
	HeadingNoisePerMeter float64 // radians per meter

	Latency float64 // seconds
}

// NewCameraConfig reads camera settings from the swerve configuration.
func NewCameraConfig(cfg *config.SwerveConfig) CameraConfig {
	return CameraConfig{
		Tags:                 cfg.GetTags(),
		MaxRange:             cfg.GetCameraMaxRange(),
		FOV:                  units.DegreesToRadians(cfg.GetCameraFOVDegrees()),
		NoiseBase:            cfg.GetCameraNoiseBase(),
		NoisePerMeter:        cfg.GetCameraNoisePerMeter(),
		HeadingNoisePerMeter: units.DegreesToRadians(cfg.GetCameraHeadingNoiseDegrees()),
		Latency:              cfg.GetCameraLatency().Seconds(),
	}
}

// SimulatedCamera turns the simulator's true pose into delayed, noisy tag
// observations. Frames become available Latency seconds after capture.
type SimulatedCamera struct {
	cfg     CameraConfig
	noise   distuv.Normal
	pending []Observation // captured, not yet delivered; oldest first
	latest  Observation
}

// NewSimulatedCamera creates a camera with a deterministic noise source.
func NewSimulatedCamera(cfg CameraConfig, seed uint64) *SimulatedCamera {
	return &SimulatedCamera{
		cfg:   cfg,
		noise: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)},
	}
}

// VisibleTags returns the tags in range and inside the field of view from
// pose, and the distance to the nearest of them.
func (c *SimulatedCamera) VisibleTags(pose geometry.Pose) (tags []config.Tag, nearest float64) {
	nearest = math.Inf(1)
	for _, tag := range c.cfg.Tags {
		offset := geometry.Translation{X: tag.X, Y: tag.Y}.Minus(pose.Translation())
		d := offset.Norm()
		if d > c.cfg.MaxRange {
			continue
		}
		bearing := units.AngleDifference(offset.Angle(), pose.Heading)
		if math.Abs(bearing) > c.cfg.FOV/2 {
			continue
		}
		tags = append(tags, tag)
		nearest = math.Min(nearest, d)
	}
	return tags, nearest
}

// Observe captures a frame of truth at time now and returns the newest frame
// whose result is available at now. Before any frame has arrived the
// returned observation is not visible.
func (c *SimulatedCamera) Observe(truth geometry.Pose, now float64) Observation {
	c.pending = append(c.pending, c.capture(truth, now))

	delivered := 0
	for _, o := range c.pending {
		if o.TimestampSeconds > now {
			break
		}
		c.latest = o
		delivered++
	}
	c.pending = append(c.pending[:0], c.pending[delivered:]...)

	if delivered == 0 {
		return Observation{TimestampSeconds: c.latest.TimestampSeconds}
	}
	return c.latest
}

func (c *SimulatedCamera) capture(truth geometry.Pose, now float64) Observation {
	obs := Observation{TimestampSeconds: now + c.cfg.Latency, LatencySeconds: c.cfg.Latency}
	tags, nearest := c.VisibleTags(truth)
	if len(tags) == 0 {
		return obs
	}

	posStd := (c.cfg.NoiseBase + c.cfg.NoisePerMeter*nearest) / math.Sqrt(float64(len(tags)))
	headingStd := c.cfg.HeadingNoisePerMeter * nearest

	obs.Visible = true
	obs.TagCount = len(tags)
	obs.DistanceToNearestTag = nearest
	obs.Pose = geometry.NewPose(
		truth.X+posStd*c.noise.Rand(),
		truth.Y+posStd*c.noise.Rand(),
		truth.Heading+headingStd*c.noise.Rand(),
	)
	return obs
}
