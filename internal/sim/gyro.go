package sim

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/swervesim/internal/units"
)

// GyroSimulation integrates the chassis yaw rate with a scale error and
// white rate noise, caching one reading per sub-tick.
type GyroSimulation struct {
	noise      distuv.Normal
	driftRatio float64

	yaw      float64 // rad, unwrapped
	rate     float64 // rad/s as measured
	cacheYaw *SampleCache[float64]
}

// NewGyroSimulation creates a gyro reading initialYaw. noiseStd is the rate
// noise in rad/s; driftRatio scales the true rate (0.01 reads 1% fast).
func NewGyroSimulation(noiseStd, driftRatio float64, depth int, seed uint64, initialYaw float64) *GyroSimulation {
	return &GyroSimulation{
		noise:      distuv.Normal{Mu: 0, Sigma: noiseStd, Src: rand.NewPCG(seed, seed^0x5851f42d4c957f2d)},
		driftRatio: driftRatio,
		yaw:        initialYaw,
		cacheYaw:   NewSampleCache(depth, units.WrapAngle(initialYaw)),
	}
}

// SubTick integrates the true yaw rate over dt.
func (g *GyroSimulation) SubTick(trueRate, dt float64) {
	g.rate = trueRate*(1+g.driftRatio) + g.noise.Rand()
	g.yaw += g.rate * dt
	g.cacheYaw.Push(units.WrapAngle(g.yaw))
}

// SetYaw overwrites the reading, as a real gyro does on zeroing.
func (g *GyroSimulation) SetYaw(yaw float64) {
	g.yaw = yaw
	g.cacheYaw.Reset(units.WrapAngle(yaw))
}

// Yaw returns the wrapped yaw reading.
func (g *GyroSimulation) Yaw() float64 { return units.WrapAngle(g.yaw) }

// YawRate returns the measured yaw rate.
func (g *GyroSimulation) YawRate() float64 { return g.rate }

// CachedYaws drains the per sub-tick yaw readings, oldest first.
func (g *GyroSimulation) CachedYaws(dst []float64) []float64 {
	return g.cacheYaw.Drain(dst)
}
