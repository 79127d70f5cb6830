package trajplot

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/fsutil"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/kinematics"
	"github.com/banshee-data/swervesim/internal/swerve"
	"github.com/banshee-data/swervesim/internal/telemetry"
)

const pngMagic = "\x89PNG\r\n\x1a\n"

type fakeReader struct {
	poses   []telemetry.PoseSample
	modules [][]telemetry.ModuleSample
	err     error
}

func (f *fakeReader) Poses(string) ([]telemetry.PoseSample, error) {
	return f.poses, f.err
}

func (f *fakeReader) ModuleSamples(_ string, module int) ([]telemetry.ModuleSample, error) {
	if module >= len(f.modules) {
		return nil, nil
	}
	return f.modules[module], nil
}

func arc(n int, withTruth bool) []telemetry.PoseSample {
	out := make([]telemetry.PoseSample, n)
	for i := range out {
		a := float64(i) * 0.05
		out[i] = telemetry.PoseSample{
			Tick:      int64(i + 1),
			SimTime:   float64(i+1) * 0.02,
			Estimated: geometry.Pose{X: math.Cos(a), Y: math.Sin(a)},
		}
		if withTruth {
			out[i].Truth = &geometry.Pose{X: math.Cos(a) + 0.01, Y: math.Sin(a)}
		}
	}
	return out
}

func TestPlotRunWritesAllPlots(t *testing.T) {
	t.Parallel()

	r := &fakeReader{
		poses: arc(40, true),
		modules: [][]telemetry.ModuleSample{
			{{Tick: 1, Connected: true, DriveAmps: 10}, {Tick: 2, Connected: true, DriveAmps: 12}},
			{{Tick: 1, Connected: false}, {Tick: 2, Connected: true, DriveAmps: 11}},
		},
	}
	fsys := fsutil.NewMemoryFileSystem()
	p := NewPlotter(fsys, "plots")

	files, err := p.PlotRun(r, "run/1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("plots", "run_1_trajectory.png"),
		filepath.Join("plots", "run_1_error.png"),
		filepath.Join("plots", "run_1_drive_current.png"),
	}, files)

	for _, name := range files {
		data, err := fsys.ReadFile(name)
		require.NoError(t, err)
		require.Greater(t, len(data), len(pngMagic))
		assert.Equal(t, pngMagic, string(data[:len(pngMagic)]), name)
	}
}

func TestPlotRunWithoutTruthOrModules(t *testing.T) {
	t.Parallel()

	poses := arc(10, false)
	poses[3].Estimated.X = math.NaN()
	fsys := fsutil.NewMemoryFileSystem()

	files, err := NewPlotter(fsys, "out").PlotRun(&fakeReader{poses: poses}, "hw")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("out", "hw_trajectory.png")}, files)
}

func TestPlotRunErrors(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	p := NewPlotter(fsys, "out")

	_, err := p.PlotRun(&fakeReader{}, "empty")
	assert.ErrorIs(t, err, ErrNoPoses)

	boom := errors.New("boom")
	_, err = p.PlotRun(&fakeReader{err: boom}, "broken")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, fsys.Files())
}

func TestPlotRunFromStore(t *testing.T) {
	t.Parallel()

	store, err := telemetry.Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := store.BeginRun(telemetry.RunInfo{Name: "plot", Profile: "constant"})
	require.NoError(t, err)
	for tick := int64(1); tick <= 20; tick++ {
		pose := geometry.NewPose(float64(tick)*0.02, 0, 0)
		truth := geometry.NewPose(pose.X+0.005, 0, 0)
		require.NoError(t, store.RecordFrame(id, telemetry.Frame{
			Tick:    tick,
			SimTime: float64(tick) * 0.02,
			Truth:   &truth,
			Report: swerve.TickReport{
				Pose:     pose,
				Measured: []kinematics.ModuleState{{SpeedMetersPerSecond: 1}},
				Targets:  []kinematics.ModuleState{{SpeedMetersPerSecond: 1}},
				Inputs:   []swerve.ModuleInputs{{Connected: true, DriveCurrentAmps: float64(tick)}},
			},
		}))
	}

	fsys := fsutil.NewMemoryFileSystem()
	files, err := NewPlotter(fsys, "plots").PlotRun(store, id)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}
