package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/fsutil"
	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/security"
	"github.com/banshee-data/swervesim/internal/swerve"
	"github.com/banshee-data/swervesim/internal/telemetry"
	"github.com/banshee-data/swervesim/internal/trajplot"
)

func recordRun(t *testing.T, dbPath, name string) string {
	t.Helper()
	store, err := telemetry.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	id, err := store.BeginRun(telemetry.RunInfo{Name: name, Profile: "idle"})
	require.NoError(t, err)
	for tick := int64(1); tick <= 5; tick++ {
		require.NoError(t, store.RecordFrame(id, telemetry.Frame{
			Tick:    tick,
			SimTime: float64(tick) * 0.02,
			Report:  swerve.TickReport{Pose: geometry.NewPose(float64(tick)*0.01, 0, 0)},
		}))
	}
	require.NoError(t, store.EndRun(id, 5, 0))
	return id
}

func TestRunPlotsLatest(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "swervesim.db")
	recordRun(t, dbPath, "first")
	id := recordRun(t, dbPath, "second")

	out := filepath.Join(os.TempDir(), "trajectory-plot-test")
	fsys := fsutil.NewMemoryFileSystem()
	files, err := run(dbPath, "", out, fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, security.SanitizeFilename(id)+"_trajectory.png")}, files)
	assert.True(t, fsys.Exists(files[0]))
}

func TestRunRejects(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "swervesim.db")
	recordRun(t, dbPath, "only")
	fsys := fsutil.NewMemoryFileSystem()

	_, err := run(dbPath, "", "/etc/plots", fsys)
	assert.ErrorIs(t, err, security.ErrPathEscape)

	_, err = run(filepath.Join(t.TempDir(), "missing.db"), "", "plots", fsys)
	assert.Error(t, err)

	_, err = run(dbPath, "no-such-run", "plots", fsys)
	assert.ErrorIs(t, err, trajplot.ErrNoPoses)
	assert.Empty(t, fsys.Files())
}
