// Package trajplot renders PNG plots of a recorded run: the estimated and
// true paths, the position error over time and each module's drive current.
package trajplot

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/swervesim/internal/fsutil"
	"github.com/banshee-data/swervesim/internal/security"
	"github.com/banshee-data/swervesim/internal/telemetry"
)

// maxModules bounds the probe for module rows.
const maxModules = 16

// ErrNoPoses is returned for a run with no recorded ticks.
var ErrNoPoses = errors.New("run has no recorded poses")

// RunReader is the part of the telemetry store the plotter reads.
type RunReader interface {
	Poses(runID string) ([]telemetry.PoseSample, error)
	ModuleSamples(runID string, module int) ([]telemetry.ModuleSample, error)
}

// Plotter writes plots for one run into an output directory.
type Plotter struct {
	fs        fsutil.FileSystem
	outputDir string

	Width, Height vg.Length
}

// NewPlotter creates a plotter writing through fsys.
func NewPlotter(fsys fsutil.FileSystem, outputDir string) *Plotter {
	return &Plotter{fs: fsys, outputDir: outputDir, Width: 8 * vg.Inch, Height: 8 * vg.Inch}
}

// PlotRun renders every plot for runID and returns the files written.
func (p *Plotter) PlotRun(r RunReader, runID string) ([]string, error) {
	poses, err := r.Poses(runID)
	if err != nil {
		return nil, fmt.Errorf("read poses: %w", err)
	}
	if len(poses) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPoses, runID)
	}

	var modules [][]telemetry.ModuleSample
	for i := 0; i < maxModules; i++ {
		samples, err := r.ModuleSamples(runID, i)
		if err != nil {
			return nil, fmt.Errorf("read module %d: %w", i, err)
		}
		if len(samples) == 0 {
			break
		}
		modules = append(modules, samples)
	}

	if err := p.fs.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	prefix := security.SanitizeFilename(runID)
	var written []string
	save := func(pl *plot.Plot, suffix string, w, h vg.Length) error {
		name := filepath.Join(p.outputDir, prefix+"_"+suffix+".png")
		if err := p.save(pl, name, w, h); err != nil {
			return fmt.Errorf("save %s plot: %w", suffix, err)
		}
		written = append(written, name)
		return nil
	}

	path, err := trajectoryPlot(runID, poses)
	if err != nil {
		return written, err
	}
	if err := save(path, "trajectory", p.Width, p.Height); err != nil {
		return written, err
	}

	if errPlot, ok, err := errorPlot(runID, poses); err != nil {
		return written, err
	} else if ok {
		if err := save(errPlot, "error", p.Width, p.Height/2); err != nil {
			return written, err
		}
	}

	if len(modules) > 0 {
		current, err := currentPlot(runID, modules)
		if err != nil {
			return written, err
		}
		if err := save(current, "drive_current", p.Width, p.Height/2); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (p *Plotter) save(pl *plot.Plot, name string, w, h vg.Length) error {
	wt, err := pl.WriterTo(w, h, "png")
	if err != nil {
		return err
	}
	f, err := p.fs.Create(name)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addLine(pl *plot.Plot, label string, pts plotter.XYs, idx int) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(idx)
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add(label, line)
	return nil
}

func trajectoryPlot(runID string, poses []telemetry.PoseSample) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Run %s - Path", runID)
	pl.X.Label.Text = "X (m)"
	pl.Y.Label.Text = "Y (m)"
	pl.Add(plotter.NewGrid())

	estimated := make(plotter.XYs, 0, len(poses))
	truth := make(plotter.XYs, 0, len(poses))
	for _, s := range poses {
		if finite(s.Estimated.X, s.Estimated.Y) {
			estimated = append(estimated, plotter.XY{X: s.Estimated.X, Y: s.Estimated.Y})
		}
		if s.Truth != nil {
			truth = append(truth, plotter.XY{X: s.Truth.X, Y: s.Truth.Y})
		}
	}
	if err := addLine(pl, "estimated", estimated, 0); err != nil {
		return nil, err
	}
	if err := addLine(pl, "truth", truth, 1); err != nil {
		return nil, err
	}
	pl.Legend.Top = true
	return pl, nil
}

// errorPlot charts |estimated − truth| against sim time. ok is false when
// the run carries no truth.
func errorPlot(runID string, poses []telemetry.PoseSample) (*plot.Plot, bool, error) {
	pts := make(plotter.XYs, 0, len(poses))
	for _, s := range poses {
		if s.Truth == nil {
			continue
		}
		d := math.Hypot(s.Estimated.X-s.Truth.X, s.Estimated.Y-s.Truth.Y)
		if finite(d) {
			pts = append(pts, plotter.XY{X: s.SimTime, Y: d})
		}
	}
	if len(pts) == 0 {
		return nil, false, nil
	}

	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Run %s - Position Error", runID)
	pl.X.Label.Text = "Time (s)"
	pl.Y.Label.Text = "Error (m)"
	if err := addLine(pl, "position error", pts, 2); err != nil {
		return nil, false, err
	}
	pl.Legend.Top = true
	return pl, true, nil
}

func currentPlot(runID string, modules [][]telemetry.ModuleSample) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Run %s - Drive Current", runID)
	pl.X.Label.Text = "Tick"
	pl.Y.Label.Text = "Current (A)"

	for i, samples := range modules {
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			if s.Connected {
				pts = append(pts, plotter.XY{X: float64(s.Tick), Y: s.DriveAmps})
			}
		}
		if err := addLine(pl, fmt.Sprintf("module %d", i), pts, i); err != nil {
			return nil, err
		}
	}
	pl.Legend.Top = true
	pl.Legend.Left = false
	return pl, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
