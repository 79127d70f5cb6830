package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/swervesim/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTrajectoryChart renders the estimated and true path. With ?run=<id>
// the path comes from the telemetry store instead of the live trail.
func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	points, subtitle, err := s.chartPoints(r.URL.Query().Get("run"))
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}

	var estimated, truth []opts.ScatterData
	maxAbs := 0.0
	add := func(dst *[]opts.ScatterData, x, y float64) {
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return
		}
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(x), math.Abs(y)))
		*dst = append(*dst, opts.ScatterData{Value: []interface{}{x, y}})
	}
	for _, p := range points {
		add(&estimated, p.estimated.X, p.estimated.Y)
		if p.truth != nil {
			add(&truth, p.truth.X, p.truth.Y)
		}
	}

	pad := maxAbs * 1.1
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Swerve trajectory", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Trajectory", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("estimated", estimated, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	if len(truth) > 0 {
		scatter.AddSeries("truth", truth, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) chartPoints(runID string) ([]trailPoint, string, error) {
	if runID == "" {
		points := s.trailPoints()
		return points, fmt.Sprintf("live, %d ticks", len(points)), nil
	}
	if s.store == nil {
		return nil, "", fmt.Errorf("no telemetry store attached")
	}
	poses, err := s.store.Poses(runID)
	if err != nil {
		return nil, "", err
	}
	if len(poses) == 0 {
		return nil, "", fmt.Errorf("run %s has no poses", runID)
	}
	points := make([]trailPoint, len(poses))
	for i, p := range poses {
		points[i] = trailPoint{estimated: p.Estimated, truth: p.Truth}
	}
	return points, fmt.Sprintf("run %s, %d ticks", runID, len(points)), nil
}
