// Package monitor provides debugging visualisations for the position
// estimate stream: an ECharts scatter of recent local-frame positions and a
// background PNG plotter for longer-running observations.
package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ChartServer serves debug chart endpoints backed by the position store.
type ChartServer struct {
	db *db.DB
}

func NewChartServer(database *db.DB) *ChartServer {
	return &ChartServer{db: database}
}

// AttachDebugRoutes registers the chart endpoints on the given mux. These
// are debugging-only endpoints (no auth) served under /debug/.
func (cs *ChartServer) AttachDebugRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/positions/chart", cs.handlePositionScatter)
	mux.HandleFunc("/debug/positions/rollups", cs.handleRollupJSON)
}

// handlePositionScatter renders a quick top-down plot (HTML) of recent
// local-frame position estimates using go-echarts, one series per
// classification.
// Query params:
//   - max_points (optional; default 8000) to reduce payload size
//   - class (optional) to restrict to one classification
func (cs *ChartServer) handlePositionScatter(w http.ResponseWriter, r *http.Request) {
	limit := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			limit = v
		}
	}

	positions, err := cs.db.Positions(db.PositionFilter{
		Mode:           db.ModeLocal,
		Classification: r.URL.Query().Get("class"),
		Limit:          limit * 2,
	})
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query positions: %v", err))
		return
	}
	if len(positions) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no local position estimates recorded")
		return
	}

	// Downsample by stride to stay within limit
	stride := 1
	if len(positions) > limit {
		stride = int(math.Ceil(float64(len(positions)) / float64(limit)))
	}

	byClass := make(map[string][]opts.ScatterData)
	maxAbs := 0.0
	kept := 0
	for i := 0; i < len(positions); i += stride {
		p := positions[i]
		if p.XM == nil || p.YM == nil {
			continue
		}
		x, y := *p.XM, *p.YM
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		byClass[p.Classification] = append(byClass[p.Classification],
			opts.ScatterData{Value: []interface{}{x, y, p.DistanceM}})
		kept++
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Position Estimates (Local XY)", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Position Estimates", Subtitle: fmt.Sprintf("points=%d stride=%d", kept, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		scatter.AddSeries(class, byClass[class], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleRollupJSON exposes the stored per-classification distance rollups
// for quick inspection alongside the chart.
func (cs *ChartServer) handleRollupJSON(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	rollups, err := cs.db.Rollups(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query rollups: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rollups)
}
