package monitor

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/fsutil"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/security"
	"github.com/banshee-data/position.report/internal/timeutil"
)

// PositionPlotter samples the position store on an interval, accumulating
// time series of estimate rate and per-classification distance percentiles
// that can be written out as PNG plots after a run.
type PositionPlotter struct {
	mu        sync.Mutex
	db        *db.DB
	outputDir string
	interval  time.Duration
	clock     timeutil.Clock
	fs        fsutil.FileSystem

	samples   []plotSample
	lastCount int64
	startTime time.Time
	tickIdx   int
}

// plotSample captures one interval's worth of store activity.
type plotSample struct {
	TickIdx int
	// Estimates recorded during the interval
	NewEstimates int64
	// Per-classification distance percentiles over the interval
	Rollups map[string]db.PositionRollup
}

// NewPositionPlotter creates a plotter writing PNGs to outputDir every
// interval. A nil clock uses the real clock.
func NewPositionPlotter(database *db.DB, outputDir string, interval time.Duration, clock timeutil.Clock) *PositionPlotter {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PositionPlotter{
		db:        database,
		outputDir: outputDir,
		interval:  interval,
		clock:     clock,
		fs:        fsutil.OSFileSystem{},
	}
}

// Start samples on the configured interval until the context is cancelled,
// then writes the accumulated plots. Run it on its own goroutine.
func (pp *PositionPlotter) Start(ctx context.Context) error {
	if err := pp.fs.MkdirAll(pp.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	pp.mu.Lock()
	pp.startTime = pp.clock.Now()
	pp.mu.Unlock()

	ticker := pp.clock.NewTicker(pp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if count, err := pp.GeneratePlots(); err != nil {
				monitoring.Logf("monitor: failed to generate plots: %v", err)
			} else if count > 0 {
				monitoring.Logf("monitor: wrote %d plots to %s", count, pp.outputDir)
			}
			return ctx.Err()
		case <-ticker.C():
			if err := pp.Sample(); err != nil {
				monitoring.Logf("monitor: sample failed: %v", err)
			}
		}
	}
}

// Sample records one interval's estimate count delta and distance rollups.
func (pp *PositionPlotter) Sample() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	count, err := pp.db.CountPositions()
	if err != nil {
		return fmt.Errorf("failed to count positions: %w", err)
	}

	now := pp.clock.Now()
	since := now.Add(-pp.interval)
	rollups, err := pp.db.RollupPositions(since.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to roll up positions: %w", err)
	}

	byClass := make(map[string]db.PositionRollup, len(rollups))
	for _, r := range rollups {
		byClass[r.Classification] = r
	}

	pp.tickIdx++
	pp.samples = append(pp.samples, plotSample{
		TickIdx:      pp.tickIdx,
		NewEstimates: count - pp.lastCount,
		Rollups:      byClass,
	})
	pp.lastCount = count
	return nil
}

// SampleCount returns the number of recorded samples.
func (pp *PositionPlotter) SampleCount() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.samples)
}

// GeneratePlots writes the accumulated time series as PNG files: one
// estimate-rate plot plus one distance-percentile plot per classification
// seen. Returns the number of plots written.
func (pp *PositionPlotter) GeneratePlots() (int, error) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(pp.samples) == 0 {
		return 0, nil
	}

	plotCount := 0
	if err := pp.generateRatePlot(); err != nil {
		return plotCount, fmt.Errorf("rate plot: %w", err)
	}
	plotCount++

	classes := make(map[string]bool)
	for _, s := range pp.samples {
		for class := range s.Rollups {
			classes[class] = true
		}
	}
	var sortedClasses []string
	for class := range classes {
		sortedClasses = append(sortedClasses, class)
	}
	sort.Strings(sortedClasses)

	for _, class := range sortedClasses {
		if err := pp.generateDistancePlot(class); err != nil {
			return plotCount, fmt.Errorf("class %s: %w", class, err)
		}
		plotCount++
	}

	return plotCount, nil
}

func (pp *PositionPlotter) generateRatePlot() error {
	p := plot.New()
	p.Title.Text = "Position Estimates Per Interval"
	p.X.Label.Text = "Interval"
	p.Y.Label.Text = "Estimates"

	pts := make(plotter.XYs, 0, len(pp.samples))
	for _, s := range pp.samples {
		pts = append(pts, plotter.XY{X: float64(s.TickIdx), Y: float64(s.NewEstimates)})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	file := filepath.Join(pp.outputDir, "estimate_rate.png")
	if err := pp.savePlot(p, file); err != nil {
		return fmt.Errorf("save rate plot: %w", err)
	}
	return nil
}

// savePlot renders a plot as PNG through the plotter's filesystem.
func (pp *PositionPlotter) savePlot(p *plot.Plot, file string) error {
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	f, err := pp.fs.Create(file)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// generateDistancePlot draws p50/p95 distance lines for one classification.
func (pp *PositionPlotter) generateDistancePlot(class string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Estimated Distance Percentiles", class)
	p.X.Label.Text = "Interval"
	p.Y.Label.Text = "Distance (m)"

	p50Pts := make(plotter.XYs, 0, len(pp.samples))
	p95Pts := make(plotter.XYs, 0, len(pp.samples))
	for _, s := range pp.samples {
		r, ok := s.Rollups[class]
		if !ok || r.Count == 0 {
			continue
		}
		p50Pts = append(p50Pts, plotter.XY{X: float64(s.TickIdx), Y: r.P50DistanceM})
		p95Pts = append(p95Pts, plotter.XY{X: float64(s.TickIdx), Y: r.P95DistanceM})
	}
	if len(p50Pts) == 0 {
		return nil
	}

	colors := generateColors(2)

	p50Line, err := plotter.NewLine(p50Pts)
	if err != nil {
		return err
	}
	p50Line.Color = colors[0]
	p50Line.Width = vg.Points(1)
	p.Add(p50Line)
	p.Legend.Add("p50", p50Line)

	p95Line, err := plotter.NewLine(p95Pts)
	if err != nil {
		return err
	}
	p95Line.Color = colors[1]
	p95Line.Width = vg.Points(1)
	p.Add(p95Line)
	p.Legend.Add("p95", p95Line)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(pp.outputDir, fmt.Sprintf("distance_%s.png", security.SanitizeFilename(class)))
	if err := pp.savePlot(p, file); err != nil {
		return fmt.Errorf("save distance plot: %w", err)
	}
	return nil
}

// generateColors creates a palette of distinct colors for plot lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
