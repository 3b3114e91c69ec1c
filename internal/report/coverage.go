// Package report renders scan progress charts.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/signalsfoundry/scanhead-simulator/core"
)

// ErrNoSamples is returned when rendering an empty recording.
var ErrNoSamples = errors.New("report: no coverage samples recorded")

// Sample is one coverage observation.
type Sample struct {
	Elapsed  float64
	Acquired int
}

// CoverageRecorder collects acquired-point counts over time. It is safe for
// concurrent use so it can sit behind a tick listener.
type CoverageRecorder struct {
	mu        sync.Mutex
	cloudSize int
	samples   []Sample
}

// NewCoverageRecorder returns a recorder for a cloud of cloudSize points.
func NewCoverageRecorder(cloudSize int) *CoverageRecorder {
	return &CoverageRecorder{cloudSize: cloudSize}
}

// Observe appends a sample.
func (r *CoverageRecorder) Observe(elapsed float64, acquired int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, Sample{Elapsed: elapsed, Acquired: acquired})
}

// TickListener adapts the recorder to core.SimulationEngine listeners.
func (r *CoverageRecorder) TickListener() func(core.TickReport) {
	return func(rep core.TickReport) {
		r.Observe(rep.Elapsed, rep.Acquired)
	}
}

// Samples returns a copy of the recorded samples.
func (r *CoverageRecorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Plot builds a coverage-percentage-over-time chart. Phase boundaries are
// drawn as dashed verticals when phases is non-empty.
func (r *CoverageRecorder) Plot(title string, phases ...float64) (*plot.Plot, error) {
	samples := r.Samples()
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Elapsed (s)"
	p.Y.Label.Text = "Coverage (%)"
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		pct := 0.0
		if r.cloudSize > 0 {
			pct = 100 * float64(s.Acquired) / float64(r.cloudSize)
		}
		pts = append(pts, plotter.XY{X: s.Elapsed, Y: pct})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("coverage line: %w", err)
	}
	line.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("coverage of %d points", r.cloudSize), line)
	p.Legend.Top = true
	p.Legend.Left = true

	for _, t := range phases {
		marker, err := plotter.NewLine(plotter.XYs{{X: t, Y: 0}, {X: t, Y: 100}})
		if err != nil {
			return nil, fmt.Errorf("phase marker: %w", err)
		}
		marker.Color = color.Gray{Y: 0x80}
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(marker)
	}
	return p, nil
}

// WritePNG renders the chart as PNG into w.
func (r *CoverageRecorder) WritePNG(w io.Writer, title string, phases ...float64) error {
	p, err := r.Plot(title, phases...)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render coverage plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write coverage plot: %w", err)
	}
	return nil
}

// Save writes the chart to path; the format follows the file extension.
func (r *CoverageRecorder) Save(path, title string, phases ...float64) error {
	p, err := r.Plot(title, phases...)
	if err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
