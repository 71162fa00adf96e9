package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoSamples is returned when a report has nothing to draw.
var ErrNoSamples = errors.New("report: no samples")

var (
	measuredColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	estimateColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// TrajectoryPlot draws measured plate centres as points and the tracker's
// estimate as a line, in image coordinates. Image y grows downwards, so it
// is plotted negated to keep the picture upright.
func TrajectoryPlot(samples []Sample, title string) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	measured := make(plotter.XYs, 0, len(samples))
	estimate := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		if s.Matched && s.HasPlate {
			measured = append(measured, plotter.XY{X: s.Measured.X, Y: -s.Measured.Y})
		}
		if s.State != stateOrder[0] {
			estimate = append(estimate, plotter.XY{X: s.Estimate.X, Y: -s.Estimate.Y})
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "-y (px)"
	p.Add(plotter.NewGrid())

	if len(measured) > 0 {
		sc, err := plotter.NewScatter(measured)
		if err != nil {
			return nil, fmt.Errorf("measured scatter: %w", err)
		}
		sc.GlyphStyle.Color = measuredColor
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add("measured", sc)
	}
	if len(estimate) > 0 {
		line, err := plotter.NewLine(estimate)
		if err != nil {
			return nil, fmt.Errorf("estimate line: %w", err)
		}
		line.Color = estimateColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("estimate", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteTrajectoryPNG renders TrajectoryPlot to path. The extension picks
// the format, so .svg and .pdf work too.
func WriteTrajectoryPNG(path string, samples []Sample, title string) error {
	p, err := TrajectoryPlot(samples, title)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot %s: %w", path, err)
	}
	return nil
}
