package render

import (
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"stepsync/internal/curve"
)

// PNG writes a gonum/plot rendering of the full per-minute curve, x in hours.
func PNG(w io.Writer, c *curve.Curve, title string) error {
	vals := c.Values()
	if _, err := c.At(0); err != nil {
		return err
	}
	xys := make(plotter.XYs, len(vals))
	for m, v := range vals {
		xys[m] = plotter.XY{X: float64(m) / 60, Y: v}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "hour"
	p.Y.Label.Text = "steps"
	p.X.Min, p.X.Max = 0, 24
	p.Y.Min = 0
	p.Add(plotter.NewGrid())

	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.Width = vg.Points(1.5)
	p.Add(l)

	wt, err := p.WriterTo(12*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
