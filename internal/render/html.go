package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"stepsync/internal/curve"
)

// HTML writes a standalone go-echarts line chart of c.
func HTML(w io.Writer, c *curve.Curve, title string) error {
	pts, err := Series(c, DefaultResolution)
	if err != nil {
		return err
	}
	x := make([]string, 0, len(pts))
	y := make([]opts.LineData, 0, len(pts))
	for _, p := range pts {
		x = append(x, p.Clock())
		y = append(y, opts.LineData{Value: p.Value})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("target=%d", c.Target())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "steps", Min: 0}),
	)
	line.SetXAxis(x).AddSeries("steps", y)
	return line.Render(w)
}
