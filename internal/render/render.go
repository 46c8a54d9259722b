package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"stepsync/internal/curve"
)

// DefaultResolution is the sampling step, in minutes, of every chart.
const DefaultResolution = 10

const barWidth = 50

type Point struct {
	Minute int
	Value  int
}

func (p Point) Clock() string { return fmt.Sprintf("%02d:%02d", p.Minute/60, p.Minute%60) }

// Series samples c every resolution minutes, always including 23:59.
func Series(c *curve.Curve, resolution int) ([]Point, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	out := make([]Point, 0, curve.MinutesPerDay/resolution+1)
	for m := 0; m < curve.MinutesPerDay; m += resolution {
		v, err := c.At(m)
		if err != nil {
			return nil, err
		}
		out = append(out, Point{Minute: m, Value: v})
	}
	if last := curve.MinutesPerDay - 1; out[len(out)-1].Minute != last {
		v, err := c.At(last)
		if err != nil {
			return nil, err
		}
		out = append(out, Point{Minute: last, Value: v})
	}
	return out, nil
}

// Text writes one row per sample: clock, value and a bar scaled to the
// day's target. Flat runs of zero at the start of the day are collapsed.
func Text(w io.Writer, c *curve.Curve, resolution int) error {
	pts, err := Series(c, resolution)
	if err != nil {
		return err
	}
	target := c.Target()
	if _, err := fmt.Fprintf(w, "daily target: %d steps\n", target); err != nil {
		return err
	}

	skipped := 0
	for i, p := range pts {
		if p.Value == 0 && i+1 < len(pts) && pts[i+1].Value == 0 {
			skipped++
			continue
		}
		if skipped > 0 {
			if _, err := fmt.Fprintf(w, "   ...  (%d idle rows)\n", skipped); err != nil {
				return err
			}
			skipped = 0
		}
		n := 0
		if target > 0 {
			n = p.Value * barWidth / target
		}
		if _, err := fmt.Fprintf(w, "%s %6d |%s\n", p.Clock(), p.Value, strings.Repeat("#", n)); err != nil {
			return err
		}
	}
	return nil
}

// Format picks a renderer by name.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

var ErrUnknownFormat = errors.New("render: unknown chart format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatHTML, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Write renders c to w in format f.
func Write(w io.Writer, f Format, c *curve.Curve, title string) error {
	switch f {
	case FormatText, "":
		return Text(w, c, DefaultResolution)
	case FormatHTML:
		return HTML(w, c, title)
	case FormatPNG:
		return PNG(w, c, title)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}
