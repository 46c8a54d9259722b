package render

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"stepsync/internal/curve"
)

func testCurve(t *testing.T) *curve.Curve {
	t.Helper()
	c, err := curve.Build(7000, 0, curve.DefaultSchedule(), rand.NewPCG(1, 2))
	require.NoError(t, err)
	return c
}

func TestSeriesIncludesEndOfDay(t *testing.T) {
	pts, err := Series(testCurve(t), 10)
	require.NoError(t, err)
	require.Len(t, pts, 145)
	require.Equal(t, 0, pts[0].Minute)
	require.Equal(t, "23:59", pts[len(pts)-1].Clock())
	require.Equal(t, 7000, pts[len(pts)-1].Value)
	for i := 1; i < len(pts); i++ {
		require.GreaterOrEqual(t, pts[i].Value, pts[i-1].Value)
	}
}

func TestSeriesRejectsIncompleteCurve(t *testing.T) {
	_, err := Series(new(curve.Curve), 10)
	require.True(t, errors.Is(err, curve.ErrIncompleteCurve))
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, testCurve(t), 10))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "daily target: 7000 steps\n"))
	require.Contains(t, out, "idle rows")
	require.Contains(t, out, "23:59   7000 |"+strings.Repeat("#", barWidth))
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, testCurve(t), "plan"))
	out := buf.String()
	require.Contains(t, out, "<html")
	require.Contains(t, out, "23:59")
}

func TestPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, testCurve(t), "plan"))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatText, f)
	f, err = ParseFormat("HTML")
	require.NoError(t, err)
	require.Equal(t, FormatHTML, f)
	_, err = ParseFormat("svg")
	require.ErrorIs(t, err, ErrUnknownFormat)
}
