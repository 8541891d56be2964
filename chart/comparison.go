package chart

import (
	"fmt"
	"strconv"

	"github.com/fep-sdk/fep-harness/results"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ComparisonYMax is the upper end of the round trip axis of comparison charts, 10 ms.
const ComparisonYMax = 10000

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// rangePoints spans the error bar of every point from the minimal to the maximal user round trip time.
func rangePoints(line results.Line) errorPoints {
	pts := errorPoints{
		XYs:     make(plotter.XYs, len(line.Points)),
		YErrors: make(plotter.YErrors, len(line.Points)),
	}
	for i, p := range line.Points {
		usr := p.Summary.Usr
		pts.XYs[i] = plotter.XY{X: float64(p.X), Y: float64(usr.Avg)}
		pts.YErrors[i].Low = float64(usr.Avg - usr.Min)
		pts.YErrors[i].High = float64(usr.Max - usr.Avg)
	}
	return pts
}

// ComparisonPlot draws the average user round trip time of every line over the x variant,
// with min/max error bars.
func ComparisonPlot(c results.Comparison) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.Y.Min = 0
	p.Y.Max = ComparisonYMax

	yTicks := make([]plot.Tick, 0, ComparisonYMax/1000)
	for v := 0; v < ComparisonYMax; v += 1000 {
		yTicks = append(yTicks, plot.Tick{Value: float64(v), Label: strconv.Itoa(v)})
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	xTicks := make([]plot.Tick, 0, len(c.X))
	for _, x := range c.X {
		xTicks = append(xTicks, plot.Tick{Value: float64(x), Label: strconv.Itoa(x)})
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)

	p.Add(plotter.NewGrid())

	for i, line := range c.Lines {
		if len(line.Points) == 0 {
			continue
		}

		pts := rangePoints(line)
		l, s, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", line.Legend, err)
		}
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", line.Legend, err)
		}

		clr := plotutil.Color(i)
		l.Color = clr
		s.Color = clr
		bars.Color = clr
		bars.Width = vg.Points(2)
		bars.CapWidth = vg.Points(10)

		p.Add(l, s, bars)
		p.Legend.Add(line.Legend, l, s)
	}
	p.Legend.Top = true

	return p, nil
}

// SaveComparison stores the chart as <base>.png and <base>.pdf.
func SaveComparison(base string, c results.Comparison) error {
	p, err := ComparisonPlot(c)
	if err != nil {
		return err
	}

	for _, ext := range []string{".pdf", ".png"} {
		if err := p.Save(10*vg.Inch, 10*vg.Inch, base+ext); err != nil {
			return fmt.Errorf("failed to save %s%s: %w", base, ext, err)
		}
	}
	return nil
}
