// Package chart renders benchmark results with gonum/plot.
package chart

import (
	"fmt"

	"github.com/fep-sdk/fep-harness/results"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/plotter"
)

// DefaultYLim is the round trip time in microseconds above which a sample counts as a peak.
const DefaultYLim = 3500

// Stats summarize the round trip times of one signal. Min, Avg, Max, Mean and Std cover received samples only.
type Stats struct {
	Min  float64
	Avg  float64
	Max  float64
	Mean float64
	Std  float64

	Total    int
	Received int
	Peaks    int
	Missed   int
}

// String ...
func (s Stats) String() string {
	return fmt.Sprintf("MIN/AVG/MAX=%4.2f/%4.2f/%4.2f MEAN/STD=%4.2f/%4.2f TOTAL/RECV/PEAKS/MISSED=%d/%d/%d/%d",
		s.Min, s.Avg, s.Max, s.Mean, s.Std, s.Total, s.Received, s.Peaks, s.Missed)
}

// Classified are the points of one timeline row, x is the send time relative to the first sample.
type Classified struct {
	InTime plotter.XYs
	// Peaks and Missed are drawn at ylim.
	Peaks  plotter.XYs
	Missed plotter.XYs
	Stats  Stats
}

// Classify sorts samples into in time (0 <= rtt <= ylim), peaks (rtt > ylim, still received)
// and missed (rtt < 0). A ylim of 0 turns classification off and every sample counts as in time.
func Classify(samples []results.Sample, ylim float64) Classified {
	var c Classified
	if len(samples) == 0 {
		return c
	}

	first := samples[0].Send
	var received []float64
	for _, s := range samples {
		x := float64(s.Send - first)
		y := float64(s.Diff())

		switch {
		case ylim == 0:
			c.InTime = append(c.InTime, plotter.XY{X: x, Y: y})
			received = append(received, y)
		case y < 0:
			c.Missed = append(c.Missed, plotter.XY{X: x, Y: ylim})
		case y > ylim:
			c.Peaks = append(c.Peaks, plotter.XY{X: x, Y: ylim})
			received = append(received, y)
		default:
			c.InTime = append(c.InTime, plotter.XY{X: x, Y: y})
			received = append(received, y)
		}
	}

	c.Stats = Stats{
		Total:    len(samples),
		Received: len(received),
		Peaks:    len(c.Peaks),
		Missed:   len(c.Missed),
	}
	if len(received) > 0 {
		c.Stats.Min = floats.Min(received)
		c.Stats.Max = floats.Max(received)
		c.Stats.Avg = stat.Mean(received, nil)
		c.Stats.Mean, c.Stats.Std = stat.PopMeanStdDev(received, nil)
	}

	return c
}
