package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fep-sdk/fep-harness/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"
)

func samples(name string, diffs ...int64) []results.Sample {
	var s []results.Sample
	for i, d := range diffs {
		send := int64(1000 + i*1000)
		s = append(s, results.Sample{Name: name, Index: i, Send: send, Recv: send + d})
	}
	return s
}

func TestClassify(t *testing.T) {
	got := Classify(samples("1.Signal", 100, 300, 5000, -2000), DefaultYLim)

	require.Equal(t, plotter.XYs{{X: 0, Y: 100}, {X: 1000, Y: 300}}, got.InTime)
	require.Equal(t, plotter.XYs{{X: 2000, Y: DefaultYLim}}, got.Peaks)
	require.Equal(t, plotter.XYs{{X: 3000, Y: DefaultYLim}}, got.Missed)

	assert.Equal(t, 4, got.Stats.Total)
	assert.Equal(t, 3, got.Stats.Received)
	assert.Equal(t, 1, got.Stats.Peaks)
	assert.Equal(t, 1, got.Stats.Missed)
	assert.Equal(t, 100.0, got.Stats.Min)
	assert.Equal(t, 5000.0, got.Stats.Max)
	assert.Equal(t, 1800.0, got.Stats.Avg)
	assert.Equal(t, got.Stats.Avg, got.Stats.Mean)
	assert.InDelta(t, 2264.2, got.Stats.Std, 0.1)
}

func TestClassify_NoLimit(t *testing.T) {
	got := Classify(samples("1.Signal", 100, -50), 0)

	require.Len(t, got.InTime, 2)
	require.Empty(t, got.Peaks)
	require.Empty(t, got.Missed)
	require.Equal(t, 2, got.Stats.Received)
}

func TestClassify_Empty(t *testing.T) {
	require.Equal(t, Classified{}, Classify(nil, DefaultYLim))
}

func TestTitle(t *testing.T) {
	stats := Stats{Min: 1, Avg: 2, Max: 3, Mean: 2, Std: 0.5, Total: 4, Received: 3, Peaks: 0, Missed: 1}

	require.Equal(t,
		"1.Signal [ size = 1024 bytes; f = 1000 Hz; burst = 1 ] MIN/AVG/MAX=1.00/2.00/3.00 MEAN/STD=2.00/0.50 TOTAL/RECV/PEAKS/MISSED=4/3/0/1",
		Title("1.Signal", &results.SignalAttributes{Bytes: 1024, Frequency: 1000, NumPerCycle: 1}, stats))
	require.True(t, strings.HasPrefix(Title("2.Signal", nil, stats), "2.Signal MIN/AVG/MAX="))
}

func TestTimeline(t *testing.T) {
	timeline := results.Timeline{
		"2.Signal": samples("2.Signal", 200, 4000),
		"1.Signal": samples("1.Signal", 100, -1),
	}

	plots, err := TimelinePlots(timeline, TimelineOptions{YLim: DefaultYLim, Signals: []results.SignalAttributes{{Bytes: 1024, Frequency: 1000, NumPerCycle: 1}}})
	require.NoError(t, err)
	require.Len(t, plots, 2)
	require.True(t, strings.HasPrefix(plots[0].Title.Text, "1.Signal [ size = 1024 bytes"))
	require.True(t, strings.HasPrefix(plots[1].Title.Text, "2.Signal MIN/AVG/MAX"))
	require.Equal(t, float64(DefaultYLim+2), plots[0].Y.Max)

	var buf bytes.Buffer
	require.NoError(t, Timeline(&buf, "png", timeline, TimelineOptions{YLim: DefaultYLim}))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestTimeline_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Timeline(&buf, "png", results.Timeline{}, TimelineOptions{}))
}

func TestSaveTimeline(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "LinuxDefault_f1000b1024d0n1.csv")

	f, err := os.Create(csvPath)
	require.NoError(t, err)
	require.NoError(t, results.WriteTimeline(f, samples("1.Signal", 100, 200, 300)))
	require.NoError(t, f.Close())

	require.NoError(t, SaveTimeline(csvPath, 0))
	require.FileExists(t, filepath.Join(dir, "LinuxDefault_f1000b1024d0n1.png"))
	require.FileExists(t, filepath.Join(dir, "LinuxDefault_f1000b1024d0n1.pdf"))
}

func TestSaveComparison(t *testing.T) {
	comparison := results.Comparison{
		Title:  "FEP Scale @ 100 Hz",
		XLabel: "Number of Receivers [#]",
		YLabel: "RTT [us]",
		X:      []int{1, 2},
		Lines: []results.Line{{
			Legend: "FEP(Reliable/Unicast/Sync) [Sample Size: 1000] %0",
			Points: []results.Point{
				{X: 1, Summary: results.Summary{Usr: results.RTT{Min: 100, Avg: 150, Max: 900}}},
				{X: 2, Summary: results.Summary{Usr: results.RTT{Min: 120, Avg: 180, Max: 1900}}},
			},
		}},
	}

	p, err := ComparisonPlot(comparison)
	require.NoError(t, err)
	require.Equal(t, "FEP Scale @ 100 Hz", p.Title.Text)
	require.Equal(t, float64(ComparisonYMax), p.Y.Max)

	pts := rangePoints(comparison.Lines[0])
	low, high := pts.YError(1)
	require.Equal(t, 60.0, low)
	require.Equal(t, 1720.0, high)

	base := filepath.Join(t.TempDir(), "FEP_Scale___100_Hz")
	require.NoError(t, SaveComparison(base, comparison))
	require.FileExists(t, base+".png")
	require.FileExists(t, base+".pdf")
}
