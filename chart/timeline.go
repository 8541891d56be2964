package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strings"

	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/fep-sdk/fep-harness/results"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
)

var (
	inTimeColor = color.RGBA{G: 128, A: 255}
	peakColor   = color.RGBA{R: 191, B: 191, A: 255}
	missedColor = color.RGBA{R: 255, A: 255}
	gridColor   = color.Gray{Y: 230}
)

// TimelineOptions ...
type TimelineOptions struct {
	// YLim caps the y axis, 0 scales it to the largest round trip time.
	YLim float64
	// Signals are matched to the rows by position, rows are sorted by signal name.
	Signals []results.SignalAttributes
}

// Title annotates a timeline row.
func Title(name string, attrs *results.SignalAttributes, stats Stats) string {
	parts := []string{name}
	if attrs != nil {
		parts = append(parts, fmt.Sprintf("[ size = %d bytes; f = %d Hz; burst = %d ]", attrs.Bytes, attrs.Frequency, attrs.NumPerCycle))
	}
	parts = append(parts, stats.String())
	return strings.Join(parts, " ")
}

// TimelinePlots builds one plot per signal, round trip time over send time.
func TimelinePlots(timeline results.Timeline, opts TimelineOptions) ([]*plot.Plot, error) {
	names := timeline.Names()

	ymax := opts.YLim
	if ymax == 0 {
		var maxDiff int64
		for _, name := range names {
			for _, s := range timeline[name] {
				if d := s.Diff(); d > maxDiff {
					maxDiff = d
				}
			}
		}
		ymax = math.Ceil(float64(maxDiff)/1000) * 1000
	} else {
		ymax += 2
	}

	plots := make([]*plot.Plot, 0, len(names))
	for i, name := range names {
		classified := Classify(timeline[name], opts.YLim)

		var attrs *results.SignalAttributes
		if i < len(opts.Signals) {
			attrs = &opts.Signals[i]
		}

		p := plot.New()
		p.Title.Text = Title(name, attrs, classified.Stats)
		p.Title.TextStyle.Font.Size = vg.Points(7)
		p.Y.Label.Text = "RTT Time [us]"
		p.Y.Min = 0
		p.Y.Max = ymax
		if i == len(names)-1 {
			p.X.Label.Text = "time / us"
		}

		grid := plotter.NewGrid()
		grid.Vertical.Color = gridColor
		grid.Horizontal.Color = gridColor
		p.Add(grid)

		series := []struct {
			label string
			xys   plotter.XYs
			color color.Color
			shape draw.GlyphDrawer
		}{
			{"Received (In Time)", classified.InTime, inTimeColor, draw.CircleGlyph{}},
			{"Received (Peaks)", classified.Peaks, peakColor, draw.CrossGlyph{}},
			{"Lost", classified.Missed, missedColor, draw.RingGlyph{}},
		}
		for _, s := range series {
			if len(s.xys) == 0 {
				continue
			}

			scatter, err := plotter.NewScatter(s.xys)
			if err != nil {
				return nil, fmt.Errorf("signal %s: %w", name, err)
			}
			scatter.GlyphStyle.Color = s.color
			scatter.GlyphStyle.Shape = s.shape
			scatter.GlyphStyle.Radius = vg.Points(1)

			p.Add(scatter)
			p.Legend.Add(s.label, scatter)
		}
		p.Legend.Top = false
		p.Legend.Left = false

		plots = append(plots, p)
	}

	return plots, nil
}

// Timeline renders the timeline into w, format is "png" or "pdf".
func Timeline(w io.Writer, format string, timeline results.Timeline, opts TimelineOptions) error {
	plots, err := TimelinePlots(timeline, opts)
	if err != nil {
		return err
	}
	if len(plots) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	c, err := draw.NewFormattedCanvas(10*vg.Inch, 10*vg.Inch, format)
	if err != nil {
		return err
	}

	rows := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		rows[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
		PadY:      vg.Points(6),
	}
	canvases := plot.Align(rows, tiles, draw.New(c))
	for i, p := range plots {
		p.Draw(canvases[i][0])
	}

	_, err = c.WriteTo(w)
	return err
}

// SaveTimeline reads a timeline CSV with its .meta file and stores the chart next to it as .png and .pdf.
func SaveTimeline(csvPath string, ylim float64) error {
	timeline, err := results.ReadTimelineFile(csvPath)
	if err != nil {
		return err
	}

	var signals []results.SignalAttributes
	metaPath := results.MetaPath(csvPath)
	if exist, err := pathutil.IsPathExists(metaPath); err != nil {
		return err
	} else if exist {
		if signals, err = results.ReadMeta(metaPath); err != nil {
			return err
		}
	}

	base := strings.TrimSuffix(csvPath, ".csv")
	for _, format := range []string{"pdf", "png"} {
		if err := saveTimeline(base+"."+format, format, timeline, TimelineOptions{YLim: ylim, Signals: signals}); err != nil {
			return err
		}
	}
	return nil
}

func saveTimeline(pth, format string, timeline results.Timeline, opts TimelineOptions) (err error) {
	f, err := os.Create(pth)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return Timeline(f, format, timeline, opts)
}
