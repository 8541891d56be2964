package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-utils/fileutil"
)

// ComparisonHeader is the first row of a comparison CSV.
var ComparisonHeader = []string{
	"Legend", "Xvariant", "Sent", "Received", "Lost",
	"Usr_MinRT", "Usr_AvgRT", "Usr_MaxRT",
	"Llv_MinRT", "Llv_AvgRT", "Llv_MaxRT",
}

// Point is the summary measured for one x value.
type Point struct {
	X       int     `json:"x"`
	Summary Summary `json:"summary"`
}

// Line is one system/config combination of a comparison.
type Line struct {
	Legend string  `json:"legend"`
	Points []Point `json:"points"`
}

// Comparison is a result set rendered as one chart.
type Comparison struct {
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	X      []int  `json:"x"`
	Lines  []Line `json:"lines"`
}

// WriteCSV dumps the comparison rows in run order.
func WriteCSV(w io.Writer, c Comparison) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write(ComparisonHeader); err != nil {
		return err
	}
	for _, line := range c.Lines {
		for _, p := range line.Points {
			s := p.Summary
			row := []string{line.Legend}
			for _, v := range []int{p.X, s.Sent, s.Received, s.Lost, s.Usr.Min, s.Usr.Avg, s.Usr.Max, s.Llv.Min, s.Llv.Avg, s.Llv.Max} {
				row = append(row, strconv.Itoa(v))
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSVFile ...
func WriteCSVFile(pth string, c Comparison) error {
	f, err := os.Create(pth)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, c); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", pth, err)
	}
	return f.Close()
}

// ReadCSV reads the rows of a comparison CSV back into lines, grouped by legend in order of appearance.
// Titles and labels are not part of the CSV.
func ReadCSV(r io.Reader) ([]Line, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = len(ComparisonHeader)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header")
	}

	var lines []Line
	index := map[string]int{}
	for n, row := range rows[1:] {
		values := make([]int, len(row)-1)
		for i, field := range row[1:] {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", n+2, ComparisonHeader[i+1], err)
			}
			if v < 0 {
				return nil, fmt.Errorf("row %d, column %s is negative: %d", n+2, ComparisonHeader[i+1], v)
			}
			values[i] = v
		}

		legend := row[0]
		i, ok := index[legend]
		if !ok {
			i = len(lines)
			index[legend] = i
			lines = append(lines, Line{Legend: legend})
		}
		lines[i].Points = append(lines[i].Points, Point{
			X: values[0],
			Summary: Summary{
				Sent:     values[1],
				Received: values[2],
				Lost:     values[3],
				Usr:      RTT{Min: values[4], Avg: values[5], Max: values[6]},
				Llv:      RTT{Min: values[7], Avg: values[8], Max: values[9]},
			},
		})
	}

	return lines, nil
}

// IsComparisonCSV reports whether the file at pth starts with ComparisonHeader.
func IsComparisonCSV(pth string) (bool, error) {
	f, err := os.Open(pth)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return slices.Equal(header, ComparisonHeader), nil
}

// ReadComparisonFile reads a CSV of WriteCSVFile back into a comparison titled after the file name.
// X holds every x value in ascending order.
func ReadComparisonFile(pth, yLabel string) (Comparison, error) {
	f, err := os.Open(pth)
	if err != nil {
		return Comparison{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	lines, err := ReadCSV(f)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to read %s: %w", pth, err)
	}

	var xs []int
	for _, line := range lines {
		for _, p := range line.Points {
			if !slices.Contains(xs, p.X) {
				xs = append(xs, p.X)
			}
		}
	}
	slices.Sort(xs)

	return Comparison{
		Title:  strings.TrimSuffix(filepath.Base(pth), filepath.Ext(pth)),
		XLabel: ComparisonHeader[1],
		YLabel: yLabel,
		X:      xs,
		Lines:  lines,
	}, nil
}

// SaveComparisons persists result sets so charts can be rendered again without rerunning.
func SaveComparisons(pth string, comparisons []Comparison) error {
	data, err := json.MarshalIndent(comparisons, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteBytesToFile(pth, data)
}

// LoadComparisons ...
func LoadComparisons(pth string) ([]Comparison, error) {
	data, err := fileutil.ReadBytesFromFile(pth)
	if err != nil {
		return nil, err
	}

	var comparisons []Comparison
	if err := json.Unmarshal(data, &comparisons); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pth, err)
	}
	return comparisons, nil
}
