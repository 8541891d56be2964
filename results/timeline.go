package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	sendColumn = 2
	recvColumn = 5
)

// TimelineHeader is the first row of a timeline CSV.
var TimelineHeader = []string{"SignalName", "SeqNr", "ClientSend", "ServerRecv", "ServerSend", "ClientRecv"}

// Sample is one round trip of a signal, timestamps are in microseconds.
type Sample struct {
	Name       string
	Index      int
	Send       int64
	ServerRecv int64
	ServerSend int64
	Recv       int64
}

// Diff is the round trip time, negative if the sample was lost.
func (s Sample) Diff() int64 {
	return s.Recv - s.Send
}

// Timeline maps a signal name to its samples, ordered by index.
type Timeline map[string][]Sample

// Names returns the signal names sorted.
func (t Timeline) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTimeline writes the samples in the given order.
func WriteTimeline(w io.Writer, samples []Sample) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write(TimelineHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			s.Name,
			strconv.Itoa(s.Index),
			strconv.FormatInt(s.Send, 10),
			strconv.FormatInt(s.ServerRecv, 10),
			strconv.FormatInt(s.ServerSend, 10),
			strconv.FormatInt(s.Recv, 10),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadTimeline reads a timeline CSV. The header row is skipped and columns after the client
// receive time are ignored. Indices of every signal have to be contiguous from 0.
func ReadTimeline(r io.Reader) (Timeline, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	timeline := Timeline{}
	first := true
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		if first {
			first = false
			continue
		}
		if len(row) <= recvColumn {
			return nil, fmt.Errorf("line %d: %d columns, expected at least %d", line, len(row), recvColumn+1)
		}

		name := row[0]
		index, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: index: %w", line, err)
		}
		if index != len(timeline[name]) {
			return nil, fmt.Errorf("line %d: signal %s: index %d, expected %d", line, name, index, len(timeline[name]))
		}

		var stamps [4]int64
		for i, column := range []int{sendColumn, 3, 4, recvColumn} {
			v, err := strconv.ParseInt(strings.TrimSpace(row[column]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, column, err)
			}
			stamps[i] = v
		}

		timeline[name] = append(timeline[name], Sample{
			Name:       name,
			Index:      index,
			Send:       stamps[0],
			ServerRecv: stamps[1],
			ServerSend: stamps[2],
			Recv:       stamps[3],
		})
	}

	return timeline, nil
}

// ReadTimelineFile ...
func ReadTimelineFile(pth string) (Timeline, error) {
	f, err := os.Open(pth)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	timeline, err := ReadTimeline(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pth, err)
	}
	return timeline, nil
}
