// Package results holds the records the benchmark drivers produce and the file formats they are kept in.
package results

import (
	"fmt"
	"strconv"
	"strings"
)

// SummaryID marks the aggregated line among the per-receiver lines of a compare client.
const SummaryID = "Summary"

const summaryFields = 14

// RTT is a round trip time range in microseconds.
type RTT struct {
	Min int `json:"min"`
	Avg int `json:"avg"`
	Max int `json:"max"`
}

// Summary is one line of compare client statistics.
type Summary struct {
	ID       string `json:"id"`
	Sent     int    `json:"sent"`
	Received int    `json:"received"`
	Lost     int    `json:"lost"`
	// Usr is measured at the user layer, Llv at the low level API and Dds at the transport.
	Usr    RTT `json:"usr"`
	Llv    RTT `json:"llv"`
	Dds    RTT `json:"dds"`
	Errors int `json:"errors"`
}

// ParseSummaryLine parses `id;sent;received;lost;usr min;avg;max;llv min;avg;max;dds min;avg;max;errors`.
func ParseSummaryLine(line string) (Summary, error) {
	fields := strings.Split(strings.TrimRight(line, "\r"), ";")
	if len(fields) != summaryFields {
		return Summary{}, fmt.Errorf("summary line has %d fields, expected %d: %q", len(fields), summaryFields, line)
	}

	values := make([]int, summaryFields-1)
	for i, field := range fields[1:] {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return Summary{}, fmt.Errorf("summary field %d: %w", i+1, err)
		}
		if v < 0 {
			return Summary{}, fmt.Errorf("summary field %d is negative: %d", i+1, v)
		}
		values[i] = v
	}

	return Summary{
		ID:       fields[0],
		Sent:     values[0],
		Received: values[1],
		Lost:     values[2],
		Usr:      RTT{Min: values[3], Avg: values[4], Max: values[5]},
		Llv:      RTT{Min: values[6], Avg: values[7], Max: values[8]},
		Dds:      RTT{Min: values[9], Avg: values[10], Max: values[11]},
		Errors:   values[12],
	}, nil
}

// FindSummary picks the Summary line of a client's stdout.
// Without one the last well formed statistics line is used.
func FindSummary(stdout string) (Summary, bool) {
	var last Summary
	found := false

	for _, line := range strings.Split(stdout, "\n") {
		summary, err := ParseSummaryLine(line)
		if err != nil {
			continue
		}
		if summary.ID == SummaryID {
			return summary, true
		}
		last, found = summary, true
	}

	return last, found
}
