package junit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
)

// Header is written in front of every emitted report.
const Header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// XML ...
type XML struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Name       string      `xml:"name,attr,omitempty"`
	TestSuites []TestSuite `xml:"testsuite"`
}

// TestSuite ...
type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Time      float64    `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

// TestCase ...
type TestCase struct {
	XMLName     xml.Name   `xml:"testcase"`
	Name        string     `xml:"name,attr"`
	ClassName   string     `xml:"classname,attr"`
	Requirement string     `xml:"requirement,attr,omitempty"`
	Time        float64    `xml:"time,attr"`
	Failures    []Failure  `xml:"failure,omitempty"`
	Skipped     *Skipped   `xml:"skipped,omitempty"`
	SystemOut   *SystemOut `xml:"system-out,omitempty"`
}

// Failure ...
type Failure struct {
	XMLName xml.Name `xml:"failure"`
	Type    string   `xml:"type,attr,omitempty"`
	Message string   `xml:"message,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// Skipped ...
type Skipped struct {
	XMLName xml.Name `xml:"skipped"`
	Message string   `xml:"message,attr,omitempty"`
}

// SystemOut ...
type SystemOut struct {
	XMLName xml.Name `xml:"system-out"`
	Value   string   `xml:",chardata"`
}

// AddFailure appends a failure entry to the test case.
func (c *TestCase) AddFailure(failureType, message, value string) {
	c.Failures = append(c.Failures, Failure{
		Type:    failureType,
		Message: message,
		Value:   value,
	})
}

// Skip marks the test case as not run.
func (c *TestCase) Skip(message string) {
	c.Skipped = &Skipped{Message: message}
}

// AppendOutput adds a line block to the system-out section.
func (c *TestCase) AppendOutput(text string) {
	if c.SystemOut == nil {
		c.SystemOut = &SystemOut{}
	}
	if c.SystemOut.Value != "" && !strings.HasSuffix(c.SystemOut.Value, "\n") {
		c.SystemOut.Value += "\n"
	}
	c.SystemOut.Value += text
}

// Failed ...
func (c TestCase) Failed() bool {
	return len(c.Failures) > 0
}

// ExitCodeFailure records the process result code of a test case:
// zero adds a note to the output, anything else exactly one failure.
func (c *TestCase) ExitCodeFailure(exitCode int) {
	text := fmt.Sprintf("ResultCode=%d", exitCode)
	if exitCode == 0 {
		c.AppendOutput(text)
		return
	}
	c.AddFailure("error", text, text)
}

// Finalize recomputes the suite counters from its test cases.
func (s *TestSuite) Finalize() {
	s.Tests = len(s.TestCases)
	s.Failures, s.Skipped, s.Time = 0, 0, 0
	for _, tc := range s.TestCases {
		if tc.Failed() {
			s.Failures++
		}
		if tc.Skipped != nil {
			s.Skipped++
		}
		s.Time += tc.Time
	}
}

// Finalize recomputes the counters of all suites.
func (x *XML) Finalize() {
	for i := range x.TestSuites {
		x.TestSuites[i].Finalize()
	}
}

// FailureCount returns the number of failed test cases over all suites.
func (x XML) FailureCount() int {
	count := 0
	for _, suite := range x.TestSuites {
		for _, tc := range suite.TestCases {
			if tc.Failed() {
				count++
			}
		}
	}
	return count
}

// Write encodes the report with the xml header.
func Write(w io.Writer, report XML) error {
	report.Finalize()

	data, err := xml.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, Header); err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// WriteFile writes the report to pth, or to stdout if pth is empty.
func WriteFile(pth string, report XML) error {
	if pth == "" {
		return Write(os.Stdout, report)
	}

	f, err := os.Create(pth)
	if err != nil {
		return fmt.Errorf("failed to create report file (%s): %w", pth, err)
	}
	if err := Write(f, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report file (%s): %w", pth, err)
	}
	return f.Close()
}

// Equal ...
func (x XML) Equal(xml XML) bool {
	// store and clear TestSuite.TestSuites,
	// to make reflect.DeepEqual work as expected,
	// compare TestSuites later
	suitsA, suitsB := x.TestSuites, append([]TestSuite{}, xml.TestSuites...)
	x.TestSuites, xml.TestSuites = nil, nil

	if !reflect.DeepEqual(x, xml) {
		return false
	}

	if len(suitsA) != len(suitsB) {
		return false
	}

	for _, suitA := range suitsA {
		found := false
		for j, suitB := range suitsB {
			if suitA.Equal(suitB) {
				found = true
				// remove already found cases to make sure
				// the slices are only different in order of elements
				copy(suitsB[j:], suitsB[j+1:])
				suitsB = suitsB[:len(suitsB)-1]

				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Equal ...
func (s TestSuite) Equal(ts TestSuite) bool {
	// store and clear TestSuite.TestCases,
	// to make reflect.DeepEqual work as expected,
	// compare TestCases later
	casesA, casesB := s.TestCases, append([]TestCase{}, ts.TestCases...)
	s.TestCases, ts.TestCases = nil, nil

	if !reflect.DeepEqual(s, ts) {
		return false
	}

	if len(casesA) != len(casesB) {
		return false
	}

	for _, caseA := range casesA {
		found := false
		for j, caseB := range casesB {
			if reflect.DeepEqual(caseA, caseB) {
				found = true
				copy(casesB[j:], casesB[j+1:])
				casesB = casesB[:len(casesB)-1]

				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
