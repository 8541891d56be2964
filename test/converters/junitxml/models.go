package junitxml

import (
	"encoding/xml"

	"github.com/bitrise-io/go-utils/fileutil"
)

// TestReport is a JUnit report as emitted by foreign tools (gtest, pytest, ctest).
type TestReport struct {
	XMLName    xml.Name    `xml:"testsuites"`
	TestSuites []TestSuite `xml:"testsuite"`
}

// TestSuite ...
type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Errors    int        `xml:"errors,attr"`
	Time      float64    `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

// TestCase ...
type TestCase struct {
	XMLName     xml.Name  `xml:"testcase"`
	Name        string    `xml:"name,attr"`
	ClassName   string    `xml:"classname,attr"`
	Requirement string    `xml:"requirement,attr"`
	Time        float64   `xml:"time,attr"`
	Failures    []Failure `xml:"failure"`
	Skipped     *Skipped  `xml:"skipped"`
	Error       *Error    `xml:"error"`
	SystemOut   string    `xml:"system-out"`
	SystemErr   string    `xml:"system-err"`
}

// Failure ...
type Failure struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
	Value   string `xml:",chardata"`
}

// Skipped ...
type Skipped struct {
	Message string `xml:"message,attr"`
}

// Error ...
type Error struct {
	Message string `xml:"message,attr"`
	Value   string `xml:",chardata"`
}

type resultReader interface {
	ReadAll() ([]byte, error)
}

type fileReader struct {
	Filename string
}

func (r *fileReader) ReadAll() ([]byte, error) {
	return fileutil.ReadBytesFromFile(r.Filename)
}

type stringReader struct {
	Contents string
}

func (r *stringReader) ReadAll() ([]byte, error) {
	return []byte(r.Contents), nil
}
