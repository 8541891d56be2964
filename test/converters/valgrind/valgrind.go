// Package valgrind converts memcheck XML reports (valgrind --xml=yes) into JUnit failures.
package valgrind

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/fileutil"
	"github.com/fep-sdk/fep-harness/test/junit"
	"github.com/fep-sdk/fep-harness/test/testasset"
	"github.com/pkg/errors"
)

// RootElement is the document element of every memcheck XML report.
const RootElement = "valgrindoutput"

// Output ...
type Output struct {
	XMLName xml.Name `xml:"valgrindoutput"`
	Tool    string   `xml:"tool"`
	Errors  []Error  `xml:"error"`
}

// Error ...
type Error struct {
	Unique string  `xml:"unique"`
	Kind   string  `xml:"kind"`
	What   string  `xml:"what"`
	XWhat  *XWhat  `xml:"xwhat"`
	Stack  []Frame `xml:"stack>frame"`
}

// XWhat is the structured description memcheck emits for leak kinds.
type XWhat struct {
	Text        string `xml:"text"`
	LeakedBytes int64  `xml:"leakedbytes"`
	LeakedBlock int64  `xml:"leakedblocks"`
}

// Frame ...
type Frame struct {
	IP   string `xml:"ip"`
	Obj  string `xml:"obj"`
	Fn   string `xml:"fn"`
	Dir  string `xml:"dir"`
	File string `xml:"file"`
	Line string `xml:"line"`
}

// Description returns <what>, or <xwhat><text> if the former is missing.
func (e Error) Description() string {
	if what := strings.TrimSpace(e.What); what != "" {
		return what
	}
	if e.XWhat != nil {
		return strings.TrimSpace(e.XWhat.Text)
	}
	return ""
}

func (f Frame) String() string {
	fn := f.Fn
	if fn == "" {
		fn = f.Obj
	}
	if f.File == "" {
		return fmt.Sprintf("%s: %s", f.IP, fn)
	}
	return fmt.Sprintf("%s: %s (%s:%s)", f.IP, fn, f.File, f.Line)
}

// Parse decodes a memcheck XML report.
func Parse(data []byte) (Output, error) {
	var output Output
	if err := testasset.UnmarshalXML(data, &output); err != nil {
		return Output{}, errors.Wrap(err, "failed to parse memcheck report")
	}
	return output, nil
}

// ParseFile ...
func ParseFile(pth string) (Output, error) {
	data, err := fileutil.ReadBytesFromFile(pth)
	if err != nil {
		return Output{}, errors.Wrapf(err, "failed to read memcheck report (%s)", pth)
	}
	return Parse(data)
}

// Failures returns one failure per reported error, numbered from #1.
func Failures(output Output) []junit.Failure {
	var failures []junit.Failure
	for i, e := range output.Errors {
		n := i + 1
		failures = append(failures, junit.Failure{
			Type:    e.Kind,
			Message: fmt.Sprintf("%s #%d", e.Kind, n),
			Value:   fmt.Sprintf("%s #%d", e.Description(), n),
		})
	}
	return failures
}

// SystemOut renders every error with its call stack.
func SystemOut(output Output) string {
	var b strings.Builder
	for i, e := range output.Errors {
		fmt.Fprintf(&b, "  Leak Detected: %s #%d\n\n", e.Description(), i+1)
		for _, frame := range e.Stack {
			fmt.Fprintf(&b, "  %s\n", frame)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Apply records the errors of output on the test case.
func Apply(tc *junit.TestCase, output Output) {
	tc.Failures = append(tc.Failures, Failures(output)...)
	if out := SystemOut(output); out != "" {
		tc.AppendOutput(out)
	}
}

// Converter turns standalone memcheck reports into one suite per file.
type Converter struct {
	files []string
}

// Detect returns true if any of the files is a memcheck XML report.
func (c *Converter) Detect(files []string) bool {
	c.files = nil
	for _, file := range files {
		if testasset.XMLRootElement(file) == RootElement {
			c.files = append(c.files, file)
		}
	}
	return len(c.files) > 0
}

// XML ...
func (c *Converter) XML() (junit.XML, error) {
	var report junit.XML
	for _, file := range c.files {
		output, err := ParseFile(file)
		if err != nil {
			return junit.XML{}, err
		}

		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		name = strings.TrimSuffix(name, ".memcheck")

		tc := junit.TestCase{Name: name, ClassName: "memcheck"}
		Apply(&tc, output)

		report.TestSuites = append(report.TestSuites, junit.TestSuite{
			Name:      name,
			TestCases: []junit.TestCase{tc},
		})
	}
	return report, nil
}
