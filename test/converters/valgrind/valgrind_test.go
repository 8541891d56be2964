package valgrind

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fep-sdk/fep-harness/test/junit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memcheckReport(kinds ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><valgrindoutput><tool>memcheck</tool>`)
	for i, kind := range kinds {
		fmt.Fprintf(&b, `<error><unique>0x%x</unique><kind>%s</kind><what>problem %d</what></error>`, i, kind, i)
	}
	b.WriteString(`</valgrindoutput>`)
	return b.String()
}

func TestFailures_OnePerError(t *testing.T) {
	tests := []struct {
		name  string
		kinds []string
	}{
		{name: "no errors"},
		{name: "one error", kinds: []string{"Leak_DefinitelyLost"}},
		{name: "mixed errors", kinds: []string{"InvalidRead", "Leak_PossiblyLost", "Leak_DefinitelyLost", "UninitCondition"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := Parse([]byte(memcheckReport(tt.kinds...)))
			require.NoError(t, err)

			failures := Failures(output)
			require.Len(t, failures, len(tt.kinds))
			for i, kind := range tt.kinds {
				assert.Equal(t, kind, failures[i].Type)
				assert.Equal(t, fmt.Sprintf("%s #%d", kind, i+1), failures[i].Message)
				assert.Equal(t, fmt.Sprintf("problem %d #%d", i, i+1), failures[i].Value)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	output, err := ParseFile("./testdata/two_leaks.memcheck.xml")
	require.NoError(t, err)

	require.Equal(t, "memcheck", output.Tool)
	require.Len(t, output.Errors, 2)
	require.Equal(t, "Invalid read of size 4", output.Errors[0].Description())
	require.Equal(t, "40 bytes in 1 blocks are definitely lost in loss record 1 of 1", output.Errors[1].Description())
	require.Equal(t, int64(40), output.Errors[1].XWhat.LeakedBytes)
	require.Len(t, output.Errors[0].Stack, 2)
}

func TestParse_Corrupt(t *testing.T) {
	_, err := Parse([]byte(`<valgrindoutput><error><kind>Leak`))
	require.Error(t, err)

	_, err = ParseFile("./testdata/missing.xml")
	require.Error(t, err)
}

func TestSystemOut(t *testing.T) {
	output, err := ParseFile("./testdata/two_leaks.memcheck.xml")
	require.NoError(t, err)

	want := "  Leak Detected: Invalid read of size 4 #1\n\n" +
		"  0x10916D: SignalBuffer::read() (signal_buffer.cpp:57)\n" +
		"  0x4E5A0B2: /usr/lib/libgtest.so\n" +
		"\n" +
		"  Leak Detected: 40 bytes in 1 blocks are definitely lost in loss record 1 of 1 #2\n\n" +
		"  0x483B7F3: operator new[](unsigned long)\n" +
		"\n"
	require.Equal(t, want, SystemOut(output))
}

func TestApply_NoErrors(t *testing.T) {
	output, err := ParseFile("./testdata/clean.memcheck.xml")
	require.NoError(t, err)

	var tc junit.TestCase
	Apply(&tc, output)

	require.False(t, tc.Failed())
	require.Nil(t, tc.SystemOut)
}

func TestConverter(t *testing.T) {
	c := &Converter{}
	require.True(t, c.Detect([]string{
		"./testdata/two_leaks.memcheck.xml",
		"./testdata/clean.memcheck.xml",
		"../junitxml/testdata/testsuites.xml",
	}))
	require.Len(t, c.files, 2)

	report, err := c.XML()
	require.NoError(t, err)
	require.Len(t, report.TestSuites, 2)
	require.Equal(t, "two_leaks", report.TestSuites[0].Name)
	require.Len(t, report.TestSuites[0].TestCases[0].Failures, 2)
	require.Equal(t, "clean", report.TestSuites[1].Name)
	require.False(t, report.TestSuites[1].TestCases[0].Failed())
}
