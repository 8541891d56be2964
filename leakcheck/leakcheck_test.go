package leakcheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/mocks"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const leakReport = `<?xml version="1.0"?>
<valgrindoutput>
<tool>memcheck</tool>
<error>
  <kind>Leak_DefinitelyLost</kind>
  <xwhat><text>16 bytes in 1 blocks are definitely lost</text></xwhat>
  <stack><frame><ip>0x1</ip><fn>fep::Signal::Signal()</fn><file>signal.cpp</file><line>12</line></frame></stack>
</error>
<error>
  <kind>Leak_PossiblyLost</kind>
  <xwhat><text>8 bytes in 1 blocks are possibly lost</text></xwhat>
  <stack><frame><ip>0x2</ip><fn>malloc</fn></frame></stack>
</error>
</valgrindoutput>`

const cleanReport = `<?xml version="1.0"?><valgrindoutput><tool>memcheck</tool></valgrindoutput>`

func TestValgrindArgs(t *testing.T) {
	tc := TestCase{Suite: "SignalRegistry", Name: "RegisterSignal"}

	got := ValgrindArgs(Options{GTest: "./tester_signal_registry"}, tc, "/tmp/report.xml")
	require.Equal(t, []string{
		"--xml=yes", "--xml-file=/tmp/report.xml",
		"--leak-check=full", "--show-leak-kinds=all",
		"./tester_signal_registry", "--gtest_filter=SignalRegistry.RegisterSignal",
	}, got)

	got = ValgrindArgs(Options{GTest: "./tester_signal_registry", SuppressionsFile: "fep.supp"}, tc, "/tmp/report.xml")
	require.Equal(t, "--suppressions=fep.supp", got[2])
	require.Len(t, got, 7)
}

func TestDefaultTestName(t *testing.T) {
	require.Equal(t, "tester_signal_registry", DefaultTestName("/build/bin/tester_signal_registry.exe"))
	require.Equal(t, "tester_signal_registry", DefaultTestName("tester_signal_registry"))
}

func isListing(spec process.Spec) bool {
	return len(spec.Args) == 1 && spec.Args[0] == "--gtest_list_tests"
}

func valgrindFor(filter string) interface{} {
	return mock.MatchedBy(func(spec process.Spec) bool {
		return spec.Name == "valgrind" && spec.Args[len(spec.Args)-1] == "--gtest_filter="+filter
	})
}

// writeReport emulates valgrind writing its xml report to the --xml-file argument.
func writeReport(t *testing.T, content string, xmlPaths *[]string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		spec := args.Get(1).(process.Spec)
		for _, arg := range spec.Args {
			if pth, ok := strings.CutPrefix(arg, "--xml-file="); ok {
				*xmlPaths = append(*xmlPaths, pth)
				if content != "" {
					require.NoError(t, os.WriteFile(pth, []byte(content), 0644))
				}
			}
		}
	}
}

func TestHarness_Run(t *testing.T) {
	var xmlPaths []string

	runner := new(mocks.Runner)
	runner.On("Run", mock.Anything, mock.MatchedBy(isListing)).
		Return(process.Result{Stdout: "SignalRegistry.\n  RegisterSignal\n  Clean\n  Broken\n"}, nil)
	runner.On("Run", mock.Anything, valgrindFor("SignalRegistry.RegisterSignal")).
		Run(writeReport(t, leakReport, &xmlPaths)).
		Return(process.Result{ExitCode: 0, Duration: 2 * time.Second}, nil)
	runner.On("Run", mock.Anything, valgrindFor("SignalRegistry.Clean")).
		Run(writeReport(t, cleanReport, &xmlPaths)).
		Return(process.Result{}, nil)
	runner.On("Run", mock.Anything, valgrindFor("SignalRegistry.Broken")).
		Run(writeReport(t, "<valgrindoutput><error>", &xmlPaths)).
		Return(process.Result{ExitCode: 1}, nil)

	harness := New(Options{GTest: "./tester_signal_registry", TempDir: t.TempDir()}, runner, log.NewLogger())
	report, err := harness.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "tester_signal_registry", report.Name)
	require.Len(t, report.TestSuites, 1)

	cases := report.TestSuites[0].TestCases
	require.Len(t, cases, 3)

	leaking := cases[0]
	require.Equal(t, "RegisterSignal", leaking.Name)
	require.Equal(t, "SignalRegistry", leaking.ClassName)
	require.Equal(t, Requirements, leaking.Requirement)
	require.Equal(t, 2.0, leaking.Time)
	require.Len(t, leaking.Failures, 2)
	require.Equal(t, "Leak_DefinitelyLost", leaking.Failures[0].Type)
	require.Equal(t, "Leak_PossiblyLost #2", leaking.Failures[1].Message)
	require.Contains(t, leaking.SystemOut.Value, "Leak Detected: 16 bytes in 1 blocks are definitely lost #1")
	require.Contains(t, leaking.SystemOut.Value, "0x1: fep::Signal::Signal() (signal.cpp:12)")

	require.False(t, cases[1].Failed())

	require.Len(t, cases[2].Failures, 1)
	require.Equal(t, "error", cases[2].Failures[0].Type)

	require.Len(t, xmlPaths, 3)
	for _, pth := range xmlPaths {
		_, err := os.Stat(pth)
		require.True(t, os.IsNotExist(err), "memcheck report %s should be removed", pth)
	}

	runner.AssertExpectations(t)
}

func TestHarness_Run_MissingReport(t *testing.T) {
	runner := new(mocks.Runner)
	runner.On("Run", mock.Anything, mock.MatchedBy(isListing)).
		Return(process.Result{Stdout: "Timing.\n  Tick\n"}, nil)
	runner.On("Run", mock.Anything, valgrindFor("Timing.Tick")).
		Return(process.Result{}, errors.New("exec: \"valgrind\": executable file not found in $PATH"))

	report, err := New(Options{GTest: "tester_timing", TempDir: t.TempDir()}, runner, log.NewLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.FailureCount())
	require.Equal(t, "error", report.TestSuites[0].TestCases[0].Failures[0].Type)
}

func TestHarness_Run_ListingFails(t *testing.T) {
	runner := new(mocks.Runner)
	runner.On("Run", mock.Anything, mock.MatchedBy(isListing)).
		Return(process.Result{ExitCode: 127, Stderr: "not found"}, nil)

	_, err := New(Options{GTest: "tester_timing"}, runner, log.NewLogger()).Run(context.Background())
	require.Error(t, err)
}

func TestHarness_Run_GTestRelativeToWorkingDir(t *testing.T) {
	workingDir := t.TempDir()
	gtest := filepath.Join(workingDir, "tester_timing")

	runner := new(mocks.Runner)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(spec process.Spec) bool {
		return isListing(spec) && spec.Name == gtest && spec.Dir == workingDir
	})).Return(process.Result{Stdout: "Timing.\n  Tick\n"}, nil)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(spec process.Spec) bool {
		return spec.Name == "valgrind" && spec.Dir == workingDir && spec.Args[len(spec.Args)-2] == gtest
	})).Run(writeReport(t, cleanReport, new([]string))).Return(process.Result{}, nil)

	opts := Options{GTest: "./tester_timing", WorkingDir: workingDir, TempDir: t.TempDir()}
	report, err := New(opts, runner, log.NewLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tester_timing", report.Name)
	require.Equal(t, 0, report.FailureCount())
	runner.AssertExpectations(t)
}
