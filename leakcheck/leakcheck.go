// Package leakcheck runs every case of a gtest binary under valgrind memcheck
// and reports the detected memory errors as JUnit failures.
package leakcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/fep-sdk/fep-harness/test/converters/valgrind"
	"github.com/fep-sdk/fep-harness/test/junit"
)

// Requirements are stamped on every reported test case.
const Requirements = "FEPSDK-1410 FEPSDK-1600"

// Options ...
type Options struct {
	GTest            string
	Valgrind         string
	SuppressionsFile string
	WorkingDir       string
	TestName         string
	Requirements     string
	// Timeout per test case, zero means none.
	Timeout time.Duration
	// TempDir holds the per case memcheck reports, the OS temp dir if empty.
	TempDir string
}

// DefaultTestName is the base name of the gtest binary without extension.
func DefaultTestName(gtest string) string {
	base := filepath.Base(gtest)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValgrindArgs returns the valgrind arguments running a single case with its report written to xmlPath.
func ValgrindArgs(opts Options, tc TestCase, xmlPath string) []string {
	args := []string{"--xml=yes", "--xml-file=" + xmlPath}
	if opts.SuppressionsFile != "" {
		args = append(args, "--suppressions="+opts.SuppressionsFile)
	}
	return append(args,
		"--leak-check=full",
		"--show-leak-kinds=all",
		opts.GTest,
		"--gtest_filter="+tc.Filter(),
	)
}

// Harness ...
type Harness struct {
	opts   Options
	runner process.Runner
	logger log.Logger
}

// New ...
func New(opts Options, runner process.Runner, logger log.Logger) Harness {
	if opts.Valgrind == "" {
		opts.Valgrind = "valgrind"
	}
	if opts.TestName == "" {
		opts.TestName = DefaultTestName(opts.GTest)
	}
	if opts.Requirements == "" {
		opts.Requirements = Requirements
	}

	return Harness{
		opts:   opts,
		runner: runner,
		logger: logger,
	}
}

// resolvePaths makes the working directory absolute and resolves a relative gtest binary against it.
func (h *Harness) resolvePaths() error {
	if err := process.AbsPaths(&h.opts.WorkingDir); err != nil {
		return err
	}
	if h.opts.WorkingDir != "" && !filepath.IsAbs(h.opts.GTest) {
		h.opts.GTest = filepath.Join(h.opts.WorkingDir, h.opts.GTest)
	}
	return process.AbsPaths(&h.opts.GTest)
}

// Run lists the cases of the gtest binary and runs each of them under memcheck.
// Problems with a single case are reported on that case, only a failing listing aborts the run.
func (h Harness) Run(ctx context.Context) (junit.XML, error) {
	if err := h.resolvePaths(); err != nil {
		return junit.XML{}, err
	}

	listResult, err := h.runner.Run(ctx, process.Spec{
		Name:       h.opts.GTest,
		Args:       []string{"--gtest_list_tests"},
		Dir:        h.opts.WorkingDir,
		InheritEnv: true,
	})
	if err != nil {
		return junit.XML{}, fmt.Errorf("failed to list tests: %w", err)
	}
	if listResult.ExitCode != 0 {
		return junit.XML{}, fmt.Errorf("failed to list tests: %s exited with %d: %s", h.opts.GTest, listResult.ExitCode, listResult.Stderr)
	}

	suites, err := ParseTestList(listResult.Stdout)
	if err != nil {
		return junit.XML{}, err
	}

	report := junit.XML{Name: h.opts.TestName}
	for _, suite := range suites {
		h.logger.Infof("%s (%d test cases)", suite.Name, len(suite.Cases))

		testSuite := junit.TestSuite{Name: suite.Name}
		for _, name := range suite.Cases {
			if err := ctx.Err(); err != nil {
				return junit.XML{}, err
			}

			tc := h.runCase(ctx, TestCase{Suite: suite.Name, Name: name})
			if tc.Failed() {
				h.logger.Warnf("- %s: %d memory errors", name, len(tc.Failures))
			} else {
				h.logger.Donef("- %s", name)
			}

			testSuite.TestCases = append(testSuite.TestCases, tc)
		}

		report.TestSuites = append(report.TestSuites, testSuite)
	}

	return report, nil
}

func (h Harness) runCase(ctx context.Context, tc TestCase) junit.TestCase {
	testCase := junit.TestCase{
		Name:        tc.Name,
		ClassName:   tc.Suite,
		Requirement: h.opts.Requirements,
	}

	xmlPath, err := reportPath(h.opts.TempDir)
	if err != nil {
		testCase.AddFailure("error", "failed to create memcheck report file", err.Error())
		return testCase
	}
	defer func() {
		if err := os.Remove(xmlPath); err != nil && !os.IsNotExist(err) {
			h.logger.Warnf("Failed to remove %s: %s", xmlPath, err)
		}
	}()

	result, err := h.runner.Run(ctx, process.Spec{
		Name:       h.opts.Valgrind,
		Args:       ValgrindArgs(h.opts, tc, xmlPath),
		Dir:        h.opts.WorkingDir,
		InheritEnv: true,
		Timeout:    h.opts.Timeout,
	})
	if err != nil {
		testCase.AddFailure("error", "failed to run "+h.opts.Valgrind, err.Error())
		return testCase
	}
	testCase.Time = result.Duration.Seconds()

	if result.TimedOut {
		testCase.AddFailure("error", "timeout", fmt.Sprintf("%s did not finish within %s", tc.Filter(), h.opts.Timeout))
		return testCase
	}
	if result.ExitCode != 0 {
		h.logger.Debugf("%s exited with %d", tc.Filter(), result.ExitCode)
	}

	output, err := valgrind.ParseFile(xmlPath)
	if err != nil {
		testCase.AddFailure("error", "invalid memcheck report", err.Error())
		return testCase
	}

	valgrind.Apply(&testCase, output)
	return testCase
}

func reportPath(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "tmp_valgrind_xml*.xml")
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
