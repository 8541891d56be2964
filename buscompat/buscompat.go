// Package buscompat checks that stimulus builds of different middleware versions
// can talk to each other, for every client/server combination.
package buscompat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/fep-sdk/fep-harness/test/junit"
)

const (
	// Requirements are stamped on every reported test case.
	Requirements = "FEPSDK-1404"
	// DefaultDomain is used if FEP_MODULE_DOMAIN is not set.
	DefaultDomain = 67
	// DefaultDriver ...
	DefaultDriver = "RTI_DDS"
)

var (
	successNoteRe = regexp.MustCompile(`^\* SUCCESS: (.*)$`)
	failureNoteRe = regexp.MustCompile(`^\* FAILURE: (.*)$`)
)

// Notes are the verdicts a client writes to its --output file.
type Notes struct {
	Successes []string
	Failures  []string
}

// ParseNotes ...
func ParseNotes(r io.Reader) (Notes, error) {
	var notes Notes

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.Trim(scanner.Text(), " \t\r\n")
		if match := successNoteRe.FindStringSubmatch(line); match != nil {
			notes.Successes = append(notes.Successes, match[1])
		} else if match := failureNoteRe.FindStringSubmatch(line); match != nil {
			notes.Failures = append(notes.Failures, match[1])
		}
	}

	return notes, scanner.Err()
}

// Config ...
type Config struct {
	Executable  string
	WorkingDir  string
	Platform    string
	BinaryDir   string
	TesterClass string
	Domain      int
	Driver      string
	GOOS        string
	// ServerDelay is the time the server gets for its setup before the client starts.
	ServerDelay time.Duration
	// Timeout bounds the client run.
	Timeout time.Duration
}

// Tester ...
type Tester struct {
	cfg    Config
	runner process.Runner
	logger log.Logger
}

// New ...
func New(cfg Config, runner process.Runner, logger log.Logger) Tester {
	if cfg.Domain == 0 {
		cfg.Domain = DefaultDomain
	}
	if cfg.Driver == "" {
		cfg.Driver = DefaultDriver
	}

	return Tester{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// ServerArgs ...
func ServerArgs(domain int) []string {
	return []string{"--domain", strconv.Itoa(domain), "server"}
}

// ClientArgs ...
func ClientArgs(domain int, outputFile string) []string {
	return []string{"--domain", strconv.Itoa(domain), "--output", outputFile, "client"}
}

// Run discovers the available builds and runs every client/server combination.
func (t Tester) Run(ctx context.Context) (junit.XML, error) {
	if err := process.AbsPaths(&t.cfg.Executable, &t.cfg.WorkingDir); err != nil {
		return junit.XML{}, err
	}

	builds, err := Discover(t.cfg.WorkingDir, t.cfg.Platform, ExecutableName(t.cfg.GOOS), t.cfg.Executable, t.logger)
	if err != nil {
		return junit.XML{}, fmt.Errorf("failed to discover stimulus builds: %w", err)
	}

	return t.RunPairs(ctx, Pairs(builds))
}

// RunPairs reports one test case per pair.
func (t Tester) RunPairs(ctx context.Context, pairs []Pair) (junit.XML, error) {
	if err := process.AbsPaths(&t.cfg.BinaryDir); err != nil {
		return junit.XML{}, err
	}

	suite := junit.TestSuite{Name: t.cfg.TesterClass}

	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return junit.XML{}, err
		}

		name := fmt.Sprintf("test%d", i)
		t.logger.Println()
		t.logger.Infof("Running %s (%s)", name, pair)

		tc := t.runPair(ctx, name, pair)
		if tc.Failed() {
			t.logger.Errorf("%s (%s) failed", name, pair)
		} else {
			t.logger.Donef("%s (%s) passed", name, pair)
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	base := filepath.Base(t.cfg.Executable)
	return junit.XML{Name: strings.TrimSuffix(base, filepath.Ext(base)), TestSuites: []junit.TestSuite{suite}}, nil
}

// OutputFile is where the client of a test case writes its notes.
func (t Tester) OutputFile(name string) string {
	return filepath.ToSlash(filepath.Join(t.cfg.BinaryDir, "test_log_"+name+".out"))
}

func (t Tester) runPair(ctx context.Context, name string, pair Pair) junit.TestCase {
	tc := junit.TestCase{
		Name:        fmt.Sprintf("%s(%s)", name, pair),
		ClassName:   t.cfg.TesterClass,
		Requirement: Requirements,
	}

	started := time.Now()
	exitCode, err := t.exchange(ctx, name, pair)
	tc.Time = time.Since(started).Seconds()
	if err != nil {
		tc.AddFailure("error", err.Error(), err.Error())
		return tc
	}

	outputFile := t.OutputFile(name)
	f, err := os.Open(outputFile)
	if err != nil {
		tc.AddFailure("error", "missing client output", err.Error())
	} else {
		notes, err := ParseNotes(f)
		if err := f.Close(); err != nil {
			t.logger.Warnf("Failed to close %s: %s", outputFile, err)
		}
		if err != nil {
			tc.AddFailure("error", "unreadable client output", err.Error())
		}

		for _, success := range notes.Successes {
			tc.AppendOutput("SUCCESS: " + success)
		}
		for _, failure := range notes.Failures {
			tc.AddFailure("error", failure, failure)
		}
	}

	tc.ExitCodeFailure(exitCode)
	return tc
}

// spec runs a build from its own directory in a fresh environment.
func (t Tester) spec(build Build, args []string) (process.Spec, error) {
	name := build.Path
	if err := process.AbsPaths(&name); err != nil {
		return process.Spec{}, err
	}

	dir := filepath.Dir(name)
	return process.Spec{
		Name: name,
		Args: args,
		Dir:  dir,
		Env: []string{
			"LD_LIBRARY_PATH=" + dir,
			"FEP_TRANSMISSION_DRIVER=" + t.cfg.Driver,
		},
	}, nil
}

// exchange runs the server build, waits for its setup and then runs the client build against it.
// It returns the exit code of the client.
func (t Tester) exchange(ctx context.Context, name string, pair Pair) (int, error) {
	processName := ExecutableName(t.cfg.GOOS)
	t.runner.KillByName(ctx, processName, "")

	serverSpec, err := t.spec(pair.Server, ServerArgs(t.cfg.Domain))
	if err != nil {
		return -1, err
	}
	clientSpec, err := t.spec(pair.Client, ClientArgs(t.cfg.Domain, t.OutputFile(name)))
	if err != nil {
		return -1, err
	}
	clientSpec.Timeout = t.cfg.Timeout

	server, err := t.runner.Start(ctx, serverSpec)
	if err != nil {
		return -1, err
	}
	defer func() {
		t.runner.KillByName(context.WithoutCancel(ctx), processName, "")
		_ = server.Terminate()
		if result, err := server.Wait(); err != nil {
			t.logger.Warnf("Server of %s: %s", name, err)
		} else {
			t.logger.Debugf("Server of %s exited with %d", name, result.ExitCode)
		}
	}()

	if err := process.Sleep(ctx, t.cfg.ServerDelay); err != nil {
		return -1, err
	}

	result, err := t.runner.Run(ctx, clientSpec)
	if err != nil {
		return -1, err
	}
	if result.TimedOut {
		t.logger.Warnf("Client of %s timed out after %s", name, t.cfg.Timeout)
	}

	return result.ExitCode, nil
}
