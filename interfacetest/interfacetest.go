// Package interfacetest checks that the transport honours the network interface
// a participant is bound to, with one server/client run per interface pair.
package interfacetest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/fep-sdk/fep-harness/test/junit"
)

const (
	// Requirements are stamped on every reported test case.
	Requirements = "FEPSDK-1719"
	// InvalidInterfaceMarker is printed on stderr by a stimulus rejecting its interface.
	InvalidInterfaceMarker = "is not a valid network interface"
	// DefaultDomain ...
	DefaultDomain = 53
	// CaseNamePrefix keeps the reported case names stable across report history.
	CaseNamePrefix = "Python Test: "
)

// Config ...
type Config struct {
	Executable  string
	WorkingDir  string
	TesterClass string
	Domain      int
	// ServerDelay is the time the server gets to come up before the client starts.
	ServerDelay time.Duration
	// Timeout bounds each process, both stop on their own after --time seconds.
	Timeout   time.Duration
	Scenarios []Scenario
}

// DefaultConfig ...
func DefaultConfig(executable, workingDir, testerClass string) Config {
	return Config{
		Executable:  executable,
		WorkingDir:  workingDir,
		TesterClass: testerClass,
		Domain:      DefaultDomain,
		ServerDelay: time.Second,
		Timeout:     30 * time.Second,
		Scenarios:   DefaultScenarios(),
	}
}

// ServerArgs ...
func ServerArgs(domain int, iface string) []string {
	return []string{"--domain", strconv.Itoa(domain), "-S", "-Z", "--time", "10", "--interface", iface}
}

// ClientArgs ...
func ClientArgs(domain int, iface string) []string {
	return []string{"--domain", strconv.Itoa(domain), "-C", "-Z", "--time", "1", "--interface", iface}
}

// Outcome of one server/client run.
type Outcome struct {
	// SkipReason is set if a stimulus rejected its interface, the counts are meaningless then.
	SkipReason string
	Counts     Counts
}

// Tester ...
type Tester struct {
	cfg    Config
	runner process.Runner
	logger log.Logger
}

// New ...
func New(cfg Config, runner process.Runner, logger log.Logger) Tester {
	return Tester{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// Run runs every scenario and reports one test case per scenario.
func (t Tester) Run(ctx context.Context) (junit.XML, error) {
	if err := process.AbsPaths(&t.cfg.Executable, &t.cfg.WorkingDir); err != nil {
		return junit.XML{}, err
	}

	suite := junit.TestSuite{Name: t.cfg.TesterClass}

	for _, scenario := range t.cfg.Scenarios {
		if err := ctx.Err(); err != nil {
			return junit.XML{}, err
		}

		t.logger.Println()
		t.logger.Infof("Running %s (server: %s, client: %s)", scenario.Name, scenario.ServerInterface, scenario.ClientInterface)

		tc := t.runScenario(ctx, scenario)
		switch {
		case tc.Failed():
			t.logger.Errorf("%s failed", scenario.Name)
		case tc.Skipped != nil:
			t.logger.Warnf("%s skipped: %s", scenario.Name, tc.Skipped.Message)
		default:
			t.logger.Donef("%s passed", scenario.Name)
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	return junit.XML{Name: t.testName(), TestSuites: []junit.TestSuite{suite}}, nil
}

func (t Tester) testName() string {
	base := filepath.Base(t.cfg.Executable)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (t Tester) runScenario(ctx context.Context, scenario Scenario) junit.TestCase {
	tc := junit.TestCase{
		Name:        CaseNamePrefix + scenario.Name,
		ClassName:   t.cfg.TesterClass,
		Requirement: Requirements,
	}

	started := time.Now()
	outcome, err := t.exchange(ctx, scenario)
	tc.Time = time.Since(started).Seconds()
	if err != nil {
		tc.AddFailure("error", err.Error(), err.Error())
		return tc
	}

	if outcome.SkipReason != "" {
		tc.Skip(outcome.SkipReason)
		return tc
	}

	tc.AppendOutput(fmt.Sprintf("%s: sent_packets=%d received_packets=%d", scenario.Name, outcome.Counts.Sent, outcome.Counts.Received))
	if violation := scenario.Violation(outcome.Counts); violation != "" {
		tc.AddFailure("failure", violation, violation)
	}
	return tc
}

// exchange runs the server and the client on the scenario's interfaces.
// Stray processes of the executable are killed before and after.
func (t Tester) exchange(ctx context.Context, scenario Scenario) (Outcome, error) {
	processName := filepath.Base(t.cfg.Executable)
	t.runner.KillByName(ctx, processName, "")
	defer t.runner.KillByName(context.WithoutCancel(ctx), processName, "")

	server, err := t.runner.Start(ctx, process.Spec{
		Name:       t.cfg.Executable,
		Args:       ServerArgs(t.cfg.Domain, scenario.ServerInterface),
		Dir:        t.cfg.WorkingDir,
		InheritEnv: true,
		Timeout:    t.cfg.Timeout,
	})
	if err != nil {
		return Outcome{}, err
	}

	if err := process.Sleep(ctx, t.cfg.ServerDelay); err != nil {
		_ = server.Terminate()
		_, _ = server.Wait()
		return Outcome{}, err
	}

	clientResult, clientErr := t.runner.Run(ctx, process.Spec{
		Name:       t.cfg.Executable,
		Args:       ClientArgs(t.cfg.Domain, scenario.ClientInterface),
		Dir:        t.cfg.WorkingDir,
		InheritEnv: true,
		Timeout:    t.cfg.Timeout,
	})
	if clientErr != nil {
		_ = server.Terminate()
	}

	serverResult, serverErr := server.Wait()
	if clientErr != nil {
		return Outcome{}, clientErr
	}
	if serverErr != nil {
		return Outcome{}, serverErr
	}

	if reason := rejectedInterface(clientResult); reason != "" {
		return Outcome{SkipReason: reason}, nil
	}
	if reason := rejectedInterface(serverResult); reason != "" {
		return Outcome{SkipReason: reason}, nil
	}

	if !clientResult.Success() {
		return Outcome{}, fmt.Errorf("client failed: exit code %d (timed out: %v): %s", clientResult.ExitCode, clientResult.TimedOut, strings.TrimSpace(clientResult.Stderr))
	}
	if !serverResult.Success() {
		return Outcome{}, fmt.Errorf("server failed: exit code %d (timed out: %v): %s", serverResult.ExitCode, serverResult.TimedOut, strings.TrimSpace(serverResult.Stderr))
	}

	counts, err := ParseCounts(clientResult.Stdout)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Counts: counts}, nil
}

// rejectedInterface returns the stimulus' complaint if it refused its interface.
func rejectedInterface(result process.Result) string {
	if result.ExitCode == 0 || !strings.Contains(result.Stderr, InvalidInterfaceMarker) {
		return ""
	}
	for _, line := range strings.Split(result.Stderr, "\n") {
		if strings.Contains(line, InvalidInterfaceMarker) {
			return strings.TrimSpace(line)
		}
	}
	return InvalidInterfaceMarker
}
