// Package measure drives the perf_measure stimuli through the signal permutations of a scenario
// and collects their timeline results.
package measure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/fep-sdk/fep-harness/results"
)

// ServerResultsFile is where a server writes its own statistics, relative to its working directory.
const ServerResultsFile = "servmeasure.csv"

// Config ...
type Config struct {
	Profile     Profile
	ResultDir   string
	WorkingDir  string
	Permutation Permutation
	// Timeout bounds a client run, zero waits forever.
	Timeout time.Duration
	// KillDelay is waited after the stray stimuli were killed.
	KillDelay time.Duration
	// ServerDelay is the time the server gets to come up before the client starts.
	ServerDelay time.Duration
	// ClientTime is the measuring time of the client in seconds.
	ClientTime int
	Now        func() time.Time
}

// DefaultConfig ...
func DefaultConfig(profile Profile) Config {
	return Config{
		Profile:     profile,
		ResultDir:   ".",
		Permutation: Parallel,
		KillDelay:   time.Second,
		ServerDelay: time.Second,
		ClientTime:  10,
		Now:         time.Now,
	}
}

// Measurement is the outcome of one case.
type Measurement struct {
	Name string
	// ResultsPath is the timeline CSV the client writes.
	ResultsPath string
	ExitCode    int
	TimedOut    bool
	Signals     []results.SignalAttributes
}

// Success ...
func (m Measurement) Success() bool {
	return m.ExitCode == 0 && !m.TimedOut
}

// Driver ...
type Driver struct {
	cfg    Config
	runner process.Runner
	logger log.Logger
}

// New ...
func New(cfg Config, runner process.Runner, logger log.Logger) Driver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Permutation == "" {
		cfg.Permutation = Parallel
	}
	if cfg.Profile.Domain == 0 {
		cfg.Profile.Domain = DefaultDomain
	}

	return Driver{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// ResultDirName is <resultDir>/results_<scenario>_<profile>-<YYYYMMDDhhmm>.
func ResultDirName(resultDir, scenario, profile string, t time.Time) string {
	return filepath.Join(resultDir, "results_"+scenario+"_"+profile+"-"+t.Format("200601021504"))
}

func optionArgs(options ...string) []string {
	var args []string
	for _, o := range options {
		args = append(args, "--"+o)
	}
	return args
}

// CommonArgs are passed to client and server.
func CommonArgs(domain int) []string {
	return append(optionArgs("quiet", "statistics"), "--domain", strconv.Itoa(domain))
}

// ClientArgs ...
func (d Driver) ClientArgs(c Case, resultsFile string) []string {
	args := CommonArgs(d.cfg.Profile.Domain)
	args = append(args, "--client", "--time", strconv.Itoa(d.cfg.ClientTime))
	args = append(args, c.ClientArgs...)
	return append(args, "--results", resultsFile)
}

// ServerArgs ...
func (d Driver) ServerArgs(c Case) []string {
	args := CommonArgs(d.cfg.Profile.Domain)
	args = append(args, "--results", ServerResultsFile, "--server")
	return append(args, c.ServerArgs...)
}

// Run measures every case of the scenario into a fresh result directory.
func (d Driver) Run(ctx context.Context, scenario Scenario) (string, []Measurement, error) {
	if err := scenario.Validate(); err != nil {
		return "", nil, err
	}

	dir, err := pathutil.AbsPath(ResultDirName(d.cfg.ResultDir, scenario.Name, d.cfg.Profile.Name, d.cfg.Now()))
	if err != nil {
		return "", nil, err
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create result directory: %w", err)
	}

	var measurements []Measurement
	for _, c := range Cases(scenario, d.cfg.Profile.Name, d.cfg.Permutation) {
		if err := ctx.Err(); err != nil {
			return dir, measurements, err
		}

		m, err := d.measure(ctx, dir, c)
		if err != nil {
			return dir, measurements, fmt.Errorf("%s: %w", c.Name, err)
		}
		if !m.Success() {
			d.logger.Warnf("Client of %s exited with %d (timed out: %v)", c.Name, m.ExitCode, m.TimedOut)
		}
		measurements = append(measurements, m)
	}

	return dir, measurements, nil
}

func (d Driver) killStimuli(ctx context.Context) {
	profile := d.cfg.Profile
	d.runner.KillByName(ctx, stimulusName(profile.ClientStimulus), profile.ClientHost)
	d.runner.KillByName(ctx, stimulusName(profile.ServerStimulus), profile.ServerHost)
}

func stimulusName(stimulus string) string {
	return filepath.Base(filepath.FromSlash(stimulus))
}

func (d Driver) measure(ctx context.Context, dir string, c Case) (Measurement, error) {
	profile := d.cfg.Profile
	resultsFile := filepath.ToSlash(filepath.Join(dir, c.Name))
	m := Measurement{
		Name:        c.Name,
		ResultsPath: resultsFile + ".csv",
		Signals:     c.Signals,
	}

	if err := results.WriteMeta(results.MetaPath(m.ResultsPath), c.Signals); err != nil {
		return Measurement{}, fmt.Errorf("failed to write signal attributes: %w", err)
	}

	d.logger.Println()
	d.logger.Printf("* Killing running programs")
	d.killStimuli(ctx)
	if err := process.Sleep(ctx, d.cfg.KillDelay); err != nil {
		return Measurement{}, err
	}

	serverSpec := process.RemoteSpec(profile.ServerHost, process.Spec{
		Name:       profile.ServerStimulus,
		Args:       d.ServerArgs(c),
		Dir:        d.cfg.WorkingDir,
		InheritEnv: true,
	})
	server, err := d.runner.Start(ctx, serverSpec)
	if err != nil {
		return Measurement{}, err
	}
	d.logger.Infof("* Started Server: %s %s", serverSpec.Name, strings.Join(serverSpec.Args, " "))
	defer func() {
		_ = server.Terminate()
		if _, err := server.Wait(); err != nil {
			d.logger.Debugf("Server of %s: %s", c.Name, err)
		}
	}()

	if err := process.Sleep(ctx, d.cfg.ServerDelay); err != nil {
		return Measurement{}, err
	}

	clientSpec := process.RemoteSpec(profile.ClientHost, process.Spec{
		Name:       profile.ClientStimulus,
		Args:       d.ClientArgs(c, resultsFile),
		Dir:        d.cfg.WorkingDir,
		InheritEnv: true,
		Timeout:    d.cfg.Timeout,
	})
	d.logger.Infof("* Starting Client: %s %s", clientSpec.Name, strings.Join(clientSpec.Args, " "))
	result, err := d.runner.Run(ctx, clientSpec)
	if err != nil {
		return Measurement{}, err
	}
	d.logger.Debugf("%s", result.Stdout)
	d.logger.Debugf("%s", result.Stderr)

	m.ExitCode = result.ExitCode
	m.TimedOut = result.TimedOut
	d.logger.Donef("* Written file: %q", m.ResultsPath)

	return m, nil
}
