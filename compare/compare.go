// Package compare measures round trip times of several middleware stacks side by side,
// over sample sizes or over the number of receivers.
package compare

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/fep-sdk/fep-harness/results"
	"golang.org/x/sync/errgroup"
)

const (
	// XLabelReceivers ...
	XLabelReceivers = "Number of Receivers [#]"
	// XLabelSampleSize ...
	XLabelSampleSize = "Sample Size [#]"
	// YLabel ...
	YLabel = "RTT [us]"
	// DefaultMaxAttempts bounds the restarts of a failing measurement point.
	DefaultMaxAttempts = 16
)

// ErrNoSummary is returned if a client exited cleanly without printing statistics.
var ErrNoSummary = errors.New("client printed no statistics")

// Config ...
type Config struct {
	GOOS string
	// BinaryDir holds the stimuli, empty means they are looked up in PATH.
	BinaryDir string
	// ServerDelay is the time the receivers get to come up before the client starts.
	ServerDelay time.Duration
	// Timeout bounds a client run, zero waits forever.
	Timeout time.Duration
	// MaxAttempts bounds how often one measurement point is started before the plan fails.
	MaxAttempts uint
	RetryWait   time.Duration
	// Repeats is the number of times every line is measured, each repeat becomes a line of its own.
	Repeats int
}

// DefaultConfig ...
func DefaultConfig(goos string) Config {
	return Config{
		GOOS:        goos,
		ServerDelay: 3 * time.Second,
		MaxAttempts: DefaultMaxAttempts,
		Repeats:     1,
	}
}

// Driver runs comparison plans.
type Driver struct {
	cfg    Config
	runner process.Runner
	logger log.Logger
}

// New ...
func New(cfg Config, runner process.Runner, logger log.Logger) Driver {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Repeats <= 0 {
		cfg.Repeats = 1
	}

	return Driver{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// Title ...
func Title(plan Plan) string {
	return fmt.Sprintf("%s @ %d Hz", plan.Name, plan.Frequencies[0])
}

// ReceiversLegend labels a line measured over sample sizes.
func ReceiversLegend(system System, config TransportConfig, receivers int) string {
	return fmt.Sprintf("%s(%s) [#%d Receivers]", system.Name, config.Name, receivers)
}

// SampleSizeLegend labels a line measured over the number of receivers.
func SampleSizeLegend(system System, config TransportConfig, sampleSize int) string {
	return fmt.Sprintf("%s(%s) [Sample Size: %d]", system.Name, config.Name, sampleSize)
}

// ServerArgs ...
func ServerArgs(sampleSize int, config TransportConfig, index int) []string {
	args := []string{strconv.Itoa(sampleSize)}
	args = append(args, config.Args()...)
	return append(args, strconv.Itoa(index))
}

// ClientArgs ...
func ClientArgs(sampleSize int, config TransportConfig, receivers, frequency int) []string {
	args := []string{strconv.Itoa(sampleSize)}
	args = append(args, config.Args()...)
	return append(args, strconv.Itoa(receivers), strconv.Itoa(frequency))
}

// point is one measurement of a line.
type point struct {
	system     System
	config     TransportConfig
	sampleSize int
	receivers  int
	frequency  int
}

func (p point) String() string {
	return fmt.Sprintf("SampleSize=%d (%s) NumberOfReceivers=%d", p.sampleSize, units.HumanSize(float64(p.sampleSize)), p.receivers)
}

// Run measures every line of the plan.
func (d Driver) Run(ctx context.Context, plan Plan) (results.Comparison, error) {
	if err := plan.Validate(); err != nil {
		return results.Comparison{}, err
	}
	if err := process.AbsPaths(&d.cfg.BinaryDir); err != nil {
		return results.Comparison{}, err
	}

	frequency := plan.Frequencies[0]
	comparison := results.Comparison{
		Title:  Title(plan),
		YLabel: YLabel,
	}

	type lineSpec struct {
		legend string
		points []point
	}
	var lines []lineSpec

	if plan.VariesReceivers() {
		comparison.XLabel = XLabelReceivers
		comparison.X = plan.Receivers
		sampleSize := plan.SampleSizes[0]

		for _, system := range plan.Systems {
			for _, config := range plan.Configs {
				line := lineSpec{legend: SampleSizeLegend(system, config, sampleSize)}
				for _, receivers := range plan.Receivers {
					line.points = append(line.points, point{system: system, config: config, sampleSize: sampleSize, receivers: receivers, frequency: frequency})
				}
				lines = append(lines, line)
			}
		}
	} else {
		comparison.XLabel = XLabelSampleSize
		comparison.X = plan.SampleSizes

		for _, system := range plan.Systems {
			for _, config := range plan.Configs {
				for _, receivers := range plan.Receivers {
					line := lineSpec{legend: ReceiversLegend(system, config, receivers)}
					for _, sampleSize := range plan.SampleSizes {
						line.points = append(line.points, point{system: system, config: config, sampleSize: sampleSize, receivers: receivers, frequency: frequency})
					}
					lines = append(lines, line)
				}
			}
		}
	}

	for _, spec := range lines {
		d.logger.Println()
		d.logger.Infof("%s | %s", comparison.Title, spec.legend)

		for repeat := 0; repeat < d.cfg.Repeats; repeat++ {
			legend := fmt.Sprintf("%s %%%d", spec.legend, repeat)
			line := results.Line{Legend: legend}

			for _, p := range spec.points {
				d.logger.Printf("* Test: %s %s", legend, p)

				summary, err := d.measure(ctx, p)
				if err != nil {
					return results.Comparison{}, fmt.Errorf("%s: %s: %w", legend, p, err)
				}

				x := p.sampleSize
				if plan.VariesReceivers() {
					x = p.receivers
				}
				line.Points = append(line.Points, results.Point{X: x, Summary: summary})
			}

			comparison.Lines = append(comparison.Lines, line)
		}
	}

	return comparison, nil
}

// measure runs one point, restarting receivers and client until the client succeeds or the attempts are used up.
func (d Driver) measure(ctx context.Context, p point) (results.Summary, error) {
	var summary results.Summary

	err := retry.Times(d.cfg.MaxAttempts - 1).Wait(d.cfg.RetryWait).Try(func(attempt uint) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			d.logger.Warnf("Failed!!!! Retry ... (attempt %d/%d)", attempt+1, d.cfg.MaxAttempts)
		}

		var err error
		summary, err = d.attempt(ctx, p)
		return err
	})
	if err != nil {
		return results.Summary{}, err
	}
	return summary, nil
}

func (d Driver) executable(name string) string {
	if d.cfg.BinaryDir == "" {
		return name
	}
	return filepath.Join(d.cfg.BinaryDir, name)
}

func (d Driver) attempt(ctx context.Context, p point) (results.Summary, error) {
	clientExe, serverExe := p.system.Executables(d.cfg.GOOS)

	var servers []process.Handle
	defer func() {
		if err := stopAll(servers); err != nil {
			d.logger.Debugf("Stopping receivers: %s", err)
		}
		cleanupCtx := context.WithoutCancel(ctx)
		d.runner.KillByName(cleanupCtx, clientExe, "")
		d.runner.KillByName(cleanupCtx, serverExe, "")
	}()

	for i := 0; i < p.receivers; i++ {
		server, err := d.runner.Start(ctx, process.Spec{
			Name:       d.executable(serverExe),
			Args:       ServerArgs(p.sampleSize, p.config, i),
			Dir:        d.cfg.BinaryDir,
			InheritEnv: true,
		})
		if err != nil {
			return results.Summary{}, err
		}
		d.logger.Debugf("** Started Server: %s", server.PrintableCommandArgs())
		servers = append(servers, server)
	}

	if err := process.Sleep(ctx, d.cfg.ServerDelay); err != nil {
		return results.Summary{}, err
	}

	result, err := d.runner.Run(ctx, process.Spec{
		Name:       d.executable(clientExe),
		Args:       ClientArgs(p.sampleSize, p.config, p.receivers, p.frequency),
		Dir:        d.cfg.BinaryDir,
		InheritEnv: true,
		Timeout:    d.cfg.Timeout,
	})
	if err != nil {
		return results.Summary{}, err
	}

	if !result.Success() {
		d.logger.Printf("%s", result.Stdout)
		d.logger.Printf("%s", result.Stderr)
		return results.Summary{}, fmt.Errorf("client exited with %d (timed out: %v)", result.ExitCode, result.TimedOut)
	}
	d.logger.Debugf("%s", result.Stdout)

	summary, ok := results.FindSummary(result.Stdout)
	if !ok {
		return results.Summary{}, ErrNoSummary
	}
	return summary, nil
}

// stopAll terminates the receivers and reaps them.
func stopAll(servers []process.Handle) error {
	var g errgroup.Group
	for _, server := range servers {
		server := server
		g.Go(func() error {
			if err := server.Terminate(); err != nil {
				return err
			}
			_, err := server.Wait()
			return err
		})
	}
	return g.Wait()
}

// FileName turns a chart title into a file name without extension.
func FileName(title string) string {
	return strings.NewReplacer(" ", "_", ":", "_", "%", "_", "#", "_", "@", "_").Replace(title)
}
