package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/bitrise-io/go-steputils/stepconf"
	"github.com/bitrise-io/go-utils/log"
	logV2 "github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/spf13/cobra"
)

// harness holds what every subcommand needs.
type harness struct {
	config Config
	logger logV2.Logger
	runner process.Runner
	goos   string
}

func fail(format string, v ...interface{}) {
	log.Errorf(format, v...)
	os.Exit(1)
}

func main() {
	config, err := parseConfig()
	if err != nil {
		fail("Issue with environment: %s", err)
	}

	logger := newStepLogger()
	h := &harness{
		config: config,
		logger: logger,
		runner: process.NewRunner(runtime.GOOS, logger),
		goos:   runtime.GOOS,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(h).ExecuteContext(ctx); err != nil {
		stop()
		fail("%s", err)
	}
}

func newRootCmd(h *harness) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "fep-harness",
		Short: "Test and benchmark harness for the FEP SDK stimuli",
		Long: `fep-harness drives the FEP SDK test stimuli: it runs leak checks, interface and
bus compatibility tests emitting JUnit reports, and the perf_measure and only_dds benchmarks
emitting CSV results and charts.`,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			toStdout := redirectLogs(cmd)

			debug := verbose || h.config.DebugMode
			h.logger.EnableDebugLog(debug)
			log.SetEnableDebugLog(debug)
			if debug && !toStdout {
				stepconf.Print(h.config)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newLeakcheckCmd(h),
		newInterfaceTestCmd(h),
		newBusCompatCmd(h),
		newMeasureCmd(h),
		newCompareCmd(h),
		newPlotCmd(h),
		newMergeCmd(h),
		newPublishCmd(h),
	)

	return root
}

// positionalArgs checks the argument count and silences the usage for every later error.
func positionalArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return nil
	}
}
