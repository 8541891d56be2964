package main

import (
	"time"

	"github.com/fep-sdk/fep-harness/buscompat"
	"github.com/fep-sdk/fep-harness/interfacetest"
	"github.com/fep-sdk/fep-harness/leakcheck"
	"github.com/fep-sdk/fep-harness/test/junit"
	"github.com/spf13/cobra"
)

func (h *harness) writeReport(outputFile string, report junit.XML) error {
	if err := junit.WriteFile(outputFile, report); err != nil {
		return err
	}
	if outputFile != "" {
		h.logger.Donef("Report written to %s (%d failed)", outputFile, report.FailureCount())
	}
	return nil
}

func newLeakcheckCmd(h *harness) *cobra.Command {
	var (
		opts        leakcheck.Options
		outputFile  string
		buildNumber string
	)

	cmd := &cobra.Command{
		Use:   "leakcheck [flags] <gtest-binary>",
		Short: "Run every case of a gtest binary under valgrind memcheck",
		Args:  positionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.GTest = args[0]
			if buildNumber != "" {
				h.logger.Printf("Build number: %s", buildNumber)
			}

			report, err := leakcheck.New(opts, h.runner, h.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			return h.writeReport(outputFile, report)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.WorkingDir, "working-directory", "w", "", "Working directory of the gtest binary")
	flags.StringVar(&opts.Valgrind, "valgrind-program", "valgrind", "Valgrind executable")
	flags.StringVarP(&outputFile, "output-file", "o", "", "JUnit report file, stdout if empty")
	flags.StringVar(&opts.TestName, "test-name", "", "Report name, the gtest binary name if empty")
	flags.StringVar(&opts.SuppressionsFile, "suppressions-file", "", "Valgrind suppressions file")
	flags.StringVar(&buildNumber, "build-number", "", "Build number, informational")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Timeout per test case, 0 waits forever")

	return cmd
}

func newInterfaceTestCmd(h *harness) *cobra.Command {
	return &cobra.Command{
		Use:   "interface-test <exefile> <working_directory> <build_number> <tester_class> <output_file>",
		Short: "Check the network interface selection of the DDS transport",
		Args:  positionalArgs(cobra.ExactArgs(5)),
		RunE: func(cmd *cobra.Command, args []string) error {
			exefile, workingDir, buildNumber, testerClass, outputFile := args[0], args[1], args[2], args[3], args[4]
			h.logger.Printf("Build number: %s", buildNumber)

			cfg := interfacetest.DefaultConfig(exefile, workingDir, testerClass)
			report, err := interfacetest.New(cfg, h.runner, h.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			return h.writeReport(outputFile, report)
		},
	}
}

func newBusCompatCmd(h *harness) *cobra.Command {
	return &cobra.Command{
		Use:   "bus-compat <exefile> <working_directory> <build_number> <platform> <binary_directory> <tester_class> <output_file>",
		Short: "Run every client/server combination of the released bus compatibility stimuli",
		Args:  positionalArgs(cobra.ExactArgs(7)),
		RunE: func(cmd *cobra.Command, args []string) error {
			h.logger.Printf("Build number: %s", args[2])

			cfg := buscompat.Config{
				Executable:  args[0],
				WorkingDir:  args[1],
				Platform:    args[3],
				BinaryDir:   args[4],
				TesterClass: args[5],
				Domain:      h.config.ModuleDomain,
				Driver:      h.config.TransmissionDriver,
				GOOS:        h.goos,
				ServerDelay: 10 * time.Second,
				Timeout:     2 * time.Minute,
			}
			report, err := buscompat.New(cfg, h.runner, h.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			return h.writeReport(args[6], report)
		},
	}
}
