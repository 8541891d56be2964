package main

import (
	"errors"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/fep-sdk/fep-harness/fileredactor"
	"github.com/fep-sdk/fep-harness/report"
	"github.com/fep-sdk/fep-harness/test"
	"github.com/spf13/cobra"
)

func newMergeCmd(h *harness) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <dir> <output_file>",
		Short: "Collect the reports of a directory tree into one normalized JUnit report",
		Args:  positionalArgs(cobra.ExactArgs(2)),
		RunE: func(_ *cobra.Command, args []string) error {
			h.logger.Infof("Collecting reports of %s", args[0])

			merged, err := test.CollectReports(args[0], h.logger)
			if err != nil {
				return err
			}
			return h.writeReport(args[1], merged)
		},
	}
}

func newPublishCmd(h *harness) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "publish <dir>",
		Short: "Redact and upload the JUnit reports and benchmark results of a directory",
		Args:  positionalArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			if h.config.ReportEndpoint == "" {
				return errors.New("FEP_REPORT_ENDPOINT is not set")
			}
			dir := args[0]

			if err := h.redactReports(dir); err != nil {
				return err
			}

			h.logger.Println()
			h.logger.Infof("Uploading test results")
			testResults, err := test.ParseTestResults(dir, h.logger)
			if err != nil {
				return fmt.Errorf("failed to parse test results: %w", err)
			}
			h.logger.Printf("- uploading (%d) test results", len(testResults))
			if err := testResults.Upload(string(h.config.ReportToken), h.config.ReportEndpoint, h.logger); err != nil {
				return fmt.Errorf("failed to upload test results: %w", err)
			}

			h.logger.Println()
			h.logger.Infof("Uploading benchmark results")
			uploader := report.NewResultUploader(dir, h.config.ReportEndpoint, string(h.config.ReportToken), concurrency, h.logger)
			if errs := uploader.DeployReports(); len(errs) > 0 {
				return fmt.Errorf("failed to upload benchmark results: %w", errors.Join(errs...))
			}

			h.logger.Donef("Success")
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel asset uploads")

	return cmd
}

func (h *harness) redactReports(dir string) error {
	secrets := h.config.Secrets()
	if len(secrets) == 0 {
		return nil
	}

	files, err := fileredactor.ReportFiles(dir)
	if err != nil {
		return err
	}

	extra, err := fileredactor.NewFilePathProcessor(pathutil.NewPathModifier(), pathutil.NewPathChecker()).ProcessFilePaths(h.config.RedactFiles)
	if err != nil {
		return err
	}

	h.logger.Printf("Redacting %d files", len(files)+len(extra))
	return fileredactor.NewFileRedactor(fileutil.NewFileManager(), h.logger).RedactFiles(append(files, extra...), secrets)
}
