package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fep-sdk/fep-harness/chart"
	"github.com/fep-sdk/fep-harness/compare"
	"github.com/fep-sdk/fep-harness/measure"
	"github.com/fep-sdk/fep-harness/metrics"
	"github.com/fep-sdk/fep-harness/results"
	"github.com/spf13/cobra"
)

func newMeasureCmd(h *harness) *cobra.Command {
	var (
		planFile    string
		scenarios   []string
		resultDir   string
		workingDir  string
		permutation string
		timeout     time.Duration
		clientTime  int
		plot        bool
		ylim        float64
	)

	cmd := &cobra.Command{
		Use:   "measure [profile]",
		Short: "Measure the round trip times of the perf_measure stimuli over the signal permutations of each scenario",
		Args:  positionalArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			profile, err := measure.LookupProfile(name, h.goos)
			if err != nil {
				return err
			}

			p, err := measure.ParsePermutation(permutation)
			if err != nil {
				return err
			}

			all := measure.DefaultScenarios()
			if planFile != "" {
				if all, err = measure.LoadScenarios(planFile); err != nil {
					return err
				}
			}
			selected := selectScenarios(all, scenarios)
			if len(selected) == 0 {
				return fmt.Errorf("no scenario selected from %v", scenarios)
			}

			cfg := measure.DefaultConfig(profile)
			cfg.ResultDir = resultDir
			cfg.WorkingDir = workingDir
			cfg.Permutation = p
			cfg.Timeout = timeout
			cfg.ClientTime = clientTime
			driver := measure.New(cfg, h.runner, h.logger)

			for _, scenario := range selected {
				h.logger.Println()
				h.logger.Infof("Running Scenario: %s", scenario.Name)

				dir, measurements, err := driver.Run(cmd.Context(), scenario)
				if err != nil {
					return err
				}
				h.logger.Donef("Results of %s written to %s", scenario.Name, dir)

				if plot {
					h.plotMeasurements(measurements, ylim)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&planFile, "plan", "", "YAML file with the scenarios, the built-in scenarios if empty")
	flags.StringSliceVar(&scenarios, "scenario", nil, "Scenarios to run, all if empty")
	flags.StringVar(&resultDir, "result-dir", ".", "Directory the result directories are created in")
	flags.StringVarP(&workingDir, "working-directory", "w", "", "Working directory of the stimuli")
	flags.StringVar(&permutation, "permutation", string(measure.Recombination), "Signal permutation: recombination or parallel")
	flags.DurationVar(&timeout, "timeout", 0, "Timeout of a client run, 0 waits forever")
	flags.IntVar(&clientTime, "time", 10, "Measuring time of the client in seconds")
	flags.BoolVar(&plot, "plot", false, "Plot the timeline of every successful measurement")
	flags.Float64Var(&ylim, "ylim", chart.DefaultYLim, "RTT limit in us, slower samples are peaks")

	return cmd
}

func selectScenarios(all []measure.Scenario, names []string) []measure.Scenario {
	if len(names) == 0 {
		return all
	}

	var selected []measure.Scenario
	for _, s := range all {
		if slices.Contains(names, s.Name) {
			selected = append(selected, s)
		}
	}
	return selected
}

func (h *harness) plotMeasurements(measurements []measure.Measurement, ylim float64) {
	for _, m := range measurements {
		if !m.Success() {
			continue
		}
		if err := chart.SaveTimeline(m.ResultsPath, ylim); err != nil {
			h.logger.Warnf("Failed to plot %s: %s", m.ResultsPath, err)
			continue
		}
		h.logger.Printf("- plotted %s", m.Name)
	}
}

func newCompareCmd(h *harness) *cobra.Command {
	var (
		planFile    string
		plans       []string
		replot      bool
		outputDir   string
		binaryDir   string
		retries     uint
		repeats     int
		timeout     time.Duration
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the round trip times of middleware systems and transport configurations",
		Args:  positionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var comparisons []results.Comparison

			if replot {
				var err error
				if comparisons, err = compare.Replot(outputDir, h.logger); err != nil {
					return err
				}
			} else {
				all := compare.DefaultPlans()
				if planFile != "" {
					var err error
					if all, err = compare.LoadPlans(planFile); err != nil {
						return err
					}
				}

				cfg := compare.DefaultConfig(h.goos)
				cfg.BinaryDir = binaryDir
				cfg.MaxAttempts = retries
				cfg.Repeats = repeats
				cfg.Timeout = timeout
				driver := compare.New(cfg, h.runner, h.logger)

				for _, plan := range all {
					if len(plans) > 0 && !slices.Contains(plans, plan.Name) {
						continue
					}

					h.logger.Println()
					h.logger.Infof("Running %s", compare.Title(plan))

					c, err := driver.Run(cmd.Context(), plan)
					if err != nil {
						return err
					}
					comparisons = append(comparisons, c)
				}

				if err := compare.Publish(outputDir, comparisons, h.logger); err != nil {
					return err
				}
			}

			if metricsFile != "" {
				if err := metrics.Export(metricsFile, comparisons); err != nil {
					return fmt.Errorf("failed to export metrics: %w", err)
				}
				h.logger.Donef("Metrics written to %s", metricsFile)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&planFile, "plan", "", "YAML file with the plans, the built-in plans if empty")
	flags.StringSliceVar(&plans, "only", nil, "Plans to run, all if empty")
	flags.BoolVar(&replot, "replot", false, "Render the charts of the comparisons saved in the output directory")
	flags.StringVar(&outputDir, "output-dir", ".", "Directory of the CSV files, charts and "+compare.PlotsFile)
	flags.StringVar(&binaryDir, "binary-dir", "", "Directory of the stimuli, PATH if empty")
	flags.UintVar(&retries, "retries", compare.DefaultMaxAttempts, "Attempts per measurement point")
	flags.IntVar(&repeats, "repeats", 1, "Number of times every line is measured")
	flags.DurationVar(&timeout, "timeout", time.Minute, "Timeout of a client run, 0 waits forever")
	flags.StringVar(&metricsFile, "metrics-file", "", "Prometheus textfile the summaries are exported to")

	return cmd
}

func newPlotCmd(h *harness) *cobra.Command {
	var ylim float64

	cmd := &cobra.Command{
		Use:   "plot [results.csv]",
		Short: "Plot a perf_measure timeline or a comparison CSV as PDF and PNG",
		Args:  positionalArgs(cobra.MaximumNArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			csvPath := "results.csv"
			if len(args) == 1 {
				csvPath = args[0]
			}

			isComparison, err := results.IsComparisonCSV(csvPath)
			if err != nil {
				return err
			}

			if isComparison {
				comparison, err := results.ReadComparisonFile(csvPath, compare.YLabel)
				if err != nil {
					return err
				}
				if err := chart.SaveComparison(strings.TrimSuffix(csvPath, ".csv"), comparison); err != nil {
					return err
				}
			} else if err := chart.SaveTimeline(csvPath, ylim); err != nil {
				return err
			}
			h.logger.Donef("Plotted %s", csvPath)
			return nil
		},
	}
	cmd.Flags().Float64Var(&ylim, "ylim", chart.DefaultYLim, "RTT limit in us, slower samples are peaks, 0 disables the limit")

	return cmd
}
