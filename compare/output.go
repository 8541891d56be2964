package compare

import (
	"fmt"
	"path/filepath"

	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/chart"
	"github.com/fep-sdk/fep-harness/results"
)

// PlotsFile keeps every comparison of a run so the charts can be rendered again.
const PlotsFile = "plots.json"

// Publish writes plots.json and, for every comparison, its CSV and charts into outputDir.
func Publish(outputDir string, comparisons []results.Comparison, logger log.Logger) error {
	if err := pathutil.EnsureDirExist(outputDir); err != nil {
		return err
	}

	if err := results.SaveComparisons(filepath.Join(outputDir, PlotsFile), comparisons); err != nil {
		return fmt.Errorf("failed to save comparisons: %w", err)
	}

	return Render(outputDir, comparisons, logger)
}

// Render writes <title>.csv, <title>.png and <title>.pdf per comparison, titles sanitized.
func Render(outputDir string, comparisons []results.Comparison, logger log.Logger) error {
	for _, c := range comparisons {
		base := filepath.Join(outputDir, FileName(c.Title))

		if err := results.WriteCSVFile(base+".csv", c); err != nil {
			return err
		}
		if err := chart.SaveComparison(base, c); err != nil {
			return err
		}
		logger.Donef("Written: %s.{csv,png,pdf}", base)
	}
	return nil
}

// Replot renders the charts of a previous run from its plots.json.
func Replot(outputDir string, logger log.Logger) ([]results.Comparison, error) {
	comparisons, err := results.LoadComparisons(filepath.Join(outputDir, PlotsFile))
	if err != nil {
		return nil, err
	}
	return comparisons, Render(outputDir, comparisons, logger)
}
