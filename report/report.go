// Package report publishes benchmark result directories (timelines, comparisons and their charts)
// to a report collector.
package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/report/api"
	"golang.org/x/sync/errgroup"
)

// ResultUploader ...
type ResultUploader struct {
	client      api.ClientAPI
	logger      log.Logger
	resultDir   string
	concurrency int
}

// NewResultUploader ...
func NewResultUploader(resultDir, endpoint, authToken string, concurrency int, logger log.Logger) ResultUploader {
	client := api.NewClient(endpoint, authToken, logger)

	return ResultUploader{
		client:      client,
		logger:      logger,
		resultDir:   resultDir,
		concurrency: concurrency,
	}
}

// DeployReports uploads every valid result directory found in the result dir.
func (h *ResultUploader) DeployReports() []error {
	reports, err := collectReports(h.resultDir)
	if err != nil {
		return []error{err}
	}

	h.logger.Printf("Found result directories (%d):", len(reports))
	for _, report := range reports {
		h.logger.Printf("- %s", report.Name)
	}

	validatedReports, validationErrors := h.validate(reports)
	if len(validationErrors) != 0 {
		h.logger.Warnf("Validation errors:\n")

		for _, validationError := range validationErrors {
			h.logger.Warnf("- %s\n", validationError)
		}
	}

	var uploadErrors []error
	for _, report := range validatedReports {
		if err := h.uploadReport(report); err != nil {
			uploadErrors = append(uploadErrors, err)
		}
	}

	return uploadErrors
}

// validate keeps the reports holding at least one results CSV.
func (h *ResultUploader) validate(reports []Report) ([]Report, []error) {
	var validatedReports []Report
	var validationErrors []error

	for _, report := range reports {
		valid := false

		for _, asset := range report.Assets {
			if strings.ToLower(filepath.Ext(asset.Path)) == ".csv" {
				valid = true
				break
			}
		}

		if valid {
			validatedReports = append(validatedReports, report)
			continue
		}

		validationErrors = append(validationErrors, fmt.Errorf("missing results csv file for %s", report.Name))
	}

	return validatedReports, validationErrors
}

func (h *ResultUploader) uploadReport(report Report) error {
	h.logger.Println()
	h.logger.Printf("Uploading %s", report.Name)

	serverReport, err := h.createReport(report)
	if err != nil {
		return err
	}

	allAssetsUploaded := true
	errors := h.uploadAssets(report.Assets, serverReport.AssetURLs)
	if 0 < len(errors) {
		h.logger.Warnf("Asset upload failed:\n")
		for _, uploadError := range errors {
			h.logger.Warnf("- %s", uploadError)
		}

		allAssetsUploaded = false

		h.logger.Warnf("%s will be marked unsuccessful as some assets could not be saved", report.Name)
	}

	return h.client.FinishReport(serverReport.Identifier, allAssetsUploaded)
}

func (h *ResultUploader) createReport(report Report) (ServerReport, error) {
	var assets []api.CreateReportAsset
	for _, asset := range report.Assets {
		assets = append(assets, api.CreateReportAsset{
			RelativePath: asset.ResultDirRelativePath,
			FileSize:     asset.FileSize,
			ContentType:  asset.ContentType,
		})
	}

	resp, err := h.client.CreateReport(api.CreateReportParameters{
		Title:    report.Name,
		Category: report.Info.Category,
		Assets:   assets,
	})
	if err != nil {
		return ServerReport{}, err
	}

	urls := make(map[string]string)
	for _, assetURL := range resp.AssetURLs {
		urls[assetURL.RelativePath] = assetURL.URL
	}

	return ServerReport{
		Identifier: resp.Identifier,
		AssetURLs:  urls,
	}, nil
}

func (h *ResultUploader) uploadAssets(assets []Asset, urls map[string]string) []error {
	var (
		mu     sync.Mutex
		errors []error
		g      errgroup.Group
	)
	addError := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errors = append(errors, err)
	}

	concurrency := h.concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for _, item := range assets {
		asset := item
		g.Go(func() error {
			h.logger.Debugf("Uploading %s", asset.ResultDirRelativePath)

			url, ok := urls[asset.ResultDirRelativePath]
			if !ok {
				addError(fmt.Errorf("missing upload url for %s", asset.ResultDirRelativePath))
				return nil
			}

			if err := h.client.UploadAsset(url, asset.Path, asset.ContentType); err != nil {
				addError(err)
			}
			return nil
		})
	}

	_ = g.Wait()

	return errors
}
