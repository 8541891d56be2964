package report

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	loggerV2 "github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/report/api"
	"github.com/fep-sdk/fep-harness/report/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Smallest valid base64 encoded image data which returns a correct content type.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z/C/HgAGgwJ/lK3Q6wAAAABJRU5ErkJggg=="

func TestFindsAndUploadsReports(t *testing.T) {
	resultDir, reports := createReports(t)

	mockClient := mocks.NewClientAPI(t)
	setupMockingForReport(mockClient, reports[0])
	setupMockingForReport(mockClient, reports[2])

	uploader := ResultUploader{
		client:      mockClient,
		logger:      loggerV2.NewLogger(),
		resultDir:   resultDir,
		concurrency: 2,
	}

	uploadErrors := uploader.DeployReports()
	require.Equal(t, 0, len(uploadErrors))
}

func TestFailedAssetMarksReportUnsuccessful(t *testing.T) {
	resultDir, reports := createReports(t)
	report := reports[2]

	mockClient := mocks.NewClientAPI(t)
	setupMockingForReport(mockClient, reports[0])
	mockClient.On("CreateReport", mock.MatchedBy(func(params api.CreateReportParameters) bool {
		return params.Title == report.Name
	})).Return(api.CreateReportResponse{Identifier: "id"}, nil)
	mockClient.On("FinishReport", "id", false).Return(nil)

	uploader := ResultUploader{
		client:      mockClient,
		logger:      loggerV2.NewLogger(),
		resultDir:   resultDir,
		concurrency: 1,
	}

	require.Empty(t, uploader.DeployReports())
}

func TestCreateReportError(t *testing.T) {
	resultDir, _ := createReports(t)

	mockClient := mocks.NewClientAPI(t)
	mockClient.On("CreateReport", mock.Anything).Return(api.CreateReportResponse{}, errors.New("unavailable"))

	uploader := ResultUploader{
		client:      mockClient,
		logger:      loggerV2.NewLogger(),
		resultDir:   resultDir,
		concurrency: 1,
	}

	require.Equal(t, []error{errors.New("unavailable"), errors.New("unavailable")}, uploader.DeployReports())
}

func TestInvalidReportFiltering(t *testing.T) {
	_, reports := createReports(t)
	uploader := ResultUploader{
		client:      nil,
		logger:      loggerV2.NewLogger(),
		concurrency: 1,
	}

	// Create an invalid report
	reports[0].Assets[0].Path = strings.TrimSuffix(reports[0].Assets[0].Path, ".csv") + ".txt"

	validatedReports, validatedErrors := uploader.validate(reports)

	expectedErrors := []error{
		fmt.Errorf("missing results csv file for compare_output"),
		fmt.Errorf("missing results csv file for empty_charts"),
	}
	assert.Equal(t, expectedErrors, validatedErrors)
	assert.Equal(t, 1, len(validatedReports))
}

// createReports creates dummy data for a compare output and two measure result directories.
func createReports(t *testing.T) (string, []Report) {
	tempDir := t.TempDir()
	reportData := []struct {
		name   string
		info   map[string]string
		assets []string
	}{
		{
			name:   "compare_output",
			assets: []string{"FEP_Scale___100_Hz.csv", "FEP_Scale___100_Hz.png", "plots.json"},
		},
		{
			name:   "empty_charts",
			info:   map[string]string{"category": "scratch"},
			assets: []string{"chart.png"},
		},
		{
			name:   "results_Scenario_Bursts_LinuxDefault-202403070905",
			assets: []string{"LinuxDefault_f1000b1024d0n1.csv", "LinuxDefault_f1000b1024d0n1.meta"},
		},
	}

	decodedPNG, err := base64.StdEncoding.DecodeString(pngBase64)
	require.NoError(t, err)

	var reports []Report
	for _, data := range reportData {
		reportPath := filepath.Join(tempDir, data.name)
		require.NoError(t, os.Mkdir(reportPath, 0755))

		var assets []Asset
		for _, assetName := range data.assets {
			content := []byte("a")
			if strings.HasSuffix(assetName, ".png") {
				content = decodedPNG
			}

			assetPath := filepath.Join(reportPath, assetName)
			require.NoError(t, os.WriteFile(assetPath, content, 0644))

			assets = append(assets, Asset{
				Path:                  assetPath,
				ResultDirRelativePath: assetName,
				FileSize:              int64(len(content)),
				ContentType:           detectContentType(assetPath),
			})
		}

		var reportInfo Info
		if data.info != nil {
			reportInfoData, err := json.Marshal(data.info)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(reportPath, reportInfoFile), reportInfoData, 0644))
			require.NoError(t, json.Unmarshal(reportInfoData, &reportInfo))
		}

		reports = append(reports, Report{
			Name:   data.name,
			Info:   reportInfo,
			Assets: assets,
		})
	}

	reports[0].Info.Category = CategoryComparison
	reports[2].Info.Category = CategoryTimeline

	return tempDir, reports
}

// setupMockingForReport sets up the mock to expect the given report.
func setupMockingForReport(client *mocks.ClientAPI, report Report) {
	var requestAssets []api.CreateReportAsset
	var responseURLs []api.CreateReportURL
	for i, asset := range report.Assets {
		requestAssets = append(requestAssets, api.CreateReportAsset{
			RelativePath: asset.ResultDirRelativePath,
			FileSize:     asset.FileSize,
			ContentType:  asset.ContentType,
		})
		responseURLs = append(responseURLs, api.CreateReportURL{
			RelativePath: asset.ResultDirRelativePath,
			URL:          fmt.Sprintf("%s-%d", asset.ResultDirRelativePath, i),
		})
	}
	requestParams := api.CreateReportParameters{
		Title:    report.Name,
		Category: report.Info.Category,
		Assets:   requestAssets,
	}

	response := api.CreateReportResponse{
		Identifier: fmt.Sprintf("%s-identifier", report.Name),
		AssetURLs:  responseURLs,
	}

	client.On("CreateReport", requestParams).Return(response, nil)

	for i, responseURL := range responseURLs {
		asset := report.Assets[i]
		client.On("UploadAsset", responseURL.URL, asset.Path, asset.ContentType).Return(nil)
	}

	client.On("FinishReport", response.Identifier, true).Return(nil)
}
