// Package test collects the reports written by the test runners, normalizes them into JUnit XML
// and uploads them to a report collector.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/pathutil"
	logV2 "github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/fep-sdk/fep-harness/test/converters"
	"github.com/fep-sdk/fep-harness/test/junit"
	"github.com/fep-sdk/fep-harness/test/testasset"
	"github.com/hashicorp/go-retryablehttp"
)

// maxTotalXMLSize limits the total size of all XML files uploaded in a single run
const maxTotalXMLSize = 100 * 1024 * 1024 // 100 MiB

// ReportFileName is the name the normalized report is uploaded as.
const ReportFileName = "test_result.xml"

// FileInfo ...
type FileInfo struct {
	FileName string `json:"filename"`
	FileSize int    `json:"filesize"`
}

// UploadURL ...
type UploadURL struct {
	FileName string `json:"filename"`
	URL      string `json:"upload_url"`
}

// UploadRequest ...
type UploadRequest struct {
	Name   string     `json:"name"`
	Assets []FileInfo `json:"assets"`
	FileInfo
}

// UploadResponse ...
type UploadResponse struct {
	ID     string      `json:"id"`
	Assets []UploadURL `json:"assets"`
	UploadURL
}

// Result is the normalized report of one report directory.
type Result struct {
	Name            string
	Report          junit.XML
	XMLContent      []byte
	AttachmentPaths []string
}

// Results ...
type Results []Result

func httpCall(apiToken, method, url string, input io.Reader, output interface{}, logger logV2.Logger) error {
	if apiToken != "" {
		url = url + "/" + apiToken
	}
	req, err := retryablehttp.NewRequest(method, url, input)
	if err != nil {
		return err
	}

	client := retryhttp.NewClient(logger)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("Failed to close body: %s", err)
		}
	}()

	if resp.StatusCode < 200 || 299 < resp.StatusCode {
		bodyData, err := io.ReadAll(resp.Body)
		if err != nil {
			logger.Warnf("Failed to read response: %s", err)
			return fmt.Errorf("unsuccessful status code: %d", resp.StatusCode)
		}
		return fmt.Errorf("unsuccessful status code: %d, response: %s", resp.StatusCode, bodyData)
	}

	if output != nil {
		return json.NewDecoder(resp.Body).Decode(&output)
	}
	return nil
}

func findLogAttachments(files []string) (attachmentPaths []string) {
	for _, file := range files {
		if testasset.IsLogAsset(file) {
			attachmentPaths = append(attachmentPaths, file)
		}
	}
	return
}

func dirFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func convertDir(dir string, logger logV2.Logger) (junit.XML, bool, error) {
	files, err := dirFiles(dir)
	if err != nil {
		return junit.XML{}, false, err
	}

	var (
		report   junit.XML
		detected bool
	)
	for _, converter := range converters.List() {
		logger.Debugf("Running converter: %T", converter)

		if !converter.Detect(files) {
			continue
		}
		detected = true

		converted, err := converter.XML()
		if err != nil {
			return junit.XML{}, false, fmt.Errorf("%T failed on %s: %w", converter, dir, err)
		}
		report.TestSuites = append(report.TestSuites, converted.TestSuites...)
	}

	return report, detected, nil
}

/*
ParseTestResults walks through a report directory and normalizes every directory holding a known report.

A report directory typically looks like:

	reports
	├── leak_check
	│	├── leak_test.xml
	│	└── a_test.memcheck.xml
	├── tester_dds_interface
	│	└── interface_test.xml
	└── tester_bus_compatibility
		├── bus_compat.xml
		├── test_log_client.out
		└── test_log_server.out

Every directory with a detected report gives one Result, named by its path relative to the root
(the root itself is named by its base name). Logs next to a report are attached to it.
*/
func ParseTestResults(rootDir string, logger logV2.Logger) (results Results, err error) {
	if exists, err := pathutil.IsDirExists(rootDir); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("report directory does not exist: %s", rootDir)
	}

	err = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		report, detected, err := convertDir(path, logger)
		if err != nil {
			return err
		}
		logger.Debugf("known test result detected in %s: %v", path, detected)
		if !detected {
			return nil
		}

		name, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		if name == "." {
			name = filepath.Base(rootDir)
		}
		report.Name = filepath.ToSlash(name)

		var buff bytes.Buffer
		if err := junit.Write(&buff, report); err != nil {
			return err
		}
		report.Finalize()

		files, err := dirFiles(path)
		if err != nil {
			return err
		}
		attachments := findLogAttachments(files)
		logger.Debugf("found attachments: %d", len(attachments))

		results = append(results, Result{
			Name:            report.Name,
			Report:          report,
			XMLContent:      buff.Bytes(),
			AttachmentPaths: attachments,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// CollectReports merges every report found under dir into a single report named after dir.
func CollectReports(dir string, logger logV2.Logger) (junit.XML, error) {
	results, err := ParseTestResults(dir, logger)
	if err != nil {
		return junit.XML{}, err
	}

	merged := junit.XML{Name: filepath.Base(dir)}
	for _, result := range results {
		logger.Printf("- %s (%d suites)", result.Name, len(result.Report.TestSuites))
		merged.TestSuites = append(merged.TestSuites, result.Report.TestSuites...)
	}
	merged.Finalize()

	return merged, nil
}

// Upload sends every result to the report collector at endpointBaseURL.
func (results Results) Upload(apiToken, endpointBaseURL string, logger logV2.Logger) error {
	if results.calculateTotalSizeOfXMLContent() > maxTotalXMLSize {
		return fmt.Errorf("the total size of the test result XML files (%d MiB) exceeds the maximum allowed size of 100 MiB", results.calculateTotalSizeOfXMLContent()/1024/1024)
	}

	for _, result := range results {
		logger.Printf("Uploading: %s", result.Name)

		uploadReq := UploadRequest{
			FileInfo: FileInfo{
				FileName: ReportFileName,
				FileSize: len(result.XMLContent),
			},
			Name: result.Name,
		}
		for _, asset := range result.AttachmentPaths {
			fi, err := os.Stat(asset)
			if err != nil {
				return fmt.Errorf("failed to get file info for %s: %w", asset, err)
			}
			uploadReq.Assets = append(uploadReq.Assets, FileInfo{
				FileName: filepath.Base(asset),
				FileSize: int(fi.Size()),
			})
		}

		uploadRequestBodyData, err := json.Marshal(uploadReq)
		if err != nil {
			return fmt.Errorf("failed to json encode upload request: %w", err)
		}

		var (
			uploadResponse   UploadResponse
			uploadRequestURL = fmt.Sprintf("%s/test_reports", endpointBaseURL)
		)
		if err := httpCall(apiToken, http.MethodPost, uploadRequestURL, bytes.NewReader(uploadRequestBodyData), &uploadResponse, logger); err != nil {
			return fmt.Errorf("failed to initialise test result: %w", err)
		}

		if err := httpCall("", http.MethodPut, uploadResponse.URL, bytes.NewReader(result.XMLContent), nil, logger); err != nil {
			return fmt.Errorf("failed to upload test result xml: %w", err)
		}

		for _, upload := range uploadResponse.Assets {
			for _, file := range result.AttachmentPaths {
				if filepath.Base(file) != upload.FileName {
					continue
				}
				if err := uploadFile(upload.URL, file, logger); err != nil {
					return fmt.Errorf("failed to upload test result attachment (%s): %w", file, err)
				}
				break
			}
		}

		var uploadPatchURL = fmt.Sprintf("%s/test_reports/%s", endpointBaseURL, uploadResponse.ID)
		if err := httpCall(apiToken, http.MethodPatch, uploadPatchURL, strings.NewReader(`{"uploaded":true}`), nil, logger); err != nil {
			return fmt.Errorf("failed to finalise test result: %w", err)
		}
	}

	return nil
}

func uploadFile(url, pth string, logger logV2.Logger) error {
	f, err := os.Open(pth)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnf("Failed to close %s: %s", pth, err)
		}
	}()

	return httpCall("", http.MethodPut, url, f, nil, logger)
}

func (results Results) calculateTotalSizeOfXMLContent() int {
	totalSize := 0
	for _, result := range results {
		totalSize += len(result.XMLContent)
	}
	return totalSize
}
