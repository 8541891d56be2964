package report

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/fileutil"
	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/fep-sdk/fep-harness/compare"
)

const (
	reportInfoFile = "report-info.json"

	// CategoryTimeline is the category of measure result directories.
	CategoryTimeline = "timeline"
	// CategoryComparison is the category of compare output directories.
	CategoryComparison = "comparison"
)

var contentTypes = map[string]string{
	".csv":  "text/csv; charset=utf-8",
	".meta": "application/json",
	".json": "application/json",
	".prom": "text/plain; version=0.0.4; charset=utf-8",
	".pdf":  "application/pdf",
	".xml":  "application/xml",
}

func collectReports(dir string) ([]Report, error) {
	var reports []Report

	entries, err := os.ReadDir(dir)
	if err != nil {
		return reports, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		var assets []Asset
		resultDir := filepath.Join(dir, entry.Name())
		fn := func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() || d.Name() == ".DS_Store" || d.Name() == reportInfoFile {
				return nil
			}

			relativePath, pathErr := filepath.Rel(resultDir, path)
			if pathErr != nil {
				return pathErr
			}

			info, infoErr := d.Info()
			if infoErr != nil {
				return infoErr
			}

			assets = append(assets, Asset{
				Path:                  path,
				ResultDirRelativePath: filepath.ToSlash(relativePath),
				FileSize:              info.Size(),
				ContentType:           detectContentType(path),
			})

			return nil
		}
		if err := filepath.WalkDir(resultDir, fn); err != nil {
			return nil, err
		}

		if len(assets) == 0 {
			continue
		}

		info, err := readInfo(resultDir)
		if err != nil {
			return nil, err
		}

		reports = append(reports, Report{
			Name:   entry.Name(),
			Info:   info,
			Assets: assets,
		})
	}

	return reports, nil
}

func readInfo(resultDir string) (Info, error) {
	pth := filepath.Join(resultDir, reportInfoFile)
	if exists, err := pathutil.IsPathExists(pth); err != nil {
		return Info{}, err
	} else if exists {
		data, err := fileutil.ReadBytesFromFile(pth)
		if err != nil {
			return Info{}, err
		}

		var info Info
		if err := json.Unmarshal(data, &info); err != nil {
			return Info{}, err
		}
		return info, nil
	}

	if exists, err := pathutil.IsPathExists(filepath.Join(resultDir, compare.PlotsFile)); err != nil {
		return Info{}, err
	} else if exists {
		return Info{Category: CategoryComparison}, nil
	}
	if strings.HasPrefix(filepath.Base(resultDir), "results_") {
		return Info{Category: CategoryTimeline}, nil
	}
	return Info{}, nil
}

func detectContentType(path string) string {
	if contentType, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return contentType
	}

	fallbackType := "application/octet-stream"

	file, err := os.Open(path)
	if err != nil {
		return fallbackType
	}
	defer func() {
		_ = file.Close()
	}()

	// http.DetectContentType considers at most the first 512 bytes
	buff := make([]byte, 512)

	bytesRead, err := file.Read(buff)
	if err != nil && err != io.EOF {
		return fallbackType
	}

	// zero fill-up bytes would break the detection
	buff = buff[:bytesRead]

	return http.DetectContentType(buff)
}
