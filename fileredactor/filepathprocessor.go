package fileredactor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bitrise-io/go-utils/v2/pathutil"
)

// RedactedTypes are the report and result file extensions which may carry secrets,
// such as a captured command line or environment.
var RedactedTypes = []string{".xml", ".junit", ".csv", ".meta", ".json", ".prom", ".txt", ".log", ".out"}

// FilePathProcessor turns a newline separated list of paths into absolute file paths.
type FilePathProcessor interface {
	ProcessFilePaths(string) ([]string, error)
}

type filePathProcessor struct {
	pathModifier pathutil.PathModifier
	pathChecker  pathutil.PathChecker
}

// NewFilePathProcessor returns a processor which resolves relative paths and rejects directories.
func NewFilePathProcessor(modifier pathutil.PathModifier, checker pathutil.PathChecker) FilePathProcessor {
	return filePathProcessor{
		pathModifier: modifier,
		pathChecker:  checker,
	}
}

func (f filePathProcessor) ProcessFilePaths(filePaths string) ([]string, error) {
	filePaths = strings.TrimSpace(filePaths)
	if filePaths == "" {
		return nil, nil
	}

	var processedFilePaths []string

	list := strings.Split(filePaths, "\n")
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		path, err := f.pathModifier.AbsPath(item)
		if err != nil {
			return nil, err
		}

		isDir, err := f.pathChecker.IsDirExists(path)
		if err != nil {
			return nil, fmt.Errorf("failed to check if path (%s) is a directory: %w", path, err)
		}
		if isDir {
			return nil, fmt.Errorf("path (%s) is a directory and cannot be redacted, please make sure to only provide filepaths as inputs", path)
		}

		processedFilePaths = append(processedFilePaths, path)
	}

	return processedFilePaths, nil
}

// ReportFiles lists the files of dir, recursively, whose extension is one of RedactedTypes.
func ReportFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(RedactedTypes, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
