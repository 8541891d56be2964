package fileredactor

import (
	"fmt"
	"io"
	"os"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/redactwriter"
)

const bufferSize = 64 * 1024

// FileRedactor replaces every occurrence of the given secrets in the given files.
type FileRedactor interface {
	RedactFiles(filePaths []string, secrets []string) error
}

type fileRedactor struct {
	fileManager fileutil.FileManager
	logger      log.Logger
}

// NewFileRedactor ...
func NewFileRedactor(manager fileutil.FileManager, logger log.Logger) FileRedactor {
	return fileRedactor{
		fileManager: manager,
		logger:      logger,
	}
}

// RedactFiles rewrites the files in place. Nothing is touched without secrets.
func (f fileRedactor) RedactFiles(filePaths []string, secrets []string) error {
	if len(secrets) == 0 {
		return nil
	}

	for _, path := range filePaths {
		f.logger.Debugf("Redacting %s", path)
		if err := f.redactFile(path, secrets); err != nil {
			return fmt.Errorf("failed to redact file (%s): %w", path, err)
		}
	}

	return nil
}

func (f fileRedactor) redactFile(path string, secrets []string) error {
	source, err := f.fileManager.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for redaction (%s): %w", path, err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			f.logger.Warnf("Failed to close file: %s", err)
		}
	}()

	newPath := path + ".redacted"
	destination, err := os.Create(newPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file for redaction: %w", err)
	}
	defer func() {
		if err := destination.Close(); err != nil {
			f.logger.Warnf("Failed to close file: %s", err)
		}
	}()

	redactWriter := redactwriter.New(secrets, destination, f.logger)
	if _, err := io.CopyBuffer(redactWriter, source, make([]byte, bufferSize)); err != nil {
		return fmt.Errorf("failed to redact secrets: %w", err)
	}

	if err := redactWriter.Close(); err != nil {
		return fmt.Errorf("failed to close redact writer: %w", err)
	}

	if err := os.Rename(newPath, path); err != nil {
		return fmt.Errorf("failed to overwrite old file (%s) with redacted file: %w", path, err)
	}

	return nil
}
