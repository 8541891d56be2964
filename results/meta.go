package results

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/fileutil"
)

// SignalAttributes describe how a measured signal was stimulated.
type SignalAttributes struct {
	Bytes       int `json:"bytes"`
	Frequency   int `json:"frequency"`
	NumPerCycle int `json:"numpercycle"`
}

// MetaPath returns the attributes file kept next to a results CSV.
func MetaPath(resultsPath string) string {
	return strings.TrimSuffix(resultsPath, ".csv") + ".meta"
}

// WriteMeta ...
func WriteMeta(pth string, signals []SignalAttributes) error {
	data, err := json.MarshalIndent(signals, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteBytesToFile(pth, data)
}

// ReadMeta ...
func ReadMeta(pth string) ([]SignalAttributes, error) {
	data, err := fileutil.ReadBytesFromFile(pth)
	if err != nil {
		return nil, err
	}

	var signals []SignalAttributes
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pth, err)
	}
	return signals, nil
}
