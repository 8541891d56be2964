package buscompat

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/bitrise-io/go-utils/v2/log"
)

// TrunkVersion names the build under test.
const TrunkVersion = "trunk"

// Build is one stimulus executable of a given middleware version.
type Build struct {
	Version string
	Path    string
}

// ExecutableName ...
func ExecutableName(goos string) string {
	if goos == "windows" {
		return "bus_compat_stimuli.exe"
	}
	return "bus_compat_stimuli"
}

// Discover collects the stimulus builds of older versions from <workingDir>/bin/<version>/<platform>/<exeName>,
// followed by the build under test. Files that are not executable are skipped.
func Discover(workingDir, platform, exeName, trunk string, logger log.Logger) ([]Build, error) {
	var builds []Build

	binDir := filepath.Join(workingDir, "bin")
	if exist, err := pathutil.IsDirExists(binDir); err != nil {
		return nil, err
	} else if exist {
		entries, err := os.ReadDir(binDir)
		if err != nil {
			return nil, err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			pth := filepath.Join(binDir, entry.Name(), platform, exeName)
			logger.Printf("checking %s ...", pth)

			info, err := os.Stat(pth)
			if err != nil || info.IsDir() {
				continue
			}
			if !isExecutable(info) {
				logger.Printf("  ... skipping: not executable")
				continue
			}

			logger.Printf("  ... adding to list")
			builds = append(builds, Build{Version: entry.Name(), Path: pth})
		}
	}

	return append(builds, Build{Version: TrunkVersion, Path: trunk}), nil
}

func isExecutable(info os.FileInfo) bool {
	return info.Mode().Perm()&0111 != 0 || filepath.Ext(info.Name()) == ".exe"
}

// Pair is one client/server combination.
type Pair struct {
	Client Build
	Server Build
}

// String ...
func (p Pair) String() string {
	return p.Client.Version + " -> " + p.Server.Version
}

// Pairs returns the cartesian product of builds, client-major.
func Pairs(builds []Build) []Pair {
	var pairs []Pair
	for _, client := range builds {
		for _, server := range builds {
			pairs = append(pairs, Pair{Client: client, Server: server})
		}
	}
	return pairs
}
