package measure

import (
	"fmt"
	"sort"
)

// DefaultDomain ...
const DefaultDomain = 109

// Profile tells where the perf_measure stimuli run.
type Profile struct {
	Name string
	// ClientHost and ServerHost are ssh destinations, empty runs locally.
	ClientHost     string
	ServerHost     string
	ClientStimulus string
	ServerStimulus string
	ClientPlatform string
	ServerPlatform string
	Domain         int
}

// Profiles returns the built-in profiles, goos is the platform the harness runs on.
func Profiles(goos string) map[string]Profile {
	return map[string]Profile{
		"WindowsDefault": {
			Name:           "WindowsDefault",
			ClientStimulus: "./perf_measure_stimuli.exe",
			ServerStimulus: "./perf_measure_stimuli.exe",
			ClientPlatform: goos,
			ServerPlatform: goos,
			Domain:         DefaultDomain,
		},
		"LinuxDefault": {
			Name:           "LinuxDefault",
			ClientStimulus: "./perf_measure_stimuli",
			ServerStimulus: "./perf_measure_stimuli",
			ClientPlatform: goos,
			ServerPlatform: goos,
			Domain:         DefaultDomain,
		},
		"LinuxNetwork": {
			Name:           "LinuxNetwork",
			ServerHost:     "linux",
			ClientStimulus: "./perf_measure_stimuli",
			ServerStimulus: "./perf_measure_stimuli",
			ClientPlatform: goos,
			ServerPlatform: goos,
			Domain:         DefaultDomain,
		},
	}
}

// DefaultProfileName picks the local profile of goos.
func DefaultProfileName(goos string) string {
	if goos == "windows" {
		return "WindowsDefault"
	}
	return "LinuxDefault"
}

// LookupProfile ...
func LookupProfile(name, goos string) (Profile, error) {
	profiles := Profiles(goos)
	if name == "" {
		name = DefaultProfileName(goos)
	}

	profile, ok := profiles[name]
	if !ok {
		var names []string
		for n := range profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return Profile{}, fmt.Errorf("No config defined: %q, available: %v", name, names)
	}
	return profile, nil
}
