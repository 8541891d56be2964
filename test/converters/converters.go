// Package converters contains the interface that is required to be a package a test result converter.
// It must be possible to set files from outside (for example if someone wants to use
// a pre-filtered files list), need to return the normalized JUnit model, and needs to have a
// Detect method to see if the converter can run with the files included in a report directory.
// (So the memcheck converter can run only if the dir has a valgrindoutput document for example)
package converters

import (
	"github.com/fep-sdk/fep-harness/test/converters/junitxml"
	"github.com/fep-sdk/fep-harness/test/converters/valgrind"
	"github.com/fep-sdk/fep-harness/test/junit"
)

// Intf is the required interface a converter need to match
type Intf interface {
	XML() (junit.XML, error)
	Detect([]string) bool
}

// List lists all supported converters.
// Detection is stateful, so every call returns fresh converters.
func List() []Intf {
	return []Intf{
		&junitxml.Converter{},
		&valgrind.Converter{},
	}
}
