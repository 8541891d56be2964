package measure

import (
	"fmt"
	"strconv"

	"github.com/bitrise-io/go-utils/fileutil"
	"github.com/fep-sdk/fep-harness/results"
	"gopkg.in/yaml.v3"
)

// SignalSpec lists the values one signal is permuted over.
type SignalSpec struct {
	Bytes       []int `yaml:"bytes"`
	Frequency   []int `yaml:"frequency"`
	DDBSize     []int `yaml:"ddbsize"`
	NumPerCycle []int `yaml:"numpercycle"`
}

// Scenario is a set of signals measured in one result directory.
type Scenario struct {
	Name    string       `yaml:"name"`
	Signals []SignalSpec `yaml:"signals"`
}

// Validate ...
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario without name")
	}
	if len(s.Signals) == 0 {
		return fmt.Errorf("scenario %s: no signals", s.Name)
	}
	for i, sig := range s.Signals {
		if len(sig.Bytes) == 0 || len(sig.Frequency) == 0 || len(sig.DDBSize) == 0 || len(sig.NumPerCycle) == 0 {
			return fmt.Errorf("scenario %s: signal %d needs bytes, frequency, ddbsize and numpercycle", s.Name, i)
		}
	}
	return nil
}

func repeatSignal(n int, spec SignalSpec) []SignalSpec {
	signals := make([]SignalSpec, n)
	for i := range signals {
		signals[i] = spec
	}
	return signals
}

// DefaultScenarios ...
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name: "Scenario_Different_SignalSizes",
			Signals: repeatSignal(1, SignalSpec{
				Bytes:       []int{1024, 4 * 1024, 16 * 1024, 64 * 1024, 256 * 1024},
				Frequency:   []int{1000},
				DDBSize:     []int{0},
				NumPerCycle: []int{1},
			}),
		},
		{
			Name: "Scenario_Different_Frequencies",
			Signals: repeatSignal(1, SignalSpec{
				Bytes:       []int{1024},
				Frequency:   []int{200, 400, 600, 800, 1000},
				DDBSize:     []int{0},
				NumPerCycle: []int{1},
			}),
		},
		{
			Name: "Scenario_Different_NumberOfSignals",
			Signals: repeatSignal(16, SignalSpec{
				Bytes:       []int{1024},
				Frequency:   []int{1000},
				DDBSize:     []int{0},
				NumPerCycle: []int{1},
			}),
		},
		{
			Name: "Scenario_UsingDDB",
			Signals: repeatSignal(1, SignalSpec{
				Bytes:       []int{1024},
				Frequency:   []int{1000},
				DDBSize:     []int{10, 100},
				NumPerCycle: []int{9, 95},
			}),
		},
		{
			Name: "Scenario_Different_NumberOfBursts",
			Signals: repeatSignal(1, SignalSpec{
				Bytes:       []int{1024},
				Frequency:   []int{1000},
				DDBSize:     []int{0},
				NumPerCycle: []int{1, 10, 100},
			}),
		},
	}
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads scenarios from a YAML file with a top level `scenarios` list.
func LoadScenarios(pth string) ([]Scenario, error) {
	data, err := fileutil.ReadBytesFromFile(pth)
	if err != nil {
		return nil, err
	}

	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pth, err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%s defines no scenarios", pth)
	}
	for _, s := range f.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Scenarios, nil
}

// Permutation selects how signal values are combined.
type Permutation string

const (
	// Recombination measures the cartesian product of the values of all signals.
	Recombination Permutation = "recombination"
	// Parallel gives every signal the same values, permuted over the first signal's lists.
	Parallel Permutation = "parallel"
)

// ParsePermutation ...
func ParsePermutation(s string) (Permutation, error) {
	switch p := Permutation(s); p {
	case Recombination, Parallel:
		return p, nil
	case "":
		return Parallel, nil
	default:
		return "", fmt.Errorf("unknown permutation %q, use %s or %s", s, Recombination, Parallel)
	}
}

// Case is one client/server run of a scenario.
type Case struct {
	Name       string
	ClientArgs []string
	ServerArgs []string
	Signals    []results.SignalAttributes
}

type signalValues struct {
	bytes, frequency, ddbSize, numPerCycle int
}

func (v signalValues) clientArgs(index int) []string {
	return []string{
		"-" + strconv.Itoa(index),
		"--frequency", strconv.Itoa(v.frequency),
		"--bytes", strconv.Itoa(v.bytes),
		"--ddbsize", strconv.Itoa(v.ddbSize),
		"--numpercycle", strconv.Itoa(v.numPerCycle),
	}
}

func (v signalValues) serverArgs(index int) []string {
	return []string{
		"-" + strconv.Itoa(index),
		"--bytes", strconv.Itoa(v.bytes),
		"--ddbsize", strconv.Itoa(v.ddbSize),
	}
}

func (v signalValues) suffix() string {
	return fmt.Sprintf("f%db%dd%dn%d", v.frequency, v.bytes, v.ddbSize, v.numPerCycle)
}

func (v signalValues) attributes() results.SignalAttributes {
	return results.SignalAttributes{Bytes: v.bytes, Frequency: v.frequency, NumPerCycle: v.numPerCycle}
}

// values iterates ddbsize, frequency, bytes and numpercycle, outermost first.
func (s SignalSpec) values() []signalValues {
	var vs []signalValues
	for _, ddbSize := range s.DDBSize {
		for _, frequency := range s.Frequency {
			for _, bytes := range s.Bytes {
				for _, numPerCycle := range s.NumPerCycle {
					vs = append(vs, signalValues{bytes: bytes, frequency: frequency, ddbSize: ddbSize, numPerCycle: numPerCycle})
				}
			}
		}
	}
	return vs
}

// Cases expands a scenario into its runs, names are prefixed with the profile name.
func Cases(scenario Scenario, prefix string, permutation Permutation) []Case {
	if len(scenario.Signals) == 0 {
		return nil
	}

	if permutation == Recombination {
		var cases []Case
		recombine(scenario.Signals, 0, Case{Name: prefix}, &cases)
		return cases
	}

	var cases []Case
	for _, v := range scenario.Signals[0].values() {
		c := Case{Name: prefix + "_" + v.suffix()}
		for i := range scenario.Signals {
			c.ClientArgs = append(c.ClientArgs, v.clientArgs(i)...)
			c.ServerArgs = append(c.ServerArgs, v.serverArgs(i)...)
			c.Signals = append(c.Signals, v.attributes())
		}
		cases = append(cases, c)
	}
	return cases
}

func recombine(signals []SignalSpec, index int, parent Case, cases *[]Case) {
	if index == len(signals) {
		*cases = append(*cases, parent)
		return
	}

	for _, v := range signals[index].values() {
		c := Case{
			Name:       parent.Name + "_" + strconv.Itoa(index) + v.suffix(),
			ClientArgs: append(append([]string{}, parent.ClientArgs...), v.clientArgs(index)...),
			ServerArgs: append(append([]string{}, parent.ServerArgs...), v.serverArgs(index)...),
			Signals:    append(append([]results.SignalAttributes{}, parent.Signals...), v.attributes()),
		}
		recombine(signals, index+1, c, cases)
	}
}
