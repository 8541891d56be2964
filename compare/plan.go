package compare

import (
	"fmt"

	"github.com/bitrise-io/go-utils/fileutil"
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// System is a middleware under comparison, made of a client and a server stimulus.
type System struct {
	Name   string `yaml:"name"`
	Client string `yaml:"client"`
	Server string `yaml:"server"`
}

// Executables returns the client and server file names for goos.
func (s System) Executables(goos string) (client, server string) {
	ext := ""
	if goos == "windows" {
		ext = ".exe"
	}
	return s.Client + ext, s.Server + ext
}

// TransportConfig is the QoS a stimulus pair is run with.
type TransportConfig struct {
	Name      string `yaml:"name"`
	Reliable  bool   `yaml:"reliable"`
	Multicast bool   `yaml:"multicast"`
	Async     bool   `yaml:"async"`
}

// Args ...
func (c TransportConfig) Args() []string {
	flag := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	return []string{flag(c.Reliable), flag(c.Multicast), flag(c.Async)}
}

// SampleSizes are given in bytes, plan files may use decimal size suffixes like 10k or 2MB.
type SampleSizes []int

// UnmarshalYAML ...
func (s *SampleSizes) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	sizes := make(SampleSizes, 0, len(raw))
	for _, r := range raw {
		size, err := units.FromHumanSize(r)
		if err != nil {
			return fmt.Errorf("invalid sample size %q: %w", r, err)
		}
		sizes = append(sizes, int(size))
	}
	*s = sizes
	return nil
}

// Plan is one comparison chart to measure.
type Plan struct {
	Name        string            `yaml:"name"`
	Systems     []System          `yaml:"systems"`
	Configs     []TransportConfig `yaml:"configs"`
	SampleSizes SampleSizes       `yaml:"sample_sizes"`
	// Frequencies must hold exactly one value.
	Frequencies []int `yaml:"frequencies"`
	Receivers   []int `yaml:"receivers"`
}

// VariesReceivers reports whether the x axis is the number of receivers, otherwise it is the sample size.
func (p Plan) VariesReceivers() bool {
	return len(p.SampleSizes) == 1
}

// Validate ...
func (p Plan) Validate() error {
	if len(p.Frequencies) != 1 {
		return fmt.Errorf("plan %q: exactly one frequency is required, got %d", p.Name, len(p.Frequencies))
	}
	if len(p.SampleSizes) == 0 {
		return fmt.Errorf("plan %q: no sample sizes", p.Name)
	}
	for _, size := range p.SampleSizes {
		if size < 1 {
			return fmt.Errorf("plan %q: invalid sample size %d", p.Name, size)
		}
	}
	if len(p.Receivers) == 0 {
		return fmt.Errorf("plan %q: no receiver counts", p.Name)
	}
	if len(p.Systems) == 0 || len(p.Configs) == 0 {
		return fmt.Errorf("plan %q: systems and configs are required", p.Name)
	}
	for _, n := range p.Receivers {
		if n < 1 {
			return fmt.Errorf("plan %q: invalid receiver count %d", p.Name, n)
		}
	}
	return nil
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans reads plans from a YAML file with a top level `plans` list.
func LoadPlans(pth string) ([]Plan, error) {
	data, err := fileutil.ReadBytesFromFile(pth)
	if err != nil {
		return nil, err
	}
	return ParsePlans(data)
}

// ParsePlans ...
func ParsePlans(data []byte) ([]Plan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("no plans defined")
	}
	for _, p := range f.Plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Plans, nil
}

var (
	fastRTPSPubSub = System{Name: "Eprosima FastRTPS (Publish/Subscribe)", Client: "test_client_fastrtps_hl_queue", Server: "test_server_fastrtps_hl_queue"}
	fastRTPSRaw    = System{Name: "Eprosima FastRTPS (Read/Write)", Client: "test_client_fastrtps_ll_queue", Server: "test_server_fastrtps_ll_queue"}
	rtiDDSQueue    = System{Name: "RTI DDS / Queue", Client: "test_client_rtisdds_queue", Server: "test_server_rtisdds_queue"}
	fepRaw         = System{Name: "FEP Core SDK / Raw", Client: "test_client_fep", Server: "test_server_fep"}

	reliableUnicastSync     = TransportConfig{Name: "Reliable/Unicast/Sync", Reliable: true}
	reliableUnicastAsync    = TransportConfig{Name: "Reliable/Unicast/ASync", Reliable: true, Async: true}
	reliableMulticastSync   = TransportConfig{Name: "Reliable/Multicast/Sync", Reliable: true, Multicast: true}
	reliableMulticastAsync  = TransportConfig{Name: "Reliable/Multicast/ASync", Reliable: true, Multicast: true, Async: true}
	sampleSizes             = []int{100, 1000, 2000, 5000, 10000, 20000, 30000, 40000, 50000, 60000}
	receiverCounts          = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	allSystems              = []System{fastRTPSPubSub, fastRTPSRaw, rtiDDSQueue, fepRaw}
	allReliableTransmission = []TransportConfig{reliableUnicastSync, reliableUnicastAsync, reliableMulticastSync, reliableMulticastAsync}
)

// DefaultPlans are run if no plan file is given.
func DefaultPlans() []Plan {
	scale := func(name string, system System) Plan {
		return Plan{
			Name:        name,
			Systems:     []System{system},
			Configs:     allReliableTransmission,
			SampleSizes: []int{1000},
			Frequencies: []int{100},
			Receivers:   receiverCounts,
		}
	}
	sizes := func(name string, frequency int, configs ...TransportConfig) Plan {
		return Plan{
			Name:        name,
			Systems:     allSystems,
			Configs:     configs,
			SampleSizes: sampleSizes,
			Frequencies: []int{frequency},
			Receivers:   []int{1},
		}
	}

	return []Plan{
		sizes("Different Sample Sizes MidFreq Unicast", 100, reliableUnicastSync, reliableUnicastAsync),
		sizes("Different Sample Sizes HighFreq Unicast", 1000, reliableUnicastSync, reliableUnicastAsync),
		sizes("Different Sample Sizes MidFreq Multicast", 100, reliableMulticastSync, reliableMulticastAsync),
		sizes("Different Sample Sizes HighFreq Multicast", 1000, reliableMulticastSync, reliableMulticastAsync),
		scale("How RTI DDS Scales with Number of Receivers AGAIN", rtiDDSQueue),
		scale("How FastRTPS Scales with Number of Receivers", fastRTPSRaw),
		scale("How FEP Scales with Number of Receivers", fepRaw),
	}
}
