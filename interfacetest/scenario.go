package interfacetest

import (
	"fmt"
	"strconv"
	"strings"
)

// Expectation is what a scenario expects of the traffic between server and client.
type Expectation int

const (
	// ExpectDelivery expects most of the sent packets to arrive.
	ExpectDelivery Expectation = iota
	// ExpectIsolation expects sent packets and none received.
	ExpectIsolation
	// ExpectSkip expects one of the interfaces to be rejected.
	ExpectSkip
)

// Scenario binds server and client to a pair of network interfaces.
type Scenario struct {
	Name            string
	ServerInterface string
	ClientInterface string
	Expect          Expectation
}

// DefaultScenarios ...
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "test01_using_same_interface", ServerInterface: "Ethernet-0", ClientInterface: "Ethernet-0", Expect: ExpectDelivery},
		{Name: "test02_using_different_interfaces", ServerInterface: "Ethernet-0", ClientInterface: "Ethernet-1", Expect: ExpectIsolation},
		{Name: "test03_using_unavailable_interfaces", ServerInterface: "Ethernet-0", ClientInterface: "Ethernet-1000", Expect: ExpectSkip},
		{Name: "test04_using_invalid_interfaces", ServerInterface: "Ethernet-0", ClientInterface: "XXYYZZ_No_Such_Interface", Expect: ExpectSkip},
	}
}

// Counts are the packet counters the client prints as "<x>;<sent>;<received>".
type Counts struct {
	Sent     int
	Received int
}

// ParseCounts ...
func ParseCounts(stdout string) (Counts, error) {
	line := strings.TrimSpace(stdout)
	if i := strings.LastIndex(line, "\n"); i >= 0 {
		line = strings.TrimSpace(line[i+1:])
	}

	fields := strings.Split(line, ";")
	if len(fields) < 3 {
		return Counts{}, fmt.Errorf("unexpected client output: %q", stdout)
	}

	sent, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return Counts{}, fmt.Errorf("invalid sent packet count (%s): %w", fields[1], err)
	}
	received, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return Counts{}, fmt.Errorf("invalid received packet count (%s): %w", fields[2], err)
	}

	return Counts{Sent: sent, Received: received}, nil
}

// Violation describes the first unmet expectation, checked in order. It is empty if all are met.
func (s Scenario) Violation(c Counts) string {
	switch s.Expect {
	case ExpectDelivery:
		switch {
		case c.Sent <= 0:
			return fmt.Sprintf("sent_packets=%d <= 0", c.Sent)
		case c.Received <= 0:
			return fmt.Sprintf("received_packets=%d <= 0", c.Received)
		case c.Received <= c.Sent/2:
			// at least half of the packets have to arrive
			return fmt.Sprintf("received_packets=%d <= sent_packets/2=%d", c.Received, c.Sent/2)
		}
	case ExpectIsolation:
		switch {
		case c.Sent <= 0:
			return fmt.Sprintf("sent_packets=%d <= 0", c.Sent)
		case c.Received != 0:
			return fmt.Sprintf("received_packets=%d != 0", c.Received)
		}
	case ExpectSkip:
		return fmt.Sprintf("interface pair %s/%s was accepted", s.ServerInterface, s.ClientInterface)
	}
	return ""
}
