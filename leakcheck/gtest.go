package leakcheck

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

var (
	suiteLineRe = regexp.MustCompile(`^(\S+)\.`)
	caseLineRe  = regexp.MustCompile(`^\s+(\S*)`)
)

// TestCase is one gtest case, addressable with --gtest_filter=<Suite>.<Name>.
type TestCase struct {
	Suite string
	Name  string
}

// Filter ...
func (c TestCase) Filter() string {
	return c.Suite + "." + c.Name
}

// TestSuite groups the cases in listing order.
type TestSuite struct {
	Name  string
	Cases []string
}

// ParseTestList parses the output of a gtest binary run with --gtest_list_tests.
//
// A line starting with "<Suite>." opens a suite, an indented line adds a case to the open suite
// and any other line closes it. Value- and type-parameter comments ("# GetParam() = 1") are dropped.
func ParseTestList(out string) ([]TestSuite, error) {
	var suites []TestSuite
	current := -1

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")

		if match := suiteLineRe.FindStringSubmatch(line); match != nil {
			suites = append(suites, TestSuite{Name: match[1]})
			current = len(suites) - 1
			continue
		}

		if match := caseLineRe.FindStringSubmatch(line); match != nil {
			if current < 0 {
				return nil, fmt.Errorf("test case (%s) listed outside of a test suite", strings.TrimSpace(line))
			}
			if match[1] != "" {
				suites[current].Cases = append(suites[current].Cases, match[1])
			}
			continue
		}

		current = -1
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return suites, nil
}
