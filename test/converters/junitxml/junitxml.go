package junitxml

import (
	"path/filepath"
	"strings"

	"github.com/fep-sdk/fep-harness/test/junit"
	"github.com/fep-sdk/fep-harness/test/testasset"
	"github.com/pkg/errors"
)

// Converter holds data of the converter
type Converter struct {
	results []resultReader
}

// Detect return true if the test results contain JUnit XML files
func (c *Converter) Detect(files []string) bool {
	c.results = nil
	for _, file := range files {
		if isJUnitFile(file) {
			c.results = append(c.results, &fileReader{Filename: file})
		}
	}

	return len(c.results) > 0
}

func isJUnitFile(pth string) bool {
	if strings.ToLower(filepath.Ext(pth)) == ".junit" {
		return true
	}

	switch testasset.XMLRootElement(pth) {
	case "testsuites", "testsuite":
		return true
	default:
		return false
	}
}

// XML returns the normalized report of every detected file.
func (c *Converter) XML() (junit.XML, error) {
	var report junit.XML

	for _, result := range c.results {
		testSuites, err := parseTestSuites(result)
		if err != nil {
			return junit.XML{}, err
		}

		report.TestSuites = append(report.TestSuites, convert(testSuites)...)
	}

	return report, nil
}

func parseTestSuites(result resultReader) ([]TestSuite, error) {
	data, err := result.ReadAll()
	if err != nil {
		return nil, err
	}

	var testSuites TestReport
	testSuitesError := testasset.UnmarshalXML(data, &testSuites)
	if testSuitesError == nil {
		return regroupErrors(testSuites.TestSuites), nil
	}

	var testSuite TestSuite
	if err := testasset.UnmarshalXML(data, &testSuite); err != nil {
		return nil, errors.Wrap(errors.Wrap(err, string(data)), testSuitesError.Error())
	}

	return regroupErrors([]TestSuite{testSuite}), nil
}

// merges Suites->Cases->Error and Suites->Cases->SystemErr field values into one extra failure
// of type error, with 2 newlines and error category prefix between the parts.
// Failures without body get their message as body.
func regroupErrors(suites []TestSuite) []TestSuite {
	for testSuiteIndex, suite := range suites {
		for testCaseIndex, tc := range suite.TestCases {
			for i, failure := range tc.Failures {
				if len(strings.TrimSpace(failure.Value)) == 0 {
					tc.Failures[i].Value = failure.Message
				}
			}

			var messages []string

			if tc.Error != nil {
				if len(strings.TrimSpace(tc.Error.Message)) > 0 {
					messages = append(messages, "Error message:\n"+tc.Error.Message)
				}

				if len(strings.TrimSpace(tc.Error.Value)) > 0 {
					messages = append(messages, "Error value:\n"+tc.Error.Value)
				}
			}

			if len(strings.TrimSpace(tc.SystemErr)) > 0 {
				messages = append(messages, "System error:\n"+tc.SystemErr)
			}

			tc.Error, tc.SystemErr = nil, ""
			if messages != nil {
				tc.Failures = append(tc.Failures, Failure{
					Type:  "error",
					Value: strings.Join(messages, "\n\n"),
				})
			}

			suites[testSuiteIndex].TestCases[testCaseIndex] = tc
		}

		suites[testSuiteIndex].Failures += suites[testSuiteIndex].Errors
		suites[testSuiteIndex].Errors = 0
	}

	return suites
}

func convert(suites []TestSuite) []junit.TestSuite {
	var converted []junit.TestSuite
	for _, suite := range suites {
		testSuite := junit.TestSuite{
			Name:     suite.Name,
			Tests:    suite.Tests,
			Failures: suite.Failures,
			Skipped:  suite.Skipped,
			Time:     suite.Time,
		}

		for _, tc := range suite.TestCases {
			testCase := junit.TestCase{
				Name:        tc.Name,
				ClassName:   tc.ClassName,
				Requirement: tc.Requirement,
				Time:        tc.Time,
			}
			for _, failure := range tc.Failures {
				testCase.AddFailure(failure.Type, failure.Message, failure.Value)
			}
			if tc.Skipped != nil {
				testCase.Skip(tc.Skipped.Message)
			}
			if len(strings.TrimSpace(tc.SystemOut)) > 0 {
				testCase.AppendOutput(tc.SystemOut)
			}

			testSuite.TestCases = append(testSuite.TestCases, testCase)
		}

		converted = append(converted, testSuite)
	}

	return converted
}
