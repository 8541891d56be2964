package main

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitrise-io/go-steputils/stepconf"
	"github.com/bitrise-io/go-utils/log"
	"github.com/fep-sdk/fep-harness/mocks"
	"github.com/fep-sdk/fep-harness/process"
	"github.com/fep-sdk/fep-harness/results"
	"github.com/fep-sdk/fep-harness/test/junit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, h *harness, args ...string) (string, error) {
	root := newRootCmd(h)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func newTestHarness(config Config) (*harness, *mocks.Runner) {
	runner := new(mocks.Runner)
	return &harness{
		config: config,
		logger: newStepLogger(),
		runner: runner,
		goos:   "linux",
	}, runner
}

func TestParseConfig(t *testing.T) {
	t.Setenv("FEP_MODULE_DOMAIN", "42")
	t.Setenv("FEP_TRANSMISSION_DRIVER", "RTI_DDS")
	t.Setenv("FEP_HARNESS_DEBUG", "true")
	t.Setenv("FEP_REPORT_ENDPOINT", "https://reports.example.com/api")
	t.Setenv("FEP_REPORT_TOKEN", "token")
	t.Setenv("FEP_REPORT_SECRETS", "first\n\n  second  \n")
	t.Setenv("FEP_REPORT_REDACT_FILES", "")

	config, err := parseConfig()
	require.NoError(t, err)
	assert.Equal(t, Config{
		ModuleDomain:       42,
		TransmissionDriver: "RTI_DDS",
		DebugMode:          true,
		ReportEndpoint:     "https://reports.example.com/api",
		ReportToken:        stepconf.Secret("token"),
		ReportSecrets:      stepconf.Secret("first\n\n  second  \n"),
	}, config)
	assert.Equal(t, []string{"first", "second"}, config.Secrets())
}

func TestWrongArgumentCount(t *testing.T) {
	tests := [][]string{
		{"interface-test", "exe", "."},
		{"bus-compat", "exe", ".", "1", "linux"},
		{"merge", "."},
		{"leakcheck"},
		{"plot", "a.csv", "b.csv"},
		{"compare", "extra"},
	}

	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			h, runner := newTestHarness(Config{})

			out, err := execute(t, h, args...)
			require.Error(t, err)
			assert.Contains(t, out, "Usage:")
			runner.AssertExpectations(t)
		})
	}
}

func TestMeasure_UnknownProfile(t *testing.T) {
	h, _ := newTestHarness(Config{})

	out, err := execute(t, h, "measure", "MacDefault")
	require.ErrorContains(t, err, "No config defined")
	assert.NotContains(t, out, "Usage:")
}

// captureStdout points stdout, and the log output still on it, into a pipe.
func captureStdout(t *testing.T) (*os.File, *os.File) {
	stdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w
	log.SetOutWriter(w)
	t.Cleanup(func() {
		os.Stdout = stdout
		log.SetOutWriter(stdout)
		log.SetEnableDebugLog(false)
		_ = r.Close()
	})
	return r, w
}

func TestLeakcheck_ReportOnStdout(t *testing.T) {
	h, runner := newTestHarness(Config{})
	runner.On("Run", mock.Anything, mock.MatchedBy(func(spec process.Spec) bool {
		return len(spec.Args) == 1 && spec.Args[0] == "--gtest_list_tests"
	})).Return(process.Result{Stdout: "Timing.\n  Tick\n"}, nil)
	runner.On("Run", mock.Anything, mock.MatchedBy(func(spec process.Spec) bool {
		return spec.Name == "valgrind"
	})).Return(process.Result{}, nil)

	r, w := captureStdout(t)
	_, err := execute(t, h, "leakcheck", "--build-number", "1234", "-v", "./tester_timing")
	require.NoError(t, w.Close())
	require.NoError(t, err)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "Build number")
	assert.True(t, strings.HasPrefix(string(out), junit.Header), "stdout: %s", out)
	assert.True(t, strings.HasSuffix(string(out), "</testsuites>\n"), "stdout: %s", out)

	var report junit.XML
	require.NoError(t, xml.Unmarshal(out, &report))
	assert.Equal(t, "tester_timing", report.Name)
	require.Len(t, report.TestSuites, 1)
	assert.Equal(t, "Tick", report.TestSuites[0].TestCases[0].Name)
	runner.AssertExpectations(t)
}

func TestMerge(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	data, err := os.ReadFile("./test/converters/junitxml/testdata/testsuite.xml")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bus_compat"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bus_compat", "report.xml"), data, 0644))

	output := filepath.Join(t.TempDir(), "merged.xml")
	h, _ := newTestHarness(Config{})

	_, err = execute(t, h, "merge", dir, output)
	require.NoError(t, err)

	merged, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(merged), `<testsuites name="reports">`)
	assert.Contains(t, string(merged), `<testsuite name="bus_compatibility"`)
}

func TestPlot_ComparisonCSV(t *testing.T) {
	base := filepath.Join(t.TempDir(), "DDS_Scale___100_Hz")
	require.NoError(t, results.WriteCSVFile(base+".csv", results.Comparison{Lines: []results.Line{{
		Legend: "DDS(Reliable/Unicast/Sync) [Sample Size: 1000] %0",
		Points: []results.Point{
			{X: 1, Summary: results.Summary{Sent: 10, Received: 10, Usr: results.RTT{Min: 100, Avg: 150, Max: 300}}},
			{X: 2, Summary: results.Summary{Sent: 10, Received: 10, Usr: results.RTT{Min: 120, Avg: 180, Max: 400}}},
		},
	}}}))

	h, _ := newTestHarness(Config{})
	_, err := execute(t, h, "plot", base+".csv")
	require.NoError(t, err)
	assert.FileExists(t, base+".png")
	assert.FileExists(t, base+".pdf")
}

func TestCompare_ReplotWithMetrics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, results.SaveComparisons(filepath.Join(dir, "plots.json"), []results.Comparison{{
		Title:  "DDS Scale @ 100 Hz",
		XLabel: "Number of Receivers [#]",
		YLabel: "RTT [us]",
		X:      []int{1},
		Lines: []results.Line{{
			Legend: "DDS(Reliable/Unicast/Sync) [Sample Size: 1000] %0",
			Points: []results.Point{{X: 1, Summary: results.Summary{Sent: 10, Received: 9, Lost: 1, Usr: results.RTT{Min: 1, Avg: 2, Max: 3}}}},
		}},
	}}))

	metricsFile := filepath.Join(dir, "fep_compare.prom")
	h, runner := newTestHarness(Config{})

	_, err := execute(t, h, "compare", "--replot", "--output-dir", dir, "--metrics-file", metricsFile)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "DDS_Scale___100_Hz.png"))
	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "fep_compare_packets")
	runner.AssertNotCalled(t, "Run")
}

func TestPublish_WithoutEndpoint(t *testing.T) {
	h, _ := newTestHarness(Config{})

	_, err := execute(t, h, "publish", t.TempDir())
	require.EqualError(t, err, "FEP_REPORT_ENDPOINT is not set")
}

func TestRedactReports(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.xml")
	require.NoError(t, os.WriteFile(reportPath, []byte("<system-out>token=SECRET</system-out>\n"), 0644))
	imagePath := filepath.Join(dir, "chart.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("SECRET"), 0644))

	h, _ := newTestHarness(Config{ReportSecrets: "SECRET"})
	require.NoError(t, h.redactReports(dir))

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "<system-out>token=[REDACTED]</system-out>\n", string(data))

	data, err = os.ReadFile(imagePath)
	require.NoError(t, err)
	assert.Equal(t, "SECRET", string(data))
}
