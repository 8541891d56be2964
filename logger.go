package main

import (
	"os"

	"github.com/bitrise-io/go-utils/log"
	logV2 "github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
)

// stepLogger writes through the go-utils log package, so its output can be moved off stdout.
type stepLogger struct{}

func newStepLogger() logV2.Logger {
	return stepLogger{}
}

func (stepLogger) Infof(format string, v ...interface{})  { log.Infof(format, v...) }
func (stepLogger) Warnf(format string, v ...interface{})  { log.Warnf(format, v...) }
func (stepLogger) Printf(format string, v ...interface{}) { log.Printf(format, v...) }
func (stepLogger) Donef(format string, v ...interface{})  { log.Donef(format, v...) }
func (stepLogger) Debugf(format string, v ...interface{}) { log.Debugf(format, v...) }
func (stepLogger) Errorf(format string, v ...interface{}) { log.Errorf(format, v...) }

func (stepLogger) TInfof(format string, v ...interface{})  { log.TInfof(format, v...) }
func (stepLogger) TWarnf(format string, v ...interface{})  { log.TWarnf(format, v...) }
func (stepLogger) TPrintf(format string, v ...interface{}) { log.TPrintf(format, v...) }
func (stepLogger) TDonef(format string, v ...interface{})  { log.TDonef(format, v...) }
func (stepLogger) TDebugf(format string, v ...interface{}) { log.TDebugf(format, v...) }
func (stepLogger) TErrorf(format string, v ...interface{}) { log.TErrorf(format, v...) }

func (stepLogger) Println() { log.Printf("") }

func (stepLogger) EnableDebugLog(enable bool) { log.SetEnableDebugLog(enable) }

// reportsToStdout is true if the command writes its JUnit report to stdout.
func reportsToStdout(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("output-file")
	return flag != nil && flag.Value.String() == ""
}

// redirectLogs keeps stdout clean for a report written there.
func redirectLogs(cmd *cobra.Command) bool {
	if !reportsToStdout(cmd) {
		return false
	}
	log.SetOutWriter(os.Stderr)
	return true
}
