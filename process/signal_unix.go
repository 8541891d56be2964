//go:build !windows

package process

import "syscall"

// terminateSignal asks a process to shut down. WaitDelay kills it if it does not.
var terminateSignal = syscall.SIGTERM
