// Package process spawns the compiled stimulus and test executables the harness drives.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/command"
	"github.com/bitrise-io/go-utils/errorutil"
	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/bitrise-io/go-utils/v2/log"
)

// waitDelay bounds how long Wait blocks on output pipes held open by grandchildren.
const waitDelay = 2 * time.Second

// Spec describes one invocation of an executable.
type Spec struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the current environment if InheritEnv is set,
	// otherwise they form the whole environment of the child.
	Env        []string
	InheritEnv bool
	Stdin      io.Reader
	// Timeout of zero means no deadline.
	Timeout time.Duration
}

// Result is the observable outcome of a finished process.
// A nonzero ExitCode is not an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Success ...
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Handle is a started process.
type Handle interface {
	Wait() (Result, error)
	Terminate() error
	PrintableCommandArgs() string
}

// Runner starts processes and cleans up strays.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
	Start(ctx context.Context, spec Spec) (Handle, error)
	KillByName(ctx context.Context, name, host string)
}

type runner struct {
	logger    log.Logger
	goos      string
	killPause time.Duration
}

// NewRunner ...
func NewRunner(goos string, logger log.Logger) Runner {
	return runner{
		logger:    logger,
		goos:      goos,
		killPause: 100 * time.Millisecond,
	}
}

// Run starts the process and waits for it to exit.
func (r runner) Run(ctx context.Context, spec Spec) (Result, error) {
	h, err := r.Start(ctx, spec)
	if err != nil {
		return Result{}, err
	}
	return h.Wait()
}

// Start starts the process without waiting for it.
// Cancelling ctx or reaching Spec.Timeout terminates the process, it is killed
// if still running waitDelay later.
func (r runner) Start(ctx context.Context, spec Spec) (Handle, error) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	execCmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	execCmd.Cancel = func() error {
		return execCmd.Process.Signal(terminateSignal)
	}
	execCmd.WaitDelay = waitDelay

	h := &handle{
		ctx:    runCtx,
		cancel: cancel,
		logger: r.logger,
	}

	cmd := command.NewWithCmd(execCmd)
	cmd.SetDir(spec.Dir)
	if spec.InheritEnv {
		cmd.SetEnvs(append(os.Environ(), spec.Env...)...)
	} else if spec.Env != nil {
		cmd.SetEnvs(spec.Env...)
	}
	if spec.Stdin != nil {
		cmd.SetStdin(spec.Stdin)
	}
	cmd.SetStdout(&h.stdout)
	cmd.SetStderr(&h.stderr)
	h.cmd = cmd

	r.logger.Debugf("$ %s", cmd.PrintableCommandArgs())

	h.started = time.Now()
	if err := execCmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}

	return h, nil
}

type handle struct {
	cmd     *command.Model
	ctx     context.Context
	cancel  context.CancelFunc
	logger  log.Logger
	started time.Time

	stdout bytes.Buffer
	stderr bytes.Buffer

	once   sync.Once
	result Result
	err    error
}

// Wait blocks until the process exits. It is safe to call more than once.
func (h *handle) Wait() (Result, error) {
	h.once.Do(func() {
		err := h.cmd.GetCmd().Wait()
		timedOut := errors.Is(h.ctx.Err(), context.DeadlineExceeded)
		h.cancel()

		h.result = Result{
			Stdout:   h.stdout.String(),
			Stderr:   h.stderr.String(),
			TimedOut: timedOut,
			Duration: time.Since(h.started),
		}
		h.result.ExitCode, h.err = exitCode(h.cmd.GetCmd(), err)
		if h.err == nil && h.result.ExitCode != 0 {
			h.logger.Debugf("%s exited with %d (timed out: %v)", h.cmd.PrintableCommandArgs(), h.result.ExitCode, timedOut)
		}
	})
	return h.result, h.err
}

// Terminate sends the process a termination signal. Wait still has to be called to reap it.
func (h *handle) Terminate() error {
	h.cancel()
	return nil
}

func (h *handle) PrintableCommandArgs() string {
	return h.cmd.PrintableCommandArgs()
}

func exitCode(cmd *exec.Cmd, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	// the process itself exited, only its leftover children kept the pipes open
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if errorutil.IsExitStatusError(err) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), nil
	}

	return -1, fmt.Errorf("failed to wait for %s: %w", cmd.Path, err)
}

// AbsPaths makes the non-empty paths absolute against the current directory.
// Spec.Name has to be absolute whenever Spec.Dir is set, exec resolves a relative Name against Dir.
func AbsPaths(paths ...*string) error {
	for _, pth := range paths {
		if *pth == "" {
			continue
		}

		abs, err := pathutil.AbsPath(*pth)
		if err != nil {
			return err
		}
		*pth = abs
	}
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
