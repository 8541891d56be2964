package process

import (
	"context"
	"strings"
	"time"
)

const killTimeout = 10 * time.Second

// KillByName terminates every process with the given executable name, politely first and then forced.
// A non-empty host runs the kill over ssh. Failures are only logged: usually nothing was left running.
func (r runner) KillByName(ctx context.Context, name, host string) {
	goos := r.goos
	if host != "" {
		// remote stimulus hosts are linux boxes
		goos = "linux"
	}

	for i, args := range killCommands(goos, name) {
		if i > 0 {
			if err := Sleep(ctx, r.killPause); err != nil {
				return
			}
		}

		spec := RemoteSpec(host, Spec{Name: args[0], Args: args[1:], InheritEnv: true, Timeout: killTimeout})
		result, err := r.Run(ctx, spec)
		if err != nil {
			r.logger.Debugf("Failed to run %s: %s", spec.Name, err)
			continue
		}
		if result.ExitCode != 0 {
			r.logger.Debugf("%s %s: exit code %d", spec.Name, strings.Join(spec.Args, " "), result.ExitCode)
		}
	}
}

func killCommands(goos, name string) [][]string {
	if goos == "windows" {
		return [][]string{
			{"taskkill", "/im", name},
			{"taskkill", "/f", "/im", name},
		}
	}
	return [][]string{
		{"killall", name},
		{"killall", "-9", name},
	}
}

// RemoteSpec wraps spec into an ssh invocation on host. An empty host returns spec unchanged.
func RemoteSpec(host string, spec Spec) Spec {
	if host == "" {
		return spec
	}

	args := []string{host}
	if spec.Dir != "" {
		args = append(args, "cd", spec.Dir, "&&")
	}
	if len(spec.Env) > 0 {
		args = append(args, "env")
		args = append(args, spec.Env...)
	}
	args = append(args, spec.Name)
	args = append(args, spec.Args...)

	return Spec{
		Name:       "ssh",
		Args:       args,
		InheritEnv: true,
		Stdin:      spec.Stdin,
		Timeout:    spec.Timeout,
	}
}
