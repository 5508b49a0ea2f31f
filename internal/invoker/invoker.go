// Package invoker runs the external deploy tool as a bounded child process.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ArtifactPlaceholder in an argument is replaced with the artifact path.
const ArtifactPlaceholder = "{artifact}"

// TimeoutExitCode is the exit sentinel recorded when the tool is terminated
// for exceeding its deadline.
const TimeoutExitCode = -1

// killGracePeriod is how long a signalled process group gets before SIGKILL.
const killGracePeriod = 2 * time.Second

// ErrTimeout reports that the child ran past the configured timeout and was
// terminated.
var ErrTimeout = errors.New("deploy tool timed out")

// SpawnError reports that the tool could not be started at all (not found,
// permission denied). Distinguishable from a tool-reported failure so the
// ledger can tell "deploy rejected" apart from "tool could not run".
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawning deploy tool: %v", e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// CommandSpec describes the external deploy command. Opaque to the
// orchestrator beyond the artifact injection points.
type CommandSpec struct {
	Path        string
	Args        []string
	Env         map[string]string // overlay on the parent environment
	ArtifactEnv string            // env var that receives the artifact path
	Dir         string
}

// Result captures one invocation of the deploy tool.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Invoke runs the tool with the artifact path injected via the spec's
// expected argument placeholder and/or environment variable. A tool that
// runs and exits non-zero is not an invocation error; the result carries the
// exit code. Timeout terminates the child's process group (SIGTERM, then
// SIGKILL after a short grace) and returns ErrTimeout. The artifact's
// contents are never read or logged here.
func Invoke(ctx context.Context, spec CommandSpec, artifactPath string, timeout time.Duration) (*Result, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, len(spec.Args))
	for i, a := range spec.Args {
		args[i] = strings.ReplaceAll(a, ArtifactPlaceholder, artifactPath)
	}

	cmd := exec.CommandContext(tctx, spec.Path, args...)
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(spec, artifactPath)

	// Run the tool in its own process group so termination reaches every
	// descendant, not just the immediate child. A tool that shells out must
	// not leave orphans behind after a timeout or cancellation.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var killTimer *time.Timer
	cmd.Cancel = func() error {
		pgid := cmd.Process.Pid
		if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
			return cmd.Process.Kill()
		}
		killTimer = time.AfterFunc(killGracePeriod, func() {
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		})
		return nil
	}
	cmd.WaitDelay = killGracePeriod + time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if killTimer != nil {
		killTimer.Stop()
	}
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		return res, nil
	case tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		res.ExitCode = TimeoutExitCode
		res.TimedOut = true
		return res, ErrTimeout
	case ctx.Err() != nil:
		res.ExitCode = TimeoutExitCode
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return nil, &SpawnError{Err: err}
}

func buildEnv(spec CommandSpec, artifactPath string) []string {
	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	if spec.ArtifactEnv != "" {
		env = append(env, spec.ArtifactEnv+"="+artifactPath)
	}
	return env
}
