package invoker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shSpec(script string) CommandSpec {
	return CommandSpec{Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestInvokeSuccess(t *testing.T) {
	res, err := Invoke(context.Background(), shSpec("echo deployed"), "/tmp/none", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "deployed\n", res.Stdout)
	assert.False(t, res.TimedOut)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestInvokeToolFailure(t *testing.T) {
	res, err := Invoke(context.Background(), shSpec("echo nope >&2; exit 3"), "/tmp/none", 10*time.Second)
	require.NoError(t, err, "a tool-reported failure is not an invocation error")
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "nope\n", res.Stderr)
}

func TestInvokeTimeout(t *testing.T) {
	start := time.Now()
	res, err := Invoke(context.Background(), shSpec("sleep 30"), "/tmp/none", 200*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second, "child must be terminated, not awaited")
}

func TestInvokeTimeoutKillsDescendants(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	spec := shSpec(`sleep 60 & echo $! > ` + pidFile + `; wait`)

	start := time.Now()
	_, err := Invoke(context.Background(), spec, "/tmp/none", 200*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second, "termination must not wait out the grace period")

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return processGone(pid) }, 2*time.Second, 50*time.Millisecond,
		"background child of the tool must not survive as an orphan")
}

func TestInvokeSpawnFailure(t *testing.T) {
	spec := CommandSpec{Path: "/nonexistent/deploygate-no-such-tool"}
	res, err := Invoke(context.Background(), spec, "/tmp/none", time.Second)
	assert.Nil(t, res)

	var spawnErr *SpawnError
	assert.True(t, errors.As(err, &spawnErr))
}

func TestInvokeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Invoke(ctx, shSpec("sleep 30"), "/tmp/none", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must terminate the child promptly")
}

// processGone reports whether pid no longer exists or has exited and awaits
// reaping. Signal 0 alone would count a zombie as alive.
func processGone(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return true
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(stat))
	return len(fields) > 2 && fields[2] == "Z"
}

func TestInvokeArtifactInjection(t *testing.T) {
	spec := CommandSpec{
		Path:        "/bin/sh",
		Args:        []string{"-c", `printf '%s|%s' "$1" "$CONFIG_PATH"`, "sh", ArtifactPlaceholder},
		ArtifactEnv: "CONFIG_PATH",
	}
	res, err := Invoke(context.Background(), spec, "/run/private/creds", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "/run/private/creds|/run/private/creds", res.Stdout)
}

func TestInvokeEnvOverlay(t *testing.T) {
	spec := shSpec(`printf '%s' "$DEPLOY_ENV"`)
	spec.Env = map[string]string{"DEPLOY_ENV": "prod"}

	res, err := Invoke(context.Background(), spec, "/tmp/none", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "prod", res.Stdout)
}
