package executor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	requireUnix(t)
	tele := telemetry.New()
	e := New(tele)

	res := e.Run(context.Background(), "/bin/sh", []string{"-c", "echo out; echo err >&2"}, 5*time.Second, nil)
	require.True(t, res.OK())
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, int64(1), tele.Snapshot().Counters["commands.count"])
}

func TestRunNonZeroExit(t *testing.T) {
	requireUnix(t)
	tele := telemetry.New()
	e := New(tele)

	res := e.Run(context.Background(), "/bin/sh", []string{"-c", "exit 3"}, 5*time.Second, nil)
	assert.False(t, res.OK())
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, int64(1), tele.Snapshot().Counters["commands.non_zero_exit"])
}

func TestRunTimeout(t *testing.T) {
	requireUnix(t)
	tele := telemetry.New()
	e := New(tele)

	res := e.Run(context.Background(), "/bin/sh", []string{"-c", "sleep 5"}, 100*time.Millisecond, nil)
	assert.True(t, res.TimedOut)
	assert.False(t, res.OK())
	assert.Equal(t, "Command timed out.", res.Stderr)
	assert.Equal(t, int64(1), tele.Snapshot().Counters["commands.timeouts"])
}

func TestRunStartFailure(t *testing.T) {
	tele := telemetry.New()
	e := New(tele)

	res := e.Run(context.Background(), "/nonexistent/rosscope-test-binary", nil, time.Second, nil)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Stderr, "Failed to start process")
	assert.Equal(t, int64(1), tele.Snapshot().Counters["commands.start_failures"])
}

func TestRunEnvOverlay(t *testing.T) {
	requireUnix(t)
	e := New(telemetry.New())

	res := e.Run(
		context.Background(),
		"/bin/sh", []string{"-c", "printf %s \"$ROS_DOMAIN_ID\""},
		5*time.Second,
		map[string]string{"ROS_DOMAIN_ID": "42"},
	)
	require.True(t, res.OK())
	assert.Equal(t, "42", res.Stdout)
}

func TestRunShellWrapsLoginShell(t *testing.T) {
	requireUnix(t)
	e := New(telemetry.New())

	res := e.RunShell(context.Background(), "echo shell-ok", 5*time.Second, nil)
	require.True(t, res.OK())
	assert.Contains(t, res.Stdout, "shell-ok")
}
