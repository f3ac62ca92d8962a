package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

// Result carries the outcome of one external command invocation.
type Result struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out"`
}

func (r Result) OK() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Runner spawns external commands with a timeout and an environment overlay
// on top of the host environment.
type Runner interface {
	Run(ctx context.Context, program string, args []string, timeout time.Duration, env map[string]string) Result
	RunShell(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result
}

var _ Runner = (*Executor)(nil)

type Executor struct {
	tele *telemetry.Registry
}

func New(tele *telemetry.Registry) *Executor {
	if tele == nil {
		tele = telemetry.Default()
	}

	return &Executor{tele: tele}
}

func (e *Executor) Run(ctx context.Context, program string, args []string, timeout time.Duration, env map[string]string) Result {
	begin := time.Now()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, program, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch {
	case cctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.Stderr = "Command timed out."
		e.tele.IncrementCounter("commands.timeouts", 1)
	case err != nil && !isExitError(err):
		// Spawn failures (binary missing, permission) map onto the timeout
		// shape so callers see a single degraded path.
		result.TimedOut = true
		result.Stderr = "Failed to start process: " + err.Error()
		e.tele.IncrementCounter("commands.start_failures", 1)
	default:
		result.ExitCode = cmd.ProcessState.ExitCode()
		e.tele.IncrementCounter("commands.count", 1)
		if result.ExitCode != 0 {
			e.tele.IncrementCounter("commands.non_zero_exit", 1)
		}
	}
	e.tele.RecordDurationMs("commands.duration_ms", time.Since(begin).Milliseconds())

	return result
}

func (e *Executor) RunShell(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result {
	return e.Run(ctx, "/bin/bash", []string{"-lc", command}, timeout, env)
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError

	return errors.As(err, &exitErr)
}
