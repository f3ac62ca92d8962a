package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/sampler"
)

const (
	daemonTimeout   = 3 * time.Second
	relaunchTimeout = 4 * time.Second
	cleanupTimeout  = 5 * time.Second
)

// TreeKiller is the sampler surface control actions need.
type TreeKiller interface {
	KillProcessTree(pid int64, force bool) bool
}

type KillAllResult struct {
	Action      string `json:"action"`
	KilledCount int    `json:"killed_count"`
	FailedCount int    `json:"failed_count"`
	Success     bool   `json:"success"`
}

type RestartDomainResult struct {
	Action              string `json:"action"`
	DomainID            string `json:"domain_id"`
	TerminatedProcesses int    `json:"terminated_processes"`
	FailedProcesses     int    `json:"failed_processes"`
	DaemonStopOk        bool   `json:"daemon_stop_ok"`
	DaemonStartOk       bool   `json:"daemon_start_ok"`
	Success             bool   `json:"success"`
	Details             string `json:"details,omitempty"`
}

type ClearSharedMemoryResult struct {
	Action              string `json:"action"`
	FilesystemCleanupOk bool   `json:"filesystem_cleanup_ok"`
	IpcsCleanupOk       bool   `json:"ipcs_cleanup_ok"`
	Success             bool   `json:"success"`
	Details             string `json:"details,omitempty"`
}

type RestartWorkspaceResult struct {
	Action              string `json:"action"`
	WorkspacePath       string `json:"workspace_path"`
	TerminatedProcesses int    `json:"terminated_processes"`
	FailedProcesses     int    `json:"failed_processes"`
	Relaunched          bool   `json:"relaunched"`
	RelaunchOutput      string `json:"relaunch_output,omitempty"`
	Success             bool   `json:"success"`
	Error               string `json:"error,omitempty"`
}

// Controller composes higher-level operations over a caller-supplied process
// list; the caller owns freshness.
type Controller struct {
	killer TreeKiller
	runner executor.Runner
}

func NewController(killer TreeKiller, runner executor.Runner) *Controller {
	return &Controller{killer: killer, runner: runner}
}

// KillAllRos force-kills the process tree of every ROS process in the list.
func (c *Controller) KillAllRos(processes []sampler.Record) KillAllResult {
	killed := 0
	failed := 0
	for _, proc := range processes {
		if !proc.IsROS || proc.PID <= 0 {
			continue
		}
		if c.killer.KillProcessTree(proc.PID, true) {
			killed++
		} else {
			failed++
		}
	}

	return KillAllResult{
		Action:      "kill_all_ros_processes",
		KilledCount: killed,
		FailedCount: failed,
		Success:     failed == 0,
	}
}

// RestartDomain kills every ROS process in the domain, then cycles the ros2
// daemon under the domain overlay.
func (c *Controller) RestartDomain(ctx context.Context, domainID string, processes []sampler.Record) RestartDomainResult {
	terminated := 0
	failed := 0
	for _, proc := range processes {
		if !proc.IsROS || proc.PID <= 0 {
			continue
		}
		if proc.DomainID != domainID {
			continue
		}
		if c.killer.KillProcessTree(proc.PID, true) {
			terminated++
		} else {
			failed++
		}
	}

	env := map[string]string{"ROS_DOMAIN_ID": domainID}
	stop := c.runner.Run(ctx, "ros2", []string{"daemon", "stop"}, daemonTimeout, env)
	start := c.runner.Run(ctx, "ros2", []string{"daemon", "start"}, daemonTimeout, env)

	return RestartDomainResult{
		Action:              "restart_domain",
		DomainID:            domainID,
		TerminatedProcesses: terminated,
		FailedProcesses:     failed,
		DaemonStopOk:        stop.OK(),
		DaemonStartOk:       start.OK(),
		Success:             failed == 0 && start.OK(),
		Details:             strings.TrimSpace(stop.Stderr + "\n" + start.Stderr),
	}
}

// ClearSharedMemory removes middleware shared-memory segments and stale SysV
// IPC segments. Either sub-step succeeding counts as success.
func (c *Controller) ClearSharedMemory(ctx context.Context) ClearSharedMemoryResult {
	rm := c.runner.RunShell(ctx,
		"rm -f /dev/shm/fastrtps* /dev/shm/fastdds* /dev/shm/cyclonedds* /dev/shm/iceoryx*",
		cleanupTimeout, nil)
	ipcs := c.runner.RunShell(ctx,
		"ipcs -m | awk 'NR>3 {print $2}' | xargs -r -n1 ipcrm -m",
		cleanupTimeout, nil)

	return ClearSharedMemoryResult{
		Action:              "clear_shared_memory",
		FilesystemCleanupOk: rm.OK(),
		IpcsCleanupOk:       ipcs.OK(),
		Success:             rm.OK() || ipcs.OK(),
		Details:             strings.TrimSpace(rm.Stderr + "\n" + ipcs.Stderr),
	}
}

// RestartWorkspace kills ROS processes originating from the workspace and
// optionally relaunches from its setup script.
func (c *Controller) RestartWorkspace(ctx context.Context, workspacePath, relaunchCommand string, processes []sampler.Record) RestartWorkspaceResult {
	path := strings.TrimSpace(workspacePath)
	if path == "" {
		return RestartWorkspaceResult{
			Action:        "restart_workspace",
			WorkspacePath: workspacePath,
			Success:       false,
			Error:         "Workspace path is required.",
		}
	}

	terminated := 0
	failed := 0
	for _, proc := range processes {
		if !proc.IsROS || proc.PID <= 0 {
			continue
		}
		if !strings.Contains(proc.WorkspaceOrigin, path) {
			continue
		}
		if c.killer.KillProcessTree(proc.PID, true) {
			terminated++
		} else {
			failed++
		}
	}

	relaunched := false
	var relaunchOutput string
	if cmd := strings.TrimSpace(relaunchCommand); cmd != "" {
		relaunch := c.runner.RunShell(ctx,
			fmt.Sprintf("source %s/setup.bash && %s", path, cmd),
			relaunchTimeout, nil)
		relaunched = relaunch.OK()
		relaunchOutput = strings.TrimSpace(relaunch.Stdout + "\n" + relaunch.Stderr)
	}

	return RestartWorkspaceResult{
		Action:              "restart_workspace",
		WorkspacePath:       workspacePath,
		TerminatedProcesses: terminated,
		FailedProcesses:     failed,
		Relaunched:          relaunched,
		RelaunchOutput:      relaunchOutput,
		Success:             failed == 0,
	}
}
