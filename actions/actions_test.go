package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/executor/mocks"
	"github.com/00PrabalK00/RosScope/sampler"
)

type fakeKiller struct {
	killed  []int64
	failPid int64
}

func (f *fakeKiller) KillProcessTree(pid int64, force bool) bool {
	f.killed = append(f.killed, pid)

	return pid != f.failPid
}

func rosProcs() []sampler.Record {
	return []sampler.Record{
		{PID: 100, IsROS: true, DomainID: "0", WorkspaceOrigin: "/ws/install/a"},
		{PID: 200, IsROS: true, DomainID: "7", WorkspaceOrigin: "/opt/ros/humble"},
		{PID: 300, IsROS: false, DomainID: "0"},
	}
}

func TestKillAllRos(t *testing.T) {
	killer := &fakeKiller{}
	c := NewController(killer, new(mocks.MockRunner))

	res := c.KillAllRos(rosProcs())
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.KilledCount)
	assert.Equal(t, []int64{100, 200}, killer.killed)
}

func TestKillAllRosReportsFailures(t *testing.T) {
	killer := &fakeKiller{failPid: 200}
	c := NewController(killer, new(mocks.MockRunner))

	res := c.KillAllRos(rosProcs())
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.KilledCount)
	assert.Equal(t, 1, res.FailedCount)
}

func TestRestartDomainKillsOnlyDomainAndCyclesDaemon(t *testing.T) {
	killer := &fakeKiller{}
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, "ros2", []string{"daemon", "stop"}, mock.Anything,
		map[string]string{"ROS_DOMAIN_ID": "7"}).Return(executor.Result{})
	runner.On("Run", mock.Anything, "ros2", []string{"daemon", "start"}, mock.Anything,
		map[string]string{"ROS_DOMAIN_ID": "7"}).Return(executor.Result{})

	c := NewController(killer, runner)
	res := c.RestartDomain(context.Background(), "7", rosProcs())
	require.True(t, res.Success)
	assert.Equal(t, []int64{200}, killer.killed)
	assert.Equal(t, 1, res.TerminatedProcesses)
	assert.True(t, res.DaemonStopOk)
	assert.True(t, res.DaemonStartOk)
	runner.AssertExpectations(t)
}

func TestRestartDomainFailsWhenDaemonStartFails(t *testing.T) {
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, "ros2", []string{"daemon", "stop"}, mock.Anything, mock.Anything).
		Return(executor.Result{})
	runner.On("Run", mock.Anything, "ros2", []string{"daemon", "start"}, mock.Anything, mock.Anything).
		Return(executor.Result{ExitCode: 1, Stderr: "daemon refused"})

	c := NewController(&fakeKiller{}, runner)
	res := c.RestartDomain(context.Background(), "0", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Details, "daemon refused")
}

func TestClearSharedMemoryEitherStepSuffices(t *testing.T) {
	runner := new(mocks.MockRunner)
	runner.On("RunShell", mock.Anything, mock.MatchedBy(func(cmd string) bool {
		return len(cmd) > 0 && cmd[:5] == "rm -f"
	}), mock.Anything, mock.Anything).Return(executor.Result{})
	runner.On("RunShell", mock.Anything, mock.MatchedBy(func(cmd string) bool {
		return len(cmd) > 4 && cmd[:4] == "ipcs"
	}), mock.Anything, mock.Anything).Return(executor.Result{ExitCode: 1, Stderr: "ipcs missing"})

	c := NewController(&fakeKiller{}, runner)
	res := c.ClearSharedMemory(context.Background())
	assert.True(t, res.Success)
	assert.True(t, res.FilesystemCleanupOk)
	assert.False(t, res.IpcsCleanupOk)
}

func TestClearSharedMemoryBothFail(t *testing.T) {
	runner := new(mocks.MockRunner)
	runner.On("RunShell", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(executor.Result{ExitCode: 1})

	c := NewController(&fakeKiller{}, runner)
	assert.False(t, c.ClearSharedMemory(context.Background()).Success)
}

func TestRestartWorkspaceRequiresPath(t *testing.T) {
	c := NewController(&fakeKiller{}, new(mocks.MockRunner))
	res := c.RestartWorkspace(context.Background(), "  ", "", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "Workspace path is required.", res.Error)
}

func TestRestartWorkspaceKillsMatchingAndRelaunches(t *testing.T) {
	killer := &fakeKiller{}
	runner := new(mocks.MockRunner)
	runner.On("RunShell", mock.Anything, "source /ws/install/a/setup.bash && ros2 launch demo bringup.launch.py",
		mock.Anything, mock.Anything).Return(executor.Result{Stdout: "launched"})

	c := NewController(killer, runner)
	res := c.RestartWorkspace(context.Background(), "/ws/install/a", "ros2 launch demo bringup.launch.py", rosProcs())
	require.True(t, res.Success)
	assert.Equal(t, []int64{100}, killer.killed)
	assert.True(t, res.Relaunched)
	assert.Contains(t, res.RelaunchOutput, "launched")
}

func TestRestartWorkspaceWithoutRelaunch(t *testing.T) {
	c := NewController(&fakeKiller{}, new(mocks.MockRunner))
	res := c.RestartWorkspace(context.Background(), "/nope", "", rosProcs())
	assert.True(t, res.Success)
	assert.Zero(t, res.TerminatedProcesses)
	assert.False(t, res.Relaunched)
}
