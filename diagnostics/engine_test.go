package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/executor/mocks"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
	"github.com/00PrabalK00/RosScope/sampler"
	"github.com/00PrabalK00/RosScope/sysmon"
)

type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time { return c.current }

func (c *testClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestEngine(runner executor.Runner) (*Engine, *testClock) {
	clock := &testClock{current: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	e := New(runner, telemetry.New(), WithClock(clock.now))

	return e, clock
}

func quietRunner() *mocks.MockRunner {
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(executor.Result{ExitCode: 1})

	return runner
}

func TestMemoryLeakDetectionCandidate(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	series := []float64{1.0, 1.1, 1.2, 1.3, 1.5, 1.7, 2.0, 2.3, 2.7, 3.1}

	var report MemoryLeakReport
	for _, sample := range series {
		report = e.memoryLeakDetection(&EvalContext{
			Processes: []sampler.Record{{PID: 1, IsROS: true, NodeName: "leaky", MemoryPercent: sample}},
		})
	}

	require.Len(t, report.LeakCandidates, 1)
	candidate := report.LeakCandidates[0]
	assert.Equal(t, "leaky", candidate.Node)
	assert.Greater(t, candidate.Slope, 0.03)
	assert.InDelta(t, 2.1, candidate.DeltaPercent, 1e-9)
}

func TestMemoryLeakDetectionPurgesDepartedNodes(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	e.memoryLeakDetection(&EvalContext{
		Processes: []sampler.Record{{PID: 1, IsROS: true, NodeName: "gone", MemoryPercent: 1}},
	})
	e.memoryLeakDetection(&EvalContext{
		Processes: []sampler.Record{{PID: 2, IsROS: true, NodeName: "stay", MemoryPercent: 1}},
	})
	_, hasGone := e.memoryHistoryByNode["gone"]
	assert.False(t, hasGone)
	_, hasStay := e.memoryHistoryByNode["stay"]
	assert.True(t, hasStay)
}

func TestParameterDriftDetectsChange(t *testing.T) {
	e, _ := newTestEngine(quietRunner())

	first := e.parameterDrift(&EvalContext{Parameters: map[string]string{"/amcl": "alpha: 1"}})
	assert.Zero(t, first.ChangeCount)

	second := e.parameterDrift(&EvalContext{Parameters: map[string]string{"/amcl": "alpha: 2"}})
	require.Equal(t, 1, second.ChangeCount)
	assert.Equal(t, "/amcl", second.ChangedNodes[0].Node)
	assert.True(t, second.ChangedNodes[0].SilentReloadSuspected)
	assert.NotEqual(t, second.ChangedNodes[0].OldHash, second.ChangedNodes[0].NewHash)

	// Node dropped from the input drops from the hash store too.
	e.parameterDrift(&EvalContext{Parameters: map[string]string{}})
	assert.Empty(t, e.parameterHashesByNode)
}

func TestQoSMismatchDetector(t *testing.T) {
	report := qosMismatchDetector(&EvalContext{Graph: inspector.Graph{
		TopicQoS: map[string]inspector.TopicQoS{
			"/scan": {QoSProfiles: []inspector.QoSProfile{
				{Reliability: "RELIABLE", Durability: "VOLATILE"},
				{Reliability: "BEST_EFFORT", Durability: "VOLATILE"},
			}},
			"/tf": {QoSProfiles: []inspector.QoSProfile{
				{Reliability: "RELIABLE", Durability: "VOLATILE"},
				{Reliability: "RELIABLE", Durability: "VOLATILE"},
			}},
		},
	}})
	require.Equal(t, 1, report.MismatchCount)
	assert.Equal(t, "/scan", report.Mismatches[0].Topic)
	assert.Equal(t, 2, report.Mismatches[0].ProfileCount)
}

func TestLifecycleTimelineTransitionsAndStuck(t *testing.T) {
	e, clock := newTestEngine(quietRunner())
	ctxActive := &EvalContext{TfNav2: inspector.TfNav2{Runtime: inspector.RuntimeStatus{
		LifecycleStates: []inspector.LifecycleState{{Node: "/amcl", State: "configuring"}},
	}}}

	report := e.lifecycleTimeline(ctxActive)
	require.Len(t, report.Transitions, 1)
	assert.Equal(t, "", report.Transitions[0].PreviousState)
	assert.Equal(t, "configuring", report.Transitions[0].NewState)
	assert.Empty(t, report.StuckTransitionalNodes)

	// After 16 s in a transitional state the node is stuck.
	clock.advance(16 * time.Second)
	report = e.lifecycleTimeline(ctxActive)
	require.Len(t, report.StuckTransitionalNodes, 1)
	assert.Equal(t, "/amcl", report.StuckTransitionalNodes[0].Node)
	assert.Greater(t, report.StuckTransitionalNodes[0].DurationMs, int64(stuckTransitionalMs))

	// A state change resets the dwell clock.
	report = e.lifecycleTimeline(&EvalContext{TfNav2: inspector.TfNav2{Runtime: inspector.RuntimeStatus{
		LifecycleStates: []inspector.LifecycleState{{Node: "/amcl", State: "active"}},
	}}})
	require.Len(t, report.Transitions, 1)
	assert.Equal(t, "configuring", report.Transitions[0].PreviousState)
	assert.Empty(t, report.StuckTransitionalNodes)
}

func TestExecutorLoadMonitor(t *testing.T) {
	report := executorLoadMonitor(&EvalContext{
		Processes: []sampler.Record{
			{PID: 1, IsROS: true, NodeName: "busy", CPUPercent: 90},
			{PID: 2, IsROS: true, NodeName: "thready", Threads: 100},
			{PID: 3, IsROS: true, NodeName: "calm", CPUPercent: 10},
			{PID: 4, IsROS: false, CPUPercent: 99},
		},
		Graph: inspector.Graph{PublishersWithoutSubscribers: []string{"/a", "/b"}},
	})
	require.Len(t, report.OverloadedExecutors, 2)
	assert.Equal(t, 2*10+2*3, report.CallbackQueueDelayMs)
}

func TestCrossCorrelationTimeline(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	report := e.crossCorrelationTimeline(&EvalContext{
		System: sysmon.Snapshot{CPU: sysmon.CPUStat{UsagePercent: 92}},
		Graph:  inspector.Graph{PublishersWithoutSubscribers: []string{"/x"}},
	})
	require.Len(t, report.Timeline, 1)
	require.Len(t, report.CorrelatedEvents, 1)
	assert.Equal(t, "CPU spike correlated with ROS degradation", report.CorrelatedEvents[0].Inference)

	// Quiet sample adds a timeline row but no correlation.
	report = e.crossCorrelationTimeline(&EvalContext{
		System: sysmon.Snapshot{CPU: sysmon.CPUStat{UsagePercent: 10}},
	})
	assert.Len(t, report.Timeline, 2)
	assert.Len(t, report.CorrelatedEvents, 1)
}

func TestDDSParticipantStorm(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	first := e.ddsParticipantInspector(&EvalContext{
		Domains: []inspector.DomainDetail{{DomainID: "0", RosProcessCount: 2}},
	})
	assert.Empty(t, first.DiscoveryStorms)

	second := e.ddsParticipantInspector(&EvalContext{
		Domains: []inspector.DomainDetail{{DomainID: "0", RosProcessCount: 12}},
		Health:  health.Report{ZombieNodes: []health.ZombieNode{{Node: "/z"}}},
	})
	require.Len(t, second.DiscoveryStorms, 1)
	assert.Equal(t, 2, second.DiscoveryStorms[0].Previous)
	assert.Equal(t, 12, second.DiscoveryStorms[0].Current)
	assert.Equal(t, 1, second.GhostParticipants)
}

func TestNetworkSaturationMonitor(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	iface := sysmon.NetworkInterface{Name: "eth0", RxBytes: 0, TxBytes: 0}
	e.networkSaturationMonitor(&EvalContext{
		System:       sysmon.Snapshot{NetworkInterfaces: []sysmon.NetworkInterface{iface}},
		PollInterval: 2 * time.Second,
	})

	// 100 MiB in 2 s is 400 Mbps, past the default 250 Mbps alert.
	iface.RxBytes = 100 * 1024 * 1024
	report := e.networkSaturationMonitor(&EvalContext{
		System:       sysmon.Snapshot{NetworkInterfaces: []sysmon.NetworkInterface{iface}},
		PollInterval: 2 * time.Second,
	})
	require.Len(t, report.InterfaceRates, 1)
	assert.InDelta(t, 400.0, report.InterfaceRates[0].TotalMbps, 1e-6)
	require.Len(t, report.CongestedInterfaces, 1)
}

func TestSoftSafetyBoundary(t *testing.T) {
	rates := TopicRateReport{TopicMetrics: []TopicMetric{
		{Topic: "/local_costmap/costmap", ActualHz: 0.5},
		{Topic: "/imu", ActualHz: 2.0},
	}}
	report := softSafetyBoundary(&EvalContext{
		TfNav2: inspector.TfNav2{TfWarnings: []string{"Multiple publishers detected on /tf"}},
	}, rates)
	assert.Equal(t, 3, report.WarningCount)
}

func TestWorkspaceTools(t *testing.T) {
	report := workspaceTools(&EvalContext{Processes: []sampler.Record{
		{IsROS: true, WorkspaceOrigin: "/opt/ros/humble", Package: "nav2_bringup"},
		{IsROS: true, WorkspaceOrigin: "/ws/install/nav2_bringup", Package: "nav2_bringup"},
		{IsROS: true, WorkspaceOrigin: "/opt/ros/jazzy", Package: "demo"},
	}})
	assert.Len(t, report.OverlayChain, 3)
	require.Len(t, report.DuplicatePackages, 1)
	assert.Equal(t, "nav2_bringup", report.DuplicatePackages[0].Package)
	assert.True(t, report.MixedRosDistributions)
	assert.True(t, report.AbiMismatchSuspected)
	assert.Equal(t, []string{"humble", "jazzy"}, report.DetectedDistributions)
}

func TestActionMonitorTimeouts(t *testing.T) {
	graph := inspector.Graph{Nodes: []inspector.Node{{
		ActionServers: []inspector.Endpoint{{Name: "/dock"}},
		ActionClients: []inspector.Endpoint{{Name: "/dock"}, {Name: "/navigate"}},
	}}}

	idle := actionMonitor(&EvalContext{Graph: graph})
	assert.True(t, idle.TimeoutsSuspected)
	assert.Equal(t, 0, idle.ActiveGoals)
	assert.Equal(t, 1, idle.ActionServers)
	assert.Equal(t, 2, idle.ActionClients)

	busy := actionMonitor(&EvalContext{
		Graph:  graph,
		TfNav2: inspector.TfNav2{Runtime: inspector.RuntimeStatus{GoalActive: true}},
	})
	assert.False(t, busy.TimeoutsSuspected)
	assert.Equal(t, 1, busy.ActiveGoals)
}

func TestTfDriftMonitor(t *testing.T) {
	report := tfDriftMonitor(&EvalContext{TfNav2: inspector.TfNav2{TfEdges: []inspector.TfEdge{
		{Parent: "map", Child: "odom"},
		{Parent: "other", Child: "odom"},
		{Parent: "odom", Child: "base_link"},
	}}})
	require.Len(t, report.DuplicateFrameBroadcasters, 1)
	assert.Equal(t, "odom", report.DuplicateFrameBroadcasters[0].ChildFrame)
	assert.Equal(t, 2, report.DuplicateFrameBroadcasters[0].ParentCount)
}

func TestRuntimeFingerprintStability(t *testing.T) {
	ec := &EvalContext{
		Graph: inspector.Graph{
			Nodes:  []inspector.Node{{FullName: "/b"}, {FullName: "/a"}},
			Topics: []inspector.Topic{{Topic: "/x"}},
		},
		System: sysmon.Snapshot{CPU: sysmon.CPUStat{UsagePercent: 33}},
	}
	first := runtimeFingerprint(ec)
	second := runtimeFingerprint(ec)
	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, 2, first.NodeCount)

	// CPU within the same 5% bucket does not move the signature.
	ec.System.CPU.UsagePercent = 34
	assert.Equal(t, first.Signature, runtimeFingerprint(ec).Signature)

	ec.System.CPU.UsagePercent = 60
	assert.NotEqual(t, first.Signature, runtimeFingerprint(ec).Signature)
}

func TestDeterministicLaunchValidation(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	e.SetExpectedProfile(Profile{ExpectedNodes: []string{"/amcl", "/planner"}})

	report := e.deterministicLaunchValidation(&EvalContext{Graph: inspector.Graph{
		Nodes: []inspector.Node{{FullName: "/amcl"}, {FullName: "/rogue"}},
	}})
	assert.Equal(t, []string{"/rogue"}, report.RogueNodes)
	assert.Equal(t, []string{"/planner"}, report.MissingNodes)
	assert.False(t, report.Valid)

	// No expectations means everything is valid.
	e.SetExpectedProfile(Profile{})
	report = e.deterministicLaunchValidation(&EvalContext{Graph: inspector.Graph{
		Nodes: []inspector.Node{{FullName: "/whatever"}},
	}})
	assert.True(t, report.Valid)
}

func TestDependencyImpactMap(t *testing.T) {
	report := dependencyImpactMap(&EvalContext{Graph: inspector.Graph{Topics: []inspector.Topic{
		{Topic: "/a", Publishers: []string{"/hub"}, Subscribers: []string{"/m1", "/m2"}},
		{Topic: "/b", Publishers: []string{"/m1"}, Subscribers: []string{"/leaf"}},
	}}})
	require.NotEmpty(t, report.TopImpactNodes)
	assert.Equal(t, "/hub", report.TopImpactNodes[0].Node)
	assert.Equal(t, 3, report.TopImpactNodes[0].DownstreamCount)
}

func TestTopicRateAnalyzerParsesProbes(t *testing.T) {
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, "ros2", mock.MatchedBy(func(args []string) bool {
		return len(args) > 1 && args[1] == "hz"
	}), mock.Anything, mock.Anything).Return(executor.Result{Stdout: "average rate: 4.000\n"})
	runner.On("Run", mock.Anything, "ros2", mock.MatchedBy(func(args []string) bool {
		return len(args) > 1 && args[1] == "bw"
	}), mock.Anything, mock.Anything).Return(executor.Result{Stdout: "2 MB/s from 20 messages\n"})

	e, _ := newTestEngine(runner)
	e.SetExpectedProfile(Profile{TopicExpectedHz: map[string]float64{"/scan": 10}})

	report := e.topicRateAnalyzer(context.Background(), &EvalContext{
		DomainID:     "0",
		DeepSampling: true,
		Graph:        inspector.Graph{Topics: []inspector.Topic{{Topic: "/scan"}}},
	})
	require.Len(t, report.TopicMetrics, 1)
	metric := report.TopicMetrics[0]
	assert.InDelta(t, 4.0, metric.ActualHz, 1e-9)
	assert.InDelta(t, 10.0, metric.ExpectedHz, 1e-9)
	assert.InDelta(t, 2*1024*1024, metric.BandwidthBps, 1e-6)
	// 4 Hz < 0.6 * 10 Hz.
	assert.Equal(t, []string{"/scan"}, report.DroppedTopics)
	assert.Equal(t, 1, report.IssueCount)
}

func TestTopicRateAnalyzerShallowCap(t *testing.T) {
	runner := quietRunner()
	e, _ := newTestEngine(runner)

	topics := make([]inspector.Topic, 10)
	for i := range topics {
		topics[i] = inspector.Topic{Topic: "/t" + string(rune('a'+i))}
	}
	report := e.topicRateAnalyzer(context.Background(), &EvalContext{
		Graph: inspector.Graph{Topics: topics},
	})
	assert.Len(t, report.TopicMetrics, shallowSampleTopics)
}

func TestEvaluateStabilityScore(t *testing.T) {
	e, _ := newTestEngine(quietRunner())
	report := e.Evaluate(context.Background(), EvalContext{
		DomainID: "0",
		Health:   health.Report{Status: health.StatusCritical},
	})
	assert.Equal(t, 60, report.RuntimeStabilityScore)

	assert.Equal(t, 100, stabilityScore("healthy", TopicRateReport{}, MemoryLeakReport{}, NetworkSaturationReport{}))
	assert.Equal(t, 0, stabilityScore("critical",
		TopicRateReport{DroppedTopics: []string{"a", "b", "c", "d", "e", "f", "g"}},
		MemoryLeakReport{CandidateCount: 5},
		NetworkSaturationReport{CongestedInterfaces: []InterfaceRate{{}, {}}},
	))
}
