package diagnostics

import (
	"time"

	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/sampler"
	"github.com/00PrabalK00/RosScope/sysmon"
)

// Profile carries the operator's expectations about the runtime, loaded from
// presets.
type Profile struct {
	ExpectedNodes    []string           `json:"expected_nodes"`
	TopicExpectedHz  map[string]float64 `json:"topic_expected_hz"`
	NetworkAlertMbps float64            `json:"network_alert_mbps"`
}

// EvalContext bundles the per-poll inputs every analyzer consumes.
type EvalContext struct {
	DomainID     string
	Processes    []sampler.Record
	Domains      []inspector.DomainDetail
	Graph        inspector.Graph
	TfNav2       inspector.TfNav2
	System       sysmon.Snapshot
	Health       health.Report
	Parameters   map[string]string
	DeepSampling bool
	PollInterval time.Duration
}

type ParameterChange struct {
	Node                  string `json:"node"`
	OldHash               string `json:"old_hash"`
	NewHash               string `json:"new_hash"`
	SilentReloadSuspected bool   `json:"silent_reload_suspected"`
}

type ParameterDrift struct {
	ChangedNodes []ParameterChange `json:"changed_nodes"`
	ChangeCount  int               `json:"change_count"`
}

type TopicMetric struct {
	Topic        string  `json:"topic"`
	ExpectedHz   float64 `json:"expected_hz"`
	ActualHz     float64 `json:"actual_hz"`
	TrendSlope   float64 `json:"trend_slope"`
	MeanHz       float64 `json:"mean_hz"`
	BandwidthBps float64 `json:"bandwidth_bps"`
}

type TopicRateReport struct {
	TopicMetrics             []TopicMetric `json:"topic_metrics"`
	DroppedTopics            []string      `json:"dropped_topics"`
	UnderperformingPublishers []string     `json:"underperforming_publishers"`
	LatencySpikes            []string      `json:"latency_spikes"`
	IssueCount               int           `json:"issue_count"`
}

type QoSMismatch struct {
	Topic        string `json:"topic"`
	ProfileCount int    `json:"profile_count"`
}

type QoSMismatchReport struct {
	Mismatches    []QoSMismatch `json:"mismatches"`
	MismatchCount int           `json:"mismatch_count"`
}

type LifecycleEvent struct {
	Node          string `json:"node"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
	TimestampUTC  string `json:"timestamp_utc"`
}

type StuckTransitionalNode struct {
	Node       string `json:"node"`
	State      string `json:"state"`
	DurationMs int64  `json:"duration_ms"`
}

type LifecycleTimelineReport struct {
	Transitions           []LifecycleEvent            `json:"transitions"`
	StuckTransitionalNodes []StuckTransitionalNode    `json:"stuck_transitional_nodes"`
	HistoryByNode         map[string][]LifecycleEvent `json:"history_by_node"`
}

type OverloadedExecutor struct {
	PID        int64   `json:"pid"`
	NodeName   string  `json:"node_name"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int     `json:"threads"`
}

type ExecutorLoadReport struct {
	OverloadedExecutors  []OverloadedExecutor `json:"overloaded_executors"`
	CallbackQueueDelayMs int                  `json:"callback_queue_delay_ms"`
	BlockingCallbacks    []OverloadedExecutor `json:"blocking_callbacks"`
}

type TimelineRow struct {
	TimestampUTC string  `json:"timestamp_utc"`
	CPUPercent   float64 `json:"cpu_percent"`
	OrphanTopics int     `json:"orphan_topics"`
	TfWarnings   int     `json:"tf_warnings"`
	GoalActive   bool    `json:"goal_active"`
}

type CorrelatedEvent struct {
	TimestampUTC string `json:"timestamp_utc"`
	Inference    string `json:"inference"`
}

type CrossCorrelationReport struct {
	Timeline         []TimelineRow     `json:"timeline"`
	CorrelatedEvents []CorrelatedEvent `json:"correlated_events"`
}

type LeakCandidate struct {
	Node         string  `json:"node"`
	Slope        float64 `json:"slope"`
	DeltaPercent float64 `json:"delta_percent"`
}

type MemoryLeakReport struct {
	LeakCandidates []LeakCandidate `json:"leak_candidates"`
	CandidateCount int             `json:"candidate_count"`
}

type ParticipantRow struct {
	DomainID         string `json:"domain_id"`
	ParticipantCount int    `json:"participant_count"`
}

type DiscoveryStorm struct {
	DomainID string `json:"domain_id"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
}

type DDSParticipantReport struct {
	Participants      []ParticipantRow `json:"participants"`
	GhostParticipants int              `json:"ghost_participants"`
	DiscoveryStorms   []DiscoveryStorm `json:"discovery_storms"`
}

type InterfaceRate struct {
	Interface string  `json:"interface"`
	TotalMbps float64 `json:"total_mbps"`
}

type HighTrafficTopic struct {
	Topic          string  `json:"topic"`
	ThroughputMbps float64 `json:"throughput_mbps"`
}

type NetworkSaturationReport struct {
	InterfaceRates        []InterfaceRate    `json:"interface_rates"`
	CongestedInterfaces   []InterfaceRate    `json:"congested_interfaces"`
	HighTrafficPublishers []HighTrafficTopic `json:"high_traffic_publishers"`
}

type SoftSafetyReport struct {
	Warnings     []string `json:"warnings"`
	WarningCount int      `json:"warning_count"`
}

type DuplicatePackage struct {
	Package    string   `json:"package"`
	Workspaces []string `json:"workspaces"`
}

type WorkspaceReport struct {
	OverlayChain           []string           `json:"overlay_chain"`
	DuplicatePackages      []DuplicatePackage `json:"duplicate_packages"`
	MixedRosDistributions  bool               `json:"mixed_ros_distributions"`
	DetectedDistributions  []string           `json:"detected_distributions"`
	AbiMismatchSuspected   bool               `json:"abi_mismatch_suspected"`
}

type ActionMonitorReport struct {
	ActiveGoals       int  `json:"active_goals"`
	ActionServers     int  `json:"action_servers"`
	ActionClients     int  `json:"action_clients"`
	FailedGoals       int  `json:"failed_goals"`
	TimeoutsSuspected bool `json:"timeouts_suspected"`
}

type DuplicateFrameBroadcaster struct {
	ChildFrame  string `json:"child_frame"`
	ParentCount int    `json:"parent_count"`
}

type TfDriftReport struct {
	DuplicateFrameBroadcasters []DuplicateFrameBroadcaster `json:"duplicate_frame_broadcasters"`
	ParentChildMismatchCount   int                         `json:"parent_child_mismatch_count"`
	TimestampOffsetMs          int                         `json:"timestamp_offset_ms"`
}

type FingerprintReport struct {
	Signature   string `json:"signature"`
	NodeCount   int    `json:"node_count"`
	TopicCount  int    `json:"topic_count"`
	TfEdgeCount int    `json:"tf_edge_count"`
}

type LaunchValidationReport struct {
	RogueNodes   []string `json:"rogue_nodes"`
	MissingNodes []string `json:"missing_nodes"`
	Valid        bool     `json:"valid"`
}

type DependencyImpactReport struct {
	ImpactScores   []inspector.ImpactScore `json:"impact_scores"`
	TopImpactNodes []inspector.ImpactScore `json:"top_impact_nodes"`
}

// Report bundles every analyzer's output for one poll.
type Report struct {
	ParameterDrift               ParameterDrift          `json:"parameter_drift"`
	TopicRateAnalyzer            TopicRateReport         `json:"topic_rate_analyzer"`
	QoSMismatchDetector          QoSMismatchReport       `json:"qos_mismatch_detector"`
	LifecycleTimeline            LifecycleTimelineReport `json:"lifecycle_timeline"`
	ExecutorLoadMonitor          ExecutorLoadReport      `json:"executor_load_monitor"`
	CrossCorrelationTimeline     CrossCorrelationReport  `json:"cross_correlation_timeline"`
	MemoryLeakDetection          MemoryLeakReport        `json:"memory_leak_detection"`
	DDSParticipantInspector      DDSParticipantReport    `json:"dds_participant_inspector"`
	NetworkSaturationMonitor     NetworkSaturationReport `json:"network_saturation_monitor"`
	SoftSafetyBoundary           SoftSafetyReport        `json:"soft_safety_boundary"`
	WorkspaceTools               WorkspaceReport         `json:"workspace_tools"`
	ActionMonitor                ActionMonitorReport     `json:"action_monitor"`
	TfDriftMonitor               TfDriftReport           `json:"tf_drift_monitor"`
	RuntimeFingerprint           FingerprintReport       `json:"runtime_fingerprint"`
	DeterministicLaunchValidation LaunchValidationReport `json:"deterministic_launch_validation"`
	DependencyImpactMap          DependencyImpactReport  `json:"dependency_impact_map"`
	RuntimeStabilityScore        int                     `json:"runtime_stability_score"`
	ExpectedProfile              Profile                 `json:"expected_profile"`
}
