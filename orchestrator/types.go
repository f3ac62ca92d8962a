package orchestrator

import (
	"context"
	"time"

	"github.com/00PrabalK00/RosScope/diagnostics"
	"github.com/00PrabalK00/RosScope/fleet"
	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/sampler"
	"github.com/00PrabalK00/RosScope/snapshot"
	"github.com/00PrabalK00/RosScope/sysmon"
)

// Tab indices mirrored from the presentation layer's tab bar.
const (
	TabProcesses   = 0
	TabDomains     = 1
	TabNodes       = 2
	TabTf          = 3
	TabSystem      = 4
	TabLogs        = 5
	TabDiagnostics = 6
	TabPerformance = 7
	TabSafety      = 8
	TabSession     = 9
	TabFleet       = 10
)

const (
	ScopeAllProcesses = "All Processes"
	ScopeRosOnly      = "ROS Only"
	scopeDomainPrefix = "Domain "
)

// Request is one poll request from the UI subscriber.
type Request struct {
	RosOnly        bool   `json:"ros_only"`
	ProcessQuery   string `json:"process_query"`
	ProcessScope   string `json:"process_scope"`
	SelectedDomain string `json:"selected_domain"`
	ActiveTab      int    `json:"active_tab"`
	EngineerMode   bool   `json:"engineer_mode"`
	ProcessOffset  int    `json:"process_offset"`
	ProcessLimit   int    `json:"process_limit"`
	SinceVersion   uint64 `json:"since_version"`
	IfNoneMatch    string `json:"if_none_match"`
}

type WatchdogStatus struct {
	Enabled              bool   `json:"enabled"`
	LastActionEpochMs    int64  `json:"last_action_epoch_ms"`
	SoftBoundaryWarnings int    `json:"soft_boundary_warnings"`
	LastActionMessage    string `json:"last_action_message,omitempty"`
}

// Snapshot is the full poll response. Sections are produced within a single
// poll; there is no cross-poll tearing.
type Snapshot struct {
	InstanceID           string                    `json:"instance_id"`
	TimestampUTC         string                    `json:"timestamp_utc"`
	PresetName           string                    `json:"preset_name"`
	SelectedDomain       string                    `json:"selected_domain"`
	ProcessesVisible     []sampler.Record          `json:"processes_visible"`
	ProcessOffset        int                       `json:"process_offset"`
	ProcessLimit         int                       `json:"process_limit"`
	ProcessTotalFiltered int                       `json:"process_total_filtered"`
	DomainSummaries      []inspector.DomainSummary `json:"domain_summaries"`
	Domains              []inspector.DomainDetail  `json:"domains"`
	Graph                inspector.Graph           `json:"graph"`
	TfNav2               inspector.TfNav2          `json:"tf_nav2"`
	System               sysmon.Snapshot           `json:"system"`
	Logs                 string                    `json:"logs"`
	Health               health.Report             `json:"health"`
	NodeParameters       map[string]string         `json:"node_parameters"`
	Advanced             diagnostics.Report        `json:"advanced"`
	Fleet                fleet.Status              `json:"fleet"`
	Session              snapshot.SessionStatus    `json:"session"`
	Watchdog             WatchdogStatus            `json:"watchdog"`
	SyncVersion          uint64                    `json:"sync_version"`
	Etag                 string                    `json:"etag"`
	Changed              bool                      `json:"changed"`
	ChangedSections      map[string]string         `json:"changed_sections"`
	IdleBackoffMs        int                       `json:"idle_backoff_ms"`
	HeartbeatOnly        bool                      `json:"heartbeat_only"`
}

// Payload carries the per-action arguments of a UI action intent.
type Payload struct {
	PID             int64  `json:"pid,omitempty"`
	DomainID        string `json:"domain_id,omitempty"`
	WorkspacePath   string `json:"workspace_path,omitempty"`
	RelaunchCommand string `json:"relaunch_command,omitempty"`
	LeftPath        string `json:"left_path,omitempty"`
	RightPath       string `json:"right_path,omitempty"`
	SessionName     string `json:"session_name,omitempty"`
	Format          string `json:"format,omitempty"`
	Name            string `json:"name,omitempty"`
	Path            string `json:"path,omitempty"`
	Target          string `json:"target,omitempty"`
	RemoteAction    string `json:"remote_action,omitempty"`
}

// Outcome is the result of one dispatched action.
type Outcome struct {
	Action  string         `json:"action"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Service is the engine surface the UI (and its HTTP adapter) consumes.
type Service interface {
	// Poll runs (or coalesces into) one poll cycle and returns the snapshot.
	Poll(ctx context.Context, req Request) (Snapshot, error)
	// RunAction dispatches one action intent and returns its outcome.
	RunAction(ctx context.Context, action string, payload Payload) (Outcome, error)
	// FetchNodeParameters dumps one node's parameters, caching successes.
	FetchNodeParameters(ctx context.Context, domainID, node string) (inspector.NodeParameters, error)
}

// Collaborator surfaces; the concrete sampler, sysmon, inspector, diagnostics,
// and fleet types satisfy these.
type ProcessSource interface {
	ListProcesses(rosOnly bool, query string, deep bool) []sampler.Record
	Terminate(pid int64) bool
	ForceKill(pid int64) bool
	KillProcessTree(pid int64, force bool) bool
}

type SystemSource interface {
	CollectSystem(ctx context.Context) sysmon.Snapshot
	TailDmesg(ctx context.Context, lines int) string
}

type GraphSource interface {
	ListDomains(processes []sampler.Record) []inspector.DomainSummary
	InspectDomain(ctx context.Context, domainID string, processes []sampler.Record, includeGraphDetails bool) inspector.DomainDetail
	InspectGraph(ctx context.Context, domainID string, processes []sampler.Record) inspector.Graph
	InspectTfNav2(ctx context.Context, domainID string) inspector.TfNav2
	FetchNodeParameters(ctx context.Context, domainID, node string) inspector.NodeParameters
}

type Diagnoser interface {
	Evaluate(ctx context.Context, ec diagnostics.EvalContext) diagnostics.Report
	SetExpectedProfile(profile diagnostics.Profile)
	ExpectedProfile() diagnostics.Profile
}

type FleetMonitor interface {
	LoadTargetsFromFile(path string) fleet.LoadResult
	SetTargets(targets []fleet.Target)
	Targets() []fleet.Target
	CollectFleetStatus(ctx context.Context, timeout time.Duration) fleet.Status
	ExecuteRemoteAction(ctx context.Context, target, action, domainID string, timeout time.Duration) fleet.ActionResult
	ResumeQueuedActions(ctx context.Context, budget int, timeout time.Duration) fleet.ResumeResult
}
