package diagnostics

import (
	"context"
	"time"

	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

const (
	rateHistoryCap      = 100
	lifecycleEventCap   = 120
	memoryHistoryCap    = 120
	timelineCap         = 600
	defaultAlertMbps    = 250.0
	stuckTransitionalMs = 15000
)

type transitionState struct {
	State   string
	SinceMs int64
}

// Engine fuses heterogeneous runtime signals into one diagnostics report,
// keeping per-node rolling history between polls. It assumes a single caller.
type Engine struct {
	runner executor.Runner
	tele   *telemetry.Registry
	now    func() time.Time

	expectedProfile Profile

	parameterHashesByNode  map[string]string
	topicRateHistory       map[string][]float64
	lastTopicBandwidth     map[string]float64
	lifecycleStateByNode   map[string]transitionState
	lifecycleEventsByNode  map[string][]LifecycleEvent
	memoryHistoryByNode    map[string][]float64
	previousRxByIface      map[string]uint64
	previousTxByIface      map[string]uint64
	previousParticipants   map[string]int
	timeline               []TimelineRow
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(runner executor.Runner, tele *telemetry.Registry, opts ...Option) *Engine {
	if tele == nil {
		tele = telemetry.Default()
	}
	e := &Engine{
		runner:                runner,
		tele:                  tele,
		now:                   time.Now,
		expectedProfile:       Profile{NetworkAlertMbps: defaultAlertMbps},
		parameterHashesByNode: make(map[string]string),
		topicRateHistory:      make(map[string][]float64),
		lastTopicBandwidth:    make(map[string]float64),
		lifecycleStateByNode:  make(map[string]transitionState),
		lifecycleEventsByNode: make(map[string][]LifecycleEvent),
		memoryHistoryByNode:   make(map[string][]float64),
		previousRxByIface:     make(map[string]uint64),
		previousTxByIface:     make(map[string]uint64),
		previousParticipants:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) SetExpectedProfile(profile Profile) {
	if profile.NetworkAlertMbps <= 0 {
		profile.NetworkAlertMbps = defaultAlertMbps
	}
	e.expectedProfile = profile
}

func (e *Engine) ExpectedProfile() Profile {
	return e.expectedProfile
}

type analyzer struct {
	key string
	run func(ctx context.Context, ec *EvalContext, out *Report)
}

// analyzers is the dispatch table; every entry produces one tagged
// sub-report keyed by its report field.
func (e *Engine) analyzers() []analyzer {
	return []analyzer{
		{"parameter_drift", func(_ context.Context, ec *EvalContext, out *Report) {
			out.ParameterDrift = e.parameterDrift(ec)
		}},
		{"topic_rate_analyzer", func(ctx context.Context, ec *EvalContext, out *Report) {
			out.TopicRateAnalyzer = e.topicRateAnalyzer(ctx, ec)
		}},
		{"qos_mismatch_detector", func(_ context.Context, ec *EvalContext, out *Report) {
			out.QoSMismatchDetector = qosMismatchDetector(ec)
		}},
		{"lifecycle_timeline", func(_ context.Context, ec *EvalContext, out *Report) {
			out.LifecycleTimeline = e.lifecycleTimeline(ec)
		}},
		{"executor_load_monitor", func(_ context.Context, ec *EvalContext, out *Report) {
			out.ExecutorLoadMonitor = executorLoadMonitor(ec)
		}},
		{"cross_correlation_timeline", func(_ context.Context, ec *EvalContext, out *Report) {
			out.CrossCorrelationTimeline = e.crossCorrelationTimeline(ec)
		}},
		{"memory_leak_detection", func(_ context.Context, ec *EvalContext, out *Report) {
			out.MemoryLeakDetection = e.memoryLeakDetection(ec)
		}},
		{"dds_participant_inspector", func(_ context.Context, ec *EvalContext, out *Report) {
			out.DDSParticipantInspector = e.ddsParticipantInspector(ec)
		}},
		{"network_saturation_monitor", func(_ context.Context, ec *EvalContext, out *Report) {
			out.NetworkSaturationMonitor = e.networkSaturationMonitor(ec)
		}},
		{"soft_safety_boundary", func(_ context.Context, ec *EvalContext, out *Report) {
			out.SoftSafetyBoundary = softSafetyBoundary(ec, out.TopicRateAnalyzer)
		}},
		{"workspace_tools", func(_ context.Context, ec *EvalContext, out *Report) {
			out.WorkspaceTools = workspaceTools(ec)
		}},
		{"action_monitor", func(_ context.Context, ec *EvalContext, out *Report) {
			out.ActionMonitor = actionMonitor(ec)
		}},
		{"tf_drift_monitor", func(_ context.Context, ec *EvalContext, out *Report) {
			out.TfDriftMonitor = tfDriftMonitor(ec)
		}},
		{"runtime_fingerprint", func(_ context.Context, ec *EvalContext, out *Report) {
			out.RuntimeFingerprint = runtimeFingerprint(ec)
		}},
		{"deterministic_launch_validation", func(_ context.Context, ec *EvalContext, out *Report) {
			out.DeterministicLaunchValidation = e.deterministicLaunchValidation(ec)
		}},
		{"dependency_impact_map", func(_ context.Context, ec *EvalContext, out *Report) {
			out.DependencyImpactMap = dependencyImpactMap(ec)
		}},
	}
}

// Evaluate runs every analyzer over the shared context and derives the
// stability score.
func (e *Engine) Evaluate(ctx context.Context, ec EvalContext) Report {
	begin := e.now()
	var out Report
	for _, a := range e.analyzers() {
		a.run(ctx, &ec, &out)
	}
	out.RuntimeStabilityScore = stabilityScore(ec.Health.Status, out.TopicRateAnalyzer, out.MemoryLeakDetection, out.NetworkSaturationMonitor)
	out.ExpectedProfile = e.expectedProfile

	e.tele.IncrementCounter("diagnostics.evaluations", 1)
	e.tele.RecordDurationMs("diagnostics.evaluate_ms", e.now().Sub(begin).Milliseconds())

	return out
}

func stabilityScore(healthStatus string, rates TopicRateReport, leaks MemoryLeakReport, network NetworkSaturationReport) int {
	score := 100
	switch healthStatus {
	case "critical":
		score -= 40
	case "warning":
		score -= 20
	}
	score -= len(rates.DroppedTopics) * 5
	score -= leaks.CandidateCount * 6
	score -= len(network.CongestedInterfaces) * 4

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}

	return score
}
