package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/00PrabalK00/RosScope/actions"
	"github.com/00PrabalK00/RosScope/diagnostics"
	"github.com/00PrabalK00/RosScope/fleet"
	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	pkgcron "github.com/00PrabalK00/RosScope/pkg/cron"
	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/mqtt"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
	"github.com/00PrabalK00/RosScope/sampler"
	"github.com/00PrabalK00/RosScope/snapshot"
	"github.com/00PrabalK00/RosScope/sysmon"
)

const (
	defaultMinPollInterval = 500 * time.Millisecond
	defaultPollInterval    = 2 * time.Second
	initialBackoffMs       = 1000
	maxBackoffMs           = 12000
	watchdogRefractory     = 12 * time.Second
	fleetProbeTimeout      = 4500 * time.Millisecond
	minProcessLimit        = 100
	maxProcessLimit        = 2000
	dmesgLines             = 300
	queueResumeBudget      = 2
)

type pollOutcome struct {
	snapshot Snapshot
	err      error
}

type actionJob struct {
	action  string
	payload Payload
	reply   chan Outcome
}

// Engine is the runtime orchestrator: a single worker goroutine runs poll
// cycles and actions in order, coalescing rapid re-polls through a
// single-slot mailbox (latest request wins).
type Engine struct {
	processes ProcessSource
	system    SystemSource
	graph     GraphSource
	diag      Diagnoser
	fleet     FleetMonitor
	control   *actions.Controller
	snapman   *snapshot.Manager
	recorder  *snapshot.Recorder
	runner    executor.Runner
	tele      *telemetry.Registry
	logger    *slog.Logger
	publisher mqtt.Publisher
	pubTopic  string

	baseDir    string
	instanceID string
	nowFn      func() time.Time
	sleep      func(time.Duration)

	minPollInterval time.Duration
	pollInterval    time.Duration

	// mailbox
	pendingReq     *Request
	pendingWaiters []chan pollOutcome
	kick           chan struct{}
	actionJobs     chan actionJob

	// poll state
	lastPollAt          time.Time
	pollCounter         uint64
	lastRequest         Request
	lastAllProcesses    []sampler.Record
	lastDomainSummaries []inspector.DomainSummary
	lastDomainDetails   []inspector.DomainDetail
	lastGraph           inspector.Graph
	lastGraphValid      bool
	lastTfNav2          inspector.TfNav2
	lastTfValid         bool
	lastSystem          sysmon.Snapshot
	lastLogs            string
	lastHealth          health.Report
	lastAdvanced        diagnostics.Report
	lastFleet           fleet.Status
	parameterCache      map[string]string

	syncVersion         uint64
	lastFingerprint     string
	consecutiveNoChange int
	idleBackoffMs       int

	watchdogEnabled      bool
	lastWatchdogActionMs int64
	lastWatchdogMessage  string
	presetName           string

	previousSnapshot    *Snapshot
	penultimateSnapshot *Snapshot

	snapshotSchedule *pkgcron.Schedule
	nextSnapshotAt   time.Time

	mu sync.Mutex // guards the mailbox and the parameter cache
}

type Option func(*Engine)

func WithBaseDir(dir string) Option {
	return func(e *Engine) { e.baseDir = dir }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFn = now }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

func WithMinPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.minPollInterval = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithSnapshotSchedule arms a cron schedule for periodic JSON snapshot
// exports.
func WithSnapshotSchedule(schedule *pkgcron.Schedule) Option {
	return func(e *Engine) { e.snapshotSchedule = schedule }
}

// WithPublisher mirrors changed snapshots and watchdog events to an MQTT
// topic prefix.
func WithPublisher(pub mqtt.Publisher, topicPrefix string) Option {
	return func(e *Engine) {
		e.publisher = pub
		e.pubTopic = topicPrefix
	}
}

func New(
	processes ProcessSource,
	system SystemSource,
	graph GraphSource,
	diag Diagnoser,
	fleetMonitor FleetMonitor,
	control *actions.Controller,
	snapman *snapshot.Manager,
	recorder *snapshot.Recorder,
	runner executor.Runner,
	tele *telemetry.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	if tele == nil {
		tele = telemetry.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		processes:       processes,
		system:          system,
		graph:           graph,
		diag:            diag,
		fleet:           fleetMonitor,
		control:         control,
		snapman:         snapman,
		recorder:        recorder,
		runner:          runner,
		tele:            tele,
		logger:          logger,
		baseDir:         ".",
		instanceID:      uuid.NewString(),
		nowFn:           time.Now,
		sleep:           time.Sleep,
		minPollInterval: defaultMinPollInterval,
		pollInterval:    defaultPollInterval,
		kick:            make(chan struct{}, 1),
		actionJobs:      make(chan actionJob, 16),
		parameterCache:  make(map[string]string),
		idleBackoffMs:   initialBackoffMs,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.snapshotSchedule != nil {
		e.nextSnapshotAt = e.snapshotSchedule.Next(e.nowFn())
	}
	e.loadDefaultState()

	return e
}

func (e *Engine) lock()   { e.mu.Lock() }
func (e *Engine) unlock() { e.mu.Unlock() }

// loadDefaultState restores the default preset and fleet targets when their
// files exist under the base directory.
func (e *Engine) loadDefaultState() {
	if res := e.loadPreset("default"); res.Success {
		e.logger.Info("Loaded default preset", slog.String("preset", e.presetName))
	}
	path := e.fleetTargetsPath()
	if res := e.fleet.LoadTargetsFromFile(path); res.Success {
		e.logger.Info("Loaded fleet targets", slog.String("path", path), slog.Int("targets", res.LoadedTargets))
	}
}

// Run drives the worker loop until ctx is cancelled. Poll requests are
// processed in send order; an action and its follow-up re-poll are serialized
// behind any in-flight poll.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.failWaiters(ctx.Err())

			return ctx.Err()
		case job := <-e.actionJobs:
			out := e.runAction(ctx, job.action, job.payload)
			job.reply <- out
			if isMutatingAction(job.action) {
				e.requeueLastRequest()
			}
		case <-e.kick:
			e.drainPolls(ctx)
		}
	}
}

func (e *Engine) drainPolls(ctx context.Context) {
	for {
		e.lock()
		req := e.pendingReq
		waiters := e.pendingWaiters
		e.pendingReq = nil
		e.pendingWaiters = nil
		e.unlock()
		if req == nil {
			return
		}

		snap := e.pollNow(ctx, *req)
		for _, w := range waiters {
			w <- pollOutcome{snapshot: snap}
		}
	}
}

func (e *Engine) failWaiters(err error) {
	e.lock()
	waiters := e.pendingWaiters
	e.pendingReq = nil
	e.pendingWaiters = nil
	e.unlock()
	for _, w := range waiters {
		w <- pollOutcome{err: err}
	}
}

// requeueLastRequest schedules a follow-up poll with the most recent request
// so snapshots reflect freshly mutated state.
func (e *Engine) requeueLastRequest() {
	e.lock()
	req := e.lastRequest
	e.pendingReq = &req
	e.unlock()
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

var _ Service = (*Engine)(nil)

func (e *Engine) Poll(ctx context.Context, req Request) (Snapshot, error) {
	reply := make(chan pollOutcome, 1)
	e.lock()
	e.pendingReq = &req
	e.pendingWaiters = append(e.pendingWaiters, reply)
	e.unlock()
	select {
	case e.kick <- struct{}{}:
	default:
	}

	select {
	case out := <-reply:
		return out.snapshot, out.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (e *Engine) RunAction(ctx context.Context, action string, payload Payload) (Outcome, error) {
	job := actionJob{action: action, payload: payload, reply: make(chan Outcome, 1)}
	select {
	case e.actionJobs <- job:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	select {
	case out := <-job.reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (e *Engine) FetchNodeParameters(ctx context.Context, domainID, node string) (inspector.NodeParameters, error) {
	result := e.graph.FetchNodeParameters(ctx, domainID, node)
	if result.Success {
		e.lock()
		e.parameterCache[node] = result.Parameters
		e.unlock()
	}

	return result, nil
}
