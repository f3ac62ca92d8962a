package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/pkg/executor"
	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

const (
	defaultPort             = 22
	defaultRosSetup         = "/opt/ros/humble/setup.bash"
	maxOfflineQueue         = 600
	circuitFailureThreshold = 4
	circuitCooldown         = 30 * time.Second
	maxActionRetries        = 3
	maxBackoff              = 9 * time.Second
)

// Target is one fleet peer reachable over SSH.
type Target struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	User     string `json:"user"`
	Port     int    `json:"port"`
	DomainID string `json:"domain_id"`
	RosSetup string `json:"ros_setup"`
}

func (t Target) hostKey() string {
	if t.User == "" {
		return t.Host
	}

	return t.User + "@" + t.Host
}

// QueuedAction is a remote action awaiting replay after a persistent failure.
type QueuedAction struct {
	Target    string `json:"target"`
	Action    string `json:"action"`
	DomainID  string `json:"domain_id"`
	QueuedUTC string `json:"queued_utc"`
}

type circuitState struct {
	failures    int
	openUntilMs int64
}

type Robot struct {
	Target
	Reachable      bool    `json:"reachable"`
	RemoteHostname string  `json:"remote_hostname,omitempty"`
	NodeCount      int     `json:"node_count,omitempty"`
	Load1m         float64 `json:"load_1m,omitempty"`
	MemAvailableKb int64   `json:"mem_available_kb,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type Status struct {
	Robots           []Robot `json:"robots"`
	HealthyCount     int     `json:"healthy_count"`
	TotalCount       int     `json:"total_count"`
	OfflineQueueSize int     `json:"offline_queue_size"`
}

type ActionResult struct {
	Success          bool   `json:"success"`
	Target           string `json:"target"`
	Action           string `json:"action"`
	RetryCount       int    `json:"retry_count"`
	Stderr           string `json:"stderr,omitempty"`
	Error            string `json:"error,omitempty"`
	OfflineQueueSize int    `json:"offline_queue_size"`
}

type LoadResult struct {
	Success       bool   `json:"success"`
	LoadedTargets int    `json:"loaded_targets"`
	Path          string `json:"path"`
	Error         string `json:"error,omitempty"`
}

type ResumeResult struct {
	Success        bool `json:"success"`
	ResumedCount   int  `json:"resumed_count"`
	FailedCount    int  `json:"failed_count"`
	RemainingQueue int  `json:"remaining_queue"`
}

// Monitor fans status probes and actions out to the fleet over SSH with
// retries, jittered backoff, a per-(target,action) circuit breaker and a
// persisted offline queue. Callers are serialized by the orchestrator.
type Monitor struct {
	runner    executor.Runner
	tele      *telemetry.Registry
	logger    *slog.Logger
	statePath string

	targets []Target
	queue   []QueuedAction
	circuit map[string]*circuitState

	now     func() time.Time
	sleep   func(time.Duration)
	randInt func(n int) int
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Monitor) { m.sleep = sleep }
}

func WithRand(randInt func(n int) int) Option {
	return func(m *Monitor) { m.randInt = randInt }
}

// WithStatePath overrides the offline queue file location
// (default state/offline_remote_queue.json under the working directory).
func WithStatePath(path string) Option {
	return func(m *Monitor) { m.statePath = path }
}

func New(runner executor.Runner, tele *telemetry.Registry, logger *slog.Logger, opts ...Option) *Monitor {
	if tele == nil {
		tele = telemetry.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		runner:    runner,
		tele:      tele,
		logger:    logger,
		statePath: filepath.Join("state", "offline_remote_queue.json"),
		circuit:   make(map[string]*circuitState),
		now:       time.Now,
		sleep:     time.Sleep,
		randInt:   rand.Intn,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loadQueue()

	return m
}

func targetFromJSON(t *Target) {
	if t.Port == 0 {
		t.Port = defaultPort
	}
	if t.DomainID == "" {
		t.DomainID = "0"
	}
	if t.RosSetup == "" {
		t.RosSetup = defaultRosSetup
	}
}

// LoadTargetsFromFile replaces the target list with the JSON array at path.
func (m *Monitor) LoadTargetsFromFile(path string) LoadResult {
	raw, err := os.ReadFile(path)
	if err != nil {
		return LoadResult{Success: false, Path: path, Error: "Failed to open remote targets file."}
	}
	var targets []Target
	if err := json.Unmarshal(raw, &targets); err != nil {
		return LoadResult{Success: false, Path: path, Error: "Remote targets file must contain a JSON array."}
	}
	for i := range targets {
		targetFromJSON(&targets[i])
	}
	m.targets = targets
	m.loadQueue()
	m.tele.SetGauge("fleet.targets_count", float64(len(m.targets)))
	m.tele.SetQueueSize("offline_remote_actions", len(m.queue))

	return LoadResult{Success: true, Path: path, LoadedTargets: len(m.targets)}
}

func (m *Monitor) SetTargets(targets []Target) {
	for i := range targets {
		targetFromJSON(&targets[i])
	}
	m.targets = targets
}

func (m *Monitor) Targets() []Target {
	out := make([]Target, len(m.targets))
	copy(out, m.targets)

	return out
}

func (m *Monitor) QueueSize() int {
	return len(m.queue)
}

// loadQueue is best-effort: a missing or malformed file yields an empty
// queue, never a partial one (I5).
func (m *Monitor) loadQueue() {
	m.queue = nil
	raw, err := os.ReadFile(m.statePath)
	if err != nil {
		return
	}
	var queue []QueuedAction
	if err := json.Unmarshal(raw, &queue); err != nil {
		m.logger.Warn("Discarding malformed offline queue file", slog.String("path", m.statePath), slog.Any("error", err))

		return
	}
	m.queue = queue
}

// persistQueue writes the queue atomically: temp file, then rename.
func (m *Monitor) persistQueue() error {
	payload, err := json.MarshalIndent(m.queue, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.statePath), ".offline_queue_*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), m.statePath)
}

func (m *Monitor) enqueueOffline(action QueuedAction) {
	m.queue = append(m.queue, action)
	for len(m.queue) > maxOfflineQueue {
		m.queue = m.queue[1:]
	}
	m.tele.SetQueueSize("offline_remote_actions", len(m.queue))
	if err := m.persistQueue(); err != nil {
		m.logger.Warn("Failed to persist offline queue", slog.Any("error", err))
	}
}

func (m *Monitor) isCircuitOpen(key string) bool {
	st, ok := m.circuit[key]
	if !ok {
		return false
	}

	return st.openUntilMs > m.now().UnixMilli()
}

func (m *Monitor) onCircuitSuccess(key string) {
	delete(m.circuit, key)
}

func (m *Monitor) onCircuitFailure(key string) {
	st := m.circuit[key]
	if st == nil {
		st = &circuitState{}
		m.circuit[key] = st
	}
	st.failures++
	if st.failures >= circuitFailureThreshold {
		st.openUntilMs = m.now().UnixMilli() + circuitCooldown.Milliseconds()
		m.tele.RecordEvent("circuit_open", map[string]any{
			"key":         key,
			"cooldown_ms": circuitCooldown.Milliseconds(),
		})
	}
}

func sshArgs(target Target, script string) []string {
	return []string{
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=3",
		"-p", strconv.Itoa(target.Port),
		target.hostKey(),
		"bash", "-lc", script,
	}
}

// CollectFleetStatus probes every target with one retry and a short jittered
// backoff. Open circuits are skipped outright.
func (m *Monitor) CollectFleetStatus(ctx context.Context, timeout time.Duration) Status {
	robots := []Robot{}
	for _, target := range m.targets {
		if target.Host == "" {
			continue
		}

		key := target.Name + "|status"
		robot := Robot{Target: target}
		if m.isCircuitOpen(key) {
			robot.Reachable = false
			robot.Error = "Circuit breaker open (cooldown)."
			robots = append(robots, robot)
			m.tele.IncrementCounter("fleet.status.circuit_open", 1)

			continue
		}

		script := fmt.Sprintf(
			"source %s >/dev/null 2>&1; "+
				"nodes=$(ros2 node list 2>/dev/null | wc -l); "+
				"load=$(awk '{print $1}' /proc/loadavg); "+
				"mem=$(awk '/MemAvailable/ {print $2}' /proc/meminfo); "+
				"host=$(hostname); "+
				"echo \"$host|$nodes|$load|$mem\"",
			target.RosSetup)

		var result executor.Result
		for attempt := 0; attempt < 2; attempt++ {
			m.tele.RecordRequest()
			result = m.runner.Run(ctx, "ssh", sshArgs(target, script), timeout, nil)
			if result.OK() {
				m.onCircuitSuccess(key)

				break
			}
			m.onCircuitFailure(key)
			m.tele.IncrementCounter("fleet.status.retry_count", 1)
			m.sleep(time.Duration(150+m.randInt(200)) * time.Millisecond)
		}

		robot.Reachable = result.OK()
		if result.OK() {
			parts := strings.Split(strings.TrimSpace(result.Stdout), "|")
			if len(parts) >= 4 {
				robot.RemoteHostname = parts[0]
				robot.NodeCount, _ = strconv.Atoi(parts[1])
				robot.Load1m, _ = strconv.ParseFloat(parts[2], 64)
				robot.MemAvailableKb, _ = strconv.ParseInt(parts[3], 10, 64)
			}
		} else {
			robot.Error = strings.TrimSpace(result.Stderr)
		}
		robots = append(robots, robot)
	}

	healthy := 0
	for _, robot := range robots {
		if robot.Reachable {
			healthy++
		}
	}

	return Status{
		Robots:           robots,
		HealthyCount:     healthy,
		TotalCount:       len(robots),
		OfflineQueueSize: len(m.queue),
	}
}

func remoteScript(target Target, action, domainID string) (string, bool) {
	switch action {
	case "restart_domain":
		return fmt.Sprintf(
			"source %s >/dev/null 2>&1; export ROS_DOMAIN_ID=%s; ros2 daemon stop; ros2 daemon start;",
			target.RosSetup, domainID), true
	case "kill_ros":
		return "pkill -9 -f -- '--ros-args|rclcpp|rclpy|/opt/ros|ament' || true", true
	case "isolate_domain":
		return fmt.Sprintf(
			"source %s >/dev/null 2>&1; export ROS_DOMAIN_ID=%s; ros2 daemon stop;",
			target.RosSetup, domainID), true
	default:
		return "", false
	}
}

func (m *Monitor) executeRemoteAction(ctx context.Context, targetName, action, domainID string, timeout time.Duration, allowQueueWrite bool) ActionResult {
	for _, target := range m.targets {
		if target.Name != targetName {
			continue
		}

		circuitKey := target.Name + "|" + action
		if m.isCircuitOpen(circuitKey) {
			m.tele.IncrementCounter("fleet.action.circuit_open", 1)

			return ActionResult{
				Success: false,
				Target:  targetName,
				Action:  action,
				Error:   "Circuit breaker open; cooldown active.",
			}
		}

		script, ok := remoteScript(target, action, domainID)
		if !ok {
			return ActionResult{Success: false, Target: targetName, Action: action, Error: "Unsupported remote action."}
		}

		var result executor.Result
		retriesUsed := 0
		for attempt := 0; attempt < maxActionRetries; attempt++ {
			m.tele.RecordRequest()
			result = m.runner.Run(ctx, "ssh", sshArgs(target, script), timeout, nil)
			if result.OK() {
				m.onCircuitSuccess(circuitKey)

				break
			}
			retriesUsed = attempt + 1
			m.onCircuitFailure(circuitKey)
			m.tele.IncrementCounter("fleet.action.retry_count", 1)
			backoff := time.Duration(250*(1<<attempt)+m.randInt(350)) * time.Millisecond
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			m.sleep(backoff)
		}

		if !result.OK() && allowQueueWrite {
			m.enqueueOffline(QueuedAction{
				Target:    targetName,
				Action:    action,
				DomainID:  domainID,
				QueuedUTC: m.now().UTC().Format(time.RFC3339),
			})
			m.tele.IncrementCounter("fleet.action.offline_queued", 1)
		}

		return ActionResult{
			Success:          result.OK(),
			Target:           targetName,
			Action:           action,
			RetryCount:       retriesUsed,
			Stderr:           strings.TrimSpace(result.Stderr),
			OfflineQueueSize: len(m.queue),
		}
	}

	return ActionResult{Success: false, Target: targetName, Error: "Remote target not found."}
}

// ExecuteRemoteAction runs one of {restart_domain, kill_ros, isolate_domain}
// on the named target, queueing it offline after persistent failure.
func (m *Monitor) ExecuteRemoteAction(ctx context.Context, targetName, action, domainID string, timeout time.Duration) ActionResult {
	return m.executeRemoteAction(ctx, targetName, action, domainID, timeout, true)
}

// ResumeQueuedActions replays queued actions in order until budget of them
// have succeeded; failed replays do not count toward the budget. Failed
// entries keep their position; the queue is persisted once per batch.
func (m *Monitor) ResumeQueuedActions(ctx context.Context, budget int, timeout time.Duration) ResumeResult {
	if len(m.queue) == 0 || budget <= 0 {
		return ResumeResult{Success: true, RemainingQueue: len(m.queue)}
	}

	resumed := 0
	failed := 0
	idx := 0
	for idx < len(m.queue) && resumed < budget {
		req := m.queue[idx]
		result := m.executeRemoteAction(ctx, req.Target, req.Action, req.DomainID, timeout, false)
		if result.Success {
			m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
			resumed++

			continue
		}
		failed++
		idx++
	}

	if err := m.persistQueue(); err != nil {
		m.logger.Warn("Failed to persist offline queue", slog.Any("error", err))
	}
	m.tele.SetQueueSize("offline_remote_actions", len(m.queue))

	return ResumeResult{
		Success:        true,
		ResumedCount:   resumed,
		FailedCount:    failed,
		RemainingQueue: len(m.queue),
	}
}
