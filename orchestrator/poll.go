package orchestrator

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/diagnostics"
	"github.com/00PrabalK00/RosScope/health"
	"github.com/00PrabalK00/RosScope/inspector"
	"github.com/00PrabalK00/RosScope/sampler"
)

func clampLimit(limit int) int {
	if limit < minProcessLimit {
		return minProcessLimit
	}
	if limit > maxProcessLimit {
		return maxProcessLimit
	}

	return limit
}

// scopeFilter resolves the process_scope field into (rosOnly, domain).
func scopeFilter(req Request) (rosOnly bool, domain string) {
	switch {
	case req.ProcessScope == ScopeRosOnly:
		return true, ""
	case strings.HasPrefix(req.ProcessScope, scopeDomainPrefix):
		return true, strings.TrimPrefix(req.ProcessScope, scopeDomainPrefix)
	default:
		return req.RosOnly, ""
	}
}

func (e *Engine) applyProcessFilter(processes []sampler.Record, req Request) []sampler.Record {
	rosOnly, domain := scopeFilter(req)
	queryLower := strings.ToLower(strings.TrimSpace(req.ProcessQuery))

	filtered := make([]sampler.Record, 0, len(processes))
	for _, proc := range processes {
		if rosOnly && !proc.IsROS {
			continue
		}
		if domain != "" && proc.DomainID != domain {
			continue
		}
		if queryLower != "" {
			searchable := strings.ToLower(
				intToString(proc.PID) + " " + proc.Name + " " + proc.Executable + " " + proc.CommandLine)
			if !strings.Contains(searchable, queryLower) {
				continue
			}
		}
		filtered = append(filtered, proc)
	}

	return filtered
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

// pollNow runs one full poll cycle on the worker goroutine.
func (e *Engine) pollNow(ctx context.Context, req Request) Snapshot {
	begin := e.nowFn()
	if !e.lastPollAt.IsZero() {
		if gap := begin.Sub(e.lastPollAt); gap < e.minPollInterval {
			e.sleep(e.minPollInterval - gap)
		}
	}
	e.lastPollAt = e.nowFn()
	e.pollCounter++
	e.lock()
	e.lastRequest = req
	e.unlock()

	deepInspection := req.ProcessScope != ScopeAllProcesses
	activeTab := req.ActiveTab

	// Idle fast-path: with a stable fingerprint and no process-centric tab
	// active, every other poll reuses the previous sweep.
	idleSkipSweep := e.consecutiveNoChange >= 3 &&
		activeTab != TabProcesses && activeTab != TabDomains &&
		e.pollCounter%2 == 0 &&
		len(e.lastAllProcesses) > 0
	if !idleSkipSweep {
		e.lastAllProcesses = e.processes.ListProcesses(false, "", deepInspection)
		e.lastDomainSummaries = e.graph.ListDomains(e.lastAllProcesses)
	}

	filtered := e.applyProcessFilter(e.lastAllProcesses, req)
	totalFiltered := len(filtered)
	offset := req.ProcessOffset
	if offset < 0 || offset > totalFiltered {
		offset = 0
	}
	limit := clampLimit(req.ProcessLimit)
	end := offset + limit
	if end > totalFiltered {
		end = totalFiltered
	}
	visible := filtered[offset:end]

	selectedDomain := e.resolveDomain(req.SelectedDomain)

	e.refreshDomainDetails(ctx, activeTab, selectedDomain)

	needGraph := (req.EngineerMode && (activeTab == TabNodes || activeTab == TabDiagnostics ||
		activeTab == TabPerformance || activeTab == TabSafety || e.pollCounter%4 == 0)) ||
		(!req.EngineerMode && e.pollCounter%e.idleGraphModulo() == 0)
	needTf := (req.EngineerMode && (activeTab == TabTf || activeTab == TabDiagnostics ||
		activeTab == TabPerformance || activeTab == TabSafety || e.pollCounter%5 == 0)) ||
		(!req.EngineerMode && e.pollCounter%15 == 0)
	needLogs := (req.EngineerMode && (activeTab == TabLogs || e.pollCounter%4 == 0)) ||
		(!req.EngineerMode && e.pollCounter%8 == 0)

	if needGraph || !e.lastGraphValid || e.lastGraph.DomainID != selectedDomain {
		e.lastGraph = e.graph.InspectGraph(ctx, selectedDomain, e.lastAllProcesses)
		e.lastGraphValid = true
	}
	if needTf || !e.lastTfValid || e.lastTfNav2.DomainID != selectedDomain {
		e.lastTfNav2 = e.graph.InspectTfNav2(ctx, selectedDomain)
		e.lastTfValid = true
	}

	e.lastSystem = e.system.CollectSystem(ctx)
	if needLogs || e.lastLogs == "" {
		e.lastLogs = e.system.TailDmesg(ctx, dmesgLines)
	}

	e.lastHealth = health.Evaluate(e.lastDomainDetails, e.lastGraph, e.lastTfNav2)

	deepSampling := req.EngineerMode && (activeTab == TabNodes || activeTab == TabTf ||
		activeTab == TabDiagnostics || activeTab == TabPerformance || activeTab == TabSafety ||
		e.pollCounter%3 == 0)
	e.lock()
	parameters := make(map[string]string, len(e.parameterCache))
	for k, v := range e.parameterCache {
		parameters[k] = v
	}
	e.unlock()
	e.lastAdvanced = e.diag.Evaluate(ctx, diagnostics.EvalContext{
		DomainID:     selectedDomain,
		Processes:    e.lastAllProcesses,
		Domains:      e.lastDomainDetails,
		Graph:        e.lastGraph,
		TfNav2:       e.lastTfNav2,
		System:       e.lastSystem,
		Health:       e.lastHealth,
		Parameters:   parameters,
		DeepSampling: deepSampling,
		PollInterval: e.pollInterval,
	})

	if e.watchdogEnabled {
		e.applyWatchdog(ctx, selectedDomain)
	}

	if activeTab == TabFleet || e.pollCounter%8 == 0 {
		e.lastFleet = e.fleet.CollectFleetStatus(ctx, fleetProbeTimeout)
	}
	if e.pollCounter%6 == 0 {
		e.fleet.ResumeQueuedActions(ctx, queueResumeBudget, fleetProbeTimeout)
	}

	snap := Snapshot{
		InstanceID:           e.instanceID,
		TimestampUTC:         e.nowFn().UTC().Format(time.RFC3339),
		PresetName:           e.presetName,
		SelectedDomain:       selectedDomain,
		ProcessesVisible:     visible,
		ProcessOffset:        offset,
		ProcessLimit:         limit,
		ProcessTotalFiltered: totalFiltered,
		DomainSummaries:      e.lastDomainSummaries,
		Domains:              e.lastDomainDetails,
		Graph:                e.lastGraph,
		TfNav2:               e.lastTfNav2,
		System:               e.lastSystem,
		Logs:                 e.lastLogs,
		Health:               e.lastHealth,
		NodeParameters:       parameters,
		Advanced:             e.lastAdvanced,
		Fleet:                e.lastFleet,
		Session:              e.recorder.Status(),
		Watchdog: WatchdogStatus{
			Enabled:              e.watchdogEnabled,
			LastActionEpochMs:    e.lastWatchdogActionMs,
			SoftBoundaryWarnings: e.lastAdvanced.SoftSafetyBoundary.WarningCount,
			LastActionMessage:    e.lastWatchdogMessage,
		},
	}

	sections := sectionHashes(snap)
	fingerprint := fingerprintOf(sections)
	changed := fingerprint != e.lastFingerprint
	if changed {
		e.syncVersion++
		e.consecutiveNoChange = 0
		e.idleBackoffMs = initialBackoffMs
	} else {
		e.consecutiveNoChange++
		e.idleBackoffMs *= 2
		if e.idleBackoffMs > maxBackoffMs {
			e.idleBackoffMs = maxBackoffMs
		}
	}
	e.lastFingerprint = fingerprint

	snap.SyncVersion = e.syncVersion
	snap.Etag = fingerprint
	snap.Changed = changed
	snap.ChangedSections = sections
	snap.IdleBackoffMs = e.idleBackoffMs

	e.maybeExportScheduledSnapshot()
	e.maybePublish(ctx, snap, changed)

	e.penultimateSnapshot = e.previousSnapshot
	stored := snap
	e.previousSnapshot = &stored
	e.recorder.RecordSample(snapshotToMap(snap))

	e.tele.IncrementCounter("orchestrator.polls", 1)
	e.tele.RecordDurationMs("orchestrator.poll_ms", e.nowFn().Sub(begin).Milliseconds())
	e.tele.SetGauge("orchestrator.idle_backoff_ms", float64(e.idleBackoffMs))

	if !changed && req.SinceVersion == e.syncVersion {
		return heartbeatOf(snap)
	}

	return snap
}

func (e *Engine) idleGraphModulo() uint64 {
	if e.idleBackoffMs >= 4000 {
		return 18
	}

	return 10
}

func (e *Engine) resolveDomain(requested string) string {
	known := make([]string, 0, len(e.lastDomainSummaries))
	for _, summary := range e.lastDomainSummaries {
		id := summary.DomainID
		if id == "" {
			id = "0"
		}
		known = append(known, id)
	}
	for _, id := range known {
		if id == requested && requested != "" {
			return requested
		}
	}
	if len(known) > 0 {
		return known[0]
	}

	return "0"
}

// refreshDomainDetails recomputes domain details either fully, only for the
// selected domain, or not at all, then merges in the summary counters.
func (e *Engine) refreshDomainDetails(ctx context.Context, activeTab int, selectedDomain string) {
	refreshAll := activeTab == TabDomains || e.pollCounter%4 == 0 || len(e.lastDomainDetails) == 0
	refreshSelected := activeTab == TabNodes || activeTab == TabTf

	detailByDomain := make(map[string]inspector.DomainDetail, len(e.lastDomainDetails))
	for _, detail := range e.lastDomainDetails {
		id := detail.DomainID
		if id == "" {
			id = "0"
		}
		detailByDomain[id] = detail
	}

	switch {
	case refreshAll:
		detailByDomain = make(map[string]inspector.DomainDetail, len(e.lastDomainSummaries))
		for _, summary := range e.lastDomainSummaries {
			detailByDomain[summary.DomainID] = e.graph.InspectDomain(ctx, summary.DomainID, e.lastAllProcesses, false)
		}
	case refreshSelected:
		detailByDomain[selectedDomain] = e.graph.InspectDomain(ctx, selectedDomain, e.lastAllProcesses, false)
	}

	details := make([]inspector.DomainDetail, 0, len(e.lastDomainSummaries))
	for _, summary := range e.lastDomainSummaries {
		detail, ok := detailByDomain[summary.DomainID]
		if !ok {
			detail = inspector.DomainDetail{DomainID: summary.DomainID, Nodes: []inspector.Node{}}
		}
		detail.RosProcessCount = summary.RosProcessCount
		detail.DomainCPUPercent = summary.DomainCPUPercent
		detail.DomainMemoryPercent = summary.DomainMemoryPercent
		detail.WorkspaceCount = summary.WorkspaceCount
		details = append(details, detail)
	}
	e.lastDomainDetails = details
}

func (e *Engine) maybeExportScheduledSnapshot() {
	if e.snapshotSchedule == nil {
		return
	}
	now := e.nowFn()
	if now.Before(e.nextSnapshotAt) {
		return
	}
	record := e.snapman.BuildSnapshot(
		e.lastAllProcesses, e.lastDomainDetails, e.lastGraph, e.lastTfNav2,
		e.lastSystem, e.lastHealth, e.parametersCopy())
	record.PresetName = e.presetName
	if res := e.snapman.ExportSnapshot(record, "json"); res.Success {
		e.logger.Info("Scheduled snapshot exported", slog.String("path", res.Path))
	} else {
		e.logger.Warn("Scheduled snapshot export failed", slog.String("error", res.Error))
	}
	e.nextSnapshotAt = e.snapshotSchedule.Next(now)
}

func (e *Engine) maybePublish(ctx context.Context, snap Snapshot, changed bool) {
	if e.publisher == nil || !changed {
		return
	}
	summary := map[string]any{
		"timestamp_utc":   snap.TimestampUTC,
		"selected_domain": snap.SelectedDomain,
		"sync_version":    snap.SyncVersion,
		"etag":            snap.Etag,
		"health":          snap.Health,
		"domain_summaries": snap.DomainSummaries,
		"stability_score": snap.Advanced.RuntimeStabilityScore,
		"watchdog":        snap.Watchdog,
	}
	if err := e.publisher.Publish(ctx, e.pubTopic+"/snapshot", summary); err != nil {
		e.logger.Warn("Snapshot publish failed", slog.Any("error", err))
	}
}

func (e *Engine) parametersCopy() map[string]string {
	e.lock()
	defer e.unlock()
	out := make(map[string]string, len(e.parameterCache))
	for k, v := range e.parameterCache {
		out[k] = v
	}

	return out
}
