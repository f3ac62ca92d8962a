package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/00PrabalK00/RosScope/snapshot"
)

// Actions whose effects do not mutate runtime state; everything else queues
// an immediate re-poll with the last request.
var nonMutatingActions = map[string]struct{}{
	"snapshot_json":         {},
	"snapshot_yaml":         {},
	"compare_snapshots":     {},
	"compare_with_previous": {},
	"session_export":        {},
	"export_telemetry":      {},
}

func isMutatingAction(action string) bool {
	_, ok := nonMutatingActions[action]

	return !ok
}

func structToMap(value any) map[string]any {
	out := snapshotToMapAny(value)
	if out == nil {
		return map[string]any{}
	}

	return out
}

// runAction dispatches one action intent on the worker goroutine.
func (e *Engine) runAction(ctx context.Context, action string, payload Payload) Outcome {
	begin := e.nowFn()
	out := Outcome{Action: action}

	switch action {
	case "terminate_pid":
		ok := e.processes.Terminate(payload.PID)
		out.Success = ok
		out.Message = fmt.Sprintf("SIGTERM sent to %d", payload.PID)
		if !ok {
			out.Message = fmt.Sprintf("Failed to SIGTERM %d", payload.PID)
		}
	case "kill_pid":
		ok := e.processes.ForceKill(payload.PID)
		out.Success = ok
		out.Message = fmt.Sprintf("SIGKILL sent to %d", payload.PID)
		if !ok {
			out.Message = fmt.Sprintf("Failed to SIGKILL %d", payload.PID)
		}
	case "kill_tree":
		ok := e.processes.KillProcessTree(payload.PID, true)
		out.Success = ok
		out.Message = fmt.Sprintf("Killed process tree for %d", payload.PID)
		if !ok {
			out.Message = fmt.Sprintf("Failed killing process tree for %d", payload.PID)
		}
	case "kill_all_ros":
		result := e.control.KillAllRos(e.lastAllProcesses)
		out.Success = result.Success
		out.Message = fmt.Sprintf("Killed %d ROS processes, %d failed.", result.KilledCount, result.FailedCount)
		out.Data = structToMap(result)
	case "restart_domain":
		domain := defaultDomain(payload.DomainID)
		result := e.control.RestartDomain(ctx, domain, e.lastAllProcesses)
		out.Success = result.Success
		out.Message = fmt.Sprintf("Domain %s restart: %d terminated.", domain, result.TerminatedProcesses)
		out.Data = structToMap(result)
	case "clear_shared_memory":
		result := e.control.ClearSharedMemory(ctx)
		out.Success = result.Success
		out.Message = "Shared memory cleanup executed."
		out.Data = structToMap(result)
	case "restart_workspace":
		result := e.control.RestartWorkspace(ctx, payload.WorkspacePath, payload.RelaunchCommand, e.lastAllProcesses)
		out.Success = result.Success
		out.Error = result.Error
		out.Message = fmt.Sprintf("Workspace restart: %d terminated.", result.TerminatedProcesses)
		out.Data = structToMap(result)
	case "isolate_domain":
		out = e.isolateDomain(ctx, defaultDomain(payload.DomainID))
	case "snapshot_json", "snapshot_yaml":
		format := "json"
		if action == "snapshot_yaml" {
			format = "yaml"
		}
		out = e.exportSnapshotAction(ctx, action, format)
	case "compare_snapshots":
		diff := snapshot.CompareFiles(payload.LeftPath, payload.RightPath)
		out.Success = diff.Success
		out.Error = diff.Error
		out.Data = structToMap(diff)
	case "compare_with_previous":
		out = e.compareWithPrevious()
	case "session_start":
		status := e.recorder.Start(payload.SessionName)
		out.Success = true
		out.Data = structToMap(status)
	case "session_stop":
		status := e.recorder.Stop()
		out.Success = true
		out.Data = structToMap(status)
	case "session_export":
		result := e.recorder.Export(payload.Format)
		out.Success = result.Success
		out.Error = result.Error
		out.Data = structToMap(result)
	case "save_preset":
		result := e.savePreset(payload.Name)
		out.Success = result.Success
		out.Error = result.Error
		out.Data = structToMap(result)
	case "load_preset":
		result := e.loadPreset(payload.Name)
		out.Success = result.Success
		out.Error = result.Error
		out.Data = structToMap(result)
	case "watchdog_enable":
		e.watchdogEnabled = true
		out.Success = true
		out.Message = "Watchdog enabled."
	case "watchdog_disable":
		e.watchdogEnabled = false
		out.Success = true
		out.Message = "Watchdog disabled."
	case "fleet_load_targets":
		path := payload.Path
		if path == "" {
			path = e.fleetTargetsPath()
		}
		result := e.fleet.LoadTargetsFromFile(path)
		out.Success = result.Success
		out.Error = result.Error
		out.Data = structToMap(result)
	case "fleet_refresh":
		e.lastFleet = e.fleet.CollectFleetStatus(ctx, fleetProbeTimeout)
		out.Success = true
		out.Message = "Fleet refresh complete."
		out.Data = structToMap(e.lastFleet)
	case "remote_action":
		result := e.fleet.ExecuteRemoteAction(ctx, payload.Target, payload.RemoteAction, defaultDomain(payload.DomainID), fleetProbeTimeout)
		e.lastFleet = e.fleet.CollectFleetStatus(ctx, fleetProbeTimeout)
		out.Success = result.Success
		out.Error = result.Error
		out.Data = structToMap(result)
	case "export_telemetry":
		stamp := e.nowFn().UTC().Format("20060102_150405")
		path := filepath.Join(e.baseDir, "logs", "telemetry_"+stamp+".json")
		result := e.tele.ExportToFile(path)
		out.Success = result.Success
		out.Error = result.Error
		out.Data = structToMap(result)
	default:
		out.Success = false
		out.Message = "Unsupported action"
	}

	e.tele.IncrementCounter("orchestrator.actions", 1)
	e.tele.RecordDurationMs("orchestrator.action_ms", e.nowFn().Sub(begin).Milliseconds())
	if !out.Success {
		e.tele.IncrementCounter("orchestrator.actions_failed", 1)
	}

	return out
}

func defaultDomain(domainID string) string {
	if domainID == "" {
		return "0"
	}

	return domainID
}

func (e *Engine) isolateDomain(ctx context.Context, domainID string) Outcome {
	killed := 0
	failed := 0
	for _, proc := range e.lastAllProcesses {
		if !proc.IsROS || proc.DomainID != domainID || proc.PID <= 0 {
			continue
		}
		if e.processes.KillProcessTree(proc.PID, true) {
			killed++
		} else {
			failed++
		}
	}
	daemonStop := e.runner.Run(ctx, "ros2", []string{"daemon", "stop"}, 3*time.Second,
		map[string]string{"ROS_DOMAIN_ID": domainID})

	return Outcome{
		Action:  "isolate_domain",
		Success: failed == 0,
		Message: fmt.Sprintf("Domain %s isolated: %d killed, %d failed.", domainID, killed, failed),
		Data: map[string]any{
			"killed_count":   killed,
			"failed_count":   failed,
			"daemon_stop_ok": daemonStop.OK(),
		},
	}
}

// exportSnapshotAction harvests parameters for any graph node missing from
// the cache, then exports the canonical snapshot.
func (e *Engine) exportSnapshotAction(ctx context.Context, action, format string) Outcome {
	graphDomain := defaultDomain(e.lastGraph.DomainID)
	for _, node := range e.lastGraph.Nodes {
		if node.FullName == "" {
			continue
		}
		e.lock()
		_, cached := e.parameterCache[node.FullName]
		e.unlock()
		if cached {
			continue
		}
		params := e.graph.FetchNodeParameters(ctx, graphDomain, node.FullName)
		if params.Success {
			e.lock()
			e.parameterCache[node.FullName] = params.Parameters
			e.unlock()
		}
	}

	record := e.snapman.BuildSnapshot(
		e.lastAllProcesses, e.lastDomainDetails, e.lastGraph, e.lastTfNav2,
		e.lastSystem, e.lastHealth, e.parametersCopy())
	record.PresetName = e.presetName
	record.Advanced = e.lastAdvanced
	record.Fleet = e.lastFleet
	record.Session = e.recorder.Status()
	record.Watchdog = WatchdogStatus{
		Enabled:              e.watchdogEnabled,
		LastActionEpochMs:    e.lastWatchdogActionMs,
		SoftBoundaryWarnings: e.lastAdvanced.SoftSafetyBoundary.WarningCount,
		LastActionMessage:    e.lastWatchdogMessage,
	}

	result := e.snapman.ExportSnapshot(record, format)

	return Outcome{
		Action:  action,
		Success: result.Success,
		Error:   result.Error,
		Data:    structToMap(result),
	}
}

func (e *Engine) compareWithPrevious() Outcome {
	if e.penultimateSnapshot == nil || e.previousSnapshot == nil {
		return Outcome{
			Action:  "compare_with_previous",
			Success: false,
			Error:   "No previous snapshot available for diff.",
		}
	}

	diff := snapshot.Compare(recordOf(*e.penultimateSnapshot), recordOf(*e.previousSnapshot))

	return Outcome{
		Action:  "compare_with_previous",
		Success: true,
		Data:    structToMap(diff),
	}
}

func recordOf(snap Snapshot) snapshot.Record {
	return snapshot.Record{
		TimestampUTC: snap.TimestampUTC,
		Processes:    snap.ProcessesVisible,
		Domains:      snap.Domains,
		Graph:        snap.Graph,
		TfNav2:       snap.TfNav2,
		Parameters:   snap.NodeParameters,
		System:       snap.System,
		Health:       snap.Health,
	}
}
