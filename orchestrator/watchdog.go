package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
)

// applyWatchdog evaluates the escalation triggers in priority order, at most
// once per refractory window.
func (e *Engine) applyWatchdog(ctx context.Context, selectedDomain string) {
	now := e.nowFn().UnixMilli()
	if now-e.lastWatchdogActionMs < watchdogRefractory.Milliseconds() {
		return
	}

	zombieCount := len(e.lastHealth.ZombieNodes)
	softWarnings := e.lastAdvanced.SoftSafetyBoundary.WarningCount
	cpu := e.lastSystem.CPU.UsagePercent

	actionTaken := false
	var message string
	switch {
	case zombieCount > 0:
		result := e.control.RestartDomain(ctx, selectedDomain, e.lastAllProcesses)
		actionTaken = result.Success
		message = fmt.Sprintf("Watchdog restart domain %s (%d zombies)", selectedDomain, zombieCount)
	case cpu > 95.0 || e.lastHealth.Status == "critical":
		result := e.control.KillAllRos(e.lastAllProcesses)
		actionTaken = result.Success
		message = "Watchdog emergency stop due to critical load"
	case softWarnings >= 4:
		actionTaken = true
		message = "Watchdog warning escalation without kill action"
	}

	if actionTaken {
		e.lastWatchdogActionMs = now
		e.lastWatchdogMessage = message
		e.logger.Warn("Watchdog action", slog.String("message", message))
		e.tele.RecordEvent("watchdog_action", map[string]any{"message": message, "domain": selectedDomain})
		if e.publisher != nil {
			if err := e.publisher.Publish(ctx, e.pubTopic+"/watchdog", map[string]any{
				"message":   message,
				"domain":    selectedDomain,
				"epoch_ms":  now,
			}); err != nil {
				e.logger.Warn("Watchdog publish failed", slog.Any("error", err))
			}
		}
	}
}
