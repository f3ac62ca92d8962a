package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/00PrabalK00/RosScope/diagnostics"
	"github.com/00PrabalK00/RosScope/fleet"
)

// Preset captures the operator-tunable runtime state.
type Preset struct {
	PresetName      string              `json:"preset_name"`
	SelectedDomain  string              `json:"selected_domain"`
	WatchdogEnabled bool                `json:"watchdog_enabled"`
	ExpectedProfile diagnostics.Profile `json:"expected_profile"`
	RemoteTargets   []fleet.Target      `json:"remote_targets"`
	TimestampUTC    string              `json:"timestamp_utc"`
}

type PresetResult struct {
	Success        bool   `json:"success"`
	PresetName     string `json:"preset_name,omitempty"`
	SelectedDomain string `json:"selected_domain,omitempty"`
	Path           string `json:"path"`
	Error          string `json:"error,omitempty"`
}

func (e *Engine) presetPath(name string) string {
	preset := strings.TrimSpace(name)
	if preset == "" {
		preset = "default"
	}

	return filepath.Join(e.baseDir, "presets", preset+".json")
}

func (e *Engine) fleetTargetsPath() string {
	return filepath.Join(e.baseDir, "fleet_targets.json")
}

func (e *Engine) savePreset(name string) PresetResult {
	preset := strings.TrimSpace(name)
	if preset == "" {
		preset = "default"
	}
	path := e.presetPath(preset)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return PresetResult{Success: false, Path: path, Error: err.Error()}
	}

	payload := Preset{
		PresetName:      preset,
		SelectedDomain:  e.lastGraph.DomainID,
		WatchdogEnabled: e.watchdogEnabled,
		ExpectedProfile: e.diag.ExpectedProfile(),
		RemoteTargets:   e.fleet.Targets(),
		TimestampUTC:    e.nowFn().UTC().Format(time.RFC3339),
	}
	if payload.SelectedDomain == "" {
		payload.SelectedDomain = "0"
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return PresetResult{Success: false, Path: path, Error: err.Error()}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return PresetResult{Success: false, Path: path, Error: "Failed to open preset file for writing."}
	}

	return PresetResult{Success: true, Path: path, PresetName: preset}
}

// loadPreset restores a preset; a malformed file leaves the prior in-memory
// state untouched.
func (e *Engine) loadPreset(name string) PresetResult {
	path := e.presetPath(name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return PresetResult{Success: false, Path: path, Error: "Failed to read preset file."}
	}
	var payload Preset
	if err := json.Unmarshal(raw, &payload); err != nil {
		return PresetResult{Success: false, Path: path, Error: "Preset file is not a valid JSON object."}
	}

	e.diag.SetExpectedProfile(payload.ExpectedProfile)
	e.fleet.SetTargets(payload.RemoteTargets)
	e.watchdogEnabled = payload.WatchdogEnabled
	e.presetName = payload.PresetName
	if e.presetName == "" {
		e.presetName = strings.TrimSpace(name)
	}

	return PresetResult{
		Success:        true,
		Path:           path,
		PresetName:     e.presetName,
		SelectedDomain: payload.SelectedDomain,
	}
}
